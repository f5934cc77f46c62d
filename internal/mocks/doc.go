// Package mocks holds shared testify mocks for the service interfaces.
//
//	svc := new(mocks.MockCardReviewService)
//	svc.On("GetNextCard", mock.Anything, userID).Return(nil, card_review.ErrNoCardsDue)
//	defer svc.AssertExpectations(t)
package mocks
