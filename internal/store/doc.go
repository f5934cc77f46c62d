// Package store defines the persistence contracts the review service depends
// on: review states, cards and the review log. Implementations live under
// internal/platform (postgres and sqlite) and share the DBTX abstraction and
// the error vocabulary declared here.
package store
