// Package domain contains the core business entities, value objects, and
// domain logic of the application: cards, the per-card review state that the
// scheduler consumes and produces, ratings, and the review log. It is
// independent of any specific infrastructure or delivery mechanism.
//
// The scheduling rules themselves live in the srs subpackage.
package domain
