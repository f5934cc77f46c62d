// Package api exposes the review service over HTTP. Handlers translate
// requests into card_review calls and map service errors onto status codes
// and client-safe messages; they never schedule anything themselves.
package api
