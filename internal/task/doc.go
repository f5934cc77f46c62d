// Package task runs background work on a fixed pool of workers. Every task
// carries a key; tasks with the same key always run on the same worker, one
// at a time, in submission order. Review writes use the card ID as the key so
// that ratings of one card are persisted in the order they were given.
package task
