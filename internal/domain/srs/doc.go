// Package srs implements the spaced-repetition scheduler: a pure state
// machine that moves a card's ReviewState through the Learning, Review and
// Relearning phases in response to a rating.
//
// ComputeNext is the core. It never reads the clock and holds no state, so
// it is safe to call from any goroutine and its output for a given input is
// always identical. Service wraps it with a fixed SchedulerConfig and adds
// previewing, postponing and replay of review logs.
package srs
