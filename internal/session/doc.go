// Package session drives one sitting of reviews over an in-memory list of
// due cards.
//
// Rating a card computes the next state synchronously, hands the write to
// an asynchronous recorder and moves on without waiting for it. A failed
// write is reported on the recorder's Failures channel; it never moves the
// cursor back. Writes for the same card are applied in the order the
// ratings were given because the recorder routes them by card ID to a fixed
// worker.
package session
