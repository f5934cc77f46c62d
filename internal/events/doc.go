// Package events carries review notifications between the components that
// record ratings and the components that react to them.
//
// The primary components are:
//   - ReviewEvent: a rating was persisted, or persisting it failed
//   - EventHandler: interface for components that can handle events
//   - EventEmitter: interface for components that can emit events
package events
