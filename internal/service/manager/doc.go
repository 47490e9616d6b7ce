// Package manager is the core facade used by the presentation layer.
//
// It owns the collection of application records, gates GitHub polling through
// the rate-limit governor, starts pipeline runs and applies their terminal
// events. A Manager is not safe for concurrent use: it belongs to the goroutine
// that drives the user interface, and background work reaches it only through
// pipeline events drained by Poll or Await.
package manager
