// Package app contains the domain types of the manager: GitHub releases and
// their assets, repository metadata, and the App Record persisted per
// application.
//
// Record.Clone gives background workers an owned snapshot so they never
// share mutable state with the interactive goroutine.
package app
