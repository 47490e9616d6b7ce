// Package version exposes build metadata for lights-manager.
//
// Version, Commit and BuildTime are injected via ldflags. Version doubles as
// the installed version of the manager's own catalog entry.
package version
