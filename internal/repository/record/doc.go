// Package record implements persistence for application records.
//
// The FileRepository keeps one JSON document per application under the
// appdata directory and replaces it atomically on every save.
package record
