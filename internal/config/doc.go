// Package config holds the persisted user Settings (config.json) and the
// on-disk Layout shared by every other package.
//
// Settings are loaded once at startup, migrated field by field when the file
// is incomplete or corrupt, and rewritten synchronously on every mutation.
package config
