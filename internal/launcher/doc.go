// Package launcher starts installed applications as detached processes and
// validates the Java runtime they are started with.
package launcher
