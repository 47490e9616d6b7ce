// Package pipeline installs and updates applications in the background.
//
// A run walks Downloading, Extracting and Finalizing on its own goroutine and
// ends in Installed or Failed. The caller watches progress through an atomic
// counter and receives exactly one terminal event carrying the final record.
package pipeline
