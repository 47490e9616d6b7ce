// Package selfupdate replaces the manager executable with a staged build
// downloaded by the pipeline.
package selfupdate
