package pipeline

import "github.com/oshokin/lights-manager/internal/domain/app"

// Event is the terminal outcome of a run. It is one of Installed, Failed,
// RuntimeInstalled or ManagerInstalled.
type Event interface {
	// Record returns the record as the run left it.
	Record() *app.Record
	event()
}

// Installed reports a regular application that is ready to launch.
type Installed struct {
	Final *app.Record
}

// Failed reports a run that stopped with Err.
type Failed struct {
	Final *app.Record
	Err   error
}

// RuntimeInstalled reports a runtime whose executable is at Path.
type RuntimeInstalled struct {
	Final *app.Record
	Path  string
}

// ManagerInstalled reports a staged build of this program at Path.
// It replaces the running executable on the next apply-update.
type ManagerInstalled struct {
	Final *app.Record
	Path  string
}

func (e Installed) Record() *app.Record        { return e.Final }
func (e Failed) Record() *app.Record           { return e.Final }
func (e RuntimeInstalled) Record() *app.Record { return e.Final }
func (e ManagerInstalled) Record() *app.Record { return e.Final }

func (Installed) event()        {}
func (Failed) event()           {}
func (RuntimeInstalled) event() {}
func (ManagerInstalled) event() {}
