package pipeline

import (
	"sync/atomic"

	"github.com/oshokin/lights-manager/internal/domain/app"
)

// Job is the handle of one run. Progress and Phase are safe to read from any goroutine.
type Job struct {
	app      string
	progress atomic.Int32
	phase    atomic.Int32
	events   chan Event
}

func newJob(name string) *Job {
	j := &Job{
		app:    name,
		events: make(chan Event, 1),
	}
	j.phase.Store(int32(app.PhaseIdle))

	return j
}

// App returns the application name.
func (j *Job) App() string {
	return j.app
}

// Progress returns the progress of the current phase in percent.
func (j *Job) Progress() int {
	return int(j.progress.Load())
}

// Phase returns the current phase.
func (j *Job) Phase() app.Phase {
	return app.Phase(j.phase.Load())
}

// Events delivers exactly one terminal event and is closed afterwards.
func (j *Job) Events() <-chan Event {
	return j.events
}

func (j *Job) setProgress(percent int) {
	j.progress.Store(int32(min(max(percent, 0), 100))) //nolint:gosec // Clamped to [0,100].
}

func (j *Job) enter(phase app.Phase) {
	j.phase.Store(int32(phase))
	j.progress.Store(0)
}

// finish publishes the terminal event. It is called once, by the run goroutine.
func (j *Job) finish(ev Event) {
	j.events <- ev
	close(j.events)
}
