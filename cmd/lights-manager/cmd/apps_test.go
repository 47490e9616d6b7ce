package cmd

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/lights-manager/internal/domain/app"
	"github.com/oshokin/lights-manager/internal/pipeline"
	"github.com/oshokin/lights-manager/internal/service/manager"
)

var errDiskFull = errors.New("disk full")

// fakeRunner reports progress until finish is set, then one terminal event.
type fakeRunner struct {
	finish atomic.Bool
	event  pipeline.Event
}

func (f *fakeRunner) Progress(string) (app.Phase, int) {
	return app.PhaseDownloading, 50
}

func (f *fakeRunner) Poll(context.Context) []pipeline.Event {
	if !f.finish.Load() {
		return nil
	}

	return []pipeline.Event{f.event}
}

func (f *fakeRunner) Notifications() []manager.Notification {
	return []manager.Notification{{Title: "Installation successful", Message: "BeatMaker is ready"}}
}

func TestFollowSurvivesInterrupt(t *testing.T) {
	t.Parallel()

	ctx, interrupt := context.WithCancel(context.Background())
	r := &fakeRunner{event: pipeline.Installed{Final: &app.Record{Name: "BeatMaker"}}}

	var (
		out, errOut bytes.Buffer
		runCtx      context.Context
		stopped     atomic.Bool
	)

	err := follow(ctx, func() {
		stopped.Store(true)
		r.finish.Store(true)
	}, &out, &errOut, r, "BeatMaker", func(c context.Context) error {
		runCtx = c

		interrupt()

		return nil
	})
	require.NoError(t, err)

	require.True(t, stopped.Load(), "the first interrupt restores default signal handling")
	require.NoError(t, runCtx.Err(), "the run must not be cancelled by an interrupt")
	require.Contains(t, errOut.String(), "waiting for BeatMaker to finish")
	require.Contains(t, errOut.String(), "Installation successful")
	require.Contains(t, out.String(), "downloading")
}

func TestFollowReportsFailure(t *testing.T) {
	t.Parallel()

	r := &fakeRunner{event: pipeline.Failed{Final: &app.Record{Name: "BeatMaker"}, Err: errDiskFull}}
	r.finish.Store(true)

	var out, errOut bytes.Buffer

	err := follow(context.Background(), func() {}, &out, &errOut, r, "BeatMaker", func(context.Context) error { return nil })
	require.ErrorIs(t, err, errRunFailed)
	require.ErrorIs(t, err, errDiskFull)
}
