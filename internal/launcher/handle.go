package launcher

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync/atomic"

	"github.com/mitchellh/go-ps"
)

// Handle tracks a launched process.
type Handle struct {
	process *os.Process
	exited  atomic.Bool
	done    chan struct{}
}

// newHandle reaps cmd in the background so the child never lingers as a zombie.
func newHandle(cmd *exec.Cmd) *Handle {
	h := &Handle{
		process: cmd.Process,
		done:    make(chan struct{}),
	}

	go func() {
		_ = cmd.Wait()

		h.exited.Store(true)
		close(h.done)
	}()

	return h
}

// PID returns the process id.
func (h *Handle) PID() int {
	return h.process.Pid
}

// Running reports whether the process is still alive.
func (h *Handle) Running() bool {
	if h.exited.Load() {
		return false
	}

	return Alive(h.process.Pid)
}

// Done is closed once the process has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Kill terminates the process. Killing an exited process is not an error.
func (h *Handle) Kill() error {
	if h.exited.Load() {
		return nil
	}

	if err := h.process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill %d: %w", h.process.Pid, err)
	}

	return nil
}

// Alive looks pid up in the process table. It also works for processes
// started by an earlier run of the manager.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}

	p, err := ps.FindProcess(pid)

	return err == nil && p != nil
}
