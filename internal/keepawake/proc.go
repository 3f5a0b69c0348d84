//go:build darwin || linux

package keepawake

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// procHandle wraps a spawned assertion process. A released handle reports a
// nil Err even when the process exits from our own SIGTERM.
type procHandle struct {
	cmd *exec.Cmd

	mu       sync.Mutex
	done     chan struct{}
	err      error
	released bool
	once     sync.Once
}

func newProcHandle(cmd *exec.Cmd) *procHandle {
	h := &procHandle{
		cmd:  cmd,
		done: make(chan struct{}),
	}
	go h.wait()
	return h
}

func (h *procHandle) wait() {
	err := h.cmd.Wait()

	h.mu.Lock()
	if h.released {
		err = nil
	}
	h.err = err
	h.mu.Unlock()

	close(h.done)
}

func (h *procHandle) Done() <-chan struct{} {
	return h.done
}

func (h *procHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *procHandle) Release(ctx context.Context) error {
	if h.cmd == nil || h.cmd.Process == nil {
		return nil
	}

	h.once.Do(func() {
		h.mu.Lock()
		h.released = true
		h.mu.Unlock()
		_ = h.cmd.Process.Signal(syscall.SIGTERM)
	})

	select {
	case <-ctx.Done():
		// Escalate to SIGKILL on timeout to reduce orphan-process risk.
		_ = h.cmd.Process.Kill()
		select {
		case <-h.done:
		case <-time.After(200 * time.Millisecond):
		}
		return fmt.Errorf("release timed out waiting for assertion exit: %w", ctx.Err())
	case <-h.done:
		return nil
	}
}
