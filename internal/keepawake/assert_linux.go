//go:build linux

package keepawake

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"

	hostErrors "github.com/wakesentry/host/internal/errors"
)

// NewDefaultAsserter returns the default Linux asserter, backed by
// systemd-inhibit wrapping a bounded sleep.
func NewDefaultAsserter() Asserter {
	return &linuxAsserter{
		execCmd: exec.Command,
	}
}

type linuxAsserter struct {
	execCmd func(name string, args ...string) *exec.Cmd
}

func (a *linuxAsserter) Assert(ctx context.Context, req AssertRequest) (Handle, error) {
	if a.execCmd == nil {
		return nil, hostErrors.New(hostErrors.CodeWakeSpawnFailed, "keep-awake command runner is unavailable")
	}

	// The inhibitor lock is held for exactly as long as the wrapped sleep
	// runs, which gives the assertion its self-timeout.
	duration := "infinity"
	if req.TimeoutSeconds > 0 {
		duration = strconv.Itoa(req.TimeoutSeconds)
	}

	cmd := a.execCmd("systemd-inhibit",
		"--what=idle:sleep",
		"--who=wakesentry",
		"--why=keep-awake session",
		"--mode=block",
		"sleep", duration,
	)
	// Kernel sends SIGTERM to the child when the host dies, so a crash that
	// skips Close cannot leave the inhibitor running. systemd-inhibit has no
	// PID-watchdog flag equivalent to caffeinate -w.
	cmd.SysProcAttr = &syscall.SysProcAttr{Pdeathsig: unix.SIGTERM}

	if err := cmd.Start(); err != nil {
		var ex *exec.Error
		if errors.As(err, &ex) || errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, hostErrors.Wrap(hostErrors.CodeWakeUnsupportedEnvironment, "systemd-inhibit is unavailable", err)
		}
		return nil, hostErrors.Wrap(hostErrors.CodeWakeSpawnFailed, "failed to start systemd-inhibit", err)
	}

	return newProcHandle(cmd), nil
}
