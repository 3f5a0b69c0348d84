//go:build darwin

package keepawake

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strconv"

	hostErrors "github.com/wakesentry/host/internal/errors"
)

// NewDefaultAsserter returns the default macOS asserter, backed by the
// system caffeinate utility.
func NewDefaultAsserter() Asserter {
	return &darwinAsserter{
		execCmd: exec.Command,
	}
}

type darwinAsserter struct {
	execCmd func(name string, args ...string) *exec.Cmd
}

func (a *darwinAsserter) Assert(ctx context.Context, req AssertRequest) (Handle, error) {
	if a.execCmd == nil {
		return nil, hostErrors.New(hostErrors.CodeWakeSpawnFailed, "keep-awake command runner is unavailable")
	}

	// -d -i: block display and idle sleep. -w binds lifecycle to the host
	// PID so crash/restart exits the assertion process automatically.
	args := []string{"-d", "-i", "-w", strconv.Itoa(req.HostPID)}
	if req.TimeoutSeconds > 0 {
		args = append(args, "-t", strconv.Itoa(req.TimeoutSeconds))
	}

	cmd := a.execCmd("caffeinate", args...)
	if err := cmd.Start(); err != nil {
		var ex *exec.Error
		if errors.As(err, &ex) || errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, hostErrors.Wrap(hostErrors.CodeWakeUnsupportedEnvironment, "caffeinate is unavailable", err)
		}
		return nil, hostErrors.Wrap(hostErrors.CodeWakeSpawnFailed, "failed to start caffeinate", err)
	}

	return newProcHandle(cmd), nil
}
