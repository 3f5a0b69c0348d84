//go:build linux

package keepawake

import (
	"context"
	"os/exec"
	"testing"
	"time"

	hostErrors "github.com/wakesentry/host/internal/errors"
)

func TestLinuxAssert_ArgumentConstruction(t *testing.T) {
	var gotName string
	var gotArgs []string
	a := &linuxAsserter{
		execCmd: func(name string, args ...string) *exec.Cmd {
			gotName = name
			gotArgs = args
			return exec.Command("sleep", "60")
		},
	}

	h, err := a.Assert(context.Background(), AssertRequest{HostPID: 7, TimeoutSeconds: 600})
	if err != nil {
		t.Fatalf("Assert error: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.Release(ctx)
	}()

	if gotName != "systemd-inhibit" {
		t.Errorf("command = %q, want systemd-inhibit", gotName)
	}
	want := []string{"--what=idle:sleep", "--who=wakesentry", "--why=keep-awake session", "--mode=block", "sleep", "600"}
	if len(gotArgs) != len(want) {
		t.Fatalf("args = %v, want %v", gotArgs, want)
	}
	for i := range want {
		if gotArgs[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, gotArgs[i], want[i])
		}
	}
}

func TestLinuxAssert_IndefiniteSleepsForever(t *testing.T) {
	var gotArgs []string
	a := &linuxAsserter{
		execCmd: func(name string, args ...string) *exec.Cmd {
			gotArgs = args
			return exec.Command("sleep", "60")
		},
	}

	h, err := a.Assert(context.Background(), AssertRequest{HostPID: 7})
	if err != nil {
		t.Fatalf("Assert error: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.Release(ctx)
	}()

	if len(gotArgs) == 0 || gotArgs[len(gotArgs)-1] != "infinity" {
		t.Errorf("indefinite assert args = %v, want trailing infinity", gotArgs)
	}
}

func TestLinuxAssert_UnsupportedWhenMissingBinary(t *testing.T) {
	a := &linuxAsserter{
		execCmd: func(name string, args ...string) *exec.Cmd {
			return exec.Command("/nonexistent-binary-for-keepawake-test")
		},
	}

	_, err := a.Assert(context.Background(), AssertRequest{HostPID: 1})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := hostErrors.GetCode(err); got != hostErrors.CodeWakeUnsupportedEnvironment {
		t.Fatalf("code=%s want %s", got, hostErrors.CodeWakeUnsupportedEnvironment)
	}
}
