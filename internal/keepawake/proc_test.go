//go:build darwin || linux

package keepawake

import (
	"context"
	"os/exec"
	"testing"
	"time"
)

func TestProcHandle_ReleaseSuppressesSignalExitError(t *testing.T) {
	cmd := exec.Command("sleep", "10")
	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start sleep: %v", err)
	}
	h := newProcHandle(cmd)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.Release(ctx); err != nil {
		t.Fatalf("Release error: %v", err)
	}

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected process exit after release")
	}
	if err := h.Err(); err != nil {
		t.Errorf("released handle Err() = %v, want nil", err)
	}
}

func TestProcHandle_ReleaseTimeoutEscalatesKill(t *testing.T) {
	cmd := exec.Command("sleep", "10")
	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start sleep: %v", err)
	}
	h := newProcHandle(cmd)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	if err := h.Release(ctx); err == nil {
		t.Fatal("expected timeout error")
	}

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected process exit after kill escalation")
	}
}

func TestProcHandle_NaturalExitReportsDone(t *testing.T) {
	cmd := exec.Command("true")
	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start true: %v", err)
	}
	h := newProcHandle(cmd)

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected natural process exit")
	}
	if err := h.Err(); err != nil {
		t.Errorf("clean exit Err() = %v, want nil", err)
	}
}
