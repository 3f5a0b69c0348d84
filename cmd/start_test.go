package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wakesentry/host/internal/keepawake"
	"github.com/wakesentry/host/internal/server"
)

type startStubHandle struct {
	done chan struct{}
}

func (h *startStubHandle) Done() <-chan struct{} { return h.done }
func (h *startStubHandle) Err() error            { return nil }
func (h *startStubHandle) Release(ctx context.Context) error {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
	return nil
}

type startStubAsserter struct{}

func (startStubAsserter) Assert(ctx context.Context, req keepawake.AssertRequest) (keepawake.Handle, error) {
	return &startStubHandle{done: make(chan struct{})}, nil
}

func TestRunStart_MissingExplicitConfig(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := runStart([]string{"--config", filepath.Join(t.TempDir(), "nope.toml")}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "Error:") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestRunStart_ServesAndShutsDownCleanly(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	content := fmt.Sprintf("addr = %q\nstore = %q\ntoken_file = %q\nrequire_auth = false\n",
		"127.0.0.1:0",
		filepath.Join(dir, "wakesentry.db"),
		filepath.Join(dir, "control.token"))
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	listenerCh := make(chan net.Listener, 1)
	sigCh := make(chan os.Signal, 1)

	origAsserter := newAsserter
	origListener := newListener
	origSignals := shutdownSignals
	newAsserter = func() keepawake.Asserter { return startStubAsserter{} }
	newListener = func(addr string) (net.Listener, error) {
		l, err := net.Listen("tcp", addr)
		if err == nil {
			listenerCh <- l
		}
		return l, err
	}
	shutdownSignals = func() <-chan os.Signal { return sigCh }
	t.Cleanup(func() {
		newAsserter = origAsserter
		newListener = origListener
		shutdownSignals = origSignals
	})

	var stdout, stderr bytes.Buffer
	exitCh := make(chan int, 1)
	go func() {
		exitCh <- runStart([]string{"--config", configPath}, &stdout, &stderr)
	}()

	var listener net.Listener
	select {
	case listener = <-listenerCh:
	case <-time.After(10 * time.Second):
		t.Fatal("daemon never started listening")
	}
	base := "http://" + listener.Addr().String()

	waitForDaemon(t, base)

	// Schedule via the API, then verify /status reflects it.
	body := strings.NewReader(`{"interval_secs": 300}`)
	resp, err := http.Post(base+"/api/wake/schedule", "application/json", body)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	var mutation server.MutationResponse
	json.NewDecoder(resp.Body).Decode(&mutation)
	resp.Body.Close()
	if !mutation.OK || !mutation.Active {
		t.Fatalf("schedule response = %+v", mutation)
	}

	resp, err = http.Get(base + "/status")
	if err != nil {
		t.Fatal(err)
	}
	var status server.StatusResponse
	json.NewDecoder(resp.Body).Decode(&status)
	resp.Body.Close()
	if !status.Active || status.IntervalSecs != 300 {
		t.Errorf("status = %+v", status)
	}

	// The token file must exist even with auth disabled, so flipping
	// require_auth on later does not strand the CLI.
	if _, err := os.Stat(filepath.Join(dir, "control.token")); err != nil {
		t.Errorf("control token not written: %v", err)
	}

	sigCh <- os.Interrupt
	select {
	case code := <-exitCh:
		if code != 0 {
			t.Errorf("exit code = %d, stderr=%s", code, stderr.String())
		}
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not shut down")
	}
	if !strings.Contains(stdout.String(), "wakesentry stopped") {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func waitForDaemon(t *testing.T, base string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(base + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("daemon health endpoint never became ready")
}
