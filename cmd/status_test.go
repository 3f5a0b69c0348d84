package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/wakesentry/host/internal/server"
)

func TestRunStatus_Active(t *testing.T) {
	deadline := time.Now().Add(30 * time.Minute)
	remaining := int64(1799)
	stubClientSeams(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(server.StatusResponse{
			Active:        true,
			IntervalSecs:  1800,
			IntervalLabel: "30 minutes",
			Deadline:      &deadline,
			RemainingSecs: &remaining,
			Revision:      7,
			UpdatedAt:     time.Now(),
			Version:       "v1",
		})
	}))

	var stdout, stderr bytes.Buffer
	if code := runStatus([]string{"--json"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}

	var out jsonStatusSuccess
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("output not JSON: %v", err)
	}
	if !out.OK || !out.Active || out.IntervalSecs != 1800 || out.StatusRevision != 7 {
		t.Errorf("output = %+v", out)
	}
	if out.Deadline == "" {
		t.Error("deadline missing from JSON output")
	}
}

func TestRunStatus_IdleHumanOutput(t *testing.T) {
	stubClientSeams(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(server.StatusResponse{
			Active:        false,
			IntervalLabel: "indefinitely",
			UpdatedAt:     time.Now(),
		})
	}))

	var stdout, stderr bytes.Buffer
	if code := runStatus([]string{}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout.String(), "sleeping normally") {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestRunStatus_Unreachable(t *testing.T) {
	stubClientSeams(t, http.NewServeMux())

	var stdout, stderr bytes.Buffer
	code := runStatus([]string{"--addr", "127.0.0.1:1"}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "not reachable") {
		t.Errorf("stderr = %q", stderr.String())
	}
}
