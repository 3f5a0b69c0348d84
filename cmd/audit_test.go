package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/wakesentry/host/internal/storage"
)

type fakeAuditStore struct {
	entries []*storage.WakeAuditEntry
	limit   int
}

func (s *fakeAuditStore) ListWakeAudit(limit int) ([]*storage.WakeAuditEntry, error) {
	s.limit = limit
	return s.entries, nil
}

func (s *fakeAuditStore) Close() error { return nil }

func stubAuditStore(t *testing.T, store *fakeAuditStore) {
	t.Helper()
	orig := openAuditStore
	openAuditStore = func(string) (auditLister, error) { return store, nil }
	t.Cleanup(func() { openAuditStore = orig })
}

func TestRunAudit_ListsEntries(t *testing.T) {
	at := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	store := &fakeAuditStore{entries: []*storage.WakeAuditEntry{
		{Operation: storage.AuditOpSchedule, RequestID: "r1", Source: "cli", IntervalSecs: 1800, At: at},
		{Operation: storage.AuditOpCancel, RequestID: "r1", Source: "system", Detail: "cancelled", At: at},
	}}
	stubAuditStore(t, store)

	var stdout, stderr bytes.Buffer
	if code := runAudit([]string{"--store", "/tmp/x.db"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code = %d, stderr=%s", code, stderr.String())
	}
	if store.limit != 20 {
		t.Errorf("limit = %d, want default 20", store.limit)
	}
	out := stdout.String()
	if !strings.Contains(out, "schedule") || !strings.Contains(out, "1800s") {
		t.Errorf("stdout = %q", out)
	}
}

func TestRunAudit_JSON(t *testing.T) {
	at := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)
	store := &fakeAuditStore{entries: []*storage.WakeAuditEntry{
		{Operation: storage.AuditOpComplete, RequestID: "r2", Source: "system", Detail: "natural", At: at},
	}}
	stubAuditStore(t, store)

	var stdout, stderr bytes.Buffer
	if code := runAudit([]string{"--store", "/tmp/x.db", "--json", "--limit", "5"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if store.limit != 5 {
		t.Errorf("limit = %d, want 5", store.limit)
	}

	var out []jsonAuditEntry
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		t.Fatalf("output not JSON: %v", err)
	}
	if len(out) != 1 || out[0].Operation != storage.AuditOpComplete || out[0].Detail != "natural" {
		t.Errorf("output = %+v", out)
	}
}

func TestRunAudit_Empty(t *testing.T) {
	stubAuditStore(t, &fakeAuditStore{})

	var stdout, stderr bytes.Buffer
	if code := runAudit([]string{"--store", "/tmp/x.db"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(stdout.String(), "No keep-awake activity") {
		t.Errorf("stdout = %q", stdout.String())
	}
}
