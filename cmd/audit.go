// This file implements "wakesentry audit": list recent keep-awake activity
// straight from the store, no daemon required.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/wakesentry/host/internal/storage"
)

var openAuditStore = func(path string) (auditLister, error) {
	return storage.NewSQLiteStore(path)
}

type auditLister interface {
	ListWakeAudit(limit int) ([]*storage.WakeAuditEntry, error)
	Close() error
}

type jsonAuditEntry struct {
	Operation    string `json:"operation"`
	RequestID    string `json:"request_id"`
	Source       string `json:"source"`
	IntervalSecs int    `json:"interval_secs"`
	Detail       string `json:"detail,omitempty"`
	At           string `json:"at"`
}

// runAudit handles "wakesentry audit".
func runAudit(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var configPath, storePath string
	var limit int
	var jsonOutput bool
	fs.StringVar(&configPath, "config", "", "Path to config file (default: ~/.wakesentry/config.toml)")
	fs.StringVar(&storePath, "store", "", "Path to store (default: from config)")
	fs.IntVar(&limit, "limit", 20, "Maximum number of entries to show (0 for all)")
	fs.BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: wakesentry audit [options]\n\nShow recent keep-awake activity.\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	if storePath == "" {
		cfg, err := loadClientConfig(configPath)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		storePath = cfg.Store
	}

	store, err := openAuditStore(storePath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: cannot open store %s: %v\n", storePath, err)
		return 1
	}
	defer store.Close()

	entries, err := store.ListWakeAudit(limit)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if jsonOutput {
		out := make([]jsonAuditEntry, 0, len(entries))
		for _, e := range entries {
			out = append(out, jsonAuditEntry{
				Operation:    e.Operation,
				RequestID:    e.RequestID,
				Source:       e.Source,
				IntervalSecs: e.IntervalSecs,
				Detail:       e.Detail,
				At:           e.At.Format(time.RFC3339),
			})
		}
		writeIndentedJSON(stdout, out)
		return 0
	}

	if len(entries) == 0 {
		fmt.Fprintln(stdout, "No keep-awake activity recorded")
		return 0
	}
	for _, e := range entries {
		line := fmt.Sprintf("%s  %-9s %s", e.At.Local().Format("2006-01-02 15:04:05"), e.Operation, e.Source)
		if e.IntervalSecs > 0 {
			line += fmt.Sprintf("  %ds", e.IntervalSecs)
		}
		if e.Detail != "" {
			line += "  " + e.Detail
		}
		fmt.Fprintln(stdout, line)
	}
	return 0
}
