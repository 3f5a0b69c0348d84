// This file implements "wakesentry start": the daemon that owns the wake
// supervisor and serves the observer API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/wakesentry/host/internal/auth"
	"github.com/wakesentry/host/internal/config"
	"github.com/wakesentry/host/internal/interval"
	"github.com/wakesentry/host/internal/keepawake"
	"github.com/wakesentry/host/internal/server"
	"github.com/wakesentry/host/internal/storage"
)

// StartConfig holds the merged configuration for the start command.
type StartConfig struct {
	Config              string
	Addr                string
	Store               string
	TokenFile           string
	LogLevel            string
	RequireAuth         bool
	Activate            bool
	DeactivateOnBattery bool
}

// Testability seams (function variables).
var (
	newAsserter = func() keepawake.Asserter {
		return keepawake.NewDefaultAsserter()
	}

	newPowerProvider = func() keepawake.PowerProvider {
		return keepawake.NewDefaultPowerProvider()
	}

	newListener = func(addr string) (net.Listener, error) {
		return net.Listen("tcp", addr)
	}

	probeAuditWrite = func(store *storage.SQLiteStore) error {
		return store.ProbeWakeAuditWrite()
	}

	// shutdownSignals is closed by tests to trigger a clean shutdown without
	// sending a real signal.
	shutdownSignals = func() <-chan os.Signal {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		return ch
	}
)

func runStart(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	fs.SetOutput(stderr)

	cfg := &StartConfig{}
	fs.StringVar(&cfg.Config, "config", "", "Path to config file (default: ~/.wakesentry/config.toml)")
	fs.StringVar(&cfg.Addr, "addr", "", "Listen address for the observer API (default: 127.0.0.1:7188)")
	fs.StringVar(&cfg.Store, "store", "", "Path to the store (default: ~/.wakesentry/wakesentry.db)")
	fs.StringVar(&cfg.TokenFile, "token-file", "", "Path to the control token file (default: ~/.wakesentry/control.token)")
	fs.StringVar(&cfg.LogLevel, "log-level", "", "Log level: debug, info, warn, error (default: info)")
	fs.BoolVar(&cfg.RequireAuth, "require-auth", false, "Require the control token for mutations (default: true)")
	fs.BoolVar(&cfg.Activate, "activate", false, "Start a keep-awake session immediately")
	fs.BoolVar(&cfg.DeactivateOnBattery, "deactivate-on-battery", false, "Cancel the session when the host switches to battery")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: wakesentry start [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	// Track which flags were explicitly set so config-file booleans are only
	// applied when the flag was not given on the command line.
	explicitFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		explicitFlags[f.Name] = true
	})

	fileCfg, err := config.Load(cfg.Config)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if cfg.Addr == "" {
		cfg.Addr = fileCfg.Addr
	}
	if cfg.Store == "" {
		cfg.Store = fileCfg.Store
	}
	if cfg.TokenFile == "" {
		cfg.TokenFile = fileCfg.TokenFile
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = fileCfg.LogLevel
	}
	if !explicitFlags["require-auth"] {
		cfg.RequireAuth = fileCfg.RequireAuth
	}
	if !explicitFlags["activate"] {
		cfg.Activate = fileCfg.ActivateAtLaunch
	}
	if !explicitFlags["deactivate-on-battery"] {
		cfg.DeactivateOnBattery = fileCfg.DeactivateOnBattery
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Store), 0700); err != nil {
		fmt.Fprintf(stderr, "Error: cannot create store directory: %v\n", err)
		return 1
	}
	store, err := storage.NewSQLiteStore(cfg.Store)
	if err != nil {
		fmt.Fprintf(stderr, "Error: cannot open store %s: %v\n", cfg.Store, err)
		return 1
	}
	defer store.Close()

	// Fail fast if the audit table is not writable; a read-only store would
	// otherwise surface as silent audit loss at the first mutation.
	if err := probeAuditWrite(store); err != nil {
		fmt.Fprintf(stderr, "Error: store is not writable: %v\n", err)
		return 1
	}

	tokenMgr := auth.NewControlTokenManager(cfg.TokenFile, store)
	if _, err := tokenMgr.EnsureToken(); err != nil {
		fmt.Fprintf(stderr, "Error: cannot prepare control token: %v\n", err)
		return 1
	}

	// The persisted preference wins over the config file value: "wakesentry
	// default" updates the store, not the file.
	defaultIV := fileCfg.DefaultInterval()
	if secs, ok, err := store.GetDefaultIntervalSecs(); err != nil {
		log.Printf("start: cannot read default interval preference: %v", err)
	} else if ok {
		if iv, err := interval.FromSeconds(secs); err != nil {
			log.Printf("start: ignoring invalid stored default interval %d", secs)
		} else {
			defaultIV = iv
		}
	}

	supervisor := keepawake.NewSupervisor(newAsserter(), keepawake.Options{
		DefaultInterval: defaultIV,
	})

	provider := newPowerProvider()
	srv := server.NewServer(supervisor, server.Options{
		RequireAuth:  cfg.RequireAuth,
		Validator:    tokenMgr,
		Audit:        store,
		AuditMaxRows: fileCfg.AuditMaxRows,
		Prefs:        store,
		Power:        provider,
		Version:      Version,
	})

	listener, err := newListener(cfg.Addr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: cannot listen on %s: %v\n", cfg.Addr, err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DeactivateOnBattery {
		guard := keepawake.NewBatteryGuard(supervisor, provider,
			time.Duration(fileCfg.BatteryPollSecs)*time.Second)
		go guard.Run(ctx)
	}

	if cfg.Activate {
		requestID := uuid.NewString()
		if err := supervisor.Schedule(defaultIV, nil); err != nil {
			log.Printf("start: activate at launch failed: %v", err)
		} else {
			auditEntry(store, fileCfg.AuditMaxRows, &storage.WakeAuditEntry{
				Operation:    storage.AuditOpSchedule,
				RequestID:    requestID,
				Source:       "launch",
				IntervalSecs: defaultIV.Seconds(),
				At:           time.Now(),
			})
		}
	}

	httpServer := &http.Server{Handler: srv.Handler()}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(listener)
	}()

	fmt.Fprintf(stdout, "wakesentry %s listening on %s\n", Version, listener.Addr())
	log.Printf("start: default interval is %s", defaultIV)

	select {
	case sig := <-shutdownSignals():
		log.Printf("start: received %v, shutting down", sig)
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(stderr, "Error: server failed: %v\n", err)
			return 1
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	srv.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("start: http shutdown: %v", err)
	}

	// Tear down any live assertion before exiting so the host is never left
	// awake by a dead daemon.
	wasActive := supervisor.Active()
	if err := supervisor.Close(shutdownCtx); err != nil {
		log.Printf("start: supervisor close: %v", err)
	}
	if wasActive {
		auditEntry(store, fileCfg.AuditMaxRows, &storage.WakeAuditEntry{
			Operation: storage.AuditOpShutdown,
			RequestID: uuid.NewString(),
			Source:    "system",
			Detail:    "daemon stopping with active session",
			At:        time.Now(),
		})
	}

	fmt.Fprintln(stdout, "wakesentry stopped")
	return 0
}

func auditEntry(store *storage.SQLiteStore, maxRows int, entry *storage.WakeAuditEntry) {
	if err := store.SaveAndPruneWakeAudit(entry, maxRows); err != nil {
		log.Printf("start: failed to write audit record: %v", err)
	}
}
