// This file implements the on/off/default commands that drive the keep-awake
// supervisor in a running daemon.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wakesentry/host/internal/interval"
	"github.com/wakesentry/host/internal/server"
)

// Locked JSON output types for mutation commands.

type jsonMutationSuccess struct {
	OK             bool   `json:"ok"`
	Command        string `json:"command"`
	Target         string `json:"target"`
	RequestID      string `json:"request_id"`
	Active         bool   `json:"active"`
	IntervalSecs   int    `json:"interval_secs"`
	Deadline       string `json:"deadline,omitempty"`
	StatusRevision int64  `json:"status_revision"`
}

type jsonMutationFailure struct {
	OK         bool   `json:"ok"`
	Command    string `json:"command"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	Target     string `json:"target,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	ErrorCode  string `json:"error_code,omitempty"`
	StatusCode *int   `json:"status_code,omitempty"`
}

var generateRequestID = func() string {
	return uuid.NewString()
}

// parseIntervalArg turns a --for value into a catalog interval. Accepts a Go
// duration ("30m", "1h") or a bare seconds count; empty means indefinite.
func parseIntervalArg(value string) (interval.Interval, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "forever" {
		return interval.Indefinite, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return interval.FromSeconds(secs)
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return interval.Indefinite, fmt.Errorf("invalid duration %q", value)
	}
	return interval.FromSeconds(int(d / time.Second))
}

// runOn handles "wakesentry on".
func runOn(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("on", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var configPath, addr, forValue string
	var jsonOutput bool
	fs.StringVar(&configPath, "config", "", "Path to config file (default: ~/.wakesentry/config.toml)")
	fs.StringVar(&addr, "addr", "", "Daemon address (default: from config)")
	fs.StringVar(&forValue, "for", "", "How long to stay awake: 5m, 30m, 1h, ... (default: configured interval)")
	fs.BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: wakesentry on [options]\n\nKeep the host awake.\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if len(fs.Args()) != 0 {
		return mutationArgsError("on", fs.Args(), jsonOutput, stdout, stderr)
	}

	target, tokenPath := clientTarget(configPath, addr, stderr)

	var iv interval.Interval
	if forValue == "" {
		// No --for: ask the daemon for its effective default. The persisted
		// preference set by "wakesentry default" lives in the daemon's store,
		// so the config file alone may be stale. When idle, /status reports
		// that default as interval_secs.
		if status, statusErr := queryStatus(target); statusErr.Kind == "" {
			if parsed, err := interval.FromSeconds(status.IntervalSecs); err == nil {
				iv = parsed
			}
		} else if cfg, err := loadClientConfig(configPath); err == nil {
			iv = cfg.DefaultInterval()
		}
	} else {
		var err error
		iv, err = parseIntervalArg(forValue)
		if err != nil {
			return mutationFailure("on", jsonMutationFailure{
				OK:      false,
				Command: "on",
				Kind:    errKindInvalidArgs,
				Message: err.Error(),
			}, jsonOutput, stdout, stderr)
		}
		if !iv.Valid() {
			// Off-catalog duration: fall back to indefinite rather than
			// refusing to keep the host awake.
			fmt.Fprintf(stderr, "Warning: %s is not a supported interval, staying awake indefinitely\n", forValue)
			iv = interval.Indefinite
		}
	}

	requestID := generateRequestID()
	token, err := readControlToken(tokenPath)
	if err != nil {
		return mutationFailure("on", jsonMutationFailure{
			OK:        false,
			Command:   "on",
			Kind:      errKindAuth,
			Message:   fmt.Sprintf("cannot read control token: %v\n  Run 'wakesentry start' to generate the token", err),
			RequestID: requestID,
		}, jsonOutput, stdout, stderr)
	}

	result := postMutation(target, "/api/wake/schedule", token, server.ScheduleRequest{
		RequestID:    requestID,
		IntervalSecs: iv.Seconds(),
	})
	return reportMutation("on", target, requestID, result, jsonOutput, stdout, stderr, func() {
		fmt.Fprintf(stdout, "Keeping host awake %s\n", iv)
		if result.Response.Deadline != nil {
			fmt.Fprintf(stdout, "  Until: %s\n", result.Response.Deadline.Local().Format(time.RFC1123))
		}
	})
}

// runOff handles "wakesentry off".
func runOff(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("off", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var configPath, addr string
	var jsonOutput bool
	fs.StringVar(&configPath, "config", "", "Path to config file (default: ~/.wakesentry/config.toml)")
	fs.StringVar(&addr, "addr", "", "Daemon address (default: from config)")
	fs.BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: wakesentry off [options]\n\nLet the host sleep again.\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if len(fs.Args()) != 0 {
		return mutationArgsError("off", fs.Args(), jsonOutput, stdout, stderr)
	}

	target, tokenPath := clientTarget(configPath, addr, stderr)
	requestID := generateRequestID()

	token, err := readControlToken(tokenPath)
	if err != nil {
		return mutationFailure("off", jsonMutationFailure{
			OK:        false,
			Command:   "off",
			Kind:      errKindAuth,
			Message:   fmt.Sprintf("cannot read control token: %v\n  Run 'wakesentry start' to generate the token", err),
			RequestID: requestID,
		}, jsonOutput, stdout, stderr)
	}

	result := postMutation(target, "/api/wake/cancel", token, server.CancelRequest{RequestID: requestID})
	return reportMutation("off", target, requestID, result, jsonOutput, stdout, stderr, func() {
		fmt.Fprintf(stdout, "Host may sleep again\n")
	})
}

// runDefault handles "wakesentry default".
func runDefault(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("default", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var configPath, addr string
	var jsonOutput bool
	fs.StringVar(&configPath, "config", "", "Path to config file (default: ~/.wakesentry/config.toml)")
	fs.StringVar(&addr, "addr", "", "Daemon address (default: from config)")
	fs.BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: wakesentry default <duration>\n\nSet the default keep-awake interval (5m, 10m, 15m, 30m, 1h, 2h, 5h, forever).\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if len(fs.Args()) != 1 {
		return mutationFailure("default", jsonMutationFailure{
			OK:      false,
			Command: "default",
			Kind:    errKindInvalidArgs,
			Message: "expected exactly one duration argument",
		}, jsonOutput, stdout, stderr)
	}

	iv, err := parseIntervalArg(fs.Args()[0])
	if err != nil || !iv.Valid() {
		return mutationFailure("default", jsonMutationFailure{
			OK:      false,
			Command: "default",
			Kind:    errKindInvalidArgs,
			Message: fmt.Sprintf("%q is not a supported interval", fs.Args()[0]),
		}, jsonOutput, stdout, stderr)
	}

	target, tokenPath := clientTarget(configPath, addr, stderr)
	requestID := generateRequestID()

	token, err := readControlToken(tokenPath)
	if err != nil {
		return mutationFailure("default", jsonMutationFailure{
			OK:        false,
			Command:   "default",
			Kind:      errKindAuth,
			Message:   fmt.Sprintf("cannot read control token: %v\n  Run 'wakesentry start' to generate the token", err),
			RequestID: requestID,
		}, jsonOutput, stdout, stderr)
	}

	result := postMutation(target, "/api/wake/default", token, server.DefaultRequest{
		RequestID:    requestID,
		IntervalSecs: iv.Seconds(),
	})
	return reportMutation("default", target, requestID, result, jsonOutput, stdout, stderr, func() {
		fmt.Fprintf(stdout, "Default interval set: %s\n", iv)
	})
}

func mutationArgsError(command string, extra []string, jsonOutput bool, stdout, stderr io.Writer) int {
	return mutationFailure(command, jsonMutationFailure{
		OK:      false,
		Command: command,
		Kind:    errKindInvalidArgs,
		Message: fmt.Sprintf("unexpected arguments: %s", strings.Join(extra, " ")),
	}, jsonOutput, stdout, stderr)
}

func mutationFailure(command string, failure jsonMutationFailure, jsonOutput bool, stdout, stderr io.Writer) int {
	if jsonOutput {
		writeIndentedJSON(stdout, failure)
	} else {
		fmt.Fprintf(stderr, "Error: %s\n", failure.Message)
	}
	return 1
}

// reportMutation renders the outcome of a daemon mutation call. onSuccess
// prints the human-readable success lines.
func reportMutation(command, target, requestID string, result mutationResult, jsonOutput bool, stdout, stderr io.Writer, onSuccess func()) int {
	if result.OK {
		if jsonOutput {
			out := jsonMutationSuccess{
				OK:             true,
				Command:        command,
				Target:         result.Target,
				RequestID:      result.Response.RequestID,
				Active:         result.Response.Active,
				IntervalSecs:   result.Response.IntervalSecs,
				StatusRevision: result.Response.StatusRevision,
			}
			if result.Response.Deadline != nil {
				out.Deadline = result.Response.Deadline.Format(time.RFC3339)
			}
			writeIndentedJSON(stdout, out)
		} else {
			onSuccess()
		}
		return 0
	}

	if jsonOutput {
		out := jsonMutationFailure{
			OK:        false,
			Command:   command,
			Kind:      result.Kind,
			Message:   result.Message,
			Target:    result.Target,
			RequestID: requestID,
			ErrorCode: result.ErrorCode,
		}
		if result.StatusCode != 0 {
			sc := result.StatusCode
			out.StatusCode = &sc
		}
		writeIndentedJSON(stdout, out)
	} else {
		fmt.Fprintf(stderr, "Error: %s\n", result.Message)
		if result.ErrorCode != "" {
			fmt.Fprintf(stderr, "  Error code: %s\n", result.ErrorCode)
		}
		if result.Kind == errKindUnreachable {
			fmt.Fprintf(stderr, "  Hint: Is the daemon running? Try 'wakesentry start'\n")
		}
		if result.Kind == errKindTimeout {
			fmt.Fprintf(stderr, "  Hint: The daemon did not respond in time.\n")
		}
	}
	return 1
}
