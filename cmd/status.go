// This file implements "wakesentry status".
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"
)

type jsonStatusSuccess struct {
	OK             bool   `json:"ok"`
	Command        string `json:"command"`
	Target         string `json:"target"`
	Active         bool   `json:"active"`
	IntervalSecs   int    `json:"interval_secs"`
	IntervalLabel  string `json:"interval_label"`
	Deadline       string `json:"deadline,omitempty"`
	RemainingSecs  *int64 `json:"remaining_secs,omitempty"`
	StatusRevision int64  `json:"status_revision"`
	LastError      string `json:"last_error,omitempty"`
	Version        string `json:"version,omitempty"`
}

type jsonStatusFailure struct {
	OK      bool   `json:"ok"`
	Command string `json:"command"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Target  string `json:"target,omitempty"`
}

// runStatus handles "wakesentry status".
func runStatus(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var configPath, addr string
	var jsonOutput bool
	fs.StringVar(&configPath, "config", "", "Path to config file (default: ~/.wakesentry/config.toml)")
	fs.StringVar(&addr, "addr", "", "Daemon address (default: from config)")
	fs.BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: wakesentry status [options]\n\nShow the current keep-awake state.\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	if len(fs.Args()) != 0 {
		msg := fmt.Sprintf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
		if jsonOutput {
			writeIndentedJSON(stdout, jsonStatusFailure{OK: false, Command: "status", Kind: errKindInvalidArgs, Message: msg})
		} else {
			fmt.Fprintf(stderr, "Error: %s\n", msg)
		}
		return 1
	}

	target, _ := clientTarget(configPath, addr, stderr)

	status, statusErr := queryStatus(target)
	if status == nil {
		if jsonOutput {
			writeIndentedJSON(stdout, jsonStatusFailure{
				OK:      false,
				Command: "status",
				Kind:    statusErr.Kind,
				Message: statusErr.Message,
				Target:  statusErr.Target,
			})
		} else {
			fmt.Fprintf(stderr, "Error: %s\n", statusErr.Message)
			if statusErr.Kind == errKindUnreachable {
				fmt.Fprintf(stderr, "  Hint: Is the daemon running? Try 'wakesentry start'\n")
			}
		}
		return 1
	}

	if jsonOutput {
		out := jsonStatusSuccess{
			OK:             true,
			Command:        "status",
			Target:         target,
			Active:         status.Active,
			IntervalSecs:   status.IntervalSecs,
			IntervalLabel:  status.IntervalLabel,
			RemainingSecs:  status.RemainingSecs,
			StatusRevision: status.Revision,
			LastError:      status.LastError,
			Version:        status.Version,
		}
		if status.Deadline != nil {
			out.Deadline = status.Deadline.Format(time.RFC3339)
		}
		writeIndentedJSON(stdout, out)
		return 0
	}

	state := "sleeping normally"
	if status.Active {
		state = "staying awake"
	}
	fmt.Fprintf(stdout, "Host at %s is %s\n", target, state)
	fmt.Fprintf(stdout, "  Interval: %s\n", status.IntervalLabel)
	if status.Deadline != nil {
		fmt.Fprintf(stdout, "  Until:    %s\n", status.Deadline.Local().Format(time.RFC1123))
	}
	if status.RemainingSecs != nil {
		fmt.Fprintf(stdout, "  Remaining: %s\n", (time.Duration(*status.RemainingSecs) * time.Second))
	}
	if status.Power != nil && status.Power.OnBattery != nil {
		power := "external power"
		if *status.Power.OnBattery {
			power = "battery"
			if status.Power.BatteryPercent != nil {
				power = fmt.Sprintf("battery (%d%%)", *status.Power.BatteryPercent)
			}
		}
		fmt.Fprintf(stdout, "  Power:    %s\n", power)
	}
	if status.LastError != "" {
		fmt.Fprintf(stdout, "  Last error: %s\n", status.LastError)
	}
	return 0
}
