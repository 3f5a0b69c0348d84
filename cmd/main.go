package main

import (
	"fmt"
	"io"
	"os"
)

// Version is set at build time via -ldflags.
// Example: go build -ldflags="-X main.Version=v0.1.0" ./cmd
var Version = "dev"

const usage = `wakesentry - keep-awake supervisor for unattended hosts

Usage:
  wakesentry <command> [options]

Commands:
  start     Start the host daemon
  on        Keep the host awake (--for <duration>, default: configured interval)
  off       Let the host sleep again
  default   Set the default keep-awake interval
  status    Show the current keep-awake state
  audit     Show recent keep-awake activity
  init      Write a default config file

Run 'wakesentry <command> --help' for more information on a command.
`

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		fmt.Fprint(stdout, usage)
		return 0
	}

	switch args[1] {
	case "start":
		return runStart(args[2:], stdout, stderr)
	case "on":
		return runOn(args[2:], stdout, stderr)
	case "off":
		return runOff(args[2:], stdout, stderr)
	case "default":
		return runDefault(args[2:], stdout, stderr)
	case "status":
		return runStatus(args[2:], stdout, stderr)
	case "audit":
		return runAudit(args[2:], stdout, stderr)
	case "init":
		return runInit(args[2:], stdout, stderr)
	case "--help", "-h", "help":
		fmt.Fprint(stdout, usage)
		return 0
	case "--version", "-v", "version":
		fmt.Fprintf(stdout, "wakesentry %s\n", Version)
		return 0
	default:
		fmt.Fprintf(stdout, "Unknown command: %s\n", args[1])
		fmt.Fprint(stdout, usage)
		return 1
	}
}
