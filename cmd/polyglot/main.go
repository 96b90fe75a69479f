package main

import (
	"fmt"
	"os"
	"strings"
)

// Version is set at build time via ldflags
var Version = "dev"

const (
	daemonAddr = "http://127.0.0.1:7632"
	pidFile    = "polyglotd.pid"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "start":
		err = cmdStart()
	case "stop":
		err = cmdStop()
	case "status":
		err = cmdStatus()
	case "logs":
		err = cmdLogs()
	case "config":
		err = cmdConfig()
	case "onboarding":
		err = cmdOnboarding(os.Args[2:])
	case "path":
		err = cmdPath(os.Args[2:])
	case "reset":
		err = cmdReset()
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Printf("polyglot %s\n", Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Polyglot - Language Learning Companion

Usage:
  polyglot <command> [arguments]

Daemon Commands:
  start           Start the Polyglot daemon
  stop            Stop the Polyglot daemon
  status          Show daemon status
  logs            View daemon logs
  config          Show current configuration

Learning Commands:
  onboarding          Show onboarding progress
  onboarding start    Begin the placement assessment
  onboarding languages <native> <target>
                      Choose your language pair (e.g. en de)
  path                Show your learning path
  path next           Show currently unlocked exercises
  reset               Restart onboarding from scratch

Other:
  help            Show this help message
  version         Show version information

Examples:
  polyglot start                     # Start daemon
  polyglot onboarding languages en de
  polyglot onboarding                # Check assessment progress
  polyglot path                      # See skills and unlocked exercises`)
}

// renderProgressBar creates a visual progress bar
func renderProgressBar(value float64, width int) string {
	filled := int(value * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	empty := width - filled

	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", empty) + "]"
}
