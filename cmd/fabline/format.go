package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiDim    = "\x1b[2m"
)

var titleCaser = cases.Title(language.English)

// humanizeStatus renders a step status for table output, e.g.
// "in_progress" becomes "In Progress".
func humanizeStatus(status string) string {
	return titleCaser.String(strings.ReplaceAll(status, "_", " "))
}

// stepStateCell renders the status column for one step, with lock and skip
// markers, colorized when stdout is a terminal.
func stepStateCell(status string, locked, skipped bool) string {
	label := humanizeStatus(status)
	switch {
	case skipped:
		label = "Skipped"
	case locked:
		label += " (locked)"
	}
	if !colorizeOutput() {
		return label
	}
	switch {
	case skipped || locked:
		return ansiDim + label + ansiReset
	case status == "complete":
		return ansiGreen + label + ansiReset
	case status == "issue":
		return ansiRed + label + ansiReset
	case status == "in_progress":
		return ansiYellow + label + ansiReset
	default:
		return label
	}
}

func colorizeOutput() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func formatPercent(percent int) string {
	return fmt.Sprintf("%d%%", percent)
}
