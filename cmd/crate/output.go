package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiBlue   = "\033[34m"
)

// writeJSON encodes v as indented JSON to w.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func stateColor(state string) string {
	switch state {
	case "matched_track", "matched_release":
		return ansiGreen
	case "retry_scheduled", "pending":
		return ansiYellow
	case "error":
		return ansiRed
	case "unresolved":
		return ansiBlue
	default:
		return ""
	}
}

func colorize(cmd *cobra.Command, value, color string) string {
	if color == "" || !shouldColorize(cmd.OutOrStdout()) {
		return value
	}
	return color + value + ansiReset
}
