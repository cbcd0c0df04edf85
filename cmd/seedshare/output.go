package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"seedshare/internal/format"
)

var outputFormatter format.Formatter = format.JSONFormatter{}

func writeJSON(payload any) error {
	return outputFormatter.Write(os.Stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// formatExpiry renders an absolute time with a relative hint, e.g.
// "2026-03-02T12:00:00Z (23 hours from now)".
func formatExpiry(t, now time.Time) string {
	return fmt.Sprintf("%s (%s)", formatTime(t), humanize.RelTime(t, now, "ago", "from now"))
}

func formatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}
