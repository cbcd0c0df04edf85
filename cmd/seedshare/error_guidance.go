package main

import (
	"context"
	"errors"
	"fmt"
	"net"

	"seedshare/internal/api"
)

// Numeric codes from the server's error body that get a dedicated hint.
const (
	errCodeOversized    = 1010
	errCodeSeedNotFound = 2001
	errCodeBlobMissing  = 2002
	errCodeNotAFile     = 2003
)

var codeHints = map[string]string{
	"unauthorized":      "hint: set SEEDSHARE_ADMIN_TOKEN to the server's admin token.",
	"already_exists":    "hint: seed codes are unique; pick another --seed.",
	"request_too_large": "hint: the upload exceeds the server's size limit.",
}

var numericHints = map[int]string{
	errCodeOversized:    "hint: the upload exceeds the server's size limit.",
	errCodeSeedNotFound: "hint: seeds expire after their retention period; ask the sender to upload again.",
	errCodeBlobMissing:  "hint: the record exists but its file is gone; ask the sender to upload again.",
	errCodeNotAFile:     "hint: this seed holds text; use `seedshare resolve` or `seedshare view` instead.",
}

// formatCLIError renders err plus any guidance lines for stderr.
func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}
	lines := []string{err.Error()}

	var apiErr *api.APIError
	switch {
	case errors.As(err, &apiErr):
		lines = append(lines, apiErrorHints(apiErr)...)
	case errors.Is(err, context.DeadlineExceeded):
		lines = append(lines, "hint: request timed out; check server health or increase SEEDSHARE_HTTP_TIMEOUT.")
	default:
		var netErr net.Error
		if errors.As(err, &netErr) {
			lines = append(lines,
				"hint: ensure a seedshare server is running at SEEDSHARE_API_URL.",
				"hint: start a local server with: seedshare srv",
			)
		}
	}
	return uniqueLines(lines)
}

func apiErrorHints(apiErr *api.APIError) []string {
	var hints []string
	if apiErr.Code == "" {
		hints = append(hints, "hint: verify SEEDSHARE_API_URL points to a seedshare server.")
	}
	if apiErr.Code == "resource_exhausted" {
		if apiErr.RetryAfter > 0 {
			hints = append(hints, fmt.Sprintf("hint: rate limited; retry in %s.", apiErr.RetryAfter))
		} else {
			hints = append(hints, "hint: rate limited; retry shortly.")
		}
	}
	if hint, ok := codeHints[apiErr.Code]; ok {
		hints = append(hints, hint)
	}
	if hint, ok := numericHints[apiErr.ErrorCode]; ok {
		hints = append(hints, hint)
	}
	if apiErr.Status >= 500 {
		hints = append(hints, "hint: server returned an internal error; check server logs for details.")
	}
	return hints
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line]; ok || line == "" {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
