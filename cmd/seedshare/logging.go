package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"seedshare/internal/config"
)

// logSettings is what the CLI flags contribute to logger setup.
type logSettings struct {
	level  string
	format string
}

// configureLoggerForCLI installs the default logger. The --log-level flag wins
// over the configured level, which already includes SEEDSHARE_LOG_LEVEL. An
// invalid configured level only produces a warning.
func configureLoggerForCLI(flags logSettings, configLevel string) (string, error) {
	handler, err := newLogHandlerFactory(flags.format)
	if err != nil {
		return "", err
	}

	rawLevel, source := selectedLogLevel(flags.level, configLevel)
	level, err := parseLogLevel(rawLevel)
	if err == nil {
		slog.SetDefault(slog.New(handler(os.Stderr, level)))
		return "", nil
	}

	if source == "flag" {
		return "", fmt.Errorf("invalid --log-level %q", flags.level)
	}
	fallback, _ := parseLogLevel("")
	slog.SetDefault(slog.New(handler(os.Stderr, fallback)))
	return fmt.Sprintf("warning: invalid log_level=%q; defaulting to %s", configLevel, config.DefaultLogLevel), nil
}

func selectedLogLevel(flagLevel, configLevel string) (string, string) {
	switch {
	case strings.TrimSpace(flagLevel) != "":
		return flagLevel, "flag"
	case strings.TrimSpace(configLevel) != "":
		return configLevel, "config"
	default:
		return "", "default"
	}
}

func parseLogLevel(raw string) (slog.Level, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "":
		value = config.DefaultLogLevel
	case "warning":
		value = "warn"
	}
	if numeric, err := strconv.Atoi(value); err == nil {
		return slog.Level(numeric), nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelDebug, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}

type logHandlerFactory func(w io.Writer, level slog.Level) slog.Handler

// newLogHandlerFactory picks the slog handler for --log-format.
func newLogHandlerFactory(format string) (logHandlerFactory, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return func(w io.Writer, level slog.Level) slog.Handler {
			return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
		}, nil
	case "json":
		return func(w io.Writer, level slog.Level) slog.Handler {
			return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
		}, nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q (want text or json)", format)
	}
}
