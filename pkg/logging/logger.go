// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for RunLens.
//
// The exporter runs as a step inside a CI job, so logs go to stderr by
// default (stdout stays clean for the stdout telemetry exporters) and the
// logger is a plain *slog.Logger: pipeline code takes it as an explicit
// parameter, never reaches for a global, and tests capture output with
// NewCapture.
//
// # Basic Usage
//
//	logger := logging.New(logging.Config{Level: "debug"})
//	logger.Info("record collected", "job", jobName)
//
// # Log Levels
//
// Four levels, matching slog conventions:
//
//   - debug: development troubleshooting, verbose output
//   - info: normal operation (record collected, emission done)
//   - warn: recoverable issues (ambiguous job resolution, missing metadata)
//   - error: operation failures (the process usually exits right after)
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Config configures logger construction. The zero value writes Info+
// text-format messages to stderr.
type Config struct {
	// Level is the minimum level: "debug", "info", "warn", or "error".
	// Unrecognized values fall back to "info".
	Level string

	// JSON switches output to machine-parseable JSON objects.
	JSON bool

	// Quiet discards all output. Used when the surrounding job captures
	// stderr for its own purposes.
	Quiet bool

	// Writer overrides the destination. Nil means stderr.
	Writer io.Writer
}

// New creates a logger from the configuration.
func New(cfg Config) *slog.Logger {
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	if cfg.Quiet {
		w = io.Discard
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Default returns an Info-level text logger on stderr.
func Default() *slog.Logger {
	return New(Config{})
}

// ParseLevel maps a level name to its slog.Level, defaulting to Info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// CapturedRecord is one log record collected by a capture logger.
type CapturedRecord struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// Capture collects records for test assertions.
type Capture struct {
	mu      sync.Mutex
	records []CapturedRecord
}

// Records returns a copy of the collected records.
func (c *Capture) Records() []CapturedRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CapturedRecord, len(c.records))
	copy(out, c.records)
	return out
}

// Messages returns the collected messages in order.
func (c *Capture) Messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.records))
	for _, r := range c.records {
		out = append(out, r.Message)
	}
	return out
}

// NewCapture returns a logger that records everything it is given, and
// the capture to assert against.
func NewCapture() (*slog.Logger, *Capture) {
	c := &Capture{}
	return slog.New(&captureHandler{capture: c}), c
}

type captureHandler struct {
	capture *Capture
	attrs   []slog.Attr
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	rec := CapturedRecord{
		Level:   r.Level,
		Message: r.Message,
		Attrs:   make(map[string]any),
	}
	for _, a := range h.attrs {
		rec.Attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		rec.Attrs[a.Key] = a.Value.Any()
		return true
	})
	h.capture.mu.Lock()
	h.capture.records = append(h.capture.records, rec)
	h.capture.mu.Unlock()
	return nil
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &captureHandler{capture: h.capture, attrs: append(h.attrs[:len(h.attrs):len(h.attrs)], attrs...)}
}

func (h *captureHandler) WithGroup(string) slog.Handler { return h }
