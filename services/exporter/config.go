// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package exporter

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/AleutianAI/runlens/services/exporter/model"
)

// Config is the exporter's own configuration, as opposed to the
// runner-provided InvocationContext. Options are read from RUNLENS_*
// environment variables (and CLI flags bound on top by the command).
type Config struct {
	// Token authenticates against the workflow-run API.
	Token string

	// APIBaseURL overrides the API endpoint (GitHub Enterprise Server).
	// Empty means the public endpoint.
	APIBaseURL string

	// MetricPrefix is the instrument name prefix.
	MetricPrefix string

	// TraceExporter / MetricExporter select "otlp", "stdout", or "none".
	TraceExporter  string
	MetricExporter string

	// OTLPEndpoint is the OTLP receiver for both signals.
	OTLPEndpoint string

	// OTLPInsecure disables TLS for OTLP connections.
	OTLPInsecure bool

	// FailOpen makes sink failures non-fatal to the surrounding job: they
	// are logged and swallowed instead of propagated to the exit code.
	FailOpen bool

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string
}

// NewViper returns a viper instance with the exporter's env bindings:
// RUNLENS_* for options, plus the GITHUB_*/RUNNER_* variables the runner
// injects into every job.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("RUNLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("metric-prefix", "runlens")
	v.SetDefault("trace-exporter", "otlp")
	v.SetDefault("metric-exporter", "otlp")
	v.SetDefault("otlp-endpoint", "localhost:4317")
	v.SetDefault("otlp-insecure", true)
	v.SetDefault("fail-open", true)
	v.SetDefault("log-level", "info")

	// Runner-injected variables keep their canonical names.
	for key, env := range map[string]string{
		"github.token":        "GITHUB_TOKEN",
		"github.api-url":      "GITHUB_API_URL",
		"github.workflow":     "GITHUB_WORKFLOW",
		"github.workflow-ref": "GITHUB_WORKFLOW_REF",
		"github.job":          "GITHUB_JOB",
		"github.run-id":       "GITHUB_RUN_ID",
		"github.run-number":   "GITHUB_RUN_NUMBER",
		"github.run-attempt":  "GITHUB_RUN_ATTEMPT",
		"github.repository":   "GITHUB_REPOSITORY",
		"github.sha":          "GITHUB_SHA",
		"github.ref":          "GITHUB_REF",
		"github.ref-name":     "GITHUB_REF_NAME",
		"github.base-ref":     "GITHUB_BASE_REF",
		"github.head-ref":     "GITHUB_HEAD_REF",
		"github.event-name":   "GITHUB_EVENT_NAME",
		"github.event-path":   "GITHUB_EVENT_PATH",
		"github.actor":        "GITHUB_ACTOR",
		"runner.name":         "RUNNER_NAME",
		"runner.os":           "RUNNER_OS",
		"runner.arch":         "RUNNER_ARCH",
		"runner.labels":       "RUNNER_LABELS",
	} {
		_ = v.BindEnv(key, env)
	}
	return v
}

// LoadConfig reads the exporter options from the bound viper instance.
func LoadConfig(v *viper.Viper) Config {
	return Config{
		Token:          v.GetString("github.token"),
		APIBaseURL:     v.GetString("github.api-url"),
		MetricPrefix:   v.GetString("metric-prefix"),
		TraceExporter:  v.GetString("trace-exporter"),
		MetricExporter: v.GetString("metric-exporter"),
		OTLPEndpoint:   v.GetString("otlp-endpoint"),
		OTLPInsecure:   v.GetBool("otlp-insecure"),
		FailOpen:       v.GetBool("fail-open"),
		LogLevel:       v.GetString("log-level"),
	}
}

// LoadInvocation builds the InvocationContext once at the process
// boundary. Nothing downstream reads the environment again.
func LoadInvocation(v *viper.Viper) model.InvocationContext {
	inv := model.InvocationContext{
		Workflow:     v.GetString("github.workflow"),
		WorkflowRef:  v.GetString("github.workflow-ref"),
		JobName:      v.GetString("github.job"),
		RunnerName:   v.GetString("runner.name"),
		RunID:        v.GetInt64("github.run-id"),
		RunNumber:    v.GetInt("github.run-number"),
		RunAttempt:   v.GetInt("github.run-attempt"),
		Repository:   v.GetString("github.repository"),
		SHA:          v.GetString("github.sha"),
		Ref:          v.GetString("github.ref"),
		RefName:      v.GetString("github.ref-name"),
		BaseRef:      v.GetString("github.base-ref"),
		HeadRef:      v.GetString("github.head-ref"),
		EventName:    v.GetString("github.event-name"),
		Actor:        v.GetString("github.actor"),
		InvocationID: uuid.NewString(),
	}
	if labels := v.GetString("runner.labels"); labels != "" {
		for _, l := range strings.Split(labels, ",") {
			if l = strings.TrimSpace(l); l != "" {
				inv.RunnerLabels = append(inv.RunnerLabels, l)
			}
		}
	}
	inv.PRNumber = eventPRNumber(v.GetString("github.event-path"))
	return inv
}

// eventPRNumber extracts the pull request number from the event payload
// file, when the triggering event carries one. Any read or parse failure
// simply yields nil; the record builder has a ref-based fallback.
func eventPRNumber(path string) *int {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var payload struct {
		PullRequest *struct {
			Number int `json:"number"`
		} `json:"pull_request"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.PullRequest == nil {
		return nil
	}
	n := payload.PullRequest.Number
	return &n
}
