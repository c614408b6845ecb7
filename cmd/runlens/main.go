// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command runlens exports CI job telemetry.
//
// RunLens runs as the last step of a GitHub Actions job. It reads the
// run's job list back from the workflow-run API, works out which job it is
// executing inside of (matrix legs included), fills in the status the API
// has not recorded yet, and emits the result as OpenTelemetry metrics and
// traces before the job finishes.
//
// Usage, as a workflow step:
//
//	- name: Export job telemetry
//	  if: always()
//	  run: runlens
//	  env:
//	    GITHUB_TOKEN: ${{ secrets.GITHUB_TOKEN }}
//	    RUNLENS_OTLP_ENDPOINT: otel-collector.internal:4317
//
// Local dry run against a finished workflow run:
//
//	GITHUB_TOKEN=... GITHUB_REPOSITORY=acme/widget GITHUB_RUN_ID=123 \
//	GITHUB_JOB=build runlens --trace-exporter stdout --metric-exporter stdout
//
// By default RunLens fails open: a telemetry backend outage is logged but
// never breaks the build. Pass --fail-open=false to propagate sink errors
// to the exit code.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/runlens/pkg/logging"
	"github.com/AleutianAI/runlens/services/exporter"
	"github.com/AleutianAI/runlens/services/exporter/github"
	"github.com/AleutianAI/runlens/services/exporter/telemetry"
)

const tracerName = "github.com/AleutianAI/runlens"

var rootCmd = &cobra.Command{
	Use:   "runlens",
	Short: "Export CI job telemetry to an OpenTelemetry backend",
	Long: `RunLens reconstructs the timeline of the CI job it runs inside of
from the workflow-run API and emits it as metrics and traces.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	flags := rootCmd.Flags()
	flags.String("log-level", "info", "Minimum log level (debug, info, warn, error)")
	flags.String("metric-prefix", "runlens", "Instrument name prefix")
	flags.String("trace-exporter", "otlp", "Trace exporter: otlp, stdout, or none")
	flags.String("metric-exporter", "otlp", "Metric exporter: otlp, stdout, or none")
	flags.String("otlp-endpoint", "localhost:4317", "OTLP gRPC endpoint for both signals")
	flags.Bool("otlp-insecure", true, "Disable TLS for OTLP connections")
	flags.Bool("fail-open", true, "Swallow sink failures instead of failing the job")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	// Local development convenience; the runner environment has no .env.
	_ = godotenv.Load()

	v := exporter.NewViper()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}
	cfg := exporter.LoadConfig(v)
	inv := exporter.LoadInvocation(v)

	logger := logging.New(logging.Config{Level: cfg.LogLevel})
	logger = logger.With("invocation_id", inv.InvocationID)

	ctx := context.Background()
	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "runlens",
		ServiceVersion: version,
		TraceExporter:  cfg.TraceExporter,
		MetricExporter: cfg.MetricExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		OTLPInsecure:   cfg.OTLPInsecure,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	metrics, err := telemetry.NewMetrics(otel.Meter(tracerName), cfg.MetricPrefix)
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	var clientOpts []github.Option
	if cfg.APIBaseURL != "" {
		clientOpts = append(clientOpts, github.WithBaseURL(cfg.APIBaseURL))
	}

	pipeline := &exporter.Pipeline{
		Source:  github.NewClient(cfg.Token, clientOpts...),
		Metrics: metrics,
		Tracer:  otel.Tracer(tracerName),
		Logger:  logger,
	}

	_, runErr := pipeline.Run(ctx, inv)

	// Flush regardless of the pipeline outcome: anything already recorded
	// against the SDK should still reach the backend.
	flushErr := shutdown(ctx)

	err = runErr
	if err == nil && flushErr != nil {
		err = fmt.Errorf("flush telemetry: %w", flushErr)
	}
	if err != nil {
		if cfg.FailOpen {
			logger.Error("export failed, failing open", "error", err)
			return nil
		}
		return err
	}

	logger.Info("export complete")
	return nil
}
