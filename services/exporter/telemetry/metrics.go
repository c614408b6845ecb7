// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/AleutianAI/runlens/services/exporter/collector"
	"github.com/AleutianAI/runlens/services/exporter/pricing"
)

// Metrics contains the pre-registered instruments of the exporter.
//
// Instrument names follow "<prefix>.<job|step|repo|artifact>.<suffix>".
// Creating the same named instrument twice through the same meter returns
// the same instrument, so NewMetrics is idempotent per meter.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// JobDuration records the invoking job's duration in milliseconds.
	JobDuration metric.Int64Histogram

	// JobsTotal counts exported jobs by conclusion.
	JobsTotal metric.Int64Counter

	// StepDuration records step durations in milliseconds.
	StepDuration metric.Int64Histogram

	// RepoSize reports the repository size in kilobytes.
	RepoSize metric.Int64Gauge

	// EstimatedCost records the estimated job cost in USD.
	EstimatedCost metric.Float64Histogram

	// ArtifactSize records per-artifact sizes in bytes.
	ArtifactSize metric.Int64Histogram
}

// NewMetrics registers all instruments with the provided meter.
//
// Inputs:
//
//	meter - The OTel meter to register instruments on.
//	prefix - Instrument name prefix (e.g. "runlens").
//
// Outputs:
//
//	*Metrics - All instruments initialized.
//	error - Non-nil if any registration fails.
func NewMetrics(meter metric.Meter, prefix string) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.JobDuration, err = meter.Int64Histogram(
		prefix+".job.duration",
		metric.WithDescription("Duration of the invoking job"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create job.duration: %w", err)
	}

	m.JobsTotal, err = meter.Int64Counter(
		prefix+".job.total",
		metric.WithDescription("Jobs exported, by conclusion"),
		metric.WithUnit("{job}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create job.total: %w", err)
	}

	m.StepDuration, err = meter.Int64Histogram(
		prefix+".step.duration",
		metric.WithDescription("Duration of individual job steps"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create step.duration: %w", err)
	}

	m.RepoSize, err = meter.Int64Gauge(
		prefix+".repo.size",
		metric.WithDescription("Repository size"),
		metric.WithUnit("KiBy"),
	)
	if err != nil {
		return nil, fmt.Errorf("create repo.size: %w", err)
	}

	m.EstimatedCost, err = meter.Float64Histogram(
		prefix+".job.estimated_cost",
		metric.WithDescription("Estimated job cost for hosted runners"),
		metric.WithUnit("{USD}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create job.estimated_cost: %w", err)
	}

	m.ArtifactSize, err = meter.Int64Histogram(
		prefix+".artifact.size",
		metric.WithDescription("Size of individual run artifacts"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("create artifact.size: %w", err)
	}

	return m, nil
}

// Emit maps the record onto the instruments.
//
// Exactly one job-duration sample is recorded per invocation, even at
// zero. Step samples are recorded only for steps with a positive duration:
// a step that never ran (a pending matrix leg, a skipped post step) would
// otherwise pollute percentile calculations with synthetic zeros. The
// repository-size gauge and cost histogram are omitted entirely, not
// recorded as zero, when size or pricing is unavailable.
//
// The error return is reserved for sink-side failures; recording against
// the OTel SDK itself does not fail.
func (m *Metrics) Emit(ctx context.Context, rec *collector.MetricsRecord) error {
	base := metric.WithAttributes(BaseAttributes(rec)...)

	m.JobDuration.Record(ctx, rec.Job.DurationMs, base)
	m.JobsTotal.Add(ctx, 1, base)

	for _, s := range rec.Steps {
		if s.DurationMs <= 0 {
			continue
		}
		m.StepDuration.Record(ctx, s.DurationMs, base, metric.WithAttributes(
			attribute.String(AttrStepName, s.Name),
			attribute.Int(AttrStepNumber, s.Number),
		))
	}

	if rec.Repository.SizeKB != nil {
		m.RepoSize.Record(ctx, *rec.Repository.SizeKB, base)
	}

	if rec.Runner.OS != "" {
		duration := time.Duration(rec.Job.DurationMs) * time.Millisecond
		if cost, ok := pricing.Estimate(rec.Runner.OS, rec.Runner.Labels, duration); ok {
			m.EstimatedCost.Record(ctx, cost, base)
		}
	}

	if rec.Artifacts != nil {
		for _, a := range rec.Artifacts.Items {
			m.ArtifactSize.Record(ctx, a.SizeBytes, base, metric.WithAttributes(
				attribute.String(AttrArtifactName, a.Name),
			))
		}
	}

	return nil
}
