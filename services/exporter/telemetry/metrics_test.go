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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/AleutianAI/runlens/services/exporter/collector"
	"github.com/AleutianAI/runlens/services/exporter/model"
)

func conclPtr(c model.Conclusion) *model.Conclusion { return &c }

func tsAt(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

// testRecord is the canonical fixture: one completed job with three steps,
// one of which never ran.
func testRecord() *collector.MetricsRecord {
	steps := []collector.NormalizedStep{
		{
			Name:        "checkout",
			Number:      1,
			Status:      model.StatusCompleted,
			Conclusion:  conclPtr(model.ConclusionSuccess),
			StartedAt:   tsAt("2025-06-01T10:00:00Z"),
			CompletedAt: tsAt("2025-06-01T10:01:00Z"),
			DurationMs:  60000,
		},
		{
			Name:        "build",
			Number:      2,
			Status:      model.StatusCompleted,
			Conclusion:  conclPtr(model.ConclusionSuccess),
			StartedAt:   tsAt("2025-06-01T10:01:00Z"),
			CompletedAt: tsAt("2025-06-01T10:04:00Z"),
			DurationMs:  180000,
		},
		{
			Name:       "post-cleanup",
			Number:     3,
			Status:     model.StatusQueued,
			DurationMs: 0,
		},
	}
	return &collector.MetricsRecord{
		Workflow: "CI",
		Job: collector.ResolvedJob{
			ID:          101,
			Name:        "build",
			Status:      model.StatusCompleted,
			Conclusion:  model.ConclusionSuccess,
			StartedAt:   *tsAt("2025-06-01T10:00:00Z"),
			CompletedAt: *tsAt("2025-06-01T10:05:00Z"),
			DurationMs:  300000,
			Steps:       steps,
		},
		Steps:      steps,
		Repository: collector.RepositoryInfo{Owner: "acme", Name: "widget", FullName: "acme/widget"},
		Run:        collector.RunInfo{ID: 42, Number: 7, Attempt: 1},
		Git:        collector.GitInfo{SHA: "deadbeef", Ref: "refs/heads/main", RefName: "main"},
		Event:      collector.EventInfo{Name: "push", Actor: "octocat"},
		Runner: collector.RunnerInfo{
			OS:     "Linux",
			Arch:   "X64",
			Name:   "hosted-1",
			Labels: []string{"ubuntu-latest"},
		},
		InvocationID: "inv-1",
	}
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	metrics, err := NewMetrics(provider.Meter("test"), "runlens")
	require.NoError(t, err)
	return metrics, reader
}

func TestEmit_JobAndSteps(t *testing.T) {
	metrics, reader := newTestMetrics(t)
	require.NoError(t, metrics.Emit(context.Background(), testRecord()))

	rm := collect(t, reader)

	jobDur, ok := findMetric(rm, "runlens.job.duration")
	require.True(t, ok, "job duration must always be recorded")
	hist := jobDur.Data.(metricdata.Histogram[int64])
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	assert.Equal(t, int64(300000), hist.DataPoints[0].Sum)

	total, ok := findMetric(rm, "runlens.job.total")
	require.True(t, ok)
	sum := total.Data.(metricdata.Sum[int64])
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(1), sum.DataPoints[0].Value)
	result, found := sum.DataPoints[0].Attributes.Value(attribute.Key(AttrTaskResult))
	require.True(t, found)
	assert.Equal(t, "success", result.AsString())

	// Two steps ran; the zero-duration step contributes no sample.
	stepDur, ok := findMetric(rm, "runlens.step.duration")
	require.True(t, ok)
	stepHist := stepDur.Data.(metricdata.Histogram[int64])
	var count uint64
	for _, dp := range stepHist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(2), count)
}

func TestEmit_ZeroDurationJobStillSampled(t *testing.T) {
	metrics, reader := newTestMetrics(t)

	rec := testRecord()
	rec.Job.DurationMs = 0
	rec.Steps = nil
	require.NoError(t, metrics.Emit(context.Background(), rec))

	rm := collect(t, reader)
	jobDur, ok := findMetric(rm, "runlens.job.duration")
	require.True(t, ok)
	hist := jobDur.Data.(metricdata.Histogram[int64])
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count, "zero duration is still exactly one sample")

	_, ok = findMetric(rm, "runlens.step.duration")
	assert.False(t, ok, "no steps means no step samples")
}

func TestEmit_RepoSizeGauge(t *testing.T) {
	metrics, reader := newTestMetrics(t)

	rec := testRecord()
	size := int64(2048)
	rec.Repository.SizeKB = &size
	require.NoError(t, metrics.Emit(context.Background(), rec))

	rm := collect(t, reader)
	repoSize, ok := findMetric(rm, "runlens.repo.size")
	require.True(t, ok)
	gauge := repoSize.Data.(metricdata.Gauge[int64])
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, int64(2048), gauge.DataPoints[0].Value)
}

func TestEmit_RepoSizeOmittedWhenUnavailable(t *testing.T) {
	metrics, reader := newTestMetrics(t)
	require.NoError(t, metrics.Emit(context.Background(), testRecord()))

	rm := collect(t, reader)
	_, ok := findMetric(rm, "runlens.repo.size")
	assert.False(t, ok, "missing size must be omitted, not recorded as zero")
}

func TestEmit_EstimatedCost(t *testing.T) {
	metrics, reader := newTestMetrics(t)
	require.NoError(t, metrics.Emit(context.Background(), testRecord()))

	rm := collect(t, reader)
	cost, ok := findMetric(rm, "runlens.job.estimated_cost")
	require.True(t, ok, "hosted linux runner should produce a cost sample")
	hist := cost.Data.(metricdata.Histogram[float64])
	require.Len(t, hist.DataPoints, 1)
	// 5 minutes at the two-core linux rate.
	assert.InDelta(t, 0.04, hist.DataPoints[0].Sum, 1e-9)
}

func TestEmit_NoCostForSelfHosted(t *testing.T) {
	metrics, reader := newTestMetrics(t)

	rec := testRecord()
	rec.Runner.Labels = []string{"self-hosted", "gpu"}
	require.NoError(t, metrics.Emit(context.Background(), rec))

	rm := collect(t, reader)
	_, ok := findMetric(rm, "runlens.job.estimated_cost")
	assert.False(t, ok)
}

func TestEmit_ArtifactSizes(t *testing.T) {
	metrics, reader := newTestMetrics(t)

	rec := testRecord()
	rec.Artifacts = &collector.ArtifactSummary{
		Count:      2,
		TotalBytes: 5120,
		Items: []collector.ArtifactItem{
			{Name: "coverage", SizeBytes: 1024},
			{Name: "binary", SizeBytes: 4096},
		},
	}
	require.NoError(t, metrics.Emit(context.Background(), rec))

	rm := collect(t, reader)
	artifacts, ok := findMetric(rm, "runlens.artifact.size")
	require.True(t, ok)
	hist := artifacts.Data.(metricdata.Histogram[int64])
	var count uint64
	var sum int64
	for _, dp := range hist.DataPoints {
		count += dp.Count
		sum += dp.Sum
	}
	assert.Equal(t, uint64(2), count)
	assert.Equal(t, int64(5120), sum)
}

func TestEmit_NoArtifacts(t *testing.T) {
	metrics, reader := newTestMetrics(t)
	require.NoError(t, metrics.Emit(context.Background(), testRecord()))

	rm := collect(t, reader)
	_, ok := findMetric(rm, "runlens.artifact.size")
	assert.False(t, ok)
}
