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
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/AleutianAI/runlens/pkg/logging"
	"github.com/AleutianAI/runlens/services/exporter/collector"
	"github.com/AleutianAI/runlens/services/exporter/model"
	"github.com/AleutianAI/runlens/services/exporter/telemetry"
)

// fakeSource serves canned responses; a nil error function means success.
type fakeSource struct {
	jobs      []model.RawJob
	jobsErr   error
	artifacts []model.Artifact
	artErr    error
	repo      *model.Repository
	repoErr   error
}

func (f *fakeSource) ListJobs(_ context.Context, _, _ string, _ int64) ([]model.RawJob, error) {
	return f.jobs, f.jobsErr
}

func (f *fakeSource) ListArtifacts(_ context.Context, _, _ string, _ int64) ([]model.Artifact, error) {
	return f.artifacts, f.artErr
}

func (f *fakeSource) GetRepository(_ context.Context, _, _ string) (*model.Repository, error) {
	return f.repo, f.repoErr
}

func conclPtr(c model.Conclusion) *model.Conclusion { return &c }

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

var pipelineNow = time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)

// completedJob is the scenario fixture: a finished three-step job where
// the API recorded everything.
func completedJob() model.RawJob {
	success := model.ConclusionSuccess
	return model.RawJob{
		ID:          101,
		Name:        "build",
		Status:      model.StatusCompleted,
		Conclusion:  &success,
		StartedAt:   ts("2025-06-01T10:00:00Z"),
		CompletedAt: ts("2025-06-01T10:05:00Z"),
		RunnerName:  "hosted-1",
		Labels:      []string{"ubuntu-latest"},
		Steps: []model.RawStep{
			{
				Name:        "checkout",
				Number:      1,
				Status:      model.StatusCompleted,
				Conclusion:  conclPtr(model.ConclusionSuccess),
				StartedAt:   ts("2025-06-01T10:00:00Z"),
				CompletedAt: ts("2025-06-01T10:01:00Z"),
			},
			{
				Name:        "test",
				Number:      2,
				Status:      model.StatusCompleted,
				Conclusion:  conclPtr(model.ConclusionSuccess),
				StartedAt:   ts("2025-06-01T10:01:00Z"),
				CompletedAt: ts("2025-06-01T10:04:00Z"),
			},
			{
				Name:   "post-cleanup",
				Number: 3,
				Status: model.StatusQueued,
			},
		},
	}
}

func invocation() model.InvocationContext {
	return model.InvocationContext{
		Workflow:     "CI",
		JobName:      "build",
		RunnerName:   "hosted-1",
		RunID:        42,
		RunNumber:    7,
		RunAttempt:   1,
		Repository:   "acme/widget",
		SHA:          "deadbeef",
		Ref:          "refs/heads/main",
		RefName:      "main",
		EventName:    "push",
		Actor:        "octocat",
		RunnerOS:     "Linux",
		RunnerArch:   "X64",
		RunnerLabels: []string{"ubuntu-latest"},
		InvocationID: "inv-1",
	}
}

type pipelineHarness struct {
	pipeline *Pipeline
	reader   *sdkmetric.ManualReader
	spans    *tracetest.InMemoryExporter
	logs     *logging.Capture
}

func newHarness(t *testing.T, src RunDataSource) *pipelineHarness {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	metrics, err := telemetry.NewMetrics(mp.Meter("test"), "runlens")
	require.NoError(t, err)

	spans := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(spans))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	logger, capture := logging.NewCapture()

	return &pipelineHarness{
		pipeline: &Pipeline{
			Source:  src,
			Metrics: metrics,
			Tracer:  tp.Tracer("test"),
			Logger:  logger,
			Now:     func() time.Time { return pipelineNow },
		},
		reader: reader,
		spans:  spans,
		logs:   capture,
	}
}

func (h *pipelineHarness) metric(t *testing.T, name string) (metricdata.Metrics, bool) {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, h.reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func TestPipeline_CompletedRun(t *testing.T) {
	size := int64(2048)
	h := newHarness(t, &fakeSource{
		jobs:      []model.RawJob{completedJob()},
		artifacts: []model.Artifact{{Name: "coverage", SizeBytes: 1024}},
		repo:      &model.Repository{FullName: "acme/widget", SizeKB: size},
	})

	rec, err := h.pipeline.Run(context.Background(), invocation())
	require.NoError(t, err)

	assert.Equal(t, model.ConclusionSuccess, rec.Job.Conclusion)
	assert.Equal(t, int64(300000), rec.Job.DurationMs)
	assert.False(t, rec.Job.CompletionEstimated)
	require.NotNil(t, rec.Repository.SizeKB)
	assert.Equal(t, int64(2048), *rec.Repository.SizeKB)
	require.NotNil(t, rec.Artifacts)
	assert.Equal(t, 1, rec.Artifacts.Count)

	jobDur, ok := h.metric(t, "runlens.job.duration")
	require.True(t, ok)
	hist := jobDur.Data.(metricdata.Histogram[int64])
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
	assert.Equal(t, int64(300000), hist.DataPoints[0].Sum)

	stepDur, ok := h.metric(t, "runlens.step.duration")
	require.True(t, ok)
	stepHist := stepDur.Data.(metricdata.Histogram[int64])
	var stepCount uint64
	for _, dp := range stepHist.DataPoints {
		stepCount += dp.Count
	}
	assert.Equal(t, uint64(2), stepCount, "the queued step contributes no sample")

	// Root job span plus the two bounded step spans, no error status.
	spans := h.spans.GetSpans()
	require.Len(t, spans, 3)
	for _, s := range spans {
		assert.NotEqual(t, codes.Error, s.Status.Code)
	}
}

func TestPipeline_ConclusionInference(t *testing.T) {
	job := completedJob()
	job.Conclusion = nil
	failed := model.ConclusionFailure
	job.Steps[1].Conclusion = &failed

	h := newHarness(t, &fakeSource{jobs: []model.RawJob{job}})

	rec, err := h.pipeline.Run(context.Background(), invocation())
	require.NoError(t, err)
	assert.Equal(t, model.ConclusionFailure, rec.Job.Conclusion,
		"a failed step dominates when the API has no job conclusion yet")

	var rootErrored bool
	for _, s := range h.spans.GetSpans() {
		if !s.Parent.IsValid() {
			rootErrored = s.Status.Code == codes.Error
		}
	}
	assert.True(t, rootErrored)
}

func TestPipeline_InFlightJob(t *testing.T) {
	job := completedJob()
	job.Status = model.StatusInProgress
	job.Conclusion = nil
	job.CompletedAt = nil
	job.Steps = job.Steps[:1]

	h := newHarness(t, &fakeSource{jobs: []model.RawJob{job}})

	rec, err := h.pipeline.Run(context.Background(), invocation())
	require.NoError(t, err)

	assert.True(t, rec.Job.CompletionEstimated)
	assert.Equal(t, pipelineNow, rec.Job.CompletedAt)
	assert.Equal(t, int64(30*60*1000), rec.Job.DurationMs)

	// Run ended the open root span before returning.
	spans := h.spans.GetSpans()
	require.Len(t, spans, 2)
	found := false
	for _, s := range spans {
		if !s.Parent.IsValid() {
			found = true
			assert.False(t, s.EndTime.IsZero())
		}
	}
	assert.True(t, found, "root span must be exported after Run returns")
}

func TestPipeline_NoJobs(t *testing.T) {
	h := newHarness(t, &fakeSource{})

	_, err := h.pipeline.Run(context.Background(), invocation())
	require.Error(t, err)
	assert.ErrorIs(t, err, collector.ErrNoJobs)
}

func TestPipeline_ListJobsFailure(t *testing.T) {
	boom := errors.New("api unavailable")
	h := newHarness(t, &fakeSource{jobsErr: boom})

	_, err := h.pipeline.Run(context.Background(), invocation())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestPipeline_NilRepositoryMetadata(t *testing.T) {
	// A source may legitimately report "no metadata" as (nil, nil); the
	// pipeline treats it like any other absent size.
	h := newHarness(t, &fakeSource{jobs: []model.RawJob{completedJob()}})

	rec, err := h.pipeline.Run(context.Background(), invocation())
	require.NoError(t, err)
	assert.Nil(t, rec.Repository.SizeKB)

	if _, ok := h.metric(t, "runlens.repo.size"); ok {
		t.Error("no repo size gauge expected")
	}
}

func TestPipeline_DegradesWithoutArtifactsAndRepo(t *testing.T) {
	h := newHarness(t, &fakeSource{
		jobs:    []model.RawJob{completedJob()},
		artErr:  errors.New("403"),
		repoErr: errors.New("403"),
	})

	rec, err := h.pipeline.Run(context.Background(), invocation())
	require.NoError(t, err, "auxiliary lookups must not fail the run")

	assert.Nil(t, rec.Artifacts)
	assert.Nil(t, rec.Repository.SizeKB)

	if _, ok := h.metric(t, "runlens.artifact.size"); ok {
		t.Error("no artifact samples expected")
	}
	if _, ok := h.metric(t, "runlens.repo.size"); ok {
		t.Error("no repo size gauge expected")
	}

	// Both degradations leave a warning behind.
	msgs := h.logs.Messages()
	assert.Contains(t, msgs, "repository metadata unavailable")
	assert.Contains(t, msgs, "artifact listing unavailable, continuing without")
}
