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
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/runlens/services/exporter/collector"
	"github.com/AleutianAI/runlens/services/exporter/model"
	"github.com/AleutianAI/runlens/services/exporter/telemetry"
)

// RunDataSource is the capability interface over the workflow-run API.
// github.Client is the production implementation; tests substitute fakes.
type RunDataSource interface {
	ListJobs(ctx context.Context, owner, repo string, runID int64) ([]model.RawJob, error)
	ListArtifacts(ctx context.Context, owner, repo string, runID int64) ([]model.Artifact, error)
	GetRepository(ctx context.Context, owner, repo string) (*model.Repository, error)
}

// Pipeline runs one reconstruct-then-emit cycle.
//
// The pipeline holds no state between runs: every invocation reconstructs
// the record from the current remote state and discards it after emission.
type Pipeline struct {
	Source  RunDataSource
	Metrics *telemetry.Metrics
	Tracer  trace.Tracer
	Logger  *slog.Logger

	// Now is the clock used for timestamp defaulting. Nil means time.Now.
	Now func() time.Time
}

// Run reconstructs the telemetry record for the invoking job and fans it
// out to both emission paths.
//
// Only two classes of error escape: the fatal "no jobs for run" condition
// (wrapped collector.ErrNoJobs) and transport/auth failures from the job
// listing or the sink. Artifact and repository-metadata failures degrade
// to an absent summary with a warning. The two emission paths share the
// immutable record and nothing else, so they run concurrently.
func (p *Pipeline) Run(ctx context.Context, inv model.InvocationContext) (*collector.MetricsRecord, error) {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	owner, repo := inv.Owner(), inv.RepoName()

	jobs, err := p.Source.ListJobs(ctx, owner, repo, inv.RunID)
	if err != nil {
		return nil, fmt.Errorf("list jobs for run %d: %w", inv.RunID, err)
	}

	job, err := collector.ResolveJob(jobs, inv.JobName, inv.RunnerName, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("resolve job %q: %w", inv.JobName, err)
	}

	steps := collector.NormalizeSteps(job.Steps)
	conclusion := collector.InferConclusion(job.Conclusion, steps)

	var repoSizeKB *int64
	if meta, err := p.Source.GetRepository(ctx, owner, repo); err != nil {
		p.Logger.Warn("repository metadata unavailable", "error", err)
	} else if meta != nil {
		repoSizeKB = &meta.SizeKB
	}

	artifacts, err := p.Source.ListArtifacts(ctx, owner, repo, inv.RunID)
	if err != nil {
		p.Logger.Warn("artifact listing unavailable, continuing without", "error", err)
		artifacts = nil
	}

	rec := collector.BuildRecord(collector.BuildInput{
		Job:        job,
		Steps:      steps,
		Conclusion: conclusion,
		Invocation: inv,
		RepoSizeKB: repoSizeKB,
		Artifacts:  artifacts,
		Now:        now(),
	})

	p.Logger.Info("record collected",
		"workflow", rec.Workflow,
		"job", rec.Job.Name,
		"conclusion", rec.Job.Conclusion,
		"duration_ms", rec.Job.DurationMs,
		"steps", len(rec.Steps))

	var openSpan trace.Span
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.Metrics.Emit(gctx, rec)
	})
	g.Go(func() error {
		span, err := telemetry.EmitSpans(gctx, p.Tracer, rec)
		if err != nil {
			return err
		}
		if rec.Job.CompletionEstimated {
			openSpan = span
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return rec, fmt.Errorf("emit telemetry: %w", err)
	}

	// An in-flight job has no real completion timestamp; the root span
	// stayed open so the backend shows emission time, not the estimate.
	if openSpan != nil {
		openSpan.End()
	}

	return rec, nil
}
