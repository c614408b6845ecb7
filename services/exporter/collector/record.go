// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package collector

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/runlens/services/exporter/model"
)

// NormalizedStep is a RawStep in canonical shape with a computed duration.
//
// Conclusion stays nullable: nil means the step has not finished, which is
// distinct from the "unknown" sentinel. DurationMs is zero whenever either
// timestamp is missing and never negative.
type NormalizedStep struct {
	Name        string
	Number      int
	Status      model.Status
	Conclusion  *model.Conclusion
	StartedAt   *time.Time
	CompletedAt *time.Time
	DurationMs  int64
}

// ResolvedJob is the invoking job after resolution, conclusion inference
// and timestamp defaulting. Conclusion is never "", and both timestamps
// are always set; when the API had not recorded one, the corresponding
// Estimated flag is true and the value is the collection instant. The
// duration of an in-flight job is therefore an estimate, not history.
type ResolvedJob struct {
	ID                  int64
	Name                string
	Status              model.Status
	Conclusion          model.Conclusion
	StartedAt           time.Time
	CompletedAt         time.Time
	StartEstimated      bool
	CompletionEstimated bool
	DurationMs          int64
	Steps               []NormalizedStep
	Labels              []string
}

// RepositoryInfo identifies the repository the run belongs to.
type RepositoryInfo struct {
	Owner    string
	Name     string
	FullName string
	// SizeKB is nil when repository metadata was unavailable.
	SizeKB *int64
}

// RunInfo identifies the workflow run.
type RunInfo struct {
	ID      int64
	Number  int
	Attempt int
}

// GitInfo identifies the commit the run executed against.
type GitInfo struct {
	SHA     string
	Ref     string
	RefName string
	BaseRef string
	HeadRef string
}

// EventInfo identifies the event that triggered the run.
type EventInfo struct {
	Name     string
	Actor    string
	PRNumber *int
}

// RunnerInfo identifies the runner executing the invoking job.
type RunnerInfo struct {
	OS     string
	Arch   string
	Name   string
	Labels []string
}

// ArtifactItem is one artifact retained for per-artifact metric emission.
type ArtifactItem struct {
	Name      string
	SizeBytes int64
}

// ArtifactSummary aggregates the run's artifacts.
type ArtifactSummary struct {
	Count      int
	TotalBytes int64
	Items      []ArtifactItem
}

// MetricsRecord is the canonical output of the collector and the sole
// input to both emission paths. It is built once per invocation, never
// mutated afterwards, and discarded when emission completes.
type MetricsRecord struct {
	Workflow     string
	Job          ResolvedJob
	Steps        []NormalizedStep
	Repository   RepositoryInfo
	Run          RunInfo
	Git          GitInfo
	Event        EventInfo
	Runner       RunnerInfo
	Artifacts    *ArtifactSummary
	InvocationID string
}

// BuildInput carries everything BuildRecord combines into a MetricsRecord.
type BuildInput struct {
	// Job is the resolved raw job (output of ResolveJob).
	Job model.RawJob

	// Steps is the normalized step sequence (output of NormalizeSteps).
	Steps []NormalizedStep

	// Conclusion is the inferred conclusion (output of InferConclusion).
	Conclusion model.Conclusion

	// Invocation is the process-boundary context.
	Invocation model.InvocationContext

	// RepoSizeKB is nil when repository metadata was unavailable.
	RepoSizeKB *int64

	// Artifacts may be nil or empty when the run has none (or listing
	// failed, which is treated the same way).
	Artifacts []model.Artifact

	// Now is the collection instant used to default missing timestamps.
	Now time.Time
}

// BuildRecord assembles the immutable MetricsRecord.
//
// Timestamp defaulting: the exporter runs before job completion is
// recorded upstream, so a missing start or completion timestamp is
// substituted with Now. The resulting duration is an estimate; the record
// carries no exact-vs-estimate flag on the duration itself, only the
// Estimated flags on the resolved timestamps.
func BuildRecord(in BuildInput) *MetricsRecord {
	job := ResolvedJob{
		ID:         in.Job.ID,
		Name:       in.Job.Name,
		Status:     in.Job.Status,
		Conclusion: in.Conclusion,
		Steps:      in.Steps,
		Labels:     in.Job.Labels,
	}

	if in.Job.StartedAt != nil {
		job.StartedAt = *in.Job.StartedAt
	} else {
		job.StartedAt = in.Now
		job.StartEstimated = true
	}
	if in.Job.CompletedAt != nil {
		job.CompletedAt = *in.Job.CompletedAt
	} else {
		job.CompletedAt = in.Now
		job.CompletionEstimated = true
	}
	if d := job.CompletedAt.Sub(job.StartedAt).Milliseconds(); d > 0 {
		job.DurationMs = d
	}

	inv := in.Invocation
	rec := &MetricsRecord{
		Workflow: resolveWorkflowName(inv.Workflow, inv.WorkflowRef),
		Job:      job,
		Steps:    in.Steps,
		Repository: RepositoryInfo{
			Owner:    inv.Owner(),
			Name:     inv.RepoName(),
			FullName: inv.Repository,
			SizeKB:   in.RepoSizeKB,
		},
		Run: RunInfo{
			ID:      inv.RunID,
			Number:  inv.RunNumber,
			Attempt: inv.RunAttempt,
		},
		Git: GitInfo{
			SHA:     inv.SHA,
			Ref:     inv.Ref,
			RefName: inv.RefName,
			BaseRef: inv.BaseRef,
			HeadRef: inv.HeadRef,
		},
		Event: EventInfo{
			Name:     inv.EventName,
			Actor:    inv.Actor,
			PRNumber: resolvePRNumber(inv.PRNumber, inv.Ref),
		},
		Runner: RunnerInfo{
			OS:     inv.RunnerOS,
			Arch:   inv.RunnerArch,
			Name:   inv.RunnerName,
			Labels: inv.RunnerLabels,
		},
		InvocationID: inv.InvocationID,
	}

	if len(in.Artifacts) > 0 {
		summary := &ArtifactSummary{Count: len(in.Artifacts)}
		for _, a := range in.Artifacts {
			summary.TotalBytes += a.SizeBytes
			summary.Items = append(summary.Items, ArtifactItem{
				Name:      a.Name,
				SizeBytes: a.SizeBytes,
			})
		}
		rec.Artifacts = summary
	}

	return rec
}

// resolveWorkflowName prefers the explicit name, then derives one from a
// fully qualified reference ("owner/repo/path/to/workflow.yml@ref" becomes
// "path/to/workflow.yml"), and finally passes the raw reference through.
func resolveWorkflowName(name, ref string) string {
	if name != "" {
		return name
	}
	trimmed := ref
	if at := strings.LastIndex(trimmed, "@"); at >= 0 {
		trimmed = trimmed[:at]
	}
	parts := strings.SplitN(trimmed, "/", 3)
	if len(parts) == 3 && parts[0] != "" && parts[1] != "" && parts[2] != "" {
		return parts[2]
	}
	return ref
}

var prRefPattern = regexp.MustCompile(`^refs/pull/(\d+)/merge$`)

// resolvePRNumber prefers the event payload's pull request number, falling
// back to parsing a "refs/pull/<n>/merge" ref.
func resolvePRNumber(fromPayload *int, ref string) *int {
	if fromPayload != nil {
		return fromPayload
	}
	m := prRefPattern.FindStringSubmatch(ref)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}
