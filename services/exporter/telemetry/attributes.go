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
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/runlens/services/exporter/collector"
)

// Attribute keys, following the CI/CD semantic conventions where one
// exists:
// https://opentelemetry.io/docs/specs/semconv/cicd/cicd-spans/
// https://opentelemetry.io/docs/specs/semconv/registry/attributes/cicd/
const (
	AttrPipelineName    = "cicd.pipeline.name"
	AttrPipelineRunID   = "cicd.pipeline.run.id"
	AttrPipelineRunNum  = "cicd.pipeline.run.number"
	AttrPipelineAttempt = "cicd.pipeline.run.attempt"
	AttrTaskName        = "cicd.pipeline.task.name"
	AttrTaskRunID       = "cicd.pipeline.task.run.id"
	AttrTaskResult      = "cicd.pipeline.task.run.result"
	AttrStepName        = "cicd.pipeline.task.step.name"
	AttrStepNumber      = "cicd.pipeline.task.step.number"
	AttrStepResult      = "cicd.pipeline.task.step.result"
	AttrArtifactName    = "cicd.pipeline.artifact.name"
	AttrWorkerOS        = "cicd.worker.os"
	AttrWorkerArch      = "cicd.worker.arch"
	AttrWorkerName      = "cicd.worker.name"
	AttrRepository      = "vcs.repository.name"
	AttrRef             = "vcs.ref.head.name"
	AttrSHA             = "vcs.ref.head.revision"
	AttrEventName       = "cicd.trigger.event"
	AttrEventActor      = "cicd.trigger.actor"
	AttrPRNumber        = "cicd.trigger.pull_request.number"
	AttrInvocationID    = "runlens.invocation.id"
)

// BaseAttributes is the common attribute set attached to every metric
// sample and span of one invocation: workflow, job, repository, run, git,
// event, and runner identity.
func BaseAttributes(rec *collector.MetricsRecord) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrPipelineName, rec.Workflow),
		attribute.Int64(AttrPipelineRunID, rec.Run.ID),
		attribute.Int(AttrPipelineRunNum, rec.Run.Number),
		attribute.Int(AttrPipelineAttempt, rec.Run.Attempt),
		attribute.String(AttrTaskName, rec.Job.Name),
		attribute.Int64(AttrTaskRunID, rec.Job.ID),
		attribute.String(AttrTaskResult, string(rec.Job.Conclusion)),
		attribute.String(AttrRepository, rec.Repository.FullName),
		attribute.String(AttrRef, rec.Git.Ref),
		attribute.String(AttrSHA, rec.Git.SHA),
		attribute.String(AttrEventName, rec.Event.Name),
		attribute.String(AttrEventActor, rec.Event.Actor),
		attribute.String(AttrWorkerOS, rec.Runner.OS),
		attribute.String(AttrWorkerArch, rec.Runner.Arch),
		attribute.String(AttrInvocationID, rec.InvocationID),
	}
	if rec.Runner.Name != "" {
		attrs = append(attrs, attribute.String(AttrWorkerName, rec.Runner.Name))
	}
	if rec.Event.PRNumber != nil {
		attrs = append(attrs, attribute.Int(AttrPRNumber, *rec.Event.PRNumber))
	}
	return attrs
}
