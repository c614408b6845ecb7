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

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/runlens/services/exporter/collector"
	"github.com/AleutianAI/runlens/services/exporter/model"
)

// EmitSpans maps the record onto a root job span with one child span per
// step.
//
// Child spans are created only for steps with both timestamps — a step
// lacking either cannot draw a bounded interval. A failed step gets error
// status plus a synthesized exception carrying the step name; the job span
// gets error status if its inferred conclusion is failure. Child
// timestamps are not clamped to the parent's window: if upstream data is
// inconsistent the hierarchy shows the inconsistency rather than silently
// correcting it.
//
// When the job's completion timestamp was estimated (the job is still
// in flight upstream), the root span is returned open for the caller to
// end before flushing; otherwise the returned span is already ended and
// the caller must not touch it. The error return is reserved for
// sink-side failures.
func EmitSpans(ctx context.Context, tracer trace.Tracer, rec *collector.MetricsRecord) (trace.Span, error) {
	base := BaseAttributes(rec)

	jobCtx, jobSpan := tracer.Start(ctx, rec.Job.Name,
		trace.WithTimestamp(rec.Job.StartedAt),
		trace.WithAttributes(base...),
	)
	if rec.Job.Conclusion == model.ConclusionFailure {
		jobSpan.SetStatus(codes.Error, fmt.Sprintf("job %q failed", rec.Job.Name))
	}

	for _, s := range rec.Steps {
		if s.StartedAt == nil || s.CompletedAt == nil {
			continue
		}
		_, stepSpan := tracer.Start(jobCtx, s.Name,
			trace.WithTimestamp(*s.StartedAt),
			trace.WithAttributes(append(base[:len(base):len(base)],
				attribute.String(AttrStepName, s.Name),
				attribute.Int(AttrStepNumber, s.Number),
				attribute.String(AttrStepResult, string(model.ConclusionOf(s.Conclusion))),
			)...),
		)
		if s.Conclusion != nil && *s.Conclusion == model.ConclusionFailure {
			stepSpan.SetStatus(codes.Error, fmt.Sprintf("step %q failed", s.Name))
			stepSpan.RecordError(fmt.Errorf("step %q failed", s.Name))
		}
		stepSpan.End(trace.WithTimestamp(*s.CompletedAt))
	}

	if rec.Job.CompletionEstimated {
		return jobSpan, nil
	}
	jobSpan.End(trace.WithTimestamp(rec.Job.CompletedAt))
	return jobSpan, nil
}
