// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package collector reconstructs a complete telemetry record from the
// partial data a workflow-run API exposes mid-run.
//
// The exporter characteristically runs as the last step of a job, before
// the job itself is marked complete upstream. The API therefore returns
// noisy input: the invoking job may lack a conclusion and completion
// timestamp, steps may still be pending, and matrix legs share one base
// name. This package turns that input into one deterministic, immutable
// MetricsRecord:
//
//	ResolveJob       picks the invoking job out of the run's job list
//	NormalizeSteps   computes canonical step durations
//	InferConclusion  derives a terminal conclusion from step outcomes
//	BuildRecord      assembles the record, defaulting missing timestamps
//
// All functions are pure over their inputs. Diagnostics on ambiguous paths
// go through a caller-supplied *slog.Logger and never affect behavior.
package collector
