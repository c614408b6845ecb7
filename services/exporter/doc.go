// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package exporter wires the RunLens pipeline: configuration and
// invocation context at the process boundary, the workflow-run API
// collaborator, the collector, and the two telemetry emission paths.
//
// Each invocation is one pass: list jobs, resolve self, normalize steps,
// infer a conclusion, build the immutable record, emit metrics and spans,
// flush. Nothing persists between invocations; concurrent matrix legs of
// the same run each run their own exporter and rely on runner-identity
// resolution, not coordination, to pick their own job.
package exporter
