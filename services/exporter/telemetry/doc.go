// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry provides the OpenTelemetry side of the exporter:
// provider bootstrap, the instrument set, and the two emission paths that
// map a collector.MetricsRecord onto metrics and spans.
//
// Init wires OTLP (gRPC) or stdout exporters behind a single shutdown
// function that force-flushes before shutting down — a one-shot process
// must not rely on a periodic reader or batcher firing before exit.
//
// The two emission paths are independent: neither reads the other's
// output, and the record they share is immutable, so the caller may run
// them concurrently.
package telemetry
