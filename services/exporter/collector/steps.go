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

import "github.com/AleutianAI/runlens/services/exporter/model"

// NormalizeSteps maps raw steps to canonical shape, preserving order.
//
// Total function: an absent or empty input yields an empty slice, a step
// missing either timestamp gets DurationMs 0, and a completion timestamp
// earlier than the start (clock skew upstream) is clamped to 0 rather than
// producing a negative duration.
func NormalizeSteps(steps []model.RawStep) []NormalizedStep {
	out := make([]NormalizedStep, 0, len(steps))
	for _, s := range steps {
		n := NormalizedStep{
			Name:        s.Name,
			Number:      s.Number,
			Status:      s.Status,
			Conclusion:  s.Conclusion,
			StartedAt:   s.StartedAt,
			CompletedAt: s.CompletedAt,
		}
		if s.StartedAt != nil && s.CompletedAt != nil {
			if d := s.CompletedAt.Sub(*s.StartedAt).Milliseconds(); d > 0 {
				n.DurationMs = d
			}
		}
		out = append(out, n)
	}
	return out
}
