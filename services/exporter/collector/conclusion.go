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

// InferConclusion derives a non-null conclusion for a job the API has not
// finalized yet.
//
// A raw conclusion other than nil or "unknown" wins outright; steps are
// not consulted. Otherwise only steps with a recorded conclusion are
// considered — a still-pending post step must not poison the inference.
// Failure dominates cancellation, which dominates success: one failed step
// fails the whole job no matter what else happened. A non-empty considered
// set that is entirely success/skipped means success; anything else
// (nothing considered, or unrecognized conclusions in the mix) is unknown.
func InferConclusion(raw *model.Conclusion, steps []NormalizedStep) model.Conclusion {
	if raw != nil && *raw != "" && *raw != model.ConclusionUnknown {
		return *raw
	}

	considered := 0
	sawFailure := false
	sawCancelled := false
	allSettled := true
	for _, s := range steps {
		if s.Conclusion == nil {
			continue
		}
		considered++
		switch *s.Conclusion {
		case model.ConclusionFailure:
			sawFailure = true
		case model.ConclusionCancelled:
			sawCancelled = true
		case model.ConclusionSuccess, model.ConclusionSkipped:
		default:
			allSettled = false
		}
	}

	switch {
	case sawFailure:
		return model.ConclusionFailure
	case sawCancelled:
		return model.ConclusionCancelled
	case considered > 0 && allSettled:
		return model.ConclusionSuccess
	default:
		return model.ConclusionUnknown
	}
}
