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
	"log/slog"
	"sort"
	"strings"

	"github.com/AleutianAI/runlens/services/exporter/model"
)

// ResolveJob identifies which job in the run's job list is the one this
// invocation is executing inside of.
//
// The runner exposes only the unparameterized base name, which every leg
// of a matrix job shares, so the resolver re-derives "self" through an
// ordered fallback chain, first match wins:
//
//  1. Exact name match against baseName.
//  2. Single job named "<baseName> (<params>)".
//  3. Among multiple matrix matches: the job whose runner_name equals this
//     invocation's runnerName — two concurrent legs race against the same
//     shared job list with no coordination, and the runner identity is the
//     only signal that is unique per leg. Failing that, an in-progress
//     job, then the most recently started (stable order on ties).
//  4. No name match at all: the first job in the list.
//
// An empty job list returns ErrNoJobs; without a job there is no
// meaningful telemetry record. Diagnostics on the ambiguous paths are
// advisory only.
func ResolveJob(jobs []model.RawJob, baseName, runnerName string, logger *slog.Logger) (model.RawJob, error) {
	if len(jobs) == 0 {
		return model.RawJob{}, ErrNoJobs
	}

	for _, j := range jobs {
		if j.Name == baseName {
			return j, nil
		}
	}

	matrix := matrixMatches(jobs, baseName)
	switch len(matrix) {
	case 0:
		logger.Warn("no job matched declared name, falling back to first job",
			"job_name", baseName,
			"first_job", jobs[0].Name,
			"job_count", len(jobs))
		return jobs[0], nil
	case 1:
		return matrix[0], nil
	}

	if runnerName != "" {
		var byRunner []model.RawJob
		for _, j := range matrix {
			if j.RunnerName == runnerName {
				byRunner = append(byRunner, j)
			}
		}
		if len(byRunner) == 1 {
			return byRunner[0], nil
		}
		if len(byRunner) > 1 {
			matrix = byRunner
		}
	}

	logger.Info("multiple matrix legs share base name, disambiguating",
		"job_name", baseName,
		"runner_name", runnerName,
		"candidates", len(matrix))

	var inProgress []model.RawJob
	for _, j := range matrix {
		if j.Status == model.StatusInProgress {
			inProgress = append(inProgress, j)
		}
	}
	if len(inProgress) == 1 {
		return inProgress[0], nil
	}
	if len(inProgress) > 1 {
		matrix = inProgress
	}

	// Still ambiguous: most recent start wins, stable sort for
	// deterministic ties. Jobs without a start timestamp sort last.
	sort.SliceStable(matrix, func(i, k int) bool {
		a, b := matrix[i].StartedAt, matrix[k].StartedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	logger.Warn("matrix legs remain ambiguous, using most recent start",
		"job_name", baseName,
		"picked", matrix[0].Name)
	return matrix[0], nil
}

// matrixMatches returns the jobs named "<baseName> (<params>)".
func matrixMatches(jobs []model.RawJob, baseName string) []model.RawJob {
	prefix := baseName + " ("
	var out []model.RawJob
	for _, j := range jobs {
		if strings.HasPrefix(j.Name, prefix) && strings.HasSuffix(j.Name, ")") {
			out = append(out, j)
		}
	}
	return out
}
