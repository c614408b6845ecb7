// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package model defines the raw records returned by the workflow-run API
// and the invocation context assembled at the process boundary.
//
// Raw records are read-only inputs to the collector: fields the remote API
// may leave unset (conclusions, timestamps) are pointers, and a nil pointer
// means "not recorded yet", which is distinct from the "unknown" sentinel
// the API uses for finished-but-undetermined outcomes.
package model

import "time"

// Status is the execution state of a job or step as reported by the API.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Conclusion is the terminal outcome of a job or step.
type Conclusion string

const (
	ConclusionSuccess   Conclusion = "success"
	ConclusionFailure   Conclusion = "failure"
	ConclusionCancelled Conclusion = "cancelled"
	ConclusionSkipped   Conclusion = "skipped"
	ConclusionUnknown   Conclusion = "unknown"
)

// RawStep is one step of a job exactly as the workflow-run API reports it.
type RawStep struct {
	Name        string      `json:"name"`
	Number      int         `json:"number"`
	Status      Status      `json:"status"`
	Conclusion  *Conclusion `json:"conclusion"`
	StartedAt   *time.Time  `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at"`
}

// RawJob is one job of a workflow run exactly as the API reports it.
//
// While a job is still executing, Conclusion and CompletedAt are nil and
// Status is "in_progress". RunnerName and Labels are only populated once a
// runner has picked the job up.
type RawJob struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Status      Status      `json:"status"`
	Conclusion  *Conclusion `json:"conclusion"`
	StartedAt   *time.Time  `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at"`
	Steps       []RawStep   `json:"steps"`
	RunnerName  string      `json:"runner_name"`
	Labels      []string    `json:"labels"`
}

// Artifact is one uploaded artifact of a workflow run.
type Artifact struct {
	Name      string     `json:"name"`
	SizeBytes int64      `json:"size_in_bytes"`
	Expired   bool       `json:"expired"`
	CreatedAt *time.Time `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// Repository is the subset of repository metadata the exporter consumes.
type Repository struct {
	FullName string `json:"full_name"`
	// SizeKB is the repository size in kilobytes, as reported by the API.
	SizeKB int64 `json:"size"`
}

// ConclusionOf dereferences a nullable conclusion, mapping nil to the
// "unknown" sentinel. Convenience for diagnostics only; inference logic
// must keep nil and "unknown" distinct.
func ConclusionOf(c *Conclusion) Conclusion {
	if c == nil {
		return ConclusionUnknown
	}
	return *c
}
