// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import "strings"

// InvocationContext carries everything the exporter knows about the job it
// is running inside of. It is assembled once at the process boundary (from
// the runner-provided environment) and threaded down explicitly; no
// pipeline code reads the environment mid-flight.
//
// JobName is the unparameterized base name shared by every leg of a matrix
// job; RunnerName is the identity of the runner executing this invocation
// and is the primary signal for telling concurrent matrix legs apart.
type InvocationContext struct {
	// Workflow is the explicit workflow name, when the runner provides one.
	Workflow string

	// WorkflowRef is the fully qualified workflow reference, in the form
	// "owner/repo/path/to/workflow.yml@ref". Used to derive a workflow
	// name when Workflow is empty.
	WorkflowRef string

	// JobName is the invoking job's declared base name.
	JobName string

	// RunnerName is the invoking job's own runner identity.
	RunnerName string

	RunID      int64
	RunNumber  int
	RunAttempt int

	// Repository is the "owner/name" slug.
	Repository string

	SHA     string
	Ref     string
	RefName string
	BaseRef string
	HeadRef string

	EventName string
	Actor     string

	// PRNumber is the pull request number from the event payload, when the
	// triggering event carries one.
	PRNumber *int

	RunnerOS     string
	RunnerArch   string
	RunnerLabels []string

	// InvocationID correlates every sample and span emitted by one
	// exporter invocation.
	InvocationID string
}

// Owner returns the repository owner half of the "owner/name" slug.
func (c InvocationContext) Owner() string {
	owner, _ := splitRepository(c.Repository)
	return owner
}

// RepoName returns the repository name half of the "owner/name" slug.
func (c InvocationContext) RepoName() string {
	_, name := splitRepository(c.Repository)
	return name
}

func splitRepository(full string) (owner, name string) {
	owner, name, ok := strings.Cut(full, "/")
	if !ok {
		return full, ""
	}
	return owner, name
}
