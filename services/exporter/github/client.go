// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package github is the workflow-run API collaborator: it lists jobs and
// artifacts for a run and fetches repository metadata, returning raw
// records for the collector to interpret.
//
// The client makes a single attempt per call — the exporter never retries,
// by design — and parses timestamps leniently: a malformed or null
// timestamp becomes a nil pointer rather than an error, because the
// collector treats "absent" as a normal state of an in-flight run.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/AleutianAI/runlens/services/exporter/model"
)

const (
	// DefaultBaseURL is the public API endpoint. Override with WithBaseURL
	// for GitHub Enterprise Server.
	DefaultBaseURL = "https://api.github.com"

	perPage = 100
)

// Client talks to the workflow-run REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a non-default API endpoint.
func WithBaseURL(base string) Option {
	return func(c *Client) { c.baseURL = base }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// NewClient creates a client authenticating with the given token.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		baseURL:    DefaultBaseURL,
		token:      token,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wire shapes: timestamps arrive as strings so a malformed value can be
// dropped instead of failing the decode.

type wireStep struct {
	Name        string  `json:"name"`
	Number      int     `json:"number"`
	Status      string  `json:"status"`
	Conclusion  *string `json:"conclusion"`
	StartedAt   *string `json:"started_at"`
	CompletedAt *string `json:"completed_at"`
}

type wireJob struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	Conclusion  *string    `json:"conclusion"`
	StartedAt   *string    `json:"started_at"`
	CompletedAt *string    `json:"completed_at"`
	Steps       []wireStep `json:"steps"`
	RunnerName  string     `json:"runner_name"`
	Labels      []string   `json:"labels"`
}

type wireJobList struct {
	TotalCount int       `json:"total_count"`
	Jobs       []wireJob `json:"jobs"`
}

type wireArtifact struct {
	Name        string  `json:"name"`
	SizeInBytes int64   `json:"size_in_bytes"`
	Expired     bool    `json:"expired"`
	CreatedAt   *string `json:"created_at"`
	ExpiresAt   *string `json:"expires_at"`
}

type wireArtifactList struct {
	TotalCount int            `json:"total_count"`
	Artifacts  []wireArtifact `json:"artifacts"`
}

type wireRepository struct {
	FullName string `json:"full_name"`
	Size     int64  `json:"size"`
}

// ListJobs returns all jobs of the run, following pagination.
func (c *Client) ListJobs(ctx context.Context, owner, repo string, runID int64) ([]model.RawJob, error) {
	var jobs []model.RawJob
	for page := 1; ; page++ {
		path := fmt.Sprintf("/repos/%s/%s/actions/runs/%d/jobs", owner, repo, runID)
		var list wireJobList
		if err := c.get(ctx, path, page, &list); err != nil {
			return nil, fmt.Errorf("list jobs: %w", err)
		}
		for _, j := range list.Jobs {
			jobs = append(jobs, toRawJob(j))
		}
		if len(jobs) >= list.TotalCount || len(list.Jobs) == 0 {
			return jobs, nil
		}
	}
}

// ListArtifacts returns all artifacts of the run, following pagination.
func (c *Client) ListArtifacts(ctx context.Context, owner, repo string, runID int64) ([]model.Artifact, error) {
	var artifacts []model.Artifact
	for page := 1; ; page++ {
		path := fmt.Sprintf("/repos/%s/%s/actions/runs/%d/artifacts", owner, repo, runID)
		var list wireArtifactList
		if err := c.get(ctx, path, page, &list); err != nil {
			return nil, fmt.Errorf("list artifacts: %w", err)
		}
		for _, a := range list.Artifacts {
			artifacts = append(artifacts, model.Artifact{
				Name:      a.Name,
				SizeBytes: a.SizeInBytes,
				Expired:   a.Expired,
				CreatedAt: parseTime(a.CreatedAt),
				ExpiresAt: parseTime(a.ExpiresAt),
			})
		}
		if len(artifacts) >= list.TotalCount || len(list.Artifacts) == 0 {
			return artifacts, nil
		}
	}
}

// GetRepository fetches repository metadata (notably size in KB).
func (c *Client) GetRepository(ctx context.Context, owner, repo string) (*model.Repository, error) {
	var wire wireRepository
	if err := c.get(ctx, fmt.Sprintf("/repos/%s/%s", owner, repo), 0, &wire); err != nil {
		return nil, fmt.Errorf("get repository: %w", err)
	}
	return &model.Repository{FullName: wire.FullName, SizeKB: wire.Size}, nil
}

// get performs one GET request and decodes the JSON body. page 0 means the
// endpoint is not paginated.
func (c *Client) get(ctx context.Context, path string, page int, out any) error {
	u := c.baseURL + path
	if page > 0 {
		q := url.Values{}
		q.Set("per_page", fmt.Sprintf("%d", perPage))
		q.Set("page", fmt.Sprintf("%d", page))
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: unexpected status %d: %s", path, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func toRawJob(j wireJob) model.RawJob {
	job := model.RawJob{
		ID:          j.ID,
		Name:        j.Name,
		Status:      model.Status(j.Status),
		Conclusion:  toConclusion(j.Conclusion),
		StartedAt:   parseTime(j.StartedAt),
		CompletedAt: parseTime(j.CompletedAt),
		RunnerName:  j.RunnerName,
		Labels:      j.Labels,
	}
	for _, s := range j.Steps {
		job.Steps = append(job.Steps, model.RawStep{
			Name:        s.Name,
			Number:      s.Number,
			Status:      model.Status(s.Status),
			Conclusion:  toConclusion(s.Conclusion),
			StartedAt:   parseTime(s.StartedAt),
			CompletedAt: parseTime(s.CompletedAt),
		})
	}
	return job
}

func toConclusion(s *string) *model.Conclusion {
	if s == nil {
		return nil
	}
	c := model.Conclusion(*s)
	return &c
}

// parseTime parses an RFC 3339 timestamp, mapping null and malformed
// values to nil.
func parseTime(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil
	}
	return &t
}
