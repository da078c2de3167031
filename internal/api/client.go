package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"resty.dev/v3"
)

// Client talks to a running daemon over its HTTP API.
type Client struct {
	http *resty.Client
}

// NewClient constructs a client for the daemon at bind. The token is
// optional; when set it is sent as a bearer credential.
func NewClient(bind, token string) *Client {
	base := strings.TrimSpace(bind)
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	client := resty.New().
		SetBaseURL(base).
		SetTimeout(30 * time.Second).
		SetHeader("Accept", "application/json")
	if token != "" {
		client.SetHeader("Authorization", "Bearer "+token)
	}
	return &Client{http: client}
}

// Close releases the underlying transport.
func (c *Client) Close() error {
	return c.http.Close()
}

func apiError(resp *resty.Response) error {
	if payload, ok := resp.Error().(*ErrorResponse); ok && payload != nil && payload.Error != "" {
		return fmt.Errorf("daemon: %s", payload.Error)
	}
	return fmt.Errorf("daemon: unexpected status %d", resp.StatusCode())
}

// Submit creates a new job from a local path or URL.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (JobView, error) {
	var out JobResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&ErrorResponse{}).
		Post("/api/jobs")
	if err != nil {
		return JobView{}, fmt.Errorf("submit job: %w", err)
	}
	if !resp.IsSuccess() {
		return JobView{}, apiError(resp)
	}
	return out.Job, nil
}

// SubmitUpload streams a local file to the daemon and creates a job for
// the uploaded copy. Options travel as multipart form fields.
func (c *Client) SubmitUpload(ctx context.Context, path string, req SubmitRequest) (JobView, error) {
	fields := map[string]string{}
	if req.Model != "" {
		fields["model"] = req.Model
	}
	if req.Language != "" {
		fields["language"] = req.Language
	}
	if req.Format != "" {
		fields["format"] = req.Format
	}
	if req.MaxLineLength > 0 {
		fields["maxLineLength"] = fmt.Sprintf("%d", req.MaxLineLength)
	}
	if req.Device != "" {
		fields["device"] = req.Device
	}
	if req.HalfPrecision {
		fields["halfPrecision"] = "true"
	}

	var out JobResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetFile("media", path).
		SetFormData(fields).
		SetResult(&out).
		SetError(&ErrorResponse{}).
		Post("/api/jobs/upload")
	if err != nil {
		return JobView{}, fmt.Errorf("upload job: %w", err)
	}
	if !resp.IsSuccess() {
		return JobView{}, apiError(resp)
	}
	return out.Job, nil
}

// List fetches jobs, optionally filtered by status.
func (c *Client) List(ctx context.Context, statuses ...string) ([]JobView, error) {
	req := c.http.R().
		SetContext(ctx).
		SetError(&ErrorResponse{})
	for _, status := range statuses {
		req.SetQueryParam("status", status)
	}
	var out JobListResponse
	resp, err := req.SetResult(&out).Get("/api/jobs")
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, apiError(resp)
	}
	return out.Jobs, nil
}

// Get fetches a single job by id.
func (c *Client) Get(ctx context.Context, id string) (JobView, error) {
	var out JobResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&ErrorResponse{}).
		Get("/api/jobs/" + id)
	if err != nil {
		return JobView{}, fmt.Errorf("get job: %w", err)
	}
	if !resp.IsSuccess() {
		return JobView{}, apiError(resp)
	}
	return out.Job, nil
}

// Result downloads the finished subtitle document to dest.
func (c *Client) Result(ctx context.Context, id, dest string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetSaveResponse(true).
		SetOutputFileName(dest).
		Get("/api/jobs/" + id + "/result")
	if err != nil {
		return fmt.Errorf("fetch result: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("daemon: unexpected status %d", resp.StatusCode())
	}
	return nil
}

// Cancel requests cancellation of a job.
func (c *Client) Cancel(ctx context.Context, id string) (bool, error) {
	var out CancelResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&ErrorResponse{}).
		Post("/api/jobs/" + id + "/cancel")
	if err != nil {
		return false, fmt.Errorf("cancel job: %w", err)
	}
	if !resp.IsSuccess() {
		return false, apiError(resp)
	}
	return out.Cancelled, nil
}

// Delete removes a job record and its artifacts.
func (c *Client) Delete(ctx context.Context, id string) (bool, error) {
	var out DeleteResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&ErrorResponse{}).
		Delete("/api/jobs/" + id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	if !resp.IsSuccess() {
		return false, apiError(resp)
	}
	return out.Deleted, nil
}

// Status fetches daemon runtime information.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var out DaemonStatus
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&ErrorResponse{}).
		Get("/api/status")
	if err != nil {
		return DaemonStatus{}, fmt.Errorf("daemon status: %w", err)
	}
	if !resp.IsSuccess() {
		return DaemonStatus{}, apiError(resp)
	}
	return out, nil
}
