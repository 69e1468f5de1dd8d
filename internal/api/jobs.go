package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// jobPage is the paginated envelope some deployments return for /jobs/.
type jobPage struct {
	Data    []Job `json:"data"`
	Results []Job `json:"results"`
}

// ListJobs fetches all jobs visible to the caller's role. The server scopes
// employers to their own jobs and workers to open jobs plus their assigned
// ones. Both the bare-array and paginated response shapes are accepted; an
// empty list is a valid result, not an error.
func (c *Client) ListJobs(ctx context.Context) ([]Job, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/jobs/", nil, &raw, true); err != nil {
		return nil, err
	}
	var jobs []Job
	if err := json.Unmarshal(raw, &jobs); err == nil {
		return jobs, nil
	}
	var page jobPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, &RequestError{Message: fmt.Sprintf("parsing job list: %v", err)}
	}
	if page.Data != nil {
		return page.Data, nil
	}
	return page.Results, nil
}

// GetJob fetches one job by id.
func (c *Client) GetJob(ctx context.Context, jobID int) (*Job, error) {
	var out Job
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/jobs/%d/", jobID), nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateJob posts a new open job. Budget is passed through as the exact
// string the user typed; the server owns decimal handling.
func (c *Client) CreateJob(ctx context.Context, title, description, budget string) (*Job, error) {
	body := map[string]string{
		"title":       title,
		"description": description,
		"budget":      budget,
	}
	var out Job
	if err := c.do(ctx, http.MethodPost, "/jobs/", body, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// AssignApplicant patches the job with applicant_id, the sanctioned assign
// path. The server accepts employee_id as a legacy alternative; this client
// never emits it.
func (c *Client) AssignApplicant(ctx context.Context, jobID, applicantID int) (*Job, error) {
	body := map[string]int{"applicant_id": applicantID}
	var out Job
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/jobs/%d/", jobID), body, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateStatus patches the job status directly (employer cancel path).
func (c *Client) UpdateStatus(ctx context.Context, jobID int, status string) (*Job, error) {
	body := map[string]string{"status": status}
	var out Job
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/jobs/%d/", jobID), body, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// Apply submits the worker's application for a job. A repeat apply answers
// with message "Already applied" and the existing application id.
func (c *Client) Apply(ctx context.Context, jobID int) (*ApplyResult, error) {
	var out ApplyResult
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/jobs/%d/apply/", jobID), nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// WithdrawApplication removes the worker's pending application. The server
// answers 404 when no pending application exists.
func (c *Client) WithdrawApplication(ctx context.Context, jobID int) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/jobs/%d/withdraw-application/", jobID), nil, nil, true)
}

// Applicants lists pending applicants for a job (employer only), each with
// a server-computed work-history snapshot.
func (c *Client) Applicants(ctx context.Context, jobID int) ([]Applicant, error) {
	var out []Applicant
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/jobs/%d/applicants/", jobID), nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// CompleteJob marks the job done, which triggers the server-side escrow
// release. workSummary may be empty.
func (c *Client) CompleteJob(ctx context.Context, jobID int, workSummary string) error {
	body := map[string]string{}
	if workSummary != "" {
		body["work_summary"] = workSummary
	}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/jobs/%d/complete/", jobID), body, nil, true)
}

// InitiateCheckout requests a payment intent for funding the job's escrow.
func (c *Client) InitiateCheckout(ctx context.Context, jobID int) (*CheckoutIntent, error) {
	var out CheckoutIntent
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/jobs/%d/initiate-paystack/", jobID), nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// Escrow fetches the escrow projection for a job. Jobs with no funding
// action yet come back as a zero record (see EscrowInfo.Zero).
func (c *Client) Escrow(ctx context.Context, jobID int) (*EscrowInfo, error) {
	var out EscrowInfo
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/jobs/%d/escrow/", jobID), nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}
