package api

import (
	"context"
	"fmt"
	"net/http"
)

// Transactions lists deposits (employer) or payouts (worker), newest first.
func (c *Client) Transactions(ctx context.Context) ([]Transaction, error) {
	var out []Transaction
	if err := c.do(ctx, http.MethodGet, "/transactions/", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// WorkersOverview fetches the employer's hired workers and open jobs with
// pending applicants.
func (c *Client) WorkersOverview(ctx context.Context) (*WorkersOverview, error) {
	var out WorkersOverview
	if err := c.do(ctx, http.MethodGet, "/employer/workers-overview/", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

// MyApplications lists the worker's own applications.
func (c *Client) MyApplications(ctx context.Context) ([]MyApplication, error) {
	var out []MyApplication
	if err := c.do(ctx, http.MethodGet, "/employee/my-applications/", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// WorkHistory lists the worker's completed jobs.
func (c *Client) WorkHistory(ctx context.Context) ([]WorkHistoryEntry, error) {
	var out []WorkHistoryEntry
	if err := c.do(ctx, http.MethodGet, "/employee/work-history/", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// Chats lists jobs the current user can message about.
func (c *Client) Chats(ctx context.Context) ([]ChatThread, error) {
	var out []ChatThread
	if err := c.do(ctx, http.MethodGet, "/chats/", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// Messages lists the chat messages for a job, oldest first.
func (c *Client) Messages(ctx context.Context, jobID int) ([]Message, error) {
	var out []Message
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/jobs/%d/messages/", jobID), nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// SendMessage posts one chat message on a job.
func (c *Client) SendMessage(ctx context.Context, jobID int, text string) (*Message, error) {
	body := map[string]string{"text": text}
	var out Message
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/jobs/%d/messages/", jobID), body, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}
