package api

import (
	"context"
	"net/http"
	"strings"
)

// Login authenticates with either an email address or a phone number,
// decided by the presence of "@" (the backend accepts both shapes).
func (c *Client) Login(ctx context.Context, emailOrPhone, password string) (*AuthResponse, error) {
	body := map[string]string{"password": password}
	if strings.Contains(emailOrPhone, "@") {
		body["email"] = emailOrPhone
	} else {
		body["phone_number"] = emailOrPhone
	}
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login/", body, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account and returns the same payload as Login.
func (c *Client) Register(ctx context.Context, in RegisterInput) (*AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register/", in, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}
