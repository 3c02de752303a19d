package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// apiClient calls the booking API with an operator token.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func (c *apiClient) client() *http.Client {
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	return c.http
}

func (c *apiClient) post(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.baseURL, "/")+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client().Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = resp.Status
		}
		return fmt.Errorf("%s: %s", path, e.Error)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// command runs one operator command line and returns the reply text.
func (c *apiClient) command(ctx context.Context, line string) (string, error) {
	if c.token == "" {
		return "", errors.New("no operator token: run `bookctl login` or set BOOKCTL_TOKEN")
	}
	var out struct {
		Reply string `json:"reply"`
	}
	if err := c.post(ctx, "/v1/admin/commands", map[string]string{"line": line}, &out); err != nil {
		return "", err
	}
	return out.Reply, nil
}

// login exchanges operator credentials for an access token.
func (c *apiClient) login(ctx context.Context, username, password string) (string, error) {
	var out struct {
		Access struct {
			Token string `json:"access_token"`
		} `json:"access"`
	}
	if err := c.post(ctx, "/v1/auth/login", map[string]string{"username": username, "password": password}, &out); err != nil {
		return "", err
	}
	return out.Access.Token, nil
}
