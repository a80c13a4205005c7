package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"doseedge/config"
)

// Client talks to the remote dosing backend's HTTP API. Credentials are held
// by the client and attached per request; nothing is read from ambient state.
type Client struct {
	baseURL string
	token   string
	http    http.Client
}

// NewClient creates a backend client from config.
func NewClient(cfg *config.BackendConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		token:   cfg.Token,
		http:    http.Client{Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(nil))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var ack ackResponse
		if json.NewDecoder(resp.Body).Decode(&ack) == nil && ack.Error != "" {
			return fmt.Errorf("backend %s: %s (status %d)", path, ack.Error, resp.StatusCode)
		}
		return fmt.Errorf("backend %s returned %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// ActiveMaterial fetches the current active material. Returns (nil, nil) when
// the backend reports no pending material.
func (c *Client) ActiveMaterial(ctx context.Context) (*ActiveMaterial, error) {
	var resp activeResponse
	if err := c.do(ctx, "GET", "/api/recipe_materials/active", &resp); err != nil {
		return nil, err
	}
	// A message-only body means no verified order with pending materials.
	if resp.RecipeName == "" {
		return nil, nil
	}
	m := resp.ActiveMaterial
	return &m, nil
}

// WeighAndUpdate asks the backend to evaluate the scale against the current
// material's set point and record the dose if reached.
func (c *Client) WeighAndUpdate(ctx context.Context) (WeighResult, error) {
	var resp weighResponse
	if err := c.do(ctx, "POST", "/api/recipe_materials/weigh-and-update", &resp); err != nil {
		return WeighResult{}, err
	}

	res := WeighResult{
		Data:           resp.Data,
		ResetDone:      resp.ResetDone,
		TotalRemaining: resp.TotalRemaining,
		Message:        resp.Message,
	}
	switch {
	case resp.Success:
		res.Outcome = WeighDosed
	case resp.Reason == "overweight":
		res.Outcome = WeighOverweight
	default:
		res.Outcome = WeighPending
	}
	return res, nil
}

// BypassPending marks all pending materials of a recipe as rejected.
// Returns the backend's human-readable acknowledgement.
func (c *Client) BypassPending(ctx context.Context, recipeID int64) (string, error) {
	var ack ackResponse
	path := fmt.Sprintf("/api/recipe_materials/bypass/%d", recipeID)
	if err := c.do(ctx, "POST", path, &ack); err != nil {
		return "", err
	}
	return ack.Message, nil
}

// StartScanner asks the backend to start the barcode scanner listener.
func (c *Client) StartScanner(ctx context.Context) error {
	return c.do(ctx, "POST", "/api/start-scanner", nil)
}

// StopScanner asks the backend to stop the barcode scanner listener.
func (c *Client) StopScanner(ctx context.Context) error {
	return c.do(ctx, "POST", "/api/stop-scanner", nil)
}
