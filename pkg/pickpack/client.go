// Package pickpack is the HTTP client for the pick-pack order service. It
// fetches the operator's active order and validates scans against it.
package pickpack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pickline/glasspick/pkg/picking"
)

const basePath = "/api/pickpack"

// Client talks to the pick-pack service. It satisfies picking.Validator.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

var _ picking.Validator = (*Client)(nil)

// New returns a client for the service at baseURL, e.g.
// "https://orders.example.com". Trailing slashes are stripped.
func New(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 5 * time.Second,
			},
		},
		log: log.With().Str("component", "pickpack").Logger(),
	}
}

// GetActiveOrder fetches the user's in-progress order. A 404, or a response
// stating there is no active pick order, returns (nil, nil): having no work
// queued is a normal state, not an error.
func (c *Client) GetActiveOrder(ctx context.Context, userID string) (*picking.Order, error) {
	var order picking.Order
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/picks/user/%s", basePath, userID), nil, &order)
	if err != nil {
		if isNoActiveOrder(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching active order: %w", err)
	}
	return &order, nil
}

// GetOrder fetches one order by ID.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*picking.Order, error) {
	var order picking.Order
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/picks/%s", basePath, orderID), nil, &order); err != nil {
		return nil, fmt.Errorf("fetching order %s: %w", orderID, err)
	}
	return &order, nil
}

// SubmitScan implements picking.Validator.
func (c *Client) SubmitScan(ctx context.Context, orderID, upc string) (picking.ScanResult, error) {
	body := struct {
		UPC string `json:"upc"`
	}{UPC: upc}
	var result picking.ScanResult
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("%s/picks/%s/scan", basePath, orderID), body, &result)
	if err != nil {
		return picking.ScanResult{}, fmt.Errorf("submitting scan: %w", err)
	}
	return result, nil
}

// CompleteOrder implements picking.Validator.
func (c *Client) CompleteOrder(ctx context.Context, orderID string) error {
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("%s/picks/%s/complete", basePath, orderID), nil, nil); err != nil {
		return fmt.Errorf("completing order %s: %w", orderID, err)
	}
	return nil
}

// statusError carries the response status and body for non-2xx replies.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.status, e.body)
}

func isNoActiveOrder(err error) bool {
	se, ok := err.(*statusError)
	if !ok {
		return false
	}
	return se.status == http.StatusNotFound ||
		strings.Contains(strings.ToLower(se.body), "no active pick order")
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log.Debug().Str("method", method).Str("path", path).Msg("request")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(raw))}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
