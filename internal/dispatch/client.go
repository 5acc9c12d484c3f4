// Package dispatch talks to the external dispatch provider that routes orders to drivers.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrRequestFailed is returned when the provider answers with a non-2xx status.
var ErrRequestFailed = errors.New("dispatch provider request failed")

// DriverRegistration is the payload for registering a driver with the provider.
type DriverRegistration struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phoneNumber"`
}

// RemoteDriver is a driver as known by the provider.
type RemoteDriver struct {
	ID    string
	Name  string
	Email string
	Phone string
}

// Client is the subset of the provider API this service consumes.
type Client interface {
	// RegisterDriver creates the driver on the provider and returns its opaque id.
	RegisterDriver(ctx context.Context, reg DriverRegistration) (string, error)

	// ListDrivers returns every driver the provider knows.
	ListDrivers(ctx context.Context) ([]RemoteDriver, error)

	// UnassignOrder removes the current driver assignment of an order.
	UnassignOrder(ctx context.Context, orderID string) error

	// SetOrderTargets restricts which drivers may be offered an order.
	SetOrderTargets(ctx context.Context, orderID string, driverIDs []string, notes string) error
}

// HTTPClient implements Client over the provider's REST API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewHTTPClient creates a provider client.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// Ensure HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)

// RegisterDriver handles POST /v1/drivers.
func (c *HTTPClient) RegisterDriver(ctx context.Context, reg DriverRegistration) (string, error) {
	var created struct {
		ID json.Number `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/drivers", reg, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("%w: response carried no driver id", ErrRequestFailed)
	}
	return created.ID.String(), nil
}

// ListDrivers handles GET /v1/drivers.
func (c *HTTPClient) ListDrivers(ctx context.Context) ([]RemoteDriver, error) {
	var raw []struct {
		ID          json.Number `json:"id"`
		Name        string      `json:"name"`
		Email       string      `json:"email"`
		PhoneNumber string      `json:"phoneNumber"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/drivers", nil, &raw); err != nil {
		return nil, err
	}

	drivers := make([]RemoteDriver, 0, len(raw))
	for _, d := range raw {
		drivers = append(drivers, RemoteDriver{
			ID:    d.ID.String(),
			Name:  d.Name,
			Email: d.Email,
			Phone: d.PhoneNumber,
		})
	}
	return drivers, nil
}

// UnassignOrder handles PUT /orders/unassign/{orderId}.
func (c *HTTPClient) UnassignOrder(ctx context.Context, orderID string) error {
	return c.do(ctx, http.MethodPut, "/orders/unassign/"+url.PathEscape(orderID), nil, nil)
}

// SetOrderTargets handles PUT /orders/{orderId}.
func (c *HTTPClient) SetOrderTargets(ctx context.Context, orderID string, driverIDs []string, notes string) error {
	body := struct {
		TargetDriverIDs []string `json:"targetDriverIds"`
		Notes           string   `json:"notes,omitempty"`
	}{TargetDriverIDs: driverIDs, Notes: notes}
	return c.do(ctx, http.MethodPut, "/orders/"+url.PathEscape(orderID), body, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s %s: status %d: %s", ErrRequestFailed, method, path, resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}

	if out == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
