package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	config "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Config"
	metrics "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Metrics"
	pdsmodels "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Models"
)

// ErrCircuitOpen is returned without calling the collaborator
var ErrCircuitOpen = errors.New("circuit breaker is open")

// PushClient calls the push-dispatch collaborator. One attempt per call;
// the http.Client timeout bounds every attempt.
type PushClient struct {
	dispatchURL    string
	serviceKey     string
	httpClient     *http.Client
	circuitBreaker *CircuitBreaker
}

// NewPushClient creates a push client from configuration
func NewPushClient(cfg config.PushConfig) *PushClient {
	return &PushClient{
		dispatchURL: cfg.DispatchURL,
		serviceKey:  cfg.ServiceKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		circuitBreaker: NewCircuitBreaker(cfg.BreakerMaxFailures, cfg.BreakerResetTimeout),
	}
}

type pushResponse struct {
	Success *bool    `json:"success,omitempty"`
	Sent    int      `json:"sent"`
	Failed  int      `json:"failed,omitempty"`
	Errors  []string `json:"errors,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Send dispatches one notification and returns the collaborator's counts.
// A 2xx answer with sent=0 is not an error.
func (c *PushClient) Send(ctx context.Context, n pdsmodels.Notification) (*pdsmodels.PushResult, error) {
	if !c.circuitBreaker.canExecute() {
		return nil, ErrCircuitOpen
	}

	start := time.Now()
	result, err := c.send(ctx, n)
	metrics.PushLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		c.circuitBreaker.onFailure()
		return nil, err
	}
	c.circuitBreaker.onSuccess()
	return result, nil
}

func (c *PushClient) send(ctx context.Context, n pdsmodels.Notification) (*pdsmodels.PushResult, error) {
	resp, err := c.makeRequest(ctx, http.MethodPost, n)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("push service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var response pushResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode push response: %w", err)
	}

	if response.Success != nil && !*response.Success {
		msg := response.Error
		if msg == "" {
			msg = "push service reported failure"
		}
		return nil, errors.New(msg)
	}

	return &pdsmodels.PushResult{
		Sent:   response.Sent,
		Failed: response.Failed,
		Errors: response.Errors,
	}, nil
}

// makeRequest makes an HTTP request to the push service
func (c *PushClient) makeRequest(ctx context.Context, method string, body interface{}) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.dispatchURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.serviceKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "pds-alarm-dispatcher")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("push request failed: %w", err)
	}
	return resp, nil
}

// GetCircuitBreakerStatus returns the current circuit breaker status for monitoring
func (c *PushClient) GetCircuitBreakerStatus() map[string]interface{} {
	return c.circuitBreaker.Status()
}
