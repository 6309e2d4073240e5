package orderbook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ExecutionRequest carries one installment to the order-booking system.
type ExecutionRequest struct {
	PlanID         string          `json:"plan_id"`
	PlanType       string          `json:"plan_type"`
	ClientID       string          `json:"client_id"`
	SchemeID       string          `json:"scheme_id,omitempty"`
	SourceSchemeID string          `json:"source_scheme_id,omitempty"`
	TargetSchemeID string          `json:"target_scheme_id,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	InstallmentNo  int             `json:"installment_no"`
	ExecutionDate  string          `json:"execution_date"`
}

// Result is the gateway outcome. A failed booking is a value, not an
// error: Reason carries the opaque cause and the scheduler retries it
// like any other failure.
type Result struct {
	Success     bool   `json:"success"`
	ReferenceID string `json:"reference_id,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Gateway books one installment. Implementations must return within the
// caller's context deadline; transport errors surface as err and are
// treated as failed attempts upstream.
type Gateway interface {
	Execute(ctx context.Context, req ExecutionRequest) (Result, error)
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("order book API error (%d): %s", e.Status, e.Body)
}

// Client is the HTTP implementation of Gateway.
type Client struct {
	host       string
	httpClient *http.Client
}

func NewClient(httpClient *http.Client, host string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	host = strings.TrimRight(host, "/")
	return &Client{
		host:       host,
		httpClient: httpClient,
	}
}

func (c *Client) Execute(ctx context.Context, execReq ExecutionRequest) (Result, error) {
	payload, err := json.Marshal(execReq)
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/v1/orders/execute", bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return Result{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return result, nil
}
