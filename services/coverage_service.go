// Package services holds clients for the external collaborators the review
// workflow calls out to, plus the Redis-backed search cache.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/TicketWorks/ticket-review-backend/types"
)

// CoverageService computes driver coverage/eligibility for a ticket date. The
// computation itself is an opaque black box owned by another system; only its
// three outputs matter here.
type CoverageService interface {
	ComputeCoverage(ctx context.Context, partyRef, ticketDate string) (types.CoverageResult, error)
}

// CoverageClient calls the coverage computation over HTTP.
type CoverageClient struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
}

// CoverageClientOption configures the client.
type CoverageClientOption func(*CoverageClient)

// WithCoverageHTTPClient sets a custom HTTP client.
func WithCoverageHTTPClient(client *http.Client) CoverageClientOption {
	return func(c *CoverageClient) {
		c.httpClient = client
	}
}

// NewCoverageClient creates a coverage client.
func NewCoverageClient(apiURL, apiKey string, opts ...CoverageClientOption) *CoverageClient {
	c := &CoverageClient{
		apiURL: apiURL,
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type coverageRequest struct {
	PartyRef   string `json:"partyRef"`
	TicketDate string `json:"ticketDate,omitempty"`
}

// ComputeCoverage invokes the external computation.
func (c *CoverageClient) ComputeCoverage(ctx context.Context, partyRef, ticketDate string) (types.CoverageResult, error) {
	body, err := json.Marshal(coverageRequest{PartyRef: partyRef, TicketDate: ticketDate})
	if err != nil {
		return types.CoverageResult{}, fmt.Errorf("failed to marshal coverage request: %w", err)
	}

	url := fmt.Sprintf("%s/coverage/compute", c.apiURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return types.CoverageResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return types.CoverageResult{}, fmt.Errorf("coverage request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.CoverageResult{}, fmt.Errorf("coverage computation failed with status %d", resp.StatusCode)
	}

	var result types.CoverageResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return types.CoverageResult{}, fmt.Errorf("failed to decode coverage response: %w", err)
	}
	return result, nil
}
