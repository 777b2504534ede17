package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/TicketWorks/ticket-review-backend/types"
)

// ProcessingService is the extraction pipeline collaborator: it lists source
// files not yet run through extraction and processes them on demand.
type ProcessingService interface {
	FetchUnprocessedSources(ctx context.Context, caseID string) ([]types.UnprocessedSource, error)
	ProcessSourcesNow(ctx context.Context, caseID string) ([]types.ProcessingResult, error)
}

// ProcessingClient calls the extraction pipeline over HTTP.
type ProcessingClient struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
}

// NewProcessingClient creates a processing client. On-demand extraction can
// take a while, so the timeout is deliberately generous.
func NewProcessingClient(apiURL, apiKey string) *ProcessingClient {
	return &ProcessingClient{
		apiURL: apiURL,
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// FetchUnprocessedSources lists case files awaiting extraction.
func (c *ProcessingClient) FetchUnprocessedSources(ctx context.Context, caseID string) ([]types.UnprocessedSource, error) {
	url := fmt.Sprintf("%s/cases/%s/unprocessed-sources", c.apiURL, caseID)
	var sources []types.UnprocessedSource
	if err := c.getJSON(ctx, url, &sources); err != nil {
		return nil, fmt.Errorf("failed to fetch unprocessed sources: %w", err)
	}
	return sources, nil
}

// ProcessSourcesNow runs extraction over every unprocessed source of the case
// and returns one result per file.
func (c *ProcessingClient) ProcessSourcesNow(ctx context.Context, caseID string) ([]types.ProcessingResult, error) {
	url := fmt.Sprintf("%s/cases/%s/process", c.apiURL, caseID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("processing request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("processing failed with status %d", resp.StatusCode)
	}

	var results []types.ProcessingResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode processing results: %w", err)
	}
	return results, nil
}

func (c *ProcessingClient) getJSON(ctx context.Context, url string, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
