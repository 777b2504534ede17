package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/TicketWorks/ticket-review-backend/store"
	"github.com/TicketWorks/ticket-review-backend/types"
)

// Ensure CaseAPIClient covers the case-side store contracts.
var (
	_ store.CaseStore     = (*CaseAPIClient)(nil)
	_ store.DocumentStore = (*CaseAPIClient)(nil)
	_ store.OptionStore   = (*CaseAPIClient)(nil)
	_ store.TicketStore   = (*CaseAPIClient)(nil)
)

// CaseAPIClient talks to the case management backend that owns the case
// records, the scanned documents with their OCR payloads, the enumeration
// option lists, and ticket record creation.
type CaseAPIClient struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
}

// NewCaseAPIClient creates a case API client.
func NewCaseAPIClient(apiURL, apiKey string) *CaseAPIClient {
	return &CaseAPIClient{
		apiURL: apiURL,
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// GetCase fetches the primary case record.
func (c *CaseAPIClient) GetCase(ctx context.Context, caseID string) (*types.CaseRecord, error) {
	var record types.CaseRecord
	if err := c.getJSON(ctx, fmt.Sprintf("%s/cases/%s", c.apiURL, url.PathEscape(caseID)), &record); err != nil {
		return nil, fmt.Errorf("failed to fetch case: %w", err)
	}
	return &record, nil
}

// GetDocuments fetches the case's scanned files with their OCR payloads plus
// the field metadata.
func (c *CaseAPIClient) GetDocuments(ctx context.Context, caseID string) (*types.DocumentSet, error) {
	var docSet types.DocumentSet
	if err := c.getJSON(ctx, fmt.Sprintf("%s/cases/%s/documents", c.apiURL, url.PathEscape(caseID)), &docSet); err != nil {
		return nil, fmt.Errorf("failed to fetch documents: %w", err)
	}
	return &docSet, nil
}

// GetOptions fetches an enumerated field's option list.
func (c *CaseAPIClient) GetOptions(ctx context.Context, fieldName string) ([]types.Option, error) {
	var options []types.Option
	if err := c.getJSON(ctx, fmt.Sprintf("%s/options/%s", c.apiURL, url.PathEscape(fieldName)), &options); err != nil {
		return nil, fmt.Errorf("failed to fetch options for %s: %w", fieldName, err)
	}
	return options, nil
}

// CreateTicket creates the final ticket record from the committed field map
// and returns the new record id. Backend rejections (including citation
// uniqueness violations) come back verbatim in the error text.
func (c *CaseAPIClient) CreateTicket(ctx context.Context, fields map[string]string) (string, error) {
	body, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to marshal ticket fields: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/tickets", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ticket creation failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Message string `json:"message"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&apiErr); decodeErr == nil && apiErr.Message != "" {
			// The raw backend message matters: citation uniqueness violations
			// are detected by pattern-matching it.
			return "", fmt.Errorf("%s", apiErr.Message)
		}
		return "", fmt.Errorf("ticket creation failed with status %d", resp.StatusCode)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("failed to decode ticket response: %w", err)
	}
	return created.ID, nil
}

func (c *CaseAPIClient) getJSON(ctx context.Context, requestURL string, out interface{}) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
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
