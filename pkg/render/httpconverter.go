package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HTTPConverter drives a remote PDF conversion service over its JSON
// API. The service works from each job's transient tree: Report tells
// it how far the export has progressed, Ready asks whether the merged
// PDF has landed.
type HTTPConverter struct {
	base   string
	client *http.Client
}

var _ Converter = (*HTTPConverter)(nil)

// NewHTTPConverter builds a converter client for the service at base.
func NewHTTPConverter(base string) *HTTPConverter {
	return &HTTPConverter{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Report implements Converter.
func (c *HTTPConverter) Report(ctx context.Context, jobID, cursor string) error {
	body, err := json.Marshal(map[string]string{"cursor": cursor})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/v1/conversions/%s/progress", c.base, jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("report conversion progress: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("report conversion progress: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Ready implements Converter.
func (c *HTTPConverter) Ready(ctx context.Context, jobID string) (bool, error) {
	url := fmt.Sprintf("%s/v1/conversions/%s", c.base, jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("poll conversion: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("poll conversion: unexpected status %d", resp.StatusCode)
	}

	var out struct {
		Ready bool `json:"ready"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("poll conversion: %w", err)
	}
	return out.Ready, nil
}
