package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxStatusBody caps how much of a status response is read
const maxStatusBody = 256

// PartStatusClient calls the REST part status service. Calls are never
// retried; the operator re-scans instead.
type PartStatusClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewPartStatusClient creates a client with a bounded per-call timeout
func NewPartStatusClient(baseURL string, timeout time.Duration) *PartStatusClient {
	return &PartStatusClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// PartStatus fetches GET {base}/part-status-plain/{code}. A 404 maps to
// PartStatusNotFound; any other non-2xx status, an unknown token or a
// transport failure is returned as an error.
func (c *PartStatusClient) PartStatus(ctx context.Context, baseURL, code string) (PartStatus, error) {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = c.baseURL
	}
	if base == "" {
		return "", fmt.Errorf("part status service URL is not configured")
	}

	endpoint := fmt.Sprintf("%s/part-status-plain/%s", base, url.PathEscape(code))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build part status request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch part status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return PartStatusNotFound, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("part status service returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStatusBody))
	if err != nil {
		return "", fmt.Errorf("failed to read part status: %w", err)
	}

	status := PartStatus(strings.ToUpper(strings.TrimSpace(string(body))))
	if !knownPartStatuses[status] {
		return "", fmt.Errorf("unexpected part status %q", status)
	}
	return status, nil
}
