package datasource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vanderheijden86/jobwork/pkg/model"
)

// APIPath is the endpoint served by jw serve.
const APIPath = "/api/v1/get"

// DefaultHTTPTimeout bounds a remote load when the context has no deadline.
const DefaultHTTPTimeout = 30 * time.Second

// HTTPReader loads records from a remote jw server.
type HTTPReader struct {
	client  *http.Client
	baseURL string
}

// NewHTTPReader returns a reader for source. A nil client uses a client
// with DefaultHTTPTimeout.
func NewHTTPReader(source DataSource, client *http.Client) (*HTTPReader, error) {
	if source.Type != SourceTypeHTTP {
		return nil, fmt.Errorf("source is not HTTP: %s", source.Type)
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &HTTPReader{client: client, baseURL: source.Path}, nil
}

// LoadRecords fetches the JSON array of records.
func (r *HTTPReader) LoadRecords(ctx context.Context) ([]model.Record, error) {
	url := r.baseURL + APIPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: [%d] %s", url, resp.StatusCode, truncate(string(body), 200))
	}

	recs, err := model.DecodeRecords(body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	return recs, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
