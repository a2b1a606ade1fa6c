package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ifgstack/internal/services"
)

// HTTPCatalog queries a GRQ/Elasticsearch index by document id.
type HTTPCatalog struct {
	baseURL    string
	index      string
	httpClient *http.Client
}

// NewHTTPCatalog creates an HTTP-backed catalog.
func NewHTTPCatalog(baseURL, index string, timeout time.Duration) *HTTPCatalog {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPCatalog{
		baseURL:    strings.TrimRight(baseURL, "/"),
		index:      index,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type countQuery struct {
	Query struct {
		Term map[string]string `json:"term"`
	} `json:"query"`
}

// Exists counts documents whose _id equals id. A missing index counts as absent.
func (c *HTTPCatalog) Exists(ctx context.Context, id string) (bool, error) {
	endpoint := fmt.Sprintf("%s/%s/_count", c.baseURL, url.PathEscape(c.index))

	var query countQuery
	query.Query.Term = map[string]string{"_id": id}
	body, err := json.Marshal(query)
	if err != nil {
		return false, services.Wrap(services.ErrCatalogUnavailable, "catalog", "encode query", "Failed to encode count query", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return false, services.Wrap(services.ErrCatalogUnavailable, "catalog", "build request", "Failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, services.Wrap(services.ErrCatalogUnavailable, "catalog", "query", "Failed to reach "+c.baseURL, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var payload struct {
			Count int64 `json:"count"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return false, services.Wrap(services.ErrCatalogUnavailable, "catalog", "decode", "Invalid count response", err)
		}
		return payload.Count > 0, nil
	case http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, services.Wrap(services.ErrCatalogUnavailable, "catalog", "query",
			fmt.Sprintf("unexpected status code: %d", resp.StatusCode), fmt.Errorf("%s", strings.TrimSpace(string(snippet))))
	}
}

// Register is a no-op: the search index ingests bundles through their
// dataset descriptor.
func (c *HTTPCatalog) Register(context.Context, Dataset) error { return nil }

// Close implements Catalog.
func (c *HTTPCatalog) Close() error { return nil }
