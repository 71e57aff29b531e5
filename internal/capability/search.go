package capability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/scribelab/scribe/config"
	"github.com/scribelab/scribe/internal/report"
)

// snippetLimit caps how much of a result body is kept per source.
const snippetLimit = 300

// Searcher is the web-search capability consumed by the researcher agent.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]report.Source, error)
}

// SerperClient queries the Serper search API. A non-2xx response is a hard
// failure for the call; retrying is the caller's decision.
type SerperClient struct {
	apiKey     string
	endpoint   string
	maxResults int
	client     *http.Client
}

// NewSerperClient builds a search client from config.
func NewSerperClient(cfg config.SearchConfig) *SerperClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}
	return &SerperClient{
		apiKey:     cfg.APIKey,
		endpoint:   cfg.Endpoint,
		maxResults: maxResults,
		client:     &http.Client{Timeout: timeout},
	}
}

type serperResult struct {
	Title    string  `json:"title"`
	Link     string  `json:"link"`
	Snippet  string  `json:"snippet"`
	Date     string  `json:"date"`
	Position float64 `json:"position"`
}

type serperResponse struct {
	Organic []serperResult `json:"organic"`
}

// Search returns up to maxResults ranked sources for query.
func (c *SerperClient) Search(ctx context.Context, query string, maxResults int) ([]report.Source, error) {
	if maxResults <= 0 || maxResults > c.maxResults {
		maxResults = c.maxResults
	}
	body, err := json.Marshal(map[string]interface{}{"q": query, "num": maxResults})
	if err != nil {
		return nil, fmt.Errorf("encoding search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	var parsed serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	sources := make([]report.Source, 0, len(parsed.Organic))
	for i, r := range parsed.Organic {
		if i >= maxResults {
			break
		}
		var relevance float64
		if r.Position > 0 {
			relevance = 1 / r.Position
		}
		sources = append(sources, report.Source{
			Title:     r.Title,
			URL:       r.Link,
			Snippet:   TruncateSnippet(r.Snippet, snippetLimit),
			Published: r.Date,
			Relevance: relevance,
		})
	}
	return sources, nil
}

// TruncateSnippet bounds s to limit runes, appending an ellipsis marker when
// anything was cut.
func TruncateSnippet(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
