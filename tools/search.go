// Web search via the Serper API
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const serperEndpoint = "https://google.serper.dev/search"

// ErrNoSearchKey is returned when no Serper API key is configured.
var ErrNoSearchKey = errors.New("serper api key not configured")

// SearchResult is one organic search hit.
type SearchResult struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet,omitempty"`
	Position int    `json:"position,omitempty"`
}

// SearchClient queries Serper (Google results, China locale).
type SearchClient struct {
	http     *HTTPClient
	apiKey   string
	endpoint string
}

// NewSearchClient returns a Serper client; endpoint may be empty for the
// public API.
func NewSearchClient(hc *HTTPClient, apiKey, endpoint string) *SearchClient {
	if endpoint == "" {
		endpoint = serperEndpoint
	}
	return &SearchClient{http: hc, apiKey: apiKey, endpoint: endpoint}
}

type serperRequest struct {
	Q        string `json:"q"`
	GL       string `json:"gl"`
	Location string `json:"location"`
	HL       string `json:"hl"`
	Page     int    `json:"page"`
}

type serperResponse struct {
	Organic []SearchResult `json:"organic"`
}

// Search pages through results until resultNum hits are collected or a page
// comes back without organic results.
func (c *SearchClient) Search(ctx context.Context, query string, resultNum int) ([]SearchResult, error) {
	if c.apiKey == "" {
		return nil, ErrNoSearchKey
	}
	if resultNum <= 0 {
		resultNum = 10
	}
	var results []SearchResult
	for page := 1; len(results) < resultNum; page++ {
		organic, err := c.page(ctx, query, page)
		if err != nil {
			return nil, err
		}
		if len(organic) == 0 {
			break
		}
		results = append(results, organic...)
	}
	if len(results) > resultNum {
		results = results[:resultNum]
	}
	return results, nil
}

func (c *SearchClient) page(ctx context.Context, query string, page int) ([]SearchResult, error) {
	body, err := json.Marshal(serperRequest{
		Q:        query,
		GL:       "cn",
		Location: "China",
		HL:       "zh-cn",
		Page:     page,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search %q: HTTP %d: %s", query, resp.StatusCode, Truncate(string(raw), 200))
	}
	var parsed serperResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("search %q: decode: %w", query, err)
	}
	return parsed.Organic, nil
}

// WebSearchTool exposes SearchClient to the model.
type WebSearchTool struct {
	client *SearchClient
}

func NewWebSearchTool(client *SearchClient) *WebSearchTool {
	return &WebSearchTool{client: client}
}

func (t *WebSearchTool) Name() string {
	return "web_search"
}

func (t *WebSearchTool) Description() string {
	return "Search the web with Google (via Serper); returns title, link and snippet for each hit."
}

func (t *WebSearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Search keywords",
			},
			"count": map[string]any{
				"type":        "integer",
				"description": "Number of results, default 10",
			},
			"linksOnly": map[string]any{
				"type":        "boolean",
				"description": "Return only title and link, without snippets",
			},
		},
		"required": []string{"query"},
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	query := GetString(args, "query")
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	count := GetInt(args, "count")
	if count <= 0 {
		count = 10
	}
	results, err := t.client.Search(ctx, query, count)
	if err != nil {
		return nil, err
	}
	if GetBool(args, "linksOnly") {
		for i := range results {
			results[i].Snippet = ""
		}
	}
	return results, nil
}
