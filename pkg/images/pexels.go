package images

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultPexelsBaseURL = "https://api.pexels.com/v1"

// PexelsClient queries the Pexels stock-photo search API.
type PexelsClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// PexelsOption customizes the client.
type PexelsOption func(*PexelsClient)

// WithPexelsBaseURL overrides the API endpoint (used by tests).
func WithPexelsBaseURL(baseURL string) PexelsOption {
	return func(c *PexelsClient) {
		if strings.TrimSpace(baseURL) != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// NewPexelsClient constructs a client with the provided API key.
func NewPexelsClient(apiKey string, options ...PexelsOption) (*PexelsClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("pexels api key required")
	}
	c := &PexelsClient{
		apiKey:     apiKey,
		baseURL:    defaultPexelsBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, option := range options {
		if option != nil {
			option(c)
		}
	}
	return c, nil
}

// Search returns medium-resolution photo URLs for the query, landscape only.
func (c *PexelsClient) Search(ctx context.Context, query string, page, perPage int) ([]string, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 4
	}
	params := url.Values{}
	params.Set("query", query)
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("orientation", "landscape")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", c.apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("pexels api error: %s", resp.Status)
	}
	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(payload.Photos))
	for _, photo := range payload.Photos {
		if photo.Src.Medium != "" {
			urls = append(urls, photo.Src.Medium)
		}
	}
	return urls, nil
}

type searchResponse struct {
	Photos []struct {
		Src struct {
			Medium string `json:"medium"`
		} `json:"src"`
	} `json:"photos"`
}
