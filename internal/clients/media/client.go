// Package media searches for lecture videos on the YouTube Data API.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/studypath/studypath/internal/breaker"
	"github.com/studypath/studypath/internal/config"
)

var ErrNotConfigured = errors.New("media: no API key configured")

const watchURL = "https://www.youtube.com/watch?v="

type Video struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title string `json:"title"`
		} `json:"snippet"`
	} `json:"items"`
}

// Client paces outbound searches with a token bucket so bursts of
// remediation requests stay inside the API quota.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	breaker *breaker.Breaker
}

func New(cfg config.MediaConfig, b *breaker.Breaker) *Client {
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	burst := int(cfg.RatePerSec)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, burst),
		breaker: b,
	}
}

// Search returns up to maxResults videos for query.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Video, error) {
	if c == nil || c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for search slot: %w", err)
	}

	q := url.Values{
		"part":       {"snippet"},
		"type":       {"video"},
		"q":          {query},
		"maxResults": {strconv.Itoa(maxResults)},
		"key":        {c.apiKey},
	}

	return breaker.Execute(c.breaker, func() ([]Video, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("building search request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("calling search: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return nil, fmt.Errorf("search returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
		}

		var out searchResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decoding search response: %w", err)
		}

		videos := make([]Video, 0, len(out.Items))
		for _, it := range out.Items {
			if it.ID.VideoID == "" {
				continue
			}
			videos = append(videos, Video{Title: it.Snippet.Title, URL: watchURL + it.ID.VideoID})
		}
		return videos, nil
	})
}
