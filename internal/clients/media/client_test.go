package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studypath/studypath/internal/config"
)

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "lecture on Databases", q.Get("q"))
		assert.Equal(t, "3", q.Get("maxResults"))
		assert.Equal(t, "yt-key", q.Get("key"))
		assert.Equal(t, "video", q.Get("type"))

		w.Write([]byte(`{"items":[
			{"id":{"videoId":"abc"},"snippet":{"title":"Intro to SQL"}},
			{"id":{"channelId":"chan"},"snippet":{"title":"A channel"}},
			{"id":{"videoId":"def"},"snippet":{"title":"Normal forms"}}
		]}`))
	}))
	defer srv.Close()

	c := New(config.MediaConfig{BaseURL: srv.URL, APIKey: "yt-key", RatePerSec: 100, Timeout: time.Second}, nil)

	videos, err := c.Search(context.Background(), "lecture on Databases", 3)
	require.NoError(t, err)
	assert.Equal(t, []Video{
		{Title: "Intro to SQL", URL: "https://www.youtube.com/watch?v=abc"},
		{Title: "Normal forms", URL: "https://www.youtube.com/watch?v=def"},
	}, videos)
}

func TestSearch_NotConfigured(t *testing.T) {
	c := New(config.MediaConfig{}, nil)
	_, err := c.Search(context.Background(), "q", 3)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSearch_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"message":"quotaExceeded"}}`))
	}))
	defer srv.Close()

	c := New(config.MediaConfig{BaseURL: srv.URL, APIKey: "k", Timeout: time.Second}, nil)

	_, err := c.Search(context.Background(), "q", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quotaExceeded")
}

func TestSearch_RateLimitHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	c := New(config.MediaConfig{BaseURL: srv.URL, APIKey: "k", RatePerSec: 0.01, Timeout: time.Second}, nil)

	_, err := c.Search(context.Background(), "first", 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Search(ctx, "second", 1)
	assert.Error(t, err)
}
