package crawlrun_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rankforge/crawlpipe/internal/crawlrun"
	"github.com/rankforge/crawlpipe/internal/logger"
)

func TestSubmit_SendsJobAndReturnsRunID(t *testing.T) {
	t.Parallel()

	var captured struct {
		path    string
		auth    string
		payload map[string]any
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		captured.auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured.payload))

		_ = json.NewEncoder(w).Encode(map[string]string{"id": "run-123"})
	}))
	t.Cleanup(server.Close)

	client := crawlrun.NewClient(server.URL, http.DefaultClient, logger.NewNoop())

	runID, err := client.Submit(context.Background(), crawlrun.SubmitRequest{
		StartURLs:   []string{"https://example.com/", "https://example.com/about"},
		CallbackURL: "https://pipeline.internal/api/v1/webhooks/crawl",
		Token:       "secret-token",
	})
	require.NoError(t, err)
	assert.Equal(t, "run-123", runID)

	assert.Equal(t, "/v1/runs", captured.path)
	assert.Equal(t, "Bearer secret-token", captured.auth)
	assert.Equal(t, "https://pipeline.internal/api/v1/webhooks/crawl", captured.payload["webhookUrl"])

	// Depth is pinned to zero: fetch only the listed URLs.
	assert.Equal(t, float64(0), captured.payload["maxCrawlDepth"])

	urls, ok := captured.payload["startUrls"].([]any)
	require.True(t, ok)
	assert.Len(t, urls, 2)
}

func TestSubmit_RejectionPreservesServiceError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "monthly quota exceeded", http.StatusPaymentRequired)
	}))
	t.Cleanup(server.Close)

	client := crawlrun.NewClient(server.URL, http.DefaultClient, logger.NewNoop())

	_, err := client.Submit(context.Background(), crawlrun.SubmitRequest{
		StartURLs: []string{"https://example.com/"},
	})
	require.ErrorIs(t, err, crawlrun.ErrSubmitRejected)
	assert.Contains(t, err.Error(), "monthly quota exceeded")
}

func TestSubmit_MissingRunIDRejected(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{})
	}))
	t.Cleanup(server.Close)

	client := crawlrun.NewClient(server.URL, http.DefaultClient, logger.NewNoop())

	_, err := client.Submit(context.Background(), crawlrun.SubmitRequest{
		StartURLs: []string{"https://example.com/"},
	})
	require.ErrorIs(t, err, crawlrun.ErrSubmitRejected)
}

func TestFetchDataset_DecodesItemsAndIgnoresVendorFields(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/datasets/ds-9/items", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"url": "https://example.com/", "html": "<html>home</html>", "loadedTime": "2025-06-01"},
			{"url": "https://example.com/about", "html": "<html>about</html>", "statusCode": 200},
		})
	}))
	t.Cleanup(server.Close)

	client := crawlrun.NewClient(server.URL, http.DefaultClient, logger.NewNoop())

	pages, err := client.FetchDataset(context.Background(), "ds-9", "secret-token")
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "https://example.com/", pages[0].URL)
	assert.Equal(t, "<html>about</html>", pages[1].HTML)
}

func TestFetchDataset_ErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	client := crawlrun.NewClient(server.URL, http.DefaultClient, logger.NewNoop())

	_, err := client.FetchDataset(context.Background(), "ds-missing", "tok")
	require.Error(t, err)
}
