// Package crawlrun delegates page fetching to the external managed
// crawling capability. The service is a black box reachable over HTTP:
// a job is submitted with the URL list and a callback target, and the
// outcome arrives later as a webhook. No vendor-specific shapes leak
// past this package.
package crawlrun

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/rankforge/crawlpipe/internal/logger"
)

// Service is the external crawling capability.
type Service interface {
	// Submit starts a crawl run for the given URLs and returns the
	// run identifier the service will echo back in its webhook.
	Submit(ctx context.Context, req SubmitRequest) (string, error)

	// FetchDataset retrieves the crawled {url, html} pairs for a
	// completed run's dataset.
	FetchDataset(ctx context.Context, datasetID, token string) ([]CrawledPage, error)
}

// SubmitRequest describes one crawl job. Depth is pinned to zero:
// the service fetches exactly the listed URLs and discovers nothing.
type SubmitRequest struct {
	StartURLs   []string
	CallbackURL string
	Token       string
}

// CrawledPage is one fetched page in a run's dataset. Pages the
// service failed to fetch have an empty HTML body.
type CrawledPage struct {
	URL  string `json:"url"`
	HTML string `json:"html"`
}

// ErrSubmitRejected is returned when the external service refuses a
// crawl job.
var ErrSubmitRejected = errors.New("crawl submission rejected")

// defaultRequestTimeout bounds individual API calls. Dataset downloads
// get a longer leash since they carry full page bodies.
const (
	defaultRequestTimeout = 30 * time.Second
	datasetFetchTimeout   = 5 * time.Minute
)

// Client is the HTTP implementation of Service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        logger.Interface
}

// NewClient creates a new crawl service client.
func NewClient(baseURL string, httpClient *http.Client, log logger.Interface) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		log:        log.WithComponent("crawlrun"),
	}
}

// submitPayload is the job description sent to the service.
type submitPayload struct {
	StartURLs     []string `json:"startUrls"`
	MaxCrawlDepth int      `json:"maxCrawlDepth"`
	WebhookURL    string   `json:"webhookUrl"`
}

// submitResponse carries the run identifier assigned by the service.
type submitResponse struct {
	ID string `json:"id"`
}

// Submit starts a crawl run.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	payload := submitPayload{
		StartURLs:     req.StartURLs,
		MaxCrawlDepth: 0,
		WebhookURL:    req.CallbackURL,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal submit payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+"/v1/runs", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create submit request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.Token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("submit crawl run: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: status %d: %s", ErrSubmitRejected, resp.StatusCode, string(detail))
	}

	var submitResp submitResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&submitResp); decodeErr != nil {
		return "", fmt.Errorf("decode submit response: %w", decodeErr)
	}

	if submitResp.ID == "" {
		return "", fmt.Errorf("%w: response carried no run id", ErrSubmitRejected)
	}

	return submitResp.ID, nil
}

// FetchDataset retrieves all items of a run's dataset. Items are
// loosely-shaped JSON objects; only url and html are kept, and fields
// the vendor adds are ignored.
func (c *Client) FetchDataset(ctx context.Context, datasetID, token string) ([]CrawledPage, error) {
	ctx, cancel := context.WithTimeout(ctx, datasetFetchTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.baseURL+"/v1/datasets/"+datasetID+"/items", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create dataset request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch dataset %s: %w", datasetID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("fetch dataset %s: status %d", datasetID, resp.StatusCode)
	}

	var items []map[string]any
	if decodeErr := json.NewDecoder(resp.Body).Decode(&items); decodeErr != nil {
		return nil, fmt.Errorf("decode dataset %s: %w", datasetID, decodeErr)
	}

	pages := make([]CrawledPage, 0, len(items))
	for _, item := range items {
		var page CrawledPage
		if convertErr := decodeItem(item, &page); convertErr != nil {
			c.log.Warn("skipping malformed dataset item", "dataset_id", datasetID, "error", convertErr)
			continue
		}
		pages = append(pages, page)
	}

	return pages, nil
}

// decodeItem maps a loose dataset item onto CrawledPage by json tag,
// tolerating extra vendor fields and mild type drift.
func decodeItem(item map[string]any, dst *CrawledPage) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           dst,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}

	return decoder.Decode(item)
}
