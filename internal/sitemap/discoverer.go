// Package sitemap resolves a domain to the deduplicated set of page
// URLs reachable from its sitemap tree. Seeds come from robots.txt
// Sitemap directives, falling back to conventional sitemap paths; the
// sitemap-index graph is then traversed breadth-first with cycle
// protection.
package sitemap

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rankforge/crawlpipe/internal/logger"
)

// ErrNoSitemap is returned when neither robots.txt nor the conventional
// paths yield a sitemap. Discovery treats this as a hard stop, not an
// empty success.
var ErrNoSitemap = errors.New("no sitemap discovered")

// maxSitemapBodyBytes limits the size of sitemap responses we will read.
const maxSitemapBodyBytes = 50 * 1024 * 1024 // 50 MB, sitemap protocol ceiling

// robotsTxtPath is the well-known path for robots.txt files.
const robotsTxtPath = "/robots.txt"

// sitemapDirective is the robots.txt directive naming a sitemap,
// matched case-insensitively.
const sitemapDirective = "sitemap:"

// conventionalPaths are probed when robots.txt names no sitemap.
var conventionalPaths = []string{"/sitemap.xml", "/sitemap_index.xml"}

// defaultRequestTimeout bounds each individual sitemap fetch.
const defaultRequestTimeout = 30 * time.Second

// Discoverer fetches and traverses sitemap trees.
type Discoverer struct {
	httpClient *http.Client
	userAgent  string
	log        logger.Interface
}

// NewDiscoverer creates a new sitemap discoverer.
func NewDiscoverer(httpClient *http.Client, userAgent string, log logger.Interface) *Discoverer {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}

	return &Discoverer{
		httpClient: httpClient,
		userAgent:  userAgent,
		log:        log.WithComponent("sitemap"),
	}
}

// Discover resolves a domain to its deduplicated page URL set. A fetch
// failure on a single sitemap within the tree is logged and skipped;
// only the total absence of a seed fails discovery.
func (d *Discoverer) Discover(ctx context.Context, domain string) ([]string, error) {
	baseURL := normalizeBase(domain)

	seeds := d.seedsFromRobots(ctx, baseURL)
	if len(seeds) == 0 {
		seeds = d.seedsFromConventionalPaths(ctx, baseURL)
	}

	if len(seeds) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoSitemap, domain)
	}

	return d.traverse(ctx, seeds), nil
}

// normalizeBase turns a bare domain into an https base URL.
func normalizeBase(domain string) string {
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return strings.TrimRight(domain, "/")
	}

	return "https://" + strings.TrimRight(domain, "/")
}

// seedsFromRobots reads robots.txt and collects every Sitemap directive.
func (d *Discoverer) seedsFromRobots(ctx context.Context, baseURL string) []string {
	body, err := d.fetch(ctx, baseURL+robotsTxtPath)
	if err != nil {
		d.log.Debug("robots.txt not readable", "url", baseURL+robotsTxtPath, "error", err)
		return nil
	}

	var seeds []string
	for _, line := range strings.Split(string(body), "\n") {
		trimmed := strings.TrimSpace(line)
		if len(trimmed) < len(sitemapDirective) {
			continue
		}
		if !strings.EqualFold(trimmed[:len(sitemapDirective)], sitemapDirective) {
			continue
		}

		sitemapURL := strings.TrimSpace(trimmed[len(sitemapDirective):])
		if sitemapURL != "" {
			seeds = append(seeds, sitemapURL)
		}
	}

	return seeds
}

// seedsFromConventionalPaths probes the fixed list of conventional
// sitemap locations and seeds with the first that exists.
func (d *Discoverer) seedsFromConventionalPaths(ctx context.Context, baseURL string) []string {
	for _, path := range conventionalPaths {
		candidate := baseURL + path
		if d.exists(ctx, candidate) {
			return []string{candidate}
		}
	}

	return nil
}

// traverse walks the sitemap graph from the seeds. A processed-set
// bounds the work to the number of distinct sitemap URLs and protects
// against cycles in the index graph.
func (d *Discoverer) traverse(ctx context.Context, seeds []string) []string {
	frontier := append([]string{}, seeds...)
	processed := make(map[string]bool)
	pages := make(map[string]bool)

	for len(frontier) > 0 {
		sitemapURL := frontier[0]
		frontier = frontier[1:]

		if processed[sitemapURL] {
			continue
		}
		processed[sitemapURL] = true

		body, err := d.fetch(ctx, sitemapURL)
		if err != nil {
			// One unreachable sitemap must not abort the traversal.
			d.log.Warn("skipping unreachable sitemap", "url", sitemapURL, "error", err)
			continue
		}

		children, urls, parseErr := parse(body)
		if parseErr != nil {
			d.log.Warn("skipping unparseable sitemap", "url", sitemapURL, "error", parseErr)
			continue
		}

		frontier = append(frontier, children...)
		for _, pageURL := range urls {
			pages[pageURL] = true
		}
	}

	result := make([]string, 0, len(pages))
	for pageURL := range pages {
		result = append(result, pageURL)
	}
	sort.Strings(result)

	return result
}

// fetch performs a GET request and returns the body for 2xx responses.
func (d *Discoverer) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSitemapBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return maybeGunzip(body)
}

// gzipMagic is the two-byte header of a gzip stream. Sitemap indexes
// commonly list .xml.gz entries served without Content-Encoding.
var gzipMagic = []byte{0x1f, 0x8b}

// maybeGunzip inflates gzipped sitemap bodies and passes plain XML
// through untouched.
func maybeGunzip(body []byte) ([]byte, error) {
	if !bytes.HasPrefix(body, gzipMagic) {
		return body, nil
	}

	reader, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("open gzip sitemap: %w", err)
	}
	defer reader.Close()

	inflated, err := io.ReadAll(io.LimitReader(reader, maxSitemapBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("inflate gzip sitemap: %w", err)
	}

	return inflated, nil
}

// exists performs a HEAD request as a lightweight existence check.
func (d *Discoverer) exists(ctx context.Context, rawURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, http.NoBody)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices
}
