package sitemap_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rankforge/crawlpipe/internal/logger"
	"github.com/rankforge/crawlpipe/internal/sitemap"
)

const testUserAgent = "crawlpipe-test/1.0"

// siteFixture serves a fake site from a path -> body map. Paths absent
// from the map return 404.
func siteFixture(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}

		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}

		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	return server
}

func newDiscoverer() *sitemap.Discoverer {
	return sitemap.NewDiscoverer(http.DefaultClient, testUserAgent, logger.NewNoop())
}

func urlset(urls ...string) string {
	body := `<?xml version="1.0" encoding="UTF-8"?><urlset>`
	for _, u := range urls {
		body += "<url><loc>" + u + "</loc></url>"
	}
	return body + `</urlset>`
}

func index(sitemaps ...string) string {
	body := `<?xml version="1.0" encoding="UTF-8"?><sitemapindex>`
	for _, s := range sitemaps {
		body += "<sitemap><loc>" + s + "</loc></sitemap>"
	}
	return body + `</sitemapindex>`
}

func TestDiscover_RobotsIndexWithTwoChildren(t *testing.T) {
	t.Parallel()

	routes := map[string]string{}
	server := siteFixture(t, routes)

	routes["/robots.txt"] = "User-agent: *\nDisallow:\nSitemap: " + server.URL + "/sitemap_index.xml\n"
	routes["/sitemap_index.xml"] = index(server.URL+"/sitemap_a.xml", server.URL+"/sitemap_b.xml")
	routes["/sitemap_a.xml"] = urlset(
		server.URL+"/", server.URL+"/about", server.URL+"/pricing",
	)
	routes["/sitemap_b.xml"] = urlset(
		server.URL+"/blog/1", server.URL+"/blog/2", server.URL+"/blog/3",
	)

	urls, err := newDiscoverer().Discover(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Len(t, urls, 6)
	assert.Contains(t, urls, server.URL+"/pricing")
	assert.Contains(t, urls, server.URL+"/blog/3")
}

func TestDiscover_CaseInsensitiveSitemapDirective(t *testing.T) {
	t.Parallel()

	routes := map[string]string{}
	server := siteFixture(t, routes)

	routes["/robots.txt"] = "SITEMAP: " + server.URL + "/pages.xml"
	routes["/pages.xml"] = urlset(server.URL + "/only")

	urls, err := newDiscoverer().Discover(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, []string{server.URL + "/only"}, urls)
}

func TestDiscover_FallbackToConventionalPath(t *testing.T) {
	t.Parallel()

	routes := map[string]string{}
	server := siteFixture(t, routes)

	// No robots.txt at all; /sitemap.xml exists.
	routes["/sitemap.xml"] = urlset(server.URL+"/a", server.URL+"/b")

	urls, err := newDiscoverer().Discover(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Len(t, urls, 2)
}

func TestDiscover_NoSitemapIsHardStop(t *testing.T) {
	t.Parallel()

	server := siteFixture(t, map[string]string{})

	_, err := newDiscoverer().Discover(context.Background(), server.URL)
	require.ErrorIs(t, err, sitemap.ErrNoSitemap)
}

func TestDiscover_CycleInIndexGraphTerminates(t *testing.T) {
	t.Parallel()

	routes := map[string]string{}
	server := siteFixture(t, routes)

	// a -> b -> a cycle, each leaf also lists pages.
	routes["/robots.txt"] = "Sitemap: " + server.URL + "/a.xml"
	routes["/a.xml"] = index(server.URL + "/b.xml")
	routes["/b.xml"] = index(server.URL + "/a.xml")

	urls, err := newDiscoverer().Discover(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestDiscover_DuplicateURLsAcrossSitemapsDeduplicated(t *testing.T) {
	t.Parallel()

	routes := map[string]string{}
	server := siteFixture(t, routes)

	routes["/robots.txt"] = "Sitemap: " + server.URL + "/a.xml\nSitemap: " + server.URL + "/b.xml"
	routes["/a.xml"] = urlset(server.URL+"/shared", server.URL+"/a-only")
	routes["/b.xml"] = urlset(server.URL+"/shared", server.URL+"/b-only")

	urls, err := newDiscoverer().Discover(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Len(t, urls, 3)
}

func TestDiscover_UnreachableChildSitemapSkipped(t *testing.T) {
	t.Parallel()

	routes := map[string]string{}
	server := siteFixture(t, routes)

	routes["/robots.txt"] = "Sitemap: " + server.URL + "/index.xml"
	routes["/index.xml"] = index(server.URL+"/missing.xml", server.URL+"/present.xml")
	routes["/present.xml"] = urlset(server.URL + "/page")

	urls, err := newDiscoverer().Discover(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, []string{server.URL + "/page"}, urls)
}

func TestDiscover_GzippedSitemapInflated(t *testing.T) {
	t.Parallel()

	routes := map[string]string{}
	server := siteFixture(t, routes)

	routes["/robots.txt"] = "Sitemap: " + server.URL + "/sitemap.xml.gz"
	routes["/sitemap.xml.gz"] = gzipped(t, urlset(server.URL+"/a", server.URL+"/b"))

	urls, err := newDiscoverer().Discover(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, []string{server.URL + "/a", server.URL + "/b"}, urls)
}

func gzipped(t *testing.T, body string) string {
	t.Helper()

	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return buf.String()
}

func TestDiscover_MalformedSitemapSkipped(t *testing.T) {
	t.Parallel()

	routes := map[string]string{}
	server := siteFixture(t, routes)

	routes["/robots.txt"] = "Sitemap: " + server.URL + "/bad.xml\nSitemap: " + server.URL + "/good.xml"
	routes["/bad.xml"] = "this is not xml <<<"
	routes["/good.xml"] = urlset(server.URL + "/page")

	urls, err := newDiscoverer().Discover(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, []string{server.URL + "/page"}, urls)
}
