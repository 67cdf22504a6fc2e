// Package urlnorm canonicalizes sitemap URLs before they enter the page
// inventory. Sitemaps routinely list the same page under several spellings
// and include off-site entries; canonicalizing keeps the inventory keyed
// by one stable URL per page and scoped to the project's site.
package urlnorm

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
)

// trackingParams lists query parameters stripped during normalization.
// Advertising and analytics trackers never change page content.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"fbclid":       {},
	"gclid":        {},
	"gclsrc":       {},
	"dclid":        {},
	"msclkid":      {},
}

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

var (
	errEmptyInput          = errors.New("normalize url: empty input")
	errMissingSchemeOrHost = errors.New("normalize url: missing scheme or host")
)

// Normalize rewrites a raw URL into its canonical form: lowercased scheme
// and host, default ports and fragments removed, dot-segments resolved,
// trailing slashes trimmed, query keys sorted, and tracking parameters
// stripped. The scheme is preserved; the inventory must list URLs as the
// crawler can fetch them.
func Normalize(rawURL string) (string, error) {
	if rawURL == "" {
		return "", errEmptyInput
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("normalize url: %w", err)
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return "", errMissingSchemeOrHost
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = normalizeHost(parsed)
	parsed.Fragment = ""
	parsed.RawQuery = buildCleanQuery(parsed.Query())
	parsed.Path = normalizePath(parsed.Path)

	return parsed.String(), nil
}

// SameSite reports whether the URL's host belongs to the given site
// domain, either exactly or as a subdomain. The domain may be entered
// bare or with a scheme prefix; only its host matters.
func SameSite(rawURL, domain string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	host := strings.ToLower(parsed.Hostname())
	site := siteHost(domain)
	if site == "" {
		return false
	}

	return host == site || strings.HasSuffix(host, "."+site)
}

// siteHost reduces a project domain to its bare lowercase hostname,
// tolerating scheme prefixes, paths, and ports the way sitemap
// discovery does.
func siteHost(domain string) string {
	domain = strings.TrimSpace(domain)

	if i := strings.Index(domain, "://"); i >= 0 {
		domain = domain[i+3:]
	}
	if i := strings.IndexByte(domain, '/'); i >= 0 {
		domain = domain[:i]
	}
	if i := strings.IndexByte(domain, ':'); i >= 0 {
		domain = domain[:i]
	}

	return strings.ToLower(domain)
}

// Canonicalize normalizes a discovered URL set, drops entries that are
// malformed or off-site for the given domain, and deduplicates while
// preserving first-seen order.
func Canonicalize(urls []string, domain string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))

	for _, raw := range urls {
		normalized, err := Normalize(raw)
		if err != nil {
			continue
		}
		if !SameSite(normalized, domain) {
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}

	return out
}

// normalizeHost lowercases the hostname and removes the scheme's default
// port.
func normalizeHost(u *url.URL) string {
	hostname := strings.ToLower(u.Hostname())
	port := u.Port()

	if port == "" || port == defaultPorts[strings.ToLower(u.Scheme)] {
		return hostname
	}

	return hostname + ":" + port
}

// buildCleanQuery strips tracking parameters, sorts the remaining keys,
// and returns the encoded query string. Empty when nothing survives the
// filter.
func buildCleanQuery(values url.Values) string {
	keys := make([]string, 0, len(values))

	for key := range values {
		if _, isTracking := trackingParams[key]; !isTracking {
			keys = append(keys, key)
		}
	}

	if len(keys) == 0 {
		return ""
	}

	sort.Strings(keys)

	var b strings.Builder

	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}

		for j, val := range values[key] {
			if j > 0 {
				b.WriteByte('&')
			}

			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(val))
		}
	}

	return b.String()
}

// normalizePath resolves dot-segments and removes trailing slashes while
// preserving the root "/".
func normalizePath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}

	return strings.TrimRight(path.Clean(p), "/")
}
