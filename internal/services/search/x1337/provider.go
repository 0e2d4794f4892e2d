// Package x1337 scrapes the 1337x HTML index.
package x1337

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"torrentplay/internal/domain"
)

const (
	defaultEndpoint  = "https://x1337x.ws"
	defaultUserAgent = "torrentplay/1.0"
	maxPayloadBytes  = 4 * 1024 * 1024
	maxDetailScans   = 40
)

var (
	searchEntryPattern = regexp.MustCompile(`(?is)<a[^>]+href="(/torrent/[^"]+)"[^>]*>(.*?)</a>`)
	magnetPattern      = regexp.MustCompile(`magnet:\?xt=urn:btih:[a-zA-Z0-9]{32,40}[^\s"'<>]*`)
	seedersPattern     = regexp.MustCompile(`(?is)(?:Seeders|Seeds?)\s*</[^>]*>\s*<[^>]*>\s*([0-9]+)`)
	leechersPattern    = regexp.MustCompile(`(?is)(?:Leechers|Peers?)\s*</[^>]*>\s*<[^>]*>\s*([0-9]+)`)
	sizePattern        = regexp.MustCompile(`(?is)(?:Total size|Size)\s*</[^>]*>\s*<[^>]*>\s*([^<]+)`)
	tagPattern         = regexp.MustCompile(`<[^>]+>`)
)

type Config struct {
	// Endpoint is a comma separated list of mirrors tried in order.
	Endpoint  string
	UserAgent string
	Client    *http.Client
}

type Provider struct {
	client    *http.Client
	endpoints []string
	userAgent string
}

type searchEntry struct {
	Name string
	Path string
}

type detail struct {
	Magnet    string
	Seeders   int
	Leechers  int
	SizeBytes int64
	SizeLabel string
}

func NewProvider(cfg Config) *Provider {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Provider{
		client:    client,
		endpoints: parseEndpoints(cfg.Endpoint),
		userAgent: userAgent,
	}
}

func (p *Provider) Name() string {
	return "1337x"
}

func (p *Provider) Search(ctx context.Context, request domain.SearchRequest) ([]domain.SearchResult, error) {
	var (
		entries []searchEntry
		baseURL *url.URL
		err     error
	)
	for _, endpoint := range p.endpoints {
		entries, baseURL, err = p.fetchSearchEntries(ctx, endpoint, request.Query)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return []domain.SearchResult{}, nil
	}

	limit := request.Limit
	if limit <= 0 {
		limit = 50
	}
	scans := min(len(entries), limit*4, maxDetailScans)

	results := make([]domain.SearchResult, 0, limit)
	for _, entry := range entries[:scans] {
		payload, fetchErr := p.fetch(ctx, baseURL, entry.Path)
		if fetchErr != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		d := parseDetailHTML(payload)
		if d.Magnet == "" {
			continue
		}
		magnetURL, parseErr := url.Parse(d.Magnet)
		if parseErr != nil {
			continue
		}
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			name = strings.TrimSpace(magnetURL.Query().Get("dn"))
		}
		if name == "" {
			continue
		}

		results = append(results, domain.SearchResult{
			Title:     name,
			SizeLabel: d.SizeLabel,
			SizeBytes: d.SizeBytes,
			Seeders:   d.Seeders,
			Leechers:  d.Leechers,
			Locator:   d.Magnet,
			Source:    p.Name(),
		})
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

func (p *Provider) fetchSearchEntries(ctx context.Context, endpoint, query string) ([]searchEntry, *url.URL, error) {
	baseURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	query = strings.TrimSpace(query)
	searchURL := baseURL.ResolveReference(&url.URL{
		Path:    "/search/" + query + "/1/",
		RawPath: "/search/" + url.PathEscape(query) + "/1/",
	})

	payload, err := p.fetch(ctx, searchURL, searchURL.String())
	if err != nil {
		return nil, nil, err
	}
	return parseSearchEntries(payload), searchURL, nil
}

func (p *Provider) fetch(ctx context.Context, baseURL *url.URL, rawPath string) (string, error) {
	path := strings.TrimSpace(rawPath)
	if path == "" {
		return "", fmt.Errorf("empty path")
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.ResolveReference(ref).String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("provider HTTP %d: %s", resp.StatusCode, compactSnippet(string(body), 220))
	}
	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func parseSearchEntries(payload string) []searchEntry {
	matches := searchEntryPattern.FindAllStringSubmatch(payload, -1)
	if len(matches) == 0 {
		return nil
	}
	items := make([]searchEntry, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, match := range matches {
		path := strings.TrimSpace(match[1])
		if path == "" {
			continue
		}
		if _, exists := seen[path]; exists {
			continue
		}
		seen[path] = struct{}{}
		name := cleanHTMLText(match[2])
		if name == "" {
			continue
		}
		items = append(items, searchEntry{Name: name, Path: path})
	}
	return items
}

func parseDetailHTML(payload string) detail {
	d := detail{
		Magnet:   strings.TrimSpace(html.UnescapeString(magnetPattern.FindString(payload))),
		Seeders:  findFirstInt(payload, seedersPattern),
		Leechers: findFirstInt(payload, leechersPattern),
	}
	d.SizeBytes, d.SizeLabel = parseSize(findFirstText(payload, sizePattern))
	return d
}

// parseSize keeps the label shown by the index and derives the byte count
// from it. An unparseable label yields zero bytes.
func parseSize(raw string) (int64, string) {
	label := strings.TrimSpace(raw)
	if label == "" {
		return 0, ""
	}
	n, err := humanize.ParseBytes(label)
	if err != nil {
		return 0, label
	}
	return int64(n), label
}

func parseEndpoints(raw string) []string {
	value := strings.TrimSpace(raw)
	if value == "" {
		value = defaultEndpoint + ",https://1337x.to,https://1377x.to"
	}
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		endpoint := strings.TrimSpace(part)
		if endpoint == "" {
			continue
		}
		if _, exists := seen[endpoint]; exists {
			continue
		}
		seen[endpoint] = struct{}{}
		items = append(items, endpoint)
	}
	if len(items) == 0 {
		return []string{defaultEndpoint}
	}
	return items
}

func findFirstInt(payload string, pattern *regexp.Regexp) int {
	match := pattern.FindStringSubmatch(payload)
	if len(match) < 2 {
		return 0
	}
	value, err := strconv.Atoi(strings.TrimSpace(match[1]))
	if err != nil {
		return 0
	}
	return value
}

func findFirstText(payload string, pattern *regexp.Regexp) string {
	match := pattern.FindStringSubmatch(payload)
	if len(match) < 2 {
		return ""
	}
	return cleanHTMLText(match[1])
}

func cleanHTMLText(raw string) string {
	value := html.UnescapeString(strings.TrimSpace(raw))
	value = tagPattern.ReplaceAllString(value, " ")
	return strings.Join(strings.Fields(value), " ")
}

func compactSnippet(raw string, maxLen int) string {
	value := cleanHTMLText(raw)
	if value == "" {
		return "empty response body"
	}
	if len(value) <= maxLen {
		return value
	}
	return value[:maxLen-3] + "..."
}
