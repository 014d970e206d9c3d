package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	lru "github.com/hashicorp/golang-lru/v2"

	laberrors "labagent/internal/errors"
	"labagent/internal/logging"
	"labagent/internal/session"
	"labagent/internal/workspace"
)

const (
	defaultSearchEndpoint = "https://html.duckduckgo.com/html/"
	defaultSearchMaxChars = 5000
	defaultSearchTimeout  = 30 * time.Second
	searchCacheSize       = 64
	maxSearchResults      = 10
	searchUserAgent       = "Mozilla/5.0 (compatible; labagent/1.0)"
)

// Searcher performs a web lookup and returns a text excerpt of the results.
type Searcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// SearchConfig configures an HTMLSearcher.
type SearchConfig struct {
	Endpoint string
	Timeout  time.Duration
	MaxChars int
	Client   *http.Client
	Logger   logging.Logger
}

// HTMLSearcher queries an HTML search page (DuckDuckGo's by default) and
// extracts titles, links and snippets. Successful answers are cached per
// query for the life of the searcher.
type HTMLSearcher struct {
	endpoint string
	maxChars int
	client   *http.Client
	cache    *lru.Cache[string, string]
	logger   logging.Logger
}

// NewHTMLSearcher returns a searcher with defaults filled in.
func NewHTMLSearcher(cfg SearchConfig) (*HTMLSearcher, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultSearchEndpoint
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid search endpoint: %w", err)
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = defaultSearchMaxChars
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSearchTimeout
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	cache, err := lru.New[string, string](searchCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create search cache: %w", err)
	}
	return &HTMLSearcher{
		endpoint: cfg.Endpoint,
		maxChars: cfg.MaxChars,
		client:   client,
		cache:    cache,
		logger:   logging.OrNop(cfg.Logger),
	}, nil
}

// Search returns at most maxChars characters; an empty string means no
// results.
func (s *HTMLSearcher) Search(ctx context.Context, query string) (string, error) {
	key := strings.TrimSpace(query)
	if cached, ok := s.cache.Get(key); ok {
		s.logger.Debug("web_search cache hit for %q", query)
		return cached, nil
	}

	u, err := url.Parse(s.endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", searchUserAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", laberrors.NewHTTPError(resp.StatusCode, body, resp.Header.Get("Retry-After"))
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("parse results: %w", err)
	}

	text := workspace.TruncateChars(formatResults(doc), s.maxChars)
	if text != "" {
		s.cache.Add(key, text)
	}
	return text, nil
}

func formatResults(doc *goquery.Document) string {
	var b strings.Builder
	n := 0
	doc.Find(".result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		link := sel.Find(".result__a").First()
		title := collapse(link.Text())
		if title == "" {
			return true
		}
		n++
		href, _ := link.Attr("href")
		fmt.Fprintf(&b, "%d. %s\n", n, title)
		if target := resultURL(href); target != "" {
			fmt.Fprintf(&b, "   %s\n", target)
		}
		if snippet := collapse(sel.Find(".result__snippet").Text()); snippet != "" {
			fmt.Fprintf(&b, "   %s\n", snippet)
		}
		b.WriteString("\n")
		return n < maxSearchResults
	})
	if n > 0 {
		return strings.TrimSpace(b.String())
	}

	// Unknown page layout: fall back to the visible text.
	doc.Find("script, style, noscript, header, footer, nav, form").Remove()
	return collapse(doc.Find("body").Text())
}

// resultURL unwraps DuckDuckGo redirect links (//duckduckgo.com/l/?uddg=...).
func resultURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func (d *Dispatcher) webSearch(ctx context.Context, c WebSearch) (result, error) {
	if err := d.sink.Append(session.WebSearch{Query: c.Query}); err != nil {
		return result{}, err
	}
	if d.searcher == nil {
		err := fmt.Errorf("web search is not configured")
		return fail("Search error: "+err.Error(), err), nil
	}
	text, err := d.searcher.Search(ctx, c.Query)
	if err != nil {
		return fail("Search error: "+err.Error(), err), nil
	}
	if strings.TrimSpace(text) == "" {
		return ok("No results"), nil
	}
	return ok(text), nil
}
