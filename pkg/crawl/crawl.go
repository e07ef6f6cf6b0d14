// Package crawl implements the BFS page-discovery crawler (component C2).
// It walks a site starting from one URL, staying within the start URL's
// registrable domain, and classifies each page it finds so the selector can
// build a representative sample for scanning.
package crawl

import (
	"context"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/pyneda/sukyan/lib"
	"github.com/pyneda/sukyan/pkg/httpclient"
	"github.com/pyneda/sukyan/pkg/model"
	"github.com/pyneda/sukyan/pkg/scope"
)

// ProgressFunc is invoked every time a page is fetched and classified,
// letting the discovery session publish a DISCOVERY_PROGRESS event.
type ProgressFunc func(page model.DiscoveredPage, visited, queued int)

// Config configures a single crawl run.
type Config struct {
	StartURL     string
	MaxPages     int
	MaxDepth     int
	Concurrency  int
	RequestTimeout time.Duration
	UserAgent    string
	OnProgress   ProgressFunc
}

type queueItem struct {
	url   string
	depth int
}

// Crawler performs one bounded BFS crawl of a site.
type Crawler struct {
	cfg    Config
	scope  scope.Scope
	client *http.Client

	mu      sync.Mutex
	visited map[string]struct{}
	pages   []model.DiscoveredPage
	queue   []queueItem
}

// Hard caps on every crawl regardless of caller or config input. A crawl
// never traverses deeper or wider than this, even if the caller asks for
// more; robots.txt is deliberately not honored since callers only ever
// crawl sites they already have permission to scan.
const (
	HardMaxPages = 20
	HardMaxDepth = 2
)

// New builds a crawler for cfg. Defaults are applied for zero-valued fields,
// and HardMaxPages/HardMaxDepth are enforced regardless of what cfg asks for.
func New(cfg Config) *Crawler {
	if cfg.MaxPages <= 0 || cfg.MaxPages > HardMaxPages {
		cfg.MaxPages = HardMaxPages
	}
	if cfg.MaxDepth <= 0 || cfg.MaxDepth > HardMaxDepth {
		cfg.MaxDepth = HardMaxDepth
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 3 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "a11yscan-orchestrator/1.0"
	}

	s := scope.Scope{}
	s.CreateScopeItemsFromUrls([]string{cfg.StartURL}, "subdomains")

	return &Crawler{
		cfg:     cfg,
		scope:   s,
		client:  httpclient.CreateHttpClient(cfg.RequestTimeout),
		visited: make(map[string]struct{}),
	}
}

// Run executes the crawl to completion or until ctx is cancelled, returning
// every page discovered in the order it was classified.
func (c *Crawler) Run(ctx context.Context) ([]model.DiscoveredPage, error) {
	start, err := lib.CanonicalizeURL(c.cfg.StartURL)
	if err != nil {
		return nil, fmt.Errorf("invalid start url: %w", err)
	}

	c.queue = append(c.queue, queueItem{url: start, depth: 0})

	sem := make(chan struct{}, c.cfg.Concurrency)
	var wg sync.WaitGroup
	var active int32

	// notify wakes the dispatcher when a fetch finishes, since a finished
	// fetch may have enqueued the only work left to do. Buffered by one so
	// a wake-up is never lost while the dispatcher is busy elsewhere.
	notify := make(chan struct{}, 1)
	wake := func() {
		select {
		case notify <- struct{}{}:
		default:
		}
	}

	for {
		c.mu.Lock()
		var item queueItem
		popped := false
		for len(c.queue) > 0 {
			candidate := c.queue[0]
			c.queue = c.queue[1:]
			if _, seen := c.visited[candidate.url]; seen {
				continue
			}
			if len(c.pages) >= c.cfg.MaxPages {
				continue
			}
			c.visited[candidate.url] = struct{}{}
			item = candidate
			popped = true
			break
		}
		queueEmpty := len(c.queue) == 0
		c.mu.Unlock()

		if !popped {
			if queueEmpty && atomic.LoadInt32(&active) == 0 {
				break
			}
			// Nothing poppable right now, but a fetch is still in flight
			// and may enqueue more links when it finishes.
			select {
			case <-ctx.Done():
				wg.Wait()
				return c.pages, ctx.Err()
			case <-notify:
			}
			continue
		}

		select {
		case <-ctx.Done():
			wg.Wait()
			return c.pages, ctx.Err()
		default:
		}

		atomic.AddInt32(&active, 1)
		sem <- struct{}{}
		wg.Add(1)
		go func(item queueItem) {
			defer wg.Done()
			defer func() { <-sem }()
			defer atomic.AddInt32(&active, -1)
			defer wake()

			page, links, err := c.fetchAndClassify(ctx, item.url, item.depth)
			if err != nil {
				log.Debug().Err(err).Str("url", item.url).Msg("Failed to fetch page during crawl")
				return
			}

			c.mu.Lock()
			c.pages = append(c.pages, page)
			queued := len(c.queue)
			total := len(c.pages)
			if item.depth < c.cfg.MaxDepth && total < c.cfg.MaxPages {
				for _, l := range links {
					canon, err := lib.CanonicalizeURL(l)
					if err != nil {
						continue
					}
					if !c.scope.IsInScope(canon) {
						continue
					}
					if _, seen := c.visited[canon]; seen {
						continue
					}
					if isIgnoredExtension(canon) {
						continue
					}
					c.queue = append(c.queue, queueItem{url: canon, depth: item.depth + 1})
				}
				queued = len(c.queue)
			}
			c.mu.Unlock()

			if c.cfg.OnProgress != nil {
				c.cfg.OnProgress(page, total, queued)
			}
		}(item)
	}

	wg.Wait()

	return c.pages, nil
}

func (c *Crawler) fetchAndClassify(ctx context.Context, pageURL string, depth int) (model.DiscoveredPage, []string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return model.DiscoveredPage{}, nil, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return model.DiscoveredPage{}, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return model.DiscoveredPage{}, nil, fmt.Errorf("status %d for %s", resp.StatusCode, pageURL)
	}

	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "html") {
		return model.DiscoveredPage{URL: pageURL, Depth: depth, DiscoveredAt: time.Now()}, nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return model.DiscoveredPage{}, nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return model.DiscoveredPage{}, nil, err
	}

	page := classifyPage(pageURL, depth, doc)
	links := extractLinks(pageURL, doc)

	return page, links, nil
}

func extractLinks(pageURL string, doc *goquery.Document) []string {
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") {
			return
		}
		resolved, err := lib.ResolveURL(pageURL, href)
		if err != nil {
			return
		}
		links = append(links, resolved)
	})
	return links
}

func classifyPage(pageURL string, depth int, doc *goquery.Document) model.DiscoveredPage {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	hasForm := doc.Find("form").Length() > 0
	navLinks := doc.Find("nav a, header a, [role=navigation] a").Length()
	wordCount := len(strings.Fields(doc.Find("body").Text()))

	pageType := classifyByPathAndTitle(pageURL, title, depth, hasForm, wordCount)

	return model.DiscoveredPage{
		URL:          pageURL,
		Title:        title,
		Type:         pageType,
		Depth:        depth,
		HasForm:      hasForm,
		NavLinks:     navLinks,
		WordCount:    wordCount,
		Priority:     priorityFor(pageType, depth, hasForm),
		DiscoveredAt: time.Now(),
	}
}

// classifyByPathAndTitle assigns a PageType from keyword patterns over the
// URL path and HTML title, the same signal a human reviewing a sitemap
// would use. hasForm and wordCount only break ties the path/title leave
// unresolved.
func classifyByPathAndTitle(pageURL, title string, depth int, hasForm bool, wordCount int) model.PageType {
	path := "/"
	if parsed, err := neturl.Parse(pageURL); err == nil {
		path = strings.ToLower(parsed.Path)
	}
	haystack := path + " " + strings.ToLower(title)

	if depth == 0 || path == "" || path == "/" {
		return model.PageTypeHomepage
	}

	switch {
	case containsAny(haystack, "contact", "support", "help-us"):
		return model.PageTypeContact
	case containsAny(haystack, "privacy", "terms", "legal", "tos", "cookie"):
		return model.PageTypeLegal
	case containsAny(haystack, "product", "item", "shop", "store", "pricing"):
		return model.PageTypeProduct
	case containsAny(haystack, "blog", "article", "news", "post"):
		return model.PageTypeArticle
	case containsAny(haystack, "category", "catalog", "listing", "search", "archive"):
		return model.PageTypeListing
	case hasForm:
		return model.PageTypeForm
	case wordCount == 0:
		return model.PageTypeOther
	default:
		return model.PageTypeArticle
	}
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// priorityFor ranks pages for the selector: the homepage and lead-capture
// pages (forms, contact) are the highest-value scan targets, and priority
// decays with crawl depth.
func priorityFor(t model.PageType, depth int, hasForm bool) float64 {
	base := 0.0
	switch t {
	case model.PageTypeHomepage:
		base = 100
	case model.PageTypeForm, model.PageTypeContact:
		base = 90
	case model.PageTypeProduct:
		base = 75
	case model.PageTypeListing:
		base = 70
	case model.PageTypeArticle:
		base = 50
	case model.PageTypeManual:
		base = 50
	case model.PageTypeLegal:
		base = 30
	case model.PageTypeOther:
		base = 20
	}
	if hasForm && t != model.PageTypeForm {
		base += 10
	}
	return base - float64(depth)*2
}
