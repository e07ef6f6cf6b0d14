package crawl

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyneda/sukyan/pkg/model"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestClassifyPage_HomepageAtDepthZero(t *testing.T) {
	doc := mustDoc(t, `<html><head><title>Home</title></head><body>hi</body></html>`)
	page := classifyPage("http://a.test/", 0, doc)
	assert.Equal(t, model.PageTypeHomepage, page.Type)
	assert.Equal(t, "Home", page.Title)
}

func TestClassifyPage_FormPageFallsBackWhenPathDoesNotMatchContact(t *testing.T) {
	doc := mustDoc(t, `<html><body><form><input/></form></body></html>`)
	page := classifyPage("http://a.test/quote-request", 1, doc)
	assert.Equal(t, model.PageTypeForm, page.Type)
	assert.True(t, page.HasForm)
}

func TestClassifyPage_ContactPathClassifiedAsContact(t *testing.T) {
	doc := mustDoc(t, `<html><body><form><input/></form></body></html>`)
	page := classifyPage("http://a.test/contact", 1, doc)
	assert.Equal(t, model.PageTypeContact, page.Type)
	assert.True(t, page.HasForm)
}

func TestClassifyPage_ProductPathClassifiedAsProduct(t *testing.T) {
	doc := mustDoc(t, `<html><head><title>Widget</title></head><body>buy it</body></html>`)
	page := classifyPage("http://a.test/shop/widget", 1, doc)
	assert.Equal(t, model.PageTypeProduct, page.Type)
}

func TestClassifyPage_LegalPathClassifiedAsLegal(t *testing.T) {
	doc := mustDoc(t, `<html><body>terms here</body></html>`)
	page := classifyPage("http://a.test/privacy-policy", 1, doc)
	assert.Equal(t, model.PageTypeLegal, page.Type)
}

func TestClassifyPage_BlogTitleClassifiedAsArticle(t *testing.T) {
	nav := "<nav>" + strings.Repeat(`<a href="/x">x</a>`, 6) + "</nav>"
	doc := mustDoc(t, "<html><head><title>Blog</title></head><body>"+nav+"<p>some words here</p></body></html>")
	page := classifyPage("http://a.test/blog/post-1", 1, doc)
	assert.Equal(t, model.PageTypeArticle, page.Type)
}

func TestClassifyPage_EmptyBodyIsOther(t *testing.T) {
	doc := mustDoc(t, `<html><body></body></html>`)
	page := classifyPage("http://a.test/empty", 1, doc)
	assert.Equal(t, model.PageTypeOther, page.Type)
}

func TestPriorityFor_HomeRanksAboveArticle(t *testing.T) {
	home := priorityFor(model.PageTypeHomepage, 0, false)
	article := priorityFor(model.PageTypeArticle, 0, false)
	assert.Greater(t, home, article)
}

func TestPriorityFor_DecaysWithDepth(t *testing.T) {
	shallow := priorityFor(model.PageTypeArticle, 0, false)
	deep := priorityFor(model.PageTypeArticle, 3, false)
	assert.Greater(t, shallow, deep)
}

func TestExtractLinks_SkipsFragmentsMailtoAndJavascript(t *testing.T) {
	doc := mustDoc(t, `<html><body>
		<a href="/ok">ok</a>
		<a href="#section">frag</a>
		<a href="mailto:a@b.test">mail</a>
		<a href="javascript:void(0)">js</a>
	</body></html>`)
	links := extractLinks("http://a.test/", doc)
	require.Len(t, links, 1)
	assert.Equal(t, "http://a.test/ok", links[0])
}

func TestIsIgnoredExtension(t *testing.T) {
	assert.True(t, isIgnoredExtension("http://a.test/logo.png"))
	assert.True(t, isIgnoredExtension("http://a.test/app.js"))
	assert.False(t, isIgnoredExtension("http://a.test/page"))
}

func TestNew_EnforcesHardCaps(t *testing.T) {
	c := New(Config{StartURL: "http://a.test/", MaxPages: 999, MaxDepth: 999})
	assert.Equal(t, HardMaxPages, c.cfg.MaxPages)
	assert.Equal(t, HardMaxDepth, c.cfg.MaxDepth)
}

func TestRun_DiscoversLinkedPagesWithinScope(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Home</title></head><body><a href="/about">About</a></body></html>`))
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>About</title></head><body>no links here</body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	startURL := strings.Replace(srv.URL, "127.0.0.1", "localhost", 1) + "/"

	var progressCalls int32
	crawler := New(Config{
		StartURL:    startURL,
		MaxPages:    5,
		MaxDepth:    2,
		Concurrency: 2,
		OnProgress:  func(model.DiscoveredPage, int, int) { atomic.AddInt32(&progressCalls, 1) },
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pages, err := crawler.Run(ctx)
	require.NoError(t, err)
	assert.Len(t, pages, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&progressCalls))
}

func TestRun_StopsAtMaxPages(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><a href="/a">a</a><a href="/b">b</a><a href="/c">c</a></body></html>`))
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>a</body></html>`))
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>b</body></html>`))
	})
	mux.HandleFunc("/c", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>c</body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	startURL := strings.Replace(srv.URL, "127.0.0.1", "localhost", 1) + "/"

	crawler := New(Config{StartURL: startURL, MaxPages: 1, MaxDepth: 2, Concurrency: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pages, err := crawler.Run(ctx)
	require.NoError(t, err)
	assert.Len(t, pages, 1)
}
