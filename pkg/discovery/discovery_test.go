package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyneda/sukyan/pkg/crawl"
	"github.com/pyneda/sukyan/pkg/model"
	"github.com/pyneda/sukyan/pkg/selector"
	"github.com/pyneda/sukyan/pkg/store"
)

type fakeBus struct {
	mu     sync.Mutex
	events []model.EventType
}

func (b *fakeBus) Publish(id string, eventType model.EventType, data interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, eventType)
}

func (b *fakeBus) count(t model.EventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e == t {
			n++
		}
	}
	return n
}

func TestRun_CompletesAndRecordsPagesInStore(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Home</title></head><body><a href="/about">About</a></body></html>`))
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body>about</body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	startURL := strings.Replace(srv.URL, "127.0.0.1", "localhost", 1) + "/"

	st := store.New(store.DefaultConfig())
	defer st.Close()
	bus := &fakeBus{}
	runner := New(st, bus)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pages, err := runner.Run(ctx, "disc-1", crawl.Config{StartURL: startURL, MaxPages: 5, MaxDepth: 2})
	require.NoError(t, err)
	assert.Len(t, pages, 2)

	session, ok := st.GetDiscovery("disc-1")
	require.True(t, ok)
	assert.Equal(t, model.DiscoveryStateCompleted, session.State)
	assert.Len(t, session.Pages, 2)

	assert.GreaterOrEqual(t, bus.count(model.EventDiscoveryProgress), 1)
	assert.Equal(t, 1, bus.count(model.EventDiscoveryComplete))
}

func TestRun_ZeroPagesYieldsFailedState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	startURL := strings.Replace(srv.URL, "127.0.0.1", "localhost", 1) + "/"

	st := store.New(store.DefaultConfig())
	defer st.Close()
	bus := &fakeBus{}
	runner := New(st, bus)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pages, err := runner.Run(ctx, "disc-2", crawl.Config{StartURL: startURL, MaxPages: 5, MaxDepth: 1})
	require.NoError(t, err)
	assert.Empty(t, pages)

	session, ok := st.GetDiscovery("disc-2")
	require.True(t, ok)
	assert.Equal(t, model.DiscoveryStateFailed, session.State)
}

func TestRun_CancelledContextYieldsCancelledState(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)
	startURL := strings.Replace(srv.URL, "127.0.0.1", "localhost", 1) + "/"

	st := store.New(store.DefaultConfig())
	defer st.Close()
	bus := &fakeBus{}
	runner := New(st, bus)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := runner.Run(ctx, "disc-3", crawl.Config{StartURL: startURL, MaxPages: 5, MaxDepth: 1})
	assert.Error(t, err)

	session, ok := st.GetDiscovery("disc-3")
	require.True(t, ok)
	assert.Equal(t, model.DiscoveryStateCancelled, session.State)
}

func TestSelectPages_DelegatesToSelector(t *testing.T) {
	pages := []model.DiscoveredPage{
		{URL: "http://a.test/", Type: model.PageTypeHomepage, Priority: 100},
	}
	sel := SelectPages(pages, model.PolicyWCAG21AA, selector.DefaultConfig())
	assert.Len(t, sel.Pages, 1)
}
