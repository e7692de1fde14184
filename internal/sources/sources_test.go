package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ppiankov/chainbreaker/internal/metrics"
	"github.com/ppiankov/chainbreaker/internal/model"
)

func newTestFetcher() *Fetcher {
	return NewFetcher(FetcherOptions{Timeout: 5 * time.Second, UserAgent: "ChainBreaker-AI/1.0"})
}

func TestFactCheckSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "gkey" {
			t.Errorf("Expected key gkey, got %s", r.URL.Query().Get("key"))
		}
		if r.URL.Query().Get("query") != "vaccine microchips" {
			t.Errorf("Unexpected query: %s", r.URL.Query().Get("query"))
		}
		claims := ""
		for i := 0; i < 7; i++ {
			if i > 0 {
				claims += ","
			}
			claims += fmt.Sprintf(`{"text":"claim %d","claimant":"someone","claimReview":[{"publisher":{"name":"Reuters"},"url":"https://reuters.com/fc/%d","textualRating":"False"}]}`, i, i)
		}
		_, _ = fmt.Fprintf(w, `{"claims":[%s]}`, claims)
	}))
	defer server.Close()

	source := NewFactCheckSource(newTestFetcher(), server.URL, "gkey")
	result := source.Lookup(context.Background(), "vaccine microchips")

	fc, ok := result.(*model.FactCheckResult)
	if !ok {
		t.Fatalf("Expected *FactCheckResult, got %T", result)
	}
	if !fc.OK || len(fc.Claims) != 5 {
		t.Fatalf("Expected ok with 5 claims, got ok=%v claims=%d", fc.OK, len(fc.Claims))
	}
	first := fc.Claims[0]
	if first.Rating != "False" || first.Publisher != "Reuters" || first.URL != "https://reuters.com/fc/0" {
		t.Errorf("Unexpected first claim: %+v", first)
	}
	citation, ok := fc.Citation()
	if !ok || citation.Name != "Reuters" {
		t.Errorf("Unexpected citation: %+v %v", citation, ok)
	}
}

func TestFactCheckSource_NotConfigured(t *testing.T) {
	result := NewFactCheckSource(newTestFetcher(), "http://unused", "").Lookup(context.Background(), "q")

	fc := result.(*model.FactCheckResult)
	if !fc.OK || !fc.NotConfigured || fc.Found() {
		t.Errorf("Expected ok, not-configured, not found; got %+v", fc)
	}
	if fc.Message != "API key not configured" {
		t.Errorf("Unexpected message: %s", fc.Message)
	}
}

func TestFactCheckSource_Failure(t *testing.T) {
	noSleep(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	result := NewFactCheckSource(newTestFetcher(), server.URL, "bad").Lookup(context.Background(), "q")
	if result.Succeeded() || result.Kind() != model.SourceFactCheck {
		t.Errorf("Expected failed fact-check result, got %+v", result)
	}
}

func closedServerURL() string {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	return server.URL
}

func TestKeyedSources_TransportFailureHidesKey(t *testing.T) {
	noSleep(t)
	base := closedServerURL()

	results := []model.SourceResult{
		NewFactCheckSource(newTestFetcher(), base+"/v1alpha1/claims:search", "FC-KEY-123").Lookup(context.Background(), "x"),
		NewNewsSource(newTestFetcher(), base+"/v2/everything", "NEWS-KEY-456").Lookup(context.Background(), "x"),
	}
	for _, result := range results {
		if result.Succeeded() {
			t.Fatalf("Expected %s lookup to fail against a closed server", result.Kind())
		}
		summary := result.Summary()
		if !strings.Contains(summary, "unavailable") {
			t.Errorf("Expected unavailable summary, got %q", summary)
		}
		for _, secret := range []string{"FC-KEY-123", "NEWS-KEY-456", "key="} {
			if strings.Contains(summary, secret) {
				t.Errorf("Summary for %s leaks %q: %s", result.Kind(), secret, summary)
			}
		}
	}
}

func TestWikipediaSource(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/w/api.php", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("srlimit") != "1" || q.Get("list") != "search" {
			t.Errorf("Unexpected search params: %v", q)
		}
		_, _ = fmt.Fprint(w, `{"query":{"search":[{"title":"Asteroid impact avoidance","snippet":"<span>planetary</span> defense"}]}}`)
	})
	mux.HandleFunc("/api/rest_v1/page/summary/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/api/rest_v1/page/summary/Asteroid%20impact%20avoidance" {
			t.Errorf("Unexpected summary path: %s", r.URL.EscapedPath())
		}
		_, _ = fmt.Fprint(w, `{"title":"Asteroid impact avoidance","extract":"Methods to deflect near-Earth objects."}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	result := NewWikipediaSource(newTestFetcher(), server.URL).Lookup(context.Background(), "asteroid hit earth")

	wiki := result.(*model.EncyclopediaResult)
	if !wiki.Found() {
		t.Fatalf("Expected article found, got %+v", wiki)
	}
	if wiki.Extract != "Methods to deflect near-Earth objects." {
		t.Errorf("Unexpected extract: %s", wiki.Extract)
	}
	if wiki.URL != server.URL+"/wiki/Asteroid%20impact%20avoidance" {
		t.Errorf("Unexpected URL: %s", wiki.URL)
	}
}

func TestWikipediaSource_SummaryFallsBackToSnippet(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/w/api.php", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"query":{"search":[{"title":"Bakery","snippet":"A <span class=\"searchmatch\">bakery</span> &amp; caf&eacute;"}]}}`)
	})
	mux.HandleFunc("/api/rest_v1/page/summary/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	wiki := NewWikipediaSource(newTestFetcher(), server.URL).Lookup(context.Background(), "bakery").(*model.EncyclopediaResult)
	if !wiki.Found() {
		t.Fatalf("Expected found, got %+v", wiki)
	}
	if wiki.Extract != "A bakery & café" {
		t.Errorf("Expected plain-text snippet, got %q", wiki.Extract)
	}
}

func TestWikipediaSource_NoArticle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"query":{"search":[]}}`)
	}))
	defer server.Close()

	wiki := NewWikipediaSource(newTestFetcher(), server.URL).Lookup(context.Background(), "zzqx").(*model.EncyclopediaResult)
	if !wiki.OK || wiki.Found() {
		t.Errorf("Expected ok and not found, got %+v", wiki)
	}
	if wiki.Message != "No Wikipedia article found" {
		t.Errorf("Unexpected message: %s", wiki.Message)
	}
}

func TestDuckDuckGoSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("format") != "json" || q.Get("no_html") != "1" || q.Get("skip_disambig") != "1" {
			t.Errorf("Unexpected params: %v", q)
		}
		_, _ = fmt.Fprint(w, `{"Abstract":"An asteroid is a minor planet.","AbstractURL":"https://en.wikipedia.org/wiki/Asteroid","Heading":"Asteroid"}`)
	}))
	defer server.Close()

	ddg := NewDuckDuckGoSource(newTestFetcher(), server.URL+"/").Lookup(context.Background(), "asteroid").(*model.SearchResult)
	if !ddg.Found() || ddg.Heading != "Asteroid" {
		t.Errorf("Unexpected result: %+v", ddg)
	}
}

func TestDuckDuckGoSource_EmptyAbstract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"Abstract":"","AbstractURL":"","Heading":""}`)
	}))
	defer server.Close()

	ddg := NewDuckDuckGoSource(newTestFetcher(), server.URL).Lookup(context.Background(), "bakery").(*model.SearchResult)
	if !ddg.OK || ddg.Found() {
		t.Errorf("Expected ok without abstract, got %+v", ddg)
	}
}

func TestNewsSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("sortBy") != "publishedAt" || q.Get("pageSize") != "5" || q.Get("apiKey") != "nkey" {
			t.Errorf("Unexpected params: %v", q)
		}
		_, _ = fmt.Fprint(w, `{"status":"ok","totalResults":42,"articles":[{"source":{"name":"BBC"},"title":"Storm hits coast","url":"https://bbc.co.uk/a","publishedAt":"2024-05-01T10:00:00Z"}]}`)
	}))
	defer server.Close()

	news := NewNewsSource(newTestFetcher(), server.URL, "nkey").Lookup(context.Background(), "storm").(*model.NewsResult)
	if !news.Found() || news.TotalResults != 42 || len(news.Articles) != 1 {
		t.Fatalf("Unexpected result: %+v", news)
	}
	if news.Articles[0].Source != "BBC" {
		t.Errorf("Unexpected source: %s", news.Articles[0].Source)
	}
}

func TestNewsSource_NotConfigured(t *testing.T) {
	news := NewNewsSource(newTestFetcher(), "http://unused", "").Lookup(context.Background(), "q").(*model.NewsResult)
	if !news.OK || !news.NotConfigured || news.TotalResults != 0 {
		t.Errorf("Expected ok not-configured with zero results, got %+v", news)
	}
}

type panicSource struct{}

func (panicSource) Kind() model.SourceKind { return model.SourceSearch }
func (panicSource) Lookup(ctx context.Context, query string) model.SourceResult {
	panic("boom")
}

type slowSource struct{}

func (slowSource) Kind() model.SourceKind { return model.SourceNews }
func (slowSource) Lookup(ctx context.Context, query string) model.SourceResult {
	<-ctx.Done()
	return model.FailedResult(model.SourceNews, ctx.Err().Error())
}

func TestRegistry_Lookup(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	registry := NewRegistry(20*time.Millisecond, nil, m)
	registry.Register(panicSource{})
	registry.Register(slowSource{})

	result := registry.Lookup(context.Background(), model.SourceSearch, "q")
	if result.Succeeded() {
		t.Error("Expected panicking source to yield a failed result")
	}

	result = registry.Lookup(context.Background(), model.SourceNews, "q")
	if result.Succeeded() {
		t.Error("Expected timed-out source to yield a failed result")
	}

	result = registry.Lookup(context.Background(), model.SourceFactCheck, "q")
	if result.Succeeded() || result.Kind() != model.SourceFactCheck {
		t.Errorf("Expected failed fact-check result for unregistered kind, got %+v", result)
	}

	if got := testutil.ToFloat64(m.ToolCallsTotal.WithLabelValues("duckduckgo", metrics.OutcomeFailed)); got != 1 {
		t.Errorf("tool_calls_total{duckduckgo,failed} = %v, want 1", got)
	}
}

func TestRegistry_KindsInPriorityOrder(t *testing.T) {
	config := model.DefaultConfig().Sources
	registry := NewDefaultRegistry(config, newTestFetcher(), nil, nil)

	kinds := registry.Kinds()
	want := model.SourcePriority
	if len(kinds) != len(want) {
		t.Fatalf("Expected %d kinds, got %v", len(want), kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("kind %d = %s, want %s", i, kinds[i], want[i])
		}
	}
}
