package model

import (
	"fmt"
	"strings"
)

// SourceKind identifies an evidence source. The value doubles as the tool name shown to the model.
type SourceKind string

const (
	SourceFactCheck    SourceKind = "google_fact_check" // Structured fact-check database
	SourceEncyclopedia SourceKind = "wikipedia"         // Encyclopedia lookup (search title, then summary)
	SourceSearch       SourceKind = "duckduckgo"        // General instant-answer search
	SourceNews         SourceKind = "news_search"       // Recent news search
)

// SourcePriority is the deterministic order used when the model cannot pick a source.
var SourcePriority = []SourceKind{SourceNews, SourceEncyclopedia, SourceSearch, SourceFactCheck}

// CitationPriority is the order in which sources are preferred when citing evidence.
var CitationPriority = []SourceKind{SourceFactCheck, SourceEncyclopedia, SourceNews, SourceSearch}

// ParseSourceKind maps a tool name to a known SourceKind.
func ParseSourceKind(name string) (SourceKind, bool) {
	kind := SourceKind(strings.ToLower(strings.TrimSpace(name)))
	switch kind {
	case SourceFactCheck, SourceEncyclopedia, SourceSearch, SourceNews:
		return kind, true
	}
	return "", false
}

// Citation is a name/URL pair suitable for citing a source
type Citation struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// EvidenceRecord is one adapter invocation within a single orchestration run.
// Records are request-local and never persisted.
type EvidenceRecord struct {
	Source SourceKind   `json:"source"`
	Query  string       `json:"query"`
	Result SourceResult `json:"result"`
}

// SourceResult is the outcome of one evidence lookup. The concrete type is selected by
// Kind; callers type-switch on *FactCheckResult, *EncyclopediaResult, *SearchResult
// and *NewsResult.
type SourceResult interface {
	Kind() SourceKind

	// Succeeded reports whether the provider answered (ok). A failed lookup is evidence of absence.
	Succeeded() bool

	// Found reports whether the lookup produced a positive result.
	Found() bool

	// Citation returns a citable name/URL for a positive result.
	Citation() (Citation, bool)

	// Summary is a one-line description for prompts: what was found and how much.
	Summary() string

	sourceResult()
}

// Status carries the fields every source result shares
type Status struct {
	OK            bool   `json:"ok"`
	NotConfigured bool   `json:"not_configured,omitempty"` // Missing credentials, lookup skipped
	Message       string `json:"message,omitempty"`
}

// Succeeded reports whether the provider answered
func (s Status) Succeeded() bool { return s.OK }

func (s Status) unavailable() string {
	if s.NotConfigured {
		return "not configured"
	}
	if s.Message != "" {
		return "unavailable (" + s.Message + ")"
	}
	return "unavailable"
}

// FactCheckClaim is one reviewed claim from the fact-check database
type FactCheckClaim struct {
	Text      string `json:"text"`
	Claimant  string `json:"claimant,omitempty"`
	Rating    string `json:"rating,omitempty"`    // Publisher's textual rating, e.g. "False"
	Publisher string `json:"publisher,omitempty"` // Review publisher name
	URL       string `json:"url,omitempty"`       // Review URL
}

// FactCheckResult is the result of a fact-check database lookup
type FactCheckResult struct {
	Status
	Claims []FactCheckClaim `json:"claims"`
}

func (r *FactCheckResult) Kind() SourceKind { return SourceFactCheck }
func (r *FactCheckResult) Found() bool      { return r.OK && len(r.Claims) > 0 }
func (r *FactCheckResult) sourceResult()    {}

func (r *FactCheckResult) Citation() (Citation, bool) {
	if !r.Found() || r.Claims[0].URL == "" {
		return Citation{}, false
	}
	name := r.Claims[0].Publisher
	if name == "" {
		name = "Fact Check"
	}
	return Citation{Name: name, URL: r.Claims[0].URL}, true
}

func (r *FactCheckResult) Summary() string {
	if !r.OK || r.NotConfigured {
		return r.unavailable()
	}
	if len(r.Claims) == 0 {
		return "no fact-checks found"
	}
	first := r.Claims[0]
	return fmt.Sprintf("%d fact-check(s) found; first rated %q by %s", len(r.Claims), first.Rating, orDefault(first.Publisher, "unknown publisher"))
}

// EncyclopediaResult is the result of an encyclopedia lookup
type EncyclopediaResult struct {
	Status
	Title   string `json:"title,omitempty"`
	Extract string `json:"extract,omitempty"`
	URL     string `json:"url,omitempty"`
}

func (r *EncyclopediaResult) Kind() SourceKind { return SourceEncyclopedia }
func (r *EncyclopediaResult) Found() bool      { return r.OK && r.Title != "" }
func (r *EncyclopediaResult) sourceResult()    {}

func (r *EncyclopediaResult) Citation() (Citation, bool) {
	if !r.Found() || r.URL == "" {
		return Citation{}, false
	}
	return Citation{Name: "Wikipedia: " + r.Title, URL: r.URL}, true
}

func (r *EncyclopediaResult) Summary() string {
	if !r.OK {
		return r.unavailable()
	}
	if r.Title == "" {
		return "no article found"
	}
	return fmt.Sprintf("article %q found: %s", r.Title, truncate(r.Extract, 200))
}

// SearchResult is the result of a general instant-answer search
type SearchResult struct {
	Status
	Heading  string `json:"heading,omitempty"`
	Abstract string `json:"abstract,omitempty"`
	URL      string `json:"url,omitempty"`
}

func (r *SearchResult) Kind() SourceKind { return SourceSearch }
func (r *SearchResult) Found() bool      { return r.OK && r.Abstract != "" }
func (r *SearchResult) sourceResult()    {}

func (r *SearchResult) Citation() (Citation, bool) {
	if !r.Found() || r.URL == "" {
		return Citation{}, false
	}
	return Citation{Name: orDefault(r.Heading, "DuckDuckGo"), URL: r.URL}, true
}

func (r *SearchResult) Summary() string {
	if !r.OK {
		return r.unavailable()
	}
	if r.Abstract == "" {
		return "no instant answer"
	}
	return "instant answer: " + truncate(r.Abstract, 200)
}

// NewsArticle is one article returned by the news search
type NewsArticle struct {
	Title       string `json:"title"`
	Source      string `json:"source,omitempty"`
	URL         string `json:"url"`
	PublishedAt string `json:"published_at,omitempty"`
}

// NewsResult is the result of a recent-news search
type NewsResult struct {
	Status
	TotalResults int           `json:"total_results"`
	Articles     []NewsArticle `json:"articles,omitempty"`
}

func (r *NewsResult) Kind() SourceKind { return SourceNews }
func (r *NewsResult) Found() bool      { return r.OK && r.TotalResults > 0 }
func (r *NewsResult) sourceResult()    {}

func (r *NewsResult) Citation() (Citation, bool) {
	if !r.Found() || len(r.Articles) == 0 || r.Articles[0].URL == "" {
		return Citation{}, false
	}
	return Citation{Name: orDefault(r.Articles[0].Source, "News"), URL: r.Articles[0].URL}, true
}

func (r *NewsResult) Summary() string {
	if !r.OK || r.NotConfigured {
		return r.unavailable()
	}
	if r.TotalResults == 0 {
		return "no news coverage"
	}
	if len(r.Articles) > 0 {
		return fmt.Sprintf("%d articles; latest %q", r.TotalResults, r.Articles[0].Title)
	}
	return fmt.Sprintf("%d articles", r.TotalResults)
}

// FailedResult builds the ok=false result for kind. Unknown kinds yield a failed search result.
func FailedResult(kind SourceKind, message string) SourceResult {
	status := Status{OK: false, Message: message}
	switch kind {
	case SourceFactCheck:
		return &FactCheckResult{Status: status}
	case SourceEncyclopedia:
		return &EncyclopediaResult{Status: status}
	case SourceNews:
		return &NewsResult{Status: status}
	default:
		return &SearchResult{Status: status}
	}
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
