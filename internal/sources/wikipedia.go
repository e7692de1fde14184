package sources

import (
	"context"
	"net/url"
	"strings"

	"github.com/ppiankov/chainbreaker/internal/extract"
	"github.com/ppiankov/chainbreaker/internal/model"
)

// WikipediaSource searches for the best-matching article title and then
// fetches that article's summary.
type WikipediaSource struct {
	fetcher *Fetcher
	baseURL string // e.g. https://en.wikipedia.org
}

type wikiSearchResponse struct {
	Query struct {
		Search []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
		} `json:"search"`
	} `json:"query"`
}

type wikiSummaryResponse struct {
	Title   string `json:"title"`
	Extract string `json:"extract"`
}

// NewWikipediaSource creates an encyclopedia source rooted at baseURL
func NewWikipediaSource(fetcher *Fetcher, baseURL string) *WikipediaSource {
	return &WikipediaSource{fetcher: fetcher, baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (s *WikipediaSource) Kind() model.SourceKind { return model.SourceEncyclopedia }

func (s *WikipediaSource) Lookup(ctx context.Context, query string) model.SourceResult {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("format", "json")
	params.Set("srlimit", "1")

	var search wikiSearchResponse
	if err := s.fetcher.GetJSON(ctx, s.baseURL+"/w/api.php?"+params.Encode(), &search); err != nil {
		return model.FailedResult(model.SourceEncyclopedia, err.Error())
	}

	if len(search.Query.Search) == 0 {
		return &model.EncyclopediaResult{
			Status: model.Status{OK: true, Message: "No Wikipedia article found"},
		}
	}

	hit := search.Query.Search[0]
	escaped := url.PathEscape(hit.Title)

	var summary wikiSummaryResponse
	extractText := ""
	if err := s.fetcher.GetJSON(ctx, s.baseURL+"/api/rest_v1/page/summary/"+escaped, &summary); err == nil {
		extractText = summary.Extract
	}
	if extractText == "" {
		// Summary endpoint failed or was empty; the search snippet is HTML
		extractText = extract.PlainText(hit.Snippet)
	}

	return &model.EncyclopediaResult{
		Status:  model.Status{OK: true},
		Title:   hit.Title,
		Extract: extractText,
		URL:     s.baseURL + "/wiki/" + escaped,
	}
}
