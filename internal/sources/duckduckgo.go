package sources

import (
	"context"
	"net/url"

	"github.com/ppiankov/chainbreaker/internal/model"
)

// DuckDuckGoSource queries the DuckDuckGo instant-answer API
type DuckDuckGoSource struct {
	fetcher *Fetcher
	baseURL string
}

type ddgResponse struct {
	Abstract    string `json:"Abstract"`
	AbstractURL string `json:"AbstractURL"`
	Heading     string `json:"Heading"`
}

func NewDuckDuckGoSource(fetcher *Fetcher, baseURL string) *DuckDuckGoSource {
	return &DuckDuckGoSource{fetcher: fetcher, baseURL: baseURL}
}

func (s *DuckDuckGoSource) Kind() model.SourceKind { return model.SourceSearch }

func (s *DuckDuckGoSource) Lookup(ctx context.Context, query string) model.SourceResult {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	var resp ddgResponse
	if err := s.fetcher.GetJSON(ctx, s.baseURL+"?"+params.Encode(), &resp); err != nil {
		return model.FailedResult(model.SourceSearch, err.Error())
	}

	return &model.SearchResult{
		Status:   model.Status{OK: true},
		Heading:  resp.Heading,
		Abstract: resp.Abstract,
		URL:      resp.AbstractURL,
	}
}
