package sources

import (
	"context"
	"net/url"
	"strconv"

	"github.com/ppiankov/chainbreaker/internal/model"
)

const newsPageSize = 5

// NewsSource queries NewsAPI for recent coverage, newest first
type NewsSource struct {
	fetcher *Fetcher
	baseURL string
	apiKey  string
}

type newsResponse struct {
	Status       string `json:"status"`
	TotalResults int    `json:"totalResults"`
	Articles     []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string `json:"title"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

// NewNewsSource creates a news source. An empty apiKey disables lookups.
func NewNewsSource(fetcher *Fetcher, baseURL, apiKey string) *NewsSource {
	return &NewsSource{fetcher: fetcher, baseURL: baseURL, apiKey: apiKey}
}

func (s *NewsSource) Kind() model.SourceKind { return model.SourceNews }

func (s *NewsSource) Lookup(ctx context.Context, query string) model.SourceResult {
	if s.apiKey == "" {
		return &model.NewsResult{
			Status:   model.Status{OK: true, NotConfigured: true, Message: "API key not configured"},
			Articles: []model.NewsArticle{},
		}
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("sortBy", "publishedAt")
	params.Set("pageSize", strconv.Itoa(newsPageSize))
	params.Set("apiKey", s.apiKey)

	var resp newsResponse
	if err := s.fetcher.GetJSON(ctx, s.baseURL+"?"+params.Encode(), &resp); err != nil {
		return model.FailedResult(model.SourceNews, err.Error())
	}

	articles := make([]model.NewsArticle, 0, newsPageSize)
	for i, a := range resp.Articles {
		if i >= newsPageSize {
			break
		}
		articles = append(articles, model.NewsArticle{
			Title:       a.Title,
			Source:      a.Source.Name,
			URL:         a.URL,
			PublishedAt: a.PublishedAt,
		})
	}

	return &model.NewsResult{
		Status:       model.Status{OK: true},
		TotalResults: resp.TotalResults,
		Articles:     articles,
	}
}
