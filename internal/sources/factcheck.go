package sources

import (
	"context"
	"net/url"

	"github.com/ppiankov/chainbreaker/internal/model"
)

const maxFactCheckClaims = 5

// FactCheckSource queries the Google Fact Check Tools claim search
type FactCheckSource struct {
	fetcher *Fetcher
	baseURL string
	apiKey  string
}

type factCheckResponse struct {
	Claims []struct {
		Text        string `json:"text"`
		Claimant    string `json:"claimant"`
		ClaimReview []struct {
			Publisher struct {
				Name string `json:"name"`
			} `json:"publisher"`
			URL           string `json:"url"`
			TextualRating string `json:"textualRating"`
		} `json:"claimReview"`
	} `json:"claims"`
}

// NewFactCheckSource creates a fact-check source. An empty apiKey disables lookups.
func NewFactCheckSource(fetcher *Fetcher, baseURL, apiKey string) *FactCheckSource {
	return &FactCheckSource{fetcher: fetcher, baseURL: baseURL, apiKey: apiKey}
}

func (s *FactCheckSource) Kind() model.SourceKind { return model.SourceFactCheck }

func (s *FactCheckSource) Lookup(ctx context.Context, query string) model.SourceResult {
	if s.apiKey == "" {
		return &model.FactCheckResult{
			Status: model.Status{OK: true, NotConfigured: true, Message: "API key not configured"},
			Claims: []model.FactCheckClaim{},
		}
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("key", s.apiKey)

	var resp factCheckResponse
	if err := s.fetcher.GetJSON(ctx, s.baseURL+"?"+params.Encode(), &resp); err != nil {
		return model.FailedResult(model.SourceFactCheck, err.Error())
	}

	claims := make([]model.FactCheckClaim, 0, maxFactCheckClaims)
	for i, c := range resp.Claims {
		if i >= maxFactCheckClaims {
			break
		}
		claim := model.FactCheckClaim{Text: c.Text, Claimant: c.Claimant}
		if len(c.ClaimReview) > 0 {
			review := c.ClaimReview[0]
			claim.Rating = review.TextualRating
			claim.Publisher = review.Publisher.Name
			claim.URL = review.URL
		}
		claims = append(claims, claim)
	}

	return &model.FactCheckResult{
		Status: model.Status{OK: true},
		Claims: claims,
	}
}
