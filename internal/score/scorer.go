package score

import (
	"fmt"
	"strings"

	"github.com/ppiankov/chainbreaker/internal/model"
)

// Evidence weights per source kind
const (
	weightFactCheck    = 3
	weightNews         = 2
	weightEncyclopedia = 2
	weightSearch       = 1
)

// Assessment is the weighted evidence picture for one claim
type Assessment struct {
	ClaimType model.ClaimType
	Score     int

	// Strong is set when a high-weight source (fact check or encyclopedia) was positive
	Strong bool

	// NewsCoverage is set when the news search reported any results
	NewsCoverage bool
}

// Extraordinary reports whether the claim would be widely reported if true
func (a Assessment) Extraordinary() bool {
	return a.ClaimType.IsExtraordinary()
}

// Scorer produces verdicts from evidence without a model
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Assess classifies the claim and sums evidence weights over history
func (s *Scorer) Assess(claim string, history []model.EvidenceRecord) Assessment {
	a := Assessment{ClaimType: Classify(claim)}

	for _, record := range history {
		switch r := record.Result.(type) {
		case *model.FactCheckResult:
			if r.Found() {
				a.Score += weightFactCheck
				a.Strong = true
			}
		case *model.NewsResult:
			if r.Found() {
				a.Score += weightNews
				a.NewsCoverage = true
			}
		case *model.EncyclopediaResult:
			if r.Found() {
				a.Score += weightEncyclopedia
				a.Strong = true
			}
		case *model.SearchResult:
			if r.Found() {
				a.Score += weightSearch
			}
		}
	}

	return a
}

// Calculate returns the rule-based verdict for claim. ToolCalls is left for the caller.
func (s *Scorer) Calculate(claim string, history []model.EvidenceRecord) model.Verdict {
	a := s.Assess(claim, history)
	sources := ExtractSources(history)

	switch {
	// Absence of coverage for a claim that would be widely reported
	case a.Extraordinary() && a.Score == 0:
		return model.Verdict{
			Label:      model.LabelFalse,
			Confidence: 85,
			Summary: fmt.Sprintf("This %s would be widely reported if true. No evidence found in news, Wikipedia, or fact-check databases suggests this claim is false.",
				strings.Replace(string(a.ClaimType), "_", " ", 1)),
			Sources: []model.Citation{},
		}

	case a.Strong && a.Score >= 4:
		others := len(sources) - 1
		if others < 0 {
			others = 0
		}
		return model.Verdict{
			Label:      model.LabelTrue,
			Confidence: 85,
			Summary:    fmt.Sprintf("Multiple reliable sources confirm this claim, including Wikipedia and %d other source(s).", others),
			Sources:    sources,
		}

	case !a.Extraordinary() && a.Score >= 2 && a.Strong:
		return model.Verdict{
			Label:      model.LabelTrue,
			Confidence: 75,
			Summary:    "Found reliable sources confirming this claim. Wikipedia and other sources provide verification.",
			Sources:    sources,
		}

	case a.Extraordinary() && a.Score < 3:
		return model.Verdict{
			Label:      model.LabelUnverified,
			Confidence: 60,
			Summary:    "This is a major claim that needs strong evidence. Only found limited sources. Treat with skepticism until verified by reliable news outlets.",
			Sources:    sources,
		}

	case a.Score >= 2:
		return model.Verdict{
			Label:      model.LabelUnverified,
			Confidence: 50,
			Summary:    fmt.Sprintf("Some evidence found but not enough to fully confirm. Review the %d source(s) for more context.", len(sources)),
			Sources:    sources,
		}

	default:
		return model.Unverified(35, "No reliable sources found to verify this claim. May be too recent or localized.")
	}
}

// ExtractSources collects citable sources from history, preferring fact check,
// then encyclopedia, news and search. Duplicate URLs are dropped and the list
// is capped at model.MaxCitations.
func ExtractSources(history []model.EvidenceRecord) []model.Citation {
	sources := make([]model.Citation, 0, model.MaxCitations)
	seen := make(map[string]bool)

	for _, kind := range model.CitationPriority {
		for _, record := range history {
			if record.Result == nil || record.Result.Kind() != kind {
				continue
			}
			citation, ok := record.Result.Citation()
			if !ok || seen[citation.URL] {
				continue
			}
			seen[citation.URL] = true
			sources = append(sources, citation)
			if len(sources) == model.MaxCitations {
				return sources
			}
		}
	}

	return sources
}
