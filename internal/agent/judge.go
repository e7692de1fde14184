package agent

import (
	"context"
	"math"

	"github.com/ppiankov/chainbreaker/internal/extract"
	"github.com/ppiankov/chainbreaker/internal/llm"
	"github.com/ppiankov/chainbreaker/internal/logger"
	"github.com/ppiankov/chainbreaker/internal/metrics"
	"github.com/ppiankov/chainbreaker/internal/model"
	"github.com/ppiankov/chainbreaker/internal/score"
)

const (
	defaultConfidence = 50
	defaultSummary    = "Analysis completed based on available evidence."
)

// Judge turns gathered evidence into a verdict. The model path runs first; the
// rule-based scorer takes over whenever the model yields nothing usable.
type Judge struct {
	completer llm.Completer
	scorer    *score.Scorer
	log       *logger.Logger
	metrics   *metrics.Metrics
}

// NewJudge creates a judge. A nil completer always uses the rule-based path.
func NewJudge(completer llm.Completer, log *logger.Logger, m *metrics.Metrics) *Judge {
	if log == nil {
		log = logger.Nop()
	}
	return &Judge{
		completer: completer,
		scorer:    score.NewScorer(),
		log:       log,
		metrics:   m,
	}
}

// Verdict synthesizes a verdict for claim. ToolCalls is left for the caller.
func (j *Judge) Verdict(ctx context.Context, claim string, history []model.EvidenceRecord) model.Verdict {
	if j.completer != nil {
		if verdict, ok := j.modelVerdict(ctx, claim, history); ok {
			j.metrics.VerdictPath("model")
			return verdict
		}
	}

	j.metrics.VerdictPath("fallback")
	verdict := j.scorer.Calculate(claim, history)
	j.log.Debug("rule-based verdict", "label", verdict.Label, "confidence", verdict.Confidence)
	return verdict
}

func (j *Judge) modelVerdict(ctx context.Context, claim string, history []model.EvidenceRecord) (model.Verdict, bool) {
	assessment := j.scorer.Assess(claim, history)
	hint := assessment.Extraordinary() && !assessment.NewsCoverage

	raw, err := j.completer.Complete(ctx, BuildVerdictPrompt(claim, history, hint))
	if err != nil {
		j.log.Warn("verdict model failed, using rule-based fallback", "error", err)
		return model.Verdict{}, false
	}

	verdict, ok := ParseVerdict(extract.JSON(raw), history)
	if !ok {
		j.log.Warn("unparsable verdict, using rule-based fallback")
	}
	return verdict, ok
}

// ParseVerdict validates a recovered model response. It reports false when
// there is no object or no verdict field, so the caller can fall back.
func ParseVerdict(obj map[string]interface{}, history []model.EvidenceRecord) (model.Verdict, bool) {
	if obj == nil {
		return model.Verdict{}, false
	}
	rawLabel, present := obj["verdict"]
	if !present || rawLabel == nil || rawLabel == "" {
		return model.Verdict{}, false
	}

	label, _ := model.ParseLabel(extract.String(obj, "verdict"))

	confidence := defaultConfidence
	if n, ok := extract.Number(obj, "confidence"); ok && !math.IsNaN(n) {
		confidence = model.ClampConfidence(int(math.Round(math.Max(-1, math.Min(101, n)))))
	}

	summary := extract.String(obj, "summary")
	if summary == "" {
		summary = defaultSummary
	}

	var sources []model.Citation
	if list, ok := obj["sources"].([]interface{}); ok {
		sources = citationsFrom(list)
	} else {
		sources = score.ExtractSources(history)
	}

	return model.Verdict{
		Label:      label,
		Confidence: confidence,
		Summary:    summary,
		Sources:    sources,
	}, true
}

// citationsFrom keeps entries with both name and url, capped at model.MaxCitations
func citationsFrom(list []interface{}) []model.Citation {
	sources := make([]model.Citation, 0, model.MaxCitations)
	for _, item := range list {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		name := extract.String(entry, "name")
		url := extract.String(entry, "url")
		if name == "" || url == "" {
			continue
		}
		sources = append(sources, model.Citation{Name: name, URL: url})
		if len(sources) == model.MaxCitations {
			break
		}
	}
	return sources
}
