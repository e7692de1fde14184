package model

import "strings"

// Label is the four-way verdict classification
type Label string

const (
	LabelTrue       Label = "true"
	LabelFalse      Label = "false"
	LabelMisleading Label = "misleading"
	LabelUnverified Label = "unverified"
)

// Labels lists every label in display order
var Labels = []Label{LabelTrue, LabelFalse, LabelMisleading, LabelUnverified}

// MaxCitations caps the number of sources attached to a verdict
const MaxCitations = 3

// ParseLabel maps model output to a Label. Unknown values are rejected.
func ParseLabel(s string) (Label, bool) {
	label := Label(strings.ToLower(strings.TrimSpace(s)))
	switch label {
	case LabelTrue, LabelFalse, LabelMisleading, LabelUnverified:
		return label, true
	}
	return LabelUnverified, false
}

// Verdict is the single result of one orchestration run
type Verdict struct {
	Label      Label      `json:"verdict"`
	Confidence int        `json:"confidence"` // 0-100
	Summary    string     `json:"summary"`
	Sources    []Citation `json:"sources"`
	ToolCalls  int        `json:"toolCalls"`
}

// Unverified returns a terminal unverified verdict without sources
func Unverified(confidence int, summary string) Verdict {
	return Verdict{
		Label:      LabelUnverified,
		Confidence: ClampConfidence(confidence),
		Summary:    summary,
		Sources:    []Citation{},
	}
}

// ClampConfidence bounds a confidence value to [0,100]
func ClampConfidence(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
