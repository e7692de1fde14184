package agent

import (
	"fmt"
	"strings"

	"github.com/ppiankov/chainbreaker/internal/model"
)

// toolDescriptions lists every tool in the order shown to the model
var toolDescriptions = []struct {
	kind        model.SourceKind
	description string
}{
	{model.SourceNews, "Recent news"},
	{model.SourceEncyclopedia, "Background info"},
	{model.SourceSearch, "General search"},
	{model.SourceFactCheck, "Fact-check database"},
}

// extraordinaryHint is appended to the evidence when a claim that would be
// widely reported has no news coverage
const extraordinaryHint = "NOTE: This is an extraordinary claim that would be widely reported if true. No news coverage suggests it's likely FALSE."

// BuildToolPrompt asks the model to pick the next unused tool
func BuildToolPrompt(claim string, used []model.SourceKind) string {
	var b strings.Builder

	b.WriteString("You are selecting a fact-checking tool. Be concise.\n\n")
	b.WriteString("Available tools:\n")
	for _, tool := range toolDescriptions {
		fmt.Fprintf(&b, "- %s: %s\n", tool.kind, tool.description)
	}

	usedNames := make([]string, len(used))
	for i, kind := range used {
		usedNames[i] = string(kind)
	}
	usedText := strings.Join(usedNames, ", ")
	if usedText == "" {
		usedText = "none"
	}
	fmt.Fprintf(&b, "\nAlready used: %s\n\n", usedText)

	b.WriteString("Respond with ONLY this format (no extra text):\n")
	b.WriteString(`{"action":"tool_name","input":"search query"}`)
	fmt.Fprintf(&b, "\n\nPick the most relevant unused tool for: %s", claim)

	return b.String()
}

// BuildVerdictPrompt asks the model for a verdict over a compact evidence summary
func BuildVerdictPrompt(claim string, history []model.EvidenceRecord, hint bool) string {
	var b strings.Builder

	b.WriteString("Analyze evidence and give verdict.\n\n")
	fmt.Fprintf(&b, "CLAIM: %s\n\n", claim)
	b.WriteString("EVIDENCE:\n")
	b.WriteString(DescribeEvidence(history))
	if hint {
		b.WriteString("\n\n" + extraordinaryHint)
	}

	b.WriteString(`

Instructions:
- If claim is extraordinary (disaster/celebrity death/major event) AND no evidence found → verdict="false"
- If claim has strong contradicting evidence → verdict="false"
- If claim has supporting evidence → verdict="true"
- If claim partially true but misleading → verdict="misleading"
- If claim is mundane/uncertain AND no evidence → verdict="unverified"

Examples:
- "NASA confirmed asteroid will hit Earth" + no news = FALSE (extraordinary claim needs proof)
- "Company went bankrupt" + no evidence = FALSE (major event would have news)
- "New coffee shop opened nearby" + no evidence = UNVERIFIED (small claim, okay to not find)

Respond ONLY with this format:
{"verdict":"false","confidence":85,"summary":"explanation","sources":[{"name":"Source","url":"http://..."}]}

Verdicts: true/false/misleading/unverified
Extract URLs from evidence for sources array.`)

	return b.String()
}

// DescribeEvidence renders one numbered line per record: the tool, the query
// and what came back. Raw payloads are never included.
func DescribeEvidence(history []model.EvidenceRecord) string {
	lines := make([]string, 0, len(history))
	for i, record := range history {
		summary := "no result"
		if record.Result != nil {
			summary = record.Result.Summary()
			if citation, ok := record.Result.Citation(); ok {
				summary += " <" + citation.URL + ">"
			}
		}
		lines = append(lines, fmt.Sprintf("%d. %s (%q): %s", i+1, record.Source, record.Query, summary))
	}
	return strings.Join(lines, "\n")
}
