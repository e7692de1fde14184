package pipeline

import (
	"fmt"
	"strings"

	"github.com/ppiankov/chainbreaker/internal/model"
)

type labelStyle struct {
	title string
	mark  string
}

var labelStyles = map[model.Label]labelStyle{
	model.LabelTrue:       {title: "🟢", mark: "✅"},
	model.LabelFalse:      {title: "🔴", mark: "❌"},
	model.LabelMisleading: {title: "🟠", mark: "⚠️"},
	model.LabelUnverified: {title: "⚪", mark: "❓"},
}

// FormatVerdict renders a verdict as a Telegram Markdown reply
func FormatVerdict(v model.Verdict) string {
	style, ok := labelStyles[v.Label]
	if !ok {
		style = labelStyles[model.LabelUnverified]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s *FACT-CHECK RESULT*\n\n", style.title)
	fmt.Fprintf(&b, "%s *Verdict:* _%s_\n", style.mark, strings.ToUpper(string(v.Label)))
	fmt.Fprintf(&b, "📊 *Confidence:* %d%%\n\n", v.Confidence)
	fmt.Fprintf(&b, "📝 *Summary:*\n%s\n\n", v.Summary)
	b.WriteString("🔗 *Sources:*\n")

	if len(v.Sources) == 0 {
		b.WriteString("• No sources available")
		return b.String()
	}

	lines := make([]string, len(v.Sources))
	for i, src := range v.Sources {
		lines[i] = fmt.Sprintf("• [%s](%s)", src.Name, src.URL)
	}
	b.WriteString(strings.Join(lines, "\n"))
	return b.String()
}
