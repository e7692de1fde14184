// Package extract recovers structured data from noisy model output and plain text from
// HTML fragments returned by evidence providers.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	specialTokenPattern = regexp.MustCompile(`<\|.*?\|>`)
	thinkPattern        = regexp.MustCompile(`(?s)<think>.*?</think>`)
	fencePattern        = regexp.MustCompile("(?i)```(?:json)?\\n?")
	actionPattern       = regexp.MustCompile(`"action"\s*:\s*"([^"]+)"`)
	inputPattern        = regexp.MustCompile(`"input"\s*:\s*"([^"]+)"`)
)

// Clean strips sentence markers, chat-template tokens, reasoning traces and code fences.
func Clean(raw string) string {
	s := strings.ReplaceAll(raw, "</s>", "")
	s = strings.ReplaceAll(s, "<s>", "")
	s = specialTokenPattern.ReplaceAllString(s, "")
	s = thinkPattern.ReplaceAllString(s, "")
	s = fencePattern.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// JSON recovers a JSON object from model output.
//
// The outermost {...} span of the cleaned text is parsed first. If that fails, an
// "action"/"input" pair is pulled out of the raw text key by key. A nil map means nothing
// usable was found; callers are expected to fall back.
func JSON(raw string) map[string]interface{} {
	cleaned := Clean(raw)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start != -1 && end > start {
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(cleaned[start:end+1]), &obj); err == nil {
			return obj
		}
	}

	action := actionPattern.FindStringSubmatch(raw)
	if action == nil {
		return nil
	}
	obj := map[string]interface{}{
		"action": action[1],
		"input":  "",
	}
	if input := inputPattern.FindStringSubmatch(raw); input != nil {
		obj["input"] = input[1]
	}
	return obj
}

// String returns obj[key] when it is a non-empty string.
func String(obj map[string]interface{}, key string) string {
	if obj == nil {
		return ""
	}
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}

// Number returns obj[key] when it is a JSON number.
func Number(obj map[string]interface{}, key string) (float64, bool) {
	if obj == nil {
		return 0, false
	}
	n, ok := obj[key].(float64)
	return n, ok
}
