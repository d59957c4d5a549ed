package store

import (
	"encoding/json"
	"strings"
	"unicode"
	"unicode/utf8"
)

// truncateText cuts s to at most max bytes without splitting a rune
// and appends an ellipsis when anything was removed.
func truncateText(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// NormalizeQuestion cleans an ask prompt for display as a single
// line. It strips trailing stream debris, unwraps a JSON-embedded
// question field, drops a leading "question:" label, collapses
// whitespace and truncates to maxLen.
func NormalizeQuestion(text string, maxLen int) string {
	out := text
	if i := strings.Index(out, rawStreamPartPrefix); i >= 0 {
		out = out[:i]
	}
	if unwrapped, ok := unwrapQuestionField(out); ok {
		out = unwrapped
	}
	out = strings.TrimSpace(out)
	lower := strings.ToLower(out)
	if strings.HasPrefix(lower, "question:") {
		out = strings.TrimSpace(out[len("question:"):])
	}
	out = strings.Join(strings.Fields(out), " ")
	return truncateText(out, maxLen)
}

// unwrapQuestionField extracts the value of a "question" key when the
// text is, or embeds, a JSON object carrying one.
func unwrapQuestionField(text string) (string, bool) {
	idx := strings.Index(text, `"question"`)
	if idx < 0 {
		return "", false
	}
	rest := text[idx+len(`"question"`):]
	rest = strings.TrimLeft(rest, " \t")
	if !strings.HasPrefix(rest, ":") {
		return "", false
	}
	rest = strings.TrimLeft(rest[1:], " \t")
	if !strings.HasPrefix(rest, `"`) {
		return "", false
	}
	// Find the closing quote, honoring backslash escapes.
	for i := 1; i < len(rest); i++ {
		if rest[i] == '\\' {
			i++
			continue
		}
		if rest[i] == '"' {
			var out string
			if err := json.Unmarshal([]byte(rest[:i+1]), &out); err != nil {
				return "", false
			}
			return out, true
		}
	}
	return "", false
}

// Bounds for presentable ask options.
const (
	maxOptionLen   = 80
	maxOptionCount = 6
)

// NormalizeOptions trims ask options, drops entries that look like
// raw structured payloads rather than human-readable choices, dedupes
// survivors and caps both length and count.
func NormalizeOptions(opts []string) []string {
	out := make([]string, 0, len(opts))
	seen := make(map[string]struct{}, len(opts))
	for _, o := range opts {
		o = strings.TrimSpace(o)
		if o == "" || looksLikeRawPayload(o) {
			continue
		}
		o = truncateText(o, maxOptionLen)
		if _, dup := seen[o]; dup {
			continue
		}
		seen[o] = struct{}{}
		out = append(out, o)
		if len(out) == maxOptionCount {
			break
		}
	}
	return out
}

// ShouldRenderPicklist reports whether the normalized options are
// worth presenting as a selectable list instead of free-form input.
func ShouldRenderPicklist(opts []string) bool {
	norm := NormalizeOptions(opts)
	return len(norm) >= 2
}

// looksLikeRawPayload flags option text that is structured data
// leaking through the ask channel.
func looksLikeRawPayload(s string) bool {
	if strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") {
		return true
	}
	if strings.Contains(s, `":`) {
		return true
	}
	if len(s) > 120 && !strings.Contains(s, " ") {
		return true
	}
	if camelRuns(s) >= 3 && !strings.Contains(s, " ") {
		return true
	}
	if punctDensity(s) > 0.25 {
		return true
	}
	return false
}

func camelRuns(s string) int {
	runs := 0
	prev := rune(0)
	for _, r := range s {
		if unicode.IsLower(prev) && unicode.IsUpper(r) {
			runs++
		}
		prev = r
	}
	return runs
}

func punctDensity(s string) float64 {
	if s == "" {
		return 0
	}
	n := 0
	for _, r := range s {
		switch r {
		case '{', '}', '[', ']', '"', ':', ',', '<', '>', '/', '\\':
			n++
		}
	}
	return float64(n) / float64(len(s))
}
