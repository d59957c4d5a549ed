package protocol

import "encoding/json"

// UsageSnapshot is a normalized token-usage reading for a turn or step.
type UsageSnapshot struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Total  int `json:"total"`
}

// Field-name aliases across providers, checked in order; the first present
// numeric field wins.
var (
	usageInputAliases  = []string{"inputTokens", "input_tokens", "promptTokens", "prompt_tokens"}
	usageOutputAliases = []string{"outputTokens", "output_tokens", "completionTokens", "completion_tokens"}
	usageTotalAliases  = []string{"totalTokens", "total_tokens"}
)

// ExtractUsage pulls a usage snapshot out of a raw provider usage object.
// Total is derived as input+output when no total field is present. Returns
// false when the payload is empty, unparseable, or carries no counts at all.
func ExtractUsage(raw json.RawMessage) (UsageSnapshot, bool) {
	if len(raw) == 0 {
		return UsageSnapshot{}, false
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return UsageSnapshot{}, false
	}

	input, okIn := firstInt(fields, usageInputAliases)
	output, okOut := firstInt(fields, usageOutputAliases)
	total, okTotal := firstInt(fields, usageTotalAliases)

	if !okIn && !okOut && !okTotal {
		return UsageSnapshot{}, false
	}
	if !okTotal {
		total = input + output
	}
	return UsageSnapshot{Input: input, Output: output, Total: total}, true
}

// firstInt returns the first alias present in fields as an int.
func firstInt(fields map[string]any, aliases []string) (int, bool) {
	for _, name := range aliases {
		if v, ok := fields[name]; ok {
			if f, ok := v.(float64); ok {
				return int(f), true
			}
		}
	}
	return 0, false
}
