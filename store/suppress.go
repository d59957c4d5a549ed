package store

import "strings"

// rawStreamPartPrefix marks provider debug lines that mirror the
// structured chunk stream and carry no information of their own.
const rawStreamPartPrefix = "[stream-part]"

// rawDebugFragments are substrings of provider-internal wire debug
// output. Lines containing any of them never reach the feed.
var rawDebugFragments = []string{
	`"type":"response.`,
	"function_call_arguments.delta",
	"reasoning_summary_text.delta",
	"reasoning_text.delta",
	`"obfuscation"`,
}

// isRawDebugLine reports whether a log line is raw provider debug
// output that should be dropped before it reaches the feed.
func isRawDebugLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, rawStreamPartPrefix) {
		return true
	}
	for _, frag := range rawDebugFragments {
		if strings.Contains(trimmed, frag) {
			return true
		}
	}
	return false
}
