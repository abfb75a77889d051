package llm

import "strings"

// StripCodeFence removes a surrounding markdown code fence (```json or ```)
// from model output and trims whitespace.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
