package mailtext

import "strings"

const (
	snippetMinLen   = 30
	snippetMaxChars = 250
)

// greetings that disqualify a line from being a digest snippet.
var greetingPrefixes = []string{"hi ", "dear ", "hello", "good morning", "good afternoon"}

// Snippet extracts the first meaningful line of a cleaned body for the daily
// digest: the first line of at least 30 characters that is neither a greeting
// nor a quote marker, else the first three lines joined. Capped at 250 chars.
func Snippet(cleaned string) string {
	if cleaned == "" {
		return "No content"
	}

	var lines []string
	for _, ln := range strings.Split(cleaned, "\n") {
		if s := strings.TrimSpace(ln); s != "" {
			lines = append(lines, s)
		}
	}

	for _, line := range lines {
		lower := strings.ToLower(line)
		if len(line) < snippetMinLen || strings.HasPrefix(lower, ">") {
			continue
		}
		if hasGreetingPrefix(lower) {
			continue
		}
		return Truncate(line, snippetMaxChars)
	}

	if len(lines) > 3 {
		lines = lines[:3]
	}
	return Truncate(strings.Join(lines, " "), snippetMaxChars)
}

func hasGreetingPrefix(lower string) bool {
	for _, g := range greetingPrefixes {
		if strings.HasPrefix(lower, g) {
			return true
		}
	}
	return false
}

// Truncate caps s at n runes. Cutting on a rune boundary matters for the
// Arabic bodies this service handles; a byte cut could split a sequence.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
