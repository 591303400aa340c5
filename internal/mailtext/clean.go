// Package mailtext normalizes raw email bodies before classification.
//
// Corporate mail arrives wrapped in quoted history, signatures and legal
// disclaimers; everything below strips that down to the lines the author
// actually wrote.
package mailtext

import "strings"

// DefaultTruncateChars caps cleaned bodies fed to the language models.
const DefaultTruncateChars = 2000

// disclaimerMarkers cut the body at the first marker, in any supported language.
var disclaimerMarkers = []string{"Disclaimer:", "إشعار:"}

// forwardedHeaders open a quoted-history block; everything after is history.
var forwardedHeaders = []string{"From:", "Sent:", "To:", "Subject:"}

// separatorLines mark a signature or divider; cleaning stops there.
var separatorLines = map[string]bool{
	"--":  true,
	"---": true,
	"________________________________": true,
}

const legalNoticePhrase = "this email and any attachments"

// Clean strips quoted-reply chains, disclaimers and signature blocks from a
// raw body and truncates the result to maxChars. A maxChars of 0 or less
// disables the cap.
func Clean(body string, maxChars int) string {
	if body == "" {
		return ""
	}

	for _, marker := range disclaimerMarkers {
		if idx := strings.Index(body, marker); idx >= 0 {
			body = body[:idx]
		}
	}

	var kept []string
	for _, line := range strings.Split(body, "\n") {
		stripped := strings.TrimSpace(line)

		if startsForwardBlock(stripped) {
			break
		}
		if strings.HasPrefix(stripped, ">") {
			continue
		}
		if separatorLines[stripped] {
			break
		}
		if strings.Contains(strings.ToLower(stripped), legalNoticePhrase) {
			break
		}
		kept = append(kept, line)
	}

	cleaned := strings.TrimSpace(strings.Join(kept, "\n"))
	if maxChars > 0 {
		return Truncate(cleaned, maxChars)
	}
	return cleaned
}

func startsForwardBlock(line string) bool {
	for _, h := range forwardedHeaders {
		if strings.HasPrefix(line, h) {
			return true
		}
	}
	return false
}

// PreferText returns the plain-text body when present, else the HTML body.
func PreferText(textBody, body string) string {
	if textBody != "" {
		return textBody
	}
	return body
}
