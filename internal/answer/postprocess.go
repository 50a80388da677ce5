package answer

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// Citation markup a model may echo from the context, e.g. "[Source: x]"
	// or the bracketed headers used in the prompt.
	citationRe = regexp.MustCompile(`\[(?:Source|source)[^\]]*\]|\[[^\]]+ — page \d+, relevance \d+%\]`)

	// Self-referential preambles models like to open with.
	preambleRe = regexp.MustCompile(`(?i)^(as an ai( language model)?|based on the (provided |given )?(context|excerpts|documents?|information)|according to the (provided |given )?(context|excerpts|documents?))[,:]?\s*`)

	// Runs of horizontal whitespace, line breaks excluded.
	hspaceRe = regexp.MustCompile(`[ \t]{2,}`)

	hedgeRe = regexp.MustCompile(`(?i)\b(might|could|may|possibly|perhaps|unclear|uncertain|not sure)\b`)
)

// postprocess cleans raw model output: citation markup and AI preambles are
// stripped, horizontal whitespace is collapsed with line breaks preserved,
// and a disclaimer is appended when the text hedges over weak sources.
func postprocess(raw string, weakSources bool) string {
	text := citationRe.ReplaceAllString(raw, "")
	text = preambleRe.ReplaceAllString(strings.TrimSpace(text), "")
	if text != "" {
		// Re-capitalize after a stripped preamble. The first rune may be
		// multi-byte, so slicing on bytes would mangle it.
		r, size := utf8.DecodeRuneInString(text)
		if r != utf8.RuneError {
			text = string(unicode.ToUpper(r)) + text[size:]
		}
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(hspaceRe.ReplaceAllString(line, " "), " \t")
	}
	text = strings.TrimSpace(strings.Join(lines, "\n"))

	if weakSources && hedgeRe.MatchString(text) {
		text += hedgeDisclaimer
	}
	return text
}
