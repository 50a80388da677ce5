package answer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/docsage/docsage/internal/models"
)

// sourceGroup is one (doc_id, page) pair with its best-scoring hit.
type sourceGroup struct {
	best models.SearchResult
}

// groupHits collapses hits to one entry per (doc_id, page), keeping the
// highest-scoring hit of each, sorted by score descending and capped at limit.
func groupHits(hits []models.SearchResult, limit int) []sourceGroup {
	type key struct {
		doc  string
		page int
	}
	byKey := make(map[key]models.SearchResult)
	for _, h := range hits {
		k := key{h.DocID, h.Page}
		if cur, ok := byKey[k]; !ok || h.Score > cur.Score {
			byKey[k] = h
		}
	}
	groups := make([]sourceGroup, 0, len(byKey))
	for _, best := range byKey {
		groups = append(groups, sourceGroup{best: best})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].best.Score > groups[j].best.Score })
	if limit > 0 && len(groups) > limit {
		groups = groups[:limit]
	}
	return groups
}

// buildContext renders groups into a bounded context string. Each group is
// annotated with document name, page, and relevance percentage. When the cap
// would be exceeded, the last chunk is cut at a sentence boundary.
func buildContext(groups []sourceGroup, maxChars int) string {
	var b strings.Builder
	for _, grp := range groups {
		header := fmt.Sprintf("[%s — page %d, relevance %s]\n",
			docName(grp.best.DocID), grp.best.Page, relevancePercent(grp.best.Score))
		entry := header + grp.best.Text + "\n\n"

		if maxChars > 0 && b.Len()+len(entry) > maxChars {
			remaining := maxChars - b.Len() - len(header)
			if remaining <= 0 {
				break
			}
			truncated := truncateAtSentence(grp.best.Text, remaining)
			if truncated == "" {
				break
			}
			b.WriteString(header)
			b.WriteString(truncated)
			break
		}
		b.WriteString(entry)
	}
	return strings.TrimSpace(b.String())
}

// truncateAtSentence cuts text to at most max bytes, preferring the last
// sentence-ending punctuation mark; failing that, the last space.
func truncateAtSentence(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := text[:max]
	best := -1
	for i := len(cut) - 1; i >= 0; i-- {
		switch cut[i] {
		case '.', '!', '?':
			best = i + 1
		}
		if best >= 0 {
			break
		}
	}
	if best > 0 {
		return strings.TrimSpace(cut[:best])
	}
	if sp := strings.LastIndexByte(cut, ' '); sp > 0 {
		return strings.TrimSpace(cut[:sp])
	}
	return strings.TrimSpace(cut)
}
