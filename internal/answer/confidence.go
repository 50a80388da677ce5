package answer

import (
	"math"

	"github.com/docsage/docsage/internal/models"
)

// confidence blends the hit scores into a single reliability estimate:
// a weighted sum of the top and mean scores, a capped bonus for very strong
// hits, a penalty for weak hits, and a bonus for consistent scores, all
// scaled and clamped. Callers apply the low-confidence floor override.
func (g *Generator) confidence(hits []models.SearchResult) float64 {
	if len(hits) == 0 {
		return 0
	}
	cfg := g.cfg

	top := 0.0
	sum := 0.0
	for _, h := range hits {
		if h.Score > top {
			top = h.Score
		}
		sum += h.Score
	}
	mean := sum / float64(len(hits))

	bonus := 0.0
	penalty := 0.0
	for _, h := range hits {
		if h.Score > cfg.VeryHighHitScore {
			bonus += cfg.VeryHighHitBonus
		} else if h.Score > cfg.HighHitScore {
			bonus += cfg.HighHitBonus
		}
		if h.Score < cfg.LowHitScore {
			penalty += cfg.LowHitPenalty
		}
	}
	if bonus > cfg.MaxBonus {
		bonus = cfg.MaxBonus
	}

	variance := 0.0
	for _, h := range hits {
		d := h.Score - mean
		variance += d * d
	}
	stddev := math.Sqrt(variance / float64(len(hits)))
	consistency := 0.0
	if len(hits) > 1 && stddev < cfg.ConsistencyStdDev {
		consistency = cfg.ConsistencyBonus
	}

	c := (cfg.TopWeight*top + cfg.MeanWeight*mean + bonus - penalty + consistency) * cfg.Scale
	if c < cfg.MinConfidence {
		c = cfg.MinConfidence
	}
	if c > cfg.MaxConfidence {
		c = cfg.MaxConfidence
	}
	return c
}
