package answer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/docsage/docsage/internal/models"
)

// Canned responses for the non-retrieval paths.
const (
	noInformationText = "I could not find any relevant information in the ingested documents for that question."
	marginalText      = "I found some possibly related content, but nothing that directly answers your question. The sources below may still be worth a look."
	insufficientText  = "The ingested documents do not contain enough information to answer that question with confidence."
	hedgeDisclaimer   = "\n\nNote: this answer is based on sources with limited relevance and may be incomplete."
)

// Config holds the tunable policy behind threshold selection, context
// assembly, and confidence scoring. The numbers are hand-tuned; treat them
// as knobs, not invariants.
type Config struct {
	// Adaptive relevance threshold.
	BaseThreshold   float64 // applied to every hit set
	MidThreshold    float64 // applied when the best hit exceeds MidTrigger
	HighThreshold   float64 // applied when the best hit exceeds HighTrigger
	MidTrigger      float64
	HighTrigger     float64
	MarginalSources int // marginal hits reported when nothing clears the threshold

	// Context assembly.
	MaxContextChars int
	MaxSourceGroups int

	// Confidence blend.
	TopWeight        float64 // weight of the best hit's score
	MeanWeight       float64 // weight of the mean score
	HighHitBonus     float64 // per hit scoring above HighHitScore
	VeryHighHitBonus float64 // per hit scoring above VeryHighHitScore
	MaxBonus         float64
	HighHitScore     float64
	VeryHighHitScore float64
	LowHitPenalty    float64 // per hit scoring below LowHitScore
	LowHitScore      float64
	ConsistencyBonus float64 // added when score stddev is below ConsistencyStdDev
	ConsistencyStdDev float64
	Scale            float64 // applied to the whole blend
	MinConfidence    float64
	MaxConfidence    float64
	FloorConfidence  float64 // below this, the answer is replaced wholesale

	// Post-processing.
	HedgeMeanScore float64 // disclaimer applies when the mean score is below this
}

// DefaultConfig returns the tuned production policy.
func DefaultConfig() Config {
	return Config{
		BaseThreshold:   0.3,
		MidThreshold:    0.4,
		HighThreshold:   0.5,
		MidTrigger:      0.6,
		HighTrigger:     0.75,
		MarginalSources: 3,

		MaxContextChars: 8000,
		MaxSourceGroups: 8,

		TopWeight:         0.6,
		MeanWeight:        0.25,
		HighHitBonus:      0.03,
		VeryHighHitBonus:  0.05,
		MaxBonus:          0.15,
		HighHitScore:      0.8,
		VeryHighHitScore:  0.9,
		LowHitPenalty:     0.02,
		LowHitScore:       0.7,
		ConsistencyBonus:  0.03,
		ConsistencyStdDev: 0.1,
		Scale:             0.9,
		MinConfidence:     0.2,
		MaxConfidence:     0.95,
		FloorConfidence:   0.35,

		HedgeMeanScore: 0.7,
	}
}

// Generator produces answers from search hits via a generation model.
type Generator struct {
	llm    LLM
	cfg    Config
	logger *zap.Logger
}

// NewGenerator creates an answer generator.
func NewGenerator(llm LLM, cfg Config, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{llm: llm, cfg: cfg, logger: logger}
}

// Generate builds an answer for the question from the given hits.
//
// Empty hits produce a fixed zero-confidence answer. Hits below an adaptive
// relevance threshold are excluded from the model's context; when none
// survive, the caller gets either a low-confidence "possibly related" answer
// or a zero-confidence one, without a model call.
func (g *Generator) Generate(ctx context.Context, question string, hits []models.SearchResult) (models.Answer, error) {
	if ans := Conversational(question); ans != nil {
		return *ans, nil
	}
	if len(hits) == 0 {
		return models.Answer{Text: noInformationText, Sources: []models.Source{}, Confidence: 0}, nil
	}

	threshold := g.threshold(hits)
	relevant := filterAbove(hits, threshold)
	if len(relevant) == 0 {
		marginal := filterAtLeast(hits, g.cfg.BaseThreshold)
		if len(marginal) == 0 {
			return models.Answer{Text: noInformationText, Sources: []models.Source{}, Confidence: 0}, nil
		}
		groups := groupHits(marginal, g.cfg.MarginalSources)
		return models.Answer{
			Text:       marginalText,
			Sources:    sourcesFromGroups(groups),
			Confidence: 0.4,
		}, nil
	}

	groups := groupHits(relevant, g.cfg.MaxSourceGroups)
	contextText := buildContext(groups, g.cfg.MaxContextChars)
	prompt := buildPrompt(question, contextText)

	raw, err := g.llm.Complete(ctx, prompt)
	if err != nil {
		return models.Answer{}, err
	}

	mean := meanScore(relevant)
	text := postprocess(raw, mean < g.cfg.HedgeMeanScore)
	confidence := g.confidence(relevant)

	if confidence < g.cfg.FloorConfidence {
		g.logger.Debug("confidence below floor, discarding generated text",
			zap.Float64("confidence", confidence))
		return models.Answer{Text: insufficientText, Sources: []models.Source{}, Confidence: 0}, nil
	}

	return models.Answer{
		Text:       text,
		Sources:    sourcesFromGroups(groups),
		Confidence: confidence,
	}, nil
}

// threshold raises the relevance cutoff when the best hit is strong, so a
// good match is not diluted by weak neighbors.
func (g *Generator) threshold(hits []models.SearchResult) float64 {
	max := 0.0
	for _, h := range hits {
		if h.Score > max {
			max = h.Score
		}
	}
	switch {
	case max > g.cfg.HighTrigger:
		return g.cfg.HighThreshold
	case max > g.cfg.MidTrigger:
		return g.cfg.MidThreshold
	default:
		return g.cfg.BaseThreshold
	}
}

func filterAbove(hits []models.SearchResult, min float64) []models.SearchResult {
	out := make([]models.SearchResult, 0, len(hits))
	for _, h := range hits {
		if h.Score > min {
			out = append(out, h)
		}
	}
	return out
}

func filterAtLeast(hits []models.SearchResult, min float64) []models.SearchResult {
	out := make([]models.SearchResult, 0, len(hits))
	for _, h := range hits {
		if h.Score >= min {
			out = append(out, h)
		}
	}
	return out
}

func meanScore(hits []models.SearchResult) float64 {
	if len(hits) == 0 {
		return 0
	}
	sum := 0.0
	for _, h := range hits {
		sum += h.Score
	}
	return sum / float64(len(hits))
}

func buildPrompt(question, contextText string) string {
	var b strings.Builder
	b.WriteString("Answer the question using only the document excerpts below. ")
	b.WriteString("If the excerpts do not contain the answer, say so plainly. ")
	b.WriteString("Do not mention the excerpts, sources, or this prompt in your answer.\n\n")
	b.WriteString("Document excerpts:\n")
	b.WriteString(contextText)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	return b.String()
}

func sourcesFromGroups(groups []sourceGroup) []models.Source {
	out := make([]models.Source, 0, len(groups))
	for _, grp := range groups {
		out = append(out, models.Source{
			DocID:     grp.best.DocID,
			Page:      grp.best.Page,
			Relevance: roundScore(grp.best.Score),
		})
	}
	return out
}

func roundScore(s float64) float64 {
	return float64(int(s*1000+0.5)) / 1000
}

func docName(docID string) string {
	name := docID
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func relevancePercent(score float64) string {
	return fmt.Sprintf("%.0f%%", score*100)
}
