package answer

import (
	"regexp"
	"strings"

	"github.com/docsage/docsage/internal/models"
)

// Conversational inputs skip retrieval entirely. The patterns are deliberately
// narrow so real questions never match.
var conversationalPatterns = []struct {
	re    *regexp.Regexp
	reply string
}{
	{
		regexp.MustCompile(`^(hi|hello|hey|good (morning|afternoon|evening)|greetings)[\s!.,]*$`),
		"Hello! Ask me anything about the documents you have ingested.",
	},
	{
		regexp.MustCompile(`^(who are you|what are you|what can you do)[\s?!.]*$`),
		"I answer questions using the documents stored in this service. Ingest a document, then ask about its contents.",
	},
	{
		regexp.MustCompile(`^(thanks|thank you|thx|ty)[\s!.,]*$`),
		"You're welcome!",
	},
	{
		regexp.MustCompile(`^(bye|goodbye|see you|cya)[\s!.,]*$`),
		"Goodbye!",
	},
	{
		regexp.MustCompile(`^(how are you)[\s?!.]*$`),
		"I'm doing well, thanks. What would you like to know about your documents?",
	},
}

// Conversational returns a canned answer for small-talk inputs, or nil when
// the question should go through retrieval.
func Conversational(question string) *models.Answer {
	q := strings.ToLower(strings.TrimSpace(question))
	for _, p := range conversationalPatterns {
		if p.re.MatchString(q) {
			return &models.Answer{
				Text:       p.reply,
				Sources:    []models.Source{},
				Confidence: 1.0,
			}
		}
	}
	return nil
}
