// Package sentiment tags school reviews with topics and a pos/neg tone,
// and aggregates the tags per school and year.
package sentiment

import (
	"context"
	"regexp"
	"strings"

	"github.com/sells-group/school-research-cli/internal/model"
)

// Classifier tags one review. rating is the 1-5 star score when known.
type Classifier interface {
	Classify(ctx context.Context, text string, rating *int) (model.Analysis, error)
}

var sentenceSplitRe = regexp.MustCompile(`[.!?]\s+`)

// RuleClassifier tags reviews with keyword and word-list rules. It never
// returns an error.
type RuleClassifier struct {
	lex      *Lexicon
	negation *regexp.Regexp
}

// NewRuleClassifier builds a classifier over lex. A nil lex uses the
// default lexicon.
func NewRuleClassifier(lex *Lexicon) *RuleClassifier {
	if lex == nil {
		lex = DefaultLexicon()
	}
	return &RuleClassifier{lex: lex, negation: negationPattern(lex)}
}

// Topics returns the topic names in lexicon order.
func (c *RuleClassifier) Topics() []string {
	return c.lex.TopicNames()
}

// negationPattern matches a negation word, an optional word, then one of the
// first five positive stems ("не очень хорошо").
func negationPattern(lex *Lexicon) *regexp.Regexp {
	if len(lex.Negations) == 0 || len(lex.PositiveWords) == 0 {
		return nil
	}
	neg := make([]string, len(lex.Negations))
	for i, w := range lex.Negations {
		neg[i] = regexp.QuoteMeta(w)
	}
	pos := lex.PositiveWords[:min(5, len(lex.PositiveWords))]
	quoted := make([]string, len(pos))
	for i, w := range pos {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?:^|[^\p{L}\p{N}_])(?:` + strings.Join(neg, "|") +
		`)\s+[\p{L}\p{N}_]*\s*(?:` + strings.Join(quoted, "|") + `)`)
}

// Classify implements Classifier.
func (c *RuleClassifier) Classify(_ context.Context, text string, rating *int) (model.Analysis, error) {
	return c.Analyze(text, rating), nil
}

// Analyze tags text. Empty text yields no topics and a positive overall.
func (c *RuleClassifier) Analyze(text string, rating *int) model.Analysis {
	a := model.Analysis{Topics: map[string]string{}, Overall: model.LabelPos}
	if strings.TrimSpace(text) == "" {
		return a
	}

	lower := strings.ToLower(text)
	for _, topic := range c.lex.Topics {
		var found []string
		for _, kw := range topic.Keywords {
			if matchKeyword(lower, kw) {
				found = append(found, kw)
			}
		}
		if len(found) == 0 {
			continue
		}
		a.Topics[topic.Name] = c.topicLabel(c.topicContext(text, found), rating)
	}

	a.Overall = c.overall(text, rating)
	return a
}

// TextSentiment scores text as 1, -1 or 0 from the word lists.
func (c *RuleClassifier) TextSentiment(text string) int {
	if text == "" {
		return 0
	}
	lower := strings.ToLower(text)

	pos := countSubstrings(lower, c.lex.PositiveWords)
	neg := countSubstrings(lower, c.lex.NegativeWords)
	neg += 2 * countSubstrings(lower, c.lex.NegativePhrases)
	if c.negation != nil && c.negation.MatchString(lower) {
		neg += 2
	}

	switch {
	case pos > neg:
		return 1
	case neg > pos:
		return -1
	default:
		return 0
	}
}

// topicContext joins the sentences mentioning any of keywords, falling back
// to the whole text. Phrases match as plain substrings here.
func (c *RuleClassifier) topicContext(text string, keywords []string) string {
	var relevant []string
	for _, sentence := range sentenceSplitRe.Split(text, -1) {
		lower := strings.ToLower(sentence)
		for _, kw := range keywords {
			if mentionsKeyword(lower, kw) {
				relevant = append(relevant, sentence)
				break
			}
		}
	}
	if len(relevant) == 0 {
		return text
	}
	return strings.Join(relevant, " ")
}

func mentionsKeyword(sentence, kw string) bool {
	if strings.Contains(kw, " ") {
		return strings.Contains(sentence, kw)
	}
	return matchKeyword(sentence, kw)
}

func (c *RuleClassifier) topicLabel(excerpt string, rating *int) string {
	sentiment := c.TextSentiment(excerpt)
	lower := strings.ToLower(excerpt)
	posCount := countSubstrings(lower, c.lex.PositiveIndicators)
	negCount := countSubstrings(lower, c.lex.NegativeIndicators)

	label := model.LabelPos
	switch {
	case sentiment > 0 || (sentiment == 0 && posCount > negCount):
		label = model.LabelPos
	case sentiment < 0 || (sentiment == 0 && negCount > posCount):
		label = model.LabelNeg
	}

	// A clear star rating wins unless the context strongly disagrees.
	if rating != nil {
		switch {
		case *rating <= 2 && !(posCount >= 3 && negCount == 0):
			label = model.LabelNeg
		case *rating >= 4 && !(negCount >= 3 && posCount == 0):
			label = model.LabelPos
		}
	}
	return label
}

func (c *RuleClassifier) overall(text string, rating *int) string {
	if rating != nil {
		return ratingLabel(*rating)
	}
	if c.TextSentiment(text) >= 0 {
		return model.LabelPos
	}
	return model.LabelNeg
}

// ratingLabel maps stars to a label; 3 stars counts as positive.
func ratingLabel(rating int) string {
	if rating <= 2 {
		return model.LabelNeg
	}
	return model.LabelPos
}

// MainIdea summarizes topics as up to three "<topic> хороший/плохой" phrases
// in order, or a whole-school phrase when no topic was found.
func MainIdea(topics map[string]string, overall string, order []string) string {
	var parts []string
	for _, name := range order {
		label, ok := topics[name]
		if !ok {
			continue
		}
		switch label {
		case model.LabelPos:
			parts = append(parts, name+" хороший")
		case model.LabelNeg:
			parts = append(parts, name+" плохой")
		}
		if len(parts) == 3 {
			break
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, ", ")
	}
	if len(topics) > 0 {
		return ""
	}
	if overall == model.LabelNeg {
		return "плохая школа"
	}
	return "хорошая школа"
}

// Tonality renders an overall label in the legacy Russian form.
func Tonality(overall string) string {
	if overall == model.LabelNeg {
		return "Отрицательный"
	}
	return "Положительный"
}
