package sentiment

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/school-research-cli/internal/model"
	"github.com/sells-group/school-research-cli/pkg/anthropic"
)

// AITopics is the topic set offered to the model.
var AITopics = []string{
	"учителя", "еда", "администрация", "буллинг", "инфраструктура", "охрана",
	"уборка", "ремонт", "питание", "атмосфера", "досуг", "безопасность", "расписание",
}

const maxAITopics = 5

type fewShot struct {
	Text    string            `json:"text"`
	Topics  map[string]string `json:"topics"`
	Overall string            `json:"overall"`
}

var fewShotExamples = []fewShot{
	{"Отличная школа! Еда в столовой вкусная, учителя почти все добрые", map[string]string{"еда": "pos", "учителя": "pos"}, "pos"},
	{"Плохая школа. Учителя невнимательные, еда отвратительная, в туалетах грязно", map[string]string{"учителя": "neg", "еда": "neg", "уборка": "neg"}, "neg"},
	{"Учителя все злые, плохое отношение к ученикам, ничему не учат", map[string]string{"учителя": "neg"}, "neg"},
	{"Учителя злые и ненавистные, плохо относятся к детям", map[string]string{"учителя": "neg"}, "neg"},
	{"Школа хорошая, но ремонт нужен. Стены в трещинах, окна старые", map[string]string{"ремонт": "neg"}, "pos"},
	{"Директор отличный, администрация работает хорошо. Но охрана слабая", map[string]string{"администрация": "pos", "охрана": "neg"}, "pos"},
	{"В школе травят детей, буллинг процветает. Учителя не реагируют", map[string]string{"буллинг": "neg", "учителя": "neg"}, "neg"},
	{"Спортзал новый, стадион отличный, оборудование современное", map[string]string{"инфраструктура": "pos"}, "pos"},
}

// AIOptions configures an AIClassifier.
type AIOptions struct {
	Model     string
	MaxTokens int64
	// Threshold is the minimum topic confidence kept; the comparison is strict.
	Threshold float64
}

// AIClassifier tags reviews with Claude and falls back to the rule
// classifier when the model call or its output fails.
type AIClassifier struct {
	client   anthropic.Client
	fallback *RuleClassifier
	opts     AIOptions
	system   string

	mu    sync.Mutex
	usage anthropic.Usage
}

// NewAIClassifier creates an AIClassifier.
func NewAIClassifier(client anthropic.Client, fallback *RuleClassifier, opts AIOptions) *AIClassifier {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 512
	}
	if opts.Threshold <= 0 {
		opts.Threshold = 0.4
	}
	if fallback == nil {
		fallback = NewRuleClassifier(nil)
	}
	return &AIClassifier{
		client:   client,
		fallback: fallback,
		opts:     opts,
		system:   systemPrompt(),
	}
}

// Topics returns AITopics.
func (c *AIClassifier) Topics() []string {
	return AITopics
}

// Usage returns the tokens consumed so far.
func (c *AIClassifier) Usage() anthropic.Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

// Classify implements Classifier.
func (c *AIClassifier) Classify(ctx context.Context, text string, rating *int) (model.Analysis, error) {
	if strings.TrimSpace(text) == "" {
		return model.Analysis{Topics: map[string]string{}, Overall: model.LabelPos}, nil
	}

	resp, err := c.client.Complete(ctx, anthropic.Request{
		Model:       c.opts.Model,
		MaxTokens:   c.opts.MaxTokens,
		System:      c.system,
		CacheSystem: true,
		Prompt:      text,
	})
	if err != nil {
		if ctx.Err() != nil {
			return model.Analysis{}, eris.Wrap(ctx.Err(), "sentiment: classify")
		}
		zap.L().Warn("sentiment: model call failed, using rules", zap.Error(err))
		return c.fallback.Analyze(text, rating), nil
	}

	c.mu.Lock()
	c.usage.Add(resp.Usage)
	c.mu.Unlock()

	a, err := c.parse(resp.Text, rating)
	if err != nil {
		zap.L().Warn("sentiment: unusable model output, using rules", zap.Error(err))
		return c.fallback.Analyze(text, rating), nil
	}
	return a, nil
}

type aiTopic struct {
	Score float64 `json:"score"`
	Label string  `json:"label"`
}

type aiResponse struct {
	Topics  map[string]aiTopic `json:"topics"`
	Overall string             `json:"overall"`
}

// parse reads the model's JSON answer. Topics outside AITopics, below the
// threshold or with an unknown label are dropped; at most five are kept.
func (c *AIClassifier) parse(raw string, rating *int) (model.Analysis, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return model.Analysis{}, eris.New("sentiment: no JSON object in model output")
	}

	var out aiResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &out); err != nil {
		return model.Analysis{}, eris.Wrap(err, "sentiment: decode model output")
	}

	known := make(map[string]bool, len(AITopics))
	for _, t := range AITopics {
		known[t] = true
	}

	type scored struct {
		name string
		aiTopic
	}
	var kept []scored
	for name, t := range out.Topics {
		if !known[name] || t.Score <= c.opts.Threshold {
			continue
		}
		if t.Label != model.LabelPos && t.Label != model.LabelNeg {
			continue
		}
		kept = append(kept, scored{name, t})
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		return kept[i].name < kept[j].name
	})
	if len(kept) > maxAITopics {
		kept = kept[:maxAITopics]
	}

	a := model.Analysis{Topics: make(map[string]string, len(kept))}
	var pos, neg int
	for _, k := range kept {
		a.Topics[k.name] = k.Label
		if k.Label == model.LabelPos {
			pos++
		} else {
			neg++
		}
	}

	switch {
	case rating != nil && *rating != 3:
		a.Overall = ratingLabel(*rating)
	case out.Overall == model.LabelPos || out.Overall == model.LabelNeg:
		a.Overall = out.Overall
	case neg > pos:
		a.Overall = model.LabelNeg
	default:
		a.Overall = model.LabelPos
	}
	return a, nil
}

func systemPrompt() string {
	var b strings.Builder
	b.WriteString("Ты анализируешь отзывы о школах. Определи, какие темы упоминаются в отзыве, ")
	b.WriteString("и тональность каждой темы, а также общую тональность отзыва.\n\n")
	b.WriteString("Допустимые темы: ")
	b.WriteString(strings.Join(AITopics, ", "))
	b.WriteString(".\n\n")
	b.WriteString("Ответь одним JSON-объектом без пояснений в формате ")
	b.WriteString(`{"topics": {"<тема>": {"score": <уверенность 0..1>, "label": "pos"|"neg"}}, "overall": "pos"|"neg"}`)
	b.WriteString(". Нейтральной тональности нет.\n\nПримеры:\n")
	for _, ex := range fewShotExamples {
		topics := make(map[string]aiTopic, len(ex.Topics))
		for name, label := range ex.Topics {
			topics[name] = aiTopic{Score: 0.9, Label: label}
		}
		answer, _ := json.Marshal(aiResponse{Topics: topics, Overall: ex.Overall})
		b.WriteString("Отзыв: ")
		b.WriteString(ex.Text)
		b.WriteString("\nОтвет: ")
		b.Write(answer)
		b.WriteString("\n\n")
	}
	return b.String()
}
