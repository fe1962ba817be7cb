package sentiment

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Topic is a review theme and the keywords that signal it. Single-word
// keywords match as word prefixes; multi-word keywords match as phrases.
type Topic struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Lexicon holds the word lists used by the rule classifier. Keywords must
// be lowercase.
type Lexicon struct {
	Topics             []Topic  `yaml:"topics"`
	PositiveWords      []string `yaml:"positive_words"`
	NegativeWords      []string `yaml:"negative_words"`
	NegativePhrases    []string `yaml:"negative_phrases"`
	Negations          []string `yaml:"negations"`
	PositiveIndicators []string `yaml:"positive_indicators"`
	NegativeIndicators []string `yaml:"negative_indicators"`
}

// DefaultLexicon returns the built-in Russian school-review lexicon.
func DefaultLexicon() *Lexicon {
	return &Lexicon{
		Topics: []Topic{
			{Name: "ремонт", Keywords: []string{"ремонт", "стены", "трещины", "туалет", "мозаик", "асфальт", "потолок", "пол", "окна", "двери", "отопление", "тепло"}},
			{Name: "учителя", Keywords: []string{
				"учитель", "учителя", "учителей", "учителю", "учителем",
				"преподаватель", "преподаватели", "преподавателей", "преподавателю", "преподавателем",
				"педагог", "педагоги", "педагогов", "педагогу", "педагогом",
				"классный руководитель", "классная руководительница",
				"предмет", "урок", "уроки", "обучение", "преподавание", "репетитор",
			}},
			{Name: "еда", Keywords: []string{"еда", "корм", "столовая", "питание", "отрав", "обед", "завтрак", "меню"}},
			{Name: "администрация", Keywords: []string{"директор", "завуч", "руководитель", "администрация", "управление"}},
			{Name: "буллинг", Keywords: []string{"травля", "буллинг", "обиж", "бьют", "конфликт", "ссора"}},
			{Name: "инфраструктура", Keywords: []string{"парковк", "пространств", "спортзал", "бассейн", "стадион", "площадка", "кабинет", "кабинеты", "оборудование"}},
			{Name: "охрана", Keywords: []string{"охрана", "безопасность", "пропуск", "вход", "выход"}},
			{Name: "уборка", Keywords: []string{"уборка", "чистота", "грязно", "мусор", "санитар"}},
		},
		PositiveWords: []string{
			"хорош", "отличн", "прекрасн", "замечательн", "великолепн", "супер", "классн",
			"нравится", "доволен", "рекомендую", "спасибо", "благодар", "люблю",
			"лучш", "профессионал", "качествен", "удобн", "комфортн",
		},
		NegativeWords: []string{
			"плох", "ужасн", "кошмар", "отвратительн", "недоволен", "жалоб", "проблем",
			"нельзя", "ужас", "плохо", "неудобн", "некачествен", "непрофессионал",
			"разочарован",
		},
		NegativePhrases: []string{"не рекомендую", "не советую", "не нравится", "не доволен", "не довольна"},
		Negations:       []string{"не", "нет", "ничего", "никогда"},
		PositiveIndicators: []string{
			"хорош", "отличн", "прекрасн", "замечательн", "преобразил", "улучшил",
			"нравится", "доволен", "рекомендую", "лучш", "качествен", "профессионал",
			"успех", "рад", "спасибо", "благодар",
		},
		NegativeIndicators: []string{
			"плох", "ужасн", "проблем", "не нравится", "недоволен", "жалоб",
			"отрав", "нельзя", "не рекомендую", "разочарован",
		},
	}
}

// LoadLexicon reads a YAML lexicon from path. Lists present in the file
// replace the defaults; lists it omits keep them.
func LoadLexicon(path string) (*Lexicon, error) {
	lex := DefaultLexicon()
	if path == "" {
		return lex, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "sentiment: read lexicon")
	}

	var override Lexicon
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return nil, eris.Wrap(err, "sentiment: parse lexicon")
	}

	if len(override.Topics) > 0 {
		lex.Topics = override.Topics
	}
	replace(&lex.PositiveWords, override.PositiveWords)
	replace(&lex.NegativeWords, override.NegativeWords)
	replace(&lex.NegativePhrases, override.NegativePhrases)
	replace(&lex.Negations, override.Negations)
	replace(&lex.PositiveIndicators, override.PositiveIndicators)
	replace(&lex.NegativeIndicators, override.NegativeIndicators)

	if err := lex.validate(); err != nil {
		return nil, err
	}
	return lex, nil
}

// TopicNames returns topic names in lexicon order.
func (l *Lexicon) TopicNames() []string {
	names := make([]string, len(l.Topics))
	for i, t := range l.Topics {
		names[i] = t.Name
	}
	return names
}

func (l *Lexicon) validate() error {
	seen := make(map[string]bool, len(l.Topics))
	for _, t := range l.Topics {
		if t.Name == "" {
			return eris.New("sentiment: lexicon topic without a name")
		}
		if seen[t.Name] {
			return eris.Errorf("sentiment: duplicate lexicon topic %q", t.Name)
		}
		if len(t.Keywords) == 0 {
			return eris.Errorf("sentiment: lexicon topic %q has no keywords", t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}

func replace(dst *[]string, src []string) {
	if len(src) > 0 {
		*dst = src
	}
}
