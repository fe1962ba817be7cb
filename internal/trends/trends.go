// Package trends computes per-month review dynamics for a single school:
// monthly rating and tone, theme trends, rating change points and a summary.
package trends

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sells-group/school-research-cli/internal/model"
)

// Tonality scores. Tonalities not listed here are left out of sentiment
// averages.
var tonalityScore = map[string]float64{
	"Положительный": 1,
	"Отрицательный": -1,
	"Нейтральный":   0,
	"Средний":       0,
}

// DefaultThemes maps a theme to substrings looked up in main_idea.
func DefaultThemes() map[string][]string {
	return map[string][]string{
		"ремонт":         {"ремонт", "стены", "трещины", "туалет", "мозаик", "асфальт"},
		"учителя":        {"учитель", "преподаватель", "педагог", "классный"},
		"еда":            {"еда", "корм", "столовая", "питание", "отрав"},
		"администрация":  {"директор", "завуч", "руководитель"},
		"буллинг":        {"травля", "буллинг", "обиж", "бьют"},
		"инфраструктура": {"парковк", "место", "пространств", "класс"},
	}
}

// Options tunes Analyze.
type Options struct {
	ChangeZ      float64             // |z| above which a month is a change point; default 1.5
	RecentMonths int                 // window for the recent trend; default 6
	TopIdeas     int                 // default 5
	Themes       map[string][]string // default DefaultThemes()
}

func (o Options) withDefaults() Options {
	if o.ChangeZ <= 0 {
		o.ChangeZ = 1.5
	}
	if o.RecentMonths <= 0 {
		o.RecentMonths = 6
	}
	if o.TopIdeas <= 0 {
		o.TopIdeas = 5
	}
	if o.Themes == nil {
		o.Themes = DefaultThemes()
	}
	return o
}

// MonthStats aggregates the reviews of one calendar month. Averages are
// rounded to two decimals; AvgRating is 0 when no review carried a rating.
type MonthStats struct {
	Month        string   `json:"month"`
	AvgRating    float64  `json:"avg_rating"`
	ReviewCount  int      `json:"review_count"`
	AvgSentiment *float64 `json:"avg_sentiment"`
	AvgLikes     *float64 `json:"avg_likes"`
}

// ThemeTrend is the average rating, tone and likes of reviews mentioning a
// theme in one month.
type ThemeTrend struct {
	Month        string   `json:"month"`
	Theme        string   `json:"theme"`
	Mentions     int      `json:"mentions"`
	AvgRating    *float64 `json:"avg_rating"`
	AvgSentiment *float64 `json:"avg_sentiment"`
	AvgLikes     *float64 `json:"avg_likes"`
}

// IdeaCount is a main_idea phrase with its frequency.
type IdeaCount struct {
	Idea  string `json:"idea"`
	Count int    `json:"count"`
}

// ChangePoint is a month whose average rating deviates sharply from the
// school's other months.
type ChangePoint struct {
	MonthStats
	ZScore   float64     `json:"z_score"`
	TopIdeas []IdeaCount `json:"top_ideas"`
}

// Summary is the headline view over all reviews.
type Summary struct {
	Total         int         `json:"total"`
	AvgRating     *float64    `json:"avg_rating"`
	Positive      int         `json:"positive"`
	PositiveShare float64     `json:"positive_share"`
	RecentTrend   *float64    `json:"recent_trend"`
	TopIdeas      []IdeaCount `json:"top_ideas"`
}

// Report is the full trend analysis for one school.
type Report struct {
	SchoolID     model.FlexID  `json:"school_id,omitempty"`
	Months       []MonthStats  `json:"months"`
	Themes       []ThemeTrend  `json:"themes"`
	ChangePoints []ChangePoint `json:"change_points"`
	Summary      Summary       `json:"summary"`
}

type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v float64) {
	m.sum += v
	m.n++
}

func (m mean) value() *float64 {
	if m.n == 0 {
		return nil
	}
	v := round2(m.sum / float64(m.n))
	return &v
}

type monthAcc struct {
	count     int
	rating    mean
	sentiment mean
	likes     mean
	ideas     []string
}

func (a *monthAcc) add(r model.Review) {
	a.count++
	if r.Rating != nil {
		a.rating.add(float64(*r.Rating))
	}
	if s, ok := tonalityScore[r.Tonality]; ok {
		a.sentiment.add(s)
	}
	if r.LikesCount != nil {
		a.likes.add(float64(*r.LikesCount))
	}
	a.ideas = append(a.ideas, r.MainIdea)
}

// Analyze builds the trend report for one school's reviews. Reviews with a
// date that is not YYYY-MM-DD count toward the summary only.
func Analyze(reviews []model.Review, opts Options) Report {
	opts = opts.withDefaults()

	months := make(map[string]*monthAcc)
	themes := make(map[[2]string]*monthAcc)
	themeNames := sortedKeys(opts.Themes)

	for _, r := range reviews {
		t, err := time.Parse(time.DateOnly, strings.TrimSpace(r.Date))
		if err != nil {
			continue
		}
		key := t.Format("2006-01")
		acc, ok := months[key]
		if !ok {
			acc = &monthAcc{}
			months[key] = acc
		}
		acc.add(r)

		idea := strings.ToLower(r.MainIdea)
		for _, theme := range themeNames {
			if !mentions(idea, opts.Themes[theme]) {
				continue
			}
			k := [2]string{key, theme}
			ta, ok := themes[k]
			if !ok {
				ta = &monthAcc{}
				themes[k] = ta
			}
			ta.add(r)
		}
	}

	rep := Report{
		Months:       monthlyStats(months),
		Themes:       themeTrends(themes),
		ChangePoints: []ChangePoint{},
	}
	rep.ChangePoints = changePoints(rep.Months, months, opts)
	rep.Summary = summarize(reviews, rep.Months, opts)
	return rep
}

func monthlyStats(months map[string]*monthAcc) []MonthStats {
	out := make([]MonthStats, 0, len(months))
	for _, key := range sortedKeys(months) {
		acc := months[key]
		ms := MonthStats{
			Month:        key,
			ReviewCount:  acc.count,
			AvgSentiment: acc.sentiment.value(),
			AvgLikes:     acc.likes.value(),
		}
		if v := acc.rating.value(); v != nil {
			ms.AvgRating = *v
		}
		out = append(out, ms)
	}
	return out
}

func themeTrends(themes map[[2]string]*monthAcc) []ThemeTrend {
	keys := make([][2]string, 0, len(themes))
	for k := range themes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})

	out := make([]ThemeTrend, 0, len(keys))
	for _, k := range keys {
		acc := themes[k]
		out = append(out, ThemeTrend{
			Month:        k[0],
			Theme:        k[1],
			Mentions:     acc.count,
			AvgRating:    acc.rating.value(),
			AvgSentiment: acc.sentiment.value(),
			AvgLikes:     acc.likes.value(),
		})
	}
	return out
}

// changePoints flags months whose average rating z-score (population
// standard deviation) exceeds opts.ChangeZ in absolute value.
func changePoints(stats []MonthStats, months map[string]*monthAcc, opts Options) []ChangePoint {
	out := []ChangePoint{}
	if len(stats) < 2 {
		return out
	}

	var sum float64
	for _, s := range stats {
		sum += s.AvgRating
	}
	avg := sum / float64(len(stats))
	var sq float64
	for _, s := range stats {
		sq += (s.AvgRating - avg) * (s.AvgRating - avg)
	}
	std := math.Sqrt(sq / float64(len(stats)))
	if std == 0 {
		return out
	}

	for _, s := range stats {
		z := (s.AvgRating - avg) / std
		if math.Abs(z) <= opts.ChangeZ {
			continue
		}
		out = append(out, ChangePoint{
			MonthStats: s,
			ZScore:     round2(z),
			TopIdeas:   topIdeas(months[s.Month].ideas, opts.TopIdeas, false),
		})
	}
	return out
}

func summarize(reviews []model.Review, stats []MonthStats, opts Options) Summary {
	s := Summary{Total: len(reviews), TopIdeas: []IdeaCount{}}
	if len(reviews) == 0 {
		return s
	}

	var rating mean
	ideas := make([]string, 0, len(reviews))
	for _, r := range reviews {
		if r.Rating != nil {
			rating.add(float64(*r.Rating))
		}
		if r.Tonality == "Положительный" {
			s.Positive++
		}
		ideas = append(ideas, r.MainIdea)
	}
	s.AvgRating = rating.value()
	s.PositiveShare = round2(float64(s.Positive) / float64(len(reviews)))
	s.TopIdeas = topIdeas(ideas, opts.TopIdeas, true)

	if n := len(stats); n > opts.RecentMonths {
		var recent, earlier mean
		for i, m := range stats {
			if i >= n-opts.RecentMonths {
				recent.add(m.AvgRating)
			} else {
				earlier.add(m.AvgRating)
			}
		}
		trend := round2(recent.sum/float64(recent.n) - earlier.sum/float64(earlier.n))
		s.RecentTrend = &trend
	}
	return s
}

// topIdeas counts main_idea values, optionally splitting them on commas,
// and returns the n most frequent. Ties keep first-seen order.
func topIdeas(ideas []string, n int, split bool) []IdeaCount {
	counts := make(map[string]int)
	var order []string
	add := func(idea string) {
		idea = strings.TrimSpace(idea)
		if idea == "" {
			return
		}
		if counts[idea] == 0 {
			order = append(order, idea)
		}
		counts[idea]++
	}
	for _, idea := range ideas {
		if !split {
			add(idea)
			continue
		}
		for _, part := range strings.Split(idea, ",") {
			add(part)
		}
	}

	out := make([]IdeaCount, 0, len(order))
	for _, idea := range order {
		out = append(out, IdeaCount{Idea: idea, Count: counts[idea]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func mentions(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
