package sentiment

import (
	"sort"
	"time"

	"github.com/sells-group/school-research-cli/internal/model"
)

// AggregateOptions bounds the yearly rows and fixes the topic columns.
type AggregateOptions struct {
	YearFrom int
	YearTo   int
	// Topics are listed in every row even when never mentioned.
	Topics []string
}

type counter struct {
	total, pos, neg int
}

type bucket struct {
	reviews int
	topics  map[string]*counter
}

func newBucket() *bucket {
	return &bucket{topics: map[string]*counter{}}
}

func (b *bucket) add(r model.Review) {
	b.reviews++
	for topic, label := range r.Topics {
		if !isLabelled(label) {
			continue
		}
		c := b.topics[topic]
		if c == nil {
			c = &counter{}
			b.topics[topic] = c
		}
		c.total++
		if label == model.LabelPos {
			c.pos++
		} else {
			c.neg++
		}
	}
}

func isLabelled(label string) bool {
	return label == model.LabelPos || label == model.LabelNeg
}

// Aggregate computes per-school topic metrics: one overall row per school
// (Year nil) and one row per school and year inside the window that has at
// least one pos or neg topic label. Labels other than pos and neg are
// ignored. Reviews without a school id are skipped; reviews without a parseable YYYY-MM-DD
// date count only toward the overall row. Rows are sorted by school id,
// overall row first, then by year.
func Aggregate(reviews []model.Review, opts AggregateOptions) []model.SchoolMetrics {
	overall := map[model.FlexID]*bucket{}
	yearly := map[model.FlexID]map[int]*bucket{}
	topicSet := map[string]bool{}
	for _, t := range opts.Topics {
		topicSet[t] = true
	}

	for _, r := range reviews {
		if r.SchoolID == "" {
			continue
		}
		for topic, label := range r.Topics {
			if isLabelled(label) {
				topicSet[topic] = true
			}
		}

		b := overall[r.SchoolID]
		if b == nil {
			b = newBucket()
			overall[r.SchoolID] = b
		}
		b.add(r)

		year, ok := reviewYear(r.Date)
		if !ok || year < opts.YearFrom || year > opts.YearTo {
			continue
		}
		years := yearly[r.SchoolID]
		if years == nil {
			years = map[int]*bucket{}
			yearly[r.SchoolID] = years
		}
		yb := years[year]
		if yb == nil {
			yb = newBucket()
			years[year] = yb
		}
		yb.add(r)
	}

	topics := make([]string, 0, len(topicSet))
	for t := range topicSet {
		topics = append(topics, t)
	}

	var out []model.SchoolMetrics
	for id, b := range overall {
		out = append(out, metricsRow(id, nil, b, topics))
		for year, yb := range yearly[id] {
			if len(yb.topics) == 0 {
				continue
			}
			y := year
			out = append(out, metricsRow(id, &y, yb, topics))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.SchoolID != b.SchoolID {
			return a.SchoolID.Less(b.SchoolID)
		}
		if a.Year == nil || b.Year == nil {
			return a.Year == nil && b.Year != nil
		}
		return *a.Year < *b.Year
	})
	return out
}

func metricsRow(id model.FlexID, year *int, b *bucket, topics []string) model.SchoolMetrics {
	row := model.SchoolMetrics{
		SchoolID:     id,
		Year:         year,
		ReviewsCount: b.reviews,
		Topics:       make(map[string]model.TopicMetric, len(topics)),
	}
	for _, t := range topics {
		c := b.topics[t]
		if c == nil || c.total == 0 {
			row.Topics[t] = model.TopicMetric{}
			continue
		}
		negShare := float64(c.neg) / float64(c.total)
		sentiment := float64(c.pos-c.neg) / float64(c.total)
		row.Topics[t] = model.TopicMetric{
			Count:     c.total,
			PosCount:  c.pos,
			NegCount:  c.neg,
			NegShare:  &negShare,
			Sentiment: &sentiment,
		}
	}
	return row
}

func reviewYear(date string) (int, bool) {
	t, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return 0, false
	}
	return t.Year(), true
}
