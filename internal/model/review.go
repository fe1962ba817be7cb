package model

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"
)

// Sentiment labels used for topics and overall review tone.
const (
	LabelPos = "pos"
	LabelNeg = "neg"
)

// Review is a single school review. Date is YYYY-MM-DD or empty.
type Review struct {
	ReviewID      FlexID            `json:"review_id"`
	SchoolID      FlexID            `json:"school_id"`
	Date          string            `json:"date"`
	Text          string            `json:"text"`
	Rating        *int              `json:"rating,omitempty"`
	LikesCount    *int              `json:"likes_count,omitempty"`
	DislikesCount *int              `json:"dislikes_count,omitempty"`
	Topics        map[string]string `json:"topics,omitempty"`
	Overall       string            `json:"overall,omitempty"`
	MainIdea      string            `json:"main_idea,omitempty"`
	Tonality      string            `json:"tonality,omitempty"`
}

// Analysis is the classifier output for one review.
type Analysis struct {
	ReviewID FlexID            `json:"review_id,omitempty"`
	Topics   map[string]string `json:"topics"`
	Overall  string            `json:"overall"`
	MainIdea string            `json:"main_idea,omitempty"`
	Tonality string            `json:"tonality,omitempty"`
}

// TopicMetric aggregates labelled mentions of one topic.
// Shares are nil when the topic was never mentioned.
type TopicMetric struct {
	Count     int      `json:"cnt"`
	PosCount  int      `json:"pos_cnt"`
	NegCount  int      `json:"neg_cnt"`
	NegShare  *float64 `json:"neg_share"`
	Sentiment *float64 `json:"sentiment"`
}

// SchoolMetrics is one aggregation row: a school overall (Year nil) or a
// school in a given year.
type SchoolMetrics struct {
	SchoolID     FlexID                 `json:"school_id"`
	Year         *int                   `json:"year"`
	ReviewsCount int                    `json:"reviews_count"`
	Topics       map[string]TopicMetric `json:"topics"`
}

// FlexID is an identifier that may be written as a JSON string or number
// in the scraped files. It always marshals as a string.
type FlexID string

// UnmarshalJSON accepts "12", 12 and null.
func (id *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return eris.Wrap(err, "model: decode id")
		}
		*id = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return eris.Wrap(err, "model: decode id")
	}
	*id = FlexID(n.String())
	return nil
}

// Int parses the identifier as an integer.
func (id FlexID) Int() (int, error) {
	n, err := strconv.Atoi(string(id))
	if err != nil {
		return 0, eris.Wrapf(err, "model: id %q is not an integer", string(id))
	}
	return n, nil
}

// Less orders numeric ids numerically and everything else as strings.
// Numeric ids sort before non-numeric ones.
func (id FlexID) Less(other FlexID) bool {
	a, errA := strconv.Atoi(string(id))
	b, errB := strconv.Atoi(string(other))
	switch {
	case errA == nil && errB == nil:
		return a < b
	case errA == nil:
		return true
	case errB == nil:
		return false
	}
	return id < other
}
