package trends

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/school-research-cli/internal/model"
)

func ptr[T any](v T) *T { return &v }

func rev(date string, rating int, tonality, idea string, likes int) model.Review {
	return model.Review{
		Date:       date,
		Rating:     ptr(rating),
		Tonality:   tonality,
		MainIdea:   idea,
		LikesCount: ptr(likes),
	}
}

func TestAnalyze_MonthlyStats(t *testing.T) {
	rep := Analyze([]model.Review{
		rev("2024-01-05", 5, "Положительный", "учителя хороший", 2),
		rev("2024-01-20", 2, "Отрицательный", "еда плохой", 0),
		{Date: "2024-02-01", Tonality: "странный"},
		rev("", 4, "Положительный", "хорошая школа", 0),
	}, Options{})

	require.Len(t, rep.Months, 2)
	jan := rep.Months[0]
	assert.Equal(t, "2024-01", jan.Month)
	assert.Equal(t, 2, jan.ReviewCount)
	assert.InDelta(t, 3.5, jan.AvgRating, 0.001)
	require.NotNil(t, jan.AvgSentiment)
	assert.InDelta(t, 0, *jan.AvgSentiment, 0.001)
	assert.InDelta(t, 1, *jan.AvgLikes, 0.001)

	feb := rep.Months[1]
	assert.Equal(t, 0.0, feb.AvgRating)
	assert.Nil(t, feb.AvgSentiment)
	assert.Nil(t, feb.AvgLikes)

	assert.Equal(t, 4, rep.Summary.Total)
	assert.Equal(t, 2, rep.Summary.Positive)
	assert.InDelta(t, 0.5, rep.Summary.PositiveShare, 0.001)
	require.NotNil(t, rep.Summary.AvgRating)
	assert.InDelta(t, 3.67, *rep.Summary.AvgRating, 0.001)
	assert.Nil(t, rep.Summary.RecentTrend)
}

func TestAnalyze_ThemeTrends(t *testing.T) {
	rep := Analyze([]model.Review{
		rev("2024-03-01", 1, "Отрицательный", "Столовая плохой, директор плохой", 3),
		rev("2024-03-02", 5, "Положительный", "учитель хороший", 1),
	}, Options{})

	var themes []string
	for _, tt := range rep.Themes {
		themes = append(themes, tt.Theme)
	}
	assert.Equal(t, []string{"администрация", "еда", "учителя"}, themes)
	assert.Equal(t, 1, rep.Themes[1].Mentions)
	assert.InDelta(t, -1, *rep.Themes[1].AvgSentiment, 0.001)
}

func TestAnalyze_ChangePoints(t *testing.T) {
	var reviews []model.Review
	for m := 1; m <= 5; m++ {
		reviews = append(reviews, rev(fmt.Sprintf("2024-%02d-10", m), 5, "Положительный", "хорошая школа", 0))
	}
	reviews = append(reviews,
		rev("2024-06-10", 1, "Отрицательный", "ремонт плохой", 0),
		rev("2024-06-11", 1, "Отрицательный", "ремонт плохой", 0),
		rev("2024-06-12", 1, "Отрицательный", "еда плохой", 0),
	)

	rep := Analyze(reviews, Options{})

	require.Len(t, rep.ChangePoints, 1)
	cp := rep.ChangePoints[0]
	assert.Equal(t, "2024-06", cp.Month)
	assert.Less(t, cp.ZScore, -1.5)
	assert.Equal(t, []IdeaCount{{"ремонт плохой", 2}, {"еда плохой", 1}}, cp.TopIdeas)
}

func TestAnalyze_NoChangePointsWhenFlat(t *testing.T) {
	rep := Analyze([]model.Review{
		rev("2024-01-01", 4, "", "", 0),
		rev("2024-02-01", 4, "", "", 0),
	}, Options{})
	assert.Empty(t, rep.ChangePoints)
}

func TestAnalyze_RecentTrend(t *testing.T) {
	reviews := []model.Review{rev("2023-12-01", 2, "", "", 0)}
	for m := 1; m <= 6; m++ {
		reviews = append(reviews, rev(fmt.Sprintf("2024-%02d-01", m), 4, "", "", 0))
	}

	rep := Analyze(reviews, Options{})

	require.NotNil(t, rep.Summary.RecentTrend)
	assert.InDelta(t, 2.0, *rep.Summary.RecentTrend, 0.001)
}

func TestAnalyze_Empty(t *testing.T) {
	rep := Analyze(nil, Options{})
	assert.Empty(t, rep.Months)
	assert.Empty(t, rep.ChangePoints)
	assert.Equal(t, 0, rep.Summary.Total)
	assert.Nil(t, rep.Summary.AvgRating)
}

func TestTopIdeas_SplitAndTies(t *testing.T) {
	got := topIdeas([]string{
		"учителя хороший, еда плохой",
		"еда плохой",
		"ремонт плохой, учителя хороший",
		"",
	}, 2, true)
	assert.Equal(t, []IdeaCount{{"учителя хороший", 2}, {"еда плохой", 2}}, got)
}
