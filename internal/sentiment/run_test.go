package sentiment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/school-research-cli/internal/model"
)

type failingClassifier struct{}

func (failingClassifier) Classify(context.Context, string, *int) (model.Analysis, error) {
	return model.Analysis{}, errors.New("boom")
}

func TestClassifyAll(t *testing.T) {
	reviews := []model.Review{
		{ReviewID: "1", Text: "Учителя отличные", Rating: ptr(5)},
		{ReviewID: "2", Text: "Столовая ужасная", Rating: ptr(1)},
		{ReviewID: "3", Text: ""},
	}
	rules := NewRuleClassifier(nil)

	require.NoError(t, ClassifyAll(context.Background(), rules, reviews, rules.Topics(), 2))

	assert.Equal(t, "учителя хороший", reviews[0].MainIdea)
	assert.Equal(t, "Положительный", reviews[0].Tonality)
	assert.Equal(t, "еда плохой", reviews[1].MainIdea)
	assert.Equal(t, "Отрицательный", reviews[1].Tonality)
	assert.Equal(t, "хорошая школа", reviews[2].MainIdea)
	assert.Equal(t, model.LabelPos, reviews[2].Overall)
}

func TestClassifyAll_ErrorsDefaultPositive(t *testing.T) {
	reviews := []model.Review{{ReviewID: "1", Text: "что угодно", Rating: ptr(1)}}

	require.NoError(t, ClassifyAll(context.Background(), failingClassifier{}, reviews, nil, 0))
	assert.Equal(t, model.LabelPos, reviews[0].Overall)
	assert.NotNil(t, reviews[0].Topics)
}

func TestClassifyAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reviews := []model.Review{{ReviewID: "1", Text: "x"}}

	err := ClassifyAll(ctx, failingClassifier{}, reviews, nil, 1)
	assert.Error(t, err)
}
