//go:build !integration

package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/school-research-cli/internal/config"
	"github.com/sells-group/school-research-cli/internal/model"
	"github.com/sells-group/school-research-cli/internal/reviews"
	"github.com/sells-group/school-research-cli/internal/sentiment"
)

func TestNewClassifier_AnthropicWithoutKeyUsesRules(t *testing.T) {
	prev := cfg
	t.Cleanup(func() { cfg = prev })
	cfg = &config.Config{}
	cfg.Classify.Provider = "anthropic"

	cls, ai, err := newClassifier("anthropic")
	require.NoError(t, err)
	assert.Nil(t, ai)
	assert.IsType(t, &sentiment.RuleClassifier{}, cls)
}

func TestNewClassifier_AnthropicWithKey(t *testing.T) {
	prev := cfg
	t.Cleanup(func() { cfg = prev })
	cfg = &config.Config{}
	cfg.Anthropic.Key = "sk-ant-test"
	cfg.Classify.Model = "claude-haiku-4-5"
	cfg.Classify.MaxTokens = 512

	cls, ai, err := newClassifier("anthropic")
	require.NoError(t, err)
	require.NotNil(t, ai)
	assert.Equal(t, sentiment.AITopics, cls.Topics())
}

func TestClassifyCommand_AnthropicWithoutKeyFallsBack(t *testing.T) {
	t.Setenv("SCHOOL_RESEARCH_ANTHROPIC_KEY", "")
	t.Cleanup(func() { classifyProvider = "" })

	dir := t.TempDir()
	in := filepath.Join(dir, "reviews.json")
	require.NoError(t, reviews.Save(in, reviews.NewFile("2GIS", "", []model.Review{
		{ReviewID: "1", SchoolID: "3", Date: "2024-01-01", Text: "Учителя отличные, очень нравится."},
		{ReviewID: "2", SchoolID: "3", Text: "  "},
	})))

	out := filepath.Join(dir, "classified.json")
	require.NoError(t, runRoot(t, "classify", "--in", in, "--out", out, "--provider", "anthropic"))

	f, err := reviews.Load(out)
	require.NoError(t, err)
	require.Len(t, f.Reviews, 1)
	assert.Equal(t, model.LabelPos, f.Reviews[0].Overall)
	assert.NotEmpty(t, f.Reviews[0].Tonality)
}
