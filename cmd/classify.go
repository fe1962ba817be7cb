package main

import (
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/school-research-cli/internal/fetcher"
	"github.com/sells-group/school-research-cli/internal/model"
	"github.com/sells-group/school-research-cli/internal/reviews"
	"github.com/sells-group/school-research-cli/internal/sentiment"
	"github.com/sells-group/school-research-cli/internal/trends"
	"github.com/sells-group/school-research-cli/pkg/anthropic"
)

var (
	classifyIn       string
	classifyOut      string
	classifyProvider string
)

// topicClassifier is a Classifier that reports its topic order.
type topicClassifier interface {
	sentiment.Classifier
	Topics() []string
}

func newClassifier(provider string) (topicClassifier, *sentiment.AIClassifier, error) {
	lex, err := sentiment.LoadLexicon(cfg.Classify.LexiconPath)
	if err != nil {
		return nil, nil, err
	}
	rules := sentiment.NewRuleClassifier(lex)
	if provider != "anthropic" {
		return rules, nil, nil
	}
	if cfg.Anthropic.Key == "" {
		zap.L().Warn("anthropic.key is empty, classifying with rules",
			zap.String("provider", provider),
		)
		return rules, nil, nil
	}
	ai := sentiment.NewAIClassifier(anthropic.NewClient(cfg.Anthropic.Key), rules, sentiment.AIOptions{
		Model:     cfg.Classify.Model,
		MaxTokens: cfg.Classify.MaxTokens,
		Threshold: cfg.Classify.DetectThreshold,
	})
	return ai, ai, nil
}

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Tag reviews with topics, tone, main idea and tonality",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if classifyProvider != "" {
			cfg.Classify.Provider = classifyProvider
		}
		if err := cfg.Validate("classify"); err != nil {
			return err
		}

		f, err := reviews.Load(classifyIn)
		if err != nil {
			return err
		}
		cls, ai, err := newClassifier(cfg.Classify.Provider)
		if err != nil {
			return err
		}

		list := reviews.DropEmpty(f.Reviews)
		if dropped := len(f.Reviews) - len(list); dropped > 0 {
			zap.L().Info("dropped empty reviews", zap.Int("dropped", dropped))
		}
		if err := sentiment.ClassifyAll(ctx, cls, list, cls.Topics(), cfg.Classify.Concurrency); err != nil {
			return err
		}
		if ai != nil {
			ai.Usage().Log(cfg.Classify.Model, "classify")
		}

		f.Reviews = list
		if err := reviews.Save(classifyOut, f); err != nil {
			return err
		}
		zap.L().Info("reviews classified",
			zap.String("provider", cfg.Classify.Provider),
			zap.Int("reviews", len(list)),
			zap.String("out", classifyOut),
		)
		return nil
	},
}

var (
	aggregateIn   string
	aggregateOut  string
	aggregateXLSX string
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Compute topic metrics per school, overall and per year",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("analyze"); err != nil {
			return err
		}
		f, err := reviews.Load(aggregateIn)
		if err != nil {
			return err
		}

		lex, err := sentiment.LoadLexicon(cfg.Classify.LexiconPath)
		if err != nil {
			return err
		}
		topics := lex.TopicNames()
		if cfg.Classify.Provider == "anthropic" && cfg.Anthropic.Key != "" {
			topics = sentiment.AITopics
		}
		rows := sentiment.Aggregate(f.Reviews, sentiment.AggregateOptions{
			YearFrom: cfg.Analyze.YearFrom,
			YearTo:   cfg.Analyze.YearTo,
			Topics:   topics,
		})
		if err := fetcher.WriteJSON(aggregateOut, rows); err != nil {
			return err
		}
		if aggregateXLSX != "" {
			header, table := metricsTable(rows)
			if err := fetcher.WriteXLSX(aggregateXLSX, "metrics", header, table); err != nil {
				return err
			}
		}
		zap.L().Info("reviews aggregated", zap.Int("rows", len(rows)), zap.String("out", aggregateOut))
		return nil
	},
}

// metricsTable flattens metric rows to one column group per topic.
func metricsTable(rows []model.SchoolMetrics) ([]string, [][]string) {
	topicSet := map[string]bool{}
	for _, r := range rows {
		for t := range r.Topics {
			topicSet[t] = true
		}
	}
	topics := make([]string, 0, len(topicSet))
	for t := range topicSet {
		topics = append(topics, t)
	}
	sort.Strings(topics)

	header := []string{"school_id", "year", "reviews_count"}
	for _, t := range topics {
		header = append(header, t+"_cnt", t+"_pos_cnt", t+"_neg_cnt", t+"_neg_share", t+"_sentiment")
	}

	table := make([][]string, 0, len(rows))
	for _, r := range rows {
		year := ""
		if r.Year != nil {
			year = strconv.Itoa(*r.Year)
		}
		line := []string{string(r.SchoolID), year, strconv.Itoa(r.ReviewsCount)}
		for _, t := range topics {
			m := r.Topics[t]
			line = append(line,
				strconv.Itoa(m.Count), strconv.Itoa(m.PosCount), strconv.Itoa(m.NegCount),
				formatOptional(m.NegShare), formatOptional(m.Sentiment))
		}
		table = append(table, line)
	}
	return header, table
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

var (
	trendsIn     string
	trendsOut    string
	trendsSchool string
)

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Monthly rating, tone and theme trends per school",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("analyze"); err != nil {
			return err
		}
		f, err := reviews.Load(trendsIn)
		if err != nil {
			return err
		}

		ids, groups := reviews.SplitBySchool(f.Reviews)
		if trendsSchool != "" {
			id := model.FlexID(trendsSchool)
			if _, ok := groups[id]; !ok {
				return eris.Errorf("trends: no reviews for school %s", trendsSchool)
			}
			ids = []model.FlexID{id}
		}

		opts := trends.Options{ChangeZ: cfg.Analyze.ChangeZ}
		reports := make([]trends.Report, 0, len(ids))
		for _, id := range ids {
			rep := trends.Analyze(groups[id], opts)
			rep.SchoolID = id
			reports = append(reports, rep)
		}

		if trendsOut == "" {
			return printJSON(reports)
		}
		if err := fetcher.WriteJSON(trendsOut, reports); err != nil {
			return err
		}
		zap.L().Info("trends written", zap.Int("schools", len(reports)), zap.String("out", trendsOut))
		return nil
	},
}

func init() {
	classifyCmd.Flags().StringVar(&classifyIn, "in", "", "review file (required)")
	classifyCmd.Flags().StringVar(&classifyOut, "out", "", "output review file (required)")
	classifyCmd.Flags().StringVar(&classifyProvider, "provider", "", "rules or anthropic (default from config)")
	_ = classifyCmd.MarkFlagRequired("in")
	_ = classifyCmd.MarkFlagRequired("out")

	aggregateCmd.Flags().StringVar(&aggregateIn, "in", "", "classified review file (required)")
	aggregateCmd.Flags().StringVar(&aggregateOut, "out", "school_metrics.json", "output file")
	aggregateCmd.Flags().StringVar(&aggregateXLSX, "xlsx", "", "also write the metrics as a spreadsheet")
	_ = aggregateCmd.MarkFlagRequired("in")

	trendsCmd.Flags().StringVar(&trendsIn, "in", "", "classified review file (required)")
	trendsCmd.Flags().StringVar(&trendsOut, "out", "", "output file (default stdout)")
	trendsCmd.Flags().StringVar(&trendsSchool, "school", "", "analyze a single school id")
	_ = trendsCmd.MarkFlagRequired("in")

	rootCmd.AddCommand(classifyCmd, aggregateCmd, trendsCmd)
}
