package main

import (
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/school-research-cli/internal/model"
	"github.com/sells-group/school-research-cli/internal/reviews"
)

var reviewsCmd = &cobra.Command{
	Use:   "reviews",
	Short: "Filter, split, merge and clean review files",
}

var (
	reviewsFileIn  string
	reviewsFileOut string
	reviewsIDs     string
)

var reviewsFilterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Keep reviews of the listed schools and drop empty ones",
	RunE: func(_ *cobra.Command, _ []string) error {
		f, err := reviews.Load(reviewsFileIn)
		if err != nil {
			return err
		}
		allowed, err := reviews.ParseIDList(reviewsIDs)
		if err != nil {
			return err
		}
		kept, removed := reviews.Filter(f.Reviews, allowed)
		nonEmpty := reviews.DropEmpty(kept)

		f.Reviews = nonEmpty
		if err := reviews.Save(reviewsFileOut, f); err != nil {
			return err
		}
		zap.L().Info("reviews filtered",
			zap.Int("kept", len(nonEmpty)),
			zap.Int("other_schools", removed),
			zap.Int("empty", len(kept)-len(nonEmpty)),
		)
		return nil
	},
}

var reviewsSplitDir string

var reviewsSplitCmd = &cobra.Command{
	Use:   "split",
	Short: "Write one review file per school",
	RunE: func(_ *cobra.Command, _ []string) error {
		f, err := reviews.Load(reviewsFileIn)
		if err != nil {
			return err
		}
		paths, err := reviews.WriteSplit(reviewsSplitDir, f.Reviews)
		if err != nil {
			return err
		}
		zap.L().Info("reviews split", zap.Int("files", len(paths)), zap.String("dir", reviewsSplitDir))
		return nil
	},
}

var (
	mergeReviewsDir  string
	mergeAnalysisDir string
	mergeOutDir      string
)

var reviewsMergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge per-school analysis files back into the per-school review files",
	RunE: func(_ *cobra.Command, _ []string) error {
		n, err := reviews.MergeDir(mergeReviewsDir, mergeAnalysisDir, mergeOutDir)
		if err != nil {
			return err
		}
		zap.L().Info("analysis merged", zap.Int("schools", n), zap.String("dir", mergeOutDir))
		return nil
	},
}

var reviewsDatesCmd = &cobra.Command{
	Use:   "dates",
	Short: "Rewrite Russian review dates as YYYY-MM-DD",
	RunE: func(_ *cobra.Command, _ []string) error {
		f, err := reviews.Load(reviewsFileIn)
		if err != nil {
			return err
		}
		changed := reviews.NormalizeDates(f.Reviews)
		if err := reviews.Save(reviewsFileOut, f); err != nil {
			return err
		}
		zap.L().Info("review dates normalised", zap.Int("changed", changed), zap.Int("reviews", len(f.Reviews)))
		return nil
	},
}

var reviewsSchoolsFile string

var reviewsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Compare scraped review counts with the counts the listing advertises",
	RunE: func(_ *cobra.Command, _ []string) error {
		f, err := reviews.Load(reviewsFileIn)
		if err != nil {
			return err
		}
		schools, err := readList[model.MergedSchool](reviewsSchoolsFile)
		if err != nil {
			return err
		}
		expected := make(map[model.FlexID]int, len(schools))
		for _, s := range schools {
			if s.ReviewsCount != nil {
				expected[model.FlexID(strconv.Itoa(s.ID))] = *s.ReviewsCount
			}
		}

		mismatches := reviews.CheckCounts(expected, f.Reviews)
		for _, m := range mismatches {
			zap.L().Warn("review count mismatch",
				zap.String("school_id", string(m.SchoolID)),
				zap.Int("expected", m.Expected),
				zap.Int("scraped", m.Scraped),
			)
		}
		zap.L().Info("review counts checked", zap.Int("schools", len(expected)), zap.Int("mismatches", len(mismatches)))
		return printJSON(mismatches)
	},
}

func init() {
	for _, c := range []*cobra.Command{reviewsFilterCmd, reviewsSplitCmd, reviewsDatesCmd, reviewsCheckCmd} {
		c.Flags().StringVar(&reviewsFileIn, "in", "", "review file (required)")
		_ = c.MarkFlagRequired("in")
	}
	for _, c := range []*cobra.Command{reviewsFilterCmd, reviewsDatesCmd} {
		c.Flags().StringVar(&reviewsFileOut, "out", "", "output review file (required)")
		_ = c.MarkFlagRequired("out")
	}
	reviewsFilterCmd.Flags().StringVar(&reviewsIDs, "ids", "", "allowed school ids, e.g. 1-109,115,117 (required)")
	_ = reviewsFilterCmd.MarkFlagRequired("ids")

	reviewsSplitCmd.Flags().StringVar(&reviewsSplitDir, "dir", "reviews_by_school", "output directory")

	reviewsMergeCmd.Flags().StringVar(&mergeReviewsDir, "reviews-dir", "reviews_by_school", "per-school review files")
	reviewsMergeCmd.Flags().StringVar(&mergeAnalysisDir, "analysis-dir", "analysis_by_school", "per-school *_analyz.json files")
	reviewsMergeCmd.Flags().StringVar(&mergeOutDir, "out-dir", "reviews_final", "output directory")

	reviewsCheckCmd.Flags().StringVar(&reviewsSchoolsFile, "schools", "merged_schools.json", "reconciled school list with reviews_count")

	reviewsCmd.AddCommand(reviewsFilterCmd, reviewsSplitCmd, reviewsMergeCmd, reviewsDatesCmd, reviewsCheckCmd)
	rootCmd.AddCommand(reviewsCmd)
}
