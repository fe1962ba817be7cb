package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/school-research-cli/internal/model"
	"github.com/sells-group/school-research-cli/internal/reviews"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the sa schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx, "migrate")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return err
		}
		zap.L().Info("migrations applied")
		return nil
	},
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load schools and reviews into PostgreSQL",
}

var (
	loadIn      string
	loadMigrate bool
)

var loadSchoolsCmd = &cobra.Command{
	Use:   "schools",
	Short: "Upsert enriched schools with their ratings and links",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		schools, err := readList[model.School](loadIn)
		if err != nil {
			return err
		}
		st, err := initStore(ctx, "load")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if loadMigrate {
			if err := st.Migrate(ctx); err != nil {
				return err
			}
		}

		nSchools, err := st.UpsertSchools(ctx, schools)
		if err != nil {
			return err
		}
		nRatings, err := st.UpsertRatings(ctx, schools)
		if err != nil {
			return err
		}
		nLinks, err := st.UpsertLinks(ctx, schools)
		if err != nil {
			return err
		}
		zap.L().Info("schools loaded",
			zap.Int("read", len(schools)),
			zap.Int64("schools", nSchools),
			zap.Int64("ratings", nRatings),
			zap.Int64("links", nLinks),
		)
		return nil
	},
}

var loadReviewsCmd = &cobra.Command{
	Use:   "reviews",
	Short: "Upsert classified reviews",
	Long:  "Reviews must reference schools already loaded. Russian-format dates are normalised before loading.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		f, err := reviews.Load(loadIn)
		if err != nil {
			return err
		}
		reviews.NormalizeDates(f.Reviews)

		st, err := initStore(ctx, "load")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if loadMigrate {
			if err := st.Migrate(ctx); err != nil {
				return err
			}
		}

		n, err := st.UpsertReviews(ctx, f.Reviews)
		if err != nil {
			return err
		}
		zap.L().Info("reviews loaded", zap.Int("read", len(f.Reviews)), zap.Int64("upserted", n))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{loadSchoolsCmd, loadReviewsCmd} {
		c.Flags().StringVar(&loadIn, "in", "", "input JSON file (required)")
		c.Flags().BoolVar(&loadMigrate, "migrate", false, "apply migrations before loading")
		_ = c.MarkFlagRequired("in")
	}
	loadCmd.AddCommand(loadSchoolsCmd, loadReviewsCmd)
	rootCmd.AddCommand(migrateCmd, loadCmd)
}
