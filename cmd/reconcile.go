package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/school-research-cli/internal/embed"
	"github.com/sells-group/school-research-cli/internal/fetcher"
	"github.com/sells-group/school-research-cli/internal/model"
	"github.com/sells-group/school-research-cli/internal/reconcile"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Match school records across sources by embedding similarity",
}

func newEmbedder() (embed.Embedder, error) {
	if err := cfg.Validate("reconcile"); err != nil {
		return nil, err
	}
	return embed.New(embed.Options{
		Provider:   cfg.Embed.Provider,
		OllamaURL:  cfg.Embed.OllamaURL,
		Model:      cfg.Embed.Model,
		Dimensions: cfg.Embed.Dimensions,
		BatchSize:  cfg.Embed.BatchSize,
		MaxRetries: cfg.Scrape.MaxRetries,
	})
}

var (
	reconcileTwoGIS    string
	reconcileYandex    string
	reconcileCadastral string
	reconcileOut       string
	reconcileThreshold float64
)

var reconcileSourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Merge the 2GIS and Yandex school lists into one",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		emb, err := newEmbedder()
		if err != nil {
			return err
		}
		twogis, err := readList[model.SourceSchool](reconcileTwoGIS)
		if err != nil {
			return err
		}
		yandex, err := readList[model.SourceSchool](reconcileYandex)
		if err != nil {
			return err
		}
		if reconcileCadastral != "" {
			lookups, err := readList[model.CadastralRecord](reconcileCadastral)
			if err != nil {
				return err
			}
			reconcile.ApplyCadastral(twogis, lookups)
		}

		threshold := cfg.Reconcile.SourceThreshold
		if cmd.Flags().Changed("threshold") {
			threshold = reconcileThreshold
		}
		merged, stats, err := reconcile.MergeSources(ctx, emb, twogis, yandex, threshold)
		if err != nil {
			return err
		}
		if err := fetcher.WriteJSON(reconcileOut, merged); err != nil {
			return err
		}
		zap.L().Info("sources reconciled",
			zap.Int("rows", len(merged)),
			zap.Int("matched", stats.Matched),
			zap.Int("2gis_only", stats.TwoGISOnly),
			zap.Int("yandex_only", stats.YandexOnly),
			zap.Float64("threshold", threshold),
			zap.String("out", reconcileOut),
		)
		return nil
	},
}

var (
	nearSchools string
	nearList    string
	nearOut     string
)

var reconcileNearCmd = &cobra.Command{
	Use:   "near",
	Short: "Link schools to the \"schools near\" reference list",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		emb, err := newEmbedder()
		if err != nil {
			return err
		}
		schools, err := readList[model.ListedSchool](nearSchools)
		if err != nil {
			return err
		}
		near, err := readList[model.NearSchool](nearList)
		if err != nil {
			return err
		}

		matches, err := reconcile.MatchNear(ctx, emb, schools, near, reconcile.NearOptions{
			TopK: cfg.Reconcile.NearTopK,
			Keep: cfg.Reconcile.NearThreshold,
			Used: cfg.Reconcile.NearUsedThreshold,
		})
		if err != nil {
			return err
		}
		if err := fetcher.WriteJSON(nearOut, matches); err != nil {
			return err
		}
		zap.L().Info("near list matched",
			zap.Int("schools", len(schools)),
			zap.Int("near", len(near)),
			zap.Int("rows", len(matches)),
			zap.String("out", nearOut),
		)
		return nil
	},
}

func init() {
	reconcileSourcesCmd.Flags().StringVar(&reconcileTwoGIS, "twogis", "2gis_schools.json", "2GIS school details")
	reconcileSourcesCmd.Flags().StringVar(&reconcileYandex, "yandex", "yandex_schools.json", "Yandex school details")
	reconcileSourcesCmd.Flags().StringVar(&reconcileCadastral, "cadastral", "", "cadastral lookup results from scrape cadastral")
	reconcileSourcesCmd.Flags().StringVar(&reconcileOut, "out", "merged_schools.json", "output file")
	reconcileSourcesCmd.Flags().Float64Var(&reconcileThreshold, "threshold", 0, "match threshold (default from config)")

	reconcileNearCmd.Flags().StringVar(&nearSchools, "schools", "", "consolidated school list (required)")
	reconcileNearCmd.Flags().StringVar(&nearList, "near", "", "\"schools near\" reference list (required)")
	reconcileNearCmd.Flags().StringVar(&nearOut, "out", "schools_near_matches.json", "output file")
	_ = reconcileNearCmd.MarkFlagRequired("schools")
	_ = reconcileNearCmd.MarkFlagRequired("near")

	reconcileCmd.AddCommand(reconcileSourcesCmd, reconcileNearCmd)
	rootCmd.AddCommand(reconcileCmd)
}
