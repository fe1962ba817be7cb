package main

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/school-research-cli/internal/fetcher"
	"github.com/sells-group/school-research-cli/internal/model"
	"github.com/sells-group/school-research-cli/internal/reviews"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export pipeline files for spreadsheet users",
}

var (
	exportIn   string
	exportOut  string
	exportKind string
)

var exportXLSXCmd = &cobra.Command{
	Use:   "xlsx",
	Short: "Write a review or merged-school file as an .xlsx sheet",
	RunE: func(_ *cobra.Command, _ []string) error {
		var (
			header []string
			rows   [][]string
		)
		switch exportKind {
		case "reviews":
			f, err := reviews.Load(exportIn)
			if err != nil {
				return err
			}
			header, rows = reviewTable(f.Reviews)
		case "schools":
			schools, err := readList[model.MergedSchool](exportIn)
			if err != nil {
				return err
			}
			header, rows = mergedSchoolTable(schools)
		default:
			return eris.Errorf("export: unknown kind %q (want reviews or schools)", exportKind)
		}

		if err := fetcher.WriteXLSX(exportOut, exportKind, header, rows); err != nil {
			return err
		}
		zap.L().Info("exported", zap.String("kind", exportKind), zap.Int("rows", len(rows)), zap.String("out", exportOut))
		return nil
	},
}

func reviewTable(list []model.Review) ([]string, [][]string) {
	header := []string{
		"review_id", "school_id", "date", "text", "rating", "likes_count", "dislikes_count",
		"topics", "overall", "main_idea", "tonality",
	}
	rows := make([][]string, 0, len(list))
	for _, r := range list {
		rows = append(rows, []string{
			string(r.ReviewID), string(r.SchoolID), r.Date, r.Text,
			optionalInt(r.Rating), optionalInt(r.LikesCount), optionalInt(r.DislikesCount),
			formatTopics(r.Topics), r.Overall, r.MainIdea, r.Tonality,
		})
	}
	return header, rows
}

func mergedSchoolTable(list []model.MergedSchool) ([]string, [][]string) {
	header := []string{"id", "name", "full_name", "adres", "2gis_url", "ym_url", "cadastral_number", "match_score", "reviews_count"}
	rows := make([][]string, 0, len(list))
	for _, s := range list {
		rows = append(rows, []string{
			strconv.Itoa(s.ID), s.Name, s.FullName, s.Address, s.TwoGISURL, s.YandexURL,
			s.CadastralNumber, formatOptional(s.MatchScore), optionalInt(s.ReviewsCount),
		})
	}
	return header, rows
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// formatTopics renders a topic map as "topic: label" pairs sorted by topic.
func formatTopics(topics map[string]string) string {
	if len(topics) == 0 {
		return ""
	}
	keys := make([]string, 0, len(topics))
	for k := range topics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + topics[k]
	}
	return strings.Join(parts, "; ")
}

var exportJSONCmd = &cobra.Command{
	Use:   "json",
	Short: "Convert an .xlsx sheet to a JSON list of records keyed by header",
	RunE: func(_ *cobra.Command, _ []string) error {
		records, err := fetcher.ReadXLSXRecords(exportIn, fetcher.XLSXOptions{})
		if err != nil {
			return err
		}
		if err := fetcher.WriteJSON(exportOut, records); err != nil {
			return err
		}
		zap.L().Info("exported", zap.Int("records", len(records)), zap.String("out", exportOut))
		return nil
	},
}

func init() {
	exportXLSXCmd.Flags().StringVar(&exportKind, "kind", "reviews", "reviews or schools")
	for _, c := range []*cobra.Command{exportXLSXCmd, exportJSONCmd} {
		c.Flags().StringVar(&exportIn, "in", "", "input file (required)")
		c.Flags().StringVar(&exportOut, "out", "", "output file (required)")
		_ = c.MarkFlagRequired("in")
		_ = c.MarkFlagRequired("out")
	}
	exportCmd.AddCommand(exportXLSXCmd, exportJSONCmd)
	rootCmd.AddCommand(exportCmd)
}
