// Package reviews manipulates scraped review collections: loading and saving
// the review envelope, filtering, per-school splitting, merging classifier
// output back in, and normalising dates.
package reviews

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/school-research-cli/internal/fetcher"
	"github.com/sells-group/school-research-cli/internal/model"
)

// File is the on-disk envelope written by the review scrapers.
type File struct {
	Resource  string         `json:"resource,omitempty"`
	Topic     string         `json:"topic,omitempty"`
	ParseDate string         `json:"parse_date,omitempty"`
	RunID     string         `json:"run_id,omitempty"`
	Reviews   []model.Review `json:"reviews"`
}

// NewFile builds an envelope stamped with today's date.
func NewFile(resource, runID string, reviews []model.Review) *File {
	return &File{
		Resource:  resource,
		Topic:     "Отзывы о школах",
		ParseDate: time.Now().Format(time.DateOnly),
		RunID:     runID,
		Reviews:   reviews,
	}
}

// Load reads a review file. Both the envelope and a bare list of reviews
// (as written by SplitBySchool) are accepted.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "reviews: read %s", path)
	}
	var head map[string]json.RawMessage
	if json.Unmarshal(raw, &head) == nil {
		if _, ok := head["reviews"]; ok {
			var f File
			if err := json.Unmarshal(raw, &f); err != nil {
				return nil, eris.Wrapf(err, "reviews: decode envelope %s", path)
			}
			return &f, nil
		}
	}

	list, err := fetcher.ReadLenientObjects[model.Review](bytes.NewReader(raw))
	if err != nil {
		return nil, eris.Wrap(err, "reviews: load list")
	}
	return &File{Reviews: list}, nil
}

// Save writes the envelope.
func Save(path string, f *File) error {
	if f.Reviews == nil {
		f.Reviews = []model.Review{}
	}
	return eris.Wrap(fetcher.WriteJSON(path, f), "reviews: save")
}

// IsEmpty reports whether a review has neither a date nor text.
func IsEmpty(r model.Review) bool {
	return strings.TrimSpace(r.Date) == "" && strings.TrimSpace(r.Text) == ""
}

// DropEmpty removes reviews for which IsEmpty holds.
func DropEmpty(reviews []model.Review) []model.Review {
	out := make([]model.Review, 0, len(reviews))
	for _, r := range reviews {
		if !IsEmpty(r) {
			out = append(out, r)
		}
	}
	return out
}

// Filter keeps reviews whose school id is in allowed. It returns the kept
// reviews and the number removed.
func Filter(reviews []model.Review, allowed map[model.FlexID]bool) ([]model.Review, int) {
	kept := make([]model.Review, 0, len(reviews))
	for _, r := range reviews {
		if allowed[r.SchoolID] {
			kept = append(kept, r)
		}
	}
	return kept, len(reviews) - len(kept)
}

// ParseIDList parses allowed school ids like "1-109,115,117".
func ParseIDList(s string) (map[model.FlexID]bool, error) {
	ids := make(map[model.FlexID]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		if !isRange {
			ids[model.FlexID(part)] = true
			continue
		}
		from, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, eris.Wrapf(err, "reviews: bad range %q", part)
		}
		to, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return nil, eris.Wrapf(err, "reviews: bad range %q", part)
		}
		if from > to {
			return nil, eris.Errorf("reviews: empty range %q", part)
		}
		for i := from; i <= to; i++ {
			ids[model.FlexID(strconv.Itoa(i))] = true
		}
	}
	return ids, nil
}

// SplitFileName is the per-school file name used by SplitBySchool.
func SplitFileName(id model.FlexID) string {
	return fmt.Sprintf("school_review_separately_%s.json", id)
}

// SplitBySchool groups reviews by school, preserving input order within a
// school. The returned ids are sorted.
func SplitBySchool(reviews []model.Review) ([]model.FlexID, map[model.FlexID][]model.Review) {
	groups := make(map[model.FlexID][]model.Review)
	var ids []model.FlexID
	for _, r := range reviews {
		if _, ok := groups[r.SchoolID]; !ok {
			ids = append(ids, r.SchoolID)
		}
		groups[r.SchoolID] = append(groups[r.SchoolID], r)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids, groups
}

// WriteSplit writes one bare review list per school into dir and returns the
// written paths.
func WriteSplit(dir string, reviews []model.Review) ([]string, error) {
	ids, groups := SplitBySchool(reviews)
	paths := make([]string, 0, len(ids))
	for _, id := range ids {
		path := filepath.Join(dir, SplitFileName(id))
		if err := fetcher.WriteJSON(path, groups[id]); err != nil {
			return paths, eris.Wrapf(err, "reviews: write school %s", id)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// MergeAnalysis copies classifier output onto reviews by review id. Reviews
// without an analysis are returned unchanged.
func MergeAnalysis(reviews []model.Review, analyses []model.Analysis) []model.Review {
	byID := make(map[model.FlexID]model.Analysis, len(analyses))
	for _, a := range analyses {
		if a.ReviewID == "" {
			continue
		}
		byID[a.ReviewID] = a
	}

	merged := make([]model.Review, len(reviews))
	for i, r := range reviews {
		if a, ok := byID[r.ReviewID]; ok {
			r.Topics = a.Topics
			r.Overall = a.Overall
			if a.MainIdea != "" {
				r.MainIdea = a.MainIdea
			}
			if a.Tonality != "" {
				r.Tonality = a.Tonality
			}
		}
		merged[i] = r
	}
	return merged
}

var (
	splitFileRe    = regexp.MustCompile(`^school_reviews?_separately_(\d+)\.json$`)
	analysisFileRe = regexp.MustCompile(`^school_reviews?_separately_(\d+)_analyz\.json$`)
)

// MergeDir pairs per-school review files in reviewsDir with analysis files
// (<name>_analyz.json) in analysisDir and writes
// school_review_separately_<n>_final.json files into outDir. It returns the
// number of pairs merged.
func MergeDir(reviewsDir, analysisDir, outDir string) (int, error) {
	reviewFiles, err := indexDir(reviewsDir, splitFileRe)
	if err != nil {
		return 0, err
	}
	analysisFiles, err := indexDir(analysisDir, analysisFileRe)
	if err != nil {
		return 0, err
	}

	var common []int
	for n := range reviewFiles {
		if _, ok := analysisFiles[n]; ok {
			common = append(common, n)
		}
	}
	sort.Ints(common)

	merged := 0
	for _, n := range common {
		rf, err := Load(filepath.Join(reviewsDir, reviewFiles[n]))
		if err != nil {
			zap.L().Warn("reviews: skipping unreadable review file", zap.Int("school", n), zap.Error(err))
			continue
		}
		af, err := os.Open(filepath.Join(analysisDir, analysisFiles[n]))
		if err != nil {
			zap.L().Warn("reviews: skipping unreadable analysis file", zap.Int("school", n), zap.Error(err))
			continue
		}
		analyses, err := fetcher.ReadLenientObjects[model.Analysis](af)
		_ = af.Close()
		if err != nil {
			zap.L().Warn("reviews: skipping unreadable analysis file", zap.Int("school", n), zap.Error(err))
			continue
		}

		out := filepath.Join(outDir, fmt.Sprintf("school_review_separately_%d_final.json", n))
		if err := fetcher.WriteJSON(out, MergeAnalysis(rf.Reviews, analyses)); err != nil {
			return merged, eris.Wrapf(err, "reviews: write merged school %d", n)
		}
		zap.L().Info("reviews: merged analysis",
			zap.Int("school", n),
			zap.Int("reviews", len(rf.Reviews)),
			zap.Int("analyses", len(analyses)),
		)
		merged++
	}
	return merged, nil
}

func indexDir(dir string, re *regexp.Regexp) (map[int]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "reviews: list %s", dir)
	}
	files := make(map[int]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := re.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		files[n] = e.Name()
	}
	return files, nil
}

// Dedupe drops reviews whose trimmed text was already seen for the same
// school. Reviews with empty text are always kept.
func Dedupe(reviews []model.Review) []model.Review {
	type key struct {
		school model.FlexID
		text   string
	}
	seen := make(map[key]bool, len(reviews))
	out := make([]model.Review, 0, len(reviews))
	for _, r := range reviews {
		text := strings.TrimSpace(r.Text)
		if text == "" {
			out = append(out, r)
			continue
		}
		k := key{r.SchoolID, text}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}

// CountMismatch reports a school whose scraped review count differs from
// the count advertised by the listing.
type CountMismatch struct {
	SchoolID model.FlexID `json:"school_id"`
	Expected int          `json:"expected"`
	Scraped  int          `json:"scraped"`
}

// CheckCounts compares scraped review counts per school with the listing's
// reviews_count. Only mismatches are returned, sorted by school id.
func CheckCounts(expected map[model.FlexID]int, reviews []model.Review) []CountMismatch {
	scraped := make(map[model.FlexID]int)
	for _, r := range reviews {
		scraped[r.SchoolID]++
	}

	ids := make(map[model.FlexID]bool, len(expected)+len(scraped))
	for id := range expected {
		ids[id] = true
	}
	for id := range scraped {
		ids[id] = true
	}

	var out []CountMismatch
	for id := range ids {
		if expected[id] != scraped[id] {
			out = append(out, CountMismatch{SchoolID: id, Expected: expected[id], Scraped: scraped[id]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SchoolID.Less(out[j].SchoolID) })
	return out
}
