package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/school-research-cli/internal/checkpoint"
	"github.com/sells-group/school-research-cli/internal/fetcher"
	"github.com/sells-group/school-research-cli/internal/model"
	"github.com/sells-group/school-research-cli/internal/reviews"
	"github.com/sells-group/school-research-cli/internal/scrape"
)

var (
	scrapeBrowserOnly bool
	scrapeCacheTTL    time.Duration
	scrapeReset       bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape school listings and reviews from map services",
	Long: "Each subcommand fetches its pages through a plain HTTP client first and a headless browser second. " +
		"Progress is checkpointed so an interrupted scrape resumes; results are merged into the existing output file.",
}

// scrapeEnv bundles the fetcher chain and the checkpoint store of a scrape.
type scrapeEnv struct {
	cp      *checkpoint.Store
	browser *scrape.BrowserFetcher
	fetcher scrape.Fetcher
}

func newScrapeEnv(ctx context.Context) (*scrapeEnv, error) {
	if err := cfg.Validate("scrape"); err != nil {
		return nil, err
	}
	cp, err := checkpoint.Open(ctx, cfg.Scrape.CheckpointPath)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(cfg.Scrape.TimeoutSecs) * time.Second
	browser := scrape.NewBrowserFetcher(scrape.BrowserOptions{
		Bin:         cfg.Scrape.BrowserBin,
		Headless:    cfg.Scrape.Headless,
		UserAgent:   cfg.Scrape.UserAgent,
		Timeout:     2 * timeout,
		ScrollCount: cfg.Scrape.ScrollCount,
	})

	var fetchers []scrape.Fetcher
	if !scrapeBrowserOnly {
		fetchers = append(fetchers, scrape.NewHTTPFetcher(scrape.HTTPOptions{
			UserAgent:  cfg.Scrape.UserAgent,
			Timeout:    timeout,
			RateLimit:  cfg.Scrape.RateLimit,
			MaxRetries: cfg.Scrape.MaxRetries,
		}))
	}
	fetchers = append(fetchers, browser)

	chain := scrape.NewChain(fetchers...)
	if scrapeCacheTTL > 0 {
		chain = chain.WithCache(cp, scrapeCacheTTL)
	}
	return &scrapeEnv{cp: cp, browser: browser, fetcher: chain}, nil
}

func (e *scrapeEnv) Close() {
	if err := e.browser.Close(); err != nil {
		zap.L().Warn("scrape: close browser", zap.Error(err))
	}
	if err := e.cp.Close(); err != nil {
		zap.L().Warn("scrape: close checkpoint", zap.Error(err))
	}
}

// run executes one checkpointed stage over the fetcher chain and records it
// as a run. It returns the run id.
func (e *scrapeEnv) run(ctx context.Context, stage string, urls []string, handle scrape.Handler) (string, error) {
	return e.runWith(ctx, &scrape.Runner{Fetcher: e.fetcher, Concurrency: cfg.Scrape.Concurrency}, stage, urls, handle)
}

// runWith is run with a caller-supplied fetcher and concurrency.
func (e *scrapeEnv) runWith(ctx context.Context, r *scrape.Runner, stage string, urls []string, handle scrape.Handler) (string, error) {
	if scrapeReset {
		n, err := e.cp.Reset(ctx, stage)
		if err != nil {
			return "", err
		}
		zap.L().Info("scrape: progress reset", zap.String("stage", stage), zap.Int("urls", n))
	}

	runID, err := e.cp.StartRun(ctx, stage)
	if err != nil {
		return "", err
	}
	r.Progress = e.cp
	r.Stage = stage
	stats, runErr := r.Run(ctx, urls, handle)

	status := checkpoint.RunComplete
	if runErr != nil {
		status = checkpoint.RunFailed
	}
	if err := e.cp.FinishRun(context.WithoutCancel(ctx), runID, status, stats.Done, stats.Failed); err != nil {
		zap.L().Warn("scrape: record run", zap.String("run_id", runID), zap.Error(err))
	}
	return runID, runErr
}

// -- listing stages --

var (
	twoGISListPages int
	twoGISListOut   string
)

var scrape2GISListCmd = &cobra.Command{
	Use:   "2gis-list",
	Short: "Collect school cards from the 2GIS search pages",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := newScrapeEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		urls := make([]string, twoGISListPages)
		for i := range urls {
			urls[i] = scrape.TwoGISPageURL(scrape.TwoGISSearchURL, i+1)
		}
		col := newCollector[scrape.ListItem]()
		runID, runErr := env.run(ctx, "2gis-list", urls, func(_ context.Context, page *scrape.Page) error {
			items, err := scrape.ParseTwoGISList(page.HTML)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				return eris.Errorf("no school cards on %s", page.URL)
			}
			col.put(page.URL, items)
			return nil
		})

		items, err := mergeListItems(twoGISListOut, col.inOrder(urls))
		if err != nil {
			return err
		}
		if err := fetcher.WriteJSON(twoGISListOut, scrape.NewTwoGISListing(items, runID)); err != nil {
			return err
		}
		zap.L().Info("2gis list saved", zap.Int("schools", len(items)), zap.String("out", twoGISListOut))
		return runErr
	},
}

var yandexListOut string

var scrapeYandexListCmd = &cobra.Command{
	Use:   "yandex-list",
	Short: "Collect school cards from the Yandex Maps search",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := newScrapeEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		urls := []string{scrape.YandexSearchURL}
		col := newCollector[scrape.ListItem]()
		runID, runErr := env.run(ctx, "yandex-list", urls, func(_ context.Context, page *scrape.Page) error {
			items, err := scrape.ParseYandexList(page.HTML)
			if err != nil {
				return err
			}
			col.put(page.URL, items)
			return nil
		})

		items, err := mergeListItems(yandexListOut, col.inOrder(urls))
		if err != nil {
			return err
		}
		if err := fetcher.WriteJSON(yandexListOut, scrape.NewYandexListing(items, runID)); err != nil {
			return err
		}
		zap.L().Info("yandex list saved", zap.Int("schools", len(items)), zap.String("out", yandexListOut))
		return runErr
	},
}

var (
	uchiPages int
	uchiOut   string
)

var scrapeUchiCmd = &cobra.Command{
	Use:   "uchi",
	Short: "Collect school names from the uchi.ru rating",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := newScrapeEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		pages := uchiPages
		if pages <= 0 {
			pages = cfg.Scrape.UchiPages
		}
		urls := make([]string, pages)
		for i := range urls {
			urls[i] = scrape.UchiPageURL(i+1, cfg.Scrape.UchiRegion, cfg.Scrape.UchiCity)
		}
		col := newCollector[string]()
		runID, runErr := env.run(ctx, "uchi", urls, func(_ context.Context, page *scrape.Page) error {
			names, err := scrape.ParseUchiNames(page.HTML)
			if err != nil {
				return err
			}
			col.put(page.URL, names)
			return nil
		})

		prev, err := readListIfExists[scrape.ListItem](uchiOut)
		if err != nil {
			return err
		}
		names := col.inOrder(urls)
		for _, it := range prev {
			names = append(names, it.Name)
		}
		listing := scrape.NewUchiListing(names, runID)
		if err := fetcher.WriteJSON(uchiOut, listing); err != nil {
			return err
		}
		zap.L().Info("uchi list saved", zap.Int("schools", listing.TotalSchools), zap.String("out", uchiOut))
		return runErr
	},
}

var googleOut string

var scrapeGoogleCmd = &cobra.Command{
	Use:   "google",
	Short: "Collect school cards from a rendered Google Maps search",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := newScrapeEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		urls := []string{scrape.GoogleSearchURL}
		col := newCollector[scrape.ListItem]()
		runID, runErr := env.run(ctx, "google", urls, func(_ context.Context, page *scrape.Page) error {
			items, err := scrape.ParseGoogleMaps(page.HTML)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				return eris.Errorf("no result cards on %s", page.URL)
			}
			col.put(page.URL, items)
			return nil
		})
		if runErr != nil {
			return runErr
		}
		items := col.inOrder(urls)
		if len(items) == 0 {
			zap.L().Warn("google: nothing new scraped, keeping existing output", zap.String("out", googleOut))
			return nil
		}
		if err := fetcher.WriteJSON(googleOut, scrape.NewGoogleListing(items, runID)); err != nil {
			return err
		}
		zap.L().Info("google list saved", zap.Int("schools", len(items)), zap.String("out", googleOut))
		return nil
	},
}

// mergeListItems appends fresh cards to those already saved at path,
// dropping repeated URLs, and numbers the result from 1.
func mergeListItems(path string, fresh []scrape.ListItem) ([]scrape.ListItem, error) {
	prev, err := readListIfExists[scrape.ListItem](path)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(prev)+len(fresh))
	out := make([]scrape.ListItem, 0, len(prev)+len(fresh))
	for _, it := range append(prev, fresh...) {
		key := it.URL
		if key == "" {
			key = it.Name
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
	}
	for i := range out {
		out[i].ID = strconv.Itoa(i + 1)
	}
	return out, nil
}

// -- school detail stages --

var (
	schoolIn  string
	schoolOut string
)

func scrapeSchools(cmd *cobra.Command, stage string, parse func([]byte) (model.SourceSchool, error), wrap func([]model.SourceSchool, string) any) error {
	ctx := cmd.Context()
	items, err := readList[scrape.ListItem](schoolIn)
	if err != nil {
		return err
	}
	env, err := newScrapeEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	byURL := make(map[string]scrape.ListItem, len(items))
	var urls []string
	for _, it := range items {
		if it.URL == "" || byURL[it.URL].URL != "" {
			continue
		}
		byURL[it.URL] = it
		urls = append(urls, it.URL)
	}

	col := newCollector[model.SourceSchool]()
	runID, runErr := env.run(ctx, stage, urls, func(_ context.Context, page *scrape.Page) error {
		s, err := parse(page.HTML)
		if err != nil {
			return err
		}
		it := byURL[page.URL]
		if s.Name == "" {
			s.Name = it.Name
		}
		s.URL = page.URL
		if s.ID == "" {
			s.ID = it.ID
		}
		if s.YandexID == "" {
			s.YandexID = it.YandexID
		}
		col.put(page.URL, []model.SourceSchool{s})
		return nil
	})

	prev, err := readListIfExists[model.SourceSchool](schoolOut)
	if err != nil {
		return err
	}
	merged := mergeSourceSchools(prev, col.inOrder(urls))
	if err := fetcher.WriteJSON(schoolOut, wrap(merged, runID)); err != nil {
		return err
	}
	zap.L().Info("school details saved", zap.String("stage", stage), zap.Int("schools", len(merged)), zap.String("out", schoolOut))
	return runErr
}

// mergeSourceSchools keeps one record per URL; fresh records replace
// saved ones.
func mergeSourceSchools(prev, fresh []model.SourceSchool) []model.SourceSchool {
	idx := make(map[string]int, len(prev)+len(fresh))
	out := make([]model.SourceSchool, 0, len(prev)+len(fresh))
	for _, s := range append(prev, fresh...) {
		if i, ok := idx[s.URL]; ok && s.URL != "" {
			out[i] = s
			continue
		}
		idx[s.URL] = len(out)
		out = append(out, s)
	}
	return out
}

var scrape2GISSchoolCmd = &cobra.Command{
	Use:   "2gis-school",
	Short: "Fetch name, address and rating of every school in a 2GIS list",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return scrapeSchools(cmd, "2gis-school", scrape.ParseTwoGISFirm, func(s []model.SourceSchool, runID string) any {
			return scrape.Listing[model.SourceSchool]{Source: "2GIS", Topic: "Школы Саратова", TotalSchools: len(s), RunID: runID, Data: s}
		})
	},
}

var scrapeYandexSchoolCmd = &cobra.Command{
	Use:   "yandex-school",
	Short: "Fetch name, address, rating and review count of every school in a Yandex list",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return scrapeSchools(cmd, "yandex-school", scrape.ParseYandexOrg, func(s []model.SourceSchool, runID string) any {
			return scrape.Listing[model.SourceSchool]{Source: "yandex_maps", Topic: "Школы Саратова", TotalSchools: len(s), RunID: runID, Data: s}
		})
	},
}

// -- review stages --

var (
	reviewsIn  string
	reviewsOut string
)

func scrapeReviews(cmd *cobra.Command, stage, resource string, reviewURL func(model.MergedSchool) string, parse func([]byte) ([]model.Review, error)) error {
	ctx := cmd.Context()
	schools, err := readList[model.MergedSchool](reviewsIn)
	if err != nil {
		return err
	}
	env, err := newScrapeEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	schoolByURL := make(map[string]int, len(schools))
	var urls []string
	for _, s := range schools {
		u := reviewURL(s)
		if u == "" {
			continue
		}
		if _, dup := schoolByURL[u]; dup {
			continue
		}
		schoolByURL[u] = s.ID
		urls = append(urls, u)
	}
	zap.L().Info("scraping reviews", zap.String("stage", stage), zap.Int("schools", len(urls)))

	col := newCollector[model.Review]()
	runID, runErr := env.run(ctx, stage, urls, func(_ context.Context, page *scrape.Page) error {
		list, err := parse(page.HTML)
		if err != nil {
			return err
		}
		id := model.FlexID(strconv.Itoa(schoolByURL[page.URL]))
		for i := range list {
			list[i].SchoolID = id
		}
		col.put(page.URL, list)
		return nil
	})

	var prev []model.Review
	if _, statErr := os.Stat(reviewsOut); statErr == nil {
		f, err := reviews.Load(reviewsOut)
		if err != nil {
			return err
		}
		prev = f.Reviews
	}
	all := reviews.Dedupe(append(prev, col.inOrder(urls)...))
	assignReviewIDs(all)

	if err := reviews.Save(reviewsOut, reviews.NewFile(resource, runID, all)); err != nil {
		return err
	}
	zap.L().Info("reviews saved", zap.String("stage", stage), zap.Int("reviews", len(all)), zap.String("out", reviewsOut))
	return runErr
}

// assignReviewIDs numbers reviews without an id after the highest numeric
// id present.
func assignReviewIDs(list []model.Review) {
	next := 0
	for _, r := range list {
		if n, err := strconv.Atoi(string(r.ReviewID)); err == nil && n > next {
			next = n
		}
	}
	for i := range list {
		if list[i].ReviewID == "" {
			next++
			list[i].ReviewID = model.FlexID(strconv.Itoa(next))
		}
	}
}

var scrape2GISReviewsCmd = &cobra.Command{
	Use:   "2gis-reviews",
	Short: "Scrape 2GIS reviews of every reconciled school",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return scrapeReviews(cmd, "2gis-reviews", "2GIS", func(s model.MergedSchool) string {
			if s.TwoGISURL == "" {
				return ""
			}
			return strings.TrimRight(s.TwoGISURL, "/") + "/tab/reviews"
		}, scrape.ParseTwoGISReviews)
	},
}

var scrapeYandexReviewsCmd = &cobra.Command{
	Use:   "yandex-reviews",
	Short: "Scrape Yandex Maps reviews of every reconciled school",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return scrapeReviews(cmd, "yandex-reviews", "yandex_maps", func(s model.MergedSchool) string {
			if s.YandexURL == "" {
				return ""
			}
			return scrape.YandexReviewsURL(s.YandexURL)
		}, scrape.ParseYandexReviews)
	},
}

// -- cadastral lookup --

var (
	cadastralIn  string
	cadastralOut string
)

var scrapeCadastralCmd = &cobra.Command{
	Use:   "cadastral",
	Short: "Look up the cadastral number of every 2GIS school by its address",
	Long: "Types each school address into the cadastral map search and keeps the number of the first building found. " +
		"The output feeds reconcile sources --cadastral.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		schools, err := readList[model.SourceSchool](cadastralIn)
		if err != nil {
			return err
		}
		env, err := newScrapeEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		recs, keys := cadastralTargets(schools)
		urls := make([]string, 0, len(keys))
		for k := range keys {
			urls = append(urls, k)
		}
		sort.Strings(urls)
		zap.L().Info("looking up cadastral numbers", zap.Int("schools", len(recs)), zap.Int("addresses", len(urls)))

		col := newCollector[string]()
		r := &scrape.Runner{Fetcher: &scrape.CadastralFetcher{Browser: env.browser, Form: scrape.CadastralForm}, Concurrency: 1}
		runID, runErr := env.runWith(ctx, r, "cadastral", urls, func(_ context.Context, page *scrape.Page) error {
			n, err := scrape.ParseCadastral(page.HTML)
			if err != nil {
				return err
			}
			col.put(page.URL, []string{n})
			return nil
		})

		for key, idx := range keys {
			found := col.inOrder([]string{key})
			if len(found) == 0 {
				continue
			}
			for _, i := range idx {
				recs[i].CadastralNumber = found[0]
			}
		}

		prev, err := readListIfExists[model.CadastralRecord](cadastralOut)
		if err != nil {
			return err
		}
		merged := mergeCadastral(prev, recs)
		listing := scrape.Listing[model.CadastralRecord]{
			Source: "кадастр.сайт", Topic: "Школы Саратова", TotalSchools: len(merged), RunID: runID, Data: merged,
		}
		if err := fetcher.WriteJSON(cadastralOut, listing); err != nil {
			return err
		}
		zap.L().Info("cadastral numbers saved",
			zap.Int("schools", len(merged)),
			zap.Int("found", countCadastral(merged)),
			zap.String("out", cadastralOut),
		)
		return runErr
	},
}

// cadastralTargets builds one lookup record per school and groups record
// indexes by lookup key. Schools without an address get a record but no key.
func cadastralTargets(schools []model.SourceSchool) ([]model.CadastralRecord, map[string][]int) {
	recs := make([]model.CadastralRecord, len(schools))
	keys := make(map[string][]int)
	for i, s := range schools {
		id := s.ID
		if id == "" {
			id = strconv.Itoa(i + 1)
		}
		recs[i] = model.CadastralRecord{
			ID:              id,
			URL:             s.URL,
			Address:         strings.TrimSpace(s.Address),
			CadastralNumber: s.CadastralNumber,
		}
		if recs[i].Address == "" {
			continue
		}
		k := scrape.CadastralQueryURL(recs[i].Address)
		keys[k] = append(keys[k], i)
	}
	return recs, keys
}

// mergeCadastral keeps one record per id. A fresh record replaces a saved
// one unless it lost a number the saved one had, which happens when the
// lookup was skipped as already done.
func mergeCadastral(prev, fresh []model.CadastralRecord) []model.CadastralRecord {
	idx := make(map[string]int, len(prev)+len(fresh))
	out := make([]model.CadastralRecord, 0, len(prev)+len(fresh))
	for _, r := range prev {
		idx[r.ID] = len(out)
		out = append(out, r)
	}
	for _, r := range fresh {
		i, ok := idx[r.ID]
		if !ok {
			idx[r.ID] = len(out)
			out = append(out, r)
			continue
		}
		if r.CadastralNumber == "" && out[i].Address == r.Address {
			r.CadastralNumber = out[i].CadastralNumber
		}
		out[i] = r
	}
	return out
}

func countCadastral(recs []model.CadastralRecord) int {
	n := 0
	for _, r := range recs {
		if r.CadastralNumber != "" {
			n++
		}
	}
	return n
}

// -- checkpoint inspection --

var scrapeRunsCmd = &cobra.Command{
	Use:   "runs [stage]",
	Short: "List recorded scrape runs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cp, err := checkpoint.Open(ctx, cfg.Scrape.CheckpointPath)
		if err != nil {
			return err
		}
		defer cp.Close() //nolint:errcheck

		stage := ""
		if len(args) == 1 {
			stage = args[0]
		}
		runs, err := cp.Runs(ctx, stage)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}
		formatRunsList(os.Stdout, runs)
		return nil
	},
}

func formatRunsList(w io.Writer, runs []checkpoint.Run) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTAGE\tSTATUS\tITEMS\tFAILED\tSTARTED\tDURATION")
	for _, r := range runs {
		dur := "-"
		if r.FinishedAt != nil {
			dur = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			shortID(r.ID), r.Stage, r.Status, r.Items, r.Failed,
			r.StartedAt.Format("2006-01-02 15:04"), dur)
	}
	_ = tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

var scrapePurgeCmd = &cobra.Command{
	Use:   "purge-cache",
	Short: "Delete expired pages from the scrape cache",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cp, err := checkpoint.Open(ctx, cfg.Scrape.CheckpointPath)
		if err != nil {
			return err
		}
		defer cp.Close() //nolint:errcheck

		n, err := cp.PurgePages(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("scrape cache purged", zap.Int("pages", n))
		return nil
	},
}

func init() {
	scrapeCmd.PersistentFlags().BoolVar(&scrapeBrowserOnly, "browser-only", false, "skip the plain HTTP fetcher")
	scrapeCmd.PersistentFlags().DurationVar(&scrapeCacheTTL, "cache-ttl", 24*time.Hour, "reuse pages fetched within this window (0 disables the cache)")
	scrapeCmd.PersistentFlags().BoolVar(&scrapeReset, "reset", false, "forget the stage's checkpoint and fetch every URL again")

	scrape2GISListCmd.Flags().IntVar(&twoGISListPages, "pages", 12, "number of search result pages")
	scrape2GISListCmd.Flags().StringVar(&twoGISListOut, "out", "2gis_school_list.json", "output file")

	scrapeYandexListCmd.Flags().StringVar(&yandexListOut, "out", "yandex_school_list.json", "output file")

	scrapeUchiCmd.Flags().IntVar(&uchiPages, "pages", 0, "number of rating pages (default from config)")
	scrapeUchiCmd.Flags().StringVar(&uchiOut, "out", "uchi_schools.json", "output file")

	scrapeGoogleCmd.Flags().StringVar(&googleOut, "out", "google_schools.json", "output file")

	for _, c := range []*cobra.Command{scrape2GISSchoolCmd, scrapeYandexSchoolCmd} {
		c.Flags().StringVar(&schoolIn, "in", "", "listing file produced by the matching -list command (required)")
		c.Flags().StringVar(&schoolOut, "out", "", "output file (required)")
		_ = c.MarkFlagRequired("in")
		_ = c.MarkFlagRequired("out")
	}

	scrapeCadastralCmd.Flags().StringVar(&cadastralIn, "in", "2gis_schools.json", "2GIS school details")
	scrapeCadastralCmd.Flags().StringVar(&cadastralOut, "out", "cadastral_numbers.json", "output file")

	for _, c := range []*cobra.Command{scrape2GISReviewsCmd, scrapeYandexReviewsCmd} {
		c.Flags().StringVar(&reviewsIn, "in", "merged_schools.json", "reconciled school list")
		c.Flags().StringVar(&reviewsOut, "out", "", "output file (required)")
		_ = c.MarkFlagRequired("out")
	}

	scrapeCmd.AddCommand(
		scrape2GISListCmd, scrape2GISSchoolCmd, scrape2GISReviewsCmd,
		scrapeYandexListCmd, scrapeYandexSchoolCmd, scrapeYandexReviewsCmd,
		scrapeUchiCmd, scrapeGoogleCmd, scrapeCadastralCmd, scrapeRunsCmd, scrapePurgeCmd,
	)
	rootCmd.AddCommand(scrapeCmd)
}
