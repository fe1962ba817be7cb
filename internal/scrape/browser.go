package scrape

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// scrollJS scrolls the window and every scrollable results panel of the
// map sites, which load more cards lazily.
const scrollJS = `() => {
	window.scrollBy(0, 1000);
	for (const el of document.querySelectorAll('.scroll__container, div[role="feed"], ._1rkbbi0x')) {
		el.scrollTop = el.scrollHeight;
	}
}`

// BrowserOptions configures BrowserFetcher.
type BrowserOptions struct {
	Bin         string // Chrome binary; empty lets the launcher find or download one
	Headless    bool
	UserAgent   string
	Timeout     time.Duration
	ScrollCount int
	ScrollPause time.Duration
	Settle      time.Duration // wait after load before reading the DOM
}

// BrowserFetcher renders JS-heavy pages (2GIS, Yandex Maps, Google Maps)
// in a shared headless Chrome. Each Fetch opens and closes its own tab.
type BrowserFetcher struct {
	opts BrowserOptions

	mu      sync.Mutex
	browser *rod.Browser
	launch  *launcher.Launcher
}

// NewBrowserFetcher creates a BrowserFetcher. The browser starts on the
// first Fetch.
func NewBrowserFetcher(opts BrowserOptions) *BrowserFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.ScrollPause <= 0 {
		opts.ScrollPause = 500 * time.Millisecond
	}
	if opts.Settle <= 0 {
		opts.Settle = 2 * time.Second
	}
	return &BrowserFetcher{opts: opts}
}

// Name implements Fetcher.
func (b *BrowserFetcher) Name() string { return "browser" }

func (b *BrowserFetcher) ensure() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != nil {
		return b.browser, nil
	}

	l := launcher.New().Headless(b.opts.Headless).Set("window-size", "1920,1080")
	if b.opts.Bin != "" {
		l = l.Bin(b.opts.Bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, eris.Wrap(err, "browser: launch chrome")
	}

	br := rod.New().ControlURL(controlURL)
	if err := br.Connect(); err != nil {
		l.Kill()
		return nil, eris.Wrap(err, "browser: connect")
	}
	zap.L().Info("browser: started", zap.Bool("headless", b.opts.Headless))

	b.browser = br
	b.launch = l
	return br, nil
}

// openTab opens a tab bound to ctx and the fetch timeout. The returned
// func closes it.
func (b *BrowserFetcher) openTab(ctx context.Context) (*rod.Page, func(), error) {
	br, err := b.ensure()
	if err != nil {
		return nil, nil, err
	}

	tab, err := br.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, nil, eris.Wrap(err, "browser: open tab")
	}
	closeTab := func() { _ = tab.Close() }

	if b.opts.UserAgent != "" {
		if err := tab.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      b.opts.UserAgent,
			AcceptLanguage: "ru-RU,ru;q=0.9",
		}); err != nil {
			closeTab()
			return nil, nil, eris.Wrap(err, "browser: set user agent")
		}
	}
	return tab.Context(ctx).Timeout(b.opts.Timeout), closeTab, nil
}

func (b *BrowserFetcher) load(ctx context.Context, page *rod.Page, url string) error {
	if err := page.Navigate(url); err != nil {
		return eris.Wrapf(err, "browser: navigate %s", url)
	}
	if err := page.WaitLoad(); err != nil {
		return eris.Wrapf(err, "browser: wait load %s", url)
	}
	return sleep(ctx, b.opts.Settle)
}

// snapshot serializes the DOM and rejects captcha and block pages.
func (b *BrowserFetcher) snapshot(page *rod.Page, url string) (*Page, error) {
	html, err := page.HTML()
	if err != nil {
		return nil, eris.Wrap(err, "browser: read html")
	}
	body := []byte(html)

	finalURL := url
	if info, err := page.Info(); err == nil && info != nil {
		finalURL = info.URL
	}
	if strings.Contains(finalURL, "showcaptcha") {
		return nil, blockedError("browser", BlockCaptcha, finalURL)
	}
	if blocked, bt := DetectBlock(nil, body); blocked && bt != BlockJSShell {
		return nil, blockedError("browser", bt, finalURL)
	}
	return &Page{URL: url, HTML: body, StatusCode: 200, Source: b.Name()}, nil
}

// Fetch implements Fetcher. The page is loaded, given time to render,
// scrolled ScrollCount times, and its DOM serialized.
func (b *BrowserFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	page, closeTab, err := b.openTab(ctx)
	if err != nil {
		return nil, err
	}
	defer closeTab()

	if err := b.load(ctx, page, url); err != nil {
		return nil, err
	}
	for i := 0; i < b.opts.ScrollCount; i++ {
		if _, err := page.Eval(scrollJS); err != nil {
			zap.L().Debug("browser: scroll failed", zap.String("url", url), zap.Error(err))
			break
		}
		if err := sleep(ctx, b.opts.ScrollPause); err != nil {
			return nil, err
		}
	}
	return b.snapshot(page, url)
}

// FormSearch describes a site search driven by typing into a form.
type FormSearch struct {
	URL string
	// Inputs are candidate selectors for the query field; the first one
	// present is used.
	Inputs []string
	// Suggestion is clicked after typing when set. When it does not show
	// up within SuggestionWait the untouched page is returned.
	Suggestion     string
	SuggestionWait time.Duration
	Submit         string
	// Wait is the pause after each step, before the results are read.
	Wait time.Duration
}

// Submit opens form.URL, types query into the search field, picks the
// first suggestion, presses the submit button and returns the result DOM.
func (b *BrowserFetcher) Submit(ctx context.Context, form FormSearch, query string) (*Page, error) {
	if len(form.Inputs) == 0 || form.Submit == "" {
		return nil, eris.New("browser: form needs an input and a submit selector")
	}
	page, closeTab, err := b.openTab(ctx)
	if err != nil {
		return nil, err
	}
	defer closeTab()

	if err := b.load(ctx, page, form.URL); err != nil {
		return nil, err
	}

	race := page.Race()
	for _, sel := range form.Inputs {
		race = race.Element(sel)
	}
	input, err := race.Do()
	if err != nil {
		return nil, eris.Wrapf(err, "browser: find search field on %s", form.URL)
	}
	if err := input.Input(query); err != nil {
		return nil, eris.Wrap(err, "browser: type query")
	}
	if err := sleep(ctx, form.Wait); err != nil {
		return nil, err
	}

	if form.Suggestion != "" {
		wait := form.SuggestionWait
		if wait <= 0 {
			wait = 5 * time.Second
		}
		sugg, err := page.Timeout(wait).Element(form.Suggestion)
		if err != nil {
			zap.L().Debug("browser: no suggestion for query", zap.String("query", query), zap.Error(err))
			return b.snapshot(page, form.URL)
		}
		if err := sugg.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return nil, eris.Wrap(err, "browser: click suggestion")
		}
		if err := sleep(ctx, form.Wait); err != nil {
			return nil, err
		}
	}

	btn, err := page.Element(form.Submit)
	if err != nil {
		return nil, eris.Wrapf(err, "browser: find submit button on %s", form.URL)
	}
	if err := btn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return nil, eris.Wrap(err, "browser: click submit")
	}
	if err := page.WaitLoad(); err != nil {
		return nil, eris.Wrap(err, "browser: wait results")
	}
	if err := sleep(ctx, form.Wait); err != nil {
		return nil, err
	}
	return b.snapshot(page, form.URL)
}

// Close shuts the browser down.
func (b *BrowserFetcher) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.launch.Kill()
	b.browser = nil
	return eris.Wrap(err, "browser: close")
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "scrape: cancelled")
	case <-t.C:
		return nil
	}
}
