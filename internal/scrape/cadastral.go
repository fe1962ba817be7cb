package scrape

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// CadastralSiteURL is the public cadastral map searched by address.
const CadastralSiteURL = "https://кадастр.сайт/"

// CadastralForm drives the address search of CadastralSiteURL.
var CadastralForm = FormSearch{
	URL: CadastralSiteURL,
	Inputs: []string{
		`input[name="onestring_251124182124"]`,
		"input.input-sugg.form-control",
		"#onestring_251124182124",
	},
	Suggestion:     ".suggestions-value.w-icon",
	SuggestionWait: 5 * time.Second,
	Submit:         ".el-button.btnSearch.el-button--danger.el-button--small",
	Wait:           3 * time.Second,
}

var (
	// A result row is a building when its type cell carries these classes.
	cadastralTypeClasses   = []string{"p-1", "p-md-2", "d-inline-block", "d-md-table-cell", "text-center", "nowrap"}
	cadastralNumberClasses = []string{"p-1", "p-md-2", "d-block", "d-md-table-cell", "nowrap", "pointer"}

	cadastralNumberRe = regexp.MustCompile(`\d{2}:\d{2}:\d{6,7}:\d+`)
)

// CadastralQueryURL builds the checkpoint key for an address lookup.
func CadastralQueryURL(address string) string {
	return CadastralSiteURL + "?q=" + url.QueryEscape(address)
}

// cadastralQuery returns the address encoded by CadastralQueryURL.
func cadastralQuery(key string) (string, error) {
	u, err := url.Parse(key)
	if err != nil {
		return "", eris.Wrapf(err, "cadastral: parse key %q", key)
	}
	q := strings.TrimSpace(u.Query().Get("q"))
	if q == "" {
		return "", eris.Errorf("cadastral: key %q has no address", key)
	}
	return q, nil
}

// FormSubmitter runs a form search. *BrowserFetcher implements it.
type FormSubmitter interface {
	Submit(ctx context.Context, form FormSearch, query string) (*Page, error)
}

// CadastralFetcher adapts an address search to Fetcher so lookups can run
// through a checkpointed Runner. URLs are CadastralQueryURL keys.
type CadastralFetcher struct {
	Browser FormSubmitter
	Form    FormSearch
}

// Name implements Fetcher.
func (f *CadastralFetcher) Name() string { return "cadastral" }

// Fetch implements Fetcher. The returned page carries key as its URL.
func (f *CadastralFetcher) Fetch(ctx context.Context, key string) (*Page, error) {
	address, err := cadastralQuery(key)
	if err != nil {
		return nil, err
	}
	form := f.Form
	if form.URL == "" {
		form = CadastralForm
	}
	page, err := f.Browser.Submit(ctx, form, address)
	if err != nil {
		return nil, err
	}
	page.URL = key
	return page, nil
}

// ParseCadastral returns the cadastral number of the first building row
// of a search result table, or "" when there is none. The number cell is
// recognized by its classes, falling back to the first cell of the row.
func ParseCadastral(body []byte) (string, error) {
	doc, err := parseDoc(body)
	if err != nil {
		return "", err
	}

	var number string
	doc.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cells := row.Find("td")
		building := cells.FilterFunction(func(_ int, td *goquery.Selection) bool {
			return hasClasses(td, cadastralTypeClasses) &&
				strings.Contains(strings.ToLower(td.Text()), "здание")
		})
		if building.Length() == 0 {
			return true
		}

		cells.EachWithBreak(func(_ int, td *goquery.Selection) bool {
			if hasClasses(td, cadastralNumberClasses) {
				number = cleanCadastral(td.Text())
			}
			return number == ""
		})
		if number == "" {
			number = cleanCadastral(cells.First().Text())
		}
		return number == ""
	})
	return number, nil
}

func hasClasses(s *goquery.Selection, classes []string) bool {
	for _, c := range classes {
		if !s.HasClass(c) {
			return false
		}
	}
	return true
}

// cleanCadastral keeps the number out of cell text that may carry labels
// or copy icons.
func cleanCadastral(text string) string {
	if m := cadastralNumberRe.FindString(text); m != "" {
		return m
	}
	return cleanText(text)
}
