package scrape

import (
	"bytes"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
)

// Listing is the envelope written by the listing scrapers.
type Listing[T any] struct {
	Source       string `json:"source"`
	Topic        string `json:"topic"`
	Description  string `json:"description,omitempty"`
	TotalSchools int    `json:"total_schools,omitempty"`
	RunID        string `json:"run_id,omitempty"`
	Data         []T    `json:"data"`
}

// ListItem is one school card of a search results page.
type ListItem struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	URL      string `json:"url,omitempty"`
	YandexID string `json:"yandex_id,omitempty"`
}

const topicSchools = "Школы Саратова"

func parseDoc(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "scrape: parse html")
	}
	return doc, nil
}

var spaceRe = regexp.MustCompile(`\s+`)

// cleanText collapses whitespace.
func cleanText(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// absolute resolves href against base. href may still carry entities when
// it was cut out of raw markup. Unparseable hrefs are returned as is.
func absolute(base, href string) string {
	href = strings.TrimSpace(html.UnescapeString(href))
	if href == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

// parseDecimal parses "4,7" and "4.7".
func parseDecimal(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var digitsRe = regexp.MustCompile(`\d+`)

// firstInt returns the first run of digits in s.
func firstInt(s string) (int, bool) {
	m := digitsRe.FindString(strings.ReplaceAll(s, " ", ""))
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	return n, err == nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// firstText returns the first non-empty text node under sel, the way the
// first rendered line of a card reads.
func firstText(sel *goquery.Selection) string {
	for _, n := range sel.Nodes {
		if t := firstTextNode(n); t != "" {
			return t
		}
	}
	return ""
}

func firstTextNode(n *html.Node) string {
	if n.Type == html.TextNode {
		return cleanText(n.Data)
	}
	if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
		return ""
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := firstTextNode(c); t != "" {
			return t
		}
	}
	return ""
}
