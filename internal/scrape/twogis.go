package scrape

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/sells-group/school-research-cli/internal/model"
)

const twoGISBase = "https://2gis.ru"

// TwoGISSearchURL is the 2GIS search for schools in Saratov.
const TwoGISSearchURL = twoGISBase + "/saratov/search/%D0%A8%D0%BA%D0%BE%D0%BB%D1%8B%20%D1%81%D0%B0%D1%80%D0%B0%D1%82%D0%BE%D0%B2%D0%B0"

// TwoGISPageURL returns the n-th results page of search (1-based). The
// first page has no /page/ suffix.
func TwoGISPageURL(search string, n int) string {
	if n <= 1 {
		return search
	}
	return fmt.Sprintf("%s/page/%d", strings.TrimRight(search, "/"), n)
}

// NewTwoGISListing wraps listing cards in the 2GIS envelope.
func NewTwoGISListing(items []ListItem, runID string) Listing[ListItem] {
	return Listing[ListItem]{
		Source:      "2GIS",
		Topic:       topicSchools,
		Description: "Список школ Саратова с сайта 2ГИС",
		RunID:       runID,
		Data:        items,
	}
}

// ParseTwoGISList extracts school cards from a 2GIS search page. The name
// is the first text line of the card, cut to 100 characters.
func ParseTwoGISList(body []byte) ([]ListItem, error) {
	doc, err := parseDoc(body)
	if err != nil {
		return nil, err
	}
	var items []ListItem
	doc.Find("div._zjunba").Each(func(_ int, card *goquery.Selection) {
		href, ok := card.Find("a._1rehek").First().Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		name := truncateRunes(firstText(card), 100)
		if name == "" {
			return
		}
		items = append(items, ListItem{Name: name, URL: absolute(twoGISBase, href)})
	})
	return items, nil
}

var twoGISAddressRe = regexp.MustCompile(`"(?:full_name|address_name)"\s*:\s*"([^"]+)"`)

// ParseTwoGISFirm reads the name, full name, address and rating of a 2GIS
// firm page. The address is taken from the page's embedded JSON.
func ParseTwoGISFirm(body []byte) (model.SourceSchool, error) {
	doc, err := parseDoc(body)
	if err != nil {
		return model.SourceSchool{}, err
	}
	s := model.SourceSchool{
		Name:     cleanText(doc.Find("._1x89xo5").First().Text()),
		FullName: cleanText(doc.Find("._bgn3t31").First().Text()),
	}
	if m := twoGISAddressRe.FindSubmatch(body); m != nil {
		s.Address = cleanText(string(m[1]))
	}
	if v, ok := parseDecimal(doc.Find("._y10azs").First().Text()); ok {
		s.Rating = &v
	}
	return s, nil
}

// ParseTwoGISReviews extracts reviews from a 2GIS reviews page. Review
// objects are looked up in the page's application/json scripts first; the
// review DOM is used when no script yields any. Reviews are deduplicated by
// text.
func ParseTwoGISReviews(body []byte) ([]model.Review, error) {
	doc, err := parseDoc(body)
	if err != nil {
		return nil, err
	}

	var found []model.Review
	doc.Find(`script[type="application/json"]`).Each(func(_ int, s *goquery.Selection) {
		var v any
		if err := json.Unmarshal([]byte(s.Text()), &v); err != nil {
			zap.L().Debug("scrape: skipping unparseable 2gis script", zap.Error(err))
			return
		}
		walkTwoGISJSON(v, &found)
	})
	if len(found) == 0 {
		found = twoGISReviewsFromDOM(doc)
	}
	return dedupeByText(found), nil
}

var reviewIDKeys = []string{"rating", "provider", "object", "id"}

func walkTwoGISJSON(v any, out *[]model.Review) {
	switch t := v.(type) {
	case map[string]any:
		if r, ok := twoGISReview(t); ok {
			*out = append(*out, r)
			return
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			walkTwoGISJSON(t[k], out)
		}
	case []any:
		for _, child := range t {
			walkTwoGISJSON(child, out)
		}
	}
}

func twoGISReview(m map[string]any) (model.Review, bool) {
	text, ok := m["text"].(string)
	if !ok {
		return model.Review{}, false
	}
	likes, ok := m["likes_count"].(float64)
	if !ok {
		return model.Review{}, false
	}
	marked := false
	for _, k := range reviewIDKeys {
		if _, ok := m[k]; ok {
			marked = true
			break
		}
	}
	if !marked {
		return model.Review{}, false
	}

	r := model.Review{Text: strings.TrimSpace(text)}
	l := int(likes)
	r.LikesCount = &l
	if rating, ok := m["rating"].(float64); ok && rating > 0 {
		v := int(math.Round(rating))
		r.Rating = &v
	}
	for _, k := range []string{"date", "created_at", "published_at", "date_created"} {
		if d, ok := m[k].(string); ok && d != "" {
			r.Date = isoDay(d)
			break
		}
	}
	return r, true
}

var isoDayRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// isoDay cuts a timestamp to YYYY-MM-DD. Other formats are returned
// trimmed so they can be normalised later.
func isoDay(s string) string {
	s = strings.TrimSpace(s)
	if m := isoDayRe.FindString(s); m != "" {
		return m
	}
	return s
}

func twoGISReviewsFromDOM(doc *goquery.Document) []model.Review {
	var out []model.Review
	doc.Find("._1wlx08h, ._1msln3t").Each(func(_ int, s *goquery.Selection) {
		text := cleanText(s.Text())
		if text == "" {
			return
		}
		r := model.Review{Text: text}
		// The date sits in the nearest enclosing review block.
		for p, depth := s.Parent(), 0; p.Length() > 0 && depth < 6; p, depth = p.Parent(), depth+1 {
			if d := p.Find("._a5f6uz").First(); d.Length() > 0 {
				r.Date = cleanText(d.Text())
				break
			}
		}
		out = append(out, r)
	})
	return out
}

func dedupeByText(reviews []model.Review) []model.Review {
	seen := make(map[string]bool, len(reviews))
	out := make([]model.Review, 0, len(reviews))
	for _, r := range reviews {
		if r.Text == "" || seen[r.Text] {
			continue
		}
		seen[r.Text] = true
		out = append(out, r)
	}
	return out
}
