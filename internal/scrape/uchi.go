package scrape

import (
	"net/url"
	"sort"
	"strconv"

	"github.com/PuerkitoBio/goquery"
)

const uchiBase = "https://uchi.ru/schools"

// UchiPageURL returns the n-th page of the uchi.ru school rating filtered
// by region and city.
func UchiPageURL(n int, region, city string) string {
	q := url.Values{}
	q.Set("page", strconv.Itoa(n))
	q.Set("region", region)
	q.Set("city", city)
	q.Set("name", "")
	return uchiBase + "?" + q.Encode()
}

// ParseUchiNames returns the school names listed on a uchi.ru rating page.
func ParseUchiNames(body []byte) ([]string, error) {
	doc, err := parseDoc(body)
	if err != nil {
		return nil, err
	}
	var names []string
	doc.Find(".RatingItem_name__FBvkh").Each(func(_ int, s *goquery.Selection) {
		if name := cleanText(s.Text()); name != "" {
			names = append(names, name)
		}
	})
	return names, nil
}

// NewUchiListing deduplicates and sorts names and wraps them in the uchi.ru
// envelope.
func NewUchiListing(names []string, runID string) Listing[ListItem] {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	unique := make([]string, 0, len(set))
	for n := range set {
		unique = append(unique, n)
	}
	sort.Strings(unique)

	items := make([]ListItem, len(unique))
	for i, n := range unique {
		items[i] = ListItem{Name: n}
	}
	return Listing[ListItem]{
		Source:       "uchi.ru",
		Topic:        topicSchools,
		Description:  "Данные школ с сайта uchi.ru",
		TotalSchools: len(items),
		RunID:        runID,
		Data:         items,
	}
}
