package scrape

import (
	"strconv"

	"github.com/PuerkitoBio/goquery"
)

const googleBase = "https://www.google.com"

// GoogleSearchURL is the Google Maps search for schools in Saratov.
const GoogleSearchURL = googleBase + "/maps/search/%D1%88%D0%BA%D0%BE%D0%BB%D1%8B+%D1%81%D0%B0%D1%80%D0%B0%D1%82%D0%BE%D0%B2%D0%B0/@51.5642244,45.8778875,12z"

// ParseGoogleMaps extracts result cards from a rendered Google Maps search.
// Cards are numbered from 1 in page order; cards without a name are
// dropped without renumbering the rest.
func ParseGoogleMaps(body []byte) ([]ListItem, error) {
	doc, err := parseDoc(body)
	if err != nil {
		return nil, err
	}
	cards := doc.Find(`div[role="article"].Nv2PK.Q2HXcd.THOPZb`)
	if cards.Length() == 0 {
		cards = doc.Find("div.Nv2PK")
	}

	var items []ListItem
	cards.Each(func(i int, card *goquery.Selection) {
		name := googleCardName(card)
		if name == "" {
			return
		}
		item := ListItem{ID: strconv.Itoa(i + 1), Name: name}
		if href, ok := card.Find("a.hfpxzc").First().Attr("href"); ok {
			item.URL = absolute(googleBase, href)
		}
		items = append(items, item)
	})
	return items, nil
}

func googleCardName(card *goquery.Selection) string {
	if v, ok := card.Attr("aria-label"); ok {
		if name := cleanText(v); name != "" {
			return name
		}
	}
	if name := cleanText(card.Find("div.qBF1Pd.fontHeadlineSmall").First().Text()); name != "" {
		return name
	}
	return cleanText(card.Find("span.HTCGSb").First().Text())
}

// NewGoogleListing wraps result cards in the Google Maps envelope.
func NewGoogleListing(items []ListItem, runID string) Listing[ListItem] {
	return Listing[ListItem]{
		Source:       "google_maps",
		Topic:        topicSchools,
		Description:  "Данные школ получены через парсинг Google Maps",
		TotalSchools: len(items),
		RunID:        runID,
		Data:         items,
	}
}
