package scrape

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/school-research-cli/internal/model"
)

const yandexBase = "https://yandex.ru"

// YandexSearchURL is the Yandex Maps search for schools in Saratov.
const YandexSearchURL = yandexBase + "/maps/194/saratov/search/%D1%88%D0%BA%D0%BE%D0%BB%D1%8B%20%D1%81%D0%B0%D1%80%D0%B0%D1%82%D0%BE%D0%B2%D0%B0/?ll=46.153670%2C51.551834&z=10.4"

var yandexOrgRe = regexp.MustCompile(`/maps/org/(?:[^/]+/)?(\d+)`)

// YandexOrgID extracts the numeric organisation id from a Yandex Maps URL.
func YandexOrgID(u string) string {
	if m := yandexOrgRe.FindStringSubmatch(u); m != nil {
		return m[1]
	}
	return ""
}

// YandexReviewsURL returns the reviews tab of an organisation page.
func YandexReviewsURL(orgURL string) string {
	u := orgURL
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	u = strings.TrimRight(u, "/")
	if strings.HasSuffix(u, "/reviews") {
		return u + "/"
	}
	return u + "/reviews/"
}

// NewYandexListing wraps listing cards in the Yandex envelope.
func NewYandexListing(items []ListItem, runID string) Listing[ListItem] {
	return Listing[ListItem]{
		Source:       "yandex_maps",
		Topic:        topicSchools,
		Description:  "Список школ Саратова с Яндекс Карт",
		TotalSchools: len(items),
		RunID:        runID,
		Data:         items,
	}
}

// ParseYandexList extracts organisation cards from a Yandex Maps search
// page. Cards without a link are skipped; the same organisation is listed
// once.
func ParseYandexList(body []byte) ([]ListItem, error) {
	doc, err := parseDoc(body)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var items []ListItem
	doc.Find("li.search-snippet-view").Each(func(_ int, card *goquery.Selection) {
		href, ok := card.Find("a.link-overlay").First().Attr("href")
		if !ok {
			return
		}
		u := absolute(yandexBase, href)
		if seen[u] {
			return
		}
		name := cleanText(card.Find(".search-business-snippet-view__title").First().Text())
		if name == "" {
			return
		}
		seen[u] = true
		items = append(items, ListItem{Name: name, URL: u, YandexID: YandexOrgID(u)})
	})
	return items, nil
}

// ParseYandexOrg reads the address, rating and review count of an
// organisation page. ReviewsCount is nil when the page shows no reviews.
func ParseYandexOrg(body []byte) (model.SourceSchool, error) {
	doc, err := parseDoc(body)
	if err != nil {
		return model.SourceSchool{}, err
	}
	var s model.SourceSchool
	s.Name = cleanText(doc.Find("h1.orgpage-header-view__header").First().Text())
	s.Address = cleanText(doc.Find("a.orgpage-header-view__address").First().Text())

	if v, ok := parseDecimal(doc.Find("span.business-rating-badge-view__rating-text").First().Text()); ok {
		s.Rating = &v
	}

	tab := doc.Find("div.tabs-select-view__title._name_reviews").First()
	if tab.Length() == 0 {
		tab = doc.Find(`div[class*="_name_reviews"]`).First()
	}
	if tab.Length() > 0 {
		label, _ := tab.Attr("aria-label")
		n, ok := firstInt(label)
		if !ok {
			n, ok = firstInt(tab.Text())
		}
		if ok && n > 0 {
			s.ReviewsCount = &n
		}
	}
	return s, nil
}

// ParseYandexReviews extracts reviews from an organisation's reviews tab.
// The rating is the number of full stars and is omitted when zero; likes
// and dislikes default to zero.
func ParseYandexReviews(body []byte) ([]model.Review, error) {
	doc, err := parseDoc(body)
	if err != nil {
		return nil, err
	}
	var out []model.Review
	doc.Find("div.business-review-view").Each(func(_ int, el *goquery.Selection) {
		text := cleanText(el.Find("span.spoiler-view__text-container").First().Text())
		if text == "" {
			text = cleanText(el.Find("span.business-review-view__body-text").First().Text())
		}
		if text == "" {
			return
		}

		r := model.Review{Text: text, Date: yandexReviewDate(el)}
		if stars := yandexStars(el); stars > 0 {
			r.Rating = &stars
		}

		likes, dislikes := 0, 0
		counters := el.Find("div.business-reactions-view__counter")
		if n, err := strconv.Atoi(strings.TrimSpace(counters.Eq(0).Text())); err == nil {
			likes = n
		}
		if n, err := strconv.Atoi(strings.TrimSpace(counters.Eq(1).Text())); err == nil {
			dislikes = n
		}
		r.LikesCount = &likes
		r.DislikesCount = &dislikes

		out = append(out, r)
	})
	return dedupeByText(out), nil
}

func yandexStars(el *goquery.Selection) int {
	stars := el.Find("div.business-rating-badge-view__stars").First()
	if n := stars.Find("span.business-rating-badge-view__star._full").Length(); n > 0 {
		return n
	}
	if v, ok := el.Find("[data-rating]").First().Attr("data-rating"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

// yandexReviewDate prefers the machine-readable datePublished and falls
// back to the Russian date text.
func yandexReviewDate(el *goquery.Selection) string {
	if v, ok := el.Find(`meta[itemprop="datePublished"]`).First().Attr("content"); ok && v != "" {
		return isoDay(v)
	}
	d := el.Find("span.business-review-view__date").First()
	if inner := d.Find("span").First(); inner.Length() > 0 {
		return cleanText(inner.Text())
	}
	return cleanText(d.Text())
}
