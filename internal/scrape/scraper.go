// Package scrape fetches and parses school listings and reviews from 2GIS,
// Yandex Maps, uchi.ru and Google Maps.
package scrape

import "context"

// Page is a fetched HTML document.
type Page struct {
	URL        string
	HTML       []byte
	StatusCode int
	Source     string // fetcher name, e.g. "http", "browser", "cache"
}

// Fetcher retrieves a single URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
	Name() string
}
