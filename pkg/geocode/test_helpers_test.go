package geocode

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/sells-group/school-research-cli/internal/resilience"
)

// newTestGeocoder points a geocoder at srv with no rate limit and
// millisecond backoff.
func newTestGeocoder(t *testing.T, handler http.HandlerFunc) (*geocoder, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	g := NewClient("test-key", WithBaseURL(srv.URL), WithHTTPClient(srv.Client())).(*geocoder)
	g.limiter = rate.NewLimiter(rate.Inf, 1)
	g.retry = resilience.Policy{Attempts: 3, Backoff: time.Millisecond, MaxBackoff: time.Millisecond}
	return g, srv
}

const saratovHouseJSON = `{
  "response": {
    "GeoObjectCollection": {
      "featureMember": [{
        "GeoObject": {
          "metaDataProperty": {
            "GeocoderMetaData": {
              "precision": "exact",
              "text": "Россия, Саратов, улица Рахова, 10",
              "kind": "house",
              "Address": {
                "Components": [
                  {"kind": "country", "name": "Россия"},
                  {"kind": "locality", "name": "Саратов"},
                  {"kind": "street", "name": "улица Рахова"},
                  {"kind": "house", "name": "10"}
                ]
              }
            }
          },
          "Point": {"pos": "46.034158 51.533562"}
        }
      }]
    }
  }
}`

const emptyCollectionJSON = `{"response":{"GeoObjectCollection":{"featureMember":[]}}}`
