package model

// Source identifies the provider a record was scraped from.
type Source string

const (
	SourceTwoGIS Source = "2gis"
	SourceYandex Source = "yandex"
	SourceUchi   Source = "uchi"
	SourceGoogle Source = "google"
)

// SourceSchool is a school listing as scraped from a single provider.
type SourceSchool struct {
	ID              string   `json:"id,omitempty"`
	Name            string   `json:"name"`
	FullName        string   `json:"full_name,omitempty"`
	Address         string   `json:"adres,omitempty"`
	URL             string   `json:"url,omitempty"`
	Rating          *float64 `json:"rating,omitempty"`
	ReviewsCount    *int     `json:"reviews_count,omitempty"`
	CadastralNumber string   `json:"cadastral_number,omitempty"`
	YandexID        string   `json:"yandex_id,omitempty"`
}

// CadastralRecord is the result of a cadastral lookup for one 2GIS school.
// CadastralNumber is empty when the address had no building on record.
type CadastralRecord struct {
	ID              string `json:"id"`
	URL             string `json:"url,omitempty"`
	Address         string `json:"adres,omitempty"`
	CadastralNumber string `json:"cadastral_number"`
}

// MergedSchool is one row of the 2GIS/Yandex reconciliation output.
// Yandex-side fields are empty when no Yandex record matched; 2GIS-side
// fields are empty for Yandex-only rows.
type MergedSchool struct {
	ID              int      `json:"id"`
	Name            string   `json:"name"`
	FullName        string   `json:"full_name"`
	Address         string   `json:"adres"`
	TwoGISURL       string   `json:"2gis_url"`
	YandexURL       string   `json:"ym_url"`
	CadastralNumber string   `json:"cadastral_number"`
	MatchScore      *float64 `json:"match_score,omitempty"`
	YandexID        string   `json:"yandex_id,omitempty"`
	ReviewsCount    *int     `json:"reviews_count,omitempty"`
	Sources         []Source `json:"sources"`
}

// GeoPoint is a GeoJSON point; Coordinates are [lon, lat].
type GeoPoint struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// School is the fully enriched school record loaded into sa.school,
// sa.rating and sa.link.
type School struct {
	ID                 int       `json:"id"`
	Name2GIS           *string   `json:"name_2gis"`
	ShortName          *string   `json:"short_name"`
	Address            *string   `json:"address"`
	BuildingType       *string   `json:"building_type"`
	AreaSqm            *float64  `json:"area_sqm"`
	Floors             *int      `json:"floors"`
	UndergroundFloors  *int      `json:"underground_floors"`
	Material           *string   `json:"material"`
	YearBuilt          *int      `json:"year_built"`
	ReconstructionYear *int      `json:"reconstruction_year"`
	Capacity           *int      `json:"capacity"`
	HasSportsComplex   *int      `json:"has_sports_complex"`
	HasPool            *int      `json:"has_pool"`
	HasStadium         *int      `json:"has_stadium"`
	HasSportsGround    *int      `json:"has_sports_ground"`
	Latitude           *float64  `json:"latitude"`
	Longitude          *float64  `json:"longitude"`
	CadastralNumber    *string   `json:"cadastral_number"`
	Rating2GIS         *float64  `json:"rating_2gis"`
	RatingYandex       *float64  `json:"rating_yandex"`
	LinkYandex         *string   `json:"link_yandex"`
	ReviewsLinkYandex  *string   `json:"reviews_link_yandex"`
	Link2GIS           *string   `json:"link_2gis"`
	ReviewsLink2GIS    *string   `json:"reviews_link_2gis"`
	Location           *GeoPoint `json:"location,omitempty"`
}

// Coordinates returns the school position, preferring the GeoJSON location
// over the flat latitude/longitude fields.
func (s School) Coordinates() (lat, lon float64, ok bool) {
	if s.Location != nil && len(s.Location.Coordinates) == 2 {
		return s.Location.Coordinates[1], s.Location.Coordinates[0], true
	}
	if s.Latitude != nil && s.Longitude != nil {
		return *s.Latitude, *s.Longitude, true
	}
	return 0, 0, false
}

// BoolFlag converts the 0/1/null encoding of facility flags to a nullable bool.
// Values other than 0 and 1 are treated as unknown.
func BoolFlag(v *int) *bool {
	if v == nil {
		return nil
	}
	var b bool
	switch *v {
	case 1:
		b = true
	case 0:
		b = false
	default:
		return nil
	}
	return &b
}

// ListedSchool is a school from the consolidated list that is matched
// against the "schools near" reference list.
type ListedSchool struct {
	SchoolID  FlexID   `json:"school_id"`
	Name      string   `json:"school_name"`
	ShortName string   `json:"school_short_name"`
	Address   string   `json:"school_adres"`
	Lat       *float64 `json:"lat,omitempty"`
	Lon       *float64 `json:"lon,omitempty"`
}

// NearSchool is an entry of the "schools near" reference list.
type NearSchool struct {
	ID       FlexID   `json:"school_near_id"`
	Name     string   `json:"school_near_name"`
	District string   `json:"district_near_name"`
	Lat      *float64 `json:"lat,omitempty"`
	Lon      *float64 `json:"lon,omitempty"`
}

// NearCandidate is one scored near-list candidate for a school.
type NearCandidate struct {
	NearID    FlexID   `json:"school_near_id"`
	NearName  string   `json:"school_near_name"`
	District  string   `json:"district_near_name"`
	Score     float64  `json:"match_score"`
	DistanceM *float64 `json:"distance_m,omitempty"`
}

// NearMatch is one row of the school / near-list matching output.
// School fields are nil for near-list entries no school claimed.
type NearMatch struct {
	ID         int             `json:"id"`
	SchoolID   *FlexID         `json:"school_id"`
	SchoolName *string         `json:"school_name"`
	ShortName  *string         `json:"school_short_name"`
	Address    *string         `json:"school_adres"`
	Neighbors  []NearCandidate `json:"nearest_neighbors"`
}
