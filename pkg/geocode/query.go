package geocode

import (
	"regexp"
	"strconv"
	"strings"
)

var gradeSuffixRe = regexp.MustCompile(`\s*\(5-11-е классы\)(\s*\(по согласованию\))?`)

// CleanSchoolName strips the "(5-11-е классы)" grade note, with or without a
// trailing "(по согласованию)", from a reference-list school name.
func CleanSchoolName(name string) string {
	return strings.TrimSpace(gradeSuffixRe.ReplaceAllString(name, ""))
}

// NearQuery builds the geocoder query for a reference-list school:
// "город <city>, <district> район, <name>".
func NearQuery(city, district, name string) string {
	return "город " + city + ", " + district + " район, " + CleanSchoolName(name)
}

// FormatCoords renders a point as "(lat, lon)".
func FormatCoords(lat, lon float64) string {
	return "(" + formatFloat(lat) + ", " + formatFloat(lon) + ")"
}

// ParseCoords reads "(lat, lon)" or "lat, lon". Spaces are ignored.
func ParseCoords(s string) (lat, lon float64, ok bool) {
	s = strings.Trim(strings.TrimSpace(s), "()")
	s = strings.ReplaceAll(s, " ", "")
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, errLat := strconv.ParseFloat(parts[0], 64)
	lon, errLon := strconv.ParseFloat(parts[1], 64)
	if errLat != nil || errLon != nil {
		return 0, 0, false
	}
	return lat, lon, true
}
