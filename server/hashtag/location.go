package hashtag

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/biter777/countries"
)

// maxPlaces caps how many place names become hashtags
const maxPlaces = 3

// US state code to full name mapping
var usStates = map[string]string{
	"AL": "Alabama", "AK": "Alaska", "AZ": "Arizona", "AR": "Arkansas",
	"CA": "California", "CO": "Colorado", "CT": "Connecticut", "DE": "Delaware",
	"FL": "Florida", "GA": "Georgia", "HI": "Hawaii", "ID": "Idaho",
	"IL": "Illinois", "IN": "Indiana", "IA": "Iowa", "KS": "Kansas",
	"KY": "Kentucky", "LA": "Louisiana", "ME": "Maine", "MD": "Maryland",
	"MA": "Massachusetts", "MI": "Michigan", "MN": "Minnesota", "MS": "Mississippi",
	"MO": "Missouri", "MT": "Montana", "NE": "Nebraska", "NV": "Nevada",
	"NH": "New Hampshire", "NJ": "New Jersey", "NM": "New Mexico", "NY": "New York",
	"NC": "North Carolina", "ND": "North Dakota", "OH": "Ohio", "OK": "Oklahoma",
	"OR": "Oregon", "PA": "Pennsylvania", "RI": "Rhode Island", "SC": "South Carolina",
	"SD": "South Dakota", "TN": "Tennessee", "TX": "Texas", "UT": "Utah",
	"VT": "Vermont", "VA": "Virginia", "WA": "Washington", "WV": "West Virginia",
	"WI": "Wisconsin", "WY": "Wyoming", "DC": "District of Columbia",
}

// Canadian province/territory code to full name mapping
var canadianProvinces = map[string]string{
	"AB": "Alberta", "BC": "British Columbia", "MB": "Manitoba", "NB": "New Brunswick",
	"NL": "Newfoundland and Labrador", "NS": "Nova Scotia", "NT": "Northwest Territories",
	"NU": "Nunavut", "ON": "Ontario", "PE": "Prince Edward Island", "QC": "Quebec",
	"SK": "Saskatchewan", "YT": "Yukon",
}

// stateZipPattern matches a two-letter code followed by a postcode, e.g. "TX 78701"
var stateZipPattern = regexp.MustCompile(`^([A-Za-z]{2})\s+\S*\d\S*$`)

// locationTags builds hashtags from an alert's ordered place names.
//
// Places carrying digits (street numbers, postcodes) are dropped, except that
// "XX 12345" keeps the state code. Only the last three remaining places are
// used. Country names and ISO codes are spelled out ("USA" -> #UnitedStates).
// A two-letter US state or Canadian province code is expanded when another
// place names the country and skipped otherwise, since "CA" or "IL" alone is
// ambiguous. A single place is always tried as a country first.
func locationTags(places []string) []string {
	cleaned := cleanPlaces(places)
	if len(cleaned) == 0 {
		return nil
	}
	if len(cleaned) > maxPlaces {
		cleaned = cleaned[len(cleaned)-maxPlaces:]
	}

	if len(cleaned) == 1 {
		return []string{placeTag(cleaned[0], countries.Unknown, true)}
	}

	// A country anywhere in the list gives subdivision codes their meaning
	context := countries.Unknown
	for _, place := range cleaned {
		if isSubdivisionCode(place) {
			continue
		}
		if country := detectCountry(place); country != countries.Unknown {
			context = country
		}
	}

	tags := make([]string, 0, len(cleaned))
	for _, place := range cleaned {
		if tag := placeTag(place, context, false); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// cleanPlaces trims places and drops the ones that look like street-level detail
func cleanPlaces(places []string) []string {
	var cleaned []string

	for _, place := range places {
		place = strings.TrimSpace(place)
		if place == "" {
			continue
		}

		if matches := stateZipPattern.FindStringSubmatch(place); matches != nil {
			cleaned = append(cleaned, matches[1])
			continue
		}

		if containsNumber(place) {
			continue
		}

		cleaned = append(cleaned, place)
	}

	return cleaned
}

// placeTag returns the hashtag for one place, or "" when it should be skipped
func placeTag(place string, context countries.CountryCode, alone bool) string {
	if !alone && isSubdivisionCode(place) {
		name := expandSubdivision(place, context)
		if name == "" {
			return ""
		}
		return "#" + camelCase(name)
	}

	if country := detectCountry(place); country != countries.Unknown {
		return "#" + camelCase(country.String())
	}

	return "#" + camelCase(place)
}

// containsNumber checks if a string contains any digit.
func containsNumber(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// isSubdivisionCode reports whether s is a US state or Canadian province code
func isSubdivisionCode(s string) bool {
	if len(s) != 2 {
		return false
	}
	code := strings.ToUpper(s)
	_, isUSState := usStates[code]
	_, isProvince := canadianProvinces[code]
	return isUSState || isProvince
}

// expandSubdivision spells out a state or province code for the given country.
// It returns "" when the country does not define the code.
func expandSubdivision(code string, country countries.CountryCode) string {
	code = strings.ToUpper(code)

	switch country {
	case countries.US:
		return usStates[code]
	case countries.CA:
		return canadianProvinces[code]
	default:
		return ""
	}
}

// detectCountry tries to identify a country from a name or ISO code (case-insensitive).
func detectCountry(s string) countries.CountryCode {
	if s == "" {
		return countries.Unknown
	}
	return countries.ByName(s)
}
