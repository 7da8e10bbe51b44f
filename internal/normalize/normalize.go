// Package normalize canonicalizes the location and date fields used to build
// match keys. Upstream sources disagree on casing, trailing qualifiers and
// punctuation, so every key component passes through here before grouping.
package normalize

import (
	"regexp"
	"strings"
)

var (
	trailingParenRe = regexp.MustCompile(`\s*\(.*\)\s*$`)
	trailingPunctRe = regexp.MustCompile(`[?.!]+$`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
	cityStateRe     = regexp.MustCompile(`(?i)^(.+?),\s*([A-Z]{2})\s*\??$`)
)

// knownStates holds the two-letter codes ParseCityState accepts: US states
// and territories plus Canadian provinces and territories.
var knownStates = map[string]bool{
	"AL": true, "AK": true, "AZ": true, "AR": true, "CA": true, "CO": true,
	"CT": true, "DE": true, "FL": true, "GA": true, "HI": true, "ID": true,
	"IL": true, "IN": true, "IA": true, "KS": true, "KY": true, "LA": true,
	"ME": true, "MD": true, "MA": true, "MI": true, "MN": true, "MS": true,
	"MO": true, "MT": true, "NE": true, "NV": true, "NH": true, "NJ": true,
	"NM": true, "NY": true, "NC": true, "ND": true, "OH": true, "OK": true,
	"OR": true, "PA": true, "RI": true, "SC": true, "SD": true, "TN": true,
	"TX": true, "UT": true, "VT": true, "VA": true, "WA": true, "WV": true,
	"WI": true, "WY": true, "DC": true, "PR": true, "VI": true, "GU": true,
	"AS": true, "MP": true,
	"AB": true, "BC": true, "MB": true, "NB": true, "NL": true, "NS": true,
	"NT": true, "NU": true, "ON": true, "PE": true, "QC": true, "SK": true,
	"YT": true,
}

// City canonicalizes a city name for key matching: upper-cased, trailing
// parenthesized qualifiers dropped, trailing punctuation stripped, internal
// whitespace collapsed. The paren strip runs before the punctuation strip,
// so a qualifier followed by punctuation survives with its parens intact.
func City(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	s = trailingParenRe.ReplaceAllString(s, "")
	s = trailingPunctRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// State canonicalizes a state or province field. No validation: sources
// store free text here and an empty state is a legal key component.
func State(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ParseCityState extracts a (city, state) pair from a free-form location
// string shaped like "Bremerton, WA" or "Tucson, AZ?". The state must be a
// known US or Canadian two-letter code. The city keeps its interior
// punctuation; callers wanting the match-key form apply City themselves.
func ParseCityState(raw string) (city, state string, ok bool) {
	m := cityStateRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", "", false
	}
	city = strings.ToUpper(strings.TrimSpace(m[1]))
	state = strings.ToUpper(m[2])
	if city == "" || !knownStates[state] {
		return "", "", false
	}
	return city, state, true
}

// Day truncates an event date to its YYYY-MM-DD prefix. Partial dates such
// as a bare year pass through unchanged; they still group, just only with
// equally partial dates. Empty means undated.
func Day(dateEvent string) string {
	if len(dateEvent) > 10 {
		return dateEvent[:10]
	}
	return dateEvent
}
