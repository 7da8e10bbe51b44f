package model

import "time"

// Location holds the place a sighting was reported from. City, state and
// country are structured fields when the upstream source provides them;
// RawText preserves the original free-form location string.
type Location struct {
	RawText   string
	City      string
	County    string
	State     string
	Country   string
	Latitude  *float64
	Longitude *float64
	ID        int64
}

// Sighting represents a single report from one of the upstream databases.
// DateEvent is ISO YYYY-MM-DD (possibly with a time suffix); empty means
// the report is undated.
type Sighting struct {
	CreatedAt    time.Time
	SourceRef    string
	DateEvent    string
	DateEventRaw string
	Summary      string
	Description  string
	Shape        string
	Duration     string
	HynekClass   string
	ValleeClass  string
	EventType    string
	RawJSON      string
	Location     *Location
	ID           int64
	LocationID   int64
	NumWitnesses int64
	Source       SourceID
}

// MatchRecord is the projection of one sighting the matcher works with.
// Location fields are populated by the located-record queries; the dated
// scan used for the fuzzy tier leaves them empty.
type MatchRecord struct {
	Day         string // first ten characters of date_event
	City        string
	State       string
	Country     string
	RawText     string
	Description string
	ID          int64
	Source      SourceID
}

// EnrichTarget is the projection of a sighting the enrichment pass matches
// against sidecar metadata. The Needs flags mark classification fields the
// sighting is missing.
type EnrichTarget struct {
	Day         string
	City        string
	State       string
	ID          int64
	NeedsHynek  bool
	NeedsVallee bool
	NeedsShape  bool
}

// EnrichmentUpdate backfills classification metadata on one sighting.
// Empty fields are left untouched.
type EnrichmentUpdate struct {
	HynekClass  string
	ValleeClass string
	Shape       string
	SightingID  int64
}
