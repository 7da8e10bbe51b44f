// Package model defines the core domain models used throughout the application.
package model

import (
	"fmt"
	"strings"
	"time"
)

// SourceID identifies one of the upstream sighting databases.
type SourceID int64

// Source database identifiers. These match the seeded source_databases rows
// and must never be renumbered.
const (
	SourceMUFON     SourceID = 1
	SourceNUFORC    SourceID = 2
	SourceUFOCAT    SourceID = 3
	SourceUPDB      SourceID = 4
	SourceUFOSearch SourceID = 5
)

// AllSources lists every known source in ID order.
func AllSources() []SourceID {
	return []SourceID{SourceMUFON, SourceNUFORC, SourceUFOCAT, SourceUPDB, SourceUFOSearch}
}

// Name returns the canonical display name for the source.
func (s SourceID) Name() string {
	switch s {
	case SourceMUFON:
		return "MUFON"
	case SourceNUFORC:
		return "NUFORC"
	case SourceUFOCAT:
		return "UFOCAT"
	case SourceUPDB:
		return "UPDB"
	case SourceUFOSearch:
		return "UFO-search"
	default:
		return fmt.Sprintf("source(%d)", int64(s))
	}
}

// Valid reports whether the ID names a known source.
func (s SourceID) Valid() bool {
	return s >= SourceMUFON && s <= SourceUFOSearch
}

// ParseSource resolves a source name as found in import files or CLI flags.
func ParseSource(name string) (SourceID, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "MUFON":
		return SourceMUFON, nil
	case "NUFORC":
		return SourceNUFORC, nil
	case "UFOCAT":
		return SourceUFOCAT, nil
	case "UPDB":
		return SourceUPDB, nil
	case "UFO-SEARCH", "UFOSEARCH", "UFO_SEARCH":
		return SourceUFOSearch, nil
	default:
		return 0, fmt.Errorf("unknown source %q", name)
	}
}

// SourceDatabase is a row of the source registry table.
type SourceDatabase struct {
	CreatedAt   time.Time
	Name        string
	Description string
	URL         string
	ID          SourceID
}
