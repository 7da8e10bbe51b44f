package model

import "time"

// CandidateStatus tracks the adjudication state of a candidate pair.
type CandidateStatus string

// Candidate status constants.
const (
	StatusPending   CandidateStatus = "pending"
	StatusConfirmed CandidateStatus = "confirmed"
	StatusRejected  CandidateStatus = "rejected"
)

// Valid reports whether the status is one the store accepts.
func (s CandidateStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusRejected:
		return true
	default:
		return false
	}
}

// Match method names, one per rule that can produce a candidate pair.
// These strings are stored in duplicate_candidates.match_method and are
// part of the database contract.
const (
	MethodTier1MufonNuforc   = "tier1a_mufon_nuforc"
	MethodTier2aMufonUfocat  = "tier2a_mufon_ufocat"
	MethodTier2bNuforcUfocat = "tier2b_nuforc_ufocat"
	MethodTier2cUpdbMufon    = "tier2c_updb_mufon"
	MethodTier2cUpdbNuforc   = "tier2c_updb_nuforc"
	MethodTier2cUpdbUfocat   = "tier2c_updb_ufocat"
	MethodTier2dSearchMufon  = "tier2d_ufosearch_mufon"
	MethodTier2dSearchNuforc = "tier2d_ufosearch_nuforc"
	MethodTier2dSearchUfocat = "tier2d_ufosearch_ufocat"
	MethodTier3DescFuzzy     = "tier3_desc_fuzzy"
)

// CandidatePair links two sightings that likely describe the same event.
// SightingA is always the smaller ID; pairs are never rescored once stored.
type CandidatePair struct {
	CreatedAt  time.Time
	ResolvedAt *time.Time
	Method     string
	Status     CandidateStatus
	ID         int64
	SightingA  int64
	SightingB  int64
	Score      float64
}

// PairKey is the canonical identity of an unordered sighting pair.
type PairKey struct {
	A int64
	B int64
}

// NewPairKey builds the canonical key for two sighting IDs, swapping as
// needed so A < B. Keys with A == B are invalid.
func NewPairKey(x, y int64) PairKey {
	if x > y {
		x, y = y, x
	}
	return PairKey{A: x, B: y}
}

// Valid reports whether the key names a usable pair.
func (k PairKey) Valid() bool {
	return k.A > 0 && k.A < k.B
}
