// Package service defines the interfaces for all application services.
package service

import (
	"context"

	"github.com/skymerge/saucer/internal/model"
)

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Sighting operations
	SaveSightings(ctx context.Context, sightings []model.Sighting) error
	GetSightingByID(ctx context.Context, id int64) (*model.Sighting, error)
	CountSightings(ctx context.Context) (int64, error)
	ListMatchRecords(ctx context.Context, source model.SourceID) ([]model.MatchRecord, error)
	ListDatedRecords(ctx context.Context) ([]model.MatchRecord, error)

	// Candidate operations
	InsertCandidatePairs(ctx context.Context, pairs []model.CandidatePair) (int64, error)
	ListClaimedPairs(ctx context.Context) ([]model.PairKey, error)
	GetCandidatesForSighting(ctx context.Context, sightingID int64) ([]model.CandidatePair, error)
	GetCandidatesByMethod(ctx context.Context, method string) ([]model.CandidatePair, error)
	GetCandidatesByScoreRange(ctx context.Context, low, high float64) ([]model.CandidatePair, error)
	CountCandidates(ctx context.Context) (int64, error)
	UpdateCandidateStatus(ctx context.Context, id int64, status model.CandidateStatus) error

	// Match run bookkeeping
	InsertMatchRun(ctx context.Context, run *model.MatchRun) error
	FinalizeMatchRun(ctx context.Context, run *model.MatchRun) error

	// Source registry
	ListSourceDatabases(ctx context.Context) ([]model.SourceDatabase, error)

	// Enrichment
	ListEnrichableSightings(ctx context.Context, source model.SourceID) ([]model.EnrichTarget, error)
	ApplyEnrichment(ctx context.Context, updates []model.EnrichmentUpdate) (int64, error)

	// Reporting
	GetMethodStats(ctx context.Context) ([]MethodStat, error)
	GetScoreDistribution(ctx context.Context) ([]ScoreBand, error)
	GetTopCandidates(ctx context.Context, limit int) ([]CandidateDetail, error)
	CountInvolvedSightings(ctx context.Context) (int64, error)
	GetArchiveSummary(ctx context.Context) (*ArchiveSummary, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction scopes the writes a match tier performs. All of a tier's
// candidate inserts land in one transaction so an interrupted run leaves
// only whole tiers behind.
type Transaction interface {
	InsertCandidatePairs(ctx context.Context, pairs []model.CandidatePair) (int64, error)
	Commit() error
	Rollback() error
}

// MethodStat aggregates the candidates produced by one match rule.
type MethodStat struct {
	Method string
	Count  int64
	Avg    float64
	Min    float64
	Max    float64
}

// ScoreBand is one bucket of the candidate score histogram.
type ScoreBand struct {
	Label string
	Low   float64
	High  float64
	Count int64
}

// CandidateDetail is a candidate pair joined with enough sighting context
// to print in a report.
type CandidateDetail struct {
	Method    string
	DayA      string
	DayB      string
	SummaryA  string
	SummaryB  string
	ID        int64
	SightingA int64
	SightingB int64
	SourceA   model.SourceID
	SourceB   model.SourceID
	Score     float64
}

// SourceCount aggregates the archive rows belonging to one source.
type SourceCount struct {
	Name    string
	Source  model.SourceID
	Count   int64
	Dated   int64
	Located int64
}

// ShapeCount is one entry of the reported-shape leaderboard.
type ShapeCount struct {
	Shape string
	Count int64
}

// ArchiveSummary describes the whole archive for the stats command.
type ArchiveSummary struct {
	CandidatesByStatus map[model.CandidateStatus]int64
	BySource           []SourceCount
	TopShapes          []ShapeCount
	TotalSightings     int64
	TotalCandidates    int64
}
