// Package storage provides the data persistence layer for the saucer application.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/skymerge/saucer/internal/model"
)

// Validation errors.
var (
	ErrNilContext        = errors.New("context cannot be nil")
	ErrEmptyString       = errors.New("string parameter cannot be empty")
	ErrNilParameter      = errors.New("parameter cannot be nil")
	ErrEmptySlice        = errors.New("slice cannot be empty")
	ErrInvalidID         = errors.New("invalid identifier")
	ErrInvalidScore      = errors.New("similarity score must be between 0 and 1")
	ErrInvalidScoreRange = errors.New("score range low must not exceed high")
	ErrInvalidStatus     = errors.New("invalid candidate status")
	ErrInvalidSource     = errors.New("invalid source database")
	ErrInvalidSighting   = errors.New("invalid sighting")
	ErrInvalidPair       = errors.New("invalid candidate pair")
	ErrEmptyMethod       = errors.New("match method cannot be empty")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateID ensures a row identifier is positive.
func validateID(id int64, paramName string) error {
	if id <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidID, paramName)
	}
	return nil
}

// validateSource ensures the source names a seeded source database.
func validateSource(source model.SourceID) error {
	if !source.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidSource, int64(source))
	}
	return nil
}

// validateScore ensures a similarity score is in range.
func validateScore(score float64) error {
	if score < 0 || score > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidScore, score)
	}
	return nil
}

// validateStatus ensures the status is one the candidate table accepts.
func validateStatus(status model.CandidateStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
	return nil
}

// validateSightings validates a slice of sightings for insertion.
func validateSightings(sightings []model.Sighting) error {
	if sightings == nil {
		return fmt.Errorf("%w: sightings", ErrNilParameter)
	}
	if len(sightings) == 0 {
		return fmt.Errorf("%w: sightings", ErrEmptySlice)
	}

	for i, sighting := range sightings {
		if err := validateSighting(&sighting); err != nil {
			return fmt.Errorf("sighting at index %d: %w", i, err)
		}
	}
	return nil
}

// validateSighting validates a single sighting.
func validateSighting(sighting *model.Sighting) error {
	if sighting == nil {
		return fmt.Errorf("%w: sighting", ErrNilParameter)
	}
	if err := validateSource(sighting.Source); err != nil {
		return err
	}
	if sighting.SourceRef == "" && sighting.Description == "" && sighting.Summary == "" {
		return fmt.Errorf("%w: record carries no reference, summary or description", ErrInvalidSighting)
	}
	return nil
}

// validateEnrichmentUpdates validates a batch of classification updates.
func validateEnrichmentUpdates(updates []model.EnrichmentUpdate) error {
	if updates == nil {
		return fmt.Errorf("%w: updates", ErrNilParameter)
	}

	for i, update := range updates {
		if update.SightingID <= 0 {
			return fmt.Errorf("update at index %d: %w: sighting ID must be positive", i, ErrInvalidID)
		}
		if update.HynekClass == "" && update.ValleeClass == "" && update.Shape == "" {
			return fmt.Errorf("update at index %d: %w: update carries no values", i, ErrInvalidSighting)
		}
	}
	return nil
}

// validateCandidatePairs validates a batch of candidate pairs. Ordering and
// self-pair dropping are the writer's job; validation only rejects pairs no
// canonicalization can fix.
func validateCandidatePairs(pairs []model.CandidatePair) error {
	if pairs == nil {
		return fmt.Errorf("%w: pairs", ErrNilParameter)
	}

	for i, pair := range pairs {
		if pair.SightingA <= 0 || pair.SightingB <= 0 {
			return fmt.Errorf("pair at index %d: %w: sighting IDs must be positive", i, ErrInvalidPair)
		}
		if err := validateScore(pair.Score); err != nil {
			return fmt.Errorf("pair at index %d: %w", i, err)
		}
		if strings.TrimSpace(pair.Method) == "" {
			return fmt.Errorf("pair at index %d: %w", i, ErrEmptyMethod)
		}
	}
	return nil
}
