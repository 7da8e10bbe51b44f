package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/skymerge/saucer/internal/model"
)

func TestValidateContext(t *testing.T) {
	tests := []struct {
		ctx     context.Context
		name    string
		wantErr bool
	}{
		{
			name:    "valid context",
			ctx:     context.Background(),
			wantErr: false,
		},
		{
			name:    "nil context",
			ctx:     nil,
			wantErr: true,
		},
		{
			name: "canceled context still valid",
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				return ctx
			}(),
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateContext(tt.ctx)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateContext() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateString(t *testing.T) {
	tests := []struct {
		name      string
		str       string
		paramName string
		wantErr   bool
	}{
		{
			name:      "valid string",
			str:       "test.db",
			paramName: "dbPath",
			wantErr:   false,
		},
		{
			name:      "empty string",
			str:       "",
			paramName: "dbPath",
			wantErr:   true,
		},
		{
			name:      "whitespace only",
			str:       "   ",
			paramName: "dbPath",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateString(tt.str, tt.paramName)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateString() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), tt.paramName) {
				t.Errorf("validateString() error should contain param name %s, got %v", tt.paramName, err)
			}
		})
	}
}

func TestValidateSighting(t *testing.T) {
	tests := []struct {
		sighting *model.Sighting
		name     string
		wantErr  bool
	}{
		{
			name: "valid sighting",
			sighting: &model.Sighting{
				Source:      model.SourceMUFON,
				SourceRef:   "MUFON-1",
				Description: "a light in the sky",
			},
			wantErr: false,
		},
		{
			name: "summary alone is enough",
			sighting: &model.Sighting{
				Source:  model.SourceNUFORC,
				Summary: "triangle over the lake",
			},
			wantErr: false,
		},
		{
			name:     "nil sighting",
			sighting: nil,
			wantErr:  true,
		},
		{
			name: "zero source",
			sighting: &model.Sighting{
				SourceRef: "X-1",
			},
			wantErr: true,
		},
		{
			name: "source past registry",
			sighting: &model.Sighting{
				Source:    model.SourceID(6),
				SourceRef: "X-1",
			},
			wantErr: true,
		},
		{
			name: "no identifying content",
			sighting: &model.Sighting{
				Source: model.SourceUPDB,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSighting(tt.sighting)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateSighting() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCandidatePairs(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []model.CandidatePair
		wantErr bool
	}{
		{
			name: "valid pairs",
			pairs: []model.CandidatePair{
				{SightingA: 1, SightingB: 2, Score: 0.9, Method: "tier1a_mufon_nuforc"},
				{SightingA: 3, SightingB: 4, Score: 0.0, Method: "tier3_desc_fuzzy"},
			},
			wantErr: false,
		},
		{
			name: "reversed pair accepted, canonicalized later",
			pairs: []model.CandidatePair{
				{SightingA: 5, SightingB: 2, Score: 0.5, Method: "tier1a_mufon_nuforc"},
			},
			wantErr: false,
		},
		{
			name: "self pair accepted, dropped by the writer",
			pairs: []model.CandidatePair{
				{SightingA: 2, SightingB: 2, Score: 0.5, Method: "tier1a_mufon_nuforc"},
			},
			wantErr: false,
		},
		{
			name:    "nil slice",
			pairs:   nil,
			wantErr: true,
		},
		{
			name:    "empty slice ok",
			pairs:   []model.CandidatePair{},
			wantErr: false,
		},
		{
			name: "zero sighting ID",
			pairs: []model.CandidatePair{
				{SightingA: 0, SightingB: 2, Score: 0.5, Method: "tier1a_mufon_nuforc"},
			},
			wantErr: true,
		},
		{
			name: "score above one",
			pairs: []model.CandidatePair{
				{SightingA: 1, SightingB: 2, Score: 1.01, Method: "tier1a_mufon_nuforc"},
			},
			wantErr: true,
		},
		{
			name: "score below zero",
			pairs: []model.CandidatePair{
				{SightingA: 1, SightingB: 2, Score: -0.5, Method: "tier1a_mufon_nuforc"},
			},
			wantErr: true,
		},
		{
			name: "blank method",
			pairs: []model.CandidatePair{
				{SightingA: 1, SightingB: 2, Score: 0.5, Method: "  "},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateCandidatePairs(tt.pairs)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateCandidatePairs() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateEnrichmentUpdates(t *testing.T) {
	tests := []struct {
		name    string
		updates []model.EnrichmentUpdate
		wantErr bool
	}{
		{
			name: "valid update",
			updates: []model.EnrichmentUpdate{
				{SightingID: 1, HynekClass: "NL"},
			},
			wantErr: false,
		},
		{
			name: "shape alone is enough",
			updates: []model.EnrichmentUpdate{
				{SightingID: 1, Shape: "disk"},
			},
			wantErr: false,
		},
		{
			name:    "nil slice",
			updates: nil,
			wantErr: true,
		},
		{
			name: "zero sighting ID",
			updates: []model.EnrichmentUpdate{
				{SightingID: 0, HynekClass: "NL"},
			},
			wantErr: true,
		},
		{
			name: "update with no values",
			updates: []model.EnrichmentUpdate{
				{SightingID: 1},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateEnrichmentUpdates(tt.updates)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateEnrichmentUpdates() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateScore(t *testing.T) {
	tests := []struct {
		name    string
		score   float64
		wantErr bool
	}{
		{name: "zero", score: 0.0, wantErr: false},
		{name: "one", score: 1.0, wantErr: false},
		{name: "middle", score: 0.5, wantErr: false},
		{name: "negative", score: -0.001, wantErr: true},
		{name: "above one", score: 1.001, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateScore(tt.score)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateScore(%v) error = %v, wantErr %v", tt.score, err, tt.wantErr)
			}
		})
	}
}
