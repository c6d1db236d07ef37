// Package storage provides the SQLite persistence layer for LedgerMesh.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledgermesh/ledgermesh/internal/model"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrNilParameter     = errors.New("parameter cannot be nil")
	ErrEmptySlice       = errors.New("slice cannot be empty")
	ErrInvalidObs       = errors.New("invalid observation")
	ErrInvalidAggregate = errors.New("invalid aggregate")
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

// validateObservation validates a single observation before insertion.
func validateObservation(obs *model.Observation) error {
	if obs == nil {
		return fmt.Errorf("%w: observation", ErrNilParameter)
	}
	if obs.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidObs)
	}
	if obs.ContentHash == "" {
		return fmt.Errorf("%w: missing content hash", ErrInvalidObs)
	}
	if obs.AmountMinor < 0 {
		return fmt.Errorf("%w: amount_minor must be non-negative", ErrInvalidObs)
	}
	if obs.Direction == model.DirectionMixed {
		return fmt.Errorf("%w: MIXED direction is reserved for aggregates", ErrInvalidObs)
	}
	return nil
}

// validateObservations validates a batch of observations.
func validateObservations(obs []model.Observation) error {
	if obs == nil {
		return fmt.Errorf("%w: observations", ErrNilParameter)
	}
	if len(obs) == 0 {
		return fmt.Errorf("%w: observations", ErrEmptySlice)
	}
	for i := range obs {
		if err := validateObservation(&obs[i]); err != nil {
			return fmt.Errorf("observation at index %d: %w", i, err)
		}
	}
	return nil
}

// validateAggregate validates a single aggregate before persistence.
func validateAggregate(agg *model.Aggregate) error {
	if agg == nil {
		return fmt.Errorf("%w: aggregate", ErrNilParameter)
	}
	if agg.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidAggregate)
	}
	if agg.ConfidenceScore < 0 || agg.ConfidenceScore > 100 {
		return fmt.Errorf("%w: confidence_score out of [0,100]", ErrInvalidAggregate)
	}
	return nil
}
