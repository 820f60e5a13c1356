// Package storage persists match results produced by discovery.
package storage

import (
	"context"
	"errors"

	"poolScout/internal/model"
)

// Sink receives the matches of one processed batch.
type Sink interface {
	PutMatches(ctx context.Context, matches []model.MatchResult) error
}

// Fanout writes to every sink in order and joins their errors.
type Fanout []Sink

func (f Fanout) PutMatches(ctx context.Context, matches []model.MatchResult) error {
	var errs []error
	for _, sink := range f {
		if err := sink.PutMatches(ctx, matches); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
