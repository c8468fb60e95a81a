package engine

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/storeconsole/internal/events"
	pkgerrors "github.com/angelmondragon/storeconsole/pkg/errors"
)

// Counter counts owner-scoped events matching a filter.
type Counter struct {
	source events.Source
}

// NewCounter wraps an event source.
func NewCounter(source events.Source) (*Counter, error) {
	if source == nil {
		return nil, errors.New("event source required")
	}
	return &Counter{source: source}, nil
}

// Count returns the exact number of matching events. Zero matches is 0 with a
// nil error; a failing source surfaces as CodeDependency.
func (c *Counter) Count(ctx context.Context, owner string, f events.Filter) (int64, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	n, err := c.source.Count(ctx, owner, f)
	if err != nil {
		return 0, sourceError(err, "count events")
	}
	if n < 0 {
		return 0, nil
	}
	return n, nil
}

// CountSince counts matching events at or after since, keeping any narrower
// lower bound already on the filter.
func (c *Counter) CountSince(ctx context.Context, owner string, f events.Filter, since time.Time) (int64, error) {
	f.Window = f.Window.Since(since)
	return c.Count(ctx, owner, f)
}

// sourceError leaves typed errors alone and classifies anything else as an
// unavailable source.
func sourceError(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Unavailable(err, msg)
}
