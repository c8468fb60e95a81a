package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/storeconsole/internal/events"
	"github.com/angelmondragon/storeconsole/pkg/enums"
	pkgerrors "github.com/angelmondragon/storeconsole/pkg/errors"
)

type stubSource struct {
	count   int64
	err     error
	filters []events.Filter
}

func (s *stubSource) Count(_ context.Context, _ string, f events.Filter) (int64, error) {
	s.filters = append(s.filters, f)
	return s.count, s.err
}

func (s *stubSource) Query(context.Context, string, events.Query) ([]events.Event, error) {
	return nil, s.err
}

func TestNewCounterRequiresSource(t *testing.T) {
	if _, err := NewCounter(nil); err == nil {
		t.Fatalf("expected error without source")
	}
}

func TestCounterCount(t *testing.T) {
	src := &stubSource{count: 7}
	c, _ := NewCounter(src)

	n, err := c.Count(context.Background(), "store-1", events.Filter{Types: []enums.EventType{enums.EventOrderCreated}})
	if err != nil || n != 7 {
		t.Fatalf("expected 7, got %d (%v)", n, err)
	}
}

func TestCounterZeroMatchesIsNotAnError(t *testing.T) {
	c, _ := NewCounter(&stubSource{})
	n, err := c.Count(context.Background(), "store-1", events.Filter{})
	if err != nil || n != 0 {
		t.Fatalf("expected 0 without error, got %d (%v)", n, err)
	}
}

func TestCounterPropagatesSourceFailure(t *testing.T) {
	c, _ := NewCounter(&stubSource{err: errors.New("index missing")})
	_, err := c.Count(context.Background(), "store-1", events.Filter{})
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}

	typed := pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
	c, _ = NewCounter(&stubSource{err: typed})
	if _, err := c.Count(context.Background(), "store-1", events.Filter{}); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected typed error unchanged, got %v", err)
	}
}

func TestCounterRejectsInvalidFilter(t *testing.T) {
	src := &stubSource{}
	c, _ := NewCounter(src)
	_, err := c.Count(context.Background(), "store-1", events.Filter{Window: &events.Window{From: t0, To: t0.Add(-time.Hour)}})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(src.filters) != 0 {
		t.Fatalf("expected source not to be called")
	}
}

func TestCounterCountSinceNarrowsWindow(t *testing.T) {
	src := &stubSource{count: 2}
	c, _ := NewCounter(src)

	since := t0.Add(6 * time.Hour)
	base := events.Filter{Window: &events.Window{From: t0, To: t0.Add(24 * time.Hour)}}
	if _, err := c.CountSince(context.Background(), "store-1", base, since); err != nil {
		t.Fatalf("unexpected error %v", err)
	}

	got := src.filters[0].Window
	if !got.From.Equal(since) || !got.To.Equal(t0.Add(24*time.Hour)) {
		t.Fatalf("unexpected window %+v", got)
	}
	if !base.Window.From.Equal(t0) {
		t.Fatalf("expected caller filter to be left untouched")
	}
}
