package events

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/storeconsole/pkg/enums"
	pkgerrors "github.com/angelmondragon/storeconsole/pkg/errors"
)

// Event is the read model of a store event handed to the metrics engine.
type Event struct {
	ID             string                 `json:"id"`
	Type           enums.EventType        `json:"type"`
	Timestamp      time.Time              `json:"timestamp"`
	Owner          string                 `json:"owner"`
	Payload        map[string]any         `json:"payload,omitempty"`
	ConversationID string                 `json:"conversation_id,omitempty"`
	Role           enums.ConversationRole `json:"role,omitempty"`
}

// Conversational reports whether the event can take part in reply pairing.
func (e Event) Conversational() bool {
	return e.ConversationID != "" && e.Role.IsValid()
}

// String returns the payload attribute at key when it is a non-empty string.
func (e Event) String(key string) (string, bool) {
	raw, ok := e.Payload[key]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	s = strings.TrimSpace(s)
	return s, ok && s != ""
}

// NumericTextPattern is the JSON number grammar. String payload values must
// match it to count as numbers; every Source applies the same rule.
const NumericTextPattern = `^-{0,1}(0|[1-9][0-9]*)(\.[0-9]+){0,1}([eE][-+]{0,1}[0-9]+){0,1}$`

var numericText = regexp.MustCompile(NumericTextPattern)

// Number returns the payload attribute at key as a float. JSON numbers and
// strings holding a JSON number are accepted.
func (e Event) Number(key string) (float64, bool) {
	raw, ok := e.Payload[key]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		v = strings.TrimSpace(v)
		if !numericText.MatchString(v) {
			return 0, false
		}
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Order selects the direction results are returned in.
type Order int

const (
	OrderChronological Order = iota
	OrderReverse
)

// Window is the half-open interval [From, To). A zero bound is open.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains reports whether ts falls inside the window.
func (w *Window) Contains(ts time.Time) bool {
	if w == nil {
		return true
	}
	if !w.From.IsZero() && ts.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && !ts.Before(w.To) {
		return false
	}
	return true
}

// Since returns a copy of w whose lower bound is at least from.
func (w *Window) Since(from time.Time) *Window {
	out := &Window{From: from}
	if w == nil {
		return out
	}
	out.To = w.To
	if w.From.After(from) {
		out.From = w.From
	}
	return out
}

// NumericOp is a comparison applied to a numeric payload attribute.
type NumericOp string

const (
	OpEq  NumericOp = "eq"
	OpNe  NumericOp = "ne"
	OpGt  NumericOp = "gt"
	OpGte NumericOp = "gte"
	OpLt  NumericOp = "lt"
	OpLte NumericOp = "lte"
)

// SQL returns the comparison operator for the op.
func (o NumericOp) SQL() (string, bool) {
	switch o {
	case OpEq:
		return "=", true
	case OpNe:
		return "<>", true
	case OpGt:
		return ">", true
	case OpGte:
		return ">=", true
	case OpLt:
		return "<", true
	case OpLte:
		return "<=", true
	default:
		return "", false
	}
}

// Compare applies the op to a and b.
func (o NumericOp) Compare(a, b float64) bool {
	switch o {
	case OpEq:
		return a == b
	case OpNe:
		return a != b
	case OpGt:
		return a > b
	case OpGte:
		return a >= b
	case OpLt:
		return a < b
	case OpLte:
		return a <= b
	default:
		return false
	}
}

// FlagFilter matches a boolean payload attribute.
type FlagFilter struct {
	Key   string
	Value bool
}

// NumericFilter matches a numeric payload attribute.
type NumericFilter struct {
	Key   string
	Op    NumericOp
	Value float64
}

// Filter is the predicate half of a source query. Every set field must match.
type Filter struct {
	Types          []enums.EventType
	Flag           *FlagFilter
	Numeric        *NumericFilter
	Window         *Window
	ConversationID string
}

var payloadKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// Validate rejects malformed predicates before they reach a backing store.
func (f Filter) Validate() error {
	if f.Window != nil && !f.Window.From.IsZero() && !f.Window.To.IsZero() && !f.Window.From.Before(f.Window.To) {
		return pkgerrors.New(pkgerrors.CodeValidation, "window start must be before window end").
			WithDetails(map[string]any{"from": f.Window.From, "to": f.Window.To})
	}
	for _, t := range f.Types {
		if t.IsZero() {
			return pkgerrors.New(pkgerrors.CodeValidation, "event type must not be empty")
		}
	}
	if f.Flag != nil && !payloadKeyPattern.MatchString(f.Flag.Key) {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid flag key").WithDetails(map[string]any{"key": f.Flag.Key})
	}
	if f.Numeric != nil {
		if !payloadKeyPattern.MatchString(f.Numeric.Key) {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid numeric key").WithDetails(map[string]any{"key": f.Numeric.Key})
		}
		if _, ok := f.Numeric.Op.SQL(); !ok {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid numeric operator").WithDetails(map[string]any{"op": f.Numeric.Op})
		}
	}
	return nil
}

// Matches evaluates the filter against an in-memory event.
func (f Filter) Matches(e Event) bool {
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if e.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.ConversationID != "" && e.ConversationID != f.ConversationID {
		return false
	}
	if !f.Window.Contains(e.Timestamp) {
		return false
	}
	if f.Flag != nil {
		v, ok := e.Payload[f.Flag.Key].(bool)
		if !ok || v != f.Flag.Value {
			return false
		}
	}
	if f.Numeric != nil {
		v, ok := e.Number(f.Numeric.Key)
		if !ok || !f.Numeric.Op.Compare(v, f.Numeric.Value) {
			return false
		}
	}
	return true
}

// Query bounds a filtered read by order and count.
type Query struct {
	Filter Filter
	Order  Order
	// Limit caps the number of returned events; zero means unbounded.
	Limit int
}

// Validate checks the filter and limit.
func (q Query) Validate() error {
	if q.Limit < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "limit must not be negative")
	}
	if q.Order != OrderChronological && q.Order != OrderReverse {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order")
	}
	return q.Filter.Validate()
}

// Source reads owner-scoped events from a backing store. Implementations return
// an error carrying pkgerrors.CodeDependency when the store cannot execute the
// request; an empty result is not an error.
type Source interface {
	Query(ctx context.Context, owner string, q Query) ([]Event, error)
	Count(ctx context.Context, owner string, f Filter) (int64, error)
}

// Appender persists new events. Only write paths use it.
type Appender interface {
	Append(ctx context.Context, e Event) error
}
