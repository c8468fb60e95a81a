package warehouse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	cloudbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/angelmondragon/storeconsole/internal/events"
	"github.com/angelmondragon/storeconsole/pkg/bigquery"
	"github.com/angelmondragon/storeconsole/pkg/enums"
	pkgerrors "github.com/angelmondragon/storeconsole/pkg/errors"
)

const (
	countSQL = `
SELECT COUNT(*) AS value
FROM %s
WHERE %s
`

	querySQL = `
SELECT id, store_id, event_type, occurred_at, conversation_id, role, payload
FROM %s
WHERE %s
ORDER BY occurred_at %s, id %s
`
)

// Runner executes parameterized warehouse SQL.
type Runner interface {
	Run(ctx context.Context, sql string, params []cloudbigquery.QueryParameter) (bigquery.RowIterator, error)
}

// Source reads store events from the BigQuery events table.
type Source struct {
	runner   Runner
	tableRef string
}

var _ events.Source = (*Source)(nil)

// NewSource builds a warehouse source over the fully qualified table reference.
func NewSource(runner Runner, tableRef string) (*Source, error) {
	if runner == nil {
		return nil, errors.New("bigquery runner required")
	}
	if strings.TrimSpace(tableRef) == "" {
		return nil, errors.New("events table reference required")
	}
	return &Source{runner: runner, tableRef: tableRef}, nil
}

// Count returns the number of matching events.
func (s *Source) Count(ctx context.Context, owner string, f events.Filter) (int64, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	where, params, err := buildWhere(owner, f)
	if err != nil {
		return 0, err
	}

	iter, err := s.runner.Run(ctx, fmt.Sprintf(countSQL, s.tableRef, where), params)
	if err != nil {
		return 0, pkgerrors.Unavailable(err, "count warehouse events")
	}
	var row struct {
		Value int64 `bigquery:"value"`
	}
	if err := iter.Next(&row); err != nil {
		if errors.Is(err, iterator.Done) {
			return 0, nil
		}
		return 0, pkgerrors.Unavailable(err, "read warehouse count")
	}
	return row.Value, nil
}

// Query returns matching events in the requested order.
func (s *Source) Query(ctx context.Context, owner string, q events.Query) ([]events.Event, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	where, params, err := buildWhere(owner, q.Filter)
	if err != nil {
		return nil, err
	}

	dir := "ASC"
	if q.Order == events.OrderReverse {
		dir = "DESC"
	}
	sql := fmt.Sprintf(querySQL, s.tableRef, where, dir, dir)
	if q.Limit > 0 {
		sql += "LIMIT @limit\n"
		params = append(params, cloudbigquery.QueryParameter{Name: "limit", Value: int64(q.Limit)})
	}

	iter, err := s.runner.Run(ctx, sql, params)
	if err != nil {
		return nil, pkgerrors.Unavailable(err, "query warehouse events")
	}

	var out []events.Event
	for {
		var row eventRow
		if err := iter.Next(&row); err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			return nil, pkgerrors.Unavailable(err, "read warehouse event row")
		}
		out = append(out, row.toEvent())
	}
	return out, nil
}

type eventRow struct {
	ID             string                   `bigquery:"id"`
	StoreID        string                   `bigquery:"store_id"`
	EventType      string                   `bigquery:"event_type"`
	OccurredAt     time.Time                `bigquery:"occurred_at"`
	ConversationID cloudbigquery.NullString `bigquery:"conversation_id"`
	Role           cloudbigquery.NullString `bigquery:"role"`
	Payload        cloudbigquery.NullString `bigquery:"payload"`
}

func (r eventRow) toEvent() events.Event {
	e := events.Event{
		ID:        r.ID,
		Type:      enums.EventType(r.EventType),
		Timestamp: r.OccurredAt.UTC(),
		Owner:     r.StoreID,
	}
	if r.ConversationID.Valid {
		e.ConversationID = r.ConversationID.StringVal
	}
	if r.Role.Valid {
		e.Role = enums.ConversationRole(r.Role.StringVal)
	}
	if r.Payload.Valid && r.Payload.StringVal != "" {
		var payload map[string]any
		if err := json.Unmarshal([]byte(r.Payload.StringVal), &payload); err == nil {
			e.Payload = payload
		}
	}
	return e
}

// buildWhere renders the filter as a parameterized WHERE clause. Payload keys
// are inlined into JSON paths; Filter.Validate restricts them to [a-z0-9_].
func buildWhere(owner string, f events.Filter) (string, []cloudbigquery.QueryParameter, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return "", nil, pkgerrors.New(pkgerrors.CodeValidation, "store id required")
	}

	clauses := []string{"store_id = @owner"}
	params := []cloudbigquery.QueryParameter{{Name: "owner", Value: owner}}

	if len(f.Types) > 0 {
		names := make([]string, 0, len(f.Types))
		for _, t := range f.Types {
			names = append(names, t.String())
		}
		clauses = append(clauses, "event_type IN UNNEST(@types)")
		params = append(params, cloudbigquery.QueryParameter{Name: "types", Value: names})
	}
	if f.ConversationID != "" {
		clauses = append(clauses, "conversation_id = @conversation")
		params = append(params, cloudbigquery.QueryParameter{Name: "conversation", Value: f.ConversationID})
	}
	if f.Window != nil {
		if !f.Window.From.IsZero() {
			clauses = append(clauses, "occurred_at >= @from")
			params = append(params, cloudbigquery.QueryParameter{Name: "from", Value: f.Window.From.UTC()})
		}
		if !f.Window.To.IsZero() {
			clauses = append(clauses, "occurred_at < @to")
			params = append(params, cloudbigquery.QueryParameter{Name: "to", Value: f.Window.To.UTC()})
		}
	}
	if f.Flag != nil {
		clauses = append(clauses, fmt.Sprintf("JSON_QUERY(payload, '$.%s') = @flag", f.Flag.Key))
		params = append(params, cloudbigquery.QueryParameter{Name: "flag", Value: strconv.FormatBool(f.Flag.Value)})
	}
	if f.Numeric != nil {
		op, _ := f.Numeric.Op.SQL()
		value := fmt.Sprintf("TRIM(JSON_VALUE(payload, '$.%s'))", f.Numeric.Key)
		clauses = append(clauses, fmt.Sprintf(
			"IF(REGEXP_CONTAINS(%[1]s, @numeric_pattern), SAFE_CAST(%[1]s AS FLOAT64), NULL) %[2]s @numeric", value, op))
		params = append(params,
			cloudbigquery.QueryParameter{Name: "numeric_pattern", Value: events.NumericTextPattern},
			cloudbigquery.QueryParameter{Name: "numeric", Value: f.Numeric.Value},
		)
	}

	return strings.Join(clauses, "\n  AND "), params, nil
}
