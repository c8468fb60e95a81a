package events

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storeconsole/internal/repo"
	"github.com/angelmondragon/storeconsole/pkg/db"
	"github.com/angelmondragon/storeconsole/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storeconsole/pkg/errors"
	"github.com/angelmondragon/storeconsole/pkg/types"
)

// ErrDuplicateEvent is returned by Append when the event id was already stored.
var ErrDuplicateEvent = errors.New("store event already recorded")

// Repository reads and appends store events through GORM.
type Repository struct {
	base repo.Base
}

var (
	_ Source   = (*Repository)(nil)
	_ Appender = (*Repository)(nil)
)

// NewRepository binds a repository to the provided connection.
func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{base: repo.NewBase(conn)}
}

// Query returns owner-scoped events matching q.
func (r *Repository) Query(ctx context.Context, owner string, q Query) ([]Event, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	ownerID, err := parseOwner(owner)
	if err != nil {
		return nil, err
	}

	tx := r.scoped(ctx, ownerID, q.Filter)
	if q.Order == OrderReverse {
		tx = tx.Order("occurred_at DESC").Order("id DESC")
	} else {
		tx = tx.Order("occurred_at ASC").Order("id ASC")
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var rows []models.StoreEvent
	if err := tx.Find(&rows).Error; err != nil {
		return nil, unavailable(err, "query store events")
	}

	out := make([]Event, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromModel(row))
	}
	return out, nil
}

// Count returns the exact number of owner-scoped events matching f.
func (r *Repository) Count(ctx context.Context, owner string, f Filter) (int64, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	ownerID, err := parseOwner(owner)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := r.scoped(ctx, ownerID, f).Count(&count).Error; err != nil {
		return 0, unavailable(err, "count store events")
	}
	return count, nil
}

// Append stores a new event. Duplicate ids yield ErrDuplicateEvent.
func (r *Repository) Append(ctx context.Context, e Event) error {
	row, err := toModel(e)
	if err != nil {
		return err
	}
	if err := r.base.DB(ctx).Create(&row).Error; err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateEvent
		}
		return fmt.Errorf("insert store event: %w", err)
	}
	return nil
}

func (r *Repository) scoped(ctx context.Context, ownerID uuid.UUID, f Filter) *gorm.DB {
	conn := r.base.DB(ctx)
	tx := conn.Model(&models.StoreEvent{}).Where("store_id = ?", ownerID)

	if len(f.Types) > 0 {
		names := make([]string, 0, len(f.Types))
		for _, t := range f.Types {
			names = append(names, string(t))
		}
		tx = tx.Where("event_type IN ?", names)
	}
	if f.ConversationID != "" {
		tx = tx.Where("conversation_id = ?", f.ConversationID)
	}
	if f.Window != nil {
		if !f.Window.From.IsZero() {
			tx = tx.Where("occurred_at >= ?", f.Window.From.UTC())
		}
		if !f.Window.To.IsZero() {
			tx = tx.Where("occurred_at < ?", f.Window.To.UTC())
		}
	}

	sqlite := r.base.Dialect() == "sqlite"
	if f.Flag != nil {
		if sqlite {
			tx = tx.Where("json_type(payload, ?) = ?", "$."+f.Flag.Key, strconv.FormatBool(f.Flag.Value))
		} else {
			tx = tx.Where("CASE WHEN jsonb_typeof(payload->?) = 'boolean' THEN (payload->>?)::boolean END = ?",
				f.Flag.Key, f.Flag.Key, f.Flag.Value)
		}
	}
	if f.Numeric != nil {
		op, _ := f.Numeric.Op.SQL()
		if sqlite {
			tx = tx.Where(sqliteNumericExpr+" "+op+" ?", sqliteNumericArgs(f.Numeric.Key, f.Numeric.Value)...)
		} else {
			tx = tx.Where(postgresNumericExpr+" "+op+" ?",
				f.Numeric.Key, f.Numeric.Key, f.Numeric.Key, NumericTextPattern, f.Numeric.Key, f.Numeric.Value)
		}
	}
	return tx
}

// Payload values that are neither JSON numbers nor strings holding one
// evaluate to NULL, so every comparison excludes them.
const (
	postgresNumericExpr = `(CASE jsonb_typeof(payload->?)
		WHEN 'number' THEN (payload->>?)::numeric
		WHEN 'string' THEN CASE WHEN btrim(payload->>?) ~ ? THEN btrim(payload->>?)::numeric END
	END)`
	sqliteNumericExpr = `(CASE json_type(payload, ?)
		WHEN 'integer' THEN json_extract(payload, ?)
		WHEN 'real' THEN json_extract(payload, ?)
		WHEN 'text' THEN CASE WHEN json_valid(trim(json_extract(payload, ?)))
			THEN CASE WHEN json_type(trim(json_extract(payload, ?))) IN ('integer', 'real')
				THEN CAST(trim(json_extract(payload, ?)) AS REAL) END END
	END)`
)

func sqliteNumericArgs(key string, value float64) []any {
	path := "$." + key
	return []any{path, path, path, path, path, path, value}
}

func parseOwner(owner string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(owner))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid store id")
	}
	return id, nil
}

func unavailable(err error, msg string) error {
	return pkgerrors.Unavailable(err, msg).WithDetails(map[string]any{
		"missing_relation": db.IsMissingRelation(err),
	})
}

func fromModel(row models.StoreEvent) Event {
	e := Event{
		ID:        row.ID.String(),
		Type:      row.EventType,
		Timestamp: row.OccurredAt.UTC(),
		Owner:     row.StoreID.String(),
		Payload:   map[string]any(row.Payload),
	}
	if row.ConversationID != nil {
		e.ConversationID = *row.ConversationID
	}
	if row.Role != nil {
		e.Role = *row.Role
	}
	return e
}

func toModel(e Event) (models.StoreEvent, error) {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		return models.StoreEvent{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event id")
	}
	ownerID, err := parseOwner(e.Owner)
	if err != nil {
		return models.StoreEvent{}, err
	}
	if e.Type.IsZero() {
		return models.StoreEvent{}, pkgerrors.New(pkgerrors.CodeValidation, "event type required")
	}
	if e.Timestamp.IsZero() {
		return models.StoreEvent{}, pkgerrors.New(pkgerrors.CodeValidation, "event timestamp required")
	}

	row := models.StoreEvent{
		ID:         id,
		StoreID:    ownerID,
		EventType:  e.Type,
		OccurredAt: e.Timestamp.UTC(),
		Payload:    types.Payload(e.Payload),
	}
	if e.ConversationID != "" {
		conv := e.ConversationID
		row.ConversationID = &conv
	}
	if e.Role != "" {
		if !e.Role.IsValid() {
			return models.StoreEvent{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid conversation role")
		}
		role := e.Role
		row.Role = &role
	}
	return row, nil
}
