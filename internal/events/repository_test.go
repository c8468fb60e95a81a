package events

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storeconsole/pkg/db/models"
	"github.com/angelmondragon/storeconsole/pkg/enums"
	pkgerrors "github.com/angelmondragon/storeconsole/pkg/errors"
)

var baseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.StoreEvent{}))
	return NewRepository(conn)
}

func appendEvent(t *testing.T, repo *Repository, owner string, typ enums.EventType, at time.Time, payload map[string]any) Event {
	t.Helper()
	e := Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Timestamp: at,
		Owner:     owner,
		Payload:   payload,
	}
	require.NoError(t, repo.Append(context.Background(), e))
	return e
}

func TestRepositoryCountScopesByOwnerAndType(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	owner := uuid.NewString()
	other := uuid.NewString()

	appendEvent(t, repo, owner, enums.EventOrderCreated, baseTime, nil)
	appendEvent(t, repo, owner, enums.EventOrderCreated, baseTime.Add(time.Minute), nil)
	appendEvent(t, repo, owner, enums.EventCreateCoupon, baseTime, nil)
	appendEvent(t, repo, other, enums.EventOrderCreated, baseTime, nil)

	count, err := repo.Count(ctx, owner, Filter{Types: []enums.EventType{enums.EventOrderCreated}})
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	count, err = repo.Count(ctx, owner, Filter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	count, err = repo.Count(ctx, uuid.NewString(), Filter{})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRepositoryCountWindowIsHalfOpen(t *testing.T) {
	repo := newTestRepo(t)
	owner := uuid.NewString()

	appendEvent(t, repo, owner, enums.EventCreateReview, baseTime, nil)
	appendEvent(t, repo, owner, enums.EventCreateReview, baseTime.Add(time.Hour), nil)
	appendEvent(t, repo, owner, enums.EventCreateReview, baseTime.Add(2*time.Hour), nil)

	count, err := repo.Count(context.Background(), owner, Filter{
		Window: &Window{From: baseTime, To: baseTime.Add(2 * time.Hour)},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestRepositoryCountPayloadPredicates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	owner := uuid.NewString()

	appendEvent(t, repo, owner, enums.EventCreateCoupon, baseTime, map[string]any{"active": true})
	appendEvent(t, repo, owner, enums.EventCreateCoupon, baseTime, map[string]any{"active": false})
	appendEvent(t, repo, owner, enums.EventCreateCoupon, baseTime, nil)
	appendEvent(t, repo, owner, enums.EventCreatePromotion, baseTime, map[string]any{"discount_percent": 35})
	appendEvent(t, repo, owner, enums.EventCreatePromotion, baseTime, map[string]any{"discount_percent": 10})
	appendEvent(t, repo, owner, enums.EventCreatePromotion, baseTime, map[string]any{"discount_percent": 20})

	active, err := repo.Count(ctx, owner, Filter{
		Types: []enums.EventType{enums.EventCreateCoupon},
		Flag:  &FlagFilter{Key: "active", Value: true},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, active)

	high, err := repo.Count(ctx, owner, Filter{
		Types:   []enums.EventType{enums.EventCreatePromotion},
		Numeric: &NumericFilter{Key: "discount_percent", Op: OpGte, Value: 20},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, high)
}

func TestRepositoryPayloadPredicatesSkipMalformedValues(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	owner := uuid.NewString()

	payloads := []map[string]any{
		{"discount_percent": 5, "active": true},
		{"discount_percent": "8", "active": "true"},
		{"discount_percent": "n/a", "active": 1},
		{"discount_percent": "", "active": "yes"},
		{"discount_percent": true, "active": false},
		{"discount_percent": nil},
		nil,
	}
	stored := make([]Event, 0, len(payloads))
	for _, p := range payloads {
		stored = append(stored, appendEvent(t, repo, owner, enums.EventCreatePromotion, baseTime, p))
	}

	filters := map[string]Filter{
		"numeric lt":  {Numeric: &NumericFilter{Key: "discount_percent", Op: OpLt, Value: 10}},
		"numeric eq0": {Numeric: &NumericFilter{Key: "discount_percent", Op: OpEq, Value: 0}},
		"numeric ne":  {Numeric: &NumericFilter{Key: "discount_percent", Op: OpNe, Value: 5}},
		"flag true":   {Flag: &FlagFilter{Key: "active", Value: true}},
		"flag false":  {Flag: &FlagFilter{Key: "active", Value: false}},
	}
	want := map[string]int64{"numeric lt": 2, "numeric eq0": 0, "numeric ne": 1, "flag true": 1, "flag false": 1}

	for name, f := range filters {
		t.Run(name, func(t *testing.T) {
			count, err := repo.Count(ctx, owner, f)
			require.NoError(t, err)
			assert.Equal(t, want[name], count)

			var matched int64
			for _, e := range stored {
				if f.Matches(e) {
					matched++
				}
			}
			assert.Equal(t, matched, count)

			got, err := repo.Query(ctx, owner, Query{Filter: f})
			require.NoError(t, err)
			assert.Len(t, got, int(count))
		})
	}
}

func TestRepositoryQueryOrderAndLimit(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	owner := uuid.NewString()

	first := appendEvent(t, repo, owner, enums.EventSendMessage, baseTime, nil)
	second := appendEvent(t, repo, owner, enums.EventSendMessage, baseTime.Add(time.Minute), nil)
	third := appendEvent(t, repo, owner, enums.EventSendMessage, baseTime.Add(2*time.Minute), nil)

	got, err := repo.Query(ctx, owner, Query{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{first.ID, second.ID, third.ID}, []string{got[0].ID, got[1].ID, got[2].ID})

	got, err = repo.Query(ctx, owner, Query{Order: OrderReverse, Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, third.ID, got[0].ID)
	assert.Equal(t, second.ID, got[1].ID)
	assert.True(t, got[0].Timestamp.Equal(third.Timestamp))
	assert.Equal(t, owner, got[0].Owner)
}

func TestRepositoryRoundTripsConversationFields(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	owner := uuid.NewString()

	in := Event{
		ID:             uuid.NewString(),
		Type:           enums.EventSendMessage,
		Timestamp:      baseTime,
		Owner:          owner,
		ConversationID: "conv-1",
		Role:           enums.RoleInitiator,
		Payload:        map[string]any{"body": "hello"},
	}
	require.NoError(t, repo.Append(ctx, in))

	got, err := repo.Query(ctx, owner, Query{Filter: Filter{ConversationID: "conv-1"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "conv-1", got[0].ConversationID)
	assert.Equal(t, enums.RoleInitiator, got[0].Role)
	body, ok := got[0].String("body")
	assert.True(t, ok)
	assert.Equal(t, "hello", body)
}

func TestRepositoryAppendDuplicate(t *testing.T) {
	repo := newTestRepo(t)
	owner := uuid.NewString()
	e := appendEvent(t, repo, owner, enums.EventOrderCreated, baseTime, nil)

	err := repo.Append(context.Background(), e)
	assert.ErrorIs(t, err, ErrDuplicateEvent)
}

func TestRepositoryAppendRejectsInvalidEvents(t *testing.T) {
	repo := newTestRepo(t)
	owner := uuid.NewString()

	cases := map[string]Event{
		"bad id":    {ID: "nope", Type: enums.EventOrderCreated, Timestamp: baseTime, Owner: owner},
		"bad owner": {ID: uuid.NewString(), Type: enums.EventOrderCreated, Timestamp: baseTime, Owner: "x"},
		"no type":   {ID: uuid.NewString(), Timestamp: baseTime, Owner: owner},
		"no time":   {ID: uuid.NewString(), Type: enums.EventOrderCreated, Owner: owner},
		"bad role":  {ID: uuid.NewString(), Type: enums.EventSendMessage, Timestamp: baseTime, Owner: owner, Role: "moderator"},
	}
	for name, e := range cases {
		t.Run(name, func(t *testing.T) {
			err := repo.Append(context.Background(), e)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
}

func TestRepositoryRejectsInvalidOwnerAndFilter(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Count(ctx, "not-a-uuid", Filter{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = repo.Query(ctx, uuid.NewString(), Query{Filter: Filter{Flag: &FlagFilter{Key: "x'); drop"}}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = repo.Count(ctx, uuid.NewString(), Filter{Window: &Window{From: baseTime, To: baseTime}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestRepositoryMapsStoreFailuresToDependency(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	repo := NewRepository(conn)

	_, err = repo.Count(context.Background(), uuid.NewString(), Filter{})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	_, err = repo.Query(context.Background(), uuid.NewString(), Query{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}
