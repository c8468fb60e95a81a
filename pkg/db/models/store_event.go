package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storeconsole/pkg/enums"
	"github.com/angelmondragon/storeconsole/pkg/types"
)

// StoreEvent is an immutable, append-only record written by a console write path
// (product update, order patch, message send, ...). The metrics engine only reads it.
type StoreEvent struct {
	ID             uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	StoreID        uuid.UUID               `gorm:"column:store_id;type:uuid;not null;index:idx_store_events_store_type_time,priority:1"`
	EventType      enums.EventType         `gorm:"column:event_type;not null;index:idx_store_events_store_type_time,priority:2"`
	OccurredAt     time.Time               `gorm:"column:occurred_at;not null;index:idx_store_events_store_type_time,priority:3"`
	ConversationID *string                 `gorm:"column:conversation_id"`
	Role           *enums.ConversationRole `gorm:"column:role"`
	Payload        types.Payload           `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time               `gorm:"column:created_at;autoCreateTime"`
}

func (StoreEvent) TableName() string {
	return "store_events"
}
