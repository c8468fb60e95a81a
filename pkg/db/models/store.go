package models

import (
	"time"

	"github.com/google/uuid"
)

// Store is the owner scope every event and metric is partitioned by.
type Store struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Store) TableName() string {
	return "stores"
}
