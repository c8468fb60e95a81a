package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base provides a shared foundation for read repositories over the event store.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base repository backed by the provided GORM connection.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Dialect names the SQL dialect behind the connection ("postgres", "sqlite").
// Repositories branch on it for JSON payload predicates.
func (b Base) Dialect() string {
	if b.db == nil || b.db.Dialector == nil {
		return ""
	}
	return b.db.Dialector.Name()
}
