package stores

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storeconsole/pkg/db/models"
)

// StoreDTO is the API shape of a store.
type StoreDTO struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateStoreDTO captures the fields required to register a store.
type CreateStoreDTO struct {
	ID   uuid.UUID
	Name string
}

// ToModel converts the DTO into a persistence model.
func (d CreateStoreDTO) ToModel() *models.Store {
	id := d.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &models.Store{
		ID:   id,
		Name: strings.TrimSpace(d.Name),
	}
}

// FromModel maps a store model to its DTO.
func FromModel(m *models.Store) *StoreDTO {
	if m == nil {
		return nil
	}
	return &StoreDTO{
		ID:        m.ID,
		Name:      m.Name,
		CreatedAt: m.CreatedAt,
	}
}
