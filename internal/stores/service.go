package stores

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storeconsole/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storeconsole/pkg/errors"
)

type storeRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Store, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Service exposes store lookups used by the console.
type Service interface {
	GetByID(ctx context.Context, id uuid.UUID) (*StoreDTO, error)
	// Resolve confirms owner names a known store.
	Resolve(ctx context.Context, owner string) error
}

type service struct {
	repo storeRepository
}

// NewService builds a store service with the provided repository.
func NewService(repo storeRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("store repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*StoreDTO, error) {
	store, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load store")
	}
	return FromModel(store), nil
}

func (s *service) Resolve(ctx context.Context, owner string) error {
	id, err := uuid.Parse(strings.TrimSpace(owner))
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
	}
	ok, err := s.repo.Exists(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check store")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
	}
	return nil
}
