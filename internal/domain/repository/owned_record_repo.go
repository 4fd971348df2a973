package repository

import (
	"context"

	"github.com/yourusername/proptrack-api/internal/domain/entity"
)

// Reassigner переназначает владельца всех записей одного типа одной массовой операцией.
// Повторный вызов безопасен: уже переназначенные записи не затрагиваются.
type Reassigner interface {
	RecordType() string
	ReassignOwner(ctx context.Context, temporaryID, permanentID string) (int64, error)
}

// PinRepository определяет методы для работы с отметками объявлений
type PinRepository interface {
	Reassigner
	Create(ctx context.Context, pin *entity.Pin) error
	ListByOwner(ctx context.Context, owner entity.Owner) ([]entity.Pin, error)
	CountByOwner(ctx context.Context, owner entity.Owner) (int64, error)
	Delete(ctx context.Context, owner entity.Owner, id uint) error
}

// CollectionRepository определяет методы для работы с подборками
type CollectionRepository interface {
	Reassigner
	Create(ctx context.Context, collection *entity.Collection) error
	ListByOwner(ctx context.Context, owner entity.Owner) ([]entity.Collection, error)
	CountByOwner(ctx context.Context, owner entity.Owner) (int64, error)
	Delete(ctx context.Context, owner entity.Owner, id uint) error
}
