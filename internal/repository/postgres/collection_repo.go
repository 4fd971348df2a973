package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/yourusername/proptrack-api/internal/domain/entity"
)

// CollectionRepo реализует repository.CollectionRepository
type CollectionRepo struct {
	records ownedRecords[entity.Collection]
}

// NewCollectionRepo создает новый репозиторий подборок
func NewCollectionRepo(db *gorm.DB) *CollectionRepo {
	return &CollectionRepo{records: ownedRecords[entity.Collection]{db: db, table: entity.Collection{}.TableName(), recordType: "collections"}}
}

// RecordType возвращает имя типа записей для отчетов о слиянии
func (r *CollectionRepo) RecordType() string {
	return r.records.recordType
}

// Create сохраняет подборку
func (r *CollectionRepo) Create(ctx context.Context, collection *entity.Collection) error {
	return r.records.create(ctx, collection.Owner, collection)
}

// ListByOwner возвращает подборки владельца, новые первыми
func (r *CollectionRepo) ListByOwner(ctx context.Context, owner entity.Owner) ([]entity.Collection, error) {
	return r.records.list(ctx, owner)
}

// CountByOwner возвращает количество подборок владельца
func (r *CollectionRepo) CountByOwner(ctx context.Context, owner entity.Owner) (int64, error) {
	return r.records.count(ctx, owner)
}

// Delete удаляет подборку владельца
func (r *CollectionRepo) Delete(ctx context.Context, owner entity.Owner, id uint) error {
	return r.records.delete(ctx, owner, id)
}

// ReassignOwner переносит подборки временной личности на постоянную
func (r *CollectionRepo) ReassignOwner(ctx context.Context, temporaryID, permanentID string) (int64, error) {
	return r.records.reassign(ctx, temporaryID, permanentID)
}
