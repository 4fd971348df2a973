package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/yourusername/proptrack-api/internal/domain/entity"
)

// PinRepo реализует repository.PinRepository
type PinRepo struct {
	records ownedRecords[entity.Pin]
}

// NewPinRepo создает новый репозиторий отметок
func NewPinRepo(db *gorm.DB) *PinRepo {
	return &PinRepo{records: ownedRecords[entity.Pin]{db: db, table: entity.Pin{}.TableName(), recordType: "pins"}}
}

// RecordType возвращает имя типа записей для отчетов о слиянии
func (r *PinRepo) RecordType() string {
	return r.records.recordType
}

// Create сохраняет отметку
func (r *PinRepo) Create(ctx context.Context, pin *entity.Pin) error {
	return r.records.create(ctx, pin.Owner, pin)
}

// ListByOwner возвращает отметки владельца, новые первыми
func (r *PinRepo) ListByOwner(ctx context.Context, owner entity.Owner) ([]entity.Pin, error) {
	return r.records.list(ctx, owner)
}

// CountByOwner возвращает количество отметок владельца
func (r *PinRepo) CountByOwner(ctx context.Context, owner entity.Owner) (int64, error) {
	return r.records.count(ctx, owner)
}

// Delete удаляет отметку владельца
func (r *PinRepo) Delete(ctx context.Context, owner entity.Owner, id uint) error {
	return r.records.delete(ctx, owner, id)
}

// ReassignOwner переносит отметки временной личности на постоянную
func (r *PinRepo) ReassignOwner(ctx context.Context, temporaryID, permanentID string) (int64, error) {
	return r.records.reassign(ctx, temporaryID, permanentID)
}
