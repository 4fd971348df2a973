package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yourusername/proptrack-api/internal/domain/entity"
)

// MergeRecordRepo реализует repository.MergeRecordRepository
type MergeRecordRepo struct {
	db *gorm.DB
}

// NewMergeRecordRepo создает новый репозиторий записей о слиянии
func NewMergeRecordRepo(db *gorm.DB) *MergeRecordRepo {
	return &MergeRecordRepo{db: db}
}

// GetByTemporaryID возвращает запись о слиянии временной личности
func (r *MergeRecordRepo) GetByTemporaryID(ctx context.Context, temporaryID string) (*entity.MergeRecord, error) {
	var rec entity.MergeRecord
	if err := r.db.WithContext(ctx).Where("temporary_id = ?", temporaryID).First(&rec).Error; err != nil {
		return nil, mapError(err)
	}
	return &rec, nil
}

// CreateIfAbsent вставляет запись; конфликт по temporary_id не считается ошибкой
func (r *MergeRecordRepo) CreateIfAbsent(ctx context.Context, rec *entity.MergeRecord) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "temporary_id"}}, DoNothing: true}).
		Create(rec)
	if res.Error != nil {
		return false, mapError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// List возвращает записи начиная с since, новые первыми
func (r *MergeRecordRepo) List(ctx context.Context, since time.Time, limit int) ([]entity.MergeRecord, error) {
	var records []entity.MergeRecord
	q := r.db.WithContext(ctx).Where("created_at >= ?", since).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
