package repository

import (
	"context"
	"time"

	"github.com/yourusername/proptrack-api/internal/domain/entity"
)

// MergeRecordRepository хранит записи о завершенных слияниях
type MergeRecordRepository interface {
	// GetByTemporaryID возвращает apperrors.ErrNotFound, если слияния не было
	GetByTemporaryID(ctx context.Context, temporaryID string) (*entity.MergeRecord, error)
	// CreateIfAbsent вставляет запись; при конфликте по temporary_id возвращает false без ошибки
	CreateIfAbsent(ctx context.Context, record *entity.MergeRecord) (bool, error)
	// List возвращает записи, созданные начиная с since, от новых к старым
	List(ctx context.Context, since time.Time, limit int) ([]entity.MergeRecord, error)
}
