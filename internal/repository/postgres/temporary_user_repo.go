package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/yourusername/proptrack-api/internal/domain/entity"
	apperrors "github.com/yourusername/proptrack-api/internal/pkg/errors"
)

// TemporaryUserRepo реализует repository.TemporaryUserRepository
type TemporaryUserRepo struct {
	db  *gorm.DB
	now func() time.Time
}

// NewTemporaryUserRepo создает новый репозиторий временных пользователей
func NewTemporaryUserRepo(db *gorm.DB) *TemporaryUserRepo {
	return &TemporaryUserRepo{db: db, now: time.Now}
}

// Register идемпотентно создает запись о временном пользователе
func (r *TemporaryUserRepo) Register(ctx context.Context, tempID string) error {
	now := r.now()
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO temporary_users (id, created_at, last_active_at)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`, tempID, now, now).Error
}

// Touch обновляет время последней активности
func (r *TemporaryUserRepo) Touch(ctx context.Context, tempID string) error {
	res := r.db.WithContext(ctx).Model(&entity.TemporaryUser{}).
		Where("id = ?", tempID).
		Update("last_active_at", r.now())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
