package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/yourusername/proptrack-api/internal/domain/entity"
)

// ChannelRepo - резервный канал хранения временной личности.
// Значения хранятся бессрочно, ttl игнорируется.
type ChannelRepo struct {
	db *gorm.DB
}

// NewChannelRepo создает резервный канал
func NewChannelRepo(db *gorm.DB) *ChannelRepo {
	return &ChannelRepo{db: db}
}

// Read возвращает значение по ключу
func (r *ChannelRepo) Read(ctx context.Context, key string) (string, error) {
	var cv entity.ChannelValue
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&cv).Error; err != nil {
		return "", mapError(err)
	}
	return cv.Value, nil
}

// Write сохраняет значение, перезаписывая существующее
func (r *ChannelRepo) Write(ctx context.Context, key, value string, _ time.Duration) error {
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO identity_channel_values (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, key, value, time.Now()).Error
}

// Remove удаляет значение
func (r *ChannelRepo) Remove(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Where("key = ?", key).Delete(&entity.ChannelValue{}).Error
}
