package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Настройки сессии, по которым работают политики RLS таблиц с владельцем
const (
	settingActiveIdentity = "app.active_identity"
	settingMergeTarget    = "app.merge_target"
)

// WithIdentity выполняет fn в транзакции от имени личности ownerID.
// Политики RLS пропускают только строки этой личности.
func WithIdentity(ctx context.Context, db *gorm.DB, ownerID string, fn func(tx *gorm.DB) error) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := setLocal(tx, settingActiveIdentity, ownerID); err != nil {
			return err
		}
		return fn(tx)
	})
}

// withMergeScope дополнительно разрешает запись строк с владельцем targetID
func withMergeScope(ctx context.Context, db *gorm.DB, sourceID, targetID string, fn func(tx *gorm.DB) error) error {
	return WithIdentity(ctx, db, sourceID, func(tx *gorm.DB) error {
		if err := setLocal(tx, settingMergeTarget, targetID); err != nil {
			return err
		}
		return fn(tx)
	})
}

func setLocal(tx *gorm.DB, name, value string) error {
	if err := tx.Exec("SELECT set_config(?, ?, true)", name, value).Error; err != nil {
		return fmt.Errorf("failed to set %s: %w", name, err)
	}
	return nil
}
