package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yourusername/proptrack-api/internal/domain/entity"
	apperrors "github.com/yourusername/proptrack-api/internal/pkg/errors"
)

// ownedRecords - общие операции над таблицей записей с владельцем.
// Все запросы выполняются внутри WithIdentity.
type ownedRecords[T any] struct {
	db         *gorm.DB
	table      string
	recordType string
}

func (r ownedRecords[T]) create(ctx context.Context, owner entity.Owner, rec *T) error {
	return WithIdentity(ctx, r.db, owner.OwnerID, func(tx *gorm.DB) error {
		return mapError(tx.Create(rec).Error)
	})
}

func (r ownedRecords[T]) list(ctx context.Context, owner entity.Owner) ([]T, error) {
	var items []T
	err := WithIdentity(ctx, r.db, owner.OwnerID, func(tx *gorm.DB) error {
		return tx.Where("owner_kind = ? AND owner_id = ?", owner.OwnerKind, owner.OwnerID).
			Order("created_at DESC").
			Find(&items).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", r.recordType, err)
	}
	return items, nil
}

func (r ownedRecords[T]) count(ctx context.Context, owner entity.Owner) (int64, error) {
	var n int64
	err := WithIdentity(ctx, r.db, owner.OwnerID, func(tx *gorm.DB) error {
		return tx.Table(r.table).
			Where("owner_kind = ? AND owner_id = ?", owner.OwnerKind, owner.OwnerID).
			Count(&n).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", r.recordType, err)
	}
	return n, nil
}

func (r ownedRecords[T]) delete(ctx context.Context, owner entity.Owner, id uint) error {
	return WithIdentity(ctx, r.db, owner.OwnerID, func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND owner_kind = ? AND owner_id = ?", id, owner.OwnerKind, owner.OwnerID).Delete(new(T))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.ErrNotFound
		}
		return nil
	})
}

// reassign переносит все записи временной личности на постоянную одним UPDATE.
// Уже перенесенные записи не совпадают с условием, поэтому повтор безопасен.
func (r ownedRecords[T]) reassign(ctx context.Context, temporaryID, permanentID string) (int64, error) {
	var affected int64
	err := withMergeScope(ctx, r.db, temporaryID, permanentID, func(tx *gorm.DB) error {
		res := tx.Table(r.table).
			Where("owner_kind = ? AND owner_id = ?", entity.OwnerTemporary, temporaryID).
			Updates(map[string]interface{}{
				"owner_id":   permanentID,
				"owner_kind": entity.OwnerPermanent,
				"updated_at": time.Now(),
			})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to reassign %s: %w", r.recordType, err)
	}
	return affected, nil
}
