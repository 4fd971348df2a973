package entity

import (
	"fmt"
	"strings"

	apperrors "github.com/yourusername/proptrack-api/internal/pkg/errors"
)

// OwnerKind - вид владельца записи
type OwnerKind string

const (
	OwnerTemporary OwnerKind = "temporary"
	OwnerPermanent OwnerKind = "permanent"
)

// Owner - единственная ссылка на владельца записи.
// Встраивается во все записи, принадлежащие личности.
type Owner struct {
	OwnerID   string    `gorm:"size:64;not null;index:idx_owner" json:"owner_id"`
	OwnerKind OwnerKind `gorm:"size:16;not null;index:idx_owner" json:"owner_kind"`
}

// Validate проверяет, что ссылка на владельца задана ровно одна и корректного вида
func (o Owner) Validate() error {
	if strings.TrimSpace(o.OwnerID) == "" {
		return fmt.Errorf("%w: owner_id is required", apperrors.ErrValidation)
	}
	switch o.OwnerKind {
	case OwnerTemporary:
		if !strings.HasPrefix(o.OwnerID, "temp_") {
			return fmt.Errorf("%w: temporary owner id must start with temp_", apperrors.ErrValidation)
		}
	case OwnerPermanent:
		if strings.HasPrefix(o.OwnerID, "temp_") {
			return fmt.Errorf("%w: permanent owner id cannot be temporary", apperrors.ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown owner_kind %q", apperrors.ErrValidation, o.OwnerKind)
	}
	return nil
}
