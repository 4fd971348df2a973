package service

import (
	"context"
	"time"

	"github.com/yourusername/proptrack-api/internal/domain/entity"
	"github.com/yourusername/proptrack-api/internal/domain/repository"
)

const (
	defaultAuditLimit = 1000
	maxAuditLimit     = 10000
)

// MergeAuditService отдает журнал слияний для выгрузки администратором
type MergeAuditService struct {
	records repository.MergeRecordRepository
}

// NewMergeAuditService создает сервис журнала слияний
func NewMergeAuditService(records repository.MergeRecordRepository) *MergeAuditService {
	return &MergeAuditService{records: records}
}

// List возвращает записи не старше since. limit ограничивается сверху
func (s *MergeAuditService) List(ctx context.Context, since time.Time, limit int) ([]entity.MergeRecord, error) {
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}
	return s.records.List(ctx, since, limit)
}
