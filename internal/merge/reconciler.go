// Package merge переносит данные временной личности на постоянную после входа.
package merge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/proptrack-api/internal/analytics"
	"github.com/yourusername/proptrack-api/internal/domain/entity"
	"github.com/yourusername/proptrack-api/internal/domain/repository"
	"github.com/yourusername/proptrack-api/internal/identity"
	apperrors "github.com/yourusername/proptrack-api/internal/pkg/errors"
	"github.com/yourusername/proptrack-api/internal/pkg/logger"
)

// DefaultTypeTimeout ограничивает переназначение одного типа записей
const DefaultTypeTimeout = 10 * time.Second

// Outcome - результат слияния
type Outcome struct {
	Success       bool           `json:"success"`
	AlreadyMerged bool           `json:"already_merged"`
	MergedCounts  map[string]int `json:"merged_counts"`
	Failures      []string       `json:"failures"`
}

// Merger выполняет слияние временной личности с постоянной
type Merger interface {
	Merge(ctx context.Context, temporaryID, permanentID string) (*Outcome, error)
}

// Reconciler переназначает владельца всех записей временной личности.
// Типы записей обрабатываются независимо: сбой одного не блокирует остальные.
type Reconciler struct {
	records     repository.MergeRecordRepository
	reassigners []repository.Reassigner
	tracker     analytics.EventTracker
	typeTimeout time.Duration
	log         *zap.SugaredLogger
}

// NewReconciler создает Reconciler для указанных типов записей
func NewReconciler(records repository.MergeRecordRepository, tracker analytics.EventTracker, typeTimeout time.Duration, reassigners ...repository.Reassigner) *Reconciler {
	if typeTimeout <= 0 {
		typeTimeout = DefaultTypeTimeout
	}
	if tracker == nil {
		tracker = analytics.NopTracker{}
	}
	return &Reconciler{
		records:     records,
		reassigners: reassigners,
		tracker:     tracker,
		typeTimeout: typeTimeout,
		log:         logger.For("MergeReconciler"),
	}
}

type typeResult struct {
	recordType string
	count      int64
	err        error
}

// Merge переносит записи temporaryID на permanentID.
// Ошибка возвращается только для неверных аргументов; сбои по типам попадают в Outcome.Failures.
func (r *Reconciler) Merge(ctx context.Context, temporaryID, permanentID string) (*Outcome, error) {
	if !identity.IsValidTemporaryID(temporaryID) {
		return nil, fmt.Errorf("%w: temporary id %q", apperrors.ErrInvalidIdentity, temporaryID)
	}
	if permanentID == "" || identity.IsValidTemporaryID(permanentID) {
		return nil, fmt.Errorf("%w: permanent id %q", apperrors.ErrInvalidIdentity, permanentID)
	}

	existing, err := r.records.GetByTemporaryID(ctx, temporaryID)
	switch {
	case err == nil:
		r.log.Infow("Слияние уже выполнено ранее", "temp_user_id", temporaryID, "permanent_id", existing.PermanentID)
		return &Outcome{Success: true, AlreadyMerged: true, MergedCounts: map[string]int{}}, nil
	case errors.Is(err, apperrors.ErrNotFound):
	default:
		// Переназначение идемпотентно, поэтому продолжаем без проверки
		r.log.Warnw("Не удалось проверить запись о слиянии, продолжаем", "temp_user_id", temporaryID, "error", err)
	}

	start := time.Now()
	results := make([]typeResult, len(r.reassigners))
	var wg sync.WaitGroup
	for i, re := range r.reassigners {
		wg.Add(1)
		go func(i int, re repository.Reassigner) {
			defer wg.Done()
			results[i] = r.reassign(ctx, re, temporaryID, permanentID)
		}(i, re)
	}
	wg.Wait()

	outcome := &Outcome{MergedCounts: make(map[string]int, len(results)), Failures: []string{}}
	for _, res := range results {
		if res.err != nil {
			outcome.Failures = append(outcome.Failures, res.recordType)
			r.log.Errorw("Не удалось переназначить записи", "record_type", res.recordType, "temp_user_id", temporaryID, "error", res.err)
			continue
		}
		outcome.MergedCounts[res.recordType] = int(res.count)
	}

	record := &entity.MergeRecord{
		TemporaryID:  temporaryID,
		PermanentID:  permanentID,
		Success:      len(outcome.Failures) == 0,
		MergedCounts: outcome.MergedCounts,
		Failures:     outcome.Failures,
	}
	created, recordErr := r.records.CreateIfAbsent(ctx, record)
	switch {
	case recordErr != nil:
		r.log.Errorw("Не удалось сохранить запись о слиянии", "temp_user_id", temporaryID, "error", recordErr)
	case !created:
		r.log.Infow("Запись о слиянии уже создана параллельным слиянием", "temp_user_id", temporaryID)
	}

	outcome.Success = len(outcome.Failures) == 0 && recordErr == nil

	r.log.Infow("Слияние завершено",
		"temp_user_id", temporaryID,
		"permanent_id", permanentID,
		"merged_counts", outcome.MergedCounts,
		"failures", outcome.Failures,
		"duration", time.Since(start),
	)
	r.tracker.Track(ctx, analytics.EventTempDataMerged, analytics.Metadata{
		"temp_user_id":  temporaryID,
		"permanent_id":  permanentID,
		"success":       outcome.Success,
		"merged_counts": outcome.MergedCounts,
		"failures":      outcome.Failures,
	})
	return outcome, nil
}

// reassign выполняет переназначение одного типа с таймаутом.
// Если исполнитель не уважает контекст, результат после таймаута отбрасывается.
func (r *Reconciler) reassign(ctx context.Context, re repository.Reassigner, temporaryID, permanentID string) typeResult {
	recordType := re.RecordType()
	tctx, cancel := context.WithTimeout(ctx, r.typeTimeout)
	defer cancel()

	done := make(chan typeResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- typeResult{recordType: recordType, err: fmt.Errorf("panic: %v", p)}
			}
		}()
		n, err := re.ReassignOwner(tctx, temporaryID, permanentID)
		done <- typeResult{recordType: recordType, count: n, err: err}
	}()

	select {
	case res := <-done:
		return res
	case <-tctx.Done():
		return typeResult{recordType: recordType, err: fmt.Errorf("reassign %s: %w", recordType, tctx.Err())}
	}
}
