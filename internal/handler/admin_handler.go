package handler

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/yourusername/proptrack-api/internal/domain/entity"
	"github.com/yourusername/proptrack-api/internal/pkg/logger"
	"github.com/yourusername/proptrack-api/internal/service"
)

// AdminHandler - административные выгрузки
type AdminHandler struct {
	audit *service.MergeAuditService
	log   *zap.SugaredLogger
}

// NewAdminHandler создает административный обработчик
func NewAdminHandler(audit *service.MergeAuditService) *AdminHandler {
	return &AdminHandler{audit: audit, log: logger.For("AdminHandler")}
}

// ExportMerges выгружает журнал слияний в Excel.
// Параметры: since (RFC3339 или YYYY-MM-DD, по умолчанию 30 дней назад), limit.
func (h *AdminHandler) ExportMerges(c *gin.Context) {
	since := time.Now().AddDate(0, 0, -30)
	if raw := c.Query("since"); raw != "" {
		parsed, err := parseSince(raw)
		if err != nil {
			badRequest(c, err)
			return
		}
		since = parsed
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &limit); err != nil {
			badRequest(c, fmt.Errorf("invalid limit: %w", err))
			return
		}
	}

	records, err := h.audit.List(c.Request.Context(), since, limit)
	if err != nil {
		handleError(c, err)
		return
	}

	f, err := buildMergeWorkbook(records)
	if err != nil {
		h.log.Errorw("Ошибка создания Excel файла", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file", "error_type": "internal_server_error"})
		return
	}
	defer f.Close()

	filename := fmt.Sprintf("merges_%s", time.Now().Format("20060102_150405"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))
	if err := f.Write(c.Writer); err != nil {
		h.log.Errorw("Ошибка записи Excel в response", "error", err)
	}
}

func parseSince(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

// buildMergeWorkbook строит книгу с одной строкой на слияние
func buildMergeWorkbook(records []entity.MergeRecord) (*excelize.File, error) {
	f := excelize.NewFile()
	sheetName := "Слияния"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		f.Close()
		return nil, err
	}

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		f.Close()
		return nil, err
	}

	headers := []interface{}{"Дата", "Временный ID", "Постоянный ID", "Успешно", "Перенесено", "Ошибки"}
	if err := sw.SetRow("A1", headers); err != nil {
		f.Close()
		return nil, err
	}

	for i, r := range records {
		success := "Нет"
		if r.Success {
			success = "Да"
		}
		row := []interface{}{
			r.CreatedAt.UTC().Format(time.RFC3339),
			sanitizeForExcel(r.TemporaryID),
			sanitizeForExcel(r.PermanentID),
			success,
			sanitizeForExcel(formatCounts(r.MergedCounts)),
			sanitizeForExcel(strings.Join(r.Failures, ", ")),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := sw.SetRow(cell, row); err != nil {
			f.Close()
			return nil, err
		}
	}

	if err := sw.Flush(); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// formatCounts выводит счетчики в стабильном порядке: "collections=1, pins=3"
func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, ", ")
}

// sanitizeForExcel экранирует данные для защиты от formula injection в Excel
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}
