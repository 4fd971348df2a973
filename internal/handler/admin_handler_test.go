package handler

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/yourusername/proptrack-api/internal/domain/entity"
)

func TestBuildMergeWorkbook(t *testing.T) {
	// Arrange
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	records := []entity.MergeRecord{
		{
			TemporaryID:  "temp_0b6f2c1e-7a43-4d59-9a8e-3c2f1d7e5b10",
			PermanentID:  "42",
			Success:      true,
			MergedCounts: map[string]int{"pins": 3, "collections": 1},
			Failures:     []string{},
			CreatedAt:    created,
		},
		{
			TemporaryID:  "temp_5d9e8a7b-1c2d-4e3f-8a9b-0c1d2e3f4a5b",
			PermanentID:  "=HYPERLINK(\"x\")",
			Success:      false,
			MergedCounts: map[string]int{"pins": 0},
			Failures:     []string{"collections"},
			CreatedAt:    created,
		},
	}

	// Act
	f, err := buildMergeWorkbook(records)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())

	// Assert
	book, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer book.Close()

	rows, err := book.GetRows("Слияния")
	require.NoError(t, err)
	require.Len(t, rows, 3, "Заголовок и две строки")
	assert.Equal(t, []string{"Дата", "Временный ID", "Постоянный ID", "Успешно", "Перенесено", "Ошибки"}, rows[0])
	assert.Equal(t, "2024-05-01T12:00:00Z", rows[1][0])
	assert.Equal(t, "Да", rows[1][3])
	assert.Equal(t, "collections=1, pins=3", rows[1][4])
	assert.Equal(t, "'=HYPERLINK(\"x\")", rows[2][2], "Формула должна быть экранирована")
	assert.Equal(t, "Нет", rows[2][3])
	assert.Equal(t, "collections", rows[2][5])
}

func TestSanitizeForExcel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"plain", "plain"},
		{"=SUM(A1)", "'=SUM(A1)"},
		{"+1", "'+1"},
		{"-1", "'-1"},
		{"@cmd", "'@cmd"},
		{"\tx", "'\tx"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeForExcel(tt.in), "Вход %q", tt.in)
	}
}

func TestFormatCounts(t *testing.T) {
	assert.Equal(t, "", formatCounts(nil))
	assert.Equal(t, "a=1, b=2", formatCounts(map[string]int{"b": 2, "a": 1}))
}

func TestParseSince(t *testing.T) {
	got, err := parseSince("2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), got)

	got, err = parseSince("2024-05-01T10:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 10, got.Hour())

	_, err = parseSince("вчера")
	assert.Error(t, err)
}
