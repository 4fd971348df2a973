package entity

import "time"

// MergeRecord фиксирует завершенное слияние временной личности.
// Одна запись на временный идентификатор, никогда не удаляется.
type MergeRecord struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	TemporaryID  string         `gorm:"size:64;not null;uniqueIndex" json:"temporary_id"`
	PermanentID  string         `gorm:"size:64;not null;index" json:"permanent_id"`
	Success      bool           `gorm:"not null" json:"success"`
	MergedCounts map[string]int `gorm:"type:jsonb;serializer:json;not null" json:"merged_counts"`
	Failures     []string       `gorm:"type:jsonb;serializer:json;not null" json:"failures"`
	CreatedAt    time.Time      `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (MergeRecord) TableName() string {
	return "merge_records"
}
