package entity

import "time"

// TemporaryUser - серверная регистрация временной личности
type TemporaryUser struct {
	ID           string    `gorm:"primaryKey;size:64" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `gorm:"not null" json:"last_active_at"`
}

// TableName определяет имя таблицы для GORM
func (TemporaryUser) TableName() string {
	return "temporary_users"
}
