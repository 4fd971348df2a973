package entity

import (
	"time"

	"gorm.io/gorm"
)

// Collection - именованная подборка объявлений
type Collection struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Owner `gorm:"embedded"`

	Name        string `gorm:"size:100;not null" json:"name"`
	Description string `gorm:"size:500;not null;default:''" json:"description"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Collection) TableName() string {
	return "collections"
}

// BeforeSave проверяет владельца перед записью
func (c *Collection) BeforeSave(tx *gorm.DB) error {
	return c.Owner.Validate()
}
