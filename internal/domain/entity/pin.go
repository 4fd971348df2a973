package entity

import (
	"time"

	"gorm.io/gorm"
)

// Pin - объявление, отмеченное посетителем
type Pin struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Owner `gorm:"embedded"`

	ListingID string `gorm:"size:100;not null" json:"listing_id"`
	Note      string `gorm:"size:500;not null;default:''" json:"note"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Pin) TableName() string {
	return "pins"
}

// BeforeSave проверяет владельца перед записью
func (p *Pin) BeforeSave(tx *gorm.DB) error {
	return p.Owner.Validate()
}
