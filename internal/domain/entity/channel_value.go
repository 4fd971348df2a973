package entity

import "time"

// ChannelValue - значение резервного канала хранения личности
type ChannelValue struct {
	Key       string    `gorm:"primaryKey;size:200"`
	Value     string    `gorm:"size:200;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName определяет имя таблицы для GORM
func (ChannelValue) TableName() string {
	return "identity_channel_values"
}
