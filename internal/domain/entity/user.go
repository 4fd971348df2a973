package entity

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yourusername/proptrack-api/internal/pkg/logger"
)

// Роли пользователя
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User представляет постоянный аккаунт
type User struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Email       string `gorm:"size:100;not null;uniqueIndex" json:"email"`
	Password    string `gorm:"size:100;not null" json:"-"`
	DisplayName string `gorm:"size:100;not null;default:''" json:"display_name"`
	Role        string `gorm:"size:20;not null;default:'user'" json:"-"` // "user" или "admin"

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (User) TableName() string {
	return "users"
}

// PermanentID возвращает постоянный идентификатор личности: первичный ключ в десятичной записи
func (u *User) PermanentID() string {
	return strconv.FormatUint(uint64(u.ID), 10)
}

// IsAdmin сообщает, есть ли у пользователя права администратора
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// BeforeSave хеширует пароль перед сохранением, только если он не является bcrypt-хешем
func (u *User) BeforeSave(tx *gorm.DB) error {
	if len(u.Password) == 0 || isBcryptHash(u.Password) {
		return nil
	}
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.For("User").Errorw("Ошибка при хешировании пароля", "email", u.Email, "error", err)
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

// CheckPassword проверяет, соответствует ли переданный пароль хешу
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}
