// Package identity управляет временной личностью анонимного посетителя:
// генерацией, избыточным хранением в двух каналах и регистрацией на сервере.
package identity

import (
	"strings"

	"github.com/google/uuid"
)

// TemporaryPrefix - обязательный префикс временного идентификатора
const TemporaryPrefix = "temp_"

// MinTemporaryLength - минимальная длина: префикс и 36 символов UUID
const MinTemporaryLength = len(TemporaryPrefix) + 36

// Kind - вид эффективной личности
type Kind string

const (
	KindAnonymous Kind = "anonymous"
	KindTemporary Kind = "temporary"
	KindPermanent Kind = "permanent"
)

// Identity - эффективная личность, от имени которой выполняется доступ к данным.
// Ровно один вид из трех; значение пусто только для анонимной.
type Identity struct {
	Kind  Kind   `json:"kind"`
	Value string `json:"value,omitempty"`
}

// Anonymous возвращает личность без идентификатора
func Anonymous() Identity { return Identity{Kind: KindAnonymous} }

// Temporary возвращает временную личность
func Temporary(id string) Identity { return Identity{Kind: KindTemporary, Value: id} }

// Permanent возвращает постоянную личность
func Permanent(id string) Identity { return Identity{Kind: KindPermanent, Value: id} }

func (i Identity) IsAuthenticated() bool { return i.Kind == KindPermanent }
func (i Identity) IsTemporary() bool     { return i.Kind == KindTemporary }
func (i Identity) IsAnonymous() bool     { return i.Kind == KindAnonymous || i.Kind == "" }

// NewTemporaryID генерирует новый временный идентификатор
func NewTemporaryID() string {
	return TemporaryPrefix + uuid.NewString()
}

// IsValidTemporaryID проверяет формат временного идентификатора.
// Значения неверного формата считаются отсутствующими.
func IsValidTemporaryID(v string) bool {
	if len(v) < MinTemporaryLength || !strings.HasPrefix(v, TemporaryPrefix) {
		return false
	}
	_, err := uuid.Parse(strings.TrimPrefix(v, TemporaryPrefix))
	return err == nil
}
