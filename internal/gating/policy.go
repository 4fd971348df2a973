// Package gating решает, нужно ли отложить действие до создания постоянного аккаунта.
// Все функции пакета чистые: без ввода-вывода и побочных эффектов.
package gating

import (
	"github.com/yourusername/proptrack-api/internal/identity"
)

// Действия, требующие постоянного аккаунта по умолчанию
const (
	ActionComment  = "comment"
	ActionShare    = "share"
	ActionSaveNote = "save_note"
	ActionSetAlert = "set_alert"

	ActionPin              = "pin"
	ActionCreateCollection = "create_collection"
)

// Threshold ограничивает действие значением счетчика: при count >= Limit нужен аккаунт
type Threshold struct {
	Counter string
	Limit   int
}

// Counts - текущие значения счетчиков личности
type Counts map[string]int

// Policy - набор правил отложенных действий
type Policy struct {
	accountRequired map[string]struct{}
	thresholds      map[string]Threshold
}

// DefaultAccountRequired - действия, которые всегда требуют аккаунта
var DefaultAccountRequired = []string{ActionComment, ActionShare, ActionSaveNote, ActionSetAlert}

// NewPolicy создает политику
func NewPolicy(accountRequired []string, thresholds map[string]Threshold) *Policy {
	p := &Policy{
		accountRequired: make(map[string]struct{}, len(accountRequired)),
		thresholds:      make(map[string]Threshold, len(thresholds)),
	}
	for _, a := range accountRequired {
		p.accountRequired[a] = struct{}{}
	}
	for a, th := range thresholds {
		p.thresholds[a] = th
	}
	return p
}

// DefaultPolicy возвращает политику только с действиями по умолчанию, без порогов
func DefaultPolicy() *Policy {
	return NewPolicy(DefaultAccountRequired, nil)
}

// RequiresAccount сообщает, входит ли действие в список всегда требующих аккаунта
func (p *Policy) RequiresAccount(action string) bool {
	_, ok := p.accountRequired[action]
	return ok
}

// ThresholdFor возвращает порог для действия, если он задан
func (p *Policy) ThresholdFor(action string) (Threshold, bool) {
	th, ok := p.thresholds[action]
	return th, ok
}

// NeedsUpgrade сообщает, нужно ли отложить действие до постоянной аутентификации
func (p *Policy) NeedsUpgrade(id identity.Identity, action string) bool {
	if id.IsAuthenticated() {
		return false
	}
	return p.RequiresAccount(action)
}

// NeedsUpgradeWithCounts дополнительно учитывает пороги по переданным счетчикам.
// Отсутствующий счетчик считается равным нулю.
func (p *Policy) NeedsUpgradeWithCounts(id identity.Identity, action string, counts Counts) bool {
	if id.IsAuthenticated() {
		return false
	}
	if p.RequiresAccount(action) {
		return true
	}
	th, ok := p.thresholds[action]
	if !ok {
		return false
	}
	return counts[th.Counter] >= th.Limit
}
