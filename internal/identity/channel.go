package identity

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/yourusername/proptrack-api/internal/pkg/errors"
)

// Channel - независимый канал хранения значения личности.
// Read возвращает apperrors.ErrNotFound, если значения нет.
// Каналы без срока жизни игнорируют ttl.
type Channel interface {
	Read(ctx context.Context, key string) (string, error)
	Write(ctx context.Context, key, value string, ttl time.Duration) error
	Remove(ctx context.Context, key string) error
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryChannel хранит значения в памяти процесса. Используется, когда оба
// постоянных канала недоступны, и в тестах.
type MemoryChannel struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryChannel создает пустой канал в памяти
func NewMemoryChannel() *MemoryChannel {
	return &MemoryChannel{entries: make(map[string]memoryEntry), now: time.Now}
}

// Read возвращает значение, если оно есть и не истекло
func (c *MemoryChannel) Read(_ context.Context, key string) (string, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return "", apperrors.ErrNotFound
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return "", apperrors.ErrNotFound
	}
	return e.value, nil
}

// Write сохраняет значение; ttl <= 0 означает бессрочное хранение.
// Заодно удаляет все истекшие значения.
func (c *MemoryChannel) Write(_ context.Context, key, value string, ttl time.Duration) error {
	now := c.now()
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	c.mu.Lock()
	for k, old := range c.entries {
		if !old.expiresAt.IsZero() && !now.Before(old.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

// Remove удаляет значение; отсутствие значения не ошибка
func (c *MemoryChannel) Remove(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}
