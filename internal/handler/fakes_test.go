package handler

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/proptrack-api/internal/domain/entity"
	apperrors "github.com/yourusername/proptrack-api/internal/pkg/errors"
)

// memOwned - записи в памяти с доступом к владельцу через функции
type memOwned[T any] struct {
	mu         sync.Mutex
	items      []*T
	next       uint
	recordType string
	owner      func(*T) *entity.Owner
	id         func(*T) *uint
}

func (m *memOwned[T]) RecordType() string { return m.recordType }

func (m *memOwned[T]) Create(_ context.Context, rec *T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.owner(rec).Validate(); err != nil {
		return err
	}
	m.next++
	*m.id(rec) = m.next
	cp := *rec
	m.items = append(m.items, &cp)
	return nil
}

func (m *memOwned[T]) ListByOwner(_ context.Context, owner entity.Owner) ([]T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []T{}
	for _, it := range m.items {
		if *m.owner(it) == owner {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (m *memOwned[T]) CountByOwner(ctx context.Context, owner entity.Owner) (int64, error) {
	list, _ := m.ListByOwner(ctx, owner)
	return int64(len(list)), nil
}

func (m *memOwned[T]) Delete(_ context.Context, owner entity.Owner, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, it := range m.items {
		if *m.id(it) == id && *m.owner(it) == owner {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *memOwned[T]) ReassignOwner(_ context.Context, temporaryID, permanentID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, it := range m.items {
		o := m.owner(it)
		if o.OwnerKind == entity.OwnerTemporary && o.OwnerID == temporaryID {
			*o = entity.Owner{OwnerID: permanentID, OwnerKind: entity.OwnerPermanent}
			n++
		}
	}
	return n, nil
}

func newMemPins() *memOwned[entity.Pin] {
	return &memOwned[entity.Pin]{
		recordType: "pins",
		owner:      func(p *entity.Pin) *entity.Owner { return &p.Owner },
		id:         func(p *entity.Pin) *uint { return &p.ID },
	}
}

func newMemCollections() *memOwned[entity.Collection] {
	return &memOwned[entity.Collection]{
		recordType: "collections",
		owner:      func(c *entity.Collection) *entity.Owner { return &c.Owner },
		id:         func(c *entity.Collection) *uint { return &c.ID },
	}
}

// memMergeRecords реализует repository.MergeRecordRepository
type memMergeRecords struct {
	mu      sync.Mutex
	records map[string]entity.MergeRecord
}

func newMemMergeRecords() *memMergeRecords {
	return &memMergeRecords{records: make(map[string]entity.MergeRecord)}
}

func (m *memMergeRecords) GetByTemporaryID(_ context.Context, temporaryID string) (*entity.MergeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[temporaryID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &rec, nil
}

func (m *memMergeRecords) CreateIfAbsent(_ context.Context, rec *entity.MergeRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.TemporaryID]; ok {
		return false, nil
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.ID = uint(len(m.records) + 1)
	m.records[rec.TemporaryID] = *rec
	return true, nil
}

func (m *memMergeRecords) List(_ context.Context, since time.Time, limit int) ([]entity.MergeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []entity.MergeRecord{}
	for _, r := range m.records {
		if !r.CreatedAt.Before(since) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// memUsers реализует repository.UserRepository и хеширует пароль, как это делает хук gorm
type memUsers struct {
	mu    sync.Mutex
	users []*entity.User
}

func (m *memUsers) Create(_ context.Context, user *entity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return apperrors.ErrConflict
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.MinCost)
	if err != nil {
		return err
	}
	user.Password = string(hash)
	user.ID = uint(len(m.users) + 1)
	cp := *user
	m.users = append(m.users, &cp)
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id uint) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *memUsers) promote(email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			u.Role = entity.RoleAdmin
		}
	}
}

type nopRegistration struct{}

func (nopRegistration) Register(string) {}
func (nopRegistration) Forget(string) {}
