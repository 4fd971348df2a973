package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/yourusername/proptrack-api/internal/domain/entity"
	"github.com/yourusername/proptrack-api/internal/domain/repository"
	"github.com/yourusername/proptrack-api/internal/gating"
	"github.com/yourusername/proptrack-api/internal/identity"
	apperrors "github.com/yourusername/proptrack-api/internal/pkg/errors"
)

// PinService управляет отметками объявлений текущей личности
type PinService struct {
	pins repository.PinRepository
	gate *GateService
}

// NewPinService создает сервис отметок
func NewPinService(pins repository.PinRepository, gate *GateService) *PinService {
	return &PinService{pins: pins, gate: gate}
}

// Create отмечает объявление, если политика не требует аккаунта
func (s *PinService) Create(ctx context.Context, id identity.Identity, listingID, note string) (*entity.Pin, error) {
	listingID = strings.TrimSpace(listingID)
	if listingID == "" {
		return nil, fmt.Errorf("%w: listing_id is required", apperrors.ErrValidation)
	}
	owner, err := OwnerFor(id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Check(ctx, id, gating.ActionPin); err != nil {
		return nil, err
	}
	pin := &entity.Pin{Owner: owner, ListingID: listingID, Note: strings.TrimSpace(note)}
	if err := s.pins.Create(ctx, pin); err != nil {
		return nil, err
	}
	return pin, nil
}

// List возвращает отметки личности
func (s *PinService) List(ctx context.Context, id identity.Identity) ([]entity.Pin, error) {
	owner, err := OwnerFor(id)
	if err != nil {
		return nil, err
	}
	return s.pins.ListByOwner(ctx, owner)
}

// Delete удаляет отметку личности
func (s *PinService) Delete(ctx context.Context, id identity.Identity, pinID uint) error {
	owner, err := OwnerFor(id)
	if err != nil {
		return err
	}
	return s.pins.Delete(ctx, owner, pinID)
}

// CollectionService управляет подборками текущей личности
type CollectionService struct {
	collections repository.CollectionRepository
	gate        *GateService
}

// NewCollectionService создает сервис подборок
func NewCollectionService(collections repository.CollectionRepository, gate *GateService) *CollectionService {
	return &CollectionService{collections: collections, gate: gate}
}

// Create создает подборку, если политика не требует аккаунта
func (s *CollectionService) Create(ctx context.Context, id identity.Identity, name, description string) (*entity.Collection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", apperrors.ErrValidation)
	}
	owner, err := OwnerFor(id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Check(ctx, id, gating.ActionCreateCollection); err != nil {
		return nil, err
	}
	collection := &entity.Collection{Owner: owner, Name: name, Description: strings.TrimSpace(description)}
	if err := s.collections.Create(ctx, collection); err != nil {
		return nil, err
	}
	return collection, nil
}

// List возвращает подборки личности
func (s *CollectionService) List(ctx context.Context, id identity.Identity) ([]entity.Collection, error) {
	owner, err := OwnerFor(id)
	if err != nil {
		return nil, err
	}
	return s.collections.ListByOwner(ctx, owner)
}

// Delete удаляет подборку личности
func (s *CollectionService) Delete(ctx context.Context, id identity.Identity, collectionID uint) error {
	owner, err := OwnerFor(id)
	if err != nil {
		return err
	}
	return s.collections.Delete(ctx, owner, collectionID)
}
