package service

import (
	"context"
	"fmt"
	"strings"

	"pokemart/internal/models"
	"pokemart/internal/store"
	"pokemart/internal/util"

	"go.uber.org/zap"
)

// CatalogStore is the slice of the store catalog management needs.
type CatalogStore interface {
	CreateCard(ctx context.Context, card *models.Card) error
	GetCardByID(ctx context.Context, id int64) (*models.Card, error)
	ListCards(ctx context.Context, f store.CardFilter) ([]models.Card, int, error)
	UpdateCard(ctx context.Context, card *models.Card) error
	DeactivateCard(ctx context.Context, id int64) error
}

// CatalogService manages card listings. Stock set here never races the
// order path: both sides mutate stock_quantity through single guarded
// statements.
type CatalogService struct {
	store  CatalogStore
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(st CatalogStore) *CatalogService {
	return &CatalogService{store: st, logger: util.GetLogger()}
}

func validateCard(card *models.Card) error {
	if strings.TrimSpace(card.Name) == "" {
		return fmt.Errorf("card name required: %w", ErrInvalidInput)
	}
	if card.PriceEth.IsNegative() {
		return fmt.Errorf("price must not be negative: %w", ErrInvalidInput)
	}
	if card.Stock < 0 {
		return fmt.Errorf("stock must not be negative: %w", ErrInvalidInput)
	}
	return nil
}

// CreateCard adds a card to the catalog
func (s *CatalogService) CreateCard(ctx context.Context, card *models.Card) error {
	if err := validateCard(card); err != nil {
		return err
	}
	if err := s.store.CreateCard(ctx, card); err != nil {
		return fmt.Errorf("failed to create card: %w", err)
	}
	s.logger.Info("Card created",
		zap.Int64("card_id", card.ID),
		zap.String("name", card.Name))
	return nil
}

// GetCard retrieves a card by ID
func (s *CatalogService) GetCard(ctx context.Context, id int64) (*models.Card, error) {
	return s.store.GetCardByID(ctx, id)
}

// ListCards retrieves cards matching the filter
func (s *CatalogService) ListCards(ctx context.Context, f store.CardFilter) ([]models.Card, int, error) {
	return s.store.ListCards(ctx, f)
}

// UpdateCard replaces a card's catalog fields. Existing orders are
// unaffected: their totals were frozen at creation.
func (s *CatalogService) UpdateCard(ctx context.Context, card *models.Card) (*models.Card, error) {
	if err := validateCard(card); err != nil {
		return nil, err
	}
	if err := s.store.UpdateCard(ctx, card); err != nil {
		return nil, err
	}
	return s.store.GetCardByID(ctx, card.ID)
}

// DeactivateCard removes a card from sale without deleting history
func (s *CatalogService) DeactivateCard(ctx context.Context, id int64) error {
	if err := s.store.DeactivateCard(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Card deactivated", zap.Int64("card_id", id))
	return nil
}
