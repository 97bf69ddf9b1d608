package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"pokemart/internal/models"
)

// CardFilter narrows catalog listings.
type CardFilter struct {
	Rarity          string
	SetName         string
	Search          string
	IncludeInactive bool
	Page            int
	PerPage         int
}

// CreateCard inserts a new catalog card
func (s *Store) CreateCard(ctx context.Context, card *models.Card) error {
	query := `
		INSERT INTO cards (name, description, price_eth, image_url, rarity, set_name, card_number, condition, stock_quantity, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, card, query,
		card.Name, card.Description, card.PriceEth, card.ImageURL, card.Rarity,
		card.SetName, card.CardNumber, card.Condition, card.Stock, card.IsActive)
}

// GetCardByID retrieves a card by ID
func (s *Store) GetCardByID(ctx context.Context, id int64) (*models.Card, error) {
	var card models.Card
	err := s.db.GetContext(ctx, &card, "SELECT * FROM cards WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("card %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// ListCards retrieves cards matching the filter with a total count
func (s *Store) ListCards(ctx context.Context, f CardFilter) ([]models.Card, int, error) {
	conds := []string{"1=1"}
	args := []interface{}{}

	if !f.IncludeInactive {
		conds = append(conds, "is_active = TRUE")
	}
	if f.Rarity != "" {
		args = append(args, f.Rarity)
		conds = append(conds, fmt.Sprintf("rarity = $%d", len(args)))
	}
	if f.SetName != "" {
		args = append(args, f.SetName)
		conds = append(conds, fmt.Sprintf("set_name = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		conds = append(conds, fmt.Sprintf("name ILIKE $%d", len(args)))
	}

	where := strings.Join(conds, " AND ")

	var total int
	if err := s.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM cards WHERE "+where, args...); err != nil {
		return nil, 0, err
	}

	if f.PerPage <= 0 {
		f.PerPage = 20
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	args = append(args, f.PerPage, (f.Page-1)*f.PerPage)

	var cards []models.Card
	err := s.db.SelectContext(ctx, &cards, fmt.Sprintf(
		"SELECT * FROM cards WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		where, len(args)-1, len(args)), args...)
	return cards, total, err
}

// UpdateCard updates the mutable catalog fields of a card
func (s *Store) UpdateCard(ctx context.Context, card *models.Card) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE cards SET
			name = $1, description = $2, price_eth = $3, image_url = $4,
			rarity = $5, set_name = $6, card_number = $7, condition = $8,
			stock_quantity = $9, is_active = $10, updated_at = NOW()
		WHERE id = $11`,
		card.Name, card.Description, card.PriceEth, card.ImageURL, card.Rarity,
		card.SetName, card.CardNumber, card.Condition, card.Stock, card.IsActive, card.ID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("card %d: %w", card.ID, ErrNotFound)
	}
	return nil
}

// DeactivateCard soft-deletes a card from the catalog
func (s *Store) DeactivateCard(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE cards SET is_active = FALSE, updated_at = NOW() WHERE id = $1", id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("card %d: %w", id, ErrNotFound)
	}
	return nil
}
