package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pokemart/internal/models"

	"github.com/jmoiron/sqlx/types"
)

// OrderFilter narrows order listings.
type OrderFilter struct {
	TrainerID int64
	Status    string
	Page      int
	PerPage   int
}

// CreateOrder inserts a new pending order with its total frozen
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (trainer_id, card_id, quantity, total_price_eth, status, buyer_wallet)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, shipping_info, created_at, updated_at`

	return s.db.GetContext(ctx, order, query,
		order.TrainerID, order.CardID, order.Quantity, order.TotalPriceEth,
		order.Status, order.BuyerWallet)
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders retrieves orders matching the filter with a total count
func (s *Store) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, int, error) {
	where := "1=1"
	args := []interface{}{}

	if f.TrainerID != 0 {
		args = append(args, f.TrainerID)
		where += fmt.Sprintf(" AND trainer_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int
	if err := s.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM orders WHERE "+where, args...); err != nil {
		return nil, 0, err
	}

	if f.PerPage <= 0 {
		f.PerPage = 20
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	args = append(args, f.PerPage, (f.Page-1)*f.PerPage)

	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders, fmt.Sprintf(
		"SELECT * FROM orders WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		where, len(args)-1, len(args)), args...)
	return orders, total, err
}

// TransitionOrder moves an order between statuses, guarded on the
// current status so concurrent transitions cannot both win. Returns
// ErrStatusConflict when the order was not in the expected status.
func (s *Store) TransitionOrder(ctx context.Context, orderID int64, from, to string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3",
		to, orderID, from)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		// Distinguish a missing order from a lost race.
		if _, err := s.GetOrderByID(ctx, orderID); err != nil {
			return err
		}
		return fmt.Errorf("order %d not %s: %w", orderID, from, ErrStatusConflict)
	}
	return nil
}

// ConfirmOrderTx commits a verified payment in one transaction: the
// stock decrement is conditional on availability and the status flip is
// conditional on the order still being pending, so neither a concurrent
// confirmation of another order nor a retry of this one can decrement
// stock twice or reuse the payment.
func (s *Store) ConfirmOrderTx(ctx context.Context, orderID, cardID int64, quantity int, txHash string, shippingInfo types.JSONText) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE cards SET stock_quantity = stock_quantity - $1, updated_at = NOW()
		WHERE id = $2 AND stock_quantity >= $1`,
		quantity, cardID)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("card %d, want %d: %w", cardID, quantity, ErrInsufficientStock)
	}

	if len(shippingInfo) == 0 {
		shippingInfo = types.JSONText("{}")
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE orders SET status = $1, tx_hash = $2, shipping_info = $3, updated_at = NOW()
		WHERE id = $4 AND status = $5`,
		models.OrderStatusConfirmed, txHash, shippingInfo, orderID, models.OrderStatusPending)
	if err != nil {
		if isUniqueViolation(err, "orders_tx_hash_uniq") {
			return fmt.Errorf("tx %s: %w", txHash, ErrDuplicateTxHash)
		}
		return fmt.Errorf("failed to confirm order: %w", err)
	}
	rows, err = res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("order %d not pending: %w", orderID, ErrStatusConflict)
	}

	return tx.Commit()
}
