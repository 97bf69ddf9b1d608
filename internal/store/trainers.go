package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pokemart/internal/models"
)

// GetOrCreateTrainer looks up a trainer by wallet address, creating the
// account on first sight. The wallet must already be lowercased by the
// caller. Also touches last_login_at.
func (s *Store) GetOrCreateTrainer(ctx context.Context, wallet string) (*models.Trainer, error) {
	username := truncatedUsername(wallet)

	var trainer models.Trainer
	err := s.db.GetContext(ctx, &trainer, `
		INSERT INTO trainers (wallet_address, username, last_login_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (wallet_address) DO UPDATE SET last_login_at = NOW()
		RETURNING *`,
		wallet, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create trainer: %w", err)
	}
	return &trainer, nil
}

// GetTrainerByWallet retrieves a trainer by lowercased wallet address
func (s *Store) GetTrainerByWallet(ctx context.Context, wallet string) (*models.Trainer, error) {
	var trainer models.Trainer
	err := s.db.GetContext(ctx, &trainer,
		"SELECT * FROM trainers WHERE wallet_address = $1", wallet)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("trainer %s: %w", wallet, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &trainer, nil
}

// UpdateDisplayName sets a trainer's display name
func (s *Store) UpdateDisplayName(ctx context.Context, trainerID int64, displayName string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE trainers SET display_name = $1 WHERE id = $2", displayName, trainerID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("trainer %d: %w", trainerID, ErrNotFound)
	}
	return nil
}

// ClaimCatchSlot atomically claims the trainer's catch cooldown slot by
// setting last_catch_at, guarded on the previous catch being outside
// the window. Two in-window requests cannot both match the guard, so at
// most one caller per window gets true.
func (s *Store) ClaimCatchSlot(ctx context.Context, trainerID int64, now time.Time, window time.Duration) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE trainers SET last_catch_at = $1
		WHERE id = $2 AND (last_catch_at IS NULL OR last_catch_at <= $3)`,
		now, trainerID, now.Add(-window))
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// ReleaseCatchSlot undoes a claim whose catch was never recorded,
// restoring the previous timestamp. Guarded on the claim's own value so
// a newer claim is never clobbered.
func (s *Store) ReleaseCatchSlot(ctx context.Context, trainerID int64, prev *time.Time, claimed time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE trainers SET last_catch_at = $1
		WHERE id = $2 AND last_catch_at = $3`,
		prev, trainerID, claimed)
	return err
}

// InsertCaughtEntry appends a species to the trainer's pokedex. The
// unique (trainer_id, species_id) constraint makes concurrent inserts
// of the same new species collapse to a single row; the return value
// reports whether this call created the entry.
func (s *Store) InsertCaughtEntry(ctx context.Context, entry *models.CaughtEntry) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO caught_entries (trainer_id, species_id, species_name, sprite_url, caught_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (trainer_id, species_id) DO NOTHING`,
		entry.TrainerID, entry.SpeciesID, entry.SpeciesName, entry.SpriteURL, entry.CaughtAt)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// ListCaughtEntries retrieves a trainer's pokedex, oldest first
func (s *Store) ListCaughtEntries(ctx context.Context, trainerID int64) ([]models.CaughtEntry, error) {
	var entries []models.CaughtEntry
	err := s.db.SelectContext(ctx, &entries,
		"SELECT * FROM caught_entries WHERE trainer_id = $1 ORDER BY caught_at", trainerID)
	return entries, err
}

// ListBadges retrieves a trainer's unlocked badges
func (s *Store) ListBadges(ctx context.Context, trainerID int64) ([]models.BadgeRecord, error) {
	var records []models.BadgeRecord
	err := s.db.SelectContext(ctx, &records,
		"SELECT * FROM badges WHERE trainer_id = $1 ORDER BY unlocked_at", trainerID)
	return records, err
}

// AppendBadges unlocks badges for a trainer. ON CONFLICT keeps the set
// grow-only: re-appending an already-held badge is a no-op and never
// moves its unlock timestamp.
func (s *Store) AppendBadges(ctx context.Context, trainerID int64, badgeIDs []string, at time.Time) error {
	if len(badgeIDs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, id := range badgeIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO badges (trainer_id, badge_id, unlocked_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (trainer_id, badge_id) DO NOTHING`,
			trainerID, id, at); err != nil {
			return fmt.Errorf("failed to append badge %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// truncatedUsername derives the default display handle from a wallet
// address, e.g. 0x1234...cdef.
func truncatedUsername(wallet string) string {
	if len(wallet) < 10 {
		return wallet
	}
	return wallet[:6] + "..." + wallet[len(wallet)-4:]
}
