package service

import (
	"context"
	"fmt"
	"strings"

	"pokemart/internal/models"
	"pokemart/internal/util"

	"go.uber.org/zap"
)

const maxDisplayNameLen = 16

// TrainerStore is the slice of the store trainer accounts need.
type TrainerStore interface {
	GetOrCreateTrainer(ctx context.Context, wallet string) (*models.Trainer, error)
	GetTrainerByWallet(ctx context.Context, wallet string) (*models.Trainer, error)
	UpdateDisplayName(ctx context.Context, trainerID int64, displayName string) error
}

// TrainerService manages wallet-keyed accounts.
type TrainerService struct {
	store  TrainerStore
	logger *zap.Logger
}

// NewTrainerService creates a new trainer service
func NewTrainerService(st TrainerStore) *TrainerService {
	return &TrainerService{store: st, logger: util.GetLogger()}
}

// Auth looks up or creates the account for a wallet and touches its
// last login.
func (s *TrainerService) Auth(ctx context.Context, wallet string) (*models.Trainer, error) {
	wallet = strings.ToLower(wallet)
	if !walletPattern.MatchString(wallet) {
		return nil, fmt.Errorf("malformed wallet address: %w", ErrInvalidInput)
	}
	trainer, err := s.store.GetOrCreateTrainer(ctx, wallet)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Trainer authenticated",
		zap.Int64("trainer_id", trainer.ID),
		zap.String("wallet", wallet))
	return trainer, nil
}

// UpdateDisplayName sets the trainer's display name
func (s *TrainerService) UpdateDisplayName(ctx context.Context, wallet, displayName string) (*models.Trainer, error) {
	wallet = strings.ToLower(wallet)
	displayName = strings.TrimSpace(displayName)
	if displayName == "" || len(displayName) > maxDisplayNameLen {
		return nil, fmt.Errorf("display name must be 1-%d characters: %w", maxDisplayNameLen, ErrInvalidInput)
	}

	trainer, err := s.store.GetTrainerByWallet(ctx, wallet)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateDisplayName(ctx, trainer.ID, displayName); err != nil {
		return nil, err
	}
	return s.store.GetTrainerByWallet(ctx, wallet)
}
