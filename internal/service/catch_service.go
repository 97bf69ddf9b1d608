package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"pokemart/internal/badges"
	"pokemart/internal/models"
	"pokemart/internal/pokeapi"
	"pokemart/internal/util"

	"go.uber.org/zap"
)

const genOneSpeciesCount = 151

// CatchStore is the slice of the store the catch recorder needs.
type CatchStore interface {
	GetTrainerByWallet(ctx context.Context, wallet string) (*models.Trainer, error)
	ClaimCatchSlot(ctx context.Context, trainerID int64, now time.Time, window time.Duration) (bool, error)
	ReleaseCatchSlot(ctx context.Context, trainerID int64, prev *time.Time, claimed time.Time) error
	InsertCaughtEntry(ctx context.Context, entry *models.CaughtEntry) (bool, error)
	ListCaughtEntries(ctx context.Context, trainerID int64) ([]models.CaughtEntry, error)
	ListBadges(ctx context.Context, trainerID int64) ([]models.BadgeRecord, error)
	AppendBadges(ctx context.Context, trainerID int64, badgeIDs []string, at time.Time) error
}

// SpeciesClient resolves species metadata, best effort.
type SpeciesClient interface {
	GetSpecies(ctx context.Context, id int) (*pokeapi.Species, error)
}

// CatchEvents publishes catch and badge events.
type CatchEvents interface {
	PublishCatchRecorded(ctx context.Context, event *models.CatchRecordedEvent) error
	PublishBadgeUnlocked(ctx context.Context, event *models.BadgeUnlockedEvent) error
}

// CooldownCache mirrors the cooldown into Redis so the hot Today path
// can answer without a Postgres read. The database claim stays
// authoritative; the mirror is advisory and may be nil.
type CooldownCache interface {
	SetCooldown(ctx context.Context, wallet string, ttl time.Duration) error
	CooldownRemaining(ctx context.Context, wallet string) (time.Duration, error)
}

// CatchService records daily catches under the cooldown window and
// keeps the pokedex free of duplicate species.
type CatchService struct {
	store    CatchStore
	species  SpeciesClient
	events   CatchEvents
	cache    CooldownCache
	cooldown time.Duration
	logger   *zap.Logger
}

// NewCatchService creates a new catch service
func NewCatchService(st CatchStore, species SpeciesClient, events CatchEvents, cache CooldownCache, cooldown time.Duration) *CatchService {
	return &CatchService{
		store:    st,
		species:  species,
		events:   events,
		cache:    cache,
		cooldown: cooldown,
		logger:   util.GetLogger(),
	}
}

// CatchRequest is a catch submission from the client
type CatchRequest struct {
	Wallet      string `json:"wallet_address" binding:"required"`
	SpeciesID   int    `json:"pokemon_id" binding:"required"`
	SpeciesName string `json:"pokemon_name" binding:"required"`
	Sprite      string `json:"sprite"`
}

// CatchResult reports what a recorded catch changed
type CatchResult struct {
	IsNewEntry  bool               `json:"is_new_entry"`
	TotalCaught int                `json:"total_caught"`
	Entry       models.CaughtEntry `json:"pokemon"`
	NewBadges   []string           `json:"new_badges,omitempty"`
}

// TodayInfo describes the current hour's species and whether the
// trainer may catch it.
type TodayInfo struct {
	Species     *pokeapi.Species `json:"species"`
	CanCatch    bool             `json:"can_catch"`
	RemainingMs int64            `json:"time_until_next_ms"`
	LastCatchAt *time.Time       `json:"last_catch,omitempty"`
}

// DailySpecies picks the species on offer for a wallet in the current
// hour slot: deterministic per (wallet, hour), different across both.
func DailySpecies(wallet string, now time.Time) int {
	slot := now.Unix() / 3600
	h := fnv.New32a()
	fmt.Fprintf(h, "%s-%d", strings.ToLower(wallet), slot)
	return int(h.Sum32()%genOneSpeciesCount) + 1
}

// Today returns the hour's species for a wallet plus cooldown state.
// Species metadata is best effort: a PokeAPI failure degrades to the
// bare species number rather than failing the request.
func (s *CatchService) Today(ctx context.Context, wallet string) (*TodayInfo, error) {
	ctx, span := util.StartSpan(ctx, "CatchService.Today")
	defer span.End()

	wallet = strings.ToLower(wallet)
	if !walletPattern.MatchString(wallet) {
		return nil, fmt.Errorf("malformed wallet address: %w", ErrInvalidInput)
	}

	now := time.Now()
	speciesID := DailySpecies(wallet, now)

	species, err := s.species.GetSpecies(ctx, speciesID)
	if err != nil {
		s.logger.Warn("Species metadata lookup failed",
			zap.Int("species_id", speciesID),
			zap.Error(err))
		species = &pokeapi.Species{ID: speciesID}
	}

	info := &TodayInfo{Species: species, CanCatch: true}

	if s.cache != nil {
		if remaining, err := s.cache.CooldownRemaining(ctx, wallet); err == nil && remaining > 0 {
			info.CanCatch = false
			info.RemainingMs = remaining.Milliseconds()
			return info, nil
		}
	}

	trainer, err := s.store.GetTrainerByWallet(ctx, wallet)
	if err == nil && trainer.LastCatchAt != nil {
		info.LastCatchAt = trainer.LastCatchAt
		if remaining := s.cooldown - now.Sub(*trainer.LastCatchAt); remaining > 0 {
			info.CanCatch = false
			info.RemainingMs = remaining.Milliseconds()
		}
	}

	return info, nil
}

// RecordCatch claims the trainer's cooldown slot and appends the
// species to the pokedex. The slot claim and the entry insert are both
// single conditional writes, so N concurrent requests for the same new
// species produce exactly one entry.
func (s *CatchService) RecordCatch(ctx context.Context, req *CatchRequest) (*CatchResult, error) {
	ctx, span := util.StartSpan(ctx, "CatchService.RecordCatch")
	defer span.End()

	wallet := strings.ToLower(req.Wallet)
	if !walletPattern.MatchString(wallet) {
		return nil, fmt.Errorf("malformed wallet address: %w", ErrInvalidInput)
	}
	if req.SpeciesID < 1 || req.SpeciesID > genOneSpeciesCount {
		return nil, fmt.Errorf("species id %d out of range: %w", req.SpeciesID, ErrInvalidInput)
	}
	if req.SpeciesName == "" {
		return nil, fmt.Errorf("species name required: %w", ErrInvalidInput)
	}

	trainer, err := s.store.GetTrainerByWallet(ctx, wallet)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	claimed, err := s.store.ClaimCatchSlot(ctx, trainer.ID, now, s.cooldown)
	if err != nil {
		return nil, err
	}
	if !claimed {
		util.CatchCooldownRejections.Inc()
		remaining := s.cooldown
		if trainer.LastCatchAt != nil {
			remaining = s.cooldown - now.Sub(*trainer.LastCatchAt)
		}
		if remaining <= 0 {
			// Claim lost to a concurrent request that bumped the
			// timestamp after our read.
			remaining = s.cooldown
		}
		return nil, &CooldownError{Remaining: remaining}
	}

	entry := &models.CaughtEntry{
		TrainerID:   trainer.ID,
		SpeciesID:   req.SpeciesID,
		SpeciesName: req.SpeciesName,
		SpriteURL:   req.Sprite,
		CaughtAt:    now,
	}

	isNew, err := s.store.InsertCaughtEntry(ctx, entry)
	if err != nil {
		// Give the slot back: a failed insert must not burn the
		// trainer's cooldown window.
		if rerr := s.store.ReleaseCatchSlot(ctx, trainer.ID, trainer.LastCatchAt, now); rerr != nil {
			s.logger.Error("Failed to release catch slot after insert failure",
				zap.Int64("trainer_id", trainer.ID),
				zap.Error(rerr))
		}
		return nil, fmt.Errorf("failed to record catch: %w", err)
	}

	// Mirror only after the catch is durable; a released slot must not
	// leave a stale cooldown behind.
	if s.cache != nil {
		if err := s.cache.SetCooldown(ctx, wallet, s.cooldown); err != nil {
			s.logger.Warn("Cooldown mirror write failed", zap.Error(err))
		}
	}

	util.CatchesRecordedTotal.Inc()
	if isNew {
		util.DexEntriesCreatedTotal.Inc()
	}
	s.logger.Info("Catch recorded",
		zap.Int64("trainer_id", trainer.ID),
		zap.Int("species_id", req.SpeciesID),
		zap.Bool("new_entry", isNew))

	if s.events != nil {
		event := &models.CatchRecordedEvent{
			BaseEvent:   newBaseEvent(models.EventTypeCatchRecorded),
			TrainerID:   trainer.ID,
			SpeciesID:   req.SpeciesID,
			SpeciesName: req.SpeciesName,
			IsNewEntry:  isNew,
		}
		if err := s.events.PublishCatchRecorded(ctx, event); err != nil {
			s.logger.Error("Failed to publish CatchRecorded event", zap.Error(err))
		}
	}

	entries, err := s.store.ListCaughtEntries(ctx, trainer.ID)
	if err != nil {
		return nil, err
	}

	newBadges, err := s.unlockBadges(ctx, trainer.ID, entries, now)
	if err != nil {
		// The catch itself succeeded; badge evaluation can be retried
		// via CheckBadges.
		s.logger.Error("Badge evaluation failed after catch",
			zap.Int64("trainer_id", trainer.ID),
			zap.Error(err))
	}

	return &CatchResult{
		IsNewEntry:  isNew,
		TotalCaught: len(entries),
		Entry:       *entry,
		NewBadges:   newBadges,
	}, nil
}

// CheckBadges re-evaluates badges for a trainer and returns the full
// unlocked set. Idempotent: with no new catches the evaluation earns
// nothing.
func (s *CatchService) CheckBadges(ctx context.Context, wallet string) ([]models.BadgeRecord, error) {
	ctx, span := util.StartSpan(ctx, "CatchService.CheckBadges")
	defer span.End()

	trainer, err := s.store.GetTrainerByWallet(ctx, strings.ToLower(wallet))
	if err != nil {
		return nil, err
	}

	entries, err := s.store.ListCaughtEntries(ctx, trainer.ID)
	if err != nil {
		return nil, err
	}
	if _, err := s.unlockBadges(ctx, trainer.ID, entries, time.Now()); err != nil {
		return nil, err
	}

	return s.store.ListBadges(ctx, trainer.ID)
}

// unlockBadges evaluates the rule table over the trainer's pokedex and
// appends the newly earned ones in one atomic write.
func (s *CatchService) unlockBadges(ctx context.Context, trainerID int64, entries []models.CaughtEntry, now time.Time) ([]string, error) {
	held, err := s.store.ListBadges(ctx, trainerID)
	if err != nil {
		return nil, err
	}

	snapshot := &badges.Snapshot{
		Entries: make([]badges.Entry, len(entries)),
		Held:    make([]string, len(held)),
	}
	for i, e := range entries {
		snapshot.Entries[i] = badges.Entry{SpeciesID: e.SpeciesID, CaughtAt: e.CaughtAt}
	}
	for i, b := range held {
		snapshot.Held[i] = b.BadgeID
	}

	earned := badges.Evaluate(snapshot)
	if len(earned) == 0 {
		return nil, nil
	}

	if err := s.store.AppendBadges(ctx, trainerID, earned, now); err != nil {
		return nil, err
	}

	for _, id := range earned {
		util.BadgesUnlockedTotal.Inc()
		s.logger.Info("Badge unlocked",
			zap.Int64("trainer_id", trainerID),
			zap.String("badge_id", id))
		if s.events != nil {
			event := &models.BadgeUnlockedEvent{
				BaseEvent: newBaseEvent(models.EventTypeBadgeUnlocked),
				TrainerID: trainerID,
				BadgeID:   id,
			}
			if err := s.events.PublishBadgeUnlocked(ctx, event); err != nil {
				s.logger.Error("Failed to publish BadgeUnlocked event", zap.Error(err))
			}
		}
	}

	return earned, nil
}

// Pokedex returns a trainer's collection and badges.
func (s *CatchService) Pokedex(ctx context.Context, wallet string) ([]models.CaughtEntry, []models.BadgeRecord, error) {
	trainer, err := s.store.GetTrainerByWallet(ctx, strings.ToLower(wallet))
	if err != nil {
		return nil, nil, err
	}

	entries, err := s.store.ListCaughtEntries(ctx, trainer.ID)
	if err != nil {
		return nil, nil, err
	}
	records, err := s.store.ListBadges(ctx, trainer.ID)
	if err != nil {
		return nil, nil, err
	}
	return entries, records, nil
}
