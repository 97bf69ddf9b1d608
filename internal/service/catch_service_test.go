package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pokemart/internal/models"
	"pokemart/internal/pokeapi"
	"pokemart/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCatchStore mirrors the store's conditional cooldown claim and
// unique (trainer, species) index in memory.
type fakeCatchStore struct {
	mu        sync.Mutex
	trainers  map[string]*models.Trainer
	entries   map[int64]map[int]models.CaughtEntry
	badges    map[int64]map[string]models.BadgeRecord
	nextID    int64
	insertErr error
}

func newFakeCatchStore() *fakeCatchStore {
	return &fakeCatchStore{
		trainers: make(map[string]*models.Trainer),
		entries:  make(map[int64]map[int]models.CaughtEntry),
		badges:   make(map[int64]map[string]models.BadgeRecord),
	}
}

func (f *fakeCatchStore) addTrainer(wallet string) *models.Trainer {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	tr := &models.Trainer{ID: f.nextID, WalletAddress: wallet}
	f.trainers[wallet] = tr
	return tr
}

func (f *fakeCatchStore) GetTrainerByWallet(ctx context.Context, wallet string) (*models.Trainer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tr, ok := f.trainers[wallet]
	if !ok {
		return nil, store.ErrNotFound
	}
	t := *tr
	return &t, nil
}

func (f *fakeCatchStore) ClaimCatchSlot(ctx context.Context, trainerID int64, now time.Time, window time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tr := range f.trainers {
		if tr.ID != trainerID {
			continue
		}
		if tr.LastCatchAt != nil && tr.LastCatchAt.After(now.Add(-window)) {
			return false, nil
		}
		at := now
		tr.LastCatchAt = &at
		return true, nil
	}
	return false, store.ErrNotFound
}

func (f *fakeCatchStore) ReleaseCatchSlot(ctx context.Context, trainerID int64, prev *time.Time, claimed time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tr := range f.trainers {
		if tr.ID == trainerID && tr.LastCatchAt != nil && tr.LastCatchAt.Equal(claimed) {
			tr.LastCatchAt = prev
		}
	}
	return nil
}

func (f *fakeCatchStore) InsertCaughtEntry(ctx context.Context, entry *models.CaughtEntry) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return false, f.insertErr
	}
	dex, ok := f.entries[entry.TrainerID]
	if !ok {
		dex = make(map[int]models.CaughtEntry)
		f.entries[entry.TrainerID] = dex
	}
	if _, exists := dex[entry.SpeciesID]; exists {
		return false, nil
	}
	dex[entry.SpeciesID] = *entry
	return true, nil
}

func (f *fakeCatchStore) ListCaughtEntries(ctx context.Context, trainerID int64) ([]models.CaughtEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CaughtEntry
	for _, e := range f.entries[trainerID] {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeCatchStore) ListBadges(ctx context.Context, trainerID int64) ([]models.BadgeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.BadgeRecord
	for _, b := range f.badges[trainerID] {
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeCatchStore) AppendBadges(ctx context.Context, trainerID int64, badgeIDs []string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	held, ok := f.badges[trainerID]
	if !ok {
		held = make(map[string]models.BadgeRecord)
		f.badges[trainerID] = held
	}
	for _, id := range badgeIDs {
		if _, exists := held[id]; !exists {
			held[id] = models.BadgeRecord{TrainerID: trainerID, BadgeID: id, UnlockedAt: at}
		}
	}
	return nil
}

type fakeSpeciesClient struct {
	err error
}

func (f *fakeSpeciesClient) GetSpecies(ctx context.Context, id int) (*pokeapi.Species, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &pokeapi.Species{ID: id, Name: "testmon", Types: []string{"normal"}}, nil
}

type fakeCooldownCache struct {
	mu        sync.Mutex
	remaining time.Duration
	sets      int
}

func (f *fakeCooldownCache) SetCooldown(ctx context.Context, wallet string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	f.remaining = ttl
	return nil
}

func (f *fakeCooldownCache) CooldownRemaining(ctx context.Context, wallet string) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remaining, nil
}

func newTestCatchService(st *fakeCatchStore) *CatchService {
	return NewCatchService(st, &fakeSpeciesClient{}, nil, nil, time.Hour)
}

func TestDailySpeciesDeterministic(t *testing.T) {
	now := time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC)

	a := DailySpecies(testWallet, now)
	b := DailySpecies(testWallet, now.Add(10*time.Minute))
	assert.Equal(t, a, b, "same wallet and hour slot must agree")

	assert.GreaterOrEqual(t, a, 1)
	assert.LessOrEqual(t, a, 151)

	// Case-insensitive on the wallet.
	upper := DailySpecies("0x1111111111111111111111111111111111111111", now)
	assert.Equal(t, a, upper)
}

func TestDailySpeciesVariesAcrossSlotsAndWallets(t *testing.T) {
	now := time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)

	seen := make(map[int]bool)
	for i := 0; i < 48; i++ {
		seen[DailySpecies(testWallet, now.Add(time.Duration(i)*time.Hour))] = true
	}
	assert.Greater(t, len(seen), 1, "species must rotate across hour slots")
}

func TestRecordCatchFirstCatch(t *testing.T) {
	st := newFakeCatchStore()
	st.addTrainer(testWallet)
	svc := newTestCatchService(st)

	result, err := svc.RecordCatch(context.Background(), &CatchRequest{
		Wallet:      testWallet,
		SpeciesID:   25,
		SpeciesName: "pikachu",
	})
	require.NoError(t, err)
	assert.True(t, result.IsNewEntry)
	assert.Equal(t, 1, result.TotalCaught)
	assert.Contains(t, result.NewBadges, "first_catch")
}

func TestRecordCatchCooldownRejected(t *testing.T) {
	st := newFakeCatchStore()
	st.addTrainer(testWallet)
	svc := newTestCatchService(st)

	_, err := svc.RecordCatch(context.Background(), &CatchRequest{
		Wallet: testWallet, SpeciesID: 25, SpeciesName: "pikachu",
	})
	require.NoError(t, err)

	_, err = svc.RecordCatch(context.Background(), &CatchRequest{
		Wallet: testWallet, SpeciesID: 26, SpeciesName: "raichu",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCooldownActive)

	var cooldown *CooldownError
	require.True(t, errors.As(err, &cooldown))
	assert.Greater(t, cooldown.Remaining, time.Duration(0))
	assert.LessOrEqual(t, cooldown.Remaining, time.Hour)
}

func TestRecordCatchAfterCooldownExpires(t *testing.T) {
	st := newFakeCatchStore()
	st.addTrainer(testWallet)
	svc := newTestCatchService(st)

	past := time.Now().Add(-2 * time.Hour)
	st.mu.Lock()
	st.trainers[testWallet].LastCatchAt = &past
	st.mu.Unlock()

	result, err := svc.RecordCatch(context.Background(), &CatchRequest{
		Wallet: testWallet, SpeciesID: 7, SpeciesName: "squirtle",
	})
	require.NoError(t, err)
	assert.True(t, result.IsNewEntry)

	// Claim bumped the timestamp.
	fresh, err := st.GetTrainerByWallet(context.Background(), testWallet)
	require.NoError(t, err)
	require.NotNil(t, fresh.LastCatchAt)
	assert.True(t, fresh.LastCatchAt.After(past))
}

func TestRecordCatchDuplicateSpecies(t *testing.T) {
	st := newFakeCatchStore()
	st.addTrainer(testWallet)
	svc := newTestCatchService(st)

	_, err := svc.RecordCatch(context.Background(), &CatchRequest{
		Wallet: testWallet, SpeciesID: 25, SpeciesName: "pikachu",
	})
	require.NoError(t, err)

	past := time.Now().Add(-2 * time.Hour)
	st.mu.Lock()
	st.trainers[testWallet].LastCatchAt = &past
	st.mu.Unlock()

	result, err := svc.RecordCatch(context.Background(), &CatchRequest{
		Wallet: testWallet, SpeciesID: 25, SpeciesName: "pikachu",
	})
	require.NoError(t, err)
	assert.False(t, result.IsNewEntry)
	assert.Equal(t, 1, result.TotalCaught)
}

func TestRecordCatchValidation(t *testing.T) {
	st := newFakeCatchStore()
	st.addTrainer(testWallet)
	svc := newTestCatchService(st)

	_, err := svc.RecordCatch(context.Background(), &CatchRequest{
		Wallet: "bogus", SpeciesID: 25, SpeciesName: "pikachu",
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.RecordCatch(context.Background(), &CatchRequest{
		Wallet: testWallet, SpeciesID: 152, SpeciesName: "chikorita",
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.RecordCatch(context.Background(), &CatchRequest{
		Wallet: testWallet, SpeciesID: 25,
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRecordCatchReleasesSlotOnInsertFailure(t *testing.T) {
	st := newFakeCatchStore()
	st.addTrainer(testWallet)
	cache := &fakeCooldownCache{}
	svc := NewCatchService(st, &fakeSpeciesClient{}, nil, cache, time.Hour)

	st.mu.Lock()
	st.insertErr = assert.AnError
	st.mu.Unlock()

	_, err := svc.RecordCatch(context.Background(), &CatchRequest{
		Wallet: testWallet, SpeciesID: 25, SpeciesName: "pikachu",
	})
	require.Error(t, err)

	// The failed insert must not burn the cooldown slot or mirror it.
	fresh, err := st.GetTrainerByWallet(context.Background(), testWallet)
	require.NoError(t, err)
	assert.Nil(t, fresh.LastCatchAt)
	assert.Equal(t, 0, cache.sets)

	// An immediate retry succeeds without waiting out the window.
	st.mu.Lock()
	st.insertErr = nil
	st.mu.Unlock()

	result, err := svc.RecordCatch(context.Background(), &CatchRequest{
		Wallet: testWallet, SpeciesID: 25, SpeciesName: "pikachu",
	})
	require.NoError(t, err)
	assert.True(t, result.IsNewEntry)
	assert.Equal(t, 1, cache.sets)
}

func TestRecordCatchConcurrentSingleClaim(t *testing.T) {
	st := newFakeCatchStore()
	st.addTrainer(testWallet)
	svc := newTestCatchService(st)

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.RecordCatch(context.Background(), &CatchRequest{
				Wallet: testWallet, SpeciesID: 25, SpeciesName: "pikachu",
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrCooldownActive)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one request may claim the slot")

	entries, err := st.ListCaughtEntries(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestTodayDegradesOnSpeciesLookupFailure(t *testing.T) {
	st := newFakeCatchStore()
	st.addTrainer(testWallet)
	svc := NewCatchService(st, &fakeSpeciesClient{err: assert.AnError}, nil, nil, time.Hour)

	info, err := svc.Today(context.Background(), testWallet)
	require.NoError(t, err)
	require.NotNil(t, info.Species)
	assert.NotZero(t, info.Species.ID)
	assert.Empty(t, info.Species.Name)
	assert.True(t, info.CanCatch)
}

func TestTodayReportsCooldown(t *testing.T) {
	st := newFakeCatchStore()
	st.addTrainer(testWallet)
	svc := newTestCatchService(st)

	recent := time.Now().Add(-10 * time.Minute)
	st.mu.Lock()
	st.trainers[testWallet].LastCatchAt = &recent
	st.mu.Unlock()

	info, err := svc.Today(context.Background(), testWallet)
	require.NoError(t, err)
	assert.False(t, info.CanCatch)
	assert.Greater(t, info.RemainingMs, int64(0))
	assert.LessOrEqual(t, info.RemainingMs, time.Hour.Milliseconds())
}

func TestTodayServesCooldownFromMirror(t *testing.T) {
	st := newFakeCatchStore()
	st.addTrainer(testWallet)
	cache := &fakeCooldownCache{remaining: 30 * time.Minute}
	svc := NewCatchService(st, &fakeSpeciesClient{}, nil, cache, time.Hour)

	info, err := svc.Today(context.Background(), testWallet)
	require.NoError(t, err)
	assert.False(t, info.CanCatch)
	assert.Equal(t, (30 * time.Minute).Milliseconds(), info.RemainingMs)
}

func TestRecordCatchWritesCooldownMirror(t *testing.T) {
	st := newFakeCatchStore()
	st.addTrainer(testWallet)
	cache := &fakeCooldownCache{}
	svc := NewCatchService(st, &fakeSpeciesClient{}, nil, cache, time.Hour)

	_, err := svc.RecordCatch(context.Background(), &CatchRequest{
		Wallet: testWallet, SpeciesID: 25, SpeciesName: "pikachu",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)
}

func TestCheckBadgesIdempotent(t *testing.T) {
	st := newFakeCatchStore()
	st.addTrainer(testWallet)
	svc := newTestCatchService(st)

	_, err := svc.RecordCatch(context.Background(), &CatchRequest{
		Wallet: testWallet, SpeciesID: 25, SpeciesName: "pikachu",
	})
	require.NoError(t, err)

	first, err := svc.CheckBadges(context.Background(), testWallet)
	require.NoError(t, err)
	second, err := svc.CheckBadges(context.Background(), testWallet)
	require.NoError(t, err)
	assert.Equal(t, len(first), len(second))
}

func TestCheckBadgesUnknownTrainer(t *testing.T) {
	st := newFakeCatchStore()
	svc := newTestCatchService(st)

	_, err := svc.CheckBadges(context.Background(), testWallet)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
