package repository

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/deloabass/nigertransfert/internal/models"
	"github.com/google/uuid"
)

// MemoryUserStore keeps users and their tiers in memory.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[int64]models.User
	tiers map[int64]models.VerificationTier
	now   func() time.Time
}

// NewMemoryUserStore creates an empty MemoryUserStore.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		users: make(map[int64]models.User),
		tiers: make(map[int64]models.VerificationTier),
		now:   time.Now,
	}
}

// UpsertUser creates or updates a user's profile. The tier is left untouched.
func (s *MemoryUserStore) UpsertUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	stored, ok := s.users[user.ID]
	if !ok {
		stored = models.User{ID: user.ID, CreatedAt: now}
	}
	stored.Username = user.Username
	stored.FirstName = user.FirstName
	stored.LastName = user.LastName
	stored.UpdatedAt = now
	s.users[user.ID] = stored
	return nil
}

// GetUserByID returns a user or ErrNotFound.
func (s *MemoryUserStore) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	user.Tier = models.TierBasic
	if tier, ok := s.tiers[id]; ok {
		user.Tier = tier
	}
	return &user, nil
}

// GetTier returns the stored tier or ErrNotFound.
func (s *MemoryUserStore) GetTier(_ context.Context, id int64) (models.VerificationTier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tier, ok := s.tiers[id]
	if !ok {
		return "", ErrNotFound
	}
	return tier, nil
}

// SetTier stores a tier, creating the user when needed.
func (s *MemoryUserStore) SetTier(_ context.Context, id int64, tier models.VerificationTier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		now := s.now()
		s.users[id] = models.User{ID: id, CreatedAt: now, UpdatedAt: now}
	}
	s.tiers[id] = tier
	return nil
}

// MemoryBeneficiaryStore keeps beneficiaries in memory.
type MemoryBeneficiaryStore struct {
	mu    sync.RWMutex
	items map[string]models.Beneficiary
	now   func() time.Time
}

// NewMemoryBeneficiaryStore creates an empty MemoryBeneficiaryStore.
func NewMemoryBeneficiaryStore() *MemoryBeneficiaryStore {
	return &MemoryBeneficiaryStore{items: make(map[string]models.Beneficiary), now: time.Now}
}

// Get returns a beneficiary by id.
func (s *MemoryBeneficiaryStore) Get(_ context.Context, id string) (*models.Beneficiary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

// List returns the owner's beneficiaries ordered by name.
func (s *MemoryBeneficiaryStore) List(_ context.Context, ownerID int64) ([]models.Beneficiary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var list []models.Beneficiary
	for _, b := range s.items {
		if b.OwnerID == ownerID {
			list = append(list, b)
		}
	}
	slices.SortFunc(list, func(a, b models.Beneficiary) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return list, nil
}

// Upsert creates or updates a beneficiary. A missing id is generated.
func (s *MemoryBeneficiaryStore) Upsert(_ context.Context, b *models.Beneficiary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if existing, ok := s.items[b.ID]; ok {
		if existing.OwnerID != b.OwnerID {
			return ErrNotFound
		}
		b.CreatedAt = existing.CreatedAt
	} else {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	s.items[b.ID] = *b
	return nil
}

// Delete removes an owner's beneficiary.
func (s *MemoryBeneficiaryStore) Delete(_ context.Context, ownerID int64, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.items[id]
	if !ok || b.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(s.items, id)
	return nil
}

// MemoryInstrumentStore keeps saved cards in memory.
type MemoryInstrumentStore struct {
	mu    sync.RWMutex
	items map[string]models.PaymentInstrument
	seq   map[string]int
	next  int
	now   func() time.Time
}

// NewMemoryInstrumentStore creates an empty MemoryInstrumentStore.
func NewMemoryInstrumentStore() *MemoryInstrumentStore {
	return &MemoryInstrumentStore{
		items: make(map[string]models.PaymentInstrument),
		seq:   make(map[string]int),
		now:   time.Now,
	}
}

// Get returns an instrument by id.
func (s *MemoryInstrumentStore) Get(_ context.Context, id string) (*models.PaymentInstrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// GetDefault returns the owner's default instrument.
func (s *MemoryInstrumentStore) GetDefault(_ context.Context, ownerID int64) (*models.PaymentInstrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.items {
		if p.OwnerID == ownerID && p.IsDefault {
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

// List returns the owner's instruments, default first, then in insertion order.
func (s *MemoryInstrumentStore) List(_ context.Context, ownerID int64) ([]models.PaymentInstrument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked(ownerID), nil
}

func (s *MemoryInstrumentStore) listLocked(ownerID int64) []models.PaymentInstrument {
	var list []models.PaymentInstrument
	for _, p := range s.items {
		if p.OwnerID == ownerID {
			list = append(list, p)
		}
	}
	slices.SortFunc(list, func(a, b models.PaymentInstrument) int {
		if a.IsDefault != b.IsDefault {
			if a.IsDefault {
				return -1
			}
			return 1
		}
		return s.seq[a.ID] - s.seq[b.ID]
	})
	return list
}

// Upsert stores an instrument. The owner's first instrument becomes the default, and
// marking one as default clears the flag on the others.
func (s *MemoryInstrumentStore) Upsert(_ context.Context, p *models.PaymentInstrument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	existing, exists := s.items[p.ID]
	if exists && existing.OwnerID != p.OwnerID {
		return ErrNotFound
	}

	others := 0
	for id, other := range s.items {
		if other.OwnerID == p.OwnerID && id != p.ID {
			others++
		}
	}
	if others == 0 {
		p.IsDefault = true
	}
	if p.IsDefault {
		for id, other := range s.items {
			if other.OwnerID == p.OwnerID && id != p.ID && other.IsDefault {
				other.IsDefault = false
				s.items[id] = other
			}
		}
	}

	if exists {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = s.now()
		s.next++
		s.seq[p.ID] = s.next
	}
	s.items[p.ID] = *p
	return nil
}

// Delete removes an owner's instrument. Removing the default promotes the oldest
// remaining instrument.
func (s *MemoryInstrumentStore) Delete(_ context.Context, ownerID int64, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.items[id]
	if !ok || p.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(s.items, id)
	delete(s.seq, id)

	if p.IsDefault {
		if rest := s.listLocked(ownerID); len(rest) > 0 {
			promoted := rest[0]
			promoted.IsDefault = true
			s.items[promoted.ID] = promoted
		}
	}
	return nil
}

// MemoryArchiveStore keeps archived usage periods in memory.
type MemoryArchiveStore struct {
	mu      sync.RWMutex
	records []models.UsageRecord
}

// NewMemoryArchiveStore creates an empty MemoryArchiveStore.
func NewMemoryArchiveStore() *MemoryArchiveStore {
	return &MemoryArchiveStore{}
}

// Archive records a closed period. Re-archiving the same period overwrites it.
func (s *MemoryArchiveStore) Archive(_ context.Context, rec models.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.records {
		if existing.UserID == rec.UserID && existing.Period == rec.Period && existing.PeriodStart.Equal(rec.PeriodStart) {
			s.records[i] = rec
			return nil
		}
	}
	s.records = append(s.records, rec)
	return nil
}

// List returns a user's archived periods, most recent first.
func (s *MemoryArchiveStore) List(_ context.Context, userID int64) ([]models.UsageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var list []models.UsageRecord
	for _, rec := range s.records {
		if rec.UserID == userID {
			list = append(list, rec)
		}
	}
	slices.SortStableFunc(list, func(a, b models.UsageRecord) int {
		if c := b.PeriodStart.Compare(a.PeriodStart); c != 0 {
			return c
		}
		return strings.Compare(string(a.Period), string(b.Period))
	})
	return list, nil
}
