// Package memory provides an in-process implementation of the driver, ledger
// and settings repositories. Writes for the same driver are serialized by a
// per-key mutex.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"fleet/internal/domain"
	"fleet/internal/repository"
)

// Store keeps drivers, transactions and settings in memory.
type Store struct {
	mu           sync.RWMutex
	drivers      map[string]*domain.Driver
	transactions map[string][]domain.Transaction
	settings     *domain.OperationalSettings

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	now func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		drivers:      make(map[string]*domain.Driver),
		transactions: make(map[string][]domain.Transaction),
		locks:        make(map[string]*sync.Mutex),
		now:          time.Now,
	}
}

// Ensure interfaces are satisfied.
var (
	_ repository.DriverRepository   = (*Store)(nil)
	_ repository.LedgerStore        = (*Store)(nil)
	_ repository.SettingsRepository = (*Store)(nil)
)

// Create adds a newly registered driver.
func (s *Store) Create(_ context.Context, driver *domain.Driver) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.drivers[driver.Key]; exists {
		return repository.ErrAlreadyExists
	}
	if driver.ExternalDispatchID != "" {
		for _, d := range s.drivers {
			if d.ExternalDispatchID == driver.ExternalDispatchID {
				return repository.ErrAlreadyExists
			}
		}
	}
	stored := *driver
	s.drivers[driver.Key] = &stored
	return nil
}

// GetByKey retrieves a driver by key.
func (s *Store) GetByKey(_ context.Context, key string) (*domain.Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.drivers[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *d
	return &copy, nil
}

// GetByExternalDispatchID retrieves a driver by the dispatch provider's id.
func (s *Store) GetByExternalDispatchID(_ context.Context, externalID string) (*domain.Driver, error) {
	if externalID == "" {
		return nil, repository.ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.drivers {
		if d.ExternalDispatchID == externalID {
			copy := *d
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

// List retrieves drivers ordered by key, optionally filtered by status.
func (s *Store) List(_ context.Context, status domain.OperationalStatus) ([]*domain.Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Driver, 0, len(s.drivers))
	for _, d := range s.drivers {
		if status != "" && d.OperationalStatus != status {
			continue
		}
		copy := *d
		result = append(result, &copy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

// ListTransactions retrieves a driver's ledger in commit order.
func (s *Store) ListTransactions(_ context.Context, key string, limit int) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.drivers[key]; !ok {
		return nil, repository.ErrNotFound
	}

	txns := s.transactions[key]
	if limit > 0 && len(txns) > limit {
		txns = txns[len(txns)-limit:]
	}
	result := make([]*domain.Transaction, 0, len(txns))
	for i := range txns {
		t := txns[i]
		result = append(result, &t)
	}
	return result, nil
}

// GetDriver implements repository.LedgerStore.
func (s *Store) GetDriver(ctx context.Context, key string) (*domain.Driver, error) {
	return s.GetByKey(ctx, key)
}

// FindDriverByExternalDispatchID implements repository.LedgerStore.
func (s *Store) FindDriverByExternalDispatchID(ctx context.Context, externalID string) (*domain.Driver, error) {
	return s.GetByExternalDispatchID(ctx, externalID)
}

// WithDriverTransaction implements repository.LedgerStore.
func (s *Store) WithDriverTransaction(ctx context.Context, key string, fn func(tx repository.DriverTx) error) error {
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	driver, err := s.GetByKey(ctx, key)
	if err != nil {
		return err
	}

	buf := repository.NewTxBuffer(*driver, func(_ context.Context, orderID string, kinds []domain.TransactionKind) (bool, error) {
		return s.hasOrder(key, orderID, kinds), nil
	}, s.now)

	if err := fn(buf); err != nil {
		return err
	}
	if !buf.Changed() {
		return nil
	}

	return s.commit(buf)
}

// commit writes the buffered driver and transactions under the map lock.
func (s *Store) commit(buf *repository.TxBuffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := buf.Result()
	existing := s.transactions[result.Key]
	for _, t := range buf.Transactions() {
		if t.ExternalOrderID == "" {
			continue
		}
		for _, e := range existing {
			if e.ExternalOrderID == t.ExternalOrderID && e.Kind == t.Kind {
				return repository.ErrDuplicateOrder
			}
		}
	}
	if result.ExternalDispatchID != "" {
		for k, d := range s.drivers {
			if k != result.Key && d.ExternalDispatchID == result.ExternalDispatchID {
				return repository.ErrAlreadyExists
			}
		}
	}

	s.drivers[result.Key] = &result
	s.transactions[result.Key] = append(existing, buf.Transactions()...)
	return nil
}

func (s *Store) hasOrder(key, orderID string, kinds []domain.TransactionKind) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.transactions[key] {
		if t.ExternalOrderID == orderID && repository.MatchesKind(t.Kind, kinds) {
			return true
		}
	}
	return false
}

func (s *Store) keyLock(key string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// Get implements repository.SettingsRepository.
func (s *Store) Get(_ context.Context) (*domain.OperationalSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.settings == nil {
		return nil, repository.ErrNotFound
	}
	copy := *s.settings
	copy.Incentives = append([]domain.Incentive(nil), s.settings.Incentives...)
	return &copy, nil
}

// Save implements repository.SettingsRepository.
func (s *Store) Save(_ context.Context, settings *domain.OperationalSettings, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	if s.settings != nil {
		current = s.settings.Version
	}
	if current != expectedVersion {
		return repository.ErrConflict
	}

	stored := *settings
	stored.Incentives = append([]domain.Incentive(nil), settings.Incentives...)
	stored.Version = expectedVersion + 1
	stored.UpdatedAt = s.now().UTC()
	s.settings = &stored

	settings.Version = stored.Version
	settings.UpdatedAt = stored.UpdatedAt
	return nil
}
