// Package tests holds hand-written, thread-safe mocks shared by the test suites.
package tests

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"fleet/internal/dispatch"
	"fleet/internal/domain"
	"fleet/internal/mq"
	"fleet/internal/redis"
)

// Ensure mocks implement the interfaces they stand in for.
var (
	_ dispatch.Client              = (*MockDispatchClient)(nil)
	_ redis.LockStoreInterface     = (*MockLockStore)(nil)
	_ redis.SettingsCacheInterface = (*MockSettingsCache)(nil)
	_ mq.Publisher                 = (*MockPublisher)(nil)
)

// ──────────────────────────────────────────────
// MOCK DISPATCH CLIENT
// ──────────────────────────────────────────────

// MockDispatchClient is a mock implementation of dispatch.Client.
type MockDispatchClient struct {
	mu            sync.Mutex
	registrations []dispatch.DriverRegistration
	targets       map[string][]string
	unassigned    []string
	nextID        int

	// Drivers returned by ListDrivers.
	RemoteDrivers []dispatch.RemoteDriver

	// Counters
	RegisterCallCount   int32
	SetTargetsCallCount int32

	// Error injection
	RegisterError   error
	ListError       error
	SetTargetsError error
	UnassignError   error
}

// NewMockDispatchClient creates a new mock dispatch client.
func NewMockDispatchClient() *MockDispatchClient {
	return &MockDispatchClient{
		targets: make(map[string][]string),
	}
}

func (m *MockDispatchClient) RegisterDriver(ctx context.Context, reg dispatch.DriverRegistration) (string, error) {
	atomic.AddInt32(&m.RegisterCallCount, 1)
	if m.RegisterError != nil {
		return "", m.RegisterError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.registrations = append(m.registrations, reg)
	return fmt.Sprintf("dispatch-%d", m.nextID), nil
}

func (m *MockDispatchClient) ListDrivers(ctx context.Context) ([]dispatch.RemoteDriver, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]dispatch.RemoteDriver(nil), m.RemoteDrivers...), nil
}

func (m *MockDispatchClient) UnassignOrder(ctx context.Context, orderID string) error {
	if m.UnassignError != nil {
		return m.UnassignError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unassigned = append(m.unassigned, orderID)
	return nil
}

func (m *MockDispatchClient) SetOrderTargets(ctx context.Context, orderID string, driverIDs []string, notes string) error {
	atomic.AddInt32(&m.SetTargetsCallCount, 1)
	if m.SetTargetsError != nil {
		return m.SetTargetsError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targets[orderID] = append([]string(nil), driverIDs...)
	return nil
}

// Registrations returns the registrations received so far.
func (m *MockDispatchClient) Registrations() []dispatch.DriverRegistration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]dispatch.DriverRegistration(nil), m.registrations...)
}

// Targets returns the driver ids pushed for an order.
func (m *MockDispatchClient) Targets(orderID string) ([]string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids, ok := m.targets[orderID]
	return ids, ok
}

// Unassigned returns the orders unassigned so far.
func (m *MockDispatchClient) Unassigned() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.unassigned...)
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of redis.LockStoreInterface.
type MockLockStore struct {
	mu     sync.Mutex
	locks  map[string]heldLock
	tokens int

	// Counters
	AcquireCallCount int32
	ReleaseCallCount int32

	// Error injection
	AcquireError error

	// Force lock failure
	ForceAcquireFailure bool
}

type heldLock struct {
	token  string
	expiry time.Time
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]heldLock),
	}
}

func (m *MockLockStore) AcquireApprovalLock(ctx context.Context, driverKey string, ttl time.Duration) (string, bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return "", false, m.AcquireError
	}
	if m.ForceAcquireFailure {
		return "", false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if held, exists := m.locks[driverKey]; exists && time.Now().Before(held.expiry) {
		return "", false, nil
	}

	m.tokens++
	token := fmt.Sprintf("token-%d", m.tokens)
	m.locks[driverKey] = heldLock{token: token, expiry: time.Now().Add(ttl)}
	return token, true, nil
}

func (m *MockLockStore) ReleaseApprovalLock(ctx context.Context, driverKey, token string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if held, exists := m.locks[driverKey]; exists && held.token == token {
		delete(m.locks, driverKey)
	}
	return nil
}

// IsLocked checks if a driver is locked (for test assertions).
func (m *MockLockStore) IsLocked(driverKey string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	held, exists := m.locks[driverKey]
	return exists && time.Now().Before(held.expiry)
}

// ──────────────────────────────────────────────
// MOCK SETTINGS CACHE
// ──────────────────────────────────────────────

// MockSettingsCache is a mock implementation of SettingsCache.
type MockSettingsCache struct {
	mu       sync.Mutex
	settings *domain.OperationalSettings
	floor    int64

	// Counters
	GetCallCount        int32
	SetCallCount        int32
	InvalidateCallCount int32

	// Error injection
	GetError error
}

// NewMockSettingsCache creates a new mock settings cache.
func NewMockSettingsCache() *MockSettingsCache {
	return &MockSettingsCache{}
}

func (m *MockSettingsCache) Get(ctx context.Context) (*domain.OperationalSettings, error) {
	atomic.AddInt32(&m.GetCallCount, 1)
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.settings == nil {
		return nil, nil
	}
	copy := *m.settings
	return &copy, nil
}

func (m *MockSettingsCache) Set(ctx context.Context, settings *domain.OperationalSettings) (bool, error) {
	atomic.AddInt32(&m.SetCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if settings.Version < m.floor {
		return false, nil
	}
	copy := *settings
	m.settings = &copy
	return true, nil
}

func (m *MockSettingsCache) Invalidate(ctx context.Context, version int64) error {
	atomic.AddInt32(&m.InvalidateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if version > m.floor {
		m.floor = version
	}
	m.settings = nil
	return nil
}

// Floor returns the newest invalidated version.
func (m *MockSettingsCache) Floor() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.floor
}

// Cached reports whether the cache currently holds settings.
func (m *MockSettingsCache) Cached() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings != nil
}

// ──────────────────────────────────────────────
// MOCK PUBLISHER
// ──────────────────────────────────────────────

// PublishedMessage is a message captured by MockPublisher.
type PublishedMessage struct {
	RoutingKey string
	Body       []byte
}

// MockPublisher is a mock implementation of mq.Publisher.
type MockPublisher struct {
	mu       sync.Mutex
	messages []PublishedMessage

	// Error injection
	PublishError error
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	if m.PublishError != nil {
		return m.PublishError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, PublishedMessage{RoutingKey: routingKey, Body: append([]byte(nil), body...)})
	return nil
}

// Messages returns the messages published so far.
func (m *MockPublisher) Messages() []PublishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishedMessage(nil), m.messages...)
}

// Count returns how many messages were published under routingKey.
func (m *MockPublisher) Count(routingKey string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.messages {
		if msg.RoutingKey == routingKey {
			n++
		}
	}
	return n
}
