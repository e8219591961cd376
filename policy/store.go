package policy

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// STORE - Persistence for raw settings
// =============================================================================

// Store persists raw settings. Implementations: store/sqlite (production),
// MemoryStore below (tests/dev).
type Store interface {
	// GetAll returns every stored setting. Absent keys are simply missing;
	// FromSettings fills in defaults.
	GetAll(ctx context.Context) ([]Setting, error)

	// Put upserts one setting. Callers validate first (Validate).
	Put(ctx context.Context, s Setting) error
}

// =============================================================================
// PROVIDER - Read path used by the engine
// =============================================================================

// Provider hands the engine a typed settings snapshot. Every transition
// reads through a Provider; writes race with reads but a few seconds of
// staleness is acceptable.
type Provider interface {
	Current(ctx context.Context) (Settings, error)
}

// Static is a fixed-settings Provider for tests.
type Static struct {
	Settings Settings
}

func (s *Static) Current(context.Context) (Settings, error) {
	return s.Settings, nil
}

// =============================================================================
// CACHED PROVIDER - TTL snapshot over a Store
// =============================================================================

// CachedProvider reads the store at most once per TTL. On a refresh failure
// it serves the last good snapshot rather than failing transitions.
type CachedProvider struct {
	store Store
	ttl   time.Duration

	mu        sync.Mutex
	cached    Settings
	hasCached bool
	fetchedAt time.Time
}

func NewCachedProvider(store Store, ttl time.Duration) *CachedProvider {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &CachedProvider{store: store, ttl: ttl}
}

func (p *CachedProvider) Current(ctx context.Context) (Settings, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.hasCached && time.Since(p.fetchedAt) < p.ttl {
		return p.cached, nil
	}

	raw, err := p.store.GetAll(ctx)
	if err != nil {
		if p.hasCached {
			return p.cached, nil // stale beats down
		}
		return Settings{}, err
	}

	p.cached = FromSettings(raw)
	p.hasCached = true
	p.fetchedAt = time.Now()
	return p.cached, nil
}

// Invalidate drops the cached snapshot so the next read hits the store.
// Called after an admin settings write.
func (p *CachedProvider) Invalidate() {
	p.mu.Lock()
	p.hasCached = false
	p.mu.Unlock()
}

// =============================================================================
// MEMORY STORE - For tests and development
// =============================================================================

type MemoryStore struct {
	mu       sync.RWMutex
	settings map[string]Setting
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{settings: make(map[string]Setting)}
}

func (m *MemoryStore) GetAll(context.Context) ([]Setting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Setting, 0, len(m.settings))
	for _, s := range m.settings {
		out = append(out, s)
	}
	return out, nil
}

func (m *MemoryStore) Put(_ context.Context, s Setting) error {
	m.mu.Lock()
	m.settings[s.Key] = s
	m.mu.Unlock()
	return nil
}
