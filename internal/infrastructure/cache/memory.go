package cache

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"NewsIngestor/internal/ports"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is a process-local cache used when no redis URL is configured.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

var _ ports.Cache = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]entry), now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

// Set stores value; a zero ttl never expires.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

// separatorStandIn replaces '/' before matching; path.Match never lets '*' cross a '/',
// while redis globs treat it like any other byte.
const separatorStandIn = "\x00"

func globMatch(pattern, key string) (bool, error) {
	return path.Match(
		strings.ReplaceAll(pattern, "/", separatorStandIn),
		strings.ReplaceAll(key, "/", separatorStandIn),
	)
}

// Invalidate removes keys matching a redis-style glob.
func (m *Memory) Invalidate(_ context.Context, pattern string) (int, error) {
	if _, err := globMatch(pattern, ""); err != nil {
		return 0, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for key := range m.entries {
		if ok, _ := globMatch(pattern, key); ok {
			delete(m.entries, key)
			deleted++
		}
	}
	return deleted, nil
}
