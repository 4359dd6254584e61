package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"NewsIngestor/internal/domain"
)

// Request carries all parameters required to read one feed endpoint.
type Request struct {
	SourceID   string
	SourceName string
	FeedURL    string
}

// Scanner captures a single strategy implementation (rss, search APIs, etc.).
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) ([]domain.FeedEntry, error)
}

// ErrUnknownStrategy is returned when a source names a scanner nobody registered.
var ErrUnknownStrategy = errors.New("unknown scanner strategy")

// Registry maps strategy names, compared case-insensitively, to scanners.
type Registry struct {
	mu       sync.RWMutex
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[key(scanner.Name())] = scanner
}

// Resolve returns the scanner registered under name.
func (r *Registry) Resolve(name string) (Scanner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if scanner, ok := r.scanners[key(name)]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
}

// Names lists registered strategies in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.scanners))
	for name := range r.scanners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
