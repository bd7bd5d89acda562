package chat

import (
	"log/slog"
	"sync"

	"github.com/samber/lo"
)

// PresenceTracker reference-counts online names across sessions.
type PresenceTracker struct {
	mu     sync.Mutex
	counts map[string]int
	order  []string
	log    *slog.Logger
}

func NewPresenceTracker(log *slog.Logger) *PresenceTracker {
	if log == nil {
		log = slog.Default()
	}
	return &PresenceTracker{
		counts: make(map[string]int),
		log:    log,
	}
}

// MarkOnline reports whether name just came online.
func (p *PresenceTracker) MarkOnline(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.counts[name]++
	if p.counts[name] == 1 {
		p.order = append(p.order, name)
		return true
	}
	return false
}

// MarkOffline reports whether name just went offline.
func (p *PresenceTracker) MarkOffline(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	count, ok := p.counts[name]
	if !ok || count <= 0 {
		p.log.Error("presence count below zero, ignoring", "user", name)
		return false
	}
	if count > 1 {
		p.counts[name] = count - 1
		return false
	}
	delete(p.counts, name)
	p.order = lo.Without(p.order, name)
	return true
}

// Snapshot returns online names in the order they came online.
func (p *PresenceTracker) Snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot := make([]string, len(p.order))
	copy(snapshot, p.order)
	return snapshot
}

func (p *PresenceTracker) Count(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[name]
}
