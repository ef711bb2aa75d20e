package repository

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/FilipeAphrody/lifeline-auth/internal/domain"
)

// MemoryAuditRepo keeps audit entries in process memory.
type MemoryAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func NewMemoryAuditRepo() *MemoryAuditRepo {
	return &MemoryAuditRepo{}
}

func (r *MemoryAuditRepo) Append(_ context.Context, entry domain.AuditEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	entry.Metadata = maps.Clone(entry.Metadata)

	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
	return nil
}

// Entries returns a snapshot of everything appended so far.
func (r *MemoryAuditRepo) Entries() []domain.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.AuditEntry, len(r.entries))
	copy(out, r.entries)
	return out
}
