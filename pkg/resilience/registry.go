package resilience

import (
	"sync"

	"github.com/fortresslabs/bastion/pkg/common/logging"
)

// PoolEntry pairs a worker pool with its admission gate. Entries are shared
// by reference across every caller using the same pool id.
type PoolEntry struct {
	ID   string
	Pool *WorkerPool
	Gate *AdmissionGate

	maxConcurrent int64
	maxQueue      int64
}

// PoolRegistry is a process-wide mapping from pool identifier to PoolEntry.
// Entries are created lazily, never removed, and never resized: the first
// caller to create an id fixes its capacities for the process lifetime.
type PoolRegistry struct {
	mu      sync.RWMutex
	entries map[string]*PoolEntry
	logger  *logging.Logger
}

// NewPoolRegistry creates an empty registry.
func NewPoolRegistry() *PoolRegistry {
	return &PoolRegistry{
		entries: make(map[string]*PoolEntry),
		logger:  logging.GetGlobalLogger().WithComponent("registry"),
	}
}

// GetOrCreate returns the entry for id, constructing it on first use. The
// call is atomic with respect to concurrent callers: exactly one entry is
// ever constructed per id, and all callers observe the same instance.
// Capacities passed after the first call are ignored; a mismatch is logged
// since silently dropping them has surprised callers before.
func (r *PoolRegistry) GetOrCreate(id string, maxConcurrent, maxQueue int64) *PoolEntry {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if maxQueue < 1 {
		maxQueue = 1
	}

	r.mu.RLock()
	entry, ok := r.entries[id]
	r.mu.RUnlock()
	if ok {
		r.warnOnMismatch(entry, maxConcurrent, maxQueue)
		return entry
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[id]; ok {
		r.warnOnMismatch(entry, maxConcurrent, maxQueue)
		return entry
	}

	entry = &PoolEntry{
		ID:            id,
		Pool:          newWorkerPool(id, maxConcurrent, maxQueue),
		Gate:          NewAdmissionGate(maxConcurrent),
		maxConcurrent: maxConcurrent,
		maxQueue:      maxQueue,
	}
	r.entries[id] = entry
	r.logger.Debug("pool created", map[string]interface{}{
		"pool_id":        id,
		"max_concurrent": maxConcurrent,
		"max_queue":      maxQueue,
	})
	return entry
}

// Get returns the entry for id, or a PoolNotFoundError if it was never
// created.
func (r *PoolRegistry) Get(id string) (*PoolEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	if !ok {
		return nil, &PoolNotFoundError{PoolID: id}
	}
	return entry, nil
}

func (r *PoolRegistry) warnOnMismatch(entry *PoolEntry, maxConcurrent, maxQueue int64) {
	if entry.maxConcurrent != maxConcurrent || entry.maxQueue != maxQueue {
		r.logger.Warn("pool already exists with different capacities, keeping original", map[string]interface{}{
			"pool_id":                  entry.ID,
			"max_concurrent":           entry.maxConcurrent,
			"max_queue":                entry.maxQueue,
			"requested_max_concurrent": maxConcurrent,
			"requested_max_queue":      maxQueue,
		})
	}
}

var (
	defaultRegistry     *PoolRegistry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the process-wide registry backing executors that
// were not given one explicitly. It is initialised on first access and torn
// down only at process exit.
func DefaultRegistry() *PoolRegistry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewPoolRegistry()
	})
	return defaultRegistry
}
