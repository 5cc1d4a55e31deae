// Package ledger records accepted topics and keywords and flags new
// candidates that are too similar to something already used.
package ledger

import (
	"blogsmith/internal/logger"
	"blogsmith/internal/similarity"
	"blogsmith/internal/store"
	"encoding/json"
	"sync"
)

// DefaultCapacity is the number of entries kept before the oldest is evicted.
const DefaultCapacity = 1000

// PolicyReader reports whether duplicate prevention is currently on.
type PolicyReader interface {
	PreventDuplicates() bool
}

// Options tunes a ledger.
type Options struct {
	Threshold float64 // similarity ratio at which a candidate is a duplicate
	Capacity  int     // maximum stored entries, FIFO eviction
}

// Ledger is a capped, ordered list of used texts persisted as a JSON array
// under a single store key.
type Ledger struct {
	kv        store.KV
	key       string
	policy    PolicyReader
	threshold float64
	capacity  int
	mu        sync.Mutex
}

// New creates a ledger stored under key.
func New(kv store.KV, key string, policy PolicyReader, opts Options) *Ledger {
	if opts.Threshold <= 0 {
		opts.Threshold = similarity.DefaultThreshold
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	return &Ledger{
		kv:        kv,
		key:       key,
		policy:    policy,
		threshold: opts.Threshold,
		capacity:  opts.Capacity,
	}
}

// Key returns the store key backing the ledger.
func (l *Ledger) Key() string {
	return l.key
}

// Entries returns the stored entries, oldest first. Unreadable data is
// logged and treated as an empty ledger.
func (l *Ledger) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()
}

// Len returns the number of stored entries.
func (l *Ledger) Len() int {
	return len(l.Entries())
}

// IsDuplicate reports whether candidate is at least threshold-similar to a
// stored entry. It is always false while duplicate prevention is off.
func (l *Ledger) IsDuplicate(candidate string) bool {
	if l.policy != nil && !l.policy.PreventDuplicates() {
		return false
	}
	for _, e := range l.Entries() {
		if similarity.IsDuplicate(candidate, e, l.threshold) {
			return true
		}
	}
	return false
}

// Match returns the most similar stored entry and its ratio, regardless of policy.
func (l *Ledger) Match(candidate string) (string, float64) {
	return similarity.Best(candidate, l.Entries())
}

// Filter splits candidates into those not flagged and those flagged as
// duplicates, preserving order.
func (l *Ledger) Filter(candidates []string) (fresh, duplicates []string) {
	if l.policy != nil && !l.policy.PreventDuplicates() {
		return append([]string{}, candidates...), nil
	}
	entries := l.Entries()
	for _, c := range candidates {
		dup := false
		for _, e := range entries {
			if similarity.IsDuplicate(c, e, l.threshold) {
				dup = true
				break
			}
		}
		if dup {
			duplicates = append(duplicates, c)
		} else {
			fresh = append(fresh, c)
		}
	}
	return fresh, duplicates
}

// Record appends candidate unless an entry equal to it after normalization
// already exists. The oldest entries are evicted beyond capacity. Nothing is
// recorded while duplicate prevention is off.
func (l *Ledger) Record(candidate string) {
	if l.policy != nil && !l.policy.PreventDuplicates() {
		return
	}
	if similarity.Normalize(candidate) == "" {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.load()
	for _, e := range entries {
		if similarity.Equal(e, candidate) {
			return
		}
	}

	entries = append(entries, candidate)
	if over := len(entries) - l.capacity; over > 0 {
		entries = entries[over:]
	}
	l.save(entries)
}

// Clear removes every entry.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.kv.Remove(l.key)
	logger.Info("Ledger cleared", "key", l.key)
}

func (l *Ledger) load() []string {
	raw, ok := l.kv.Get(l.key)
	if !ok || raw == "" {
		return []string{}
	}
	var entries []string
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		logger.Error("Ledger data unreadable, treating as empty", err, "key", l.key)
		return []string{}
	}
	return entries
}

func (l *Ledger) save(entries []string) {
	data, err := json.Marshal(entries)
	if err != nil {
		logger.Error("Ledger encode failed", err, "key", l.key)
		return
	}
	l.kv.Set(l.key, string(data))
}
