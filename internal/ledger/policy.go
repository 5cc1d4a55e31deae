package ledger

import (
	"blogsmith/internal/logger"
	"blogsmith/internal/store"
	"strconv"
	"sync"
)

// Policy is the persisted "prevent duplicates" flag. Switching it from
// prevent to allow clears every tracked ledger.
type Policy struct {
	kv       store.KV
	fallback bool
	mu       sync.Mutex
	ledgers  []*Ledger
}

// NewPolicy creates a policy whose value defaults to fallback until set.
func NewPolicy(kv store.KV, fallback bool) *Policy {
	return &Policy{kv: kv, fallback: fallback}
}

// Track registers ledgers cleared when duplicates become allowed.
func (p *Policy) Track(ledgers ...*Ledger) {
	p.mu.Lock()
	p.ledgers = append(p.ledgers, ledgers...)
	p.mu.Unlock()
}

// PreventDuplicates reports the current flag value.
func (p *Policy) PreventDuplicates() bool {
	raw, ok := p.kv.Get(store.KeyPreventDuplicates)
	if !ok {
		return p.fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return p.fallback
	}
	return v
}

// SetPreventDuplicates stores the flag. It returns true when the change
// cleared the ledgers.
func (p *Policy) SetPreventDuplicates(prevent bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	was := p.PreventDuplicates()
	p.kv.Set(store.KeyPreventDuplicates, strconv.FormatBool(prevent))

	if was && !prevent {
		for _, l := range p.ledgers {
			l.Clear()
		}
		logger.Info("Duplicate prevention disabled, ledgers cleared", "ledgers", len(p.ledgers))
		return true
	}
	return false
}
