package ledger

import (
	"sort"
	"sync"
)

// keyLocks serializes writers per logical row key (person+month, ledger id,
// fixed-expense id) inside one process.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*keyLock)}
}

// Lock acquires every key in sorted order and returns the release func.
func (k *keyLocks) Lock(keys ...string) func() {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	sorted = dedupe(sorted)

	held := make([]*keyLock, 0, len(sorted))
	for _, key := range sorted {
		k.mu.Lock()
		l, ok := k.locks[key]
		if !ok {
			l = &keyLock{}
			k.locks[key] = l
		}
		l.refs++
		k.mu.Unlock()

		l.mu.Lock()
		held = append(held, l)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			l := held[i]
			l.mu.Unlock()
			k.mu.Lock()
			l.refs--
			if l.refs == 0 {
				delete(k.locks, sorted[i])
			}
			k.mu.Unlock()
		}
	}
}

// size reports how many keys are currently tracked.
func (k *keyLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}

func incomeKey(person string, m string) string { return "income:" + person + ":" + m }
func purchaseKey(id int64) string            { return "purchase:" + formatID(id) }
func fixedKey(id string) string              { return "fixed:" + id }

const (
	// Structural keys guard id allocation and row deletion, which shift or
	// extend a whole range.
	incomeRangeKey   = "range:income"
	purchaseRangeKey = "range:purchases"
	fixedRangeKey    = "range:fixed"
)
