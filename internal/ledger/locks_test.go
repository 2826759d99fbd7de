package ledger

import (
	"sync"
	"testing"
)

func TestKeyLocks_SerializesSameKey(t *testing.T) {
	locks := newKeyLocks()
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("income:ana:05/2024")
			v := counter
			counter = v + 1
			unlock()
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Fatalf("counter = %d, want 50", counter)
	}
	if n := locks.size(); n != 0 {
		t.Fatalf("%d keys left after release", n)
	}
}

func TestKeyLocks_MultipleKeys(t *testing.T) {
	locks := newKeyLocks()
	var wg sync.WaitGroup
	shared := 0
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(purchaseRangeKey, purchaseKey(7))
			shared++
			unlock()
		}()
		go func() {
			defer wg.Done()
			// Reverse order and a duplicate must not deadlock.
			unlock := locks.Lock(purchaseKey(7), purchaseRangeKey, purchaseKey(7))
			shared++
			unlock()
		}()
	}
	wg.Wait()
	if shared != 40 {
		t.Fatalf("shared = %d, want 40", shared)
	}
	if n := locks.size(); n != 0 {
		t.Fatalf("%d keys left after release", n)
	}
}
