package service

import (
	"fmt"
	"sync"
	"testing"
)

func TestShardedMap_UpdateAndDelete(t *testing.T) {
	m := newShardedMap[int](4)

	for i := 0; i < 100; i++ {
		m.Set(fmt.Sprintf("k%d", i), i)
	}
	if m.Len() != 100 {
		t.Fatalf("expected 100 entries, got %d", m.Len())
	}

	got := m.Update("k1", func(old int, ok bool) (int, bool) {
		if !ok {
			t.Fatal("expected k1 to exist")
		}
		return old + 10, true
	})
	if got != 11 {
		t.Errorf("expected 11, got %d", got)
	}

	m.Update("k2", func(int, bool) (int, bool) { return 0, false })
	if _, ok := m.Get("k2"); ok {
		t.Error("expected k2 to be deleted")
	}

	removed := m.DeleteIf(func(_ string, v int) bool { return v >= 50 })
	if removed != 50 {
		t.Errorf("expected 50 removed, got %d", removed)
	}
}

func TestShardedMap_ConcurrentUpdates(t *testing.T) {
	m := newShardedMap[int](8)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Update("counter", func(old int, _ bool) (int, bool) { return old + 1, true })
			}
		}()
	}
	wg.Wait()

	v, _ := m.Get("counter")
	if v != 5000 {
		t.Fatalf("expected 5000, got %d", v)
	}
}

func TestKeyedMutex_SerialisesSameKey(t *testing.T) {
	km := newKeyedMutex()
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("acme\x00V1")
			counter++
			unlock()
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("expected 50, got %d", counter)
	}
	if len(km.locks) != 0 {
		t.Fatalf("expected lock table to be empty, got %d", len(km.locks))
	}
}
