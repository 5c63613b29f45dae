package keyedmutex

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMap_SerializesSameKey(t *testing.T) {
	locks := New[string]()
	var (
		inside  atomic.Int32
		overlap atomic.Bool
		wg      sync.WaitGroup
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("flood")
			defer unlock()
			if inside.Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()

	if overlap.Load() {
		t.Error("two holders of the same key ran at once")
	}
	if n := locks.len(); n != 0 {
		t.Errorf("expected idle keys to be dropped, %d left", n)
	}
}

func TestMap_DifferentKeysDoNotBlock(t *testing.T) {
	locks := New[string]()
	unlockA := locks.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := locks.Lock("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on b waited for a")
	}
}
