package orders

import (
	"sync"
	"time"

	"world-state-engine/internal/core/domain"
)

type sighting struct {
	orderID domain.ID
	seenAt  time.Time
}

// dedupWindow remembers fingerprints for a fixed window.
type dedupWindow struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]sighting
}

func newDedupWindow(window time.Duration) *dedupWindow {
	return &dedupWindow{
		window: window,
		seen:   make(map[string]sighting),
	}
}

// lookup returns the earlier order that carried fingerprint inside the window, if any.
// It does not remember orderID; call record once the order's checklist is stored.
func (d *dedupWindow) lookup(fingerprint string, orderID domain.ID, now time.Time) (domain.ID, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.evictOld(now)

	if prev, ok := d.seen[fingerprint]; ok && prev.orderID != orderID {
		return prev.orderID, true
	}
	return domain.NilID, false
}

// record remembers fingerprint for orderID unless another order already holds it.
func (d *dedupWindow) record(fingerprint string, orderID domain.ID, now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.evictOld(now)

	if _, ok := d.seen[fingerprint]; ok {
		return
	}
	d.seen[fingerprint] = sighting{orderID: orderID, seenAt: now}
}

func (d *dedupWindow) evictOld(now time.Time) {
	for fp, s := range d.seen {
		if now.Sub(s.seenAt) > d.window {
			delete(d.seen, fp)
		}
	}
}
