package upsell

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	mu    sync.Mutex
	items []string
}

func (r *recorder) offer(item string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, item)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func TestScheduler_FiresOncePerPurchase(t *testing.T) {
	rec := &recorder{}
	s := NewScheduler(10*time.Millisecond, rec.offer)

	s.PurchaseSucceeded("A")
	s.PurchaseSucceeded("B")

	assert.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return rec.count() > 2 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Zero(t, s.Pending())
}

func TestScheduler_DoesNotFireBeforeDelay(t *testing.T) {
	rec := &recorder{}
	s := NewScheduler(time.Hour, rec.offer)
	t.Cleanup(s.Cancel)

	s.PurchaseSucceeded("A")
	assert.Never(t, func() bool { return rec.count() > 0 }, 30*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, 1, s.Pending())
}

func TestScheduler_CancelStopsPendingOffers(t *testing.T) {
	rec := &recorder{}
	s := NewScheduler(20*time.Millisecond, rec.offer)

	s.PurchaseSucceeded("A")
	s.Cancel()

	assert.Never(t, func() bool { return rec.count() > 0 }, 80*time.Millisecond, 5*time.Millisecond)

	s.PurchaseSucceeded("B")
	assert.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_LifetimeGrantSuppressesOffers(t *testing.T) {
	rec := &recorder{}
	s := NewScheduler(20*time.Millisecond, rec.offer)

	s.PurchaseSucceeded("A")
	s.LifetimeGranted()
	s.PurchaseSucceeded("B")

	assert.Never(t, func() bool { return rec.count() > 0 }, 80*time.Millisecond, 5*time.Millisecond)
	assert.Zero(t, s.Pending())
}

func TestNewScheduler_NegativeDelayUsesDefault(t *testing.T) {
	s := NewScheduler(-1, func(string) {})
	assert.Equal(t, DefaultDelay, s.Delay())
}
