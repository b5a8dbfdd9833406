package picking

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
)

// ErrOrderCompleted is returned when mutating a session whose order already
// completed. Completion is one-way; a finished session is replaced by
// loading a new order, never mutated in place.
var ErrOrderCompleted = errors.New("pick order already completed")

// Session wraps one order's in-progress state. The ordered item list is the
// single source of the "current item": the first item not yet scanned.
type Session struct {
	mu    sync.Mutex
	order Order
	clock clockwork.Clock
}

// NewSession starts a session over an order.
func NewSession(order Order, clock clockwork.Clock) *Session {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if order.Status == StatusPending {
		order.Status = StatusInProgress
	}
	return &Session{order: order, clock: clock}
}

// Order returns a snapshot of the order.
func (s *Session) Order() Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.order
	out.Items = make([]Item, len(s.order.Items))
	copy(out.Items, s.order.Items)
	return out
}

// CurrentItem returns the first unscanned item. ok is false when every item
// has been scanned.
func (s *Session) CurrentItem() (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.order.Items {
		if !item.Scanned {
			return item, true
		}
	}
	return Item{}, false
}

// Progress returns the scanned and total item counts.
func (s *Session) Progress() (scanned, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.order.Items {
		if item.Scanned {
			scanned++
		}
	}
	return scanned, len(s.order.Items)
}

// MarkScanned flags the item with the given product ID as scanned, stamping
// the scan time.
func (s *Session) MarkScanned(productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.order.Status == StatusCompleted {
		return ErrOrderCompleted
	}
	for i := range s.order.Items {
		if s.order.Items[i].ProductID == productID {
			now := s.clock.Now()
			s.order.Items[i].Scanned = true
			s.order.Items[i].ScannedAt = &now
			return nil
		}
	}
	return fmt.Errorf("no item with product id %q in order %s", productID, s.order.ID)
}

// IsComplete reports whether every item has been scanned.
func (s *Session) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.order.Items {
		if !item.Scanned {
			return false
		}
	}
	return len(s.order.Items) > 0
}

// Complete transitions the order to completed. The transition is one-way;
// a second call returns ErrOrderCompleted.
func (s *Session) Complete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.order.Status == StatusCompleted {
		return ErrOrderCompleted
	}
	now := s.clock.Now()
	s.order.Status = StatusCompleted
	s.order.CompletedAt = &now
	return nil
}

// Completed reports whether the order has transitioned to completed.
func (s *Session) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Status == StatusCompleted
}
