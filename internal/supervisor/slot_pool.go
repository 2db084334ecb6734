package supervisor

import (
	"context"
	"sync"
)

// slotPool is a semaphore with explicit ownership bounding concurrent
// pipeline builds. Each acquisition is owned by a flow index; a flow
// never holds two slots.
type slotPool struct {
	mu         sync.Mutex
	cond       *sync.Cond
	maxCap     int64
	usage      int64
	acquiredBy map[int64]struct{} // active ownership table
}

// newSlotPool initializes the pool with a given capacity.
func newSlotPool(max int64) *slotPool {
	s := &slotPool{
		maxCap:     max,
		acquiredBy: make(map[int64]struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// acquire blocks until usage < maxCap and registers id as the owner, or
// until ctx is done. Duplicate acquisition by the same id is a protocol
// violation.
func (s *slotPool) acquire(ctx context.Context, id int64) error {
	stop := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	defer stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, holds := s.acquiredBy[id]; holds {
		panic("slotPool: id already holds a slot")
	}

	for s.usage >= s.maxCap {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.cond.Wait()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.usage++
	s.acquiredBy[id] = struct{}{}
	return nil
}

// release frees the slot owned by id.
// Releasing an id that does not own a slot is an invariant violation.
func (s *slotPool) release(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, holds := s.acquiredBy[id]; !holds {
		panic("slotPool: release for non-owner id")
	}

	delete(s.acquiredBy, id)
	s.usage--
	s.cond.Broadcast()
}

// current returns the number of active acquired slots.
func (s *slotPool) current() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}
