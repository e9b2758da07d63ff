// Package gc implements muna's paged, per-type mark/sweep allocator:
// fixed-size pages of 4096 objects each, tracked by a 64-group
// occupancy bitmap, reclaimed once a page has filled and then
// emptied. Objects are addressed by Ref[T] — a (page, slot) index
// pair — rather than a raw pointer, so a Pool can be copied, resized,
// or (in a future incarnation) compacted without invalidating handles
// held elsewhere; the tradeoff is one more indirection on every
// access than a bare pointer would cost.
package gc

import "sync"

// Ref is a handle to one object living in a Pool. The zero Ref is not
// valid; always obtain one from Pool.Alloc. Ref is comparable, so two
// Refs to the same object compare equal — this is what backs Value's
// heap-kind identity equality (see internal/value).
type Ref[T Marked] struct {
	pool *Pool[T]
	page int
	slot int
}

// Get returns a pointer to the referenced object, valid for as long
// as the owning Pool is alive and the object has not been swept.
func (r Ref[T]) Get() *T {
	return &r.pool.pages[r.page].data[r.slot]
}

// Pool is a per-type paged allocator, guarded by a mutex per §5's
// "single exclusive lock for the duration of any allocation or sweep"
// resource model — the GC and the mutator never run concurrently.
type Pool[T Marked] struct {
	mu    sync.Mutex
	pages []*page[T]
}

// Alloc stores val in the first page with a free slot, allocating a
// new page if every existing one is full (or there are none yet), and
// returns a Ref to it.
func (pl *Pool[T]) Alloc(val T) Ref[T] {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	for i, pg := range pl.pages {
		if pg != nil && !pg.isFull() {
			slot := pg.alloc()
			pg.data[slot] = val
			return Ref[T]{pool: pl, page: i, slot: slot}
		}
	}

	pg := newPage[T]()
	slot := pg.alloc()
	pg.data[slot] = val
	for i, existing := range pl.pages {
		if existing == nil {
			pl.pages[i] = pg
			return Ref[T]{pool: pl, page: i, slot: slot}
		}
	}
	pl.pages = append(pl.pages, pg)
	return Ref[T]{pool: pl, page: len(pl.pages) - 1, slot: slot}
}

// Sweep runs one mark/sweep pass: every page sweeps its own occupancy
// bitmap, and any page that has filled and then emptied is released.
// Callers must have already completed the mark phase (walking live
// roots and calling Mark on everything reachable) before calling
// Sweep.
func (pl *Pool[T]) Sweep() {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	for i, pg := range pl.pages {
		if pg == nil {
			continue
		}
		pg.sweep()
		if pg.shouldDealloc() {
			pl.pages[i] = nil
		}
	}
}

// Live reports the total number of currently allocated objects across
// all pages — used by tests and by the CLI's diagnostic output, never
// by the mutator's hot path.
func (pl *Pool[T]) Live() int {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	n := 0
	for _, pg := range pl.pages {
		if pg != nil {
			n += pg.allocCount
		}
	}
	return n
}
