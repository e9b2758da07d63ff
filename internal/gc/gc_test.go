package gc

import "testing"

type obj struct {
	marked bool
	id     int
}

func (o *obj) IsMarked() bool { return o.marked }
func (o *obj) Mark()          { o.marked = true }
func (o *obj) Unmark()        { o.marked = false }

func TestAllocSweepUnmarkedReclaimed(t *testing.T) {
	var pool Pool[*obj]
	a := pool.Alloc(&obj{id: 1})
	b := pool.Alloc(&obj{id: 2})
	(*b.Get()).Mark()

	pool.Sweep()

	if pool.Live() != 1 {
		t.Fatalf("expected 1 survivor, got %d", pool.Live())
	}
	if (*b.Get()).marked {
		t.Fatal("surviving object should be unmarked after sweep")
	}
	_ = a
}

func TestPageFillThenEmptyReclaims(t *testing.T) {
	var pool Pool[*obj]
	refs := make([]Ref[*obj], pageSize)
	for i := range refs {
		refs[i] = pool.Alloc(&obj{id: i})
	}
	if len(pool.pages) != 1 || !pool.pages[0].isFull() {
		t.Fatalf("expected exactly one full page, got %d pages", len(pool.pages))
	}

	// Nothing marked: a full sweep should empty the page and, since it
	// was once full, reclaim it.
	pool.Sweep()
	if pool.pages[0] != nil {
		t.Fatal("expected the page to be reclaimed after filling then emptying")
	}
	if pool.Live() != 0 {
		t.Fatalf("expected 0 survivors, got %d", pool.Live())
	}
}

func TestAllocReusesFreedSlotsWithinAPage(t *testing.T) {
	var pool Pool[*obj]
	for i := 0; i < 10; i++ {
		pool.Alloc(&obj{id: i})
	}
	pool.Sweep() // nothing marked, all 10 freed, page stays (never filled)
	if pool.Live() != 0 {
		t.Fatalf("expected 0 survivors, got %d", pool.Live())
	}
	if len(pool.pages) != 1 || pool.pages[0] == nil {
		t.Fatal("a page that never filled should not be deallocated on empty")
	}

	pool.Alloc(&obj{id: 99})
	if pool.Live() != 1 {
		t.Fatalf("expected the freed slot to be reused, got %d live objects", pool.Live())
	}
}
