package vm

import (
	"github.com/kerbonaut11/muna/internal/runtime"
	"github.com/kerbonaut11/muna/internal/value"
)

// initialGCThreshold is the live-object count (summed across every
// per-type pool) that triggers the VM's first automatic collection.
// Spec §4.9 itself only ever triggers a collection explicitly (no
// incremental mode in the core design); this is the ambient
// amortized-trigger policy every mark-sweep host in the pack layers
// on top of that, sized the same as one page (see internal/gc.page)
// so the first collection doesn't fire before a single page has even
// filled.
const initialGCThreshold = 4096

// gcPolicy decides when loop should run a collection: grow-by-double
// after every cycle, the same amortized-growth rule the teacher's own
// allocator-adjacent code uses, so collections become rarer as the
// working set stabilizes rather than firing on a fixed cadence.
type gcPolicy struct {
	threshold int
}

func (g *gcPolicy) shouldCollect() bool { return liveObjectCount() >= g.threshold }

func liveObjectCount() int {
	return runtime.Tables.Live() + runtime.Functions.Live() + runtime.UpValues.Live() + runtime.UserDatas.Live()
}

// collectGarbage runs one mark/sweep cycle: every live root — the
// global table, every active frame's locals and boxed upvalues, the
// shared evaluation stack, any result still in flight between a Ret
// and its waiting call, and the top-level chunk's own locals once
// Halt has run — is marked transitively via runtime.MarkValue, then
// runtime.SweepAll reclaims everything left unmarked. The threshold is
// then reset relative to however much survived, so a workload with a
// large live set doesn't collect on every allocation.
func (vm *VM) collectGarbage() {
	runtime.MarkValue(value.ObjOf(vm.globals))

	for _, fr := range vm.frames {
		if fr.fn != (runtime.FunctionRef{}) {
			runtime.MarkValue(value.ObjOf(fr.fn))
		}
		for _, v := range fr.locals {
			runtime.MarkValue(v)
		}
		for _, uv := range fr.boxed {
			runtime.MarkValue(value.ObjOf(uv))
		}
	}
	for _, v := range vm.stack {
		runtime.MarkValue(v)
	}
	for _, v := range vm.pendingReturn {
		runtime.MarkValue(v)
	}
	// rootLocals holds the top-level chunk's locals after Halt, the
	// host's only remaining handle onto whatever it declared at module
	// scope (e.g. a closure returned from a factory function) — just as
	// live a root as an active frame's own locals.
	for _, v := range vm.rootLocals {
		runtime.MarkValue(v)
	}

	runtime.SweepAll()

	live := liveObjectCount()
	next := live * 2
	if next < initialGCThreshold {
		next = initialGCThreshold
	}
	vm.gc.threshold = next
}
