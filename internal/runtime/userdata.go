package runtime

import (
	"github.com/kerbonaut11/muna/internal/gc"
	"github.com/kerbonaut11/muna/internal/value"
)

// UserDatas is the process-wide page allocator for UserData.
var UserDatas gc.Pool[UserData]

// UserDataRef is a handle to a heap-allocated UserData.
type UserDataRef struct{ gc.Ref[UserData] }

func (r UserDataRef) HeapType() value.Type { return value.TypeUserData }

// UserData is an opaque host-owned object reference; every behavior
// beyond equality and metatable storage is delegated to its
// metatable, dispatched by the vm package (Set/Get/__gc all need a
// live call into a metamethod Function, which only the vm has the
// machinery to perform).
type UserData struct {
	marked bool
	meta   *TableRef

	Host any
}

// NewUserData wraps host in a UserData with no metatable.
func NewUserData(host any) UserData { return UserData{Host: host} }

// AllocUserData stores u in the UserDatas pool and returns a handle.
func AllocUserData(u UserData) UserDataRef { return UserDataRef{UserDatas.Alloc(u)} }

func (u *UserData) IsMarked() bool { return u.marked }
func (u *UserData) Mark()          { u.marked = true }
func (u *UserData) Unmark()        { u.marked = false }

// MetaTable returns u's metatable, if one is set.
func (u *UserData) MetaTable() (TableRef, bool) {
	if u.meta == nil {
		return TableRef{}, false
	}
	return *u.meta, true
}

// SetMetaTable installs meta as u's metatable.
func (u *UserData) SetMetaTable(meta TableRef) { u.meta = &meta }

// Equal compares two UserData by host-object identity, matching §4.5's
// "UserData by identity" key/equality rule (the original compares raw
// `*mut dyn Any` pointers; Go has no portable identity check for an
// arbitrary `any`, so this compares the Host field itself, which is
// adequate for the common case of a pointer-typed host object and is
// the natural Go rendition of "identity").
func (u *UserData) Equal(other *UserData) bool { return u.Host == other.Host }

// GCFinalizeHook, if set, is invoked by the GC mark phase the first
// time a UserData is discovered reachable, mirroring §4.9's
// `MarkDown` call to `__gc`. The vm package installs this at startup,
// since dispatching `__gc` means invoking a metamethod Function, which
// requires the VM's call machinery — this package has none. It takes
// the UserData's own Ref, not a bare pointer, so the hook can turn
// around and pass the same live object to a metamethod call.
var GCFinalizeHook func(UserDataRef)
