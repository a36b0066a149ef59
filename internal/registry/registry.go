package registry

import (
	"errors"
	"fmt"
)

// ErrCapacityExceeded is returned when a new controller appears and every
// slot is occupied. The caller logs and ignores the controller; slots freed
// later are not back-filled retroactively.
var ErrCapacityExceeded = errors.New("registry: capacity exceeded")

// InterfaceKind distinguishes the two kernel interfaces of one physical
// controller.
type InterfaceKind uint8

const (
	// KindLegacy is the joydev interface (/dev/input/jsN).
	KindLegacy InterfaceKind = iota
	// KindGeneric is the evdev interface (/dev/input/eventN).
	KindGeneric
)

func (k InterfaceKind) String() string {
	switch k {
	case KindLegacy:
		return "legacy"
	case KindGeneric:
		return "generic"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// State is the lifecycle position of a record.
type State uint8

const (
	// StateUnmatched means only one interface has been seen so far. A
	// record may stay unmatched indefinitely; there is no timeout.
	StateUnmatched State = iota
	// StateMatched means both interfaces are known but the mirror has not
	// been brought up yet.
	StateMatched
	// StateActive means the mirror is running for this controller.
	StateActive
)

func (s State) String() string {
	switch s {
	case StateUnmatched:
		return "unmatched"
	case StateMatched:
		return "matched"
	case StateActive:
		return "active"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Record is one tracked controller, keyed by the stable hardware path both
// of its interfaces share.
type Record struct {
	Key         string
	LegacyPath  string
	GenericPath string
	State       State
}

// Handle names a slot at a particular generation. A handle issued before a
// slot was freed no longer resolves, even if the slot has since been
// reused for another controller.
type Handle struct {
	index int
	gen   uint32
}

func (h Handle) String() string {
	return fmt.Sprintf("slot#%d@%d", h.index, h.gen)
}

// Index is the slot number. Stable for the lifetime of the record, it
// doubles as the numeric suffix of the virtual device name.
func (h Handle) Index() int {
	return h.index
}

type slot struct {
	gen  uint32
	used bool
	rec  Record
}

// Registry correlates hotplug notifications into controller records. It is
// a pure bookkeeping structure: it owns no descriptors and performs no I/O,
// and it is not safe for concurrent use. All access happens on the
// dispatch loop.
type Registry struct {
	slots []slot
	free  []int
	byKey map[string]Handle
}

// New returns a registry with a fixed number of controller slots.
func New(capacity int) *Registry {
	r := &Registry{
		slots: make([]slot, capacity),
		free:  make([]int, 0, capacity),
		byKey: make(map[string]Handle, capacity),
	}
	for i := capacity - 1; i >= 0; i-- {
		r.free = append(r.free, i)
	}
	return r
}

// Seen records that an interface of the given kind exists at path for the
// controller identified by key. The returned matched flag is true exactly
// when this call completed the pair, which happens at most once per record
// lifetime. Seeing the same interface again just refreshes its path.
func (r *Registry) Seen(kind InterfaceKind, key, path string) (Handle, bool, error) {
	h, ok := r.byKey[key]
	if !ok {
		if len(r.free) == 0 {
			return Handle{}, false, ErrCapacityExceeded
		}
		idx := r.free[len(r.free)-1]
		r.free = r.free[:len(r.free)-1]
		s := &r.slots[idx]
		s.used = true
		s.rec = Record{Key: key, State: StateUnmatched}
		h = Handle{index: idx, gen: s.gen}
		r.byKey[key] = h
	}

	rec := &r.slots[h.index].rec
	switch kind {
	case KindLegacy:
		rec.LegacyPath = path
	case KindGeneric:
		rec.GenericPath = path
	}

	matched := false
	if rec.State == StateUnmatched && rec.LegacyPath != "" && rec.GenericPath != "" {
		rec.State = StateMatched
		matched = true
	}
	return h, matched, nil
}

// Activate marks a matched record as mirroring. It reports false if the
// handle is stale or the record never paired.
func (r *Registry) Activate(h Handle) bool {
	s, ok := r.resolve(h)
	if !ok || s.rec.State != StateMatched {
		return false
	}
	s.rec.State = StateActive
	return true
}

// Removed drops the record for key when the departing node is actually one
// of the record's tracked interfaces. A sibling input node can share the
// correlation key without being tracked; its removal must not tear the
// controller down, so the node path has to match the record's path for
// that kind. The final record is returned so the caller can tear down
// whatever it built for it. A miss is a no-op; a departing controller
// announces both of its interfaces and the second announcement always
// misses.
func (r *Registry) Removed(kind InterfaceKind, key, path string) (Handle, Record, bool) {
	h, ok := r.byKey[key]
	if !ok {
		return Handle{}, Record{}, false
	}
	rec := r.slots[h.index].rec

	var tracked string
	switch kind {
	case KindLegacy:
		tracked = rec.LegacyPath
	case KindGeneric:
		tracked = rec.GenericPath
	}
	if tracked == "" || tracked != path {
		return Handle{}, Record{}, false
	}
	return r.Drop(key)
}

// Drop unconditionally frees the record for key, bumping the slot
// generation so outstanding handles go stale. Used when the caller already
// knows the record is dead, for example after its node failed mid-read.
func (r *Registry) Drop(key string) (Handle, Record, bool) {
	h, ok := r.byKey[key]
	if !ok {
		return Handle{}, Record{}, false
	}
	s := &r.slots[h.index]
	rec := s.rec

	delete(r.byKey, key)
	s.used = false
	s.gen++
	s.rec = Record{}
	r.free = append(r.free, h.index)
	return h, rec, true
}

// Get resolves a handle to a copy of its record.
func (r *Registry) Get(h Handle) (Record, bool) {
	s, ok := r.resolve(h)
	if !ok {
		return Record{}, false
	}
	return s.rec, true
}

// Len is the number of tracked controllers.
func (r *Registry) Len() int {
	return len(r.byKey)
}

// Cap is the fixed slot count.
func (r *Registry) Cap() int {
	return len(r.slots)
}

// Snapshot returns copies of all live records, for state logging.
func (r *Registry) Snapshot() []Record {
	out := make([]Record, 0, len(r.byKey))
	for i := range r.slots {
		if r.slots[i].used {
			out = append(out, r.slots[i].rec)
		}
	}
	return out
}

func (r *Registry) resolve(h Handle) (*slot, bool) {
	if h.index < 0 || h.index >= len(r.slots) {
		return nil, false
	}
	s := &r.slots[h.index]
	if !s.used || s.gen != h.gen {
		return nil, false
	}
	return s, true
}
