package vex

import (
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// ObjectId identifies a boxed object on the Heap. Ids are assigned
// monotonically starting above the two reserved values used to encode
// the Bool singletons (see value.go's boolTrue/boolFalse) so that no
// live heap pointer ever collides with a Bool's bit pattern, on top of
// spec.md §3's base invariant that no live object pointer is exactly 0.
type ObjectId uint64

const firstObjectId ObjectId = 3

type heapEntry struct {
	marked bool
	obj    *Obj
}

// Heap is the mark-and-sweep GC described in spec.md §4.2: a mapping
// from ObjectId to {marked, payload}, an ordered deduplicating root
// set, and an allocation counter that triggers collection at a
// configurable threshold.
type Heap struct {
	entries   map[ObjectId]*heapEntry
	nextID    atomic.Uint64
	roots     []ObjectId
	rootIndex map[ObjectId]int
	allocs    atomic.Uint64
	threshold uint64
	log       *zap.SugaredLogger
}

func NewHeap(threshold int, log *zap.SugaredLogger) *Heap {
	h := &Heap{
		entries:   make(map[ObjectId]*heapEntry),
		roots:     nil,
		rootIndex: make(map[ObjectId]int),
		threshold: uint64(threshold),
		log:       log,
	}
	h.nextID.Store(uint64(firstObjectId))
	return h
}

// Alloc inserts obj, increments the allocation counter, and triggers a
// collection if the counter reaches the threshold, per spec.md §4.2.
func (h *Heap) Alloc(obj *Obj) ObjectId {
	id := ObjectId(h.nextID.Add(1) - 1)
	h.entries[id] = &heapEntry{obj: obj}
	if h.allocs.Inc() >= h.threshold {
		h.Collect()
	}
	return id
}

// AllocAndTag is a convenience used by value.go's Add and by the
// interpreter, which need a tagged Value rather than a bare ObjectId.
func (h *Heap) AllocAndTag(obj *Obj) Value {
	return tagPtr(h.Alloc(obj))
}

// Get returns the object at id, or ok=false if id is stale — a
// tolerated case per spec.md §4.2's failure model, never an error.
func (h *Heap) Get(id ObjectId) (*Obj, bool) {
	e, ok := h.entries[id]
	if !ok {
		return nil, false
	}
	return e.obj, true
}

// AddRoot registers id as reachable from outside the heap (stack
// temporaries, globals). Insertion is deduplicating.
func (h *Heap) AddRoot(id ObjectId) {
	if _, ok := h.rootIndex[id]; ok {
		return
	}
	h.rootIndex[id] = len(h.roots)
	h.roots = append(h.roots, id)
}

// RemoveRoot drops id from the root set by identity.
func (h *Heap) RemoveRoot(id ObjectId) {
	idx, ok := h.rootIndex[id]
	if !ok {
		return
	}
	h.roots = append(h.roots[:idx], h.roots[idx+1:]...)
	delete(h.rootIndex, id)
	for i := idx; i < len(h.roots); i++ {
		h.rootIndex[h.roots[i]] = i
	}
}

func (h *Heap) ClearRoots() {
	h.roots = nil
	h.rootIndex = make(map[ObjectId]int)
}

// Collect runs a full stop-the-world mark-and-sweep cycle, per
// spec.md §4.2.
func (h *Heap) Collect() {
	before := len(h.entries)
	h.mark()
	h.sweep()
	h.allocs.Store(0)
	if h.log != nil {
		h.log.Debugw("gc collect", "live_before", before, "live_after", len(h.entries))
	}
}

func (h *Heap) mark() {
	for _, e := range h.entries {
		e.marked = false
	}
	for _, root := range h.roots {
		h.markReachable(root)
	}
}

// markReachable performs the depth-first traversal from spec.md §4.2,
// skipping already-marked nodes so cycles terminate.
func (h *Heap) markReachable(id ObjectId) {
	e, ok := h.entries[id]
	if !ok || e.marked {
		return
	}
	e.marked = true
	switch e.obj.Type {
	case ObjArray:
		for _, v := range e.obj.Items {
			if IsPtr(v) {
				h.markReachable(untagPtr(v))
			}
		}
	case ObjStruct:
		for _, v := range e.obj.Fields {
			if IsPtr(v) {
				h.markReachable(untagPtr(v))
			}
		}
	}
}

func (h *Heap) sweep() {
	for id, e := range h.entries {
		if !e.marked {
			delete(h.entries, id)
		}
	}
}

// Stats returns (live_count, allocs_since_last_collect), per spec.md
// §4.2.
func (h *Heap) Stats() (int, uint64) {
	return len(h.entries), h.allocs.Load()
}
