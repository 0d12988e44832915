package vex

import "go.uber.org/atomic"

// AtomicInt64 is the sequentially-consistent shared counter from
// spec.md §4.7, backed by go.uber.org/atomic's Int64 so Load/Store/Add
// compile to the same memory-ordering guarantee on every platform Go
// supports instead of a hand-rolled mutex-guarded int.
type AtomicInt64 struct {
	v atomic.Int64
}

func NewAtomicInt64(initial int64) *AtomicInt64 {
	a := &AtomicInt64{}
	a.v.Store(initial)
	return a
}

func (a *AtomicInt64) Load() int64            { return a.v.Load() }
func (a *AtomicInt64) Store(v int64)          { a.v.Store(v) }
func (a *AtomicInt64) Add(delta int64) int64  { return a.v.Add(delta) }
func (a *AtomicInt64) CompareAndSwap(old, new int64) bool {
	return a.v.CompareAndSwap(old, new)
}
