package vex

import "github.com/google/uuid"

// TraceGuard is a recorded side-exit check: the trace is only valid to
// replay while it continues to hold, per spec.md §4.6.
type TraceGuard struct {
	Description string
}

// TraceEntry is one recorded step: either an executed instruction or a
// guard that must hold for the trace to remain valid.
type TraceEntry struct {
	Instr *Instr
	Guard *TraceGuard
}

// Trace is a linear, append-only recording of one loop's body, per
// spec.md §4.6. ID is stamped only once recording stops, since a trace
// that never finishes recording is never reported.
type Trace struct {
	ID      uuid.UUID
	Origin  string
	Entries []TraceEntry
}

// TraceRecorder tracks loop-header hotness by source location and
// owns at most one in-flight recording at a time, per spec.md §4.6.
// Compiling a finished trace into executable code is out of scope here
// (spec.md names it as a future extension); this module stops at
// producing the finished, guarded Trace value.
type TraceRecorder struct {
	hitCounts map[string]int64
	threshold int64
	active    *Trace
}

func NewTraceRecorder(loopThreshold int64) *TraceRecorder {
	return &TraceRecorder{
		hitCounts: make(map[string]int64),
		threshold: loopThreshold,
	}
}

// RecordLoopHit increments the hit count for a loop header identified
// by source location and reports whether it just crossed the
// recording threshold.
func (t *TraceRecorder) RecordLoopHit(location string) bool {
	t.hitCounts[location]++
	return t.hitCounts[location] == t.threshold
}

// StartRecording begins a new in-flight trace for the loop at
// location. Starting while another trace is active discards the
// abandoned one, matching "at most one in-flight recording".
func (t *TraceRecorder) StartRecording(location string) {
	t.active = &Trace{Origin: location}
}

func (t *TraceRecorder) IsRecording() bool { return t.active != nil }

// AppendInstr records one executed instruction onto the active trace.
func (t *TraceRecorder) AppendInstr(instr Instr) {
	if t.active == nil {
		return
	}
	t.active.Entries = append(t.active.Entries, TraceEntry{Instr: &instr})
}

// AppendGuard records a guard condition onto the active trace.
func (t *TraceRecorder) AppendGuard(description string) {
	if t.active == nil {
		return
	}
	t.active.Entries = append(t.active.Entries, TraceEntry{Guard: &TraceGuard{Description: description}})
}

// StopRecording finalizes the active trace, stamping it with a fresh
// id, and clears the in-flight slot.
func (t *TraceRecorder) StopRecording() *Trace {
	trace := t.active
	if trace == nil {
		return nil
	}
	trace.ID = uuid.New()
	t.active = nil
	return trace
}

// AbandonRecording discards the in-flight trace without finalizing it,
// used when a guard would fail before the loop closes.
func (t *TraceRecorder) AbandonRecording() {
	t.active = nil
}
