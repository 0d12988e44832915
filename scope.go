package vex

// ScopeFrame is the binding environment described in spec.md §3: a
// name→Value mapping plus the ordered list of statements deferred in
// this scope, drained in reverse insertion order on exit.
type ScopeFrame struct {
	vars    map[string]Value
	deferred []Stmt
}

func newScopeFrame() *ScopeFrame {
	return &ScopeFrame{vars: make(map[string]Value)}
}

func (s *ScopeFrame) defer_(stmt Stmt) {
	s.deferred = append(s.deferred, stmt)
}

// drainDeferred returns this scope's deferred statements in reverse
// insertion order, per spec.md §4.4.
func (s *ScopeFrame) drainDeferred() []Stmt {
	n := len(s.deferred)
	out := make([]Stmt, n)
	for i, stmt := range s.deferred {
		out[n-1-i] = stmt
	}
	s.deferred = nil
	return out
}
