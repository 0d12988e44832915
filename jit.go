package vex

import (
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// SimpleBody is the restricted method-tier DSL from spec.md §4.5: only
// these shapes are eligible for native compilation. Identity through
// Negate take no operand; the arithmetic forms apply op to a constant.
type SimpleBody struct {
	Kind ShapeKind
	Op   string // "+","-","*","/" for ShapeArith
	K    int64  // constant operand for ShapeArith
}

type ShapeKind uint8

const (
	ShapeIdentity ShapeKind = iota
	ShapeDouble
	ShapeSquare
	ShapeIncrement
	ShapeNegate
	ShapeArith
)

// CompiledNative is a function promoted to native code: a page of amd64
// machine instructions following the System V AMD64 calling convention
// (first integer argument in RDI, return value in RAX).
type CompiledNative struct {
	page []byte
	fn   func(int64) int64
}

// Call invokes the compiled native function.
func (c *CompiledNative) Call(arg int64) int64 { return c.fn(arg) }

// JIT is the method-tier compiler from spec.md §4.5: it counts calls
// per function name, and once a function crosses hotThreshold and its
// body matches the restricted DSL, compiles it to native code once and
// reuses the result on every later call.
type JIT struct {
	callCounts map[string]*atomic.Int64
	compiled   map[string]*CompiledNative
	hot        int64
	enabled    bool
	log        *zap.SugaredLogger
}

func NewJIT(hotThreshold int64, enabled bool, log *zap.SugaredLogger) *JIT {
	return &JIT{
		callCounts: make(map[string]*atomic.Int64),
		compiled:   make(map[string]*CompiledNative),
		hot:        hotThreshold,
		enabled:    enabled,
		log:        log,
	}
}

// RecordCall increments name's call counter and reports whether this
// exact call pushed it to the hot threshold, per spec.md §4.5's
// record_call(name) → bool contract.
func (j *JIT) RecordCall(name string) bool {
	c, ok := j.callCounts[name]
	if !ok {
		c = atomic.NewInt64(0)
		j.callCounts[name] = c
	}
	return c.Inc() == j.hot
}

// ShouldCompile reports whether name has crossed the hot threshold and
// has not already been compiled.
func (j *JIT) ShouldCompile(name string) bool {
	if !j.enabled {
		return false
	}
	if _, done := j.compiled[name]; done {
		return false
	}
	c, ok := j.callCounts[name]
	return ok && c.Load() >= j.hot
}

// Lookup returns an already-compiled native function for name, if any.
func (j *JIT) Lookup(name string) (*CompiledNative, bool) {
	n, ok := j.compiled[name]
	return n, ok
}

// detectSimpleBody recognizes fn as one of spec.md §4.5's restricted
// shapes: a single-parameter function whose only statement is `return
// <expr>`, where expr is the parameter itself, its negation, or a
// binary op against either the parameter again or an int constant.
// Anything else — multiple statements, branches, loops, calls — is not
// eligible, and the caller falls back to the interpreter.
func detectSimpleBody(fn *FuncDecl) (SimpleBody, bool) {
	if len(fn.Params) != 1 || len(fn.Body.Stmts) != 1 {
		return SimpleBody{}, false
	}
	ret, ok := fn.Body.Stmts[0].(*ReturnStmt)
	if !ok || ret.Value == nil {
		return SimpleBody{}, false
	}
	param := fn.Params[0]

	switch v := ret.Value.(type) {
	case *Identifier:
		if v.Name == param {
			return SimpleBody{Kind: ShapeIdentity}, true
		}
	case *UnaryExpr:
		if v.Op == "-" {
			if id, ok := v.Operand.(*Identifier); ok && id.Name == param {
				return SimpleBody{Kind: ShapeNegate}, true
			}
		}
	case *BinaryExpr:
		isParam := func(e Expr) bool {
			id, ok := e.(*Identifier)
			return ok && id.Name == param
		}
		asConst := func(e Expr) (int64, bool) {
			lit, ok := e.(*IntLiteral)
			if !ok {
				return 0, false
			}
			return lit.Value, true
		}

		switch {
		case isParam(v.Left) && isParam(v.Right) && v.Op == "+":
			return SimpleBody{Kind: ShapeDouble}, true
		case isParam(v.Left) && isParam(v.Right) && v.Op == "*":
			return SimpleBody{Kind: ShapeSquare}, true
		}

		if isParam(v.Left) {
			if k, ok := asConst(v.Right); ok {
				switch v.Op {
				case "+":
					if k == 1 {
						return SimpleBody{Kind: ShapeIncrement}, true
					}
					return SimpleBody{Kind: ShapeArith, Op: "+", K: k}, true
				case "-", "*", "/":
					return SimpleBody{Kind: ShapeArith, Op: v.Op, K: k}, true
				}
			}
		}
		if isParam(v.Right) {
			if k, ok := asConst(v.Left); ok {
				switch v.Op {
				case "+":
					if k == 1 {
						return SimpleBody{Kind: ShapeIncrement}, true
					}
					return SimpleBody{Kind: ShapeArith, Op: "+", K: k}, true
				case "*":
					return SimpleBody{Kind: ShapeArith, Op: "*", K: k}, true
				}
			}
		}
	}
	return SimpleBody{}, false
}

// CompileSimpleFunction attempts to compile body to native code,
// recognizing exactly the shapes spec.md §4.5 allows. Anything else
// fails compilation — the caller falls back to the interpreter/VM, per
// spec.md's "compilation can fail; the source of truth never does".
func (j *JIT) CompileSimpleFunction(name string, body SimpleBody) (*CompiledNative, error) {
	page, err := emitAMD64(body)
	if err != nil {
		return nil, newJITError("compile %q: %v", name, err)
	}
	native, err := makeExecutable(page)
	if err != nil {
		return nil, newJITError("mprotect %q: %v", name, err)
	}
	j.compiled[name] = native
	if j.log != nil {
		j.log.Debugw("jit compiled", "func", name, "shape", body.Kind)
	}
	return native, nil
}
