package vex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInterp() *Interpreter {
	return NewInterpreter(NewHeap(1<<20, nil), nil, nil)
}

func TestInterp_LetAndReturn(t *testing.T) {
	it := newTestInterp()
	fn := &FuncDecl{
		Name: "main",
		Body: &BlockStmt{Stmts: []Stmt{
			&LetStmt{Name: "x", Value: &IntLiteral{Value: 41}},
			&ReturnStmt{Value: &BinaryExpr{Op: "+", Left: &Identifier{Name: "x"}, Right: &IntLiteral{Value: 1}}},
		}},
	}
	it.DeclareFunc(fn)
	result, ok := it.CallFunc("main", nil)
	require.True(t, ok)
	assert.Equal(t, int64(42), AsInt(result))
}

func TestInterp_FibRecursive(t *testing.T) {
	it := newTestInterp()
	// fn fib(n) { if (n < 2) { return n } return fib(n-1) + fib(n-2) }
	fib := &FuncDecl{
		Name:   "fib",
		Params: []string{"n"},
		Body: &BlockStmt{Stmts: []Stmt{
			&IfStmt{
				Cond: &BinaryExpr{Op: "<", Left: &Identifier{Name: "n"}, Right: &IntLiteral{Value: 2}},
				Then: &BlockStmt{Stmts: []Stmt{&ReturnStmt{Value: &Identifier{Name: "n"}}}},
			},
			&ReturnStmt{Value: &BinaryExpr{
				Op:   "+",
				Left: &CallExpr{Callee: &Identifier{Name: "fib"}, Args: []Expr{&BinaryExpr{Op: "-", Left: &Identifier{Name: "n"}, Right: &IntLiteral{Value: 1}}}},
				Right: &CallExpr{Callee: &Identifier{Name: "fib"}, Args: []Expr{&BinaryExpr{Op: "-", Left: &Identifier{Name: "n"}, Right: &IntLiteral{Value: 2}}}},
			}},
		}},
	}
	it.DeclareFunc(fib)
	result, ok := it.CallFunc("fib", []Value{MakeInt(10)})
	require.True(t, ok)
	assert.Equal(t, int64(55), AsInt(result))
}

func TestInterp_WhileContinue(t *testing.T) {
	it := newTestInterp()
	fn := &FuncDecl{
		Name: "sumOdds",
		Body: &BlockStmt{Stmts: []Stmt{
			&LetStmt{Name: "i", Value: &IntLiteral{Value: 0}},
			&LetStmt{Name: "sum", Value: &IntLiteral{Value: 0}},
			&WhileStmt{
				Cond: &BinaryExpr{Op: "<", Left: &Identifier{Name: "i"}, Right: &IntLiteral{Value: 10}},
				Body: &BlockStmt{Stmts: []Stmt{
					&AssignStmt{Name: "i", Value: &BinaryExpr{Op: "+", Left: &Identifier{Name: "i"}, Right: &IntLiteral{Value: 1}}},
					&IfStmt{
						Cond: &BinaryExpr{Op: "==", Left: &BinaryExpr{Op: "%", Left: &Identifier{Name: "i"}, Right: &IntLiteral{Value: 2}}, Right: &IntLiteral{Value: 0}},
						Then: &BlockStmt{Stmts: []Stmt{&ContinueStmt{}}},
					},
					&AssignStmt{Name: "sum", Value: &BinaryExpr{Op: "+", Left: &Identifier{Name: "sum"}, Right: &Identifier{Name: "i"}}},
				}},
			},
			&ReturnStmt{Value: &Identifier{Name: "sum"}},
		}},
	}
	it.DeclareFunc(fn)
	result, ok := it.CallFunc("sumOdds", nil)
	require.True(t, ok)
	assert.Equal(t, int64(25), AsInt(result)) // 1+3+5+7+9
}

// TestInterp_DeferRunsInReverseOrderOnExit mirrors spec.md scenario 3
// (`defer print(1); defer print(2); print(3)` runs 3, 2, 1): each
// deferred statement appends a distinct marker to a shared array, and
// since deferred statements run last-registered-first, the array ends
// up holding the body's own marker followed by the defers in reverse
// order.
func TestInterp_DeferRunsInReverseOrderOnExit(t *testing.T) {
	it := newTestInterp()

	// appendMarker is `{ log[i] = marker; i = i + 1 }`.
	appendMarker := func(marker int64) *BlockStmt {
		return &BlockStmt{Stmts: []Stmt{
			&IndexAssignStmt{Target: &Identifier{Name: "log"}, Index: &Identifier{Name: "i"}, Value: &IntLiteral{Value: marker}},
			&AssignStmt{Name: "i", Value: &BinaryExpr{Op: "+", Left: &Identifier{Name: "i"}, Right: &IntLiteral{Value: 1}}},
		}}
	}

	fn := &FuncDecl{
		Name: "run",
		Body: &BlockStmt{Stmts: []Stmt{
			&LetStmt{Name: "log", Value: &ArrayLiteral{Items: []Expr{
				&IntLiteral{Value: 0}, &IntLiteral{Value: 0}, &IntLiteral{Value: 0},
			}}},
			&LetStmt{Name: "i", Value: &IntLiteral{Value: 0}},
			&DeferStmt{Call: appendMarker(1)},
			&DeferStmt{Call: appendMarker(2)},
			appendMarker(3),
			&ReturnStmt{Value: &Identifier{Name: "log"}},
		}},
	}
	it.DeclareFunc(fn)

	result, ok := it.CallFunc("run", nil)
	require.True(t, ok)
	assert.Equal(t, "[3, 2, 1]", FormatValue(it.Heap, result))
}

func TestInterp_MethodDispatchByRuntimeType(t *testing.T) {
	it := newTestInterp()
	describeInt := &FuncDecl{
		Name:   "describe",
		Params: []string{"self"},
		Body:   &BlockStmt{Stmts: []Stmt{&ReturnStmt{Value: &StringLiteral{Value: "an int"}}}},
	}
	it.DeclareMethod("i32", "describe", describeInt)

	result := it.eval(&MethodCallExpr{Target: &IntLiteral{Value: 5}, Method: "describe"})
	assert.Equal(t, "an int", FormatValue(it.Heap, result))
}

func TestInterp_StaticCall(t *testing.T) {
	it := newTestInterp()
	zero := &FuncDecl{Name: "zero", Body: &BlockStmt{Stmts: []Stmt{&ReturnStmt{Value: &IntLiteral{Value: 0}}}}}
	it.DeclareMethod("Counter", "zero", zero)

	result := it.eval(&StaticCallExpr{TypeName: "Counter", Method: "zero"})
	assert.Equal(t, int64(0), AsInt(result))
}

func TestInterp_StructFieldAssignment(t *testing.T) {
	it := newTestInterp()
	fn := &FuncDecl{
		Name: "main",
		Body: &BlockStmt{Stmts: []Stmt{
			&LetStmt{Name: "p", Value: &StructLiteral{Name: "Point", Fields: map[string]Expr{"x": &IntLiteral{Value: 1}}, FieldOrder: []string{"x"}}},
			&FieldAssignStmt{Target: &Identifier{Name: "p"}, Field: "x", Value: &IntLiteral{Value: 9}},
			&ReturnStmt{Value: &FieldExpr{Target: &Identifier{Name: "p"}, Field: "x"}},
		}},
	}
	it.DeclareFunc(fn)
	result, ok := it.CallFunc("main", nil)
	require.True(t, ok)
	assert.Equal(t, int64(9), AsInt(result))
}

// TestInterp_JITPromotesHotFunctionToNative exercises C5's wiring into
// the call path: a one-line, single-param function gets tree-walked
// until it crosses the hot threshold, after which calls are answered
// by compiled native code instead.
func TestInterp_JITPromotesHotFunctionToNative(t *testing.T) {
	it := newTestInterp()
	it.JIT = NewJIT(3, true, nil)

	double := &FuncDecl{
		Name:   "double",
		Params: []string{"x"},
		Body: &BlockStmt{Stmts: []Stmt{
			&ReturnStmt{Value: &BinaryExpr{Op: "+", Left: &Identifier{Name: "x"}, Right: &Identifier{Name: "x"}}},
		}},
	}
	it.DeclareFunc(double)

	for i := int64(1); i <= 3; i++ {
		result, ok := it.CallFunc("double", []Value{MakeInt(i)})
		require.True(t, ok)
		assert.Equal(t, i*2, AsInt(result))
	}

	_, compiled := it.JIT.Lookup("double")
	assert.True(t, compiled, "function should be promoted to native after crossing the hot threshold")

	result, ok := it.CallFunc("double", []Value{MakeInt(21)})
	require.True(t, ok)
	assert.Equal(t, int64(42), AsInt(result))
}

func TestInterp_EqualityAcrossVariantsIsFalse(t *testing.T) {
	it := newTestInterp()
	result := it.eval(&BinaryExpr{Op: "==", Left: &IntLiteral{Value: 0}, Right: &NullLiteral{}})
	assert.False(t, AsBool(result))
	neResult := it.eval(&BinaryExpr{Op: "!=", Left: &IntLiteral{Value: 0}, Right: &NullLiteral{}})
	assert.True(t, AsBool(neResult))
}
