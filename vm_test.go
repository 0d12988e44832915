package vex

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fibCompiledFunc builds the canonical recursive fibonacci bytecode:
//
//	fn fib(n):
//	    if n < 2: return n
//	    return fib(n-1) + fib(n-2)
func fibCompiledFunc(vm *VM) int {
	fn := &CompiledFunc{Name: "fib", Arity: 1, TotalLocals: 1}
	idx := vm.AddFunc(fn)
	fn.Code = []Instr{
		{Op: OpLoadLocal, A: 0},
		{Op: OpConst, A: 2},
		{Op: OpLt},
		{Op: OpJumpIfFalse, A: 6},
		{Op: OpLoadLocal, A: 0},
		{Op: OpReturn},
		{Op: OpLoadLocal, A: 0},
		{Op: OpConst, A: 1},
		{Op: OpSub},
		{Op: OpCall, A: int64(idx), B: 1},
		{Op: OpLoadLocal, A: 0},
		{Op: OpConst, A: 2},
		{Op: OpSub},
		{Op: OpCall, A: int64(idx), B: 1},
		{Op: OpAdd},
		{Op: OpReturn},
	}
	return idx
}

func TestVM_Fib(t *testing.T) {
	vm := NewVM(NewHeap(1<<20, nil), nil)
	fibCompiledFunc(vm)

	result, ok := vm.RunFunc("fib", []Value{MakeInt(10)})
	require.True(t, ok)
	assert.Equal(t, int64(55), AsInt(result))
}

func TestVM_FibBaseCases(t *testing.T) {
	vm := NewVM(NewHeap(1<<20, nil), nil)
	fibCompiledFunc(vm)

	for n, want := range map[int64]int64{0: 0, 1: 1, 2: 1, 3: 2, 7: 13} {
		result, ok := vm.RunFunc("fib", []Value{MakeInt(n)})
		require.True(t, ok)
		assert.Equal(t, want, AsInt(result), "fib(%d)", n)
	}
}

func TestVM_ImplicitNullReturn(t *testing.T) {
	vm := NewVM(NewHeap(1<<20, nil), nil)
	fn := &CompiledFunc{Name: "noop", Arity: 0, TotalLocals: 0, Code: []Instr{
		{Op: OpConst, A: 1},
		{Op: OpPop},
	}}
	vm.AddFunc(fn)

	result, ok := vm.RunFunc("noop", nil)
	require.True(t, ok)
	assert.True(t, IsNull(result))
}

func TestVM_PrintWritesToStdout(t *testing.T) {
	vm := NewVM(NewHeap(1<<20, nil), nil)
	fn := &CompiledFunc{Name: "greet", Arity: 0, TotalLocals: 0, Code: []Instr{
		{Op: OpConst, A: 42},
		{Op: OpPrint},
		{Op: OpConstNull},
		{Op: OpReturn},
	}}
	vm.AddFunc(fn)

	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	_, ok := vm.RunFunc("greet", nil)

	w.Close()
	os.Stdout = old
	require.True(t, ok)

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "42\n", string(out))
}

func TestVM_ArithmeticOpcodes(t *testing.T) {
	vm := NewVM(NewHeap(1<<20, nil), nil)
	fn := &CompiledFunc{Name: "calc", Arity: 0, TotalLocals: 0, Code: []Instr{
		{Op: OpConst, A: 6},
		{Op: OpConst, A: 7},
		{Op: OpMul},
		{Op: OpReturn},
	}}
	vm.AddFunc(fn)

	result, ok := vm.RunFunc("calc", nil)
	require.True(t, ok)
	assert.Equal(t, int64(42), AsInt(result))
}
