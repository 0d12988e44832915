package vex

import (
	"fmt"

	"go.uber.org/zap"
)

// Opcode is a single bytecode instruction tag from spec.md §4.3.
type Opcode uint8

const (
	OpConst Opcode = iota
	OpConstTrue
	OpConstFalse
	OpConstNull
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg
	OpLt
	OpGt
	OpLe
	OpGe
	OpEq
	OpNe
	OpNot
	OpAnd
	OpOr
	OpJump
	OpJumpIfFalse
	OpJumpIfTrue
	OpLoadLocal
	OpStoreLocal
	OpCall
	OpReturn
	OpPop
	OpDup
	OpPrint
	OpHalt
)

// Instr is one flat bytecode instruction. A carries the opcode's main
// operand: the literal value for Const, the absolute target for jumps,
// the slot index for Load/StoreLocal, the callee's index into the VM's
// function table for Call. B is Call's second operand, argc — per
// spec.md §4.3's `Call(func_index, argc)`, the caller states how many
// values it is passing, independently of the callee's declared arity
// (see original_source/src/bytecode_vm.rs's `OpCode::Call(func_idx,
// argc)`), so locals are padded from argc..TotalLocals rather than
// Arity..TotalLocals.
type Instr struct {
	Op Opcode
	A  int64
	B  int64
}

// CompiledFunc is a function's flattened instruction stream plus the
// frame-sizing metadata the VM needs to set up a call, per spec.md
// §4.3's call-frame model.
type CompiledFunc struct {
	Name        string
	Arity       int
	TotalLocals int
	Code        []Instr
}

// callFrame tracks one activation: which function, how far into its
// instruction stream, and where its locals start on the shared value
// stack, per spec.md §4.3.
type callFrame struct {
	FuncIndex   int
	IP          int
	BasePointer int
}

// VM is the stack-based bytecode machine from spec.md §4.3: a flat
// function table, a single shared value stack used for both operands
// and locals, and an explicit call-frame stack.
type VM struct {
	Heap      *Heap
	Funcs     []*CompiledFunc
	funcIndex map[string]int
	stack     []Value
	frames    []callFrame
	log       *zap.SugaredLogger
}

func NewVM(heap *Heap, log *zap.SugaredLogger) *VM {
	return &VM{
		Heap:      heap,
		funcIndex: make(map[string]int),
		log:       log,
	}
}

// AddFunc registers a compiled function and returns its index, for use
// as a Call instruction's operand.
func (vm *VM) AddFunc(fn *CompiledFunc) int {
	idx := len(vm.Funcs)
	vm.Funcs = append(vm.Funcs, fn)
	vm.funcIndex[fn.Name] = idx
	return idx
}

func (vm *VM) FuncByName(name string) (int, bool) {
	idx, ok := vm.funcIndex[name]
	return idx, ok
}

// RunFunc looks up name and runs it with args, per spec.md §4.3
// scenario 1 (the canonical recursive fib program).
func (vm *VM) RunFunc(name string, args []Value) (Value, bool) {
	idx, ok := vm.FuncByName(name)
	if !ok {
		return MakeNull(), false
	}
	return vm.Call(idx, args), true
}

func (vm *VM) push(v Value) { vm.stack = append(vm.stack, v) }

func (vm *VM) pop() Value {
	n := len(vm.stack) - 1
	v := vm.stack[n]
	vm.stack = vm.stack[:n]
	return v
}

// Call runs funcIndex with args and returns its result. Falling off
// the end of a function's instruction stream without an explicit
// Return yields Null, matching the tree-walking interpreter's implicit
// return (a supplemented behavior, see SPEC_FULL.md).
func (vm *VM) Call(funcIndex int, args []Value) Value {
	fn := vm.Funcs[funcIndex]
	base := len(vm.stack)
	for i := 0; i < fn.TotalLocals; i++ {
		if i < len(args) {
			vm.push(args[i])
		} else {
			vm.push(MakeNull())
		}
	}
	vm.frames = append(vm.frames, callFrame{FuncIndex: funcIndex, IP: 0, BasePointer: base})
	depth := len(vm.frames)
	result := MakeNull()

	for len(vm.frames) >= depth {
		frame := &vm.frames[len(vm.frames)-1]
		code := vm.Funcs[frame.FuncIndex].Code
		if frame.IP >= len(code) {
			result = vm.doReturn(MakeNull())
			continue
		}
		instr := code[frame.IP]
		frame.IP++

		switch instr.Op {
		case OpConst:
			vm.push(MakeInt(instr.A))
		case OpConstTrue:
			vm.push(MakeBool(true))
		case OpConstFalse:
			vm.push(MakeBool(false))
		case OpConstNull:
			vm.push(MakeNull())
		case OpAdd:
			b, a := vm.pop(), vm.pop()
			vm.push(Add(vm.Heap, a, b))
		case OpSub:
			b, a := vm.pop(), vm.pop()
			vm.push(Sub(a, b))
		case OpMul:
			b, a := vm.pop(), vm.pop()
			vm.push(Mul(a, b))
		case OpDiv:
			b, a := vm.pop(), vm.pop()
			vm.push(Div(a, b))
		case OpMod:
			b, a := vm.pop(), vm.pop()
			vm.push(Mod(a, b))
		case OpNeg:
			vm.push(MakeInt(-AsInt(vm.pop())))
		case OpLt:
			b, a := vm.pop(), vm.pop()
			vm.push(MakeBool(AsInt(a) < AsInt(b)))
		case OpGt:
			b, a := vm.pop(), vm.pop()
			vm.push(MakeBool(AsInt(a) > AsInt(b)))
		case OpLe:
			b, a := vm.pop(), vm.pop()
			vm.push(MakeBool(AsInt(a) <= AsInt(b)))
		case OpGe:
			b, a := vm.pop(), vm.pop()
			vm.push(MakeBool(AsInt(a) >= AsInt(b)))
		case OpEq:
			b, a := vm.pop(), vm.pop()
			vm.push(MakeBool(Eq(vm.Heap, a, b)))
		case OpNe:
			b, a := vm.pop(), vm.pop()
			vm.push(MakeBool(!Eq(vm.Heap, a, b)))
		case OpNot:
			vm.push(MakeBool(!Truthy(vm.Heap, vm.pop())))
		case OpAnd:
			b, a := vm.pop(), vm.pop()
			vm.push(MakeBool(Truthy(vm.Heap, a) && Truthy(vm.Heap, b)))
		case OpOr:
			b, a := vm.pop(), vm.pop()
			vm.push(MakeBool(Truthy(vm.Heap, a) || Truthy(vm.Heap, b)))
		case OpJump:
			frame.IP = int(instr.A)
		case OpJumpIfFalse:
			if !Truthy(vm.Heap, vm.pop()) {
				frame.IP = int(instr.A)
			}
		case OpJumpIfTrue:
			if Truthy(vm.Heap, vm.pop()) {
				frame.IP = int(instr.A)
			}
		case OpLoadLocal:
			vm.push(vm.stack[frame.BasePointer+int(instr.A)])
		case OpStoreLocal:
			vm.stack[frame.BasePointer+int(instr.A)] = vm.pop()
		case OpCall:
			callee := vm.Funcs[instr.A]
			argc := int(instr.B)
			callArgs := make([]Value, argc)
			for i := argc - 1; i >= 0; i-- {
				callArgs[i] = vm.pop()
			}
			callBase := len(vm.stack)
			for i := 0; i < callee.TotalLocals; i++ {
				if i < argc {
					vm.push(callArgs[i])
				} else {
					vm.push(MakeNull())
				}
			}
			vm.frames = append(vm.frames, callFrame{FuncIndex: int(instr.A), IP: 0, BasePointer: callBase})
		case OpReturn:
			result = vm.doReturn(vm.pop())
		case OpPop:
			vm.pop()
		case OpDup:
			v := vm.stack[len(vm.stack)-1]
			vm.push(v)
		case OpPrint:
			fmt.Println(FormatValue(vm.Heap, vm.pop()))
		case OpHalt:
			return vm.pop()
		}
	}
	return result
}

// doReturn tears down the current frame's locals and, if a caller
// remains, pushes the return value onto its stack so execution
// continues there.
func (vm *VM) doReturn(v Value) Value {
	frame := vm.frames[len(vm.frames)-1]
	vm.stack = vm.stack[:frame.BasePointer]
	vm.frames = vm.frames[:len(vm.frames)-1]
	if len(vm.frames) > 0 {
		vm.push(v)
	}
	return v
}
