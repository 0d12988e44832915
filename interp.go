package vex

import (
	"fmt"

	"go.uber.org/zap"
)

// ModuleLoader stands in for the external lexer→parser→expander→
// optimizer pipeline spec.md §4.4 names for `import`: given a resolved
// path it returns the file's top-level statements.
type ModuleLoader interface {
	Load(path string) ([]Stmt, error)
}

// methodKey identifies an entry in the (type_name, method_name)→
// function dispatch table from spec.md §4.4.
type methodKey struct {
	typeName string
	method   string
}

// Interpreter is the tree-walking evaluator from spec.md §4.4: it
// operates directly on the AST, maintaining a stack of ScopeFrames,
// global bindings, top-level function declarations, and the
// (type, method) dispatch table used for both dynamic (`obj.m()`) and
// static (`T::m()`) calls.
type Interpreter struct {
	Heap    *Heap
	JIT     *JIT
	scopes  []*ScopeFrame
	globals map[string]Value
	funcs   map[string]*FuncDecl
	methods map[methodKey]*FuncDecl
	loader  ModuleLoader
	loaded  map[string]bool
	log     *zap.SugaredLogger
}

func NewInterpreter(heap *Heap, loader ModuleLoader, log *zap.SugaredLogger) *Interpreter {
	return &Interpreter{
		Heap:    heap,
		globals: make(map[string]Value),
		funcs:   make(map[string]*FuncDecl),
		methods: make(map[methodKey]*FuncDecl),
		loader:  loader,
		loaded:  make(map[string]bool),
		log:     log,
	}
}

func (it *Interpreter) pushScope() *ScopeFrame {
	f := newScopeFrame()
	it.scopes = append(it.scopes, f)
	return f
}

// popScope runs the scope's deferred statements in reverse insertion
// order after the body has completed, per spec.md §4.4. A Return
// triggered by a deferred statement supersedes the control-flow result
// the body already produced.
func (it *Interpreter) popScope(result signal) signal {
	n := len(it.scopes) - 1
	top := it.scopes[n]

	for _, stmt := range top.drainDeferred() {
		sig := it.execStmt(stmt)
		if sig.kind == signalReturn {
			result = sig
		}
	}
	it.scopes = it.scopes[:n]
	return result
}

// getVar walks innermost to outermost scope, then globals, then falls
// back to a defined function value, per spec.md §4.4.
func (it *Interpreter) getVar(name string) (Value, bool) {
	for i := len(it.scopes) - 1; i >= 0; i-- {
		if v, ok := it.scopes[i].vars[name]; ok {
			return v, true
		}
	}
	if v, ok := it.globals[name]; ok {
		return v, true
	}
	if fn, ok := it.funcs[name]; ok {
		return it.Heap.AllocAndTag(newFunctionObj(fn.Name, fn.Params, fn.Body)), true
	}
	return MakeNull(), false
}

// setVar updates the innermost scope in which name is bound; if name
// is unbound everywhere it is created in the current scope.
func (it *Interpreter) setVar(name string, v Value) {
	for i := len(it.scopes) - 1; i >= 0; i-- {
		if _, ok := it.scopes[i].vars[name]; ok {
			it.scopes[i].vars[name] = v
			return
		}
	}
	it.declareVar(name, v)
}

// declareVar always writes into the innermost scope, or globals if
// there is no active scope.
func (it *Interpreter) declareVar(name string, v Value) {
	if len(it.scopes) == 0 {
		it.globals[name] = v
		return
	}
	it.scopes[len(it.scopes)-1].vars[name] = v
}

// DeclareFunc registers a top-level function declaration.
func (it *Interpreter) DeclareFunc(fn *FuncDecl) {
	it.funcs[fn.Name] = fn
}

// DeclareMethod registers fn as the implementation of typeName.method,
// used by both dynamic dispatch (obj.method()) and static dispatch
// (T::method()).
func (it *Interpreter) DeclareMethod(typeName, method string, fn *FuncDecl) {
	it.methods[methodKey{typeName, method}] = fn
}

// Run executes a top-level program: function declarations are
// registered first so forward references resolve, then remaining
// statements execute in order.
func (it *Interpreter) Run(program []Stmt) {
	for _, stmt := range program {
		if fn, ok := stmt.(*FuncDecl); ok {
			it.DeclareFunc(fn)
		}
	}
	for _, stmt := range program {
		if _, ok := stmt.(*FuncDecl); ok {
			continue
		}
		it.execStmt(stmt)
	}
}

// CallFunc invokes a previously declared top-level function by name,
// for embedders (such as cmd/vex) that drive the interpreter directly
// rather than through Run.
func (it *Interpreter) CallFunc(name string, args []Value) (Value, bool) {
	fn, ok := it.funcs[name]
	if !ok {
		return MakeNull(), false
	}
	return it.invoke(fn, args), true
}

// Import loads path exactly once (deduplicated by resolved path, which
// also breaks cycles), merging the loaded file's top-level functions
// and statements into the current interpreter state.
func (it *Interpreter) Import(path string) error {
	if it.loaded[path] {
		return nil
	}
	it.loaded[path] = true
	if it.loader == nil {
		return newLookupError("no module loader configured for import %q", path)
	}
	stmts, err := it.loader.Load(path)
	if err != nil {
		return err
	}
	it.Run(stmts)
	return nil
}

func (it *Interpreter) execBlock(b *BlockStmt) signal {
	it.pushScope()
	result := noSignal
	for _, stmt := range b.Stmts {
		result = it.execStmt(stmt)
		if result.kind != signalNone {
			break
		}
	}
	return it.popScope(result)
}

func (it *Interpreter) execStmt(stmt Stmt) signal {
	switch s := stmt.(type) {
	case *LetStmt:
		it.declareVar(s.Name, it.eval(s.Value))
		return noSignal

	case *AssignStmt:
		it.setVar(s.Name, it.eval(s.Value))
		return noSignal

	case *IndexAssignStmt:
		it.execIndexAssign(s)
		return noSignal

	case *FieldAssignStmt:
		it.execFieldAssign(s)
		return noSignal

	case *ReturnStmt:
		var v Value = MakeNull()
		if s.Value != nil {
			v = it.eval(s.Value)
		}
		return signal{kind: signalReturn, value: v}

	case *PrintStmt:
		fmt.Println(FormatValue(it.Heap, it.eval(s.Value)))
		return noSignal

	case *IfStmt:
		if Truthy(it.Heap, it.eval(s.Cond)) {
			return it.execBlock(s.Then)
		}
		if s.Else != nil {
			return it.execStmt(s.Else)
		}
		return noSignal

	case *WhileStmt:
		for Truthy(it.Heap, it.eval(s.Cond)) {
			sig := it.execBlock(s.Body)
			switch sig.kind {
			case signalBreak:
				return noSignal
			case signalContinue:
				continue
			case signalReturn:
				return sig
			}
		}
		return noSignal

	case *BreakStmt:
		return signal{kind: signalBreak}

	case *ContinueStmt:
		return signal{kind: signalContinue}

	case *ExprStmt:
		it.eval(s.Value)
		return noSignal

	case *BlockStmt:
		return it.execBlock(s)

	case *DeferStmt:
		if len(it.scopes) > 0 {
			it.scopes[len(it.scopes)-1].defer_(s.Call)
		}
		return noSignal

	case *ImportStmt:
		if err := it.Import(s.Path); err != nil && it.log != nil {
			it.log.Warnw("import failed", "path", s.Path, "error", err)
		}
		return noSignal

	case *FuncDecl:
		it.DeclareFunc(s)
		return noSignal

	default:
		return noSignal
	}
}

func (it *Interpreter) execIndexAssign(s *IndexAssignStmt) {
	target := it.eval(s.Target)
	if !IsPtr(target) {
		return
	}
	obj, ok := it.Heap.Get(untagPtr(target))
	if !ok || obj.Type != ObjArray {
		return
	}
	idx := int(AsInt(it.eval(s.Index)))
	if idx < 0 || idx >= len(obj.Items) {
		return
	}
	obj.Items[idx] = it.eval(s.Value)
}

func (it *Interpreter) execFieldAssign(s *FieldAssignStmt) {
	target := it.eval(s.Target)
	if !IsPtr(target) {
		return
	}
	obj, ok := it.Heap.Get(untagPtr(target))
	if !ok || obj.Type != ObjStruct {
		return
	}
	obj.SetField(s.Field, it.eval(s.Value))
}

func (it *Interpreter) eval(expr Expr) Value {
	switch e := expr.(type) {
	case *Identifier:
		if v, ok := it.getVar(e.Name); ok {
			return v
		}
		if it.log != nil {
			it.log.Warnw("undefined variable", "name", e.Name)
		}
		return MakeNull()

	case *IntLiteral:
		return MakeInt(e.Value)

	case *StringLiteral:
		return it.Heap.AllocAndTag(newStringObj(e.Value))

	case *BoolLiteral:
		return MakeBool(e.Value)

	case *NullLiteral:
		return MakeNull()

	case *ArrayLiteral:
		items := make([]Value, len(e.Items))
		for i, item := range e.Items {
			items[i] = it.eval(item)
		}
		return it.Heap.AllocAndTag(newArrayObj(items))

	case *StructLiteral:
		obj := newStructObj(e.Name)
		for _, k := range e.FieldOrder {
			obj.SetField(k, it.eval(e.Fields[k]))
		}
		return it.Heap.AllocAndTag(obj)

	case *UnaryExpr:
		v := it.eval(e.Operand)
		switch e.Op {
		case "-":
			return MakeInt(-AsInt(v))
		case "!":
			return MakeBool(!Truthy(it.Heap, v))
		}
		return MakeNull()

	case *BinaryExpr:
		return it.evalBinary(e)

	case *IndexExpr:
		return it.evalIndex(e)

	case *FieldExpr:
		return it.evalField(e)

	case *CallExpr:
		return it.evalCall(e)

	case *MethodCallExpr:
		return it.evalMethodCall(e)

	case *StaticCallExpr:
		return it.evalStaticCall(e)

	default:
		return MakeNull()
	}
}

// evalBinary implements spec.md §4.4's binary operator contract: `+`
// is overloaded for string concatenation whenever either side is a
// String; `-,*,/,%` are integer with divide/mod-by-zero yielding 0;
// comparisons coerce through as_int; `==`/`!=` compare within the same
// variant only; `&&`/`||` use truthiness and evaluate both operands
// (no short-circuit guarantee, per spec.md §4.4 and §9).
func (it *Interpreter) evalBinary(e *BinaryExpr) Value {
	left := it.eval(e.Left)
	right := it.eval(e.Right)

	switch e.Op {
	case "+":
		return Add(it.Heap, left, right)
	case "-":
		return Sub(left, right)
	case "*":
		return Mul(left, right)
	case "/":
		return Div(left, right)
	case "%":
		return Mod(left, right)
	case "<":
		return MakeBool(AsInt(left) < AsInt(right))
	case ">":
		return MakeBool(AsInt(left) > AsInt(right))
	case "<=":
		return MakeBool(AsInt(left) <= AsInt(right))
	case ">=":
		return MakeBool(AsInt(left) >= AsInt(right))
	case "==":
		return MakeBool(sameVariantEq(it.Heap, left, right))
	case "!=":
		return MakeBool(!sameVariantEq(it.Heap, left, right))
	case "&&":
		return MakeBool(Truthy(it.Heap, left) && Truthy(it.Heap, right))
	case "||":
		return MakeBool(Truthy(it.Heap, left) || Truthy(it.Heap, right))
	default:
		return MakeNull()
	}
}

// sameVariantEq restricts Eq to operands of the same runtime variant,
// per spec.md §4.4's "compare within the same variant only".
func sameVariantEq(h *Heap, a, b Value) bool {
	variant := func(v Value) int {
		switch {
		case IsNull(v):
			return 0
		case IsBool(v):
			return 1
		case IsInt(v):
			return 2
		case IsPtr(v):
			return 3
		}
		return -1
	}
	if variant(a) != variant(b) {
		return false
	}
	return Eq(h, a, b)
}

func (it *Interpreter) evalIndex(e *IndexExpr) Value {
	target := it.eval(e.Target)
	idx := int(AsInt(it.eval(e.Index)))
	if !IsPtr(target) {
		return MakeNull()
	}
	obj, ok := it.Heap.Get(untagPtr(target))
	if !ok {
		return MakeNull()
	}
	switch obj.Type {
	case ObjArray:
		if idx < 0 || idx >= len(obj.Items) {
			return MakeNull()
		}
		return obj.Items[idx]
	case ObjString:
		runes := []rune(obj.Str)
		if idx < 0 || idx >= len(runes) {
			return it.Heap.AllocAndTag(newStringObj(""))
		}
		return it.Heap.AllocAndTag(newStringObj(string(runes[idx])))
	default:
		return MakeNull()
	}
}

func (it *Interpreter) evalField(e *FieldExpr) Value {
	target := it.eval(e.Target)
	if !IsPtr(target) {
		return MakeNull()
	}
	obj, ok := it.Heap.Get(untagPtr(target))
	if !ok || obj.Type != ObjStruct {
		return MakeNull()
	}
	if v, ok := obj.Fields[e.Field]; ok {
		return v
	}
	return MakeNull()
}

func (it *Interpreter) evalCall(e *CallExpr) Value {
	name, ok := e.Callee.(*Identifier)
	if !ok {
		return MakeNull()
	}
	fn, ok := it.funcs[name.Name]
	if !ok {
		if it.log != nil {
			it.log.Warnw("call to undefined function", "name", name.Name)
		}
		return MakeNull()
	}
	args := it.evalArgs(e.Args)
	return it.invoke(fn, args)
}

func (it *Interpreter) evalArgs(exprs []Expr) []Value {
	args := make([]Value, len(exprs))
	for i, a := range exprs {
		args[i] = it.eval(a)
	}
	return args
}

// invoke calls fn with args in a fresh scope, running deferred
// statements on exit per spec.md §4.4, and unwraps the function's
// control-flow result to a plain Value (Break/Continue escaping a
// function are dropped to Null, per spec.md §4.4).
//
// Before tree-walking, it checks the method-tier JIT (C5): functions
// matching spec.md §4.5's restricted shapes get promoted to native code
// once they cross the hot threshold, and later calls dispatch straight
// to the compiled form instead of re-walking the AST.
func (it *Interpreter) invoke(fn *FuncDecl, args []Value) Value {
	if it.JIT != nil && len(fn.Params) == 1 && len(args) == 1 {
		if native, ok := it.JIT.Lookup(fn.Name); ok {
			return MakeInt(native.Call(AsInt(args[0])))
		}
		it.JIT.RecordCall(fn.Name)
		if it.JIT.ShouldCompile(fn.Name) {
			if body, ok := detectSimpleBody(fn); ok {
				if native, err := it.JIT.CompileSimpleFunction(fn.Name, body); err == nil {
					return MakeInt(native.Call(AsInt(args[0])))
				} else if it.log != nil {
					it.log.Debugw("jit compile failed, falling back to interpreter", "func", fn.Name, "error", err)
				}
			}
		}
	}

	it.pushScope()
	top := it.scopes[len(it.scopes)-1]
	for i, param := range fn.Params {
		if i < len(args) {
			top.vars[param] = args[i]
		} else {
			top.vars[param] = MakeNull()
		}
	}

	result := noSignal
	for _, stmt := range fn.Body.Stmts {
		result = it.execStmt(stmt)
		if result.kind != signalNone {
			break
		}
	}
	result = it.popScope(result)

	if result.kind == signalReturn {
		return result.value
	}
	return MakeNull()
}

// evalMethodCall resolves obj.method(args) by the runtime type of obj,
// per spec.md §4.4: Struct uses its declared name, Array uses "Array",
// String uses "string", Int uses "i32". Missing methods are a runtime
// error, contained and logged rather than unwinding (§7).
func (it *Interpreter) evalMethodCall(e *MethodCallExpr) Value {
	target := it.eval(e.Target)
	typeName := TypeName(it.Heap, target)
	fn, ok := it.methods[methodKey{typeName, e.Method}]
	if !ok {
		if it.log != nil {
			it.log.Warnw("missing method", "type", typeName, "method", e.Method)
		}
		return MakeNull()
	}
	args := append([]Value{target}, it.evalArgs(e.Args)...)
	return it.invoke(fn, args)
}

// evalStaticCall resolves T::m(args) directly against the (T, m)
// dispatch table, without a receiver argument.
func (it *Interpreter) evalStaticCall(e *StaticCallExpr) Value {
	fn, ok := it.methods[methodKey{e.TypeName, e.Method}]
	if !ok {
		if it.log != nil {
			it.log.Warnw("missing static method", "type", e.TypeName, "method", e.Method)
		}
		return MakeNull()
	}
	return it.invoke(fn, it.evalArgs(e.Args))
}
