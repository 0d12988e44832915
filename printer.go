package vex

import (
	"fmt"
	"strconv"

	"github.com/vexlang/vex/ascii"
)

// nodeKind tags what kind of thing a printed line represents, so the
// tree printer's FormatFunc can colorize it per ascii.DefaultTheme.
type nodeKind string

const (
	kindStmt    nodeKind = "stmt"
	kindExpr    nodeKind = "expr"
	kindLiteral nodeKind = "literal"
	kindOp      nodeKind = "op"
)

func themedFormat(input string, kind nodeKind) string {
	switch kind {
	case kindStmt:
		return ascii.Color(ascii.DefaultTheme.Accent, input)
	case kindLiteral:
		return ascii.Color(ascii.DefaultTheme.Literal, input)
	case kindOp:
		return ascii.Color(ascii.DefaultTheme.Operator, input)
	default:
		return input
	}
}

// DumpAST renders a program's statements as an indented, colorized
// tree, reusing the teacher's generic treePrinter rather than a
// bespoke walker.
func DumpAST(program []Stmt) string {
	tp := newTreePrinter(func(input string, kind nodeKind) string {
		return themedFormat(input, kind)
	})
	for _, stmt := range program {
		dumpStmt(tp, stmt)
	}
	return tp.output.String()
}

func dumpStmt(tp *treePrinter[nodeKind], stmt Stmt) {
	switch s := stmt.(type) {
	case *LetStmt:
		tp.pwritel(tp.format(fmt.Sprintf("let %s = %s", s.Name, dumpExpr(s.Value)), kindStmt))
	case *AssignStmt:
		tp.pwritel(tp.format(fmt.Sprintf("%s = %s", s.Name, dumpExpr(s.Value)), kindStmt))
	case *ReturnStmt:
		if s.Value == nil {
			tp.pwritel(tp.format("return", kindStmt))
		} else {
			tp.pwritel(tp.format("return "+dumpExpr(s.Value), kindStmt))
		}
	case *PrintStmt:
		tp.pwritel(tp.format("print "+dumpExpr(s.Value), kindStmt))
	case *ExprStmt:
		tp.pwritel(tp.format(dumpExpr(s.Value), kindStmt))
	case *IfStmt:
		tp.pwritel(tp.format("if "+dumpExpr(s.Cond), kindStmt))
		tp.indent("  ")
		dumpStmt(tp, s.Then)
		tp.unindent()
		if s.Else != nil {
			tp.pwritel(tp.format("else", kindStmt))
			tp.indent("  ")
			dumpStmt(tp, s.Else)
			tp.unindent()
		}
	case *WhileStmt:
		tp.pwritel(tp.format("while "+dumpExpr(s.Cond), kindStmt))
		tp.indent("  ")
		dumpStmt(tp, s.Body)
		tp.unindent()
	case *BlockStmt:
		for _, inner := range s.Stmts {
			dumpStmt(tp, inner)
		}
	case *FuncDecl:
		tp.pwritel(tp.format(fmt.Sprintf("fn %s(%s)", s.Name, joinParams(s.Params)), kindStmt))
		tp.indent("  ")
		dumpStmt(tp, s.Body)
		tp.unindent()
	case *DeferStmt:
		tp.pwritel(tp.format("defer", kindStmt))
		tp.indent("  ")
		dumpStmt(tp, s.Call)
		tp.unindent()
	case *BreakStmt:
		tp.pwritel(tp.format("break", kindStmt))
	case *ContinueStmt:
		tp.pwritel(tp.format("continue", kindStmt))
	case *ImportStmt:
		tp.pwritel(tp.format("import "+strconv.Quote(s.Path), kindStmt))
	}
}

func joinParams(params []string) string {
	out := ""
	for i, p := range params {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

func dumpExpr(e Expr) string {
	switch v := e.(type) {
	case *Identifier:
		return v.Name
	case *IntLiteral:
		return strconv.FormatInt(v.Value, 10)
	case *StringLiteral:
		return strconv.Quote(v.Value)
	case *BoolLiteral:
		return strconv.FormatBool(v.Value)
	case *NullLiteral:
		return "null"
	case *BinaryExpr:
		return fmt.Sprintf("(%s %s %s)", dumpExpr(v.Left), v.Op, dumpExpr(v.Right))
	case *UnaryExpr:
		return fmt.Sprintf("(%s%s)", v.Op, dumpExpr(v.Operand))
	case *IndexExpr:
		return fmt.Sprintf("%s[%s]", dumpExpr(v.Target), dumpExpr(v.Index))
	case *FieldExpr:
		return fmt.Sprintf("%s.%s", dumpExpr(v.Target), v.Field)
	case *CallExpr:
		return fmt.Sprintf("%s(%s)", dumpExpr(v.Callee), joinExprs(v.Args))
	case *MethodCallExpr:
		return fmt.Sprintf("%s.%s(%s)", dumpExpr(v.Target), v.Method, joinExprs(v.Args))
	case *StaticCallExpr:
		return fmt.Sprintf("%s::%s(%s)", v.TypeName, v.Method, joinExprs(v.Args))
	default:
		return "?"
	}
}

func joinExprs(exprs []Expr) string {
	out := ""
	for i, e := range exprs {
		if i > 0 {
			out += ", "
		}
		out += dumpExpr(e)
	}
	return out
}

// opcodeNames mirrors the Opcode enum for disassembly output.
var opcodeNames = map[Opcode]string{
	OpConst: "CONST", OpConstTrue: "CONST_TRUE", OpConstFalse: "CONST_FALSE",
	OpConstNull: "CONST_NULL", OpAdd: "ADD", OpSub: "SUB", OpMul: "MUL",
	OpDiv: "DIV", OpMod: "MOD", OpNeg: "NEG", OpLt: "LT", OpGt: "GT",
	OpLe: "LE", OpGe: "GE", OpEq: "EQ", OpNe: "NE", OpNot: "NOT",
	OpAnd: "AND", OpOr: "OR", OpJump: "JUMP", OpJumpIfFalse: "JUMP_IF_FALSE",
	OpJumpIfTrue: "JUMP_IF_TRUE", OpLoadLocal: "LOAD_LOCAL",
	OpStoreLocal: "STORE_LOCAL", OpCall: "CALL", OpReturn: "RETURN",
	OpPop: "POP", OpDup: "DUP", OpPrint: "PRINT", OpHalt: "HALT",
}

// Disassemble renders a compiled function's instruction stream as a
// colorized, line-numbered listing, reusing the same treePrinter the
// AST dumper uses.
func Disassemble(fn *CompiledFunc) string {
	tp := newTreePrinter(func(input string, kind nodeKind) string {
		return themedFormat(input, kind)
	})
	tp.writel(tp.format(fmt.Sprintf("fn %s/%d", fn.Name, fn.Arity), kindStmt))
	for i, instr := range fn.Code {
		name := opcodeNames[instr.Op]
		line := fmt.Sprintf("%4d  %s", i, tp.format(name, kindOp))
		if opHasOperand(instr.Op) {
			line += " " + tp.format(strconv.FormatInt(instr.A, 10), kindLiteral)
		}
		tp.writel(line)
	}
	return tp.output.String()
}

func opHasOperand(op Opcode) bool {
	switch op {
	case OpConst, OpJump, OpJumpIfFalse, OpJumpIfTrue, OpLoadLocal, OpStoreLocal, OpCall:
		return true
	default:
		return false
	}
}
