package vex

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is the tagged 64-bit word described in spec.md §3. The low bit
// discriminates integers (shifted left by one) from pointers: a pointer
// carries an ObjectId in its high 63 bits, a zero Value is the
// null/invalid sentinel, and no live object is ever allocated at
// ObjectId 0 so that invariant holds.
type Value uint64

const nullValue Value = 0

// MakeInt tags a 63-bit signed integer as a Value. Two's-complement
// wraparound on overflow is permitted by spec.md §4.1 and falls out of
// the plain shift.
func MakeInt(n int64) Value {
	return Value(uint64(n)<<1 | 1)
}

// MakeBool returns one of the two reserved Bool sentinels below; see
// IsBool/AsBool for how booleans are told apart from ints and pointers.
func MakeBool(b bool) Value {
	if b {
		return boolTrue
	}
	return boolFalse
}

// MakeNull returns the null machine value (0), which is never a valid
// object pointer per spec.md §3.
func MakeNull() Value { return nullValue }

// boolFalse/boolTrue reuse the bit patterns of tagged pointers to
// ObjectIds 1 and 2, which the Heap never allocates, so that Bool stays
// a heap-less variant alongside Int, matching the sum type in spec.md
// §3 without growing the tag space.
const (
	boolFalse Value = 2 // pointer bit clear, reserved non-zero sentinel
	boolTrue  Value = 4
)

func IsInt(v Value) bool  { return v&1 == 1 }
func IsNull(v Value) bool { return v == nullValue }
func IsBool(v Value) bool { return v == boolTrue || v == boolFalse }

// IsPtr reports whether v addresses a boxed heap object (String, Array,
// Struct or Function), per spec.md §3's tagged pointer layout: low bit
// clear and value non-zero, excluding the two Bool sentinels.
func IsPtr(v Value) bool { return v&1 == 0 && v != nullValue && !IsBool(v) }

func AsInt(v Value) int64 {
	switch {
	case IsInt(v):
		return int64(v) >> 1
	case IsBool(v):
		if v == boolTrue {
			return 1
		}
		return 0
	default:
		return 0
	}
}

func AsBool(v Value) bool {
	return v == boolTrue
}

// tagPtr/untagPtr convert between a heap ObjectId and its Value
// encoding. ObjectIds are assigned starting at 3 by the Heap (C2,
// firstObjectId) so that a tagged pointer to id 0 never arises,
// preserving "no valid object pointer is exactly 0", and ids 1 and 2
// stay free for the Bool sentinels.
func tagPtr(id ObjectId) Value {
	return Value(uint64(id) << 1)
}

func untagPtr(v Value) ObjectId {
	return ObjectId(uint64(v) >> 1)
}

// ObjType is the boxed object's one-byte type tag; String = 0 and
// Array = 1 as in spec.md §6.
type ObjType uint8

const (
	ObjString ObjType = iota
	ObjArray
	ObjStruct
	ObjFunction
)

// Obj is the payload behind a heap Value: String, Array, Struct or
// Function, per spec.md §3's object header.
type Obj struct {
	Type ObjType

	// String payload.
	Str string

	// Array payload: ordered Values, possibly tagged pointers.
	Items []Value

	// Struct payload: declared name plus an order-preserving field
	// mapping.
	StructName string
	FieldOrder []string
	Fields     map[string]Value

	// Function payload.
	FuncName   string
	Params     []string
	FuncBody   Stmt
}

func newStringObj(s string) *Obj { return &Obj{Type: ObjString, Str: s} }

func newArrayObj(items []Value) *Obj {
	cp := make([]Value, len(items))
	copy(cp, items)
	return &Obj{Type: ObjArray, Items: cp}
}

func newStructObj(name string) *Obj {
	return &Obj{Type: ObjStruct, StructName: name, Fields: map[string]Value{}}
}

func newFunctionObj(name string, params []string, body Stmt) *Obj {
	return &Obj{Type: ObjFunction, FuncName: name, Params: params, FuncBody: body}
}

// SetField assigns a struct field, recording insertion order the first
// time a key is seen, matching spec.md §3's "order preserved for
// printing" invariant.
func (o *Obj) SetField(name string, v Value) {
	if _, ok := o.Fields[name]; !ok {
		o.FieldOrder = append(o.FieldOrder, name)
	}
	o.Fields[name] = v
}

// TypeName returns the runtime type name used for method dispatch
// (§4.4): "Array", "string", "i32" for the built-in kinds, or the
// struct's declared name.
func TypeName(h *Heap, v Value) string {
	switch {
	case IsInt(v):
		return "i32"
	case IsBool(v):
		return "bool"
	case IsNull(v):
		return "null"
	case IsPtr(v):
		obj, ok := h.Get(untagPtr(v))
		if !ok {
			return "null"
		}
		switch obj.Type {
		case ObjString:
			return "string"
		case ObjArray:
			return "Array"
		case ObjStruct:
			return obj.StructName
		case ObjFunction:
			return "Function"
		}
	}
	return "null"
}

// Truthy implements spec.md §4.1's truthiness contract: Null, false,
// Int 0, empty String and empty Array are falsy; everything else is
// truthy.
func Truthy(h *Heap, v Value) bool {
	switch {
	case IsNull(v):
		return false
	case IsBool(v):
		return AsBool(v)
	case IsInt(v):
		return AsInt(v) != 0
	case IsPtr(v):
		obj, ok := h.Get(untagPtr(v))
		if !ok {
			return false
		}
		switch obj.Type {
		case ObjString:
			return obj.Str != ""
		case ObjArray:
			return len(obj.Items) != 0
		default:
			return true
		}
	}
	return false
}

// Eq implements spec.md §4.1's equality contract: pointer equality
// first, then structural equality for Strings only (the asymmetry
// noted in spec.md §9 — Array/Struct equality stays identity-based).
// Ints and Bools compare by value; mixed kinds are never equal.
func Eq(h *Heap, a, b Value) bool {
	if a == b {
		return true
	}
	if IsInt(a) && IsInt(b) {
		return AsInt(a) == AsInt(b)
	}
	if IsBool(a) && IsBool(b) {
		return AsBool(a) == AsBool(b)
	}
	if IsPtr(a) && IsPtr(b) {
		oa, oka := h.Get(untagPtr(a))
		ob, okb := h.Get(untagPtr(b))
		if oka && okb && oa.Type == ObjString && ob.Type == ObjString {
			return oa.Str == ob.Str
		}
	}
	return false
}

// Add implements spec.md §4.1's arithmetic contract: Int+Int wraps in
// two's complement; String concatenation triggers whenever either
// operand is a String (String+String, String+Int, Int+String); every
// other combination yields tagged 0.
func Add(h *Heap, a, b Value) Value {
	if IsInt(a) && IsInt(b) {
		return MakeInt(AsInt(a) + AsInt(b))
	}
	if sa, ok := asString(h, a); ok {
		sb := stringRepr(h, b)
		return h.AllocAndTag(newStringObj(sa + sb))
	}
	if sb, ok := asString(h, b); ok {
		sa := stringRepr(h, a)
		return h.AllocAndTag(newStringObj(sa + sb))
	}
	return MakeInt(0)
}

func asString(h *Heap, v Value) (string, bool) {
	if !IsPtr(v) {
		return "", false
	}
	obj, ok := h.Get(untagPtr(v))
	if !ok || obj.Type != ObjString {
		return "", false
	}
	return obj.Str, true
}

// stringRepr renders any Value the way Print does, used by string
// concatenation's Int/Bool/Null promotion.
func stringRepr(h *Heap, v Value) string {
	var sb strings.Builder
	WriteValue(&sb, h, v)
	return sb.String()
}

func arith(op string, a, b int64) int64 {
	switch op {
	case "+":
		return a + b
	case "-":
		return a - b
	case "*":
		return a * b
	case "/":
		if b == 0 {
			return 0
		}
		return a / b
	case "%":
		if b == 0 {
			return 0
		}
		return a % b
	}
	return 0
}

func Sub(a, b Value) Value { return MakeInt(arith("-", AsInt(a), AsInt(b))) }
func Mul(a, b Value) Value { return MakeInt(arith("*", AsInt(a), AsInt(b))) }
func Div(a, b Value) Value { return MakeInt(arith("/", AsInt(a), AsInt(b))) }
func Mod(a, b Value) Value { return MakeInt(arith("%", AsInt(a), AsInt(b))) }

func Lt(a, b Value) Value { return MakeBool(AsInt(a) < AsInt(b)) }
func Gt(a, b Value) Value { return MakeBool(AsInt(a) > AsInt(b)) }

// WriteValue renders v according to spec.md §6's printing format:
// decimal ints, true/false, "null", raw string bytes, bracketed arrays
// and "Name { k: v, ... }" structs, recursing through the heap.
func WriteValue(sb *strings.Builder, h *Heap, v Value) {
	switch {
	case IsNull(v):
		sb.WriteString("null")
	case IsBool(v):
		sb.WriteString(strconv.FormatBool(AsBool(v)))
	case IsInt(v):
		sb.WriteString(strconv.FormatInt(AsInt(v), 10))
	case IsPtr(v):
		obj, ok := h.Get(untagPtr(v))
		if !ok {
			sb.WriteString("null")
			return
		}
		switch obj.Type {
		case ObjString:
			sb.WriteString(obj.Str)
		case ObjArray:
			sb.WriteByte('[')
			for i, item := range obj.Items {
				if i > 0 {
					sb.WriteString(", ")
				}
				WriteValue(sb, h, item)
			}
			sb.WriteByte(']')
		case ObjStruct:
			sb.WriteString(obj.StructName)
			sb.WriteString(" { ")
			for i, k := range obj.FieldOrder {
				if i > 0 {
					sb.WriteString(", ")
				}
				fmt.Fprintf(sb, "%s: ", k)
				WriteValue(sb, h, obj.Fields[k])
			}
			sb.WriteString(" }")
		case ObjFunction:
			fmt.Fprintf(sb, "fn %s", obj.FuncName)
		}
	default:
		sb.WriteString("null")
	}
}

// FormatValue is the string returned by WriteValue, used by Print (C3,
// C4) and string promotion in Add.
func FormatValue(h *Heap, v Value) string {
	var sb strings.Builder
	WriteValue(&sb, h, v)
	return sb.String()
}
