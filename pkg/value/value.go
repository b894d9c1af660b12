// Package value defines the tagged-union runtime value every Atlas engine
// manipulates: the interpreter, the VM, and the stdlib dispatch layer all
// share this same representation so that the two engines can agree on
// equality, truthiness, display, and hashing bit-for-bit.
//
// Aggregates (String, Array, Map) are reference-counted handles under the
// hood but are value-typed from the program's perspective: mutation never
// shows through a sibling alias unless the program explicitly opts into
// Shared(T). See array.go and mapval.go for the copy-on-write discipline
// that makes this work.
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind byte

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindMap
	KindOption
	KindResult
	KindFunction
	KindShared
)

// TypeName returns the canonical type name used in diagnostics. Both
// engines must produce identical strings here.
func (k Kind) TypeName() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	case KindOption:
		return "option"
	case KindResult:
		return "result"
	case KindFunction:
		return "function"
	case KindShared:
		return "shared"
	default:
		return "unknown"
	}
}

// Value is the discriminated union shared by every engine. Only one of
// the payload fields is meaningful at a time, selected by Kind.
//
// Value is deliberately a small struct copied by value: aggregates carry
// their mutability through the boxed handle (str/arr/mp/fn/shared), not
// through Value itself, so copying a Value never deep-copies an aggregate.
type Value struct {
	kind Kind

	boolean bool
	number  float64

	str *stringHandle
	arr *Array
	mp  *Map

	option *optionBox
	result *resultBox

	fn     *Function
	shared *Shared
}

type stringHandle struct {
	s string
}

type optionBox struct {
	some  bool
	value Value
}

type resultBox struct {
	ok    bool
	value Value
}

// Null is the singleton null value.
var Null = Value{kind: KindNull}

// Bool constructs a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, boolean: b} }

// Number constructs a numeric value from a float64.
func Number(n float64) Value { return Value{kind: KindNumber, number: n} }

// Int is a convenience constructor for integral numbers.
func Int(n int64) Value { return Number(float64(n)) }

// String constructs a string value. Strings are immutable; copy-on-write
// mutation (via stdlib builtins like replace) always produces a new Value.
func String(s string) Value { return Value{kind: KindString, str: &stringHandle{s: s}} }

// Some wraps a value in Option::Some.
func Some(v Value) Value {
	return Value{kind: KindOption, option: &optionBox{some: true, value: v}}
}

// None is Option::None.
var None = Value{kind: KindOption, option: &optionBox{some: false}}

// Ok wraps a value in Result::Ok.
func Ok(v Value) Value {
	return Value{kind: KindResult, result: &resultBox{ok: true, value: v}}
}

// Err wraps a value in Result::Err.
func Err(v Value) Value {
	return Value{kind: KindResult, result: &resultBox{ok: false, value: v}}
}

// FromFunction wraps a *Function in a Value.
func FromFunction(fn *Function) Value { return Value{kind: KindFunction, fn: fn} }

// FromArray wraps an *Array in a Value.
func FromArray(a *Array) Value { return Value{kind: KindArray, arr: a} }

// FromMap wraps a *Map in a Value.
func FromMap(m *Map) Value { return Value{kind: KindMap, mp: m} }

// FromShared wraps a *Shared in a Value.
func FromShared(s *Shared) Value { return Value{kind: KindShared, shared: s} }

// Kind reports which variant this Value holds.
func (v Value) Kind() Kind { return v.kind }

// TypeName reports the canonical type name of v.
func (v Value) TypeName() string { return v.kind.TypeName() }

// IsNull reports whether v is Null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean payload; only meaningful when Kind() == KindBool.
func (v Value) AsBool() bool { return v.boolean }

// AsNumber returns the numeric payload; only meaningful when Kind() == KindNumber.
func (v Value) AsNumber() float64 { return v.number }

// AsString returns the string payload; only meaningful when Kind() == KindString.
func (v Value) AsString() string {
	if v.str == nil {
		return ""
	}
	return v.str.s
}

// AsArray returns the array handle; only meaningful when Kind() == KindArray.
func (v Value) AsArray() *Array { return v.arr }

// AsMap returns the map handle; only meaningful when Kind() == KindMap.
func (v Value) AsMap() *Map { return v.mp }

// AsFunction returns the function; only meaningful when Kind() == KindFunction.
func (v Value) AsFunction() *Function { return v.fn }

// AsShared returns the shared cell; only meaningful when Kind() == KindShared.
func (v Value) AsShared() *Shared { return v.shared }

// IsSomeOption reports whether v is Option::Some; only meaningful for Kind() == KindOption.
func (v Value) IsSomeOption() bool { return v.option != nil && v.option.some }

// OptionValue returns the wrapped value of Option::Some. For None it
// returns the zero Value (null), and it panics if v is not an Option;
// callers must check IsSomeOption first (mirrors UnwrapOption's contract).
func (v Value) OptionValue() Value { return v.option.value }

// IsOkResult reports whether v is Result::Ok; only meaningful for Kind() == KindResult.
func (v Value) IsOkResult() bool { return v.result != nil && v.result.ok }

// ResultValue returns the wrapped value of a Result, whichever variant it is.
func (v Value) ResultValue() Value { return v.result.value }

// Truthiness implements spec falsiness: false iff Null, Bool(false),
// Number(0.0), Number(NaN), empty String, empty Array, empty Map,
// Option::None, or Result::Err. Everything else is truthy.
func Truthiness(v Value) bool {
	switch v.kind {
	case KindNull:
		return false
	case KindBool:
		return v.boolean
	case KindNumber:
		return v.number != 0 && !math.IsNaN(v.number)
	case KindString:
		return v.AsString() != ""
	case KindArray:
		return v.arr.Len() != 0
	case KindMap:
		return v.mp.Len() != 0
	case KindOption:
		return v.IsSomeOption()
	case KindResult:
		return v.IsOkResult()
	default:
		return true
	}
}

// Eq implements structural equality. Cross-type comparison is always false
// except Null == Null. Number equality follows IEEE-754 (NaN != NaN).
// Function equality is reference identity.
func Eq(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.boolean == b.boolean
	case KindNumber:
		return a.number == b.number
	case KindString:
		return a.AsString() == b.AsString()
	case KindArray:
		return arrayEq(a.arr, b.arr)
	case KindMap:
		return mapEq(a.mp, b.mp)
	case KindOption:
		if a.IsSomeOption() != b.IsSomeOption() {
			return false
		}
		if !a.IsSomeOption() {
			return true
		}
		return Eq(a.OptionValue(), b.OptionValue())
	case KindResult:
		if a.IsOkResult() != b.IsOkResult() {
			return false
		}
		return Eq(a.ResultValue(), b.ResultValue())
	case KindFunction:
		return a.fn == b.fn
	case KindShared:
		return a.shared == b.shared
	default:
		return false
	}
}

// Ordering is the result of Ord.
type Ordering int

const (
	OrderLess Ordering = iota
	OrderEqual
	OrderGreater
	OrderIncomparable
)

// Ord defines total order only on (Number, Number) and (String, String).
// Every other pair is OrderIncomparable; callers applying <, <=, >, >= must
// surface that as a TypeError.
func Ord(a, b Value) Ordering {
	if a.kind != b.kind {
		return OrderIncomparable
	}
	switch a.kind {
	case KindNumber:
		switch {
		case a.number < b.number:
			return OrderLess
		case a.number > b.number:
			return OrderGreater
		case a.number == b.number:
			return OrderEqual
		default:
			// NaN on either side.
			return OrderIncomparable
		}
	case KindString:
		switch strings.Compare(a.AsString(), b.AsString()) {
		case -1:
			return OrderLess
		case 1:
			return OrderGreater
		default:
			return OrderEqual
		}
	default:
		return OrderIncomparable
	}
}

// Hashable reports whether Hash is defined for v's kind.
func Hashable(v Value) bool {
	switch v.kind {
	case KindNumber, KindString, KindBool, KindNull:
		return true
	default:
		return false
	}
}

// Hash computes a stable hash for hashable variants (Number with NaN
// canonicalized, String, Bool, Null). Callers must check Hashable first;
// the dispatch layer surfaces a call on a non-hashable kind as
// UnhashableKey rather than calling Hash.
func Hash(v Value) uint64 {
	const fnvOffset = 14695981039346656037
	const fnvPrime = 1099511628211

	hashBytes := func(b []byte) uint64 {
		h := uint64(fnvOffset)
		for _, c := range b {
			h ^= uint64(c)
			h *= fnvPrime
		}
		return h
	}

	switch v.kind {
	case KindNull:
		return hashBytes([]byte{0})
	case KindBool:
		if v.boolean {
			return hashBytes([]byte{1, 1})
		}
		return hashBytes([]byte{1, 0})
	case KindNumber:
		n := v.number
		if math.IsNaN(n) {
			// Canonicalize NaN so every NaN hashes identically.
			return hashBytes([]byte{2, 0xFF})
		}
		bits := math.Float64bits(n)
		buf := make([]byte, 9)
		buf[0] = 2
		for i := 0; i < 8; i++ {
			buf[i+1] = byte(bits >> (8 * i))
		}
		return hashBytes(buf)
	case KindString:
		buf := append([]byte{3}, []byte(v.AsString())...)
		return hashBytes(buf)
	default:
		panic("value: Hash called on unhashable kind " + v.TypeName())
	}
}

// Display renders v in Atlas's canonical textual form, used by the print
// builtin and by both engines' stack-trace / debug output. It must be
// identical across engines and injective across distinct structural
// values within a variant.
func Display(v Value) string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		if v.boolean {
			return "true"
		}
		return "false"
	case KindNumber:
		return displayNumber(v.number)
	case KindString:
		return strconv.Quote(v.AsString())
	case KindArray:
		parts := make([]string, v.arr.Len())
		for i := 0; i < v.arr.Len(); i++ {
			parts[i] = Display(v.arr.Get(i))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		parts := make([]string, 0, v.mp.Len())
		for _, k := range v.mp.Keys() {
			val, _ := v.mp.Get(k)
			parts = append(parts, Display(k)+": "+Display(val))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindOption:
		if !v.IsSomeOption() {
			return "none"
		}
		return "some(" + Display(v.OptionValue()) + ")"
	case KindResult:
		if v.IsOkResult() {
			return "ok(" + Display(v.ResultValue()) + ")"
		}
		return "err(" + Display(v.ResultValue()) + ")"
	case KindFunction:
		return fmt.Sprintf("<fn:%s/%d>", v.fn.Name, v.fn.Arity)
	case KindShared:
		return "shared(" + Display(v.shared.Get()) + ")"
	default:
		return "<?>"
	}
}

// displayNumber prints the shortest round-trippable decimal, omitting a
// trailing ".0" for integral values, matching spec.md's canonical display.
func displayNumber(n float64) string {
	if math.IsNaN(n) {
		return "NaN"
	}
	if math.IsInf(n, 1) {
		return "Infinity"
	}
	if math.IsInf(n, -1) {
		return "-Infinity"
	}
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}
