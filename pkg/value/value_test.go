package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruthiness(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want bool
	}{
		{"null", Null, false},
		{"false", Bool(false), false},
		{"true", Bool(true), true},
		{"zero", Number(0), false},
		{"nan", Number(math.NaN()), false},
		{"nonzero", Number(1), true},
		{"empty string", String(""), false},
		{"nonempty string", String("x"), true},
		{"empty array", FromArray(NewArray(nil)), false},
		{"nonempty array", FromArray(NewArray([]Value{Int(1)})), true},
		{"empty map", FromMap(NewMap()), false},
		{"nonempty map", FromMap(NewMap().Insert(Int(1), Int(2))), true},
		{"none", None, false},
		{"some", Some(Int(1)), true},
		{"err", Err(Int(1)), false},
		{"ok", Ok(Int(1)), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Truthiness(tc.v))
		})
	}
}

func TestEqDeepStructural(t *testing.T) {
	a := FromArray(NewArray([]Value{Int(1), FromArray(NewArray([]Value{Int(2), FromArray(NewArray([]Value{Int(3)}))}))}))
	b := FromArray(NewArray([]Value{Int(1), FromArray(NewArray([]Value{Int(2), FromArray(NewArray([]Value{Int(3)}))}))}))
	c := FromArray(NewArray([]Value{Int(1), FromArray(NewArray([]Value{Int(2), FromArray(NewArray([]Value{Int(4)}))}))}))

	assert.True(t, Eq(a, b))
	assert.False(t, Eq(a, c))
}

func TestEqCrossTypeAlwaysFalseExceptNull(t *testing.T) {
	assert.True(t, Eq(Null, Null))
	assert.False(t, Eq(Int(0), Bool(false)))
	assert.False(t, Eq(String(""), Null))
}

func TestNumberEqualityIEEE(t *testing.T) {
	nan := Number(math.NaN())
	assert.False(t, Eq(nan, nan))
}

func TestOrdOnlyNumberAndString(t *testing.T) {
	assert.Equal(t, OrderLess, Ord(Int(1), Int(2)))
	assert.Equal(t, OrderGreater, Ord(String("b"), String("a")))
	assert.Equal(t, OrderIncomparable, Ord(Int(1), String("a")))
	assert.Equal(t, OrderIncomparable, Ord(Bool(true), Bool(false)))
}

func TestHashUnhashableKinds(t *testing.T) {
	assert.True(t, Hashable(Int(1)))
	assert.True(t, Hashable(String("x")))
	assert.True(t, Hashable(Bool(true)))
	assert.True(t, Hashable(Null))
	assert.False(t, Hashable(FromArray(NewArray(nil))))
	assert.False(t, Hashable(FromMap(NewMap())))
}

func TestHashNaNCanonicalized(t *testing.T) {
	a := Number(math.NaN())
	b := Number(math.NaN())
	assert.Equal(t, Hash(a), Hash(b))
}

func TestDisplayCanonicalForms(t *testing.T) {
	assert.Equal(t, "null", Display(Null))
	assert.Equal(t, "true", Display(Bool(true)))
	assert.Equal(t, "42", Display(Int(42)))
	assert.Equal(t, "3.5", Display(Number(3.5)))
	assert.Equal(t, `"hi"`, Display(String("hi")))
	assert.Equal(t, "[1, 2, 3]", Display(FromArray(NewArray([]Value{Int(1), Int(2), Int(3)}))))

	fn := &Function{Name: "add", Arity: 2}
	assert.Equal(t, "<fn:add/2>", Display(FromFunction(fn)))
}

func TestDisplayInjectiveAcrossDistinctNumbers(t *testing.T) {
	require.NotEqual(t, Display(Int(1)), Display(Int(2)))
	require.NotEqual(t, Display(Number(1.5)), Display(Number(1.50001)))
}

func TestArrayCopyOnWriteAliasUnaffected(t *testing.T) {
	a := NewArray([]Value{Int(1), Int(2), Int(3)})
	b := a.Alias()

	a = a.Push(Int(4))

	assert.Equal(t, 4, a.Len())
	assert.Equal(t, 3, b.Len())
}

func TestArrayUnaliasedMutationIsInPlace(t *testing.T) {
	a := NewArray([]Value{Int(1)})
	before := a
	a = a.Push(Int(2))
	assert.Same(t, before, a)
}

func TestMapInsertionOrderPreservedAfterRemove(t *testing.T) {
	m := NewMap()
	m = m.Insert(String("b"), Int(1))
	m = m.Insert(String("a"), Int(2))
	m = m.Insert(String("c"), Int(3))
	m, _ = m.Remove(String("a"))
	m = m.Insert(String("d"), Int(4))

	keys := m.Keys()
	require.Len(t, keys, 3)
	assert.Equal(t, "b", keys[0].AsString())
	assert.Equal(t, "c", keys[1].AsString())
	assert.Equal(t, "d", keys[2].AsString())
}

func TestMapCopyOnWriteAliasUnaffected(t *testing.T) {
	m := NewMap().Insert(String("x"), Int(1))
	alias := m.Alias()
	m = m.Insert(String("y"), Int(2))

	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 1, alias.Len())
}

func TestSharedVisibleThroughAllAliases(t *testing.T) {
	s := NewShared(Int(1))
	v1 := FromShared(s)
	v2 := FromShared(s)

	v2.AsShared().Set(Int(99))

	assert.Equal(t, float64(99), v1.AsShared().Get().AsNumber())
}

func TestFailureRenderIncludesStackTrace(t *testing.T) {
	f := NewFailure(DivisionByZero, "division by zero", Span{File: "main.atl", Line: 3, Column: 5})
	f = f.WithFrame(StackFrame{FunctionName: "main", Span: Span{Line: 3}})

	rendered := f.Render()
	assert.Contains(t, rendered, "DivisionByZero")
	assert.Contains(t, rendered, "division by zero")
	assert.Contains(t, rendered, "main")
}
