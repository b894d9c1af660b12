package builtin

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"atlas/pkg/value"
)

// fakeContext is a minimal Context for exercising builtins in isolation,
// without standing up an interpreter or VM.
type fakeContext struct {
	denied bool
	output strings.Builder
}

func (c *fakeContext) Check(p Permission) *value.Failure {
	if c.denied {
		return value.NewFailure(value.PermissionDenied, string(p)+" denied", value.Span{})
	}
	return nil
}
func (c *fakeContext) Print(s string)      { c.output.WriteString(s) }
func (c *fakeContext) MutationSource() bool { return true }

func TestPushAppendsAndReturnsArray(t *testing.T) {
	arr := value.FromArray(value.NewArray([]value.Value{value.Number(1), value.Number(2)}))
	result, fail := builtinPush([]value.Value{arr, value.Number(3)}, &fakeContext{})
	require.Nil(t, fail)
	require.Equal(t, 3, result.AsArray().Len())
	require.True(t, value.Eq(result.AsArray().Get(2), value.Number(3)))
}

func TestPushRejectsNonArray(t *testing.T) {
	_, fail := builtinPush([]value.Value{value.Number(1), value.Number(2)}, &fakeContext{})
	require.NotNil(t, fail)
	require.Equal(t, value.TypeError, fail.Kind)
}

func TestPopReturnsLastElementAndShrinksArray(t *testing.T) {
	backing := value.NewArray([]value.Value{value.Number(1), value.Number(2), value.Number(3)})
	arr := value.FromArray(backing)
	result, fail := builtinPop([]value.Value{arr}, &fakeContext{})
	require.Nil(t, fail)
	require.True(t, value.Eq(result, value.Number(3)))
	require.Equal(t, 2, backing.Len())
}

func TestPopOnEmptyArrayFails(t *testing.T) {
	arr := value.FromArray(value.NewArray(nil))
	_, fail := builtinPop([]value.Value{arr}, &fakeContext{})
	require.NotNil(t, fail)
	require.Equal(t, value.IndexOutOfBounds, fail.Kind)
}

func TestLenAcrossKinds(t *testing.T) {
	arr := value.FromArray(value.NewArray([]value.Value{value.Number(1), value.Number(2)}))
	result, fail := builtinLen([]value.Value{arr}, &fakeContext{})
	require.Nil(t, fail)
	require.True(t, value.Eq(result, value.Int(2)))

	str := value.String("hello")
	result, fail = builtinLen([]value.Value{str}, &fakeContext{})
	require.Nil(t, fail)
	require.True(t, value.Eq(result, value.Int(5)))
}

func TestMapInsertPreservesInsertionOrder(t *testing.T) {
	m := value.FromMap(value.NewMap())
	m, fail := builtinMapInsert([]value.Value{m, value.String("b"), value.Number(2)}, &fakeContext{})
	require.Nil(t, fail)
	m, fail = builtinMapInsert([]value.Value{m, value.String("a"), value.Number(1)}, &fakeContext{})
	require.Nil(t, fail)

	keys := m.AsMap().Keys()
	require.Len(t, keys, 2)
	require.Equal(t, "b", keys[0].AsString())
	require.Equal(t, "a", keys[1].AsString())
}

func TestMapInsertRejectsUnhashableKey(t *testing.T) {
	m := value.FromMap(value.NewMap())
	arrKey := value.FromArray(value.NewArray(nil))
	_, fail := builtinMapInsert([]value.Value{m, arrKey, value.Number(1)}, &fakeContext{})
	require.NotNil(t, fail)
	require.Equal(t, value.UnhashableKey, fail.Kind)
}

func TestMapRemoveReportsWhetherKeyExisted(t *testing.T) {
	m := value.FromMap(value.NewMap().Insert(value.String("k"), value.Number(1)))
	result, fail := builtinMapRemove([]value.Value{m, value.String("k")}, &fakeContext{})
	require.Nil(t, fail)
	require.True(t, result.AsBool())

	result, fail = builtinMapRemove([]value.Value{m, value.String("missing")}, &fakeContext{})
	require.Nil(t, fail)
	require.False(t, result.AsBool())
}

func TestSortOrdersNumbersAscending(t *testing.T) {
	arr := value.FromArray(value.NewArray([]value.Value{value.Number(3), value.Number(1), value.Number(2)}))
	result, fail := builtinSort([]value.Value{arr}, &fakeContext{})
	require.Nil(t, fail)
	require.True(t, value.Eq(result.AsArray().Get(0), value.Number(1)))
	require.True(t, value.Eq(result.AsArray().Get(1), value.Number(2)))
	require.True(t, value.Eq(result.AsArray().Get(2), value.Number(3)))
}

func TestSortRejectsIncomparableElements(t *testing.T) {
	arr := value.FromArray(value.NewArray([]value.Value{value.Number(1), value.String("x")}))
	_, fail := builtinSort([]value.Value{arr}, &fakeContext{})
	require.NotNil(t, fail)
	require.Equal(t, value.TypeError, fail.Kind)
}

func TestPrintWritesSpaceSeparatedDisplayForm(t *testing.T) {
	ctx := &fakeContext{}
	_, fail := builtinPrint([]value.Value{value.Number(1), value.String("x")}, ctx)
	require.Nil(t, fail)
	require.Equal(t, "1 \"x\"\n", ctx.output.String())
}

func TestRegistryLooksUpDefaults(t *testing.T) {
	r := NewRegistry()
	entry, ok := r.Lookup("push")
	require.True(t, ok)
	require.Equal(t, Arity{Min: 2, Max: 2}, entry.Arity)

	_, ok = r.Lookup("does_not_exist")
	require.False(t, ok)
}

func TestCheckArityVariadicAndFixed(t *testing.T) {
	require.Nil(t, CheckArity("print", 3, Arity{Min: 1, Max: -1}))
	require.NotNil(t, CheckArity("print", 0, Arity{Min: 1, Max: -1}))
	require.Nil(t, CheckArity("push", 2, Arity{Min: 2, Max: 2}))
	require.NotNil(t, CheckArity("push", 1, Arity{Min: 2, Max: 2}))
}
