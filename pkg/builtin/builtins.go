package builtin

import "atlas/pkg/value"

// Default is the illustrative builtin set this package ships: enough to
// exercise every element of the dispatch contract (arity checking,
// permission checks, output capture, write-back) without trying to be a
// complete standard library. A host embedding Atlas registers additional
// builtins on top of this set via Registry.Register.
var Default = []Entry{
	{Name: "push", Arity: Arity{Min: 2, Max: 2}, Fn: builtinPush},
	{Name: "pop", Arity: Arity{Min: 1, Max: 1}, Fn: builtinPop},
	{Name: "len", Arity: Arity{Min: 1, Max: 1}, Fn: builtinLen},
	{Name: "mapInsert", Arity: Arity{Min: 3, Max: 3}, Fn: builtinMapInsert},
	{Name: "mapRemove", Arity: Arity{Min: 2, Max: 2}, Fn: builtinMapRemove},
	{Name: "keys", Arity: Arity{Min: 1, Max: 1}, Fn: builtinKeys},
	{Name: "sort", Arity: Arity{Min: 1, Max: 1}, Fn: builtinSort},
	{Name: "print", Arity: Arity{Min: 1, Max: -1}, Fn: builtinPrint},
}

func typeError(name, expected string, got value.Value) *value.Failure {
	return value.NewFailure(value.TypeError,
		name+": expected "+expected+", got "+got.TypeName(), value.Span{})
}

// builtinPush appends args[1] to the array args[0] and returns the
// resulting array. The dispatch layer write-backs the result into
// args[0]'s lvalue, matching `arr.push(x)` mutating `arr` in place from
// the caller's perspective.
func builtinPush(args []value.Value, ctx Context) (value.Value, *value.Failure) {
	if args[0].Kind() != value.KindArray {
		return value.Null, typeError("push", "array", args[0])
	}
	arr := args[0].AsArray().Push(args[1])
	return value.FromArray(arr), nil
}

// builtinPop removes and returns the last element of args[0]. The
// dispatch layer write-backs the now-shorter array into args[0]'s
// lvalue; the call expression's own value is the popped element.
func builtinPop(args []value.Value, ctx Context) (value.Value, *value.Failure) {
	if args[0].Kind() != value.KindArray {
		return value.Null, typeError("pop", "array", args[0])
	}
	_, popped, ok := args[0].AsArray().Pop()
	if !ok {
		return value.Null, value.NewFailure(value.IndexOutOfBounds, "pop: array is empty", value.Span{})
	}
	return popped, nil
}

// builtinLen reports the length of an array, a map, or a string.
func builtinLen(args []value.Value, ctx Context) (value.Value, *value.Failure) {
	switch args[0].Kind() {
	case value.KindArray:
		return value.Int(int64(args[0].AsArray().Len())), nil
	case value.KindMap:
		return value.Int(int64(args[0].AsMap().Len())), nil
	case value.KindString:
		return value.Int(int64(len(args[0].AsString()))), nil
	default:
		return value.Null, typeError("len", "array, map, or string", args[0])
	}
}

// builtinMapInsert writes args[1] -> args[2] into the map args[0] and
// returns the resulting map; the dispatch layer write-backs it the same
// way builtinPush does for arrays.
func builtinMapInsert(args []value.Value, ctx Context) (value.Value, *value.Failure) {
	if args[0].Kind() != value.KindMap {
		return value.Null, typeError("mapInsert", "map", args[0])
	}
	if !value.Hashable(args[1]) {
		return value.Null, value.NewFailure(value.UnhashableKey,
			"mapInsert: key of type "+args[1].TypeName()+" is not hashable", value.Span{})
	}
	m := args[0].AsMap().Insert(args[1], args[2])
	return value.FromMap(m), nil
}

// builtinMapRemove deletes args[1] from the map args[0] if present,
// returning whether it was found.
func builtinMapRemove(args []value.Value, ctx Context) (value.Value, *value.Failure) {
	if args[0].Kind() != value.KindMap {
		return value.Null, typeError("mapRemove", "map", args[0])
	}
	if !value.Hashable(args[1]) {
		return value.Null, value.NewFailure(value.UnhashableKey,
			"mapRemove: key of type "+args[1].TypeName()+" is not hashable", value.Span{})
	}
	_, found := args[0].AsMap().Remove(args[1])
	return value.Bool(found), nil
}

// builtinKeys returns the live keys of a map, in insertion order.
func builtinKeys(args []value.Value, ctx Context) (value.Value, *value.Failure) {
	if args[0].Kind() != value.KindMap {
		return value.Null, typeError("keys", "map", args[0])
	}
	return value.FromArray(value.NewArray(args[0].AsMap().Keys())), nil
}

// builtinSort orders an array of Numbers or Strings ascending (spec.md's
// Ord total order); mixed or incomparable elements raise TypeError
// rather than silently producing an unspecified order.
func builtinSort(args []value.Value, ctx Context) (value.Value, *value.Failure) {
	if args[0].Kind() != value.KindArray {
		return value.Null, typeError("sort", "array", args[0])
	}
	arr := args[0].AsArray()
	var orderErr *value.Failure
	sorted := arr.Sorted(func(x, y value.Value) bool {
		if orderErr != nil {
			return false
		}
		switch value.Ord(x, y) {
		case value.OrderLess:
			return true
		case value.OrderGreater, value.OrderEqual:
			return false
		default:
			orderErr = value.NewFailure(value.TypeError,
				"sort: elements of type "+x.TypeName()+" and "+y.TypeName()+" are not comparable", value.Span{})
			return false
		}
	})
	if orderErr != nil {
		return value.Null, orderErr
	}
	return value.FromArray(sorted), nil
}

// builtinPrint renders each argument with value.Display and writes it to
// the engine's output-capture sink, space-separated with a trailing
// newline — the side-effect the parity harness compares across engines.
func builtinPrint(args []value.Value, ctx Context) (value.Value, *value.Failure) {
	for i, a := range args {
		if i > 0 {
			ctx.Print(" ")
		}
		ctx.Print(value.Display(a))
	}
	ctx.Print("\n")
	return value.Null, nil
}
