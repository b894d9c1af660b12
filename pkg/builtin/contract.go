// Package builtin defines the stdlib dispatch contract shared by both
// engines (spec.md §6 "To stdlib functions") and a small illustrative set
// of builtins sufficient to exercise it: container mutation (push, pop,
// mapInsert, mapRemove), inspection (len, keys), ordering (sort), and
// output (print).
//
// A builtin is a plain, otherwise-pure function from an argument vector
// to a Value or a Failure; nothing about the function signature lets it
// reach into engine internals, which is what keeps pkg/interp and pkg/vm
// free to dispatch to the exact same implementation. Grounded on smog's
// primitive-function style (pkg/vm/primitives.go: one Go function per
// stdlib operation, errors returned rather than panicked) generalized
// from smog's ad hoc `(string, error)` signatures to the shared
// `(Value, *Failure)` contract every builtin here must use.
package builtin

import (
	"strconv"

	"atlas/pkg/value"
)

// Permission names a privileged capability a builtin may require before
// performing file I/O, network, environment, subprocess, or FFI access.
// The runtime treats it as an opaque string tag; the finite set of valid
// names is owned by runtime configuration (runtimeconfig), not this
// package.
type Permission string

// Context is what a builtin call gets beyond its argument vector: the
// permission-check hook and the output sink both engines must share so
// the parity harness can capture an identical side-effect trace, plus
// the "mutation source" hint used for copy-on-write write-back.
type Context interface {
	// Check reports a PermissionDenied failure if perm has not been
	// granted by the host's runtime configuration, nil otherwise.
	Check(perm Permission) *value.Failure

	// Print appends s (already Display-rendered, newline-terminated by
	// the caller if desired) to the engine's output-capture sink.
	Print(s string)

	// MutationSource reports whether the builtin call's first argument
	// came from a writable lvalue (a bare variable or an index
	// expression) rather than a transient expression result. Builtins
	// themselves never consult this — it's the dispatch layer (interp's
	// call evaluator, the VM's Call opcode handler) that uses it to
	// decide whether to write the builtin's returned aggregate back to
	// that lvalue.
	MutationSource() bool
}

// Func is the shape every builtin implements: args in, one Value or one
// Failure out. Builtins that mutate an aggregate (push, pop, mapInsert, ...)
// do so on the *value.Array / *value.Map handle they were given and
// return that same handle — a "pure function" in the sense that it
// never looks outside args, even though its returned aggregate may be
// the same backing handle, mutated, rather than a distinct copy (the
// copy-on-write discipline in pkg/value already guarantees an aliased
// handle is cloned before any in-place write).
type Func func(args []value.Value, ctx Context) (value.Value, *value.Failure)

// Arity describes how many arguments a builtin accepts. Max of -1 means
// variadic (no upper bound) — spec.md §6 allows builtins to be variadic.
type Arity struct {
	Min int
	Max int // -1 for variadic
}

// Entry pairs a builtin's implementation with its declared arity, so the
// dispatch layer can raise ArityMismatch before ever calling Fn.
type Entry struct {
	Name  string
	Arity Arity
	Fn    Func
}

// CheckArity validates argc against a, returning a ready-to-raise
// ArityMismatch failure on violation, nil otherwise.
func CheckArity(name string, argc int, a Arity) *value.Failure {
	if argc < a.Min || (a.Max >= 0 && argc > a.Max) {
		return value.NewFailure(value.ArityMismatch,
			arityMessage(name, argc, a), value.Span{})
	}
	return nil
}

func arityMessage(name string, argc int, a Arity) string {
	itoa := strconv.Itoa
	switch {
	case a.Max < 0:
		return name + ": expected at least " + itoa(a.Min) + " argument(s), got " + itoa(argc)
	case a.Min == a.Max:
		return name + ": expected " + itoa(a.Min) + " argument(s), got " + itoa(argc)
	default:
		return name + ": expected " + itoa(a.Min) + "-" + itoa(a.Max) + " argument(s), got " + itoa(argc)
	}
}
