package value

import (
	"fmt"
	"strings"
)

// FailureKind is the closed set of runtime failure kinds from spec.md §7.
// Both engines must agree on which kind a given program raises.
type FailureKind string

const (
	TypeError        FailureKind = "TypeError"
	ArityMismatch    FailureKind = "ArityMismatch"
	DivisionByZero   FailureKind = "DivisionByZero"
	NumericDomain    FailureKind = "NumericDomain"
	IndexOutOfBounds FailureKind = "IndexOutOfBounds"
	UnhashableKey    FailureKind = "UnhashableKey"
	UndefinedGlobal  FailureKind = "UndefinedGlobal"
	UndefinedLocal   FailureKind = "UndefinedLocal"
	StackOverflow    FailureKind = "StackOverflow"
	UnwrapNone       FailureKind = "UnwrapNone"
	UnwrapErr        FailureKind = "UnwrapErr"
	PermissionDenied FailureKind = "PermissionDenied"
	BytecodeInvalid  FailureKind = "BytecodeInvalid"
	UserRaised       FailureKind = "UserRaised"
	Cancelled        FailureKind = "Cancelled"
	IO               FailureKind = "IO"
)

// Span locates a failure in source terms both engines can agree on after
// canonicalization (spec.md §4.6: spans may differ in granularity between
// AST and bytecode, so the harness canonicalizes to file/line).
type Span struct {
	File   string
	Line   int
	Column int
	Length int
}

// StackFrame is one call-activation entry in a Failure's trace: the
// callee's name and the call site's span, the same shape in both engines.
// Grounded on smog's vm/errors.go StackFrame/RuntimeError,
// generalized to be shared by both engines instead of being VM-only.
type StackFrame struct {
	FunctionName string
	Span         Span
}

// Failure is the error value both engines raise and that the parity
// harness compares structurally. It implements error so it can flow
// through normal Go error returns and pkg/errors wrapping at the driver
// boundary, but canonical comparison/rendering never goes through
// pkg/errors — Render is a pure function of Kind/Message/Span/CallStack, the
// same way smog's RuntimeError.Error() built its own string rather than
// delegating to a generic error-wrapping library.
type Failure struct {
	Kind      FailureKind
	Message   string
	Span      Span
	CallStack []StackFrame
	Payload   Value // set only for UserRaised
}

// NewFailure builds a Failure with no payload and no call stack attached
// yet (the engine appends frames as it unwinds).
func NewFailure(kind FailureKind, message string, span Span) *Failure {
	return &Failure{Kind: kind, Message: message, Span: span}
}

// Error implements the error interface using the short, single-line form;
// Render gives the full multi-line form with a stack trace.
func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Render produces the canonical, engine-agnostic failure text the parity
// harness and the CLI driver both use: kind, message, then the call stack
// innermost-first, matching smog's RuntimeError.Error() layout.
func (f *Failure) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", f.Kind, f.Message)
	if f.Span.File != "" || f.Span.Line > 0 {
		fmt.Fprintf(&b, " (at %s:%d:%d)", f.Span.File, f.Span.Line, f.Span.Column)
	}
	if len(f.CallStack) > 0 {
		b.WriteString("\n\nStack trace:")
		for i := len(f.CallStack) - 1; i >= 0; i-- {
			frame := f.CallStack[i]
			fmt.Fprintf(&b, "\n  at %s", frame.FunctionName)
			if frame.Span.Line > 0 {
				fmt.Fprintf(&b, " [line %d:%d]", frame.Span.Line, frame.Span.Column)
			}
		}
	}
	return b.String()
}

// WithFrame returns a copy of f with frame appended to the call stack,
// used by the VM/interpreter as they unwind through each call activation.
func (f *Failure) WithFrame(frame StackFrame) *Failure {
	cp := *f
	cp.CallStack = append(append([]StackFrame{}, f.CallStack...), frame)
	return &cp
}
