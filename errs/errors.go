package errs

import (
	"fmt"
	"strings"

	"github.com/oarkflow/errors"
)

type Kind string

const (
	KindSyntax        Kind = "SyntaxError"
	KindReference     Kind = "ReferenceError"
	KindType          Kind = "TypeError"
	KindArithmetic    Kind = "ArithmeticError"
	KindUnimplemented Kind = "UnimplementedFeature"
	KindInvariant     Kind = "InvariantViolation"
	KindRange         Kind = "RangeError"
	KindTimeout       Kind = "Timeout"
	KindCanceled      Kind = "Canceled"
	KindRegistry      Kind = "RegistryError"
	KindHost          Kind = "HostError"
)

// Sentinels let callers test a failure with errors.Is without unpacking it.
var (
	ErrSyntax        = errors.New(string(KindSyntax))
	ErrReference     = errors.New(string(KindReference))
	ErrType          = errors.New(string(KindType))
	ErrArithmetic    = errors.New(string(KindArithmetic))
	ErrUnimplemented = errors.New(string(KindUnimplemented))
	ErrInvariant     = errors.New(string(KindInvariant))
	ErrRange         = errors.New(string(KindRange))
	ErrTimeout       = errors.New(string(KindTimeout))
	ErrCanceled      = errors.New(string(KindCanceled))
	ErrRegistry      = errors.New(string(KindRegistry))
	ErrHost          = errors.New(string(KindHost))
)

var sentinels = map[Kind]error{
	KindSyntax:        ErrSyntax,
	KindReference:     ErrReference,
	KindType:          ErrType,
	KindArithmetic:    ErrArithmetic,
	KindUnimplemented: ErrUnimplemented,
	KindInvariant:     ErrInvariant,
	KindRange:         ErrRange,
	KindTimeout:       ErrTimeout,
	KindCanceled:      ErrCanceled,
	KindRegistry:      ErrRegistry,
	KindHost:          ErrHost,
}

// Position is a 1-based source location. The zero value means unknown.
type Position struct {
	Line   int
	Column int
}

func (p Position) IsZero() bool { return p.Line == 0 && p.Column == 0 }

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

type Error struct {
	Kind    Kind
	Message string
	Pos     Position
	Details []string
	Cause   error
}

func New(kind Kind, pos Position, format string, args ...any) *Error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Kind: kind, Message: msg, Pos: pos}
}

func Syntax(pos Position, format string, args ...any) *Error {
	return New(KindSyntax, pos, format, args...)
}

func Reference(pos Position, format string, args ...any) *Error {
	return New(KindReference, pos, format, args...)
}

func Type(pos Position, format string, args ...any) *Error {
	return New(KindType, pos, format, args...)
}

func Arithmetic(pos Position, format string, args ...any) *Error {
	return New(KindArithmetic, pos, format, args...)
}

func Unimplemented(pos Position, format string, args ...any) *Error {
	return New(KindUnimplemented, pos, format, args...)
}

func Invariant(pos Position, format string, args ...any) *Error {
	return New(KindInvariant, pos, format, args...)
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(string(e.Kind))
	if !e.Pos.IsZero() {
		sb.WriteString(" at ")
		sb.WriteString(e.Pos.String())
	}
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if len(e.Details) > 0 {
		sb.WriteString(" (")
		sb.WriteString(strings.Join(e.Details, "; "))
		sb.WriteString(")")
	}
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	return sentinels[e.Kind] == target
}

// WithCause attaches the underlying failure and returns e for chaining.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// At fills in a position when the error does not carry one yet.
func (e *Error) At(pos Position) *Error {
	if e.Pos.IsZero() {
		e.Pos = pos
	}
	return e
}

// List collects several failures, typically from one parse.
type List []*Error

func (l List) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d errors: %s", len(l), strings.Join(msgs, "; "))
}

// Err returns nil for an empty list and the first error for a single entry.
func (l List) Err() error {
	switch len(l) {
	case 0:
		return nil
	case 1:
		return l[0]
	}
	return l
}

func (l List) Unwrap() []error {
	out := make([]error, len(l))
	for i, e := range l {
		out[i] = e
	}
	return out
}

// Display renders errors with the offending source line and a caret.
func Display(source string, list []*Error) string {
	lines := strings.Split(source, "\n")
	var sb strings.Builder
	for _, e := range list {
		sb.WriteString(e.Error())
		sb.WriteByte('\n')
		if e.Pos.Line < 1 || e.Pos.Line > len(lines) {
			continue
		}
		line := lines[e.Pos.Line-1]
		sb.WriteString("  ")
		sb.WriteString(line)
		sb.WriteByte('\n')
		col := e.Pos.Column
		if col < 1 {
			col = 1
		}
		sb.WriteString("  ")
		sb.WriteString(strings.Repeat(" ", col-1))
		sb.WriteString("^\n")
	}
	return sb.String()
}
