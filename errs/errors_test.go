package errs

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorKindsMatchSentinels(t *testing.T) {
	tests := []struct {
		err  *Error
		want error
	}{
		{Syntax(Position{1, 1}, "x"), ErrSyntax},
		{Reference(Position{}, "x"), ErrReference},
		{Type(Position{}, "x"), ErrType},
		{Arithmetic(Position{}, "x"), ErrArithmetic},
		{Unimplemented(Position{}, "x"), ErrUnimplemented},
		{Invariant(Position{}, "x"), ErrInvariant},
		{New(KindHost, Position{}, "x"), ErrHost},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, tt.want) {
			t.Fatalf("%s should match %v", tt.err.Kind, tt.want)
		}
		if errors.Is(tt.err, ErrRegistry) {
			t.Fatalf("%s should not match %v", tt.err.Kind, ErrRegistry)
		}
	}
	wrapped := fmt.Errorf("outer: %w", Type(Position{}, "inner"))
	if !errors.Is(wrapped, ErrType) {
		t.Fatalf("wrapped error lost its kind")
	}
}

func TestErrorMessage(t *testing.T) {
	err := Type(Position{Line: 3, Column: 7}, "bad %s", "operand")
	err.Details = []string{"left is string"}
	if got := err.Error(); got != "TypeError at 3:7: bad operand (left is string)" {
		t.Fatalf("unexpected message %q", got)
	}
	cause := errors.New("io")
	wrapped := New(KindHost, Position{}, "fetch failed").WithCause(cause)
	if got := wrapped.Error(); got != "HostError: fetch failed: io" {
		t.Fatalf("unexpected message %q", got)
	}
	if !errors.Is(wrapped, cause) {
		t.Fatalf("cause should be reachable")
	}
	if got := New(KindSyntax, Position{}, "100%"); got.Message != "100%" {
		t.Fatalf("format without args should be kept verbatim, got %q", got.Message)
	}
}

func TestAtKeepsExistingPosition(t *testing.T) {
	err := Arithmetic(Position{}, "division by zero")
	err.At(Position{Line: 2, Column: 4}).At(Position{Line: 9, Column: 9})
	if err.Pos != (Position{Line: 2, Column: 4}) {
		t.Fatalf("position = %s", err.Pos)
	}
}

func TestList(t *testing.T) {
	var empty List
	if empty.Err() != nil {
		t.Fatalf("empty list should be nil")
	}
	one := List{Syntax(Position{1, 1}, "a")}
	if _, ok := one.Err().(*Error); !ok {
		t.Fatalf("single entry should unwrap to *Error")
	}
	two := List{Syntax(Position{1, 1}, "a"), Unimplemented(Position{2, 1}, "b")}
	err := two.Err()
	if !errors.Is(err, ErrUnimplemented) || !errors.Is(err, ErrSyntax) {
		t.Fatalf("list should match every member kind")
	}
	if !strings.HasPrefix(err.Error(), "2 errors: ") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestDisplay(t *testing.T) {
	src := "let a = 1;\nlet b = a +;"
	out := Display(src, []*Error{Syntax(Position{Line: 2, Column: 12}, "unexpected \";\"")})
	want := "SyntaxError at 2:12: unexpected \";\"\n  let b = a +;\n             ^\n"
	if out != want {
		t.Fatalf("Display =\n%q\nwant\n%q", out, want)
	}
}
