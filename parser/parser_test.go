package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/oarkflow/script/ast"
	"github.com/oarkflow/script/errs"
)

func parseOK(t *testing.T, src string) *ast.Program {
	t.Helper()
	program, err := Parse(src)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return program
}

func TestOperatorPrecedence(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"-a * b", "((-a) * b);"},
		{"!a && b", "((!a) && b);"},
		{"a + b * c", "(a + (b * c));"},
		{"a - b - c", "((a - b) - c);"},
		{"a * b / c % d", "(((a * b) / c) % d);"},
		{"a + b < c * d == e", "(((a + b) < (c * d)) == e);"},
		{"a << 1 + 2", "(a << (1 + 2));"},
		{"a & b | c ^ d", "((a & b) | (c ^ d));"},
		{"a || b && c", "(a || (b && c));"},
		{"a === b !== c", "((a === b) !== c);"},
		{"a ? b : c ? d : e", "(a ? b : (c ? d : e));"},
		{"a = b = c", "(a = (b = c));"},
		{"x += y * 2", "(x += (y * 2));"},
		{"i++ + ++j", "((i++) + (++j));"},
		{"f(a, b + 1)(c)", "f(a, (b + 1))(c);"},
		{"o.a.b[c + 1]", "(((o.a).b)[(c + 1)]);"},
		{"o.f(1).g", "((o.f)(1).g);"},
		{"-o.x", "(-(o.x));"},
		{"delete o.k", "(delete (o.k));"},
		{"(a + b) * c", "((a + b) * c);"},
		{"o.k = v", "((o.k) = v);"},
		{"true && null == undefined", "(true && (null == undefined));"},
	}
	for _, tt := range tests {
		program := parseOK(t, tt.input)
		if got := program.String(); got != tt.expected {
			t.Errorf("%q: expected %q, got %q", tt.input, tt.expected, got)
		}
	}
}

func TestLetStatements(t *testing.T) {
	program := parseOK(t, "let x = 5; const y = x + 1; var a, b = 2;")
	if len(program.Statements) != 3 {
		t.Fatalf("expected 3 statements, got %d", len(program.Statements))
	}
	kinds := []ast.DeclKind{ast.DeclLet, ast.DeclConst, ast.DeclVar}
	for i, stmt := range program.Statements {
		let, ok := stmt.(*ast.LetStatement)
		if !ok {
			t.Fatalf("statement %d is %T", i, stmt)
		}
		if let.Kind != kinds[i] {
			t.Fatalf("statement %d kind %q, want %q", i, let.Kind, kinds[i])
		}
	}
	multi := program.Statements[2].(*ast.LetStatement)
	if len(multi.Declarations) != 2 || multi.Declarations[0].Value != nil || multi.Declarations[1].Value == nil {
		t.Fatalf("unexpected declarators %s", multi.String())
	}
}

func TestNumberLiterals(t *testing.T) {
	program := parseOK(t, "1; 2.5; .25; 9223372036854775807;")
	want := []struct {
		isFloat bool
		i       int64
		f       float64
	}{{false, 1, 0}, {true, 0, 2.5}, {true, 0, 0.25}, {false, 9223372036854775807, 0}}
	for i, w := range want {
		lit := program.Statements[i].(*ast.ExpressionStatement).Expression.(*ast.NumberLiteral)
		if lit.IsFloat != w.isFloat || lit.Int != w.i || lit.Float != w.f {
			t.Fatalf("literal %d: got %+v", i, lit)
		}
	}
}

func TestForStatementClauses(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"for (let i = 0; i < 3; i++) { log(i); }", "for (let i = 0; (i < 3); (i++)) { log(i); }"},
		{"for (;;) { break; }", "for (; ; ) { break; }"},
		{"for (i = 0; ; ) {}", "for ((i = 0); ; ) { }"},
		{"for (;i<3;i++) x;", "for (; (i < 3); (i++)) x;"},
		{"for (const k in o) {}", "for (const k in o) { }"},
		{"for (v of o) {}", "for (v of o) { }"},
	}
	for _, tt := range tests {
		program := parseOK(t, tt.input)
		if got := program.String(); got != tt.expected {
			t.Errorf("%q: expected %q, got %q", tt.input, tt.expected, got)
		}
	}

	loop := parseOK(t, "for (;;) {}").Statements[0].(*ast.ForStatement)
	if _, ok := loop.Init.(*ast.EmptyStatement); !ok {
		t.Fatalf("omitted init should be an empty statement, got %T", loop.Init)
	}
	if _, ok := loop.Condition.(*ast.EmptyExpression); !ok {
		t.Fatalf("omitted test should be an empty expression, got %T", loop.Condition)
	}
	if _, ok := loop.Update.(*ast.EmptyExpression); !ok {
		t.Fatalf("omitted update should be an empty expression, got %T", loop.Update)
	}
}

func TestStatementForms(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"if (a) b; else { c; }", "if (a) b; else { c; }"},
		{"if (a) { } else if (b) { }", "if (a) { } else if (b) { }"},
		{"while (x) { x--; }", "while (x) { (x--); }"},
		{"do { x++; } while (x < 3)", "do { (x++); } while ((x < 3));"},
		{"function f(a, b) { return a; }", "function f(a, b) { return a; }"},
		{"function g() { return; }", "function g() { return; }"},
		{"let h = function(x) { return x; };", "let h = function(x) { return x; };"},
		{";", ";"},
		{"{ let a = 1; }", "{ let a = 1; }"},
		{"let o = {a: 1, \"b c\": 2, d, m(x) { return x; }};", `let o = {"a": 1, "b c": 2, "d": d, "m": function m(x) { return x; }};`},
		{"let s = `n=${n + 1}`;", "let s = `n=${(n + 1)}`;"},
	}
	for _, tt := range tests {
		program := parseOK(t, tt.input)
		if got := program.String(); got != tt.expected {
			t.Errorf("%q: expected %q, got %q", tt.input, tt.expected, got)
		}
	}
}

func TestTemplateExpressionPositions(t *testing.T) {
	program := parseOK(t, "let s =\n  `a${ x }`;")
	tl := program.Statements[0].(*ast.LetStatement).Declarations[0].Value.(*ast.TemplateLiteral)
	ident := tl.Expressions[0].(*ast.Identifier)
	if pos := ident.Pos(); pos.Line != 2 || pos.Column != 8 {
		t.Fatalf("template expression at %s, want 2:8", pos)
	}
}

func TestSyntaxErrors(t *testing.T) {
	tests := []struct {
		input string
		line  int
		col   int
	}{
		{"let = 5;", 1, 5},
		{"let x = ;", 1, 9},
		{"const c;", 1, 7},
		{"1.2.3;", 1, 1},
		{"4.;", 1, 1},
		{"99999999999999999999;", 1, 1},
		{"if (x { }", 1, 7},
		{"f(1, 2;", 1, 7},
		{"5 = 1;", 1, 3},
		{"(a + b)++;", 1, 8},
		{"delete x;", 1, 8},
		{"o.f() += 1;", 1, 7},
		{"let o = {1 + 2};", 1, 12},
		{"\"open", 1, 1},
		{"function (a, 1) {}", 1, 14},
		{"{ let a = 1;", 1, 13},
		{"`${}`", 1, 4},
		{"`${a b}`", 1, 6},
		{"let true = 1;", 1, 5},
		{"var a = 1, null = 2;", 1, 12},
		{"const undefined = 0;", 1, 7},
		{"function f(a, false) {}", 1, 15},
		{"function null() {}", 1, 10},
		{"(function (undefined) {});", 1, 12},
		{"for (let true in o) {}", 1, 10},
	}
	for _, tt := range tests {
		_, err := Parse(tt.input)
		if err == nil {
			t.Errorf("%q: expected an error", tt.input)
			continue
		}
		if !errors.Is(err, errs.ErrSyntax) {
			t.Errorf("%q: expected a syntax error, got %v", tt.input, err)
			continue
		}
		var se *errs.Error
		if !errors.As(err, &se) {
			t.Errorf("%q: error is not *errs.Error: %T", tt.input, err)
			continue
		}
		if se.Pos.Line != tt.line || se.Pos.Column != tt.col {
			t.Errorf("%q: error at %s, want %d:%d (%v)", tt.input, se.Pos, tt.line, tt.col, err)
		}
	}
}

func TestUnimplementedFeatures(t *testing.T) {
	for _, src := range []string{"let a = [1, 2];", "switch (x) { case 1: break; }"} {
		_, err := Parse(src)
		if !errors.Is(err, errs.ErrUnimplemented) {
			t.Fatalf("%q: expected unimplemented, got %v", src, err)
		}
	}
}

func TestErrorsAreCollected(t *testing.T) {
	program, err := Parse("let = 1; let ok = 2; let x = ;")
	var list errs.List
	if !errors.As(err, &list) || len(list) != 2 {
		t.Fatalf("expected 2 collected errors, got %v", err)
	}
	if len(program.Statements) != 1 {
		t.Fatalf("expected the valid statement to survive, got %d", len(program.Statements))
	}
	if !strings.Contains(err.Error(), "2 errors") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestDump(t *testing.T) {
	program := parseOK(t, "function f(a) {\n  if (a) { return 1; }\n}\nfor (;;) { break; }")
	got := ast.Dump(program)
	want := strings.Join([]string{
		"Function f(a) @1:1",
		"  If a @2:3",
		"    Block @2:10",
		"      return 1; @2:12",
		"For [] [] [] @4:1",
		"  Block @4:10",
		"    break; @4:12",
		"",
	}, "\n")
	if got != want {
		t.Fatalf("Dump mismatch\n got:\n%s\nwant:\n%s", got, want)
	}
}
