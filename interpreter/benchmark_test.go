package interpreter

import (
	"context"
	"testing"

	"github.com/oarkflow/script/parser"
)

const benchSource = `
function sum(n) {
	let total = 0;
	for (let i = 0; i < n; i++) {
		if (i % 3 === 0) { continue; }
		total += i;
	}
	return total;
}
let o = {a: 1, b: "two", c: true};
let names = "";
for (let k in o) { names = names + k; }
let result = sum(100);
`

func noopNative(args []Value) (Value, error) { return UNDEFINED, nil }

func Benchmark_Script_ParseAndRun(b *testing.B) {
	ctx := context.Background()
	for i := 0; i < b.N; i++ {
		program, err := parser.Parse(benchSource)
		if err != nil {
			b.Fatal(err)
		}
		p := NewProgram(program)
		p.RegisterNative("log", noopNative)
		if err := p.Run(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

func Benchmark_Script_RunOnly(b *testing.B) {
	program, err := parser.Parse(benchSource)
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := NewProgram(program)
		if err := p.Run(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

func Benchmark_Script_Call(b *testing.B) {
	program, err := parser.Parse(benchSource)
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	p := NewProgram(program)
	if err := p.Run(ctx); err != nil {
		b.Fatal(err)
	}
	arg := &Integer{Value: 50}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.Call(ctx, "sum", arg); err != nil {
			b.Fatal(err)
		}
	}
}
