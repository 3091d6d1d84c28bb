package interpreter

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/oarkflow/script/ast"
	"github.com/oarkflow/script/errs"
)

const DefaultMaxCallDepth = 1024

type Option func(*Program)

// WithMaxCallDepth bounds nested calls; 0 disables the check.
func WithMaxCallDepth(n int) Option {
	return func(p *Program) { p.maxCallDepth = n }
}

// WithMaxLoopIterations bounds the iterations of any single loop; 0 disables the check.
func WithMaxLoopIterations(n int) Option {
	return func(p *Program) { p.maxLoopIterations = n }
}

// Program evaluates one parsed script. It is not safe for concurrent use:
// only one Run, Exec or Call may be in flight at a time.
type Program struct {
	program *ast.Program
	scopes  *scopeStack

	fnMap          map[string]*Function
	globalFnMap    map[string]NativeFunction
	globalValueMap map[string]Value

	maxCallDepth      int
	maxLoopIterations int
	callDepth         int

	ctx  context.Context
	busy atomic.Bool
}

func NewProgram(program *ast.Program, opts ...Option) *Program {
	if program == nil {
		program = &ast.Program{}
	}
	p := &Program{
		program:        program,
		scopes:         newScopeStack(),
		fnMap:          make(map[string]*Function),
		globalFnMap:    make(map[string]NativeFunction),
		globalValueMap: make(map[string]Value),
		maxCallDepth:   DefaultMaxCallDepth,
		ctx:            context.Background(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RegisterNative exposes a host function. User functions with the same
// name take precedence at call sites.
func (p *Program) RegisterNative(name string, fn NativeFunction) {
	p.globalFnMap[name] = fn
}

// SetGlobal binds a host value, visible wherever no frame binds the name.
func (p *Program) SetGlobal(name string, v Value) {
	if v == nil {
		v = UNDEFINED
	}
	p.globalValueMap[name] = v
}

// Lookup reads a top-level binding, falling back to the host globals.
func (p *Program) Lookup(name string) (Value, bool) {
	if b, ok := p.scopes.frames[0][name]; ok {
		return b.value, true
	}
	v, ok := p.globalValueMap[name]
	return v, ok
}

// Bindings snapshots the top-level frame merged over the host globals.
func (p *Program) Bindings() map[string]Value {
	out := make(map[string]Value, len(p.globalValueMap)+len(p.scopes.frames[0]))
	for k, v := range p.globalValueMap {
		out[k] = v
	}
	for k, b := range p.scopes.frames[0] {
		out[k] = b.value
	}
	return out
}

// Run hoists the top-level function declarations and then executes the
// remaining statements in order.
func (p *Program) Run(ctx context.Context) error {
	_, err := p.Exec(ctx, p.program)
	return err
}

// Exec runs further top-level statements against the same state and
// returns the value of the last statement.
func (p *Program) Exec(ctx context.Context, program *ast.Program) (Value, error) {
	release, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	p.hoist(program.Statements)
	var result Value = UNDEFINED
	for _, stmt := range program.Statements {
		if _, ok := stmt.(*ast.FunctionDeclaration); ok {
			continue
		}
		v, err := p.eval(0, stmt)
		if err != nil {
			return nil, err
		}
		if c, ok := isControl(v); ok {
			if c.flag == flagReturn {
				return c.value, nil
			}
			return nil, errs.Syntax(stmt.Pos(), "illegal %s statement outside of a loop", c.Inspect())
		}
		result = v
	}
	return result, nil
}

// Call invokes a function by name the way a call expression at the top
// level would resolve it.
func (p *Program) Call(ctx context.Context, name string, args ...Value) (Value, error) {
	release, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	fn, err := p.resolveCallee(0, &ast.Identifier{Name: name})
	if err != nil {
		return nil, err
	}
	return p.applyFunction(0, fn, args, errs.Position{})
}

// CallFunction invokes a function value, typically one handed to a native
// as a callback.
func (p *Program) CallFunction(ctx context.Context, fn *Function, args ...Value) (Value, error) {
	if fn == nil {
		return nil, errs.Type(errs.Position{}, "callback is not a function")
	}
	release, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return p.applyFunction(0, fn, args, errs.Position{})
}

func (p *Program) acquire(ctx context.Context) (func(), error) {
	if !p.busy.CompareAndSwap(false, true) {
		return nil, errs.Invariant(errs.Position{}, "program is already running")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	p.ctx = ctx
	return func() {
		p.scopes.pop(1)
		p.callDepth = 0
		p.ctx = context.Background()
		p.busy.Store(false)
	}, nil
}

func (p *Program) hoist(stmts []ast.Statement) {
	for _, stmt := range stmts {
		if decl, ok := stmt.(*ast.FunctionDeclaration); ok {
			p.fnMap[decl.Function.Name] = newFunction(decl.Function)
		}
	}
}

func (p *Program) checkContext(pos errs.Position) error {
	if err := p.ctx.Err(); err != nil {
		return contextError(err, pos)
	}
	return nil
}

func contextError(err error, pos errs.Position) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return errs.New(errs.KindTimeout, pos, "execution timed out").WithCause(err)
	case errors.Is(err, context.Canceled):
		return errs.New(errs.KindCanceled, pos, "execution canceled").WithCause(err)
	}
	return err
}

// at stamps pos onto a positionless interpreter error.
func at(err error, pos errs.Position) error {
	var e *errs.Error
	if errors.As(err, &e) {
		e.At(pos)
	}
	return err
}

func newFunction(fl *ast.FunctionLiteral) *Function {
	return &Function{
		Name:       fl.Name,
		Parameters: append([]*ast.Identifier(nil), fl.Parameters...),
		Body:       fl.Body,
	}
}
