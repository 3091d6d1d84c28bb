package interpreter

import (
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/oarkflow/script/ast"
	"github.com/oarkflow/script/errs"
)

// eval dispatches on the node shape. depth is the innermost frame the node
// may see; statements may return a control value.
func (p *Program) eval(depth int, node ast.Node) (Value, error) {
	if node == nil {
		return nil, errs.Invariant(errs.Position{}, "nil node")
	}
	switch node := node.(type) {
	// statements
	case *ast.Program:
		return p.evalStatements(depth, node.Statements)
	case *ast.ExpressionStatement:
		return p.eval(depth, node.Expression)
	case *ast.LetStatement:
		return p.evalLetStatement(depth, node)
	case *ast.FunctionDeclaration:
		p.scopes.declare(depth, node.Function.Name, ast.DeclVar, newFunction(node.Function))
		return UNDEFINED, nil
	case *ast.BlockStatement:
		return p.withFrame(depth, func(d int) (Value, error) {
			return p.evalStatements(d, node.Statements)
		})
	case *ast.EmptyStatement:
		return UNDEFINED, nil
	case *ast.IfStatement:
		return p.evalIfStatement(depth, node)
	case *ast.ForStatement:
		return p.evalLoop(depth, loopClauses{init: node.Init, test: node.Condition, update: node.Update, body: node.Body, pos: node.Pos()})
	case *ast.WhileStatement:
		return p.evalLoop(depth, loopClauses{test: node.Condition, body: node.Body, pos: node.Pos()})
	case *ast.DoWhileStatement:
		return p.evalLoop(depth, loopClauses{test: node.Condition, body: node.Body, doWhile: true, pos: node.Pos()})
	case *ast.ForInStatement:
		return p.evalForEach(depth, node.Kind, node.Name, node.Right, node.Body, false, node.Pos())
	case *ast.ForOfStatement:
		return p.evalForEach(depth, node.Kind, node.Name, node.Right, node.Body, true, node.Pos())
	case *ast.ReturnStatement:
		if node.Value == nil {
			return &control{flag: flagReturn, value: UNDEFINED}, nil
		}
		v, err := p.eval(depth, node.Value)
		if err != nil {
			return nil, err
		}
		return &control{flag: flagReturn, value: v}, nil
	case *ast.BreakStatement:
		return BREAK, nil
	case *ast.ContinueStatement:
		return CONTINUE, nil

	// expressions
	case *ast.Identifier:
		return p.evalIdentifier(depth, node)
	case *ast.NumberLiteral:
		if node.IsFloat {
			return &Float{Value: node.Float}, nil
		}
		return &Integer{Value: node.Int}, nil
	case *ast.StringLiteral:
		return &String{Value: node.Value}, nil
	case *ast.TemplateLiteral:
		return p.evalTemplateLiteral(depth, node)
	case *ast.BooleanLiteral:
		return nativeBoolToBooleanValue(node.Value), nil
	case *ast.NullLiteral:
		return NULL, nil
	case *ast.UndefinedLiteral, *ast.EmptyExpression:
		return UNDEFINED, nil
	case *ast.ObjectLiteral:
		return p.evalObjectLiteral(depth, node)
	case *ast.FunctionLiteral:
		return newFunction(node), nil
	case *ast.PrefixExpression:
		return p.evalPrefixExpression(depth, node)
	case *ast.InfixExpression:
		return p.evalInfixExpression(depth, node)
	case *ast.ConditionalExpression:
		ok, err := p.evalCondition(depth, node.Test, "conditional")
		if err != nil {
			return nil, err
		}
		if ok {
			return p.eval(depth, node.Consequent)
		}
		return p.eval(depth, node.Alternate)
	case *ast.UpdateExpression:
		return p.evalUpdateExpression(depth, node)
	case *ast.AssignExpression:
		return p.evalAssignExpression(depth, node)
	case *ast.MemberExpression:
		return p.evalMemberExpression(depth, node)
	case *ast.CallExpression:
		return p.evalCallExpression(depth, node)
	}
	return nil, errs.Unimplemented(node.Pos(), "unsupported syntax %T", node)
}

// evalStatements stops at the first control value and hands it up.
func (p *Program) evalStatements(depth int, stmts []ast.Statement) (Value, error) {
	var result Value = UNDEFINED
	for _, stmt := range stmts {
		v, err := p.eval(depth, stmt)
		if err != nil {
			return nil, err
		}
		if _, ok := isControl(v); ok {
			return v, nil
		}
		result = v
	}
	return result, nil
}

func (p *Program) evalLetStatement(depth int, node *ast.LetStatement) (Value, error) {
	for _, decl := range node.Declarations {
		var v Value = UNDEFINED
		if decl.Value != nil {
			var err error
			if v, err = p.eval(depth, decl.Value); err != nil {
				return nil, err
			}
			nameFunction(v, decl.Name.Name)
		}
		if existing, ok := p.scopes.frameAt(depth)[decl.Name.Name]; ok && (existing.kind != ast.DeclVar || node.Kind != ast.DeclVar) {
			return nil, errs.Type(decl.Name.Pos(), "identifier %q has already been declared", decl.Name.Name)
		}
		p.scopes.declare(depth, decl.Name.Name, node.Kind, v)
	}
	return UNDEFINED, nil
}

func nameFunction(v Value, name string) {
	if fn, ok := v.(*Function); ok && fn.Name == "" {
		fn.Name = name
	}
}

func (p *Program) evalCondition(depth int, expr ast.Expression, what string) (bool, error) {
	v, err := p.eval(depth, expr)
	if err != nil {
		return false, err
	}
	b, ok := v.(*Boolean)
	if !ok {
		return false, errs.Type(expr.Pos(), "%s condition must be a boolean, got %s", what, v.Type())
	}
	return b.Value, nil
}

func (p *Program) evalIfStatement(depth int, node *ast.IfStatement) (Value, error) {
	ok, err := p.evalCondition(depth, node.Condition, "if")
	if err != nil {
		return nil, err
	}
	if ok {
		return p.eval(depth, node.Consequence)
	}
	if node.Alternative != nil {
		return p.eval(depth, node.Alternative)
	}
	return UNDEFINED, nil
}

type loopClauses struct {
	init    ast.Statement
	test    ast.Expression
	update  ast.Expression
	body    ast.Statement
	doWhile bool
	pos     errs.Position
}

func isEmpty(expr ast.Expression) bool {
	if expr == nil {
		return true
	}
	_, ok := expr.(*ast.EmptyExpression)
	return ok
}

// loopSignal interprets a body result: break ends the loop, return ends it
// and propagates, continue and plain values carry on.
func loopSignal(v Value) (stop bool, result Value) {
	c, ok := isControl(v)
	if !ok {
		return false, nil
	}
	switch c.flag {
	case flagBreak:
		return true, UNDEFINED
	case flagReturn:
		return true, c
	}
	return false, nil
}

func (p *Program) checkIteration(iteration int, pos errs.Position) error {
	if err := p.checkContext(pos); err != nil {
		return err
	}
	if p.maxLoopIterations > 0 && iteration >= p.maxLoopIterations {
		return errs.New(errs.KindRange, pos, "loop exceeded %d iterations", p.maxLoopIterations)
	}
	return nil
}

// evalLoop runs for, while and do-while. The loop owns a frame for its
// initialiser; a block body opens a further frame on every iteration.
func (p *Program) evalLoop(depth int, lc loopClauses) (Value, error) {
	return p.withFrame(depth, func(d int) (Value, error) {
		if lc.init != nil {
			if _, err := p.eval(d, lc.init); err != nil {
				return nil, err
			}
		}
		first := lc.doWhile
		for iteration := 0; ; iteration++ {
			if !first && !isEmpty(lc.test) {
				ok, err := p.evalCondition(d, lc.test, "loop")
				if err != nil {
					return nil, err
				}
				if !ok {
					return UNDEFINED, nil
				}
			}
			first = false
			if err := p.checkIteration(iteration, lc.pos); err != nil {
				return nil, err
			}
			v, err := p.eval(d, lc.body)
			if err != nil {
				return nil, err
			}
			if stop, result := loopSignal(v); stop {
				return result, nil
			}
			if !isEmpty(lc.update) {
				if _, err := p.eval(d, lc.update); err != nil {
					return nil, err
				}
			}
		}
	})
}

func (p *Program) evalForEach(depth int, kind ast.DeclKind, name *ast.Identifier, right ast.Expression, body ast.Statement, of bool, pos errs.Position) (Value, error) {
	subject, err := p.eval(depth, right)
	if err != nil {
		return nil, err
	}
	items, err := iterationItems(subject, of)
	if err != nil {
		return nil, at(err, right.Pos())
	}
	return p.withFrame(depth, func(d int) (Value, error) {
		for i, item := range items {
			if err := p.checkIteration(i, pos); err != nil {
				return nil, err
			}
			v, err := p.withFrame(d, func(iter int) (Value, error) {
				if kind == "" {
					if err := p.assign(iter, name.Name, item, name.Pos()); err != nil {
						return nil, err
					}
				} else {
					p.scopes.declare(iter, name.Name, kind, item)
				}
				return p.eval(iter, body)
			})
			if err != nil {
				return nil, err
			}
			if stop, result := loopSignal(v); stop {
				return result, nil
			}
		}
		return UNDEFINED, nil
	})
}

// iterationItems yields object keys (for-in) or values (for-of), both in
// key order. Strings give indices or characters.
func iterationItems(subject Value, of bool) ([]Value, error) {
	switch s := subject.(type) {
	case *Object:
		keys := s.Keys()
		items := make([]Value, len(keys))
		for i, k := range keys {
			if of {
				items[i] = s.Pairs[k]
			} else {
				items[i] = &String{Value: k}
			}
		}
		return items, nil
	case *String:
		var items []Value
		i := int64(0)
		for _, r := range s.Value {
			if of {
				items = append(items, &String{Value: string(r)})
			} else {
				items = append(items, &Integer{Value: i})
			}
			i++
		}
		return items, nil
	case *Null, *Undefined:
		if !of {
			return nil, nil
		}
	}
	return nil, errs.Type(errs.Position{}, "%s is not iterable", subject.Type())
}

func (p *Program) evalIdentifier(depth int, node *ast.Identifier) (Value, error) {
	if b, ok := p.scopes.lookup(depth, node.Name); ok {
		return b.value, nil
	}
	if v, ok := p.globalValueMap[node.Name]; ok {
		return v, nil
	}
	if fn, ok := p.fnMap[node.Name]; ok {
		return fn, nil
	}
	if native, ok := p.globalFnMap[node.Name]; ok {
		return NewNative(node.Name, native), nil
	}
	return nil, errs.Reference(node.Pos(), "%s is not defined", node.Name)
}

// assign writes into the innermost frame binding name, then the host
// globals, and otherwise creates a binding in the current frame.
func (p *Program) assign(depth int, name string, value Value, pos errs.Position) error {
	if b, ok := p.scopes.lookup(depth, name); ok {
		if !b.kind.Reassignable() {
			return errs.Type(pos, "assignment to constant variable %q", name)
		}
		b.value = value
		return nil
	}
	if _, ok := p.globalValueMap[name]; ok {
		p.globalValueMap[name] = value
		return nil
	}
	p.scopes.declare(depth, name, ast.DeclVar, value)
	return nil
}

func (p *Program) evalTemplateLiteral(depth int, node *ast.TemplateLiteral) (Value, error) {
	var sb strings.Builder
	sb.WriteString(node.Quasis[0])
	for i, expr := range node.Expressions {
		v, err := p.eval(depth, expr)
		if err != nil {
			return nil, err
		}
		sb.WriteString(ToString(v))
		sb.WriteString(node.Quasis[i+1])
	}
	return &String{Value: sb.String()}, nil
}

func (p *Program) evalObjectLiteral(depth int, node *ast.ObjectLiteral) (Value, error) {
	obj := NewObject(make(map[string]Value, len(node.Properties)))
	for _, prop := range node.Properties {
		v, err := p.eval(depth, prop.Value)
		if err != nil {
			return nil, err
		}
		nameFunction(v, prop.Key)
		obj.Pairs[prop.Key] = v
	}
	return obj, nil
}

func (p *Program) evalPrefixExpression(depth int, node *ast.PrefixExpression) (Value, error) {
	if node.Operator == "delete" {
		member, ok := node.Right.(*ast.MemberExpression)
		if !ok {
			return nil, errs.Syntax(node.Pos(), "delete expects a member expression")
		}
		obj, key, err := p.memberTarget(depth, member)
		if err != nil {
			return nil, err
		}
		delete(obj.Pairs, key)
		return TRUE, nil
	}
	right, err := p.eval(depth, node.Right)
	if err != nil {
		return nil, err
	}
	v, err := UnaryOp(node.Operator, right)
	if err != nil {
		return nil, at(err, node.Pos())
	}
	return v, nil
}

func (p *Program) evalInfixExpression(depth int, node *ast.InfixExpression) (Value, error) {
	left, err := p.eval(depth, node.Left)
	if err != nil {
		return nil, err
	}
	if node.Operator == "&&" || node.Operator == "||" {
		return p.evalLogical(depth, node, left)
	}
	right, err := p.eval(depth, node.Right)
	if err != nil {
		return nil, err
	}
	v, err := BinaryOp(node.Operator, left, right)
	if err != nil {
		return nil, at(err, node.Pos())
	}
	return v, nil
}

// evalLogical short-circuits and requires boolean operands on both sides.
func (p *Program) evalLogical(depth int, node *ast.InfixExpression, left Value) (Value, error) {
	lb, ok := left.(*Boolean)
	if !ok {
		return nil, errs.Type(node.Pos(), "operator %s expects booleans, got %s", node.Operator, left.Type())
	}
	if node.Operator == "&&" && !lb.Value {
		return FALSE, nil
	}
	if node.Operator == "||" && lb.Value {
		return TRUE, nil
	}
	right, err := p.eval(depth, node.Right)
	if err != nil {
		return nil, err
	}
	rb, ok := right.(*Boolean)
	if !ok {
		return nil, errs.Type(node.Pos(), "operator %s expects booleans, got %s", node.Operator, right.Type())
	}
	return rb, nil
}

func (p *Program) evalUpdateExpression(depth int, node *ast.UpdateExpression) (Value, error) {
	current, err := p.evalIdentifier(depth, node.Target)
	if err != nil {
		return nil, err
	}
	var next Value
	if node.IsIncrement() {
		delta := int64(1)
		if node.Operator == "--" {
			delta = -1
		}
		next, err = Increment(current, delta)
	} else {
		var operand Value
		if operand, err = p.eval(depth, node.Value); err != nil {
			return nil, err
		}
		next, err = BinaryOp(strings.TrimSuffix(node.Operator, "="), current, operand)
	}
	if err != nil {
		return nil, at(err, node.Pos())
	}
	if err := p.assign(depth, node.Target.Name, next, node.Pos()); err != nil {
		return nil, err
	}
	if node.IsIncrement() && !node.Prefix {
		return current, nil
	}
	return next, nil
}

func (p *Program) evalAssignExpression(depth int, node *ast.AssignExpression) (Value, error) {
	value, err := p.eval(depth, node.Value)
	if err != nil {
		return nil, err
	}
	switch target := node.Target.(type) {
	case *ast.Identifier:
		nameFunction(value, target.Name)
		if err := p.assign(depth, target.Name, value, node.Pos()); err != nil {
			return nil, err
		}
	case *ast.MemberExpression:
		obj, key, err := p.memberTarget(depth, target)
		if err != nil {
			return nil, err
		}
		obj.Pairs[key] = value
	default:
		return nil, errs.Syntax(node.Pos(), "invalid assignment target %s", node.Target.String())
	}
	return value, nil
}

// memberTarget resolves the object and key of a writable member expression.
func (p *Program) memberTarget(depth int, node *ast.MemberExpression) (*Object, string, error) {
	v, err := p.eval(depth, node.Object)
	if err != nil {
		return nil, "", err
	}
	key, err := p.propertyKey(depth, node)
	if err != nil {
		return nil, "", err
	}
	obj, ok := v.(*Object)
	if !ok {
		return nil, "", errs.Type(node.Pos(), "cannot set property %q on %s", key, v.Type())
	}
	return obj, key, nil
}

func (p *Program) propertyKey(depth int, node *ast.MemberExpression) (string, error) {
	if !node.Computed {
		if name, ok := node.Property.(*ast.StringLiteral); ok {
			return name.Value, nil
		}
	}
	v, err := p.eval(depth, node.Property)
	if err != nil {
		return "", err
	}
	switch k := v.(type) {
	case *String:
		return k.Value, nil
	case *Integer:
		return strconv.FormatInt(k.Value, 10), nil
	}
	return "", errs.Type(node.Property.Pos(), "invalid property key of type %s", v.Type())
}

func (p *Program) evalMemberExpression(depth int, node *ast.MemberExpression) (Value, error) {
	v, err := p.eval(depth, node.Object)
	if err != nil {
		return nil, err
	}
	key, err := p.propertyKey(depth, node)
	if err != nil {
		return nil, err
	}
	switch o := v.(type) {
	case *Object:
		return o.Get(key), nil
	case *String:
		if key == "length" {
			return &Integer{Value: int64(utf8.RuneCountInString(o.Value))}, nil
		}
		if idx, err := strconv.Atoi(key); err == nil {
			runes := []rune(o.Value)
			if idx >= 0 && idx < len(runes) {
				return &String{Value: string(runes[idx])}, nil
			}
			return UNDEFINED, nil
		}
	}
	return nil, errs.Type(node.Pos(), "cannot read property %q of %s", key, v.Type())
}

func (p *Program) evalCallExpression(depth int, node *ast.CallExpression) (Value, error) {
	var fn *Function
	if ident, ok := node.Function.(*ast.Identifier); ok {
		resolved, err := p.resolveCallee(depth, ident)
		if err != nil {
			return nil, err
		}
		fn = resolved
	} else {
		callee, err := p.eval(depth, node.Function)
		if err != nil {
			return nil, err
		}
		if fn, ok = callee.(*Function); !ok {
			return nil, errs.Type(node.Pos(), "%s is not a function", node.Function.String())
		}
	}
	args := make([]Value, 0, len(node.Arguments))
	for _, a := range node.Arguments {
		v, err := p.eval(depth, a)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return p.applyFunction(depth, fn, args, node.Pos())
}

// resolveCallee checks user functions, then natives, then a function
// value bound in scope.
func (p *Program) resolveCallee(depth int, ident *ast.Identifier) (*Function, error) {
	if fn, ok := p.fnMap[ident.Name]; ok {
		return fn, nil
	}
	if native, ok := p.globalFnMap[ident.Name]; ok {
		return NewNative(ident.Name, native), nil
	}
	v, err := p.evalIdentifier(depth, ident)
	if err != nil {
		return nil, err
	}
	fn, ok := v.(*Function)
	if !ok {
		return nil, errs.Type(ident.Pos(), "%s is not a function", ident.Name)
	}
	return fn, nil
}

// applyFunction runs fn in a fresh frame at depth+1. Natives get the
// frame too and it is dropped as soon as they return.
func (p *Program) applyFunction(depth int, fn *Function, args []Value, pos errs.Position) (Value, error) {
	if err := p.checkContext(pos); err != nil {
		return nil, err
	}
	if p.maxCallDepth > 0 && p.callDepth >= p.maxCallDepth {
		return nil, errs.New(errs.KindRange, pos, "maximum call depth of %d exceeded", p.maxCallDepth)
	}
	p.callDepth++
	defer func() { p.callDepth-- }()

	return p.withFrame(depth, func(d int) (Value, error) {
		if fn.IsNative() {
			return callNative(fn, args, pos)
		}
		if fn.Body == nil {
			return nil, errs.Invariant(pos, "function %s has no body", fn.Name)
		}
		for i, param := range fn.Parameters {
			var v Value = UNDEFINED
			if i < len(args) {
				v = args[i]
			}
			p.scopes.declare(d, param.Name, ast.DeclLet, v)
		}
		v, err := p.evalStatements(d, fn.Body.Statements)
		if err != nil {
			return nil, err
		}
		if c, ok := isControl(v); ok {
			if c.flag == flagReturn {
				return c.value, nil
			}
			return nil, errs.Syntax(pos, "illegal %s statement outside of a loop", c.Inspect())
		}
		return UNDEFINED, nil
	})
}

func callNative(fn *Function, args []Value, pos errs.Position) (result Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = errs.New(errs.KindHost, pos, "native function %s panicked: %v", fn.Name, r)
		}
	}()
	result, err = fn.Native(args)
	if err != nil {
		var se *errs.Error
		if errors.As(err, &se) {
			return nil, at(err, pos)
		}
		return nil, errs.New(errs.KindHost, pos, "%s: %v", fn.Name, err).WithCause(err)
	}
	if result == nil {
		result = UNDEFINED
	}
	return result, nil
}
