package ast

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/oarkflow/script/errs"
)

type Node interface {
	Pos() errs.Position
	String() string
}

type Expression interface {
	Node
	expressionNode()
}

type Statement interface {
	Node
	statementNode()
}

// Loc is embedded by every node to carry its source position.
type Loc struct {
	Line   int
	Column int
}

func (l Loc) Pos() errs.Position { return errs.Position{Line: l.Line, Column: l.Column} }

type DeclKind string

const (
	DeclLet   DeclKind = "let"
	DeclConst DeclKind = "const"
	DeclVar   DeclKind = "var"
)

// Reassignable reports whether a binding of this kind accepts assignment.
// Only const bindings are frozen; let and var stay writable.
func (k DeclKind) Reassignable() bool { return k != DeclConst }

type Program struct {
	Statements []Statement
}

func (p *Program) Pos() errs.Position {
	if len(p.Statements) == 0 {
		return errs.Position{Line: 1, Column: 1}
	}
	return p.Statements[0].Pos()
}

func (p *Program) String() string {
	var out strings.Builder
	for _, s := range p.Statements {
		out.WriteString(s.String())
	}
	return out.String()
}

// ---- expressions ----

type Identifier struct {
	Loc
	Name string
}

func (i *Identifier) expressionNode() {}
func (i *Identifier) String() string  { return i.Name }

// NumberLiteral keeps the source text alongside the parsed value.
type NumberLiteral struct {
	Loc
	Raw     string
	IsFloat bool
	Int     int64
	Float   float64
}

func (nl *NumberLiteral) expressionNode() {}
func (nl *NumberLiteral) String() string  { return nl.Raw }

type StringLiteral struct {
	Loc
	Value string
}

func (sl *StringLiteral) expressionNode() {}
func (sl *StringLiteral) String() string  { return strconv.Quote(sl.Value) }

type TemplateLiteral struct {
	Loc
	Quasis      []string
	Expressions []Expression
}

func (tl *TemplateLiteral) expressionNode() {}
func (tl *TemplateLiteral) String() string {
	var out strings.Builder
	out.WriteByte('`')
	out.WriteString(tl.Quasis[0])
	for i, e := range tl.Expressions {
		out.WriteString("${")
		out.WriteString(e.String())
		out.WriteString("}")
		out.WriteString(tl.Quasis[i+1])
	}
	out.WriteByte('`')
	return out.String()
}

type BooleanLiteral struct {
	Loc
	Value bool
}

func (bl *BooleanLiteral) expressionNode() {}
func (bl *BooleanLiteral) String() string  { return strconv.FormatBool(bl.Value) }

type NullLiteral struct{ Loc }

func (nl *NullLiteral) expressionNode() {}
func (nl *NullLiteral) String() string  { return "null" }

type UndefinedLiteral struct{ Loc }

func (ul *UndefinedLiteral) expressionNode() {}
func (ul *UndefinedLiteral) String() string  { return "undefined" }

// EmptyExpression stands in for an omitted clause, e.g. every clause of for(;;).
type EmptyExpression struct{ Loc }

func (ee *EmptyExpression) expressionNode() {}
func (ee *EmptyExpression) String() string  { return "" }

type Property struct {
	Key   string
	Value Expression
}

type ObjectLiteral struct {
	Loc
	Properties []Property
}

func (ol *ObjectLiteral) expressionNode() {}
func (ol *ObjectLiteral) String() string {
	pairs := make([]string, len(ol.Properties))
	for i, p := range ol.Properties {
		pairs[i] = strconv.Quote(p.Key) + ": " + p.Value.String()
	}
	return "{" + strings.Join(pairs, ", ") + "}"
}

type PrefixExpression struct {
	Loc
	Operator string
	Right    Expression
}

func (pe *PrefixExpression) expressionNode() {}
func (pe *PrefixExpression) String() string {
	if pe.Operator == "delete" {
		return fmt.Sprintf("(delete %s)", pe.Right.String())
	}
	return fmt.Sprintf("(%s%s)", pe.Operator, pe.Right.String())
}

type InfixExpression struct {
	Loc
	Left     Expression
	Operator string
	Right    Expression
}

func (ie *InfixExpression) expressionNode() {}
func (ie *InfixExpression) String() string {
	return fmt.Sprintf("(%s %s %s)", ie.Left.String(), ie.Operator, ie.Right.String())
}

type ConditionalExpression struct {
	Loc
	Test       Expression
	Consequent Expression
	Alternate  Expression
}

func (ce *ConditionalExpression) expressionNode() {}
func (ce *ConditionalExpression) String() string {
	return fmt.Sprintf("(%s ? %s : %s)", ce.Test.String(), ce.Consequent.String(), ce.Alternate.String())
}

// UpdateExpression mutates a named binding in place: ++/-- (Value is an
// EmptyExpression) or a compound assignment such as += (Value is the operand).
type UpdateExpression struct {
	Loc
	Target   *Identifier
	Operator string
	Value    Expression
	Prefix   bool
}

func (ue *UpdateExpression) expressionNode() {}

// IsIncrement reports whether the node is ++ or -- rather than a compound assignment.
func (ue *UpdateExpression) IsIncrement() bool { return ue.Operator == "++" || ue.Operator == "--" }

func (ue *UpdateExpression) String() string {
	switch {
	case ue.IsIncrement() && ue.Prefix:
		return fmt.Sprintf("(%s%s)", ue.Operator, ue.Target.Name)
	case ue.IsIncrement():
		return fmt.Sprintf("(%s%s)", ue.Target.Name, ue.Operator)
	}
	return fmt.Sprintf("(%s %s %s)", ue.Target.Name, ue.Operator, ue.Value.String())
}

// AssignExpression targets an *Identifier or a *MemberExpression.
type AssignExpression struct {
	Loc
	Target Expression
	Value  Expression
}

func (ae *AssignExpression) expressionNode() {}
func (ae *AssignExpression) String() string {
	return fmt.Sprintf("(%s = %s)", ae.Target.String(), ae.Value.String())
}

type MemberExpression struct {
	Loc
	Object   Expression
	Property Expression
	Computed bool
}

func (me *MemberExpression) expressionNode() {}
func (me *MemberExpression) String() string {
	if name, ok := me.Property.(*StringLiteral); ok && !me.Computed {
		return fmt.Sprintf("(%s.%s)", me.Object.String(), name.Value)
	}
	return fmt.Sprintf("(%s[%s])", me.Object.String(), me.Property.String())
}

type FunctionLiteral struct {
	Loc
	Name       string
	Parameters []*Identifier
	Body       *BlockStatement
}

func (fl *FunctionLiteral) expressionNode() {}
func (fl *FunctionLiteral) String() string {
	params := make([]string, len(fl.Parameters))
	for i, p := range fl.Parameters {
		params[i] = p.Name
	}
	name := ""
	if fl.Name != "" {
		name = " " + fl.Name
	}
	return fmt.Sprintf("function%s(%s) %s", name, strings.Join(params, ", "), fl.Body.String())
}

type CallExpression struct {
	Loc
	Function  Expression
	Arguments []Expression
}

func (ce *CallExpression) expressionNode() {}
func (ce *CallExpression) String() string {
	args := make([]string, len(ce.Arguments))
	for i, a := range ce.Arguments {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", ce.Function.String(), strings.Join(args, ", "))
}

// ---- statements ----

type Declarator struct {
	Name  *Identifier
	Value Expression
}

type LetStatement struct {
	Loc
	Kind         DeclKind
	Declarations []*Declarator
}

func (ls *LetStatement) statementNode() {}
func (ls *LetStatement) String() string {
	parts := make([]string, len(ls.Declarations))
	for i, d := range ls.Declarations {
		if d.Value == nil {
			parts[i] = d.Name.Name
			continue
		}
		parts[i] = d.Name.Name + " = " + d.Value.String()
	}
	return fmt.Sprintf("%s %s;", ls.Kind, strings.Join(parts, ", "))
}

type FunctionDeclaration struct {
	Loc
	Function *FunctionLiteral
}

func (fd *FunctionDeclaration) statementNode() {}
func (fd *FunctionDeclaration) String() string  { return fd.Function.String() }

type ExpressionStatement struct {
	Loc
	Expression Expression
}

func (es *ExpressionStatement) statementNode() {}
func (es *ExpressionStatement) String() string  { return es.Expression.String() + ";" }

type BlockStatement struct {
	Loc
	Statements []Statement
}

func (bs *BlockStatement) statementNode() {}
func (bs *BlockStatement) String() string {
	var out strings.Builder
	out.WriteString("{ ")
	for _, s := range bs.Statements {
		out.WriteString(s.String())
		out.WriteByte(' ')
	}
	out.WriteString("}")
	return out.String()
}

// EmptyStatement is a lone ';' or an omitted for-loop initialiser.
type EmptyStatement struct{ Loc }

func (es *EmptyStatement) statementNode() {}
func (es *EmptyStatement) String() string  { return ";" }

type IfStatement struct {
	Loc
	Condition   Expression
	Consequence Statement
	Alternative Statement
}

func (is *IfStatement) statementNode() {}
func (is *IfStatement) String() string {
	s := fmt.Sprintf("if (%s) %s", is.Condition.String(), is.Consequence.String())
	if is.Alternative != nil {
		s += " else " + is.Alternative.String()
	}
	return s
}

type ForStatement struct {
	Loc
	Init      Statement
	Condition Expression
	Update    Expression
	Body      Statement
}

func (fs *ForStatement) statementNode() {}
func (fs *ForStatement) String() string {
	init := strings.TrimSuffix(fs.Init.String(), ";")
	return fmt.Sprintf("for (%s; %s; %s) %s", init, fs.Condition.String(), fs.Update.String(), fs.Body.String())
}

type ForInStatement struct {
	Loc
	Kind  DeclKind
	Name  *Identifier
	Right Expression
	Body  Statement
}

func (fs *ForInStatement) statementNode() {}
func (fs *ForInStatement) String() string {
	return fmt.Sprintf("for (%s in %s) %s", loopBinding(fs.Kind, fs.Name), fs.Right.String(), fs.Body.String())
}

type ForOfStatement struct {
	Loc
	Kind  DeclKind
	Name  *Identifier
	Right Expression
	Body  Statement
}

func (fs *ForOfStatement) statementNode() {}
func (fs *ForOfStatement) String() string {
	return fmt.Sprintf("for (%s of %s) %s", loopBinding(fs.Kind, fs.Name), fs.Right.String(), fs.Body.String())
}

func loopBinding(kind DeclKind, name *Identifier) string {
	if kind == "" {
		return name.Name
	}
	return string(kind) + " " + name.Name
}

type WhileStatement struct {
	Loc
	Condition Expression
	Body      Statement
}

func (ws *WhileStatement) statementNode() {}
func (ws *WhileStatement) String() string {
	return fmt.Sprintf("while (%s) %s", ws.Condition.String(), ws.Body.String())
}

type DoWhileStatement struct {
	Loc
	Body      Statement
	Condition Expression
}

func (dw *DoWhileStatement) statementNode() {}
func (dw *DoWhileStatement) String() string {
	return fmt.Sprintf("do %s while (%s);", dw.Body.String(), dw.Condition.String())
}

type ReturnStatement struct {
	Loc
	Value Expression
}

func (rs *ReturnStatement) statementNode() {}
func (rs *ReturnStatement) String() string {
	if rs.Value == nil {
		return "return;"
	}
	return "return " + rs.Value.String() + ";"
}

type BreakStatement struct{ Loc }

func (bs *BreakStatement) statementNode() {}
func (bs *BreakStatement) String() string  { return "break;" }

type ContinueStatement struct{ Loc }

func (cs *ContinueStatement) statementNode() {}
func (cs *ContinueStatement) String() string  { return "continue;" }
