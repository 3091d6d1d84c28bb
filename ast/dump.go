package ast

import (
	"fmt"
	"strings"
)

// Dump renders the program as an indented tree, one statement per line.
func Dump(p *Program) string {
	var sb strings.Builder
	for _, s := range p.Statements {
		dumpStatement(&sb, s, 0)
	}
	return sb.String()
}

func dumpStatement(sb *strings.Builder, s Statement, depth int) {
	indent := strings.Repeat("  ", depth)
	pos := s.Pos()
	head := func(label string) {
		fmt.Fprintf(sb, "%s%s @%d:%d\n", indent, label, pos.Line, pos.Column)
	}
	switch s := s.(type) {
	case *BlockStatement:
		head("Block")
		for _, inner := range s.Statements {
			dumpStatement(sb, inner, depth+1)
		}
	case *FunctionDeclaration:
		head(fmt.Sprintf("Function %s(%s)", s.Function.Name, paramNames(s.Function)))
		for _, inner := range s.Function.Body.Statements {
			dumpStatement(sb, inner, depth+1)
		}
	case *IfStatement:
		head("If " + s.Condition.String())
		dumpStatement(sb, s.Consequence, depth+1)
		if s.Alternative != nil {
			fmt.Fprintf(sb, "%sElse\n", indent)
			dumpStatement(sb, s.Alternative, depth+1)
		}
	case *ForStatement:
		head(fmt.Sprintf("For [%s] [%s] [%s]", strings.TrimSuffix(s.Init.String(), ";"), s.Condition.String(), s.Update.String()))
		dumpStatement(sb, s.Body, depth+1)
	case *ForInStatement:
		head(fmt.Sprintf("ForIn %s %s in %s", s.Kind, s.Name.Name, s.Right.String()))
		dumpStatement(sb, s.Body, depth+1)
	case *ForOfStatement:
		head(fmt.Sprintf("ForOf %s %s of %s", s.Kind, s.Name.Name, s.Right.String()))
		dumpStatement(sb, s.Body, depth+1)
	case *WhileStatement:
		head("While " + s.Condition.String())
		dumpStatement(sb, s.Body, depth+1)
	case *DoWhileStatement:
		head("DoWhile " + s.Condition.String())
		dumpStatement(sb, s.Body, depth+1)
	default:
		head(s.String())
	}
}

func paramNames(fl *FunctionLiteral) string {
	names := make([]string, len(fl.Parameters))
	for i, p := range fl.Parameters {
		names[i] = p.Name
	}
	return strings.Join(names, ", ")
}
