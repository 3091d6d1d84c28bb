package lexer

import (
	"fmt"
	"strconv"
)

type TokenType string

const (
	ILLEGAL TokenType = "ILLEGAL"
	EOF     TokenType = "EOF"

	IDENT    TokenType = "IDENT"
	NUMBER   TokenType = "NUMBER"
	STRING   TokenType = "STRING"
	TEMPLATE TokenType = "TEMPLATE"

	ASSIGN        TokenType = "="
	EQ            TokenType = "=="
	STRICT_EQ     TokenType = "==="
	BANG          TokenType = "!"
	NOT_EQ        TokenType = "!="
	STRICT_NOT_EQ TokenType = "!=="

	PLUS            TokenType = "+"
	INC             TokenType = "++"
	PLUS_ASSIGN     TokenType = "+="
	MINUS           TokenType = "-"
	DEC             TokenType = "--"
	MINUS_ASSIGN    TokenType = "-="
	ASTERISK        TokenType = "*"
	ASTERISK_ASSIGN TokenType = "*="
	SLASH           TokenType = "/"
	SLASH_ASSIGN    TokenType = "/="
	PERCENT         TokenType = "%"
	PERCENT_ASSIGN  TokenType = "%="

	BIT_AND        TokenType = "&"
	AND            TokenType = "&&"
	BIT_AND_ASSIGN TokenType = "&="
	BIT_OR         TokenType = "|"
	OR             TokenType = "||"
	BIT_OR_ASSIGN  TokenType = "|="
	BIT_XOR        TokenType = "^"
	BIT_XOR_ASSIGN TokenType = "^="

	LT          TokenType = "<"
	LE          TokenType = "<="
	SHL         TokenType = "<<"
	SHL_ASSIGN  TokenType = "<<="
	GT          TokenType = ">"
	GE          TokenType = ">="
	SHR         TokenType = ">>"
	SHR_ASSIGN  TokenType = ">>="
	USHR        TokenType = ">>>"
	USHR_ASSIGN TokenType = ">>>="

	COMMA     TokenType = ","
	SEMICOLON TokenType = ";"
	COLON     TokenType = ":"
	DOT       TokenType = "."
	QUESTION  TokenType = "?"
	LPAREN    TokenType = "("
	RPAREN    TokenType = ")"
	LBRACE    TokenType = "{"
	RBRACE    TokenType = "}"
	LBRACKET  TokenType = "["
	RBRACKET  TokenType = "]"

	LET      TokenType = "let"
	CONST    TokenType = "const"
	VAR      TokenType = "var"
	IF       TokenType = "if"
	ELSE     TokenType = "else"
	RETURN   TokenType = "return"
	BREAK    TokenType = "break"
	CONTINUE TokenType = "continue"
	FOR      TokenType = "for"
	IN       TokenType = "in"
	OF       TokenType = "of"
	DELETE   TokenType = "delete"
	DO       TokenType = "do"
	SWITCH   TokenType = "switch"
	CASE     TokenType = "case"
	DEFAULT  TokenType = "default"
	FUNCTION TokenType = "function"
	WHILE    TokenType = "while"
)

var keywords = map[string]TokenType{
	"let":      LET,
	"const":    CONST,
	"var":      VAR,
	"if":       IF,
	"else":     ELSE,
	"return":   RETURN,
	"break":    BREAK,
	"continue": CONTINUE,
	"for":      FOR,
	"in":       IN,
	"of":       OF,
	"delete":   DELETE,
	"do":       DO,
	"switch":   SWITCH,
	"case":     CASE,
	"default":  DEFAULT,
	"function": FUNCTION,
	"while":    WHILE,
}

// punctuators is ordered longest first so the first prefix match wins.
var punctuators = []TokenType{
	USHR_ASSIGN,
	STRICT_EQ, STRICT_NOT_EQ, USHR, SHL_ASSIGN, SHR_ASSIGN,
	EQ, NOT_EQ, INC, PLUS_ASSIGN, DEC, MINUS_ASSIGN, ASTERISK_ASSIGN, SLASH_ASSIGN, PERCENT_ASSIGN,
	AND, BIT_AND_ASSIGN, OR, BIT_OR_ASSIGN, BIT_XOR_ASSIGN, LE, SHL, GE, SHR,
	ASSIGN, BANG, PLUS, MINUS, ASTERISK, SLASH, PERCENT, BIT_AND, BIT_OR, BIT_XOR, LT, GT,
	COMMA, SEMICOLON, COLON, DOT, QUESTION, LPAREN, RPAREN, LBRACE, RBRACE, LBRACKET, RBRACKET,
}

var punctuatorSet = func() map[TokenType]bool {
	m := make(map[TokenType]bool, len(punctuators))
	for _, p := range punctuators {
		m[p] = true
	}
	return m
}()

// LookupIdent maps identifier text to its keyword type or IDENT.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

func (t TokenType) IsKeyword() bool {
	_, ok := keywords[string(t)]
	return ok
}

func (t TokenType) IsPunctuator() bool {
	return punctuatorSet[t]
}

// TemplateExpr is the raw source of one ${...} segment and where it starts.
type TemplateExpr struct {
	Source string
	Line   int
	Column int
}

type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
	// Err explains an ILLEGAL token.
	Err string
	// Quasis and Exprs are set for TEMPLATE tokens; len(Quasis) == len(Exprs)+1.
	Quasis []string
	Exprs  []TemplateExpr
}

// Canonical renders the token back to source text. Keywords and
// punctuators render as their fixed spelling.
func (t Token) Canonical() string {
	switch {
	case t.Type.IsKeyword(), t.Type.IsPunctuator():
		return string(t.Type)
	case t.Type == STRING:
		return strconv.Quote(t.Literal)
	case t.Type == TEMPLATE:
		s := "`" + t.Quasis[0]
		for i, e := range t.Exprs {
			s += "${" + e.Source + "}" + t.Quasis[i+1]
		}
		return s + "`"
	case t.Type == EOF:
		return ""
	}
	return t.Literal
}

func (t Token) String() string {
	switch t.Type {
	case ILLEGAL:
		return fmt.Sprintf("%d:%d ILLEGAL %q (%s)", t.Line, t.Column, t.Literal, t.Err)
	case IDENT, NUMBER:
		return fmt.Sprintf("%d:%d %s %s", t.Line, t.Column, t.Type, t.Literal)
	case STRING, TEMPLATE:
		return fmt.Sprintf("%d:%d %s %s", t.Line, t.Column, t.Type, t.Canonical())
	}
	return fmt.Sprintf("%d:%d %s", t.Line, t.Column, t.Type)
}
