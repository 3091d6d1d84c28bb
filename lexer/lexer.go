package lexer

import (
	"strings"
)

type Lexer struct {
	input        string
	position     int
	readPosition int
	ch           byte
	line         int
	column       int
}

func NewLexer(input string) *Lexer {
	return NewLexerAt(input, 1, 1)
}

// NewLexerAt starts a lexer whose first character sits at line:column, used
// to lex template expressions in place.
func NewLexerAt(input string, line, column int) *Lexer {
	l := &Lexer{input: input, line: line, column: column - 1}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPosition > len(l.input) {
		l.ch = 0
		return
	}
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
	l.column++
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *Lexer) atEnd() bool {
	return l.position >= len(l.input)
}

func (l *Lexer) NextToken() Token {
	l.skipWhitespace()
	line, col := l.line, l.column
	if l.atEnd() {
		return Token{Type: EOF, Line: line, Column: col}
	}
	switch {
	case l.ch == '/' && l.peekChar() == '/':
		l.skipLineComment()
		return l.NextToken()
	case l.ch == '/' && l.peekChar() == '*':
		if !l.skipBlockComment() {
			return Token{Type: ILLEGAL, Literal: "/*", Line: line, Column: col, Err: "unterminated comment"}
		}
		return l.NextToken()
	case l.ch == '"' || l.ch == '\'':
		return l.readString(line, col)
	case l.ch == '`':
		return l.readTemplate(line, col)
	case isDigit(l.ch) || (l.ch == '.' && isDigit(l.peekChar())):
		return Token{Type: NUMBER, Literal: l.readNumber(), Line: line, Column: col}
	case isLetter(l.ch):
		ident := l.readIdentifier()
		return Token{Type: LookupIdent(ident), Literal: ident, Line: line, Column: col}
	}
	rest := l.input[l.position:]
	for _, p := range punctuators {
		if strings.HasPrefix(rest, string(p)) {
			for range len(p) {
				l.readChar()
			}
			return Token{Type: p, Literal: string(p), Line: line, Column: col}
		}
	}
	ch := l.ch
	l.readChar()
	return Token{Type: ILLEGAL, Literal: string(ch), Line: line, Column: col, Err: "unexpected character"}
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

func (l *Lexer) skipLineComment() {
	for !l.atEnd() && l.ch != '\n' {
		l.readChar()
	}
}

// skipBlockComment stops at the first "*/"; nesting is not recognised.
func (l *Lexer) skipBlockComment() bool {
	l.readChar()
	l.readChar()
	for !l.atEnd() {
		if l.ch == '*' && l.peekChar() == '/' {
			l.readChar()
			l.readChar()
			return true
		}
		l.readChar()
	}
	return false
}

func (l *Lexer) readIdentifier() string {
	start := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position]
}

// readNumber takes digits and dots greedily; the parser validates the text.
func (l *Lexer) readNumber() string {
	start := l.position
	for isDigit(l.ch) || l.ch == '.' {
		l.readChar()
	}
	return l.input[start:l.position]
}

// readEscape handles a backslash inside a quoted literal. An escaped
// delimiter becomes the delimiter, backslash-newline is dropped and any
// other pair is kept as written.
func (l *Lexer) readEscape(sb *strings.Builder, quote byte) {
	next := l.peekChar()
	switch {
	case next == quote:
		l.readChar()
		sb.WriteByte(quote)
	case next == '\n':
		l.readChar()
	case next == '\r' && l.readPosition+1 < len(l.input) && l.input[l.readPosition+1] == '\n':
		l.readChar()
		l.readChar()
	case next == 0 && l.readPosition >= len(l.input):
		sb.WriteByte('\\')
	default:
		sb.WriteByte('\\')
		l.readChar()
		sb.WriteByte(l.ch)
	}
	l.readChar()
}

func (l *Lexer) readString(line, col int) Token {
	quote := l.ch
	l.readChar()
	var sb strings.Builder
	for {
		if l.atEnd() {
			return Token{Type: ILLEGAL, Literal: sb.String(), Line: line, Column: col, Err: "unterminated string"}
		}
		switch l.ch {
		case quote:
			l.readChar()
			return Token{Type: STRING, Literal: sb.String(), Line: line, Column: col}
		case '\\':
			l.readEscape(&sb, quote)
		default:
			sb.WriteByte(l.ch)
			l.readChar()
		}
	}
}

func (l *Lexer) readTemplate(line, col int) Token {
	l.readChar()
	var (
		sb     strings.Builder
		quasis []string
		exprs  []TemplateExpr
	)
	for {
		if l.atEnd() {
			return Token{Type: ILLEGAL, Literal: sb.String(), Line: line, Column: col, Err: "unterminated template literal"}
		}
		switch {
		case l.ch == '`':
			l.readChar()
			quasis = append(quasis, sb.String())
			return Token{Type: TEMPLATE, Literal: strings.Join(quasis, ""), Line: line, Column: col, Quasis: quasis, Exprs: exprs}
		case l.ch == '\\':
			l.readEscape(&sb, '`')
		case l.ch == '$' && l.peekChar() == '{':
			quasis = append(quasis, sb.String())
			sb.Reset()
			l.readChar()
			l.readChar()
			expr, ok := l.readInterpolation()
			if !ok {
				return Token{Type: ILLEGAL, Literal: expr.Source, Line: line, Column: col, Err: "unterminated ${ in template literal"}
			}
			exprs = append(exprs, expr)
		default:
			sb.WriteByte(l.ch)
			l.readChar()
		}
	}
}

// readInterpolation reads up to the brace that closes the current ${.
func (l *Lexer) readInterpolation() (TemplateExpr, bool) {
	expr := TemplateExpr{Line: l.line, Column: l.column}
	start := l.position
	depth := 1
	for !l.atEnd() {
		switch l.ch {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				expr.Source = l.input[start:l.position]
				l.readChar()
				return expr, true
			}
		}
		l.readChar()
	}
	expr.Source = l.input[start:]
	return expr, false
}

// Tokenize lexes the whole input, EOF included.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens
		}
	}
}

// Dump lists every token on its own line for inspection.
func Dump(input string) string {
	var sb strings.Builder
	for _, tok := range Tokenize(input) {
		sb.WriteString(tok.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_' || ch == '$' || ch >= 0x80
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
