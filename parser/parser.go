package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/oarkflow/script/ast"
	"github.com/oarkflow/script/errs"
	"github.com/oarkflow/script/lexer"
)

const (
	_ int = iota
	LOWEST
	ASSIGNMENT  // = += -= ...
	CONDITIONAL // ?:
	LOGICAL_OR  // ||
	LOGICAL_AND // &&
	BITWISE_OR  // |
	BITWISE_XOR // ^
	BITWISE_AND // &
	EQUALS      // == != === !==
	LESSGREATER // < > <= >=
	SHIFT       // << >> >>>
	SUM         // + -
	PRODUCT     // * / %
	PREFIX      // -x !x ++x delete x
	POSTFIX     // x++ x--
	CALL        // f(x) a.b a[b]
)

var precedences = map[lexer.TokenType]int{
	lexer.ASSIGN:          ASSIGNMENT,
	lexer.PLUS_ASSIGN:     ASSIGNMENT,
	lexer.MINUS_ASSIGN:    ASSIGNMENT,
	lexer.ASTERISK_ASSIGN: ASSIGNMENT,
	lexer.SLASH_ASSIGN:    ASSIGNMENT,
	lexer.PERCENT_ASSIGN:  ASSIGNMENT,
	lexer.BIT_AND_ASSIGN:  ASSIGNMENT,
	lexer.BIT_OR_ASSIGN:   ASSIGNMENT,
	lexer.BIT_XOR_ASSIGN:  ASSIGNMENT,
	lexer.SHL_ASSIGN:      ASSIGNMENT,
	lexer.SHR_ASSIGN:      ASSIGNMENT,
	lexer.USHR_ASSIGN:     ASSIGNMENT,
	lexer.QUESTION:        CONDITIONAL,
	lexer.OR:              LOGICAL_OR,
	lexer.AND:             LOGICAL_AND,
	lexer.BIT_OR:          BITWISE_OR,
	lexer.BIT_XOR:         BITWISE_XOR,
	lexer.BIT_AND:         BITWISE_AND,
	lexer.EQ:              EQUALS,
	lexer.NOT_EQ:          EQUALS,
	lexer.STRICT_EQ:       EQUALS,
	lexer.STRICT_NOT_EQ:   EQUALS,
	lexer.LT:              LESSGREATER,
	lexer.GT:              LESSGREATER,
	lexer.LE:              LESSGREATER,
	lexer.GE:              LESSGREATER,
	lexer.SHL:             SHIFT,
	lexer.SHR:             SHIFT,
	lexer.USHR:            SHIFT,
	lexer.PLUS:            SUM,
	lexer.MINUS:           SUM,
	lexer.ASTERISK:        PRODUCT,
	lexer.SLASH:           PRODUCT,
	lexer.PERCENT:         PRODUCT,
	lexer.INC:             POSTFIX,
	lexer.DEC:             POSTFIX,
	lexer.LPAREN:          CALL,
	lexer.DOT:             CALL,
	lexer.LBRACKET:        CALL,
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

type Parser struct {
	l      *lexer.Lexer
	errors errs.List

	curToken  lexer.Token
	peekToken lexer.Token

	prefixParseFns map[lexer.TokenType]prefixParseFn
	infixParseFns  map[lexer.TokenType]infixParseFn
}

func NewParser(l *lexer.Lexer) *Parser {
	p := &Parser{
		l:              l,
		prefixParseFns: make(map[lexer.TokenType]prefixParseFn),
		infixParseFns:  make(map[lexer.TokenType]infixParseFn),
	}

	p.registerPrefix(lexer.IDENT, p.parseIdentifier)
	p.registerPrefix(lexer.NUMBER, p.parseNumberLiteral)
	p.registerPrefix(lexer.STRING, p.parseStringLiteral)
	p.registerPrefix(lexer.TEMPLATE, p.parseTemplateLiteral)
	p.registerPrefix(lexer.BANG, p.parsePrefixExpression)
	p.registerPrefix(lexer.MINUS, p.parsePrefixExpression)
	p.registerPrefix(lexer.PLUS, p.parsePrefixExpression)
	p.registerPrefix(lexer.DELETE, p.parsePrefixExpression)
	p.registerPrefix(lexer.INC, p.parsePrefixUpdate)
	p.registerPrefix(lexer.DEC, p.parsePrefixUpdate)
	p.registerPrefix(lexer.LPAREN, p.parseGroupedExpression)
	p.registerPrefix(lexer.LBRACE, p.parseObjectLiteral)
	p.registerPrefix(lexer.FUNCTION, p.parseFunctionLiteral)
	p.registerPrefix(lexer.LBRACKET, p.parseArrayLiteral)
	p.registerPrefix(lexer.ILLEGAL, p.parseIllegal)

	for _, tok := range []lexer.TokenType{
		lexer.PLUS, lexer.MINUS, lexer.ASTERISK, lexer.SLASH, lexer.PERCENT,
		lexer.EQ, lexer.NOT_EQ, lexer.STRICT_EQ, lexer.STRICT_NOT_EQ,
		lexer.LT, lexer.GT, lexer.LE, lexer.GE,
		lexer.AND, lexer.OR, lexer.BIT_AND, lexer.BIT_OR, lexer.BIT_XOR,
		lexer.SHL, lexer.SHR, lexer.USHR,
	} {
		p.registerInfix(tok, p.parseInfixExpression)
	}
	for _, tok := range []lexer.TokenType{
		lexer.PLUS_ASSIGN, lexer.MINUS_ASSIGN, lexer.ASTERISK_ASSIGN, lexer.SLASH_ASSIGN,
		lexer.PERCENT_ASSIGN, lexer.BIT_AND_ASSIGN, lexer.BIT_OR_ASSIGN, lexer.BIT_XOR_ASSIGN,
		lexer.SHL_ASSIGN, lexer.SHR_ASSIGN, lexer.USHR_ASSIGN,
	} {
		p.registerInfix(tok, p.parseCompoundAssignment)
	}
	p.registerInfix(lexer.ASSIGN, p.parseAssignExpression)
	p.registerInfix(lexer.INC, p.parsePostfixUpdate)
	p.registerInfix(lexer.DEC, p.parsePostfixUpdate)
	p.registerInfix(lexer.QUESTION, p.parseConditionalExpression)
	p.registerInfix(lexer.LPAREN, p.parseCallExpression)
	p.registerInfix(lexer.DOT, p.parseDotExpression)
	p.registerInfix(lexer.LBRACKET, p.parseIndexExpression)

	p.nextToken()
	p.nextToken()
	return p
}

// Parse lexes and parses source in one step. The returned program may be
// partial when err is non-nil.
func Parse(source string) (*ast.Program, error) {
	p := NewParser(lexer.NewLexer(source))
	program := p.ParseProgram()
	return program, p.Errors().Err()
}

func (p *Parser) registerPrefix(tokenType lexer.TokenType, fn prefixParseFn) {
	p.prefixParseFns[tokenType] = fn
}

func (p *Parser) registerInfix(tokenType lexer.TokenType, fn infixParseFn) {
	p.infixParseFns[tokenType] = fn
}

func (p *Parser) Errors() errs.List {
	return p.errors
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) curTokenIs(t lexer.TokenType) bool  { return p.curToken.Type == t }
func (p *Parser) peekTokenIs(t lexer.TokenType) bool { return p.peekToken.Type == t }

func (p *Parser) expectPeek(t lexer.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

func (p *Parser) skipOptionalSemicolon() {
	if p.peekTokenIs(lexer.SEMICOLON) {
		p.nextToken()
	}
}

func loc(tok lexer.Token) ast.Loc {
	return ast.Loc{Line: tok.Line, Column: tok.Column}
}

func tokenPos(tok lexer.Token) errs.Position {
	return errs.Position{Line: tok.Line, Column: tok.Column}
}

func describe(tok lexer.Token) string {
	switch tok.Type {
	case lexer.EOF:
		return "end of input"
	case lexer.IDENT, lexer.NUMBER:
		return fmt.Sprintf("%s %q", tok.Type, tok.Literal)
	case lexer.STRING, lexer.TEMPLATE:
		return string(tok.Type)
	}
	return fmt.Sprintf("%q", string(tok.Type))
}

func (p *Parser) addError(err *errs.Error) {
	p.errors = append(p.errors, err)
}

func (p *Parser) errorAt(tok lexer.Token, format string, args ...any) {
	if tok.Type == lexer.ILLEGAL {
		p.addError(errs.Syntax(tokenPos(tok), "%s", tok.Err))
		return
	}
	p.addError(errs.Syntax(tokenPos(tok), format, args...))
}

var reservedNames = map[string]bool{"true": true, "false": true, "null": true, "undefined": true}

// bindingName reports an error when tok names a literal and so cannot be bound.
func (p *Parser) bindingName(tok lexer.Token) bool {
	if reservedNames[tok.Literal] {
		p.errorAt(tok, "%q cannot be used as a binding name", tok.Literal)
		return false
	}
	return true
}

func (p *Parser) peekError(t lexer.TokenType) {
	p.errorAt(p.peekToken, "expected %q, got %s", string(t), describe(p.peekToken))
}

// ParseProgram parses statements until end of input. After a failed
// statement it skips to the next ';' so later statements still report.
func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{}
	for !p.curTokenIs(lexer.EOF) {
		before := len(p.errors)
		stmt := p.parseStatement()
		if len(p.errors) > before {
			p.synchronize()
		} else if stmt != nil {
			program.Statements = append(program.Statements, stmt)
		}
		p.nextToken()
	}
	return program
}

func (p *Parser) synchronize() {
	for !p.curTokenIs(lexer.SEMICOLON) && !p.curTokenIs(lexer.EOF) && !p.peekTokenIs(lexer.EOF) {
		p.nextToken()
	}
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.curToken.Type {
	case lexer.LET, lexer.CONST, lexer.VAR:
		return p.parseLetStatement()
	case lexer.FUNCTION:
		if p.peekTokenIs(lexer.IDENT) {
			return p.parseFunctionDeclaration()
		}
		return p.parseExpressionStatement()
	case lexer.IF:
		return p.parseIfStatement()
	case lexer.FOR:
		return p.parseForStatement()
	case lexer.WHILE:
		return p.parseWhileStatement()
	case lexer.DO:
		return p.parseDoWhileStatement()
	case lexer.RETURN:
		return p.parseReturnStatement()
	case lexer.BREAK:
		stmt := &ast.BreakStatement{Loc: loc(p.curToken)}
		p.skipOptionalSemicolon()
		return stmt
	case lexer.CONTINUE:
		stmt := &ast.ContinueStatement{Loc: loc(p.curToken)}
		p.skipOptionalSemicolon()
		return stmt
	case lexer.LBRACE:
		return p.parseBody()
	case lexer.SEMICOLON:
		return &ast.EmptyStatement{Loc: loc(p.curToken)}
	case lexer.SWITCH:
		return p.parseSwitchStatement()
	default:
		return p.parseExpressionStatement()
	}
}

func (p *Parser) parseLetStatement() ast.Statement {
	stmt := &ast.LetStatement{Loc: loc(p.curToken), Kind: ast.DeclKind(p.curToken.Type)}
	if !p.expectPeek(lexer.IDENT) {
		return nil
	}
	if !p.parseDeclarators(stmt) {
		return nil
	}
	p.skipOptionalSemicolon()
	return stmt
}

// parseDeclarators starts on the first binding name and stops on the last
// token of the last declarator.
func (p *Parser) parseDeclarators(stmt *ast.LetStatement) bool {
	for {
		if !p.bindingName(p.curToken) {
			return false
		}
		decl := &ast.Declarator{Name: &ast.Identifier{Loc: loc(p.curToken), Name: p.curToken.Literal}}
		if p.peekTokenIs(lexer.ASSIGN) {
			p.nextToken()
			p.nextToken()
			decl.Value = p.parseExpression(LOWEST)
			if decl.Value == nil {
				return false
			}
		} else if stmt.Kind == ast.DeclConst {
			p.errorAt(p.curToken, "missing initializer in const declaration of %q", decl.Name.Name)
			return false
		}
		stmt.Declarations = append(stmt.Declarations, decl)
		if !p.peekTokenIs(lexer.COMMA) {
			return true
		}
		p.nextToken()
		if !p.expectPeek(lexer.IDENT) {
			return false
		}
	}
}

func (p *Parser) parseFunctionDeclaration() ast.Statement {
	tok := p.curToken
	fn, ok := p.parseFunctionLiteral().(*ast.FunctionLiteral)
	if !ok || fn == nil {
		return nil
	}
	return &ast.FunctionDeclaration{Loc: loc(tok), Function: fn}
}

func (p *Parser) parseExpressionStatement() ast.Statement {
	stmt := &ast.ExpressionStatement{Loc: loc(p.curToken)}
	stmt.Expression = p.parseExpression(LOWEST)
	if stmt.Expression == nil {
		return nil
	}
	p.skipOptionalSemicolon()
	return stmt
}

func (p *Parser) parseBlockStatement() *ast.BlockStatement {
	block := &ast.BlockStatement{Loc: loc(p.curToken)}
	p.nextToken()
	for !p.curTokenIs(lexer.RBRACE) {
		if p.curTokenIs(lexer.EOF) {
			p.errorAt(p.curToken, "expected \"}\" to close block opened at %d:%d", block.Line, block.Column)
			return nil
		}
		stmt := p.parseStatement()
		if stmt == nil {
			return nil
		}
		block.Statements = append(block.Statements, stmt)
		p.nextToken()
	}
	return block
}

// parseBody parses a statement slot. A nil block is returned as a nil
// interface so callers can test it directly.
func (p *Parser) parseBody() ast.Statement {
	if p.curTokenIs(lexer.LBRACE) {
		block := p.parseBlockStatement()
		if block == nil {
			return nil
		}
		return block
	}
	return p.parseStatement()
}

func (p *Parser) parseParenthesized() ast.Expression {
	if !p.expectPeek(lexer.LPAREN) {
		return nil
	}
	p.nextToken()
	expr := p.parseExpression(LOWEST)
	if expr == nil || !p.expectPeek(lexer.RPAREN) {
		return nil
	}
	return expr
}

func (p *Parser) parseIfStatement() ast.Statement {
	stmt := &ast.IfStatement{Loc: loc(p.curToken)}
	if stmt.Condition = p.parseParenthesized(); stmt.Condition == nil {
		return nil
	}
	p.nextToken()
	if stmt.Consequence = p.parseBody(); stmt.Consequence == nil {
		return nil
	}
	if p.peekTokenIs(lexer.ELSE) {
		p.nextToken()
		p.nextToken()
		if stmt.Alternative = p.parseBody(); stmt.Alternative == nil {
			return nil
		}
	}
	return stmt
}

func (p *Parser) parseWhileStatement() ast.Statement {
	stmt := &ast.WhileStatement{Loc: loc(p.curToken)}
	if stmt.Condition = p.parseParenthesized(); stmt.Condition == nil {
		return nil
	}
	p.nextToken()
	if stmt.Body = p.parseBody(); stmt.Body == nil {
		return nil
	}
	return stmt
}

func (p *Parser) parseDoWhileStatement() ast.Statement {
	stmt := &ast.DoWhileStatement{Loc: loc(p.curToken)}
	p.nextToken()
	if stmt.Body = p.parseBody(); stmt.Body == nil {
		return nil
	}
	if !p.expectPeek(lexer.WHILE) {
		return nil
	}
	if stmt.Condition = p.parseParenthesized(); stmt.Condition == nil {
		return nil
	}
	p.skipOptionalSemicolon()
	return stmt
}

func (p *Parser) parseForStatement() ast.Statement {
	forTok := p.curToken
	if !p.expectPeek(lexer.LPAREN) {
		return nil
	}
	p.nextToken()

	var init ast.Statement
	switch {
	case p.curTokenIs(lexer.SEMICOLON):
		init = &ast.EmptyStatement{Loc: loc(p.curToken)}
	case p.curTokenIs(lexer.LET), p.curTokenIs(lexer.CONST), p.curTokenIs(lexer.VAR):
		decl := &ast.LetStatement{Loc: loc(p.curToken), Kind: ast.DeclKind(p.curToken.Type)}
		if !p.expectPeek(lexer.IDENT) {
			return nil
		}
		if p.peekTokenIs(lexer.IN) || p.peekTokenIs(lexer.OF) {
			return p.parseForEach(forTok, decl.Kind)
		}
		if !p.parseDeclarators(decl) || !p.expectPeek(lexer.SEMICOLON) {
			return nil
		}
		init = decl
	case p.curTokenIs(lexer.IDENT) && (p.peekTokenIs(lexer.IN) || p.peekTokenIs(lexer.OF)):
		return p.parseForEach(forTok, "")
	default:
		stmt := &ast.ExpressionStatement{Loc: loc(p.curToken)}
		if stmt.Expression = p.parseExpression(LOWEST); stmt.Expression == nil {
			return nil
		}
		if !p.expectPeek(lexer.SEMICOLON) {
			return nil
		}
		init = stmt
	}

	stmt := &ast.ForStatement{Loc: loc(forTok), Init: init}
	if p.peekTokenIs(lexer.SEMICOLON) {
		stmt.Condition = &ast.EmptyExpression{Loc: loc(p.peekToken)}
	} else {
		p.nextToken()
		if stmt.Condition = p.parseExpression(LOWEST); stmt.Condition == nil {
			return nil
		}
	}
	if !p.expectPeek(lexer.SEMICOLON) {
		return nil
	}
	if p.peekTokenIs(lexer.RPAREN) {
		stmt.Update = &ast.EmptyExpression{Loc: loc(p.peekToken)}
	} else {
		p.nextToken()
		if stmt.Update = p.parseExpression(LOWEST); stmt.Update == nil {
			return nil
		}
	}
	if !p.expectPeek(lexer.RPAREN) {
		return nil
	}
	p.nextToken()
	if stmt.Body = p.parseBody(); stmt.Body == nil {
		return nil
	}
	return stmt
}

// parseForEach is entered on the loop variable with in/of as the peek token.
func (p *Parser) parseForEach(forTok lexer.Token, kind ast.DeclKind) ast.Statement {
	if !p.bindingName(p.curToken) {
		return nil
	}
	name := &ast.Identifier{Loc: loc(p.curToken), Name: p.curToken.Literal}
	p.nextToken()
	of := p.curTokenIs(lexer.OF)
	p.nextToken()
	right := p.parseExpression(LOWEST)
	if right == nil || !p.expectPeek(lexer.RPAREN) {
		return nil
	}
	p.nextToken()
	body := p.parseBody()
	if body == nil {
		return nil
	}
	if of {
		return &ast.ForOfStatement{Loc: loc(forTok), Kind: kind, Name: name, Right: right, Body: body}
	}
	return &ast.ForInStatement{Loc: loc(forTok), Kind: kind, Name: name, Right: right, Body: body}
}

func (p *Parser) parseReturnStatement() ast.Statement {
	stmt := &ast.ReturnStatement{Loc: loc(p.curToken)}
	if p.peekTokenIs(lexer.SEMICOLON) || p.peekTokenIs(lexer.RBRACE) || p.peekTokenIs(lexer.EOF) {
		p.skipOptionalSemicolon()
		return stmt
	}
	p.nextToken()
	if stmt.Value = p.parseExpression(LOWEST); stmt.Value == nil {
		return nil
	}
	p.skipOptionalSemicolon()
	return stmt
}

// parseSwitchStatement reports switch as unsupported and skips its body.
func (p *Parser) parseSwitchStatement() ast.Statement {
	p.addError(errs.Unimplemented(tokenPos(p.curToken), "switch statements are not supported"))
	depth := 0
	for !p.curTokenIs(lexer.EOF) {
		switch p.curToken.Type {
		case lexer.LBRACE:
			depth++
		case lexer.RBRACE:
			depth--
			if depth == 0 {
				return nil
			}
		}
		p.nextToken()
	}
	return nil
}

// ---- expressions ----

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return LOWEST
}

// parseExpression folds operators into left while they bind tighter than
// precedence, which keeps same-level operators left-associative.
func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.errorAt(p.curToken, "unexpected %s", describe(p.curToken))
		return nil
	}
	leftExp := prefix()
	for leftExp != nil && !p.peekTokenIs(lexer.SEMICOLON) && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return leftExp
		}
		p.nextToken()
		leftExp = infix(leftExp)
	}
	return leftExp
}

func (p *Parser) parseIllegal() ast.Expression {
	p.errorAt(p.curToken, "")
	return nil
}

func (p *Parser) parseIdentifier() ast.Expression {
	l := loc(p.curToken)
	switch p.curToken.Literal {
	case "true":
		return &ast.BooleanLiteral{Loc: l, Value: true}
	case "false":
		return &ast.BooleanLiteral{Loc: l, Value: false}
	case "null":
		return &ast.NullLiteral{Loc: l}
	case "undefined":
		return &ast.UndefinedLiteral{Loc: l}
	}
	return &ast.Identifier{Loc: l, Name: p.curToken.Literal}
}

// parseNumberLiteral applies the strict numeric grammar: at most one dot,
// never trailing, and integers must fit in int64.
func (p *Parser) parseNumberLiteral() ast.Expression {
	raw := p.curToken.Literal
	lit := &ast.NumberLiteral{Loc: loc(p.curToken), Raw: raw}
	switch dots := strings.Count(raw, "."); {
	case dots > 1:
		p.errorAt(p.curToken, "malformed number %q", raw)
		return nil
	case dots == 1 && strings.HasSuffix(raw, "."):
		p.errorAt(p.curToken, "malformed number %q: missing digits after '.'", raw)
		return nil
	case dots == 1:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			p.addError(errs.Syntax(tokenPos(p.curToken), "malformed number %q", raw).WithCause(err))
			return nil
		}
		lit.IsFloat = true
		lit.Float = f
	default:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			p.addError(errs.Syntax(tokenPos(p.curToken), "integer literal %s out of range", raw).WithCause(err))
			return nil
		}
		lit.Int = n
	}
	return lit
}

func (p *Parser) parseStringLiteral() ast.Expression {
	return &ast.StringLiteral{Loc: loc(p.curToken), Value: p.curToken.Literal}
}

// parseTemplateLiteral parses every ${...} source with a nested parser
// positioned at the fragment's original location.
func (p *Parser) parseTemplateLiteral() ast.Expression {
	tok := p.curToken
	lit := &ast.TemplateLiteral{Loc: loc(tok), Quasis: tok.Quasis}
	for _, src := range tok.Exprs {
		if strings.TrimSpace(src.Source) == "" {
			p.addError(errs.Syntax(errs.Position{Line: src.Line, Column: src.Column}, "empty expression in template literal"))
			return nil
		}
		sub := NewParser(lexer.NewLexerAt(src.Source, src.Line, src.Column))
		expr := sub.parseExpression(LOWEST)
		if expr != nil && !sub.peekTokenIs(lexer.EOF) {
			sub.errorAt(sub.peekToken, "unexpected %s in template expression", describe(sub.peekToken))
		}
		if len(sub.errors) > 0 {
			p.errors = append(p.errors, sub.errors...)
			return nil
		}
		lit.Expressions = append(lit.Expressions, expr)
	}
	return lit
}

func (p *Parser) parsePrefixExpression() ast.Expression {
	expr := &ast.PrefixExpression{Loc: loc(p.curToken), Operator: string(p.curToken.Type)}
	p.nextToken()
	if expr.Right = p.parseExpression(PREFIX); expr.Right == nil {
		return nil
	}
	if expr.Operator == "delete" {
		if _, ok := expr.Right.(*ast.MemberExpression); !ok {
			p.addError(errs.Syntax(expr.Right.Pos(), "delete expects a member expression, got %s", expr.Right.String()))
			return nil
		}
	}
	return expr
}

func (p *Parser) parsePrefixUpdate() ast.Expression {
	tok := p.curToken
	p.nextToken()
	operand := p.parseExpression(PREFIX)
	if operand == nil {
		return nil
	}
	ident, ok := operand.(*ast.Identifier)
	if !ok {
		p.addError(errs.Syntax(tokenPos(tok), "invalid operand for %s: %s", tok.Type, operand.String()))
		return nil
	}
	return &ast.UpdateExpression{
		Loc:      loc(tok),
		Target:   ident,
		Operator: string(tok.Type),
		Value:    &ast.EmptyExpression{Loc: loc(tok)},
		Prefix:   true,
	}
}

func (p *Parser) parsePostfixUpdate(left ast.Expression) ast.Expression {
	ident, ok := left.(*ast.Identifier)
	if !ok {
		p.errorAt(p.curToken, "invalid operand for %s: %s", p.curToken.Type, left.String())
		return nil
	}
	return &ast.UpdateExpression{
		Loc:      loc(p.curToken),
		Target:   ident,
		Operator: string(p.curToken.Type),
		Value:    &ast.EmptyExpression{Loc: loc(p.curToken)},
	}
}

func (p *Parser) parseInfixExpression(left ast.Expression) ast.Expression {
	expr := &ast.InfixExpression{Loc: loc(p.curToken), Left: left, Operator: string(p.curToken.Type)}
	precedence := p.curPrecedence()
	p.nextToken()
	if expr.Right = p.parseExpression(precedence); expr.Right == nil {
		return nil
	}
	return expr
}

// Assignments are right-associative, so the value is parsed one level
// below ASSIGNMENT.
func (p *Parser) parseAssignExpression(left ast.Expression) ast.Expression {
	tok := p.curToken
	switch left.(type) {
	case *ast.Identifier, *ast.MemberExpression:
	default:
		p.errorAt(tok, "invalid assignment target %s", left.String())
		return nil
	}
	p.nextToken()
	value := p.parseExpression(ASSIGNMENT - 1)
	if value == nil {
		return nil
	}
	return &ast.AssignExpression{Loc: loc(tok), Target: left, Value: value}
}

func (p *Parser) parseCompoundAssignment(left ast.Expression) ast.Expression {
	tok := p.curToken
	ident, ok := left.(*ast.Identifier)
	if !ok {
		p.errorAt(tok, "invalid target for %s: %s", tok.Type, left.String())
		return nil
	}
	p.nextToken()
	value := p.parseExpression(ASSIGNMENT - 1)
	if value == nil {
		return nil
	}
	return &ast.UpdateExpression{Loc: loc(tok), Target: ident, Operator: string(tok.Type), Value: value}
}

func (p *Parser) parseConditionalExpression(test ast.Expression) ast.Expression {
	expr := &ast.ConditionalExpression{Loc: loc(p.curToken), Test: test}
	p.nextToken()
	if expr.Consequent = p.parseExpression(LOWEST); expr.Consequent == nil {
		return nil
	}
	if !p.expectPeek(lexer.COLON) {
		return nil
	}
	p.nextToken()
	if expr.Alternate = p.parseExpression(ASSIGNMENT - 1); expr.Alternate == nil {
		return nil
	}
	return expr
}

func (p *Parser) parseGroupedExpression() ast.Expression {
	p.nextToken()
	exp := p.parseExpression(LOWEST)
	if exp == nil || !p.expectPeek(lexer.RPAREN) {
		return nil
	}
	return exp
}

func (p *Parser) parseArrayLiteral() ast.Expression {
	p.addError(errs.Unimplemented(tokenPos(p.curToken), "array literals are not supported"))
	return nil
}

func (p *Parser) parseObjectLiteral() ast.Expression {
	obj := &ast.ObjectLiteral{Loc: loc(p.curToken)}
	for !p.peekTokenIs(lexer.RBRACE) {
		p.nextToken()
		keyTok := p.curToken
		var key string
		switch {
		case keyTok.Type == lexer.IDENT, keyTok.Type.IsKeyword(), keyTok.Type == lexer.STRING, keyTok.Type == lexer.NUMBER:
			key = keyTok.Literal
		default:
			p.errorAt(keyTok, "unexpected %s in object literal", describe(keyTok))
			return nil
		}

		var value ast.Expression
		switch {
		case keyTok.Type == lexer.IDENT && (p.peekTokenIs(lexer.COMMA) || p.peekTokenIs(lexer.RBRACE)):
			value = &ast.Identifier{Loc: loc(keyTok), Name: key}
		case p.peekTokenIs(lexer.LPAREN):
			fn := &ast.FunctionLiteral{Loc: loc(keyTok), Name: key}
			p.nextToken()
			before := len(p.errors)
			if fn.Parameters = p.parseFunctionParameters(); len(p.errors) > before {
				return nil
			}
			if !p.expectPeek(lexer.LBRACE) {
				return nil
			}
			if fn.Body = p.parseBlockStatement(); fn.Body == nil {
				return nil
			}
			value = fn
		default:
			if !p.expectPeek(lexer.COLON) {
				return nil
			}
			p.nextToken()
			if value = p.parseExpression(LOWEST); value == nil {
				return nil
			}
		}
		obj.Properties = append(obj.Properties, ast.Property{Key: key, Value: value})

		if !p.peekTokenIs(lexer.RBRACE) && !p.expectPeek(lexer.COMMA) {
			return nil
		}
	}
	p.nextToken()
	return obj
}

func (p *Parser) parseFunctionLiteral() ast.Expression {
	fn := &ast.FunctionLiteral{Loc: loc(p.curToken)}
	if p.peekTokenIs(lexer.IDENT) {
		p.nextToken()
		if !p.bindingName(p.curToken) {
			return nil
		}
		fn.Name = p.curToken.Literal
	}
	if !p.expectPeek(lexer.LPAREN) {
		return nil
	}
	before := len(p.errors)
	fn.Parameters = p.parseFunctionParameters()
	if len(p.errors) > before {
		return nil
	}
	if !p.expectPeek(lexer.LBRACE) {
		return nil
	}
	if fn.Body = p.parseBlockStatement(); fn.Body == nil {
		return nil
	}
	return fn
}

// parseFunctionParameters starts on '(' and ends on ')'.
func (p *Parser) parseFunctionParameters() []*ast.Identifier {
	var params []*ast.Identifier
	if p.peekTokenIs(lexer.RPAREN) {
		p.nextToken()
		return params
	}
	for {
		if !p.expectPeek(lexer.IDENT) || !p.bindingName(p.curToken) {
			return nil
		}
		params = append(params, &ast.Identifier{Loc: loc(p.curToken), Name: p.curToken.Literal})
		if !p.peekTokenIs(lexer.COMMA) {
			break
		}
		p.nextToken()
	}
	if !p.expectPeek(lexer.RPAREN) {
		return nil
	}
	return params
}

func (p *Parser) parseCallExpression(function ast.Expression) ast.Expression {
	call := &ast.CallExpression{Loc: loc(p.curToken), Function: function}
	args, ok := p.parseExpressionList(lexer.RPAREN)
	if !ok {
		return nil
	}
	call.Arguments = args
	return call
}

func (p *Parser) parseExpressionList(end lexer.TokenType) ([]ast.Expression, bool) {
	var list []ast.Expression
	if p.peekTokenIs(end) {
		p.nextToken()
		return list, true
	}
	for {
		p.nextToken()
		expr := p.parseExpression(LOWEST)
		if expr == nil {
			return nil, false
		}
		list = append(list, expr)
		if !p.peekTokenIs(lexer.COMMA) {
			break
		}
		p.nextToken()
		if p.peekTokenIs(end) {
			break
		}
	}
	if !p.expectPeek(end) {
		return nil, false
	}
	return list, true
}

func (p *Parser) parseDotExpression(object ast.Expression) ast.Expression {
	dot := p.curToken
	p.nextToken()
	if p.curToken.Type != lexer.IDENT && !p.curToken.Type.IsKeyword() {
		p.errorAt(p.curToken, "expected property name after '.', got %s", describe(p.curToken))
		return nil
	}
	return &ast.MemberExpression{
		Loc:      loc(dot),
		Object:   object,
		Property: &ast.StringLiteral{Loc: loc(p.curToken), Value: p.curToken.Literal},
	}
}

func (p *Parser) parseIndexExpression(object ast.Expression) ast.Expression {
	expr := &ast.MemberExpression{Loc: loc(p.curToken), Object: object, Computed: true}
	p.nextToken()
	if expr.Property = p.parseExpression(LOWEST); expr.Property == nil {
		return nil
	}
	if !p.expectPeek(lexer.RBRACKET) {
		return nil
	}
	return expr
}
