// Package parser implements a recursive-descent parser for Python
// source text, producing an [ast.Module] from a token stream. Parsing
// is best-effort: a syntax error is recorded and the parser resumes at
// the next statement boundary rather than aborting, so one bad line
// never prevents the rest of a file from being indexed.
package parser

import (
	"fmt"
	"strings"

	"github.com/harrier-dev/harrier/ast"
	"github.com/harrier-dev/harrier/errors"
	"github.com/harrier-dev/harrier/scanner"
	"github.com/harrier-dev/harrier/token"
)

// Mode controls optional parser behavior.
type Mode uint

const (
	// ParseComments causes comments to be collected and attached to
	// the returned [ast.Module] instead of discarded.
	ParseComments Mode = 1 << iota
	// AllErrors causes every syntax error to be recorded instead of
	// stopping after a bound.
	AllErrors
)

const maxErrors = 10

type lookahead struct {
	valid bool
	pos   token.Pos
	tok   token.Token
	lit   string
}

type parser struct {
	file    *token.File
	scanner scanner.Scanner
	mode    Mode

	errors errors.List

	pos token.Pos
	tok token.Token
	lit string

	la lookahead

	comments []*ast.Comment
}

func (p *parser) init(file *token.File, src []byte, mode Mode) {
	p.file = file
	p.mode = mode
	p.scanner.Init(file, src, p.handleScanError, scanner.ScanComments)
	p.next()
}

func (p *parser) handleScanError(pos token.Position, msg string) {
	p.errors.AddNewf(p.file.Pos(pos.Offset), "%s", msg)
}

func (p *parser) rawNext() (token.Pos, token.Token, string) {
	for {
		pos, tok, lit := p.scanner.Scan()
		if tok == token.COMMENT {
			if p.mode&ParseComments != 0 {
				c := &ast.Comment{Text: strings.TrimPrefix(lit, "#")}
				c.From, c.To = pos, pos.Add(len(lit))
				p.comments = append(p.comments, c)
			}
			continue
		}
		return pos, tok, lit
	}
}

func (p *parser) next() {
	if p.la.valid {
		p.pos, p.tok, p.lit = p.la.pos, p.la.tok, p.la.lit
		p.la.valid = false
		return
	}
	p.pos, p.tok, p.lit = p.rawNext()
}

// peek returns the token after the current one without consuming it.
func (p *parser) peek() token.Token {
	if !p.la.valid {
		p.la.pos, p.la.tok, p.la.lit = p.rawNext()
		p.la.valid = true
	}
	return p.la.tok
}

func (p *parser) error(pos token.Pos, msg string) {
	if p.mode&AllErrors == 0 && len(p.errors) >= maxErrors {
		return
	}
	p.errors.AddNewf(pos, "%s", msg)
}

func (p *parser) errorf(pos token.Pos, format string, args ...interface{}) {
	p.error(pos, fmt.Sprintf(format, args...))
}

func (p *parser) expect(tok token.Token) token.Pos {
	pos := p.pos
	if p.tok != tok {
		p.errorf(p.pos, "expected %s, found %s", tok, p.tok)
	} else {
		p.next()
	}
	return pos
}

// atStmtEnd reports whether the current token ends a simple statement.
func (p *parser) atStmtEnd() bool {
	switch p.tok {
	case token.NEWLINE, token.SEMICOLON, token.EOF, token.DEDENT:
		return true
	}
	return false
}

// skipToLineEnd advances past tokens until it reaches a NEWLINE,
// DEDENT, or EOF: the statement-level error-recovery point.
func (p *parser) skipToLineEnd() {
	for p.tok != token.NEWLINE && p.tok != token.DEDENT && p.tok != token.EOF {
		p.next()
	}
	if p.tok == token.NEWLINE {
		p.next()
	}
}

// ParseFile parses a complete Python source file and returns the
// resulting [ast.Module] together with any syntax errors found. The
// returned Module is non-nil even when err is non-nil: the parser
// recovers at statement boundaries, so most of a file with a single
// bad line still parses.
func ParseFile(filename string, src []byte, mode Mode) (mod *ast.Module, err error) {
	return ParseFileWithTokenFile(token.NewFile(filename, src), src, mode)
}

// ParseFileWithTokenFile is like ParseFile but reuses an existing
// [token.File], as the source database does when re-parsing a file
// whose content hasn't changed revision.
func ParseFileWithTokenFile(file *token.File, src []byte, mode Mode) (mod *ast.Module, err error) {
	var p parser
	p.init(file, src, mode)

	start := p.pos
	var body []ast.Stmt
	for p.tok != token.EOF {
		if p.tok == token.NEWLINE {
			p.next()
			continue
		}
		p.parseStatement(&body)
	}

	m := &ast.Module{Body: body, Comments: p.comments}
	m.From, m.To = start, p.pos

	p.errors.Sort()
	return m, p.errors.Err()
}

// ParseExprString parses a standalone expression, the way a lint fix's
// replacement text or a format-spec sub-expression is parsed.
func ParseExprString(src string) (ast.Expr, error) {
	var p parser
	p.init(token.NewFile("", []byte(src)), []byte(src), 0)
	x := p.parseTestListStarExpr()
	p.errors.Sort()
	return x, p.errors.Err()
}

// ---------------------------------------------------------------------
// Statements

func (p *parser) parseStatement(body *[]ast.Stmt) {
	switch p.tok {
	case token.IF:
		*body = append(*body, p.parseIf())
	case token.WHILE:
		*body = append(*body, p.parseWhile())
	case token.FOR:
		*body = append(*body, p.parseFor(false))
	case token.TRY:
		*body = append(*body, p.parseTry())
	case token.WITH:
		*body = append(*body, p.parseWith(false))
	case token.DEF:
		*body = append(*body, p.parseFuncDef(nil, false))
	case token.CLASS:
		*body = append(*body, p.parseClassDef(nil))
	case token.AT:
		*body = append(*body, p.parseDecorated())
	case token.ASYNC:
		p.next()
		switch p.tok {
		case token.DEF:
			*body = append(*body, p.parseFuncDef(nil, true))
		case token.FOR:
			*body = append(*body, p.parseFor(true))
		case token.WITH:
			*body = append(*body, p.parseWith(true))
		default:
			p.errorf(p.pos, "expected 'def', 'for', or 'with' after 'async'")
			p.skipToLineEnd()
		}
	case token.IDENT:
		if p.lit == "match" && p.looksLikeMatchStmt() {
			*body = append(*body, p.parseMatch())
		} else {
			p.parseSimpleStmtLine(body)
		}
	case token.ILLEGAL:
		p.errorf(p.pos, "illegal token")
		p.skipToLineEnd()
	default:
		p.parseSimpleStmtLine(body)
	}
}

// looksLikeMatchStmt applies a one-token-lookahead heuristic to Python's
// soft `match` keyword: it is a match-statement only when the following
// token could begin a subject expression rather than continue `match`
// as an ordinary name (an assignment, call, or attribute access).
func (p *parser) looksLikeMatchStmt() bool {
	switch p.peek() {
	case token.ASSIGN, token.ADD_ASSIGN, token.SUB_ASSIGN, token.MUL_ASSIGN,
		token.QUO_ASSIGN, token.REM_ASSIGN, token.POW_ASSIGN, token.IDIV_ASSIGN,
		token.AMP_ASSIGN, token.VBAR_ASSIGN, token.CARET_ASSIGN,
		token.SHL_ASSIGN, token.SHR_ASSIGN, token.PERIOD, token.COMMA,
		token.COLON, token.NEWLINE, token.SEMICOLON, token.EOF:
		return false
	}
	return true
}

func (p *parser) parseBlock() []ast.Stmt {
	p.expect(token.COLON)
	var body []ast.Stmt
	if p.tok != token.NEWLINE {
		p.parseSimpleStmtLine(&body)
		return body
	}
	p.next()
	if !p.expectIndent() {
		return body
	}
	for p.tok != token.DEDENT && p.tok != token.EOF {
		p.parseStatement(&body)
	}
	if p.tok == token.DEDENT {
		p.next()
	}
	return body
}

func (p *parser) expectIndent() bool {
	if p.tok != token.INDENT {
		p.errorf(p.pos, "expected an indented block")
		return false
	}
	p.next()
	return true
}

func (p *parser) parseIf() ast.Stmt {
	pos := p.pos
	p.next()
	test := p.parseNamedTestNoAssign()
	body := p.parseBlock()
	var orelse []ast.Stmt
	switch p.tok {
	case token.ELIF:
		orelse = []ast.Stmt{p.parseIf()}
	case token.ELSE:
		p.next()
		orelse = p.parseBlock()
	}
	n := &ast.IfStmt{Test: test, Body: body, Orelse: orelse}
	n.From, n.To = pos, p.pos
	return n
}

// parseNamedTestNoAssign parses the header expression of a compound
// statement (if/while/for's iterable, etc.), which is a full test
// expression but never the bare `x = y` of an assignment statement.
func (p *parser) parseNamedTestNoAssign() ast.Expr {
	return p.parseNamedExpr()
}

func (p *parser) parseWhile() ast.Stmt {
	pos := p.pos
	p.next()
	test := p.parseNamedTestNoAssign()
	body := p.parseBlock()
	var orelse []ast.Stmt
	if p.tok == token.ELSE {
		p.next()
		orelse = p.parseBlock()
	}
	n := &ast.WhileStmt{Test: test, Body: body, Orelse: orelse}
	n.From, n.To = pos, p.pos
	return n
}

func (p *parser) parseFor(isAsync bool) ast.Stmt {
	pos := p.pos
	p.next()
	target := p.parseTargetList()
	p.expect(token.IN)
	iter := p.parseTestListStarExpr()
	body := p.parseBlock()
	var orelse []ast.Stmt
	if p.tok == token.ELSE {
		p.next()
		orelse = p.parseBlock()
	}
	n := &ast.ForStmt{Target: target, Iter: iter, Body: body, Orelse: orelse, IsAsync: isAsync}
	n.From, n.To = pos, p.pos
	return n
}

func (p *parser) parseWith(isAsync bool) ast.Stmt {
	pos := p.pos
	p.next()
	parenthesized := p.tok == token.LPAREN
	if parenthesized {
		p.next()
	}
	var items []*ast.WithItem
	for {
		items = append(items, p.parseWithItem())
		if p.tok != token.COMMA {
			break
		}
		p.next()
		if parenthesized && p.tok == token.RPAREN {
			break
		}
	}
	if parenthesized {
		p.expect(token.RPAREN)
	}
	body := p.parseBlock()
	n := &ast.WithStmt{Items: items, Body: body, IsAsync: isAsync}
	n.From, n.To = pos, p.pos
	return n
}

func (p *parser) parseWithItem() *ast.WithItem {
	pos := p.pos
	ctx := p.parseTest()
	var target ast.Expr
	if p.tok == token.AS {
		p.next()
		target = p.parseTarget()
	}
	n := &ast.WithItem{Context: ctx, Target: target}
	n.From, n.To = pos, p.pos
	return n
}

func (p *parser) parseTry() ast.Stmt {
	pos := p.pos
	p.next()
	body := p.parseBlock()
	var handlers []*ast.ExceptHandler
	for p.tok == token.EXCEPT {
		handlers = append(handlers, p.parseExceptHandler())
	}
	var orelse, final []ast.Stmt
	if p.tok == token.ELSE {
		p.next()
		orelse = p.parseBlock()
	}
	if p.tok == token.FINALLY {
		p.next()
		final = p.parseBlock()
	}
	n := &ast.TryStmt{Body: body, Handlers: handlers, Orelse: orelse, Final: final}
	n.From, n.To = pos, p.pos
	return n
}

func (p *parser) parseExceptHandler() *ast.ExceptHandler {
	pos := p.pos
	p.next()
	isStar := false
	if p.tok == token.MUL {
		isStar = true
		p.next()
	}
	var typ ast.Expr
	var name *ast.Ident
	if p.tok != token.COLON {
		typ = p.parseTest()
		if p.tok == token.AS {
			p.next()
			name = p.parseIdentExpr()
		}
	}
	body := p.parseBlock()
	n := &ast.ExceptHandler{Type: typ, Name: name, Body: body, IsStar: isStar}
	n.From, n.To = pos, p.pos
	return n
}

func (p *parser) parseDecorated() ast.Stmt {
	var decorators []ast.Expr
	for p.tok == token.AT {
		p.next()
		decorators = append(decorators, p.parseNamedExpr())
		if p.tok == token.NEWLINE {
			p.next()
		}
	}
	isAsync := false
	if p.tok == token.ASYNC {
		isAsync = true
		p.next()
	}
	switch p.tok {
	case token.DEF:
		return p.parseFuncDef(decorators, isAsync)
	case token.CLASS:
		return p.parseClassDef(decorators)
	default:
		p.errorf(p.pos, "expected 'def' or 'class' after decorator")
		bad := &ast.BadStmt{}
		bad.From, bad.To = p.pos, p.pos
		p.skipToLineEnd()
		return bad
	}
}

func (p *parser) parseFuncDef(decorators []ast.Expr, isAsync bool) ast.Stmt {
	pos := p.pos
	p.next()
	name := p.parseIdentExpr()
	typeParams := p.parseOptionalTypeParams()
	p.expect(token.LPAREN)
	params := p.parseParameters(token.RPAREN)
	p.expect(token.RPAREN)
	var returns ast.Expr
	if p.tok == token.ARROW {
		p.next()
		returns = p.parseTest()
	}
	body := p.parseBlock()
	n := &ast.FunctionDef{
		Name: name, Params: params, Returns: returns, Body: body,
		Decorators: decorators, IsAsync: isAsync, TypeParams: typeParams,
	}
	n.From, n.To = pos, p.pos
	return n
}

func (p *parser) parseOptionalTypeParams() []*ast.TypeParam {
	if p.tok != token.LBRACK {
		return nil
	}
	p.next()
	var params []*ast.TypeParam
	for p.tok != token.RBRACK && p.tok != token.EOF {
		pos := p.pos
		name := p.parseIdentExpr()
		var bound ast.Expr
		if p.tok == token.COLON {
			p.next()
			bound = p.parseTest()
		}
		tp := &ast.TypeParam{Name: name, Bound: bound}
		tp.From, tp.To = pos, p.pos
		params = append(params, tp)
		if p.tok != token.COMMA {
			break
		}
		p.next()
	}
	p.expect(token.RBRACK)
	return params
}

// parseParameters parses a function/lambda formal-parameter list up to
// (but not including) end.
func (p *parser) parseParameters(end token.Token) *ast.Parameters {
	params := &ast.Parameters{}
	seenStar := false
	var plain []*ast.Param
	for p.tok != end && p.tok != token.EOF {
		switch p.tok {
		case token.MUL:
			p.next()
			if p.tok == token.COMMA || p.tok == end {
				seenStar = true
			} else {
				params.VarArg = p.parseParam()
				seenStar = true
			}
		case token.POW:
			p.next()
			params.KwArg = p.parseParam()
		case token.QUO:
			p.next()
			params.PosOnly = append(params.PosOnly, plain...)
			plain = nil
		default:
			prm := p.parseParam()
			if seenStar {
				params.KwOnly = append(params.KwOnly, prm)
			} else {
				plain = append(plain, prm)
			}
		}
		if p.tok != token.COMMA {
			break
		}
		p.next()
	}
	params.Args = append(params.Args, plain...)
	return params
}

func (p *parser) parseParam() *ast.Param {
	pos := p.pos
	name := p.parseIdentExpr()
	var ann, def ast.Expr
	if p.tok == token.COLON {
		p.next()
		ann = p.parseTest()
	}
	if p.tok == token.ASSIGN {
		p.next()
		def = p.parseTest()
	}
	n := &ast.Param{Name: name, Annotation: ann, Default: def}
	n.From, n.To = pos, p.pos
	return n
}

func (p *parser) parseClassDef(decorators []ast.Expr) ast.Stmt {
	pos := p.pos
	p.next()
	name := p.parseIdentExpr()
	typeParams := p.parseOptionalTypeParams()
	var bases []ast.Expr
	var keywords []*ast.Keyword
	if p.tok == token.LPAREN {
		p.next()
		for p.tok != token.RPAREN && p.tok != token.EOF {
			v := p.parseNamedExpr()
			if id, ok := v.(*ast.Ident); ok && p.tok == token.ASSIGN {
				p.next()
				val := p.parseTest()
				keywords = append(keywords, &ast.Keyword{Name: id, Value: val})
			} else {
				bases = append(bases, v)
			}
			if p.tok != token.COMMA {
				break
			}
			p.next()
		}
		p.expect(token.RPAREN)
	}
	body := p.parseBlock()
	n := &ast.ClassDef{
		Name: name, Bases: bases, Keywords: keywords, Body: body,
		Decorators: decorators, TypeParams: typeParams,
	}
	n.From, n.To = pos, p.pos
	return n
}

func (p *parser) parseMatch() ast.Stmt {
	pos := p.pos
	p.next()
	subject := p.parseTestListStarExpr()
	p.expect(token.COLON)
	p.next() // NEWLINE
	p.expectIndent()
	var cases []*ast.MatchCase
	for p.tok == token.IDENT && p.lit == "case" {
		cases = append(cases, p.parseMatchCase())
	}
	if p.tok == token.DEDENT {
		p.next()
	}
	n := &ast.MatchStmt{Subject: subject, Cases: cases}
	n.From, n.To = pos, p.pos
	return n
}

func (p *parser) parseMatchCase() *ast.MatchCase {
	pos := p.pos
	p.next() // 'case'
	pat := p.parseOrPattern()
	var guard ast.Expr
	if p.tok == token.IF {
		p.next()
		guard = p.parseNamedTestNoAssign()
	}
	body := p.parseBlock()
	n := &ast.MatchCase{Pattern: pat, Guard: guard, Body: body}
	n.From, n.To = pos, p.pos
	return n
}

// ---------------------------------------------------------------------
// Simple statements

func (p *parser) parseSimpleStmtLine(body *[]ast.Stmt) {
	for {
		*body = append(*body, p.parseSimpleStmt())
		if p.tok == token.SEMICOLON {
			p.next()
			if p.atStmtEnd() {
				break
			}
			continue
		}
		break
	}
	switch p.tok {
	case token.NEWLINE:
		p.next()
	case token.EOF, token.DEDENT:
	default:
		p.errorf(p.pos, "expected end of statement, found %s", p.tok)
		p.skipToLineEnd()
	}
}

func (p *parser) parseSimpleStmt() ast.Stmt {
	pos := p.pos
	switch p.tok {
	case token.RETURN:
		p.next()
		var val ast.Expr
		if !p.atStmtEnd() {
			val = p.parseTestListStarExpr()
		}
		n := &ast.Return{Value: val}
		n.From, n.To = pos, p.pos
		return n
	case token.PASS:
		p.next()
		n := &ast.Pass{}
		n.From, n.To = pos, p.pos
		return n
	case token.BREAK:
		p.next()
		n := &ast.Break{}
		n.From, n.To = pos, p.pos
		return n
	case token.CONTINUE:
		p.next()
		n := &ast.Continue{}
		n.From, n.To = pos, p.pos
		return n
	case token.RAISE:
		p.next()
		var exc, cause ast.Expr
		if !p.atStmtEnd() {
			exc = p.parseTest()
			if p.tok == token.FROM {
				p.next()
				cause = p.parseTest()
			}
		}
		n := &ast.Raise{Exc: exc, Cause: cause}
		n.From, n.To = pos, p.pos
		return n
	case token.GLOBAL:
		p.next()
		n := &ast.Global{Names: p.parseIdentList()}
		n.From, n.To = pos, p.pos
		return n
	case token.NONLOCAL:
		p.next()
		n := &ast.Nonlocal{Names: p.parseIdentList()}
		n.From, n.To = pos, p.pos
		return n
	case token.DEL:
		p.next()
		n := &ast.Delete{Targets: p.parseTargetListElts()}
		n.From, n.To = pos, p.pos
		return n
	case token.ASSERT:
		p.next()
		test := p.parseTest()
		var msg ast.Expr
		if p.tok == token.COMMA {
			p.next()
			msg = p.parseTest()
		}
		n := &ast.Assert{Test: test, Msg: msg}
		n.From, n.To = pos, p.pos
		return n
	case token.IMPORT:
		return p.parseImport()
	case token.FROM:
		return p.parseImportFrom()
	default:
		return p.parseExprOrAssignStmt()
	}
}

func (p *parser) parseIdentList() []*ast.Ident {
	var names []*ast.Ident
	for {
		names = append(names, p.parseIdentExpr())
		if p.tok != token.COMMA {
			break
		}
		p.next()
	}
	return names
}

func (p *parser) parseImport() ast.Stmt {
	pos := p.pos
	p.next()
	var names []*ast.Alias
	for {
		names = append(names, p.parseDottedAlias())
		if p.tok != token.COMMA {
			break
		}
		p.next()
	}
	n := &ast.Import{Names: names}
	n.From, n.To = pos, p.pos
	return n
}

func (p *parser) parseDottedAlias() *ast.Alias {
	pos := p.pos
	name := p.parseDottedName()
	var asName *ast.Ident
	if p.tok == token.AS {
		p.next()
		asName = p.parseIdentExpr()
	}
	n := &ast.Alias{Name: name, AsName: asName}
	n.From, n.To = pos, p.pos
	return n
}

func (p *parser) parseDottedName() string {
	var b strings.Builder
	b.WriteString(p.expectIdentLit())
	for p.tok == token.PERIOD {
		p.next()
		b.WriteByte('.')
		b.WriteString(p.expectIdentLit())
	}
	return b.String()
}

func (p *parser) expectIdentLit() string {
	if p.tok != token.IDENT {
		p.errorf(p.pos, "expected identifier, found %s", p.tok)
		return ""
	}
	lit := p.lit
	p.next()
	return lit
}

func (p *parser) parseImportFrom() ast.Stmt {
	pos := p.pos
	p.next()
	level := 0
	for p.tok == token.PERIOD || p.tok == token.ELLIPSIS {
		if p.tok == token.ELLIPSIS {
			level += 3
		} else {
			level++
		}
		p.next()
	}
	module := ""
	if p.tok == token.IDENT {
		module = p.parseDottedName()
	}
	p.expect(token.IMPORT)

	var names []*ast.Alias
	star := false
	switch p.tok {
	case token.MUL:
		p.next()
		star = true
	case token.LPAREN:
		p.next()
		for p.tok != token.RPAREN && p.tok != token.EOF {
			names = append(names, p.parseSimpleAlias())
			if p.tok != token.COMMA {
				break
			}
			p.next()
		}
		p.expect(token.RPAREN)
	default:
		for {
			names = append(names, p.parseSimpleAlias())
			if p.tok != token.COMMA {
				break
			}
			p.next()
		}
	}
	n := &ast.ImportFrom{Module: module, Level: level, Names: names, Star: star}
	n.From, n.To = pos, p.pos
	return n
}

func (p *parser) parseSimpleAlias() *ast.Alias {
	pos := p.pos
	name := p.expectIdentLit()
	var asName *ast.Ident
	if p.tok == token.AS {
		p.next()
		asName = p.parseIdentExpr()
	}
	n := &ast.Alias{Name: name, AsName: asName}
	n.From, n.To = pos, p.pos
	return n
}

// parseExprOrAssignStmt parses an expression statement, assignment,
// augmented assignment, or annotated assignment: the grammar can't
// tell these apart until the first `=`/`op=`/`:` is seen after the
// leading expression.
func (p *parser) parseExprOrAssignStmt() ast.Stmt {
	pos := p.pos
	first := p.parseTestListStarExpr()

	if p.tok == token.COLON {
		p.next()
		ann := p.parseTest()
		var val ast.Expr
		if p.tok == token.ASSIGN {
			p.next()
			val = p.parseTestListStarExpr()
		}
		n := &ast.AnnAssign{Target: first, Annotation: ann, Value: val}
		n.From, n.To = pos, p.pos
		return n
	}

	if op, ok := augAssignOp(p.tok); ok {
		p.next()
		val := p.parseTestListStarExpr()
		n := &ast.AugAssign{Target: first, Op: op, Value: val}
		n.From, n.To = pos, p.pos
		return n
	}

	if p.tok == token.ASSIGN {
		targets := []ast.Expr{first}
		var value ast.Expr
		for p.tok == token.ASSIGN {
			p.next()
			value = p.parseTestListStarExpr()
			if p.tok == token.ASSIGN {
				targets = append(targets, value)
			}
		}
		n := &ast.Assign{Targets: targets, Value: value}
		n.From, n.To = pos, p.pos
		return n
	}

	n := &ast.ExprStmt{Value: first}
	n.From, n.To = pos, p.pos
	return n
}

func augAssignOp(tok token.Token) (ast.Operator, bool) {
	switch tok {
	case token.ADD_ASSIGN:
		return ast.Add, true
	case token.SUB_ASSIGN:
		return ast.Sub, true
	case token.MUL_ASSIGN:
		return ast.Mult, true
	case token.QUO_ASSIGN:
		return ast.Div, true
	case token.REM_ASSIGN:
		return ast.Mod, true
	case token.POW_ASSIGN:
		return ast.Pow, true
	case token.IDIV_ASSIGN:
		return ast.FloorDiv, true
	case token.AMP_ASSIGN:
		return ast.BitAnd, true
	case token.VBAR_ASSIGN:
		return ast.BitOr, true
	case token.CARET_ASSIGN:
		return ast.BitXor, true
	case token.SHL_ASSIGN:
		return ast.LShift, true
	case token.SHR_ASSIGN:
		return ast.RShift, true
	}
	return 0, false
}

// parseTargetList and parseTarget parse assignment-style targets
// (`for` loop variables, `with ... as` targets, `del` operands); they
// share the expression grammar since any [ast.IsPlace] expression, or
// a parenthesized/bracketed tuple of them, is a valid target.
func (p *parser) parseTarget() ast.Expr {
	return p.parseTrailerExpr()
}

func (p *parser) parseTargetList() ast.Expr {
	pos := p.pos
	first := p.parseTargetOrStarred()
	if p.tok != token.COMMA {
		return first
	}
	elts := []ast.Expr{first}
	for p.tok == token.COMMA {
		p.next()
		if p.tok == token.IN {
			break
		}
		elts = append(elts, p.parseTargetOrStarred())
	}
	n := &ast.TupleExpr{Elts: elts}
	n.From, n.To = pos, p.pos
	return n
}

func (p *parser) parseTargetOrStarred() ast.Expr {
	if p.tok == token.MUL {
		pos := p.pos
		p.next()
		v := p.parseTarget()
		n := &ast.Starred{Value: v}
		n.From, n.To = pos, p.pos
		return n
	}
	return p.parseTarget()
}

func (p *parser) parseTargetListElts() []ast.Expr {
	var elts []ast.Expr
	for {
		elts = append(elts, p.parseTarget())
		if p.tok != token.COMMA {
			break
		}
		p.next()
	}
	return elts
}

// ---------------------------------------------------------------------
// Expressions

// parseTestListStarExpr parses a comma-separated list of tests (each
// possibly starred), collapsing to a single expression when there is
// no trailing/embedded comma, and to a TupleExpr otherwise.
func (p *parser) parseTestListStarExpr() ast.Expr {
	pos := p.pos
	first := p.parseTestOrStarred()
	if p.tok != token.COMMA {
		return first
	}
	elts := []ast.Expr{first}
	trailing := false
	for p.tok == token.COMMA {
		p.next()
		trailing = true
		if p.atExprListEnd() {
			break
		}
		elts = append(elts, p.parseTestOrStarred())
		trailing = false
	}
	_ = trailing
	n := &ast.TupleExpr{Elts: elts}
	n.From, n.To = pos, p.pos
	return n
}

func (p *parser) atExprListEnd() bool {
	switch p.tok {
	case token.NEWLINE, token.SEMICOLON, token.EOF, token.DEDENT,
		token.RPAREN, token.RBRACK, token.RBRACE, token.COLON,
		token.ASSIGN, token.IN:
		return true
	}
	return false
}

func (p *parser) parseTestOrStarred() ast.Expr {
	if p.tok == token.MUL {
		pos := p.pos
		p.next()
		v := p.parseOrTest()
		n := &ast.Starred{Value: v}
		n.From, n.To = pos, p.pos
		return n
	}
	return p.parseNamedExpr()
}

// parseNamedExpr parses a test, allowing a walrus assignment
// (`target := value`) at the top.
func (p *parser) parseNamedExpr() ast.Expr {
	pos := p.pos
	x := p.parseTest()
	if p.tok == token.WALRUS {
		id, ok := x.(*ast.Ident)
		if !ok {
			p.errorf(pos, "walrus target must be a name")
			id = ast.NewIdent("?")
		}
		p.next()
		val := p.parseTest()
		n := &ast.NamedExpr{Target: id, Value: val}
		n.From, n.To = pos, p.pos
		return n
	}
	return x
}

func (p *parser) parseTest() ast.Expr {
	if p.tok == token.LAMBDA {
		return p.parseLambda()
	}
	pos := p.pos
	x := p.parseOrTest()
	if p.tok == token.IF {
		p.next()
		test := p.parseOrTest()
		p.expect(token.ELSE)
		orelse := p.parseTest()
		n := &ast.IfExp{Test: test, Body: x, Orelse: orelse}
		n.From, n.To = pos, p.pos
		return n
	}
	return x
}

func (p *parser) parseLambda() ast.Expr {
	pos := p.pos
	p.next()
	params := p.parseParameters(token.COLON)
	p.expect(token.COLON)
	body := p.parseTest()
	n := &ast.Lambda{Params: params, Body: body}
	n.From, n.To = pos, p.pos
	return n
}

func (p *parser) parseOrTest() ast.Expr {
	pos := p.pos
	x := p.parseAndTest()
	if p.tok != token.OR {
		return x
	}
	values := []ast.Expr{x}
	for p.tok == token.OR {
		p.next()
		values = append(values, p.parseAndTest())
	}
	n := &ast.BoolOp{Op: ast.Or, Values: values}
	n.From, n.To = pos, p.pos
	return n
}

func (p *parser) parseAndTest() ast.Expr {
	pos := p.pos
	x := p.parseNotTest()
	if p.tok != token.AND {
		return x
	}
	values := []ast.Expr{x}
	for p.tok == token.AND {
		p.next()
		values = append(values, p.parseNotTest())
	}
	n := &ast.BoolOp{Op: ast.And, Values: values}
	n.From, n.To = pos, p.pos
	return n
}

func (p *parser) parseNotTest() ast.Expr {
	if p.tok == token.NOT {
		pos := p.pos
		p.next()
		x := p.parseNotTest()
		n := &ast.UnaryExpr{Op: ast.Not, Operand: x}
		n.From, n.To = pos, p.pos
		return n
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() ast.Expr {
	pos := p.pos
	x := p.parseBinary(5)
	var ops []ast.Operator
	var comparators []ast.Expr
	for {
		op, ok := p.compareOp()
		if !ok {
			break
		}
		comparators = append(comparators, p.parseBinary(5))
		ops = append(ops, op)
	}
	if len(ops) == 0 {
		return x
	}
	n := &ast.Compare{Left: x, Ops: ops, Comparators: comparators}
	n.From, n.To = pos, p.pos
	return n
}

func (p *parser) compareOp() (ast.Operator, bool) {
	switch p.tok {
	case token.LSS:
		p.next()
		return ast.Lt, true
	case token.LEQ:
		p.next()
		return ast.LtE, true
	case token.GTR:
		p.next()
		return ast.Gt, true
	case token.GEQ:
		p.next()
		return ast.GtE, true
	case token.EQL:
		p.next()
		return ast.Eq, true
	case token.NEQ:
		p.next()
		return ast.NotEq, true
	case token.IN:
		p.next()
		return ast.In, true
	case token.IS:
		p.next()
		if p.tok == token.NOT {
			p.next()
			return ast.IsNot, true
		}
		return ast.Is, true
	case token.NOT:
		if p.peek() == token.IN {
			p.next()
			p.next()
			return ast.NotIn, true
		}
	}
	return 0, false
}

// binary operator precedence levels 5 (|) through 10 (* / // % @),
// mirroring [token.Token.Precedence].
func (p *parser) parseBinary(prec1 int) ast.Expr {
	x := p.parseUnary()
	for {
		op, prec := binOpInfo(p.tok)
		if prec < prec1 {
			return x
		}
		p.next()
		y := p.parseBinary(prec + 1)
		n := &ast.BinaryExpr{X: x, Y: y, Op: op}
		n.From, n.To = x.Pos(), y.End()
		x = n
	}
}

func binOpInfo(tok token.Token) (ast.Operator, int) {
	switch tok {
	case token.VBAR:
		return ast.BitOr, 5
	case token.CARET:
		return ast.BitXor, 6
	case token.AMP:
		return ast.BitAnd, 7
	case token.SHL:
		return ast.LShift, 8
	case token.SHR:
		return ast.RShift, 8
	case token.ADD:
		return ast.Add, 9
	case token.SUB:
		return ast.Sub, 9
	case token.MUL:
		return ast.Mult, 10
	case token.AT:
		return ast.MatMult, 10
	case token.QUO:
		return ast.Div, 10
	case token.IDIV:
		return ast.FloorDiv, 10
	case token.REM:
		return ast.Mod, 10
	}
	return 0, -1
}

func (p *parser) parseUnary() ast.Expr {
	pos := p.pos
	switch p.tok {
	case token.ADD:
		p.next()
		x := p.parseUnary()
		n := &ast.UnaryExpr{Op: ast.UAdd, Operand: x}
		n.From, n.To = pos, p.pos
		return n
	case token.SUB:
		p.next()
		x := p.parseUnary()
		n := &ast.UnaryExpr{Op: ast.USub, Operand: x}
		n.From, n.To = pos, p.pos
		return n
	case token.TILDE:
		p.next()
		x := p.parseUnary()
		n := &ast.UnaryExpr{Op: ast.Invert, Operand: x}
		n.From, n.To = pos, p.pos
		return n
	}
	return p.parsePower()
}

func (p *parser) parsePower() ast.Expr {
	pos := p.pos
	x := p.parseAwaitOrTrailer()
	if p.tok == token.POW {
		p.next()
		y := p.parseUnary()
		n := &ast.BinaryExpr{X: x, Y: y, Op: ast.Pow}
		n.From, n.To = pos, p.pos
		return n
	}
	return x
}

func (p *parser) parseAwaitOrTrailer() ast.Expr {
	if p.tok == token.AWAIT {
		pos := p.pos
		p.next()
		x := p.parseTrailerExpr()
		n := &ast.Await{Value: x}
		n.From, n.To = pos, p.pos
		return n
	}
	return p.parseTrailerExpr()
}

func (p *parser) parseTrailerExpr() ast.Expr {
	pos := p.pos
	x := p.parseAtom()
	for {
		switch p.tok {
		case token.PERIOD:
			p.next()
			attr := p.parseIdentExpr()
			n := &ast.Attribute{Value: x, Attr: attr}
			n.From, n.To = pos, p.pos
			x = n
		case token.LPAREN:
			x = p.parseCall(x, pos)
		case token.LBRACK:
			x = p.parseSubscript(x, pos)
		default:
			return x
		}
	}
}

func (p *parser) parseCall(fun ast.Expr, startPos token.Pos) ast.Expr {
	p.next()
	var args []ast.Expr
	var keywords []*ast.Keyword
	for p.tok != token.RPAREN && p.tok != token.EOF {
		switch p.tok {
		case token.MUL:
			spos := p.pos
			p.next()
			v := p.parseTest()
			n := &ast.Starred{Value: v}
			n.From, n.To = spos, p.pos
			args = append(args, n)
		case token.POW:
			p.next()
			v := p.parseTest()
			keywords = append(keywords, &ast.Keyword{Value: v})
		default:
			v := p.parseNamedExpr()
			if id, ok := v.(*ast.Ident); ok && p.tok == token.ASSIGN {
				p.next()
				val := p.parseTest()
				keywords = append(keywords, &ast.Keyword{Name: id, Value: val})
			} else if p.tok == token.FOR || p.tok == token.ASYNC {
				gens := p.parseComprehensionClauses()
				g := &ast.GeneratorExp{Elt: v, Gens: gens}
				g.From, g.To = v.Pos(), p.pos
				args = append(args, g)
			} else {
				args = append(args, v)
			}
		}
		if p.tok != token.COMMA {
			break
		}
		p.next()
	}
	p.expect(token.RPAREN)
	n := &ast.CallExpr{Fun: fun, Args: args, Keywords: keywords}
	n.From, n.To = startPos, p.pos
	return n
}

func (p *parser) parseSubscript(x ast.Expr, startPos token.Pos) ast.Expr {
	p.next()
	idx := p.parseSubscriptItem()
	if p.tok == token.COMMA {
		pos := idx.Pos()
		elts := []ast.Expr{idx}
		for p.tok == token.COMMA {
			p.next()
			if p.tok == token.RBRACK {
				break
			}
			elts = append(elts, p.parseSubscriptItem())
		}
		t := &ast.TupleExpr{Elts: elts}
		t.From, t.To = pos, p.pos
		idx = t
	}
	p.expect(token.RBRACK)
	n := &ast.Subscript{Value: x, Index: idx}
	n.From, n.To = startPos, p.pos
	return n
}

func (p *parser) parseSubscriptItem() ast.Expr {
	pos := p.pos
	var lower, upper, step ast.Expr
	if p.tok != token.COLON {
		lower = p.parseTest()
	}
	if p.tok != token.COLON {
		return lower
	}
	p.next()
	if p.tok != token.COLON && p.tok != token.RBRACK && p.tok != token.COMMA {
		upper = p.parseTest()
	}
	if p.tok == token.COLON {
		p.next()
		if p.tok != token.RBRACK && p.tok != token.COMMA {
			step = p.parseTest()
		}
	}
	n := &ast.Slice{Lower: lower, Upper: upper, Step: step}
	n.From, n.To = pos, p.pos
	return n
}

func (p *parser) parseIdentExpr() *ast.Ident {
	pos := p.pos
	lit := p.lit
	if p.tok != token.IDENT {
		p.errorf(p.pos, "expected identifier, found %s", p.tok)
		lit = "_"
	} else {
		p.next()
	}
	n := &ast.Ident{Name: lit}
	n.From, n.To = pos, pos.Add(len(lit))
	return n
}

func (p *parser) parseAtom() ast.Expr {
	pos := p.pos
	switch p.tok {
	case token.IDENT:
		lit := p.lit
		p.next()
		n := &ast.Ident{Name: lit}
		n.From, n.To = pos, pos.Add(len(lit))
		return n
	case token.INT:
		return p.basicLit(ast.IntLit)
	case token.FLOAT:
		return p.basicLit(ast.FloatLit)
	case token.STRING:
		return p.parseStringLiteral()
	case token.TRUE, token.FALSE:
		return p.basicLit(ast.BoolLit)
	case token.NONE:
		return p.basicLit(ast.NoneLit)
	case token.ELLIPSIS:
		return p.basicLit(ast.EllipsisLit)
	case token.LPAREN:
		return p.parseParenOrTupleOrGenExp()
	case token.LBRACK:
		return p.parseListOrListComp()
	case token.LBRACE:
		return p.parseSetOrDictOrComp()
	case token.YIELD:
		return p.parseYield()
	}
	p.errorf(pos, "expected expression, found %s", p.tok)
	p.next()
	n := &ast.BadExpr{}
	n.From, n.To = pos, p.pos
	return n
}

func (p *parser) basicLit(kind ast.LitKind) ast.Expr {
	pos := p.pos
	lit := p.lit
	p.next()
	n := &ast.BasicLit{Kind: kind, Value: lit}
	n.From, n.To = pos, pos.Add(len(lit))
	return n
}

func hasPrefixLetter(lit string, ch byte) bool {
	for i := 0; i < len(lit) && (lit[i] == '"' || lit[i] == '\'') == false; i++ {
		if lit[i]|0x20 == ch {
			return true
		}
	}
	return false
}

func (p *parser) parseStringLiteral() ast.Expr {
	pos := p.pos
	var parts []string
	isF, isBytes := false, false
	for p.tok == token.STRING {
		lit := p.lit
		if hasPrefixLetter(lit, 'f') {
			isF = true
		}
		if hasPrefixLetter(lit, 'b') {
			isBytes = true
		}
		parts = append(parts, lit)
		p.next()
	}
	joined := strings.Join(parts, " ")
	end := pos.Add(len(joined))
	if isF {
		return p.buildJoinedStr(pos, end, joined)
	}
	kind := ast.StringLit
	if isBytes {
		kind = ast.BytesLit
	}
	n := &ast.BasicLit{Kind: kind, Value: joined}
	n.From, n.To = pos, end
	return n
}

// buildJoinedStr splits an f-string's raw text into literal and
// `{expr}` pieces. Nested braces and format specs are not modeled
// precisely; each `{...}` run (first matching `}`) is parsed as a
// standalone expression, which covers the common case.
func (p *parser) buildJoinedStr(pos, end token.Pos, raw string) ast.Expr {
	var values []ast.Expr
	i := 0
	cur := pos
	lastLit := 0
	flush := func(upto int) {
		if upto > lastLit {
			text := raw[lastLit:upto]
			lit := &ast.BasicLit{Kind: ast.StringLit, Value: text}
			lit.From, lit.To = cur, cur.Add(len(text))
			values = append(values, lit)
			cur = lit.To
		}
	}
	for i < len(raw) {
		if raw[i] == '{' && i+1 < len(raw) && raw[i+1] == '{' {
			i += 2
			continue
		}
		if raw[i] == '{' {
			flush(i)
			start := i + 1
			depth := 1
			j := start
			for j < len(raw) && depth > 0 {
				switch raw[j] {
				case '{':
					depth++
				case '}':
					depth--
				}
				if depth == 0 {
					break
				}
				j++
			}
			inner := raw[start:j]
			conv := byte(0)
			spec := inner
			if k := strings.LastIndex(inner, "!"); k >= 0 && k == len(inner)-2 {
				conv = inner[k+1]
				spec = inner[:k]
			}
			exprText := spec
			if k := strings.Index(spec, ":"); k >= 0 {
				exprText = spec[:k]
			}
			x, _ := ParseExprString(exprText)
			if x == nil {
				x = ast.NewIdent(exprText)
			}
			fv := &ast.FormattedValue{Value: x, Conversion: conv}
			fv.From, fv.To = cur, cur.Add(j-start+2)
			values = append(values, fv)
			cur = fv.To
			i = j + 1
			lastLit = i
			continue
		}
		i++
	}
	flush(len(raw))
	n := &ast.JoinedStr{Values: values}
	n.From, n.To = pos, end
	return n
}

func (p *parser) parseYield() ast.Expr {
	pos := p.pos
	p.next()
	if p.tok == token.FROM {
		p.next()
		v := p.parseTest()
		n := &ast.YieldFrom{Value: v}
		n.From, n.To = pos, p.pos
		return n
	}
	var v ast.Expr
	if !p.atStmtEnd() && p.tok != token.RPAREN {
		v = p.parseTestListStarExpr()
	}
	n := &ast.Yield{Value: v}
	n.From, n.To = pos, p.pos
	return n
}

func (p *parser) parseParenOrTupleOrGenExp() ast.Expr {
	pos := p.pos
	p.next()
	if p.tok == token.RPAREN {
		p.next()
		n := &ast.TupleExpr{}
		n.From, n.To = pos, p.pos
		return n
	}
	first := p.parseTestOrStarred()
	if p.tok == token.FOR || p.tok == token.ASYNC {
		gens := p.parseComprehensionClauses()
		p.expect(token.RPAREN)
		n := &ast.GeneratorExp{Elt: first, Gens: gens}
		n.From, n.To = pos, p.pos
		return n
	}
	if p.tok != token.COMMA {
		p.expect(token.RPAREN)
		n := &ast.ParenExpr{X: first}
		n.From, n.To = pos, p.pos
		return n
	}
	elts := []ast.Expr{first}
	for p.tok == token.COMMA {
		p.next()
		if p.tok == token.RPAREN {
			break
		}
		elts = append(elts, p.parseTestOrStarred())
	}
	p.expect(token.RPAREN)
	n := &ast.TupleExpr{Elts: elts}
	n.From, n.To = pos, p.pos
	return n
}

func (p *parser) parseListOrListComp() ast.Expr {
	pos := p.pos
	p.next()
	if p.tok == token.RBRACK {
		p.next()
		n := &ast.ListExpr{}
		n.From, n.To = pos, p.pos
		return n
	}
	first := p.parseTestOrStarred()
	if p.tok == token.FOR || p.tok == token.ASYNC {
		gens := p.parseComprehensionClauses()
		p.expect(token.RBRACK)
		n := &ast.ListComp{Elt: first, Gens: gens}
		n.From, n.To = pos, p.pos
		return n
	}
	elts := []ast.Expr{first}
	for p.tok == token.COMMA {
		p.next()
		if p.tok == token.RBRACK {
			break
		}
		elts = append(elts, p.parseTestOrStarred())
	}
	p.expect(token.RBRACK)
	n := &ast.ListExpr{Elts: elts}
	n.From, n.To = pos, p.pos
	return n
}

func (p *parser) parseSetOrDictOrComp() ast.Expr {
	pos := p.pos
	p.next()
	if p.tok == token.RBRACE {
		p.next()
		n := &ast.DictExpr{}
		n.From, n.To = pos, p.pos
		return n
	}
	if p.tok == token.POW {
		p.next()
		v := p.parseOrTest()
		entries := []ast.DictEntry{{Value: v}}
		for p.tok == token.COMMA {
			p.next()
			if p.tok == token.RBRACE {
				break
			}
			entries = append(entries, p.parseDictEntry())
		}
		p.expect(token.RBRACE)
		n := &ast.DictExpr{Entries: entries}
		n.From, n.To = pos, p.pos
		return n
	}

	first := p.parseTestOrStarred()
	if p.tok == token.COLON {
		p.next()
		val := p.parseTest()
		if p.tok == token.FOR || p.tok == token.ASYNC {
			gens := p.parseComprehensionClauses()
			p.expect(token.RBRACE)
			n := &ast.DictComp{Key: first, Value: val, Gens: gens}
			n.From, n.To = pos, p.pos
			return n
		}
		entries := []ast.DictEntry{{Key: first, Value: val}}
		for p.tok == token.COMMA {
			p.next()
			if p.tok == token.RBRACE {
				break
			}
			entries = append(entries, p.parseDictEntry())
		}
		p.expect(token.RBRACE)
		n := &ast.DictExpr{Entries: entries}
		n.From, n.To = pos, p.pos
		return n
	}

	if p.tok == token.FOR || p.tok == token.ASYNC {
		gens := p.parseComprehensionClauses()
		p.expect(token.RBRACE)
		n := &ast.SetComp{Elt: first, Gens: gens}
		n.From, n.To = pos, p.pos
		return n
	}

	elts := []ast.Expr{first}
	for p.tok == token.COMMA {
		p.next()
		if p.tok == token.RBRACE {
			break
		}
		elts = append(elts, p.parseTestOrStarred())
	}
	p.expect(token.RBRACE)
	n := &ast.SetExpr{Elts: elts}
	n.From, n.To = pos, p.pos
	return n
}

func (p *parser) parseDictEntry() ast.DictEntry {
	if p.tok == token.POW {
		p.next()
		return ast.DictEntry{Value: p.parseOrTest()}
	}
	key := p.parseTest()
	p.expect(token.COLON)
	val := p.parseTest()
	return ast.DictEntry{Key: key, Value: val}
}

func (p *parser) parseComprehensionClauses() []*ast.Comprehension {
	var gens []*ast.Comprehension
	for p.tok == token.FOR || p.tok == token.ASYNC {
		pos := p.pos
		isAsync := false
		if p.tok == token.ASYNC {
			isAsync = true
			p.next()
		}
		p.expect(token.FOR)
		target := p.parseTargetList()
		p.expect(token.IN)
		iter := p.parseOrTest()
		var ifs []ast.Expr
		for p.tok == token.IF {
			p.next()
			ifs = append(ifs, p.parseOrTest())
		}
		c := &ast.Comprehension{Target: target, Iter: iter, Ifs: ifs, IsAsync: isAsync}
		_ = pos
		gens = append(gens, c)
	}
	return gens
}

// ---------------------------------------------------------------------
// Match patterns

func (p *parser) parseOrPattern() ast.Pattern {
	pos := p.pos
	first := p.parseClosedPattern()
	if p.tok != token.VBAR {
		return first
	}
	alts := []ast.Pattern{first}
	for p.tok == token.VBAR {
		p.next()
		alts = append(alts, p.parseClosedPattern())
	}
	n := &ast.OrPattern{Alternatives: alts}
	n.From, n.To = pos, p.pos
	var pat ast.Pattern = n
	if p.tok == token.AS {
		p.next()
		name := p.parseIdentExpr()
		as := &ast.AsPattern{Pattern: pat, Name: name}
		as.From, as.To = pos, p.pos
		return as
	}
	return pat
}

func (p *parser) parseClosedPattern() ast.Pattern {
	pos := p.pos
	switch p.tok {
	case token.IDENT:
		if p.lit == "_" {
			p.next()
			n := &ast.CapturePattern{}
			n.From, n.To = pos, p.pos
			return n
		}
		name := p.parseIdentExpr()
		var base ast.Expr = name
		for p.tok == token.PERIOD {
			p.next()
			attr := p.parseIdentExpr()
			a := &ast.Attribute{Value: base, Attr: attr}
			a.From, a.To = pos, p.pos
			base = a
		}
		if p.tok == token.LPAREN {
			return p.parseClassPattern(base, pos)
		}
		if _, ok := base.(*ast.Ident); ok && p.tok != token.PERIOD {
			n := &ast.CapturePattern{Name: base.(*ast.Ident)}
			n.From, n.To = pos, p.pos
			return n
		}
		n := &ast.ValuePattern{Value: base}
		n.From, n.To = pos, p.pos
		return n
	case token.LBRACK, token.LPAREN:
		closeTok := token.RBRACK
		if p.tok == token.LPAREN {
			closeTok = token.RPAREN
		}
		p.next()
		var elts []ast.Pattern
		for p.tok != closeTok && p.tok != token.EOF {
			elts = append(elts, p.parseOrPattern())
			if p.tok != token.COMMA {
				break
			}
			p.next()
		}
		p.expect(closeTok)
		n := &ast.SequencePattern{Elts: elts}
		n.From, n.To = pos, p.pos
		return n
	case token.LBRACE:
		p.next()
		var entries []ast.MappingEntry
		var rest *ast.Ident
		for p.tok != token.RBRACE && p.tok != token.EOF {
			if p.tok == token.POW {
				p.next()
				rest = p.parseIdentExpr()
			} else {
				key := p.parseTest()
				p.expect(token.COLON)
				val := p.parseOrPattern()
				entries = append(entries, ast.MappingEntry{Key: key, Pattern: val})
			}
			if p.tok != token.COMMA {
				break
			}
			p.next()
		}
		p.expect(token.RBRACE)
		n := &ast.MappingPattern{Entries: entries, Rest: rest}
		n.From, n.To = pos, p.pos
		return n
	default:
		v := p.parseOrTest()
		n := &ast.ValuePattern{Value: v}
		n.From, n.To = pos, p.pos
		return n
	}
}

func (p *parser) parseClassPattern(callee ast.Expr, pos token.Pos) ast.Pattern {
	p.next() // (
	var positional []ast.Pattern
	var keyword []ast.ClassPatternKeyword
	for p.tok != token.RPAREN && p.tok != token.EOF {
		if p.tok == token.IDENT && p.peek() == token.ASSIGN {
			name := p.parseIdentExpr()
			p.next() // =
			val := p.parseOrPattern()
			keyword = append(keyword, ast.ClassPatternKeyword{Name: name, Pattern: val})
		} else {
			positional = append(positional, p.parseOrPattern())
		}
		if p.tok != token.COMMA {
			break
		}
		p.next()
	}
	p.expect(token.RPAREN)
	n := &ast.ClassPattern{Callee: callee, Positional: positional, Keyword: keyword}
	n.From, n.To = pos, p.pos
	return n
}
