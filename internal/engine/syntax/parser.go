package syntax

import (
	"fmt"
	"sort"
)

// Parser is a recursive descent parser for AWK. It never gives up: errors
// are recorded and the parser resynchronises at the next statement
// boundary, so callers always get a tree.
type Parser struct {
	lexer     *Lexer
	buf       []Token
	lastEnd   int
	lastType  TokenType
	consumed  int
	noGreater bool
	errors    []Error
}

func NewParser(input string) *Parser {
	return &Parser{lexer: NewLexer(input)}
}

// Parse parses source into a File. Syntax errors are reported in
// File.Errors rather than returned.
func Parse(path, source string) *File {
	p := NewParser(source)
	root := p.parseFile(len(source))
	f := NewFile(path, source, root)
	f.Errors = p.errors
	return f
}

// NewFile attaches root to a new File and indexes its identifiers.
func NewFile(path, source string, root *Node) *File {
	f := &File{Path: path, Source: source, Root: root}
	if root == nil {
		return f
	}
	root.file = f
	Walk(root, func(n *Node) bool {
		if n.Kind == KindIdentifier {
			f.identifiers = append(f.identifiers, n)
		}
		return true
	})
	sort.SliceStable(f.identifiers, func(i, j int) bool {
		return f.identifiers[i].Span.Start < f.identifiers[j].Span.Start
	})
	return f
}

func (p *Parser) addError(tok Token, msg string) {
	p.errors = append(p.errors, Error{Pos: tok.Position, Message: msg})
}

func (p *Parser) next() Token {
	var t Token
	if len(p.buf) > 0 {
		t = p.buf[0]
		p.buf = p.buf[1:]
	} else {
		t = p.lexer.NextToken()
	}
	if t.Type != TokenEOF {
		p.lastEnd = t.End
		p.lastType = t.Type
		p.consumed++
	}
	return t
}

func (p *Parser) peek() Token {
	return p.peekN(0)
}

func (p *Parser) peekN(n int) Token {
	for len(p.buf) <= n {
		p.buf = append(p.buf, p.lexer.NextToken())
	}
	return p.buf[n]
}

func (p *Parser) at(t TokenType) bool {
	return p.peek().Type == t
}

func (p *Parser) atKeyword(words ...string) bool {
	tok := p.peek()
	if tok.Type != TokenKeyword {
		return false
	}
	for _, w := range words {
		if tok.Value == w {
			return true
		}
	}
	return false
}

func (p *Parser) expect(t TokenType, what string) bool {
	if p.at(t) {
		p.next()
		return true
	}
	tok := p.peek()
	p.addError(tok, fmt.Sprintf("expected %s, found %q", what, tok.Value))
	return false
}

func (p *Parser) optNewlines() {
	for p.at(TokenNewline) {
		p.next()
	}
}

func (p *Parser) skipTerminators() {
	for p.at(TokenNewline) || p.at(TokenSemicolon) {
		p.next()
	}
}

func (p *Parser) atTerminator() bool {
	switch p.peek().Type {
	case TokenNewline, TokenSemicolon, TokenRBrace, TokenEOF:
		return true
	}
	return false
}

// recover skips tokens up to the next statement boundary.
func (p *Parser) recover() {
	for !p.atTerminator() {
		p.next()
	}
}

func open(kind Kind, tok Token) *Node {
	return &Node{Kind: kind, Span: Span{Start: tok.Start, End: tok.End}, Pos: tok.Position}
}

func leaf(kind Kind, tok Token) *Node {
	n := open(kind, tok)
	n.Name = tok.Value
	return n
}

// wrap starts a node whose span begins at first.
func wrap(kind Kind, first *Node) *Node {
	return &Node{Kind: kind, Span: Span{Start: first.Span.Start, End: first.Span.End}, Pos: first.Pos}
}

func (p *Parser) close(n *Node) *Node {
	if p.lastEnd > n.Span.End {
		n.Span.End = p.lastEnd
	}
	return n
}

func (p *Parser) errorNode(tok Token, msg string) *Node {
	p.addError(tok, msg)
	n := open(KindError, tok)
	switch tok.Type {
	case TokenEOF, TokenNewline, TokenSemicolon, TokenRBrace:
	default:
		p.next()
	}
	return n
}

func (p *Parser) parseFile(size int) *Node {
	root := &Node{Kind: KindFile, Span: Span{Start: 0, End: size}, Pos: Position{Line: 1, Column: 1}}
	for {
		p.skipTerminators()
		if p.at(TokenEOF) {
			break
		}
		before := p.consumed
		item := p.parseItem()
		root.Append(item)
		if p.consumed == before {
			p.next()
		}
	}
	return root
}

func (p *Parser) parseItem() *Node {
	if p.atKeyword("function", "func") {
		return p.parseFunction()
	}

	tok := p.peek()
	item := open(KindItem, tok)
	if tok.Type == TokenLBrace {
		item.Append(p.parseBlock())
		return p.close(item)
	}

	pattern := open(KindPattern, tok)
	if p.atKeyword("BEGIN", "END", "BEGINFILE", "ENDFILE") {
		pattern.Append(leaf(KindBeginEnd, p.next()))
	} else {
		pattern.Append(p.parseExpr())
		if p.at(TokenComma) {
			p.next()
			p.optNewlines()
			pattern.Append(p.parseExpr())
		}
	}
	item.Append(p.close(pattern))

	if p.at(TokenLBrace) {
		item.Append(p.parseBlock())
	} else if !p.atTerminator() {
		item.Append(p.errorNode(p.peek(), "expected { or newline after pattern"))
		p.recover()
	}
	return p.close(item)
}

func (p *Parser) parseFunction() *Node {
	kw := p.next()
	item := open(KindItem, kw)

	nameTok := p.peek()
	switch nameTok.Type {
	case TokenName, TokenFuncName:
		item.Append(leaf(KindFunctionName, p.next()))
	default:
		item.Append(p.errorNode(nameTok, "expected function name"))
		p.recover()
		return p.close(item)
	}

	lparen := p.peek()
	if !p.expect(TokenLParen, "(") {
		p.recover()
		return p.close(item)
	}
	params := open(KindParamList, lparen)
	for {
		p.optNewlines()
		tok := p.peek()
		if tok.Type == TokenRParen {
			break
		}
		if tok.Type != TokenName && tok.Type != TokenFuncName {
			params.Append(p.errorNode(tok, fmt.Sprintf("expected parameter name, found %q", tok.Value)))
			break
		}
		params.Append(leaf(KindIdentifier, p.next()))
		p.optNewlines()
		if p.at(TokenComma) {
			p.next()
			continue
		}
		if !p.at(TokenRParen) {
			params.Append(p.errorNode(p.peek(), "expected , or ) in parameter list"))
			break
		}
	}
	p.expect(TokenRParen, ")")
	item.Append(p.close(params))

	p.optNewlines()
	if p.at(TokenLBrace) {
		item.Append(p.parseBlock())
	} else {
		item.Append(p.errorNode(p.peek(), "expected { after function signature"))
	}
	return p.close(item)
}

func (p *Parser) parseBlock() *Node {
	lbrace := p.next()
	block := open(KindBlock, lbrace)
	for {
		p.skipTerminators()
		tok := p.peek()
		if tok.Type == TokenRBrace {
			p.next()
			break
		}
		if tok.Type == TokenEOF {
			p.addError(tok, "unexpected EOF, expected }")
			break
		}
		before := p.consumed
		block.Append(p.parseStatement())
		// A statement closed by } may be followed directly by another.
		if !p.atTerminator() && p.lastType != TokenRBrace {
			block.Append(p.errorNode(p.peek(), "expected newline or ; after statement"))
			p.recover()
		}
		if p.consumed == before && !p.at(TokenRBrace) && !p.at(TokenEOF) {
			p.next()
		}
	}
	return p.close(block)
}

func (p *Parser) parseStatement() *Node {
	tok := p.peek()
	switch tok.Type {
	case TokenLBrace:
		return p.parseBlock()
	case TokenSemicolon:
		p.next()
		st := leaf(KindStatement, tok)
		st.Name = "empty"
		return st
	case TokenKeyword:
		switch tok.Value {
		case "if":
			return p.parseIf()
		case "while":
			return p.parseWhile()
		case "do":
			return p.parseDo()
		case "for":
			return p.parseFor()
		case "break", "continue", "next", "nextfile":
			return leaf(KindStatement, p.next())
		case "exit", "return":
			st := leaf(KindStatement, p.next())
			if !p.atTerminator() {
				st.Append(p.parseExpr())
			}
			return p.close(st)
		case "delete":
			return p.parseDelete()
		case "print", "printf":
			return p.parsePrint()
		case "getline":
			// handled as an expression below
		default:
			n := p.errorNode(tok, fmt.Sprintf("unexpected %q in statement", tok.Value))
			p.recover()
			return n
		}
	}
	return p.parseSimpleStatement()
}

func (p *Parser) parseSimpleStatement() *Node {
	expr := p.parseExpr()
	st := wrap(KindSimpleStatement, expr)
	st.Append(expr)
	return p.close(st)
}

func (p *Parser) parseCondition(st *Node) {
	if !p.expect(TokenLParen, "(") {
		return
	}
	st.Append(p.parseExpr())
	p.expect(TokenRParen, ")")
}

func (p *Parser) parseBody(st *Node) {
	if p.at(TokenSemicolon) {
		p.next()
		return
	}
	p.optNewlines()
	st.Append(p.parseStatement())
}

func (p *Parser) parseIf() *Node {
	st := leaf(KindStatement, p.next())
	p.parseCondition(st)
	p.parseBody(st)

	i := 0
	for {
		t := p.peekN(i).Type
		if t != TokenNewline && t != TokenSemicolon {
			break
		}
		i++
	}
	if tok := p.peekN(i); tok.Type == TokenKeyword && tok.Value == "else" {
		for j := 0; j <= i; j++ {
			p.next()
		}
		p.parseBody(st)
	}
	return p.close(st)
}

func (p *Parser) parseWhile() *Node {
	st := leaf(KindStatement, p.next())
	p.parseCondition(st)
	p.parseBody(st)
	return p.close(st)
}

func (p *Parser) parseDo() *Node {
	st := leaf(KindStatement, p.next())
	p.optNewlines()
	st.Append(p.parseStatement())
	p.skipTerminators()
	if !p.atKeyword("while") {
		st.Append(p.errorNode(p.peek(), "expected while after do body"))
		return p.close(st)
	}
	p.next()
	p.parseCondition(st)
	return p.close(st)
}

func (p *Parser) parseFor() *Node {
	st := leaf(KindStatement, p.next())
	if !p.expect(TokenLParen, "(") {
		p.recover()
		return p.close(st)
	}

	if p.peekN(0).Type == TokenName && p.peekN(1).Type == TokenKeyword && p.peekN(1).Value == "in" &&
		p.peekN(2).Type == TokenName && p.peekN(3).Type == TokenRParen {
		st.Name = "for_in"
		st.Append(leaf(KindIdentifier, p.next()))
		p.next()
		st.Append(leaf(KindIdentifier, p.next()))
		p.next()
		p.parseBody(st)
		return p.close(st)
	}

	if !p.at(TokenSemicolon) {
		st.Append(p.parseSimpleStatement())
	}
	p.expect(TokenSemicolon, ";")
	p.optNewlines()
	if !p.at(TokenSemicolon) {
		st.Append(p.parseExpr())
	}
	p.expect(TokenSemicolon, ";")
	p.optNewlines()
	if !p.at(TokenRParen) {
		st.Append(p.parseSimpleStatement())
	}
	p.expect(TokenRParen, ")")
	p.parseBody(st)
	return p.close(st)
}

func (p *Parser) parseDelete() *Node {
	st := leaf(KindStatement, p.next())
	tok := p.peek()
	if tok.Type != TokenName {
		st.Append(p.errorNode(tok, "expected array name after delete"))
		return p.close(st)
	}
	st.Append(p.parseNameOrIndex())
	return p.close(st)
}

func (p *Parser) parsePrint() *Node {
	st := leaf(KindStatement, p.next())
	saved := p.noGreater
	p.noGreater = true
	defer func() { p.noGreater = saved }()

	for !p.atTerminator() && !p.at(TokenGreater) && !p.at(TokenAppend) && !p.at(TokenPipe) {
		st.Append(p.parseExpr())
		if !p.at(TokenComma) {
			break
		}
		p.next()
		p.optNewlines()
	}
	if p.at(TokenGreater) || p.at(TokenAppend) || p.at(TokenPipe) {
		p.next()
		st.Append(p.parseConcat())
	}
	return p.close(st)
}

func isLvalue(n *Node) bool {
	switch n.Kind {
	case KindIdentifier, KindIndex, KindField:
		return true
	}
	return false
}

func (p *Parser) parseExpr() *Node {
	return p.parseAssignment()
}

func (p *Parser) parseAssignment() *Node {
	left := p.parseTernary()
	if p.at(TokenAssign) && isLvalue(left) {
		op := p.next()
		p.optNewlines()
		right := p.parseAssignment()
		a := wrap(KindAssignment, left)
		a.Op = op.Value
		a.Append(left, right)
		return p.close(a)
	}
	return left
}

func (p *Parser) parseTernary() *Node {
	cond := p.parseOr()
	if !p.at(TokenQuestion) {
		return cond
	}
	p.next()
	p.optNewlines()
	yes := p.parseAssignment()
	p.optNewlines()
	p.expect(TokenColon, ":")
	p.optNewlines()
	no := p.parseAssignment()
	t := wrap(KindTernary, cond)
	t.Append(cond, yes, no)
	return p.close(t)
}

func (p *Parser) binary(left *Node, op string, right *Node) *Node {
	b := wrap(KindBinary, left)
	b.Op = op
	b.Append(left, right)
	return p.close(b)
}

func (p *Parser) parseOr() *Node {
	left := p.parseAnd()
	for p.at(TokenOr) {
		op := p.next()
		p.optNewlines()
		left = p.binary(left, op.Value, p.parseAnd())
	}
	return left
}

func (p *Parser) parseAnd() *Node {
	left := p.parseIn()
	for p.at(TokenAnd) {
		op := p.next()
		p.optNewlines()
		left = p.binary(left, op.Value, p.parseIn())
	}
	return left
}

func (p *Parser) parseIn() *Node {
	left := p.parseMatch()
	for p.atKeyword("in") {
		p.next()
		tok := p.peek()
		if tok.Type != TokenName {
			return p.binary(left, "in", p.errorNode(tok, "expected array name after in"))
		}
		left = p.binary(left, "in", leaf(KindIdentifier, p.next()))
	}
	return left
}

func (p *Parser) parseMatch() *Node {
	left := p.parseCompare()
	for p.at(TokenMatch) {
		op := p.next()
		left = p.binary(left, op.Value, p.parseCompare())
	}
	return left
}

func (p *Parser) parseCompare() *Node {
	left := p.parsePipeGetline()
	tok := p.peek()
	if tok.Type == TokenCompare || (tok.Type == TokenGreater && !p.noGreater) {
		p.next()
		return p.binary(left, tok.Value, p.parsePipeGetline())
	}
	return left
}

func (p *Parser) parsePipeGetline() *Node {
	left := p.parseConcat()
	for p.at(TokenPipe) && p.peekN(1).Type == TokenKeyword && p.peekN(1).Value == "getline" {
		op := p.next()
		p.next()
		g := wrap(KindGetline, left)
		g.Op = op.Value
		g.Append(left)
		if p.at(TokenName) || p.at(TokenDollar) {
			g.Append(p.parsePostfix())
		}
		left = p.close(g)
	}
	return left
}

func (p *Parser) startsConcatOperand() bool {
	switch p.peek().Type {
	case TokenName, TokenFuncName, TokenBuiltin, TokenNumber, TokenString,
		TokenRegex, TokenDollar, TokenLParen, TokenIncDec:
		return true
	}
	return false
}

func (p *Parser) parseConcat() *Node {
	left := p.parseAdditive()
	for p.startsConcatOperand() {
		right := p.parseAdditive()
		left = p.binary(left, "concat", right)
	}
	return left
}

func (p *Parser) parseAdditive() *Node {
	left := p.parseMultiplicative()
	for p.at(TokenPlus) || p.at(TokenMinus) {
		op := p.next()
		left = p.binary(left, op.Value, p.parseMultiplicative())
	}
	return left
}

func (p *Parser) parseMultiplicative() *Node {
	left := p.parseUnary()
	for p.at(TokenStar) || p.at(TokenSlash) || p.at(TokenPercent) {
		op := p.next()
		left = p.binary(left, op.Value, p.parseUnary())
	}
	return left
}

func (p *Parser) parseUnary() *Node {
	switch p.peek().Type {
	case TokenNot, TokenMinus, TokenPlus:
		op := p.next()
		u := open(KindUnary, op)
		u.Op = op.Value
		u.Append(p.parseUnary())
		return p.close(u)
	}
	return p.parsePower()
}

func (p *Parser) parsePower() *Node {
	base := p.parsePostfix()
	if p.at(TokenCaret) {
		op := p.next()
		return p.binary(base, op.Value, p.parseUnary())
	}
	return base
}

func (p *Parser) parsePostfix() *Node {
	if p.at(TokenIncDec) {
		op := p.next()
		n := open(KindIncDec, op)
		n.Op = op.Value
		n.Name = "pre"
		n.Append(p.parsePostfix())
		return p.close(n)
	}
	operand := p.parsePrimary()
	if p.at(TokenIncDec) && isLvalue(operand) {
		op := p.next()
		n := wrap(KindIncDec, operand)
		n.Op = op.Value
		n.Name = "post"
		n.Append(operand)
		return p.close(n)
	}
	return operand
}

func (p *Parser) parseNameOrIndex() *Node {
	id := leaf(KindIdentifier, p.next())
	if !p.at(TokenLBracket) {
		return id
	}
	idx := wrap(KindIndex, id)
	idx.Append(id)
	p.next()
	saved := p.noGreater
	p.noGreater = false
	for {
		p.optNewlines()
		if p.at(TokenRBracket) || p.at(TokenEOF) {
			break
		}
		idx.Append(p.parseExpr())
		if !p.at(TokenComma) {
			break
		}
		p.next()
	}
	p.noGreater = saved
	p.expect(TokenRBracket, "]")
	return p.close(idx)
}

func (p *Parser) parseArgs() *Node {
	lparen := p.next()
	args := open(KindArgList, lparen)
	saved := p.noGreater
	p.noGreater = false
	for {
		p.optNewlines()
		if p.at(TokenRParen) || p.at(TokenEOF) {
			break
		}
		args.Append(p.parseExpr())
		p.optNewlines()
		if !p.at(TokenComma) {
			break
		}
		p.next()
	}
	p.noGreater = saved
	p.expect(TokenRParen, ")")
	return p.close(args)
}

func (p *Parser) parsePrimary() *Node {
	tok := p.peek()
	switch tok.Type {
	case TokenNumber:
		n := leaf(KindLiteral, p.next())
		n.Op = "number"
		return n
	case TokenString:
		n := leaf(KindLiteral, p.next())
		n.Op = "string"
		return n
	case TokenRegex:
		n := leaf(KindLiteral, p.next())
		n.Op = "regex"
		return n
	case TokenDollar:
		p.next()
		f := open(KindField, tok)
		switch p.peek().Type {
		case TokenIncDec:
			f.Append(p.parsePostfix())
		case TokenMinus, TokenPlus, TokenNot:
			op := p.next()
			u := open(KindUnary, op)
			u.Op = op.Value
			u.Append(p.parsePrimary())
			f.Append(p.close(u))
		default:
			f.Append(p.parsePrimary())
		}
		return p.close(f)
	case TokenName:
		return p.parseNameOrIndex()
	case TokenFuncName:
		call := leaf(KindFuncCall, p.next())
		call.Append(p.parseArgs())
		return p.close(call)
	case TokenBuiltin:
		call := open(KindCall, tok)
		call.Append(leaf(KindBuiltinName, p.next()))
		if p.at(TokenLParen) {
			call.Append(p.parseArgs())
		}
		return p.close(call)
	case TokenLParen:
		p.next()
		group := open(KindGroup, tok)
		saved := p.noGreater
		p.noGreater = false
		p.optNewlines()
		group.Append(p.parseExpr())
		for p.at(TokenComma) {
			p.next()
			p.optNewlines()
			group.Append(p.parseExpr())
		}
		p.optNewlines()
		p.noGreater = saved
		p.expect(TokenRParen, ")")
		return p.close(group)
	case TokenKeyword:
		if tok.Value == "getline" {
			p.next()
			g := open(KindGetline, tok)
			if p.at(TokenName) || p.at(TokenDollar) {
				g.Append(p.parsePostfix())
			}
			if lt := p.peek(); lt.Type == TokenCompare && lt.Value == "<" {
				p.next()
				g.Append(p.parsePostfix())
			}
			return p.close(g)
		}
	}
	return p.errorNode(tok, fmt.Sprintf("unexpected %q in expression", tok.Value))
}
