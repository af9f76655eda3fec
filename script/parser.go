package script

import (
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// AST
// ---------------------------------------------------------------------------

type node interface{}

type literal struct{ val Value }

type fileRef struct{}

type varRef struct {
	name string
	line int
}

type binary struct {
	op          tokenType
	left, right node
	line        int
}

type negate struct {
	operand node
	line    int
}

// call is a builtin taking at most one argument: require, load, puts,
// print.
type call struct {
	fn   string
	arg  node
	line int
}

type assign struct {
	name  string
	op    tokenType
	value node
	line  int
}

type def struct {
	name string
	body node
}

type raise struct {
	class string
	msg   node
	line  int
}

var builtins = map[string]bool{
	"require": true,
	"load":    true,
	"puts":    true,
	"print":   true,
}

var reserved = map[string]bool{
	"def":   true,
	"raise": true,
	"nil":   true,
	"true":  true,
	"false": true,
}

// ---------------------------------------------------------------------------
// Parser
// ---------------------------------------------------------------------------

type parser struct {
	toks []token
	pos  int
}

func parse(src []byte) ([]node, *syntaxError) {
	toks, err := newLexer(src).tokenize()
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	return p.parseProgram()
}

func (p *parser) cur() token { return p.toks[p.pos] }

func (p *parser) peekTok() token {
	if p.pos+1 < len(p.toks) {
		return p.toks[p.pos+1]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if t.typ != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(format string, args ...interface{}) *syntaxError {
	return &syntaxError{line: p.cur().line, msg: fmt.Sprintf(format, args...)}
}

func (p *parser) unexpected() *syntaxError {
	t := p.cur()
	if t.typ == tokEOF {
		return p.errorf("unexpected end-of-input")
	}
	return p.errorf("unexpected %s", t.typ)
}

// skipNewlines consumes line breaks after a token that cannot end an
// expression.
func (p *parser) skipNewlines() {
	for p.cur().typ == tokNewline {
		p.advance()
	}
}

func (p *parser) atStatementEnd() bool {
	t := p.cur().typ
	return t == tokNewline || t == tokEOF
}

func (p *parser) parseProgram() ([]node, *syntaxError) {
	var stmts []node
	for {
		p.skipNewlines()
		if p.cur().typ == tokEOF {
			return stmts, nil
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if !p.atStatementEnd() {
			return nil, p.unexpected()
		}
		stmts = append(stmts, stmt)
	}
}

func (p *parser) parseStatement() (node, *syntaxError) {
	t := p.cur()
	if t.typ != tokIdent {
		return p.parseExpr()
	}
	name := string(t.text)
	switch name {
	case "def":
		return p.parseDef()
	case "raise":
		return p.parseRaise()
	}
	switch next := p.peekTok().typ; next {
	case tokAssign, tokPlusAssign, tokOrAssign:
		if reserved[name] || builtins[name] {
			return nil, p.errorf("cannot assign to a keyword")
		}
		p.advance()
		p.advance()
		p.skipNewlines()
		value, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &assign{name: name, op: next, value: value, line: t.line}, nil
	}
	return p.parseExpr()
}

// def name = expr
func (p *parser) parseDef() (node, *syntaxError) {
	p.advance()
	nameTok := p.cur()
	if nameTok.typ != tokIdent || reserved[string(nameTok.text)] {
		return nil, p.unexpected()
	}
	p.advance()
	if p.cur().typ != tokAssign {
		return nil, p.unexpected()
	}
	p.advance()
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &def{name: string(nameTok.text), body: body}, nil
}

// raise [Const[,]] [expr]
func (p *parser) parseRaise() (node, *syntaxError) {
	line := p.advance().line
	r := &raise{line: line}
	if p.cur().typ == tokConst {
		r.class = string(p.advance().text)
		if p.atStatementEnd() {
			return r, nil
		}
		if p.cur().typ != tokComma {
			return nil, p.unexpected()
		}
		p.advance()
	}
	if p.atStatementEnd() {
		if r.class != "" {
			return nil, p.unexpected()
		}
		return r, nil
	}
	msg, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	r.msg = msg
	return r, nil
}

func (p *parser) parseExpr() (node, *syntaxError) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.cur().typ == tokPlus || p.cur().typ == tokMinus {
		op := p.advance()
		p.skipNewlines()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &binary{op: op.typ, left: left, right: right, line: op.line}
	}
	return left, nil
}

func (p *parser) parseTerm() (node, *syntaxError) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur().typ == tokStar {
		op := p.advance()
		p.skipNewlines()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binary{op: op.typ, left: left, right: right, line: op.line}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, *syntaxError) {
	if p.cur().typ == tokMinus {
		line := p.advance().line
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &negate{operand: operand, line: line}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, *syntaxError) {
	t := p.cur()
	switch t.typ {
	case tokInt:
		p.advance()
		i, err := strconv.ParseInt(strings.ReplaceAll(string(t.text), "_", ""), 10, 64)
		if err != nil {
			return nil, &syntaxError{line: t.line, msg: "integer literal out of range"}
		}
		return &literal{val: Int(i)}, nil
	case tokString:
		p.advance()
		return &literal{val: String(t.text)}, nil
	case tokFile:
		p.advance()
		return &fileRef{}, nil
	case tokLParen:
		p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.cur().typ != tokRParen {
			return nil, p.unexpected()
		}
		p.advance()
		return inner, nil
	case tokIdent:
		p.advance()
		name := string(t.text)
		switch name {
		case "nil":
			return &literal{val: Nil}, nil
		case "true":
			return &literal{val: Bool(true)}, nil
		case "false":
			return &literal{val: Bool(false)}, nil
		case "def", "raise":
			return nil, &syntaxError{line: t.line, msg: "unexpected keyword " + name}
		}
		if builtins[name] {
			c := &call{fn: name, line: t.line}
			if p.atStatementEnd() || p.cur().typ == tokRParen {
				return c, nil
			}
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			c.arg = arg
			return c, nil
		}
		return &varRef{name: name, line: t.line}, nil
	}
	return nil, p.unexpected()
}
