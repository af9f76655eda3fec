package script

import "fmt"

// ---------------------------------------------------------------------------
// Lexer
// ---------------------------------------------------------------------------

type tokenType int

const (
	tokEOF tokenType = iota
	tokNewline
	tokInt
	tokString
	tokIdent
	tokConst
	tokFile // __FILE__
	tokAssign
	tokPlusAssign
	tokOrAssign
	tokPlus
	tokMinus
	tokStar
	tokComma
	tokLParen
	tokRParen
)

var tokenNames = map[tokenType]string{
	tokEOF:        "end-of-input",
	tokNewline:    "newline",
	tokInt:        "integer",
	tokString:     "string literal",
	tokIdent:      "identifier",
	tokConst:      "constant",
	tokFile:       "__FILE__",
	tokAssign:     "'='",
	tokPlusAssign: "'+='",
	tokOrAssign:   "'||='",
	tokPlus:       "'+'",
	tokMinus:      "'-'",
	tokStar:       "'*'",
	tokComma:      "','",
	tokLParen:     "'('",
	tokRParen:     "')'",
}

func (t tokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return fmt.Sprintf("token(%d)", int(t))
}

type token struct {
	typ  tokenType
	text []byte
	line int
}

type lexer struct {
	src  []byte
	pos  int
	line int
}

func newLexer(src []byte) *lexer {
	return &lexer{src: src, line: 1}
}

// syntaxError is a lexing or parsing failure at a line.
type syntaxError struct {
	line int
	msg  string
}

func (l *lexer) errorf(format string, args ...interface{}) *syntaxError {
	return &syntaxError{line: l.line, msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) peek(off int) byte {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

// tokenize returns all tokens up to and including EOF.
func (l *lexer) tokenize() ([]token, *syntaxError) {
	var toks []token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.typ == tokEOF {
			return toks, nil
		}
	}
}

func (l *lexer) next() (token, *syntaxError) {
	l.skipSpace()
	if l.pos >= len(l.src) {
		return token{typ: tokEOF, line: l.line}, nil
	}

	line := l.line
	c := l.src[l.pos]
	simple := func(typ tokenType, n int) (token, *syntaxError) {
		text := l.src[l.pos : l.pos+n]
		l.pos += n
		return token{typ: typ, text: text, line: line}, nil
	}

	switch {
	case c == '\n' || c == ';':
		if c == '\n' {
			l.line++
		}
		return simple(tokNewline, 1)
	case c == '\'' || c == '"':
		return l.readString(c)
	case isDigit(c):
		start := l.pos
		for l.pos < len(l.src) && (isDigit(l.src[l.pos]) || l.src[l.pos] == '_') {
			l.pos++
		}
		return token{typ: tokInt, text: l.src[start:l.pos], line: line}, nil
	case isLetter(c):
		start := l.pos
		for l.pos < len(l.src) && (isLetter(l.src[l.pos]) || isDigit(l.src[l.pos])) {
			l.pos++
		}
		// predicate and bang method names
		if l.pos < len(l.src) && (l.src[l.pos] == '?' || l.src[l.pos] == '!') {
			l.pos++
		}
		text := l.src[start:l.pos]
		switch {
		case string(text) == "__FILE__":
			return token{typ: tokFile, text: text, line: line}, nil
		case c >= 'A' && c <= 'Z':
			return token{typ: tokConst, text: text, line: line}, nil
		default:
			return token{typ: tokIdent, text: text, line: line}, nil
		}
	case c == '=':
		return simple(tokAssign, 1)
	case c == '+' && l.peek(1) == '=':
		return simple(tokPlusAssign, 2)
	case c == '|' && l.peek(1) == '|' && l.peek(2) == '=':
		return simple(tokOrAssign, 3)
	case c == '+':
		return simple(tokPlus, 1)
	case c == '-':
		return simple(tokMinus, 1)
	case c == '*':
		return simple(tokStar, 1)
	case c == ',':
		return simple(tokComma, 1)
	case c == '(':
		return simple(tokLParen, 1)
	case c == ')':
		return simple(tokRParen, 1)
	}
	return token{}, l.errorf("unexpected character %q", c)
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		switch c := l.src[l.pos]; {
		case c == ' ' || c == '\t' || c == '\r':
			l.pos++
		case c == '\\' && l.peek(1) == '\n':
			l.pos += 2
			l.line++
		case c == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

// readString reads a quoted literal. Single-quoted strings only
// recognize \' and \\; double-quoted strings also take \n, \t, \0 and
// \".
func (l *lexer) readString(quote byte) (token, *syntaxError) {
	line := l.line
	l.pos++ // opening quote
	var buf []byte
	for {
		if l.pos >= len(l.src) {
			return token{}, &syntaxError{line: line, msg: "unterminated string meets end of file"}
		}
		c := l.src[l.pos]
		switch {
		case c == quote:
			l.pos++
			return token{typ: tokString, text: buf, line: line}, nil
		case c == '\\' && l.pos+1 < len(l.src):
			esc := l.src[l.pos+1]
			l.pos += 2
			switch {
			case esc == quote || esc == '\\':
				buf = append(buf, esc)
			case quote == '"' && esc == 'n':
				buf = append(buf, '\n')
			case quote == '"' && esc == 't':
				buf = append(buf, '\t')
			case quote == '"' && esc == '0':
				buf = append(buf, 0)
			default:
				buf = append(buf, '\\', esc)
			}
		default:
			if c == '\n' {
				l.line++
			}
			buf = append(buf, c)
			l.pos++
		}
	}
}

func isLetter(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
