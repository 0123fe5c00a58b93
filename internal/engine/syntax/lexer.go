package syntax

import (
	"unicode/utf8"
)

type TokenType int

const (
	TokenError TokenType = iota
	TokenEOF
	TokenNewline
	TokenName
	TokenFuncName // NAME immediately followed by '('
	TokenBuiltin
	TokenNumber
	TokenString
	TokenRegex
	TokenKeyword

	TokenLBrace
	TokenRBrace
	TokenLParen
	TokenRParen
	TokenLBracket
	TokenRBracket
	TokenComma
	TokenSemicolon
	TokenDollar

	TokenAssign   // = += -= *= /= %= ^=
	TokenIncDec   // ++ --
	TokenPlus     // +
	TokenMinus    // -
	TokenStar     // *
	TokenSlash    // /
	TokenPercent  // %
	TokenCaret    // ^
	TokenNot      // !
	TokenMatch    // ~ !~
	TokenCompare  // < <= == != >=
	TokenGreater  // >
	TokenAppend   // >>
	TokenPipe     // | |&
	TokenAnd      // &&
	TokenOr       // ||
	TokenQuestion // ?
	TokenColon    // :
)

type Token struct {
	Type     TokenType
	Value    string
	Start    int
	End      int
	Position Position
}

var keywords = map[string]bool{
	"BEGIN":     true,
	"END":       true,
	"BEGINFILE": true,
	"ENDFILE":   true,
	"if":        true,
	"else":      true,
	"while":     true,
	"for":       true,
	"do":        true,
	"break":     true,
	"continue":  true,
	"function":  true,
	"func":      true,
	"return":    true,
	"delete":    true,
	"exit":      true,
	"next":      true,
	"nextfile":  true,
	"getline":   true,
	"print":     true,
	"printf":    true,
	"in":        true,
}

var builtins = map[string]bool{
	"atan2":    true,
	"close":    true,
	"cos":      true,
	"exp":      true,
	"fflush":   true,
	"gensub":   true,
	"gsub":     true,
	"index":    true,
	"int":      true,
	"length":   true,
	"log":      true,
	"match":    true,
	"patsplit": true,
	"rand":     true,
	"sin":      true,
	"split":    true,
	"sprintf":  true,
	"sqrt":     true,
	"srand":    true,
	"strftime": true,
	"sub":      true,
	"substr":   true,
	"system":   true,
	"systime":  true,
	"tolower":  true,
	"toupper":  true,
	"asort":    true,
	"asorti":   true,
}

// IsKeyword reports whether name is reserved by the AWK grammar.
func IsKeyword(name string) bool { return keywords[name] }

// IsBuiltin reports whether name is a built-in function.
func IsBuiltin(name string) bool { return builtins[name] }

// Lexer turns AWK source into tokens. Whether '/' opens a regex or is the
// division operator depends on the previous significant token.
type Lexer struct {
	input     string
	start     int
	pos       int
	line      int
	lineStart int
	startLine int
	startCol  int
	last      TokenType
}

func NewLexer(input string) *Lexer {
	return &Lexer{input: input, line: 1, last: TokenNewline}
}

func (l *Lexer) peekByte(ahead int) byte {
	if l.pos+ahead >= len(l.input) {
		return 0
	}
	return l.input[l.pos+ahead]
}

func (l *Lexer) advance() byte {
	c := l.input[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
		l.lineStart = l.pos
	}
	return c
}

func (l *Lexer) mark() {
	l.start = l.pos
	l.startLine = l.line
	l.startCol = l.pos - l.lineStart + 1
}

func (l *Lexer) emit(t TokenType) Token {
	tok := Token{
		Type:     t,
		Value:    l.input[l.start:l.pos],
		Start:    l.start,
		End:      l.pos,
		Position: Position{Line: l.startLine, Column: l.startCol},
	}
	l.last = t
	return tok
}

// regexAllowed reports whether a '/' at the current point starts a regex.
func (l *Lexer) regexAllowed() bool {
	switch l.last {
	case TokenName, TokenNumber, TokenString, TokenRegex, TokenRParen,
		TokenRBracket, TokenDollar, TokenIncDec, TokenBuiltin:
		return false
	}
	return true
}

func (l *Lexer) skipBlank() {
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			l.pos++
		case c == '\\' && l.peekByte(1) == '\n':
			l.advance()
			l.advance()
		case c == '\\' && l.peekByte(1) == '\r' && l.peekByte(2) == '\n':
			l.advance()
			l.advance()
			l.advance()
		case c == '#':
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

func (l *Lexer) NextToken() Token {
	l.skipBlank()
	l.mark()
	if l.pos >= len(l.input) {
		return l.emit(TokenEOF)
	}

	c := l.advance()
	switch c {
	case '\n':
		return l.emit(TokenNewline)
	case '{':
		return l.emit(TokenLBrace)
	case '}':
		return l.emit(TokenRBrace)
	case '(':
		return l.emit(TokenLParen)
	case ')':
		return l.emit(TokenRParen)
	case '[':
		return l.emit(TokenLBracket)
	case ']':
		return l.emit(TokenRBracket)
	case ',':
		return l.emit(TokenComma)
	case ';':
		return l.emit(TokenSemicolon)
	case '$':
		return l.emit(TokenDollar)
	case '?':
		return l.emit(TokenQuestion)
	case ':':
		return l.emit(TokenColon)
	case '"':
		return l.lexString()
	case '+', '-':
		if l.peekByte(0) == c {
			l.advance()
			return l.emit(TokenIncDec)
		}
		if l.peekByte(0) == '=' {
			l.advance()
			return l.emit(TokenAssign)
		}
		if c == '+' {
			return l.emit(TokenPlus)
		}
		return l.emit(TokenMinus)
	case '*', '%', '^':
		if c == '*' && l.peekByte(0) == '*' {
			l.advance()
			if l.peekByte(0) == '=' {
				l.advance()
				return l.emit(TokenAssign)
			}
			return l.emit(TokenCaret)
		}
		if l.peekByte(0) == '=' {
			l.advance()
			return l.emit(TokenAssign)
		}
		switch c {
		case '*':
			return l.emit(TokenStar)
		case '%':
			return l.emit(TokenPercent)
		}
		return l.emit(TokenCaret)
	case '/':
		if l.regexAllowed() {
			return l.lexRegex()
		}
		if l.peekByte(0) == '=' {
			l.advance()
			return l.emit(TokenAssign)
		}
		return l.emit(TokenSlash)
	case '=':
		if l.peekByte(0) == '=' {
			l.advance()
			return l.emit(TokenCompare)
		}
		return l.emit(TokenAssign)
	case '!':
		switch l.peekByte(0) {
		case '=':
			l.advance()
			return l.emit(TokenCompare)
		case '~':
			l.advance()
			return l.emit(TokenMatch)
		}
		return l.emit(TokenNot)
	case '~':
		return l.emit(TokenMatch)
	case '<':
		if l.peekByte(0) == '=' {
			l.advance()
		}
		return l.emit(TokenCompare)
	case '>':
		switch l.peekByte(0) {
		case '=':
			l.advance()
			return l.emit(TokenCompare)
		case '>':
			l.advance()
			return l.emit(TokenAppend)
		}
		return l.emit(TokenGreater)
	case '|':
		switch l.peekByte(0) {
		case '|':
			l.advance()
			return l.emit(TokenOr)
		case '&':
			l.advance()
		}
		return l.emit(TokenPipe)
	case '&':
		if l.peekByte(0) == '&' {
			l.advance()
			return l.emit(TokenAnd)
		}
		return l.emit(TokenError)
	}

	if isDigit(c) || (c == '.' && isDigit(l.peekByte(0))) {
		return l.lexNumber()
	}
	if isNameStart(c) {
		return l.lexName()
	}
	if c >= utf8.RuneSelf {
		// Consume the whole rune so the error token is well formed.
		l.pos--
		_, w := utf8.DecodeRuneInString(l.input[l.pos:])
		l.pos += w
	}
	return l.emit(TokenError)
}

func (l *Lexer) lexName() Token {
	for l.pos < len(l.input) && isNameChar(l.input[l.pos]) {
		l.pos++
	}
	word := l.input[l.start:l.pos]
	switch {
	case keywords[word]:
		return l.emit(TokenKeyword)
	case builtins[word]:
		return l.emit(TokenBuiltin)
	case l.peekByte(0) == '(':
		return l.emit(TokenFuncName)
	}
	return l.emit(TokenName)
}

func (l *Lexer) lexNumber() Token {
	if l.input[l.start] == '0' && (l.peekByte(0) == 'x' || l.peekByte(0) == 'X') {
		l.pos++
		for l.pos < len(l.input) && isHexDigit(l.input[l.pos]) {
			l.pos++
		}
		return l.emit(TokenNumber)
	}
	for l.pos < len(l.input) && (isDigit(l.input[l.pos]) || l.input[l.pos] == '.') {
		l.pos++
	}
	if c := l.peekByte(0); c == 'e' || c == 'E' {
		next := l.peekByte(1)
		if isDigit(next) || ((next == '+' || next == '-') && isDigit(l.peekByte(2))) {
			l.pos += 2
			for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
				l.pos++
			}
		}
	}
	return l.emit(TokenNumber)
}

func (l *Lexer) lexString() Token {
	for l.pos < len(l.input) {
		c := l.advance()
		switch c {
		case '\\':
			if l.pos < len(l.input) {
				l.advance()
			}
		case '"':
			return l.emit(TokenString)
		case '\n':
			return l.emit(TokenError)
		}
	}
	return l.emit(TokenError)
}

func (l *Lexer) lexRegex() Token {
	inClass := false
	for l.pos < len(l.input) {
		c := l.advance()
		switch {
		case c == '\\':
			if l.pos < len(l.input) {
				l.advance()
			}
		case c == '[':
			inClass = true
		case c == ']':
			inClass = false
		case c == '/' && !inClass:
			return l.emit(TokenRegex)
		case c == '\n':
			return l.emit(TokenError)
		}
	}
	return l.emit(TokenError)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool { return isNameStart(c) || isDigit(c) }

// IsValidName reports whether name can be used as a user variable name.
func IsValidName(name string) bool {
	if name == "" || !isNameStart(name[0]) {
		return false
	}
	for i := 1; i < len(name); i++ {
		if !isNameChar(name[i]) {
			return false
		}
	}
	return !keywords[name] && !builtins[name]
}
