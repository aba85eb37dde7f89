package expr

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenKind identifies the type of a lexer token.
type TokenKind int

const (
	// Literals and identifiers
	TokenIdent  TokenKind = iota // identifier
	TokenNumber                  // numeric literal
	TokenString                  // string literal

	// Operators
	TokenEq       // ==
	TokenNeq      // !=
	TokenGt       // >
	TokenGte      // >=
	TokenLt       // <
	TokenLte      // <=
	TokenAnd      // &&
	TokenOr       // ||
	TokenNot      // !
	TokenIn       // in
	TokenContains // contains

	// Delimiters
	TokenDot      // .
	TokenLBracket // [
	TokenRBracket // ]
	TokenLParen   // (
	TokenRParen   // )
	TokenComma    // ,

	// Special
	TokenTrue  // true
	TokenFalse // false
	TokenNull  // null
	TokenEOF
)

var tokenNames = map[TokenKind]string{
	TokenIdent:    "identifier",
	TokenNumber:   "number",
	TokenString:   "string",
	TokenEq:       "==",
	TokenNeq:      "!=",
	TokenGt:       ">",
	TokenGte:      ">=",
	TokenLt:       "<",
	TokenLte:      "<=",
	TokenAnd:      "&&",
	TokenOr:       "||",
	TokenNot:      "!",
	TokenIn:       "in",
	TokenContains: "contains",
	TokenDot:      ".",
	TokenLBracket: "[",
	TokenRBracket: "]",
	TokenLParen:   "(",
	TokenRParen:   ")",
	TokenComma:    ",",
	TokenTrue:     "true",
	TokenFalse:    "false",
	TokenNull:     "null",
	TokenEOF:      "EOF",
}

func (k TokenKind) String() string {
	if name, ok := tokenNames[k]; ok {
		return name
	}
	return fmt.Sprintf("token(%d)", int(k))
}

// Token is a lexed token with position information.
type Token struct {
	Kind  TokenKind
	Value string // raw text of the token
	Pos   int    // byte offset in source
}

var keywords = map[string]TokenKind{
	"in":       TokenIn,
	"contains": TokenContains,
	"true":     TokenTrue,
	"false":    TokenFalse,
	"null":     TokenNull,
}

type lexer struct {
	src    string
	pos    int
	tokens []Token
}

// Lex tokenizes the input string and returns all tokens.
func Lex(src string) ([]Token, error) {
	l := &lexer{src: src}
	if err := l.run(); err != nil {
		return nil, err
	}
	return l.tokens, nil
}

func (l *lexer) run() error {
	for {
		l.skipSpace()
		if l.pos >= len(l.src) {
			l.tokens = append(l.tokens, Token{Kind: TokenEOF, Pos: l.pos})
			return nil
		}

		ch, _ := utf8.DecodeRuneInString(l.src[l.pos:])
		if l.emitOperator(ch) {
			continue
		}

		switch {
		case ch == '"' || ch == '\'':
			if err := l.lexString(byte(ch)); err != nil {
				return err
			}
		case isDigit(ch) || (ch == '-' && l.startsNegativeNumber()):
			l.lexNumber()
		case isIdentStart(ch):
			l.lexIdent()
		default:
			return fmt.Errorf("unexpected character %q at position %d", string(ch), l.pos)
		}
	}
}

func (l *lexer) emitOperator(ch rune) bool {
	switch {
	case ch == '=' && l.peek() == '=':
		l.emit(TokenEq, 2)
	case ch == '!' && l.peek() == '=':
		l.emit(TokenNeq, 2)
	case ch == '>' && l.peek() == '=':
		l.emit(TokenGte, 2)
	case ch == '<' && l.peek() == '=':
		l.emit(TokenLte, 2)
	case ch == '&' && l.peek() == '&':
		l.emit(TokenAnd, 2)
	case ch == '|' && l.peek() == '|':
		l.emit(TokenOr, 2)
	case ch == '>':
		l.emit(TokenGt, 1)
	case ch == '<':
		l.emit(TokenLt, 1)
	case ch == '!':
		l.emit(TokenNot, 1)
	case ch == '.':
		l.emit(TokenDot, 1)
	case ch == '[':
		l.emit(TokenLBracket, 1)
	case ch == ']':
		l.emit(TokenRBracket, 1)
	case ch == '(':
		l.emit(TokenLParen, 1)
	case ch == ')':
		l.emit(TokenRParen, 1)
	case ch == ',':
		l.emit(TokenComma, 1)
	default:
		return false
	}
	return true
}

func (l *lexer) peek() byte {
	next := l.pos + 1
	if next >= len(l.src) {
		return 0
	}
	return l.src[next]
}

func (l *lexer) emit(kind TokenKind, width int) {
	l.tokens = append(l.tokens, Token{Kind: kind, Value: l.src[l.pos : l.pos+width], Pos: l.pos})
	l.pos += width
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		ch, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if !unicode.IsSpace(ch) {
			break
		}
		l.pos += size
	}
}

func (l *lexer) lexString(quote byte) error {
	start := l.pos
	l.pos++ // skip opening quote
	var sb strings.Builder

	for l.pos < len(l.src) {
		ch := l.src[l.pos]
		if ch == '\\' {
			l.pos++
			if l.pos >= len(l.src) {
				return fmt.Errorf("unterminated string at position %d", start)
			}
			esc := l.src[l.pos]
			switch esc {
			case '"', '\'', '\\', '/':
				sb.WriteByte(esc)
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			default:
				sb.WriteByte('\\')
				sb.WriteByte(esc)
			}
			l.pos++
			continue
		}
		if ch == quote {
			l.pos++ // skip closing quote
			l.tokens = append(l.tokens, Token{Kind: TokenString, Value: sb.String(), Pos: start})
			return nil
		}
		sb.WriteByte(ch)
		l.pos++
	}

	return fmt.Errorf("unterminated string at position %d", start)
}

func (l *lexer) lexNumber() {
	start := l.pos
	if l.src[l.pos] == '-' {
		l.pos++
	}
	for l.pos < len(l.src) && isDigit(rune(l.src[l.pos])) {
		l.pos++
	}
	if l.pos < len(l.src) && l.src[l.pos] == '.' {
		l.pos++
		for l.pos < len(l.src) && isDigit(rune(l.src[l.pos])) {
			l.pos++
		}
	}
	l.tokens = append(l.tokens, Token{Kind: TokenNumber, Value: l.src[start:l.pos], Pos: start})
}

func (l *lexer) lexIdent() {
	start := l.pos
	for l.pos < len(l.src) {
		ch, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if !isIdentPart(ch) {
			break
		}
		l.pos += size
	}
	word := l.src[start:l.pos]
	kind := TokenIdent
	if kw, ok := keywords[word]; ok {
		kind = kw
	}
	l.tokens = append(l.tokens, Token{Kind: kind, Value: word, Pos: start})
}

// startsNegativeNumber reports whether a '-' at the current position opens a
// negative literal rather than following an operand.
func (l *lexer) startsNegativeNumber() bool {
	if len(l.tokens) == 0 {
		return true
	}
	switch l.tokens[len(l.tokens)-1].Kind {
	case TokenEq, TokenNeq, TokenGt, TokenGte, TokenLt, TokenLte,
		TokenAnd, TokenOr, TokenNot, TokenIn, TokenContains,
		TokenLParen, TokenLBracket, TokenComma:
		return true
	}
	return false
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isIdentPart(ch rune) bool {
	return ch == '_' || ch == '-' || unicode.IsLetter(ch) || unicode.IsDigit(ch)
}
