package expr

import (
	"fmt"
	"strconv"
)

// Parse parses an expression string into an AST.
// A parse error means the input is outside the closed grammar; callers are
// expected to treat that as an unsafe condition and fail closed.
func Parse(input string) (Node, error) {
	tokens, err := Lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.current().Kind != TokenEOF {
		return nil, fmt.Errorf("unexpected token %s at position %d", p.current().Kind, p.current().Pos)
	}
	return node, nil
}

// ValidateSyntax checks whether an expression string is syntactically valid.
func ValidateSyntax(input string) error {
	_, err := Parse(input)
	return err
}

type parser struct {
	tokens []Token
	pos    int
}

func (p *parser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Kind: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *parser) advance() Token {
	tok := p.current()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *parser) expect(kind TokenKind) (Token, error) {
	tok := p.current()
	if tok.Kind != kind {
		return tok, fmt.Errorf("expected %s but got %s at position %d", kind, tok.Kind, tok.Pos)
	}
	p.advance()
	return tok, nil
}

// Precedence levels (low to high):
// 1. || (logical or)
// 2. && (logical and)
// 3. ==, != (equality)
// 4. <, >, <=, >= (comparison)
// 5. in, contains (membership)
// 6. ! (unary not)
// 7. member access, index access (postfix)

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.current().Kind == TokenOr {
		op := p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Binary{Left: left, Op: op.Kind, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.current().Kind == TokenAnd {
		op := p.advance()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &Binary{Left: left, Op: op.Kind, Right: right}
	}
	return left, nil
}

func (p *parser) parseEquality() (Node, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.current().Kind == TokenEq || p.current().Kind == TokenNeq {
		op := p.advance()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &Binary{Left: left, Op: op.Kind, Right: right}
	}
	return left, nil
}

func (p *parser) parseComparison() (Node, error) {
	left, err := p.parseMembership()
	if err != nil {
		return nil, err
	}
	for {
		switch p.current().Kind {
		case TokenGt, TokenGte, TokenLt, TokenLte:
			op := p.advance()
			right, err := p.parseMembership()
			if err != nil {
				return nil, err
			}
			left = &Binary{Left: left, Op: op.Kind, Right: right}
		default:
			return left, nil
		}
	}
}

func (p *parser) parseMembership() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	switch p.current().Kind {
	case TokenIn, TokenContains:
		op := p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Binary{Left: left, Op: op.Kind, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Node, error) {
	if p.current().Kind == TokenNot {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Not{Operand: operand}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (Node, error) {
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		switch p.current().Kind {
		case TokenDot:
			p.advance()
			name, err := p.expect(TokenIdent)
			if err != nil {
				// Keywords double as property names (item.contains).
				tok := p.current()
				if isKeywordToken(tok.Kind) {
					p.advance()
					node = &Member{Object: node, Property: tok.Value}
					continue
				}
				return nil, err
			}
			node = &Member{Object: node, Property: name.Value}

		case TokenLBracket:
			p.advance()
			key, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokenRBracket); err != nil {
				return nil, err
			}
			node = &Index{Object: node, Key: key}

		default:
			return node, nil
		}
	}
}

func (p *parser) parsePrimary() (Node, error) {
	tok := p.current()

	switch tok.Kind {
	case TokenNumber:
		p.advance()
		val, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q at position %d", tok.Value, tok.Pos)
		}
		return &Literal{Value: val}, nil

	case TokenString:
		p.advance()
		return &Literal{Value: tok.Value}, nil

	case TokenTrue:
		p.advance()
		return &Literal{Value: true}, nil

	case TokenFalse:
		p.advance()
		return &Literal{Value: false}, nil

	case TokenNull:
		p.advance()
		return &Literal{Value: nil}, nil

	case TokenIdent:
		p.advance()
		return &Ident{Name: tok.Value}, nil

	case TokenLParen:
		p.advance()
		node, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		return node, nil

	case TokenLBracket:
		return p.parseList()

	default:
		return nil, fmt.Errorf("unexpected token %s at position %d", tok.Kind, tok.Pos)
	}
}

func (p *parser) parseList() (Node, error) {
	p.advance() // skip [
	var elements []Node

	if p.current().Kind == TokenRBracket {
		p.advance()
		return &List{Elements: elements}, nil
	}

	for {
		elem, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		elements = append(elements, elem)

		if p.current().Kind != TokenComma {
			break
		}
		p.advance() // skip comma
	}

	if _, err := p.expect(TokenRBracket); err != nil {
		return nil, err
	}

	return &List{Elements: elements}, nil
}

func isKeywordToken(kind TokenKind) bool {
	switch kind {
	case TokenIn, TokenContains, TokenTrue, TokenFalse, TokenNull:
		return true
	}
	return false
}
