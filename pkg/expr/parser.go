package expr

import (
	"strings"

	"github.com/lemonberrylabs/splice/pkg/tree"
	"github.com/lemonberrylabs/splice/pkg/types"
)

// MaxExpressionLength is the maximum allowed length for a single expression.
const MaxExpressionLength = 4096

// binding is one layer of parameter names visible to the parser.
type binding struct {
	parent *binding
	params []*tree.Parameter
}

func (b *binding) lookup(name string) (*tree.Parameter, bool) {
	for ; b != nil; b = b.parent {
		// Later parameters shadow earlier ones with the same name.
		for i := len(b.params) - 1; i >= 0; i-- {
			if b.params[i].Name == name {
				return b.params[i], true
			}
		}
	}
	return nil, false
}

// Parser is a recursive descent parser producing expression trees.
type Parser struct {
	tokens []Token
	pos    int
	scope  *binding
}

// ParseExpression parses a complete expression. Identifiers not bound by an
// enclosing function literal become static member reads.
func ParseExpression(input string) (tree.Node, error) {
	return Parse(input)
}

// Parse parses input with params in scope: occurrences of their names
// become references to those exact Parameter values.
func Parse(input string, params ...*tree.Parameter) (tree.Node, error) {
	if len(input) > MaxExpressionLength {
		return nil, syntaxErrorf(0, "expression exceeds maximum length of %d characters", MaxExpressionLength)
	}
	tokens, err := NewLexer(input).Tokenize()
	if err != nil {
		return nil, err
	}

	p := &Parser{tokens: tokens}
	if len(params) > 0 {
		p.scope = &binding{params: params}
	}
	node, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if tok := p.current(); tok.Type != TokenEOF {
		return nil, syntaxErrorf(tok.Pos, "unexpected token %s (%q)", tok.Type, tok.Value)
	}
	return node, nil
}

// ParseFunction parses body as the body of a function named name over
// params. The result type of the returned Lambda is Any; callers that know
// it set Result themselves.
func ParseFunction(name string, params []*tree.Parameter, body string) (*tree.Lambda, error) {
	node, err := Parse(body, params...)
	if err != nil {
		return nil, err
	}
	return &tree.Lambda{Name: name, Params: params, Body: node, Result: types.TypeAny}, nil
}

func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peek() Token {
	if p.pos+1 >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos+1]
}

func (p *Parser) advance() Token {
	tok := p.current()
	p.pos++
	return tok
}

func (p *Parser) expect(tt TokenType, what string) (Token, error) {
	tok := p.current()
	if tok.Type != tt {
		return tok, syntaxErrorf(tok.Pos, "expected %s, got %s", what, tok.Type)
	}
	p.advance()
	return tok, nil
}

// parseExpression handles the lowest precedence operators.
// Precedence (low to high):
//
//	fn(...) => body
//	or
//	and
//	not
//	==, !=, <, >, <=, >=, in, not in
//	+, -
//	*, /, %, //
//	unary -
//	member access, index, call
func (p *Parser) parseExpression() (tree.Node, error) {
	if p.current().Type == TokenFn {
		return p.parseLambda()
	}
	return p.parseOr()
}

func (p *Parser) parseOr() (tree.Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.current().Type == TokenOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = tree.Bin(tree.OpOr, left, right)
	}
	return left, nil
}

func (p *Parser) parseAnd() (tree.Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.current().Type == TokenAnd {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = tree.Bin(tree.OpAnd, left, right)
	}
	return left, nil
}

func (p *Parser) parseNot() (tree.Node, error) {
	if p.current().Type == TokenNot {
		p.advance()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return tree.Not(operand), nil
	}
	return p.parseComparison()
}

var comparisonOps = map[TokenType]tree.Op{
	TokenEq: tree.OpEq, TokenNeq: tree.OpNeq,
	TokenLt: tree.OpLt, TokenGt: tree.OpGt,
	TokenLte: tree.OpLte, TokenGte: tree.OpGte,
	TokenIn: tree.OpIn,
}

func (p *Parser) parseComparison() (tree.Node, error) {
	left, err := p.parseAddition()
	if err != nil {
		return nil, err
	}

	op, ok := comparisonOps[p.current().Type]
	switch {
	case ok:
		p.advance()
	case p.current().Type == TokenNot && p.peek().Type == TokenIn:
		p.advance()
		p.advance()
		op = tree.OpNotIn
	default:
		return left, nil
	}
	right, err := p.parseAddition()
	if err != nil {
		return nil, err
	}
	return tree.Bin(op, left, right), nil
}

func (p *Parser) parseAddition() (tree.Node, error) {
	left, err := p.parseMultiplication()
	if err != nil {
		return nil, err
	}
	for {
		var op tree.Op
		switch p.current().Type {
		case TokenPlus:
			op = tree.OpAdd
		case TokenMinus:
			op = tree.OpSub
		default:
			return left, nil
		}
		p.advance()
		right, err := p.parseMultiplication()
		if err != nil {
			return nil, err
		}
		left = tree.Bin(op, left, right)
	}
}

var multiplicativeOps = map[TokenType]tree.Op{
	TokenStar: tree.OpMul, TokenSlash: tree.OpDiv,
	TokenPercent: tree.OpMod, TokenIntDiv: tree.OpIntDiv,
}

func (p *Parser) parseMultiplication() (tree.Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := multiplicativeOps[p.current().Type]
		if !ok {
			return left, nil
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = tree.Bin(op, left, right)
	}
}

func (p *Parser) parseUnary() (tree.Node, error) {
	if p.current().Type == TokenMinus {
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		// Fold negative literals so they print back as written.
		if c, ok := operand.(*tree.Constant); ok {
			switch c.Value.Type() {
			case types.TypeInt:
				return tree.Int(-c.Value.AsInt()), nil
			case types.TypeDouble:
				return tree.Double(-c.Value.AsDouble()), nil
			}
		}
		return tree.Neg(operand), nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (tree.Node, error) {
	start := p.current()
	node, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		switch tok := p.current(); tok.Type {
		case TokenDot:
			p.advance()
			name, err := p.expect(TokenIdent, "member name after '.'")
			if err != nil {
				return nil, err
			}
			node = tree.Field(node, name.Value)
		case TokenLBracket:
			p.advance()
			index, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokenRBracket, "']'"); err != nil {
				return nil, err
			}
			node = tree.At(node, index)
		case TokenLParen:
			name, ok := qualifiedName(node)
			if !ok {
				return nil, syntaxErrorf(tok.Pos, "only named functions can be called; use use(f, ...) to splice a function value")
			}
			node, err = p.parseCall(start, name)
			if err != nil {
				return nil, err
			}
		default:
			return node, nil
		}
	}
}

// qualifiedName returns the dotted name denoted by a chain of static member
// reads, such as text.upper.
func qualifiedName(n tree.Node) (string, bool) {
	var parts []string
	for {
		m, ok := n.(*tree.Member)
		if !ok {
			return "", false
		}
		parts = append(parts, m.Name)
		if m.Object == nil {
			break
		}
		n = m.Object
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "."), true
}

// parseCall parses the argument list of a call to name. The reserved names
// use and if build splice points and conditionals.
func (p *Parser) parseCall(start Token, name string) (tree.Node, error) {
	args, err := p.parseArgList()
	if err != nil {
		return nil, err
	}
	switch name {
	case tree.UseMethod.Name:
		if len(args) == 0 {
			return nil, syntaxErrorf(start.Pos, "use requires a function argument")
		}
		return tree.Use(args[0], args[1:]...), nil
	case "if":
		if len(args) != 3 {
			return nil, syntaxErrorf(start.Pos, "if requires 3 arguments, got %d", len(args))
		}
		return tree.If(args[0], args[1], args[2]), nil
	}
	return tree.CallOf(name, args...), nil
}

func (p *Parser) parsePrimary() (tree.Node, error) {
	tok := p.current()

	switch tok.Type {
	case TokenInt:
		p.advance()
		return tree.Int(tok.IntVal), nil
	case TokenFloat:
		p.advance()
		return tree.Double(tok.FloatVal), nil
	case TokenString:
		p.advance()
		return tree.Str(tok.StrVal), nil
	case TokenTrue:
		p.advance()
		return tree.Bool(true), nil
	case TokenFalse:
		p.advance()
		return tree.Bool(false), nil
	case TokenNull:
		p.advance()
		return tree.Null(), nil
	case TokenIdent:
		p.advance()
		if param, ok := p.scope.lookup(tok.Value); ok {
			return param, nil
		}
		return tree.Static(tok.Value), nil
	case TokenLParen:
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen, "')'"); err != nil {
			return nil, err
		}
		return expr, nil
	case TokenLBracket:
		return p.parseListLiteral()
	case TokenLBrace:
		return p.parseMapLiteral()
	case TokenFn:
		return p.parseLambda()
	default:
		return nil, syntaxErrorf(tok.Pos, "unexpected token %s (%q)", tok.Type, tok.Value)
	}
}

// parseLambda parses fn(x, y: int) => body. Each parameter gets a fresh
// identity visible only inside body.
func (p *Parser) parseLambda() (tree.Node, error) {
	p.advance() // fn
	if _, err := p.expect(TokenLParen, "'(' after fn"); err != nil {
		return nil, err
	}

	var params []*tree.Parameter
	for p.current().Type != TokenRParen {
		if len(params) > 0 {
			if _, err := p.expect(TokenComma, "',' between parameters"); err != nil {
				return nil, err
			}
		}
		name, err := p.expect(TokenIdent, "parameter name")
		if err != nil {
			return nil, err
		}
		typ := types.TypeAny
		if p.current().Type == TokenColon {
			p.advance()
			tn, err := p.expectTypeName()
			if err != nil {
				return nil, err
			}
			if typ, err = types.ParseValueType(tn.Value); err != nil {
				return nil, syntaxErrorf(tn.Pos, "%v", err)
			}
		}
		params = append(params, tree.Param(name.Value, typ))
	}
	p.advance() // )

	if _, err := p.expect(TokenArrow, "'=>'"); err != nil {
		return nil, err
	}

	p.scope = &binding{parent: p.scope, params: params}
	body, err := p.parseExpression()
	p.scope = p.scope.parent
	if err != nil {
		return nil, err
	}
	return tree.Func(types.TypeAny, body, params...), nil
}

// expectTypeName accepts an identifier or the null keyword as a type name.
func (p *Parser) expectTypeName() (Token, error) {
	tok := p.current()
	if tok.Type == TokenIdent || tok.Type == TokenNull {
		p.advance()
		return tok, nil
	}
	return tok, syntaxErrorf(tok.Pos, "expected type name, got %s", tok.Type)
}

func (p *Parser) parseListLiteral() (tree.Node, error) {
	p.advance() // [
	elements := []tree.Node{}
	for p.current().Type != TokenRBracket {
		if len(elements) > 0 {
			if _, err := p.expect(TokenComma, "',' in list"); err != nil {
				return nil, err
			}
		}
		elem, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		elements = append(elements, elem)
	}
	p.advance() // ]
	return tree.ListOf(elements...), nil
}

func (p *Parser) parseMapLiteral() (tree.Node, error) {
	p.advance() // {
	out := &tree.Map{Keys: []tree.Node{}, Values: []tree.Node{}}
	for p.current().Type != TokenRBrace {
		if len(out.Keys) > 0 {
			if _, err := p.expect(TokenComma, "',' in map literal"); err != nil {
				return nil, err
			}
		}
		key, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenColon, "':' in map literal"); err != nil {
			return nil, err
		}
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		out.Keys = append(out.Keys, key)
		out.Values = append(out.Values, value)
	}
	p.advance() // }
	return out, nil
}

func (p *Parser) parseArgList() ([]tree.Node, error) {
	if _, err := p.expect(TokenLParen, "'('"); err != nil {
		return nil, err
	}
	var args []tree.Node
	for p.current().Type != TokenRParen {
		if len(args) > 0 {
			if _, err := p.expect(TokenComma, "',' in arguments"); err != nil {
				return nil, err
			}
		}
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}
	p.advance() // )
	return args, nil
}
