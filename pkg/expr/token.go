// Package expr is the textual front end for expression trees. It tokenizes
// and parses the expression language into tree nodes, binding identifiers
// declared by enclosing function literals to Parameter identities.
package expr

// TokenType represents the type of a lexical token.
type TokenType int

const (
	// Literals
	TokenInt    TokenType = iota // integer literal
	TokenFloat                   // float literal
	TokenString                  // string literal
	TokenTrue                    // true
	TokenFalse                   // false
	TokenNull                    // null

	TokenIdent // identifier
	TokenFn    // fn
	TokenArrow // =>
	TokenDot   // .
	TokenComma // ,
	TokenColon // :

	TokenLParen   // (
	TokenRParen   // )
	TokenLBracket // [
	TokenRBracket // ]
	TokenLBrace   // {
	TokenRBrace   // }

	TokenPlus    // +
	TokenMinus   // -
	TokenStar    // *
	TokenSlash   // /
	TokenPercent // %
	TokenIntDiv  // //

	TokenEq  // ==
	TokenNeq // !=
	TokenLt  // <
	TokenGt  // >
	TokenLte // <=
	TokenGte // >=

	TokenAnd // and
	TokenOr  // or
	TokenNot // not
	TokenIn  // in

	TokenEOF
)

var tokenNames = [...]string{
	TokenInt: "INT", TokenFloat: "FLOAT", TokenString: "STRING",
	TokenTrue: "TRUE", TokenFalse: "FALSE", TokenNull: "NULL",
	TokenIdent: "IDENT", TokenFn: "FN", TokenArrow: "ARROW",
	TokenDot: "DOT", TokenComma: "COMMA", TokenColon: "COLON",
	TokenLParen: "LPAREN", TokenRParen: "RPAREN",
	TokenLBracket: "LBRACKET", TokenRBracket: "RBRACKET",
	TokenLBrace: "LBRACE", TokenRBrace: "RBRACE",
	TokenPlus: "PLUS", TokenMinus: "MINUS", TokenStar: "STAR",
	TokenSlash: "SLASH", TokenPercent: "PERCENT", TokenIntDiv: "INTDIV",
	TokenEq: "EQ", TokenNeq: "NEQ", TokenLt: "LT", TokenGt: "GT",
	TokenLte: "LTE", TokenGte: "GTE",
	TokenAnd: "AND", TokenOr: "OR", TokenNot: "NOT", TokenIn: "IN",
	TokenEOF: "EOF",
}

// String returns a debug-friendly representation of the token type.
func (t TokenType) String() string {
	if int(t) < len(tokenNames) && tokenNames[t] != "" {
		return tokenNames[t]
	}
	return "UNKNOWN"
}

// Token represents a single lexical token.
type Token struct {
	Type     TokenType
	Value    string  // raw source text
	IntVal   int64   // TokenInt
	FloatVal float64 // TokenFloat
	StrVal   string  // TokenString, escapes resolved
	Pos      int     // byte offset in source
}

// keywords maps reserved words to their token types. Boolean and null
// literals accept the capitalized spellings as well.
var keywords = map[string]TokenType{
	"true": TokenTrue, "True": TokenTrue, "TRUE": TokenTrue,
	"false": TokenFalse, "False": TokenFalse, "FALSE": TokenFalse,
	"null": TokenNull, "None": TokenNull,
	"and": TokenAnd,
	"or":  TokenOr,
	"not": TokenNot,
	"in":  TokenIn,
	"fn":  TokenFn,
}

// operators lists punctuation, longest first so that "//" wins over "/".
var operators = []struct {
	text string
	typ  TokenType
}{
	{"//", TokenIntDiv}, {"==", TokenEq}, {"!=", TokenNeq},
	{"<=", TokenLte}, {">=", TokenGte}, {"=>", TokenArrow},
	{"+", TokenPlus}, {"-", TokenMinus}, {"*", TokenStar},
	{"/", TokenSlash}, {"%", TokenPercent},
	{"<", TokenLt}, {">", TokenGt},
	{"(", TokenLParen}, {")", TokenRParen},
	{"[", TokenLBracket}, {"]", TokenRBracket},
	{"{", TokenLBrace}, {"}", TokenRBrace},
	{".", TokenDot}, {",", TokenComma}, {":", TokenColon},
}
