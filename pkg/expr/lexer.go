package expr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// SyntaxError reports malformed expression source.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at position %d: %s", e.Pos, e.Msg)
}

func syntaxErrorf(pos int, format string, args ...any) *SyntaxError {
	return &SyntaxError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// Lexer tokenizes an expression string.
type Lexer struct {
	input string
	pos   int
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// Tokenize scans the entire input. The last token is always TokenEOF.
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens, nil
		}
	}
}

func (l *Lexer) next() (Token, error) {
	l.skipWhitespace()
	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: l.pos}, nil
	}

	ch := l.input[l.pos]
	switch {
	case ch == '"' || ch == '\'':
		return l.readString(ch)
	case ch >= '0' && ch <= '9':
		return l.readNumber()
	case isIdentStart(ch):
		return l.readIdentifier(), nil
	}

	rest := l.input[l.pos:]
	for _, op := range operators {
		if strings.HasPrefix(rest, op.text) {
			tok := Token{Type: op.typ, Value: op.text, Pos: l.pos}
			l.pos += len(op.text)
			return tok, nil
		}
	}
	return Token{}, syntaxErrorf(l.pos, "unexpected character %q", string(ch))
}

func (l *Lexer) readString(quote byte) (Token, error) {
	start := l.pos
	l.pos++

	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch {
		case ch == quote:
			l.pos++
			return Token{Type: TokenString, Value: l.input[start:l.pos], StrVal: sb.String(), Pos: start}, nil
		case ch == '\\' && l.pos+1 < len(l.input):
			l.pos++
			sb.WriteString(unescape(l.input[l.pos]))
		default:
			sb.WriteByte(ch)
		}
		l.pos++
	}
	return Token{}, syntaxErrorf(start, "unterminated string")
}

func unescape(c byte) string {
	switch c {
	case 'n':
		return "\n"
	case 't':
		return "\t"
	case 'r':
		return "\r"
	case '\\', '"', '\'':
		return string(c)
	}
	return "\\" + string(c)
}

// readNumber reads an integer or float literal. A dot not followed by a
// digit ends the number so that member access on literals still lexes.
func (l *Lexer) readNumber() (Token, error) {
	start := l.pos
	isFloat := false

scan:
	for l.pos < len(l.input) {
		switch ch := l.input[l.pos]; {
		case ch >= '0' && ch <= '9':
			l.pos++
		case ch == '.' && !isFloat && l.pos+1 < len(l.input) && isDigit(l.input[l.pos+1]):
			isFloat = true
			l.pos++
		case ch == 'e' || ch == 'E':
			isFloat = true
			l.pos++
			if l.pos < len(l.input) && (l.input[l.pos] == '+' || l.input[l.pos] == '-') {
				l.pos++
			}
		default:
			break scan
		}
	}

	raw := l.input[start:l.pos]
	if isFloat {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Token{}, syntaxErrorf(start, "invalid float %q", raw)
		}
		return Token{Type: TokenFloat, Value: raw, FloatVal: f, Pos: start}, nil
	}
	i, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Token{}, syntaxErrorf(start, "invalid integer %q", raw)
	}
	return Token{Type: TokenInt, Value: raw, IntVal: i, Pos: start}, nil
}

func (l *Lexer) readIdentifier() Token {
	start := l.pos
	for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
		l.pos++
	}
	word := l.input[start:l.pos]
	if typ, ok := keywords[word]; ok {
		return Token{Type: typ, Value: word, Pos: start}
	}
	return Token{Type: TokenIdent, Value: word, Pos: start}
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}
