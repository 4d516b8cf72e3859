// Package query implements the GQL (SELECT / WHERE / GROUP BY / PIVOT) query engine
package query

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenType represents the type of token
type TokenType int

const (
	TokenEnd TokenType = iota
	TokenIdentifier
	TokenNumber
	TokenString
	TokenBoolean
	TokenConstant
	TokenOperator // = < > <= >= != <> + - * / ( ) ,
	TokenKeyword  // and or not is
)

// Token represents a lexical token
type Token struct {
	Type    TokenType
	Literal string // name, string contents, symbol or keyword
	Number  float64
	Bool    bool
	Pos     int // byte offset in the clause text
}

// String returns a string representation of the token type
func (t TokenType) String() string {
	switch t {
	case TokenEnd:
		return "(end)"
	case TokenIdentifier:
		return "identifier"
	case TokenNumber:
		return "number"
	case TokenString:
		return "string"
	case TokenBoolean:
		return "boolean"
	case TokenConstant:
		return "constant"
	case TokenOperator:
		return "operator"
	case TokenKeyword:
		return "keyword"
	default:
		return fmt.Sprintf("TokenType(%d)", t)
	}
}

// symbol is the key of the token's parser production
func (t Token) symbol() string {
	if t.Type == TokenOperator || t.Type == TokenKeyword {
		return t.Literal
	}
	return t.Type.String()
}

var keywords = map[string]bool{
	"and": true,
	"or":  true,
	"not": true,
	"is":  true,
}

// Lexer tokenizes a single clause
type Lexer struct {
	input     string
	pos       int // next byte to read
	word      strings.Builder
	wordStart int
	tokens    []Token
}

// NewLexer creates a new lexer
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// Tokenize splits a clause into tokens terminated by an end token
func Tokenize(input string) ([]Token, error) {
	return NewLexer(input).Tokenize()
}

// Tokenize returns the complete token stream or the first lexical error
func (l *Lexer) Tokenize() ([]Token, error) {
	for l.pos < len(l.input) {
		start := l.pos
		r, size := utf8.DecodeRuneInString(l.input[l.pos:])
		l.pos += size

		switch {
		case r == '`':
			if err := l.readQuoted('`', TokenIdentifier, start); err != nil {
				return nil, err
			}
		case r == '\'' || r == '"':
			if err := l.readQuoted(byte(r), TokenString, start); err != nil {
				return nil, err
			}
		case isOperator(r):
			if err := l.flush(); err != nil {
				return nil, err
			}
			if err := l.readOperator(r, start); err != nil {
				return nil, err
			}
		case unicode.IsSpace(r):
			if err := l.flush(); err != nil {
				return nil, err
			}
		default:
			if l.word.Len() == 0 {
				l.wordStart = start
			}
			l.word.WriteRune(r)
		}
	}

	if err := l.flush(); err != nil {
		return nil, err
	}
	l.tokens = append(l.tokens, Token{Type: TokenEnd, Pos: len(l.input)})
	return l.tokens, nil
}

func (l *Lexer) peekByte() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) emit(tok Token) {
	l.tokens = append(l.tokens, tok)
}

func (l *Lexer) readOperator(r rune, start int) error {
	sym := string(r)
	next := l.peekByte()

	switch r {
	case '<':
		if next == '=' || next == '>' {
			sym += string(next)
			l.pos++
		}
	case '>':
		if next == '=' {
			sym += string(next)
			l.pos++
		}
	case '!':
		if next != '=' {
			return lexerError("'!' not followed by '='", start)
		}
		sym += string(next)
		l.pos++
	}

	l.emit(Token{Type: TokenOperator, Literal: sym, Pos: start})
	return nil
}

// readQuoted consumes a span up to the closing delimiter. The contents are
// taken verbatim: no escapes and no case folding.
func (l *Lexer) readQuoted(delim byte, typ TokenType, start int) error {
	if err := l.flush(); err != nil {
		return err
	}

	end := strings.IndexByte(l.input[l.pos:], delim)
	if end < 0 {
		return lexerError(fmt.Sprintf("%s needs a closing %c", typ, delim), start)
	}

	text := l.input[l.pos : l.pos+end]
	l.pos += end + 1
	l.emit(Token{Type: typ, Literal: text, Pos: start})
	return nil
}

// flush classifies the accumulated bare word, if any
func (l *Lexer) flush() error {
	if l.word.Len() == 0 {
		return nil
	}
	raw := l.word.String()
	l.word.Reset()

	word := strings.ToLower(raw)
	tok := Token{Pos: l.wordStart}

	switch {
	case keywords[word]:
		tok.Type = TokenKeyword
		tok.Literal = word
	case word == "true" || word == "false":
		tok.Type = TokenBoolean
		tok.Literal = word
		tok.Bool = word == "true"
	case isDigit(word[0]):
		num, err := strconv.ParseFloat(word, 64)
		if err != nil {
			return lexerError(fmt.Sprintf("invalid number literal %q", raw), l.wordStart)
		}
		tok.Type = TokenNumber
		tok.Literal = raw
		tok.Number = num
	case word == "null":
		tok.Type = TokenConstant
		tok.Literal = word
	default:
		tok.Type = TokenIdentifier
		tok.Literal = word
	}

	l.emit(tok)
	return nil
}

func isOperator(r rune) bool {
	return strings.ContainsRune("=<>!+-*/(),", r)
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9' || ch == '.'
}
