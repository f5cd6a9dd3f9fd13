package oomph

import "fmt"

// TokenKind enumerates the lexer's output vocabulary (spec.md §3,
// "Token"). assert_<line> isn't a distinct constant: it's represented
// as KindAssert with the line number carried on Token.AssertLine,
// since Go has no dynamic-string token kinds the way the Python
// tokenizer does (tokentype = f"assert_{lineno}").
type TokenKind int

const (
	KindKeyword TokenKind = iota
	KindIdentifier
	KindInt
	KindFloat
	KindOneLineString
	KindMultiLineString
	KindOperator
	KindNewline
	KindIndent
	KindBeginBlock
	KindEndBlock
	KindAssert
	KindEOF
)

func (k TokenKind) String() string {
	switch k {
	case KindKeyword:
		return "keyword"
	case KindIdentifier:
		return "identifier"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindOneLineString:
		return "oneline_string"
	case KindMultiLineString:
		return "multiline_string"
	case KindOperator:
		return "operator"
	case KindNewline:
		return "newline"
	case KindIndent:
		return "indent"
	case KindBeginBlock:
		return "begin_block"
	case KindEndBlock:
		return "end_block"
	case KindAssert:
		return "assert"
	case KindEOF:
		return "eof"
	default:
		return "unknown"
	}
}

// Token is a (kind, lexeme) pair plus the Span it came from. Tokens
// are ephemeral: the parser consumes each one exactly once.
type Token struct {
	Kind       TokenKind
	Lexeme     string
	Span       Span
	AssertLine int // valid only when Kind == KindAssert
}

func (t Token) String() string {
	if t.Kind == KindAssert {
		return fmt.Sprintf("assert_%d", t.AssertLine)
	}
	return fmt.Sprintf("%s(%q)", t.Kind, t.Lexeme)
}

var keywords = map[string]bool{
	"let": true, "import": true, "func": true, "meth": true,
	"class": true, "typedef": true, "switch": true, "case": true,
	"new": true, "return": true, "pass": true, "mod": true,
	"and": true, "or": true, "not": true, "in": true,
	"if": true, "elif": true, "else": true, "while": true, "for": true,
	"continue": true, "break": true, "null": true,
}
