package oomph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(toks []Token) []TokenKind {
	out := make([]TokenKind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestLexerBasicTokens(t *testing.T) {
	t.Run("identifiers keywords and operators", func(t *testing.T) {
		toks, err := NewLexer("let x = 1 + 2", 4).Tokenize()
		require.NoError(t, err)
		require.Equal(t, []TokenKind{
			KindKeyword, KindIdentifier, KindOperator, KindInt,
			KindOperator, KindInt, KindNewline, KindEOF,
		}, kinds(toks))
		assert.Equal(t, "let", toks[0].Lexeme)
		assert.Equal(t, "x", toks[1].Lexeme)
		assert.Equal(t, "=", toks[2].Lexeme)
	})

	t.Run("leading zero int is just 0, not a multi-digit literal", func(t *testing.T) {
		toks, err := NewLexer("3.14 0 07", 4).Tokenize()
		require.NoError(t, err)
		require.Equal(t, []TokenKind{KindFloat, KindInt, KindInt, KindInt, KindNewline, KindEOF}, kinds(toks))
		assert.Equal(t, "0", toks[1].Lexeme)
		assert.Equal(t, "0", toks[2].Lexeme)
		assert.Equal(t, "7", toks[3].Lexeme)
	})

	t.Run("tabs are illegal", func(t *testing.T) {
		_, err := NewLexer("\tlet x = 1", 4).Tokenize()
		require.Error(t, err)
		ce := err.(*CompileError)
		assert.Equal(t, StageLex, ce.Stage)
	})

	t.Run("comments are dropped", func(t *testing.T) {
		toks, err := NewLexer("let x = 1 # comment here\n", 4).Tokenize()
		require.NoError(t, err)
		assert.Equal(t, []TokenKind{
			KindKeyword, KindIdentifier, KindOperator, KindInt, KindNewline, KindEOF,
		}, kinds(toks))
	})

	t.Run("not in fuses to a single keyword", func(t *testing.T) {
		toks, err := NewLexer("x not in y", 4).Tokenize()
		require.NoError(t, err)
		require.Len(t, toks, 5)
		assert.Equal(t, KindKeyword, toks[1].Kind)
		assert.Equal(t, "not in", toks[1].Lexeme)
	})

	t.Run("assert carries its line number", func(t *testing.T) {
		toks, err := NewLexer("assert true\nassert false", 4).Tokenize()
		require.NoError(t, err)
		require.Equal(t, KindAssert, toks[0].Kind)
		assert.Equal(t, 1, toks[0].AssertLine)
	})

	t.Run("one line and multi line strings", func(t *testing.T) {
		toks, err := NewLexer(`"hello {name}"`, 4).Tokenize()
		require.NoError(t, err)
		require.Equal(t, KindOneLineString, toks[0].Kind)

		toks, err = NewLexer("\"\"\"hi\nthere\"\"\"", 4).Tokenize()
		require.NoError(t, err)
		require.Equal(t, KindMultiLineString, toks[0].Kind)
	})
}

func TestLexerBlockSynthesis(t *testing.T) {
	t.Run("synthesizes begin/end block around an indented body", func(t *testing.T) {
		src := "if true:\n    pass\nelse:\n    pass\n"
		toks, err := NewLexer(src, 4).Tokenize()
		require.NoError(t, err)

		var got []TokenKind
		for _, tk := range toks {
			got = append(got, tk.Kind)
		}
		assert.Equal(t, []TokenKind{
			KindKeyword, KindIdentifier, KindBeginBlock,
			KindKeyword, KindNewline,
			KindEndBlock,
			KindKeyword, KindBeginBlock,
			KindKeyword, KindNewline,
			KindEndBlock,
			KindEOF,
		}, got)
	})

	t.Run("bad indent width after colon is a lex error", func(t *testing.T) {
		src := "if true:\n  pass\n"
		_, err := NewLexer(src, 4).Tokenize()
		require.Error(t, err)
		ce := err.(*CompileError)
		assert.Equal(t, StageLex, ce.Stage)
	})

	t.Run("unexpected indent without a preceding colon errors", func(t *testing.T) {
		src := "pass\n    pass\n"
		_, err := NewLexer(src, 4).Tokenize()
		require.Error(t, err)
	})

	t.Run("nested blocks close out in order", func(t *testing.T) {
		src := "while true:\n    if true:\n        pass\n    pass\n"
		toks, err := NewLexer(src, 4).Tokenize()
		require.NoError(t, err)

		beginCount, endCount := 0, 0
		for _, tk := range toks {
			if tk.Kind == KindBeginBlock {
				beginCount++
			}
			if tk.Kind == KindEndBlock {
				endCount++
			}
		}
		assert.Equal(t, 2, beginCount)
		assert.Equal(t, 2, endCount)
	})
}

func TestLexerParenSensitiveWhitespace(t *testing.T) {
	t.Run("newlines inside parens are dropped", func(t *testing.T) {
		src := "f(1,\n   2)\n"
		toks, err := NewLexer(src, 4).Tokenize()
		require.NoError(t, err)
		require.Equal(t, []TokenKind{
			KindIdentifier, KindOperator, KindInt, KindOperator,
			KindInt, KindOperator, KindNewline, KindEOF,
		}, kinds(toks))
	})

	t.Run("mismatched brackets are a lex error", func(t *testing.T) {
		_, err := NewLexer("f(1, 2]\n", 4).Tokenize()
		require.Error(t, err)
	})

	t.Run("unclosed bracket is a lex error", func(t *testing.T) {
		_, err := NewLexer("f(1, 2\n", 4).Tokenize()
		require.Error(t, err)
	})

	t.Run("unmatched closing bracket is a lex error", func(t *testing.T) {
		_, err := NewLexer("1)\n", 4).Tokenize()
		require.Error(t, err)
	})
}

func TestLexerIntegerBoundary(t *testing.T) {
	t.Run("max int64 lexes as a single int token", func(t *testing.T) {
		toks, err := NewLexer("9223372036854775807", 4).Tokenize()
		require.NoError(t, err)
		require.Equal(t, KindInt, toks[0].Kind)
		assert.Equal(t, "9223372036854775807", toks[0].Lexeme)
	})
}
