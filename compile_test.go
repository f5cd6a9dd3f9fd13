package oomph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// compileToCStr drives the full lex/parse/type/emit pipeline and
// returns the generated translation unit, mirroring what
// cmd/oomph/main.go's compileToC does minus the --c-code/cc plumbing.
func compileToCStr(t *testing.T, src string) string {
	t.Helper()
	toks, err := NewLexer(src, 4).Tokenize()
	require.NoError(t, err)
	f, err := NewParser(toks, 4).ParseFile()
	require.NoError(t, err)
	unit, err := NewTyper().TypeFile(f)
	require.NoError(t, err)
	return EmitC(unit)
}

func TestCompileEndToEndScenarios(t *testing.T) {
	t.Run("add two ints and print the result", func(t *testing.T) {
		c := compileToCStr(t, "func main() -> void:\n    print_int(add(1, 2))\nfunc add(int x, int y) -> int:\n    return x + y\n")
		assert.Contains(t, c, "var_main(void)")
		assert.Contains(t, c, "var_print_int(")
		assert.Contains(t, c, "var_add(")
	})

	t.Run("string repeat", func(t *testing.T) {
		c := compileToCStr(t, `func main() -> void:
    let s = "hello"
    print(s.repeat(3))
`)
		assert.Contains(t, c, "meth_Str_repeat(")
		assert.Contains(t, c, "var_print(")
	})

	t.Run("List[int] push/length/get", func(t *testing.T) {
		c := compileToCStr(t, `func main() -> void:
    let xs = new List[int]()
    xs.push(10)
    xs.push(20)
    print_int(xs.length())
    print_int(xs.get(1))
`)
		assert.Contains(t, c, "struct class_List_int {")
		assert.Contains(t, c, "meth_List_int_push(")
		assert.Contains(t, c, "meth_List_int_length(")
		assert.Contains(t, c, "meth_List_int_get(")
	})

	t.Run("if/else branch on int equality", func(t *testing.T) {
		c := compileToCStr(t, `func main() -> void:
    let x = 1
    if x == 1:
        print("yes")
    else:
        print("no")
`)
		assert.Contains(t, c, "if (")
		assert.Contains(t, c, "} else {")
		assert.Contains(t, c, "string0_yes")
		assert.Contains(t, c, "string1_no")
	})

	t.Run("union constructed from a member dispatches through switch", func(t *testing.T) {
		c := compileToCStr(t, `class BoxInt:
    int n
class BoxStr:
    Str s
typedef IntOrStr = BoxInt | BoxStr
func describe(IntOrStr v) -> void:
    switch v:
        case BoxInt:
            print_int(v.n)
        case BoxStr:
            print(v.s)
func main() -> void:
    describe(new BoxStr("hi"))
`)
		assert.Contains(t, c, "struct class_IntOrStr {")
		assert.Contains(t, c, ".membernum = 1")
		assert.Contains(t, c, "switch (")
	})

	t.Run("C-style for loop prints 0 1 2", func(t *testing.T) {
		c := compileToCStr(t, "func main() -> void:\n    for let i = 0; i < 3; i = i + 1:\n        print_int(i)\n")
		assert.Contains(t, c, "while (")
		assert.Regexp(t, `loop\d+_continue:`, c)
		assert.Contains(t, c, "var_print_int(")
	})
}

func TestCompileBoundaryTests(t *testing.T) {
	t.Run("max int64 literal is accepted", func(t *testing.T) {
		c := compileToCStr(t, "func f() -> int:\n    return 9223372036854775807\n")
		assert.Contains(t, c, "9223372036854775807LL")
	})

	t.Run("int64 overflow literal is rejected at type time", func(t *testing.T) {
		_, err := typeSrc(t, "func f() -> int:\n    return 9223372036854775808\n")
		require.Error(t, err)
		assert.Equal(t, StageType, err.(*CompileError).Stage)
	})

	t.Run("continue outside a loop fails at type time", func(t *testing.T) {
		_, err := typeSrc(t, "func f() -> void:\n    continue\n")
		require.Error(t, err)
		assert.Equal(t, StageType, err.(*CompileError).Stage)
	})

	t.Run("string interpolation splices name.to_string() at the brace", func(t *testing.T) {
		unit := mustType(t, `func f(int name) -> void:
    let s = "n = {name}"
`)
		create := unit.Funcs[0].Body[0].(*TCreateLocalVar)
		outer, ok := create.Value.(*TSetRef)
		require.True(t, ok)
		concat, ok := outer.Value.(*TStrConcat)
		require.True(t, ok)
		inner, ok := concat.Left.(*TSetRef)
		require.True(t, ok)
		innerConcat, ok := inner.Value.(*TStrConcat)
		require.True(t, ok)
		rightHolder, ok := innerConcat.Right.(*TSetRef)
		require.True(t, ok)
		_, isCall := rightHolder.Value.(*TReturningCall)
		assert.True(t, isCall)
	})
}
