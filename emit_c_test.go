package oomph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func emitSrc(t *testing.T, src string) string {
	t.Helper()
	unit := mustType(t, src)
	return EmitC(unit)
}

func TestEmitCFunctions(t *testing.T) {
	t.Run("simple function emits a C function with the var_ prefix", func(t *testing.T) {
		c := emitSrc(t, "func add(int a, int b) -> int:\n    return a + b\n")
		assert.Contains(t, c, "var_add(")
		assert.Contains(t, c, "retval = ")
		assert.Contains(t, c, "goto out;")
		assert.Contains(t, c, "out: (void)0;")
	})

	t.Run("void function has no retval declaration", func(t *testing.T) {
		c := emitSrc(t, "func f() -> void:\n    pass\n")
		assert.NotContains(t, c, "retval")
	})

	t.Run("args with no parameters emit (void)", func(t *testing.T) {
		c := emitSrc(t, "func f() -> int:\n    return 1\n")
		assert.Contains(t, c, "var_f(void)")
	})
}

func TestEmitCCallsAreCommaExpressions(t *testing.T) {
	t.Run("free function call evaluates args into fresh temporaries first", func(t *testing.T) {
		c := emitSrc(t, "func g(int x) -> int:\n    return x\nfunc f() -> int:\n    return g(1)\n")
		assert.Contains(t, c, "var_g(")
		assert.Regexp(t, `\( var\d+ = \(.*\), var_g\(var\d+\) \)`, c)
	})

	t.Run("method call prepends the receiver as the first argument", func(t *testing.T) {
		c := emitSrc(t, `class Point:
    int x
meth Point getX() -> int:
    return self.x
func f(Point p) -> int:
    return p.getX()
`)
		assert.Contains(t, c, "meth_Point_getX(")
	})
}

func TestEmitCOperators(t *testing.T) {
	t.Run("mod lowers to the C % operator", func(t *testing.T) {
		c := emitSrc(t, "func f() -> int:\n    return 7 mod 2\n")
		assert.Contains(t, c, "7LL) % (")
	})

	t.Run("division emits a C / between the two lifted doubles", func(t *testing.T) {
		c := emitSrc(t, "func f() -> float:\n    return 4 / 2\n")
		assert.Contains(t, c, "(double)")
		assert.Contains(t, c, " / ")
	})

	t.Run("bool and/or/not lower to && || !", func(t *testing.T) {
		c := emitSrc(t, "func f() -> bool:\n    return true and false or not true\n")
		assert.Contains(t, c, "&&")
		assert.Contains(t, c, "||")
		assert.Contains(t, c, "!(")
	})
}

func TestEmitCStringLiterals(t *testing.T) {
	t.Run("identical literal text reuses the same interned symbol", func(t *testing.T) {
		c := emitSrc(t, `func f() -> void:
    let a = "hi"
    let b = "hi"
`)
		assert.Equal(t, 1, strings.Count(c, "struct class_Str *string0_hi ="))
		assert.Equal(t, 2, strings.Count(c, "= string0_hi;"))
	})

	t.Run("distinct literal text gets distinct interned symbols", func(t *testing.T) {
		c := emitSrc(t, `func f() -> void:
    let a = "hi"
    let b = "bye"
`)
		assert.Contains(t, c, "string0_hi")
		assert.Contains(t, c, "string1_bye")
	})

	t.Run("string concat uses the runtime's copy-then-append ABI", func(t *testing.T) {
		c := emitSrc(t, `func f() -> Str:
    return "a" + "b"
`)
		assert.Contains(t, c, "cstr_to_string(")
		assert.Contains(t, c, "string_concat_inplace(&")
	})
}

func TestEmitCGenerics(t *testing.T) {
	t.Run("List[int] instantiation emits its struct and methods once", func(t *testing.T) {
		c := emitSrc(t, `func f() -> void:
    let xs = new List[int]()
    xs.push(1)
    xs.push(2)
`)
		assert.Equal(t, 1, strings.Count(c, "struct class_List_int {"))
		assert.Contains(t, c, "meth_List_int_push(")
		assert.Contains(t, c, "ctor_List_int(void)")
	})

	t.Run("list display lowers to a comma-expression of ctor then pushes", func(t *testing.T) {
		c := emitSrc(t, "func f() -> void:\n    let xs = [1, 2, 3]\n")
		assert.Contains(t, c, "ctor_List_int()")
		assert.Contains(t, c, "meth_List_int_push(")
	})

	t.Run("optional[T] instantiation emits isnull/value struct", func(t *testing.T) {
		c := emitSrc(t, "func f() -> optional[int]:\n    return null\n")
		assert.Contains(t, c, "struct class_optional_int {")
		assert.Contains(t, c, "bool isnull;")
	})
}

func TestEmitCClasses(t *testing.T) {
	t.Run("class emits struct, ctor, dtor, and methods", func(t *testing.T) {
		c := emitSrc(t, `class Point:
    int x
    int y
meth Point sum() -> int:
    return self.x + self.y
`)
		assert.Contains(t, c, "struct class_Point {")
		assert.Contains(t, c, "REFCOUNT_HEADER")
		assert.Contains(t, c, "ctor_Point(")
		assert.Contains(t, c, "dtor_Point(")
		assert.Contains(t, c, "meth_Point_sum(")
	})

	t.Run("refcounted member is increfed in the constructor and decrefed in the destructor", func(t *testing.T) {
		c := emitSrc(t, `class Box:
    Str label
`)
		assert.Contains(t, c, "incref((var_label))")
		assert.Contains(t, c, "decref((obj->memb_label), dtor_Str)")
	})

	t.Run("non-refcounted member skips incref/decref", func(t *testing.T) {
		c := emitSrc(t, `class Point:
    int x
`)
		assert.Contains(t, c, "(void)0;")
	})
}

func TestEmitCUnions(t *testing.T) {
	const src = `class Circle:
    float radius
class Square:
    float side
typedef Shape = Circle | Square
func area(Shape s) -> float:
    switch s:
        case Circle:
            return s.radius
        case Square:
            return s.side
`

	t.Run("union emits a tagged struct with a membernum discriminant", func(t *testing.T) {
		c := emitSrc(t, src)
		assert.Contains(t, c, "struct class_Shape {")
		assert.Contains(t, c, "short membernum;")
		assert.Contains(t, c, "item0;")
		assert.Contains(t, c, "item1;")
	})

	t.Run("switch lowers to a C switch over membernum", func(t *testing.T) {
		c := emitSrc(t, src)
		assert.Contains(t, c, "switch (")
		assert.Contains(t, c, ".membernum) {")
		assert.Contains(t, c, "case 0:")
		assert.Contains(t, c, "case 1:")
		assert.Contains(t, c, "default: assert(0);")
	})

	t.Run("union dispatches to_string and decref by membernum", func(t *testing.T) {
		c := emitSrc(t, src)
		assert.Contains(t, c, "meth_Shape_to_string(struct class_Shape obj)")
		assert.Contains(t, c, "decref_Shape(struct class_Shape obj)")
	})

	t.Run("constructing a member as the union tags membernum at the construction site", func(t *testing.T) {
		src := `class Circle:
    float radius
class Square:
    float side
typedef Shape = Circle | Square
func mkCircle(float r) -> Shape:
    return new Circle(r)
`
		c := emitSrc(t, src)
		assert.Contains(t, c, ".membernum = 0")
	})
}

func TestEmitCLoopsAndControlFlow(t *testing.T) {
	t.Run("for loop lowers to an init then a while with a continue label", func(t *testing.T) {
		c := emitSrc(t, "func f() -> void:\n    for let i = 0; i < 3; i = i + 1:\n        pass\n")
		assert.Contains(t, c, "while (")
		assert.Regexp(t, `loop\d+_continue:`, c)
	})

	t.Run("continue emits a goto to the loop's continue label", func(t *testing.T) {
		c := emitSrc(t, "func f() -> void:\n    while true:\n        continue\n")
		assert.Regexp(t, `goto loop\d+_continue;`, c)
	})

	t.Run("break emits a goto to the loop's break label", func(t *testing.T) {
		c := emitSrc(t, "func f() -> void:\n    while true:\n        break\n")
		assert.Regexp(t, `goto loop\d+_break;`, c)
		assert.Regexp(t, `loop\d+_break: \(void\)0;`, c)
	})

	t.Run("break inside a union switch nested in a loop targets the loop, not the switch", func(t *testing.T) {
		c := emitSrc(t, `class BoxInt:
    int n
class BoxStr:
    Str s
typedef IntOrStr = BoxInt | BoxStr
func f(IntOrStr v) -> void:
    while true:
        switch v:
            case BoxInt:
                break
            case BoxStr:
                pass
`)
		assert.Regexp(t, `goto loop\d+_break;`, c)
	})

	t.Run("if/elif/else lowers to if/else if/else", func(t *testing.T) {
		c := emitSrc(t, "func f() -> void:\n    if true:\n        pass\n    elif false:\n        pass\n    else:\n        pass\n")
		assert.Contains(t, c, "if (true) {")
		assert.Contains(t, c, "} else if (false) {")
		assert.Contains(t, c, "} else {")
	})
}

func TestEmitCTopLevelPrelude(t *testing.T) {
	t.Run("translation unit includes the runtime header", func(t *testing.T) {
		c := emitSrc(t, "func f() -> void:\n    pass\n")
		require.True(t, len(c) > 0)
		assert.Contains(t, c, `#include "lib/oomph.h"`)
	})
}
