package oomph

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// fileEmitter is the top-level driver for §4.4: it owns the C
// translation unit's prelude (string interning, generic template
// expansion) and trailing declarations, and hands each function/method
// body to a fresh functionEmitter. Grounded closely on
// original_source/oomph/c_output.py's _FileEmitter/_FunctionEmitter
// split, re-expressed with the teacher's outputWriter/type-switch
// idiom (genc.go) instead of Python f-strings and isinstance chains.
type fileEmitter struct {
	strings          map[string]string // literal value -> C symbol
	stringOrder      []string
	beginning        strings.Builder
	ending           strings.Builder
	genericTypeNames map[*Type]string
	varCounter       int
}

var identSanitizer = regexp.MustCompile(`[^A-Za-z0-9]`)

func newFileEmitter() *fileEmitter {
	return &fileEmitter{
		strings:          map[string]string{},
		genericTypeNames: map[*Type]string{},
	}
}

// EmitC lowers a typed unit into a complete C translation unit. The
// four sections (header, generic/string prelude, function/class/union
// bodies, trailing union dispatchers) are assembled through an
// outputWriter: the header is followed by one blank line, and the
// remaining three sections are written back to back with no separator
// of their own.
func EmitC(unit *TUnit) string {
	fe := newFileEmitter()
	var body strings.Builder
	for _, fn := range unit.Funcs {
		body.WriteString(newFunctionEmitter(fe).emitFuncDef(fn, "var_"+fn.Name))
	}
	for _, cd := range unit.Classes {
		body.WriteString(fe.emitClassDef(cd))
	}
	for _, u := range unit.Unions {
		body.WriteString(fe.emitUnionDef(u))
	}

	out := newOutputWriter("\t")
	out.writel(`#include "lib/oomph.h"`)
	out.writel("")
	out.write(fe.beginning.String())
	out.write(body.String())
	out.write(fe.ending.String())
	return out.buffer.String()
}

func (fe *fileEmitter) freshVar() string {
	name := fmt.Sprintf("var%d", fe.varCounter)
	fe.varCounter++
	return name
}

// --- incref/decref/type-name plumbing ---

func (fe *fileEmitter) emitIncref(cExpr string, typ *Type) string {
	if !typ.Refcounted {
		return "(void)0;\n\t"
	}
	access := ""
	if typ.IsUnion() {
		access = ".val.item0"
	}
	return fmt.Sprintf("incref((%s)%s);\n\t", cExpr, access)
}

func (fe *fileEmitter) emitDecref(cExpr string, typ *Type) string {
	if typ.IsUnion() {
		return fmt.Sprintf("decref_%s((%s));\n\t", fe.typeCName(typ), cExpr)
	}
	if !typ.Refcounted {
		return "(void)0;\n\t"
	}
	return fmt.Sprintf("decref((%s), dtor_%s);\n\t", cExpr, fe.typeCName(typ))
}

// typeCName is the bare struct-name suffix for typ (no "struct "/"*"):
// a user type's own Name for non-generics, and a generated
// "List_int"-style name for generic instantiations, expanding the
// instantiation's C struct/methods into fe.beginning exactly once.
func (fe *fileEmitter) typeCName(typ *Type) string {
	if typ.GenericOrigin == nil {
		return typ.Name
	}
	if name, ok := fe.genericTypeNames[typ]; ok {
		return name
	}
	itemType := typ.GenericOrigin.Arg
	name := typ.GenericOrigin.Generic.Name + "_" + fe.typeCName(itemType)
	fe.genericTypeNames[typ] = name
	fe.beginning.WriteString(fe.genericTemplate(typ, name, itemType))
	fe.beginning.WriteString("\n")
	return name
}

func (fe *fileEmitter) emitType(typ *Type) string {
	if typ == nil {
		return "void"
	}
	switch typ.Name {
	case "int":
		return "int64_t"
	case "float":
		return "double"
	case "bool":
		return "bool"
	}
	if typ.Refcounted && !typ.IsUnion() {
		return "struct class_" + fe.typeCName(typ) + " *"
	}
	return "struct class_" + fe.typeCName(typ)
}

// emitString interns a string literal by value: the same text always
// maps to the same immortal C symbol (spec.md §6, "Immortal strings").
func (fe *fileEmitter) emitString(value string) string {
	if name, ok := fe.strings[value]; ok {
		return name
	}
	name := fmt.Sprintf("string%d_%s", len(fe.strings), truncate(identSanitizer.ReplaceAllString(value, ""), 30))
	fe.strings[value] = name
	fe.stringOrder = append(fe.stringOrder, value)

	var bytes []byte
	for i := 0; i < 8; i++ {
		bytes = append(bytes, 0xFF)
	}
	bytes = append(bytes, []byte(value)...)
	bytes = append(bytes, 0)

	var parts []string
	for _, b := range bytes {
		parts = append(parts, fmt.Sprintf("'\\x%02x'", b))
	}
	fe.beginning.WriteString(fmt.Sprintf(
		"struct class_Str *%s = (void*)(unsigned char[]){ %s };\n",
		name, strings.Join(parts, ", "),
	))
	return name
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// genericTemplate expands one List[T]/optional[T] instantiation into
// its C struct + constructor + methods, mirroring
// c_output.py's _generic_c_codes table.
func (fe *fileEmitter) genericTemplate(typ *Type, cname string, itemType *Type) string {
	itemC := fe.emitType(itemType)
	itemCName := fe.typeCName(itemType)
	increfVal := strings.TrimSuffix(fe.emitIncref("val", itemType), ";\n\t")
	decrefVal := strings.TrimSuffix(fe.emitDecref("val", itemType), ";\n\t")

	switch typ.GenericOrigin.Generic.Name {
	case "optional":
		return fmt.Sprintf(`
struct class_%[1]s {
	bool isnull;
	%[2]s value;
};

struct class_%[1]s ctor_%[1]s(%[2]s val)
{
	return (struct class_%[1]s){ false, val };
}

%[2]s meth_%[1]s_get(struct class_%[1]s opt)
{
	assert(!opt.isnull);
	%[2]s val = opt.value;
	%[4]s;
	return val;
}

bool meth_%[1]s_is_null(struct class_%[1]s opt)
{
	return opt.isnull;
}

struct class_Str *meth_%[1]s_to_string(struct class_%[1]s opt)
{
	if (opt.isnull)
		return cstr_to_string("null");
	struct class_Str *res = cstr_to_string("%[5]s(");
	struct class_Str *s = meth_%[3]s_to_string(opt.value);
	string_concat_inplace(&res, s->str);
	decref(s, dtor_Str);
	string_concat_inplace(&res, ")");
	return res;
}
`, cname, itemC, itemCName, increfVal, typ.Name)
	case "List":
		return fmt.Sprintf(`
struct class_%[1]s {
	REFCOUNT_HEADER
	int64_t len;
	int64_t alloc;
	%[2]s smalldata[8];
	%[2]s *data;
};

struct class_%[1]s *ctor_%[1]s(void)
{
	struct class_%[1]s *res = malloc(sizeof(*res));
	assert(res);
	res->refcount = 1;
	res->len = 0;
	res->data = res->smalldata;
	res->alloc = sizeof(res->smalldata)/sizeof(res->smalldata[0]);
	return res;
}

void dtor_%[1]s(void *ptr)
{
	struct class_%[1]s *self = ptr;
	for (int64_t i = 0; i < self->len; i++) {
		%[2]s val = self->data[i];
		%[4]s;
	}
	if (self->data != self->smalldata)
		free(self->data);
	free(self);
}

static void class_%[1]s_ensure_alloc(struct class_%[1]s *self, int64_t n)
{
	assert(n >= 0);
	if (self->alloc >= n)
		return;
	while (self->alloc < n)
		self->alloc *= 2;
	if (self->data == self->smalldata) {
		self->data = malloc(self->alloc * sizeof(self->data[0]));
		assert(self->data);
		memcpy(self->data, self->smalldata, sizeof self->smalldata);
	} else {
		self->data = realloc(self->data, self->alloc * sizeof(self->data[0]));
		assert(self->data);
	}
}

void meth_%[1]s_push(struct class_%[1]s *self, %[2]s val)
{
	class_%[1]s_ensure_alloc(self, self->len + 1);
	self->data[self->len++] = val;
	%[3]s;
}

%[2]s meth_%[1]s_get(struct class_%[1]s *self, int64_t i)
{
	assert(0 <= i && i < self->len);
	%[2]s val = self->data[i];
	%[3]s;
	return val;
}

int64_t meth_%[1]s_length(struct class_%[1]s *self)
{
	return self->len;
}

struct class_Str *meth_%[1]s_to_string(struct class_%[1]s *self)
{
	struct class_Str *res = cstr_to_string("[");
	for (int64_t i = 0; i < self->len; i++) {
		if (i != 0) {
			string_concat_inplace(&res, ", ");
		}
		struct class_Str *s = meth_%[5]s_to_string(self->data[i]);
		string_concat_inplace(&res, s->str);
		decref(s, dtor_Str);
	}
	string_concat_inplace(&res, "]");
	return res;
}
`, cname, itemC, increfVal, decrefVal, itemCName)
	default:
		panic("unknown generic " + typ.GenericOrigin.Generic.Name)
	}
}

// --- toplevel class/union emission ---

func (fe *fileEmitter) emitClassDef(cd *TClassDef) string {
	typ := cd.Type
	name := fe.typeCName(typ)

	var members, ctorArgs, assigns, increfs, decrefs strings.Builder
	for _, m := range typ.Members {
		members.WriteString(fmt.Sprintf("%s memb_%s;\n\t", fe.emitType(m.Type), m.Name))
		ctorArgs.WriteString(fmt.Sprintf("%s var_%s, ", fe.emitType(m.Type), m.Name))
		assigns.WriteString(fmt.Sprintf("obj->memb_%s = var_%s;\n\t", m.Name, m.Name))
		increfs.WriteString(fe.emitIncref("var_"+m.Name, m.Type))
		decrefs.WriteString(fe.emitDecref("obj->memb_"+m.Name, m.Type))
	}
	ctorArgList := strings.TrimSuffix(ctorArgs.String(), ", ")
	if ctorArgList == "" {
		ctorArgList = "void"
	}

	var methods strings.Builder
	for _, m := range cd.Methods {
		methods.WriteString(newFunctionEmitter(fe).emitFuncDef(m, fmt.Sprintf("meth_%s_%s", name, m.Name)))
	}

	return fmt.Sprintf(`
struct class_%[1]s {
	REFCOUNT_HEADER
	%[2]s
};

struct class_%[1]s *ctor_%[1]s(%[3]s)
{
	struct class_%[1]s *obj = malloc(sizeof(*obj));
	assert(obj);
	obj->refcount = 1;
	%[4]s
	%[5]s
	return obj;
}

void dtor_%[1]s(void *ptr)
{
	struct class_%[1]s *obj = ptr;
	%[6]s
	free(obj);
}

%[7]s
`, name, members.String(), ctorArgList, assigns.String(), increfs.String(), decrefs.String(), methods.String())
}

func (fe *fileEmitter) emitUnionDef(typ *Type) string {
	name := fe.typeCName(typ)

	var toStringCases, decrefCases, unionMembers strings.Builder
	for i, m := range typ.TypeMembers {
		toStringCases.WriteString(fmt.Sprintf("case %d: valstr = meth_%s_to_string(obj.val.item%d); break;\n", i, fe.typeCName(m), i))
		decrefCases.WriteString(fmt.Sprintf("case %d: %s break;\n", i, fe.emitDecref(fmt.Sprintf("obj.val.item%d", i), m)))
		unionMembers.WriteString(fmt.Sprintf("%s item%d;\n", fe.emitType(m), i))
	}

	fe.ending.WriteString(fmt.Sprintf(`
struct class_Str *meth_%[1]s_to_string(struct class_%[1]s obj)
{
	struct class_Str *valstr;
	switch (obj.membernum) {
		%[2]s
		default: assert(0);
	}
	struct class_Str *res = cstr_to_string("union %[3]s(");
	string_concat_inplace(&res, valstr->str);
	string_concat_inplace(&res, ")");
	decref(valstr, dtor_Str);
	return res;
}

void decref_%[1]s(struct class_%[1]s obj)
{
	switch (obj.membernum) {
		%[4]s
		default: assert(0);
	}
}
`, name, toStringCases.String(), typ.Name, decrefCases.String()))

	return fmt.Sprintf(`
struct class_%[1]s {
	union {
		%[2]s
	} val;
	short membernum;
};

struct class_Str *meth_%[1]s_to_string(struct class_%[1]s obj);
void decref_%[1]s(struct class_%[1]s obj);
`, name, unionMembers.String())
}

// --- per-function emission ---

// functionEmitter mirrors c_output.py's _FunctionEmitter: one instance
// per function/method body, holding the local-variable name mapping
// and the extra declarations/statements that frame the body.
type functionEmitter struct {
	fe         *fileEmitter
	beforeBody strings.Builder
	afterBody  strings.Builder
	nameMap    map[string]string
	localTypes map[string]*Type
}

func newFunctionEmitter(fe *fileEmitter) *functionEmitter {
	return &functionEmitter{fe: fe, nameMap: map[string]string{}, localTypes: map[string]*Type{}}
}

func (g *functionEmitter) declareLocalVar(typ *Type) string {
	name := g.fe.freshVar()
	g.beforeBody.WriteString(fmt.Sprintf("%s %s;\n\t", g.fe.emitType(typ), name))
	return name
}

func (g *functionEmitter) emitFuncDef(fn *TFuncDef, cName string) string {
	var cArgNames []string
	var argTypes []*Type
	if fn.Receiver != nil {
		v := g.fe.freshVar()
		g.nameMap[fn.ReceiverName] = v
		g.localTypes[fn.ReceiverName] = fn.Receiver
		cArgNames = append(cArgNames, v)
		argTypes = append(argTypes, fn.Receiver)
	}
	for _, a := range fn.Args {
		v := g.fe.freshVar()
		g.nameMap[a.Name] = v
		g.localTypes[a.Name] = a.Typ
		cArgNames = append(cArgNames, v)
		argTypes = append(argTypes, a.Typ)
	}

	var argDecls []string
	for i, at := range argTypes {
		argDecls = append(argDecls, g.fe.emitType(at)+" "+cArgNames[i])
	}
	argDeclStr := strings.Join(argDecls, ", ")
	if argDeclStr == "" {
		argDeclStr = "void"
	}

	var refDecls, decrefs strings.Builder
	for _, ref := range fn.Refs {
		init := "NULL"
		if ref.Typ.IsUnion() {
			init = "{0}"
		}
		refDecls.WriteString(fmt.Sprintf("%s %s = %s;\n\t", g.fe.emitType(ref.Typ), ref.Name, init))
		g.localTypes[ref.Name] = ref.Typ
	}
	for i := len(fn.Refs) - 1; i >= 0; i-- {
		decrefs.WriteString(g.fe.emitDecref(fn.Refs[i].Name, fn.Refs[i].Typ))
	}

	var bodyStr strings.Builder
	for _, s := range fn.Body {
		bodyStr.WriteString(g.emitStmt(s))
	}

	if fn.ReturnType != nil {
		g.beforeBody.WriteString(fmt.Sprintf("%s retval;\n\t", g.fe.emitType(fn.ReturnType)))
		g.afterBody.WriteString("return retval;\n\t")
	}

	return fmt.Sprintf(`
%s
%s(%s)
{
	%s
	%s
	%s

out: (void)0;
	%s
	%s
}
`, g.fe.emitType(fn.ReturnType), cName, argDeclStr,
		g.beforeBody.String(), refDecls.String(), bodyStr.String(),
		decrefs.String(), g.afterBody.String())
}

// emitCall handles the free-function/method call shapes; in both
// cases every argument (including the receiver, for a method) is
// comma-expression-evaluated into a fresh temporary first, since C
// does not guarantee argument evaluation order (spec.md §4.4).
func (g *functionEmitter) emitCall(callee Callee, args []TExpr) string {
	var allArgs []TExpr
	var funcName string
	switch callee.Kind {
	case CalleeMethod:
		allArgs = append(allArgs, callee.Receiver)
		allArgs = append(allArgs, args...)
		funcName = "meth_" + g.fe.typeCName(callee.Receiver.TypeOf()) + "_" + callee.Name
	default:
		allArgs = args
		funcName = "var_" + callee.Name
	}

	varNames := make([]string, len(allArgs))
	var commaParts []string
	for i, a := range allArgs {
		varNames[i] = g.declareLocalVar(a.TypeOf())
		commaParts = append(commaParts, fmt.Sprintf("%s = (%s)", varNames[i], g.emitExpr(a)))
	}
	if len(commaParts) == 0 {
		return fmt.Sprintf("%s()", funcName)
	}
	return fmt.Sprintf("( %s, %s(%s) )", strings.Join(commaParts, ", "), funcName, strings.Join(varNames, ", "))
}

func (g *functionEmitter) emitExpr(e TExpr) string {
	switch n := e.(type) {
	case *TIntLiteral:
		return fmt.Sprintf("((int64_t)%dLL)", n.Val)
	case *TFloatLiteral:
		return "(" + strconv.FormatFloat(n.Val, 'g', -1, 64) + ")"
	case *TBoolLiteral:
		if n.Val {
			return "true"
		}
		return "false"
	case *TStringLiteral:
		return g.fe.emitString(n.Val)
	case *TNullLiteral:
		return "((" + g.fe.emitType(n.Typ) + "){.isnull=true})"
	case *TGetLocal:
		if v, ok := g.nameMap[n.Name]; ok {
			return v
		}
		return "var_" + n.Name
	case *TReturningCall:
		return g.emitCall(n.Callee, n.Args)
	case *TGetAttr:
		return fmt.Sprintf("((%s)->memb_%s)", g.emitExpr(n.Object), n.Name)
	case *TNumOp:
		cOp := n.Op
		if cOp == "mod" {
			cOp = "%"
		}
		return fmt.Sprintf("(%s %s %s)", g.emitExpr(n.Left), cOp, g.emitExpr(n.Right))
	case *TFloatDiv:
		return fmt.Sprintf("(%s / %s)", g.emitExpr(n.Left), g.emitExpr(n.Right))
	case *TNumberEqual:
		return fmt.Sprintf("(%s == %s)", g.emitExpr(n.Left), g.emitExpr(n.Right))
	case *TCompare:
		return fmt.Sprintf("(%s %s %s)", g.emitExpr(n.Left), n.Op, g.emitExpr(n.Right))
	case *TIntToFloat:
		return fmt.Sprintf("((double)(%s))", g.emitExpr(n.Operand))
	case *TNumberNegation:
		return fmt.Sprintf("(-(%s))", g.emitExpr(n.Operand))
	case *TBoolAnd:
		return fmt.Sprintf("(%s && %s)", g.emitExpr(n.Left), g.emitExpr(n.Right))
	case *TBoolOr:
		return fmt.Sprintf("(%s || %s)", g.emitExpr(n.Left), g.emitExpr(n.Right))
	case *TBoolNot:
		return fmt.Sprintf("(!(%s))", g.emitExpr(n.Operand))
	case *TStrConcat:
		return g.emitStrConcat(n)
	case *TConstructor:
		return g.emitConstructor(n)
	case *TInstantiateUnion:
		idx := -1
		for i, m := range n.UnionType.TypeMembers {
			if m == n.Value.TypeOf() {
				idx = i
				break
			}
		}
		return fmt.Sprintf("((%s){ .val = { .item%d = %s }, .membernum = %d })",
			g.fe.emitType(n.UnionType), idx, g.emitExpr(n.Value), idx)
	case *TSetRef:
		v := g.declareLocalVar(n.Typ)
		value := g.emitExpr(n.Value)
		decref := strings.TrimSuffix(g.fe.emitDecref(n.Holder, n.Typ), ";\n\t")
		return fmt.Sprintf("(%s = %s, %s, %s = %s)", v, value, decref, n.Holder, v)
	default:
		panic(fmt.Sprintf("emit_c: unhandled expression %T", e))
	}
}

func (g *functionEmitter) emitConstructor(n *TConstructor) string {
	name := g.fe.typeCName(n.Type)
	if n.InitElems == nil {
		var parts []string
		for _, a := range n.Args {
			parts = append(parts, g.emitExpr(a))
		}
		return fmt.Sprintf("ctor_%s(%s)", name, strings.Join(parts, ", "))
	}

	v := g.declareLocalVar(n.Type)
	var parts []string
	parts = append(parts, fmt.Sprintf("%s = ctor_%s()", v, name))
	for _, elem := range n.InitElems {
		parts = append(parts, fmt.Sprintf("meth_%s_push(%s, %s)", name, v, g.emitExpr(elem)))
	}
	parts = append(parts, v)
	return "(" + strings.Join(parts, ", ") + ")"
}

// emitStrConcat builds a fresh Str by copying the left operand then
// appending the right operand's bytes in place, using the ABI's
// string_concat_inplace (spec.md §6) rather than mutating either
// operand directly -- an operand may be an immortal literal, which
// must never be reallocated. Only an operand this expression owns (a
// bare call result or nested concat) is decref'd afterwards; a ref
// holder's value, a variable or a literal is left to its owner.
func (g *functionEmitter) emitStrConcat(n *TStrConcat) string {
	l := g.declareLocalVar(n.Left.TypeOf())
	r := g.declareLocalVar(n.Right.TypeOf())
	res := g.declareLocalVar(n.Typ)
	parts := []string{
		fmt.Sprintf("%s = %s", l, g.emitExpr(n.Left)),
		fmt.Sprintf("%s = %s", r, g.emitExpr(n.Right)),
		fmt.Sprintf("%s = cstr_to_string(%s->str)", res, l),
		fmt.Sprintf("string_concat_inplace(&%s, %s->str)", res, r),
	}
	for _, op := range []struct {
		name string
		e    TExpr
	}{{l, n.Left}, {r, n.Right}} {
		switch op.e.(type) {
		case *TReturningCall, *TStrConcat:
			parts = append(parts, strings.TrimSuffix(g.fe.emitDecref(op.name, op.e.TypeOf()), ";\n\t"))
		}
	}
	parts = append(parts, res)
	return "(" + strings.Join(parts, ", ") + ")"
}

func (g *functionEmitter) emitStmt(s Stmt) string {
	switch n := s.(type) {
	case *TCreateLocalVar:
		v := g.declareLocalVar(n.Typ)
		g.nameMap[n.Name] = v
		g.localTypes[n.Name] = n.Typ
		return fmt.Sprintf("%s = %s;\n\t", v, g.emitExpr(n.Value))
	case *TSetLocalVar:
		return fmt.Sprintf("%s = %s;\n\t", g.nameMap[n.Name], g.emitExpr(n.Value))
	case *TDeleteLocalVar:
		v := g.nameMap[n.Name]
		typ := g.localTypes[n.Name]
		delete(g.nameMap, n.Name)
		return g.fe.emitDecref(v, typ)
	case *TDecRef:
		return g.fe.emitDecref(g.emitExpr(n.Value), n.Value.TypeOf())
	case *TVoidCall:
		return g.emitCall(n.Callee, n.Args) + ";\n\t"
	case *TAssertCall:
		return fmt.Sprintf("oomph_assert(%s, %dLL);\n\t", g.emitExpr(n.Cond), n.Line)
	case *TReturn:
		if n.Value == nil {
			return "goto out;\n\t"
		}
		return fmt.Sprintf("retval = %s;\n\t%sgoto out;\n\t",
			g.emitExpr(n.Value), g.fe.emitIncref("retval", n.Value.TypeOf()))
	case *TIf:
		var sb strings.Builder
		for i, b := range n.Branches {
			if b.Cond == nil {
				sb.WriteString("} else {\n\t")
			} else if i == 0 {
				sb.WriteString(fmt.Sprintf("if (%s) {\n\t", g.emitExpr(b.Cond)))
			} else {
				sb.WriteString(fmt.Sprintf("} else if (%s) {\n\t", g.emitExpr(b.Cond)))
			}
			for _, st := range b.Body {
				sb.WriteString(g.emitStmt(st))
			}
		}
		sb.WriteString("}\n\t")
		return sb.String()
	case *TLoop:
		var sb strings.Builder
		if n.Init != nil {
			sb.WriteString(g.emitStmt(n.Init))
		}
		sb.WriteString(fmt.Sprintf("while (%s) {\n\t", g.emitExpr(n.Cond)))
		for _, st := range n.Body {
			sb.WriteString(g.emitStmt(st))
		}
		sb.WriteString(fmt.Sprintf("loop%d_continue: (void)0;\n\t", n.ID))
		for _, st := range n.Cleanup {
			sb.WriteString(g.emitStmt(st))
		}
		if n.Incr != nil {
			sb.WriteString(g.emitStmt(n.Incr))
		}
		sb.WriteString("}\n\t")
		sb.WriteString(fmt.Sprintf("loop%d_break: (void)0;\n\t", n.ID))
		return sb.String()
	case *TContinue:
		return fmt.Sprintf("goto loop%d_continue;\n\t", n.LoopID)
	case *TBreak:
		// A bare C `break;` would exit the nearest enclosing C
		// construct, which is the union switch's own `switch` statement
		// when a `break` sits inside a `switch/case` body nested in a
		// loop (spec.md §4.3 Switch is emitted as a native C switch, see
		// TSwitch below). Route through a label instead so break always
		// targets the loop its LoopID names.
		return fmt.Sprintf("goto loop%d_break;\n\t", n.LoopID)
	case *TSwitch:
		unionVar := g.nameMap[n.Varname]
		savedType := g.localTypes[n.Varname]
		var cases strings.Builder
		for _, c := range n.Cases {
			specific := g.declareLocalVar(c.MemberType)
			g.nameMap[n.Varname] = specific
			g.localTypes[n.Varname] = c.MemberType
			var caseBody strings.Builder
			for _, st := range c.Body {
				caseBody.WriteString(g.emitStmt(st))
			}
			cases.WriteString(fmt.Sprintf("case %d:\n\t%s = %s.val.item%d;\n\t%sbreak;\n",
				c.MemberIndex, specific, unionVar, c.MemberIndex, caseBody.String()))
		}
		g.nameMap[n.Varname] = unionVar
		g.localTypes[n.Varname] = savedType
		return fmt.Sprintf("switch (%s.membernum) {\n\t%s\tdefault: assert(0);\n\t}\n\t", unionVar, cases.String())
	default:
		panic(fmt.Sprintf("emit_c: unhandled statement %T", s))
	}
}
