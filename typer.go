package oomph

import (
	"fmt"
	"strconv"
	"strings"
)

// Typer walks the untyped AST per spec.md §4.3: it declares every
// class, union, and function before defining any body, so forward
// references resolve, then defines each body via a Visitor
// implementation (grounded on the teacher's compiler-as-visitor shape
// in grammar_compiler.go) instead of the type-switch chain
// original_source/compiler/typer.py uses -- Go's interface dispatch is
// the idiomatic equivalent here.
type Typer struct {
	reg *TypeRegistry

	globalFuncs map[string]*FunctionType
	classDefs   map[string]*ClassDef // untyped bodies, for the define pass

	cur *funcCtx

	exprResult TExpr
	stmtResult []Stmt
}

type funcCtx struct {
	locals      map[string]*Type
	retType     *Type
	refs        []RefHolder
	loopStack   []int
	loopCounter int
}

func NewTyper() *Typer {
	reg := NewTypeRegistry()
	t := &Typer{
		reg:         reg,
		globalFuncs: map[string]*FunctionType{},
		classDefs:   map[string]*ClassDef{},
	}
	t.globalFuncs["print"] = &FunctionType{ArgTypes: []*Type{reg.Str}}
	t.globalFuncs["print_int"] = &FunctionType{ArgTypes: []*Type{reg.Int}}
	t.globalFuncs["print_bool"] = &FunctionType{ArgTypes: []*Type{reg.Bool}}
	t.globalFuncs["print_float"] = &FunctionType{ArgTypes: []*Type{reg.Float}}
	return t
}

// TypeFile runs the whole declare/define pipeline over one parsed
// compilation unit.
func (t *Typer) TypeFile(f *File) (*TUnit, error) {
	if err := t.declareTypes(f); err != nil {
		return nil, err
	}
	if err := t.declareFunctions(f); err != nil {
		return nil, err
	}
	return t.defineAll(f)
}

// --- Declare pass ---

func (t *Typer) declareTypes(f *File) error {
	for _, cd := range f.Classes {
		if _, err := t.reg.Declare(cd.Name, true); err != nil {
			return resolveErr(cd.Span(), err)
		}
		t.classDefs[cd.Name] = cd
	}
	for _, ud := range f.Unions {
		if _, err := t.reg.DeclareUnion(ud.Name); err != nil {
			return resolveErr(ud.Span(), err)
		}
	}

	// Members/union type-members reference names resolved in a
	// second sweep, once every class/union shell exists.
	for _, cd := range f.Classes {
		typ, _ := t.reg.Lookup(cd.Name)
		var members []Member
		var ctorArgs []*Type
		for _, m := range cd.Members {
			mt, err := t.resolveTypeName(m.TypeName)
			if err != nil {
				return resolveErr(cd.Span(), err)
			}
			members = append(members, Member{Type: mt, Name: m.Name})
			ctorArgs = append(ctorArgs, mt)
		}
		typ.Members = members
		typ.ConstructorArgTypes = ctorArgs
	}
	for _, ud := range f.Unions {
		typ, _ := t.reg.Lookup(ud.Name)
		var members []*Type
		for _, name := range ud.Members {
			mt, err := t.resolveTypeName(name)
			if err != nil {
				return resolveErr(ud.Span(), err)
			}
			members = append(members, mt)
		}
		if err := typ.SetTypeMembers(members); err != nil {
			return NewCompileError(StageGeneric, err.Error(), ud.Span())
		}
	}
	return nil
}

func (t *Typer) declareFunctions(f *File) error {
	for _, fn := range f.Funcs {
		ft, err := t.funcTypeOf(fn)
		if err != nil {
			return resolveErr(fn.Span(), err)
		}
		if fn.Receiver == nil {
			if _, exists := t.globalFuncs[fn.Name]; exists {
				return resolveErr(fn.Span(), fmt.Errorf("function %s already declared", fn.Name))
			}
			t.globalFuncs[fn.Name] = ft
			continue
		}
		recv, err := t.resolveTypeName(fn.Receiver.TypeName)
		if err != nil {
			return resolveErr(fn.Span(), err)
		}
		if _, exists := recv.Methods[fn.Name]; exists {
			return resolveErr(fn.Span(), fmt.Errorf("%s already has a method %s", recv.Name, fn.Name))
		}
		recv.Methods[fn.Name] = ft
	}
	return nil
}

func (t *Typer) funcTypeOf(fn *FuncDef) (*FunctionType, error) {
	ft := &FunctionType{}
	if fn.Receiver != nil {
		recv, err := t.resolveTypeName(fn.Receiver.TypeName)
		if err != nil {
			return nil, err
		}
		ft.ArgTypes = append(ft.ArgTypes, recv)
	}
	for _, a := range fn.Args {
		at, err := t.resolveTypeName(a.TypeName)
		if err != nil {
			return nil, err
		}
		ft.ArgTypes = append(ft.ArgTypes, at)
	}
	if fn.ReturnType != "" {
		rt, err := t.resolveTypeName(fn.ReturnType)
		if err != nil {
			return nil, err
		}
		ft.ReturnType = rt
	}
	return ft, nil
}

// resolveTypeName resolves a parsed type-name string, including
// generic instantiations like "List[int]", against the registry.
func (t *Typer) resolveTypeName(name string) (*Type, error) {
	if idx := strings.IndexByte(name, '['); idx >= 0 {
		if !strings.HasSuffix(name, "]") {
			return nil, fmt.Errorf("malformed generic type %q", name)
		}
		genName := name[:idx]
		argName := name[idx+1 : len(name)-1]
		argType, err := t.resolveTypeName(argName)
		if err != nil {
			return nil, err
		}
		switch genName {
		case "List":
			return t.reg.ListOf(argType), nil
		case "optional":
			return t.reg.OptionalOf(argType), nil
		default:
			return nil, fmt.Errorf("unknown generic %q", genName)
		}
	}
	if typ, ok := t.reg.Lookup(name); ok {
		return typ, nil
	}
	return nil, fmt.Errorf("unknown type %q", name)
}

func resolveErr(span Span, err error) error {
	return NewCompileError(StageResolve, err.Error(), span)
}

func typeErr(span Span, format string, args ...interface{}) error {
	return NewCompileError(StageType, fmt.Sprintf(format, args...), span)
}

// --- Define pass ---

func (t *Typer) defineAll(f *File) (*TUnit, error) {
	unit := &TUnit{}

	classesByName := map[string]*TClassDef{}
	for _, cd := range f.Classes {
		typ, _ := t.reg.Lookup(cd.Name)
		tcd := &TClassDef{Type: typ}
		classesByName[cd.Name] = tcd
		unit.Classes = append(unit.Classes, tcd)
	}
	for _, ud := range f.Unions {
		typ, _ := t.reg.Lookup(ud.Name)
		unit.Unions = append(unit.Unions, typ)
	}

	for _, fn := range f.Funcs {
		tfn, err := t.defineFunc(fn)
		if err != nil {
			return nil, err
		}
		if fn.Receiver == nil {
			unit.Funcs = append(unit.Funcs, tfn)
		} else {
			recvName := fn.Receiver.TypeName
			tcd, ok := classesByName[recvName]
			if !ok {
				return nil, resolveErr(fn.Span(), fmt.Errorf("method receiver %s is not a class", recvName))
			}
			tcd.Methods = append(tcd.Methods, tfn)
		}
	}
	return unit, nil
}

func (t *Typer) defineFunc(fn *FuncDef) (*TFuncDef, error) {
	ft, err := t.funcTypeOf(fn)
	if err != nil {
		return nil, resolveErr(fn.Span(), err)
	}

	ctx := &funcCtx{locals: map[string]*Type{}, retType: ft.ReturnType}
	var argHolders []RefHolder
	argIdx := 0
	if fn.Receiver != nil {
		recv := ft.ArgTypes[0]
		ctx.locals["self"] = recv
		argHolders = append(argHolders, RefHolder{Name: "self", Typ: recv})
		argIdx = 1
	}
	for _, a := range fn.Args {
		at := ft.ArgTypes[argIdx]
		argIdx++
		if _, exists := ctx.locals[a.Name]; exists {
			return nil, typeErr(fn.Span(), "parameter %s declared twice", a.Name)
		}
		ctx.locals[a.Name] = at
		argHolders = append(argHolders, RefHolder{Name: a.Name, Typ: at})
	}

	t.cur = ctx
	body, err := t.typeBlock(fn.Body)
	if err != nil {
		return nil, err
	}

	tfn := &TFuncDef{
		Name:       fn.Name,
		ReturnType: ft.ReturnType,
		Body:       body,
		Refs:       ctx.refs,
	}
	if fn.Receiver != nil {
		tfn.Receiver = ft.ArgTypes[0]
		tfn.ReceiverName = "self"
		tfn.Args = argHolders[1:]
	} else {
		tfn.Args = argHolders
	}
	return tfn, nil
}

func (t *Typer) freshHolder(typ *Type) string {
	name := fmt.Sprintf("ref%d_", len(t.cur.refs))
	t.cur.refs = append(t.cur.refs, RefHolder{Name: name, Typ: typ})
	return name
}

// wrapOwned applies the SetRef holder discipline (spec.md §4.3
// "Refcount insertion") to any expression that constructs a brand-new
// owned refcounted value -- calls, constructors, union wraps, and
// string concatenation -- as opposed to one that merely borrows an
// already-rooted reference (a local or an attribute read).
func (t *Typer) wrapOwned(e TExpr) TExpr {
	typ := e.TypeOf()
	if typ == nil || !typ.Refcounted {
		return e
	}
	switch e.(type) {
	case *TReturningCall, *TConstructor, *TInstantiateUnion, *TStrConcat:
		holder := t.freshHolder(typ)
		return &TSetRef{Holder: holder, Value: e, Typ: typ}
	default:
		return e
	}
}

func (t *Typer) typeExpr(n Node) (TExpr, error) {
	if err := n.Accept(t); err != nil {
		return nil, err
	}
	return t.exprResult, nil
}

// typeExprWithExpected types n against a known expected type, the one
// place `null` is typeable: optional[T]'s T only exists at a use site
// (a call argument, a return, or an assignment to an already-typed
// variable), never on the literal itself.
func (t *Typer) typeExprWithExpected(n Node, expected *Type) (TExpr, error) {
	if _, ok := n.(*NullLiteral); ok {
		if expected == nil || expected.GenericOrigin == nil || expected.GenericOrigin.Generic != t.reg.Optional {
			return nil, typeErr(n.Span(), "`null` is only valid where an optional[T] is expected")
		}
		return &TNullLiteral{OptType: expected.GenericOrigin.Arg, Typ: expected}, nil
	}
	e, err := t.typeExpr(n)
	if err != nil {
		return nil, err
	}
	return t.coerceToUnion(e, expected), nil
}

// coerceToUnion wraps e in TInstantiateUnion when expected names a
// union and e's concrete type is one of its members (spec.md §4.3
// "Unions and switch" construction side): `return new Circle(...)` in
// a function returning Shape needs the same expected-type threading that already
// recovers `null`'s type, since the untyped AST carries no union tag
// of its own. Anything else is returned unchanged, leaving the
// caller's own type-equality check to report a mismatch.
func (t *Typer) coerceToUnion(e TExpr, expected *Type) TExpr {
	if expected == nil || !expected.IsUnion() || e.TypeOf() == expected {
		return e
	}
	for i, m := range expected.TypeMembers {
		if m == e.TypeOf() {
			return t.wrapOwned(&TInstantiateUnion{UnionType: expected, MemberIndex: i, Value: e})
		}
	}
	return e
}

func (t *Typer) typeBlock(stmts []Node) ([]Stmt, error) {
	var out []Stmt
	for _, s := range stmts {
		if err := s.Accept(t); err != nil {
			return nil, err
		}
		out = append(out, t.stmtResult...)
	}
	return out, nil
}

// --- Literals ---

func (t *Typer) VisitIntLiteral(n *IntLiteral) error {
	v, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return typeErr(n.Span(), "integer literal %s out of 64-bit signed range", n.Value)
	}
	t.exprResult = &TIntLiteral{Val: v, Typ: t.reg.Int}
	return nil
}

func (t *Typer) VisitFloatLiteral(n *FloatLiteral) error {
	v, err := strconv.ParseFloat(n.Value, 64)
	if err != nil {
		return typeErr(n.Span(), "malformed float literal %s", n.Value)
	}
	t.exprResult = &TFloatLiteral{Val: v, Typ: t.reg.Float}
	return nil
}

func (t *Typer) VisitStringLiteral(n *StringLiteral) error {
	var result TExpr = &TStringLiteral{Val: n.Parts[0], Typ: t.reg.Str}
	for i, expr := range n.Exprs {
		e, err := t.typeExpr(expr)
		if err != nil {
			return err
		}
		str, err := t.toStringExpr(e)
		if err != nil {
			return err
		}
		result = &TStrConcat{Left: result, Right: str, Typ: t.reg.Str}
		result = t.wrapOwned(result)
		lit := &TStringLiteral{Val: n.Parts[i+1], Typ: t.reg.Str}
		result = &TStrConcat{Left: result, Right: lit, Typ: t.reg.Str}
		result = t.wrapOwned(result)
	}
	t.exprResult = result
	return nil
}

// toStringExpr lowers a splice operand to a call of its to_string
// method (spec.md §4.2 "an equivalent to_string + concatenation
// expression").
func (t *Typer) toStringExpr(e TExpr) (TExpr, error) {
	typ := e.TypeOf()
	if typ == t.reg.Str {
		return e, nil
	}
	mt, err := typ.GetMethod("to_string")
	if err != nil {
		return nil, NewCompileError(StageResolve, err.Error(), Span{})
	}
	call := &TReturningCall{
		Callee: Callee{Kind: CalleeMethod, Name: "to_string", Receiver: e, FuncType: mt},
		Typ:    mt.ReturnType,
	}
	return t.wrapOwned(call), nil
}

func (t *Typer) VisitNullLiteral(n *NullLiteral) error {
	return typeErr(n.Span(), "`null` is only valid where an optional[T] is expected")
}

// --- Names ---

func (t *Typer) VisitGetVar(n *GetVar) error {
	switch n.Name {
	case "true":
		t.exprResult = &TBoolLiteral{Val: true, Typ: t.reg.Bool}
		return nil
	case "false":
		t.exprResult = &TBoolLiteral{Val: false, Typ: t.reg.Bool}
		return nil
	}
	if typ, ok := t.cur.locals[n.Name]; ok {
		t.exprResult = &TGetLocal{Name: n.Name, Typ: typ}
		return nil
	}
	return resolveErr(n.Span(), fmt.Errorf("unknown variable %q", n.Name))
}

// --- Calls ---

func (t *Typer) VisitCall(n *Call) error {
	if n.AssertLine != 0 {
		return typeErr(n.Span(), "assert() may only be used as a statement")
	}

	callee, args, err := t.typeCall(n)
	if err != nil {
		return err
	}
	if callee.FuncType.ReturnType == nil {
		return typeErr(n.Span(), "calling a void function in expression position")
	}
	t.exprResult = &TReturningCall{Callee: callee, Args: args, Typ: callee.FuncType.ReturnType}
	return nil
}

// typeCall resolves a call's callee and type-checks its arguments; it
// does not care whether the callee is void or value-returning, so
// both VisitCall and the statement-level call path in
// VisitExprStatement share it.
func (t *Typer) typeCall(n *Call) (Callee, []TExpr, error) {
	callee, err := t.resolveCallee(n)
	if err != nil {
		return Callee{}, nil, err
	}
	offset := 0
	if callee.Kind == CalleeMethod {
		offset = 1 // the receiver already occupies want[0]
	}
	args, err := t.typeArgs(n.Args, callee.FuncType.ArgTypes, offset, n.Span())
	if err != nil {
		return Callee{}, nil, err
	}
	return callee, args, nil
}

// resolveCallee handles the two call shapes: a bare name (free
// function) or `obj.method(...)` (GetMethod, spec.md §4.3 "Attribute
// ...yield GetMethod(obj, x)... only valid as the callee of a call").
func (t *Typer) resolveCallee(n *Call) (Callee, error) {
	switch fn := n.Func.(type) {
	case *GetVar:
		ft, ok := t.globalFuncs[fn.Name]
		if !ok {
			return Callee{}, resolveErr(fn.Span(), fmt.Errorf("unknown function %q", fn.Name))
		}
		return Callee{Kind: CalleeFunc, Name: fn.Name, FuncType: ft}, nil
	case *Attribute:
		obj, err := t.typeExpr(fn.Object)
		if err != nil {
			return Callee{}, err
		}
		mt, err := obj.TypeOf().GetMethod(fn.Name)
		if err != nil {
			return Callee{}, resolveErr(fn.Span(), err)
		}
		return Callee{Kind: CalleeMethod, Name: fn.Name, Receiver: obj, FuncType: mt}, nil
	default:
		return Callee{}, typeErr(n.Span(), "expression is not callable")
	}
}

// typeArgs type-checks a call's or constructor's arguments against
// its expected types. offset is 1 when want's first entry is a
// receiver the caller already bound (a method call) and 0 otherwise
// (a free function or a constructor, neither of which prepends a
// receiver to its argument types) -- the caller decides this from
// what it already knows, rather than typeArgs guessing from lengths,
// since "one arg short" and "receiver already consumed" are the same
// arithmetic relation and cannot be told apart after the fact.
func (t *Typer) typeArgs(argNodes []Node, want []*Type, offset int, span Span) ([]TExpr, error) {
	if len(argNodes) != len(want)-offset {
		return nil, typeErr(span, "expected %d arguments, got %d", len(want)-offset, len(argNodes))
	}
	var out []TExpr
	for i, an := range argNodes {
		wantType := want[i+offset]
		e, err := t.typeExprWithExpected(an, wantType)
		if err != nil {
			return nil, err
		}
		if e.TypeOf() != wantType {
			return nil, typeErr(an.Span(), "argument %d: expected %s, got %s", i+1, wantType.Name, e.TypeOf().Name)
		}
		out = append(out, t.wrapOwned(e))
	}
	return out, nil
}

// --- Attribute access ---

func (t *Typer) VisitAttribute(n *Attribute) error {
	obj, err := t.typeExpr(n.Object)
	if err != nil {
		return err
	}
	if _, err := obj.TypeOf().GetMethod(n.Name); err == nil {
		return typeErr(n.Span(), "method %s.%s referenced without being called", obj.TypeOf().Name, n.Name)
	}
	for _, m := range obj.TypeOf().Members {
		if m.Name == n.Name {
			t.exprResult = &TGetAttr{Object: obj, Name: n.Name, Typ: m.Type}
			return nil
		}
	}
	return resolveErr(n.Span(), fmt.Errorf("%s has no member or method %q", obj.TypeOf().Name, n.Name))
}

// VisitIndex desugars `obj[key]` into a call of the `get` method,
// since the typed IR has no dedicated index node (spec.md §3 lists
// only method-based List access).
func (t *Typer) VisitIndex(n *Index) error {
	obj, err := t.typeExpr(n.Object)
	if err != nil {
		return err
	}
	mt, err := obj.TypeOf().GetMethod("get")
	if err != nil {
		return resolveErr(n.Span(), err)
	}
	key, err := t.typeExpr(n.Key)
	if err != nil {
		return err
	}
	if key.TypeOf() != t.reg.Int {
		return typeErr(n.Key.Span(), "index must be int, got %s", key.TypeOf().Name)
	}
	call := &TReturningCall{
		Callee: Callee{Kind: CalleeMethod, Name: "get", Receiver: obj, FuncType: mt},
		Args:   []TExpr{t.wrapOwned(key)},
		Typ:    mt.ReturnType,
	}
	t.exprResult = t.wrapOwned(call)
	return nil
}

// --- Constructors ---

func (t *Typer) VisitConstructor(n *Constructor) error {
	typ, err := t.resolveTypeName(n.TypeName)
	if err != nil {
		return resolveErr(n.Span(), err)
	}
	if typ.ConstructorArgTypes == nil {
		return typeErr(n.Span(), "%s has no constructor", typ.Name)
	}
	args, err := t.typeArgs(n.Args, typ.ConstructorArgTypes, 0, n.Span())
	if err != nil {
		return err
	}
	t.exprResult = &TConstructor{Type: typ, Args: args}
	return nil
}

// --- List display ---

func (t *Typer) VisitListDisplay(n *ListDisplay) error {
	if len(n.Elems) == 0 {
		return typeErr(n.Span(), "empty list display needs an explicit element type; use `new List[T]()` instead")
	}
	first, err := t.typeExpr(n.Elems[0])
	if err != nil {
		return err
	}
	elemType := first.TypeOf()
	listType := t.reg.ListOf(elemType)

	elems := []TExpr{t.wrapOwned(first)}
	for _, e := range n.Elems[1:] {
		te, err := t.typeExpr(e)
		if err != nil {
			return err
		}
		if te.TypeOf() != elemType {
			return typeErr(e.Span(), "list display: expected %s, got %s", elemType.Name, te.TypeOf().Name)
		}
		elems = append(elems, t.wrapOwned(te))
	}

	t.exprResult = &TConstructor{Type: listType, InitElems: elems}
	return nil
}

// --- Statements ---

func (t *Typer) VisitExprStatement(n *ExprStatement) error {
	if call, ok := n.Expr.(*Call); ok && call.AssertLine != 0 {
		if len(call.Args) != 1 {
			return typeErr(n.Span(), "assert() takes exactly one argument")
		}
		cond, err := t.typeExpr(call.Args[0])
		if err != nil {
			return err
		}
		if cond.TypeOf() != t.reg.Bool {
			return typeErr(call.Args[0].Span(), "assert() argument must be bool")
		}
		t.stmtResult = []Stmt{&TAssertCall{Cond: cond, Line: call.AssertLine}}
		return nil
	}

	if call, ok := n.Expr.(*Call); ok {
		callee, args, err := t.typeCall(call)
		if err != nil {
			return err
		}
		rt := callee.FuncType.ReturnType
		if rt != nil && rt.Refcounted {
			// A discarded refcounted result still owns one reference
			// that must be released immediately rather than routed
			// through a ref holder (mirrors typer.py's do_statement:
			// a call-statement's SetRef collapses straight to DecRef).
			t.stmtResult = []Stmt{&TDecRef{Value: &TReturningCall{Callee: callee, Args: args, Typ: rt}}}
			return nil
		}
		t.stmtResult = []Stmt{&TVoidCall{Callee: callee, Args: args}}
		return nil
	}

	e, err := t.typeExpr(n.Expr)
	if err != nil {
		return err
	}
	if e.TypeOf() != nil && e.TypeOf().Refcounted {
		t.stmtResult = []Stmt{&TDecRef{Value: e}}
	} else {
		t.stmtResult = nil
	}
	return nil
}

func (t *Typer) VisitLetStatement(n *LetStatement) error {
	if _, exists := t.cur.locals[n.Varname]; exists {
		return typeErr(n.Span(), "let: %s is already bound", n.Varname)
	}
	val, err := t.typeExpr(n.Value)
	if err != nil {
		return err
	}
	val = t.wrapOwned(val)
	t.cur.locals[n.Varname] = val.TypeOf()
	t.stmtResult = []Stmt{&TCreateLocalVar{Name: n.Varname, Typ: val.TypeOf(), Value: val}}
	return nil
}

func (t *Typer) VisitAssignStatement(n *AssignStatement) error {
	gv, ok := n.Target.(*GetVar)
	if !ok {
		return typeErr(n.Span(), "assignment target must be a plain local variable")
	}
	vt, ok := t.cur.locals[gv.Name]
	if !ok {
		return resolveErr(n.Span(), fmt.Errorf("assignment to undeclared name %q", gv.Name))
	}
	val, err := t.typeExprWithExpected(n.Value, vt)
	if err != nil {
		return err
	}
	if val.TypeOf() != vt {
		return typeErr(n.Span(), "cannot assign %s to %s (%s)", val.TypeOf().Name, gv.Name, vt.Name)
	}
	val = t.wrapOwned(val)
	t.stmtResult = []Stmt{&TSetLocalVar{Name: gv.Name, Value: val}}
	return nil
}

func (t *Typer) VisitPassStatement(n *PassStatement) error {
	t.stmtResult = nil
	return nil
}

func (t *Typer) VisitReturnStatement(n *ReturnStatement) error {
	if n.Value == nil {
		if t.cur.retType != nil {
			return typeErr(n.Span(), "missing return value")
		}
		t.stmtResult = []Stmt{&TReturn{}}
		return nil
	}
	val, err := t.typeExprWithExpected(n.Value, t.cur.retType)
	if err != nil {
		return err
	}
	if val.TypeOf() != t.cur.retType {
		return typeErr(n.Span(), "return type mismatch: expected %s, got %s", t.cur.retType.Name, val.TypeOf().Name)
	}
	// A freshly owned value (a call or constructor result) goes into a
	// ref holder first, so the epilogue releases the holder's reference
	// and the incref'd retval carries the only one out to the caller.
	val = t.wrapOwned(val)
	t.stmtResult = []Stmt{&TReturn{Value: val}}
	return nil
}

func (t *Typer) VisitIfStatement(n *IfStatement) error {
	var branches []TIfBranch
	for _, b := range n.Branches {
		if b.Cond == nil {
			body, err := t.typeBlock(b.Body)
			if err != nil {
				return err
			}
			branches = append(branches, TIfBranch{Body: body})
			continue
		}
		cond, err := t.typeExpr(b.Cond)
		if err != nil {
			return err
		}
		if cond.TypeOf() != t.reg.Bool {
			return typeErr(b.Cond.Span(), "if condition must be bool")
		}
		body, err := t.typeBlock(b.Body)
		if err != nil {
			return err
		}
		branches = append(branches, TIfBranch{Cond: cond, Body: body})
	}
	t.stmtResult = []Stmt{&TIf{Branches: branches}}
	return nil
}

func (t *Typer) VisitWhileStatement(n *WhileStatement) error {
	cond, err := t.typeExpr(n.Cond)
	if err != nil {
		return err
	}
	if cond.TypeOf() != t.reg.Bool {
		return typeErr(n.Cond.Span(), "while condition must be bool")
	}
	id := t.cur.loopCounter
	t.cur.loopCounter++
	t.cur.loopStack = append(t.cur.loopStack, id)
	body, err := t.typeBlock(n.Body)
	t.cur.loopStack = t.cur.loopStack[:len(t.cur.loopStack)-1]
	if err != nil {
		return err
	}
	t.stmtResult = []Stmt{&TLoop{ID: id, Cond: cond, Body: body, Cleanup: loopLocalCleanup(body)}}
	return nil
}

// loopLocalCleanup returns the decrefs that must run at the end of one
// loop-body execution for every refcounted `let` local declared
// directly in that body (spec.md §3 "DeleteLocalVar"): the C variable
// the typer's CreateLocalVar allocated is reused verbatim on the next
// iteration, so the previous iteration's value must be decref'd before
// the next iteration's plain reassignment overwrites it. The emitter
// runs this after the loop's continue label, not as part of Body,
// so an explicit `continue` releases the value too. Declared in
// reverse order, matching the function epilogue's decref discipline.
func loopLocalCleanup(body []Stmt) []Stmt {
	var toDelete []*TCreateLocalVar
	for _, s := range body {
		if c, ok := s.(*TCreateLocalVar); ok && c.Typ.Refcounted {
			toDelete = append(toDelete, c)
		}
	}
	var cleanup []Stmt
	for i := len(toDelete) - 1; i >= 0; i-- {
		cleanup = append(cleanup, &TDeleteLocalVar{Name: toDelete[i].Name})
	}
	return cleanup
}

func (t *Typer) VisitForStatement(n *ForStatement) error {
	var init Stmt
	if n.Init != nil {
		if err := n.Init.Accept(t); err != nil {
			return err
		}
		if len(t.stmtResult) != 1 {
			return typeErr(n.Span(), "for-loop init must be a single statement")
		}
		init = t.stmtResult[0]
	}
	cond, err := t.typeExpr(n.Cond)
	if err != nil {
		return err
	}
	if cond.TypeOf() != t.reg.Bool {
		return typeErr(n.Cond.Span(), "for condition must be bool")
	}

	id := t.cur.loopCounter
	t.cur.loopCounter++
	t.cur.loopStack = append(t.cur.loopStack, id)

	var incr Stmt
	if n.Incr != nil {
		if err := n.Incr.Accept(t); err != nil {
			t.cur.loopStack = t.cur.loopStack[:len(t.cur.loopStack)-1]
			return err
		}
		if len(t.stmtResult) != 1 {
			t.cur.loopStack = t.cur.loopStack[:len(t.cur.loopStack)-1]
			return typeErr(n.Span(), "for-loop increment must be a single statement")
		}
		incr = t.stmtResult[0]
	}

	body, err := t.typeBlock(n.Body)
	t.cur.loopStack = t.cur.loopStack[:len(t.cur.loopStack)-1]
	if err != nil {
		return err
	}
	t.stmtResult = []Stmt{&TLoop{ID: id, Init: init, Cond: cond, Incr: incr, Body: body, Cleanup: loopLocalCleanup(body)}}
	return nil
}

func (t *Typer) VisitContinueStatement(n *ContinueStatement) error {
	if len(t.cur.loopStack) == 0 {
		return typeErr(n.Span(), "continue outside a loop")
	}
	t.stmtResult = []Stmt{&TContinue{LoopID: t.cur.loopStack[len(t.cur.loopStack)-1]}}
	return nil
}

func (t *Typer) VisitBreakStatement(n *BreakStatement) error {
	if len(t.cur.loopStack) == 0 {
		return typeErr(n.Span(), "break outside a loop")
	}
	t.stmtResult = []Stmt{&TBreak{LoopID: t.cur.loopStack[len(t.cur.loopStack)-1]}}
	return nil
}

func (t *Typer) VisitSwitchStatement(n *SwitchStatement) error {
	gv, ok := n.Subject.(*GetVar)
	if !ok {
		return typeErr(n.Span(), "switch subject must be a plain variable")
	}
	subjType, ok := t.cur.locals[gv.Name]
	if !ok {
		return resolveErr(n.Span(), fmt.Errorf("unknown variable %q", gv.Name))
	}
	if !subjType.IsUnion() {
		return typeErr(n.Span(), "switch subject %s is not a union type", subjType.Name)
	}

	seen := make([]bool, len(subjType.TypeMembers))
	var cases []TSwitchCase
	for _, c := range n.Cases {
		memberType, err := t.resolveTypeName(c.TypeName)
		if err != nil {
			return resolveErr(n.Span(), err)
		}
		idx := -1
		for i, m := range subjType.TypeMembers {
			if m == memberType {
				idx = i
				break
			}
		}
		if idx == -1 {
			return typeErr(n.Span(), "%s is not a member of union %s", c.TypeName, subjType.Name)
		}
		if seen[idx] {
			return typeErr(n.Span(), "duplicate case %s", c.TypeName)
		}
		seen[idx] = true

		savedType := t.cur.locals[gv.Name]
		t.cur.locals[gv.Name] = memberType
		body, err := t.typeBlock(c.Body)
		t.cur.locals[gv.Name] = savedType
		if err != nil {
			return err
		}
		cases = append(cases, TSwitchCase{MemberIndex: idx, MemberType: memberType, Body: body})
	}
	for i, ok := range seen {
		if !ok {
			return typeErr(n.Span(), "switch is not exhaustive: missing case %s", subjType.TypeMembers[i].Name)
		}
	}
	t.stmtResult = []Stmt{&TSwitch{Varname: gv.Name, VarType: subjType, Cases: cases}}
	return nil
}

// --- Operators ---

func (t *Typer) VisitUnaryOp(n *UnaryOp) error {
	operand, err := t.typeExpr(n.Operand)
	if err != nil {
		return err
	}
	ot := operand.TypeOf()
	switch n.Op {
	case "not":
		if ot != t.reg.Bool {
			return typeErr(n.Span(), "`not` needs a bool operand, got %s", ot.Name)
		}
		t.exprResult = &TBoolNot{Operand: operand, Typ: t.reg.Bool}
		return nil
	case "-":
		if ot != t.reg.Int && ot != t.reg.Float {
			return typeErr(n.Span(), "unary `-` needs int or float, got %s", ot.Name)
		}
		t.exprResult = &TNumberNegation{Operand: operand, Typ: ot}
		return nil
	}
	return typeErr(n.Span(), "unknown unary operator %q", n.Op)
}

func (t *Typer) VisitBinaryOp(n *BinaryOp) error {
	e, err := t.lowerBinary(n.Op, n.Left, n.Right, n.Span())
	if err != nil {
		return err
	}
	t.exprResult = e
	return nil
}

// lowerBinary implements spec.md §4.3 "Operator lowering": `!=` always
// dispatches first (before any operand-type inspection) to `not(==)`;
// everything else is dispatched strictly by concrete operand type.
func (t *Typer) lowerBinary(op string, leftNode, rightNode Node, span Span) (TExpr, error) {
	if op == "!=" {
		eq, err := t.lowerBinary("==", leftNode, rightNode, span)
		if err != nil {
			return nil, err
		}
		return &TBoolNot{Operand: eq, Typ: t.reg.Bool}, nil
	}

	left, err := t.typeExpr(leftNode)
	if err != nil {
		return nil, err
	}
	right, err := t.typeExpr(rightNode)
	if err != nil {
		return nil, err
	}
	lt, rt := left.TypeOf(), right.TypeOf()

	// String concatenation is the one non-numeric, non-bool case the
	// generic operand-type dispatch below handles, needed by the
	// parser's splice desugaring (spec.md §4.2) as well as plain
	// `Str + Str` source.
	if op == "+" && lt == t.reg.Str && rt == t.reg.Str {
		return t.wrapOwned(&TStrConcat{Left: left, Right: right, Typ: t.reg.Str}), nil
	}

	if lt == t.reg.Bool && rt == t.reg.Bool {
		switch op {
		case "and":
			return &TBoolAnd{Left: left, Right: right, Typ: t.reg.Bool}, nil
		case "or":
			return &TBoolOr{Left: left, Right: right, Typ: t.reg.Bool}, nil
		case "==":
			return &TBoolOr{
				Left:  &TBoolAnd{Left: left, Right: right, Typ: t.reg.Bool},
				Right: &TBoolAnd{Left: &TBoolNot{Operand: left, Typ: t.reg.Bool}, Right: &TBoolNot{Operand: right, Typ: t.reg.Bool}, Typ: t.reg.Bool},
				Typ:   t.reg.Bool,
			}, nil
		}
		return nil, typeErr(span, "unsupported bool operator %q", op)
	}

	isNum := func(typ *Type) bool { return typ == t.reg.Int || typ == t.reg.Float }
	if isNum(lt) && isNum(rt) {
		// mod lowers straight to C's `%`, which is undefined on
		// `double`; restrict it to int mod int rather than lifting
		// either side the way `+`/`-`/`*` do.
		if op == "mod" && (lt != t.reg.Int || rt != t.reg.Int) {
			return nil, typeErr(span, "mod requires int operands, got %s and %s", lt.Name, rt.Name)
		}

		// `/` always lifts both sides to float (spec.md §4.3).
		if op == "/" {
			if lt == t.reg.Int {
				left = &TIntToFloat{Operand: left, Typ: t.reg.Float}
			}
			if rt == t.reg.Int {
				right = &TIntToFloat{Operand: right, Typ: t.reg.Float}
			}
			return &TFloatDiv{Left: left, Right: right, Typ: t.reg.Float}, nil
		}

		resultType := t.reg.Int
		if lt == t.reg.Int && rt == t.reg.Float {
			left = &TIntToFloat{Operand: left, Typ: t.reg.Float}
			resultType = t.reg.Float
		} else if lt == t.reg.Float && rt == t.reg.Int {
			right = &TIntToFloat{Operand: right, Typ: t.reg.Float}
			resultType = t.reg.Float
		} else if lt == t.reg.Float {
			resultType = t.reg.Float
		}

		switch op {
		case "+", "-", "*", "mod":
			return &TNumOp{Op: op, Left: left, Right: right, Typ: resultType}, nil
		case "==":
			return &TNumberEqual{Left: left, Right: right, Typ: t.reg.Bool}, nil
		case "<", "<=", ">", ">=":
			return &TCompare{Op: op, Left: left, Right: right, Typ: t.reg.Bool}, nil
		}
		return nil, typeErr(span, "unsupported numeric operator %q", op)
	}

	return nil, typeErr(span, "no operator %q for %s and %s", op, lt.Name, rt.Name)
}

// --- Toplevel node visitors: never reached via typeBlock, but
// required to satisfy the Visitor interface exhaustively. ---

func (t *Typer) VisitFuncDef(n *FuncDef) error   { return fmt.Errorf("unreachable: FuncDef visited as expression") }
func (t *Typer) VisitClassDef(n *ClassDef) error { return fmt.Errorf("unreachable: ClassDef visited as expression") }
func (t *Typer) VisitUnionDef(n *UnionDef) error { return fmt.Errorf("unreachable: UnionDef visited as expression") }
func (t *Typer) VisitImportDef(n *ImportDef) error {
	return fmt.Errorf("unreachable: ImportDef visited as expression")
}
