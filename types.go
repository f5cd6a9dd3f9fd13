package oomph

import "fmt"

// Type is the nominal record described in spec.md §3. A single
// canonical *Type is shared by every reference to a given name within
// a compile, so after registration type identity may stand in for
// type equality (mirrors original_source/oomph/types.py's Type).
type Type struct {
	Name       string
	Refcounted bool
	Methods    map[string]*FunctionType
	Members    []Member

	// ConstructorArgTypes is nil for types with no constructor
	// (e.g. unions); non-nil (possibly empty) otherwise.
	ConstructorArgTypes []*Type

	GenericOrigin *GenericSource

	// TypeMembers is set only on union types, via SetTypeMembers.
	TypeMembers []*Type
}

type Member struct {
	Type *Type
	Name string
}

// GenericSource records that a Type was produced by instantiating a
// Generic with a type argument, so two requests for the same (generic,
// arg) pair resolve to the identical *Type (spec.md §3, "Generic
// instantiations are interned").
type GenericSource struct {
	Generic *Generic
	Arg     *Type
}

func (t *Type) String() string { return fmt.Sprintf("<Type %s>", t.Name) }

func (t *Type) IsUnion() bool { return t.TypeMembers != nil }

// SetTypeMembers finalizes a union's member list. Every member must
// be refcounted, there must be at least two, and none may repeat.
func (t *Type) SetTypeMembers(members []*Type) error {
	if t.TypeMembers != nil {
		return fmt.Errorf("union %s already has type members set", t.Name)
	}
	if len(members) < 2 {
		return fmt.Errorf("union %s needs at least two members", t.Name)
	}
	seen := make(map[*Type]bool, len(members))
	for _, m := range members {
		if !m.Refcounted {
			return fmt.Errorf("union %s member %s is not refcounted", t.Name, m.Name)
		}
		if seen[m] {
			return fmt.Errorf("union %s lists member %s twice", t.Name, m.Name)
		}
		seen[m] = true
	}
	t.TypeMembers = members
	return nil
}

// ConstructorType builds the FunctionType a `new T(...)` call is
// checked against.
func (t *Type) ConstructorType() *FunctionType {
	if t.ConstructorArgTypes == nil {
		panic(fmt.Sprintf("%s has no constructor", t.Name))
	}
	return &FunctionType{ArgTypes: t.ConstructorArgTypes, ReturnType: t}
}

// FunctionType is the signature of a function, method or constructor.
// It is a struct of its own, not a *Type, so it has no registry entry
// and no refcount flag.
type FunctionType struct {
	ArgTypes   []*Type
	ReturnType *Type // nil means void
}

func (f *FunctionType) Equal(o *FunctionType) bool {
	if o == nil || len(f.ArgTypes) != len(o.ArgTypes) || f.ReturnType != o.ReturnType {
		return false
	}
	for i := range f.ArgTypes {
		if f.ArgTypes[i] != o.ArgTypes[i] {
			return false
		}
	}
	return true
}

// Generic is a type-level function: List and Optional each close over
// a registry of already-produced instantiations so the same argument
// always yields the same *Type (interning).
type Generic struct {
	Name         string
	instances    map[*Type]*Type
	instantiator func(reg *TypeRegistry, g *Generic, arg *Type) *Type
}

// TypeRegistry owns every named Type and Generic for one compile. It
// is append-only within a unit (spec.md §3, "Lifecycles").
type TypeRegistry struct {
	named map[string]*Type

	Int, Float, Bool, Str *Type
	List, Optional        *Generic
}

func NewTypeRegistry() *TypeRegistry {
	r := &TypeRegistry{named: make(map[string]*Type)}

	r.Int = r.define("int", false)
	r.Float = r.define("float", false)
	r.Bool = r.define("bool", false)
	r.Str = r.define("Str", true)

	r.Bool.Methods["to_string"] = &FunctionType{ArgTypes: []*Type{r.Bool}, ReturnType: r.Str}

	r.Float.Methods["ceil"] = &FunctionType{ArgTypes: []*Type{r.Float}, ReturnType: r.Int}
	r.Float.Methods["floor"] = &FunctionType{ArgTypes: []*Type{r.Float}, ReturnType: r.Int}
	r.Float.Methods["round"] = &FunctionType{ArgTypes: []*Type{r.Float}, ReturnType: r.Int}
	r.Float.Methods["truncate"] = &FunctionType{ArgTypes: []*Type{r.Float}, ReturnType: r.Int}
	r.Float.Methods["to_string"] = &FunctionType{ArgTypes: []*Type{r.Float}, ReturnType: r.Str}

	r.Int.Methods["to_string"] = &FunctionType{ArgTypes: []*Type{r.Int}, ReturnType: r.Str}

	r.List = &Generic{Name: "List", instances: map[*Type]*Type{}}
	r.Optional = &Generic{Name: "optional", instances: map[*Type]*Type{}}

	r.Str.Methods["center_pad"] = &FunctionType{ArgTypes: []*Type{r.Str, r.Int, r.Str}, ReturnType: r.Str}
	r.Str.Methods["split"] = &FunctionType{ArgTypes: []*Type{r.Str, r.Str}, ReturnType: r.ListOf(r.Str)}
	r.Str.Methods["count"] = &FunctionType{ArgTypes: []*Type{r.Str, r.Str}, ReturnType: r.Int}
	r.Str.Methods["ends_with"] = &FunctionType{ArgTypes: []*Type{r.Str, r.Str}, ReturnType: r.Bool}
	r.Str.Methods["find_first"] = &FunctionType{ArgTypes: []*Type{r.Str, r.Str}, ReturnType: r.Int}
	r.Str.Methods["left_pad"] = &FunctionType{ArgTypes: []*Type{r.Str, r.Int, r.Str}, ReturnType: r.Str}
	r.Str.Methods["left_trim"] = &FunctionType{ArgTypes: []*Type{r.Str}, ReturnType: r.Str}
	r.Str.Methods["length"] = &FunctionType{ArgTypes: []*Type{r.Str}, ReturnType: r.Int}
	r.Str.Methods["repeat"] = &FunctionType{ArgTypes: []*Type{r.Str, r.Int}, ReturnType: r.Str}
	r.Str.Methods["replace"] = &FunctionType{ArgTypes: []*Type{r.Str, r.Str, r.Str}, ReturnType: r.Str}
	r.Str.Methods["right_pad"] = &FunctionType{ArgTypes: []*Type{r.Str, r.Int, r.Str}, ReturnType: r.Str}
	r.Str.Methods["right_trim"] = &FunctionType{ArgTypes: []*Type{r.Str}, ReturnType: r.Str}
	r.Str.Methods["slice"] = &FunctionType{ArgTypes: []*Type{r.Str, r.Int, r.Int}, ReturnType: r.Str}
	r.Str.Methods["starts_with"] = &FunctionType{ArgTypes: []*Type{r.Str, r.Str}, ReturnType: r.Bool}
	r.Str.Methods["to_float"] = &FunctionType{ArgTypes: []*Type{r.Str}, ReturnType: r.Float}
	r.Str.Methods["to_int"] = &FunctionType{ArgTypes: []*Type{r.Str}, ReturnType: r.Int}
	r.Str.Methods["to_string"] = &FunctionType{ArgTypes: []*Type{r.Str}, ReturnType: r.Str}
	r.Str.Methods["trim"] = &FunctionType{ArgTypes: []*Type{r.Str}, ReturnType: r.Str}
	r.Str.Methods["unicode_length"] = &FunctionType{ArgTypes: []*Type{r.Str}, ReturnType: r.Int}

	return r
}

func (r *TypeRegistry) define(name string, refcounted bool) *Type {
	t := &Type{Name: name, Refcounted: refcounted, Methods: map[string]*FunctionType{}}
	r.named[name] = t
	return t
}

// Lookup returns a previously declared named type, or (nil, false).
func (r *TypeRegistry) Lookup(name string) (*Type, bool) {
	t, ok := r.named[name]
	return t, ok
}

// Declare registers a new named type (a user class or union),
// erroring on redeclaration.
func (r *TypeRegistry) Declare(name string, refcounted bool) (*Type, error) {
	if _, exists := r.named[name]; exists {
		return nil, fmt.Errorf("type %s already declared", name)
	}
	return r.define(name, refcounted), nil
}

// ListOf and OptionalOf intern generic instantiations: the same
// argument type always returns the identical *Type instance.
func (r *TypeRegistry) ListOf(arg *Type) *Type  { return r.instantiate(r.List, arg) }
func (r *TypeRegistry) OptionalOf(arg *Type) *Type { return r.instantiate(r.Optional, arg) }

func (r *TypeRegistry) instantiate(g *Generic, arg *Type) *Type {
	if existing, ok := g.instances[arg]; ok {
		return existing
	}
	var result *Type
	switch g {
	case r.Optional:
		result = &Type{
			Name:                fmt.Sprintf("optional[%s]", arg.Name),
			Refcounted:          false,
			Methods:             map[string]*FunctionType{},
			ConstructorArgTypes: []*Type{arg},
		}
		result.Methods["get"] = &FunctionType{ArgTypes: []*Type{result}, ReturnType: arg}
		result.Methods["is_null"] = &FunctionType{ArgTypes: []*Type{result}, ReturnType: r.Bool}
	case r.List:
		result = &Type{
			Name:                fmt.Sprintf("List[%s]", arg.Name),
			Refcounted:          true,
			Methods:             map[string]*FunctionType{},
			ConstructorArgTypes: []*Type{},
		}
		result.Methods["get"] = &FunctionType{ArgTypes: []*Type{result, r.Int}, ReturnType: arg}
		result.Methods["length"] = &FunctionType{ArgTypes: []*Type{result}, ReturnType: r.Int}
		result.Methods["push"] = &FunctionType{ArgTypes: []*Type{result, arg}, ReturnType: nil}
		if arg == r.Str {
			result.Methods["join"] = &FunctionType{ArgTypes: []*Type{result, r.Str}, ReturnType: r.Str}
		}
	default:
		panic("unknown generic")
	}
	result.GenericOrigin = &GenericSource{Generic: g, Arg: arg}
	result.Methods["to_string"] = &FunctionType{ArgTypes: []*Type{result}, ReturnType: r.Str}
	g.instances[arg] = result
	return result
}

// DeclareUnion registers a union type and pre-registers its
// to_string method, mirroring UnionType.__init__ in
// original_source/oomph/types.py.
func (r *TypeRegistry) DeclareUnion(name string) (*Type, error) {
	t, err := r.Declare(name, true)
	if err != nil {
		return nil, err
	}
	t.Methods["to_string"] = &FunctionType{ArgTypes: []*Type{t}, ReturnType: r.Str}
	return t, nil
}

// GetMethod looks up a method on t, returning an error that names the
// receiver and method (spec.md §9, "SUPPLEMENTED FEATURES": a bare
// "method not found" without naming both is a common, diagnosable
// gap the original leaves an assert over).
func (t *Type) GetMethod(name string) (*FunctionType, error) {
	if m, ok := t.Methods[name]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("type %s has no method %q", t.Name, name)
}
