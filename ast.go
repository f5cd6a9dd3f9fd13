package oomph

// Node is the common interface for every untyped AST node produced by
// the parser (spec.md §3, "Untyped AST nodes"). It mirrors the
// teacher's AstNode shape -- a source Span plus an Accept entrypoint
// for the visitor -- trimmed of the pretty-printing methods, which
// have no use once the only consumer is the typer rather than a
// human inspecting a grammar.
type Node interface {
	Span() Span
	Accept(Visitor) error
}

// Visitor dispatches over every concrete Node type. The typer is its
// only implementation; this shape is grounded on the teacher's
// AstNodeVisitor / grammar_compiler.go pairing of node set and
// visitor.
type Visitor interface {
	VisitIntLiteral(*IntLiteral) error
	VisitFloatLiteral(*FloatLiteral) error
	VisitStringLiteral(*StringLiteral) error
	VisitNullLiteral(*NullLiteral) error
	VisitGetVar(*GetVar) error
	VisitCall(*Call) error
	VisitUnaryOp(*UnaryOp) error
	VisitBinaryOp(*BinaryOp) error
	VisitConstructor(*Constructor) error
	VisitAttribute(*Attribute) error
	VisitIndex(*Index) error
	VisitListDisplay(*ListDisplay) error

	VisitExprStatement(*ExprStatement) error
	VisitLetStatement(*LetStatement) error
	VisitAssignStatement(*AssignStatement) error
	VisitPassStatement(*PassStatement) error
	VisitReturnStatement(*ReturnStatement) error
	VisitIfStatement(*IfStatement) error
	VisitWhileStatement(*WhileStatement) error
	VisitForStatement(*ForStatement) error
	VisitContinueStatement(*ContinueStatement) error
	VisitBreakStatement(*BreakStatement) error
	VisitSwitchStatement(*SwitchStatement) error

	VisitFuncDef(*FuncDef) error
	VisitClassDef(*ClassDef) error
	VisitUnionDef(*UnionDef) error
	VisitImportDef(*ImportDef) error
}

type base struct{ span Span }

func (b base) Span() Span { return b.span }

// --- Expressions ---

type IntLiteral struct {
	base
	Value string // raw digits; range-checked by the typer (spec.md §9)
}

func (n *IntLiteral) Accept(v Visitor) error { return v.VisitIntLiteral(n) }

type FloatLiteral struct {
	base
	Value string
}

func (n *FloatLiteral) Accept(v Visitor) error { return v.VisitFloatLiteral(n) }

// StringLiteral holds alternating literal/expression parts produced
// by the parser's brace-interpolation desugaring (spec.md §4.2): Parts
// is never empty, Exprs[i] fills the gap between Parts[i] and
// Parts[i+1].
type StringLiteral struct {
	base
	Parts []string
	Exprs []Node
	Multi bool
}

func (n *StringLiteral) Accept(v Visitor) error { return v.VisitStringLiteral(n) }

type NullLiteral struct{ base }

func (n *NullLiteral) Accept(v Visitor) error { return v.VisitNullLiteral(n) }

type GetVar struct {
	base
	Name string
}

func (n *GetVar) Accept(v Visitor) error { return v.VisitGetVar(n) }

type Call struct {
	base
	Func Node
	Args []Node
	// AssertLine is nonzero when Func is the `assert` builtin,
	// carrying the source line the lexer captured on the token
	// (spec.md §4.1 "Assert line capture").
	AssertLine int
}

func (n *Call) Accept(v Visitor) error { return v.VisitCall(n) }

type UnaryOp struct {
	base
	Op      string // "-", "not"
	Operand Node
}

func (n *UnaryOp) Accept(v Visitor) error { return v.VisitUnaryOp(n) }

type BinaryOp struct {
	base
	Op          string
	Left, Right Node
}

func (n *BinaryOp) Accept(v Visitor) error { return v.VisitBinaryOp(n) }

type Constructor struct {
	base
	TypeName string
	Args     []Node
}

func (n *Constructor) Accept(v Visitor) error { return v.VisitConstructor(n) }

type Attribute struct {
	base
	Object Node
	Name   string
}

func (n *Attribute) Accept(v Visitor) error { return v.VisitAttribute(n) }

type Index struct {
	base
	Object Node
	Key    Node
}

func (n *Index) Accept(v Visitor) error { return v.VisitIndex(n) }

type ListDisplay struct {
	base
	Elems []Node
}

func (n *ListDisplay) Accept(v Visitor) error { return v.VisitListDisplay(n) }

// --- Statements ---

type ExprStatement struct {
	base
	Expr Node
}

func (n *ExprStatement) Accept(v Visitor) error { return v.VisitExprStatement(n) }

type LetStatement struct {
	base
	Varname string
	Value   Node
}

func (n *LetStatement) Accept(v Visitor) error { return v.VisitLetStatement(n) }

type AssignStatement struct {
	base
	// Target is parsed as any expression but the typer only accepts a
	// plain GetVar (spec.md §4.3 "assignment to an undeclared name" is
	// the only assignment-target error it names; oomph has no attribute
	// or index setter, matching original_source/oomph/types.py's class
	// method sets, which expose no mutator).
	Target Node
	Value  Node
}

func (n *AssignStatement) Accept(v Visitor) error { return v.VisitAssignStatement(n) }

type PassStatement struct{ base }

func (n *PassStatement) Accept(v Visitor) error { return v.VisitPassStatement(n) }

type ReturnStatement struct {
	base
	Value Node // nil for bare `return`
}

func (n *ReturnStatement) Accept(v Visitor) error { return v.VisitReturnStatement(n) }

type IfBranch struct {
	Cond Node // nil for the trailing `else`
	Body []Node
}

type IfStatement struct {
	base
	Branches []IfBranch
}

func (n *IfStatement) Accept(v Visitor) error { return v.VisitIfStatement(n) }

type WhileStatement struct {
	base
	Cond Node
	Body []Node
}

func (n *WhileStatement) Accept(v Visitor) error { return v.VisitWhileStatement(n) }

// ForStatement covers the C-style `for <init>; <cond>; <incr>:` form
// (e.g. `for let i = 0; i < 3; i = i + 1:`); the typer lowers it into
// a uniform Loop IR node alongside WhileStatement (spec.md §4.3
// "Loops").
type ForStatement struct {
	base
	Init Node // *LetStatement or *AssignStatement
	Cond Node
	Incr Node // *AssignStatement
	Body []Node
}

func (n *ForStatement) Accept(v Visitor) error { return v.VisitForStatement(n) }

type ContinueStatement struct{ base }

func (n *ContinueStatement) Accept(v Visitor) error { return v.VisitContinueStatement(n) }

type BreakStatement struct{ base }

func (n *BreakStatement) Accept(v Visitor) error { return v.VisitBreakStatement(n) }

// SwitchCase has no separate binding name: per spec.md §4.3 "Unions
// and switch", the subject variable itself is re-typed as TypeName
// for the duration of Body.
type SwitchCase struct {
	TypeName string
	Body     []Node
}

type SwitchStatement struct {
	base
	Subject Node
	Cases   []SwitchCase
}

func (n *SwitchStatement) Accept(v Visitor) error { return v.VisitSwitchStatement(n) }

// --- Toplevel ---

type Param struct {
	TypeName string
	Name     string
}

type FuncDef struct {
	base
	Name       string
	Receiver   *Param // non-nil for `meth`
	Args       []Param
	ReturnType string // "" means void
	Body       []Node
}

func (n *FuncDef) Accept(v Visitor) error { return v.VisitFuncDef(n) }

// ClassDef carries only its members: `meth` definitions are parsed as
// standalone toplevel FuncDefs with a Receiver and matched to their
// class by the typer's declare pass, mirroring how the receiver-typed
// method set in original_source/oomph/types.py is built after both
// the class and its methods already exist as separate declarations.
type ClassDef struct {
	base
	Name    string
	Members []Param
}

func (n *ClassDef) Accept(v Visitor) error { return v.VisitClassDef(n) }

type UnionDef struct {
	base
	Name    string
	Members []string
}

func (n *UnionDef) Accept(v Visitor) error { return v.VisitUnionDef(n) }

type ImportDef struct {
	base
	Path string
}

func (n *ImportDef) Accept(v Visitor) error { return v.VisitImportDef(n) }

// File is the root of a single compilation unit's untyped AST.
type File struct {
	Imports []*ImportDef
	Classes []*ClassDef
	Unions  []*UnionDef
	Funcs   []*FuncDef
}
