package vm

// Expr describes an opaque symbolic expression handle owned by the interpreter collaborator. The engine never
// inspects expression structure; it only threads expressions between collaborator calls and names them for
// traceability. Expressions are bound to the solver session of the path that created them and must not cross
// goroutine boundaries.
type Expr interface {
	// String returns a human-readable rendering of the expression, used for logging only.
	String() string
}

// ExprBuilder constructs symbolic expressions. It is provided by the interpreter collaborator; the engine uses it
// to introduce fresh symbols (senders, origins, call values, block timestamps) and simple constraints over them.
type ExprBuilder interface {
	// BitVec creates a fresh symbolic bit-vector with the provided unique name and bit width.
	BitVec(name string, bits uint) Expr

	// ZeroExt zero-extends the provided expression by the given number of bits.
	ZeroExt(bits uint, value Expr) Expr

	// Ge builds the unsigned greater-or-equal constraint a >= b.
	Ge(a Expr, b Expr) Expr
}

// DynParam describes a dynamically sized calldata parameter and the concrete size bound chosen for it. It is plain
// value data used for reporting.
type DynParam struct {
	// Name is the symbol name of the parameter.
	Name string

	// Size is the concrete byte size bound applied to the parameter.
	Size int
}
