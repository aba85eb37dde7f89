// Package expr implements the closed boolean/comparison grammar used for
// workflow conditions. Expressions are stateless and side-effect-free;
// anything outside the grammar is rejected at parse time, so condition
// evaluation can fail closed without executing unknown input.
package expr

import "fmt"

// Node is the interface implemented by all AST nodes.
type Node interface {
	node() // marker method
	String() string
}

// Binary represents a binary operation (a == b, a && b, x in xs).
type Binary struct {
	Left  Node
	Op    TokenKind
	Right Node
}

func (n *Binary) node() {}
func (n *Binary) String() string {
	return fmt.Sprintf("(%s %s %s)", n.Left, n.Op, n.Right)
}

// Not represents logical negation (!a).
type Not struct {
	Operand Node
}

func (n *Not) node() {}
func (n *Not) String() string {
	return fmt.Sprintf("(!%s)", n.Operand)
}

// Literal represents a literal value: float64, string, bool, or nil.
type Literal struct {
	Value any
}

func (n *Literal) node() {}
func (n *Literal) String() string {
	if n.Value == nil {
		return "null"
	}
	return fmt.Sprintf("%v", n.Value)
}

// Ident represents a variable reference (price, item).
type Ident struct {
	Name string
}

func (n *Ident) node() {}
func (n *Ident) String() string {
	return n.Name
}

// Member represents property access (item.price).
type Member struct {
	Object   Node
	Property string
}

func (n *Member) node() {}
func (n *Member) String() string {
	return fmt.Sprintf("%s.%s", n.Object, n.Property)
}

// Index represents array index access (tags[0]).
type Index struct {
	Object Node
	Key    Node
}

func (n *Index) node() {}
func (n *Index) String() string {
	return fmt.Sprintf("%s[%s]", n.Object, n.Key)
}

// List represents an inline array literal (["a", "b"]).
type List struct {
	Elements []Node
}

func (n *List) node() {}
func (n *List) String() string {
	return fmt.Sprintf("[%d elements]", len(n.Elements))
}
