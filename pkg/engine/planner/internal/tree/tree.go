// Package tree models labelled trees and renders them with box-drawing
// connectors. Plan printers convert their nodes into a tree first.
package tree

// Property is a key-value pair attached to a [Node]. A single-value property
// prints as `key=value`, a multi-value property as `key=(v1, v2, ...)`.
type Property struct {
	Key          string
	Values       []any
	IsMultiValue bool
}

// NewProperty creates a property. Set multi for list-valued properties, even
// when values holds a single element.
func NewProperty(key string, multi bool, values ...any) Property {
	return Property{Key: key, Values: values, IsMultiValue: multi}
}

// Node is an element of a printable tree.
type Node struct {
	// ID is printed as `#id` after the name when not empty.
	ID         string
	Name       string
	Properties []Property
	Children   []*Node
	// Comments are printed before Children and indented one level deeper.
	// Plan printers use them for per-node details such as output schemas.
	Comments []*Node
}

// NewNode creates a node.
func NewNode(name, id string, properties ...Property) *Node {
	return &Node{ID: id, Name: name, Properties: properties}
}

// AddChild creates a node and appends it to the children of n.
func (n *Node) AddChild(name, id string, properties []Property) *Node {
	child := NewNode(name, id, properties...)
	n.Children = append(n.Children, child)
	return child
}

// AddComment creates a node and appends it to the comments of n.
func (n *Node) AddComment(name, id string, properties []Property) *Node {
	c := NewNode(name, id, properties...)
	n.Comments = append(n.Comments, c)
	return c
}
