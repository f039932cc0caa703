package tree

import (
	"fmt"
	"io"
	"strings"
)

const (
	branch = "├── "
	last   = "└── "
	pipe   = "│   "
	indent = "    "
)

// Printer writes trees to an io.Writer.
type Printer struct {
	w io.Writer
}

// NewPrinter returns a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Print writes root and its descendants, one node per line.
func (p *Printer) Print(root *Node) {
	p.line("", root)
	p.printBody(root, "")
}

func (p *Printer) printBody(n *Node, prefix string) {
	commentPrefix := prefix + indent
	if len(n.Children) > 0 {
		commentPrefix = prefix + pipe
	}
	p.printList(n.Comments, commentPrefix)
	p.printList(n.Children, prefix)
}

func (p *Printer) printList(nodes []*Node, prefix string) {
	for i, n := range nodes {
		connector, next := branch, pipe
		if i == len(nodes)-1 {
			connector, next = last, indent
		}
		p.line(prefix+connector, n)
		p.printBody(n, prefix+next)
	}
}

func (p *Printer) line(prefix string, n *Node) {
	var sb strings.Builder
	sb.WriteString(prefix)
	sb.WriteString(n.Name)
	if n.ID != "" {
		sb.WriteString(" #")
		sb.WriteString(n.ID)
	}
	for _, prop := range n.Properties {
		sb.WriteByte(' ')
		sb.WriteString(formatProperty(prop))
	}
	sb.WriteByte('\n')
	_, _ = io.WriteString(p.w, sb.String())
}

func formatProperty(p Property) string {
	if !p.IsMultiValue && len(p.Values) == 1 {
		return fmt.Sprintf("%s=%v", p.Key, p.Values[0])
	}
	vals := make([]string, len(p.Values))
	for i, v := range p.Values {
		vals[i] = fmt.Sprint(v)
	}
	return fmt.Sprintf("%s=(%s)", p.Key, strings.Join(vals, ", "))
}

// String renders root as a string.
func String(root *Node) string {
	var sb strings.Builder
	NewPrinter(&sb).Print(root)
	return sb.String()
}
