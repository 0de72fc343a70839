// Package node provides the in-memory node tree the runtime dispatches
// against. It stands in for whatever markup or UI layer feeds activations:
// the runtime only ever sees identifiers, attributes, and child ordering.
package node

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Node is one element in a Document. Nodes are mutable: attributes may be
// rewritten and children added or removed between activations.
type Node struct {
	id    string
	name  string
	attrs map[string]string

	parent   *Node
	children []*Node
	doc      *Document
}

// New creates a detached node. A detached node is not connected to any
// document; synthetic sources for pipeline steps are built this way.
func New(name, id string, attrs map[string]string) *Node {
	n := &Node{
		id:    id,
		name:  name,
		attrs: make(map[string]string, len(attrs)),
	}
	for k, v := range attrs {
		n.attrs[k] = v
	}
	return n
}

// ID returns the node's stable identifier, empty if it has none.
func (n *Node) ID() string { return n.id }

// Name returns the node's element name (e.g. "button", "and-then").
func (n *Node) Name() string { return n.name }

// Attr returns the attribute value and whether it is set.
func (n *Node) Attr(key string) (string, bool) {
	v, ok := n.attrs[key]
	return v, ok
}

// AttrOr returns the attribute value or def when unset.
func (n *Node) AttrOr(key, def string) string {
	if v, ok := n.attrs[key]; ok {
		return v
	}
	return def
}

// AttrBool reports whether the attribute is present with a truthy value.
// A bare empty value counts as true, matching boolean markup attributes.
func (n *Node) AttrBool(key string) bool {
	v, ok := n.attrs[key]
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "true", "1", "yes":
		return true
	}
	return false
}

// AttrDuration parses the attribute as a millisecond count, or a Go
// duration string when suffixed. Returns 0 when unset or malformed.
func (n *Node) AttrDuration(key string) time.Duration {
	v, ok := n.attrs[key]
	if !ok {
		return 0
	}
	v = strings.TrimSpace(v)
	if ms, err := strconv.Atoi(v); err == nil {
		if ms < 0 {
			return 0
		}
		return time.Duration(ms) * time.Millisecond
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	return 0
}

// SetAttr sets or replaces an attribute.
func (n *Node) SetAttr(key, value string) {
	n.attrs[key] = value
}

// RemoveAttr deletes an attribute.
func (n *Node) RemoveAttr(key string) {
	delete(n.attrs, key)
}

// Parent returns the parent node, nil for roots and detached nodes.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the direct children in document order. The returned
// slice is a copy; callers may mutate the tree while iterating it.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// ChildrenNamed returns direct children with the given element name,
// in document order.
func (n *Node) ChildrenNamed(name string) []*Node {
	var out []*Node
	for _, c := range n.children {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

// AppendChild attaches child (and its subtree) under n. Attaching a node
// that already has a parent detaches it first.
func (n *Node) AppendChild(child *Node) {
	if child.parent != nil {
		child.Detach()
	}
	child.parent = n
	n.children = append(n.children, child)
	if n.doc != nil {
		n.doc.adopt(child)
	}
}

// Detach removes n from its parent and drops its subtree from the
// document index. Used for one-shot continuation removal.
func (n *Node) Detach() {
	p := n.parent
	if p == nil {
		return
	}
	for i, c := range p.children {
		if c == n {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	n.parent = nil
	if n.doc != nil {
		n.doc.orphan(n)
	}
}

// Connected reports whether the node still belongs to a document tree.
// Targets must be connected at execution time; stale captured references
// from earlier scheduling rounds fail this check.
func (n *Node) Connected() bool {
	return n.doc != nil
}

// Document is a mutable tree of nodes with an identifier index.
type Document struct {
	root  *Node
	index map[string]*Node
}

// NewDocument creates a document with an empty root.
func NewDocument() *Document {
	d := &Document{index: make(map[string]*Node)}
	d.root = &Node{name: "root", attrs: map[string]string{}, doc: d}
	return d
}

// Root returns the document root node.
func (d *Document) Root() *Node { return d.root }

// Lookup resolves a node by its identifier.
func (d *Document) Lookup(id string) (*Node, bool) {
	n, ok := d.index[id]
	return n, ok
}

// MustLookup resolves a node by identifier or returns an error naming it.
func (d *Document) MustLookup(id string) (*Node, error) {
	if n, ok := d.index[id]; ok {
		return n, nil
	}
	return nil, fmt.Errorf("no node with id %q", id)
}

func (d *Document) adopt(n *Node) {
	n.doc = d
	if n.id != "" {
		d.index[n.id] = n
	}
	for _, c := range n.children {
		d.adopt(c)
	}
}

func (d *Document) orphan(n *Node) {
	if n.id != "" && d.index[n.id] == n {
		delete(d.index, n.id)
	}
	n.doc = nil
	for _, c := range n.children {
		d.orphan(c)
	}
}
