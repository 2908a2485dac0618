// Package document decomposes raw document text into an indexed tree of
// headings and paragraphs. Nodes live in a flat arena addressed by integer
// index, so a patch can replace one entry without invalidating sibling
// references. Indices are stable for the duration of one refinement round.
package document

import "strings"

// Kind classifies a node in the arena.
type Kind int

const (
	KindHeading1 Kind = iota
	KindHeading2
	KindParagraph
	KindAbstract
	KindReferenceList
)

func (k Kind) String() string {
	switch k {
	case KindHeading1:
		return "heading1"
	case KindHeading2:
		return "heading2"
	case KindParagraph:
		return "paragraph"
	case KindAbstract:
		return "abstract"
	case KindReferenceList:
		return "references"
	default:
		return "unknown"
	}
}

// Node is one entry in the arena. Headings carry Title and the Raw
// heading line (so the original surface syntax survives a re-render);
// paragraphs and the special leafs carry Body.
type Node struct {
	Kind     Kind
	Title    string
	Raw      string // original heading line, empty for non-headings
	Body     string
	Parent   int   // arena index of owning heading, -1 for top level
	Children []int // arena indices, in document order
}

// Tree is the flat node arena plus the top-level ordering.
type Tree struct {
	Nodes []Node
	Order []int // indices of top-level nodes in document order
}

// Node returns a pointer into the arena. Callers must not hold it across
// an arena append.
func (t *Tree) Node(idx int) *Node {
	return &t.Nodes[idx]
}

// SetBody replaces the body text of one node. Only paragraph nodes are
// expected here; the patch executor enforces that.
func (t *Tree) SetBody(idx int, body string) {
	t.Nodes[idx].Body = body
}

// Paragraphs returns the arena indices of patch-eligible paragraph nodes:
// real body text, long enough to carry an argument, and not secretly a
// heading line.
func (t *Tree) Paragraphs() []int {
	out := make([]int, 0, len(t.Nodes))
	for i, n := range t.Nodes {
		if n.Kind != KindParagraph {
			continue
		}
		if len(strings.TrimSpace(n.Body)) < minParagraphLen {
			continue
		}
		if matchesHeading(strings.TrimSpace(n.Body)) {
			continue
		}
		out = append(out, i)
	}
	return out
}

// Render rebuilds the document text in node order.
func (t *Tree) Render() string {
	var b strings.Builder
	var walk func(idx int)
	walk = func(idx int) {
		n := t.Nodes[idx]
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		switch n.Kind {
		case KindHeading1, KindHeading2:
			b.WriteString(n.Raw)
		case KindReferenceList:
			b.WriteString(n.Title)
			if n.Body != "" {
				b.WriteString("\n\n")
				b.WriteString(n.Body)
			}
		default:
			b.WriteString(n.Body)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	for _, idx := range t.Order {
		walk(idx)
	}
	return b.String()
}
