package agenda

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Node is the small slice of DOM behaviour the extractor needs. Selectors
// passed to Find and First are simple: "tag", ".class", "#id" or "[attr]".
type Node interface {
	// Find returns matching descendants in document order.
	Find(selector string) []Node
	// First returns the first matching descendant.
	First(selector string) (Node, bool)
	// Children returns the element children in document order.
	Children() []Node
	Attr(name string) (string, bool)
	// Text returns the concatenated text content.
	Text() string
	HasClass(name string) bool
}

// ParseDocument parses an HTML page into a navigable Node.
func ParseDocument(r io.Reader) (Node, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	return selectionNode{doc.Selection}, nil
}

// ParseString is ParseDocument for in-memory markup.
func ParseString(markup string) (Node, error) {
	return ParseDocument(strings.NewReader(markup))
}

// selectionNode adapts a single-element goquery selection to Node.
type selectionNode struct {
	sel *goquery.Selection
}

func wrapAll(sel *goquery.Selection) []Node {
	nodes := make([]Node, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, selectionNode{s})
	})
	return nodes
}

func (n selectionNode) Find(selector string) []Node {
	return wrapAll(n.sel.Find(selector))
}

func (n selectionNode) First(selector string) (Node, bool) {
	s := n.sel.Find(selector).First()
	if s.Length() == 0 {
		return nil, false
	}
	return selectionNode{s}, true
}

func (n selectionNode) Children() []Node {
	return wrapAll(n.sel.Children())
}

func (n selectionNode) Attr(name string) (string, bool) {
	return n.sel.Attr(name)
}

func (n selectionNode) Text() string {
	return n.sel.Text()
}

func (n selectionNode) HasClass(name string) bool {
	return n.sel.HasClass(name)
}
