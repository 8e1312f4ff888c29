// Package astparse wraps tree-sitter parsing behind a plain node tree so
// the extractor never touches the sitter API directly.
package astparse

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/semcode-dev/semcode/internal/lang"
)

// Point is a zero-based row/column source position.
type Point struct {
	Row    uint32
	Column uint32
}

// Node is a detached copy of a tree-sitter node: it holds no reference to
// the underlying sitter.Tree, so it stays valid independently of that
// tree's lifetime.
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	HasError   bool
	Children   []*Node
}

// Tree is a parsed file: the root node plus the bytes it was parsed from.
type Tree struct {
	Root     *Node
	Source   []byte
	Language string
}

// Parser parses source bytes into a Tree using the language registry's
// compiled grammars. Not safe for concurrent use by multiple goroutines —
// callers extracting in parallel must use one Parser per worker.
type Parser struct {
	sp       *sitter.Parser
	registry *lang.Registry
}

// New builds a Parser against the default language registry.
func New() *Parser {
	return &Parser{sp: sitter.NewParser(), registry: lang.Default()}
}

// Parse parses source as languageName and returns the converted tree.
func (p *Parser) Parse(ctx context.Context, source []byte, languageName string) (*Tree, error) {
	tsLang, ok := p.registry.TreeSitterLanguage(languageName)
	if !ok {
		return nil, fmt.Errorf("astparse: unsupported language %q", languageName)
	}
	p.sp.SetLanguage(tsLang)

	tsTree, err := p.sp.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("astparse: parse failed: %w", err)
	}
	if tsTree == nil {
		return nil, fmt.Errorf("astparse: parse produced no tree")
	}

	return &Tree{
		Root:     convert(tsTree.RootNode()),
		Source:   source,
		Language: languageName,
	}, nil
}

// Close releases the underlying tree-sitter parser.
func (p *Parser) Close() {
	if p.sp != nil {
		p.sp.Close()
	}
}

func convert(n *sitter.Node) *Node {
	if n == nil {
		return nil
	}
	out := &Node{
		Type:       n.Type(),
		StartByte:  n.StartByte(),
		EndByte:    n.EndByte(),
		StartPoint: Point{Row: n.StartPoint().Row, Column: n.StartPoint().Column},
		EndPoint:   Point{Row: n.EndPoint().Row, Column: n.EndPoint().Column},
		HasError:   n.HasError(),
		Children:   make([]*Node, 0, n.ChildCount()),
	}
	for i := uint32(0); i < n.ChildCount(); i++ {
		if child := n.Child(int(i)); child != nil {
			out.Children = append(out.Children, convert(child))
		}
	}
	return out
}

// Content returns the source slice a node spans.
func (n *Node) Content(source []byte) string {
	if n.StartByte >= n.EndByte || int(n.EndByte) > len(source) {
		return ""
	}
	return string(source[n.StartByte:n.EndByte])
}

// StartLine returns the node's 1-based start line.
func (n *Node) StartLine() int { return int(n.StartPoint.Row) + 1 }

// EndLine returns the node's 1-based end line.
func (n *Node) EndLine() int { return int(n.EndPoint.Row) + 1 }

// FindChildByType returns the first direct child of the given type.
func (n *Node) FindChildByType(nodeType string) *Node {
	for _, c := range n.Children {
		if c.Type == nodeType {
			return c
		}
	}
	return nil
}

// FindNameNode searches direct children, then one level deeper, for the
// first node whose type appears in candidates — mirroring how most
// grammars nest an identifier one hop below a declaration's own node.
func (n *Node) FindNameNode(candidates []string) *Node {
	want := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		want[c] = true
	}
	for _, c := range n.Children {
		if want[c.Type] {
			return c
		}
	}
	for _, c := range n.Children {
		for _, gc := range c.Children {
			if want[gc.Type] {
				return gc
			}
		}
	}
	return nil
}

// Walk traverses the tree depth-first, stopping a branch when fn returns
// false for that node.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}
