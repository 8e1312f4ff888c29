// Package extract turns parsed source files into block.Block values: the
// symbol-level units the rest of the pipeline indexes and searches over.
package extract

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/semcode-dev/semcode/internal/astparse"
	"github.com/semcode-dev/semcode/internal/block"
	"github.com/semcode-dev/semcode/internal/lang"
)

// headFallbackLines is how much of a file becomes a single synthetic block
// when its language has no grammar, or parsing fails outright — enough to
// make the file findable without pretending to understand its structure.
const headFallbackLines = 200

// Extractor walks one file's AST and emits the blocks it contains. Not
// safe for concurrent use: callers extracting files in parallel must use
// one Extractor per worker (it owns a tree-sitter parser).
type Extractor struct {
	registry *lang.Registry
	parser   *astparse.Parser
}

// New builds an Extractor against the default language registry.
func New() *Extractor {
	return &Extractor{registry: lang.Default(), parser: astparse.New()}
}

// Close releases the underlying parser.
func (e *Extractor) Close() {
	e.parser.Close()
}

// Extract parses source and returns the deduplicated blocks it contains.
// languageName selects the grammar; an empty or unrecognized name falls
// back to a single head block covering the start of the file.
func (e *Extractor) Extract(ctx context.Context, relativePath, languageName string, source []byte) ([]*block.Block, error) {
	cfg, ok := e.registry.ByName(languageName)
	if !ok {
		return []*block.Block{headFallback(relativePath, block.Language(languageName), source)}, nil
	}

	tree, err := e.parser.Parse(ctx, source, languageName)
	if err != nil || tree == nil || tree.Root == nil {
		return []*block.Block{headFallback(relativePath, block.Language(languageName), source)}, nil
	}

	var raw []*block.Block
	tree.Root.Walk(func(n *astparse.Node) bool {
		kind, matched := cfg.NodeKinds[n.Type]
		if !matched {
			return true
		}
		name := ""
		if nameNode := n.FindNameNode(cfg.NameFields); nameNode != nil {
			name = nameNode.Content(source)
		}
		if name == "" {
			return true
		}
		content := n.Content(source)
		b := &block.Block{
			ID:           block.MakeID(relativePath, n.StartLine(), name),
			RelativePath: relativePath,
			Language:     block.Language(languageName),
			Kind:         kind,
			Name:         name,
			StartLine:    n.StartLine(),
			EndLine:      n.EndLine(),
			Content:      content,
		}
		b.EmbeddingText = embeddingText(b)
		raw = append(raw, b)
		return true
	})

	if len(raw) == 0 {
		return []*block.Block{headFallback(relativePath, block.Language(languageName), source)}, nil
	}

	return removeNestedBlocks(raw), nil
}

// embeddingText is the string handed to the embedder and to the lexical
// tokenizer: the block's kind and name followed by its content, so a
// query matching only the name still has full-strength lexical recall.
func embeddingText(b *block.Block) string {
	return fmt.Sprintf("%s %s\n%s", b.Kind, b.Name, b.Content)
}

// removeNestedBlocks drops an inner block when an enclosing block of the
// same Kind already accounts for nearly all of its span — the common case
// being a grammar that matches both a decorator-wrapped node and the bare
// declaration beneath it (Python's decorated_definition wrapping its
// function_definition), producing two near-duplicate spans for one
// symbol. The outer span is retained because it is the one that includes
// the decorator; the inner, narrower duplicate is redundant and dropped.
// The Kind check keeps this collapse scoped to that one case: a class
// containing a method it declares is never the same logical declaration
// as the method, however few lines separate them, so the two are always
// kept as distinct blocks regardless of how the inner definition starts.
// An enclosing block of the same Kind only suppresses a contained one when
// it adds at most two lines beyond it; anything larger is a legitimate
// pair of separate blocks and both are kept.
func removeNestedBlocks(blocks []*block.Block) []*block.Block {
	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].StartLine != blocks[j].StartLine {
			return blocks[i].StartLine < blocks[j].StartLine
		}
		return blocks[i].EndLine > blocks[j].EndLine
	})

	keep := make([]bool, len(blocks))
	for i := range keep {
		keep[i] = true
	}

	for i, outer := range blocks {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(blocks); j++ {
			inner := blocks[j]
			if !keep[j] {
				continue
			}
			if !outer.Contains(inner.StartLine, inner.EndLine) {
				continue
			}
			if outer.Lines() == inner.Lines() {
				continue
			}
			if outer.Kind != inner.Kind {
				continue
			}
			if outer.Lines()-inner.Lines() <= 2 {
				keep[j] = false
			}
		}
	}

	out := make([]*block.Block, 0, len(blocks))
	for i, b := range blocks {
		if keep[i] {
			out = append(out, b)
		}
	}
	return out
}

func headFallback(relativePath string, language block.Language, source []byte) *block.Block {
	lines := strings.Split(string(source), "\n")
	if len(lines) > headFallbackLines {
		lines = lines[:headFallbackLines]
	}
	content := strings.Join(lines, "\n")
	name := relativePath
	b := &block.Block{
		ID:           block.MakeID(relativePath, 1, name),
		RelativePath: relativePath,
		Language:     language,
		Kind:         block.KindOther,
		Name:         name,
		StartLine:    1,
		EndLine:      len(lines),
		Content:      content,
	}
	b.EmbeddingText = embeddingText(b)
	return b
}
