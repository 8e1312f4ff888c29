// Package block defines the unit of indexing shared by the extractor,
// indexer, and searcher.
package block

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Language tags a block's source language, or "text"/"markdown" for prose.
type Language string

const (
	LanguageGo         Language = "go"
	LanguagePython     Language = "python"
	LanguageJavaScript Language = "javascript"
	LanguageTypeScript Language = "typescript"
	LanguageTSX        Language = "tsx"
	LanguageRust       Language = "rust"
	LanguageText       Language = "text"
	LanguageMarkdown   Language = "markdown"
)

// Kind is the syntactic role a Block plays.
type Kind string

const (
	KindFunction  Kind = "function"
	KindMethod    Kind = "method"
	KindClass     Kind = "class"
	KindStruct    Kind = "struct"
	KindEnum      Kind = "enum"
	KindTrait     Kind = "trait"
	KindImpl      Kind = "impl"
	KindInterface Kind = "interface"
	KindModule    Kind = "module"
	KindTextChunk Kind = "text_chunk"
	KindOther     Kind = "other"
)

// Block is the unit of indexing: a contiguous region of a source file with
// a recognized syntactic role.
type Block struct {
	// ID is stable across re-extractions as long as Name and StartLine are
	// unchanged. Derived from (RelativePath, StartLine, Name).
	ID string

	// RelativePath is POSIX-form, relative to the index root.
	RelativePath string

	Language Language
	Kind     Kind

	// Name is the declared identifier, or a synthesized name for prose
	// chunks ("H1 > H2").
	Name string

	// StartLine, EndLine are 1-based and inclusive.
	StartLine int
	EndLine   int

	// Content is the exact source bytes spanning [StartLine, EndLine].
	Content string

	// EmbeddingText is the text fed to the embedder: usually Content,
	// augmented with identifier-split terms for lexical recall.
	EmbeddingText string
}

// MakeID derives a block ID from its identity triple. The ID intentionally
// carries enough entropy (start line + name) that no insertion-order
// dependency can leak through id collisions.
func MakeID(relativePath string, startLine int, name string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%s", relativePath, startLine, name)))
	return hex.EncodeToString(sum[:])[:16]
}

// Contains reports whether b fully covers [startLine, endLine] on both ends.
func (b *Block) Contains(startLine, endLine int) bool {
	return b.StartLine <= startLine && b.EndLine >= endLine
}

// Lines returns the number of lines the block spans.
func (b *Block) Lines() int {
	return b.EndLine - b.StartLine + 1
}
