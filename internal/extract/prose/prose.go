// Package prose chunks Markdown and plain text files into block.Block
// values, using the document's own header hierarchy as block names where
// one exists and falling back to a recursive separator split otherwise.
package prose

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/semcode-dev/semcode/internal/block"
)

// Target chunk size in estimated tokens, and the overlap carried from the
// tail of one chunk into the head of the next when a section must be
// split. Estimation uses four characters per token, matching how the rest
// of the pipeline budgets context without running a real tokenizer.
const (
	targetTokens  = 400
	overlapTokens = 50
	minChunkChars = 30 * 4
)

var headerPattern = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)

// Options overrides the default chunk token budget and overlap. A zero
// field falls back to the package default (targetTokens/overlapTokens).
type Options struct {
	MaxTokens     int
	OverlapTokens int
}

func (o Options) maxTokens() int {
	if o.MaxTokens > 0 {
		return o.MaxTokens
	}
	return targetTokens
}

func (o Options) overlapTokens() int {
	if o.OverlapTokens > 0 {
		return o.OverlapTokens
	}
	return overlapTokens
}

// Extract splits a Markdown or plain-text file into blocks using the
// default chunk token budget. relativePath and isMarkdown select the
// Language tag; isMarkdown also enables header-path naming, since plain
// text has no header syntax to key off.
func Extract(relativePath string, source []byte, isMarkdown bool) []*block.Block {
	return ExtractWithOptions(relativePath, source, isMarkdown, Options{})
}

// ExtractWithOptions is Extract with a caller-supplied chunk token budget,
// letting Config.Chunk (§10) reach the splitter without disturbing
// Extract's package-default callers.
func ExtractWithOptions(relativePath string, source []byte, isMarkdown bool, opts Options) []*block.Block {
	content := string(source)
	if strings.TrimSpace(content) == "" {
		return nil
	}

	language := block.LanguageText
	if isMarkdown {
		language = block.LanguageMarkdown
	}

	maxTokens := opts.maxTokens()
	overlap := opts.overlapTokens()

	if !isMarkdown {
		return chunkPlain(relativePath, language, content, maxTokens, overlap)
	}

	sections := parseSections(content)
	if len(sections) == 0 {
		return chunkPlain(relativePath, language, content, maxTokens, overlap)
	}

	var blocks []*block.Block
	for _, sec := range sections {
		blocks = append(blocks, chunkSection(relativePath, language, sec, maxTokens, overlap)...)
	}
	return blocks
}

type section struct {
	headerPath string
	startLine  int
	content    string
}

// parseSections walks content line by line, tracking a header-level stack
// so a block's name can carry its full ancestry ("Intro > Usage > CLI")
// rather than just the nearest heading.
func parseSections(content string) []*section {
	lines := strings.Split(content, "\n")
	stack := make([]string, 6)

	var sections []*section
	var cur *section
	var body strings.Builder

	flush := func() {
		if cur != nil {
			cur.content = body.String()
			sections = append(sections, cur)
			body.Reset()
		}
	}

	for i, line := range lines {
		if m := headerPattern.FindStringSubmatch(line); m != nil {
			flush()
			level := len(m[1])
			title := strings.TrimSpace(m[2])
			stack[level-1] = title
			for l := level; l < 6; l++ {
				stack[l] = ""
			}
			var parts []string
			for l := 0; l < level; l++ {
				if stack[l] != "" {
					parts = append(parts, stack[l])
				}
			}
			cur = &section{headerPath: strings.Join(parts, " > "), startLine: i + 1}
			body.WriteString(line)
			body.WriteString("\n")
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()
	return sections
}

func chunkSection(relativePath string, language block.Language, sec *section, maxTokens, overlap int) []*block.Block {
	content := strings.TrimRight(sec.content, "\n")
	if estimateTokens(content) <= maxTokens {
		return []*block.Block{newBlock(relativePath, language, sec.headerPath, sec.startLine, content)}
	}

	parts := splitRecursive(content, maxTokens, overlap)
	blocks := make([]*block.Block, 0, len(parts))
	line := sec.startLine
	for _, p := range parts {
		blocks = append(blocks, newBlock(relativePath, language, sec.headerPath, line, p))
		line += strings.Count(p, "\n") + 1
	}
	return blocks
}

func chunkPlain(relativePath string, language block.Language, content string, maxTokens, overlap int) []*block.Block {
	parts := splitRecursive(strings.TrimRight(content, "\n"), maxTokens, overlap)
	blocks := make([]*block.Block, 0, len(parts))
	line := 1
	for _, p := range parts {
		blocks = append(blocks, newBlock(relativePath, language, "", line, p))
		line += strings.Count(p, "\n") + 1
	}
	return blocks
}

// splitRecursive breaks text into chunks of roughly maxTokens, trying
// progressively finer separators — blank line, then newline, then
// sentence boundary, then plain whitespace — and only recursing into the
// next separator when a piece still exceeds the budget. Adjacent chunks
// overlap by overlapTokens worth of trailing text so a boundary never
// severs the sentence a search result needs for context.
func splitRecursive(text string, maxTokens, overlap int) []string {
	if estimateTokens(text) <= maxTokens || len(text) <= minChunkChars {
		return []string{text}
	}

	separators := []string{"\n\n", "\n", sentenceSplit, " "}
	pieces := splitAtFirstWorkingSeparator(text, separators, maxTokens, overlap)

	var out []string
	var cur strings.Builder
	for _, p := range pieces {
		if cur.Len() > 0 && estimateTokens(cur.String())+estimateTokens(p) > maxTokens {
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
			cur.WriteString(overlapTail(out[len(out)-1], overlap))
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(p)
	}
	if cur.Len() > 0 {
		out = append(out, strings.TrimSpace(cur.String()))
	}
	return out
}

const sentenceSplit = "\x00sentence\x00"

var sentenceRe = regexp.MustCompile(`[.!?]\s+`)

func splitAtFirstWorkingSeparator(text string, separators []string, maxTokens, overlap int) []string {
	for _, sep := range separators {
		var parts []string
		if sep == sentenceSplit {
			parts = sentenceRe.Split(text, -1)
		} else {
			parts = strings.Split(text, sep)
		}
		if len(parts) <= 1 {
			continue
		}
		var result []string
		for _, p := range parts {
			if p == "" {
				continue
			}
			if estimateTokens(p) > maxTokens {
				result = append(result, splitRecursive(p, maxTokens, overlap)...)
			} else {
				result = append(result, p)
			}
		}
		return result
	}
	return []string{text}
}

func overlapTail(s string, overlap int) string {
	maxChars := overlap * 4
	if len(s) <= maxChars {
		return s
	}
	return s[len(s)-maxChars:]
}

func estimateTokens(s string) int {
	return len(s) / 4
}

func newBlock(relativePath string, language block.Language, headerPath string, startLine int, content string) *block.Block {
	name := headerPath
	if name == "" {
		name = relativePath + ":" + strconv.Itoa(startLine)
	}
	b := &block.Block{
		ID:           block.MakeID(relativePath, startLine, name),
		RelativePath: relativePath,
		Language:     language,
		Kind:         block.KindTextChunk,
		Name:         name,
		StartLine:    startLine,
		EndLine:      startLine + strings.Count(content, "\n"),
		Content:      content,
	}
	b.EmbeddingText = content
	return b
}
