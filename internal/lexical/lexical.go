// Package lexical turns code and query text into the term stream used by
// both the BM25 index and the boost scorer, so both sides agree on what a
// "term" is.
package lexical

import (
	"regexp"
	"strings"
	"unicode"
)

// tokenPattern matches runs of word characters and path separators; path
// separators are kept in the match so SplitCodeToken can see them.
var tokenPattern = regexp.MustCompile(`[a-zA-Z0-9_/.\-]+`)

// stopWords are dropped after splitting, case-insensitively. Kept short —
// this is lexical noise removal, not a general English stop list, so only
// keywords that show up in nearly every block survive to be filtered.
var stopWords = BuildStopWordMap([]string{
	"fn", "let", "pub", "def", "class", "return", "import", "const",
	"none", "true", "false", "func", "function", "struct", "interface",
	"package", "from", "var", "public", "private", "static", "this",
	"self", "nil", "null", "void", "the", "a", "an", "and", "or", "if",
	"else", "for", "while",
})

// Tokenize splits text into the lowercase term stream indexed by BM25: the
// original token (lowercased) plus every camelCase/snake_case/path
// subtoken, with stop words removed. Duplicate tokens are kept — BM25's
// term-frequency weighting depends on repetition surviving tokenization.
func Tokenize(text string) []string {
	var tokens []string
	for _, word := range tokenPattern.FindAllString(text, -1) {
		for _, part := range splitPathSeparators(word) {
			tokens = append(tokens, SplitCodeToken(part)...)
		}
	}
	return FilterStopWords(tokens, stopWords)
}

// splitPathSeparators breaks "internal/lexical/lexical.go" into
// ["internal", "lexical", "lexical", "go"], retaining each segment as a
// token in its own right alongside the subtokens SplitCodeToken derives
// from it.
func splitPathSeparators(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '/' || r == '.' || r == '-'
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// SplitCodeToken lowercases word and returns it alongside every
// camelCase/snake_case subtoken it decomposes into. The whole token is
// always present so an exact-identifier query term still matches.
func SplitCodeToken(word string) []string {
	if word == "" {
		return nil
	}
	lower := strings.ToLower(word)
	out := []string{lower}

	var parts []string
	if strings.Contains(word, "_") {
		for _, p := range strings.Split(word, "_") {
			if p != "" {
				parts = append(parts, SplitCamelCase(p)...)
			}
		}
	} else {
		parts = SplitCamelCase(word)
	}

	for _, p := range parts {
		pl := strings.ToLower(p)
		if len(pl) >= 2 && pl != lower {
			out = append(out, pl)
		}
	}
	return out
}

// SplitCamelCase splits camelCase and PascalCase identifiers, treating a
// run of uppercase letters as a single acronym token:
//
//	"getUserByID"     -> ["get", "User", "By", "ID"]
//	"HTTPHandler"     -> ["HTTP", "Handler"]
//	"parseHTTPRequest -> ["parse", "HTTP", "Request"]
func SplitCamelCase(s string) []string {
	if s == "" {
		return nil
	}

	var result []string
	var current strings.Builder

	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevIsLower := unicode.IsLower(runes[i-1])
			nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevIsLower || nextIsLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

// FilterStopWords drops tokens present in stop, compared case-insensitively.
func FilterStopWords(tokens []string, stop map[string]struct{}) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, isStop := stop[strings.ToLower(t)]; !isStop {
			out = append(out, t)
		}
	}
	return out
}

// BuildStopWordMap converts a word list into a lookup set.
func BuildStopWordMap(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[strings.ToLower(w)] = struct{}{}
	}
	return m
}
