package search

import (
	"regexp"
	"strings"

	"github.com/semcode-dev/semcode/internal/block"
)

// Cap is the ceiling every boosted score is clamped to (§4.8).
const Cap = 4.0

// shortWhitelist lets a handful of short identifier terms participate in
// name-term-overlap boosting despite being under the general 3-character
// minimum, matching the reference boost's SHORT_WHITELIST.
var shortWhitelist = map[string]bool{
	"db": true, "fs": true, "io": true, "ui": true, "id": true,
	"ok": true, "fn": true, "rx": true, "tx": true, "api": true,
}

var camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)
var termSplitter = regexp.MustCompile(`[\s_\-./]+`)

// splitTerms expands camelCase boundaries on s (before case-folding, so the
// boundary is still visible), splits on whitespace/separator characters,
// and lowercases the result, keeping only terms that are at least 3
// characters or in the short whitelist.
func splitTerms(s string) map[string]bool {
	expanded := camelBoundary.ReplaceAllString(s, "$1 $2")
	terms := make(map[string]bool)
	for _, t := range termSplitter.Split(expanded, -1) {
		if t == "" {
			continue
		}
		t = strings.ToLower(t)
		if len(t) >= 3 || shortWhitelist[t] {
			terms[t] = true
		}
	}
	return terms
}

var classKinds = map[block.Kind]bool{
	block.KindClass: true, block.KindStruct: true, block.KindImpl: true,
	block.KindEnum: true, block.KindTrait: true,
}

var funcKinds = map[block.Kind]bool{
	block.KindFunction: true, block.KindMethod: true,
}

// Boost applies the code-aware reranking rules of §4.8 to a raw fused
// score, returning the adjusted score clamped to Cap. It is multiplicative
// and each rule is independent; the cap is the only point where the
// contract bounds the result.
func Boost(score float64, queryText string, b *block.Block) float64 {
	return BoostCapped(score, queryText, b, Cap)
}

// BoostCapped is Boost with a caller-supplied cap, letting Config.Boost's
// cap (§9 Open Questions, tunable) reach the clamp without disturbing
// callers that want the package default.
func BoostCapped(score float64, queryText string, b *block.Block, cap float64) float64 {
	if b == nil || queryText == "" {
		return score
	}

	queryTerms := splitTerms(queryText)
	if len(queryTerms) == 0 {
		return score
	}

	nameLower := strings.ToLower(b.Name)
	multiplier := 1.0

	if nameLower != "" && queryTerms[nameLower] {
		multiplier *= 2.5
	} else {
		nameTerms := splitTerms(b.Name)
		overlap := 0
		for t := range queryTerms {
			if nameTerms[t] {
				overlap++
			}
		}
		if overlap > 0 {
			multiplier *= pow1_3(overlap)
		}
	}

	wantsClass := queryTerms["class"] || queryTerms["struct"]
	wantsFunc := queryTerms["function"] || queryTerms["method"]
	if wantsClass && classKinds[b.Kind] {
		multiplier *= 1.2
	}
	if wantsFunc && funcKinds[b.Kind] {
		multiplier *= 1.3
	}

	pathLower := strings.ToLower(b.RelativePath)
	for t := range queryTerms {
		if len(t) >= 3 && pathHasSegment(pathLower, t) {
			multiplier *= 1.15
			break
		}
	}

	score *= multiplier
	if score > cap {
		// The cap bounds the multiplier's effect on a score already in
		// [0, 1] from fusion; once boosted values exceed it they are
		// clamped rather than rescaled, per §4.8 "clamped to ≤ cap".
		score = cap
	}
	return score
}

// pow1_3 returns 1.3^n, matching "1.3× per term" applied n times.
func pow1_3(n int) float64 {
	v := 1.0
	for i := 0; i < n; i++ {
		v *= 1.3
	}
	return v
}

// pathHasSegment reports whether term appears as a whole path segment
// (between slashes, or at the start/extension boundary) of relPath.
func pathHasSegment(relPath, term string) bool {
	for _, seg := range strings.Split(relPath, "/") {
		seg = strings.TrimSuffix(seg, extOf(seg))
		if seg == term {
			return true
		}
	}
	return false
}

func extOf(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[i:]
	}
	return ""
}
