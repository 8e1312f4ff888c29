package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/semcode-dev/semcode/internal/block"
)

func TestBoost_ExactNameMatchMultipliesByTwoPointFive(t *testing.T) {
	b := &block.Block{Name: "Greet", Kind: block.KindFunction, RelativePath: "main.go"}
	got := Boost(1.0, "greet", b)
	assert.InDelta(t, 2.5, got, 0.001)
}

func TestBoost_NameTermOverlapCompounds(t *testing.T) {
	b := &block.Block{Name: "getUserName", Kind: block.KindFunction, RelativePath: "user.go"}
	got := Boost(1.0, "get user profile", b)
	assert.Greater(t, got, 1.0)
	assert.Less(t, got, Cap)
}

func TestBoost_KindAffinityForClassQuery(t *testing.T) {
	b := &block.Block{Name: "Widget", Kind: block.KindStruct, RelativePath: "widget.go"}
	got := Boost(1.0, "struct widget", b)
	assert.Greater(t, got, 1.0)
}

func TestBoost_PathRelevanceAppliesOnce(t *testing.T) {
	b := &block.Block{Name: "Foo", Kind: block.KindFunction, RelativePath: "internal/auth/foo.go"}
	got := Boost(1.0, "auth handling", b)
	assert.InDelta(t, 1.15, got, 0.001)
}

func TestBoost_ClampsAtCap(t *testing.T) {
	b := &block.Block{Name: "parseHTTPRequestHandler", Kind: block.KindFunction, RelativePath: "internal/http/parseHTTPRequestHandler.go"}
	got := Boost(2.0, "parse http request handler function method", b)
	assert.LessOrEqual(t, got, Cap)
}

func TestBoost_EmptyQueryIsNoop(t *testing.T) {
	b := &block.Block{Name: "Greet", Kind: block.KindFunction}
	assert.Equal(t, 1.0, Boost(1.0, "", b))
}

func TestBoost_ShortWhitelistTermParticipates(t *testing.T) {
	b := &block.Block{Name: "db", Kind: block.KindFunction, RelativePath: "db.go"}
	got := Boost(1.0, "db", b)
	assert.InDelta(t, 2.5, got, 0.001)
}
