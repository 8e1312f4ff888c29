package vectorstore

import (
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"

	"github.com/semcode-dev/semcode/internal/lexical"
)

const (
	codeTokenizerName = "semcode_code_tokenizer"
	codeAnalyzerName  = "semcode_code_analyzer"
)

func init() {
	_ = registry.RegisterTokenizer(codeTokenizerName, codeTokenizerConstructor)
}

// bm25Index wraps a Bleve index configured with the identifier-aware
// tokenizer (§4.3), so BM25 candidate generation sees the same subtokens
// the rest of the pipeline does.
type bm25Index struct {
	mu    sync.RWMutex
	index bleve.Index
}

type bm25Doc struct {
	Text string `json:"text"`
}

func openBM25(path string) (*bm25Index, error) {
	indexMapping, err := buildIndexMapping()
	if err != nil {
		return nil, err
	}

	idx, err := bleve.Open(path)
	switch err {
	case nil:
		return &bm25Index{index: idx}, nil
	case bleve.ErrorIndexPathDoesNotExist:
		idx, err = bleve.New(path, indexMapping)
		if err != nil {
			return nil, fmt.Errorf("creating bm25 index: %w", err)
		}
		return &bm25Index{index: idx}, nil
	default:
		return nil, fmt.Errorf("opening bm25 index: %w", err)
	}
}

func buildIndexMapping() (*mapping.IndexMappingImpl, error) {
	m := bleve.NewIndexMapping()
	if err := m.AddCustomAnalyzer(codeAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": codeTokenizerName,
		"token_filters": []string{
			lowercase.Name,
		},
	}); err != nil {
		return nil, fmt.Errorf("registering code analyzer: %w", err)
	}
	m.DefaultAnalyzer = codeAnalyzerName
	return m, nil
}

func (b *bm25Index) indexDoc(id, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index.Index(id, bm25Doc{Text: text})
}

func (b *bm25Index) delete(ids []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	return b.index.Batch(batch)
}

// search returns the top limit candidates by BM25 score for queryText.
func (b *bm25Index) search(queryText string, limit int) (map[string]float64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if strings.TrimSpace(queryText) == "" {
		return map[string]float64{}, nil
	}

	q := bleve.NewMatchQuery(queryText)
	q.SetField("text")

	req := bleve.NewSearchRequest(q)
	req.Size = limit

	result, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bm25 search: %w", err)
	}

	scores := make(map[string]float64, len(result.Hits))
	for _, hit := range result.Hits {
		scores[hit.ID] = hit.Score
	}
	return scores, nil
}

func (b *bm25Index) close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index.Close()
}

// codeTokenizerConstructor adapts the identifier-aware tokenizer (§4.3)
// into Bleve's analysis.Tokenizer interface, so BM25 indexes the same
// camelCase/snake_case subtokens the rest of the pipeline sees.
func codeTokenizerConstructor(_ map[string]interface{}, _ *registry.Cache) (analysis.Tokenizer, error) {
	return &codeTokenizer{}, nil
}

type codeTokenizer struct{}

func (t *codeTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	tokens := lexical.Tokenize(text)

	out := make(analysis.TokenStream, 0, len(tokens))
	offset := 0
	for i, tok := range tokens {
		start := strings.Index(strings.ToLower(text[offset:]), strings.ToLower(tok))
		if start == -1 {
			start = 0
		}
		start += offset
		end := start + len(tok)
		out = append(out, &analysis.Token{
			Term:     []byte(tok),
			Start:    start,
			End:      end,
			Position: i + 1,
			Type:     analysis.AlphaNumeric,
		})
		if end <= len(text) {
			offset = end
		}
	}
	return out
}
