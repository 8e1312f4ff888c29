// Package vectorstore is the external store the core treats as a black
// box: it owns BM25 candidate generation, multi-vector MaxSim scoring, and
// approximate nearest-neighbor search over a pooled vector, persisting all
// three behind one on-disk directory.
package vectorstore

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"

	"github.com/semcode-dev/semcode/internal/block"
	"github.com/semcode-dev/semcode/internal/embed"
)

// ApproximateThreshold is the record count above which QueryWithOptions
// switches from exact brute-force MaxSim to an HNSW-backed approximate
// search over pooled vectors, rerank-corrected with exact MaxSim on the
// candidate set it returns.
const ApproximateThreshold = 5000

// recordsFileName is the gob-encoded record table, persisted alongside the
// BM25 and HNSW files Flush writes.
const recordsFileName = "records.gob"

// Record is one stored item: its multi-vector tokens, the lexical text
// they were derived from, and the block they represent (content included,
// so a result can be rendered without a second file read).
type Record struct {
	ID       string
	Tokens   embed.Matrix
	Text     string
	Metadata *block.Block
	Deleted  bool
}

// Result is one scored hit returned by a query method.
type Result struct {
	ID       string
	Score    float64
	Metadata *block.Block
}

// Filter optionally excludes candidates by id/metadata before scoring.
type Filter func(id string, metadata *block.Block) bool

// QueryOptions tunes a pure-semantic query.
type QueryOptions struct {
	Filter Filter
}

// Store is the on-disk, mutex-guarded implementation of the vector store
// contract: a BM25 text index, a pooled-vector HNSW graph, and the
// multi-vector records both are built from.
type Store struct {
	mu  sync.RWMutex
	dir string
	dim int

	records map[string]*Record
	deleted int

	bm25 *bm25Index
	ann  *annIndex
}

// Open opens or creates a store rooted at path, committing to a per-token
// vector width of dim.
func Open(path string, dim int) (*Store, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("vectorstore: creating store directory: %w", err)
	}

	s := &Store{
		dir:     path,
		dim:     dim,
		records: make(map[string]*Record),
	}

	var err error
	s.bm25, err = openBM25(filepath.Join(path, "bm25"))
	if err != nil {
		return nil, fmt.Errorf("vectorstore: opening bm25 index: %w", err)
	}
	s.ann, err = openANN(filepath.Join(path, "ann.hnsw"), dim)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: opening ann index: %w", err)
	}

	if err := s.loadRecords(); err != nil {
		return nil, fmt.Errorf("vectorstore: loading records: %w", err)
	}

	return s, nil
}

// Store inserts or replaces a record. tokens is the block's multi-vector
// embedding, text is the lexical side fed to BM25, metadata is the block
// the record represents (content included).
func (s *Store) Store(id string, tokens embed.Matrix, text string, metadata *block.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[id]; ok && existing.Deleted {
		s.deleted--
	}

	s.records[id] = &Record{ID: id, Tokens: tokens, Text: text, Metadata: metadata}

	if err := s.bm25.indexDoc(id, text); err != nil {
		return fmt.Errorf("vectorstore: indexing %s in bm25: %w", id, err)
	}
	s.ann.add(id, pool(tokens))
	return nil
}

// Delete removes a record. Deletion from the BM25/ANN indexes is
// immediate; the record table marks it deleted until the next Compact.
func (s *Store) Delete(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if r, ok := s.records[id]; ok && !r.Deleted {
			r.Deleted = true
			s.deleted++
		}
	}
	if err := s.bm25.delete(ids); err != nil {
		return fmt.Errorf("vectorstore: deleting from bm25: %w", err)
	}
	s.ann.delete(ids)
	return nil
}

// GetTokens returns a record's tokens and metadata.
func (s *Store) GetTokens(id string) (embed.Matrix, *block.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok || r.Deleted {
		return nil, nil, fmt.Errorf("vectorstore: no such record %q", id)
	}
	return r.Tokens, r.Metadata, nil
}

// Count returns the number of live (non-deleted) records.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records) - s.deleted
}

// DeletedCount returns the number of tombstoned records awaiting Compact.
func (s *Store) DeletedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deleted
}

// Flush persists the record table, the BM25 index, and the ANN index to
// disk. The BM25 index persists itself as writes happen; Flush covers the
// record table and the ANN graph, both written atomically (temp + rename).
func (s *Store) Flush() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.saveRecords(); err != nil {
		return fmt.Errorf("vectorstore: saving records: %w", err)
	}
	if err := s.ann.save(); err != nil {
		return fmt.Errorf("vectorstore: saving ann index: %w", err)
	}
	return nil
}

// Compact drops tombstoned records permanently and rebuilds the ANN graph
// without them, reclaiming the space lazy deletion left behind.
func (s *Store) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := make(map[string]*Record, len(s.records))
	for id, r := range s.records {
		if !r.Deleted {
			live[id] = r
		}
	}
	s.records = live
	s.deleted = 0

	rebuilt, err := openANN(filepath.Join(s.dir, "ann.hnsw"), s.dim)
	if err != nil {
		return fmt.Errorf("vectorstore: rebuilding ann index: %w", err)
	}
	// openANN loads the last flushed graph and id map, tombstoned nodes
	// included; start the rebuild from an empty graph with the same settings.
	fresh := hnsw.NewGraph[uint64]()
	fresh.Distance, fresh.M, fresh.EfSearch, fresh.Ml = rebuilt.graph.Distance, rebuilt.graph.M, rebuilt.graph.EfSearch, rebuilt.graph.Ml
	rebuilt.graph = fresh
	rebuilt.idMap = make(map[string]uint64)
	rebuilt.keyMap = make(map[uint64]string)
	rebuilt.nextKey = 0
	for id, r := range live {
		rebuilt.add(id, pool(r.Tokens))
	}
	s.ann = rebuilt
	return nil
}

// Close releases the underlying BM25 index handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bm25.close()
}

func (s *Store) recordsPath() string {
	return filepath.Join(s.dir, recordsFileName)
}

func (s *Store) loadRecords() error {
	data, err := os.ReadFile(s.recordsPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var recs map[string]*Record
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&recs); err != nil {
		return fmt.Errorf("decoding record table: %w", err)
	}
	for _, r := range recs {
		if r.Deleted {
			s.deleted++
		}
	}
	s.records = recs
	return nil
}

func (s *Store) saveRecords() error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s.records); err != nil {
		return fmt.Errorf("encoding record table: %w", err)
	}
	tmp := s.recordsPath() + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.recordsPath())
}
