package vectorstore

import (
	"bufio"
	"fmt"
	"os"
	"sync"

	"github.com/coder/hnsw"
)

// annIndex is an approximate nearest-neighbor graph over pooled
// (fixed-dimensional) vectors, used by QueryWithOptions once a store
// outgrows ApproximateThreshold. Below that threshold the store never
// queries it — brute-force exact MaxSim is cheap enough on its own.
type annIndex struct {
	mu      sync.RWMutex
	path    string
	dim     int
	graph   *hnsw.Graph[uint64]
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
}

func openANN(path string, dim int) (*annIndex, error) {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 64
	graph.Ml = 0.25

	a := &annIndex{
		path:   path,
		dim:    dim,
		graph:  graph,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
	if err := a.load(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *annIndex) add(id string, pooled []float32) {
	if pooled == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if key, exists := a.idMap[id]; exists {
		delete(a.keyMap, key)
	}
	key := a.nextKey
	a.nextKey++
	a.graph.Add(hnsw.MakeNode(key, pooled))
	a.idMap[id] = key
	a.keyMap[key] = id
}

// delete lazily removes id: the node stays in the graph (coder/hnsw does
// not support removing the last node cleanly) but the mapping is dropped
// so it never surfaces in a search result. Compact rebuilds the graph
// without orphans.
func (a *annIndex) delete(ids []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, id := range ids {
		if key, exists := a.idMap[id]; exists {
			delete(a.keyMap, key)
			delete(a.idMap, id)
		}
	}
}

// search returns the k nearest ids by pooled-vector cosine distance.
func (a *annIndex) search(query []float32, k int) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.graph.Len() == 0 {
		return nil
	}
	nodes := a.graph.Search(query, k)
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if id, ok := a.keyMap[n.Key]; ok {
			out = append(out, id)
		}
	}
	return out
}

func (a *annIndex) save() error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	tmp := a.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating ann index file: %w", err)
	}
	if err := a.graph.Export(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("exporting ann graph: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, a.path); err != nil {
		return err
	}
	return a.saveMappings()
}

func (a *annIndex) saveMappings() error {
	tmp := a.path + ".map.tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer f.Close()

	for id, key := range a.idMap {
		if _, err := fmt.Fprintf(f, "%s\t%d\n", id, key); err != nil {
			os.Remove(tmp)
			return err
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, a.path+".map")
}

func (a *annIndex) load() error {
	f, err := os.Open(a.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening ann index file: %w", err)
	}
	defer f.Close()

	if err := a.graph.Import(bufio.NewReader(f)); err != nil {
		return fmt.Errorf("importing ann graph: %w", err)
	}
	return a.loadMappings()
}

func (a *annIndex) loadMappings() error {
	f, err := os.Open(a.path + ".map")
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening ann id map: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var id string
		var key uint64
		if _, err := fmt.Sscanf(scanner.Text(), "%s\t%d", &id, &key); err != nil {
			continue
		}
		a.idMap[id] = key
		a.keyMap[key] = id
		if key >= a.nextKey {
			a.nextKey = key + 1
		}
	}
	return scanner.Err()
}
