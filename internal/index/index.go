// Package index is an optional name/attribute-name accelerant for Apply: a
// per-container Bleve full-text index of object link names and attribute
// names that lets LinkName/AttrName evaluation narrow its candidate set
// before falling back to the authoritative in-container evaluation. It is
// never consulted for correctness by itself — a hit here is a candidate,
// not a verdict — matching the teacher's tenant-scoped BleveManager.
package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// NameDoc is what gets indexed per object/attribute: the path it lives at
// and the name component Apply filters on.
type NameDoc struct {
	Path string `json:"path"`
	Name string `json:"name"`
	Kind string `json:"kind"` // "object" or "attribute"
}

// Manager manages one Bleve index per container.
type Manager struct {
	basePath string
	indexes  map[string]bleve.Index
	mu       sync.RWMutex
}

// New creates a Manager rooted at basePath, creating the directory if
// needed.
func New(basePath string) (*Manager, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("index: create base path: %w", err)
	}
	return &Manager{basePath: basePath, indexes: make(map[string]bleve.Index)}, nil
}

// GetOrCreateIndex returns the index for the given container, creating it
// if needed.
func (m *Manager) GetOrCreateIndex(containerName string) (bleve.Index, error) {
	m.mu.RLock()
	if idx, ok := m.indexes[containerName]; ok {
		m.mu.RUnlock()
		return idx, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if idx, ok := m.indexes[containerName]; ok {
		return idx, nil
	}

	indexPath := filepath.Join(m.basePath, containerName)
	idx, err := bleve.Open(indexPath)
	if err != nil {
		idx, err = bleve.New(indexPath, buildNameMapping())
		if err != nil {
			return nil, fmt.Errorf("index: create index for container %s: %w", containerName, err)
		}
	}
	m.indexes[containerName] = idx
	return idx, nil
}

func buildNameMapping() mapping.IndexMapping {
	keywordField := bleve.NewKeywordFieldMapping()
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = "standard"

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("path", keywordField)
	docMapping.AddFieldMappingsAt("name", textField)
	docMapping.AddFieldMappingsAt("kind", keywordField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// IndexNames batch-indexes a slice of name documents for a container.
func (m *Manager) IndexNames(ctx context.Context, containerName string, docs []NameDoc) error {
	idx, err := m.GetOrCreateIndex(containerName)
	if err != nil {
		return err
	}

	batch := idx.NewBatch()
	for i, d := range docs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		id := fmt.Sprintf("%s#%d", d.Path, i)
		batch.Index(id, d)
	}
	return idx.Batch(batch)
}

// MatchingPaths runs a name/phrase query and returns the candidate object
// paths it matched. Apply still re-evaluates the full predicate against
// each candidate — this is a narrowing step, not a replacement for
// evaluation.
func (m *Manager) MatchingPaths(ctx context.Context, containerName, queryText string) ([]string, error) {
	idx, err := m.GetOrCreateIndex(containerName)
	if err != nil {
		return nil, err
	}

	q := bleve.NewMatchQuery(queryText)
	q.SetField("name")
	req := bleve.NewSearchRequest(q)
	req.Fields = []string{"path"}
	req.Size = 10000

	result, err := idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("index: search container %s: %w", containerName, err)
	}

	seen := make(map[string]bool, len(result.Hits))
	var paths []string
	for _, hit := range result.Hits {
		p, _ := hit.Fields["path"].(string)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		paths = append(paths, p)
	}
	return paths, nil
}

// DropIndex removes a container's index from memory and disk, used when a
// materialized view's host container is torn down.
func (m *Manager) DropIndex(containerName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if idx, ok := m.indexes[containerName]; ok {
		if err := idx.Close(); err != nil {
			return fmt.Errorf("index: close index for container %s: %w", containerName, err)
		}
		delete(m.indexes, containerName)
	}
	return os.RemoveAll(filepath.Join(m.basePath, containerName))
}

// Close closes all open indexes without removing them from disk.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for name, idx := range m.indexes {
		if err := idx.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("index: close index for container %s: %w", name, err)
		}
		delete(m.indexes, name)
	}
	return firstErr
}
