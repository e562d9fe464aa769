package searchindex

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/coder/hnsw"

	"github.com/cloo-solutions/kbase/internal/domain"
	"github.com/cloo-solutions/kbase/internal/scoring"
)

const (
	// candidateMultiplier widens the per-signal candidate pool so that
	// min_score filtering before truncation never undercounts TopK.
	candidateMultiplier = 4
	minCandidates       = 20
)

// Engine is an in-process Index backed by bleve for lexical matching and a
// HNSW graph for vector similarity, one partition per knowledge base. The
// engine holds no authoritative state: partitions are rebuilt from the
// record store by the reindex sweep.
type Engine struct {
	mu         sync.RWMutex
	dimensions int
	partitions map[string]*partition
}

type partition struct {
	mu    sync.RWMutex
	text  bleve.Index
	graph *hnsw.Graph[uint64]
	docs  map[string]Document

	// string id <-> graph key mapping; deletes are lazy (mapping removed,
	// node orphaned) to sidestep graph corruption when removing the last
	// node from coder/hnsw.
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
}

type bleveDoc struct {
	Content      string `json:"content"`
	DocumentName string `json:"document_name"`
}

// NewEngine creates an engine with a fixed vector dimension.
func NewEngine(dimensions int) *Engine {
	return &Engine{
		dimensions: dimensions,
		partitions: make(map[string]*partition),
	}
}

// Dimensions returns the vector dimension every partition enforces.
func (e *Engine) Dimensions() int { return e.dimensions }

func (e *Engine) getPartition(name string) *partition {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.partitions[name]
}

// CreateIndex creates a partition; creating an existing partition is a
// no-op success.
func (e *Engine) CreateIndex(_ context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.partitions[name]; ok {
		return nil
	}

	mapping := bleve.NewIndexMapping()
	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to create text index", err)
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance

	e.partitions[name] = &partition{
		text:   idx,
		graph:  graph,
		docs:   make(map[string]Document),
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
	return nil
}

// IndexExists reports whether the partition exists.
func (e *Engine) IndexExists(_ context.Context, name string) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.partitions[name]
	return ok, nil
}

// DeleteIndex drops a partition; absence counts as success.
func (e *Engine) DeleteIndex(_ context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.partitions[name]
	if !ok {
		return nil
	}
	delete(e.partitions, name)
	_ = p.text.Close()
	return nil
}

// AddDocument upserts a document into the partition.
func (e *Engine) AddDocument(_ context.Context, name string, doc Document) error {
	if doc.ID == "" {
		return domain.NewDomainError(domain.ErrCodeValidation, "index document id is required")
	}
	if len(doc.Embedding) != e.dimensions {
		return domain.NewDomainErrorWithCause(domain.ErrCodeDimensionMismatch,
			fmt.Sprintf("embedding has %d dimensions, index expects %d", len(doc.Embedding), e.dimensions), nil)
	}

	p := e.getPartition(name)
	if p == nil {
		return domain.ErrIndexNotFound
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.text.Index(doc.ID, bleveDoc{Content: doc.Content, DocumentName: doc.DocumentName}); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "text index write failed", err)
	}

	if existing, ok := p.idMap[doc.ID]; ok {
		delete(p.keyMap, existing)
		delete(p.idMap, doc.ID)
	}
	key := p.nextKey
	p.nextKey++
	vec := make([]float32, len(doc.Embedding))
	copy(vec, doc.Embedding)
	p.graph.Add(hnsw.MakeNode(key, vec))
	p.idMap[doc.ID] = key
	p.keyMap[key] = doc.ID

	p.docs[doc.ID] = doc
	return nil
}

// UpdateMetadata applies a merge patch to a document's metadata. The text
// and vector entries are untouched; only the stored metadata changes.
func (e *Engine) UpdateMetadata(_ context.Context, name, id string, patch MetadataPatch) error {
	p := e.getPartition(name)
	if p == nil {
		return domain.ErrIndexNotFound
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	doc, ok := p.docs[id]
	if !ok {
		return domain.ErrChunkNotFound
	}
	if patch.Enabled != nil {
		doc.Metadata.Enabled = *patch.Enabled
	}
	if patch.ChunkStatus != nil {
		doc.Metadata.ChunkStatus = *patch.ChunkStatus
	}
	p.docs[id] = doc
	return nil
}

// DeleteDocument removes a document; absence counts as success.
func (e *Engine) DeleteDocument(_ context.Context, name, id string) error {
	p := e.getPartition(name)
	if p == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.docs[id]; !ok {
		return nil
	}
	if err := p.text.Delete(id); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "text index delete failed", err)
	}
	if key, ok := p.idMap[id]; ok {
		delete(p.keyMap, key)
		delete(p.idMap, id)
	}
	delete(p.docs, id)
	return nil
}

// Search evaluates a scored query against one partition. Threshold
// filtering happens here, before TopK truncation.
func (e *Engine) Search(ctx context.Context, name string, req SearchRequest) ([]Hit, error) {
	p := e.getPartition(name)
	if p == nil {
		return nil, domain.ErrIndexNotFound
	}

	topK := req.TopK
	if topK <= 0 {
		topK = 10
	}
	candidates := topK * candidateMultiplier
	if candidates < minCandidates {
		candidates = minCandidates
	}

	spec := req.Scoring.Normalized()

	if req.Mode == ModeVector || req.Mode == ModeHybrid {
		if len(req.Vector) != e.dimensions {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeDimensionMismatch,
				fmt.Sprintf("query vector has %d dimensions, index expects %d", len(req.Vector), e.dimensions), nil)
		}
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	switch req.Mode {
	case ModeText:
		return p.searchText(ctx, req.Query, topK, candidates, spec)
	case ModeVector:
		return p.searchVector(req.Vector, topK, candidates, spec)
	case ModeHybrid:
		return p.searchHybrid(ctx, req.Query, req.Vector, topK, candidates, spec)
	default:
		return nil, domain.ErrInvalidSearchType
	}
}

// lexicalScores runs the bleve match query and returns raw scores by id.
// An empty query yields no lexical matches, not an error.
func (p *partition) lexicalScores(ctx context.Context, query string, limit int) (map[string]float64, []string, error) {
	if strings.TrimSpace(query) == "" {
		return map[string]float64{}, nil, nil
	}

	match := bleve.NewMatchQuery(query)
	request := bleve.NewSearchRequest(match)
	request.Size = limit

	result, err := p.text.SearchInContext(ctx, request)
	if err != nil {
		return nil, nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "text search failed", err)
	}

	scores := make(map[string]float64, len(result.Hits))
	order := make([]string, 0, len(result.Hits))
	for _, hit := range result.Hits {
		doc, ok := p.docs[hit.ID]
		if !ok || !doc.Metadata.Enabled {
			continue
		}
		scores[hit.ID] = hit.Score
		order = append(order, hit.ID)
	}
	return scores, order, nil
}

// vectorCandidates returns graph neighbors resolved to live ids.
func (p *partition) vectorCandidates(vector []float32, limit int) []string {
	if p.graph.Len() == 0 {
		return nil
	}
	nodes := p.graph.Search(vector, limit)
	ids := make([]string, 0, len(nodes))
	for _, node := range nodes {
		id, ok := p.keyMap[node.Key]
		if !ok {
			continue // lazily deleted
		}
		if doc, ok := p.docs[id]; !ok || !doc.Metadata.Enabled {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (p *partition) searchText(ctx context.Context, query string, topK, candidates int, spec scoring.Spec) ([]Hit, error) {
	raw, order, err := p.lexicalScores(ctx, query, candidates)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(order))
	for _, id := range order {
		score := scoring.TextSubScore(raw[id], spec.TextMaxValue)
		if !spec.Passes(score) {
			continue
		}
		hits = append(hits, p.makeHit(id, score))
	}
	return truncate(hits, topK), nil
}

func (p *partition) searchVector(vector []float32, topK, candidates int, spec scoring.Spec) ([]Hit, error) {
	hits := make([]Hit, 0, candidates)
	for _, id := range p.vectorCandidates(vector, candidates) {
		doc := p.docs[id]
		score := scoring.VectorSubScore(scoring.CosineSimilarity(vector, doc.Embedding))
		if !spec.Passes(score) {
			continue
		}
		hits = append(hits, p.makeHit(id, score))
	}
	sortHits(hits)
	return truncate(hits, topK), nil
}

// searchHybrid fuses both signals over the union of lexical and vector
// candidates. A candidate missing from the lexical list contributes a text
// sub-score of zero, and vice versa.
func (p *partition) searchHybrid(ctx context.Context, query string, vector []float32, topK, candidates int, spec scoring.Spec) ([]Hit, error) {
	raw, order, err := p.lexicalScores(ctx, query, candidates)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(order))
	union := make([]string, 0, len(order)+candidates)
	for _, id := range order {
		seen[id] = struct{}{}
		union = append(union, id)
	}
	for _, id := range p.vectorCandidates(vector, candidates) {
		if _, ok := seen[id]; ok {
			continue
		}
		union = append(union, id)
	}

	hits := make([]Hit, 0, len(union))
	for _, id := range union {
		doc := p.docs[id]
		textScore := scoring.TextSubScore(raw[id], spec.TextMaxValue)
		vectorScore := scoring.VectorSubScore(scoring.CosineSimilarity(vector, doc.Embedding))
		fused := scoring.Fuse(textScore, vectorScore, spec)
		if !spec.Passes(fused) {
			continue
		}
		hits = append(hits, p.makeHit(id, fused))
	}
	sortHits(hits)
	return truncate(hits, topK), nil
}

func (p *partition) makeHit(id string, score float64) Hit {
	doc := p.docs[id]
	return Hit{
		ID:           id,
		Score:        score,
		Content:      doc.Content,
		DocumentID:   doc.DocumentID,
		DocumentName: doc.DocumentName,
		KBID:         doc.KBID,
		Metadata:     doc.Metadata,
	}
}

func sortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
}

func truncate(hits []Hit, topK int) []Hit {
	if len(hits) > topK {
		return hits[:topK]
	}
	return hits
}
