package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/cloo-solutions/kbase/internal/domain"
	"github.com/cloo-solutions/kbase/internal/searchindex"
)

const (
	// DefaultReindexBatchSize limits how many chunks one sweep drains
	DefaultReindexBatchSize = 100
)

// ChunkSource provides the chunk rows the reindex sweep works from
type ChunkSource interface {
	ListOutOfSync(ctx context.Context, limit int) ([]*domain.Chunk, error)
	ListAll(ctx context.Context) ([]*domain.Chunk, error)
	UpdateIndexState(ctx context.Context, id string, state domain.IndexStatus) error
}

// DocumentSource resolves parent documents for index metadata
type DocumentSource interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// ReindexWorker re-propagates chunks whose index_state says the search
// index lags behind the record store. Because chunk embeddings live in
// the record store, a sweep never talks to the embedding service.
type ReindexWorker struct {
	chunks    ChunkSource
	docs      DocumentSource
	index     searchindex.Index
	batchSize int
}

// NewReindexWorker creates a new ReindexWorker instance
func NewReindexWorker(chunks ChunkSource, docs DocumentSource, index searchindex.Index) *ReindexWorker {
	return &ReindexWorker{
		chunks:    chunks,
		docs:      docs,
		index:     index,
		batchSize: DefaultReindexBatchSize,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *ReindexWorker) ProcessJobs(ctx context.Context) error {
	chunks, err := w.chunks.ListOutOfSync(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("failed to list out-of-sync chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil
	}

	log.Printf("Reconciling %d out-of-sync chunks", len(chunks))

	docCache := make(map[string]*domain.Document)
	for _, chunk := range chunks {
		if err := w.reindexChunk(ctx, chunk, docCache); err != nil {
			log.Printf("Error reindexing chunk %s: %v", chunk.ID, err)
		}
	}
	return nil
}

// RebuildAll loads every chunk row into the search index. Called at boot,
// when the in-memory index starts empty.
func (w *ReindexWorker) RebuildAll(ctx context.Context) error {
	chunks, err := w.chunks.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list chunks for rebuild: %w", err)
	}

	docCache := make(map[string]*domain.Document)
	rebuilt := 0
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			continue
		}
		doc, err := w.document(ctx, chunk.DocumentID, docCache)
		if err != nil {
			log.Printf("Rebuild: skipping chunk %s, document lookup failed: %v", chunk.ID, err)
			continue
		}
		name := searchindex.IndexName(chunk.KBID)
		if err := w.index.CreateIndex(ctx, name); err != nil {
			return fmt.Errorf("failed to create index %s: %w", name, err)
		}
		if err := w.index.AddDocument(ctx, name, indexDocument(doc, chunk)); err != nil {
			log.Printf("Rebuild: failed to index chunk %s: %v", chunk.ID, err)
			continue
		}
		if chunk.IndexState != domain.IndexStatusIndexed {
			if err := w.chunks.UpdateIndexState(ctx, chunk.ID, domain.IndexStatusIndexed); err != nil {
				log.Printf("Rebuild: chunk %s indexed but state not recorded: %v", chunk.ID, err)
			}
		}
		rebuilt++
	}

	log.Printf("Index rebuild complete: %d chunks indexed", rebuilt)
	return nil
}

func (w *ReindexWorker) reindexChunk(ctx context.Context, chunk *domain.Chunk, docCache map[string]*domain.Document) error {
	if len(chunk.Embedding) == 0 {
		// ingestion never produced a vector; nothing to propagate
		return nil
	}

	doc, err := w.document(ctx, chunk.DocumentID, docCache)
	if err != nil {
		return err
	}

	name := searchindex.IndexName(chunk.KBID)
	if err := w.index.CreateIndex(ctx, name); err != nil {
		return err
	}
	if err := w.index.AddDocument(ctx, name, indexDocument(doc, chunk)); err != nil {
		return err
	}
	return w.chunks.UpdateIndexState(ctx, chunk.ID, domain.IndexStatusIndexed)
}

func (w *ReindexWorker) document(ctx context.Context, id string, cache map[string]*domain.Document) (*domain.Document, error) {
	if doc, ok := cache[id]; ok {
		return doc, nil
	}
	doc, err := w.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	cache[id] = doc
	return doc, nil
}

func indexDocument(doc *domain.Document, chunk *domain.Chunk) searchindex.Document {
	enabled := chunk.Status == domain.ChunkStatusEnabled && doc.Status == domain.DocumentStatusEnabled
	return searchindex.Document{
		ID:           chunk.ID,
		KBID:         chunk.KBID,
		DocumentID:   chunk.DocumentID,
		DocumentName: doc.Name,
		Content:      chunk.Content,
		Embedding:    chunk.Embedding,
		Metadata: searchindex.Metadata{
			Enabled:     enabled,
			ChunkStatus: int16(chunk.Status),
			DocumentID:  chunk.DocumentID,
		},
	}
}
