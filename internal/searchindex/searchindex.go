// Package searchindex provides the full-text + vector search index the
// chunk pipeline propagates into. The index is a derived, rebuildable
// projection of the record store, partitioned per knowledge base; callers
// interact with it only through the narrow Index contract.
package searchindex

import (
	"context"

	"github.com/cloo-solutions/kbase/internal/scoring"
)

// Mode selects which signals a search evaluates.
type Mode string

const (
	ModeText   Mode = "text"
	ModeVector Mode = "vector"
	ModeHybrid Mode = "hybrid"
)

// Metadata is the filterable per-document metadata mirrored into the index.
type Metadata struct {
	Enabled     bool   `json:"enabled"`
	ChunkStatus int16  `json:"chunk_status"`
	DocumentID  string `json:"document_id"`
}

// Document is the index's mirror of a chunk. IDs are chunk ids.
type Document struct {
	ID           string
	KBID         string
	DocumentID   string
	DocumentName string
	Content      string
	Embedding    []float32
	Metadata     Metadata
}

// MetadataPatch is a merge patch for a document's metadata; nil fields are
// left untouched.
type MetadataPatch struct {
	Enabled     *bool
	ChunkStatus *int16
}

// SearchRequest carries a query plus the scoring specification evaluated
// inside the index, so threshold filtering happens before TopK truncation.
type SearchRequest struct {
	Mode    Mode
	Query   string
	Vector  []float32
	TopK    int
	Scoring scoring.Spec
}

// Hit is a single scored result.
type Hit struct {
	ID           string
	Score        float64
	Content      string
	DocumentID   string
	DocumentName string
	KBID         string
	Metadata     Metadata
}

// Index is the narrow client contract the indexing pipeline and the search
// orchestrator depend on. Implementations must make CreateIndex,
// DeleteIndex and DeleteDocument idempotent: already-exists and absence
// both count as success.
type Index interface {
	CreateIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
	DeleteIndex(ctx context.Context, name string) error

	AddDocument(ctx context.Context, name string, doc Document) error
	UpdateMetadata(ctx context.Context, name, id string, patch MetadataPatch) error
	DeleteDocument(ctx context.Context, name, id string) error

	Search(ctx context.Context, name string, req SearchRequest) ([]Hit, error)
}

// IndexName returns the partition name for a knowledge base.
func IndexName(kbID string) string {
	return "kb_" + kbID
}
