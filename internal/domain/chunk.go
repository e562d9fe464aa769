package domain

import (
	"fmt"
	"time"
)

// ChunkStatus represents the enabled/disabled state of a chunk.
type ChunkStatus int16

const (
	ChunkStatusDisabled ChunkStatus = 0
	ChunkStatusEnabled  ChunkStatus = 1
)

// IndexStatus marks the synchronization state between the record store and
// the search index for a single chunk. It is the sole consistency signal
// between the two stores: the record store is authoritative, the index is a
// rebuildable projection that may lag behind.
type IndexStatus string

const (
	// IndexStatusNotIndexed means the chunk row exists but no index write
	// has succeeded yet.
	IndexStatusNotIndexed IndexStatus = "not_indexed"
	// IndexStatusIndexed means the index document reflects the record row.
	IndexStatusIndexed IndexStatus = "indexed"
	// IndexStatusPendingUpdate means content or status changed after the
	// last successful propagation.
	IndexStatusPendingUpdate IndexStatus = "pending_update"
)

// Chunk is a content-bearing unit derived from a document; the unit of
// indexing and retrieval.
type Chunk struct {
	ID         string
	DocumentID string
	KBID       string // denormalized from the parent document
	Content    string
	Status     ChunkStatus
	Order      int // 1-based sequence within the document
	IndexState IndexStatus
	Embedding  []float32
	CreatedAt  time.Time
	CreatedBy  string
	UpdatedAt  time.Time
	UpdatedBy  string
}

// NewChunk creates an enabled, not-yet-indexed chunk. The kb_id is taken
// from the parent document so partition routing can never diverge.
func NewChunk(id string, doc *Document, content string, order int, now time.Time) *Chunk {
	return &Chunk{
		ID:         id,
		DocumentID: doc.ID,
		KBID:       doc.KBID,
		Content:    content,
		Status:     ChunkStatusEnabled,
		Order:      order,
		IndexState: IndexStatusNotIndexed,
		CreatedAt:  now,
		CreatedBy:  doc.CreatedBy,
		UpdatedAt:  now,
	}
}

// ValidateChunk validates a Chunk instance.
func ValidateChunk(c *Chunk) error {
	if c == nil {
		return fmt.Errorf("chunk cannot be nil")
	}
	if c.ID == "" {
		return fmt.Errorf("chunk ID is required")
	}
	if c.DocumentID == "" {
		return fmt.Errorf("chunk DocumentID is required")
	}
	if c.KBID == "" {
		return fmt.Errorf("chunk KBID is required")
	}
	if c.Content == "" {
		return fmt.Errorf("chunk Content is required")
	}
	if !isValidChunkStatus(c.Status) {
		return fmt.Errorf("chunk Status is invalid: %d", c.Status)
	}
	if !isValidIndexStatus(c.IndexState) {
		return fmt.Errorf("chunk IndexState is invalid: %s", c.IndexState)
	}
	return nil
}

func isValidChunkStatus(s ChunkStatus) bool {
	return s == ChunkStatusDisabled || s == ChunkStatusEnabled
}

func isValidIndexStatus(s IndexStatus) bool {
	switch s {
	case IndexStatusNotIndexed, IndexStatusIndexed, IndexStatusPendingUpdate:
		return true
	}
	return false
}
