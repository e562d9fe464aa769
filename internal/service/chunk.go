package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/cloo-solutions/kbase/internal/domain"
	"github.com/cloo-solutions/kbase/internal/pagination"
	"github.com/cloo-solutions/kbase/internal/searchindex"
	"github.com/cloo-solutions/kbase/internal/telemetry"
)

// ChunkRepositoryInterface defines the repository interface for chunk persistence
type ChunkRepositoryInterface interface {
	Create(ctx context.Context, c *domain.Chunk) error
	GetByID(ctx context.Context, id string) (*domain.Chunk, error)
	Update(ctx context.Context, c *domain.Chunk) error
	UpdateIndexState(ctx context.Context, id string, state domain.IndexStatus) error
	UpdateStatus(ctx context.Context, id string, status domain.ChunkStatus, state domain.IndexStatus, updatedBy string) error
	MarkPendingByDocument(ctx context.Context, documentID string) error
	Delete(ctx context.Context, id string) error
	DeleteByDocument(ctx context.Context, documentID string) error
	ListByDocument(ctx context.Context, documentID string) ([]*domain.Chunk, error)
	ListByKBPage(ctx context.Context, kbID, documentID, orderBy string, desc bool, page pagination.Page) ([]*domain.Chunk, int64, error)
	ListOutOfSync(ctx context.Context, limit int) ([]*domain.Chunk, error)
	ListAll(ctx context.Context) ([]*domain.Chunk, error)
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// ChunkService keeps chunk rows and their index documents consistent.
// The record store is written first on create, the index first on delete,
// and index_state carries the synchronization point in between.
type ChunkService struct {
	chunkRepo ChunkRepositoryInterface
	docRepo   DocumentRepositoryInterface
	index     searchindex.Index
	embedding EmbeddingClient
	uuidGen   UUIDGenerator
}

// NewChunkService creates a new ChunkService instance
func NewChunkService(
	chunkRepo ChunkRepositoryInterface,
	docRepo DocumentRepositoryInterface,
	index searchindex.Index,
	embedding EmbeddingClient,
) *ChunkService {
	return &ChunkService{
		chunkRepo: chunkRepo,
		docRepo:   docRepo,
		index:     index,
		embedding: embedding,
		uuidGen:   &DefaultUUIDGenerator{},
	}
}

// NewChunkServiceWithUUIDGen creates a ChunkService with a custom UUID generator (for testing)
func NewChunkServiceWithUUIDGen(
	chunkRepo ChunkRepositoryInterface,
	docRepo DocumentRepositoryInterface,
	index searchindex.Index,
	embedding EmbeddingClient,
	uuidGen UUIDGenerator,
) *ChunkService {
	return &ChunkService{
		chunkRepo: chunkRepo,
		docRepo:   docRepo,
		index:     index,
		embedding: embedding,
		uuidGen:   uuidGen,
	}
}

// CreateChunkInput represents the input for creating a chunk
type CreateChunkInput struct {
	DocumentID string
	Content    string
	Order      int
	CreatedBy  string
}

// UpdateChunkInput represents the input for updating a chunk's content
type UpdateChunkInput struct {
	ChunkID   string
	Content   string
	UpdatedBy string
}

// ListChunksInput represents the input for listing chunks
type ListChunksInput struct {
	KBID       string
	DocumentID string
	OrderBy    string
	Desc       bool
	Page       pagination.Page
}

// Create creates a chunk record first, then propagates it to the search
// index. An index failure leaves the chunk stored with index_state
// not_indexed; the reconcile sweep picks it up later.
func (s *ChunkService) Create(ctx context.Context, input CreateChunkInput) (*domain.Chunk, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChunkService.Create", telemetry.SpanAttributes{
		DocumentID: input.DocumentID,
		Operation:  "create",
	})
	defer span.End()

	doc, err := s.docRepo.GetByID(ctx, input.DocumentID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	chunk := domain.NewChunk(s.uuidGen.NewString(), doc, input.Content, input.Order, now)
	chunk.CreatedBy = input.CreatedBy
	if err := domain.ValidateChunk(chunk); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid chunk", err)
	}

	embedding, err := s.embedding.GenerateEmbedding(ctx, chunk.Content)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUpstreamUnavailable, "embedding generation failed", err)
	}
	chunk.Embedding = embedding

	if err := s.chunkRepo.Create(ctx, chunk); err != nil {
		return nil, err
	}

	if err := s.propagate(ctx, doc, chunk); err != nil {
		log.Printf("chunk %s created but not indexed: %v", chunk.ID, err)
		telemetry.CaptureError(ctx, err)
		return chunk, nil
	}
	chunk.IndexState = domain.IndexStatusIndexed
	return chunk, nil
}

// Update rewrites a chunk's content. The row is marked pending_update
// together with the content write, then the index is refreshed; the mark
// clears only after the index write succeeds.
func (s *ChunkService) Update(ctx context.Context, input UpdateChunkInput) (*domain.Chunk, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChunkService.Update", telemetry.SpanAttributes{
		ChunkID:   input.ChunkID,
		Operation: "update",
	})
	defer span.End()

	chunk, err := s.chunkRepo.GetByID(ctx, input.ChunkID)
	if err != nil {
		return nil, err
	}
	if input.Content == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "chunk content must not be empty")
	}

	embedding, err := s.embedding.GenerateEmbedding(ctx, input.Content)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUpstreamUnavailable, "embedding generation failed", err)
	}

	chunk.Content = input.Content
	chunk.Embedding = embedding
	chunk.IndexState = domain.IndexStatusPendingUpdate
	chunk.UpdatedBy = input.UpdatedBy
	if err := s.chunkRepo.Update(ctx, chunk); err != nil {
		return nil, err
	}

	doc, err := s.docRepo.GetByID(ctx, chunk.DocumentID)
	if err != nil {
		return nil, err
	}
	if err := s.propagate(ctx, doc, chunk); err != nil {
		log.Printf("chunk %s updated but index refresh failed: %v", chunk.ID, err)
		telemetry.CaptureError(ctx, err)
		return chunk, nil
	}
	chunk.IndexState = domain.IndexStatusIndexed
	return chunk, nil
}

// Delete removes the index document first, then the record. If the index
// write fails the record stays untouched, so a chunk can never linger in
// the index without a backing row.
func (s *ChunkService) Delete(ctx context.Context, chunkID string) error {
	ctx, span := telemetry.StartSpan(ctx, "ChunkService.Delete", telemetry.SpanAttributes{
		ChunkID:   chunkID,
		Operation: "delete",
	})
	defer span.End()

	chunk, err := s.chunkRepo.GetByID(ctx, chunkID)
	if err != nil {
		return err
	}

	if err := s.index.DeleteDocument(ctx, searchindex.IndexName(chunk.KBID), chunk.ID); err != nil {
		return err
	}
	return s.chunkRepo.Delete(ctx, chunkID)
}

// ModifyStatus enables or disables a chunk. Re-applying the current status
// is a no-op, so retries after partial failures converge.
func (s *ChunkService) ModifyStatus(ctx context.Context, chunkID string, status domain.ChunkStatus, updatedBy string) (*domain.Chunk, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChunkService.ModifyStatus", telemetry.SpanAttributes{
		ChunkID:   chunkID,
		Operation: "modify_status",
	})
	defer span.End()

	if status != domain.ChunkStatusDisabled && status != domain.ChunkStatusEnabled {
		return nil, domain.ErrInvalidStatus
	}

	chunk, err := s.chunkRepo.GetByID(ctx, chunkID)
	if err != nil {
		return nil, err
	}
	if chunk.Status == status && chunk.IndexState == domain.IndexStatusIndexed {
		return chunk, nil
	}

	if err := s.chunkRepo.UpdateStatus(ctx, chunkID, status, domain.IndexStatusPendingUpdate, updatedBy); err != nil {
		return nil, err
	}
	chunk.Status = status
	chunk.IndexState = domain.IndexStatusPendingUpdate

	doc, err := s.docRepo.GetByID(ctx, chunk.DocumentID)
	if err != nil {
		return nil, err
	}

	enabled := status == domain.ChunkStatusEnabled && doc.Status == domain.DocumentStatusEnabled
	chunkStatus := int16(status)
	patch := searchindex.MetadataPatch{Enabled: &enabled, ChunkStatus: &chunkStatus}
	if err := s.index.UpdateMetadata(ctx, searchindex.IndexName(chunk.KBID), chunk.ID, patch); err != nil {
		log.Printf("chunk %s status stored but index metadata stale: %v", chunk.ID, err)
		telemetry.CaptureError(ctx, err)
		return chunk, nil
	}

	if err := s.chunkRepo.UpdateIndexState(ctx, chunkID, domain.IndexStatusIndexed); err != nil {
		return nil, err
	}
	chunk.IndexState = domain.IndexStatusIndexed
	return chunk, nil
}

// GetByID retrieves a chunk by ID
func (s *ChunkService) GetByID(ctx context.Context, chunkID string) (*domain.Chunk, error) {
	return s.chunkRepo.GetByID(ctx, chunkID)
}

// List retrieves one page of chunks for a knowledge base
func (s *ChunkService) List(ctx context.Context, input ListChunksInput) ([]*domain.Chunk, int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChunkService.List", telemetry.SpanAttributes{
		KBID:      input.KBID,
		Operation: "list",
	})
	defer span.End()

	if input.KBID == "" {
		return nil, 0, domain.ErrMissingKBID
	}
	return s.chunkRepo.ListByKBPage(ctx, input.KBID, input.DocumentID, input.OrderBy, input.Desc, input.Page)
}

// propagate pushes one chunk into its partition and flips index_state to
// indexed once the write lands.
func (s *ChunkService) propagate(ctx context.Context, doc *domain.Document, chunk *domain.Chunk) error {
	name := searchindex.IndexName(chunk.KBID)
	if err := s.index.CreateIndex(ctx, name); err != nil {
		return err
	}
	if err := s.index.AddDocument(ctx, name, indexDocument(doc, chunk)); err != nil {
		return err
	}
	return s.chunkRepo.UpdateIndexState(ctx, chunk.ID, domain.IndexStatusIndexed)
}

// indexDocument maps a chunk row to its search index representation.
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
