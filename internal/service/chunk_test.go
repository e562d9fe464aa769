package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/kbase/internal/domain"
	"github.com/cloo-solutions/kbase/internal/searchindex"
)

func enabledDocument(id, kbID string) *domain.Document {
	return domain.NewDocument(id, "manual.pdf", kbID, "tester", time.Now().UTC())
}

func storedChunk(id, docID, kbID string, state domain.IndexStatus) *domain.Chunk {
	return &domain.Chunk{
		ID:         id,
		DocumentID: docID,
		KBID:       kbID,
		Content:    "some chunk content",
		Status:     domain.ChunkStatusEnabled,
		Order:      1,
		IndexState: state,
		Embedding:  []float32{0.1, 0.2},
	}
}

func TestChunkService_Create_RecordFirstThenIndex(t *testing.T) {
	ctx := context.Background()
	chunkRepo := new(MockChunkRepository)
	docRepo := new(MockDocumentRepository)
	index := new(MockIndex)
	embedding := new(MockEmbeddingClient)
	svc := NewChunkServiceWithUUIDGen(chunkRepo, docRepo, index, embedding, &sequenceUUIDGenerator{})

	doc := enabledDocument("doc-1", "kb1")
	docRepo.On("GetByID", ctx, "doc-1").Return(doc, nil)
	embedding.On("GenerateEmbedding", mock.Anything, "hello world").Return([]float32{0.5, 0.5}, nil)
	chunkRepo.On("Create", mock.Anything, mock.MatchedBy(func(c *domain.Chunk) bool {
		return c.ID == "id-1" && c.IndexState == domain.IndexStatusNotIndexed && c.KBID == "kb1"
	})).Return(nil)
	index.On("CreateIndex", mock.Anything, "kb_kb1").Return(nil)
	index.On("AddDocument", mock.Anything, "kb_kb1", mock.MatchedBy(func(d searchindex.Document) bool {
		return d.ID == "id-1" && d.Metadata.Enabled
	})).Return(nil)
	chunkRepo.On("UpdateIndexState", mock.Anything, "id-1", domain.IndexStatusIndexed).Return(nil)

	chunk, err := svc.Create(ctx, CreateChunkInput{DocumentID: "doc-1", Content: "hello world", Order: 1, CreatedBy: "tester"})

	require.NoError(t, err)
	assert.Equal(t, domain.IndexStatusIndexed, chunk.IndexState)
	chunkRepo.AssertExpectations(t)
	index.AssertExpectations(t)
}

func TestChunkService_Create_IndexFailureLeavesNotIndexed(t *testing.T) {
	ctx := context.Background()
	chunkRepo := new(MockChunkRepository)
	docRepo := new(MockDocumentRepository)
	index := new(MockIndex)
	embedding := new(MockEmbeddingClient)
	svc := NewChunkServiceWithUUIDGen(chunkRepo, docRepo, index, embedding, &sequenceUUIDGenerator{})

	doc := enabledDocument("doc-1", "kb1")
	docRepo.On("GetByID", ctx, "doc-1").Return(doc, nil)
	embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.5, 0.5}, nil)
	chunkRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	index.On("CreateIndex", mock.Anything, "kb_kb1").Return(nil)
	index.On("AddDocument", mock.Anything, "kb_kb1", mock.Anything).Return(errors.New("index down"))

	chunk, err := svc.Create(ctx, CreateChunkInput{DocumentID: "doc-1", Content: "hello world", Order: 1})

	// the record survives; the chunk is just not searchable yet
	require.NoError(t, err)
	assert.Equal(t, domain.IndexStatusNotIndexed, chunk.IndexState)
	chunkRepo.AssertNotCalled(t, "UpdateIndexState", mock.Anything, mock.Anything, domain.IndexStatusIndexed)
}

func TestChunkService_Create_EmbeddingFailureCreatesNothing(t *testing.T) {
	ctx := context.Background()
	chunkRepo := new(MockChunkRepository)
	docRepo := new(MockDocumentRepository)
	index := new(MockIndex)
	embedding := new(MockEmbeddingClient)
	svc := NewChunkService(chunkRepo, docRepo, index, embedding)

	doc := enabledDocument("doc-1", "kb1")
	docRepo.On("GetByID", ctx, "doc-1").Return(doc, nil)
	embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(nil, errors.New("503"))

	_, err := svc.Create(ctx, CreateChunkInput{DocumentID: "doc-1", Content: "hello world"})

	require.Error(t, err)
	var derr *domain.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrCodeUpstreamUnavailable, derr.Code)
	chunkRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestChunkService_Update_MarksPendingThenIndexed(t *testing.T) {
	ctx := context.Background()
	chunkRepo := new(MockChunkRepository)
	docRepo := new(MockDocumentRepository)
	index := new(MockIndex)
	embedding := new(MockEmbeddingClient)
	svc := NewChunkService(chunkRepo, docRepo, index, embedding)

	existing := storedChunk("c1", "doc-1", "kb1", domain.IndexStatusIndexed)
	chunkRepo.On("GetByID", ctx, "c1").Return(existing, nil)
	embedding.On("GenerateEmbedding", mock.Anything, "new text").Return([]float32{0.9, 0.1}, nil)
	chunkRepo.On("Update", mock.Anything, mock.MatchedBy(func(c *domain.Chunk) bool {
		return c.Content == "new text" && c.IndexState == domain.IndexStatusPendingUpdate
	})).Return(nil)
	docRepo.On("GetByID", mock.Anything, "doc-1").Return(enabledDocument("doc-1", "kb1"), nil)
	index.On("CreateIndex", mock.Anything, "kb_kb1").Return(nil)
	index.On("AddDocument", mock.Anything, "kb_kb1", mock.Anything).Return(nil)
	chunkRepo.On("UpdateIndexState", mock.Anything, "c1", domain.IndexStatusIndexed).Return(nil)

	chunk, err := svc.Update(ctx, UpdateChunkInput{ChunkID: "c1", Content: "new text", UpdatedBy: "editor"})

	require.NoError(t, err)
	assert.Equal(t, domain.IndexStatusIndexed, chunk.IndexState)
	chunkRepo.AssertExpectations(t)
}

func TestChunkService_Update_IndexFailureLeavesPending(t *testing.T) {
	ctx := context.Background()
	chunkRepo := new(MockChunkRepository)
	docRepo := new(MockDocumentRepository)
	index := new(MockIndex)
	embedding := new(MockEmbeddingClient)
	svc := NewChunkService(chunkRepo, docRepo, index, embedding)

	existing := storedChunk("c1", "doc-1", "kb1", domain.IndexStatusIndexed)
	chunkRepo.On("GetByID", ctx, "c1").Return(existing, nil)
	embedding.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{0.9, 0.1}, nil)
	chunkRepo.On("Update", mock.Anything, mock.Anything).Return(nil)
	docRepo.On("GetByID", mock.Anything, "doc-1").Return(enabledDocument("doc-1", "kb1"), nil)
	index.On("CreateIndex", mock.Anything, "kb_kb1").Return(nil)
	index.On("AddDocument", mock.Anything, "kb_kb1", mock.Anything).Return(errors.New("timeout"))

	chunk, err := svc.Update(ctx, UpdateChunkInput{ChunkID: "c1", Content: "new text"})

	require.NoError(t, err)
	assert.Equal(t, domain.IndexStatusPendingUpdate, chunk.IndexState)
}

func TestChunkService_Delete_IndexFirst(t *testing.T) {
	ctx := context.Background()
	chunkRepo := new(MockChunkRepository)
	docRepo := new(MockDocumentRepository)
	index := new(MockIndex)
	embedding := new(MockEmbeddingClient)
	svc := NewChunkService(chunkRepo, docRepo, index, embedding)

	existing := storedChunk("c1", "doc-1", "kb1", domain.IndexStatusIndexed)
	chunkRepo.On("GetByID", ctx, "c1").Return(existing, nil)
	index.On("DeleteDocument", mock.Anything, "kb_kb1", "c1").Return(nil)
	chunkRepo.On("Delete", mock.Anything, "c1").Return(nil)

	require.NoError(t, svc.Delete(ctx, "c1"))
	chunkRepo.AssertExpectations(t)
	index.AssertExpectations(t)
}

func TestChunkService_Delete_IndexFailureKeepsRecord(t *testing.T) {
	ctx := context.Background()
	chunkRepo := new(MockChunkRepository)
	docRepo := new(MockDocumentRepository)
	index := new(MockIndex)
	embedding := new(MockEmbeddingClient)
	svc := NewChunkService(chunkRepo, docRepo, index, embedding)

	existing := storedChunk("c1", "doc-1", "kb1", domain.IndexStatusIndexed)
	chunkRepo.On("GetByID", ctx, "c1").Return(existing, nil)
	index.On("DeleteDocument", mock.Anything, "kb_kb1", "c1").Return(errors.New("index down"))

	err := svc.Delete(ctx, "c1")

	require.Error(t, err)
	chunkRepo.AssertNotCalled(t, "Delete", mock.Anything, "c1")
}

func TestChunkService_ModifyStatus_Cascade(t *testing.T) {
	ctx := context.Background()
	chunkRepo := new(MockChunkRepository)
	docRepo := new(MockDocumentRepository)
	index := new(MockIndex)
	embedding := new(MockEmbeddingClient)
	svc := NewChunkService(chunkRepo, docRepo, index, embedding)

	existing := storedChunk("c1", "doc-1", "kb1", domain.IndexStatusIndexed)
	chunkRepo.On("GetByID", ctx, "c1").Return(existing, nil)
	chunkRepo.On("UpdateStatus", mock.Anything, "c1", domain.ChunkStatusDisabled, domain.IndexStatusPendingUpdate, "admin").Return(nil)
	docRepo.On("GetByID", mock.Anything, "doc-1").Return(enabledDocument("doc-1", "kb1"), nil)
	index.On("UpdateMetadata", mock.Anything, "kb_kb1", "c1", mock.MatchedBy(func(p searchindex.MetadataPatch) bool {
		return p.Enabled != nil && !*p.Enabled && p.ChunkStatus != nil && *p.ChunkStatus == 0
	})).Return(nil)
	chunkRepo.On("UpdateIndexState", mock.Anything, "c1", domain.IndexStatusIndexed).Return(nil)

	chunk, err := svc.ModifyStatus(ctx, "c1", domain.ChunkStatusDisabled, "admin")

	require.NoError(t, err)
	assert.Equal(t, domain.ChunkStatusDisabled, chunk.Status)
	assert.Equal(t, domain.IndexStatusIndexed, chunk.IndexState)
	index.AssertExpectations(t)
}

func TestChunkService_ModifyStatus_SameStatusIsNoOp(t *testing.T) {
	ctx := context.Background()
	chunkRepo := new(MockChunkRepository)
	docRepo := new(MockDocumentRepository)
	index := new(MockIndex)
	embedding := new(MockEmbeddingClient)
	svc := NewChunkService(chunkRepo, docRepo, index, embedding)

	existing := storedChunk("c1", "doc-1", "kb1", domain.IndexStatusIndexed)
	chunkRepo.On("GetByID", ctx, "c1").Return(existing, nil)

	chunk, err := svc.ModifyStatus(ctx, "c1", domain.ChunkStatusEnabled, "admin")

	require.NoError(t, err)
	assert.Equal(t, domain.ChunkStatusEnabled, chunk.Status)
	chunkRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	index.AssertNotCalled(t, "UpdateMetadata", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestChunkService_ModifyStatus_RejectsInvalidTarget(t *testing.T) {
	svc := NewChunkService(new(MockChunkRepository), new(MockDocumentRepository), new(MockIndex), new(MockEmbeddingClient))

	_, err := svc.ModifyStatus(context.Background(), "c1", domain.ChunkStatus(7), "admin")

	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestChunkService_List_RequiresKBID(t *testing.T) {
	svc := NewChunkService(new(MockChunkRepository), new(MockDocumentRepository), new(MockIndex), new(MockEmbeddingClient))

	_, _, err := svc.List(context.Background(), ListChunksInput{})

	assert.ErrorIs(t, err, domain.ErrMissingKBID)
}
