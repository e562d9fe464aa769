package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/cloo-solutions/kbase/internal/domain"
	"github.com/cloo-solutions/kbase/internal/pagination"
	"github.com/cloo-solutions/kbase/internal/searchindex"
	"github.com/cloo-solutions/kbase/internal/telemetry"
)

// DocumentRepositoryInterface defines the repository interface for document persistence
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByKB(ctx context.Context, kbID, orderBy string, desc bool, page pagination.Page) ([]*domain.Document, int64, error)
	Update(ctx context.Context, d *domain.Document) error
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, updatedBy string) error
	MarkFailed(ctx context.Context, id, message string) error
	Delete(ctx context.Context, id string) error
}

// ObjectStorage defines the storage interface for raw document content
type ObjectStorage interface {
	PutObject(ctx context.Context, key string, contentType string, body io.Reader) error
	GetObject(ctx context.Context, key string) ([]byte, error)
	DeleteObject(ctx context.Context, key string) error
}

// DocumentService handles document ingestion, lifecycle, and the status
// cascade into chunk index metadata.
type DocumentService struct {
	docRepo   DocumentRepositoryInterface
	chunkRepo ChunkRepositoryInterface
	index     searchindex.Index
	embedding EmbeddingClient
	storage   ObjectStorage
	txRunner  TxRunner
	chunkCfg  ChunkConfig
	uuidGen   UUIDGenerator
}

// NewDocumentService creates a new DocumentService instance
func NewDocumentService(
	docRepo DocumentRepositoryInterface,
	chunkRepo ChunkRepositoryInterface,
	index searchindex.Index,
	embedding EmbeddingClient,
	storage ObjectStorage,
	txRunner TxRunner,
) *DocumentService {
	return &DocumentService{
		docRepo:   docRepo,
		chunkRepo: chunkRepo,
		index:     index,
		embedding: embedding,
		storage:   storage,
		txRunner:  txRunner,
		chunkCfg:  DefaultChunkConfig(),
		uuidGen:   &DefaultUUIDGenerator{},
	}
}

// NewDocumentServiceWithUUIDGen creates a DocumentService with a custom UUID generator (for testing)
func NewDocumentServiceWithUUIDGen(
	docRepo DocumentRepositoryInterface,
	chunkRepo ChunkRepositoryInterface,
	index searchindex.Index,
	embedding EmbeddingClient,
	storage ObjectStorage,
	txRunner TxRunner,
	uuidGen UUIDGenerator,
) *DocumentService {
	s := NewDocumentService(docRepo, chunkRepo, index, embedding, storage, txRunner)
	s.uuidGen = uuidGen
	return s
}

// UploadInput represents the input for uploading a document
type UploadInput struct {
	KBID        string
	Filename    string
	ContentType string
	Data        []byte
	CreatedBy   string
}

// ListDocumentsInput represents the input for listing documents
type ListDocumentsInput struct {
	KBID    string
	OrderBy string
	Desc    bool
	Page    pagination.Page
}

// Upload ingests a document: the raw bytes go to object storage, the text
// is split into overlapping chunks, each chunk is embedded and written
// record-first, then propagated to the search index. Any pipeline failure
// marks the document failed with a diagnostic instead of leaving half the
// state invisible.
func (s *DocumentService) Upload(ctx context.Context, input UploadInput) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Upload", telemetry.SpanAttributes{
		KBID:      input.KBID,
		Operation: "upload",
	})
	defer span.End()

	if input.KBID == "" {
		return nil, domain.ErrMissingKBID
	}
	if input.Filename == "" || len(input.Data) == 0 {
		return nil, domain.ErrMissingFile
	}

	now := time.Now().UTC()
	doc := domain.NewDocument(s.uuidGen.NewString(), input.Filename, input.KBID, input.CreatedBy, now)
	if err := domain.ValidateDocument(doc); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid document", err)
	}
	if err := s.docRepo.Create(ctx, doc); err != nil {
		return nil, err
	}

	if err := s.storage.PutObject(ctx, objectKey(doc), input.ContentType, bytes.NewReader(input.Data)); err != nil {
		return s.failDocument(ctx, doc, fmt.Errorf("store raw content: %w", err))
	}

	pieces := chunkText(string(input.Data), s.chunkCfg)
	if len(pieces) == 0 {
		return s.failDocument(ctx, doc, fmt.Errorf("document has no extractable text"))
	}

	embeddings, err := s.embedding.GenerateEmbeddings(ctx, pieces)
	if err != nil {
		return s.failDocument(ctx, doc, fmt.Errorf("embed chunks: %w", err))
	}

	name := searchindex.IndexName(doc.KBID)
	if err := s.index.CreateIndex(ctx, name); err != nil {
		return s.failDocument(ctx, doc, fmt.Errorf("ensure index: %w", err))
	}

	for i, piece := range pieces {
		chunk := domain.NewChunk(s.uuidGen.NewString(), doc, piece, i+1, now)
		chunk.Embedding = embeddings[i]
		if err := s.chunkRepo.Create(ctx, chunk); err != nil {
			return s.failDocument(ctx, doc, fmt.Errorf("store chunk %d: %w", i+1, err))
		}
		if err := s.index.AddDocument(ctx, name, indexDocument(doc, chunk)); err != nil {
			// the row exists with index_state not_indexed; reconcile will retry
			log.Printf("document %s chunk %s stored but not indexed: %v", doc.ID, chunk.ID, err)
			telemetry.CaptureError(ctx, err)
			continue
		}
		if err := s.chunkRepo.UpdateIndexState(ctx, chunk.ID, domain.IndexStatusIndexed); err != nil {
			return s.failDocument(ctx, doc, fmt.Errorf("record index state for chunk %d: %w", i+1, err))
		}
	}

	return doc, nil
}

// GetByID retrieves a document by ID
func (s *DocumentService) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	return s.docRepo.GetByID(ctx, id)
}

// List retrieves one page of documents for a knowledge base
func (s *DocumentService) List(ctx context.Context, input ListDocumentsInput) ([]*domain.Document, int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.List", telemetry.SpanAttributes{
		KBID:      input.KBID,
		Operation: "list",
	})
	defer span.End()

	if input.KBID == "" {
		return nil, 0, domain.ErrMissingKBID
	}
	return s.docRepo.ListByKB(ctx, input.KBID, input.OrderBy, input.Desc, input.Page)
}

// Content downloads the raw stored bytes for a document
func (s *DocumentService) Content(ctx context.Context, id string) (*domain.Document, []byte, error) {
	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.storage.GetObject(ctx, objectKey(doc))
	if err != nil {
		return nil, nil, domain.NewDomainErrorWithCause(domain.ErrCodeUpstreamUnavailable, "fetch document content", err)
	}
	return doc, data, nil
}

// Chunks returns all chunks of a document in order
func (s *DocumentService) Chunks(ctx context.Context, id string) ([]*domain.Chunk, error) {
	if _, err := s.docRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.chunkRepo.ListByDocument(ctx, id)
}

// ModifyStatus enables or disables a document and cascades the change to
// every chunk's index metadata. The record store moves first: all chunks
// are marked pending_update, then each index document is patched and its
// mark cleared. A crash mid-cascade leaves pending marks for the
// reconcile sweep, and re-running the same request is harmless.
func (s *DocumentService) ModifyStatus(ctx context.Context, id string, status domain.DocumentStatus, updatedBy string) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.ModifyStatus", telemetry.SpanAttributes{
		DocumentID: id,
		Operation:  "modify_status",
	})
	defer span.End()

	if !domain.IsValidStatusTarget(status) {
		return nil, domain.ErrInvalidStatus
	}

	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Status == domain.DocumentStatusFailed {
		return nil, domain.ErrStatusModifyOnFailed
	}
	// A same-value target is rejected outright; child chunk metadata
	// stays untouched.
	if doc.Status == status {
		return nil, domain.ErrStatusUnchanged
	}

	if err := s.docRepo.UpdateStatus(ctx, id, status, updatedBy); err != nil {
		return nil, err
	}
	doc.Status = status

	if err := s.chunkRepo.MarkPendingByDocument(ctx, id); err != nil {
		return nil, err
	}

	chunks, err := s.chunkRepo.ListByDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	name := searchindex.IndexName(doc.KBID)
	for _, chunk := range chunks {
		enabled := status == domain.DocumentStatusEnabled && chunk.Status == domain.ChunkStatusEnabled
		patch := searchindex.MetadataPatch{Enabled: &enabled}
		if err := s.index.UpdateMetadata(ctx, name, chunk.ID, patch); err != nil {
			log.Printf("document %s chunk %s left pending after status cascade: %v", id, chunk.ID, err)
			telemetry.CaptureError(ctx, err)
			continue
		}
		if err := s.chunkRepo.UpdateIndexState(ctx, chunk.ID, domain.IndexStatusIndexed); err != nil {
			return nil, err
		}
	}

	return doc, nil
}

// Delete removes a document and everything derived from it: the index
// documents go first, then the chunk rows, the stored object, and finally
// the document row.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Delete", telemetry.SpanAttributes{
		DocumentID: id,
		Operation:  "delete",
	})
	defer span.End()

	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	chunks, err := s.chunkRepo.ListByDocument(ctx, id)
	if err != nil {
		return err
	}

	name := searchindex.IndexName(doc.KBID)
	for _, chunk := range chunks {
		if err := s.index.DeleteDocument(ctx, name, chunk.ID); err != nil {
			return err
		}
	}

	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Chunks().DeleteByDocument(ctx, id); err != nil {
			return err
		}
		return repos.Documents().Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	if err := s.storage.DeleteObject(ctx, objectKey(doc)); err != nil {
		log.Printf("document %s deleted but stored object remains: %v", id, err)
		telemetry.CaptureError(ctx, err)
	}
	return nil
}

func (s *DocumentService) failDocument(ctx context.Context, doc *domain.Document, cause error) (*domain.Document, error) {
	telemetry.CaptureError(ctx, cause)
	if err := s.docRepo.MarkFailed(ctx, doc.ID, cause.Error()); err != nil {
		log.Printf("document %s: failed to record ingestion error: %v", doc.ID, err)
	}
	doc.Status = domain.DocumentStatusFailed
	doc.Error = cause.Error()
	return doc, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "document ingestion failed", cause)
}

// objectKey is the storage location of a document's raw bytes.
func objectKey(doc *domain.Document) string {
	return fmt.Sprintf("kb/%s/%s/%s", doc.KBID, doc.ID, doc.Name)
}
