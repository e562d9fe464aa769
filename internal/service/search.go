package service

import (
	"context"
	"errors"
	"strings"

	"github.com/cloo-solutions/kbase/internal/domain"
	"github.com/cloo-solutions/kbase/internal/scoring"
	"github.com/cloo-solutions/kbase/internal/searchindex"
	"github.com/cloo-solutions/kbase/internal/telemetry"
)

// Search defaults applied when a request leaves a knob unset.
const (
	DefaultTopK         = 3
	DefaultMinScore     = 0.5
	DefaultTextWeight   = 0.3
	DefaultVectorWeight = 0.7
)

// SearchInput represents a retrieval request against one knowledge base
type SearchInput struct {
	KBID         string
	Query        string
	SearchType   string
	TopK         int
	TextWeight   float64
	VectorWeight float64
	MinScore     float64
	UseMinScore  bool
}

// SearchService orchestrates retrieval: it validates the request, obtains
// the query vector when the mode needs one, and dispatches to the index.
type SearchService struct {
	index     searchindex.Index
	embedding EmbeddingClient
	chunkRepo ChunkRepositoryInterface
}

// NewSearchService creates a new SearchService instance
func NewSearchService(index searchindex.Index, embedding EmbeddingClient, chunkRepo ChunkRepositoryInterface) *SearchService {
	return &SearchService{
		index:     index,
		embedding: embedding,
		chunkRepo: chunkRepo,
	}
}

func normalizeSearchMode(searchType string) (searchindex.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(searchType)) {
	case "", "hybrid":
		return searchindex.ModeHybrid, nil
	case "text", "full_text":
		return searchindex.ModeText, nil
	case "vector", "semantic":
		return searchindex.ModeVector, nil
	default:
		return "", domain.ErrInvalidSearchType
	}
}

// Search runs one retrieval request. Modes needing a query vector fail
// fast when the embedding service is down rather than degrading to
// text-only results.
func (s *SearchService) Search(ctx context.Context, input SearchInput) ([]searchindex.Hit, error) {
	ctx, span := telemetry.StartSpan(ctx, "SearchService.Search", telemetry.SpanAttributes{
		KBID:      input.KBID,
		Operation: "search",
	})
	defer span.End()

	if input.KBID == "" {
		return nil, domain.ErrMissingKBID
	}
	if strings.TrimSpace(input.Query) == "" {
		return nil, domain.ErrMissingQuery
	}

	mode, err := normalizeSearchMode(input.SearchType)
	if err != nil {
		return nil, err
	}

	topK := input.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	minScore := input.MinScore
	if minScore == 0 {
		minScore = DefaultMinScore
	}
	textWeight := input.TextWeight
	vectorWeight := input.VectorWeight
	if textWeight == 0 && vectorWeight == 0 {
		textWeight = DefaultTextWeight
		vectorWeight = DefaultVectorWeight
	}

	var vector []float32
	if mode == searchindex.ModeVector || mode == searchindex.ModeHybrid {
		vector, err = s.embedding.GenerateEmbedding(ctx, input.Query)
		if err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUpstreamUnavailable, "query embedding failed", err)
		}
	}

	req := searchindex.SearchRequest{
		Mode:   mode,
		Query:  input.Query,
		Vector: vector,
		TopK:   topK,
		Scoring: scoring.Spec{
			TextWeight:   textWeight,
			VectorWeight: vectorWeight,
			MinScore:     minScore,
			UseMinScore:  input.UseMinScore,
		},
	}
	hits, err := s.index.Search(ctx, searchindex.IndexName(input.KBID), req)
	if errors.Is(err, domain.ErrIndexNotFound) {
		// A knowledge base with no indexed chunks has no partition yet;
		// that reads as no results, not an error.
		return []searchindex.Hit{}, nil
	}
	return hits, err
}

// SimilarChunks finds the nearest neighbors of an existing chunk using its
// stored embedding as the query vector. The seed chunk may rank among its
// own results; callers filter it if unwanted.
func (s *SearchService) SimilarChunks(ctx context.Context, chunkID string, topK int) ([]searchindex.Hit, error) {
	ctx, span := telemetry.StartSpan(ctx, "SearchService.SimilarChunks", telemetry.SpanAttributes{
		ChunkID:   chunkID,
		Operation: "similar",
	})
	defer span.End()

	chunk, err := s.chunkRepo.GetByID(ctx, chunkID)
	if err != nil {
		return nil, err
	}
	if len(chunk.Embedding) == 0 {
		return nil, domain.ErrChunkNotSynchronized
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	req := searchindex.SearchRequest{
		Mode:   searchindex.ModeVector,
		Vector: chunk.Embedding,
		TopK:   topK,
	}
	hits, err := s.index.Search(ctx, searchindex.IndexName(chunk.KBID), req)
	if errors.Is(err, domain.ErrIndexNotFound) {
		return []searchindex.Hit{}, nil
	}
	return hits, err
}
