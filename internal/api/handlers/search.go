package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cloo-solutions/kbase/internal/api"
	"github.com/cloo-solutions/kbase/internal/searchindex"
	"github.com/cloo-solutions/kbase/internal/service"
)

type SearchService interface {
	Search(ctx context.Context, input service.SearchInput) ([]searchindex.Hit, error)
	SimilarChunks(ctx context.Context, chunkID string, topK int) ([]searchindex.Hit, error)
}

type SearchHandler struct {
	svc SearchService
}

func NewSearchHandler(svc SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type SearchRequest struct {
	KBID              string   `json:"kb_id"`
	Query             string   `json:"query"`
	SearchType        string   `json:"search_type,omitempty"`
	TopK              int      `json:"top_k,omitempty"`
	TextWeight        float64  `json:"text_weight,omitempty"`
	VectorWeight      float64  `json:"vector_weight,omitempty"`
	MinScore          *float64 `json:"min_score,omitempty"`
	UseScoreRelevance *bool    `json:"use_score_relevance,omitempty"`
}

type SearchHitMetadata struct {
	Enabled     bool   `json:"enabled"`
	ChunkStatus int16  `json:"chunk_status"`
	DocumentID  string `json:"document_id"`
}

type SearchHitResponse struct {
	ChunkID      string            `json:"chunk_id"`
	Score        float64           `json:"score"`
	Content      string            `json:"content"`
	DocumentID   string            `json:"document_id"`
	DocumentName string            `json:"document_name"`
	KBID         string            `json:"kb_id"`
	Metadata     SearchHitMetadata `json:"metadata"`
}

type SearchResponse struct {
	KBID    string               `json:"kb_id"`
	Query   string               `json:"query,omitempty"`
	Results []*SearchHitResponse `json:"results"`
	Total   int                  `json:"total"`
}

func hitToResponse(h searchindex.Hit) *SearchHitResponse {
	return &SearchHitResponse{
		ChunkID:      h.ID,
		Score:        h.Score,
		Content:      h.Content,
		DocumentID:   h.DocumentID,
		DocumentName: h.DocumentName,
		KBID:         h.KBID,
		Metadata: SearchHitMetadata{
			Enabled:     h.Metadata.Enabled,
			ChunkStatus: h.Metadata.ChunkStatus,
			DocumentID:  h.Metadata.DocumentID,
		},
	}
}

func searchResponse(kbID, query string, hits []searchindex.Hit) SearchResponse {
	results := make([]*SearchHitResponse, len(hits))
	for i, hit := range hits {
		results[i] = hitToResponse(hit)
	}
	return SearchResponse{KBID: kbID, Query: query, Results: results, Total: len(results)}
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	input := service.SearchInput{
		KBID:         req.KBID,
		Query:        req.Query,
		SearchType:   req.SearchType,
		TopK:         req.TopK,
		TextWeight:   req.TextWeight,
		VectorWeight: req.VectorWeight,
	}
	if req.MinScore != nil {
		input.MinScore = *req.MinScore
		input.UseMinScore = true
	}
	// use_score_relevance overrides the min_score presence heuristic
	if req.UseScoreRelevance != nil {
		input.UseMinScore = *req.UseScoreRelevance
	}

	hits, err := h.svc.Search(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, searchResponse(req.KBID, req.Query, hits))
}

func (h *SearchHandler) Similar(w http.ResponseWriter, r *http.Request) {
	chunkID := r.URL.Query().Get("chunk_id")
	if chunkID == "" {
		api.Error(w, http.StatusBadRequest, "chunk_id is required")
		return
	}

	topK := 0
	if raw := r.URL.Query().Get("top_k"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			api.Error(w, http.StatusBadRequest, "top_k must be a positive integer")
			return
		}
		topK = parsed
	}

	hits, err := h.svc.SimilarChunks(r.Context(), chunkID, topK)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	kbID := ""
	if len(hits) > 0 {
		kbID = hits[0].KBID
	}
	api.Success(w, http.StatusOK, searchResponse(kbID, "", hits))
}
