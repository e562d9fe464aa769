package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cloo-solutions/kbase/internal/api"
	"github.com/cloo-solutions/kbase/internal/domain"
	"github.com/cloo-solutions/kbase/internal/pagination"
	"github.com/cloo-solutions/kbase/internal/service"
	"github.com/go-chi/chi/v5"
)

type ChunkService interface {
	Create(ctx context.Context, input service.CreateChunkInput) (*domain.Chunk, error)
	GetByID(ctx context.Context, chunkID string) (*domain.Chunk, error)
	Update(ctx context.Context, input service.UpdateChunkInput) (*domain.Chunk, error)
	Delete(ctx context.Context, chunkID string) error
	ModifyStatus(ctx context.Context, chunkID string, status domain.ChunkStatus, updatedBy string) (*domain.Chunk, error)
	List(ctx context.Context, input service.ListChunksInput) ([]*domain.Chunk, int64, error)
}

type ChunkHandler struct {
	svc ChunkService
}

func NewChunkHandler(svc ChunkService) *ChunkHandler {
	return &ChunkHandler{svc: svc}
}

type CreateChunkRequest struct {
	DocumentID string `json:"document_id"`
	Content    string `json:"content"`
	Order      int    `json:"sort_order"`
}

type UpdateChunkRequest struct {
	Content string `json:"content"`
}

type ChunkResponse struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	KBID       string `json:"kb_id"`
	Content    string `json:"content"`
	Status     int16  `json:"status"`
	Order      int    `json:"sort_order"`
	IndexState string `json:"index_state"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

func chunkToResponse(c *domain.Chunk) *ChunkResponse {
	return &ChunkResponse{
		ID:         c.ID,
		DocumentID: c.DocumentID,
		KBID:       c.KBID,
		Content:    c.Content,
		Status:     int16(c.Status),
		Order:      c.Order,
		IndexState: string(c.IndexState),
		CreatedAt:  c.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:  c.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

func (h *ChunkHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateChunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.DocumentID == "" {
		api.Error(w, http.StatusBadRequest, "document_id is required")
		return
	}
	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}

	input := service.CreateChunkInput{
		DocumentID: req.DocumentID,
		Content:    req.Content,
		Order:      req.Order,
	}

	chunk, err := h.svc.Create(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, chunkToResponse(chunk))
}

func (h *ChunkHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	chunk, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, chunkToResponse(chunk))
}

func (h *ChunkHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var req UpdateChunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}

	chunk, err := h.svc.Update(r.Context(), service.UpdateChunkInput{
		ChunkID: id,
		Content: req.Content,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, chunkToResponse(chunk))
}

func (h *ChunkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

func (h *ChunkHandler) ModifyStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var req ModifyStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	chunk, err := h.svc.ModifyStatus(r.Context(), id, domain.ChunkStatus(req.Status), "")
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, chunkToResponse(chunk))
}

func (h *ChunkHandler) List(w http.ResponseWriter, r *http.Request) {
	kbID := r.URL.Query().Get("kb_id")
	if kbID == "" {
		api.Error(w, http.StatusBadRequest, "kb_id is required")
		return
	}

	page := pagination.ParsePage(r.URL.Query())
	input := service.ListChunksInput{
		KBID:       kbID,
		DocumentID: r.URL.Query().Get("document_id"),
		OrderBy:    r.URL.Query().Get("order_by"),
		Desc:       r.URL.Query().Get("desc") == "true",
		Page:       page,
	}

	chunks, total, err := h.svc.List(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*ChunkResponse, len(chunks))
	for i, c := range chunks {
		items[i] = chunkToResponse(c)
	}

	api.Success(w, http.StatusOK, pagination.NewPageResult(items, page, total))
}
