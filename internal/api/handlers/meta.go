package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"seopilot/internal/core"
	"seopilot/internal/metagen"
	"seopilot/internal/types"
)

// GenerateMetaRequest is the request body for POST /v1/meta/generate.
// One of title or content must be present; the generation service enforces
// that because the same rule applies to bulk items.
type GenerateMetaRequest struct {
	PostID  string `json:"post_id" validate:"required"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// BulkGenerateRequest is the request body for POST /v1/meta/bulk.
type BulkGenerateRequest struct {
	Posts []GenerateMetaRequest `json:"posts" validate:"required,min=1,dive"`
}

// BulkGenerateResponse wraps per-post outcomes with a success count.
type BulkGenerateResponse struct {
	Items     []metagen.BulkItem `json:"items"`
	Succeeded int                `json:"succeeded"`
}

// MetaService runs quota-gated generation. Implemented by metagen.Service.
type MetaService interface {
	Generate(ctx context.Context, localUserID string, req types.MetaRequest) (*types.MetaResult, error)
	BulkGenerate(ctx context.Context, localUserID string, reqs []types.MetaRequest) ([]metagen.BulkItem, error)
}

// MetaHandler exposes metadata generation to the plugin editor.
type MetaHandler struct {
	meta      MetaService
	logger    *slog.Logger
	validator *core.Validator
}

func NewMetaHandler(meta MetaService, logger *slog.Logger, validator *core.Validator) *MetaHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MetaHandler{meta: meta, logger: logger, validator: validator}
}

// RegisterRoutes mounts the generation endpoints:
//
//   - POST /meta/generate - one post
//   - POST /meta/bulk     - up to the configured batch limit
func (h *MetaHandler) RegisterRoutes(r chi.Router) {
	r.Post("/meta/generate", h.HandleGenerate)
	r.Post("/meta/bulk", h.HandleBulkGenerate)
}

func (h *MetaHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	actor, ok := core.RequireActor(w, r)
	if !ok {
		return
	}

	var req GenerateMetaRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.meta.Generate(r.Context(), actor.LocalUserID, types.MetaRequest{
		PostID:  req.PostID,
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result})
}

// HandleBulkGenerate returns 200 even when every item failed; per-post
// outcomes live in the items. Only an invalid request as a whole is an
// HTTP error.
func (h *MetaHandler) HandleBulkGenerate(w http.ResponseWriter, r *http.Request) {
	actor, ok := core.RequireActor(w, r)
	if !ok {
		return
	}

	var req BulkGenerateRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	reqs := make([]types.MetaRequest, len(req.Posts))
	for i, p := range req.Posts {
		reqs[i] = types.MetaRequest{PostID: p.PostID, Title: p.Title, Content: p.Content}
	}

	items, err := h.meta.BulkGenerate(r.Context(), actor.LocalUserID, reqs)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	succeeded := 0
	for _, item := range items {
		if item.Result != nil {
			succeeded++
		}
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: BulkGenerateResponse{
		Items:     items,
		Succeeded: succeeded,
	}})
}
