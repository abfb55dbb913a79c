package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/minami/naraigoto/internal/middleware"
	"github.com/minami/naraigoto/internal/model"
	"github.com/minami/naraigoto/internal/parent"
)

// ChildService は子ども情報ハンドラーが必要とするサービスインターフェース。
type ChildService interface {
	List(ctx context.Context, parentID string) ([]model.Child, error)
	Add(ctx context.Context, parentID string, input parent.ChildInput) (*model.Child, error)
	Update(ctx context.Context, parentID, childID string, input parent.ChildInput) (*model.Child, error)
	Remove(ctx context.Context, parentID, childID string) error
}

// ChildHandler は保護者の子ども情報管理のHTTPハンドラー。
type ChildHandler struct {
	service ChildService
}

// NewChildHandler はChildHandlerを作成する。
func NewChildHandler(service ChildService) *ChildHandler {
	return &ChildHandler{service: service}
}

type childInput struct {
	Name      string `json:"name"`
	BirthYear int    `json:"birth_year"`
	Notes     string `json:"notes"`
}

func (in childInput) toServiceInput() parent.ChildInput {
	return parent.ChildInput{
		Name:      in.Name,
		BirthYear: in.BirthYear,
		Notes:     in.Notes,
	}
}

func toChildResponse(c *model.Child) childResponse {
	return childResponse{
		ID:        c.ID,
		Name:      c.Name,
		BirthYear: c.BirthYear,
		Notes:     c.Notes,
	}
}

// HandleList は自分の子どもリストを返す。
// GET /api/children
func (h *ChildHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	children, err := h.service.List(r.Context(), identity.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]childResponse, 0, len(children))
	for i := range children {
		results = append(results, toChildResponse(&children[i]))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"children": results,
		"count":    len(results),
	})
}

// HandleAdd は子ども情報を登録する。
// POST /api/children
func (h *ChildHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req childInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	child, err := h.service.Add(r.Context(), identity.ID, req.toServiceInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toChildResponse(child))
}

// HandleUpdate は子ども情報を更新する。他の保護者の子どもは存在しない扱いとなる。
// PUT /api/children/{childID}
func (h *ChildHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req childInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	childID := chi.URLParam(r, "childID")
	child, err := h.service.Update(r.Context(), identity.ID, childID, req.toServiceInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toChildResponse(child))
}

// HandleRemove は子ども情報を削除する。
// DELETE /api/children/{childID}
func (h *ChildHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	childID := chi.URLParam(r, "childID")
	if err := h.service.Remove(r.Context(), identity.ID, childID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// SetupChildRoutes は子ども情報管理ルートを登録する。保護者ロール必須。
func SetupChildRoutes(r chi.Router, h *ChildHandler) {
	r.Get("/api/children", h.HandleList)
	r.Post("/api/children", h.HandleAdd)
	r.Put("/api/children/{childID}", h.HandleUpdate)
	r.Delete("/api/children/{childID}", h.HandleRemove)
}
