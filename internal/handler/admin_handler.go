package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/minami/naraigoto/internal/model"
)

// AdminService は管理ハンドラーが必要とする審査操作のインターフェース。
type AdminService interface {
	ListByStatus(ctx context.Context, status model.ProviderStatus) ([]*model.ProviderRecord, error)
	Approve(ctx context.Context, providerID string) (*model.ProviderRecord, error)
	Reject(ctx context.Context, providerID, reason string) (*model.ProviderRecord, error)
}

// AdminHandler は運営管理者向けの審査操作のHTTPハンドラー。
type AdminHandler struct {
	service AdminService
	images  ImageURLBuilder
}

// NewAdminHandler はAdminHandlerを作成する。
func NewAdminHandler(service AdminService, images ImageURLBuilder) *AdminHandler {
	return &AdminHandler{service: service, images: images}
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *AdminHandler) toResponse(rec *model.ProviderRecord) providerResponse {
	ph := ProviderHandler{images: h.images}
	return ph.toResponse(rec)
}

// HandleListByStatus は指定ステータスの教室プロフィール一覧を返す。
// GET /api/admin/providers?status=pending
func (h *AdminHandler) HandleListByStatus(w http.ResponseWriter, r *http.Request) {
	status := model.ProviderStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = model.StatusPending
	}
	if !status.Valid() {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "statusパラメータが不正です。",
			Category: "validation",
			Action:   "pending / approved / rejected のいずれかを指定してください。",
		})
		return
	}

	records, err := h.service.ListByStatus(r.Context(), status)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]providerResponse, 0, len(records))
	for _, rec := range records {
		results = append(results, h.toResponse(rec))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"providers": results,
		"count":     len(results),
	})
}

// HandleApprove は審査待ちの教室プロフィールを承認する。
// POST /api/admin/providers/{providerID}/approve
func (h *AdminHandler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerID")

	record, err := h.service.Approve(r.Context(), providerID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toResponse(record))
}

// HandleReject は審査待ちの教室プロフィールを理由付きで却下する。
// POST /api/admin/providers/{providerID}/reject
func (h *AdminHandler) HandleReject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}
	if req.Reason == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "却下理由は必須です。",
			Category: "validation",
			Action:   "reasonを指定してください。",
		})
		return
	}

	providerID := chi.URLParam(r, "providerID")
	record, err := h.service.Reject(r.Context(), providerID, req.Reason)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toResponse(record))
}

// SetupAdminRoutes は管理ルートを登録する。管理キー検証ミドルウェアの内側で呼ぶこと。
func SetupAdminRoutes(r chi.Router, h *AdminHandler) {
	r.Get("/api/admin/providers", h.HandleListByStatus)
	r.Post("/api/admin/providers/{providerID}/approve", h.HandleApprove)
	r.Post("/api/admin/providers/{providerID}/reject", h.HandleReject)
}
