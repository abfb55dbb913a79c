package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/minami/naraigoto/internal/middleware"
	"github.com/minami/naraigoto/internal/model"
	"github.com/minami/naraigoto/internal/provider"
)

// ProviderService は教室プロフィールハンドラーが必要とするサービスインターフェース。
type ProviderService interface {
	Onboard(ctx context.Context, identity *model.Identity, input provider.Input) (*model.ProviderRecord, error)
	UpdateOwn(ctx context.Context, ownerID string, input provider.Input) (*model.ProviderRecord, error)
	GetOwn(ctx context.Context, ownerID string) (*model.ProviderRecord, error)
	Get(ctx context.Context, id string) (*model.ProviderRecord, error)
	Search(ctx context.Context, city, keyword string, limit int) ([]*model.ProviderRecord, error)
}

// ImageURLBuilder はプロフィール画像パスから公開URLを組み立てる。
type ImageURLBuilder interface {
	PublicURL(path string) string
}

// ProviderHandler は教室プロフィール関連のHTTPハンドラー。
type ProviderHandler struct {
	service ProviderService
	images  ImageURLBuilder
}

// NewProviderHandler はProviderHandlerを作成する。
func NewProviderHandler(service ProviderService, images ImageURLBuilder) *ProviderHandler {
	return &ProviderHandler{service: service, images: images}
}

type providerInput struct {
	BusinessName string `json:"business_name"`
	OwnerName    string `json:"owner_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	City         string `json:"city"`
	Address      string `json:"address"`
	WebsiteURL   string `json:"website_url"`
	Description  string `json:"description"`
}

func (in providerInput) toServiceInput() provider.Input {
	return provider.Input{
		BusinessName: in.BusinessName,
		OwnerName:    in.OwnerName,
		Email:        in.Email,
		Phone:        in.Phone,
		City:         in.City,
		Address:      in.Address,
		WebsiteURL:   in.WebsiteURL,
		Description:  in.Description,
	}
}

// providerResponse は自教室向けの完全なプロフィールレスポンス。
type providerResponse struct {
	ID              string `json:"id"`
	BusinessName    string `json:"business_name"`
	OwnerName       string `json:"owner_name,omitempty"`
	Email           string `json:"email,omitempty"`
	Phone           string `json:"phone,omitempty"`
	City            string `json:"city"`
	Address         string `json:"address,omitempty"`
	WebsiteURL      string `json:"website_url,omitempty"`
	Description     string `json:"description,omitempty"`
	Status          string `json:"status"`
	RejectReason    string `json:"reject_reason,omitempty"`
	Verified        bool   `json:"verified"`
	LogoURL         string `json:"logo_url,omitempty"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

// publicProviderResponse は公開カタログ向けのレスポンス。連絡先と審査情報は含まない。
type publicProviderResponse struct {
	ID              string `json:"id"`
	BusinessName    string `json:"business_name"`
	City            string `json:"city"`
	WebsiteURL      string `json:"website_url,omitempty"`
	Description     string `json:"description,omitempty"`
	Verified        bool   `json:"verified"`
	LogoURL         string `json:"logo_url,omitempty"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
}

func (h *ProviderHandler) toResponse(rec *model.ProviderRecord) providerResponse {
	return providerResponse{
		ID:              rec.ID,
		BusinessName:    rec.BusinessName,
		OwnerName:       rec.OwnerName,
		Email:           rec.Email,
		Phone:           rec.Phone,
		City:            rec.City,
		Address:         rec.Address,
		WebsiteURL:      rec.WebsiteURL,
		Description:     rec.Description,
		Status:          string(rec.Status),
		RejectReason:    rec.RejectReason,
		Verified:        rec.Verified,
		LogoURL:         h.logoURL(rec),
		ProfileImageURL: h.profileImageURL(rec),
		CreatedAt:       rec.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       rec.UpdatedAt.Format(time.RFC3339),
	}
}

func (h *ProviderHandler) toPublicResponse(rec *model.ProviderRecord) publicProviderResponse {
	return publicProviderResponse{
		ID:              rec.ID,
		BusinessName:    rec.BusinessName,
		City:            rec.City,
		WebsiteURL:      rec.WebsiteURL,
		Description:     rec.Description,
		Verified:        rec.Verified,
		LogoURL:         h.logoURL(rec),
		ProfileImageURL: h.profileImageURL(rec),
	}
}

func (h *ProviderHandler) logoURL(rec *model.ProviderRecord) string {
	if len(rec.LogoData) == 0 {
		return ""
	}
	return "/api/providers/" + rec.ID + "/logo"
}

func (h *ProviderHandler) profileImageURL(rec *model.ProviderRecord) string {
	if rec.ProfileImagePath == "" || h.images == nil {
		return ""
	}
	return h.images.PublicURL(rec.ProfileImagePath)
}

// HandleOnboard は教室プロフィールを新規登録する。登録直後のステータスは審査待ち。
// POST /api/provider/profile
func (h *ProviderHandler) HandleOnboard(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req providerInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	record, err := h.service.Onboard(r.Context(), identity, req.toServiceInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.toResponse(record))
}

// HandleGetOwn は自分の教室プロフィールを取得する。未登録の場合は404を返す。
// GET /api/provider/profile
func (h *ProviderHandler) HandleGetOwn(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	record, err := h.service.GetOwn(r.Context(), identity.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if record == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewProviderNotFoundError(identity.ID))
		return
	}

	writeJSON(w, http.StatusOK, h.toResponse(record))
}

// HandleUpdateOwn は自分の教室プロフィールを更新する。
// 却下済みプロフィールの更新は審査待ちへの再申請となる。
// PUT /api/provider/profile
func (h *ProviderHandler) HandleUpdateOwn(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req providerInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	record, err := h.service.UpdateOwn(r.Context(), identity.ID, req.toServiceInput())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toResponse(record))
}

// HandleGetPublic は承認済み教室の公開プロフィールを取得する。
// GET /api/providers/{providerID}
func (h *ProviderHandler) HandleGetPublic(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerID")

	record, err := h.service.Get(r.Context(), providerID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, h.toPublicResponse(record))
}

// HandleSearch は承認済み教室を市区町村・キーワードで検索する。
// GET /api/providers?city=&q=&limit=
func (h *ProviderHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("city")
	keyword := r.URL.Query().Get("q")

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
				Code:     "INVALID_REQUEST",
				Message:  "limitは1〜100の整数で指定してください。",
				Category: "validation",
				Action:   "limitパラメータを確認してください。",
			})
			return
		}
		limit = parsed
	}

	records, err := h.service.Search(r.Context(), city, keyword, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]publicProviderResponse, 0, len(records))
	for _, rec := range records {
		results = append(results, h.toPublicResponse(rec))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"providers": results,
		"count":     len(results),
	})
}

// HandleLogo は教室のロゴ画像バイナリを返す。ロゴ未取得の場合は404。
// GET /api/providers/{providerID}/logo
func (h *ProviderHandler) HandleLogo(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerID")

	record, err := h.service.Get(r.Context(), providerID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if len(record.LogoData) == 0 {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewProviderNotFoundError(providerID))
		return
	}

	w.Header().Set("Content-Type", record.LogoMime)
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(record.LogoData)
}

// SetupPublicProviderRoutes は認証不要の教室カタログルートを登録する。
func SetupPublicProviderRoutes(r chi.Router, h *ProviderHandler) {
	r.Get("/api/providers", h.HandleSearch)
	r.Get("/api/providers/{providerID}", h.HandleGetPublic)
	r.Get("/api/providers/{providerID}/logo", h.HandleLogo)
}
