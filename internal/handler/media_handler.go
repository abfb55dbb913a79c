package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/minami/naraigoto/internal/middleware"
	"github.com/minami/naraigoto/internal/model"
)

// MediaService はプロフィール画像ハンドラーが必要とするサービスインターフェース。
type MediaService interface {
	UploadProfileImage(ctx context.Context, ownerID, declaredType string, data []byte) (*model.ProviderRecord, error)
	RemoveProfileImage(ctx context.Context, ownerID string) error
	MaxBytes() int64
}

// MediaHandler は教室プロフィール画像のHTTPハンドラー。
type MediaHandler struct {
	service MediaService
	images  ImageURLBuilder
}

// NewMediaHandler はMediaHandlerを作成する。
func NewMediaHandler(service MediaService, images ImageURLBuilder) *MediaHandler {
	return &MediaHandler{service: service, images: images}
}

// HandleUpload はプロフィール画像をアップロードする。
// リクエストボディは画像バイナリそのもの（Content-Typeヘッダーで形式を申告する）。
// PUT /api/provider/profile/image
func (h *MediaHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	// 上限+1まで読み、超過を確定させる
	data, err := io.ReadAll(io.LimitReader(r.Body, h.service.MaxBytes()+1))
	if err != nil {
		writeInvalidRequest(w)
		return
	}

	record, err := h.service.UploadProfileImage(r.Context(), identity.ID, r.Header.Get("Content-Type"), data)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"profile_image_url": h.images.PublicURL(record.ProfileImagePath),
	})
}

// HandleRemove はプロフィール画像を削除する。画像未設定でも200を返す。
// DELETE /api/provider/profile/image
func (h *MediaHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := h.service.RemoveProfileImage(r.Context(), identity.ID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// SetupProviderRoutes は運営者ロール必須の教室プロフィールルートを登録する。
func SetupProviderRoutes(r chi.Router, ph *ProviderHandler, mh *MediaHandler) {
	r.Post("/api/provider/profile", ph.HandleOnboard)
	r.Get("/api/provider/profile", ph.HandleGetOwn)
	r.Put("/api/provider/profile", ph.HandleUpdateOwn)
	r.Put("/api/provider/profile/image", mh.HandleUpload)
	r.Delete("/api/provider/profile/image", mh.HandleRemove)
}
