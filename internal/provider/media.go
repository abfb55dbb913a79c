package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/minami/naraigoto/internal/model"
	"github.com/minami/naraigoto/internal/repository"
)

// MaxProfileImageBytes はプロフィール画像の最大サイズ。
const MaxProfileImageBytes = 5 << 20

// 受け付ける画像形式と保存時の拡張子
var profileImageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// FileStore はプロフィール画像を保管するファイルストレージのインターフェース。
// filestore.Clientの部分集合。
type FileStore interface {
	Upload(ctx context.Context, path, contentType string, body io.Reader) error
	Remove(ctx context.Context, path string) error
	PublicURL(path string) string
}

// MediaService は教室プロフィール画像の保管を扱うサービス層。
type MediaService struct {
	repo     repository.ProviderRepository
	files    FileStore
	maxBytes int64
}

// NewMediaService はMediaServiceを生成する。
// maxBytesが0以下の場合はMaxProfileImageBytesを使用する。
func NewMediaService(repo repository.ProviderRepository, files FileStore, maxBytes int64) *MediaService {
	if maxBytes <= 0 {
		maxBytes = MaxProfileImageBytes
	}
	return &MediaService{repo: repo, files: files, maxBytes: maxBytes}
}

// MaxBytes は受け付ける画像の最大サイズを返す。
func (s *MediaService) MaxBytes() int64 {
	return s.maxBytes
}

// UploadProfileImage はプロフィール画像を検証のうえファイルストレージに保存し、
// 保存先パスをプロフィールに記録する。
func (s *MediaService) UploadProfileImage(ctx context.Context, ownerID, declaredType string, data []byte) (*model.ProviderRecord, error) {
	record, err := s.repo.FindByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if record == nil {
		return nil, model.NewProviderNotFoundError(ownerID)
	}

	if int64(len(data)) > s.maxBytes {
		return nil, model.NewUploadTooLargeError(s.maxBytes)
	}
	if len(data) == 0 {
		return nil, model.NewUnsupportedMediaTypeError("")
	}

	contentType := normalizeContentType(declaredType, data)
	ext, ok := profileImageExtensions[contentType]
	if !ok {
		return nil, model.NewUnsupportedMediaTypeError(contentType)
	}

	path := "providers/" + record.ID + "/profile" + ext

	if err := s.files.Upload(ctx, path, contentType, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("画像のアップロードに失敗しました: %w", err)
	}

	// 拡張子が変わった場合は旧オブジェクトを削除する
	if record.ProfileImagePath != "" && record.ProfileImagePath != path {
		if err := s.files.Remove(ctx, record.ProfileImagePath); err != nil {
			return nil, fmt.Errorf("旧画像の削除に失敗しました: %w", err)
		}
	}

	if err := s.repo.UpdateProfileImagePath(ctx, record.ID, path); err != nil {
		return nil, fmt.Errorf("画像パスの保存に失敗しました: %w", err)
	}
	record.ProfileImagePath = path

	return record, nil
}

// RemoveProfileImage はプロフィール画像をファイルストレージとプロフィールの両方から削除する。
func (s *MediaService) RemoveProfileImage(ctx context.Context, ownerID string) error {
	record, err := s.repo.FindByOwnerID(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if record == nil {
		return model.NewProviderNotFoundError(ownerID)
	}
	if record.ProfileImagePath == "" {
		return nil
	}

	if err := s.files.Remove(ctx, record.ProfileImagePath); err != nil {
		return fmt.Errorf("画像の削除に失敗しました: %w", err)
	}

	if err := s.repo.UpdateProfileImagePath(ctx, record.ID, ""); err != nil {
		return fmt.Errorf("画像パスの更新に失敗しました: %w", err)
	}

	return nil
}

// normalizeContentType は申告されたContent-Typeとバイナリ先頭の判定を照合する。
// 申告が空または非対応の場合はバイナリからの判定を採用する。
func normalizeContentType(declaredType string, data []byte) string {
	declared := strings.TrimSpace(strings.Split(declaredType, ";")[0])
	if _, ok := profileImageExtensions[declared]; ok {
		return declared
	}
	return http.DetectContentType(data)
}
