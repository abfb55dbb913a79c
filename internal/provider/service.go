// Package provider は教室プロフィールの掲載申請・管理のドメインロジックを提供する。
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/minami/naraigoto/internal/model"
	"github.com/minami/naraigoto/internal/repository"
)

// Sanitizer は紹介文のサニタイズインターフェース。
// security.DescriptionSanitizerServiceの部分集合。
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

// URLValidator はウェブサイトURLの事前検証インターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// ResolutionInvalidator は解決済みユーザーのキャッシュ無効化インターフェース。
// プロフィールの作成・更新・審査遷移後に該当identityの再解決を促す。
type ResolutionInvalidator interface {
	Clear(identityID string)
}

// Input は掲載申請・更新の入力を表す。
type Input struct {
	BusinessName string
	OwnerName    string
	Email        string
	Phone        string
	City         string
	Address      string
	WebsiteURL   string
	Description  string
}

// Service は教室プロフィールのサービス層。
type Service struct {
	repo        repository.ProviderRepository
	sanitizer   Sanitizer
	urls        URLValidator
	invalidator ResolutionInvalidator
}

// NewService はServiceを生成する。invalidatorはnilでもよい。
func NewService(
	repo repository.ProviderRepository,
	sanitizer Sanitizer,
	urls URLValidator,
	invalidator ResolutionInvalidator,
) *Service {
	return &Service{
		repo:        repo,
		sanitizer:   sanitizer,
		urls:        urls,
		invalidator: invalidator,
	}
}

// Onboard は掲載申請を受け付け、審査待ち状態の教室プロフィールを作成する。
// 1アカウントにつきプロフィールは1件。
func (s *Service) Onboard(ctx context.Context, identity *model.Identity, input Input) (*model.ProviderRecord, error) {
	if input.BusinessName == "" {
		return nil, fmt.Errorf("business name is required")
	}

	existing, err := s.repo.FindByOwnerID(ctx, identity.ID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの確認に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewProviderExistsError()
	}

	if err := s.validateWebsiteURL(input.WebsiteURL); err != nil {
		return nil, err
	}

	now := time.Now()
	record := &model.ProviderRecord{
		ID:           uuid.New().String(),
		OwnerID:      identity.ID,
		BusinessName: input.BusinessName,
		OwnerName:    input.OwnerName,
		Email:        firstNonEmpty(input.Email, identity.Email),
		Phone:        firstNonEmpty(input.Phone, identity.Phone),
		City:         input.City,
		Address:      input.Address,
		WebsiteURL:   input.WebsiteURL,
		Description:  s.sanitizer.Sanitize(input.Description),
		Status:       model.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("プロフィールの作成に失敗しました: %w", err)
	}

	s.invalidate(identity.ID)

	slog.Info("provider onboarding submitted",
		slog.String("provider_id", record.ID),
		slog.String("owner_id", identity.ID),
		slog.String("business_name", record.BusinessName),
	)

	return record, nil
}

// UpdateOwn は運営者自身の教室プロフィールを更新する。
// 却下済みプロフィールの更新は再申請として審査待ちに戻す。
func (s *Service) UpdateOwn(ctx context.Context, ownerID string, input Input) (*model.ProviderRecord, error) {
	record, err := s.repo.FindByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if record == nil {
		return nil, model.NewProviderNotFoundError(ownerID)
	}

	if err := s.validateWebsiteURL(input.WebsiteURL); err != nil {
		return nil, err
	}

	record.BusinessName = firstNonEmpty(input.BusinessName, record.BusinessName)
	record.OwnerName = input.OwnerName
	record.Email = input.Email
	record.Phone = input.Phone
	record.City = input.City
	record.Address = input.Address
	record.WebsiteURL = input.WebsiteURL
	record.Description = s.sanitizer.Sanitize(input.Description)

	if err := s.repo.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}

	if record.Status == model.StatusRejected {
		if err := s.transition(ctx, record, model.StatusPending, ""); err != nil {
			return nil, err
		}
	}

	s.invalidate(ownerID)
	return record, nil
}

// GetOwn は運営者自身の教室プロフィールを取得する。未登録の場合はnilを返す。
func (s *Service) GetOwn(ctx context.Context, ownerID string) (*model.ProviderRecord, error) {
	record, err := s.repo.FindByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	return record, nil
}

// Get は指定IDの承認済み教室プロフィールを取得する。
// 未承認または存在しない場合はProviderNotFoundを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.ProviderRecord, error) {
	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("教室の取得に失敗しました: %w", err)
	}
	if record == nil || record.Status != model.StatusApproved {
		return nil, model.NewProviderNotFoundError(id)
	}
	return record, nil
}

// Search は承認済みの教室を検索する。
func (s *Service) Search(ctx context.Context, city, keyword string, limit int) ([]*model.ProviderRecord, error) {
	records, err := s.repo.SearchApproved(ctx, city, keyword, limit)
	if err != nil {
		return nil, fmt.Errorf("教室の検索に失敗しました: %w", err)
	}
	return records, nil
}

// ListByStatus は管理者向けに指定審査状態の教室一覧を返す。
func (s *Service) ListByStatus(ctx context.Context, status model.ProviderStatus) ([]*model.ProviderRecord, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid status: %s", status)
	}
	records, err := s.repo.ListByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("教室一覧の取得に失敗しました: %w", err)
	}
	return records, nil
}

// Approve は審査待ちの教室プロフィールを承認する。
func (s *Service) Approve(ctx context.Context, providerID string) (*model.ProviderRecord, error) {
	return s.review(ctx, providerID, model.StatusApproved, "")
}

// Reject は審査待ちの教室プロフィールを却下する。
func (s *Service) Reject(ctx context.Context, providerID, reason string) (*model.ProviderRecord, error) {
	return s.review(ctx, providerID, model.StatusRejected, reason)
}

// review は審査状態の遷移を実行する共通処理。
func (s *Service) review(ctx context.Context, providerID string, next model.ProviderStatus, reason string) (*model.ProviderRecord, error) {
	record, err := s.repo.FindByID(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("教室の取得に失敗しました: %w", err)
	}
	if record == nil {
		return nil, model.NewProviderNotFoundError(providerID)
	}

	if err := s.transition(ctx, record, next, reason); err != nil {
		return nil, err
	}

	s.invalidate(record.OwnerID)

	slog.Info("provider review decision applied",
		slog.String("provider_id", record.ID),
		slog.String("status", string(next)),
	)

	return record, nil
}

// transition は遷移ルールを検証した上で審査状態を更新する。
func (s *Service) transition(ctx context.Context, record *model.ProviderRecord, next model.ProviderStatus, reason string) error {
	if !record.Status.CanTransitionTo(next) {
		return model.NewInvalidTransitionError(record.Status, next)
	}
	if err := s.repo.UpdateStatus(ctx, record.ID, next, reason); err != nil {
		return fmt.Errorf("審査状態の更新に失敗しました: %w", err)
	}
	record.Status = next
	record.RejectReason = reason
	record.Verified = next == model.StatusApproved
	return nil
}

// validateWebsiteURL は任意入力のウェブサイトURLを検証する。空は許可する。
func (s *Service) validateWebsiteURL(rawURL string) error {
	if rawURL == "" || s.urls == nil {
		return nil
	}
	if err := s.urls.ValidateURL(rawURL); err != nil {
		return model.NewInvalidWebsiteURLError(err.Error())
	}
	return nil
}

// invalidate は所有者の解決済みユーザーキャッシュを無効化する。
func (s *Service) invalidate(ownerID string) {
	if s.invalidator != nil {
		s.invalidator.Clear(ownerID)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
