// Package parent は保護者プロフィール（子ども情報）のドメインロジックを提供する。
package parent

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/minami/naraigoto/internal/model"
	"github.com/minami/naraigoto/internal/repository"
)

// ChildInput は子ども情報の登録・更新入力を表す。
type ChildInput struct {
	Name      string
	BirthYear int
	Notes     string
}

// ResolutionInvalidator は解決済みユーザーのキャッシュ無効化インターフェース。
type ResolutionInvalidator interface {
	Clear(identityID string)
}

// Service は子ども情報のサービス層。
// 所有権の検証（保護者は自分の子どもだけを操作できる）を担う。
type Service struct {
	repo        repository.ChildRepository
	invalidator ResolutionInvalidator
}

// NewService はServiceを生成する。invalidatorはnilでもよい。
func NewService(repo repository.ChildRepository, invalidator ResolutionInvalidator) *Service {
	return &Service{repo: repo, invalidator: invalidator}
}

// List は保護者の子ども一覧を返す。0件の場合は空スライスを返す。
func (s *Service) List(ctx context.Context, parentID string) ([]model.Child, error) {
	children, err := s.repo.ListByParentID(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("子ども一覧の取得に失敗しました: %w", err)
	}
	return children, nil
}

// Add は子ども情報を登録する。
func (s *Service) Add(ctx context.Context, parentID string, input ChildInput) (*model.Child, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("child name is required")
	}

	now := time.Now()
	child := &model.Child{
		ID:        uuid.New().String(),
		ParentID:  parentID,
		Name:      input.Name,
		BirthYear: input.BirthYear,
		Notes:     input.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, child); err != nil {
		return nil, fmt.Errorf("子ども情報の登録に失敗しました: %w", err)
	}

	s.invalidate(parentID)
	return child, nil
}

// Update は子ども情報を更新する。他の保護者の子どもは更新できない。
func (s *Service) Update(ctx context.Context, parentID, childID string, input ChildInput) (*model.Child, error) {
	child, err := s.findOwned(ctx, parentID, childID)
	if err != nil {
		return nil, err
	}

	if input.Name != "" {
		child.Name = input.Name
	}
	child.BirthYear = input.BirthYear
	child.Notes = input.Notes

	if err := s.repo.Update(ctx, child); err != nil {
		return nil, fmt.Errorf("子ども情報の更新に失敗しました: %w", err)
	}

	s.invalidate(parentID)
	return child, nil
}

// Remove は子ども情報を削除する。他の保護者の子どもは削除できない。
func (s *Service) Remove(ctx context.Context, parentID, childID string) error {
	if _, err := s.findOwned(ctx, parentID, childID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, childID); err != nil {
		return fmt.Errorf("子ども情報の削除に失敗しました: %w", err)
	}

	s.invalidate(parentID)
	return nil
}

// findOwned は子ども情報を取得し、所有権を検証する。
// 存在しない場合と所有者が異なる場合は同じChildNotFoundを返す（存在の漏えい防止）。
func (s *Service) findOwned(ctx context.Context, parentID, childID string) (*model.Child, error) {
	child, err := s.repo.FindByID(ctx, childID)
	if err != nil {
		return nil, fmt.Errorf("子ども情報の取得に失敗しました: %w", err)
	}
	if child == nil || child.ParentID != parentID {
		return nil, model.NewChildNotFoundError(childID)
	}
	return child, nil
}

func (s *Service) invalidate(parentID string) {
	if s.invalidator != nil {
		s.invalidator.Clear(parentID)
	}
}
