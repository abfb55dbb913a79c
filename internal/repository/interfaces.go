// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/minami/naraigoto/internal/model"
)

// ProviderRepository は教室プロフィールの永続化インターフェース。
type ProviderRepository interface {
	// FindByID は指定IDの教室プロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.ProviderRecord, error)

	// FindByOwnerID は所有者のidentity IDで教室プロフィールを検索する。
	// 「該当行なし」は正常系であり、nilとnilエラーを返す。
	FindByOwnerID(ctx context.Context, ownerID string) (*model.ProviderRecord, error)

	// Create は教室プロフィールを作成する。
	Create(ctx context.Context, provider *model.ProviderRecord) error

	// Update は教室プロフィールの事業情報を更新する。審査状態は変更しない。
	Update(ctx context.Context, provider *model.ProviderRecord) error

	// UpdateStatus は審査状態と却下理由を更新する。
	UpdateStatus(ctx context.Context, id string, status model.ProviderStatus, rejectReason string) error

	// UpdateLogo はロゴデータと取得日時を更新する。取得失敗時はnilデータで呼ぶ。
	UpdateLogo(ctx context.Context, id string, data []byte, mime string, fetchedAt time.Time) error

	// UpdateProfileImagePath はファイルストレージ上のプロフィール画像パスを更新する。
	UpdateProfileImagePath(ctx context.Context, id string, path string) error

	// ListByStatus は指定した審査状態の教室プロフィール一覧を返す。
	ListByStatus(ctx context.Context, status model.ProviderStatus) ([]*model.ProviderRecord, error)

	// SearchApproved は承認済みの教室を検索する。
	// cityが空でない場合は都市で、keywordが空でない場合は事業名・説明文で絞り込む。
	SearchApproved(ctx context.Context, city, keyword string, limit int) ([]*model.ProviderRecord, error)

	// ListNeedingLogoFetch はロゴが未取得、または取得からrefreshAfter以上経過した
	// 承認済み教室をFOR UPDATE SKIP LOCKEDで排他的に取得する。
	ListNeedingLogoFetch(ctx context.Context, refreshAfter time.Duration, limit int) ([]*model.ProviderRecord, error)
}

// ChildRepository は保護者に紐づく子ども情報の永続化インターフェース。
type ChildRepository interface {
	// FindByID は指定IDの子ども情報を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Child, error)

	// ListByParentID は保護者の子ども一覧を登録順で返す。0件の場合は空スライスを返す。
	ListByParentID(ctx context.Context, parentID string) ([]model.Child, error)

	// Create は子ども情報を作成する。
	Create(ctx context.Context, child *model.Child) error

	// Update は子ども情報を更新する。
	Update(ctx context.Context, child *model.Child) error

	// Delete は指定IDの子ども情報を削除する。
	Delete(ctx context.Context, id string) error

	// DeleteByParentID は保護者の全子ども情報を削除する。退会処理用。
	DeleteByParentID(ctx context.Context, parentID string) error
}

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}
