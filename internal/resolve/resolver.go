// Package resolve はセッションからのプロフィール解決とその調整を提供する。
//
// 解決フローは逐次実行であり並列化しない:
//  1. identityに対応する教室プロフィールを検索する
//  2. 見つかれば運営者（provider）としてUserを構築して終了
//  3. 見つからなければ（「該当行なし」は正常系）identityのメタデータから役割を読む。
//     デフォルトの役割はparent
//  4. 取得できたメタデータから最小限のUserを構築する
//  5. 途中の予期しない失敗では未解決のまま放置せず、最後の手段として
//     プレースホルダーUserに縮退する
//
// セッション失効（期限切れ・リフレッシュトークン欠落）だけは縮退ではなく
// 強制ログアウトとして呼び出し元に伝播する。
package resolve

import (
	"context"
	"log/slog"

	"github.com/minami/naraigoto/internal/authgw"
	"github.com/minami/naraigoto/internal/model"
)

// ProviderFinder は教室プロフィールの検索インターフェース。
// repository.ProviderRepositoryの部分集合として定義する。
type ProviderFinder interface {
	// FindByOwnerID は該当行なしの場合nilとnilエラーを返す。
	FindByOwnerID(ctx context.Context, ownerID string) (*model.ProviderRecord, error)
}

// ChildLister は保護者の子ども一覧取得インターフェース。
type ChildLister interface {
	ListByParentID(ctx context.Context, parentID string) ([]model.Child, error)
}

// Resolver は認証済みidentityをUserビューモデルに解決する。
type Resolver struct {
	providers ProviderFinder
	children  ChildLister
	logger    *slog.Logger
}

// NewResolver はResolverを生成する。childrenはnilでもよい（常に空リスト）。
func NewResolver(providers ProviderFinder, children ChildLister, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		providers: providers,
		children:  children,
		logger:    logger,
	}
}

// Resolve は認証済みidentityからUserを構築する。
//
// 返り値のエラーはセッション失効の場合のみ非nilとなり、強制ログアウトを
// 要求する。それ以外の失敗はすべてログに記録した上でプレースホルダーUserに
// 縮退するため、解決が未完了のままになることはない。
func (r *Resolver) Resolve(ctx context.Context, identity *model.Identity) (*model.User, error) {
	record, err := r.providers.FindByOwnerID(ctx, identity.ID)
	if err != nil {
		if authgw.IsSessionInvalid(err) {
			return nil, err
		}
		// 該当行なし以外のストレージ障害: 解決をブロックせず縮退する
		r.logger.Error("provider lookup failed during profile resolution",
			slog.String("identity_id", identity.ID),
			slog.String("error", err.Error()),
		)
		return r.placeholder(identity), nil
	}

	if record != nil {
		return providerUser(identity, record), nil
	}

	// 教室プロフィールなし: メタデータの役割にフォールバックする
	role := identity.MetadataRole()
	if role == "" {
		role = model.RoleParent
	}

	if role == model.RoleProvider {
		// メタデータ上は運営者だが裏付けレコードがない状態。
		// 掲載申請前の運営者として事業フィールドなしで解決する。
		return &model.User{
			ID:          identity.ID,
			Email:       identity.Email,
			Phone:       identity.Phone,
			Role:        model.RoleProvider,
			DisplayName: identity.Metadata["display_name"],
		}, nil
	}

	return r.parentUser(ctx, identity), nil
}

// parentUser は保護者としてのUserを構築する。
// 子どもリストの取得失敗は致命的ではなく、空リストで続行する。
func (r *Resolver) parentUser(ctx context.Context, identity *model.Identity) *model.User {
	children := []model.Child{}

	if r.children != nil {
		list, err := r.children.ListByParentID(ctx, identity.ID)
		if err != nil {
			r.logger.Warn("children lookup failed, continuing with empty list",
				slog.String("identity_id", identity.ID),
				slog.String("error", err.Error()),
			)
		} else if list != nil {
			children = list
		}
	}

	return &model.User{
		ID:          identity.ID,
		Email:       identity.Email,
		Phone:       identity.Phone,
		Role:        model.RoleParent,
		DisplayName: identity.Metadata["display_name"],
		Children:    children,
	}
}

// placeholder は最後の手段のプレースホルダーUserを構築する。
func (r *Resolver) placeholder(identity *model.Identity) *model.User {
	role := identity.MetadataRole()
	if role == "" {
		role = model.RoleParent
	}
	return &model.User{
		ID:          identity.ID,
		Email:       identity.Email,
		Phone:       identity.Phone,
		Role:        role,
		DisplayName: identity.Metadata["display_name"],
		Placeholder: true,
		Children:    []model.Child{},
	}
}

// providerUser は教室プロフィールを運営者UserとしてProjectionする。
func providerUser(identity *model.Identity, record *model.ProviderRecord) *model.User {
	displayName := record.OwnerName
	if displayName == "" {
		displayName = identity.Metadata["display_name"]
	}
	return &model.User{
		ID:           identity.ID,
		Email:        identity.Email,
		Phone:        identity.Phone,
		Role:         model.RoleProvider,
		DisplayName:  displayName,
		ProviderID:   record.ID,
		BusinessName: record.BusinessName,
		City:         record.City,
		Verified:     record.Verified,
	}
}
