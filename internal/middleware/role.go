package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/minami/naraigoto/internal/authgw"
	"github.com/minami/naraigoto/internal/model"
)

// userContextKey はリクエストコンテキストに解決済みユーザーを格納するためのキー。
var userContextKey = contextKey("resolved_user")

// UserResolver はIdentityから利用ユーザーを解決するインターフェース。
// resolve.Bootstrapperの部分集合として定義する。
type UserResolver interface {
	UserFor(ctx context.Context, identity *model.Identity) (*model.User, error)
}

// NewRoleMiddleware はプロフィールを解決し、指定された役割を要求するミドルウェアを返す。
// セッションミドルウェアの後に配置する。解決済みユーザーをコンテキストに注入する。
// 解決中にセッション失効が検出された場合は401、役割が一致しない場合は403を返す。
func NewRoleMiddleware(resolver UserResolver, required model.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := IdentityFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewSessionInvalidError())
				return
			}

			user, err := resolver.UserFor(r.Context(), identity)
			if err != nil {
				if authgw.IsSessionInvalid(err) {
					WriteErrorResponse(w, http.StatusUnauthorized, model.NewSessionInvalidError())
					return
				}
				WriteInternalServerError(w)
				return
			}

			if user.Role != required {
				WriteErrorResponse(w, http.StatusForbidden, &model.APIError{
					Code:     "FORBIDDEN",
					Message:  "この操作を行う権限がありません。",
					Category: "auth",
					Action:   "ご利用中のアカウント種別をご確認ください。",
				})
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext はリクエストコンテキストから解決済みユーザーを取得する。
// 役割ミドルウェアを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.User, error) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	if !ok || user == nil {
		return nil, fmt.Errorf("resolved user not found in context")
	}
	return user, nil
}

// ContextWithUser はコンテキストに解決済みユーザーを注入する。テスト用。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
