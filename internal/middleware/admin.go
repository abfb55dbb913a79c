package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/minami/naraigoto/internal/model"
)

// adminKeyHeader は管理APIキーを渡すリクエストヘッダー名。
const adminKeyHeader = "X-Admin-Key"

// NewAdminKeyMiddleware は管理APIキーを検証するミドルウェアを返す。
// キーは定数時間比較で照合する。不一致・未指定は403を返す。
func NewAdminKeyMiddleware(key string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(adminKeyHeader)
			if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				WriteErrorResponse(w, http.StatusForbidden, &model.APIError{
					Code:     "FORBIDDEN",
					Message:  "この操作を行う権限がありません。",
					Category: "auth",
					Action:   "管理APIキーを確認してください。",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
