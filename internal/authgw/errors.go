package authgw

import "errors"

// 認証コラボレーターの失敗を分類するエラー。
// コラボレーターは構造化エラーコードを持たないため、応答メッセージの
// 部分文字列マッチで分類する。
var (
	// ErrInvalidCredentials はメールアドレスまたはパスワードの誤りを示す。
	ErrInvalidCredentials = errors.New("authgw: invalid login credentials")

	// ErrDuplicateSignup は登録済みアドレスでの再登録を示す。
	ErrDuplicateSignup = errors.New("authgw: user already registered")

	// ErrInvalidOTP は確認コードの誤りまたは期限切れを示す。
	ErrInvalidOTP = errors.New("authgw: invalid or expired OTP")

	// ErrSessionInvalid はセッションの失効（期限切れ・リフレッシュトークン欠落）を示す。
	// このエラーは再試行ではなく強制ログアウトのトリガーとなる。
	ErrSessionInvalid = errors.New("authgw: session invalid")
)

// IsSessionInvalid はエラーがセッション失効に由来するかを判定する。
// プロフィール解決中にこのエラーに遭遇した場合は強制ログアウトを行う。
func IsSessionInvalid(err error) bool {
	return errors.Is(err, ErrSessionInvalid)
}
