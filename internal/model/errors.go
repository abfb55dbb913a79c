// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, provider, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	ErrCodeDuplicateSignup      = "DUPLICATE_SIGNUP"
	ErrCodeInvalidOTP           = "INVALID_OTP"
	ErrCodeSessionInvalid       = "SESSION_INVALID"
	ErrCodeAuthUnavailable      = "AUTH_UNAVAILABLE"
	ErrCodeProviderNotFound     = "PROVIDER_NOT_FOUND"
	ErrCodeProviderExists       = "PROVIDER_EXISTS"
	ErrCodeInvalidTransition    = "INVALID_TRANSITION"
	ErrCodeInvalidWebsiteURL    = "INVALID_WEBSITE_URL"
	ErrCodeChildNotFound        = "CHILD_NOT_FOUND"
	ErrCodeInvalidRole          = "INVALID_ROLE"
	ErrCodeUploadTooLarge       = "UPLOAD_TOO_LARGE"
	ErrCodeUnsupportedMediaType = "UNSUPPORTED_MEDIA_TYPE"
	ErrCodeDemoDisabled         = "DEMO_DISABLED"
)

// NewInvalidCredentialsError は認証失敗エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewDuplicateSignupError は登録済みアドレスでの再登録エラーを生成する。
func NewDuplicateSignupError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateSignup,
		Message:  "このメールアドレスは既に登録されています。",
		Category: "auth",
		Action:   "ログイン画面からログインするか、パスワードの再設定を行ってください。",
	}
}

// NewInvalidOTPError は確認コード検証失敗エラーを生成する。
func NewInvalidOTPError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidOTP,
		Message:  "確認コードが正しくないか、有効期限が切れています。",
		Category: "auth",
		Action:   "コードを再送信して、新しいコードを入力してください。",
	}
}

// NewSessionInvalidError はセッション失効エラーを生成する。
func NewSessionInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionInvalid,
		Message:  "セッションの有効期限が切れました。",
		Category: "auth",
		Action:   "再度ログインしてください。",
	}
}

// NewAuthUnavailableError は認証サービス接続失敗エラーを生成する。
func NewAuthUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthUnavailable,
		Message:  "認証サービスに接続できませんでした。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewProviderNotFoundError は教室プロフィール未検出エラーを生成する。
func NewProviderNotFoundError(providerID string) *APIError {
	return &APIError{
		Code:     ErrCodeProviderNotFound,
		Message:  fmt.Sprintf("指定された教室が見つかりません: %s", providerID),
		Category: "provider",
		Action:   "教室IDを確認してください。",
	}
}

// NewProviderExistsError は掲載申請の重複エラーを生成する。
func NewProviderExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeProviderExists,
		Message:  "このアカウントには既に教室プロフィールが登録されています。",
		Category: "provider",
		Action:   "既存のプロフィールを編集してください。",
	}
}

// NewInvalidTransitionError は許可されていない審査状態遷移のエラーを生成する。
func NewInvalidTransitionError(from, to ProviderStatus) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTransition,
		Message:  fmt.Sprintf("審査状態を %s から %s に変更することはできません。", from, to),
		Category: "provider",
		Action:   "現在の審査状態を確認してください。",
	}
}

// NewInvalidWebsiteURLError は無効なウェブサイトURLのエラーを生成する。
func NewInvalidWebsiteURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidWebsiteURL,
		Message:  fmt.Sprintf("無効なウェブサイトURLです: %s", reason),
		Category: "validation",
		Action:   "http:// または https:// で始まる公開URLを入力してください。",
	}
}

// NewChildNotFoundError は子ども情報未検出エラーを生成する。
func NewChildNotFoundError(childID string) *APIError {
	return &APIError{
		Code:     ErrCodeChildNotFound,
		Message:  fmt.Sprintf("指定されたお子さまの情報が見つかりません: %s", childID),
		Category: "validation",
		Action:   "登録済みのお子さま一覧を確認してください。",
	}
}

// NewInvalidRoleError は役割が不正な場合のエラーを生成する。
func NewInvalidRoleError(role string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRole,
		Message:  fmt.Sprintf("無効な役割です: %s", role),
		Category: "validation",
		Action:   "役割には parent または provider を指定してください。",
	}
}

// NewUploadTooLargeError はアップロードサイズ超過エラーを生成する。
func NewUploadTooLargeError(maxBytes int64) *APIError {
	return &APIError{
		Code:     ErrCodeUploadTooLarge,
		Message:  fmt.Sprintf("アップロードサイズが上限（%dバイト）を超えています。", maxBytes),
		Category: "validation",
		Action:   "画像を縮小してから再度アップロードしてください。",
	}
}

// NewUnsupportedMediaTypeError は非対応の画像形式エラーを生成する。
func NewUnsupportedMediaTypeError(contentType string) *APIError {
	return &APIError{
		Code:     ErrCodeUnsupportedMediaType,
		Message:  fmt.Sprintf("対応していない画像形式です: %s", contentType),
		Category: "validation",
		Action:   "PNG、JPEG、WebPのいずれかの形式でアップロードしてください。",
	}
}

// NewDemoDisabledError はデモモード無効時のエラーを生成する。
func NewDemoDisabledError() *APIError {
	return &APIError{
		Code:     ErrCodeDemoDisabled,
		Message:  "デモログインはこの環境では利用できません。",
		Category: "auth",
		Action:   "通常のログインをご利用ください。",
	}
}
