// Package model はドメインモデルを定義する。
package model

import "time"

// ProviderStatus は掲載申請の審査状態を表す。
type ProviderStatus string

const (
	// StatusPending は審査待ちを示す。
	StatusPending ProviderStatus = "pending"
	// StatusApproved は掲載承認済みを示す。
	StatusApproved ProviderStatus = "approved"
	// StatusRejected は却下済みを示す。
	StatusRejected ProviderStatus = "rejected"
)

// Valid はProviderStatusが定義済みの値かを検証する。
func (s ProviderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// CanTransitionTo は審査状態の遷移が許可されているかを判定する。
// pending → approved | rejected、rejected → pending（再申請）のみ許可する。
func (s ProviderStatus) CanTransitionTo(next ProviderStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusApproved || next == StatusRejected
	case StatusRejected:
		return next == StatusPending
	}
	return false
}

// ProviderRecord は教室運営者の事業プロフィールを表す行エンティティ。
// 本アプリケーションからは読み取り中心で、審査状態の遷移のみ管理者操作で書き換わる。
type ProviderRecord struct {
	ID           string
	OwnerID      string // 認証コラボレーター上のidentity ID（外部キー）
	BusinessName string
	OwnerName    string
	Email        string
	Phone        string
	City         string
	Address      string
	WebsiteURL   string
	Description  string // サニタイズ済みHTML
	Status       ProviderStatus
	RejectReason string
	Verified     bool

	// 掲載カード用ロゴ。ウェブサイトから取得できなかった場合はnil。
	LogoData      []byte
	LogoMime      string
	LogoFetchedAt *time.Time

	ProfileImagePath string // ファイルストレージ上のオブジェクトパス

	CreatedAt time.Time
	UpdatedAt time.Time
}
