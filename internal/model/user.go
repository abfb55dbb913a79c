// Package model はドメインモデルを定義する。
package model

import "time"

// Role は解決済みユーザーの役割を表す。
// "parent"（保護者）または "provider"（教室運営者）のいずれか。
type Role string

const (
	// RoleParent は習い事を探す保護者を表す。
	RoleParent Role = "parent"
	// RoleProvider は教室を掲載する運営者を表す。
	RoleProvider Role = "provider"
)

// Valid はRoleが定義済みの値かを検証する。
func (r Role) Valid() bool {
	return r == RoleParent || r == RoleProvider
}

// Identity は認証コラボレーターが発行したアクセストークンの検証結果を表す。
// 本アプリケーションはトークンの発行・失効を所有せず、検証済みクレームのみを扱う。
type Identity struct {
	ID       string // トークンのsubクレーム
	Email    string
	Phone    string
	Metadata map[string]string // user_metadata（role、display_name等の自由形式マップ）
}

// MetadataRole はメタデータからroleを読み取る。
// 未設定または不正な値の場合はゼロ値を返す。
func (i *Identity) MetadataRole() Role {
	r := Role(i.Metadata["role"])
	if !r.Valid() {
		return ""
	}
	return r
}

// User はセッションと役割を組み合わせたビューモデル。
// プロフィール解決のたびに新規構築され、アクティブなセッションごとに高々1つ存在する。
type User struct {
	ID          string
	Email       string
	Phone       string
	Role        Role
	DisplayName string

	// Placeholder は解決処理の失敗により最低限の情報で代替構築されたことを示す。
	Placeholder bool

	// 保護者の場合のみ: 子どもリスト（解決成功時はnilではなく空スライス）
	Children []Child

	// 運営者の場合のみ: 事業プロフィールの要約
	ProviderID   string
	BusinessName string
	City         string
	Verified     bool
}

// Child は保護者に紐づく子どもの情報を表す。
type Child struct {
	ID        string
	ParentID  string
	Name      string
	BirthYear int
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
