// Package authgw は外部認証コラボレーター（GoTrue互換API）へのゲートウェイを提供する。
// 本アプリケーションは認証情報を所有せず、ログイン・サインアップ・OTP・ログアウトを
// そのまま転送し、エラーを呼び出し元に変更なく返す。リトライ・バックオフ・
// 多重実行の排他は行わない。
package authgw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/minami/naraigoto/internal/model"
)

// Session は認証コラボレーターが発行したセッションを表す。
// トークンの所有・失効管理はコラボレーター側にある。
type Session struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int
	Identity     *model.Identity
}

// EventType はセッション変更通知の種別を表す。
type EventType string

const (
	// EventSignedIn はログイン・サインアップ・OTP検証の成功を示す。
	EventSignedIn EventType = "signed_in"
	// EventTokenRefreshed はトークン更新の成功を示す。
	EventTokenRefreshed EventType = "token_refreshed"
	// EventSignedOut はログアウトを示す。
	EventSignedOut EventType = "signed_out"
)

// SessionEvent はセッション変更通知を表す。
// SignedOutの場合、Identityはログアウトした本人を指す（不明な場合はnil）。
type SessionEvent struct {
	Type     EventType
	Identity *model.Identity
}

// Notifier はセッション変更通知の購読者インターフェース。
// 通知はベストエフォートであり、処理の成否がアクションの結果に影響してはならない。
type Notifier interface {
	SessionChanged(event SessionEvent)
}

// Config は認証ゲートウェイの設定。
type Config struct {
	BaseURL string
	AnonKey string
	Timeout time.Duration
}

// Client は認証コラボレーターへのHTTPクライアント。
type Client struct {
	config     Config
	httpClient *http.Client
	notifier   Notifier
}

// NewClient はClientを生成する。notifierはnilでもよい。
func NewClient(config Config, notifier Notifier) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
		notifier:   notifier,
	}
}

// sessionResponse はコラボレーターのセッション発行レスポンス。
type sessionResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int          `json:"expires_in"`
	User         userResponse `json:"user"`
}

// userResponse はコラボレーターのユーザー情報レスポンス。
type userResponse struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	Phone        string                 `json:"phone"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
}

// errorResponse はコラボレーターのエラーレスポンス。
// バージョンによりフィールド名が揺れるため、候補をすべて受ける。
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Message          string `json:"msg"`
	Description      string `json:"message"`
}

// text はエラーレスポンスから人間可読メッセージを取り出す。
func (e *errorResponse) text() string {
	for _, s := range []string{e.ErrorDescription, e.Message, e.Description, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// SignInWithPassword はメールアドレスとパスワードでログインする。
// POST {base}/token?grant_type=password
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}

	var resp sessionResponse
	if err := c.post(ctx, "/token?grant_type=password", "", body, &resp); err != nil {
		return nil, err
	}

	session := resp.toSession()
	c.notify(SessionEvent{Type: EventSignedIn, Identity: session.Identity})
	return session, nil
}

// SignUp はメールアドレスとパスワードで新規登録する。
// metadataにはrole、display_name等の自由形式フィールドを渡す。
// POST {base}/signup
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]string) (*Session, error) {
	data := make(map[string]interface{}, len(metadata))
	for k, v := range metadata {
		data[k] = v
	}
	body := map[string]interface{}{
		"email":    email,
		"password": password,
		"data":     data,
	}

	var resp sessionResponse
	if err := c.post(ctx, "/signup", "", body, &resp); err != nil {
		return nil, err
	}

	session := resp.toSession()
	c.notify(SessionEvent{Type: EventSignedIn, Identity: session.Identity})
	return session, nil
}

// SendOTP は電話番号に確認コードを送信する。
// POST {base}/otp
func (c *Client) SendOTP(ctx context.Context, phone string) error {
	body := map[string]string{"phone": phone}
	return c.post(ctx, "/otp", "", body, nil)
}

// VerifyOTP は電話番号と確認コードを検証し、セッションを取得する。
// POST {base}/verify
func (c *Client) VerifyOTP(ctx context.Context, phone, code string) (*Session, error) {
	body := map[string]string{
		"phone": phone,
		"token": code,
		"type":  "sms",
	}

	var resp sessionResponse
	if err := c.post(ctx, "/verify", "", body, &resp); err != nil {
		return nil, err
	}

	session := resp.toSession()
	c.notify(SessionEvent{Type: EventSignedIn, Identity: session.Identity})
	return session, nil
}

// RefreshSession はリフレッシュトークンでセッションを更新する。
// POST {base}/token?grant_type=refresh_token
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	body := map[string]string{"refresh_token": refreshToken}

	var resp sessionResponse
	if err := c.post(ctx, "/token?grant_type=refresh_token", "", body, &resp); err != nil {
		return nil, err
	}

	session := resp.toSession()
	c.notify(SessionEvent{Type: EventTokenRefreshed, Identity: session.Identity})
	return session, nil
}

// SignOut はコラボレーター側のセッションを失効させる。
// バックエンド呼び出しが失敗してもローカル状態のクリアは呼び出し元で必ず行うため、
// 通知はエラーの有無に関わらず発火する。
// POST {base}/logout
func (c *Client) SignOut(ctx context.Context, accessToken string, identity *model.Identity) error {
	err := c.post(ctx, "/logout", accessToken, nil, nil)
	if err != nil {
		slog.Warn("sign-out request to auth collaborator failed",
			slog.String("error", err.Error()),
		)
	}
	c.notify(SessionEvent{Type: EventSignedOut, Identity: identity})
	return err
}

// GetUser はアクセストークンでユーザー情報を取得する。
// GET {base}/user
func (c *Client) GetUser(ctx context.Context, accessToken string) (*model.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/user", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user request: %w", err)
	}
	c.setHeaders(req, accessToken)

	var resp userResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}

	return resp.toIdentity(), nil
}

// post はJSONボディのPOSTリクエストを送信し、レスポンスをoutにデコードする。
// outがnilの場合はレスポンスボディを読み捨てる。
func (c *Client) post(ctx context.Context, path, accessToken string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req, accessToken)

	return c.do(req, out)
}

// do はリクエストを実行し、エラーレスポンスを分類してからoutにデコードする。
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("auth collaborator request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read auth response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyError(resp.StatusCode, respBody)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse auth response: %w", err)
	}
	return nil
}

// setHeaders はAPIキーと認可ヘッダーを設定する。
// アクセストークン未指定の場合はanonキーをBearerとして使用する。
func (c *Client) setHeaders(req *http.Request, accessToken string) {
	req.Header.Set("apikey", c.config.AnonKey)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.config.AnonKey)
	}
}

// notify は購読者にセッション変更を通知する。
func (c *Client) notify(event SessionEvent) {
	if c.notifier != nil {
		c.notifier.SessionChanged(event)
	}
}

// classifyError はコラボレーターのエラーレスポンスを分類する。
// 構造化エラーコードがないため、メッセージの部分文字列で判定し、
// 元のメッセージはエラーチェーンに保持する。
func classifyError(statusCode int, body []byte) error {
	var errResp errorResponse
	_ = json.Unmarshal(body, &errResp)

	text := errResp.text()
	if text == "" {
		text = strings.TrimSpace(string(body))
	}
	lower := strings.ToLower(text)

	switch {
	case strings.Contains(lower, "invalid login credentials"):
		return fmt.Errorf("%w: %s", ErrInvalidCredentials, text)
	case strings.Contains(lower, "already registered"),
		strings.Contains(lower, "already been registered"):
		return fmt.Errorf("%w: %s", ErrDuplicateSignup, text)
	case strings.Contains(lower, "otp"),
		strings.Contains(lower, "token has expired or is invalid"):
		return fmt.Errorf("%w: %s", ErrInvalidOTP, text)
	case strings.Contains(lower, "refresh token"),
		strings.Contains(lower, "jwt expired"),
		strings.Contains(lower, "invalid jwt"),
		statusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrSessionInvalid, text)
	}

	return fmt.Errorf("auth collaborator returned status %d: %s", statusCode, text)
}

// toSession はレスポンスをSessionに変換する。
func (r *sessionResponse) toSession() *Session {
	return &Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		ExpiresIn:    r.ExpiresIn,
		Identity:     r.User.toIdentity(),
	}
}

// toIdentity はユーザーレスポンスをIdentityに変換する。
// user_metadataの文字列以外の値は無視する。
func (r *userResponse) toIdentity() *model.Identity {
	metadata := make(map[string]string, len(r.UserMetadata))
	for k, v := range r.UserMetadata {
		if s, ok := v.(string); ok {
			metadata[k] = s
		}
	}
	return &model.Identity{
		ID:       r.ID,
		Email:    r.Email,
		Phone:    r.Phone,
		Metadata: metadata,
	}
}
