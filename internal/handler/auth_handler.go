package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/minami/naraigoto/internal/authgw"
	"github.com/minami/naraigoto/internal/middleware"
	"github.com/minami/naraigoto/internal/model"
)

// AuthGateway は認証ハンドラーが必要とする認証基盤クライアントのインターフェース。
type AuthGateway interface {
	SignInWithPassword(ctx context.Context, email, password string) (*authgw.Session, error)
	SignUp(ctx context.Context, email, password string, metadata map[string]string) (*authgw.Session, error)
	SendOTP(ctx context.Context, phone string) error
	VerifyOTP(ctx context.Context, phone, code string) (*authgw.Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*authgw.Session, error)
	SignOut(ctx context.Context, accessToken string, identity *model.Identity) error
}

// ProfileResolver はセッション確立後のプロフィール解決インターフェース。
type ProfileResolver interface {
	UserFor(ctx context.Context, identity *model.Identity) (*model.User, error)
}

// AuthMetrics は認証イベントの計測インターフェース。
type AuthMetrics interface {
	RecordAuthAttempt(action string, success bool)
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	gateway  AuthGateway
	resolver ProfileResolver
	metrics  AuthMetrics

	// デモモード設定（無効時はデモエンドポイントが403を返す）
	demoMode   bool
	demoSecret string
}

// NewAuthHandler はAuthHandlerを作成する。
func NewAuthHandler(gateway AuthGateway, resolver ProfileResolver, metrics AuthMetrics, demoMode bool, demoSecret string) *AuthHandler {
	return &AuthHandler{
		gateway:    gateway,
		resolver:   resolver,
		metrics:    metrics,
		demoMode:   demoMode,
		demoSecret: demoSecret,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
}

type otpSendRequest struct {
	Phone string `json:"phone"`
}

type otpVerifyRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type demoLoginRequest struct {
	Role string `json:"role"`
}

type sessionResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type"`
	ExpiresIn    int           `json:"expires_in"`
	User         *userResponse `json:"user"`
}

type userResponse struct {
	ID          string          `json:"id"`
	Email       string          `json:"email,omitempty"`
	Phone       string          `json:"phone,omitempty"`
	Role        string          `json:"role"`
	DisplayName string          `json:"display_name"`
	Placeholder bool            `json:"placeholder"`
	Children    []childResponse `json:"children,omitempty"`

	ProviderID   string `json:"provider_id,omitempty"`
	BusinessName string `json:"business_name,omitempty"`
}

type childResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	BirthYear int    `json:"birth_year,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

func toUserResponse(user *model.User) *userResponse {
	if user == nil {
		return nil
	}
	resp := &userResponse{
		ID:           user.ID,
		Email:        user.Email,
		Phone:        user.Phone,
		Role:         string(user.Role),
		DisplayName:  user.DisplayName,
		Placeholder:  user.Placeholder,
		ProviderID:   user.ProviderID,
		BusinessName: user.BusinessName,
	}
	for _, c := range user.Children {
		resp.Children = append(resp.Children, childResponse{
			ID:        c.ID,
			Name:      c.Name,
			BirthYear: c.BirthYear,
			Notes:     c.Notes,
		})
	}
	return resp
}

// sessionWithProfile はセッションとプロフィールを合成したレスポンスを書き込む。
// プロフィール解決はセッション確立の後段であり、失敗してもセッション自体は有効
// （解決層がプレースホルダーを返すため、ここでエラーになるのはセッション無効時のみ）。
func (h *AuthHandler) sessionWithProfile(w http.ResponseWriter, r *http.Request, session *authgw.Session) {
	user, err := h.resolver.UserFor(r.Context(), session.Identity)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		TokenType:    session.TokenType,
		ExpiresIn:    session.ExpiresIn,
		User:         toUserResponse(user),
	})
}

// HandleLogin はメールアドレスとパスワードでログインする。
// POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	session, err := h.gateway.SignInWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		h.metrics.RecordAuthAttempt("login", false)
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordAuthAttempt("login", true)
	h.sessionWithProfile(w, r, session)
}

// HandleSignup は新規アカウントを登録する。roleメタデータは登録時に確定する。
// POST /api/auth/signup
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	role := model.Role(req.Role)
	if !role.Valid() {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRoleError(req.Role))
		return
	}

	metadata := map[string]string{"role": string(role)}
	if name := strings.TrimSpace(req.DisplayName); name != "" {
		metadata["display_name"] = name
	}

	session, err := h.gateway.SignUp(r.Context(), req.Email, req.Password, metadata)
	if err != nil {
		h.metrics.RecordAuthAttempt("signup", false)
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordAuthAttempt("signup", true)
	h.sessionWithProfile(w, r, session)
}

// HandleOTPSend は電話番号にワンタイムパスワードを送信する。
// POST /api/auth/otp/send
func (h *AuthHandler) HandleOTPSend(w http.ResponseWriter, r *http.Request) {
	var req otpSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	if err := h.gateway.SendOTP(r.Context(), req.Phone); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// HandleOTPVerify はワンタイムパスワードを検証しセッションを確立する。
// POST /api/auth/otp/verify
func (h *AuthHandler) HandleOTPVerify(w http.ResponseWriter, r *http.Request) {
	var req otpVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	session, err := h.gateway.VerifyOTP(r.Context(), req.Phone, req.Code)
	if err != nil {
		h.metrics.RecordAuthAttempt("otp_verify", false)
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordAuthAttempt("otp_verify", true)
	h.sessionWithProfile(w, r, session)
}

// HandleRefresh はリフレッシュトークンでセッションを更新する。
// POST /api/auth/refresh
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	session, err := h.gateway.RefreshSession(r.Context(), req.RefreshToken)
	if err != nil {
		h.metrics.RecordAuthAttempt("refresh", false)
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordAuthAttempt("refresh", true)
	h.sessionWithProfile(w, r, session)
}

// HandleLogout はセッションを破棄する。リモート側の失敗に関わらず200を返す
// （ローカル状態は通知経由で常にクリアされる）。
// POST /api/auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	// リモート失効の失敗に関わらずローカル状態は通知経由でクリアされるため、
	// エラーはレスポンスに影響させない（クライアント側の失敗を警告済み）。
	_ = h.gateway.SignOut(r.Context(), bearerToken(r), identity)

	writeJSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
}

// HandleMe は現在のセッションのプロフィールを返す。
// GET /api/auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	identity, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	user, err := h.resolver.UserFor(r.Context(), identity)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// HandleDemoLogin はデモ用の固定アイデンティティでセッションを発行する。
// デモモードが無効の場合は403を返す。
// POST /api/auth/demo
func (h *AuthHandler) HandleDemoLogin(w http.ResponseWriter, r *http.Request) {
	if !h.demoMode {
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewDemoDisabledError())
		return
	}

	var req demoLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequest(w)
		return
	}

	role := model.Role(req.Role)
	if !role.Valid() {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRoleError(req.Role))
		return
	}

	identity := &model.Identity{
		ID:    "demo-" + string(role),
		Email: "demo-" + string(role) + "@example.com",
		Metadata: map[string]string{
			"role":         string(role),
			"display_name": "デモユーザー",
		},
	}

	token, err := authgw.MintToken(h.demoSecret, identity, time.Hour)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	user, err := h.resolver.UserFor(r.Context(), identity)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(time.Hour.Seconds()),
		User:        toUserResponse(user),
	})
}

// bearerToken はAuthorizationヘッダーからトークン部分を取り出す。
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// SetupAuthRoutes は認証ルートを登録する。
func SetupAuthRoutes(r chi.Router, h *AuthHandler) {
	r.Post("/api/auth/login", h.HandleLogin)
	r.Post("/api/auth/signup", h.HandleSignup)
	r.Post("/api/auth/otp/verify", h.HandleOTPVerify)
	r.Post("/api/auth/refresh", h.HandleRefresh)
	r.Post("/api/auth/demo", h.HandleDemoLogin)
}
