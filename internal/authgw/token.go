package authgw

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/minami/naraigoto/internal/model"
)

// TokenVerifier はアクセストークンの検証インターフェース。
// ミドルウェアとブートストラッパーが使用する。
type TokenVerifier interface {
	// Verify はアクセストークンを検証し、Identityを返す。
	// 期限切れ・署名不正・形式不正はErrSessionInvalidでラップして返す。
	Verify(tokenString string) (*model.Identity, error)
}

// accessClaims は認証コラボレーターが発行するアクセストークンのクレーム。
type accessClaims struct {
	Email        string                 `json:"email"`
	Phone        string                 `json:"phone"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
	jwt.RegisteredClaims
}

// HMACVerifier はコラボレーターと共有するシークレットによるHS256検証を行う。
// ネットワーク往復なしにリクエストごとのトークン検証を完結させる。
type HMACVerifier struct {
	secret []byte
}

// NewHMACVerifier はHMACVerifierを生成する。
func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

// Verify はアクセストークンを検証し、Identityを返す。
func (v *HMACVerifier) Verify(tokenString string) (*model.Identity, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: empty token", ErrSessionInvalid)
	}

	claims := &accessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionInvalid, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrSessionInvalid)
	}

	metadata := make(map[string]string, len(claims.UserMetadata))
	for k, val := range claims.UserMetadata {
		if s, ok := val.(string); ok {
			metadata[k] = s
		}
	}

	return &model.Identity{
		ID:       claims.Subject,
		Email:    claims.Email,
		Phone:    claims.Phone,
		Metadata: metadata,
	}, nil
}

// MintToken は指定Identityのアクセストークンを署名発行する。
// デモモードのローカル発行とテストでのみ使用する。本番のトークン発行は
// 認証コラボレーターの責務であり、このパスを通らない。
func MintToken(secret string, identity *model.Identity, ttl time.Duration) (string, error) {
	metadata := make(map[string]interface{}, len(identity.Metadata))
	for k, v := range identity.Metadata {
		metadata[k] = v
	}

	now := time.Now()
	claims := &accessClaims{
		Email:        identity.Email,
		Phone:        identity.Phone,
		UserMetadata: metadata,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// compile-time interface check
var _ TokenVerifier = (*HMACVerifier)(nil)
