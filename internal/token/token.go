// Package token はセッショントークンとパスワードリセットトークンの
// 発行・検証を提供する。
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/hitoshi/voteman/internal/model"
)

const (
	// SessionTTL はセッショントークンの固定有効期間。
	SessionTTL = 6 * time.Hour
	// ResetTTL はパスワードリセットトークンの固定有効期間。
	ResetTTL = time.Hour
)

// sessionClaims はセッショントークンに埋め込むクレーム。
// TokenVersionはユーザーの現在の失効世代と照合され、
// ログアウトやパスワードリセットで古いトークンが無効になる。
type sessionClaims struct {
	UserID       string `json:"user_id"`
	TokenVersion int    `json:"token_version"`
	jwt.RegisteredClaims
}

// resetClaims はリセットトークンに埋め込むクレーム。
// Nonceにより同一ユーザーへの発行でも毎回異なるトークンになる。
type resetClaims struct {
	UserID string `json:"user_id"`
	Nonce  string `json:"nonce"`
	jwt.RegisteredClaims
}

// Service はHMAC-SHA256署名によるトークンの発行・検証を行う。
type Service struct {
	secret []byte
	now    func() time.Time
}

// NewService はServiceを生成する。
func NewService(secret string) *Service {
	return &Service{secret: []byte(secret), now: time.Now}
}

// IssueSession はユーザーIDと失効世代を埋め込んだ署名付き
// セッショントークンを発行する。有効期間は6時間固定。
func (s *Service) IssueSession(userID string, tokenVersion int) (string, error) {
	now := s.now()
	claims := &sessionClaims{
		UserID:       userID,
		TokenVersion: tokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// VerifySession はセッショントークンの署名と有効期限を検証し、
// 埋め込まれたユーザーIDと失効世代を返す。
// 検証失敗はAPIError(INVALID_TOKEN)として返す。
// この段階ではデータベース参照は行わない。
func (s *Service) VerifySession(tokenString string) (userID string, tokenVersion int, err error) {
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", 0, model.NewInvalidTokenError()
	}
	if claims.UserID == "" {
		return "", 0, model.NewInvalidTokenError()
	}
	return claims.UserID, claims.TokenVersion, nil
}

// IssueReset は高エントロピーのリセットトークンを発行する。
// 返り値はユーザーに渡す平文トークン、サーバー側に保存するSHA-256ハッシュ、
// 明示的な期限タイムスタンプ（署名自体の期限と冗長だが、DB側でも期限判定
// できるようにする）。
func (s *Service) IssueReset(userID string) (plaintext, tokenHash string, expiresAt time.Time, err error) {
	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return "", "", time.Time{}, fmt.Errorf("failed to generate reset nonce: %w", err)
	}

	now := s.now()
	expiresAt = now.Add(ResetTTL)

	claims := &resetClaims{
		UserID: userID,
		Nonce:  hex.EncodeToString(nonce),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	plaintext, err = token.SignedString(s.secret)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("failed to sign reset token: %w", err)
	}

	return plaintext, s.HashReset(plaintext), expiresAt, nil
}

// HashReset は提示された平文トークンの保存・照合用ハッシュを計算する。
func (s *Service) HashReset(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
