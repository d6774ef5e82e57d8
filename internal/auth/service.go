// Package auth はログイン・ログアウトのセッション管理を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/voteman/internal/model"
	"github.com/hitoshi/voteman/internal/repository"
)

// CredentialVerifier は資格情報の検証インターフェース。
// user.Serviceの部分集合として定義する。
type CredentialVerifier interface {
	VerifyCredentials(ctx context.Context, nationalID, password string) (*model.User, error)
}

// SessionIssuer はセッショントークンの発行インターフェース。
// token.Serviceの部分集合として定義する。
type SessionIssuer interface {
	IssueSession(userID string, tokenVersion int) (string, error)
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	credentials CredentialVerifier
	tokens      SessionIssuer
	users       repository.UserRepository
}

// NewService はServiceを生成する。
func NewService(credentials CredentialVerifier, tokens SessionIssuer, users repository.UserRepository) *Service {
	return &Service{
		credentials: credentials,
		tokens:      tokens,
		users:       users,
	}
}

// Login は国民ID番号とパスワードを検証し、セッショントークンを発行する。
// IDの存在有無とパスワード不一致は区別せず、同一のエラーを返す。
func (s *Service) Login(ctx context.Context, nationalID, password string) (*model.User, string, error) {
	user, err := s.credentials.VerifyCredentials(ctx, nationalID, password)
	if err != nil {
		return nil, "", err
	}

	tokenString, err := s.tokens.IssueSession(user.ID, user.TokenVersion)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue session token: %w", err)
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
	)

	return user, tokenString, nil
}

// Logout はユーザーのトークンバージョンを進め、発行済みの全セッション
// トークンをサーバー側で失効させる。
func (s *Service) Logout(ctx context.Context, userID string) error {
	if err := s.users.BumpTokenVersion(ctx, userID); err != nil {
		return fmt.Errorf("failed to bump token version: %w", err)
	}

	slog.Info("user logged out",
		slog.String("user_id", userID),
	)

	return nil
}
