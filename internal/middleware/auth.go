// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/voteman/internal/model"
	"github.com/hitoshi/voteman/internal/token"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
var userIDContextKey = contextKey("user_id")

// SessionVerifier はセッショントークンの検証に必要なインターフェース。
// token.Serviceの部分集合として定義する。
type SessionVerifier interface {
	VerifySession(tokenString string) (userID string, tokenVersion int, err error)
}

// TokenVersionFinder はユーザーの現在のトークンバージョンを取得するインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type TokenVersionFinder interface {
	TokenVersion(ctx context.Context, userID string) (int, error)
}

// NewAuthMiddleware はHTTP Only Cookieからセッショントークンを読み取り、
// 署名・有効期限・トークンバージョンを検証するミドルウェアを返す。
// ログアウトやパスワード変更でバージョンが進んだ古いトークンは拒否する。
// 認証済みユーザーIDをリクエストコンテキストに注入する。
func NewAuthMiddleware(verifier SessionVerifier, versions TokenVersionFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Cookieからセッショントークンを取得
			cookie, err := r.Cookie(token.SessionCookieName)
			if err != nil || cookie.Value == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			// 2. トークンの署名と有効期限を検証
			userID, tokenVersion, err := verifier.VerifySession(cookie.Value)
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidTokenError())
				return
			}

			// 3. トークンバージョンの照合（サーバー側の失効判定）
			currentVersion, err := versions.TokenVersion(r.Context(), userID)
			if err != nil {
				slog.Error("failed to load token version",
					slog.String("user_id", userID),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if tokenVersion != currentVersion {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidTokenError())
				return
			}

			// 4. 認証済みユーザーIDをコンテキストに注入
			ctx := context.WithValue(r.Context(), userIDContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
