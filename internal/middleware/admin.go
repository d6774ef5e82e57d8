package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/voteman/internal/model"
)

// UserFinder はユーザーの検索に必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// NewAdminMiddleware は認証済みユーザーが管理者であることを要求するミドルウェアを返す。
// 認証ミドルウェアの後に配置する。管理者以外には403 Forbiddenを返す。
func NewAdminMiddleware(users UserFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := UserIDFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			user, err := users.FindByID(r.Context(), userID)
			if err != nil {
				slog.Error("failed to find user for admin check",
					slog.String("user_id", userID),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if user == nil || !user.IsAdmin() {
				WriteErrorResponse(w, http.StatusForbidden,
					model.NewForbiddenError("この操作には管理者権限が必要です。"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
