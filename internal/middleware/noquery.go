package middleware

import (
	"net/http"

	"github.com/hitoshi/voteman/internal/model"
)

// NewNoQueryParamsMiddleware はクエリパラメータを伴うリクエストを拒否する
// ミドルウェアを返す。対象ルートはボディとパスパラメータのみを受け付ける。
func NewNoQueryParamsMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.RawQuery != "" {
				WriteErrorResponse(w, http.StatusBadRequest,
					model.NewValidationError("クエリパラメータは使用できません。"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
