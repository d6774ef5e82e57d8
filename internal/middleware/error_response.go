package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/voteman/internal/model"
)

// errorEnvelope はAPIエラーレスポンスの統一フォーマット。
// 成功レスポンスと同じ封筒形式で、payloadに原因カテゴリと対処方法を含む。
type errorEnvelope struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Payload errorPayload `json:"payload"`
}

type errorPayload struct {
	Code     string `json:"code"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(errorEnvelope{
		Status:  "error",
		Message: apiErr.Message,
		Payload: errorPayload{
			Code:     apiErr.Code,
			Category: apiErr.Category,
			Action:   apiErr.Action,
		},
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
