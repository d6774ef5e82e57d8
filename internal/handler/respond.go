// Package handler はREST APIのHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/voteman/internal/middleware"
	"github.com/hitoshi/voteman/internal/model"
)

// validate はDTOの宣言的バリデーションに使う共有インスタンス。
var validate = validator.New()

// successEnvelope はAPI成功レスポンスの統一フォーマット。
type successEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Payload any    `json:"payload"`
}

// writeSuccessResponse は統一封筒形式で成功レスポンスを書き込む。
func writeSuccessResponse(w http.ResponseWriter, statusCode int, message string, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(successEnvelope{
		Status:  "success",
		Message: message,
		Payload: payload,
	})
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層のエラーをHTTPレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidation, model.ErrCodeConflict, model.ErrCodeAlreadyVoted,
		model.ErrCodeTokenNotFound, model.ErrCodeTokenAlreadyUsed, model.ErrCodeTokenExpired,
		model.ErrCodeWeakPassword, model.ErrCodePasswordUnchanged:
		return http.StatusBadRequest
	case model.ErrCodeUnauthenticated, model.ErrCodeInvalidToken, model.ErrCodeInvalidCreds:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case model.ErrCodeStorage, model.ErrCodeDependency:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// decodeAndValidate はJSONボディをDTOにデコードし、validateタグを検証する。
func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return model.NewValidationError("リクエストボディを解釈できません。")
	}
	if err := validate.Struct(dst); err != nil {
		return model.NewValidationError("入力値が要件を満たしていません。")
	}
	return nil
}

// authenticatedUserID はコンテキストから認証済みユーザーIDを取り出す。
// 認証ミドルウェア配下のルートでのみ呼ぶこと。
func authenticatedUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
		return "", false
	}
	return userID, true
}
