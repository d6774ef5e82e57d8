package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// クライアントに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, conflict, vote, token, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeUnauthenticated   = "UNAUTHENTICATED"
	ErrCodeInvalidToken      = "INVALID_TOKEN"
	ErrCodeInvalidCreds      = "INVALID_CREDENTIALS"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeAlreadyVoted      = "ALREADY_VOTED"
	ErrCodeTokenNotFound     = "TOKEN_NOT_FOUND"
	ErrCodeTokenAlreadyUsed  = "TOKEN_ALREADY_USED"
	ErrCodeTokenExpired      = "TOKEN_EXPIRED"
	ErrCodeWeakPassword      = "WEAK_PASSWORD"
	ErrCodePasswordUnchanged = "PASSWORD_UNCHANGED"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeStorage           = "STORAGE_ERROR"
	ErrCodeDependency        = "DEPENDENCY_FAILURE"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// NewValidationError は入力値不正エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewConflictError は一意性違反エラーを生成する。
func NewConflictError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeConflict,
		Message:  message,
		Category: "conflict",
		Action:   "登録済みの情報と重複していないか確認してください。",
	}
}

// NewUnauthenticatedError は未認証エラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "ログインしていません。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidTokenError はセッショントークンの検証失敗エラーを生成する。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "セッショントークンが無効です。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
// 「ユーザーが存在しない」と「パスワードが違う」は区別せず同一のエラーを返す。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCreds,
		Message:  "国民ID番号またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewForbiddenError は権限エラーを生成する。
func NewForbiddenError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  message,
		Category: "auth",
		Action:   "この操作を行う権限がありません。",
	}
}

// NewNotFoundError は対象未検出エラーを生成する。
func NewNotFoundError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  message,
		Category: "validation",
		Action:   "指定したIDを確認してください。",
	}
}

// NewAlreadyVotedError は二重投票エラーを生成する。
func NewAlreadyVotedError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyVoted,
		Message:  "すでに投票済みです。",
		Category: "vote",
		Action:   "投票は1人1回までです。",
	}
}

// NewTokenNotFoundError はリセットトークン未検出エラーを生成する。
func NewTokenNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenNotFound,
		Message:  "無効なトークンです。新しいパスワードリセットを要求してください。",
		Category: "token",
		Action:   "パスワードリセットを再度リクエストしてください。",
	}
}

// NewTokenAlreadyUsedError はリセットトークン再利用エラーを生成する。
func NewTokenAlreadyUsedError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenAlreadyUsed,
		Message:  "このトークンはすでに使用されています。",
		Category: "token",
		Action:   "パスワードリセットを再度リクエストしてください。",
	}
}

// NewTokenExpiredError はリセットトークン期限切れエラーを生成する。
func NewTokenExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenExpired,
		Message:  "このトークンは有効期限が切れています。",
		Category: "token",
		Action:   "パスワードリセットを再度リクエストしてください。",
	}
}

// NewWeakPasswordError はパスワード複雑性要件違反エラーを生成する。
func NewWeakPasswordError() *APIError {
	return &APIError{
		Code:     ErrCodeWeakPassword,
		Message:  "パスワードは8文字以上で、大文字・小文字・数字・記号をそれぞれ1文字以上含む必要があります。",
		Category: "validation",
		Action:   "要件を満たすパスワードを設定してください。",
	}
}

// NewPasswordUnchangedError は現在と同一のパスワードへの変更エラーを生成する。
func NewPasswordUnchangedError() *APIError {
	return &APIError{
		Code:     ErrCodePasswordUnchanged,
		Message:  "新しいパスワードは現在のパスワードと同じにできません。",
		Category: "validation",
		Action:   "別のパスワードを設定してください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "パスワードリセットのリクエストが多すぎます。10分後に再度お試しください。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewStorageError はオブジェクトストレージ操作失敗エラーを生成する。
func NewStorageError() *APIError {
	return &APIError{
		Code:     ErrCodeStorage,
		Message:  "プロフィール画像の保存処理に失敗しました。更新は中断されました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewDependencyError はメール・SMSなど外部サービスの失敗エラーを生成する。
func NewDependencyError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeDependency,
		Message:  message,
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInternalError は予期しない内部エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
