package model

import "time"

// PasswordResetEntry はパスワードリセットトークンのサーバー側記録を表す。
// ユーザーごとに高々1件（新規リクエストは既存エントリを上書きする）。
// トークン本体は保存せず、SHA-256ハッシュのみを保持する。
type PasswordResetEntry struct {
	UserID    string
	TokenHash string // hex(sha256(署名済みトークン))
	ExpiresAt time.Time
	Used      bool
}

// Expired はエントリが期限切れかどうかを返す。
func (e *PasswordResetEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}
