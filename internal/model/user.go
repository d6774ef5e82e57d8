// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの役割を表す。
type Role string

const (
	// RoleVoter は一般の投票者を示す。
	RoleVoter Role = "voter"
	// RoleAdmin は管理者を示す。システム全体で同時に1人まで。
	RoleAdmin Role = "admin"
)

// User は有権者または管理者のアカウントを表す。
// NationalID・Email・Mobileはそれぞれシステム全体で一意。
type User struct {
	ID                string
	NationalID        string // 12桁の国民ID番号
	Email             string
	Mobile            string // E.164形式
	Name              string
	Age               int
	Address           string
	ProfilePictureURL string // オブジェクトストレージ上のURL。未設定の場合は空文字
	PasswordHash      string // bcryptハッシュ。平文は保持しない
	Role              Role
	HasVoted          bool // false→trueへの遷移は生涯一度のみ
	TokenVersion      int  // 発行済みセッショントークンの失効世代カウンタ
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsAdmin はユーザーが管理者かどうかを返す。
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
