// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/voteman/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。
	// national_id・email・mobileの一意制約違反、および管理者の
	// 重複登録はAPIError(CONFLICT)として返す。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByNationalID は国民ID番号でユーザーを検索する。見つからない場合はnilを返す。
	FindByNationalID(ctx context.Context, nationalID string) (*model.User, error)

	// FindByIdentity はnational_id・email・mobileのいずれかが一致する
	// ユーザーを検索する。登録時の重複事前チェック用。見つからない場合はnilを返す。
	FindByIdentity(ctx context.Context, nationalID, email, mobile string) (*model.User, error)

	// FindByEmailOrMobile はemailまたはmobileが一致する、excludeUserID以外の
	// ユーザーを検索する。プロフィール更新時の重複チェック用。見つからない場合はnilを返す。
	FindByEmailOrMobile(ctx context.Context, email, mobile, excludeUserID string) (*model.User, error)

	// AdminExists は管理者が既に存在するかどうかを返す。
	AdminExists(ctx context.Context) (bool, error)

	// UpdateProfile はプロフィール項目（name, age, address, email, mobile,
	// profile_picture_url）を更新する。password_hash・has_voted・national_id・roleは
	// このパスでは変更しない。
	UpdateProfile(ctx context.Context, user *model.User) error

	// UpdatePassword はパスワードハッシュを置き換え、token_versionを1増やす。
	// 発行済みの全セッショントークンはこれにより失効する。
	UpdatePassword(ctx context.Context, userID, passwordHash string) error

	// BumpTokenVersion はtoken_versionを1増やす。ログアウト時の
	// サーバー側セッション失効に使用する。
	BumpTokenVersion(ctx context.Context, userID string) error

	// TokenVersion は現在のtoken_versionを返す。
	// ユーザーが存在しない場合はAPIError(UNAUTHENTICATED)を返す。
	TokenVersion(ctx context.Context, userID string) (int, error)
}

// CandidateRepository は立候補者データの永続化インターフェース。
type CandidateRepository interface {
	// Create は立候補者を作成する。(name, party)の一意制約違反は
	// APIError(CONFLICT)として返す。
	Create(ctx context.Context, candidate *model.Candidate) error

	// FindByID は指定IDの立候補者を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Candidate, error)

	// FindByNameAndParty は(name, party)の組で立候補者を検索する。
	// 見つからない場合はnilを返す。
	FindByNameAndParty(ctx context.Context, name, party string) (*model.Candidate, error)

	// Update はname・party・ageを更新する。vote_countはこのパスでは変更しない。
	Update(ctx context.Context, candidate *model.Candidate) error

	// DeleteByID は指定IDの立候補者を削除する。
	// 見つからない場合はAPIError(NOT_FOUND)を返す。
	DeleteByID(ctx context.Context, id string) error

	// List は全立候補者を返す。
	List(ctx context.Context) ([]*model.Candidate, error)

	// Tally は(party, vote_count)を得票数の降順で返す。
	Tally(ctx context.Context) ([]model.TallyEntry, error)
}

// VoteRepository は投票台帳の永続化インターフェース。
type VoteRepository interface {
	// RecordVote は投票を記録する。以下の3操作を単一トランザクションで行う:
	// has_votedのfalse→true遷移（WHERE has_voted = FALSEで競合防止）、
	// votesレコードの追記、candidatesのvote_countインクリメント。
	// 遷移が競合で失敗した場合はAPIError(ALREADY_VOTED)、
	// 立候補者が消えていた場合はAPIError(NOT_FOUND)を返す。
	RecordVote(ctx context.Context, vote *model.Vote) error
}

// PasswordResetRepository はパスワードリセットエントリの永続化インターフェース。
type PasswordResetRepository interface {
	// Upsert はユーザーのリセットエントリを作成または上書きする。
	// 同一ユーザーの未消費トークンは新規リクエストで無効になる。
	Upsert(ctx context.Context, entry *model.PasswordResetEntry) error

	// FindByTokenHash はトークンハッシュでエントリを検索する。見つからない場合はnilを返す。
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.PasswordResetEntry, error)

	// MarkUsed はエントリを消費済みにする。消費済みエントリは再利用できない。
	MarkUsed(ctx context.Context, userID string) error
}
