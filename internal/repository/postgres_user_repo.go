package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/voteman/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, national_id, email, mobile, name, age, address,
	profile_picture_url, password_hash, role, has_voted, token_version,
	created_at, updated_at`

// scanUser は1行をmodel.Userに読み込む。
func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	user := &model.User{}
	var pictureURL sql.NullString
	err := row.Scan(
		&user.ID, &user.NationalID, &user.Email, &user.Mobile, &user.Name,
		&user.Age, &user.Address, &pictureURL, &user.PasswordHash, &user.Role,
		&user.HasVoted, &user.TokenVersion, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.ProfilePictureURL = pictureURL.String
	return user, nil
}

// Create はユーザーを作成する。
// 一意制約違反（national_id, email, mobile, 管理者の重複）はCONFLICTとして返す。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, national_id, email, mobile, name, age, address,
		 profile_picture_url, password_hash, role, has_voted, token_version,
		 created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		user.ID, user.NationalID, user.Email, user.Mobile, user.Name, user.Age,
		user.Address, nullIfEmpty(user.ProfilePictureURL), user.PasswordHash,
		user.Role, user.HasVoted, user.TokenVersion, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if conflictErr := asConflict(err); conflictErr != nil {
			return conflictErr
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByNationalID は国民ID番号でユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByNationalID(ctx context.Context, nationalID string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE national_id = $1`, nationalID)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by national ID: %w", err)
	}
	return user, nil
}

// FindByIdentity はnational_id・email・mobileのいずれかが一致するユーザーを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByIdentity(ctx context.Context, nationalID, email, mobile string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE national_id = $1 OR email = $2 OR mobile = $3
		 LIMIT 1`,
		nationalID, email, mobile)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by identity: %w", err)
	}
	return user, nil
}

// FindByEmailOrMobile はemailまたはmobileが一致する、excludeUserID以外の
// ユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmailOrMobile(ctx context.Context, email, mobile, excludeUserID string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE (email = $1 OR mobile = $2) AND id <> $3
		 LIMIT 1`,
		email, mobile, excludeUserID)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email or mobile: %w", err)
	}
	return user, nil
}

// AdminExists は管理者が既に存在するかどうかを返す。
func (r *PostgresUserRepo) AdminExists(ctx context.Context) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE role = 'admin')`,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check admin existence: %w", err)
	}
	return exists, nil
}

// UpdateProfile はプロフィール項目を更新する。
// password_hash・has_voted・national_id・roleはこのパスでは変更しない。
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, user *model.User) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET name = $1, age = $2, address = $3, email = $4, mobile = $5,
		     profile_picture_url = $6, updated_at = now()
		 WHERE id = $7`,
		user.Name, user.Age, user.Address, user.Email, user.Mobile,
		nullIfEmpty(user.ProfilePictureURL), user.ID,
	)
	if err != nil {
		if conflictErr := asConflict(err); conflictErr != nil {
			return conflictErr
		}
		return fmt.Errorf("failed to update user profile: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewNotFoundError("ユーザーが見つかりません。")
	}
	return nil
}

// UpdatePassword はパスワードハッシュを置き換え、token_versionを1増やす。
func (r *PostgresUserRepo) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET password_hash = $1, token_version = token_version + 1, updated_at = now()
		 WHERE id = $2`,
		passwordHash, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewNotFoundError("ユーザーが見つかりません。")
	}
	return nil
}

// BumpTokenVersion はtoken_versionを1増やす。
func (r *PostgresUserRepo) BumpTokenVersion(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET token_version = token_version + 1, updated_at = now()
		 WHERE id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to bump token version: %w", err)
	}
	return nil
}

// TokenVersion は現在のtoken_versionを返す。
func (r *PostgresUserRepo) TokenVersion(ctx context.Context, userID string) (int, error) {
	var version int
	err := r.db.QueryRowContext(ctx,
		`SELECT token_version FROM users WHERE id = $1`, userID,
	).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, model.NewUnauthenticatedError()
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get token version: %w", err)
	}
	return version, nil
}

// asConflict は一意制約違反をAPIError(CONFLICT)に変換する。該当しない場合はnil。
func asConflict(err error) *model.APIError {
	pqErr, ok := err.(*pq.Error)
	if !ok || pqErr.Code != "23505" {
		return nil
	}
	switch pqErr.Constraint {
	case "users_single_admin_idx":
		return model.NewConflictError("管理者はすでに存在します。")
	case "candidates_name_party_key":
		return model.NewConflictError("同名・同政党の立候補者がすでに存在します。")
	case "votes_voter_id_key":
		// RecordVote側でALREADY_VOTEDに変換するためここには通常到達しない
		return model.NewConflictError("すでに投票済みです。")
	default:
		return model.NewConflictError("同じ国民ID番号・メールアドレス・携帯番号のユーザーがすでに存在します。")
	}
}

// nullIfEmpty は空文字をNULLとして保存するためのヘルパー。
func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
