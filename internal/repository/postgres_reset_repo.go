package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/voteman/internal/model"
)

// PostgresResetRepo はPostgreSQLを使用したパスワードリセットリポジトリ。
type PostgresResetRepo struct {
	db *sql.DB
}

// NewPostgresResetRepo はPostgresResetRepoを生成する。
func NewPostgresResetRepo(db *sql.DB) *PostgresResetRepo {
	return &PostgresResetRepo{db: db}
}

// Upsert はユーザーのリセットエントリを作成または上書きする。
// 既存の未消費トークンは新しいエントリで無効になる。
func (r *PostgresResetRepo) Upsert(ctx context.Context, entry *model.PasswordResetEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO password_resets (user_id, token_hash, expires_at, used)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id)
		 DO UPDATE SET token_hash = EXCLUDED.token_hash,
		               expires_at = EXCLUDED.expires_at,
		               used = EXCLUDED.used`,
		entry.UserID, entry.TokenHash, entry.ExpiresAt, entry.Used,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert password reset entry: %w", err)
	}
	return nil
}

// FindByTokenHash はトークンハッシュでエントリを検索する。見つからない場合はnilを返す。
func (r *PostgresResetRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.PasswordResetEntry, error) {
	entry := &model.PasswordResetEntry{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, token_hash, expires_at, used
		 FROM password_resets
		 WHERE token_hash = $1`,
		tokenHash,
	).Scan(&entry.UserID, &entry.TokenHash, &entry.ExpiresAt, &entry.Used)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find password reset entry: %w", err)
	}
	return entry, nil
}

// MarkUsed はエントリを消費済みにする。
func (r *PostgresResetRepo) MarkUsed(ctx context.Context, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE password_resets SET used = TRUE WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark password reset entry as used: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewTokenNotFoundError()
	}
	return nil
}

// compile-time interface check
var _ PasswordResetRepository = (*PostgresResetRepo)(nil)
