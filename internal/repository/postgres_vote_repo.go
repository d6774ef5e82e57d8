package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/voteman/internal/model"
)

// PostgresVoteRepo はPostgreSQLを使用した投票台帳リポジトリ。
type PostgresVoteRepo struct {
	db *sql.DB
}

// NewPostgresVoteRepo はPostgresVoteRepoを生成する。
func NewPostgresVoteRepo(db *sql.DB) *PostgresVoteRepo {
	return &PostgresVoteRepo{db: db}
}

// RecordVote は投票を記録する。
// has_votedのfalse→true遷移・votesレコードの追記・vote_countの
// インクリメントを単一トランザクションで行い、3つがすべて成功するか
// すべて失敗するかのどちらかになる。vote_countとvotesレコード数の
// 一致はこのトランザクション境界が保証する。
func (r *PostgresVoteRepo) RecordVote(ctx context.Context, vote *model.Vote) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// has_voted = FALSE のガード付き遷移。0行更新は並行リクエストに
	// 先を越されたことを意味する（roleの変更とユーザー削除は起こらないため）。
	result, err := tx.ExecContext(ctx,
		`UPDATE users
		 SET has_voted = TRUE, updated_at = now()
		 WHERE id = $1 AND has_voted = FALSE AND role = 'voter'`,
		vote.VoterID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark voter as voted: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewAlreadyVotedError()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO votes (id, candidate_id, voter_id, voted_at)
		 VALUES ($1, $2, $3, $4)`,
		vote.ID, vote.CandidateID, vote.VoterID, vote.VotedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return model.NewAlreadyVotedError()
		}
		return fmt.Errorf("failed to insert vote: %w", err)
	}

	result, err = tx.ExecContext(ctx,
		`UPDATE candidates
		 SET vote_count = vote_count + 1, updated_at = now()
		 WHERE id = $1`,
		vote.CandidateID,
	)
	if err != nil {
		return fmt.Errorf("failed to increment vote count: %w", err)
	}
	rowsAffected, err = result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewNotFoundError("立候補者が見つかりません。")
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// compile-time interface check
var _ VoteRepository = (*PostgresVoteRepo)(nil)
