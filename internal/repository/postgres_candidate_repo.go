package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/voteman/internal/model"
)

// PostgresCandidateRepo はPostgreSQLを使用した立候補者リポジトリ。
type PostgresCandidateRepo struct {
	db *sql.DB
}

// NewPostgresCandidateRepo はPostgresCandidateRepoを生成する。
func NewPostgresCandidateRepo(db *sql.DB) *PostgresCandidateRepo {
	return &PostgresCandidateRepo{db: db}
}

const candidateColumns = `id, name, party, age, vote_count, created_by, created_at, updated_at`

// scanCandidate は1行をmodel.Candidateに読み込む。
func scanCandidate(row interface{ Scan(...any) error }) (*model.Candidate, error) {
	c := &model.Candidate{}
	var createdBy sql.NullString
	err := row.Scan(
		&c.ID, &c.Name, &c.Party, &c.Age, &c.VoteCount,
		&createdBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.CreatedBy = createdBy.String
	return c, nil
}

// Create は立候補者を作成する。(name, party)の一意制約違反はCONFLICTとして返す。
func (r *PostgresCandidateRepo) Create(ctx context.Context, candidate *model.Candidate) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO candidates (id, name, party, age, vote_count, created_by,
		 created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		candidate.ID, candidate.Name, candidate.Party, candidate.Age,
		candidate.VoteCount, nullIfEmpty(candidate.CreatedBy),
		candidate.CreatedAt, candidate.UpdatedAt,
	)
	if err != nil {
		if conflictErr := asConflict(err); conflictErr != nil {
			return conflictErr
		}
		return fmt.Errorf("failed to insert candidate: %w", err)
	}
	return nil
}

// FindByID は指定IDの立候補者を取得する。見つからない場合はnilを返す。
func (r *PostgresCandidateRepo) FindByID(ctx context.Context, id string) (*model.Candidate, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE id = $1`, id)

	candidate, err := scanCandidate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find candidate by ID: %w", err)
	}
	return candidate, nil
}

// FindByNameAndParty は(name, party)の組で立候補者を検索する。見つからない場合はnilを返す。
func (r *PostgresCandidateRepo) FindByNameAndParty(ctx context.Context, name, party string) (*model.Candidate, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE name = $1 AND party = $2`,
		name, party)

	candidate, err := scanCandidate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find candidate by name and party: %w", err)
	}
	return candidate, nil
}

// Update はname・party・ageを更新する。vote_countはこのパスでは変更しない。
func (r *PostgresCandidateRepo) Update(ctx context.Context, candidate *model.Candidate) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE candidates
		 SET name = $1, party = $2, age = $3, updated_at = now()
		 WHERE id = $4`,
		candidate.Name, candidate.Party, candidate.Age, candidate.ID,
	)
	if err != nil {
		if conflictErr := asConflict(err); conflictErr != nil {
			return conflictErr
		}
		return fmt.Errorf("failed to update candidate: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewNotFoundError("立候補者が見つかりません。")
	}
	return nil
}

// DeleteByID は指定IDの立候補者を削除する。見つからない場合はNOT_FOUNDを返す。
func (r *PostgresCandidateRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM candidates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete candidate: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewNotFoundError("立候補者が見つかりません。")
	}
	return nil
}

// List は全立候補者を返す。
func (r *PostgresCandidateRepo) List(ctx context.Context) ([]*model.Candidate, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	defer rows.Close()

	var candidates []*model.Candidate
	for rows.Next() {
		candidate, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, candidate)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate candidates: %w", err)
	}
	return candidates, nil
}

// Tally は(party, vote_count)を得票数の降順で返す。
func (r *PostgresCandidateRepo) Tally(ctx context.Context) ([]model.TallyEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT party, vote_count FROM candidates ORDER BY vote_count DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tally: %w", err)
	}
	defer rows.Close()

	var entries []model.TallyEntry
	for rows.Next() {
		var entry model.TallyEntry
		if err := rows.Scan(&entry.Party, &entry.VoteCount); err != nil {
			return nil, fmt.Errorf("failed to scan tally entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tally entries: %w", err)
	}
	return entries, nil
}

// compile-time interface check
var _ CandidateRepository = (*PostgresCandidateRepo)(nil)
