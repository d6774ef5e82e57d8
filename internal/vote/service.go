// Package vote は1人1票の投票台帳のビジネスロジックを提供する。
package vote

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/voteman/internal/cache"
	"github.com/hitoshi/voteman/internal/model"
	"github.com/hitoshi/voteman/internal/repository"
)

// MetricsRecorder は投票操作のメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordVoteCast()
	RecordCacheHit(key string)
	RecordCacheMiss(key string)
}

// Service は投票に関するビジネスロジックを提供する。
type Service struct {
	users      repository.UserRepository
	candidates repository.CandidateRepository
	votes      repository.VoteRepository
	cache      cache.Store
	metrics    MetricsRecorder
	now        func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	users repository.UserRepository,
	candidates repository.CandidateRepository,
	votes repository.VoteRepository,
	cacheStore cache.Store,
	metrics MetricsRecorder,
) *Service {
	return &Service{
		users:      users,
		candidates: candidates,
		votes:      votes,
		cache:      cacheStore,
		metrics:    metrics,
		now:        time.Now,
	}
}

// Cast は投票を記録する。
// 管理者は投票できない。投票済みユーザーの再投票はALREADY_VOTEDを返す。
// has_votedの遷移・votesへの追記・vote_countの加算は単一トランザクションで
// 行われ、同一ユーザーの並行リクエストでも1票しか記録されない。
func (s *Service) Cast(ctx context.Context, voterID, candidateID string) error {
	if _, err := uuid.Parse(candidateID); err != nil {
		return model.NewNotFoundError("立候補者が見つかりません。")
	}

	candidate, err := s.candidates.FindByID(ctx, candidateID)
	if err != nil {
		return fmt.Errorf("failed to find candidate: %w", err)
	}
	if candidate == nil {
		return model.NewNotFoundError("立候補者が見つかりません。")
	}

	voter, err := s.users.FindByID(ctx, voterID)
	if err != nil {
		return fmt.Errorf("failed to find voter: %w", err)
	}
	if voter == nil {
		return model.NewNotFoundError("ユーザーが見つかりません。")
	}
	if voter.IsAdmin() {
		return model.NewForbiddenError("管理者は投票できません。")
	}
	if voter.HasVoted {
		return model.NewAlreadyVotedError()
	}

	vote := &model.Vote{
		ID:          uuid.New().String(),
		CandidateID: candidateID,
		VoterID:     voterID,
		VotedAt:     s.now(),
	}
	if err := s.votes.RecordVote(ctx, vote); err != nil {
		return err
	}

	s.metrics.RecordVoteCast()
	slog.Info("vote cast",
		slog.String("voter_id", voterID),
		slog.String("candidate_id", candidateID),
	)

	s.cache.Del(ctx, cache.KeyCandidates, cache.KeyVoteCount, cache.UserKey(voterID))

	return nil
}

// Tally は政党ごとの得票数を降順で返す。キャッシュ（TTL 600秒）を経由する。
func (s *Service) Tally(ctx context.Context) ([]model.TallyEntry, error) {
	if data, ok := s.cache.Get(ctx, cache.KeyVoteCount); ok {
		var entries []model.TallyEntry
		if err := json.Unmarshal(data, &entries); err == nil {
			s.metrics.RecordCacheHit(cache.KeyVoteCount)
			return entries, nil
		}
		s.cache.Del(ctx, cache.KeyVoteCount)
	}
	s.metrics.RecordCacheMiss(cache.KeyVoteCount)

	entries, err := s.candidates.Tally(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to tally votes: %w", err)
	}

	if data, err := json.Marshal(entries); err == nil {
		s.cache.Set(ctx, cache.KeyVoteCount, data)
	}

	return entries, nil
}
