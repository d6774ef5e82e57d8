// Package candidate は立候補者管理のビジネスロジックを提供する。
package candidate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/hitoshi/voteman/internal/cache"
	"github.com/hitoshi/voteman/internal/model"
	"github.com/hitoshi/voteman/internal/repository"
)

// 立候補者の年齢要件
const (
	minCandidateAge = 25
	maxCandidateAge = 75
)

// MetricsRecorder は立候補者操作のメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordCacheHit(key string)
	RecordCacheMiss(key string)
}

// Service は立候補者に関するビジネスロジックを提供する。
type Service struct {
	candidates repository.CandidateRepository
	cache      cache.Store
	metrics    MetricsRecorder
	now        func() time.Time
}

// NewService はServiceを生成する。
func NewService(candidates repository.CandidateRepository, cacheStore cache.Store, metrics MetricsRecorder) *Service {
	return &Service{
		candidates: candidates,
		cache:      cacheStore,
		metrics:    metrics,
		now:        time.Now,
	}
}

// Add は立候補者を登録する。名前と政党は大文字に正規化して保存する。
// (name, party)の組の重複はCONFLICT、年齢要件違反はVALIDATION_ERRORを返す。
func (s *Service) Add(ctx context.Context, adminID, name, party string, age int) (*model.Candidate, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}
	party, err = normalizeName(party)
	if err != nil {
		return nil, err
	}
	if age < minCandidateAge || age > maxCandidateAge {
		return nil, model.NewValidationError(
			fmt.Sprintf("立候補者の年齢は%d歳から%d歳までです。", minCandidateAge, maxCandidateAge))
	}

	existing, err := s.candidates.FindByNameAndParty(ctx, name, party)
	if err != nil {
		return nil, fmt.Errorf("failed to check candidate conflict: %w", err)
	}
	if existing != nil {
		return nil, model.NewConflictError("同じ名前と政党の立候補者が既に登録されています。")
	}

	now := s.now()
	candidate := &model.Candidate{
		ID:        uuid.New().String(),
		Name:      name,
		Party:     party,
		Age:       age,
		CreatedBy: adminID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.candidates.Create(ctx, candidate); err != nil {
		return nil, err
	}

	s.invalidate(ctx)

	return candidate, nil
}

// Patch は立候補者更新の入力を表す。nilのフィールドは変更しない。
// vote_countはこのパスでは変更できない（ハンドラー層で事前に拒否される）。
type Patch struct {
	Name  *string
	Party *string
	Age   *int
}

// Update は立候補者の名前・政党・年齢を更新する。
func (s *Service) Update(ctx context.Context, id string, patch Patch) (*model.Candidate, error) {
	candidate, err := s.findByID(ctx, id)
	if err != nil {
		return nil, err
	}

	name := candidate.Name
	if patch.Name != nil {
		name, err = normalizeName(*patch.Name)
		if err != nil {
			return nil, err
		}
	}
	party := candidate.Party
	if patch.Party != nil {
		party, err = normalizeName(*patch.Party)
		if err != nil {
			return nil, err
		}
	}

	if name != candidate.Name || party != candidate.Party {
		conflicting, err := s.candidates.FindByNameAndParty(ctx, name, party)
		if err != nil {
			return nil, fmt.Errorf("failed to check candidate conflict: %w", err)
		}
		if conflicting != nil && conflicting.ID != candidate.ID {
			return nil, model.NewConflictError("同じ名前と政党の立候補者が既に登録されています。")
		}
	}

	if patch.Age != nil {
		if *patch.Age < minCandidateAge || *patch.Age > maxCandidateAge {
			return nil, model.NewValidationError(
				fmt.Sprintf("立候補者の年齢は%d歳から%d歳までです。", minCandidateAge, maxCandidateAge))
		}
		candidate.Age = *patch.Age
	}
	candidate.Name = name
	candidate.Party = party
	candidate.UpdatedAt = s.now()

	if err := s.candidates.Update(ctx, candidate); err != nil {
		return nil, err
	}

	s.invalidate(ctx)

	return candidate, nil
}

// Delete は立候補者を削除する。
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.NewNotFoundError("立候補者が見つかりません。")
	}

	if err := s.candidates.DeleteByID(ctx, id); err != nil {
		return err
	}

	s.invalidate(ctx)

	return nil
}

// List は立候補者の一覧（名前と政党の射影）を返す。
// キャッシュ（TTL 600秒）を経由する。
func (s *Service) List(ctx context.Context) ([]model.CandidateSummary, error) {
	if data, ok := s.cache.Get(ctx, cache.KeyCandidates); ok {
		var summaries []model.CandidateSummary
		if err := json.Unmarshal(data, &summaries); err == nil {
			s.metrics.RecordCacheHit(cache.KeyCandidates)
			return summaries, nil
		}
		s.cache.Del(ctx, cache.KeyCandidates)
	}
	s.metrics.RecordCacheMiss(cache.KeyCandidates)

	candidates, err := s.candidates.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}

	summaries := make([]model.CandidateSummary, 0, len(candidates))
	for _, c := range candidates {
		summaries = append(summaries, model.CandidateSummary{
			ID:    c.ID,
			Name:  c.Name,
			Party: c.Party,
		})
	}

	if data, err := json.Marshal(summaries); err == nil {
		s.cache.Set(ctx, cache.KeyCandidates, data)
	}

	return summaries, nil
}

// findByID はUUID形式の検証込みで立候補者を取得する。
func (s *Service) findByID(ctx context.Context, id string) (*model.Candidate, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewNotFoundError("立候補者が見つかりません。")
	}

	candidate, err := s.candidates.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find candidate: %w", err)
	}
	if candidate == nil {
		return nil, model.NewNotFoundError("立候補者が見つかりません。")
	}

	return candidate, nil
}

// invalidate は立候補者に依存するキャッシュエントリを破棄する。
func (s *Service) invalidate(ctx context.Context) {
	s.cache.Del(ctx, cache.KeyCandidates, cache.KeyVoteCount)
}

// normalizeName は名前・政党名を検証し、大文字に正規化する。
// 使用可能な文字は英字と空白のみ。
func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", model.NewValidationError("名前と政党は必須です。")
	}
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsSpace(r) {
			return "", model.NewValidationError("名前と政党に使用できるのは英字と空白のみです。")
		}
	}
	return strings.ToUpper(name), nil
}
