package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/voteman/internal/candidate"
	"github.com/hitoshi/voteman/internal/model"
)

// CandidateServiceInterface は立候補者ハンドラーが必要とするサービスインターフェース。
type CandidateServiceInterface interface {
	Add(ctx context.Context, adminID, name, party string, age int) (*model.Candidate, error)
	Update(ctx context.Context, id string, patch candidate.Patch) (*model.Candidate, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]model.CandidateSummary, error)
}

// VoteServiceInterface は投票ハンドラーが必要とするサービスインターフェース。
type VoteServiceInterface interface {
	Cast(ctx context.Context, voterID, candidateID string) error
	Tally(ctx context.Context) ([]model.TallyEntry, error)
}

// CandidateHandler は立候補者管理と投票のHTTPハンドラー。
type CandidateHandler struct {
	candidates CandidateServiceInterface
	votes      VoteServiceInterface
}

// NewCandidateHandler はCandidateHandlerを生成する。
func NewCandidateHandler(candidates CandidateServiceInterface, votes VoteServiceInterface) *CandidateHandler {
	return &CandidateHandler{
		candidates: candidates,
		votes:      votes,
	}
}

// candidateResponse は立候補者の公開用の射影。
type candidateResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Party     string `json:"party"`
	Age       int    `json:"age"`
	VoteCount int    `json:"voteCount"`
}

func toCandidateResponse(c *model.Candidate) candidateResponse {
	return candidateResponse{
		ID:        c.ID,
		Name:      c.Name,
		Party:     c.Party,
		Age:       c.Age,
		VoteCount: c.VoteCount,
	}
}

// addCandidateRequest は立候補者登録のリクエストDTO。
type addCandidateRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Party string `json:"party" validate:"required,max=100"`
	Age   int    `json:"age" validate:"required,gte=25,lte=75"`
}

// Add は立候補者を登録する。管理者専用。
// POST /candidate
func (h *CandidateHandler) Add(w http.ResponseWriter, r *http.Request) {
	adminID, ok := authenticatedUserID(w, r)
	if !ok {
		return
	}

	var req addCandidateRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	created, err := h.candidates.Add(r.Context(), adminID, req.Name, req.Party, req.Age)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccessResponse(w, http.StatusCreated, "立候補者を登録しました。", toCandidateResponse(created))
}

// restrictedCandidateFields は立候補者更新で変更を許可しないフィールド。
var restrictedCandidateFields = []string{"votes", "voteCount", "vote_count"}

// updateCandidateRequest は立候補者更新のリクエストDTO。nilのフィールドは変更しない。
type updateCandidateRequest struct {
	Name  *string `json:"name" validate:"omitempty,max=100"`
	Party *string `json:"party" validate:"omitempty,max=100"`
	Age   *int    `json:"age" validate:"omitempty,gte=25,lte=75"`
}

// Update は立候補者の名前・政党・年齢を更新する。
// PUT /candidate/update-candidate/{candidateID}
// votes・voteCountを含むリクエストは403で拒否する。
func (h *CandidateHandler) Update(w http.ResponseWriter, r *http.Request) {
	candidateID := chi.URLParam(r, "candidateID")

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディを読み取れません。"))
		return
	}

	// 得票数の改竄チェックを永続化より先に行う
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディを解釈できません。"))
		return
	}
	for _, field := range restrictedCandidateFields {
		if _, found := raw[field]; found {
			writeAPIErrorResponse(w, http.StatusForbidden,
				model.NewForbiddenError("このフィールドは更新できません: "+field))
			return
		}
	}

	var req updateCandidateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディを解釈できません。"))
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("入力値が要件を満たしていません。"))
		return
	}

	updated, err := h.candidates.Update(r.Context(), candidateID, candidate.Patch{
		Name:  req.Name,
		Party: req.Party,
		Age:   req.Age,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccessResponse(w, http.StatusOK, "立候補者を更新しました。", toCandidateResponse(updated))
}

// Delete は立候補者を削除する。管理者専用。
// DELETE /candidate/delete-candidate/{candidateID}
func (h *CandidateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	candidateID := chi.URLParam(r, "candidateID")

	if err := h.candidates.Delete(r.Context(), candidateID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccessResponse(w, http.StatusOK, "立候補者を削除しました。", nil)
}

// List は立候補者の一覧（名前と政党）を返す。
// GET /candidate
func (h *CandidateHandler) List(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.candidates.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccessResponse(w, http.StatusOK, "立候補者の一覧を取得しました。", summaries)
}

// Vote は認証済みユーザーの投票を記録する。
// GET /candidate/vote/{candidateID}
func (h *CandidateHandler) Vote(w http.ResponseWriter, r *http.Request) {
	voterID, ok := authenticatedUserID(w, r)
	if !ok {
		return
	}
	candidateID := chi.URLParam(r, "candidateID")

	if err := h.votes.Cast(r.Context(), voterID, candidateID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccessResponse(w, http.StatusOK, "投票を受け付けました。", nil)
}

// VoteCount は政党ごとの得票数を降順で返す。
// GET /candidate/vote-count
func (h *CandidateHandler) VoteCount(w http.ResponseWriter, r *http.Request) {
	entries, err := h.votes.Tally(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccessResponse(w, http.StatusOK, "得票数を取得しました。", entries)
}
