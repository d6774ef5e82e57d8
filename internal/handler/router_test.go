package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/voteman/internal/metrics"
	"github.com/hitoshi/voteman/internal/middleware"
	"github.com/hitoshi/voteman/internal/model"
	"github.com/hitoshi/voteman/internal/token"
)

type stubVersionFinder struct {
	version int
}

func (s *stubVersionFinder) TokenVersion(_ context.Context, _ string) (int, error) {
	return s.version, nil
}

type stubUserFinder struct {
	user *model.User
}

func (s *stubUserFinder) FindByID(_ context.Context, _ string) (*model.User, error) {
	return s.user, nil
}

type stubPinger struct {
	err error
}

func (s *stubPinger) PingContext(_ context.Context) error {
	return s.err
}

func newTestRouter(t *testing.T, tokens *token.Service, finder *stubUserFinder) http.Handler {
	t.Helper()

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		Logger:             slog.New(slog.NewJSONHandler(io.Discard, nil)),
		SessionVerifier:    tokens,
		TokenVersionFinder: &stubVersionFinder{version: 0},
		UserFinder:         finder,
		RateLimiter:        rl,
		Metrics:            collector,
		UserService: &mockUserService{
			profileFn: func(_ context.Context, userID string) (*model.User, error) {
				return &model.User{ID: userID, Name: "Taro"}, nil
			},
		},
		AuthService: &mockAuthService{},
		CandidateService: &mockCandidateService{
			listFn: func(_ context.Context) ([]model.CandidateSummary, error) {
				return nil, nil
			},
			addFn: func(_ context.Context, adminID, name, party string, age int) (*model.Candidate, error) {
				return &model.Candidate{ID: "c-1", Name: name, Party: party, Age: age}, nil
			},
		},
		VoteService: &mockVoteService{},
		DB:          &stubPinger{},
		Gatherer:    reg,
	})
}

func sessionCookie(t *testing.T, tokens *token.Service, userID string) *http.Cookie {
	t.Helper()
	tokenString, err := tokens.IssueSession(userID, 0)
	if err != nil {
		t.Fatalf("failed to issue session: %v", err)
	}
	return &http.Cookie{Name: token.SessionCookieName, Value: tokenString}
}

// TestRouter_ProfileRequiresAuth は未認証の/user/profileが401になることを検証する。
func TestRouter_ProfileRequiresAuth(t *testing.T) {
	tokens := token.NewService("test-secret")
	router := newTestRouter(t, tokens, &stubUserFinder{})

	req := httptest.NewRequest(http.MethodGet, "/user/profile", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

// TestRouter_ProfileWithSession は有効なCookieで/user/profileが200になることを検証する。
func TestRouter_ProfileWithSession(t *testing.T) {
	tokens := token.NewService("test-secret")
	router := newTestRouter(t, tokens, &stubUserFinder{})

	req := httptest.NewRequest(http.MethodGet, "/user/profile", nil)
	req.AddCookie(sessionCookie(t, tokens, "user-1"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
}

// TestRouter_ProfileRejectsQueryParams はクエリパラメータ付きの/user/profileが
// 400になることを検証する。
func TestRouter_ProfileRejectsQueryParams(t *testing.T) {
	tokens := token.NewService("test-secret")
	router := newTestRouter(t, tokens, &stubUserFinder{})

	req := httptest.NewRequest(http.MethodGet, "/user/profile?admin=true", nil)
	req.AddCookie(sessionCookie(t, tokens, "user-1"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// TestRouter_AddCandidateRequiresAdmin は一般ユーザーの立候補者登録が
// 403になることを検証する。
func TestRouter_AddCandidateRequiresAdmin(t *testing.T) {
	tokens := token.NewService("test-secret")
	router := newTestRouter(t, tokens,
		&stubUserFinder{user: &model.User{ID: "voter-1", Role: model.RoleVoter}})

	req := httptest.NewRequest(http.MethodPost, "/candidate", nil)
	req.AddCookie(sessionCookie(t, tokens, "voter-1"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

// TestRouter_Health はヘルスチェックが認証なしで200になることを検証する。
func TestRouter_Health(t *testing.T) {
	tokens := token.NewService("test-secret")
	router := newTestRouter(t, tokens, &stubUserFinder{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

// TestRouter_Metrics はPrometheusエンドポイントが認証なしで200になることを検証する。
func TestRouter_Metrics(t *testing.T) {
	tokens := token.NewService("test-secret")
	router := newTestRouter(t, tokens, &stubUserFinder{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}
