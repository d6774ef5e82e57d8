package user

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/voteman/internal/model"
)

type mockUserRepo struct {
	createFn              func(ctx context.Context, user *model.User) error
	findByIDFn            func(ctx context.Context, id string) (*model.User, error)
	findByNationalIDFn    func(ctx context.Context, nationalID string) (*model.User, error)
	findByIdentityFn      func(ctx context.Context, nationalID, email, mobile string) (*model.User, error)
	findByEmailOrMobileFn func(ctx context.Context, email, mobile, excludeUserID string) (*model.User, error)
	adminExistsFn         func(ctx context.Context) (bool, error)
	updateProfileFn       func(ctx context.Context, user *model.User) error
	updatePasswordFn      func(ctx context.Context, userID, passwordHash string) error
	bumpTokenVersionFn    func(ctx context.Context, userID string) error
	tokenVersionFn        func(ctx context.Context, userID string) (int, error)
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn == nil {
		return nil
	}
	return m.createFn(ctx, user)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn == nil {
		return nil, nil
	}
	return m.findByIDFn(ctx, id)
}

func (m *mockUserRepo) FindByNationalID(ctx context.Context, nationalID string) (*model.User, error) {
	if m.findByNationalIDFn == nil {
		return nil, nil
	}
	return m.findByNationalIDFn(ctx, nationalID)
}

func (m *mockUserRepo) FindByIdentity(ctx context.Context, nationalID, email, mobile string) (*model.User, error) {
	if m.findByIdentityFn == nil {
		return nil, nil
	}
	return m.findByIdentityFn(ctx, nationalID, email, mobile)
}

func (m *mockUserRepo) FindByEmailOrMobile(ctx context.Context, email, mobile, excludeUserID string) (*model.User, error) {
	if m.findByEmailOrMobileFn == nil {
		return nil, nil
	}
	return m.findByEmailOrMobileFn(ctx, email, mobile, excludeUserID)
}

func (m *mockUserRepo) AdminExists(ctx context.Context) (bool, error) {
	if m.adminExistsFn == nil {
		return false, nil
	}
	return m.adminExistsFn(ctx)
}

func (m *mockUserRepo) UpdateProfile(ctx context.Context, user *model.User) error {
	if m.updateProfileFn == nil {
		return nil
	}
	return m.updateProfileFn(ctx, user)
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	if m.updatePasswordFn == nil {
		return nil
	}
	return m.updatePasswordFn(ctx, userID, passwordHash)
}

func (m *mockUserRepo) BumpTokenVersion(ctx context.Context, userID string) error {
	if m.bumpTokenVersionFn == nil {
		return nil
	}
	return m.bumpTokenVersionFn(ctx, userID)
}

func (m *mockUserRepo) TokenVersion(ctx context.Context, userID string) (int, error) {
	if m.tokenVersionFn == nil {
		return 0, nil
	}
	return m.tokenVersionFn(ctx, userID)
}

type mockResetRepo struct {
	upsertFn          func(ctx context.Context, entry *model.PasswordResetEntry) error
	findByTokenHashFn func(ctx context.Context, tokenHash string) (*model.PasswordResetEntry, error)
	markUsedFn        func(ctx context.Context, userID string) error
}

func (m *mockResetRepo) Upsert(ctx context.Context, entry *model.PasswordResetEntry) error {
	if m.upsertFn == nil {
		return nil
	}
	return m.upsertFn(ctx, entry)
}

func (m *mockResetRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.PasswordResetEntry, error) {
	if m.findByTokenHashFn == nil {
		return nil, nil
	}
	return m.findByTokenHashFn(ctx, tokenHash)
}

func (m *mockResetRepo) MarkUsed(ctx context.Context, userID string) error {
	if m.markUsedFn == nil {
		return nil
	}
	return m.markUsedFn(ctx, userID)
}

type mockResetTokens struct {
	issueFn func(userID string) (string, string, time.Time, error)
	hashFn  func(plaintext string) string
}

func (m *mockResetTokens) IssueReset(userID string) (string, string, time.Time, error) {
	if m.issueFn == nil {
		return "plain", "hash", time.Now().Add(time.Hour), nil
	}
	return m.issueFn(userID)
}

func (m *mockResetTokens) HashReset(plaintext string) string {
	if m.hashFn == nil {
		return "hash-" + plaintext
	}
	return m.hashFn(plaintext)
}

// memStore はテスト用のインメモリキャッシュ。
type memStore struct {
	entries map[string][]byte
	deleted []string
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string][]byte)}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, bool) {
	data, ok := s.entries[key]
	return data, ok
}

func (s *memStore) Set(_ context.Context, key string, value []byte) {
	s.entries[key] = value
}

func (s *memStore) Del(_ context.Context, keys ...string) {
	for _, key := range keys {
		delete(s.entries, key)
		s.deleted = append(s.deleted, key)
	}
}

type mockObjectStore struct {
	putFn    func(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	deleteFn func(ctx context.Context, objectURL string) error
}

func (m *mockObjectStore) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	if m.putFn == nil {
		return "https://bucket.s3.example.com/" + key, nil
	}
	return m.putFn(ctx, key, body, contentType)
}

func (m *mockObjectStore) Delete(ctx context.Context, objectURL string) error {
	if m.deleteFn == nil {
		return nil
	}
	return m.deleteFn(ctx, objectURL)
}

type mockMailer struct {
	sendResetFn        func(to, name, resetURL string) error
	sendConfirmationFn func(to string) error
}

func (m *mockMailer) SendPasswordReset(to, name, resetURL string) error {
	if m.sendResetFn == nil {
		return nil
	}
	return m.sendResetFn(to, name, resetURL)
}

func (m *mockMailer) SendPasswordResetConfirmation(to string) error {
	if m.sendConfirmationFn == nil {
		return nil
	}
	return m.sendConfirmationFn(to)
}

type mockSMSSender struct {
	sendFn func(ctx context.Context, phoneNumber, message string) error
}

func (m *mockSMSSender) SendSMS(ctx context.Context, phoneNumber, message string) error {
	if m.sendFn == nil {
		return nil
	}
	return m.sendFn(ctx, phoneNumber, message)
}

type noopMetrics struct{}

func (noopMetrics) RecordUserRegistered()         {}
func (noopMetrics) RecordPasswordResetRequested() {}
func (noopMetrics) RecordCacheHit(key string)     {}
func (noopMetrics) RecordCacheMiss(key string)    {}

func newTestService(users *mockUserRepo, resets *mockResetRepo, tokens *mockResetTokens,
	store *memStore, objects *mockObjectStore, mailer *mockMailer, sms *mockSMSSender) *Service {
	if users == nil {
		users = &mockUserRepo{}
	}
	if resets == nil {
		resets = &mockResetRepo{}
	}
	if tokens == nil {
		tokens = &mockResetTokens{}
	}
	if store == nil {
		store = newMemStore()
	}
	if objects == nil {
		objects = &mockObjectStore{}
	}
	if mailer == nil {
		mailer = &mockMailer{}
	}
	if sms == nil {
		sms = &mockSMSSender{}
	}
	return NewService(users, resets, tokens, store, objects, mailer, sms, noopMetrics{},
		"https://vote.example.com")
}

func validRegisterInput() RegisterInput {
	return RegisterInput{
		NationalID: "123456789012",
		Email:      "taro@example.com",
		Mobile:     "+819012345678",
		Name:       "Taro Yamada",
		Age:        30,
		Address:    "Tokyo",
		Password:   "Str0ng!Pass",
		Role:       model.RoleVoter,
	}
}

func assertErrorCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != wantCode {
		t.Errorf("error code = %s, want %s", apiErr.Code, wantCode)
	}
}

// TestRegister_Success は新規登録が成功し、パスワードがハッシュ化されることを検証する。
func TestRegister_Success(t *testing.T) {
	var created *model.User
	users := &mockUserRepo{
		createFn: func(_ context.Context, user *model.User) error {
			created = user
			return nil
		},
	}
	var smsTo string
	sms := &mockSMSSender{
		sendFn: func(_ context.Context, phoneNumber, _ string) error {
			smsTo = phoneNumber
			return nil
		},
	}
	svc := newTestService(users, nil, nil, nil, nil, nil, sms)

	user, err := svc.Register(context.Background(), validRegisterInput())
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if user.ID == "" {
		t.Error("user ID should be assigned")
	}
	if created == nil {
		t.Fatal("Create should have been called")
	}
	if created.PasswordHash == "Str0ng!Pass" {
		t.Error("password should be hashed, not stored in plaintext")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("Str0ng!Pass")); err != nil {
		t.Error("stored hash should match the original password")
	}
	if smsTo != "+819012345678" {
		t.Errorf("welcome SMS sent to %s, want +819012345678", smsTo)
	}
}

// TestRegister_IdentityConflict は既存ユーザーとの重複でCONFLICTが返ることを検証する。
func TestRegister_IdentityConflict(t *testing.T) {
	users := &mockUserRepo{
		findByIdentityFn: func(_ context.Context, _, _, _ string) (*model.User, error) {
			return &model.User{ID: "existing"}, nil
		},
	}
	svc := newTestService(users, nil, nil, nil, nil, nil, nil)

	_, err := svc.Register(context.Background(), validRegisterInput())
	assertErrorCode(t, err, model.ErrCodeConflict)
}

// TestRegister_SecondAdminConflict は2人目の管理者登録がCONFLICTになることを検証する。
func TestRegister_SecondAdminConflict(t *testing.T) {
	users := &mockUserRepo{
		adminExistsFn: func(_ context.Context) (bool, error) {
			return true, nil
		},
	}
	svc := newTestService(users, nil, nil, nil, nil, nil, nil)

	input := validRegisterInput()
	input.Role = model.RoleAdmin
	_, err := svc.Register(context.Background(), input)
	assertErrorCode(t, err, model.ErrCodeConflict)
}

// TestRegister_WeakPassword は複雑性要件を満たさないパスワードが拒否されることを検証する。
func TestRegister_WeakPassword(t *testing.T) {
	svc := newTestService(nil, nil, nil, nil, nil, nil, nil)

	input := validRegisterInput()
	input.Password = "weakpass"
	_, err := svc.Register(context.Background(), input)
	assertErrorCode(t, err, model.ErrCodeWeakPassword)
}

// TestRegister_WithPicture はプロフィール画像がアップロードされることを検証する。
func TestRegister_WithPicture(t *testing.T) {
	var putKey string
	objects := &mockObjectStore{
		putFn: func(_ context.Context, key string, _ io.Reader, contentType string) (string, error) {
			putKey = key
			if contentType != "image/png" {
				t.Errorf("contentType = %s, want image/png", contentType)
			}
			return "https://bucket.s3.example.com/" + key, nil
		},
	}
	svc := newTestService(nil, nil, nil, nil, objects, nil, nil)

	input := validRegisterInput()
	input.Picture = strings.NewReader("png-bytes")
	input.PictureFilename = "me.png"
	input.PictureContentType = "image/png"

	user, err := svc.Register(context.Background(), input)
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if !strings.HasPrefix(putKey, "profile-pictures/") || !strings.HasSuffix(putKey, "_me.png") {
		t.Errorf("object key = %s, want profile-pictures/<unix>_me.png", putKey)
	}
	if user.ProfilePictureURL == "" {
		t.Error("profile picture URL should be set")
	}
}

// TestRegister_SMSFailureNotFatal はSMS配信失敗が登録を取り消さないことを検証する。
func TestRegister_SMSFailureNotFatal(t *testing.T) {
	sms := &mockSMSSender{
		sendFn: func(_ context.Context, _, _ string) error {
			return errors.New("sns down")
		},
	}
	svc := newTestService(nil, nil, nil, nil, nil, nil, sms)

	if _, err := svc.Register(context.Background(), validRegisterInput()); err != nil {
		t.Errorf("Register should succeed despite SMS failure, got %v", err)
	}
}

// TestProfile_CacheMissThenHit は初回取得がDBから、2回目がキャッシュから
// 返ることを検証する。
func TestProfile_CacheMissThenHit(t *testing.T) {
	findCalls := 0
	users := &mockUserRepo{
		findByIDFn: func(_ context.Context, id string) (*model.User, error) {
			findCalls++
			return &model.User{ID: id, Name: "Taro"}, nil
		},
	}
	store := newMemStore()
	svc := newTestService(users, nil, nil, store, nil, nil, nil)

	for i := 0; i < 2; i++ {
		user, err := svc.Profile(context.Background(), "user-1")
		if err != nil {
			t.Fatalf("Profile returned error: %v", err)
		}
		if user.Name != "Taro" {
			t.Errorf("name = %s, want Taro", user.Name)
		}
	}

	if findCalls != 1 {
		t.Errorf("FindByID called %d times, want 1 (second read should hit cache)", findCalls)
	}
}

// TestProfile_NotFound は存在しないユーザーでNOT_FOUNDが返ることを検証する。
func TestProfile_NotFound(t *testing.T) {
	svc := newTestService(nil, nil, nil, nil, nil, nil, nil)

	_, err := svc.Profile(context.Background(), "ghost")
	assertErrorCode(t, err, model.ErrCodeNotFound)
}

// TestUpdateProfile_EmailConflict は他ユーザーと重複するemailでCONFLICTが
// 返ることを検証する。
func TestUpdateProfile_EmailConflict(t *testing.T) {
	users := &mockUserRepo{
		findByIDFn: func(_ context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Email: "old@example.com", Mobile: "+819000000000"}, nil
		},
		findByEmailOrMobileFn: func(_ context.Context, _, _, _ string) (*model.User, error) {
			return &model.User{ID: "other"}, nil
		},
	}
	svc := newTestService(users, nil, nil, nil, nil, nil, nil)

	newEmail := "taken@example.com"
	_, err := svc.UpdateProfile(context.Background(), "user-1", ProfilePatch{Email: &newEmail})
	assertErrorCode(t, err, model.ErrCodeConflict)
}

// TestUpdateProfile_OldPictureDeleteFailure は旧画像の削除失敗で更新全体が
// 中止されることを検証する。
func TestUpdateProfile_OldPictureDeleteFailure(t *testing.T) {
	users := &mockUserRepo{
		findByIDFn: func(_ context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, ProfilePictureURL: "https://bucket.s3.example.com/old.png"}, nil
		},
		updateProfileFn: func(_ context.Context, _ *model.User) error {
			t.Fatal("UpdateProfile should not be called after delete failure")
			return nil
		},
	}
	objects := &mockObjectStore{
		deleteFn: func(_ context.Context, _ string) error {
			return errors.New("s3 down")
		},
	}
	svc := newTestService(users, nil, nil, nil, objects, nil, nil)

	_, err := svc.UpdateProfile(context.Background(), "user-1", ProfilePatch{
		Picture:            strings.NewReader("new"),
		PictureFilename:    "new.png",
		PictureContentType: "image/png",
	})
	assertErrorCode(t, err, model.ErrCodeStorage)
}

// TestUpdateProfile_InvalidatesCache は更新でユーザーキャッシュが破棄されることを検証する。
func TestUpdateProfile_InvalidatesCache(t *testing.T) {
	users := &mockUserRepo{
		findByIDFn: func(_ context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Email: "a@example.com", Mobile: "+819000000000"}, nil
		},
	}
	store := newMemStore()
	store.Set(context.Background(), "user:user-1", []byte(`{}`))
	svc := newTestService(users, nil, nil, store, nil, nil, nil)

	name := "New Name"
	if _, err := svc.UpdateProfile(context.Background(), "user-1", ProfilePatch{Name: &name}); err != nil {
		t.Fatalf("UpdateProfile returned error: %v", err)
	}

	if _, ok := store.entries["user:user-1"]; ok {
		t.Error("user cache entry should be invalidated")
	}
}

// TestVerifyCredentials はID不在とパスワード不一致が同一のエラーになることを検証する。
func TestVerifyCredentials(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("Str0ng!Pass"), bcrypt.MinCost)
	users := &mockUserRepo{
		findByNationalIDFn: func(_ context.Context, nationalID string) (*model.User, error) {
			if nationalID == "123456789012" {
				return &model.User{ID: "user-1", PasswordHash: string(hash)}, nil
			}
			return nil, nil
		},
	}
	svc := newTestService(users, nil, nil, nil, nil, nil, nil)

	tests := []struct {
		name       string
		nationalID string
		password   string
		wantErr    string
	}{
		{name: "正しい資格情報", nationalID: "123456789012", password: "Str0ng!Pass"},
		{name: "未知のID", nationalID: "999999999999", password: "Str0ng!Pass", wantErr: model.ErrCodeInvalidCreds},
		{name: "パスワード不一致", nationalID: "123456789012", password: "Wrong!Pass1", wantErr: model.ErrCodeInvalidCreds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.VerifyCredentials(context.Background(), tt.nationalID, tt.password)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("VerifyCredentials returned error: %v", err)
				}
				if user.ID != "user-1" {
					t.Errorf("user ID = %s, want user-1", user.ID)
				}
				return
			}
			assertErrorCode(t, err, tt.wantErr)
		})
	}
}

// TestUpdatePassword_WrongCurrent は現行パスワード不一致で拒否されることを検証する。
func TestUpdatePassword_WrongCurrent(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("Curr3nt!Pass"), bcrypt.MinCost)
	users := &mockUserRepo{
		findByIDFn: func(_ context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, PasswordHash: string(hash)}, nil
		},
	}
	svc := newTestService(users, nil, nil, nil, nil, nil, nil)

	err := svc.UpdatePassword(context.Background(), "user-1", "Wrong!Pass1", "N3w!Password")
	assertErrorCode(t, err, model.ErrCodeInvalidCreds)
}

// TestUpdatePassword_Success はパスワード置換が行われることを検証する。
func TestUpdatePassword_Success(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("Curr3nt!Pass"), bcrypt.MinCost)
	updated := false
	users := &mockUserRepo{
		findByIDFn: func(_ context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, PasswordHash: string(hash)}, nil
		},
		updatePasswordFn: func(_ context.Context, userID, passwordHash string) error {
			updated = true
			if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte("N3w!Password")); err != nil {
				t.Error("new hash should match the new password")
			}
			return nil
		},
	}
	svc := newTestService(users, nil, nil, nil, nil, nil, nil)

	if err := svc.UpdatePassword(context.Background(), "user-1", "Curr3nt!Pass", "N3w!Password"); err != nil {
		t.Fatalf("UpdatePassword returned error: %v", err)
	}
	if !updated {
		t.Error("UpdatePassword should have been called on the repository")
	}
}

// TestRequestPasswordReset_Success はエントリ保存とメール送信を検証する。
func TestRequestPasswordReset_Success(t *testing.T) {
	users := &mockUserRepo{
		findByIDFn: func(_ context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Email: "taro@example.com", Name: "Taro"}, nil
		},
	}
	var stored *model.PasswordResetEntry
	resets := &mockResetRepo{
		upsertFn: func(_ context.Context, entry *model.PasswordResetEntry) error {
			stored = entry
			return nil
		},
	}
	tokens := &mockResetTokens{
		issueFn: func(userID string) (string, string, time.Time, error) {
			return "plain-token", "hashed-token", time.Now().Add(time.Hour), nil
		},
	}
	var mailedURL string
	mailer := &mockMailer{
		sendResetFn: func(to, name, resetURL string) error {
			if to != "taro@example.com" {
				t.Errorf("mail to = %s, want taro@example.com", to)
			}
			mailedURL = resetURL
			return nil
		},
	}
	svc := newTestService(users, resets, tokens, nil, nil, mailer, nil)

	if err := svc.RequestPasswordReset(context.Background(), "user-1"); err != nil {
		t.Fatalf("RequestPasswordReset returned error: %v", err)
	}
	if stored == nil || stored.TokenHash != "hashed-token" {
		t.Errorf("stored entry = %+v, want token hash hashed-token", stored)
	}
	if mailedURL != "https://vote.example.com/password-reset/plain-token" {
		t.Errorf("reset URL = %s", mailedURL)
	}
}

// TestRequestPasswordReset_MailFailure はメール送信失敗でDEPENDENCY_FAILUREが
// 返ることを検証する。
func TestRequestPasswordReset_MailFailure(t *testing.T) {
	users := &mockUserRepo{
		findByIDFn: func(_ context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Email: "taro@example.com"}, nil
		},
	}
	mailer := &mockMailer{
		sendResetFn: func(_, _, _ string) error {
			return errors.New("smtp down")
		},
	}
	svc := newTestService(users, nil, nil, nil, nil, mailer, nil)

	err := svc.RequestPasswordReset(context.Background(), "user-1")
	assertErrorCode(t, err, model.ErrCodeDependency)
}

// TestResetPassword_TokenLifecycle はトークンの不在・消費済み・期限切れの
// 各ケースを検証する。
func TestResetPassword_TokenLifecycle(t *testing.T) {
	tests := []struct {
		name    string
		entry   *model.PasswordResetEntry
		wantErr string
	}{
		{name: "不在", entry: nil, wantErr: model.ErrCodeTokenNotFound},
		{
			name:    "消費済み",
			entry:   &model.PasswordResetEntry{UserID: "user-1", Used: true, ExpiresAt: time.Now().Add(time.Hour)},
			wantErr: model.ErrCodeTokenAlreadyUsed,
		},
		{
			name:    "期限切れ",
			entry:   &model.PasswordResetEntry{UserID: "user-1", ExpiresAt: time.Now().Add(-time.Minute)},
			wantErr: model.ErrCodeTokenExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resets := &mockResetRepo{
				findByTokenHashFn: func(_ context.Context, _ string) (*model.PasswordResetEntry, error) {
					return tt.entry, nil
				},
			}
			svc := newTestService(nil, resets, nil, nil, nil, nil, nil)

			err := svc.ResetPassword(context.Background(), "some-token", "N3w!Password")
			assertErrorCode(t, err, tt.wantErr)
		})
	}
}

// TestResetPassword_PasswordUnchanged は現行と同一のパスワードが拒否されることを検証する。
func TestResetPassword_PasswordUnchanged(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("S4me!Password"), bcrypt.MinCost)
	resets := &mockResetRepo{
		findByTokenHashFn: func(_ context.Context, _ string) (*model.PasswordResetEntry, error) {
			return &model.PasswordResetEntry{UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
	users := &mockUserRepo{
		findByIDFn: func(_ context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, PasswordHash: string(hash)}, nil
		},
	}
	svc := newTestService(users, resets, nil, nil, nil, nil, nil)

	err := svc.ResetPassword(context.Background(), "some-token", "S4me!Password")
	assertErrorCode(t, err, model.ErrCodePasswordUnchanged)
}

// TestResetPassword_Success はパスワード置換とエントリ消費を検証する。
func TestResetPassword_Success(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("Old!Pass123"), bcrypt.MinCost)
	markedUsed := false
	resets := &mockResetRepo{
		findByTokenHashFn: func(_ context.Context, _ string) (*model.PasswordResetEntry, error) {
			return &model.PasswordResetEntry{UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
		markUsedFn: func(_ context.Context, userID string) error {
			markedUsed = true
			return nil
		},
	}
	passwordReplaced := false
	users := &mockUserRepo{
		findByIDFn: func(_ context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Email: "taro@example.com", PasswordHash: string(hash)}, nil
		},
		updatePasswordFn: func(_ context.Context, _, _ string) error {
			passwordReplaced = true
			return nil
		},
	}
	confirmed := false
	mailer := &mockMailer{
		sendConfirmationFn: func(to string) error {
			confirmed = true
			return nil
		},
	}
	svc := newTestService(users, resets, nil, nil, nil, mailer, nil)

	if err := svc.ResetPassword(context.Background(), "some-token", "N3w!Password"); err != nil {
		t.Fatalf("ResetPassword returned error: %v", err)
	}
	if !passwordReplaced {
		t.Error("password should have been replaced")
	}
	if !markedUsed {
		t.Error("reset entry should have been marked used")
	}
	if !confirmed {
		t.Error("confirmation mail should have been sent")
	}
}

// TestValidatePassword は複雑性要件のテーブルテスト。
func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "要件を満たす", password: "Str0ng!Pass", wantErr: false},
		{name: "短すぎる", password: "S1!a", wantErr: true},
		{name: "大文字なし", password: "str0ng!pass", wantErr: true},
		{name: "小文字なし", password: "STR0NG!PASS", wantErr: true},
		{name: "数字なし", password: "Strong!Pass", wantErr: true},
		{name: "記号なし", password: "Str0ngPass1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePassword(tt.password)
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
