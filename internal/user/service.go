// Package user はユーザー登録・プロフィール・パスワードリセットの
// ビジネスロジックを提供する。
package user

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/voteman/internal/cache"
	"github.com/hitoshi/voteman/internal/model"
	"github.com/hitoshi/voteman/internal/notify"
	"github.com/hitoshi/voteman/internal/repository"
	"github.com/hitoshi/voteman/internal/storage"
)

// ResetTokenService はリセットトークンの発行と照合に必要なインターフェース。
// token.Serviceの部分集合として定義する。
type ResetTokenService interface {
	IssueReset(userID string) (plaintext, tokenHash string, expiresAt time.Time, err error)
	HashReset(plaintext string) string
}

// MetricsRecorder はユーザー操作のメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordUserRegistered()
	RecordPasswordResetRequested()
	RecordCacheHit(key string)
	RecordCacheMiss(key string)
}

// Service はユーザーに関するビジネスロジックを提供する。
type Service struct {
	users   repository.UserRepository
	resets  repository.PasswordResetRepository
	tokens  ResetTokenService
	cache   cache.Store
	objects storage.ObjectStore
	mailer  notify.Mailer
	sms     notify.SMSSender
	metrics MetricsRecorder
	baseURL string
	now     func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	users repository.UserRepository,
	resets repository.PasswordResetRepository,
	tokens ResetTokenService,
	cacheStore cache.Store,
	objects storage.ObjectStore,
	mailer notify.Mailer,
	sms notify.SMSSender,
	metrics MetricsRecorder,
	baseURL string,
) *Service {
	return &Service{
		users:   users,
		resets:  resets,
		tokens:  tokens,
		cache:   cacheStore,
		objects: objects,
		mailer:  mailer,
		sms:     sms,
		metrics: metrics,
		baseURL: baseURL,
		now:     time.Now,
	}
}

// RegisterInput はユーザー登録の入力を表す。
type RegisterInput struct {
	NationalID string
	Email      string
	Mobile     string
	Name       string
	Age        int
	Address    string
	Password   string
	Role       model.Role

	// プロフィール画像（任意）
	Picture            io.Reader
	PictureFilename    string
	PictureContentType string
}

// Register は新規ユーザーを登録する。
// national_id・email・mobileの重複、および管理者の重複登録はCONFLICTを返す。
// プロフィール画像が指定されていればオブジェクトストレージへアップロードする。
// 登録完了後のSMS通知の失敗は登録を取り消さない（ログのみ）。
func (s *Service) Register(ctx context.Context, input RegisterInput) (*model.User, error) {
	// 1. 重複の事前チェック
	existing, err := s.users.FindByIdentity(ctx, input.NationalID, input.Email, input.Mobile)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, model.NewConflictError("国民ID番号・メールアドレス・携帯電話番号のいずれかが既に登録されています。")
	}

	if input.Role == model.RoleAdmin {
		adminExists, err := s.users.AdminExists(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to check admin existence: %w", err)
		}
		if adminExists {
			return nil, model.NewConflictError("管理者は既に登録されています。")
		}
	}

	// 2. パスワードの複雑性チェックとハッシュ化
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	// 3. プロフィール画像のアップロード（任意）
	pictureURL := ""
	if input.Picture != nil {
		key := fmt.Sprintf("profile-pictures/%d_%s", s.now().Unix(), input.PictureFilename)
		pictureURL, err = s.objects.Put(ctx, key, input.Picture, input.PictureContentType)
		if err != nil {
			slog.Error("failed to upload profile picture",
				slog.String("error", err.Error()),
			)
			return nil, model.NewStorageError()
		}
	}

	now := s.now()
	user := &model.User{
		ID:                uuid.New().String(),
		NationalID:        input.NationalID,
		Email:             input.Email,
		Mobile:            input.Mobile,
		Name:              input.Name,
		Age:               input.Age,
		Address:           input.Address,
		ProfilePictureURL: pictureURL,
		PasswordHash:      string(hash),
		Role:              input.Role,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.metrics.RecordUserRegistered()
	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)

	// 4. 登録完了SMS。配信失敗は登録を取り消さない
	if err := s.sms.SendSMS(ctx, user.Mobile,
		fmt.Sprintf("%s さん、有権者登録が完了しました。", user.Name)); err != nil {
		slog.Warn("failed to send welcome SMS",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	return user, nil
}

// Profile はユーザープロフィールを取得する。キャッシュ（TTL 600秒）を経由する。
func (s *Service) Profile(ctx context.Context, userID string) (*model.User, error) {
	key := cache.UserKey(userID)

	if data, ok := s.cache.Get(ctx, key); ok {
		var user model.User
		if err := json.Unmarshal(data, &user); err == nil {
			s.metrics.RecordCacheHit(key)
			return &user, nil
		}
		// 壊れたエントリはミス扱いで読み直す
		s.cache.Del(ctx, key)
	}
	s.metrics.RecordCacheMiss(key)

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewNotFoundError("ユーザーが見つかりません。")
	}

	if data, err := json.Marshal(user); err == nil {
		s.cache.Set(ctx, key, data)
	}

	return user, nil
}

// ProfilePatch はプロフィール更新の入力を表す。nilのフィールドは変更しない。
// password・has_voted・national_id・roleはこのパスでは変更できない
// （ハンドラー層で事前に拒否される）。
type ProfilePatch struct {
	Name    *string
	Age     *int
	Address *string
	Email   *string
	Mobile  *string

	// 新しいプロフィール画像（任意）
	Picture            io.Reader
	PictureFilename    string
	PictureContentType string
}

// UpdateProfile はプロフィールを更新する。
// email・mobileの他ユーザーとの重複はCONFLICTを返す。
// 新しい画像が指定された場合、旧画像の削除に失敗したら更新全体を中止する。
func (s *Service) UpdateProfile(ctx context.Context, userID string, patch ProfilePatch) (*model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewNotFoundError("ユーザーが見つかりません。")
	}

	email := user.Email
	if patch.Email != nil {
		email = *patch.Email
	}
	mobile := user.Mobile
	if patch.Mobile != nil {
		mobile = *patch.Mobile
	}
	if email != user.Email || mobile != user.Mobile {
		conflicting, err := s.users.FindByEmailOrMobile(ctx, email, mobile, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to check email/mobile conflict: %w", err)
		}
		if conflicting != nil {
			return nil, model.NewConflictError("メールアドレスまたは携帯電話番号が既に使用されています。")
		}
	}

	// 新しい画像: 旧画像を先に削除し、失敗したら更新を中止する
	if patch.Picture != nil {
		if user.ProfilePictureURL != "" {
			if err := s.objects.Delete(ctx, user.ProfilePictureURL); err != nil {
				slog.Error("failed to delete old profile picture",
					slog.String("user_id", userID),
					slog.String("error", err.Error()),
				)
				return nil, model.NewStorageError()
			}
		}
		key := fmt.Sprintf("profile-pictures/%d_%s", s.now().Unix(), patch.PictureFilename)
		pictureURL, err := s.objects.Put(ctx, key, patch.Picture, patch.PictureContentType)
		if err != nil {
			slog.Error("failed to upload profile picture",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			return nil, model.NewStorageError()
		}
		user.ProfilePictureURL = pictureURL
	}

	if patch.Name != nil {
		user.Name = *patch.Name
	}
	if patch.Age != nil {
		user.Age = *patch.Age
	}
	if patch.Address != nil {
		user.Address = *patch.Address
	}
	user.Email = email
	user.Mobile = mobile
	user.UpdatedAt = s.now()

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}

	s.cache.Del(ctx, cache.UserKey(userID))

	return user, nil
}

// UpdatePassword は現在のパスワードを検証した上で新しいパスワードに置き換える。
// token_versionが進むため、発行済みの全セッションは失効する。
func (s *Service) UpdatePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewNotFoundError("ユーザーが見つかりません。")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return model.NewInvalidCredentialsError()
	}

	if err := s.replacePassword(ctx, user, newPassword); err != nil {
		return err
	}

	slog.Info("password updated",
		slog.String("user_id", userID),
	)

	return nil
}

// VerifyCredentials は国民ID番号とパスワードを検証する。
// IDの存在有無とパスワード不一致は区別せず、同一のエラーを返す。
func (s *Service) VerifyCredentials(ctx context.Context, nationalID, password string) (*model.User, error) {
	user, err := s.users.FindByNationalID(ctx, nationalID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	return user, nil
}

// RequestPasswordReset はリセットトークンを発行し、リセットリンクをメールで送る。
// 同一ユーザーの既存トークンは上書きされ無効になる。
// メール送信の失敗はDEPENDENCY_FAILUREとして返す。
func (s *Service) RequestPasswordReset(ctx context.Context, userID string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewNotFoundError("ユーザーが見つかりません。")
	}

	plaintext, tokenHash, expiresAt, err := s.tokens.IssueReset(userID)
	if err != nil {
		return fmt.Errorf("failed to issue reset token: %w", err)
	}

	entry := &model.PasswordResetEntry{
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
	}
	if err := s.resets.Upsert(ctx, entry); err != nil {
		return fmt.Errorf("failed to store reset entry: %w", err)
	}

	resetURL := fmt.Sprintf("%s/password-reset/%s", s.baseURL, plaintext)
	if err := s.mailer.SendPasswordReset(user.Email, user.Name, resetURL); err != nil {
		slog.Error("failed to send password reset mail",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return model.NewDependencyError("リセットメールの送信に失敗しました。")
	}

	s.metrics.RecordPasswordResetRequested()
	slog.Info("password reset requested",
		slog.String("user_id", userID),
	)

	return nil
}

// ResetPassword はリセットトークンを消費して新しいパスワードを設定する。
// トークンは一度しか使えず、期限切れ・消費済みトークンは拒否される。
// パスワード置換後の確認メール送信失敗はDEPENDENCY_FAILUREとして返すが、
// パスワード自体は既に変更されている。
func (s *Service) ResetPassword(ctx context.Context, plaintext, newPassword string) error {
	entry, err := s.resets.FindByTokenHash(ctx, s.tokens.HashReset(plaintext))
	if err != nil {
		return fmt.Errorf("failed to find reset entry: %w", err)
	}
	if entry == nil {
		return model.NewTokenNotFoundError()
	}
	if entry.Used {
		return model.NewTokenAlreadyUsedError()
	}
	if entry.Expired(s.now()) {
		return model.NewTokenExpiredError()
	}

	user, err := s.users.FindByID(ctx, entry.UserID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewTokenNotFoundError()
	}

	if err := s.replacePassword(ctx, user, newPassword); err != nil {
		return err
	}

	if err := s.resets.MarkUsed(ctx, entry.UserID); err != nil {
		return fmt.Errorf("failed to mark reset entry used: %w", err)
	}

	slog.Info("password reset completed",
		slog.String("user_id", user.ID),
	)

	if err := s.mailer.SendPasswordResetConfirmation(user.Email); err != nil {
		slog.Error("failed to send reset confirmation mail",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return model.NewDependencyError("確認メールの送信に失敗しました。パスワードは変更されています。")
	}

	return nil
}

// replacePassword は複雑性と現行パスワードとの同一性を検証した上で
// パスワードハッシュを置き換える。token_versionが進む。
func (s *Service) replacePassword(ctx context.Context, user *model.User, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(newPassword)); err == nil {
		return model.NewPasswordUnchangedError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.cache.Del(ctx, cache.UserKey(user.ID))

	return nil
}
