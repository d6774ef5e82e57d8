package handler

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/hitoshi/voteman/internal/model"
	"github.com/hitoshi/voteman/internal/token"
	"github.com/hitoshi/voteman/internal/user"
)

// maxPictureSize はプロフィール画像の最大サイズ（5MB）。
const maxPictureSize = 5 << 20

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Register(ctx context.Context, input user.RegisterInput) (*model.User, error)
	Profile(ctx context.Context, userID string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID string, patch user.ProfilePatch) (*model.User, error)
	UpdatePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	RequestPasswordReset(ctx context.Context, userID string) error
	ResetPassword(ctx context.Context, plaintext, newPassword string) error
}

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, nationalID, password string) (*model.User, string, error)
	Logout(ctx context.Context, userID string) error
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	users  UserServiceInterface
	auth   AuthServiceInterface
	cookie token.CookieSettings
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(users UserServiceInterface, auth AuthServiceInterface, cookie token.CookieSettings) *UserHandler {
	return &UserHandler{
		users:  users,
		auth:   auth,
		cookie: cookie,
	}
}

// userResponse はユーザーの公開用の射影。パスワードハッシュは含まない。
type userResponse struct {
	ID                string `json:"id"`
	NationalID        string `json:"nationalId"`
	Email             string `json:"email"`
	Mobile            string `json:"mobile"`
	Name              string `json:"name"`
	Age               int    `json:"age"`
	Address           string `json:"address"`
	ProfilePictureURL string `json:"profilePictureUrl,omitempty"`
	Role              string `json:"role"`
	HasVoted          bool   `json:"hasVoted"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:                u.ID,
		NationalID:        u.NationalID,
		Email:             u.Email,
		Mobile:            u.Mobile,
		Name:              u.Name,
		Age:               u.Age,
		Address:           u.Address,
		ProfilePictureURL: u.ProfilePictureURL,
		Role:              string(u.Role),
		HasVoted:          u.HasVoted,
	}
}

// signupRequest はユーザー登録のリクエストDTO。
type signupRequest struct {
	NationalID string `json:"nationalId" validate:"required,len=12,numeric"`
	Email      string `json:"email" validate:"required,email"`
	Mobile     string `json:"mobile" validate:"required,e164"`
	Name       string `json:"name" validate:"required,max=100"`
	Age        int    `json:"age" validate:"required,gte=18,lte=120"`
	Address    string `json:"address" validate:"required,max=200"`
	Password   string `json:"password" validate:"required,min=8"`
	Role       string `json:"role" validate:"omitempty,oneof=voter admin"`
}

// Signup は新規ユーザーを登録する。
// POST /user/signup
// JSONボディまたはmultipart/form-data（プロフィール画像付き）を受け付ける。
func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	var picture multipart.File
	var pictureFilename, pictureContentType string

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := h.parseSignupForm(r, &req)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		if file != nil {
			defer file.Close()
			picture = file
			pictureFilename = header.Filename
			pictureContentType = header.Header.Get("Content-Type")
		}
	} else {
		if err := decodeAndValidate(r, &req); err != nil {
			handleServiceError(w, err)
			return
		}
	}

	role := model.RoleVoter
	if req.Role == string(model.RoleAdmin) {
		role = model.RoleAdmin
	}

	input := user.RegisterInput{
		NationalID: req.NationalID,
		Email:      req.Email,
		Mobile:     req.Mobile,
		Name:       req.Name,
		Age:        req.Age,
		Address:    req.Address,
		Password:   req.Password,
		Role:       role,
	}
	if picture != nil {
		input.Picture = io.LimitReader(picture, maxPictureSize)
		input.PictureFilename = pictureFilename
		input.PictureContentType = pictureContentType
	}

	created, err := h.users.Register(r.Context(), input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccessResponse(w, http.StatusOK, "ユーザー登録が完了しました。", toUserResponse(created))
}

// parseSignupForm はmultipartフォームからDTOとプロフィール画像を取り出す。
func (h *UserHandler) parseSignupForm(r *http.Request, req *signupRequest) (multipart.File, *multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(maxPictureSize); err != nil {
		return nil, nil, model.NewValidationError("フォームを解釈できません。")
	}

	age, err := strconv.Atoi(r.FormValue("age"))
	if err != nil {
		return nil, nil, model.NewValidationError("年齢は数値で指定してください。")
	}

	req.NationalID = r.FormValue("nationalId")
	req.Email = r.FormValue("email")
	req.Mobile = r.FormValue("mobile")
	req.Name = r.FormValue("name")
	req.Age = age
	req.Address = r.FormValue("address")
	req.Password = r.FormValue("password")
	req.Role = r.FormValue("role")

	if err := validate.Struct(req); err != nil {
		return nil, nil, model.NewValidationError("入力値が要件を満たしていません。")
	}

	file, header, err := r.FormFile("profilePicture")
	if err == http.ErrMissingFile {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, model.NewValidationError("プロフィール画像を読み取れません。")
	}
	if header.Size > maxPictureSize {
		file.Close()
		return nil, nil, model.NewValidationError("プロフィール画像は5MB以下にしてください。")
	}
	contentType := header.Header.Get("Content-Type")
	if contentType != "image/jpeg" && contentType != "image/png" {
		file.Close()
		return nil, nil, model.NewValidationError("プロフィール画像はJPEGまたはPNG形式にしてください。")
	}

	return file, header, nil
}

// loginRequest はログインのリクエストDTO。
type loginRequest struct {
	NationalID string `json:"nationalId" validate:"required,len=12,numeric"`
	Password   string `json:"password" validate:"required"`
}

// Login は資格情報を検証してセッションCookieを設定する。
// POST /user/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	loggedIn, tokenString, err := h.auth.Login(r.Context(), req.NationalID, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	token.SetSessionCookie(w, tokenString, h.cookie)
	writeSuccessResponse(w, http.StatusOK, "ログインしました。", toUserResponse(loggedIn))
}

// Logout はセッションをサーバー側で失効させ、Cookieを破棄する。
// POST /user/logout
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticatedUserID(w, r)
	if !ok {
		return
	}

	if err := h.auth.Logout(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	token.ClearSessionCookie(w, h.cookie)
	writeSuccessResponse(w, http.StatusOK, "ログアウトしました。", nil)
}

// Profile は認証済みユーザーのプロフィールを返す。
// GET /user/profile
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticatedUserID(w, r)
	if !ok {
		return
	}

	profile, err := h.users.Profile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccessResponse(w, http.StatusOK, "プロフィールを取得しました。", toUserResponse(profile))
}

// restrictedUserFields はプロフィール更新で変更を許可しないフィールド。
// これらが含まれるリクエストは永続化前に403で拒否される。
var restrictedUserFields = []string{
	"password", "hasVoted", "has_voted", "nationalId", "national_id", "role",
}

// updateUserRequest はプロフィール更新のリクエストDTO。nilのフィールドは変更しない。
type updateUserRequest struct {
	Name    *string `json:"name" validate:"omitempty,max=100"`
	Age     *int    `json:"age" validate:"omitempty,gte=18,lte=120"`
	Address *string `json:"address" validate:"omitempty,max=200"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Mobile  *string `json:"mobile" validate:"omitempty,e164"`
}

// UpdateUser はプロフィールを更新する。
// PUT /user/updateUser
// password・hasVoted・nationalId・roleを含むリクエストは403で拒否する。
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticatedUserID(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディを読み取れません。"))
		return
	}

	// 変更禁止フィールドの存在チェックを永続化より先に行う
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディを解釈できません。"))
		return
	}
	for _, field := range restrictedUserFields {
		if _, found := raw[field]; found {
			writeAPIErrorResponse(w, http.StatusForbidden,
				model.NewForbiddenError("このフィールドは更新できません: "+field))
			return
		}
	}

	var req updateUserRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("リクエストボディを解釈できません。"))
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("入力値が要件を満たしていません。"))
		return
	}

	updated, err := h.users.UpdateProfile(r.Context(), userID, user.ProfilePatch{
		Name:    req.Name,
		Age:     req.Age,
		Address: req.Address,
		Email:   req.Email,
		Mobile:  req.Mobile,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccessResponse(w, http.StatusOK, "プロフィールを更新しました。", toUserResponse(updated))
}

// updatePasswordRequest はパスワード変更のリクエストDTO。
type updatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
}

// UpdatePassword は現行パスワードを検証して新しいパスワードに置き換える。
// PUT /user/update-password
func (h *UserHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticatedUserID(w, r)
	if !ok {
		return
	}

	var req updatePasswordRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.users.UpdatePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		handleServiceError(w, err)
		return
	}

	// 全セッションが失効するためCookieも破棄する
	token.ClearSessionCookie(w, h.cookie)
	writeSuccessResponse(w, http.StatusOK, "パスワードを変更しました。再度ログインしてください。", nil)
}

// RequestPasswordReset はリセットリンクをメールで送信する。
// POST /user/request-password-reset
func (h *UserHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	userID, ok := authenticatedUserID(w, r)
	if !ok {
		return
	}

	if err := h.users.RequestPasswordReset(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccessResponse(w, http.StatusOK, "リセット用のメールを送信しました。", nil)
}

// passwordResetRequest はリセット実行のリクエストDTO。
type passwordResetRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

// PasswordReset はリセットトークンを消費して新しいパスワードを設定する。
// POST /user/password-reset
func (h *UserHandler) PasswordReset(w http.ResponseWriter, r *http.Request) {
	if _, ok := authenticatedUserID(w, r); !ok {
		return
	}

	var req passwordResetRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	if err := h.users.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		handleServiceError(w, err)
		return
	}

	token.ClearSessionCookie(w, h.cookie)
	writeSuccessResponse(w, http.StatusOK, "パスワードを再設定しました。再度ログインしてください。", nil)
}
