package usecase

import (
	"context"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/Kccollections/kc-collections-sub000/internal/domain/model"
	repo "github.com/Kccollections/kc-collections-sub000/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

// accesstokenの有効期限
const accessTokenTTL = 15 * time.Minute

type AuthUsecase struct {
	users     repo.UserRepository
	jwtSecret []byte
	clock     Clock
}

func NewAuthUsecase(users repo.UserRepository, jwtSecret string, clock Clock) *AuthUsecase {
	return &AuthUsecase{users: users, jwtSecret: []byte(jwtSecret), clock: clock}
}

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserOutput struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginOutput struct {
	User        UserOutput `json:"user"`
	AccessToken string     `json:"access_token"`
	ExpiresIn   int        `json:"expires_in"`
}

// 会員登録
func (u *AuthUsecase) Register(ctx context.Context, in RegisterInput) (UserOutput, error) {
	email := strings.TrimSpace(in.Email)
	if in.Name == "" || email == "" || in.Password == "" {
		return UserOutput{}, NewHTTPError(http.StatusBadRequest, "name, email and password required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return UserOutput{}, NewHTTPError(http.StatusBadRequest, "invalid email")
	}
	if len(in.Password) < 8 {
		return UserOutput{}, NewHTTPError(http.StatusBadRequest, "password too short")
	}

	//email重複チェック
	existing, err := u.users.FindByEmail(ctx, email)
	if err != nil {
		return UserOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if existing != nil {
		return UserOutput{}, NewHTTPError(http.StatusConflict, "email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), 12)
	if err != nil {
		return UserOutput{}, NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	now := u.clock.Now()
	user := model.User{
		Name:         in.Name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         model.RoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := u.users.Create(ctx, &user); err != nil {
		return UserOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return toUserOutput(user), nil
}

// ログイン。成功したらJWTを返す
func (u *AuthUsecase) Login(ctx context.Context, in LoginInput) (LoginOutput, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" {
		return LoginOutput{}, NewHTTPError(http.StatusBadRequest, "email and password required")
	}

	user, err := u.users.FindByEmail(ctx, email)
	if err != nil {
		return LoginOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	//存在しない場合も同じメッセージにする
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)) != nil {
		return LoginOutput{}, NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	if !user.IsActive {
		return LoginOutput{}, NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	now := u.clock.Now()
	claims := jwt.MapClaims{
		"sub":           user.ID,
		"role":          string(user.Role),
		"token_version": user.TokenVersion,
		"iat":           now.Unix(),
		"exp":           now.Add(accessTokenTTL).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(u.jwtSecret)
	if err != nil {
		return LoginOutput{}, NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	last := now
	user.LastLoginAt = &last
	//最終ログイン時刻の記録失敗でログインを失敗にはしない
	_ = u.users.Update(ctx, user)

	return LoginOutput{
		User:        toUserOutput(*user),
		AccessToken: signed,
		ExpiresIn:   int(accessTokenTTL.Seconds()),
	}, nil
}

func toUserOutput(u model.User) UserOutput {
	return UserOutput{ID: u.ID, Name: u.Name, Email: u.Email, Role: string(u.Role)}
}
