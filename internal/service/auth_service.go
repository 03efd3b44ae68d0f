package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/qs3c/vidchat_go_server/config"
	"github.com/qs3c/vidchat_go_server/internal/model"
	"github.com/qs3c/vidchat_go_server/internal/model/dto"
	"github.com/qs3c/vidchat_go_server/internal/pkg/jwt"
	"github.com/qs3c/vidchat_go_server/internal/pkg/oauth"
	"github.com/qs3c/vidchat_go_server/internal/repository"
)

var (
	ErrEmailExists        = errors.New("邮箱已被注册")
	ErrInvalidCredentials = errors.New("邮箱或密码错误")
	ErrUserInactive       = errors.New("账号已被停用")
	ErrUserNotFound       = errors.New("用户不存在")
	ErrInvalidIDToken     = errors.New("Google 凭证无效")
)

type AuthService struct {
	userRepo    *repository.UserRepository
	cfg         *config.Config
	googleOAuth *oauth.GoogleOAuth
}

func NewAuthService(userRepo *repository.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		cfg:      cfg,
		googleOAuth: oauth.NewGoogleOAuth(
			cfg.OAuth.Google.ClientID,
			cfg.OAuth.Google.ClientSecret,
			cfg.OAuth.Google.RedirectURI,
		),
	}
}

// Register 用户注册
func (s *AuthService) Register(req *dto.RegisterRequest) (*dto.RegisterResponse, error) {
	// 检查邮箱是否存在
	exists, err := s.userRepo.ExistsByEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailExists
	}

	// 加密密码
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	passwordStr := string(hashedPassword)
	user := &model.User{
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: &passwordStr,
		IsActive:     true,
	}

	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}

	return &dto.RegisterResponse{
		UserID: user.ID,
	}, nil
}

// Login 用户登录
func (s *AuthService) Login(req *dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := s.userRepo.GetByEmail(req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrUserInactive
	}

	// 验证密码（纯 OAuth 账号没有密码）
	if user.PasswordHash == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issueToken(user)
}

// GoogleLogin 用前端携带的 ID Token 登录,首次登录自动建号
func (s *AuthService) GoogleLogin(ctx context.Context, req *dto.GoogleLoginRequest) (*dto.LoginResponse, error) {
	googleUser, err := s.googleOAuth.VerifyIDToken(ctx, req.IDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIDToken, err)
	}

	user, err := s.loginOrCreateGoogleUser(googleUser)
	if err != nil {
		return nil, err
	}

	return s.issueToken(user)
}

// GetGoogleAuthURL 获取 Google 授权 URL（授权码流程）
func (s *AuthService) GetGoogleAuthURL(state string) string {
	return s.googleOAuth.GetAuthURL(state)
}

// GoogleCallback 处理 Google OAuth 授权码回调
func (s *AuthService) GoogleCallback(ctx context.Context, code string) (*dto.LoginResponse, error) {
	token, err := s.googleOAuth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	googleUser, err := s.googleOAuth.GetUser(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to get google user: %w", err)
	}

	user, err := s.loginOrCreateGoogleUser(googleUser)
	if err != nil {
		return nil, err
	}

	return s.issueToken(user)
}

// loginOrCreateGoogleUser 按 google_id 匹配,否则按邮箱关联,都没有则建号
func (s *AuthService) loginOrCreateGoogleUser(googleUser *oauth.GoogleUser) (*model.User, error) {
	user, err := s.userRepo.GetByGoogleID(googleUser.Sub)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if user == nil {
		// 已注册的邮箱直接关联 Google 账号
		user, err = s.userRepo.GetByEmail(googleUser.Email)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if user != nil {
			googleID := googleUser.Sub
			user.GoogleID = &googleID
			if err := s.userRepo.Update(user); err != nil {
				return nil, err
			}
		}
	}

	if user == nil {
		googleID := googleUser.Sub
		user = &model.User{
			Email:     googleUser.Email,
			FirstName: googleUser.GivenName,
			LastName:  googleUser.FamilyName,
			GoogleID:  &googleID,
			IsActive:  true,
		}
		if err := s.userRepo.Create(user); err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
	}

	if !user.IsActive {
		return nil, ErrUserInactive
	}

	return user, nil
}

// GetUserByID 根据 ID 获取用户
func (s *AuthService) GetUserByID(id int64) (*model.User, error) {
	return s.userRepo.GetByID(id)
}

func (s *AuthService) issueToken(user *model.User) (*dto.LoginResponse, error) {
	token, err := jwt.GenerateToken(user.ID, s.cfg.JWT.Secret, s.cfg.JWT.ExpireHours)
	if err != nil {
		return nil, err
	}

	return &dto.LoginResponse{
		Token: token,
		User:  s.buildUserInfo(user),
	}, nil
}

func (s *AuthService) buildUserInfo(user *model.User) *dto.UserInfo {
	return &dto.UserInfo{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
}
