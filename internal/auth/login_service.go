package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/anoixa/cerberus/database/models"
	"github.com/anoixa/cerberus/database/repo/accounts"
	cryptopackage "github.com/anoixa/cerberus/utils/crypto"
)

// ErrInvalidCredentials 用户名或密码错误
var ErrInvalidCredentials = errors.New("invalid credentials")

// LoginService 登录服务 - 凭据校验后签发会话 token
type LoginService struct {
	accountsRepo   *accounts.Repository
	sessionService *SessionService
}

// NewLoginService 创建新的登录服务
func NewLoginService(accountsRepo *accounts.Repository, sessionService *SessionService) *LoginService {
	return &LoginService{
		accountsRepo:   accountsRepo,
		sessionService: sessionService,
	}
}

// ValidateCredentials 验证用户凭据
func (s *LoginService) ValidateCredentials(ctx context.Context, username, password string) (*models.User, bool, error) {
	user, err := s.accountsRepo.WithContext(ctx).GetUserByUsername(username)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, false, nil
	}

	ok, err := cryptopackage.ComparePasswordAndHash(password, user.Password)
	if err != nil {
		return nil, false, fmt.Errorf("password comparison failed: %w", err)
	}

	return user, ok, nil
}

// Login 校验凭据并创建会话，返回明文 token
func (s *LoginService) Login(ctx context.Context, username, password string, rc *RequestContext) (*models.User, string, error) {
	user, valid, err := s.ValidateCredentials(ctx, username, password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to validate credentials: %w", err)
	}
	if !valid {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.sessionService.CreateSession(ctx, models.OwnerTypeUser, user.ID, rc)
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}
