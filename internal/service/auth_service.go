package service

import (
	"context"
	"errors"
	"strings"
	"time"

	initdata "github.com/telegram-mini-apps/init-data-golang"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"yukyubor/backend/config"
	"yukyubor/backend/internal/dto"
	"yukyubor/backend/internal/model"
	"yukyubor/backend/internal/repository"
	pkgerrors "yukyubor/backend/pkg/errors"
	"yukyubor/backend/pkg/jwt"
)

// ── 认证模块业务错误 ──

var (
	ErrInvalidInitData  = pkgerrors.Validation("Telegram 登录数据校验失败")
	ErrInitDataExpired  = pkgerrors.Validation("Telegram 登录数据已过期")
	ErrTelegramDisabled = pkgerrors.Validation("未配置 Telegram Bot，无法登录")
	ErrUserNotFound     = pkgerrors.NotFound("用户不存在")
)

// TokenBlacklist Token 黑名单，*redis.Client 即满足
type TokenBlacklist interface {
	BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error
}

// AuthService 认证业务接口
type AuthService interface {
	// LoginTelegram 校验 Telegram Web App initData，创建或更新用户并签发 Token
	LoginTelegram(ctx context.Context, req *dto.TelegramLoginRequest) (*dto.TokenResponse, error)
	// Logout 将当前 Token 加入黑名单直至过期
	Logout(ctx context.Context, claims *jwt.Claims) error
	Me(ctx context.Context, userID uint) (*dto.UserResponse, error)
}

type authService struct {
	cfg       *config.Config
	repo      *repository.Repository
	jwtMgr    *jwt.Manager
	blacklist TokenBlacklist
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuthService 创建 AuthService 实例；blacklist 为 nil 时登出仅由客户端丢弃 Token
func NewAuthService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	blacklist TokenBlacklist,
	logger *zap.Logger,
) AuthService {
	return &authService{
		cfg:       cfg,
		repo:      repo,
		jwtMgr:    jwtMgr,
		blacklist: blacklist,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *authService) LoginTelegram(ctx context.Context, req *dto.TelegramLoginRequest) (*dto.TokenResponse, error) {
	if s.cfg.Telegram.BotToken == "" {
		return nil, ErrTelegramDisabled
	}

	// 1. 校验签名与时效
	tgUser, err := verifyInitData(req.InitData, s.cfg.Telegram.BotToken, s.cfg.Auth.InitDataMaxAge, s.now())
	if err != nil {
		return nil, err
	}

	// 2. 创建或更新用户
	role := model.RoleUser
	for _, id := range s.cfg.Auth.AdminTelegramIDs {
		if id == tgUser.ID {
			role = model.RoleAdmin
			break
		}
	}
	user, err := s.repo.User.Upsert(ctx, &model.User{
		TelegramID:   tgUser.ID,
		Name:         strings.TrimSpace(tgUser.FirstName + " " + tgUser.LastName),
		Username:     tgUser.Username,
		Role:         role,
		LinksBalance: model.DefaultLinksBalance,
	})
	if err != nil {
		s.logger.Error("保存用户失败", zap.Int64("telegram_id", tgUser.ID), zap.Error(err))
		return nil, err
	}

	// 3. 签发 Token
	token, err := s.jwtMgr.GenerateAccessToken(user.ID, user.TelegramID, user.Role)
	if err != nil {
		s.logger.Error("生成 AccessToken 失败", zap.Error(err))
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken: token,
		ExpiresIn:   int(s.jwtMgr.AccessTokenTTL().Seconds()),
		User:        *toUserResponse(user),
	}, nil
}

func (s *authService) Logout(ctx context.Context, claims *jwt.Claims) error {
	if s.blacklist == nil || claims == nil || claims.ExpiresAt == nil {
		return nil
	}
	ttl := claims.ExpiresAt.Time.Sub(s.now())
	if err := s.blacklist.BlacklistToken(ctx, claims.ID, ttl); err != nil {
		s.logger.Error("Token 加入黑名单失败", zap.String("jti", claims.ID), zap.Error(err))
		return err
	}
	return nil
}

func (s *authService) Me(ctx context.Context, userID uint) (*dto.UserResponse, error) {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.Uint("user_id", userID), zap.Error(err))
		return nil, err
	}
	return toUserResponse(user), nil
}

// verifyInitData 校验 initData 签名并解析用户；时效按 maxAge 与 now 判断
func verifyInitData(raw, botToken string, maxAge time.Duration, now time.Time) (*initdata.User, error) {
	if err := initdata.Validate(raw, botToken, 0); err != nil {
		return nil, ErrInvalidInitData
	}

	data, err := initdata.Parse(raw)
	if err != nil || data.User.ID == 0 {
		return nil, ErrInvalidInitData
	}
	if maxAge > 0 && now.Sub(data.AuthDate()) > maxAge {
		return nil, ErrInitDataExpired
	}
	return &data.User, nil
}

func toUserResponse(u *model.User) *dto.UserResponse {
	return &dto.UserResponse{
		ID:           u.ID,
		TelegramID:   u.TelegramID,
		Name:         u.Name,
		Username:     u.Username,
		Role:         u.Role,
		LinksBalance: u.LinksBalance,
	}
}
