package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"yukyubor/backend/config"
	"yukyubor/backend/internal/dto"
	"yukyubor/backend/internal/model"
	"yukyubor/backend/pkg/jwt"
)

const testBotToken = "123456:TEST-bot-token"

// ── Mock TokenBlacklist ──

type mockBlacklist struct {
	jtis map[string]time.Duration
	err  error
}

func (b *mockBlacklist) BlacklistToken(_ context.Context, jti string, ttl time.Duration) error {
	if b.err != nil {
		return b.err
	}
	b.jtis[jti] = ttl
	return nil
}

// ── 测试辅助 ──

func setupTestAuthService(now time.Time) (*authService, *fixture, *jwt.Manager, *mockBlacklist) {
	f := newFixture()
	cfg := &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:        "test-secret-key-for-unit-tests",
			AccessTokenTTL:   time.Hour,
			InitDataMaxAge:   24 * time.Hour,
			AdminTelegramIDs: []int64{900},
		},
		Telegram: config.TelegramConfig{BotToken: testBotToken},
	}
	jwtMgr := jwt.NewManager(&cfg.Auth)
	blacklist := &mockBlacklist{jtis: make(map[string]time.Duration)}

	svc := NewAuthService(cfg, f.repo, jwtMgr, blacklist, zap.NewNop()).(*authService)
	svc.now = func() time.Time { return now }
	return svc, f, jwtMgr, blacklist
}

// signInitData 按 Telegram Web App 规则生成带 hash 的 initData
func signInitData(botToken string, authDate time.Time, tgID int64, firstName, username string) string {
	values := url.Values{}
	values.Set("query_id", "AAHdF6IQAAAAAN0XohDhrOrc")
	values.Set("auth_date", strconv.FormatInt(authDate.Unix(), 10))
	values.Set("user", fmt.Sprintf(`{"id":%d,"first_name":%q,"username":%q}`, tgID, firstName, username))

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+values.Get(k))
	}

	secretMac := hmac.New(sha256.New, []byte("WebAppData"))
	secretMac.Write([]byte(botToken))
	mac := hmac.New(sha256.New, secretMac.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))

	values.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return values.Encode()
}

// ── LoginTelegram ──

func TestLoginTelegram_NewUser(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, f, jwtMgr, _ := setupTestAuthService(now)

	initData := signInitData(testBotToken, now.Add(-time.Minute), 555, "Ali", "ali_uz")
	resp, err := svc.LoginTelegram(context.Background(), &dto.TelegramLoginRequest{InitData: initData})
	if err != nil {
		t.Fatalf("LoginTelegram 应成功: %v", err)
	}
	if resp.User.TelegramID != 555 || resp.User.Name != "Ali" || resp.User.Username != "ali_uz" {
		t.Errorf("用户信息错误: %+v", resp.User)
	}
	if resp.User.Role != model.RoleUser || resp.User.LinksBalance != model.DefaultLinksBalance {
		t.Errorf("新用户默认值错误: %+v", resp.User)
	}
	if resp.ExpiresIn != 3600 {
		t.Errorf("期望 ExpiresIn=3600，实际: %d", resp.ExpiresIn)
	}

	claims, err := jwtMgr.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("签发的 Token 应可解析: %v", err)
	}
	if claims.UserID != resp.User.ID || claims.TelegramID != 555 {
		t.Errorf("Claims 错误: %+v", claims)
	}
	if len(f.users.users) != 1 {
		t.Errorf("应创建 1 个用户，实际: %d", len(f.users.users))
	}
}

func TestLoginTelegram_ExistingUserUpdated(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, f, _, _ := setupTestAuthService(now)
	f.users.add(&model.User{TelegramID: 555, Name: "Old", Role: model.RoleUser, LinksBalance: 1})

	initData := signInitData(testBotToken, now, 555, "Ali", "ali_new")
	resp, err := svc.LoginTelegram(context.Background(), &dto.TelegramLoginRequest{InitData: initData})
	if err != nil {
		t.Fatalf("LoginTelegram 应成功: %v", err)
	}
	if resp.User.Name != "Ali" || resp.User.Username != "ali_new" {
		t.Errorf("资料应被更新: %+v", resp.User)
	}
	if resp.User.LinksBalance != 1 {
		t.Errorf("已有用户的可用次数不应被重置，实际: %d", resp.User.LinksBalance)
	}
	if len(f.users.users) != 1 {
		t.Errorf("不应重复创建用户，实际: %d", len(f.users.users))
	}
}

func TestLoginTelegram_AdminRole(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, _, _, _ := setupTestAuthService(now)

	initData := signInitData(testBotToken, now, 900, "Admin", "")
	resp, err := svc.LoginTelegram(context.Background(), &dto.TelegramLoginRequest{InitData: initData})
	if err != nil {
		t.Fatalf("LoginTelegram 应成功: %v", err)
	}
	if resp.User.Role != model.RoleAdmin {
		t.Errorf("配置中的 Telegram ID 应为管理员，实际: %s", resp.User.Role)
	}
}

func TestLoginTelegram_InvalidInitData(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, _, _, _ := setupTestAuthService(now)
	valid := signInitData(testBotToken, now, 555, "Ali", "ali_uz")

	tests := []struct {
		name     string
		initData string
		want     error
	}{
		{"错误的 Bot Token 签名", signInitData("999:OTHER", now, 555, "Ali", "ali_uz"), ErrInvalidInitData},
		{"篡改用户字段", strings.Replace(valid, "ali_uz", "mallory", 1), ErrInvalidInitData},
		{"缺少 hash", "auth_date=1&user=%7B%7D", ErrInvalidInitData},
		{"无法解析", "%zz", ErrInvalidInitData},
		{"已过期", signInitData(testBotToken, now.Add(-48*time.Hour), 555, "Ali", "ali_uz"), ErrInitDataExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.LoginTelegram(context.Background(), &dto.TelegramLoginRequest{InitData: tt.initData})
			if !errors.Is(err, tt.want) {
				t.Errorf("期望 %v，实际: %v", tt.want, err)
			}
		})
	}
}

func TestLoginTelegram_BotNotConfigured(t *testing.T) {
	now := time.Now()
	svc, _, _, _ := setupTestAuthService(now)
	svc.cfg.Telegram.BotToken = ""

	_, err := svc.LoginTelegram(context.Background(), &dto.TelegramLoginRequest{InitData: "hash=x"})
	if !errors.Is(err, ErrTelegramDisabled) {
		t.Errorf("期望 ErrTelegramDisabled，实际: %v", err)
	}
}

// ── Logout ──

func TestLogout_BlacklistsToken(t *testing.T) {
	now := time.Now()
	svc, _, jwtMgr, blacklist := setupTestAuthService(now)

	token, _ := jwtMgr.GenerateAccessToken(1, 555, model.RoleUser)
	claims, err := jwtMgr.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken 应成功: %v", err)
	}

	if err := svc.Logout(context.Background(), claims); err != nil {
		t.Fatalf("Logout 应成功: %v", err)
	}
	ttl, ok := blacklist.jtis[claims.ID]
	if !ok {
		t.Fatal("Token 应加入黑名单")
	}
	if ttl <= 0 || ttl > time.Hour {
		t.Errorf("黑名单有效期应为 Token 剩余时间，实际: %v", ttl)
	}
}

func TestLogout_NoBlacklist(t *testing.T) {
	f := newFixture()
	cfg := &config.Config{Auth: config.AuthConfig{JWTSecret: "test-secret-key-for-unit-tests", AccessTokenTTL: time.Hour}}
	svc := NewAuthService(cfg, f.repo, jwt.NewManager(&cfg.Auth), nil, zap.NewNop())

	if err := svc.Logout(context.Background(), &jwt.Claims{}); err != nil {
		t.Errorf("未配置黑名单时 Logout 应直接成功: %v", err)
	}
}

// ── Me ──

func TestMe(t *testing.T) {
	svc, f, _, _ := setupTestAuthService(time.Now())
	u := f.users.add(&model.User{TelegramID: 777, Name: "Bek", Role: model.RoleUser, LinksBalance: 2})

	me, err := svc.Me(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("Me 应成功: %v", err)
	}
	if me.Name != "Bek" || me.LinksBalance != 2 {
		t.Errorf("用户信息错误: %+v", me)
	}

	if _, err := svc.Me(context.Background(), 404); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("期望 ErrUserNotFound，实际: %v", err)
	}
}
