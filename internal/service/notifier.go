package service

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"yukyubor/backend/config"
	"yukyubor/backend/internal/repository"
)

// Notifier 通知网关：尽力投递，不阻塞、不影响业务事务
type Notifier interface {
	// Notify 提交一条通知，返回是否已被接受投递
	Notify(ctx context.Context, userID uint, text string) bool
	// Close 停止接收新通知并等待队列中的通知处理完毕
	Close()
}

// ────────────────────── 日志通知（未配置 Bot Token 时使用） ──────────────────────

type logNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier 只记录日志的通知实现
func NewLogNotifier(logger *zap.Logger) Notifier {
	return &logNotifier{logger: logger}
}

func (n *logNotifier) Notify(_ context.Context, userID uint, text string) bool {
	n.logger.Info("通知（未启用 Telegram）", zap.Uint("user_id", userID), zap.String("text", text))
	return true
}

func (n *logNotifier) Close() {}

// ────────────────────── Telegram 通知 ──────────────────────

// messageSender 抽象 Bot API 的发送能力，*tgbotapi.BotAPI 即满足
type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type notification struct {
	userID uint
	text   string
}

type telegramNotifier struct {
	sender  messageSender
	repo    *repository.Repository
	cfg     config.TelegramConfig
	logger  *zap.Logger
	queue   chan notification
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	timeout time.Duration
}

// NewTelegramNotifier 创建 Telegram 通知网关并启动投递协程
func NewTelegramNotifier(cfg config.TelegramConfig, repo *repository.Repository, logger *zap.Logger) (Notifier, error) {
	client := &http.Client{Timeout: cfg.SendTimeout}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("创建 Telegram Bot 失败: %w", err)
	}
	logger.Info("Telegram Bot 已连接", zap.String("bot", api.Self.UserName))

	return newTelegramNotifier(api, cfg, repo, logger), nil
}

func newTelegramNotifier(sender messageSender, cfg config.TelegramConfig, repo *repository.Repository, logger *zap.Logger) *telegramNotifier {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	n := &telegramNotifier{
		sender:  sender,
		repo:    repo,
		cfg:     cfg,
		logger:  logger,
		queue:   make(chan notification, queueSize),
		timeout: timeout,
	}
	for i := 0; i < workers; i++ {
		n.wg.Add(1)
		go n.worker()
	}
	return n
}

func (n *telegramNotifier) Notify(_ context.Context, userID uint, text string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return false
	}

	select {
	case n.queue <- notification{userID: userID, text: text}:
		return true
	default:
		n.logger.Warn("通知队列已满，丢弃通知", zap.Uint("user_id", userID))
		return false
	}
}

func (n *telegramNotifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()

	n.wg.Wait()
}

func (n *telegramNotifier) worker() {
	defer n.wg.Done()
	for msg := range n.queue {
		n.deliver(msg)
	}
}

// deliver 查找用户的 Telegram ID 并发送，失败时按配置重试
func (n *telegramNotifier) deliver(msg notification) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	user, err := n.repo.User.GetByID(ctx, msg.userID)
	cancel()
	if err != nil {
		n.logger.Warn("通知投递失败：查询用户失败", zap.Uint("user_id", msg.userID), zap.Error(err))
		return
	}

	out := tgbotapi.NewMessage(user.TelegramID, msg.text)
	for attempt := 0; attempt <= n.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(n.cfg.RetryInterval)
		}
		if _, err = n.sender.Send(out); err == nil {
			return
		}
	}
	n.logger.Warn("通知投递失败",
		zap.Uint("user_id", msg.userID),
		zap.Int("attempts", n.cfg.MaxRetries+1),
		zap.Error(err),
	)
}
