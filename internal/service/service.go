package service

import (
	"go.uber.org/zap"

	"yukyubor/backend/config"
	"yukyubor/backend/internal/repository"
	"yukyubor/backend/pkg/jwt"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth     AuthService
	Location LocationService
	Matching MatchingEngine
	Response ResponseService
	Request  RequestService
	Export   ExportService
	Notifier Notifier
}

// Deps 外部依赖，可选项为 nil 时对应能力降级
type Deps struct {
	Notifier  Notifier
	Cache     JSONCache
	Blacklist TokenBlacklist
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	deps Deps,
	logger *zap.Logger,
) *Service {
	notifier := deps.Notifier
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}

	matching := NewMatchingEngine(repo, cfg.Matching.CandidateBatch, logger)
	responses := NewResponseService(repo, NewChatBridge(logger), notifier, logger)

	return &Service{
		Auth:     NewAuthService(cfg, repo, jwtMgr, deps.Blacklist, logger),
		Location: NewLocationService(repo, deps.Cache, cfg.Cache.LocationTTL, logger),
		Matching: matching,
		Response: responses,
		Request:  NewRequestService(repo, matching, responses, notifier, cfg.Matching.MaxActiveRequests, logger),
		Export:   NewExportService(repo, logger),
		Notifier: notifier,
	}
}
