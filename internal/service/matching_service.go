package service

import (
	"context"

	"go.uber.org/zap"

	"yukyubor/backend/internal/model"
	"yukyubor/backend/internal/repository"
)

const defaultCandidateBatch = 100

// MatchingEngine 只读的候选匹配查找
type MatchingEngine interface {
	// FindCandidates 对 req 逐个回调可匹配的对侧请求；每次调用都重新查询，不保证顺序
	FindCandidates(ctx context.Context, req *model.Request, visit func(candidate *model.Request) error) error
}

type matchingEngine struct {
	repo      *repository.Repository
	batchSize int
	logger    *zap.Logger
}

// NewMatchingEngine 创建 MatchingEngine 实例
func NewMatchingEngine(repo *repository.Repository, batchSize int, logger *zap.Logger) MatchingEngine {
	if batchSize <= 0 {
		batchSize = defaultCandidateBatch
	}
	return &matchingEngine{repo: repo, batchSize: batchSize, logger: logger}
}

func (e *matchingEngine) FindCandidates(ctx context.Context, req *model.Request, visit func(candidate *model.Request) error) error {
	err := e.repo.Request.EachCandidate(ctx, req, e.batchSize, visit)
	if err != nil {
		e.logger.Error("查询候选匹配失败",
			zap.String("type", string(req.Type)),
			zap.Uint("request_id", req.ID),
			zap.Error(err),
		)
	}
	return err
}
