package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"yukyubor/backend/internal/dto"
	"yukyubor/backend/internal/model"
	"yukyubor/backend/internal/repository"
	pkgerrors "yukyubor/backend/pkg/errors"
	"yukyubor/backend/pkg/redis"
)

// ── 地点模块业务错误 ──

var (
	ErrLocationNotFound = pkgerrors.NotFound("地点不存在")
)

const locationCacheKey = "ref:locations:all"

// JSONCache 参考数据缓存，*redis.Client 即满足
type JSONCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// LocationService 地点参考数据（只读，带缓存）
type LocationService interface {
	List(ctx context.Context, req *dto.LocationListRequest) ([]dto.LocationResponse, error)
	GetByID(ctx context.Context, id uint) (*dto.LocationResponse, error)
}

type locationService struct {
	repo   *repository.Repository
	cache  JSONCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewLocationService 创建 LocationService 实例；cache 为 nil 时直接读库
func NewLocationService(repo *repository.Repository, cache JSONCache, ttl time.Duration, logger *zap.Logger) LocationService {
	return &locationService{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// ────────────────────── List ──────────────────────

func (s *locationService) List(ctx context.Context, req *dto.LocationListRequest) ([]dto.LocationResponse, error) {
	all, err := s.all(ctx)
	if err != nil {
		return nil, err
	}

	if req == nil || req.Type == "" {
		return all, nil
	}
	result := make([]dto.LocationResponse, 0, len(all))
	for _, loc := range all {
		if loc.Type == req.Type {
			result = append(result, loc)
		}
	}
	return result, nil
}

// ────────────────────── GetByID ──────────────────────

func (s *locationService) GetByID(ctx context.Context, id uint) (*dto.LocationResponse, error) {
	loc, err := s.repo.Location.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLocationNotFound
		}
		s.logger.Error("查询地点失败", zap.Uint("id", id), zap.Error(err))
		return nil, err
	}

	return toLocationResponse(loc), nil
}

// all 优先读缓存；缓存不可用时降级为直接查库
func (s *locationService) all(ctx context.Context) ([]dto.LocationResponse, error) {
	if s.cache != nil {
		var cached []dto.LocationResponse
		err := s.cache.GetJSON(ctx, locationCacheKey, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, redis.ErrCacheMiss) {
			s.logger.Warn("读取地点缓存失败", zap.Error(err))
		}
	}

	locations, err := s.repo.Location.List(ctx)
	if err != nil {
		s.logger.Error("列出地点失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.LocationResponse, 0, len(locations))
	for i := range locations {
		result = append(result, *toLocationResponse(&locations[i]))
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, locationCacheKey, result, s.ttl); err != nil {
			s.logger.Warn("写入地点缓存失败", zap.Error(err))
		}
	}
	return result, nil
}

func toLocationResponse(loc *model.Location) *dto.LocationResponse {
	return &dto.LocationResponse{
		ID:       loc.ID,
		Name:     loc.Name,
		ParentID: loc.ParentID,
		Type:     loc.Type,
	}
}
