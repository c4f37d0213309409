package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"yukyubor/backend/internal/dto"
	"yukyubor/backend/internal/model"
	"yukyubor/backend/pkg/redis"
)

// ── Mock JSONCache ──

type mockCache struct {
	data   map[string][]byte
	getErr error
	setErr error
	sets   int
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (c *mockCache) GetJSON(_ context.Context, key string, dest interface{}) error {
	if c.getErr != nil {
		return c.getErr
	}
	raw, ok := c.data[key]
	if !ok {
		return redis.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *mockCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if c.setErr != nil {
		return c.setErr
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.sets++
	c.data[key] = raw
	return nil
}

// ── 测试辅助 ──

func setupTestLocationService(cache JSONCache) (LocationService, *mockLocationRepo) {
	f := newFixture()
	ctx := context.Background()
	uz := uint(1)
	_ = f.locations.Create(ctx, &model.Location{ID: 1, Name: "Uzbekistan", Type: model.LocationCountry})
	_ = f.locations.Create(ctx, &model.Location{ID: 2, Name: "Tashkent", ParentID: &uz, Type: model.LocationCity})
	_ = f.locations.Create(ctx, &model.Location{ID: 3, Name: "Samarkand", ParentID: &uz, Type: model.LocationCity})

	svc := NewLocationService(f.repo, cache, time.Hour, zap.NewNop())
	return svc, f.locations
}

// ── List ──

func TestLocationService_List_NoCache(t *testing.T) {
	svc, repo := setupTestLocationService(nil)

	list, err := svc.List(context.Background(), nil)
	if err != nil {
		t.Fatalf("List 应成功: %v", err)
	}
	if len(list) != 3 {
		t.Errorf("期望 3 个地点，实际: %d", len(list))
	}
	if repo.listCalls != 1 {
		t.Errorf("无缓存时应直接查库，实际查询次数: %d", repo.listCalls)
	}
}

func TestLocationService_List_FilterByType(t *testing.T) {
	svc, _ := setupTestLocationService(nil)

	list, err := svc.List(context.Background(), &dto.LocationListRequest{Type: model.LocationCity})
	if err != nil {
		t.Fatalf("List 应成功: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("期望 2 个城市，实际: %d", len(list))
	}
	for _, loc := range list {
		if loc.Type != model.LocationCity || loc.ParentID == nil {
			t.Errorf("过滤结果错误: %+v", loc)
		}
	}
}

func TestLocationService_List_CacheMissThenHit(t *testing.T) {
	cache := newMockCache()
	svc, repo := setupTestLocationService(cache)
	ctx := context.Background()

	if _, err := svc.List(ctx, nil); err != nil {
		t.Fatalf("List 应成功: %v", err)
	}
	if cache.sets != 1 {
		t.Fatalf("未命中后应写入缓存，实际写入次数: %d", cache.sets)
	}

	list, err := svc.List(ctx, nil)
	if err != nil {
		t.Fatalf("List 应成功: %v", err)
	}
	if len(list) != 3 {
		t.Errorf("缓存结果应有 3 个地点，实际: %d", len(list))
	}
	if repo.listCalls != 1 {
		t.Errorf("命中缓存时不应查库，实际查询次数: %d", repo.listCalls)
	}
}

func TestLocationService_List_CacheUnavailable(t *testing.T) {
	cache := newMockCache()
	cache.getErr = errors.New("dial tcp: connection refused")
	cache.setErr = errors.New("dial tcp: connection refused")
	svc, repo := setupTestLocationService(cache)

	list, err := svc.List(context.Background(), nil)
	if err != nil {
		t.Fatalf("缓存不可用时应降级查库: %v", err)
	}
	if len(list) != 3 || repo.listCalls != 1 {
		t.Errorf("降级结果错误: %d 个地点，查询 %d 次", len(list), repo.listCalls)
	}
}

// ── GetByID ──

func TestLocationService_GetByID(t *testing.T) {
	svc, _ := setupTestLocationService(nil)

	loc, err := svc.GetByID(context.Background(), 2)
	if err != nil {
		t.Fatalf("GetByID 应成功: %v", err)
	}
	if loc.Name != "Tashkent" {
		t.Errorf("期望 Tashkent，实际: %s", loc.Name)
	}

	if _, err := svc.GetByID(context.Background(), 99); !errors.Is(err, ErrLocationNotFound) {
		t.Errorf("期望 ErrLocationNotFound，实际: %v", err)
	}
}
