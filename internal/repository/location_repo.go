package repository

import (
	"context"

	"gorm.io/gorm"

	"yukyubor/backend/internal/model"
)

// LocationRepository 地点数据访问接口（只读参考数据）
type LocationRepository interface {
	Create(ctx context.Context, loc *model.Location) error
	GetByID(ctx context.Context, id uint) (*model.Location, error)
	List(ctx context.Context) ([]model.Location, error)
	CountByIDs(ctx context.Context, ids []uint) (int64, error)
}

type locationRepo struct {
	db *gorm.DB
}

// NewLocationRepo 创建 LocationRepository 实例
func NewLocationRepo(db *gorm.DB) LocationRepository {
	return &locationRepo{db: db}
}

func (r *locationRepo) Create(ctx context.Context, loc *model.Location) error {
	return r.db.WithContext(ctx).Create(loc).Error
}

func (r *locationRepo) GetByID(ctx context.Context, id uint) (*model.Location, error) {
	var loc model.Location
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&loc).Error
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

func (r *locationRepo) List(ctx context.Context) ([]model.Location, error) {
	var locations []model.Location
	err := r.db.WithContext(ctx).
		Order("type ASC, name ASC").
		Find(&locations).Error
	return locations, err
}

func (r *locationRepo) CountByIDs(ctx context.Context, ids []uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&model.Location{}).
		Where("id IN ?", ids).
		Count(&n).Error
	return n, err
}
