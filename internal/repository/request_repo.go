package repository

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"yukyubor/backend/internal/model"
)

// RequestRepository 寄件 / 带件请求数据访问接口
// 两类请求列结构相同，按 model.RequestType 选择数据表
type RequestRepository interface {
	Create(ctx context.Context, req *model.Request) error
	GetByID(ctx context.Context, t model.RequestType, id uint) (*model.Request, error)
	// GetByIDForUpdate 读取并加行锁，须在事务中调用
	GetByIDForUpdate(ctx context.Context, t model.RequestType, id uint) (*model.Request, error)
	UpdateStatus(ctx context.Context, t model.RequestType, id uint, status string) error
	// UpdateMatchableStatus 仅当请求仍为 open / has_responses 时写入新状态，已匹配或已终结的请求不受影响
	UpdateMatchableStatus(ctx context.Context, t model.RequestType, id uint, status string) error
	// MarkMatched 状态置为 matched / matched_manually 并记录对侧请求
	MarkMatched(ctx context.Context, t model.RequestType, id uint, status string, counterpartID *uint) error
	Delete(ctx context.Context, t model.RequestType, id uint) error

	// EachCandidate 分批遍历与 req 可匹配的对侧请求，visit 返回错误时终止
	EachCandidate(ctx context.Context, req *model.Request, batchSize int, visit func(candidate *model.Request) error) error
	// CountActiveByUser 统计用户在两张表中未关闭的请求数
	CountActiveByUser(ctx context.Context, userID uint) (int64, error)
	// FindActiveByUserAndRoute 查找同类型、同路线、同出发日期的未关闭请求
	FindActiveByUserAndRoute(ctx context.Context, userID uint, t model.RequestType, fromLocationID, toLocationID uint, fromDate time.Time) (*model.Request, error)

	ListByUser(ctx context.Context, userID uint) ([]model.Request, error)
	ListAll(ctx context.Context, t model.RequestType) ([]model.Request, error)
}

type requestRepo struct {
	db *gorm.DB
}

// NewRequestRepo 创建 RequestRepository 实例
func NewRequestRepo(db *gorm.DB) RequestRepository {
	return &requestRepo{db: db}
}

func (r *requestRepo) table(ctx context.Context, t model.RequestType) *gorm.DB {
	return r.db.WithContext(ctx).Table(t.Table())
}

func (r *requestRepo) Create(ctx context.Context, req *model.Request) error {
	return r.table(ctx, req.Type).Create(req).Error
}

func (r *requestRepo) GetByID(ctx context.Context, t model.RequestType, id uint) (*model.Request, error) {
	var req model.Request
	err := r.table(ctx, t).
		Where("id = ?", id).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	req.Type = t
	return &req, nil
}

func (r *requestRepo) GetByIDForUpdate(ctx context.Context, t model.RequestType, id uint) (*model.Request, error) {
	var req model.Request
	err := r.table(ctx, t).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	req.Type = t
	return &req, nil
}

func (r *requestRepo) UpdateStatus(ctx context.Context, t model.RequestType, id uint, status string) error {
	return r.table(ctx, t).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}

func (r *requestRepo) UpdateMatchableStatus(ctx context.Context, t model.RequestType, id uint, status string) error {
	return r.table(ctx, t).
		Where("id = ? AND status IN ?", id, []string{model.RequestStatusOpen, model.RequestStatusHasResponses}).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}

func (r *requestRepo) MarkMatched(ctx context.Context, t model.RequestType, id uint, status string, counterpartID *uint) error {
	return r.table(ctx, t).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":                 status,
			"matched_counterpart_id": counterpartID,
			"updated_at":             time.Now(),
		}).Error
}

func (r *requestRepo) Delete(ctx context.Context, t model.RequestType, id uint) error {
	return r.table(ctx, t).
		Where("id = ?", id).
		Delete(&model.Request{}).Error
}

// ────────────────────── 匹配查询 ──────────────────────

// candidatePredicate 同路线、日期区间相交、尺寸兼容、仍可匹配、非本人
func candidatePredicate(req *model.Request) (string, []interface{}, error) {
	cond := squirrel.And{
		squirrel.Eq{"from_location_id": req.FromLocationID},
		squirrel.Eq{"to_location_id": req.ToLocationID},
		squirrel.LtOrEq{"from_date": req.ToDate},
		squirrel.GtOrEq{"to_date": req.FromDate},
		squirrel.Eq{"status": []string{model.RequestStatusOpen, model.RequestStatusHasResponses}},
		squirrel.NotEq{"user_id": req.UserID},
	}
	if !req.SizeUnset() {
		cond = append(cond, squirrel.Eq{"size_type": []string{req.SizeType, "", model.SizeNotSpecified}})
	}
	return cond.ToSql()
}

func (r *requestRepo) EachCandidate(ctx context.Context, req *model.Request, batchSize int, visit func(candidate *model.Request) error) error {
	where, args, err := candidatePredicate(req)
	if err != nil {
		return err
	}

	candidateType := req.Type.Opposite()
	var batch []model.Request
	return r.table(ctx, candidateType).
		Where(where, args...).
		FindInBatches(&batch, batchSize, func(_ *gorm.DB, _ int) error {
			for i := range batch {
				batch[i].Type = candidateType
				if err := visit(&batch[i]); err != nil {
					return err
				}
			}
			return nil
		}).Error
}

// ────────────────────── 配额与重复检查 ──────────────────────

func (r *requestRepo) CountActiveByUser(ctx context.Context, userID uint) (int64, error) {
	var total int64
	for _, t := range []model.RequestType{model.RequestSend, model.RequestDelivery} {
		var n int64
		err := r.table(ctx, t).
			Where("user_id = ? AND status != ?", userID, model.RequestStatusClosed).
			Count(&n).Error
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func (r *requestRepo) FindActiveByUserAndRoute(ctx context.Context, userID uint, t model.RequestType, fromLocationID, toLocationID uint, fromDate time.Time) (*model.Request, error) {
	where, args, err := squirrel.And{
		squirrel.Eq{"user_id": userID},
		squirrel.Eq{"from_location_id": fromLocationID},
		squirrel.Eq{"to_location_id": toLocationID},
		squirrel.Eq{"from_date": fromDate},
		squirrel.NotEq{"status": model.RequestStatusClosed},
	}.ToSql()
	if err != nil {
		return nil, err
	}

	var req model.Request
	err = r.table(ctx, t).
		Where(where, args...).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	req.Type = t
	return &req, nil
}

// ────────────────────── 列表 ──────────────────────

func (r *requestRepo) ListByUser(ctx context.Context, userID uint) ([]model.Request, error) {
	var all []model.Request
	for _, t := range []model.RequestType{model.RequestSend, model.RequestDelivery} {
		var reqs []model.Request
		err := r.table(ctx, t).
			Where("user_id = ?", userID).
			Order("created_at DESC").
			Find(&reqs).Error
		if err != nil {
			return nil, err
		}
		for i := range reqs {
			reqs[i].Type = t
		}
		all = append(all, reqs...)
	}
	return all, nil
}

func (r *requestRepo) ListAll(ctx context.Context, t model.RequestType) ([]model.Request, error) {
	var reqs []model.Request
	err := r.table(ctx, t).
		Order("id ASC").
		Find(&reqs).Error
	if err != nil {
		return nil, err
	}
	for i := range reqs {
		reqs[i].Type = t
	}
	return reqs, nil
}
