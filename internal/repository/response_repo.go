package repository

import (
	"context"

	"github.com/Masterminds/squirrel"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"yukyubor/backend/internal/model"
	pkgerrors "yukyubor/backend/pkg/errors"
)

// ResponseRepository 响应数据访问接口
type ResponseRepository interface {
	Create(ctx context.Context, resp *model.Response) error
	GetByID(ctx context.Context, id uint) (*model.Response, error)
	// GetByIDForUpdate 读取并加行锁，须在事务中调用
	GetByIDForUpdate(ctx context.Context, id uint) (*model.Response, error)
	// FindByKey 按组合标识查找最新一条自动匹配响应
	FindByKey(ctx context.Context, key model.ResponseKey) (*model.Response, error)
	// FindActiveMatching 查找同一配对下未拒绝、未关闭的自动匹配响应
	FindActiveMatching(ctx context.Context, offerType model.RequestType, offerID, requestID uint) (*model.Response, error)
	// FindManual 查找响应人对目标请求最新一条手动响应（任意状态）
	FindManual(ctx context.Context, responderID uint, offerType model.RequestType, offerID uint) (*model.Response, error)
	// ListReferencing 列出涉及某请求的响应；statuses 为空时不过滤状态
	ListReferencing(ctx context.Context, ref model.RequestRef, statuses ...string) ([]model.Response, error)

	// UpdateState 条件更新：仅当总体状态仍属 expected 时写入，否则返回 ErrStaleState
	UpdateState(ctx context.Context, resp *model.Response, expected ...string) error
	// RejectActiveReferencing 将涉及某请求的 pending / partial 响应全部拒绝，exceptID 除外
	RejectActiveReferencing(ctx context.Context, ref model.RequestRef, exceptID uint) (int64, error)
	// CloseReferencing 将涉及某请求的未拒绝响应置为 closed
	CloseReferencing(ctx context.Context, ref model.RequestRef) (int64, error)
	DeleteReferencing(ctx context.Context, ref model.RequestRef) (int64, error)
	Delete(ctx context.Context, id uint) error

	ListForUser(ctx context.Context, userID uint) ([]model.Response, error)
	ListAll(ctx context.Context) ([]model.Response, error)
}

type responseRepo struct {
	db *gorm.DB
}

// NewResponseRepo 创建 ResponseRepository 实例
func NewResponseRepo(db *gorm.DB) ResponseRepository {
	return &responseRepo{db: db}
}

// referencing 响应以提供方（offer）或接收方（自动匹配的 request_id）身份涉及 ref
func referencing(ref model.RequestRef) squirrel.Or {
	return squirrel.Or{
		squirrel.And{
			squirrel.Eq{"offer_type": string(ref.Type)},
			squirrel.Eq{"offer_id": ref.ID},
		},
		squirrel.And{
			squirrel.Eq{"response_type": model.ResponseTypeMatching},
			squirrel.NotEq{"offer_type": string(ref.Type)},
			squirrel.Eq{"request_id": ref.ID},
		},
	}
}

func (r *responseRepo) whereReferencing(ctx context.Context, ref model.RequestRef, extra ...squirrel.Sqlizer) (*gorm.DB, error) {
	cond := squirrel.And{referencing(ref)}
	cond = append(cond, extra...)
	where, args, err := cond.ToSql()
	if err != nil {
		return nil, err
	}
	return r.db.WithContext(ctx).Model(&model.Response{}).Where(where, args...), nil
}

func (r *responseRepo) Create(ctx context.Context, resp *model.Response) error {
	return r.db.WithContext(ctx).Create(resp).Error
}

func (r *responseRepo) GetByID(ctx context.Context, id uint) (*model.Response, error) {
	var resp model.Response
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&resp).Error
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r *responseRepo) GetByIDForUpdate(ctx context.Context, id uint) (*model.Response, error) {
	var resp model.Response
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&resp).Error
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r *responseRepo) FindByKey(ctx context.Context, key model.ResponseKey) (*model.Response, error) {
	var resp model.Response
	err := r.db.WithContext(ctx).
		Where("response_type = ? AND offer_type = ? AND offer_id = ? AND request_id = ?",
			model.ResponseTypeMatching, string(key.OfferType), key.OfferID, key.RequestID).
		Order("id DESC").
		First(&resp).Error
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r *responseRepo) FindActiveMatching(ctx context.Context, offerType model.RequestType, offerID, requestID uint) (*model.Response, error) {
	var resp model.Response
	err := r.db.WithContext(ctx).
		Where("response_type = ? AND offer_type = ? AND offer_id = ? AND request_id = ? AND overall_status NOT IN ?",
			model.ResponseTypeMatching, string(offerType), offerID, requestID,
			[]string{model.ResponseStatusRejected, model.ResponseStatusClosed}).
		First(&resp).Error
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r *responseRepo) FindManual(ctx context.Context, responderID uint, offerType model.RequestType, offerID uint) (*model.Response, error) {
	var resp model.Response
	err := r.db.WithContext(ctx).
		Where("response_type = ? AND responder_id = ? AND offer_type = ? AND offer_id = ?",
			model.ResponseTypeManual, responderID, string(offerType), offerID).
		Order("id DESC").
		First(&resp).Error
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r *responseRepo) ListReferencing(ctx context.Context, ref model.RequestRef, statuses ...string) ([]model.Response, error) {
	var extra []squirrel.Sqlizer
	if len(statuses) > 0 {
		extra = append(extra, squirrel.Eq{"overall_status": statuses})
	}
	db, err := r.whereReferencing(ctx, ref, extra...)
	if err != nil {
		return nil, err
	}
	var resps []model.Response
	err = db.Order("id ASC").Find(&resps).Error
	return resps, err
}

// ────────────────────── 状态写入 ──────────────────────

func (r *responseRepo) UpdateState(ctx context.Context, resp *model.Response, expected ...string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Response{}).
		Where("id = ? AND overall_status IN ?", resp.ID, expected).
		Updates(map[string]interface{}{
			"deliverer_status": resp.DelivererStatus,
			"sender_status":    resp.SenderStatus,
			"overall_status":   resp.OverallStatus,
			"chat_id":          resp.ChatID,
			"message":          resp.Message,
			"amount":           resp.Amount,
			"currency":         resp.Currency,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrStaleState
	}
	return nil
}

func (r *responseRepo) RejectActiveReferencing(ctx context.Context, ref model.RequestRef, exceptID uint) (int64, error) {
	db, err := r.whereReferencing(ctx, ref,
		squirrel.Eq{"overall_status": []string{model.ResponseStatusPending, model.ResponseStatusPartial}},
		squirrel.NotEq{"id": exceptID},
	)
	if err != nil {
		return 0, err
	}
	result := db.Updates(map[string]interface{}{
		"deliverer_status": model.ResponseStatusRejected,
		"sender_status":    model.ResponseStatusRejected,
		"overall_status":   model.ResponseStatusRejected,
	})
	return result.RowsAffected, result.Error
}

func (r *responseRepo) CloseReferencing(ctx context.Context, ref model.RequestRef) (int64, error) {
	db, err := r.whereReferencing(ctx, ref,
		squirrel.NotEq{"overall_status": []string{model.ResponseStatusRejected, model.ResponseStatusClosed}},
	)
	if err != nil {
		return 0, err
	}
	result := db.Update("overall_status", model.ResponseStatusClosed)
	return result.RowsAffected, result.Error
}

func (r *responseRepo) DeleteReferencing(ctx context.Context, ref model.RequestRef) (int64, error) {
	db, err := r.whereReferencing(ctx, ref)
	if err != nil {
		return 0, err
	}
	result := db.Delete(&model.Response{})
	return result.RowsAffected, result.Error
}

func (r *responseRepo) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&model.Response{}).Error
}

// ────────────────────── 列表 ──────────────────────

func (r *responseRepo) ListForUser(ctx context.Context, userID uint) ([]model.Response, error) {
	var resps []model.Response
	err := r.db.WithContext(ctx).
		Where("user_id = ? OR responder_id = ?", userID, userID).
		Order("updated_at DESC, id DESC").
		Find(&resps).Error
	return resps, err
}

func (r *responseRepo) ListAll(ctx context.Context) ([]model.Response, error) {
	var resps []model.Response
	err := r.db.WithContext(ctx).
		Order("id ASC").
		Find(&resps).Error
	return resps, err
}
