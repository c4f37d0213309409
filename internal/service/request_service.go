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
)

// ── 请求模块业务错误 ──

var (
	ErrRequestNotFound     = pkgerrors.NotFound("请求不存在")
	ErrNotRequestOwner     = pkgerrors.Forbidden("只能操作自己的请求")
	ErrActiveRequestsLimit = pkgerrors.Validation("活跃请求数已达上限，请先关闭已有请求")
	ErrDuplicateRoute      = pkgerrors.Conflict("已存在相同路线和出发日期的请求")
	ErrInvalidDate         = pkgerrors.Validation("日期格式应为 YYYY-MM-DD")
	ErrInvalidDateRange    = pkgerrors.Validation("结束日期不能早于开始日期")
	ErrCannotDelete        = pkgerrors.Validation("已匹配或已完成的请求不能删除")
	ErrCannotClose         = pkgerrors.Validation("只有已匹配的请求可以关闭")
	ErrCannotComplete      = pkgerrors.Validation("只有已匹配的请求可以标记完成")
)

// RequestService 请求生命周期：配额、重复路线、创建与匹配、删除、关闭、完成
type RequestService interface {
	CreateRequest(ctx context.Context, userID uint, t model.RequestType, req *dto.CreateRequestRequest) (*dto.CreateRequestResult, error)
	CheckActiveRequestsLimit(ctx context.Context, userID uint) error
	CheckDuplicateRoute(ctx context.Context, userID, fromLocationID, toLocationID uint, fromDate time.Time, t model.RequestType) error
	CanDeleteRequest(ctx context.Context, ref model.RequestRef) (bool, error)
	CanCloseRequest(ctx context.Context, ref model.RequestRef) (bool, error)
	DeleteRequest(ctx context.Context, ref model.RequestRef, userID uint) error
	CloseRequest(ctx context.Context, ref model.RequestRef, userID uint) error
	CompleteRequest(ctx context.Context, ref model.RequestRef, userID uint) error
	ListMine(ctx context.Context, userID uint) (*dto.MyRequestsResponse, error)
}

type requestService struct {
	repo      *repository.Repository
	matching  MatchingEngine
	responses ResponseService
	notifier  Notifier
	maxActive int
	logger    *zap.Logger
}

// NewRequestService 创建 RequestService 实例
func NewRequestService(
	repo *repository.Repository,
	matching MatchingEngine,
	responses ResponseService,
	notifier Notifier,
	maxActive int,
	logger *zap.Logger,
) RequestService {
	return &requestService{
		repo:      repo,
		matching:  matching,
		responses: responses,
		notifier:  notifier,
		maxActive: maxActive,
		logger:    logger,
	}
}

// ────────────────────── CreateRequest ──────────────────────

func (s *requestService) CreateRequest(ctx context.Context, userID uint, t model.RequestType, req *dto.CreateRequestRequest) (*dto.CreateRequestResult, error) {
	fromDate, err := time.ParseInLocation(dto.DateLayout, req.FromDate, time.UTC)
	if err != nil {
		return nil, ErrInvalidDate
	}
	toDate, err := time.ParseInLocation(dto.DateLayout, req.ToDate, time.UTC)
	if err != nil {
		return nil, ErrInvalidDate
	}
	if toDate.Before(fromDate) {
		return nil, ErrInvalidDateRange
	}
	if req.Price != nil && req.Currency == "" {
		return nil, ErrCurrencyRequired
	}

	n, err := s.repo.Location.CountByIDs(ctx, []uint{req.FromLocationID, req.ToLocationID})
	if err != nil {
		s.logger.Error("校验地点失败", zap.Error(err))
		return nil, err
	}
	if n != 2 {
		return nil, ErrLocationNotFound
	}

	if err := s.CheckActiveRequestsLimit(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.CheckDuplicateRoute(ctx, userID, req.FromLocationID, req.ToLocationID, fromDate, t); err != nil {
		return nil, err
	}

	entity := &model.Request{
		Type:           t,
		UserID:         userID,
		FromLocationID: req.FromLocationID,
		ToLocationID:   req.ToLocationID,
		FromDate:       fromDate,
		ToDate:         toDate,
		SizeType:       req.SizeType,
		Price:          req.Price,
		Currency:       req.Currency,
		Description:    req.Description,
		Status:         model.RequestStatusOpen,
	}
	if err := s.repo.Request.Create(ctx, entity); err != nil {
		s.logger.Error("创建请求失败", zap.String("type", string(t)), zap.Error(err))
		return nil, err
	}

	// 请求已落库，匹配失败只记录日志，不影响创建结果
	matches := 0
	err = s.matching.FindCandidates(ctx, entity, func(c *model.Request) error {
		if _, err := s.responses.CreateMatchingResponse(ctx, entity.UserID, c.UserID, c.Type, entity.ID, c.ID); err != nil {
			if pkgerrors.KindOf(err) == pkgerrors.KindInternal {
				return err
			}
			s.logger.Debug("跳过候选匹配", zap.Uint("candidate_id", c.ID), zap.Error(err))
			return nil
		}
		matches++
		s.notifier.Notify(ctx, c.UserID, "有新的请求与您的行程相匹配，请查看。")
		return nil
	})
	if err != nil {
		s.logger.Warn("匹配过程中断", zap.Uint("request_id", entity.ID), zap.Int("matches", matches), zap.Error(err))
	}

	if fresh, err := s.repo.Request.GetByID(ctx, t, entity.ID); err == nil {
		entity = fresh
	}

	s.logger.Info("请求已创建",
		zap.String("type", string(t)),
		zap.Uint("request_id", entity.ID),
		zap.Uint("user_id", userID),
		zap.Int("matches", matches),
	)

	return &dto.CreateRequestResult{Request: *toRequestResponse(entity), Matches: matches}, nil
}

// ────────────────────── 配额与重复检查 ──────────────────────

func (s *requestService) CheckActiveRequestsLimit(ctx context.Context, userID uint) error {
	n, err := s.repo.Request.CountActiveByUser(ctx, userID)
	if err != nil {
		s.logger.Error("统计活跃请求失败", zap.Uint("user_id", userID), zap.Error(err))
		return err
	}
	if n >= int64(s.maxActive) {
		return ErrActiveRequestsLimit
	}
	return nil
}

func (s *requestService) CheckDuplicateRoute(ctx context.Context, userID, fromLocationID, toLocationID uint, fromDate time.Time, t model.RequestType) error {
	_, err := s.repo.Request.FindActiveByUserAndRoute(ctx, userID, t, fromLocationID, toLocationID, fromDate)
	switch {
	case err == nil:
		return ErrDuplicateRoute
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	default:
		s.logger.Error("检查重复路线失败", zap.Uint("user_id", userID), zap.Error(err))
		return err
	}
}

func (s *requestService) CanDeleteRequest(ctx context.Context, ref model.RequestRef) (bool, error) {
	req, err := s.get(ctx, ref)
	if err != nil {
		return false, err
	}
	return req.CanDelete(), nil
}

func (s *requestService) CanCloseRequest(ctx context.Context, ref model.RequestRef) (bool, error) {
	req, err := s.get(ctx, ref)
	if err != nil {
		return false, err
	}
	return req.CanClose(), nil
}

func (s *requestService) get(ctx context.Context, ref model.RequestRef) (*model.Request, error) {
	req, err := s.repo.Request.GetByID(ctx, ref.Type, ref.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRequestNotFound
		}
		s.logger.Error("查询请求失败", zap.Uint("id", ref.ID), zap.Error(err))
		return nil, err
	}
	return req, nil
}

// ────────────────────── DeleteRequest ──────────────────────

func (s *requestService) DeleteRequest(ctx context.Context, ref model.RequestRef, userID uint) error {
	var notify []uint
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		notify = nil

		req, err := tx.Request.GetByIDForUpdate(ctx, ref.Type, ref.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRequestNotFound
			}
			return err
		}
		if req.UserID != userID {
			return ErrNotRequestOwner
		}
		if !req.CanDelete() {
			return ErrCannotDelete
		}

		resps, err := tx.Response.ListReferencing(ctx, ref)
		if err != nil {
			return err
		}
		var others []model.RequestRef
		seen := map[model.RequestRef]bool{ref: true}
		for i := range resps {
			r := &resps[i]
			for _, other := range r.Refs() {
				if !seen[other] {
					seen[other] = true
					others = append(others, other)
				}
			}
			if r.IsActive() {
				notify = append(notify, counterpartyOf(r, userID))
			}
		}

		if _, err := tx.Response.DeleteReferencing(ctx, ref); err != nil {
			return err
		}
		if err := tx.Request.Delete(ctx, ref.Type, ref.ID); err != nil {
			return err
		}
		for _, other := range others {
			if err := s.responses.RecomputeRequestStatus(ctx, tx, other); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if pkgerrors.KindOf(err) == pkgerrors.KindInternal {
			s.logger.Error("删除请求失败", zap.Uint("id", ref.ID), zap.Error(err))
		}
		return err
	}

	for _, uid := range dedupe(notify) {
		s.notifier.Notify(ctx, uid, "对方已删除请求，相关匹配已失效。")
	}
	return nil
}

// ────────────────────── CloseRequest / CompleteRequest ──────────────────────

func (s *requestService) CloseRequest(ctx context.Context, ref model.RequestRef, userID uint) error {
	return s.finish(ctx, ref, userID, model.RequestStatusClosed)
}

func (s *requestService) CompleteRequest(ctx context.Context, ref model.RequestRef, userID uint) error {
	return s.finish(ctx, ref, userID, model.RequestStatusCompleted)
}

// finish 将已匹配的请求及其对侧请求一并转入 closed / completed，同步聊天状态
// closed 时相关的未拒绝响应一并关闭；completed 时响应保持不变
func (s *requestService) finish(ctx context.Context, ref model.RequestRef, userID uint, target string) error {
	guardErr, chatStatus := ErrCannotClose, model.ChatClosed
	if target == model.RequestStatusCompleted {
		guardErr, chatStatus = ErrCannotComplete, model.ChatCompleted
	}

	var notify []uint
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		notify = nil

		req, err := tx.Request.GetByID(ctx, ref.Type, ref.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRequestNotFound
			}
			return err
		}
		if req.UserID != userID {
			return ErrNotRequestOwner
		}

		refs := []model.RequestRef{ref}
		if req.MatchedCounterpartID != nil {
			refs = append(refs, model.RequestRef{Type: ref.Type.Opposite(), ID: *req.MatchedCounterpartID})
		}

		// 按寄件 → 带件的顺序加锁后再校验状态
		locked := make(map[model.RequestRef]*model.Request, len(refs))
		for _, r := range lockOrder(refs) {
			row, err := tx.Request.GetByIDForUpdate(ctx, r.Type, r.ID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) && r != ref {
					continue // 对侧请求已不存在
				}
				return err
			}
			locked[r] = row
		}
		if main, ok := locked[ref]; !ok || !main.CanClose() {
			return guardErr
		}

		var chatIDs []uint
		for r, row := range locked {
			if r != ref && !row.IsMatched() {
				continue
			}
			if err := tx.Request.UpdateStatus(ctx, r.Type, r.ID, target); err != nil {
				return err
			}

			accepted, err := tx.Response.ListReferencing(ctx, r, model.ResponseStatusAccepted)
			if err != nil {
				return err
			}
			for i := range accepted {
				if accepted[i].ChatID != nil {
					chatIDs = append(chatIDs, *accepted[i].ChatID)
				}
				notify = append(notify, counterpartyOf(&accepted[i], userID))
			}

			if target == model.RequestStatusClosed {
				if _, err := tx.Response.CloseReferencing(ctx, r); err != nil {
					return err
				}
			}
		}

		return tx.Chat.UpdateStatus(ctx, dedupe(chatIDs), chatStatus)
	})
	if err != nil {
		if pkgerrors.KindOf(err) == pkgerrors.KindInternal {
			s.logger.Error("结束请求失败", zap.Uint("id", ref.ID), zap.String("target", target), zap.Error(err))
		}
		return err
	}

	text := "对方已关闭请求。"
	if target == model.RequestStatusCompleted {
		text = "对方已将请求标记为完成。"
	}
	for _, uid := range dedupe(notify) {
		if uid != userID {
			s.notifier.Notify(ctx, uid, text)
		}
	}
	return nil
}

// ────────────────────── ListMine ──────────────────────

func (s *requestService) ListMine(ctx context.Context, userID uint) (*dto.MyRequestsResponse, error) {
	reqs, err := s.repo.Request.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("列出请求失败", zap.Uint("user_id", userID), zap.Error(err))
		return nil, err
	}

	out := &dto.MyRequestsResponse{
		Send:     make([]dto.RequestResponse, 0),
		Delivery: make([]dto.RequestResponse, 0),
	}
	for i := range reqs {
		item := *toRequestResponse(&reqs[i])
		if reqs[i].Type == model.RequestSend {
			out.Send = append(out.Send, item)
		} else {
			out.Delivery = append(out.Delivery, item)
		}
	}
	return out, nil
}

// ── 辅助函数 ──

// counterpartyOf 响应中除 userID 之外的一方
func counterpartyOf(r *model.Response, userID uint) uint {
	if r.UserID == userID {
		return r.ResponderID
	}
	return r.UserID
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func toRequestResponse(r *model.Request) *dto.RequestResponse {
	return &dto.RequestResponse{
		ID:                   r.ID,
		Type:                 string(r.Type),
		UserID:               r.UserID,
		FromLocationID:       r.FromLocationID,
		ToLocationID:         r.ToLocationID,
		FromDate:             r.FromDate.Format(dto.DateLayout),
		ToDate:               r.ToDate.Format(dto.DateLayout),
		SizeType:             r.SizeType,
		Price:                r.Price,
		Currency:             r.Currency,
		Description:          r.Description,
		Status:               r.Status,
		MatchedCounterpartID: r.MatchedCounterpartID,
		CreatedAt:            r.CreatedAt.Format(time.RFC3339),
	}
}
