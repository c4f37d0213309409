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

// ── 响应模块业务错误 ──

var (
	ErrResponseNotFound   = pkgerrors.NotFound("响应不存在")
	ErrNotEntitled        = pkgerrors.Forbidden("无权操作该响应")
	ErrResponseNotActive  = pkgerrors.Validation("响应已结束，无法继续操作")
	ErrAlreadyActed       = pkgerrors.Validation("您已处理过该响应")
	ErrRequestUnavailable = pkgerrors.Conflict("请求已被匹配或已关闭")
	ErrSelfResponse       = pkgerrors.Validation("不能响应自己的请求")
	ErrDuplicateResponse  = pkgerrors.Conflict("已存在未处理的响应")
	ErrTargetNotOpen      = pkgerrors.Validation("目标请求当前不接受响应")
	ErrCurrencyRequired   = pkgerrors.Validation("填写金额时必须指定币种")
	ErrInvalidAction      = pkgerrors.Validation("无效的操作")
)

// Action 参与方对响应的操作
type Action int

const (
	ActionAccept Action = iota + 1
	ActionReject
)

// ParseAction 解析 accept / reject
func ParseAction(s string) (Action, bool) {
	switch s {
	case "accept":
		return ActionAccept, true
	case "reject":
		return ActionReject, true
	}
	return 0, false
}

// ResponseService 响应生命周期：创建、接受 / 拒绝、撤回与请求状态重算
type ResponseService interface {
	// CreateMatchingResponse 为一对可匹配请求创建自动匹配响应；同一配对已有活跃响应时直接返回
	CreateMatchingResponse(ctx context.Context, receivingUserID, offeringUserID uint, offerType model.RequestType, requestID, offerID uint) (*model.Response, error)
	CreateManualResponse(ctx context.Context, responderID uint, target model.RequestRef, req *dto.CreateManualResponseRequest) (*dto.ResponseItem, error)
	ApplyAction(ctx context.Context, responseID, actingUserID uint, action Action) (*dto.ResponseItem, error)
	ApplyActionByKey(ctx context.Context, key model.ResponseKey, actingUserID uint, action Action) (*dto.ResponseItem, error)
	CancelResponse(ctx context.Context, responseID, actingUserID uint) error
	// RecomputeRequestStatus 在 tx 内按当前活跃响应重算请求的 open / has_responses
	RecomputeRequestStatus(ctx context.Context, tx *repository.Repository, ref model.RequestRef) error
	ListForUser(ctx context.Context, userID uint) ([]dto.ResponseItem, error)
}

type responseService struct {
	repo     *repository.Repository
	chat     ChatBridge
	notifier Notifier
	logger   *zap.Logger
}

// NewResponseService 创建 ResponseService 实例
func NewResponseService(repo *repository.Repository, chat ChatBridge, notifier Notifier, logger *zap.Logger) ResponseService {
	return &responseService{repo: repo, chat: chat, notifier: notifier, logger: logger}
}

// notice 事务提交后才发送的通知
type notice struct {
	userID uint
	text   string
}

func (s *responseService) flush(ctx context.Context, notices []notice) {
	for _, n := range notices {
		if !s.notifier.Notify(ctx, n.userID, n.text) {
			s.logger.Warn("通知未被接受", zap.Uint("user_id", n.userID))
		}
	}
}

// logInternal 只记录基础设施错误，业务错误由调用方直接返回
func (s *responseService) logInternal(msg string, err error, fields ...zap.Field) {
	if pkgerrors.KindOf(err) == pkgerrors.KindInternal {
		s.logger.Error(msg, append(fields, zap.Error(err))...)
	}
}

// ────────────────────── CreateMatchingResponse ──────────────────────

func (s *responseService) CreateMatchingResponse(ctx context.Context, receivingUserID, offeringUserID uint, offerType model.RequestType, requestID, offerID uint) (*model.Response, error) {
	if receivingUserID == offeringUserID {
		return nil, ErrSelfResponse
	}

	var (
		resp    *model.Response
		created bool
	)
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		existing, err := tx.Response.FindActiveMatching(ctx, offerType, offerID, requestID)
		if err == nil {
			resp = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		// 接收方与提供方请求一并加锁，两者都须仍可匹配
		receivingRef := model.RequestRef{Type: offerType.Opposite(), ID: requestID}
		offeringRef := model.RequestRef{Type: offerType, ID: offerID}
		locked, err := lockRequests(ctx, tx, []model.RequestRef{receivingRef, offeringRef})
		if err != nil {
			return err
		}
		receiving, offering := locked[receivingRef], locked[offeringRef]
		if receiving == nil || offering == nil {
			return ErrRequestNotFound
		}
		if receiving.UserID != receivingUserID || offering.UserID != offeringUserID {
			return ErrNotEntitled
		}
		if !receiving.IsMatchable() || !offering.IsMatchable() {
			return ErrRequestUnavailable
		}

		resp = &model.Response{
			UserID:          receivingUserID,
			ResponderID:     offeringUserID,
			ResponseType:    model.ResponseTypeMatching,
			OfferType:       offerType,
			OfferID:         offerID,
			RequestID:       requestID,
			DelivererStatus: model.ResponseStatusPending,
			SenderStatus:    model.ResponseStatusPending,
			OverallStatus:   model.ResponseStatusPending,
		}
		if err := tx.Response.Create(ctx, resp); err != nil {
			return err
		}
		created = true

		if receiving.Status == model.RequestStatusOpen {
			return tx.Request.UpdateStatus(ctx, receiving.Type, receiving.ID, model.RequestStatusHasResponses)
		}
		return nil
	})

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// 并发创建同一配对，以先提交者为准
		existing, ferr := s.repo.Response.FindActiveMatching(ctx, offerType, offerID, requestID)
		if ferr != nil {
			s.logger.Error("查询并发创建的响应失败", zap.Error(ferr))
			return nil, ferr
		}
		return existing, nil
	}
	if err != nil {
		s.logInternal("创建匹配响应失败", err,
			zap.String("offer_type", string(offerType)),
			zap.Uint("offer_id", offerID),
			zap.Uint("request_id", requestID),
		)
		return nil, err
	}

	if created {
		s.flush(ctx, []notice{{userID: receivingUserID, text: "找到了与您的请求相匹配的行程，请查看并确认。"}})
	}
	return resp, nil
}

// ────────────────────── CreateManualResponse ──────────────────────

func (s *responseService) CreateManualResponse(ctx context.Context, responderID uint, target model.RequestRef, req *dto.CreateManualResponseRequest) (*dto.ResponseItem, error) {
	if req.Amount != nil && req.Currency == "" {
		return nil, ErrCurrencyRequired
	}

	var resp *model.Response
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		targetReq, err := tx.Request.GetByIDForUpdate(ctx, target.Type, target.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRequestNotFound
			}
			return err
		}
		if targetReq.UserID == responderID {
			return ErrSelfResponse
		}
		if !targetReq.IsMatchable() {
			return ErrTargetNotOpen
		}

		existing, err := tx.Response.FindManual(ctx, responderID, target.Type, target.ID)
		switch {
		case err == nil && existing.OverallStatus == model.ResponseStatusRejected:
			// 之前被拒绝的手动响应重置后复用
			existing.DelivererStatus = model.ResponseStatusPending
			existing.SenderStatus = model.ResponseStatusPending
			existing.Refresh()
			existing.ChatID = nil
			existing.Message = req.Message
			existing.Amount = req.Amount
			existing.Currency = req.Currency
			if err := tx.Response.UpdateState(ctx, existing, model.ResponseStatusRejected); err != nil {
				return err
			}
			resp = existing
		case err == nil && existing.OverallStatus != model.ResponseStatusClosed:
			return ErrDuplicateResponse
		case err == nil || errors.Is(err, gorm.ErrRecordNotFound):
			resp = &model.Response{
				UserID:          targetReq.UserID,
				ResponderID:     responderID,
				ResponseType:    model.ResponseTypeManual,
				OfferType:       target.Type,
				OfferID:         target.ID,
				DelivererStatus: model.ResponseStatusPending,
				SenderStatus:    model.ResponseStatusPending,
				OverallStatus:   model.ResponseStatusPending,
				Message:         req.Message,
				Amount:          req.Amount,
				Currency:        req.Currency,
			}
			if err := tx.Response.Create(ctx, resp); err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrDuplicateResponse
				}
				return err
			}
		default:
			return err
		}

		if targetReq.Status == model.RequestStatusOpen {
			return tx.Request.UpdateStatus(ctx, target.Type, target.ID, model.RequestStatusHasResponses)
		}
		return nil
	})
	if err != nil {
		s.logInternal("创建手动响应失败", err, zap.Uint("responder_id", responderID), zap.Uint("target_id", target.ID))
		return nil, err
	}

	s.flush(ctx, []notice{{userID: resp.UserID, text: "有用户响应了您的请求，请查看并确认。"}})
	return toResponseItem(resp), nil
}

// ────────────────────── ApplyAction ──────────────────────

func (s *responseService) ApplyAction(ctx context.Context, responseID, actingUserID uint, action Action) (*dto.ResponseItem, error) {
	return s.applyAction(ctx, actingUserID, action, func(tx *repository.Repository) (*model.Response, error) {
		return tx.Response.GetByID(ctx, responseID)
	})
}

func (s *responseService) ApplyActionByKey(ctx context.Context, key model.ResponseKey, actingUserID uint, action Action) (*dto.ResponseItem, error) {
	return s.applyAction(ctx, actingUserID, action, func(tx *repository.Repository) (*model.Response, error) {
		return tx.Response.FindByKey(ctx, key)
	})
}

func (s *responseService) applyAction(ctx context.Context, actingUserID uint, action Action, locate func(tx *repository.Repository) (*model.Response, error)) (*dto.ResponseItem, error) {
	if action != ActionAccept && action != ActionReject {
		return nil, ErrInvalidAction
	}

	var (
		resp    *model.Response
		notices []notice
	)
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		notices = nil

		found, err := locate(tx)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrResponseNotFound
			}
			return err
		}

		// 加锁顺序：请求（寄件 → 带件）先于响应行，与其他写响应的事务一致
		locked, err := lockRequests(ctx, tx, found.Refs())
		if err != nil {
			return err
		}
		resp, err = tx.Response.GetByIDForUpdate(ctx, found.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrResponseNotFound
			}
			return err
		}

		role, ok := resp.RoleOf(actingUserID)
		if !ok || (resp.IsManual() && actingUserID != resp.UserID) {
			return ErrNotEntitled
		}
		if !resp.IsActive() {
			// 被其他匹配挤掉的响应报告为冲突
			if resp.OverallStatus != model.ResponseStatusAccepted && anyUnavailable(locked) {
				return ErrRequestUnavailable
			}
			return ErrResponseNotActive
		}
		if resp.RoleStatus(role.Kind) != model.ResponseStatusPending {
			return ErrAlreadyActed
		}

		previous := resp.OverallStatus
		otherKind := oppositeRole(role.Kind)
		otherUser := partyOf(resp.Parties(), otherKind)

		if action == ActionReject {
			resp.SetRoleStatus(role.Kind, model.ResponseStatusRejected)
			if err := tx.Response.UpdateState(ctx, resp, previous); err != nil {
				return err
			}
			if err := s.recomputeAll(ctx, tx, resp.Refs()); err != nil {
				return err
			}
			notices = append(notices, notice{userID: otherUser, text: "对方拒绝了匹配。"})
			return nil
		}

		resp.SetRoleStatus(role.Kind, model.ResponseStatusAccepted)
		if resp.IsManual() {
			// 手动响应由响应人发起，视为其已同意
			resp.SetRoleStatus(otherKind, model.ResponseStatusAccepted)
		}

		if resp.OverallStatus != model.ResponseStatusAccepted {
			if err := tx.Response.UpdateState(ctx, resp, previous); err != nil {
				return err
			}
			if err := s.recomputeAll(ctx, tx, resp.Refs()); err != nil {
				return err
			}
			notices = append(notices, notice{userID: otherUser, text: "对方已接受匹配，等待您确认。"})
			return nil
		}

		promoted, err := s.promote(ctx, tx, resp, previous, locked)
		notices = append(notices, promoted...)
		return err
	})
	if err != nil {
		s.logInternal("处理响应操作失败", err, zap.Uint("user_id", actingUserID))
		return nil, err
	}

	s.flush(ctx, notices)
	return toResponseItem(resp), nil
}

// promote 双方均已接受：建立聊天、锁定匹配结果并拒绝竞争响应
// 调用方须在同一事务内，locked 为已加锁的相关请求，resp 已持有行锁
func (s *responseService) promote(ctx context.Context, tx *repository.Repository, resp *model.Response, previous string, locked map[model.RequestRef]*model.Request) ([]notice, error) {
	refs := lockOrder(resp.Refs())

	byType := make(map[model.RequestType]*model.Request, len(refs))
	for _, ref := range refs {
		req, ok := locked[ref]
		if !ok {
			return nil, ErrRequestNotFound
		}
		if !req.IsMatchable() {
			return nil, ErrRequestUnavailable
		}
		byType[ref.Type] = req
	}

	parties := resp.Parties()
	chat, err := s.chat.FindOrCreate(ctx, tx, parties.Sender, parties.Deliverer, resp.Links())
	if err != nil {
		return nil, err
	}
	resp.ChatID = &chat.ID
	if err := tx.Response.UpdateState(ctx, resp, previous); err != nil {
		return nil, err
	}

	if resp.IsManual() {
		target := resp.ReceivingRef()
		if err := tx.Request.MarkMatched(ctx, target.Type, target.ID, model.RequestStatusMatchedManually, nil); err != nil {
			return nil, err
		}
	} else {
		send, delivery := byType[model.RequestSend], byType[model.RequestDelivery]
		if err := tx.Request.MarkMatched(ctx, model.RequestSend, send.ID, model.RequestStatusMatched, &delivery.ID); err != nil {
			return nil, err
		}
		if err := tx.Request.MarkMatched(ctx, model.RequestDelivery, delivery.ID, model.RequestStatusMatched, &send.ID); err != nil {
			return nil, err
		}
	}

	// 拒绝涉及这两个请求的其余 pending / partial 响应
	var (
		notices  []notice
		affected []model.RequestRef
		seen     = make(map[model.RequestRef]bool)
		informed = map[uint]bool{parties.Sender: true, parties.Deliverer: true}
	)
	for _, ref := range refs {
		seen[ref] = true
	}
	for _, ref := range refs {
		competing, err := tx.Response.ListReferencing(ctx, ref, model.ResponseStatusPending, model.ResponseStatusPartial)
		if err != nil {
			return nil, err
		}
		for i := range competing {
			c := &competing[i]
			if c.ID == resp.ID {
				continue
			}
			for _, r := range c.Refs() {
				if !seen[r] {
					seen[r] = true
					affected = append(affected, r)
				}
			}
			for _, uid := range []uint{c.UserID, c.ResponderID} {
				if !informed[uid] {
					informed[uid] = true
					notices = append(notices, notice{userID: uid, text: "您参与的一个匹配已失效，对方已与他人达成匹配。"})
				}
			}
		}
		if _, err := tx.Response.RejectActiveReferencing(ctx, ref, resp.ID); err != nil {
			return nil, err
		}
	}
	if err := s.recomputeAll(ctx, tx, affected); err != nil {
		return nil, err
	}

	if err := tx.User.DecrementLinksBalance(ctx, parties.Sender); err != nil {
		return nil, err
	}

	s.logger.Info("匹配成功",
		zap.Uint("response_id", resp.ID),
		zap.Uint("chat_id", chat.ID),
		zap.Uint("sender_id", parties.Sender),
		zap.Uint("deliverer_id", parties.Deliverer),
	)

	text := "匹配成功！聊天已建立，现在可以与对方联系。"
	notices = append(notices, notice{userID: parties.Sender, text: text}, notice{userID: parties.Deliverer, text: text})
	return notices, nil
}

// ────────────────────── CancelResponse ──────────────────────

func (s *responseService) CancelResponse(ctx context.Context, responseID, actingUserID uint) error {
	var notices []notice
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		notices = nil

		found, err := tx.Response.GetByID(ctx, responseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if _, err := lockRequests(ctx, tx, found.Refs()); err != nil {
			return err
		}
		resp, err := tx.Response.GetByIDForUpdate(ctx, responseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if actingUserID != resp.UserID && actingUserID != resp.ResponderID {
			return ErrNotEntitled
		}
		if !resp.IsActive() {
			return ErrResponseNotActive
		}

		if err := tx.Response.Delete(ctx, resp.ID); err != nil {
			return err
		}
		if err := s.recomputeAll(ctx, tx, resp.Refs()); err != nil {
			return err
		}

		other := resp.UserID
		if actingUserID == resp.UserID {
			other = resp.ResponderID
		}
		notices = append(notices, notice{userID: other, text: "对方撤回了匹配。"})
		return nil
	})
	if err != nil {
		s.logInternal("撤回响应失败", err, zap.Uint("response_id", responseID))
		return err
	}

	s.flush(ctx, notices)
	return nil
}

// ────────────────────── RecomputeRequestStatus ──────────────────────

func (s *responseService) RecomputeRequestStatus(ctx context.Context, tx *repository.Repository, ref model.RequestRef) error {
	req, err := tx.Request.GetByID(ctx, ref.Type, ref.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if !req.IsMatchable() {
		return nil
	}

	active, err := tx.Response.ListReferencing(ctx, ref, model.ResponseStatusPending, model.ResponseStatusPartial)
	if err != nil {
		return err
	}

	next := DecideRequestStatus(req, active)
	if next == req.Status {
		return nil
	}
	return tx.Request.UpdateMatchableStatus(ctx, ref.Type, ref.ID, next)
}

func (s *responseService) recomputeAll(ctx context.Context, tx *repository.Repository, refs []model.RequestRef) error {
	for _, ref := range refs {
		if err := s.RecomputeRequestStatus(ctx, tx, ref); err != nil {
			return err
		}
	}
	return nil
}

// DecideRequestStatus 请求状态的唯一判定规则
//
// 已匹配或已终结的请求保持不变；否则只要存在一条活跃响应以接收方身份涉及该请求，
// 或以提供方身份涉及且提供方已接受，即为 has_responses，其余为 open。
func DecideRequestStatus(req *model.Request, active []model.Response) string {
	if !req.IsMatchable() {
		return req.Status
	}
	ref := req.Ref()
	for i := range active {
		r := &active[i]
		if !r.IsActive() {
			continue
		}
		if r.ReceivingRef() == ref {
			return model.RequestStatusHasResponses
		}
		if offering, ok := r.OfferingRef(); ok && offering == ref && r.OfferingAccepted() {
			return model.RequestStatusHasResponses
		}
	}
	return model.RequestStatusOpen
}

// ────────────────────── ListForUser ──────────────────────

func (s *responseService) ListForUser(ctx context.Context, userID uint) ([]dto.ResponseItem, error) {
	resps, err := s.repo.Response.ListForUser(ctx, userID)
	if err != nil {
		s.logger.Error("列出响应失败", zap.Uint("user_id", userID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.ResponseItem, 0, len(resps))
	for i := range resps {
		result = append(result, *toResponseItem(&resps[i]))
	}
	return result, nil
}

// ── 辅助函数 ──

// lockOrder 寄件请求排在带件请求之前，保证加锁顺序一致
func lockOrder(refs []model.RequestRef) []model.RequestRef {
	ordered := make([]model.RequestRef, 0, len(refs))
	for _, t := range []model.RequestType{model.RequestSend, model.RequestDelivery} {
		for _, ref := range refs {
			if ref.Type == t {
				ordered = append(ordered, ref)
			}
		}
	}
	return ordered
}

// lockRequests 按 lockOrder 对 refs 加行锁；已不存在的请求不出现在结果中
func lockRequests(ctx context.Context, tx *repository.Repository, refs []model.RequestRef) (map[model.RequestRef]*model.Request, error) {
	locked := make(map[model.RequestRef]*model.Request, len(refs))
	for _, ref := range lockOrder(refs) {
		req, err := tx.Request.GetByIDForUpdate(ctx, ref.Type, ref.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		locked[ref] = req
	}
	return locked, nil
}

func anyUnavailable(locked map[model.RequestRef]*model.Request) bool {
	for _, req := range locked {
		if !req.IsMatchable() {
			return true
		}
	}
	return false
}

func oppositeRole(kind model.RoleKind) model.RoleKind {
	if kind == model.RoleSender {
		return model.RoleDeliverer
	}
	return model.RoleSender
}

func partyOf(p model.Parties, kind model.RoleKind) uint {
	if kind == model.RoleSender {
		return p.Sender
	}
	return p.Deliverer
}

func toResponseItem(r *model.Response) *dto.ResponseItem {
	item := &dto.ResponseItem{
		ID:              r.ID,
		UserID:          r.UserID,
		ResponderID:     r.ResponderID,
		ResponseType:    r.ResponseType,
		OfferType:       string(r.OfferType),
		OfferID:         r.OfferID,
		RequestID:       r.RequestID,
		DelivererStatus: r.DelivererStatus,
		SenderStatus:    r.SenderStatus,
		OverallStatus:   r.OverallStatus,
		ChatID:          r.ChatID,
		Message:         r.Message,
		Amount:          r.Amount,
		Currency:        r.Currency,
		CreatedAt:       r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       r.UpdatedAt.Format(time.RFC3339),
	}
	if !r.IsManual() {
		item.Key = r.Key().String()
	}
	return item
}
