package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"yukyubor/backend/internal/model"
	"yukyubor/backend/internal/repository"
	pkgerrors "yukyubor/backend/pkg/errors"
)

// ── Mock UserRepository ──

type mockUserRepo struct {
	users  map[uint]*model.User
	nextID uint
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uint]*model.User)}
}

func (m *mockUserRepo) add(u *model.User) *model.User {
	m.nextID++
	if u.ID == 0 {
		u.ID = m.nextID
	}
	m.users[u.ID] = u
	return u
}

func (m *mockUserRepo) GetByID(_ context.Context, id uint) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByTelegramID(_ context.Context, telegramID int64) (*model.User, error) {
	for _, u := range m.users {
		if u.TelegramID == telegramID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) Upsert(ctx context.Context, user *model.User) (*model.User, error) {
	if existing, err := m.GetByTelegramID(ctx, user.TelegramID); err == nil {
		stored := m.users[existing.ID]
		stored.Name, stored.Username, stored.Role = user.Name, user.Username, user.Role
		cp := *stored
		return &cp, nil
	}
	cp := *user
	m.add(&cp)
	out := cp
	return &out, nil
}

func (m *mockUserRepo) DecrementLinksBalance(_ context.Context, id uint) error {
	if u, ok := m.users[id]; ok && u.LinksBalance > 0 {
		u.LinksBalance--
	}
	return nil
}

// ── Mock LocationRepository ──

type mockLocationRepo struct {
	locations map[uint]*model.Location
	listCalls int
}

func newMockLocationRepo() *mockLocationRepo {
	return &mockLocationRepo{locations: make(map[uint]*model.Location)}
}

func (m *mockLocationRepo) Create(_ context.Context, loc *model.Location) error {
	if loc.ID == 0 {
		loc.ID = uint(len(m.locations) + 1)
	}
	m.locations[loc.ID] = loc
	return nil
}

func (m *mockLocationRepo) GetByID(_ context.Context, id uint) (*model.Location, error) {
	if l, ok := m.locations[id]; ok {
		return l, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockLocationRepo) List(_ context.Context) ([]model.Location, error) {
	m.listCalls++
	var result []model.Location
	for _, l := range m.locations {
		result = append(result, *l)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockLocationRepo) CountByIDs(_ context.Context, ids []uint) (int64, error) {
	seen := map[uint]bool{}
	var n int64
	for _, id := range ids {
		if _, ok := m.locations[id]; ok && !seen[id] {
			seen[id] = true
			n++
		}
	}
	return n, nil
}

// ── Mock RequestRepository ──

type mockRequestRepo struct {
	reqs    map[model.RequestRef]*model.Request
	nextID  map[model.RequestType]uint
	eachErr error
	locks   *lockLog
}

// lockLog 记录 ForUpdate 读取的先后顺序
type lockLog struct {
	entries []string
}

func (l *lockLog) add(entry string) {
	if l != nil {
		l.entries = append(l.entries, entry)
	}
}

func newMockRequestRepo() *mockRequestRepo {
	return &mockRequestRepo{
		reqs:   make(map[model.RequestRef]*model.Request),
		nextID: make(map[model.RequestType]uint),
	}
}

func (m *mockRequestRepo) Create(_ context.Context, req *model.Request) error {
	m.nextID[req.Type]++
	req.ID = m.nextID[req.Type]
	req.CreatedAt = time.Now()
	req.UpdatedAt = req.CreatedAt
	cp := *req
	m.reqs[req.Ref()] = &cp
	return nil
}

func (m *mockRequestRepo) GetByID(_ context.Context, t model.RequestType, id uint) (*model.Request, error) {
	if r, ok := m.reqs[model.RequestRef{Type: t, ID: id}]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRequestRepo) GetByIDForUpdate(ctx context.Context, t model.RequestType, id uint) (*model.Request, error) {
	m.locks.add(fmt.Sprintf("%s:%d", t, id))
	return m.GetByID(ctx, t, id)
}

func (m *mockRequestRepo) UpdateStatus(_ context.Context, t model.RequestType, id uint, status string) error {
	if r, ok := m.reqs[model.RequestRef{Type: t, ID: id}]; ok {
		r.Status = status
	}
	return nil
}

func (m *mockRequestRepo) UpdateMatchableStatus(_ context.Context, t model.RequestType, id uint, status string) error {
	if r, ok := m.reqs[model.RequestRef{Type: t, ID: id}]; ok && r.IsMatchable() {
		r.Status = status
	}
	return nil
}

func (m *mockRequestRepo) MarkMatched(_ context.Context, t model.RequestType, id uint, status string, counterpartID *uint) error {
	if r, ok := m.reqs[model.RequestRef{Type: t, ID: id}]; ok {
		r.Status = status
		r.MatchedCounterpartID = counterpartID
	}
	return nil
}

func (m *mockRequestRepo) Delete(_ context.Context, t model.RequestType, id uint) error {
	delete(m.reqs, model.RequestRef{Type: t, ID: id})
	return nil
}

func (m *mockRequestRepo) sorted(t model.RequestType) []*model.Request {
	var out []*model.Request
	for ref, r := range m.reqs {
		if ref.Type == t {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *mockRequestRepo) EachCandidate(_ context.Context, req *model.Request, _ int, visit func(candidate *model.Request) error) error {
	if m.eachErr != nil {
		return m.eachErr
	}
	for _, c := range m.sorted(req.Type.Opposite()) {
		if c.FromLocationID != req.FromLocationID || c.ToLocationID != req.ToLocationID {
			continue
		}
		if c.FromDate.After(req.ToDate) || c.ToDate.Before(req.FromDate) {
			continue
		}
		if !c.IsMatchable() || c.UserID == req.UserID {
			continue
		}
		if !req.SizeUnset() && !c.SizeUnset() && c.SizeType != req.SizeType {
			continue
		}
		cp := *c
		if err := visit(&cp); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockRequestRepo) CountActiveByUser(_ context.Context, userID uint) (int64, error) {
	var n int64
	for _, r := range m.reqs {
		if r.UserID == userID && r.Status != model.RequestStatusClosed {
			n++
		}
	}
	return n, nil
}

func (m *mockRequestRepo) FindActiveByUserAndRoute(_ context.Context, userID uint, t model.RequestType, fromLocationID, toLocationID uint, fromDate time.Time) (*model.Request, error) {
	for _, r := range m.sorted(t) {
		if r.UserID == userID && r.FromLocationID == fromLocationID && r.ToLocationID == toLocationID &&
			r.FromDate.Equal(fromDate) && r.Status != model.RequestStatusClosed {
			cp := *r
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRequestRepo) ListByUser(_ context.Context, userID uint) ([]model.Request, error) {
	var out []model.Request
	for _, t := range []model.RequestType{model.RequestSend, model.RequestDelivery} {
		for _, r := range m.sorted(t) {
			if r.UserID == userID {
				out = append(out, *r)
			}
		}
	}
	return out, nil
}

func (m *mockRequestRepo) ListAll(_ context.Context, t model.RequestType) ([]model.Request, error) {
	var out []model.Request
	for _, r := range m.sorted(t) {
		out = append(out, *r)
	}
	return out, nil
}

// ── Mock ResponseRepository ──

type mockResponseRepo struct {
	resps  map[uint]*model.Response
	nextID uint
	locks  *lockLog
}

func newMockResponseRepo() *mockResponseRepo {
	return &mockResponseRepo{resps: make(map[uint]*model.Response)}
}

func isLive(r *model.Response) bool {
	return r.OverallStatus != model.ResponseStatusRejected && r.OverallStatus != model.ResponseStatusClosed
}

func references(r *model.Response, ref model.RequestRef) bool {
	if r.OfferType == ref.Type && r.OfferID == ref.ID {
		return true
	}
	return r.ResponseType == model.ResponseTypeMatching && r.OfferType != ref.Type && r.RequestID == ref.ID
}

func (m *mockResponseRepo) sorted() []*model.Response {
	out := make([]*model.Response, 0, len(m.resps))
	for _, r := range m.resps {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Create 模拟部分唯一索引
func (m *mockResponseRepo) Create(_ context.Context, resp *model.Response) error {
	for _, r := range m.resps {
		if !isLive(r) || r.ResponseType != resp.ResponseType || r.OfferType != resp.OfferType || r.OfferID != resp.OfferID {
			continue
		}
		if resp.ResponseType == model.ResponseTypeMatching && r.RequestID == resp.RequestID {
			return gorm.ErrDuplicatedKey
		}
		if resp.ResponseType == model.ResponseTypeManual && r.ResponderID == resp.ResponderID {
			return gorm.ErrDuplicatedKey
		}
	}
	m.nextID++
	resp.ID = m.nextID
	resp.CreatedAt = time.Now()
	resp.UpdatedAt = resp.CreatedAt
	cp := *resp
	m.resps[resp.ID] = &cp
	return nil
}

func (m *mockResponseRepo) GetByID(_ context.Context, id uint) (*model.Response, error) {
	if r, ok := m.resps[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockResponseRepo) GetByIDForUpdate(ctx context.Context, id uint) (*model.Response, error) {
	m.locks.add(fmt.Sprintf("response:%d", id))
	return m.GetByID(ctx, id)
}

func (m *mockResponseRepo) FindByKey(_ context.Context, key model.ResponseKey) (*model.Response, error) {
	var found *model.Response
	for _, r := range m.sorted() {
		if r.ResponseType == model.ResponseTypeMatching && r.OfferType == key.OfferType && r.OfferID == key.OfferID && r.RequestID == key.RequestID {
			found = r
		}
	}
	if found == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *found
	return &cp, nil
}

func (m *mockResponseRepo) FindActiveMatching(_ context.Context, offerType model.RequestType, offerID, requestID uint) (*model.Response, error) {
	for _, r := range m.sorted() {
		if r.ResponseType == model.ResponseTypeMatching && r.OfferType == offerType && r.OfferID == offerID && r.RequestID == requestID && isLive(r) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockResponseRepo) FindManual(_ context.Context, responderID uint, offerType model.RequestType, offerID uint) (*model.Response, error) {
	var found *model.Response
	for _, r := range m.sorted() {
		if r.ResponseType == model.ResponseTypeManual && r.ResponderID == responderID && r.OfferType == offerType && r.OfferID == offerID {
			found = r
		}
	}
	if found == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *found
	return &cp, nil
}

func inStatuses(status string, statuses []string) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (m *mockResponseRepo) ListReferencing(_ context.Context, ref model.RequestRef, statuses ...string) ([]model.Response, error) {
	var out []model.Response
	for _, r := range m.sorted() {
		if references(r, ref) && inStatuses(r.OverallStatus, statuses) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockResponseRepo) UpdateState(_ context.Context, resp *model.Response, expected ...string) error {
	stored, ok := m.resps[resp.ID]
	if !ok || !inStatuses(stored.OverallStatus, expected) {
		return pkgerrors.ErrStaleState
	}
	stored.DelivererStatus = resp.DelivererStatus
	stored.SenderStatus = resp.SenderStatus
	stored.OverallStatus = resp.OverallStatus
	stored.ChatID = resp.ChatID
	stored.Message = resp.Message
	stored.Amount = resp.Amount
	stored.Currency = resp.Currency
	stored.UpdatedAt = time.Now()
	return nil
}

func (m *mockResponseRepo) RejectActiveReferencing(_ context.Context, ref model.RequestRef, exceptID uint) (int64, error) {
	var n int64
	for _, r := range m.resps {
		if r.ID == exceptID || !references(r, ref) {
			continue
		}
		if r.OverallStatus == model.ResponseStatusPending || r.OverallStatus == model.ResponseStatusPartial {
			r.DelivererStatus = model.ResponseStatusRejected
			r.SenderStatus = model.ResponseStatusRejected
			r.OverallStatus = model.ResponseStatusRejected
			n++
		}
	}
	return n, nil
}

func (m *mockResponseRepo) CloseReferencing(_ context.Context, ref model.RequestRef) (int64, error) {
	var n int64
	for _, r := range m.resps {
		if references(r, ref) && isLive(r) {
			r.OverallStatus = model.ResponseStatusClosed
			n++
		}
	}
	return n, nil
}

func (m *mockResponseRepo) DeleteReferencing(_ context.Context, ref model.RequestRef) (int64, error) {
	var n int64
	for id, r := range m.resps {
		if references(r, ref) {
			delete(m.resps, id)
			n++
		}
	}
	return n, nil
}

func (m *mockResponseRepo) Delete(_ context.Context, id uint) error {
	delete(m.resps, id)
	return nil
}

func (m *mockResponseRepo) ListForUser(_ context.Context, userID uint) ([]model.Response, error) {
	var out []model.Response
	for _, r := range m.sorted() {
		if r.UserID == userID || r.ResponderID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *mockResponseRepo) ListAll(_ context.Context) ([]model.Response, error) {
	var out []model.Response
	for _, r := range m.sorted() {
		out = append(out, *r)
	}
	return out, nil
}

// ── Mock ChatRepository ──

type mockChatRepo struct {
	chats  map[uint]*model.Chat
	nextID uint
}

func newMockChatRepo() *mockChatRepo {
	return &mockChatRepo{chats: make(map[uint]*model.Chat)}
}

func (m *mockChatRepo) Create(_ context.Context, chat *model.Chat) error {
	m.nextID++
	chat.ID = m.nextID
	cp := *chat
	m.chats[chat.ID] = &cp
	return nil
}

func (m *mockChatRepo) GetByID(_ context.Context, id uint) (*model.Chat, error) {
	if c, ok := m.chats[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockChatRepo) FindByPair(_ context.Context, userA, userB uint) (*model.Chat, error) {
	for _, c := range m.chats {
		if (c.SenderID == userA && c.ReceiverID == userB) || (c.SenderID == userB && c.ReceiverID == userA) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockChatRepo) Update(_ context.Context, chat *model.Chat) error {
	cp := *chat
	m.chats[chat.ID] = &cp
	return nil
}

func (m *mockChatRepo) UpdateStatus(_ context.Context, ids []uint, status string) error {
	for _, id := range ids {
		if c, ok := m.chats[id]; ok {
			c.Status = status
		}
	}
	return nil
}

// ── Mock Notifier ──

type sentNotice struct {
	userID uint
	text   string
}

type mockNotifier struct {
	mu   sync.Mutex
	sent []sentNotice
}

func (n *mockNotifier) Notify(_ context.Context, userID uint, text string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotice{userID: userID, text: text})
	return true
}

func (n *mockNotifier) Close() {}

func (n *mockNotifier) countFor(userID uint) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.sent {
		if s.userID == userID {
			c++
		}
	}
	return c
}

// ── 测试夹具 ──

type fixture struct {
	repo      *repository.Repository
	users     *mockUserRepo
	locations *mockLocationRepo
	requests  *mockRequestRepo
	responses *mockResponseRepo
	chats     *mockChatRepo
	notifier  *mockNotifier
	locks     *lockLog
}

func newFixture() *fixture {
	f := &fixture{
		users:     newMockUserRepo(),
		locations: newMockLocationRepo(),
		requests:  newMockRequestRepo(),
		responses: newMockResponseRepo(),
		chats:     newMockChatRepo(),
		notifier:  &mockNotifier{},
		locks:     &lockLog{},
	}
	f.requests.locks = f.locks
	f.responses.locks = f.locks
	f.repo = &repository.Repository{
		User:     f.users,
		Location: f.locations,
		Request:  f.requests,
		Response: f.responses,
		Chat:     f.chats,
	}
	return f
}
