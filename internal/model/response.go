package model

// 响应类型
const (
	ResponseTypeMatching = "matching"
	ResponseTypeManual   = "manual"
)

// 响应状态（角色状态取前三个，总体状态额外有 partial / closed）
const (
	ResponseStatusPending  = "pending"
	ResponseStatusAccepted = "accepted"
	ResponseStatusRejected = "rejected"
	ResponseStatusPartial  = "partial"
	ResponseStatusClosed   = "closed"
)

// Response 响应表，对应 responses
//
// 自动匹配响应：UserID 是新请求（RequestID）的所有者，ResponderID 是被匹配请求（OfferID）的所有者。
// 手动响应：UserID 是目标请求（OfferID）的所有者，ResponderID 是主动响应的用户，RequestID 为 0。
type Response struct {
	ID              uint        `gorm:"primaryKey"                                  json:"id"`
	UserID          uint        `gorm:"not null;index"                              json:"user_id"`
	ResponderID     uint        `gorm:"not null;index"                              json:"responder_id"`
	ResponseType    string      `gorm:"type:varchar(20);not null"                   json:"response_type"`
	OfferType       RequestType `gorm:"type:varchar(20);not null"                   json:"offer_type"`
	OfferID         uint        `gorm:"not null"                                    json:"offer_id"`
	RequestID       uint        `gorm:"not null;default:0"                          json:"request_id"`
	DelivererStatus string      `gorm:"type:varchar(20);not null;default:'pending'" json:"deliverer_status"`
	SenderStatus    string      `gorm:"type:varchar(20);not null;default:'pending'" json:"sender_status"`
	OverallStatus   string      `gorm:"type:varchar(20);not null;default:'pending'" json:"overall_status"`
	ChatID          *uint       `                                                   json:"chat_id,omitempty"`
	Message         string      `gorm:"type:text;not null;default:''"               json:"message"`
	Amount          *int        `                                                   json:"amount,omitempty"`
	Currency        string      `gorm:"type:varchar(10);not null;default:''"        json:"currency"`
	BaseModel
}

// TableName 指定表名
func (Response) TableName() string { return "responses" }

// AggregateStatus 由双方角色状态推导总体状态
// 任一方拒绝 → rejected；双方接受 → accepted；恰好一方接受 → partial；其余 → pending。
// closed 只由关闭请求产生，不会由此推导得出。
func AggregateStatus(deliverer, sender string) string {
	switch {
	case deliverer == ResponseStatusRejected || sender == ResponseStatusRejected:
		return ResponseStatusRejected
	case deliverer == ResponseStatusAccepted && sender == ResponseStatusAccepted:
		return ResponseStatusAccepted
	case deliverer == ResponseStatusAccepted || sender == ResponseStatusAccepted:
		return ResponseStatusPartial
	default:
		return ResponseStatusPending
	}
}

// IsManual 是否手动响应
func (r *Response) IsManual() bool {
	return r.ResponseType == ResponseTypeManual
}

// IsActive 总体状态仍未终结（pending / partial）
func (r *Response) IsActive() bool {
	return r.OverallStatus == ResponseStatusPending || r.OverallStatus == ResponseStatusPartial
}

// Refresh 按角色状态重算总体状态
func (r *Response) Refresh() {
	r.OverallStatus = AggregateStatus(r.DelivererStatus, r.SenderStatus)
}

// OfferOwner 被响应请求（OfferID）的所有者
func (r *Response) OfferOwner() uint {
	if r.IsManual() {
		return r.UserID
	}
	return r.ResponderID
}

// OfferOther 与 OfferOwner 相对的一方
func (r *Response) OfferOther() uint {
	if r.IsManual() {
		return r.ResponderID
	}
	return r.UserID
}

// Parties 解析寄件方与带件方
func (r *Response) Parties() Parties {
	owner, other := r.OfferOwner(), r.OfferOther()
	if r.OfferType == RequestSend {
		return Parties{Sender: owner, Deliverer: other}
	}
	return Parties{Sender: other, Deliverer: owner}
}

// RoleOf 解析用户在该响应中的角色；非参与方返回 false
func (r *Response) RoleOf(userID uint) (Role, bool) {
	p := r.Parties()
	switch userID {
	case p.Sender:
		return Role{Kind: RoleSender, UserID: userID}, true
	case p.Deliverer:
		return Role{Kind: RoleDeliverer, UserID: userID}, true
	}
	return Role{}, false
}

// RoleStatus 读取某角色的状态
func (r *Response) RoleStatus(kind RoleKind) string {
	if kind == RoleSender {
		return r.SenderStatus
	}
	return r.DelivererStatus
}

// SetRoleStatus 写入某角色的状态并重算总体状态
func (r *Response) SetRoleStatus(kind RoleKind, status string) {
	if kind == RoleSender {
		r.SenderStatus = status
	} else {
		r.DelivererStatus = status
	}
	r.Refresh()
}

// ReceivingRef 接收方请求：自动匹配为 RequestID 所指请求，手动响应为目标请求
func (r *Response) ReceivingRef() RequestRef {
	if r.IsManual() {
		return RequestRef{Type: r.OfferType, ID: r.OfferID}
	}
	return RequestRef{Type: r.OfferType.Opposite(), ID: r.RequestID}
}

// OfferingRef 提供方请求；手动响应的响应人没有对应请求
func (r *Response) OfferingRef() (RequestRef, bool) {
	if r.IsManual() {
		return RequestRef{}, false
	}
	return RequestRef{Type: r.OfferType, ID: r.OfferID}, true
}

// OfferingAccepted 提供方（OfferOwner）是否已接受
func (r *Response) OfferingAccepted() bool {
	role, ok := r.RoleOf(r.OfferOwner())
	return ok && r.RoleStatus(role.Kind) == ResponseStatusAccepted
}

// Refs 响应涉及的全部请求
func (r *Response) Refs() []RequestRef {
	refs := []RequestRef{r.ReceivingRef()}
	if ref, ok := r.OfferingRef(); ok {
		refs = append(refs, ref)
	}
	return refs
}

// Links 返回自动匹配响应对应的寄件 / 带件请求 ID
func (r *Response) Links() ChatLinks {
	var links ChatLinks
	for _, ref := range r.Refs() {
		id := ref.ID
		if ref.Type == RequestSend {
			links.SendRequestID = &id
		} else {
			links.DeliveryRequestID = &id
		}
	}
	return links
}

// Key 自动匹配响应的组合标识
func (r *Response) Key() ResponseKey {
	return ResponseKey{
		OfferType:   r.OfferType,
		OfferID:     r.OfferID,
		RequestType: r.OfferType.Opposite(),
		RequestID:   r.RequestID,
	}
}

// ── 角色 ──

// RoleKind 角色种类
type RoleKind int

const (
	RoleDeliverer RoleKind = iota + 1
	RoleSender
)

func (k RoleKind) String() string {
	switch k {
	case RoleDeliverer:
		return "deliverer"
	case RoleSender:
		return "sender"
	}
	return "unknown"
}

// Role 用户在某条响应中的角色
type Role struct {
	Kind   RoleKind
	UserID uint
}

// Parties 响应双方
type Parties struct {
	Sender    uint
	Deliverer uint
}
