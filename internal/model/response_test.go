package model

import "testing"

func TestAggregateStatus(t *testing.T) {
	const (
		p = ResponseStatusPending
		a = ResponseStatusAccepted
		r = ResponseStatusRejected
	)
	tests := []struct {
		deliverer, sender string
		want              string
	}{
		{p, p, ResponseStatusPending},
		{p, a, ResponseStatusPartial},
		{p, r, ResponseStatusRejected},
		{a, p, ResponseStatusPartial},
		{a, a, ResponseStatusAccepted},
		{a, r, ResponseStatusRejected},
		{r, p, ResponseStatusRejected},
		{r, a, ResponseStatusRejected},
		{r, r, ResponseStatusRejected},
	}
	for _, tt := range tests {
		if got := AggregateStatus(tt.deliverer, tt.sender); got != tt.want {
			t.Errorf("AggregateStatus(%s, %s) = %s，期望 %s", tt.deliverer, tt.sender, got, tt.want)
		}
	}
}

func TestParties(t *testing.T) {
	tests := []struct {
		name string
		resp Response
		want Parties
	}{
		{
			name: "自动匹配-提供寄件",
			resp: Response{ResponseType: ResponseTypeMatching, OfferType: RequestSend, UserID: 1, ResponderID: 2},
			want: Parties{Sender: 2, Deliverer: 1},
		},
		{
			name: "自动匹配-提供带件",
			resp: Response{ResponseType: ResponseTypeMatching, OfferType: RequestDelivery, UserID: 1, ResponderID: 2},
			want: Parties{Sender: 1, Deliverer: 2},
		},
		{
			name: "手动-目标为寄件",
			resp: Response{ResponseType: ResponseTypeManual, OfferType: RequestSend, UserID: 1, ResponderID: 2},
			want: Parties{Sender: 1, Deliverer: 2},
		},
		{
			name: "手动-目标为带件",
			resp: Response{ResponseType: ResponseTypeManual, OfferType: RequestDelivery, UserID: 1, ResponderID: 2},
			want: Parties{Sender: 2, Deliverer: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.resp.Parties(); got != tt.want {
				t.Errorf("Parties() = %+v，期望 %+v", got, tt.want)
			}
		})
	}
}

func TestRoleOf(t *testing.T) {
	resp := Response{ResponseType: ResponseTypeMatching, OfferType: RequestDelivery, UserID: 1, ResponderID: 2}

	role, ok := resp.RoleOf(2)
	if !ok || role.Kind != RoleDeliverer {
		t.Errorf("用户 2 应为带件方，实际 %v %v", role.Kind, ok)
	}
	role, ok = resp.RoleOf(1)
	if !ok || role.Kind != RoleSender {
		t.Errorf("用户 1 应为寄件方，实际 %v %v", role.Kind, ok)
	}
	if _, ok := resp.RoleOf(3); ok {
		t.Error("非参与方不应解析出角色")
	}
}

func TestSetRoleStatus_RecomputesOverall(t *testing.T) {
	resp := Response{
		ResponseType: ResponseTypeMatching, OfferType: RequestSend, UserID: 1, ResponderID: 2,
		DelivererStatus: ResponseStatusPending, SenderStatus: ResponseStatusPending, OverallStatus: ResponseStatusPending,
	}

	resp.SetRoleStatus(RoleSender, ResponseStatusAccepted)
	if resp.OverallStatus != ResponseStatusPartial {
		t.Fatalf("一方接受后应为 partial，实际 %s", resp.OverallStatus)
	}
	if !resp.OfferingAccepted() {
		t.Error("提供方（寄件方）已接受")
	}

	resp.SetRoleStatus(RoleDeliverer, ResponseStatusAccepted)
	if resp.OverallStatus != ResponseStatusAccepted {
		t.Errorf("双方接受后应为 accepted，实际 %s", resp.OverallStatus)
	}
}

func TestRefs(t *testing.T) {
	matching := Response{ResponseType: ResponseTypeMatching, OfferType: RequestSend, OfferID: 10, RequestID: 20}
	if got := matching.ReceivingRef(); got != (RequestRef{Type: RequestDelivery, ID: 20}) {
		t.Errorf("自动匹配接收方引用错误: %+v", got)
	}
	if got, ok := matching.OfferingRef(); !ok || got != (RequestRef{Type: RequestSend, ID: 10}) {
		t.Errorf("自动匹配提供方引用错误: %+v", got)
	}
	links := matching.Links()
	if links.SendRequestID == nil || *links.SendRequestID != 10 || links.DeliveryRequestID == nil || *links.DeliveryRequestID != 20 {
		t.Errorf("Links 错误: %+v", links)
	}

	manual := Response{ResponseType: ResponseTypeManual, OfferType: RequestDelivery, OfferID: 5}
	if got := manual.ReceivingRef(); got != (RequestRef{Type: RequestDelivery, ID: 5}) {
		t.Errorf("手动响应接收方应为目标请求: %+v", got)
	}
	if _, ok := manual.OfferingRef(); ok {
		t.Error("手动响应没有提供方请求")
	}
	if len(manual.Refs()) != 1 {
		t.Errorf("手动响应只涉及一个请求，实际 %d", len(manual.Refs()))
	}
}
