package model

import (
	"fmt"
	"strconv"
	"strings"

	pkgerrors "yukyubor/backend/pkg/errors"
)

// ErrInvalidResponseKey 组合标识格式错误
var ErrInvalidResponseKey = pkgerrors.Validation("响应标识格式无效")

// ResponseKey 自动匹配响应的组合标识
// 文本形式为 "{offerType}_{offerId}_{requestType}_{requestId}"，例如 "send_12_delivery_34"
type ResponseKey struct {
	OfferType   RequestType
	OfferID     uint
	RequestType RequestType
	RequestID   uint
}

// ParseResponseKey 解析组合标识
func ParseResponseKey(s string) (ResponseKey, error) {
	parts := strings.Split(s, "_")
	if len(parts) != 4 {
		return ResponseKey{}, ErrInvalidResponseKey
	}

	offerType, ok := ParseRequestType(parts[0])
	if !ok {
		return ResponseKey{}, ErrInvalidResponseKey
	}
	requestType, ok := ParseRequestType(parts[2])
	if !ok || requestType == offerType {
		return ResponseKey{}, ErrInvalidResponseKey
	}

	offerID, err := parseID(parts[1])
	if err != nil {
		return ResponseKey{}, ErrInvalidResponseKey
	}
	requestID, err := parseID(parts[3])
	if err != nil {
		return ResponseKey{}, ErrInvalidResponseKey
	}

	return ResponseKey{
		OfferType:   offerType,
		OfferID:     offerID,
		RequestType: requestType,
		RequestID:   requestID,
	}, nil
}

func (k ResponseKey) String() string {
	return fmt.Sprintf("%s_%d_%s_%d", k.OfferType, k.OfferID, k.RequestType, k.RequestID)
}

func parseID(s string) (uint, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, ErrInvalidResponseKey
	}
	return uint(n), nil
}
