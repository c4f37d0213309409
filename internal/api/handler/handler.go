package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"yukyubor/backend/internal/service"
	pkgerrors "yukyubor/backend/pkg/errors"
	"yukyubor/backend/pkg/response"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth     *AuthHandler
	Location *LocationHandler
	Request  *RequestHandler
	Response *ResponseHandler
	Export   *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Auth:     NewAuthHandler(svc.Auth),
		Location: NewLocationHandler(svc.Location),
		Request:  NewRequestHandler(svc.Request),
		Response: NewResponseHandler(svc.Response),
		Export:   NewExportHandler(svc.Export),
	}
}

// 业务错误码按模块分段，末位区分错误分类：1 业务校验、3 无权限、4 不存在、9 冲突
const (
	codeAuth     = 11000
	codeLocation = 12000
	codeRequest  = 13000
	codeResponse = 14000
	codeExport   = 15000
)

// respondError 按错误分类写出响应；基础设施错误只返回通用提示
func respondError(c *gin.Context, base int, err error) {
	msg := err.Error()
	switch pkgerrors.KindOf(err) {
	case pkgerrors.KindValidation:
		response.UnprocessableEntity(c, base+1, msg)
	case pkgerrors.KindForbidden:
		response.Forbidden(c, base+3, msg)
	case pkgerrors.KindNotFound:
		response.NotFound(c, base+4, msg)
	case pkgerrors.KindConflict:
		response.Conflict(c, base+9, msg)
	default:
		_ = c.Error(err)
		response.InternalError(c)
	}
}

// respondBindError 参数绑定失败，校验错误附带字段明细
func respondBindError(c *gin.Context, err error) {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	parts := make([]string, 0, len(ves))
	for _, fe := range ves {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
	}
	response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", strings.Join(parts, "; "))
}
