package handler

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"yukyubor/backend/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler 导出模块 HTTP 处理器
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportRequests 导出全部请求与响应
// GET /api/v1/export/requests
func (h *ExportHandler) ExportRequests(c *gin.Context) {
	buf, filename, err := h.exportSvc.ExportRequests(c.Request.Context())
	if err != nil {
		respondError(c, codeExport, err)
		return
	}

	// 设置下载响应头
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
