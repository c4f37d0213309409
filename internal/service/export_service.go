package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"yukyubor/backend/internal/model"
	"yukyubor/backend/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// ExportService 导出业务接口（管理员）
//
// 输出一个工作簿，包含三个 Sheet：寄件请求、带件请求、响应。
// 以 bytes.Buffer 返回，由 Handler 层设置响应头后写出。
type ExportService interface {
	ExportRequests(ctx context.Context) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

var (
	requestHeaders  = []string{"ID", "用户", "出发地", "目的地", "开始日期", "结束日期", "尺寸", "价格", "币种", "状态", "匹配对象", "创建时间"}
	responseHeaders = []string{"ID", "类型", "接收方", "响应人", "提供类型", "提供ID", "请求ID", "带件方状态", "寄件方状态", "总体状态", "聊天", "创建时间"}
)

func (s *exportService) ExportRequests(ctx context.Context) (*bytes.Buffer, string, error) {
	sends, err := s.repo.Request.ListAll(ctx, model.RequestSend)
	if err != nil {
		s.logger.Error("查询寄件请求失败", zap.Error(err))
		return nil, "", err
	}
	deliveries, err := s.repo.Request.ListAll(ctx, model.RequestDelivery)
	if err != nil {
		s.logger.Error("查询带件请求失败", zap.Error(err))
		return nil, "", err
	}
	resps, err := s.repo.Response.ListAll(ctx)
	if err != nil {
		s.logger.Error("查询响应失败", zap.Error(err))
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	if err := writeRequestSheet(f, "寄件请求", sends, headerStyle); err != nil {
		return nil, "", s.fail(err)
	}
	if err := writeRequestSheet(f, "带件请求", deliveries, headerStyle); err != nil {
		return nil, "", s.fail(err)
	}
	if err := writeResponseSheet(f, "响应", resps, headerStyle); err != nil {
		return nil, "", s.fail(err)
	}

	// 删除默认 Sheet1
	f.DeleteSheet("Sheet1")
	if idx, err := f.GetSheetIndex("寄件请求"); err == nil {
		f.SetActiveSheet(idx)
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, "", s.fail(err)
	}

	filename := fmt.Sprintf("requests_%s.xlsx", time.Now().Format("20060102"))
	return buf, filename, nil
}

func (s *exportService) fail(err error) error {
	s.logger.Error("写入 Excel 失败", zap.Error(err))
	return ErrExportGenerateFail
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	for i, h := range headers {
		c, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, c, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	f.SetCellStyle(sheet, "A1", last, style)
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	f.SetColWidth(sheet, "A", lastCol, 14)
	return nil
}

func writeRequestSheet(f *excelize.File, sheet string, reqs []model.Request, style int) error {
	if err := writeHeader(f, sheet, requestHeaders, style); err != nil {
		return err
	}
	for i := range reqs {
		r := &reqs[i]
		row := []interface{}{
			r.ID, r.UserID, r.FromLocationID, r.ToLocationID,
			r.FromDate.Format("2006-01-02"), r.ToDate.Format("2006-01-02"),
			r.SizeType, optionalInt(r.Price), r.Currency, r.Status,
			optionalUint(r.MatchedCounterpartID), r.CreatedAt.Format(time.RFC3339),
		}
		c, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, c, &row); err != nil {
			return err
		}
	}
	return nil
}

func writeResponseSheet(f *excelize.File, sheet string, resps []model.Response, style int) error {
	if err := writeHeader(f, sheet, responseHeaders, style); err != nil {
		return err
	}
	for i := range resps {
		r := &resps[i]
		row := []interface{}{
			r.ID, r.ResponseType, r.UserID, r.ResponderID,
			string(r.OfferType), r.OfferID, r.RequestID,
			r.DelivererStatus, r.SenderStatus, r.OverallStatus,
			optionalUint(r.ChatID), r.CreatedAt.Format(time.RFC3339),
		}
		c, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, c, &row); err != nil {
			return err
		}
	}
	return nil
}

func optionalInt(v *int) interface{} {
	if v == nil {
		return "-"
	}
	return *v
}

func optionalUint(v *uint) interface{} {
	if v == nil {
		return "-"
	}
	return *v
}
