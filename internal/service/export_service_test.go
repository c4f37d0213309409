package service

import (
	"context"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func TestExportService_ExportRequests_Empty(t *testing.T) {
	f := newFixture()
	svc := NewExportService(f.repo, zap.NewNop())

	buf, filename, err := svc.ExportRequests(context.Background())
	if err != nil {
		t.Fatalf("ExportRequests 应成功: %v", err)
	}
	if !strings.HasPrefix(filename, "requests_") || !strings.HasSuffix(filename, ".xlsx") {
		t.Errorf("文件名格式错误: %s", filename)
	}

	wb, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("导出文件应可被 excelize 打开: %v", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) != 3 {
		t.Fatalf("期望 3 个 Sheet，实际: %v", sheets)
	}
	for _, name := range []string{"寄件请求", "带件请求", "响应"} {
		if idx, err := wb.GetSheetIndex(name); err != nil || idx < 0 {
			t.Errorf("缺少 Sheet %s", name)
		}
	}
}

func TestExportService_ExportRequests_Rows(t *testing.T) {
	env := setupTestEnv()
	env.matchedPair(t)
	env.mustAct(t, 1, userAli, ActionAccept)
	env.mustAct(t, 1, userBek, ActionAccept)

	svc := NewExportService(env.repo, zap.NewNop())
	buf, _, err := svc.ExportRequests(context.Background())
	if err != nil {
		t.Fatalf("ExportRequests 应成功: %v", err)
	}

	wb, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("导出文件应可被 excelize 打开: %v", err)
	}
	defer wb.Close()

	rows, err := wb.GetRows("寄件请求")
	if err != nil {
		t.Fatalf("读取寄件请求 Sheet 失败: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("期望表头 + 1 行，实际: %d 行", len(rows))
	}
	if rows[0][0] != "ID" {
		t.Errorf("表头错误: %v", rows[0])
	}
	if rows[1][4] != "2026-06-03" || rows[1][9] != "matched" {
		t.Errorf("数据行错误: %v", rows[1])
	}

	respRows, _ := wb.GetRows("响应")
	if len(respRows) != 2 || respRows[1][9] != "accepted" {
		t.Errorf("响应 Sheet 错误: %v", respRows)
	}
}
