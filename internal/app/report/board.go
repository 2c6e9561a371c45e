package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/YelzhanWeb/printtrack/internal/domain"
)

const (
	SheetName   = "Board"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var headers = map[domain.Locale][]string{
	domain.LocaleZhCN: {"订单号", "客户", "产品", "状态", "阶段", "下单日期", "进入状态日期", "状态天数", "总天数", "灯号"},
	domain.LocaleZhTW: {"訂單號", "客戶", "產品", "狀態", "階段", "下單日期", "進入狀態日期", "狀態天數", "總天數", "燈號"},
	domain.LocaleEN:   {"Order No.", "Customer", "Product", "Status", "Stage", "Order Date", "In Status Since", "Status Days", "Total Days", "Light"},
}

var lightFill = map[domain.Severity]string{
	domain.SeverityNormal:   "#C6EFCE",
	domain.SeverityWarning:  "#FFEB9C",
	domain.SeverityCritical: "#FFC7CE",
}

// WriteBoard renders views as a single-sheet workbook, one row per order.
// The status and light cells are filled with the severity colour.
func WriteBoard(w io.Writer, views []domain.OrderView, locale domain.Locale) error {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(SheetName); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to drop default sheet: %w", err)
	}
	index, err := f.GetSheetIndex(SheetName)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	severityStyles := make(map[domain.Severity]int, len(lightFill))
	for sev, color := range lightFill {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err != nil {
			return fmt.Errorf("failed to create %s style: %w", sev, err)
		}
		severityStyles[sev] = id
	}

	cols := headers[locale]
	if cols == nil {
		cols = headers[domain.DefaultLocale]
	}
	for i, h := range cols {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return err
		}
		if err := f.SetCellStyle(SheetName, cell, cell, headerStyle); err != nil {
			return err
		}
	}

	for i, v := range views {
		row := i + 2
		values := []interface{}{
			v.Number,
			v.CustomerName,
			v.Product.ProductName,
			v.StatusLabel,
			v.StageName,
			v.OrderDate.String(),
			v.EnteredAt.String(),
			v.StatusDays,
			v.TotalDays,
			v.Light,
		}
		start, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(SheetName, start, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", row, err)
		}

		style := severityStyles[v.Severity]
		for _, col := range []int{4, 10} {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			if err := f.SetCellStyle(SheetName, cell, cell, style); err != nil {
				return err
			}
		}
	}

	if err := f.SetColWidth(SheetName, "A", "J", 16); err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
