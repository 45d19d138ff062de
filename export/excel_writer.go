package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/warp/billing-engine/billing"
)

type ExcelWriter struct{}

func (w *ExcelWriter) Write(path string, report []billing.ProjectBillingData) error {
	file := excelize.NewFile()
	defer file.Close()

	sheet := file.GetSheetName(0)

	for col, header := range reportHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := file.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("set excel header %s: %w", cell, err)
		}
	}

	rowNum := 2
	for _, row := range flattenReport(report) {
		for col, value := range row.values {
			cell, _ := excelize.CoordinatesToCellName(col+1, rowNum)
			if err := file.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("set excel value %s: %w", cell, err)
			}
		}
		rowNum++
	}

	// Project totals on a second sheet so the flat data stays filterable.
	totals := "Totals"
	if _, err := file.NewSheet(totals); err != nil {
		return fmt.Errorf("create totals sheet: %w", err)
	}
	totalHeaders := []string{"Project", "TotalHours", "BillableHours", "NonBillableHours", "TotalAmount", "Resources"}
	for col, header := range totalHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := file.SetCellValue(totals, cell, header); err != nil {
			return fmt.Errorf("set totals header %s: %w", cell, err)
		}
	}
	for i, project := range report {
		values := []string{
			project.ProjectName,
			formatHours(project.TotalHours),
			formatHours(project.BillableHours),
			formatHours(project.NonBillableHours),
			project.TotalAmount.StringFixed(2),
			fmt.Sprintf("%d", len(project.Resources)),
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			if err := file.SetCellValue(totals, cell, value); err != nil {
				return fmt.Errorf("set totals value %s: %w", cell, err)
			}
		}
	}

	if err := file.SaveAs(path); err != nil {
		return fmt.Errorf("save excel output %s: %w", path, err)
	}
	return nil
}
