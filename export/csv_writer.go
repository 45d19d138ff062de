package export

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/warp/billing-engine/billing"
)

type CSVWriter struct{}

func (w *CSVWriter) Write(path string, report []billing.ProjectBillingData) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv output %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(reportHeaders); err != nil {
		return fmt.Errorf("write csv headers: %w", err)
	}

	for _, row := range flattenReport(report) {
		if err := writer.Write(row.values); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv output: %w", err)
	}
	return nil
}
