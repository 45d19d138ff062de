// Package export renders project billing reports to CSV or Excel files.
package export

import (
	"fmt"
	"strings"

	"github.com/warp/billing-engine/billing"
)

// Writer renders a billing report to a file.
type Writer interface {
	Write(path string, report []billing.ProjectBillingData) error
}

// WriterForFormat returns the writer for a format name.
func WriterForFormat(format string) (Writer, error) {
	switch normalizeFormat(format) {
	case "csv":
		return &CSVWriter{}, nil
	case "excel", "xlsx":
		return &ExcelWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

func normalizeFormat(value string) string {
	return strings.TrimSpace(strings.ToLower(value))
}

// reportHeaders is the flat row layout shared by both writers: one row per
// resource-task, with project and resource columns repeated so the file is
// filterable in a spreadsheet.
var reportHeaders = []string{
	"Project", "ProjectID", "Client", "PeriodStart", "PeriodEnd",
	"Resource", "Role", "Task",
	"WorkedHours", "BaseBillableHours", "ManagerAdjustment",
	"ManagementAdjustment", "FinalBillableHours", "NonBillableHours",
	"TaskHours", "TaskBillableHours", "HourlyRate", "Amount", "VerifiedAt",
}

type reportRow struct {
	values []string
}

// flattenReport expands the nested report into flat rows. Resources with no
// task breakdown still yield one row so their hours are never dropped from
// the file.
func flattenReport(report []billing.ProjectBillingData) []reportRow {
	var rows []reportRow
	for _, project := range report {
		verifiedAt := ""
		if project.Verification != nil && !project.Verification.LastVerifiedAt.IsZero() {
			verifiedAt = project.Verification.LastVerifiedAt.Format("2006-01-02 15:04:05")
		}

		for _, res := range project.Resources {
			base := []string{
				project.ProjectName,
				string(project.ProjectID),
				string(project.ClientID),
				project.Period.Start.String(),
				project.Period.End.String(),
				res.FullName,
				res.Role,
			}
			resourceCols := []string{
				formatHours(res.WorkedHours),
				formatHours(res.BaseBillableHours),
				formatHours(res.ManagerAdjustment),
				formatHours(res.ManagementAdjustment),
				formatHours(res.FinalBillableHours),
				formatHours(res.NonBillableHours),
			}

			if len(res.Tasks) == 0 {
				row := append(append(append([]string{}, base...), ""), resourceCols...)
				row = append(row,
					formatHours(res.WorkedHours),
					formatHours(res.FinalBillableHours),
					res.HourlyRate.StringFixed(2),
					res.TotalAmount.StringFixed(2),
					verifiedAt,
				)
				rows = append(rows, reportRow{values: row})
				continue
			}

			for _, task := range res.Tasks {
				row := append(append(append([]string{}, base...), task.TaskName), resourceCols...)
				row = append(row,
					formatHours(task.TotalHours),
					formatHours(task.BillableHours),
					res.HourlyRate.StringFixed(2),
					task.Amount.StringFixed(2),
					verifiedAt,
				)
				rows = append(rows, reportRow{values: row})
			}
		}
	}
	return rows
}

func formatHours(h billing.Hours) string {
	return h.Value.StringFixed(2)
}
