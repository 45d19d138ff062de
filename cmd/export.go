/*
export.go - Billing report export command

PURPOSE:
  Builds a billing report from the local database and writes it to CSV
  or Excel. Intended for handing reports to finance without running the
  HTTP server.
*/
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/config"
	"github.com/warp/billing-engine/export"
	"github.com/warp/billing-engine/store/sqlite"
)

var (
	exportProjects    []string
	exportClients     []string
	exportPeriodStart string
	exportPeriodEnd   string
	exportFormat      string
	exportOutput      string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a billing report to CSV or Excel",
	Example: `
  # All projects for July 2025, CSV
  billing-engine export --period-start 2025-07-01 --period-end 2025-07-31 --output july.csv

  # One project, Excel with totals sheet
  billing-engine export --project proj-atlas --period-start 2025-07-01 --period-end 2025-07-31 \
      --format excel --output atlas.xlsx`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringSliceVar(&exportProjects, "project", nil, "Project ID filter (repeatable)")
	exportCmd.Flags().StringSliceVar(&exportClients, "client", nil, "Client ID filter (repeatable)")
	exportCmd.Flags().StringVar(&exportPeriodStart, "period-start", "", "Period start (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportPeriodEnd, "period-end", "", "Period end (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "Output format: csv or excel")
	exportCmd.Flags().StringVar(&exportOutput, "output", "", "Output file path")
	exportCmd.MarkFlagRequired("period-start")
	exportCmd.MarkFlagRequired("period-end")
	exportCmd.MarkFlagRequired("output")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadAndValidate()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Log.Level)

	start, err := billing.ParseDate(exportPeriodStart)
	if err != nil {
		return fmt.Errorf("invalid --period-start: %w", err)
	}
	end, err := billing.ParseDate(exportPeriodEnd)
	if err != nil {
		return fmt.Errorf("invalid --period-end: %w", err)
	}
	period := billing.NewPeriod(start, end)
	if err := period.Validate(); err != nil {
		return err
	}

	writer, err := export.WriterForFormat(exportFormat)
	if err != nil {
		return err
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	projectIDs := make([]billing.ProjectID, 0, len(exportProjects))
	for _, p := range exportProjects {
		projectIDs = append(projectIDs, billing.ProjectID(p))
	}
	clientIDs := make([]billing.ClientID, 0, len(exportClients))
	for _, c := range exportClients {
		clientIDs = append(clientIDs, billing.ClientID(c))
	}

	builder := billing.NewReportBuilder(store, store, store, store, store, logger)
	report, err := builder.BuildProjectBillingData(context.Background(), projectIDs, clientIDs, period)
	if err != nil {
		return err
	}
	if len(report) == 0 {
		return billing.ErrNoProjects
	}

	if err := writer.Write(exportOutput, report); err != nil {
		return err
	}

	logger.Info().
		Str("output", exportOutput).
		Str("format", exportFormat).
		Int("projects", len(report)).
		Msg("report exported")
	return nil
}
