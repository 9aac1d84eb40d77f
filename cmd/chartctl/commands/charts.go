package commands

import (
	"log/slog"

	"chartbrief-backend/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(chartsCmd)
}

var chartsCmd = &cobra.Command{
	Use:   "charts <product-id>",
	Short: "Harvests the chart image urls for a product.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		service, cleanup := createOperator(cmd.Context())
		defer cleanup()

		result, err := service.ChartUrls(cmd.Context(), args[0])
		if err != nil {
			serviceutil.Fatal("fetch chart urls", err)
		}

		slog.Info("harvested", "product", result.ProductName, "date", result.Date, "steps", len(result.Steps))

		t := newTable()
		t.AppendHeader(table.Row{"Index", "Label", "Image url"})
		for _, step := range result.Steps {
			t.AppendRow(table.Row{step.Index, step.Label, step.ImageUrl})
		}
		t.Render()
	},
}
