package commands

import (
	"fmt"

	"chartbrief-backend/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var relinkProductType *string

func init() {
	relinkProductType = relinkCmd.Flags().String("product-type", "", "Product type the saved names belong to.")
	rootCmd.AddCommand(relinkCmd)
}

var relinkCmd = &cobra.Command{
	Use:   "relink [--product-type <type>] <saved-name>...",
	Short: "Re-matches saved product names against a fresh catalog.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		service, cleanup := createOperator(cmd.Context())
		defer cleanup()

		result, err := service.Relink(
			cmd.Context(),
			productTypeFlag(*relinkProductType),
			args,
		)
		if err != nil {
			serviceutil.Fatal("relink products", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Saved", "Product id", "Product name", "Correlation"})
		for _, link := range result.Links {
			t.AppendRow(table.Row{
				link.Saved,
				link.ProductId,
				link.ProductName,
				fmt.Sprintf("%.2f", link.Correlation),
			})
		}
		t.Render()
	},
}
