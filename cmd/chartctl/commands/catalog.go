package commands

import (
	"chartbrief-backend/lib/scrapers/chartportal"
	"chartbrief-backend/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var catalogProductType *string
var catalogCategory *string
var catalogKind *string
var catalogArea *string
var catalogDate *string

func init() {
	catalogProductType = catalogCmd.Flags().String("product-type", "", "Product type, e.g. CHARTS or SURFACE.")
	catalogCategory = catalogCmd.Flags().String("category", "", "Category filter.")
	catalogKind = catalogCmd.Flags().String("type", "", "Type filter.")
	catalogArea = catalogCmd.Flags().String("area", "", "Area filter.")
	catalogDate = catalogCmd.Flags().String("date", "", "Date filter.")
	rootCmd.AddCommand(catalogCmd)
}

var catalogCmd = &cobra.Command{
	Use:   "catalog [--product-type <type>] [--category <c>] [--type <t>] [--area <a>] [--date <d>]",
	Short: "Fetches the portal's product catalog for the given filter.",
	Run: func(cmd *cobra.Command, args []string) {
		service, cleanup := createOperator(cmd.Context())
		defer cleanup()

		result, err := service.Catalog(cmd.Context(), chartportal.ProductFilter{
			ProductType: productTypeFlag(*catalogProductType),
			Category:    *catalogCategory,
			Type:        *catalogKind,
			Area:        *catalogArea,
			Date:        *catalogDate,
		})
		if err != nil {
			serviceutil.Fatal("fetch catalog", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Id", "Name", "Category"})
		for _, product := range result.Products {
			t.AppendRow(table.Row{product.Id, product.Name, product.Category})
		}
		t.Render()

		renderFilterValues(result)
	},
}

// renderFilterValues lists the filter dimensions side by side, padding
// the shorter columns with blanks.
func renderFilterValues(result chartportal.ProductCatalogResult) {
	columns := [][]string{result.Categories, result.Types, result.Areas}

	maxLength := 0
	for _, column := range columns {
		if len(column) > maxLength {
			maxLength = len(column)
		}
	}
	if maxLength == 0 {
		return
	}

	rows := make([]table.Row, maxLength)
	for i := 0; i < len(rows); i++ {
		rows[i] = make(table.Row, len(columns))
		for colIdx, column := range columns {
			if i < len(column) {
				rows[i][colIdx] = column[i]
			} else {
				rows[i][colIdx] = ""
			}
		}
	}

	t := newTable()
	t.AppendHeader(table.Row{"Category", "Type", "Area"})
	t.AppendRows(rows)
	t.Render()
}
