package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var serverBaseUrl *string
var accessToken *string

var rootCmd = &cobra.Command{
	Use:   "chartctl",
	Short: "chartctl drives the chart portal acquisition stack from the terminal.",
}

func init() {
	serverBaseUrl = rootCmd.PersistentFlags().String(
		"server", "",
		"Base url of a running charts server; when empty the full stack runs in-process.",
	)
	accessToken = rootCmd.PersistentFlags().String(
		"token", "",
		"Access token for the charts server, only meaningful with --server.",
	)
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}
