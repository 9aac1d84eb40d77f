package commands

import (
	"log/slog"
	"time"

	"chartbrief-backend/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(downloadCmd)
}

var downloadCmd = &cobra.Command{
	Use:   "download <url>...",
	Short: "Downloads chart images into the local cache.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		service, cleanup := createOperator(cmd.Context())
		defer cleanup()

		t1 := time.Now()
		paths, err := service.Download(cmd.Context(), args, func(downloaded, total int, current string) {
			slog.Info("downloading", "done", downloaded, "total", total, "current", current)
		})
		if err != nil {
			serviceutil.Fatal("download charts", err)
		}
		t2 := time.Now()

		t := newTable()
		t.AppendHeader(table.Row{"Url", "Cached path"})
		for i, url := range args {
			path := ""
			if i < len(paths) {
				path = paths[i]
			}
			t.AppendRow(table.Row{url, path})
		}
		t.Render()

		slog.Info("download time", "seconds", t2.Sub(t1).Seconds())
	},
}
