package main

import (
	"fmt"
	"os"
	"testing"

	"chartbrief-backend/lib/osutil"
	"chartbrief-backend/lib/telemetry"
	"chartbrief-backend/test/integration"

	"github.com/spf13/cobra"
)

// runTests hosts a test function inside the stdlib test runner so
// require and t.Fatal behave exactly as they do under `go test`, while
// the harness itself stays a plain binary with subcommands.
func runTests(name string, body func(t *testing.T)) {
	testing.Main(
		func(pat, str string) (bool, error) {
			return true, nil
		},
		[]testing.InternalTest{
			{Name: name, F: body},
		},
		nil,
		nil,
	)
}

var rootCmd = &cobra.Command{
	Use:   "test",
	Short: "the chartbrief backend test runner",
}

var integrationCmd = &cobra.Command{
	Use:   "integration",
	Short: "run integration tests for ...",
}

var portalCmd = &cobra.Command{
	Use:   "portal",
	Short: "full portal stack against a fixture site in a containered browser",
	Run: func(cmd *cobra.Command, args []string) {
		runTests("IntegrationTestPortal", integration.IntegrationTestPortal)
	},
}

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "login and one harvest against the real portal, needs dev/.state/chartportal.json5",
	Run: func(cmd *cobra.Command, args []string) {
		runTests("IntegrationTestLivePortal", integration.IntegrationTestLivePortal)
	},
}

func main() {
	telemetry.InitSlog(true)

	integrationCmd.AddCommand(portalCmd, liveCmd)
	rootCmd.AddCommand(integrationCmd)

	err := rootCmd.ExecuteContext(osutil.SignalContext())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
