package integration

import (
	"context"
	"testing"
	"time"

	devenv "chartbrief-backend/dev/env"
	"chartbrief-backend/lib/scrapers/chartportal"
	"chartbrief-backend/lib/telemetry"

	"github.com/stretchr/testify/require"
)

// IntegrationTestLivePortal runs login and one harvest against the real
// portal. It is skipped unless dev/.state/chartportal.json5 exists, so
// the default test run never touches the production site.
func IntegrationTestLivePortal(t *testing.T) {
	config, err := devenv.GetStateConfig[devenv.PortalTestConfig]("chartportal.json5")
	if err != nil {
		t.Skipf("no live portal config: %v", err)
	}

	cleanup := telemetry.SetupForTesting(t, "test:integration/live")
	defer cleanup()
	ctx := context.Background()

	provider, stopBrowser := startBrowser(t, ctx)
	defer stopBrowser()

	client := chartportal.NewClient(provider.Session(), chartportal.Options{
		SearchUrl:    config.SearchUrl,
		LoginUrl:     config.LoginUrl,
		ChartBaseUrl: config.ChartBaseUrl,
	})

	start := time.Now()
	status, err := client.Login(ctx, config.Username, config.Password)
	require.NoError(t, err)
	require.True(t, status.LoggedIn)
	t.Log("login took", time.Since(start))

	if config.TargetProduct == "" {
		return
	}

	start = time.Now()
	result, err := client.FetchChartUrls(ctx, config.TargetProduct)
	require.NoError(t, err)
	require.NotEmpty(t, result.Steps)
	t.Log("harvest took", time.Since(start), "steps", len(result.Steps))

	for _, step := range result.Steps {
		t.Log(step.Index, step.Label, step.ImageUrl)
	}
}
