package integration

import (
	"context"
	"io"
	"log"
	"os"
	"strings"
	"testing"
	"time"

	"chartbrief-backend/lib/browser"
	"chartbrief-backend/lib/chartcache"
	"chartbrief-backend/lib/scrapers/chartportal"
	"chartbrief-backend/lib/telemetry"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// integrationTimings shrinks the portal timings to match the fixture,
// which pushes a step every 40ms instead of every few seconds.
func integrationTimings() chartportal.Timings {
	return chartportal.Timings{
		NavigationTimeout:    10 * time.Second,
		NavigationSettle:     500 * time.Millisecond,
		PollInterval:         100 * time.Millisecond,
		RequiredStableChecks: 3,
		ConfirmDelay:         200 * time.Millisecond,
		ColdMinWait:          300 * time.Millisecond,
		ColdMaxWait:          15 * time.Second,
		WarmMinWait:          300 * time.Millisecond,
		WarmMaxWait:          10 * time.Second,
		RetryMinWait:         300 * time.Millisecond,
		RetryMaxWait:         5 * time.Second,
		ListPollTimeout:      5 * time.Second,
		ListSettle:           200 * time.Millisecond,
		LabelPollTimeout:     3 * time.Second,
		LabelPartialAfter:    1500 * time.Millisecond,
		SelectRetryPause:     300 * time.Millisecond,
		LoginTimeout:         3 * time.Second,
	}
}

// startBrowser attaches to the browser named by TEST_CHROME_WS, or
// starts a headless-shell container publishing the devtools port.
func startBrowser(t *testing.T, ctx context.Context) (*browser.Provider, func()) {
	if ws, ok := os.LookupEnv("TEST_CHROME_WS"); ok {
		provider, err := browser.NewProvider(ctx, browser.Options{RemoteUrl: ws})
		if err != nil {
			t.Fatal(err)
		}
		return provider, provider.Close
	}

	// suppress logging
	testcontainers.Logger = log.New(io.Discard, "", 0)

	chrome, err := testcontainers.GenericContainer(
		ctx,
		testcontainers.GenericContainerRequest{
			Started: true,
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "chromedp/headless-shell:latest",
				ExposedPorts: []string{"9222:9222"},
				Cmd:          []string{"--remote-allow-origins=*"},
				WaitingFor:   wait.ForLog("DevTools listening"),
			},
		},
	)
	if err != nil {
		t.Fatal(err)
	}

	provider, err := browser.NewProvider(ctx, browser.Options{
		RemoteUrl: "ws://localhost:9222",
	})
	if err != nil {
		t.Fatal(err)
	}

	return provider, func() {
		provider.Close()
		err := chrome.Terminate(context.Background())
		if err != nil {
			t.Fatal(err)
		}
	}
}

func IntegrationTestPortal(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:integration/portal")
	defer cleanup()
	ctx := context.Background()

	portal, err := startFixturePortal()
	if err != nil {
		t.Fatal(err)
	}
	defer portal.Close()

	provider, stopBrowser := startBrowser(t, ctx)
	defer stopBrowser()

	session := provider.Session()
	client := chartportal.NewClient(session, chartportal.Options{
		SearchUrl: portal.SearchUrl(),
		LoginUrl:  portal.LoginUrl(),
		Timings:   integrationTimings(),
	})

	{ // a fresh session is nowhere near the portal and logged out
		status, err := client.AuthStatus(ctx)
		require.NoError(t, err)
		require.False(t, status.LoggedIn)
	}

	{ // a wrong password never produces a session
		_, err := client.Login(ctx, portal.Username, "wrong")
		require.ErrorIs(t, err, chartportal.LoginFailed)
	}

	{ // the real form round-trip sets the session cookie
		status, err := client.Login(ctx, portal.Username, portal.Password)
		require.NoError(t, err)
		require.True(t, status.LoggedIn)
		require.Equal(t, portal.Username, status.Username)
	}

	{ // switching modes repopulates the product list via page scripts
		catalog, err := client.FetchProductCatalog(ctx, chartportal.ProductFilter{
			ProductType: chartportal.ProductTypeSurface,
		})
		require.NoError(t, err)
		require.Contains(t, catalog.Categories, "Analysis")
		require.Contains(t, catalog.Areas, "East Asia")

		var names []string
		for _, product := range catalog.Products {
			names = append(names, product.Name)
		}
		require.Contains(t, names, "Surface Analysis")
		require.Contains(t, names, "Surface Prognosis 24hr")
	}

	var steps []chartportal.TimeStep
	{ // the growing step array settles and parses into ordered steps
		result, err := client.FetchChartUrls(ctx, "41")
		require.NoError(t, err)
		require.Equal(t, "Surface Analysis", result.ProductName)
		require.Equal(t, "2024-01-15", result.Date)
		require.Len(t, result.Steps, 6)

		for i, step := range result.Steps {
			require.Equal(t, i, step.Index)
			require.True(t, strings.HasPrefix(step.ImageUrl, portal.baseUrl+"/dat/img/"), step.ImageUrl)
		}
		require.Equal(t, "Mon 00:00", result.Steps[0].Label)
		// entry 3 carries its label inline in the step array
		require.Equal(t, "T+072", result.Steps[3].Label)
		steps = result.Steps
	}

	{ // a product whose change handler never fires still harvests
		// through the manual loader invocation
		result, err := client.FetchChartUrls(ctx, "52")
		require.NoError(t, err)
		require.Equal(t, "Delayed Jet Stream Analysis", result.ProductName)
		require.Len(t, result.Steps, 3)
	}

	{ // downloads ride the browser's session cookie; the fixture 401s
		// cookieless image fetches
		cache, err := chartcache.NewService(session, chartcache.Options{
			CacheDir:      t.TempDir(),
			PortalBaseUrl: portal.SearchUrl(),
			RetryBackoff:  50 * time.Millisecond,
		})
		require.NoError(t, err)

		urls := make([]string, len(steps))
		for i, step := range steps {
			urls[i] = step.ImageUrl
		}

		paths, err := cache.DownloadCharts(ctx, urls, nil)
		require.NoError(t, err)
		require.Len(t, paths, len(urls))
		for _, path := range paths {
			info, err := os.Stat(path)
			require.NoError(t, err)
			require.EqualValues(t, 2048, info.Size())
		}

		// a second pass is pure cache hits
		again, err := cache.DownloadCharts(ctx, urls, nil)
		require.NoError(t, err)
		require.Equal(t, paths, again)
	}

	{ // logout drops the portal session
		require.NoError(t, client.Logout(ctx))
		status, err := client.AuthStatus(ctx)
		require.NoError(t, err)
		require.False(t, status.LoggedIn)
	}
}
