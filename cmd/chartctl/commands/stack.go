package commands

import (
	"context"

	devenv "chartbrief-backend/dev/env"
	"chartbrief-backend/lib/browser"
	"chartbrief-backend/lib/chartcache"
	"chartbrief-backend/lib/configutil"
	configlibsql "chartbrief-backend/lib/configutil/libsql"
	"chartbrief-backend/lib/scrapers/chartportal"
	"chartbrief-backend/lib/serviceutil"
	"chartbrief-backend/services/charts"
	"chartbrief-backend/services/keychain"
	keychaindb "chartbrief-backend/services/keychain/db"
)

type PortalConfig struct {
	SearchUrl    string `json:"search_url"`
	LoginUrl     string `json:"login_url"`
	ChartBaseUrl string `json:"chart_base_url"`
}

type CacheConfig struct {
	Directory string `json:"directory"`
	Workers   int    `json:"workers"`
}

type Config struct {
	Database configlibsql.Struct `json:"database"`
	Browser  browser.Options     `json:"browser"`
	Portal   PortalConfig        `json:"portal"`
	Cache    CacheConfig         `json:"cache"`
}

// productTypeFlag treats an unset flag as the portal's first mode
// instead of routing through the loud unknown-type fallback.
func productTypeFlag(raw string) chartportal.ProductType {
	if raw == "" {
		return chartportal.ProductTypeCharts
	}
	return chartportal.ParseProductType(raw)
}

// operator is the slice of the charts service the commands drive. Both
// the in-process service and the REST client satisfy it.
type operator interface {
	AuthStatus(ctx context.Context) (chartportal.AuthStatus, error)
	Login(ctx context.Context, username, password string) (chartportal.AuthStatus, error)
	SetCredentials(ctx context.Context, username, password string) error
	Catalog(ctx context.Context, filter chartportal.ProductFilter) (chartportal.ProductCatalogResult, error)
	ChartUrls(ctx context.Context, productId string) (chartportal.ChartUrlsResult, error)
	Download(ctx context.Context, urls []string, onProgress chartcache.ProgressFunc) ([]string, error)
	Relink(ctx context.Context, productType chartportal.ProductType, saved []string) (charts.RelinkResult, error)
}

// createOperator talks to a running server when --server is given,
// otherwise it boots the whole acquisition stack in this process. The
// returned cleanup shuts down whatever was started.
func createOperator(ctx context.Context) (operator, func()) {
	if *serverBaseUrl != "" {
		return newRestOperator(*serverBaseUrl, *accessToken), func() {}
	}

	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("read config", err)
	}

	db, err := cfg.Database.OpenDB(keychaindb.Schema)
	if err != nil {
		serviceutil.Fatal("open keychain database", err)
	}

	provider, err := browser.NewProvider(ctx, cfg.Browser)
	if err != nil {
		serviceutil.Fatal("start browser", err)
	}
	session := provider.Session()

	portal := chartportal.NewClient(session, chartportal.Options{
		SearchUrl:    cfg.Portal.SearchUrl,
		LoginUrl:     cfg.Portal.LoginUrl,
		ChartBaseUrl: cfg.Portal.ChartBaseUrl,
	})

	cacheDir, err := devenv.ResolvePath(cfg.Cache.Directory)
	if err != nil {
		serviceutil.Fatal("resolve cache directory", err)
	}
	cache, err := chartcache.NewService(session, chartcache.Options{
		CacheDir:      cacheDir,
		PortalBaseUrl: cfg.Portal.SearchUrl,
		Workers:       cfg.Cache.Workers,
	})
	if err != nil {
		serviceutil.Fatal("init chart cache", err)
	}

	service := charts.NewService(portal, cache, keychain.NewService(db))
	return service, provider.Close
}
