package main

import (
	"flag"
	"log/slog"

	devenv "chartbrief-backend/dev/env"
	"chartbrief-backend/lib/browser"
	"chartbrief-backend/lib/chartcache"
	"chartbrief-backend/lib/configutil"
	configlibsql "chartbrief-backend/lib/configutil/libsql"
	"chartbrief-backend/lib/osutil"
	"chartbrief-backend/lib/scrapers/chartportal"
	"chartbrief-backend/lib/serviceutil"
	"chartbrief-backend/services/charts"
	"chartbrief-backend/services/charts/server"
	"chartbrief-backend/services/keychain"
	keychaindb "chartbrief-backend/services/keychain/db"

	"github.com/joho/godotenv"
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
	Port        int                 `json:"port"`
	AccessToken string              `json:"access_token"`
	Database    configlibsql.Struct `json:"database"`
	Browser     browser.Options     `json:"browser"`
	Portal      PortalConfig        `json:"portal"`
	Cache       CacheConfig         `json:"cache"`
}

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	flag.Parse()

	ctx := osutil.SignalContext()

	err := godotenv.Load()
	if err != nil {
		slog.Info("no .env file found, using ambient environment")
	}

	InitTelemetry(ctx, *verbose)

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
	defer provider.Close()
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
	router := server.NewHandler(service).SetupRoutes(cfg.AccessToken)

	go serviceutil.StartHttpServer(ctx, cfg.Port, router)
	<-ctx.Done()
}
