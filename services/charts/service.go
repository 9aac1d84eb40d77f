// Package charts composes the browser-driven portal client, the image
// cache and the credential keychain into the operations the REST
// surface and the CLI expose. The heavy lifting lives in the libs; this
// layer owns cross-cutting flows like "log in with whatever the
// keychain holds".
package charts

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"chartbrief-backend/lib/chartcache"
	"chartbrief-backend/lib/relink"
	"chartbrief-backend/lib/scrapers/chartportal"
	"chartbrief-backend/services/keychain"
)

var tracer = otel.Tracer("services/charts")

// Portal is the slice of the session automation client this service
// drives.
type Portal interface {
	AuthStatus(ctx context.Context) (chartportal.AuthStatus, error)
	Login(ctx context.Context, username, password string) (chartportal.AuthStatus, error)
	Logout(ctx context.Context) error
	FetchProductCatalog(ctx context.Context, filter chartportal.ProductFilter) (chartportal.ProductCatalogResult, error)
	FetchChartUrls(ctx context.Context, productId string) (chartportal.ChartUrlsResult, error)
	FetchCatalogAndChartUrls(ctx context.Context, filter chartportal.ProductFilter, productId string) (chartportal.CatalogAndChartUrlsResult, error)
	FetchChartUrlsForPpt(ctx context.Context, productType chartportal.ProductType, productId string) (chartportal.ChartUrlsResult, error)
}

// Downloader is the slice of the chart cache this service drives.
type Downloader interface {
	DownloadCharts(ctx context.Context, urls []string, onProgress chartcache.ProgressFunc) ([]string, error)
	FetchDataURL(ctx context.Context, url string) (string, error)
}

// CredentialStore hands out and stores the saved portal login.
type CredentialStore interface {
	GetCredentials(ctx context.Context) (keychain.Credentials, error)
	SetCredentials(ctx context.Context, username, password string) error
	ClearCredentials(ctx context.Context) error
}

type RelinkResult struct {
	Links []relink.ProductLink `json:"links"`
}

type Service struct {
	portal Portal
	cache  Downloader
	keys   CredentialStore
}

func NewService(portal Portal, cache Downloader, keys CredentialStore) Service {
	return Service{
		portal: portal,
		cache:  cache,
		keys:   keys,
	}
}

func (s Service) AuthStatus(ctx context.Context) (chartportal.AuthStatus, error) {
	ctx, span := tracer.Start(ctx, "charts.AuthStatus")
	defer span.End()

	status, err := s.portal.AuthStatus(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read auth status")
		return chartportal.AuthStatus{}, err
	}
	return status, nil
}

// Login authenticates the browser session. With an empty username the
// keychain's stored login is used, which is how the session comes back
// up after a restart without user interaction.
func (s Service) Login(ctx context.Context, username, password string) (chartportal.AuthStatus, error) {
	ctx, span := tracer.Start(ctx, "charts.Login")
	defer span.End()

	if username == "" {
		creds, err := s.keys.GetCredentials(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to read stored credentials")
			return chartportal.AuthStatus{}, err
		}
		if !creds.Stored {
			err := fmt.Errorf("no login provided and no stored credentials to fall back to")
			span.RecordError(err)
			span.SetStatus(codes.Error, "no credentials")
			return chartportal.AuthStatus{}, err
		}
		username, password = creds.Username, creds.Password
	}

	status, err := s.portal.Login(ctx, username, password)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "portal login failed")
		return chartportal.AuthStatus{}, err
	}
	return status, nil
}

func (s Service) Logout(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "charts.Logout")
	defer span.End()

	err := s.portal.Logout(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "portal logout failed")
		return err
	}
	return nil
}

// SetCredentials stores a login for later automatic use. The pair is
// validated against the portal first so the keychain never holds a
// login that is already known to be bad.
func (s Service) SetCredentials(ctx context.Context, username, password string) error {
	ctx, span := tracer.Start(ctx, "charts.SetCredentials")
	defer span.End()

	_, err := s.portal.Login(ctx, username, password)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "credential validation against the portal failed")
		return err
	}

	err = s.keys.SetCredentials(ctx, username, password)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to store credentials")
		return err
	}
	return nil
}

func (s Service) StoredCredentials(ctx context.Context) (keychain.Credentials, error) {
	return s.keys.GetCredentials(ctx)
}

func (s Service) ClearCredentials(ctx context.Context) error {
	return s.keys.ClearCredentials(ctx)
}

func (s Service) Catalog(ctx context.Context, filter chartportal.ProductFilter) (chartportal.ProductCatalogResult, error) {
	ctx, span := tracer.Start(ctx, "charts.Catalog")
	defer span.End()

	catalog, err := s.portal.FetchProductCatalog(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch catalog")
		return chartportal.ProductCatalogResult{}, err
	}
	return catalog, nil
}

func (s Service) ChartUrls(ctx context.Context, productId string) (chartportal.ChartUrlsResult, error) {
	ctx, span := tracer.Start(ctx, "charts.ChartUrls")
	defer span.End()

	result, err := s.portal.FetchChartUrls(ctx, productId)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch chart urls")
		return chartportal.ChartUrlsResult{}, err
	}
	return result, nil
}

func (s Service) CatalogAndChartUrls(ctx context.Context, filter chartportal.ProductFilter, productId string) (chartportal.CatalogAndChartUrlsResult, error) {
	ctx, span := tracer.Start(ctx, "charts.CatalogAndChartUrls")
	defer span.End()

	result, err := s.portal.FetchCatalogAndChartUrls(ctx, filter, productId)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch catalog and chart urls")
		return chartportal.CatalogAndChartUrlsResult{}, err
	}
	return result, nil
}

func (s Service) ChartUrlsForPpt(ctx context.Context, productType chartportal.ProductType, productId string) (chartportal.ChartUrlsResult, error) {
	ctx, span := tracer.Start(ctx, "charts.ChartUrlsForPpt")
	defer span.End()

	result, err := s.portal.FetchChartUrlsForPpt(ctx, productType, productId)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch chart urls for ppt")
		return chartportal.ChartUrlsResult{}, err
	}
	return result, nil
}

func (s Service) Image(ctx context.Context, url string) (string, error) {
	ctx, span := tracer.Start(ctx, "charts.Image")
	defer span.End()

	dataUrl, err := s.cache.FetchDataURL(ctx, url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch preview image")
		return "", err
	}
	return dataUrl, nil
}

func (s Service) Download(ctx context.Context, urls []string, onProgress chartcache.ProgressFunc) ([]string, error) {
	ctx, span := tracer.Start(ctx, "charts.Download")
	defer span.End()

	paths, err := s.cache.DownloadCharts(ctx, urls, onProgress)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "download batch failed")
		return paths, err
	}
	return paths, nil
}

// Relink re-finds saved product names in a fresh catalog of the given
// type. Saved documents reference products by display name because the
// portal's ids are not stable across its own updates.
func (s Service) Relink(ctx context.Context, productType chartportal.ProductType, saved []string) (RelinkResult, error) {
	ctx, span := tracer.Start(ctx, "charts.Relink")
	defer span.End()

	catalog, err := s.portal.FetchProductCatalog(ctx, chartportal.ProductFilter{
		ProductType: productType,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch catalog for relinking")
		return RelinkResult{}, err
	}

	return RelinkResult{
		Links: relink.LinkProducts(saved, catalog.Products),
	}, nil
}
