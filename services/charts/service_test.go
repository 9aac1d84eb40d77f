package charts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"chartbrief-backend/lib/chartcache"
	"chartbrief-backend/lib/scrapers/chartportal"
	"chartbrief-backend/lib/testutil"
	"chartbrief-backend/services/keychain"
)

type loginAttempt struct {
	username string
	password string
}

type fakePortal struct {
	catalog    chartportal.ProductCatalogResult
	loginErr   error
	logins     []loginAttempt
	lastFilter chartportal.ProductFilter
}

func (p *fakePortal) AuthStatus(ctx context.Context) (chartportal.AuthStatus, error) {
	return chartportal.AuthStatus{}, nil
}

func (p *fakePortal) Login(ctx context.Context, username, password string) (chartportal.AuthStatus, error) {
	p.logins = append(p.logins, loginAttempt{username: username, password: password})
	if p.loginErr != nil {
		return chartportal.AuthStatus{}, p.loginErr
	}
	return chartportal.AuthStatus{LoggedIn: true, Username: username}, nil
}

func (p *fakePortal) Logout(ctx context.Context) error {
	return nil
}

func (p *fakePortal) FetchProductCatalog(ctx context.Context, filter chartportal.ProductFilter) (chartportal.ProductCatalogResult, error) {
	p.lastFilter = filter
	return p.catalog, nil
}

func (p *fakePortal) FetchChartUrls(ctx context.Context, productId string) (chartportal.ChartUrlsResult, error) {
	return chartportal.ChartUrlsResult{}, nil
}

func (p *fakePortal) FetchCatalogAndChartUrls(ctx context.Context, filter chartportal.ProductFilter, productId string) (chartportal.CatalogAndChartUrlsResult, error) {
	return chartportal.CatalogAndChartUrlsResult{}, nil
}

func (p *fakePortal) FetchChartUrlsForPpt(ctx context.Context, productType chartportal.ProductType, productId string) (chartportal.ChartUrlsResult, error) {
	return chartportal.ChartUrlsResult{}, nil
}

type fakeKeys struct {
	creds  keychain.Credentials
	stored []loginAttempt
}

func (k *fakeKeys) GetCredentials(ctx context.Context) (keychain.Credentials, error) {
	return k.creds, nil
}

func (k *fakeKeys) SetCredentials(ctx context.Context, username, password string) error {
	k.stored = append(k.stored, loginAttempt{username: username, password: password})
	return nil
}

func (k *fakeKeys) ClearCredentials(ctx context.Context) error {
	k.creds = keychain.Credentials{}
	return nil
}

type fakeCache struct{}

func (c fakeCache) DownloadCharts(ctx context.Context, urls []string, onProgress chartcache.ProgressFunc) ([]string, error) {
	return make([]string, len(urls)), nil
}

func (c fakeCache) FetchDataURL(ctx context.Context, url string) (string, error) {
	return "data:image/png;base64,aGk=", nil
}

func setup(t testing.TB, portal *fakePortal, keys *fakeKeys) (Service, func()) {
	_, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name: "services/charts",
	})
	return NewService(portal, fakeCache{}, keys), cleanup
}

func TestLoginFallsBackToStoredCredentials(t *testing.T) {
	portal := &fakePortal{}
	keys := &fakeKeys{
		creds: keychain.Credentials{Username: "forecaster1", Password: "hunter2", Stored: true},
	}
	service, cleanup := setup(t, portal, keys)
	defer cleanup()

	ctx := context.Background()

	{ // explicit credentials bypass the keychain
		status, err := service.Login(ctx, "forecaster2", "swordfish")
		require.NoError(t, err)
		require.True(t, status.LoggedIn)
		require.Equal(t, []loginAttempt{{"forecaster2", "swordfish"}}, portal.logins)
	}

	{ // an empty username pulls the stored pair
		_, err := service.Login(ctx, "", "")
		require.NoError(t, err)
		require.Equal(t, loginAttempt{"forecaster1", "hunter2"}, portal.logins[1])
	}
}

func TestLoginWithoutAnyCredentialsFails(t *testing.T) {
	portal := &fakePortal{}
	service, cleanup := setup(t, portal, &fakeKeys{})
	defer cleanup()

	_, err := service.Login(context.Background(), "", "")
	require.Error(t, err)
	require.Empty(t, portal.logins)
}

func TestSetCredentialsValidatesAgainstPortalFirst(t *testing.T) {
	{ // a rejected login never reaches the keychain
		portal := &fakePortal{loginErr: chartportal.LoginFailed}
		keys := &fakeKeys{}
		service, cleanup := setup(t, portal, keys)
		defer cleanup()

		err := service.SetCredentials(context.Background(), "forecaster1", "wrong")
		require.ErrorIs(t, err, chartportal.LoginFailed)
		require.Empty(t, keys.stored)
	}

	{ // an accepted login is stored
		portal := &fakePortal{}
		keys := &fakeKeys{}
		service, cleanup := setup(t, portal, keys)
		defer cleanup()

		err := service.SetCredentials(context.Background(), "forecaster1", "hunter2")
		require.NoError(t, err)
		require.Equal(t, []loginAttempt{{"forecaster1", "hunter2"}}, keys.stored)
	}
}

func TestRelinkMatchesSavedNamesAgainstFreshCatalog(t *testing.T) {
	portal := &fakePortal{
		catalog: chartportal.ProductCatalogResult{
			Products: []chartportal.CatalogEntry{
				{Id: "41", Name: "Surface Analysis", Category: "Analysis"},
				{Id: "42", Name: "Surface Prognosis 24hr", Category: "Forecast"},
			},
		},
	}
	service, cleanup := setup(t, portal, &fakeKeys{})
	defer cleanup()

	result, err := service.Relink(
		context.Background(),
		chartportal.ProductTypeSurface,
		[]string{"Surface Analysis", "Surface Prognosis 24h"},
	)
	require.NoError(t, err)
	require.Equal(t, chartportal.ProductTypeSurface, portal.lastFilter.ProductType)

	require.Len(t, result.Links, 2)
	require.Equal(t, "41", result.Links[0].ProductId)
	require.Equal(t, float64(1), result.Links[0].Correlation)
	require.Equal(t, "42", result.Links[1].ProductId)
	require.Greater(t, result.Links[1].Correlation, 0.9)
}

func TestDownloadKeepsBatchShape(t *testing.T) {
	service, cleanup := setup(t, &fakePortal{}, &fakeKeys{})
	defer cleanup()

	urls := []string{"https://example.org/a.png", "https://example.org/b.png"}
	paths, err := service.Download(context.Background(), urls, nil)
	require.NoError(t, err)
	require.Len(t, paths, len(urls))
}
