package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"chartbrief-backend/lib/chartcache"
	"chartbrief-backend/lib/relink"
	"chartbrief-backend/lib/scrapers/chartportal"
	"chartbrief-backend/services/charts"
)

// stubService scripts service responses per test via func fields; the
// zero value answers everything with empty results.
type stubService struct {
	authStatus func(ctx context.Context) (chartportal.AuthStatus, error)
	login      func(ctx context.Context, username, password string) (chartportal.AuthStatus, error)
	chartUrls  func(ctx context.Context, productId string) (chartportal.ChartUrlsResult, error)
	download   func(ctx context.Context, urls []string) ([]string, error)
	relinkFn   func(ctx context.Context, productType chartportal.ProductType, saved []string) (charts.RelinkResult, error)
}

func (s *stubService) AuthStatus(ctx context.Context) (chartportal.AuthStatus, error) {
	if s.authStatus != nil {
		return s.authStatus(ctx)
	}
	return chartportal.AuthStatus{}, nil
}

func (s *stubService) Login(ctx context.Context, username, password string) (chartportal.AuthStatus, error) {
	if s.login != nil {
		return s.login(ctx, username, password)
	}
	return chartportal.AuthStatus{}, nil
}

func (s *stubService) SetCredentials(ctx context.Context, username, password string) error {
	_, err := s.Login(ctx, username, password)
	return err
}

func (s *stubService) Catalog(ctx context.Context, filter chartportal.ProductFilter) (chartportal.ProductCatalogResult, error) {
	return chartportal.ProductCatalogResult{Products: []chartportal.CatalogEntry{}}, nil
}

func (s *stubService) ChartUrls(ctx context.Context, productId string) (chartportal.ChartUrlsResult, error) {
	if s.chartUrls != nil {
		return s.chartUrls(ctx, productId)
	}
	return chartportal.ChartUrlsResult{Steps: []chartportal.TimeStep{}}, nil
}

func (s *stubService) CatalogAndChartUrls(ctx context.Context, filter chartportal.ProductFilter, productId string) (chartportal.CatalogAndChartUrlsResult, error) {
	catalog, _ := s.Catalog(ctx, filter)
	urls, err := s.ChartUrls(ctx, productId)
	return chartportal.CatalogAndChartUrlsResult{Catalog: catalog, ChartUrls: urls}, err
}

func (s *stubService) ChartUrlsForPpt(ctx context.Context, productType chartportal.ProductType, productId string) (chartportal.ChartUrlsResult, error) {
	return s.ChartUrls(ctx, productId)
}

func (s *stubService) Image(ctx context.Context, url string) (string, error) {
	return "data:image/png;base64,aGk=", nil
}

func (s *stubService) Download(ctx context.Context, urls []string, onProgress chartcache.ProgressFunc) ([]string, error) {
	if s.download != nil {
		return s.download(ctx, urls)
	}
	return nil, nil
}

func (s *stubService) Relink(ctx context.Context, productType chartportal.ProductType, saved []string) (charts.RelinkResult, error) {
	if s.relinkFn != nil {
		return s.relinkFn(ctx, productType, saved)
	}
	return charts.RelinkResult{Links: []relink.ProductLink{}}, nil
}

func doRequest(t *testing.T, router http.Handler, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func decodeBody[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	var value T
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&value))
	return value
}

func TestHealth(t *testing.T) {
	router := NewHandler(&stubService{}).SetupRoutes("")

	res := doRequest(t, router, "GET", "/healthz", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "ok", decodeBody[healthResponse](t, res).Status)
	require.NotEmpty(t, res.Header().Get("X-Request-Id"))
}

func TestAccessToken(t *testing.T) {
	router := NewHandler(&stubService{}).SetupRoutes("sesame")

	{ // api routes reject a missing or wrong token
		res := doRequest(t, router, "GET", "/v1/auth/status", "", nil)
		require.Equal(t, http.StatusUnauthorized, res.Code)

		res = doRequest(t, router, "GET", "/v1/auth/status", "", http.Header{
			"Authorization": []string{"Bearer wrong"},
		})
		require.Equal(t, http.StatusUnauthorized, res.Code)
	}
	{ // the right token passes
		res := doRequest(t, router, "GET", "/v1/auth/status", "", http.Header{
			"Authorization": []string{"Bearer sesame"},
		})
		require.Equal(t, http.StatusOK, res.Code)
	}
	{ // the health probe stays reachable without a token
		res := doRequest(t, router, "GET", "/healthz", "", nil)
		require.Equal(t, http.StatusOK, res.Code)
	}
}

func TestLogin(t *testing.T) {
	service := &stubService{
		login: func(ctx context.Context, username, password string) (chartportal.AuthStatus, error) {
			if password != "hunter2" {
				return chartportal.AuthStatus{}, chartportal.LoginFailed
			}
			return chartportal.AuthStatus{LoggedIn: true, Username: username}, nil
		},
	}
	router := NewHandler(service).SetupRoutes("")

	{
		res := doRequest(t, router, "POST", "/v1/auth/login",
			`{"username":"forecaster1","password":"hunter2"}`, nil)
		require.Equal(t, http.StatusOK, res.Code)

		status := decodeBody[chartportal.AuthStatus](t, res)
		require.True(t, status.LoggedIn)
		require.Equal(t, "forecaster1", status.Username)
	}
	{ // a portal rejection maps to 401, not 500
		res := doRequest(t, router, "POST", "/v1/auth/login",
			`{"username":"forecaster1","password":"wrong"}`, nil)
		require.Equal(t, http.StatusUnauthorized, res.Code)
		require.NotEmpty(t, decodeBody[errorBody](t, res).Error)
	}
	{
		res := doRequest(t, router, "POST", "/v1/auth/login", `{not json`, nil)
		require.Equal(t, http.StatusBadRequest, res.Code)
	}
}

func TestSetCredentialsValidation(t *testing.T) {
	router := NewHandler(&stubService{}).SetupRoutes("")

	res := doRequest(t, router, "POST", "/v1/auth/credentials", `{"username":"x"}`, nil)
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = doRequest(t, router, "POST", "/v1/auth/credentials",
		`{"username":"forecaster1","password":"hunter2"}`, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.True(t, decodeBody[credentialsResponse](t, res).Stored)
}

func TestCharts(t *testing.T) {
	service := &stubService{
		chartUrls: func(ctx context.Context, productId string) (chartportal.ChartUrlsResult, error) {
			if productId == "locked" {
				return chartportal.ChartUrlsResult{}, chartportal.NotAuthenticated
			}
			return chartportal.ChartUrlsResult{
				ProductName: "Surface Analysis",
				Date:        "2024-01-15",
				Steps: []chartportal.TimeStep{
					{Label: "Mon 12:00 UTC", Index: 0, ImageUrl: "https://charts.example.org/a.png"},
				},
			}, nil
		},
	}
	router := NewHandler(service).SetupRoutes("")

	{ // productId is mandatory
		res := doRequest(t, router, "GET", "/v1/charts", "", nil)
		require.Equal(t, http.StatusBadRequest, res.Code)
	}
	{
		res := doRequest(t, router, "GET", "/v1/charts?productId=42", "", nil)
		require.Equal(t, http.StatusOK, res.Code)

		result := decodeBody[chartportal.ChartUrlsResult](t, res)
		require.Equal(t, "Surface Analysis", result.ProductName)
		require.Len(t, result.Steps, 1)
	}
	{ // a logged-out session surfaces as 401
		res := doRequest(t, router, "GET", "/v1/charts?productId=locked", "", nil)
		require.Equal(t, http.StatusUnauthorized, res.Code)
	}
	{ // the combined and ppt variants share the validation
		res := doRequest(t, router, "GET", "/v1/catalog-charts", "", nil)
		require.Equal(t, http.StatusBadRequest, res.Code)
		res = doRequest(t, router, "GET", "/v1/ppt/charts", "", nil)
		require.Equal(t, http.StatusBadRequest, res.Code)
	}
}

func TestDownloads(t *testing.T) {
	service := &stubService{
		download: func(ctx context.Context, urls []string) ([]string, error) {
			if len(urls) == 0 {
				return nil, nil
			}
			paths := make([]string, len(urls))
			for i, u := range urls {
				if u != "" {
					paths[i] = fmt.Sprintf("/cache/%d.png", i)
				}
			}
			return paths, nil
		},
	}
	router := NewHandler(service).SetupRoutes("")

	res := doRequest(t, router, "POST", "/v1/downloads",
		`{"urls":["https://charts.example.org/a.png","","https://charts.example.org/b.png"]}`, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, []string{"/cache/0.png", "", "/cache/2.png"},
		decodeBody[downloadsResponse](t, res).Paths)

	{ // an empty batch still answers with a list, not null
		res := doRequest(t, router, "POST", "/v1/downloads", `{"urls":[]}`, nil)
		require.Equal(t, http.StatusOK, res.Code)
		require.NotNil(t, decodeBody[downloadsResponse](t, res).Paths)
	}
}

func TestRelink(t *testing.T) {
	var gotType chartportal.ProductType
	service := &stubService{
		relinkFn: func(ctx context.Context, productType chartportal.ProductType, saved []string) (charts.RelinkResult, error) {
			gotType = productType
			links := make([]relink.ProductLink, len(saved))
			for i, name := range saved {
				links[i] = relink.ProductLink{Saved: name, ProductId: "42", ProductName: name, Correlation: 1}
			}
			return charts.RelinkResult{Links: links}, nil
		},
	}
	router := NewHandler(service).SetupRoutes("")

	res := doRequest(t, router, "POST", "/v1/relink",
		`{"product_type":"WAVE","saved":["Surface Analysis"]}`, nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, chartportal.ProductTypeWave, gotType)

	var body charts.RelinkResult
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	require.Len(t, body.Links, 1)
	require.Equal(t, "42", body.Links[0].ProductId)
}

func TestImage(t *testing.T) {
	router := NewHandler(&stubService{}).SetupRoutes("")

	res := doRequest(t, router, "GET", "/v1/image", "", nil)
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = doRequest(t, router, "GET", "/v1/image?url=https%3A%2F%2Fcharts.example.org%2Fa.png", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.True(t, strings.HasPrefix(decodeBody[imageResponse](t, res).DataUrl, "data:image/png;base64,"))
}
