package commands

import (
	"context"
	"fmt"
	"time"

	"chartbrief-backend/lib/chartcache"
	"chartbrief-backend/lib/scrapers/chartportal"
	"chartbrief-backend/services/charts"

	"github.com/go-resty/resty/v2"
)

// restOperator drives a running charts server over its JSON API instead
// of booting a browser locally. Download progress is not streamed over
// the API; the callback only fires once with the final tally.
type restOperator struct {
	http *resty.Client
}

func newRestOperator(baseUrl, token string) restOperator {
	client := resty.New()
	client.SetBaseURL(baseUrl)
	client.SetTimeout(time.Minute * 5)
	if token != "" {
		client.SetAuthToken(token)
	}
	return restOperator{http: client}
}

type apiError struct {
	Error string `json:"error"`
}

func apiStatus(res *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if !res.IsError() {
		return nil
	}
	body, ok := res.Error().(*apiError)
	if ok && body.Error != "" {
		return fmt.Errorf("%s: %s", res.Request.URL, body.Error)
	}
	return fmt.Errorf("%s: %s", res.Request.URL, res.Status())
}

func (o restOperator) AuthStatus(ctx context.Context) (chartportal.AuthStatus, error) {
	var status chartportal.AuthStatus
	res, err := o.http.R().
		SetContext(ctx).
		SetError(&apiError{}).
		SetResult(&status).
		Get("/v1/auth/status")
	return status, apiStatus(res, err)
}

func (o restOperator) Login(ctx context.Context, username, password string) (chartportal.AuthStatus, error) {
	var status chartportal.AuthStatus
	res, err := o.http.R().
		SetContext(ctx).
		SetError(&apiError{}).
		SetBody(map[string]string{"username": username, "password": password}).
		SetResult(&status).
		Post("/v1/auth/login")
	return status, apiStatus(res, err)
}

func (o restOperator) SetCredentials(ctx context.Context, username, password string) error {
	res, err := o.http.R().
		SetContext(ctx).
		SetError(&apiError{}).
		SetBody(map[string]string{"username": username, "password": password}).
		Post("/v1/auth/credentials")
	return apiStatus(res, err)
}

func (o restOperator) Catalog(ctx context.Context, filter chartportal.ProductFilter) (chartportal.ProductCatalogResult, error) {
	var result chartportal.ProductCatalogResult
	res, err := o.http.R().
		SetContext(ctx).
		SetError(&apiError{}).
		SetQueryParams(map[string]string{
			"productType": string(filter.ProductType),
			"category":    filter.Category,
			"type":        filter.Type,
			"area":        filter.Area,
			"date":        filter.Date,
		}).
		SetResult(&result).
		Get("/v1/catalog")
	return result, apiStatus(res, err)
}

func (o restOperator) ChartUrls(ctx context.Context, productId string) (chartportal.ChartUrlsResult, error) {
	var result chartportal.ChartUrlsResult
	res, err := o.http.R().
		SetContext(ctx).
		SetError(&apiError{}).
		SetQueryParam("productId", productId).
		SetResult(&result).
		Get("/v1/charts")
	return result, apiStatus(res, err)
}

func (o restOperator) Download(ctx context.Context, urls []string, onProgress chartcache.ProgressFunc) ([]string, error) {
	var result struct {
		Paths []string `json:"paths"`
	}
	res, err := o.http.R().
		SetContext(ctx).
		SetError(&apiError{}).
		SetBody(map[string][]string{"urls": urls}).
		SetResult(&result).
		Post("/v1/downloads")
	err = apiStatus(res, err)
	if err != nil {
		return nil, err
	}
	if onProgress != nil {
		onProgress(len(urls), len(urls), "")
	}
	return result.Paths, nil
}

func (o restOperator) Relink(ctx context.Context, productType chartportal.ProductType, saved []string) (charts.RelinkResult, error) {
	var result charts.RelinkResult
	res, err := o.http.R().
		SetContext(ctx).
		SetError(&apiError{}).
		SetBody(map[string]any{"product_type": string(productType), "saved": saved}).
		SetResult(&result).
		Post("/v1/relink")
	return result, apiStatus(res, err)
}
