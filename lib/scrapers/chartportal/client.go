// Package chartportal drives the meteorological chart portal's search
// page through a live browser session and extracts typed results from
// it. The portal offers no API: product lists are repopulated by its
// own change handlers and harvested chart paths accumulate in a page
// global with no completion signal, so every read here is a bounded
// poll rather than a wait on an event.
package chartportal

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"chartbrief-backend/lib/fifomu"
	"chartbrief-backend/lib/pollutil"
)

var tracer = otel.Tracer("lib/scrapers/chartportal")

var (
	NotAuthenticated = fmt.Errorf("not logged into the chart portal")
	LoginFailed      = fmt.Errorf("failed to login to the chart portal")
)

// Session is the slice of a browser session the portal client needs.
type Session interface {
	Location(ctx context.Context) (string, error)
	Navigate(ctx context.Context, url string) error
	EvaluateJSON(ctx context.Context, script string, out any) error
}

// Timings holds every wait bound the client uses. The defaults are
// tuned against the real portal; tests shrink them to keep runtimes
// sane.
type Timings struct {
	// page navigation and the portal's own widget initialization
	NavigationTimeout time.Duration
	NavigationSettle  time.Duration

	// step-array stability detection
	PollInterval         time.Duration
	RequiredStableChecks int
	ConfirmDelay         time.Duration
	ColdMinWait          time.Duration
	ColdMaxWait          time.Duration
	WarmMinWait          time.Duration
	WarmMaxWait          time.Duration

	// shorter re-poll after manually invoking the page's loader
	RetryMinWait time.Duration
	RetryMaxWait time.Duration

	// product list repopulation after a mode change
	ListPollTimeout time.Duration
	ListSettle      time.Duration

	// DOM step labels trailing the step array
	LabelPollTimeout  time.Duration
	LabelPartialAfter time.Duration

	// pause before re-trying a product selection that didn't stick
	SelectRetryPause time.Duration

	// login form submission round-trip
	LoginTimeout time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		NavigationTimeout:    15 * time.Second,
		NavigationSettle:     3 * time.Second,
		PollInterval:         500 * time.Millisecond,
		RequiredStableChecks: 6,
		ConfirmDelay:         1500 * time.Millisecond,
		ColdMinWait:          4 * time.Second,
		ColdMaxWait:          30 * time.Second,
		WarmMinWait:          2 * time.Second,
		WarmMaxWait:          20 * time.Second,
		RetryMinWait:         2 * time.Second,
		RetryMaxWait:         10 * time.Second,
		ListPollTimeout:      8 * time.Second,
		ListSettle:           500 * time.Millisecond,
		LabelPollTimeout:     8 * time.Second,
		LabelPartialAfter:    4 * time.Second,
		SelectRetryPause:     2 * time.Second,
		LoginTimeout:         10 * time.Second,
	}
}

type Options struct {
	// search page the client parks the session on
	SearchUrl string
	// portal's login page
	LoginUrl string
	// base the harvested relative image paths resolve against when the
	// page doesn't publish one itself
	ChartBaseUrl string
	// zero value means DefaultTimings
	Timings Timings
}

// Client serializes all stateful operations against the shared portal
// session. The portal is single-session, single-document state, so two
// concurrent filter changes would corrupt each other's results; every
// public operation takes the session lock first and waiters are served
// strictly in arrival order.
type Client struct {
	session Session
	options Options

	// scheme://host of the search url, used to tell "somewhere on the
	// portal" apart from "not even on the portal"
	portalOrigin string

	mu fifomu.Mutex
	// completed step harvests; the first two run with extended bounds
	// because the portal's first round-trips after login are much slower
	fetches int
}

func NewClient(session Session, options Options) *Client {
	if options.Timings == (Timings{}) {
		options.Timings = DefaultTimings()
	}

	origin := ""
	parsed, err := url.Parse(options.SearchUrl)
	if err == nil && parsed.Host != "" {
		origin = parsed.Scheme + "://" + parsed.Host
	}

	return &Client{
		session:      session,
		options:      options,
		portalOrigin: origin,
	}
}

// AuthStatus reports whether the session currently holds a logged-in
// portal state, probing the page the session is parked on.
func (c *Client) AuthStatus(ctx context.Context) (AuthStatus, error) {
	ctx, span := tracer.Start(ctx, "chartportal.AuthStatus")
	defer span.End()

	if err := c.mu.Lock(ctx); err != nil {
		return AuthStatus{}, err
	}
	defer c.mu.Unlock()

	loc, err := c.session.Location(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read session location")
		return AuthStatus{}, err
	}
	if c.portalOrigin == "" || !strings.HasPrefix(loc, c.portalOrigin) {
		// a session parked off-portal can't be logged in as far as the
		// portal is concerned
		return AuthStatus{}, nil
	}

	status, err := c.authProbe(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to probe login state")
		return AuthStatus{}, err
	}
	return status, nil
}

// Login submits the portal's login form and waits for the logged-in
// state to appear. Returns LoginFailed when the portal rejects the
// credentials.
func (c *Client) Login(ctx context.Context, username, password string) (AuthStatus, error) {
	ctx, span := tracer.Start(ctx, "chartportal.Login")
	defer span.End()

	if err := c.mu.Lock(ctx); err != nil {
		return AuthStatus{}, err
	}
	defer c.mu.Unlock()

	c.navigate(ctx, c.options.LoginUrl)

	var submitted bool
	err := c.session.EvaluateJSON(ctx, scriptLoginSubmit(username, password), &submitted)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit login form")
		return AuthStatus{}, err
	}
	if !submitted {
		err = fmt.Errorf("login form not found on %s", c.options.LoginUrl)
		span.RecordError(err)
		span.SetStatus(codes.Error, "login form not found")
		return AuthStatus{}, err
	}

	// the form submits through the portal's own script, so there is no
	// navigation to wait on, only the eventual appearance of the
	// logged-in header
	deadline := time.Now().Add(c.options.Timings.LoginTimeout)
	for {
		if err := sleep(ctx, c.options.Timings.PollInterval); err != nil {
			return AuthStatus{}, err
		}
		status, err := c.authProbe(ctx)
		if err == nil && status.LoggedIn {
			slog.Info("logged into chart portal", "username", status.Username)
			return status, nil
		}
		if time.Now().After(deadline) {
			span.RecordError(LoginFailed)
			span.SetStatus(codes.Error, "portal did not reach a logged-in state")
			return AuthStatus{}, LoginFailed
		}
	}
}

// Logout clicks the portal's logout control. Missing controls are not
// an error, the session simply wasn't logged in.
func (c *Client) Logout(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "chartportal.Logout")
	defer span.End()

	if err := c.mu.Lock(ctx); err != nil {
		return err
	}
	defer c.mu.Unlock()

	var clicked bool
	err := c.session.EvaluateJSON(ctx, scriptLogoutClick, &clicked)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to click logout")
		return err
	}
	if clicked {
		sleep(ctx, c.options.Timings.NavigationSettle)
	}
	return nil
}

// FetchProductCatalog sets the search form to the given filter and
// returns a snapshot of the repopulated dropdowns.
func (c *Client) FetchProductCatalog(ctx context.Context, filter ProductFilter) (ProductCatalogResult, error) {
	ctx, span := tracer.Start(ctx, "chartportal.FetchProductCatalog")
	defer span.End()

	if err := c.mu.Lock(ctx); err != nil {
		return ProductCatalogResult{}, err
	}
	defer c.mu.Unlock()

	catalog, err := c.fetchProductCatalog(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch product catalog")
		return ProductCatalogResult{}, err
	}
	return catalog, nil
}

// FetchChartUrls selects one product in the already-filtered list and
// harvests its time steps. A portal response with no usable entries
// yields an empty result, not an error.
func (c *Client) FetchChartUrls(ctx context.Context, productId string) (ChartUrlsResult, error) {
	ctx, span := tracer.Start(ctx, "chartportal.FetchChartUrls")
	defer span.End()

	if err := c.mu.Lock(ctx); err != nil {
		return ChartUrlsResult{}, err
	}
	defer c.mu.Unlock()

	if err := c.ensureSearchPage(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search page not reachable")
		return ChartUrlsResult{}, err
	}

	result, err := c.harvestSteps(ctx, productId)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to harvest chart steps")
		return ChartUrlsResult{}, err
	}
	return result, nil
}

// FetchCatalogAndChartUrls performs a catalog refresh and a step
// harvest under one session lock, so no interleaved caller can change
// the product type between the two.
func (c *Client) FetchCatalogAndChartUrls(ctx context.Context, filter ProductFilter, productId string) (CatalogAndChartUrlsResult, error) {
	ctx, span := tracer.Start(ctx, "chartportal.FetchCatalogAndChartUrls")
	defer span.End()

	if err := c.mu.Lock(ctx); err != nil {
		return CatalogAndChartUrlsResult{}, err
	}
	defer c.mu.Unlock()

	catalog, err := c.fetchProductCatalog(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch product catalog")
		return CatalogAndChartUrlsResult{}, err
	}

	charts, err := c.harvestSteps(ctx, productId)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to harvest chart steps")
		return CatalogAndChartUrlsResult{}, err
	}

	return CatalogAndChartUrlsResult{Catalog: catalog, ChartUrls: charts}, nil
}

// FetchChartUrlsForPpt is the lightweight variant used when refreshing
// steps for a product whose type is usually already selected: the
// product list is only reloaded when the form's current mode differs.
func (c *Client) FetchChartUrlsForPpt(ctx context.Context, productType ProductType, productId string) (ChartUrlsResult, error) {
	ctx, span := tracer.Start(ctx, "chartportal.FetchChartUrlsForPpt")
	defer span.End()

	if err := c.mu.Lock(ctx); err != nil {
		return ChartUrlsResult{}, err
	}
	defer c.mu.Unlock()

	if err := c.ensureSearchPage(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search page not reachable")
		return ChartUrlsResult{}, err
	}

	if _, err := c.ensureProductType(ctx, productType); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to ensure product type")
		return ChartUrlsResult{}, err
	}

	result, err := c.harvestSteps(ctx, productId)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to harvest chart steps")
		return ChartUrlsResult{}, err
	}
	return result, nil
}

func (c *Client) authProbe(ctx context.Context) (AuthStatus, error) {
	var status AuthStatus
	err := c.session.EvaluateJSON(ctx, scriptAuthProbe, &status)
	if err != nil {
		return AuthStatus{}, fmt.Errorf("failed to probe portal login state: %w", err)
	}
	return status, nil
}

// navigate drives the session to url and rides out the portal's widget
// initialization. A navigation that never reports load-complete is
// logged and tolerated: the page often becomes usable anyway, and the
// polling reads downstream treat a broken page as "not ready".
func (c *Client) navigate(ctx context.Context, target string) {
	navCtx, cancel := context.WithTimeout(ctx, c.options.Timings.NavigationTimeout)
	defer cancel()

	err := c.session.Navigate(navCtx, target)
	if err != nil {
		slog.Warn("portal navigation did not settle, continuing anyway", "url", target, "err", err)
	}
	sleep(ctx, c.options.Timings.NavigationSettle)
}

// ensureSearchPage is the precondition of every page interaction: the
// session must be logged in and parked on the search page.
func (c *Client) ensureSearchPage(ctx context.Context) error {
	loc, err := c.session.Location(ctx)
	if err != nil {
		return err
	}
	if c.portalOrigin != "" && !strings.HasPrefix(loc, c.portalOrigin) {
		c.navigate(ctx, c.options.SearchUrl)
	}

	status, err := c.authProbe(ctx)
	if err != nil {
		return err
	}
	if !status.LoggedIn {
		return NotAuthenticated
	}

	loc, err = c.session.Location(ctx)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(loc, c.options.SearchUrl) {
		c.navigate(ctx, c.options.SearchUrl)
	}
	return nil
}

func (c *Client) fetchProductCatalog(ctx context.Context, filter ProductFilter) (ProductCatalogResult, error) {
	if err := c.ensureSearchPage(ctx); err != nil {
		return ProductCatalogResult{}, err
	}
	if err := c.applyFilter(ctx, filter); err != nil {
		return ProductCatalogResult{}, err
	}
	return c.extractCatalog(ctx)
}

// applyFilter sets the form's mode select, applies the optional
// sub-selects and waits for the portal to repopulate the product list.
func (c *Client) applyFilter(ctx context.Context, filter ProductFilter) error {
	var ok bool
	err := c.session.EvaluateJSON(ctx, scriptSetProductType(filter.ProductType.FormCode()), &ok)
	if err != nil {
		return fmt.Errorf("failed to set product type: %w", err)
	}
	if !ok {
		return fmt.Errorf("chart search form not found on page")
	}

	subSelects := []struct {
		selector string
		value    string
	}{
		{"#searchCat", filter.Category},
		{"#searchKind", filter.Type},
		{"#searchArea", filter.Area},
		{"#searchDate", filter.Date},
	}
	for _, sub := range subSelects {
		if sub.value == "" {
			continue
		}
		var applied bool
		err := c.session.EvaluateJSON(ctx, scriptApplySelects(sub.selector, sub.value), &applied)
		if err != nil {
			return fmt.Errorf("failed to apply filter select %s: %w", sub.selector, err)
		}
		if !applied {
			// the portal prunes sub-selects per mode, a missing option is
			// an expectable mismatch rather than a failure
			slog.Warn("portal filter option not available", "selector", sub.selector, "value", sub.value)
		}
	}

	c.waitForProductList(ctx)
	return nil
}

// waitForProductList rides out the portal's list-reload round-trip
// after a mode change, plus a short settle for deferred DOM writes.
func (c *Client) waitForProductList(ctx context.Context) {
	timings := c.options.Timings
	count, _, _ := pollutil.WaitAtLeast(ctx, pollutil.MinOptions{
		Interval: timings.PollInterval,
		Min:      1,
		MaxWait:  timings.ListPollTimeout,
	}, func(ctx context.Context) (int, error) {
		var n int
		err := c.session.EvaluateJSON(ctx, scriptCountProductOptions, &n)
		return n, err
	})
	if count == 0 {
		slog.Warn("portal product list stayed empty", "waited", timings.ListPollTimeout)
	}
	sleep(ctx, timings.ListSettle)
}

func (c *Client) extractCatalog(ctx context.Context) (ProductCatalogResult, error) {
	var catalog ProductCatalogResult
	err := c.session.EvaluateJSON(ctx, scriptExtractCatalog, &catalog)
	if err != nil {
		return ProductCatalogResult{}, fmt.Errorf("failed to extract product catalog: %w", err)
	}
	if catalog.Products == nil {
		catalog.Products = []CatalogEntry{}
	}
	return catalog, nil
}

// ensureProductType reloads the product list only when the form's
// current mode differs from the wanted one. Returns whether a reload
// actually happened.
func (c *Client) ensureProductType(ctx context.Context, productType ProductType) (bool, error) {
	var current string
	err := c.session.EvaluateJSON(ctx, scriptReadProductTypeCode, &current)
	if err != nil {
		return false, fmt.Errorf("failed to read product type: %w", err)
	}
	if current == productType.FormCode() {
		return false, nil
	}

	err = c.applyFilter(ctx, ProductFilter{ProductType: productType})
	if err != nil {
		return false, err
	}
	return true, nil
}

// harvestSteps selects a product and waits for the page's step array to
// stop growing. The page mutates window.imgArr as its own network
// responses arrive and never signals completion, so "done" is defined
// as "unchanged long enough", with a confirmation re-read to catch a
// pause that was really a stall between responses.
func (c *Client) harvestSteps(ctx context.Context, productId string) (ChartUrlsResult, error) {
	timings := c.options.Timings

	cold := c.fetches < 2
	minWait, maxWait := timings.WarmMinWait, timings.WarmMaxWait
	if cold {
		minWait, maxWait = timings.ColdMinWait, timings.ColdMaxWait
	}

	if err := c.session.EvaluateJSON(ctx, scriptClearSteps, nil); err != nil {
		return ChartUrlsResult{}, fmt.Errorf("failed to clear step array: %w", err)
	}

	var selected string
	err := c.session.EvaluateJSON(ctx, scriptSelectProduct(productId), &selected)
	if err != nil {
		return ChartUrlsResult{}, fmt.Errorf("failed to select product %q: %w", productId, err)
	}
	if selected != productId {
		// the list may still have been mid-reload, give it a moment and
		// try once more
		slog.Warn("product selection did not stick, retrying once", "product_id", productId, "got", selected)
		if err := sleep(ctx, timings.SelectRetryPause); err != nil {
			return ChartUrlsResult{}, err
		}
		err := c.session.EvaluateJSON(ctx, scriptSelectProduct(productId), &selected)
		if err != nil {
			return ChartUrlsResult{}, fmt.Errorf("failed to select product %q: %w", productId, err)
		}
	}

	readSteps := func(ctx context.Context) (int, error) {
		var n int
		err := c.session.EvaluateJSON(ctx, scriptCountSteps, &n)
		return n, err
	}

	count, stable, err := pollutil.WaitStable(ctx, pollutil.StableOptions{
		Interval:             timings.PollInterval,
		RequiredStableChecks: timings.RequiredStableChecks,
		MinWait:              minWait,
		MaxWait:              maxWait,
		ConfirmDelay:         timings.ConfirmDelay,
	}, readSteps)
	if err != nil {
		return ChartUrlsResult{}, err
	}

	if count == 0 {
		// some products never fire their loader off the change event;
		// invoke the page's own loader by hand and poll again briefly
		var triggered bool
		if err := c.session.EvaluateJSON(ctx, scriptTriggerImageList, &triggered); err != nil {
			slog.Warn("failed to invoke portal image loader", "err", err)
		}
		if triggered {
			count, stable, err = pollutil.WaitStable(ctx, pollutil.StableOptions{
				Interval:             timings.PollInterval,
				RequiredStableChecks: timings.RequiredStableChecks,
				MinWait:              timings.RetryMinWait,
				MaxWait:              timings.RetryMaxWait,
				ConfirmDelay:         timings.ConfirmDelay,
			}, readSteps)
			if err != nil {
				return ChartUrlsResult{}, err
			}
		}
	}

	c.fetches++

	if count == 0 {
		slog.Info("portal returned no chart steps", "product_id", productId, "cold", cold)
		return ChartUrlsResult{Steps: []TimeStep{}}, nil
	}
	if !stable {
		slog.Warn("step array never stabilized, using last observed count",
			"product_id", productId, "count", count, "cold", cold)
	}

	// the DOM labels trail the array by however long the portal takes to
	// render them; a partial set is fine, the parser falls back per step
	labelCount, _, _ := pollutil.WaitAtLeast(ctx, pollutil.MinOptions{
		Interval:     timings.PollInterval,
		Min:          count,
		PartialAfter: timings.LabelPartialAfter,
		MaxWait:      timings.LabelPollTimeout,
	}, func(ctx context.Context) (int, error) {
		var n int
		err := c.session.EvaluateJSON(ctx, scriptCountStepLabels, &n)
		return n, err
	})
	if labelCount < count {
		slog.Debug("accepting partial step labels", "labels", labelCount, "steps", count)
	}

	var payload stepPayload
	if err := c.session.EvaluateJSON(ctx, scriptExtractSteps, &payload); err != nil {
		return ChartUrlsResult{}, fmt.Errorf("failed to extract chart steps: %w", err)
	}

	base := payload.Base
	if base == "" {
		base = c.options.ChartBaseUrl
	}

	return ChartUrlsResult{
		ProductName: payload.Title,
		Date:        payload.Date,
		Steps:       parseSteps(base, payload.Imgs, payload.Labels),
	}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
