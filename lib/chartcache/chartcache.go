// Package chartcache resolves harvested chart image urls to locally
// cached files. Fetches go through the portal session's cookies because
// the portal serves images only to logged-in sessions, and a lot of the
// defensiveness here exists for one reason: on an expired session or a
// missing resource the portal responds 200 with an html login page, so
// a body is only accepted as an image after a content-type check and a
// minimum size check.
package chartcache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"chartbrief-backend/lib/restyutil"
)

const (
	// files below this size are placeholders or error pages, never real
	// chart imagery
	minValidSize = 1024
	maxAttempts  = 3
)

// ProgressFunc receives incremental download progress: how many items
// finished (successfully or not) out of total, and the url that just
// finished.
type ProgressFunc func(downloaded int, total int, current string)

// CookieSource hands out the authenticated session's cookies so cache
// fetches ride the same login the browser holds.
type CookieSource interface {
	Cookies(ctx context.Context) ([]*http.Cookie, error)
}

type Options struct {
	// directory the cache files live in, created when absent
	CacheDir string
	// portal page sent as the referer and used as the cookie scope
	PortalBaseUrl string
	// concurrent download workers, default 2
	Workers int
	// wait between attempts is this duration times the attempt number,
	// default 1500ms
	RetryBackoff time.Duration
}

type Service struct {
	client    *resty.Client
	source    CookieSource
	portalUrl *url.URL
	options   Options
}

func NewService(source CookieSource, options Options) (*Service, error) {
	if options.Workers <= 0 {
		options.Workers = 2
	}
	if options.RetryBackoff <= 0 {
		options.RetryBackoff = 1500 * time.Millisecond
	}

	portalUrl, err := url.Parse(options.PortalBaseUrl)
	if err != nil {
		return nil, fmt.Errorf("invalid portal base url: %w", err)
	}
	err = os.MkdirAll(options.CacheDir, 0755)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetHeader("referer", options.PortalBaseUrl)
	client.SetTimeout(time.Second * 30)

	restyutil.InstrumentClient(client, nil, restyInstrumentOutput)

	return &Service{
		client:    client,
		source:    source,
		portalUrl: portalUrl,
		options:   options,
	}, nil
}

// CachePath is the deterministic local path a url caches to. The key is
// derived from the url alone so repeated requests for the same chart
// hit the same file across runs.
func (s *Service) CachePath(rawUrl string) string {
	sum := sha256.Sum256([]byte(rawUrl))
	key := hex.EncodeToString(sum[:])[:16]

	ext := ".jpg"
	if strings.Contains(strings.ToLower(rawUrl), ".png") {
		ext = ".png"
	}
	return filepath.Join(s.options.CacheDir, key+ext)
}

type downloadTask struct {
	url   string
	index int
}

// DownloadCharts resolves urls to local file paths, preserving input
// order. Failed items come back as empty strings and never abort the
// rest of the batch; the only returned error is ctx's.
func (s *Service) DownloadCharts(ctx context.Context, urls []string, onProgress ProgressFunc) ([]string, error) {
	ctx, span := tracer.Start(ctx, "chartcache.DownloadCharts")
	defer span.End()

	s.refreshCookies(ctx)

	results := make([]string, len(urls))
	var downloaded atomic.Int32

	group, ctx := errgroup.WithContext(ctx)
	tasks := make(chan downloadTask)

	group.Go(func() error {
		defer close(tasks)
		for i, u := range urls {
			select {
			case tasks <- downloadTask{url: u, index: i}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for i := 0; i < s.options.Workers; i++ {
		group.Go(func() error {
			for task := range tasks {
				path, err := s.downloadOne(ctx, task.url)
				if err != nil {
					slog.Warn("failed to download chart image", "url", task.url, "err", err)
				}
				// workers write disjoint indexes, no coordination needed
				results[task.index] = path

				count := int(downloaded.Add(1))
				if onProgress != nil {
					onProgress(count, len(urls), task.url)
				}
			}
			return nil
		})
	}

	err := group.Wait()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "download batch cancelled")
		return results, err
	}
	return results, nil
}

// downloadOne resolves a single url to its cache path, downloading only
// when no valid cached file exists. All failures come back as an error
// with an empty path; the caller decides that this is non-fatal.
func (s *Service) downloadOne(ctx context.Context, rawUrl string) (string, error) {
	if rawUrl == "" || !strings.HasPrefix(rawUrl, "http") {
		return "", fmt.Errorf("not a fetchable url: %q", rawUrl)
	}

	path := s.CachePath(rawUrl)
	info, err := os.Stat(path)
	if err == nil {
		if info.Size() >= minValidSize {
			return path, nil
		}
		// undersized leftovers are placeholders from a previous bad run
		os.Remove(path)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := s.fetchToFile(ctx, rawUrl, path)
		if err == nil {
			return path, nil
		}
		lastErr = err
		os.Remove(path)

		if attempt < maxAttempts {
			if err := sleep(ctx, s.options.RetryBackoff*time.Duration(attempt)); err != nil {
				return "", err
			}
		}
	}
	return "", fmt.Errorf("%d attempts failed: %w", maxAttempts, lastErr)
}

func (s *Service) fetchToFile(ctx context.Context, rawUrl, path string) error {
	body, _, err := s.fetch(ctx, rawUrl)
	if err != nil {
		return err
	}
	if len(body) < minValidSize {
		return fmt.Errorf("undersized response: %d bytes", len(body))
	}
	return os.WriteFile(path, body, 0644)
}

func (s *Service) fetch(ctx context.Context, rawUrl string) ([]byte, string, error) {
	res, err := s.client.R().SetContext(ctx).Get(rawUrl)
	if err != nil {
		return nil, "", err
	}
	if !res.IsSuccess() {
		return nil, "", fmt.Errorf("bad status: %s", res.Status())
	}

	contentType := res.Header().Get("Content-Type")
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return nil, "", fmt.Errorf(
			"portal returned an html page instead of an image: %q",
			htmlTitle(res.Body()),
		)
	}
	return res.Body(), contentType, nil
}

// FetchDataURL fetches one image through the session transport and
// returns it as a base64 data url for previews. Results are not cached
// and no size floor applies, previews may legitimately be tiny.
func (s *Service) FetchDataURL(ctx context.Context, rawUrl string) (string, error) {
	ctx, span := tracer.Start(ctx, "chartcache.FetchDataURL")
	defer span.End()

	if rawUrl == "" || !strings.HasPrefix(rawUrl, "http") {
		err := fmt.Errorf("not a fetchable url: %q", rawUrl)
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid url")
		return "", err
	}

	s.refreshCookies(ctx)

	body, contentType, err := s.fetch(ctx, rawUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch image")
		return "", err
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}

	return fmt.Sprintf(
		"data:%s;base64,%s",
		contentType,
		base64.StdEncoding.EncodeToString(body),
	), nil
}

func (s *Service) refreshCookies(ctx context.Context) {
	if s.source == nil {
		return
	}
	cookies, err := s.source.Cookies(ctx)
	if err != nil {
		slog.Warn("failed to read session cookies, downloads may come back unauthenticated", "err", err)
		return
	}
	s.client.GetClient().Jar.SetCookies(s.portalUrl, cookies)
}

// htmlTitle pulls the title out of a disguised error page so the log
// line says "Login" instead of a byte count.
func htmlTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
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
