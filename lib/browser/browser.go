// Package browser owns the one logical Chrome session the scrapers
// drive. It deliberately exposes a very small surface: navigate,
// evaluate, current location and cookie export. Everything the portal
// page itself means is somebody else's business.
package browser

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type Options struct {
	// path to the chrome binary, falls back to $CHROME_PATH and then
	// to whatever chromedp can find on its own
	ExecPath string `json:"exec_path"`
	// websocket url of an already running browser (e.g. a
	// headless-shell container); when set, no local chrome is launched
	RemoteUrl   string `json:"remote_url"`
	Headless    bool   `json:"headless"`
	UserDataDir string `json:"user_data_dir"`
}

type Provider struct {
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
	session       *Session
}

// NewProvider starts (or attaches to) the browser and returns a provider
// holding its one session. The browser lives until Close is called or
// ctx is cancelled.
func NewProvider(ctx context.Context, opts Options) (*Provider, error) {
	var allocCtx context.Context
	var allocCancel context.CancelFunc

	if opts.RemoteUrl != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, opts.RemoteUrl)
	} else {
		execPath := opts.ExecPath
		if execPath == "" {
			execPath = os.Getenv("CHROME_PATH")
		}

		allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		allocOpts = append(allocOpts, chromedp.UserAgent(userAgent))
		if execPath != "" {
			allocOpts = append(allocOpts, chromedp.ExecPath(execPath))
		}
		if !opts.Headless {
			allocOpts = append(allocOpts, chromedp.Flag("headless", false))
		}
		if opts.UserDataDir != "" {
			allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, allocOpts...)
	}

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// an empty run forces the browser to actually start so failures
	// surface here instead of on the first operation
	err := chromedp.Run(browserCtx)
	if err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return &Provider{
		allocCancel:   allocCancel,
		browserCancel: browserCancel,
		session:       &Session{ctx: browserCtx},
	}, nil
}

func (p *Provider) Session() *Session {
	return p.session
}

func (p *Provider) Close() {
	p.browserCancel()
	p.allocCancel()
}

// Session is a live browser tab. All methods honor the caller's context
// on top of the session's own lifetime.
type Session struct {
	ctx context.Context
}

func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// Navigate blocks until the page's load event fires or ctx expires.
func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

func (s *Session) Location(ctx context.Context) (string, error) {
	var location string
	err := s.run(ctx, chromedp.Location(&location))
	return location, err
}

// EvaluateJSON evaluates script in the page and decodes its
// JSON-serialized value into out. Pass nil when the value is
// irrelevant. Results always cross the boundary by value, never as
// remote object handles.
func (s *Session) EvaluateJSON(ctx context.Context, script string, out any) error {
	return s.run(ctx, chromedp.Evaluate(script, out))
}

// Cookies exports the browser's cookie store so a plain http transport
// can make requests as the logged-in session.
func (s *Session) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	var exported []*http.Cookie
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := storage.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range cookies {
			cookie := &http.Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Secure:   c.Secure,
				HttpOnly: c.HTTPOnly,
			}
			if c.Expires > 0 {
				cookie.Expires = time.Unix(int64(c.Expires), 0)
			}
			exported = append(exported, cookie)
		}
		return nil
	}))
	if err != nil {
		return nil, err
	}
	return exported, nil
}
