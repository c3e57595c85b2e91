package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	log "github.com/sirupsen/logrus"
)

// BrowserFetcher drives a headless Chrome for retailers that render search
// results with JavaScript. Non-essential sub-resources (images, stylesheets,
// fonts) are blocked at the network layer to cut load on the retailer.
type BrowserFetcher struct {
	navTimeout time.Duration
	selTimeout time.Duration

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewBrowserFetcher creates a browser fetcher. Chrome is launched lazily on
// the first fetch so runs that never hit a render_js retailer stay light.
func NewBrowserFetcher(navTimeout, selTimeout time.Duration) *BrowserFetcher {
	return &BrowserFetcher{
		navTimeout: navTimeout,
		selTimeout: selTimeout,
	}
}

func (f *BrowserFetcher) ensureBrowser() (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		return f.browser, nil
	}

	l := launcher.New().Headless(true).NoSandbox(true)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	log.Info("Headless browser launched")
	f.launcher = l
	f.browser = browser
	return browser, nil
}

func (f *BrowserFetcher) FetchPage(ctx context.Context, p Params) (string, error) {
	browser, err := f.ensureBrowser()
	if err != nil {
		return "", err
	}

	page, err := stealth.Page(browser)
	if err != nil {
		return "", fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	blockSubResources(page)

	navCtx, cancel := context.WithTimeout(ctx, f.navTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(p.URL); err != nil {
		return "", fmt.Errorf("failed to navigate to %s: %w", p.URL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		log.Debugf("Wait load timed out for %s: %v", p.URL, err)
	}

	if p.WaitSelector != "" {
		selCtx, cancelSel := context.WithTimeout(ctx, f.selTimeout)
		_, err := page.Context(selCtx).Element(p.WaitSelector)
		cancelSel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(selCtx.Err(), context.DeadlineExceeded) {
				return "", ErrNoResults
			}
			return "", fmt.Errorf("failed waiting for %q: %w", p.WaitSelector, err)
		}
	}

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("failed to read page HTML: %w", err)
	}
	return html, nil
}

// blockSubResources aborts image, stylesheet and font requests before they
// leave the browser.
func blockSubResources(page *rod.Page) {
	router := page.HijackRequests()

	router.MustAdd("*", func(ctx *rod.Hijack) {
		switch ctx.Request.Type() {
		case proto.NetworkResourceTypeImage,
			proto.NetworkResourceTypeStylesheet,
			proto.NetworkResourceTypeFont:
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
		default:
			ctx.ContinueRequest(&proto.FetchContinueRequest{})
		}
	})

	go router.Run()
}

func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		if err := f.browser.Close(); err != nil {
			return fmt.Errorf("failed to close browser: %w", err)
		}
		f.browser = nil
	}
	if f.launcher != nil {
		f.launcher.Kill()
		f.launcher = nil
	}
	return nil
}
