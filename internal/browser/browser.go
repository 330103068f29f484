package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/thredeisacoder/Amazon-Scraper/internal/config"
	"github.com/thredeisacoder/Amazon-Scraper/internal/transport"
)

// Browser is a Transport that renders pages in headless Chromium. Pages are
// fetched one at a time through a single shared context.
type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	opts    *Options
	logger  *slog.Logger
	mu      sync.Mutex
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
	MaxRetries     int
	Humanize       bool
	ExtraHeaders   map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "en-US,en;q=0.5",
		TimezoneID:     "America/New_York",
		Locale:         "en-US",
		MaxRetries:     2,
		ExtraHeaders: map[string]string{
			"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"DNT":    "1",
		},
	}
}

// OptionsFromConfig applies the browser section of the configuration on top
// of the defaults.
func OptionsFromConfig(cfg config.BrowserConfig, userAgent string) *Options {
	opts := DefaultOptions()
	opts.Headless = cfg.Headless
	if cfg.Timeout > 0 {
		opts.Timeout = cfg.Timeout
	}
	if cfg.AcceptLanguage != "" {
		opts.AcceptLanguage = cfg.AcceptLanguage
	}
	if cfg.Locale != "" {
		opts.Locale = cfg.Locale
	}
	if userAgent != "" {
		opts.UserAgent = userAgent
	}
	opts.Humanize = cfg.Humanize
	opts.ProxyServer = cfg.ProxyServer
	return opts
}

func New(opts *Options, logger *slog.Logger) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
			fmt.Sprintf("--window-size=%d,%d", opts.ViewportWidth, opts.ViewportHeight),
		},
	}

	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{
			Server: opts.ProxyServer,
		}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	extra := make(map[string]string, len(opts.ExtraHeaders)+1)
	for k, v := range opts.ExtraHeaders {
		extra[k] = v
	}
	if opts.AcceptLanguage != "" {
		extra["Accept-Language"] = opts.AcceptLanguage
	}

	contextOpts := playwright.BrowserNewContextOptions{
		UserAgent:         &opts.UserAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &opts.Locale,
		TimezoneId:        &opts.TimezoneID,
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		ExtraHttpHeaders: extra,
	}

	browserCtx, err := browser.NewContext(contextOpts)
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	return &Browser{
		pw:      pw,
		browser: browser,
		context: browserCtx,
		opts:    opts,
		logger:  logger.With("component", "browser"),
	}, nil
}

// Fetch renders rawURL and returns the resulting markup. Only the User-Agent
// of headers is applied; the rest is fixed per context.
func (b *Browser) Fetch(ctx context.Context, rawURL string, headers http.Header) (*transport.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	page, err := b.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}
	defer page.Close()

	page.SetDefaultTimeout(float64(b.opts.Timeout.Milliseconds()))

	if ua := headers.Get("User-Agent"); ua != "" {
		if err := page.SetExtraHTTPHeaders(map[string]string{"User-Agent": ua}); err != nil {
			b.logger.Debug("failed to set user agent", "error", err)
		}
	}

	status, err := b.navigateWithRetry(ctx, page, rawURL)
	if err != nil {
		return nil, err
	}
	if status != 0 && (status < 200 || status >= 300) {
		return nil, &transport.StatusError{URL: rawURL, StatusCode: status}
	}

	if b.opts.Humanize {
		b.humanize(page)
	}

	content, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to get page content: %w", err)
	}

	return &transport.Response{
		Body:        []byte(content),
		ContentType: "text/html; charset=utf-8",
		FinalURL:    page.URL(),
	}, nil
}

func (b *Browser) navigateWithRetry(ctx context.Context, page playwright.Page, url string) (int, error) {
	attempts := b.opts.MaxRetries + 1
	var lastErr error

	for i := 0; i < attempts; i++ {
		if i > 0 {
			b.logger.Info("retrying navigation", "attempt", i+1, "url", url)
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(time.Duration(i) * time.Second):
			}
		}

		resp, err := page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			Timeout:   playwright.Float(float64(b.opts.Timeout.Milliseconds())),
		})
		if err != nil {
			lastErr = err
			b.logger.Error("navigation failed", "error", err, "attempt", i+1)
			continue
		}

		if err := b.checkBotProtection(page); err != nil {
			lastErr = err
			continue
		}

		if resp == nil {
			return 0, nil
		}
		return resp.Status(), nil
	}

	return 0, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

var (
	botCheckMarkers = []string{
		"Klicke auf die Schaltfläche unten",
		"Type the characters you see in this image",
		"Enter the characters you see below",
	}
	errorPageMarkers = []string{"Tut uns Leid", "Sorry! Something went wrong"}

	continueButtonSelectors = []string{
		`button:has-text("Weiter shoppen")`,
		`button:has-text("Continue shopping")`,
		`input[type="submit"][value*="Weiter"]`,
		`.a-button-primary`,
		`button.a-button-text`,
	}
)

// checkBotProtection clicks through an interstitial when one is shown and
// fails when the page is a captcha or an error page.
func (b *Browser) checkBotProtection(page playwright.Page) error {
	content, err := page.Content()
	if err != nil {
		return fmt.Errorf("failed to get page content: %w", err)
	}

	if containsAny(content, errorPageMarkers) {
		return fmt.Errorf("error page served for %s", page.URL())
	}
	if !containsAny(content, botCheckMarkers) && !strings.Contains(content, "Weiter shoppen") {
		return nil
	}

	b.logger.Info("bot protection detected, attempting bypass")
	for _, selector := range continueButtonSelectors {
		button := page.Locator(selector).First()
		count, err := button.Count()
		if err != nil || count == 0 {
			continue
		}
		if err := button.Click(); err != nil {
			b.logger.Error("failed to click button", "selector", selector, "error", err)
			continue
		}
		page.WaitForLoadState()

		if newContent, _ := page.Content(); !containsAny(newContent, botCheckMarkers) {
			b.logger.Info("bypassed bot protection")
			return nil
		}
	}

	return fmt.Errorf("bot protection could not be bypassed for %s", page.URL())
}

func (b *Browser) humanize(page playwright.Page) {
	for i := 0; i < 3; i++ {
		page.Mouse().Move(float64(100+i*200), float64(100+i*150))
		time.Sleep(time.Duration(200+i*100) * time.Millisecond)
	}
	page.Evaluate(`window.scrollBy(0, Math.random() * 300)`)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func (b *Browser) Close() error {
	var errs []error

	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}

	return nil
}

var _ transport.Transport = (*Browser)(nil)
