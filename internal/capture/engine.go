package capture

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/dealmungchi/dealextractor/logger"
)

// ErrEngineClosed is returned by Render after Close
var ErrEngineClosed = stderrors.New("capture engine closed")

const imagesScript = `Array.from(document.querySelectorAll('img')).map(img => ({
	src: img.currentSrc || img.src || '',
	naturalWidth: img.naturalWidth || 0,
	naturalHeight: img.naturalHeight || 0
}))`

// EngineConfig configures the shared browser
type EngineConfig struct {
	ExecPath    string
	Headless    bool
	UserAgent   string
	Timeout     time.Duration
	SettleDelay time.Duration
}

// Engine owns one long-lived browser shared by all captures. The browser is
// launched on first use; each Render gets its own tab.
type Engine struct {
	cfg EngineConfig
	log *logger.Logger

	mu            sync.Mutex
	closed        bool
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc

	launch func() (browserCtx context.Context, browserCancel, allocCancel context.CancelFunc, err error)
}

// NewEngine creates an engine without launching the browser
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = 0
	}
	e := &Engine{
		cfg: cfg,
		log: logger.ForCapture(),
	}
	e.launch = e.launchChrome
	return e
}

// browser returns the running browser context, launching it if needed.
// Launching happens under the lock so concurrent first calls share one browser.
func (e *Engine) browser() (context.Context, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrEngineClosed
	}
	if e.browserCtx != nil && e.browserCtx.Err() == nil {
		return e.browserCtx, nil
	}
	if e.browserCtx != nil {
		e.log.Warn().Msg("Browser exited, relaunching")
		e.release()
	}

	start := time.Now()
	browserCtx, browserCancel, allocCancel, err := e.launch()
	if err != nil {
		return nil, err
	}

	e.browserCtx = browserCtx
	e.browserCancel = browserCancel
	e.allocCancel = allocCancel

	e.log.Info().
		Bool("headless", e.cfg.Headless).
		Dur("startup", time.Since(start)).
		Msg("Browser launched")

	return browserCtx, nil
}

// launchChrome starts a local Chrome and waits for its first target
func (e *Engine) launchChrome() (context.Context, context.CancelFunc, context.CancelFunc, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", e.cfg.Headless),
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-web-security", true),
	)
	if e.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(e.cfg.UserAgent))
	}
	if e.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(e.cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...interface{}) {
			e.log.Debug().Msgf(format, args...)
		}),
	)

	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, nil, nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	return browserCtx, browserCancel, allocCancel, nil
}

// Render opens a tab, applies cookies, loads url, waits for the page to
// settle and reads back its DOM. The tab is closed before returning.
func (e *Engine) Render(ctx context.Context, url string, cookies []Cookie) (*Page, error) {
	browserCtx, err := e.browser()
	if err != nil {
		return nil, err
	}

	tabCtx, closeTab := chromedp.NewContext(browserCtx)
	defer closeTab()

	runCtx, cancel := context.WithTimeout(tabCtx, e.cfg.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	page := &Page{}
	err = chromedp.Run(runCtx,
		setCookies(url, cookies),
		chromedp.Navigate(url),
		chromedp.Sleep(e.cfg.SettleDelay),
		chromedp.OuterHTML("html", &page.HTML, chromedp.ByQuery),
		chromedp.Evaluate(imagesScript, &page.Images),
	)
	if err != nil {
		if stderrors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("render timed out after %s: %w", e.cfg.Timeout, err)
		}
		return nil, err
	}
	return page, nil
}

func setCookies(url string, cookies []Cookie) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if len(cookies) == 0 {
			return nil
		}
		params := make([]*network.CookieParam, 0, len(cookies))
		for _, c := range cookies {
			p := &network.CookieParam{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				URL:      c.URL,
				Secure:   c.Secure,
				HTTPOnly: c.HTTPOnly,
			}
			if p.URL == "" && p.Domain == "" {
				p.URL = url
			}
			params = append(params, p)
		}
		if err := network.SetCookies(params).Do(ctx); err != nil {
			return fmt.Errorf("failed to set cookies: %w", err)
		}
		return nil
	})
}

// Close shuts the browser down. Later Render calls fail with ErrEngineClosed.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	err := e.release()
	e.log.Info().Msg("Capture engine closed")
	return err
}

func (e *Engine) release() error {
	if e.browserCtx == nil {
		return nil
	}
	err := chromedp.Cancel(e.browserCtx)
	e.browserCancel()
	e.allocCancel()
	e.browserCtx, e.browserCancel, e.allocCancel = nil, nil, nil
	if err != nil && !stderrors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
