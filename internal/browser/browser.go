package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog"

	"github.com/polzovatel/webeye/internal/config"
)

// Controller exposes the page level actions; element level work goes
// through dom.Index.
type Controller interface {
	Close(ctx context.Context) error
	Navigate(ctx context.Context, url string) error
	GoBack(ctx context.Context) error
	WaitForStableDOM(ctx context.Context, timeout time.Duration) error
	SaveState(ctx context.Context, path string) error
	Page() playwright.Page
}

// Launcher owns playwright lifecycle.
type Launcher struct {
	pw       *playwright.Playwright
	browser  playwright.Browser
	settings config.Settings
	logger   zerolog.Logger
}

func NewLauncher(ctx context.Context, settings config.Settings, logger zerolog.Logger) (*Launcher, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(settings.Headless),
		Args: []string{
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	logger.Debug().Bool("headless", settings.Headless).Msg("chromium launched")
	return &Launcher{pw: pw, browser: browser, settings: settings, logger: logger}, nil
}

// NewController opens a page in a fresh context, restoring storage state from
// storagePath when that file exists.
func (l *Launcher) NewController(ctx context.Context, storagePath string) (Controller, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts := playwright.BrowserNewContextOptions{
		IgnoreHttpsErrors: playwright.Bool(true),
	}
	if strings.TrimSpace(storagePath) != "" {
		if _, err := os.Stat(storagePath); err == nil {
			opts.StorageStatePath = playwright.String(storagePath)
			l.logger.Info().Str("path", storagePath).Msg("storage state loaded")
		}
	}
	bctx, err := l.browser.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("new context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("new page: %w", err)
	}
	page.SetDefaultTimeout(float64(l.settings.BrowserActionTimeout.Milliseconds()))
	page.SetDefaultNavigationTimeout(float64(l.settings.NavigationTimeout.Milliseconds()))
	return &controller{context: bctx, page: page, navTimeout: l.settings.NavigationTimeout}, nil
}

func (l *Launcher) Close() error {
	if l.browser != nil {
		_ = l.browser.Close()
	}
	if l.pw != nil {
		return l.pw.Stop()
	}
	return nil
}

type controller struct {
	context    playwright.BrowserContext
	page       playwright.Page
	navTimeout time.Duration
}

func (c *controller) Page() playwright.Page {
	return c.page
}

func (c *controller) Close(ctx context.Context) error {
	_ = ctx
	if c.page != nil {
		_ = c.page.Close()
	}
	if c.context != nil {
		return c.context.Close()
	}
	return nil
}

func (c *controller) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   playwright.Float(float64(c.navTimeout.Milliseconds())),
	})
	return wrap(err)
}

func (c *controller) GoBack(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.page.GoBack()
	return wrap(err)
}

// WaitForStableDOM waits for network idle and then for 300ms without DOM
// mutations. A scrape taken before this returns may miss late widgets.
func (c *controller) WaitForStableDOM(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	if err := c.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	}); err != nil {
		_ = c.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
			State:   playwright.LoadStateDomcontentloaded,
			Timeout: playwright.Float(1000),
		})
	}

	script := `
		() => {
			return new Promise((resolve) => {
				let timeoutId;
				const observer = new MutationObserver(() => {
					clearTimeout(timeoutId);
					timeoutId = setTimeout(() => {
						observer.disconnect();
						resolve();
					}, 300);
				});
				observer.observe(document.body, {
					childList: true,
					subtree: true,
					attributes: true,
				});
				timeoutId = setTimeout(() => {
					observer.disconnect();
					resolve();
				}, 300);
			});
		}
	`
	_, err := c.page.Evaluate(script)
	return wrap(err)
}

func (c *controller) SaveState(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	state, err := c.context.StorageState()
	if err != nil {
		return wrap(err)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal storage: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("playwright: %w", err)
}
