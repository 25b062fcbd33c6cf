package fetch

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"

	"github.com/justscrape/justscrape/internal/config"
	"github.com/justscrape/justscrape/internal/model"
)

// Rendered fetches HTML through a headless Chrome instance so that
// script-built pages deliver their real content. A fresh browser context
// is created per fetch; the allocator is shared.
type Rendered struct {
	timeout  time.Duration
	wait     time.Duration
	headless bool
}

// NewRendered creates a Rendered fetcher from config.
func NewRendered(cfg config.RenderConfig) *Rendered {
	return &Rendered{
		timeout:  time.Duration(cfg.TimeoutSecs) * time.Second,
		wait:     time.Duration(cfg.WaitMillis) * time.Millisecond,
		headless: cfg.Headless,
	}
}

func (r *Rendered) Method() model.Method { return model.MethodRendered }

// Fetch navigates to the URL, waits for scripts to settle, and returns the
// rendered DOM.
func (r *Rendered) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", r.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(targetURL),
		chromedp.Sleep(r.wait),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: render %s", targetURL)
	}

	// The DOM arrives as UTF-8 from the browser; the status code is not
	// observable without network interception, so a successful render
	// reports 200.
	return &Page{
		URL:        targetURL,
		HTML:       html,
		StatusCode: 200,
		Method:     model.MethodRendered,
		EncodingOK: true,
	}, nil
}
