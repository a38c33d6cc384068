package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

// Renderer loads pages in headless Chrome for portals whose report grids are
// filled in by client-side scripts.
type Renderer struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	timeout     time.Duration
	log         logrus.FieldLogger
}

// NewRenderer starts an exec allocator. execPath may be empty to let chromedp
// find Chrome on its own.
func NewRenderer(execPath string, timeout time.Duration, log logrus.FieldLogger) *Renderer {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.UserAgent("Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"),
	)
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Renderer{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		timeout:     timeout,
		log:         log,
	}
}

// Render navigates to pageURL, waits for waitSelector and returns the page HTML.
func (r *Renderer) Render(ctx context.Context, pageURL, waitSelector string) (string, error) {
	if r == nil {
		return "", fmt.Errorf("browser renderer not available")
	}

	taskCtx, taskCancel := chromedp.NewContext(r.allocCtx)
	defer taskCancel()

	taskCtx, timeoutCancel := context.WithTimeout(taskCtx, r.timeout)
	defer timeoutCancel()

	// Stop the browser tab if the caller gives up first.
	stop := context.AfterFunc(ctx, taskCancel)
	defer stop()

	r.log.WithField("url", pageURL).Debug("Rendering page in Chrome")

	var html string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady(waitSelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", pageURL, err)
	}

	return html, nil
}

func (r *Renderer) Close() {
	if r != nil && r.allocCancel != nil {
		r.allocCancel()
	}
}
