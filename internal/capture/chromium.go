package capture

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/chromedp/chromedp"
)

// Default capture parameters; the width fits an A4 page at 96 dpi.
const (
	DefaultWidth      = 1123
	DefaultHeight     = 1587
	DefaultTimeoutSec = 30

	readySelector = `[data-ready="true"]`
)

// Options defines parameters for a Chromium-based preview snapshot.
type Options struct {
	// BaseURL is the running server, e.g. "http://127.0.0.1:8080".
	BaseURL string

	// OutputPath is where the PNG is written. Empty skips the write.
	OutputPath string

	// Width and Height are the viewport dimensions in pixels. If zero,
	// DefaultWidth / DefaultHeight are used.
	Width  int
	Height int

	// Timeout bounds the entire capture operation.
	Timeout time.Duration
}

// Target selects the directive to render.
type Target struct {
	Number    int
	Date      time.Time
	Commander bool
	Planning  bool
}

// PreviewURL builds the /preview address for t under base.
func PreviewURL(base string, t Target) (string, error) {
	if base == "" {
		return "", errors.New("capture: base URL is required")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("capture: base URL: %w", err)
	}
	u = u.JoinPath("preview")
	q := url.Values{}
	q.Set("number", strconv.Itoa(t.Number))
	if !t.Date.IsZero() {
		q.Set("date", t.Date.Format("2006-01-02"))
	}
	if t.Commander {
		q.Set("cmt", "1")
	}
	if t.Planning {
		q.Set("pgi", "1")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// SnapshotPreview opens the HTML preview of t in headless Chromium, waits
// for the page to mark itself ready and returns a full-page PNG. The PNG is
// also written to opts.OutputPath when set.
func SnapshotPreview(parentCtx context.Context, opts Options, t Target) ([]byte, error) {
	target, err := PreviewURL(opts.BaseURL, t)
	if err != nil {
		return nil, err
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(target),
		chromedp.WaitVisible(readySelector, chromedp.ByQuery),
		// Small extra delay to allow final paints.
		chromedp.Sleep(300 * time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return nil, fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if opts.OutputPath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.OutputPath), 0o755); err != nil {
			return png, fmt.Errorf("capture: %w", err)
		}
		if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
			return png, fmt.Errorf("capture: failed to write PNG: %w", err)
		}
	}
	return png, nil
}
