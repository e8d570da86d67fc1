package gdocs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/api/docs/v1"

	"dsigen/internal/layout"
	appLog "dsigen/internal/log"
	"dsigen/internal/model"
	"dsigen/internal/retry"
)

// ErrTableNotFound is returned when a freshly inserted table cannot be
// found in the document.
var ErrTableNotFound = errors.New("gdocs: table not found after insert")

// Options tunes batching and pacing.
type Options struct {
	// FillChunk and StyleChunk cap the requests per batchUpdate call.
	FillChunk  int
	StyleChunk int
	// Pause is the minimum spacing between batchUpdate calls.
	Pause time.Duration
	Retry retry.Policy
}

// DefaultOptions matches the Docs API per-user write quota.
func DefaultOptions() Options {
	return Options{
		FillChunk:  100,
		StyleChunk: 50,
		Pause:      300 * time.Millisecond,
		Retry:      retry.Default(),
	}
}

// Draft is a directive ready to be written.
type Draft struct {
	Title     string
	Preamble  string
	Interlude string
	Closing   string
	WeekS     []model.TableRow
	WeekS1    []model.TableRow
}

// Writer creates directive documents. Calls are serialised so a single
// read-modify-write stream touches the service at a time.
type Writer struct {
	svc     Service
	opts    Options
	limiter *rate.Limiter

	mu sync.Mutex
}

func NewWriter(svc Service, opts Options) *Writer {
	def := DefaultOptions()
	if opts.FillChunk <= 0 {
		opts.FillChunk = def.FillChunk
	}
	if opts.StyleChunk <= 0 {
		opts.StyleChunk = def.StyleChunk
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = def.Retry
	}
	limit := rate.Inf
	if opts.Pause > 0 {
		limit = rate.Every(opts.Pause)
	}
	return &Writer{
		svc:     svc,
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Create writes d into a new document and returns its ID. A failed
// attempt is retried from scratch in a new document.
func (w *Writer) Create(ctx context.Context, d Draft) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var id string
	err := w.opts.Retry.Do(ctx, "create document", func(ctx context.Context) error {
		var err error
		id, err = w.create(ctx, d)
		if err != nil && id != "" {
			appLog.Warn("abandoning partial document", "document", id, "reason", err.Error())
		}
		return err
	})
	if err != nil {
		return "", fmt.Errorf("gdocs: create %q: %w", d.Title, err)
	}
	appLog.Info("document created", "document", id, "title", d.Title)
	return id, nil
}

func (w *Writer) create(ctx context.Context, d Draft) (string, error) {
	id, err := w.svc.Create(ctx, d.Title)
	if err != nil {
		return "", err
	}
	steps := []func(context.Context, string) error{
		w.appendText(d.Preamble),
		w.table(d.WeekS),
		w.appendText(d.Interlude),
		w.table(d.WeekS1),
		w.appendText(d.Closing),
		w.style,
	}
	for _, step := range steps {
		if err := step(ctx, id); err != nil {
			return id, err
		}
	}
	return id, nil
}

func (w *Writer) send(ctx context.Context, id string, reqs []*docs.Request, chunk int) error {
	for start := 0; start < len(reqs); start += chunk {
		end := min(start+chunk, len(reqs))
		if err := w.limiter.Wait(ctx); err != nil {
			return err
		}
		if err := w.svc.BatchUpdate(ctx, id, reqs[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) appendText(text string) func(context.Context, string) error {
	return func(ctx context.Context, id string) error {
		if text == "" {
			return nil
		}
		doc, err := w.svc.Get(ctx, id)
		if err != nil {
			return err
		}
		var b layout.OffsetBatch
		if err := b.InsertText(layout.EndIndex(doc)-1, text); err != nil {
			return err
		}
		return w.send(ctx, id, b.Requests(), w.opts.FillChunk)
	}
}

// lastTable refetches the document and returns its last table.
func (w *Writer) lastTable(ctx context.Context, id string) (*docs.StructuralElement, error) {
	doc, err := w.svc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	el, ok := layout.LastTable(doc)
	if !ok {
		return nil, ErrTableNotFound
	}
	return el, nil
}

// table appends a grid for rows, fills it, then styles it. Each stage works
// on offsets read right after the previous one.
func (w *Writer) table(rows []model.TableRow) func(context.Context, string) error {
	return func(ctx context.Context, id string) error {
		doc, err := w.svc.Get(ctx, id)
		if err != nil {
			return err
		}
		insert := []*docs.Request{layout.InsertTable(rows, layout.EndIndex(doc)-1)}
		if err := w.send(ctx, id, insert, 1); err != nil {
			return err
		}

		el, err := w.lastTable(ctx, id)
		if err != nil {
			return err
		}
		batch, err := layout.FillTable(el, rows)
		if err != nil {
			return err
		}
		if err := w.send(ctx, id, batch.Requests(), w.opts.FillChunk); err != nil {
			return fmt.Errorf("fill table: %w", err)
		}

		if el, err = w.lastTable(ctx, id); err != nil {
			return err
		}
		styles, err := layout.StyleTable(el, rows)
		if err != nil {
			return err
		}
		if err := w.send(ctx, id, styles, w.opts.StyleChunk); err != nil {
			return fmt.Errorf("style table: %w", err)
		}

		if el, err = w.lastTable(ctx, id); err != nil {
			return err
		}
		header, err := layout.HeaderText(el)
		if err != nil {
			return err
		}
		return w.send(ctx, id, header, w.opts.StyleChunk)
	}
}

func (w *Writer) style(ctx context.Context, id string) error {
	doc, err := w.svc.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := w.send(ctx, id, layout.DocumentStyle(doc), w.opts.StyleChunk); err != nil {
		return fmt.Errorf("document style: %w", err)
	}
	return nil
}
