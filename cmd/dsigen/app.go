package main

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/option"

	"dsigen/internal/cache"
	"dsigen/internal/config"
	"dsigen/internal/gcal"
	"dsigen/internal/gdocs"
	"dsigen/internal/ics"
	"dsigen/internal/layout"
	appLog "dsigen/internal/log"
	"dsigen/internal/report"
	"dsigen/internal/retry"
	"dsigen/internal/source"
	"dsigen/internal/table"
)

// app is the wired directive pipeline for one process.
type app struct {
	cfg     *config.Config
	session *report.Session
	gen     *report.Generator
	close   func()
}

// newApp wires calendars, cache and (when withDocs is set) the Google Docs
// writer. Preview, export and snapshot run without document credentials.
func newApp(ctx context.Context, cfg *config.Config, withDocs bool) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, closeStore := newStore(ctx, cfg)
	session := report.NewSession(store)

	lister, err := newLister(ctx, cfg)
	if err != nil {
		closeStore()
		return nil, err
	}
	gw := source.NewGateway(lister, source.WithCache(store), source.WithWorkers(cfg.Workers))

	var writer report.DocumentWriter
	if withDocs {
		svc, err := gdocs.NewGoogle(ctx, option.WithCredentialsFile(cfg.Google.CredentialsFile))
		if err != nil {
			closeStore()
			return nil, err
		}
		writer = gdocs.NewWriter(svc, gdocs.Options{
			FillChunk:  cfg.Docs.FillChunk,
			StyleChunk: cfg.Docs.StyleChunk,
			Pause:      cfg.Docs.Pause,
			Retry: retry.Policy{
				MaxAttempts: cfg.Docs.MaxAttempts,
				Backoff:     cfg.Docs.Backoff,
				Factor:      1,
			},
		})
	} else {
		writer = noDocs{}
	}

	c := cfg.Calendars
	gen := report.NewGenerator(gw, session, writer, report.Calendars{
		Primary:    table.Calendar{ID: c.Primary.ID, Owner: c.Primary.Owner},
		Commander:  table.Calendar{ID: c.Commander.ID, Owner: c.Commander.Owner},
		Planning:   table.Calendar{ID: c.Planning.ID, Owner: c.Planning.Owner},
		Courses:    c.Courses.ID,
		Holidays:   c.Holidays.ID,
		Week:       c.Week.ID,
		Phase:      c.Phase.ID,
		Operations: c.Operations.ID,
	}, layout.Letterhead{
		Tag:      cfg.Document.Tag,
		Reviewer: cfg.Document.Reviewer,
		Unit:     cfg.Document.Unit,
		City:     cfg.Document.City,
		Signer:   cfg.Document.Signer,
	},
		report.WithPhases(cfg.Phases),
		report.WithDefaultPhase(cfg.DefaultPhase),
	)

	return &app{cfg: cfg, session: session, gen: gen, close: closeStore}, nil
}

// newStore picks Redis when configured and reachable, memory otherwise.
func newStore(ctx context.Context, cfg *config.Config) (cache.Store, func()) {
	if cfg.Cache.RedisAddr != "" {
		r := cache.NewRedis(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB, cfg.Cache.TTL)
		err := r.Ping(ctx)
		if err == nil {
			appLog.Info("using redis event cache", "addr", cfg.Cache.RedisAddr)
			return r, func() { _ = r.Close() }
		}
		appLog.Error("redis unavailable, using in-memory cache", err, "addr", cfg.Cache.RedisAddr)
		_ = r.Close()
	}
	return cache.NewMemory(cfg.Cache.TTL), func() {}
}

// newLister routes ICS roles to the feed lister and everything else to the
// Google Calendar API.
func newLister(ctx context.Context, cfg *config.Config) (source.Lister, error) {
	var (
		feeds   []ics.Feed
		google  bool
		byRoute = make(map[string]bool)
	)
	for _, cal := range cfg.Calendars.Roles() {
		switch cal.Kind {
		case config.KindICS:
			if !byRoute[cal.ID] {
				feeds = append(feeds, ics.Feed{ID: cal.ID, URL: cal.URL})
				byRoute[cal.ID] = true
			}
		default:
			google = true
		}
	}

	var fallback source.Lister
	if google {
		client, err := gcal.New(ctx, option.WithCredentialsFile(cfg.Google.CredentialsFile))
		if err != nil {
			return nil, err
		}
		fallback = client
	}
	mux := source.NewMux(fallback)
	if len(feeds) > 0 {
		feedLister := ics.NewLister(ics.NewFetcher(nil, cfg.Cache.ICSDir), cfg.Location(), feeds...)
		for _, id := range feedLister.Feeds() {
			mux.Handle(id, feedLister)
		}
	}
	return mux, nil
}

var errNoDocs = errors.New("document writer not configured for this command")

// noDocs stands in for the writer in commands that never create documents.
type noDocs struct{}

func (noDocs) Create(context.Context, gdocs.Draft) (string, error) {
	return "", fmt.Errorf("dsigen: %w", errNoDocs)
}
