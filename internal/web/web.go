package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"dsigen/internal/config"
	"dsigen/internal/dates"
	"dsigen/internal/export"
	appLog "dsigen/internal/log"
	"dsigen/internal/model"
	"dsigen/internal/report"
)

// Directives is the directive pipeline the server exposes.
type Directives interface {
	Preview(ctx context.Context, req report.Request) (*report.Directive, error)
	Generate(ctx context.Context, req report.Request) (*report.Result, error)
	Export(ctx context.Context, req report.Request) ([]byte, export.Kind, []model.Warning, error)
	Preload(ctx context.Context, ref time.Time) []model.Warning
}

// Session is the cache and history owner shared across requests.
type Session interface {
	Refresh(ctx context.Context) error
	History() []model.HistoryEntry
}

// Server provides the HTTP UI and API for directive generation.
type Server struct {
	cfg      *config.Config
	gen      Directives
	session  Session
	mux      *http.ServeMux
	location *time.Location
	now      func() time.Time

	// generating serializes document creation across requests.
	generating sync.Mutex
}

func NewServer(cfg *config.Config, gen Directives, session Session) *Server {
	s := &Server{
		cfg:      cfg,
		gen:      gen,
		session:  session,
		mux:      http.NewServeMux(),
		location: cfg.Location(),
		now:      time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials leave auth off.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="DSI", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Run serves on cfg.Listen and runs the refresh schedule until ctx is
// cancelled, then shuts both down.
func (s *Server) Run(ctx context.Context) error {
	sched, err := s.Schedule(ctx)
	if err != nil {
		return err
	}
	sched.Start()
	defer func() { <-sched.Stop().Done() }()

	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		appLog.Info("shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

// Schedule builds the cron that drops and re-warms the event cache on
// cfg.RefreshCron. The caller starts and stops it.
func (s *Server) Schedule(ctx context.Context) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(s.location))
	if _, err := c.AddFunc(s.cfg.RefreshCron, func() { s.refresh(ctx) }); err != nil {
		return nil, fmt.Errorf("web: refresh schedule %q: %w", s.cfg.RefreshCron, err)
	}
	return c, nil
}

func (s *Server) refresh(ctx context.Context) []model.Warning {
	if err := s.session.Refresh(ctx); err != nil {
		appLog.Error("cache refresh failed", err)
		return []model.Warning{{Scope: "cache", Message: fmt.Sprintf("could not invalidate cache: %v", err)}}
	}
	return s.gen.Preload(ctx, s.now().In(s.location))
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/preview", s.handlePreviewJSON)
	s.mux.HandleFunc("GET /api/export", s.handleExport)
	s.mux.HandleFunc("GET /api/history", s.handleHistory)
	s.mux.HandleFunc("POST /api/generate", s.handleGenerate)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("GET /preview", s.handlePreviewHTML)
	s.mux.HandleFunc("GET /preview.png", s.handlePreviewPNG)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// requestFromQuery reads ?number=7&date=2025-06-11&cmt=1&pgi=0. A missing
// date means today in the configured timezone.
func (s *Server) requestFromQuery(r *http.Request) (report.Request, error) {
	q := r.URL.Query()
	n, err := strconv.Atoi(q.Get("number"))
	if err != nil {
		return report.Request{}, fmt.Errorf("%w: %q", report.ErrInvalidNumber, q.Get("number"))
	}
	ref, err := s.refDate(q.Get("date"))
	if err != nil {
		return report.Request{}, err
	}
	return report.Request{
		Number:    n,
		RefDate:   ref,
		Commander: parseBool(q.Get("cmt")),
		Planning:  parseBool(q.Get("pgi")),
	}, nil
}

func (s *Server) refDate(v string) (time.Time, error) {
	if v == "" {
		return model.Day(s.now().In(s.location)), nil
	}
	d, err := model.ParseDay(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", v)
	}
	return d, nil
}

func parseBool(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}

func (s *Server) handlePreviewJSON(w http.ResponseWriter, r *http.Request) {
	req, err := s.requestFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	d, err := s.gen.Preview(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handlePreviewHTML(w http.ResponseWriter, r *http.Request) {
	req, err := s.requestFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	d, err := s.gen.Preview(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderPreview(w, d); err != nil {
		appLog.Error("preview render failed", err, "number", d.Number)
	}
}

// handlePreviewPNG serves the last snapshot written by the snapshot command.
func (s *Server) handlePreviewPNG(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, s.cfg.PreviewPath)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	req, err := s.requestFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, kind, warnings, err := s.gen.Export(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	for _, warn := range warnings {
		w.Header().Add("X-DSI-Warning", warn.Scope)
	}
	name := fmt.Sprintf("DSI_%s%s", report.FormatNumber(req.Number), kind.Extension())
	w.Header().Set("Content-Type", kind.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// generateRequest is the JSON body of POST /api/generate.
type generateRequest struct {
	Number     int               `json:"number"`
	Date       string            `json:"date"`
	Commander  bool              `json:"cmt"`
	Planning   bool              `json:"pgi"`
	Supplement report.Supplement `json:"supplement"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var body generateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	ref, err := s.refDate(body.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.generating.Lock()
	defer s.generating.Unlock()

	res, err := s.gen.Generate(r.Context(), report.Request{
		Number:     body.Number,
		RefDate:    ref,
		Commander:  body.Commander,
		Planning:   body.Planning,
		Supplement: body.Supplement,
	})
	if err != nil {
		appLog.Error("directive generation failed", err, "number", body.Number)
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	warnings := s.refresh(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"warnings": nonNil(warnings)})
}

func (s *Server) handleHistory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"history": nonNil(s.session.History())})
}

// statusFor maps validation errors to 400 and everything else to 502, as
// the remaining failures come from the Google APIs.
func statusFor(err error) int {
	switch {
	case errors.Is(err, report.ErrInvalidNumber), errors.Is(err, dates.ErrEndBeforeStart):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusBadGateway
	}
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
