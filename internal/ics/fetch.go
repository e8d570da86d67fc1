package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	appLog "dsigen/internal/log"
)

// Feed is a single ICS subscription serving one logical calendar.
type Feed struct {
	// ID is the calendar identifier the directive refers to.
	ID string
	// URL is the ICS endpoint.
	URL string
}

// cacheMeta holds HTTP validators for a cached feed body.
type cacheMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher downloads ICS feeds with conditional requests and keeps the last
// good body on disk so an unreachable feed still serves stale data.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher creates a Fetcher storing bodies under cacheDir. An empty
// cacheDir disables the disk cache.
func NewFetcher(client *http.Client, cacheDir string) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Fetcher{client: client, cacheDir: cacheDir}
}

// Fetch returns the feed body and whether it came from the disk cache.
func (f *Fetcher) Fetch(ctx context.Context, feed Feed) ([]byte, bool, error) {
	if feed.URL == "" {
		return nil, false, errors.New("ics: feed URL is empty")
	}

	var (
		meta   cacheMeta
		cached []byte
		dir    string
	)
	if f.cacheDir != "" {
		dir = f.cachePath(feed.URL)
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, false, err
		}
		meta, _ = loadMeta(dir)
		cached, _ = os.ReadFile(filepath.Join(dir, "body.ics"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, false, err
	}
	if len(cached) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cached) > 0 {
			appLog.Warn("ics fetch failed, serving cached body", "feed", feed.ID, "url", redactURL(feed.URL), "reason", err.Error())
			return cached, true, nil
		}
		return nil, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, false, err
		}
		if dir != "" {
			m := cacheMeta{
				URL:          feed.URL,
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
			}
			if err := saveCache(dir, m, body); err != nil {
				appLog.Error("ics cache save failed", err, "feed", feed.ID)
			}
		}
		appLog.Debug("ics fetched", "feed", feed.ID, "url", redactURL(feed.URL), "bytes", len(body))
		return body, false, nil

	case http.StatusNotModified:
		if len(cached) == 0 {
			return nil, false, errors.New("ics: 304 Not Modified without a cached body")
		}
		return cached, true, nil

	default:
		if len(cached) > 0 {
			appLog.Warn("ics fetch non-OK, serving cached body", "feed", feed.ID, "status", resp.StatusCode)
			return cached, true, nil
		}
		return nil, false, fmt.Errorf("ics: %s: %s", redactURL(feed.URL), resp.Status)
	}
}

func (f *Fetcher) cachePath(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadMeta(dir string) (cacheMeta, error) {
	var meta cacheMeta
	data, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(data, &meta)
	return meta, err
}

func saveCache(dir string, meta cacheMeta, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(dir, "body.ics"), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "meta.json"), data, 0o600)
}

// redactURL keeps scheme and host only; private ICS links embed tokens in
// the path.
func redactURL(u string) string {
	i := strings.Index(u, "://")
	if i < 0 {
		return "ics://...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + "/...(redacted)"
}
