package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Calendar backends.
const (
	KindGoogle = "google"
	KindICS    = "ics"
)

// CalendarConfig describes one calendar role.
type CalendarConfig struct {
	// ID is the Google calendar ID, or a local identifier for ICS feeds.
	ID string `yaml:"id" json:"id"`
	// Kind is "google" (default) or "ics".
	Kind string `yaml:"kind,omitempty" json:"kind,omitempty"`
	// URL is the ICS subscription endpoint; only read when Kind is "ics".
	URL string `yaml:"url,omitempty" json:"url,omitempty"`
	// Owner is the RESP tag for grid calendars.
	Owner string `yaml:"owner,omitempty" json:"owner,omitempty"`
}

// CalendarsConfig assigns a calendar to every role a directive reads.
type CalendarsConfig struct {
	Primary    CalendarConfig `yaml:"s3" json:"s3"`
	Commander  CalendarConfig `yaml:"cmt" json:"cmt"`
	Planning   CalendarConfig `yaml:"pgi" json:"pgi"`
	Courses    CalendarConfig `yaml:"cursos" json:"cursos"`
	Holidays   CalendarConfig `yaml:"datas" json:"datas"`
	Week       CalendarConfig `yaml:"si" json:"si"`
	Phase      CalendarConfig `yaml:"fase" json:"fase"`
	Operations CalendarConfig `yaml:"operacoes" json:"operacoes"`
}

// Roles returns the configured calendars keyed by role name. Roles without
// an ID are left out.
func (c CalendarsConfig) Roles() map[string]CalendarConfig {
	all := map[string]CalendarConfig{
		"s3":        c.Primary,
		"cmt":       c.Commander,
		"pgi":       c.Planning,
		"cursos":    c.Courses,
		"datas":     c.Holidays,
		"si":        c.Week,
		"fase":      c.Phase,
		"operacoes": c.Operations,
	}
	for role, cal := range all {
		if cal.ID == "" {
			delete(all, role)
		}
	}
	return all
}

// GoogleConfig points at the service-account credentials handed to the
// Calendar and Docs clients.
type GoogleConfig struct {
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`
}

// CacheConfig controls the event-list cache.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl" json:"ttl"`
	// RedisAddr switches the cache from in-process memory to Redis.
	RedisAddr     string `yaml:"redis_addr,omitempty" json:"redis_addr,omitempty"`
	RedisPassword string `yaml:"redis_password,omitempty" json:"-"`
	RedisDB       int    `yaml:"redis_db,omitempty" json:"redis_db,omitempty"`
	// ICSDir keeps downloaded feeds for conditional revalidation.
	ICSDir string `yaml:"ics_dir" json:"ics_dir"`
}

// DocumentConfig is the fixed letterhead printed on every directive.
type DocumentConfig struct {
	Tag      string   `yaml:"tag" json:"tag"`
	Reviewer string   `yaml:"reviewer" json:"reviewer"`
	Unit     []string `yaml:"unit" json:"unit"`
	City     string   `yaml:"city" json:"city"`
	Signer   []string `yaml:"signer" json:"signer"`
}

// DocsConfig tunes the document writer.
type DocsConfig struct {
	FillChunk   int           `yaml:"fill_chunk" json:"fill_chunk"`
	StyleChunk  int           `yaml:"style_chunk" json:"style_chunk"`
	Pause       time.Duration `yaml:"pause" json:"pause"`
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	Backoff     time.Duration `yaml:"backoff" json:"backoff"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used for "today" and ICS floating times.
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron schedule for dropping and re-warming the event
	// cache while serving.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// Workers bounds concurrent calendar fetches.
	Workers int `yaml:"workers" json:"workers"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// PreviewPath is where the snapshot command writes the preview PNG
	// served at /preview.png.
	PreviewPath string `yaml:"preview_path" json:"preview_path"`

	Google    GoogleConfig    `yaml:"google" json:"google"`
	Calendars CalendarsConfig `yaml:"calendars" json:"calendars"`

	// Phases is the phase vocabulary in match priority order.
	Phases       []string `yaml:"phases" json:"phases"`
	DefaultPhase string   `yaml:"default_phase" json:"default_phase"`

	Document DocumentConfig `yaml:"document" json:"document"`
	Docs     DocsConfig     `yaml:"docs" json:"docs"`
	Cache    CacheConfig    `yaml:"cache" json:"cache"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "America/Fortaleza",
		RefreshCron: "*/30 * * * *",
		Workers:     8,
		LogLevel:    "info",
		PreviewPath: "./cache/preview.png",
		Google: GoogleConfig{
			CredentialsFile: "credentials.json",
		},
		Phases:       []string{"IIB", "IIQ", "ADST", "IIA", "IIC", "ADM", "MDD ADM"},
		DefaultPhase: "Mdd Adm",
		Document: DocumentConfig{
			Tag:      "S3/24º BIS",
			Reviewer: "Ch 3ª Seç",
			Unit: []string{
				"MINISTÉRIO DA DEFESA",
				"EXÉRCITO BRASILEIRO",
				"24º BATALHÃO DE INFANTARIA DE SELVA",
			},
			City:   "São Luís, MA",
			Signer: []string{"________________________________", "Comandante"},
		},
		Docs: DocsConfig{
			FillChunk:   100,
			StyleChunk:  50,
			Pause:       300 * time.Millisecond,
			MaxAttempts: 3,
			Backoff:     2 * time.Second,
		},
		Cache: CacheConfig{
			TTL:    5 * time.Minute,
			ICSDir: "./cache/ics",
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.PreviewPath == "" {
		c.PreviewPath = def.PreviewPath
	}
	if len(c.Phases) == 0 {
		c.Phases = def.Phases
	}
	if c.DefaultPhase == "" {
		c.DefaultPhase = def.DefaultPhase
	}
	if c.Docs.FillChunk <= 0 {
		c.Docs.FillChunk = def.Docs.FillChunk
	}
	if c.Docs.StyleChunk <= 0 {
		c.Docs.StyleChunk = def.Docs.StyleChunk
	}
	if c.Docs.Pause < 0 {
		c.Docs.Pause = 0
	}
	if c.Docs.MaxAttempts <= 0 {
		c.Docs.MaxAttempts = def.Docs.MaxAttempts
	}
	if c.Docs.Backoff <= 0 {
		c.Docs.Backoff = def.Docs.Backoff
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = def.Cache.TTL
	}
	if c.Cache.ICSDir == "" {
		c.Cache.ICSDir = def.Cache.ICSDir
	}

	cals := []*CalendarConfig{
		&c.Calendars.Primary, &c.Calendars.Commander, &c.Calendars.Planning, &c.Calendars.Courses,
		&c.Calendars.Holidays, &c.Calendars.Week, &c.Calendars.Phase, &c.Calendars.Operations,
	}
	for _, cal := range cals {
		if cal.Kind == "" {
			cal.Kind = KindGoogle
		}
	}
}

// Validate reports configuration that cannot produce a directive.
func (c *Config) Validate() error {
	if c.Calendars.Primary.ID == "" {
		return errors.New("config: calendars.s3.id is required")
	}
	for role, cal := range c.Calendars.Roles() {
		switch cal.Kind {
		case KindGoogle:
		case KindICS:
			if cal.URL == "" {
				return fmt.Errorf("config: calendars.%s is an ics calendar without url", role)
			}
		default:
			return fmt.Errorf("config: calendars.%s has unknown kind %q", role, cal.Kind)
		}
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: timezone: %w", err)
	}
	return nil
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory (0700) when needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".dsigen-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
