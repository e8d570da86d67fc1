package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Listen, cfg.Listen)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Docs, again.Docs)
	assert.Equal(t, cfg.Document, again.Document)
	assert.Equal(t, 5*time.Minute, again.Cache.TTL)
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
listen: ":9000"
calendars:
  s3:
    id: s3@group.calendar.google.com
  datas:
    id: feriados
    kind: ics
    url: https://example.org/feriados.ics
docs:
  pause: 1s
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, time.Second, cfg.Docs.Pause)
	assert.Equal(t, 100, cfg.Docs.FillChunk)
	assert.Equal(t, 3, cfg.Docs.MaxAttempts)
	assert.Equal(t, KindGoogle, cfg.Calendars.Primary.Kind)
	assert.Equal(t, KindICS, cfg.Calendars.Holidays.Kind)
	assert.Equal(t, "Mdd Adm", cfg.DefaultPhase)
	require.NoError(t, cfg.Validate())

	roles := cfg.Calendars.Roles()
	assert.Len(t, roles, 2)
	assert.Equal(t, "feriados", roles["datas"].ID)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Normalize()
	assert.ErrorContains(t, cfg.Validate(), "calendars.s3.id")

	cfg.Calendars.Primary.ID = "s3"
	cfg.Calendars.Week = CalendarConfig{ID: "si", Kind: KindICS}
	assert.ErrorContains(t, cfg.Validate(), "calendars.si")

	cfg.Calendars.Week.Kind = "caldav"
	assert.ErrorContains(t, cfg.Validate(), `unknown kind "caldav"`)

	cfg.Calendars.Week.Kind = KindGoogle
	cfg.Timezone = "Mars/Olympus"
	assert.Error(t, cfg.Validate())
	assert.Equal(t, time.Local, cfg.Location())
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unterminated"), 0o600))
	_, err := Load(path)
	assert.ErrorContains(t, err, "config: parse")
}

func TestLoadEmptyPath(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)
}
