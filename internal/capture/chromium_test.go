package capture

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreviewURL(t *testing.T) {
	got, err := PreviewURL("http://127.0.0.1:8080", Target{
		Number:    7,
		Date:      time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC),
		Commander: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080/preview?cmt=1&date=2025-06-11&number=7", got)

	got, err = PreviewURL("http://host/dsi/", Target{Number: 12, Planning: true})
	require.NoError(t, err)
	assert.Equal(t, "http://host/dsi/preview?number=12&pgi=1", got)
}

func TestSnapshotRequiresBaseURL(t *testing.T) {
	_, err := SnapshotPreview(context.Background(), Options{}, Target{Number: 1})
	assert.ErrorContains(t, err, "base URL is required")
}
