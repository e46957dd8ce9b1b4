package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "")
	t.Setenv("MAX_VIDEO_BYTES", "")
	t.Setenv("MAX_THUMBNAIL_BYTES", "")

	cfg := Load()

	assert.Equal(t, int64(52428800), cfg.MaxVideoBytes)
	assert.Equal(t, int64(5242880), cfg.MaxThumbnailBytes)
	assert.Equal(t, defaultOrigins, cfg.AllowedOrigins)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("MAX_VIDEO_BYTES", "1024")
	t.Setenv("MAX_THUMBNAIL_BYTES", "not-a-number")
	t.Setenv("APP_ENV", "production")

	cfg := Load()

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(1024), cfg.MaxVideoBytes)
	assert.Equal(t, int64(DefaultMaxThumbnailBytes), cfg.MaxThumbnailBytes)
	assert.True(t, cfg.IsProduction())
}
