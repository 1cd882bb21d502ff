package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_Defaults(t *testing.T) {
	t.Setenv("FEED_DRIVER", "memory")
	t.Setenv("FEED_MAX_RETRIES", "3")
	t.Setenv("FEED_RETRY_DELAY", "250ms")
	t.Setenv("ALERT_VISUAL_WINDOW", "oops")

	cfg := New()

	assert.Equal(t, "memory", cfg.Feed.Driver)
	assert.Equal(t, 3, cfg.Feed.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Feed.RetryDelay)
	assert.Equal(t, 1500*time.Millisecond, cfg.Alert.VisualWindow, "неверное значение должно заменяться значением по умолчанию")
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestGetEnvInt_Negative(t *testing.T) {
	t.Setenv("SOME_INT", "-5")
	assert.Equal(t, 7, getEnvInt("SOME_INT", 7))
}
