package config

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestDefaults(t *testing.T) {
	c := NewAppConfig(zap.NewNop())

	if c.LookbackDays() != defaultLookbackDays {
		t.Errorf("expected lookback %d, got %d", defaultLookbackDays, c.LookbackDays())
	}
	if c.RetryAttempts() != defaultRetryAttempts {
		t.Errorf("expected %d attempts, got %d", defaultRetryAttempts, c.RetryAttempts())
	}
	if c.RetryDelay() != defaultRetryDelay {
		t.Errorf("expected delay %s, got %s", defaultRetryDelay, c.RetryDelay())
	}
	if c.DownloadTimeout() != defaultDownloadTimeout {
		t.Errorf("expected timeout %s, got %s", defaultDownloadTimeout, c.DownloadTimeout())
	}
	if c.ContentRoot() == "" {
		t.Error("content root must never be empty")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("DAILYWALL_CONTENT_DIR", "/srv/wallpapers")
	t.Setenv("DAILYWALL_LOOKBACK_DAYS", "7")
	t.Setenv("DAILYWALL_RETRY_DELAY", "5s")
	t.Setenv("DAILYWALL_DOWNLOAD_TIMEOUT", "1m")

	c := NewAppConfig(zap.NewNop())

	if c.ContentRoot() != "/srv/wallpapers" {
		t.Errorf("unexpected content root %q", c.ContentRoot())
	}
	if c.LookbackDays() != 7 {
		t.Errorf("expected lookback 7, got %d", c.LookbackDays())
	}
	if c.RetryDelay() != 5*time.Second {
		t.Errorf("expected 5s delay, got %s", c.RetryDelay())
	}
	if c.DownloadTimeout() != time.Minute {
		t.Errorf("expected 1m timeout, got %s", c.DownloadTimeout())
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("DAILYWALL_LOOKBACK_DAYS", "not-a-number")
	t.Setenv("DAILYWALL_RETRY_ATTEMPTS", "-3")
	t.Setenv("DAILYWALL_RETRY_DELAY", "soon")

	c := NewAppConfig(zap.NewNop())

	if c.LookbackDays() != defaultLookbackDays {
		t.Errorf("expected default lookback, got %d", c.LookbackDays())
	}
	if c.RetryAttempts() != defaultRetryAttempts {
		t.Errorf("expected default attempts, got %d", c.RetryAttempts())
	}
	if c.RetryDelay() != defaultRetryDelay {
		t.Errorf("expected default delay, got %s", c.RetryDelay())
	}
}
