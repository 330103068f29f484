package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Scraper.MaxPagesPerCrawl)
	assert.Contains(t, cfg.Scraper.AllowedDomains, "amazon.com")
	assert.Equal(t, DelayBand{Min: time.Second, Max: 3 * time.Second}, cfg.Scraper.ItemDelay)
	assert.NotEmpty(t, cfg.Scraper.UserAgents)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SCRAPER_ALLOWED_DOMAINS", "example-store.test, shop.test")
	t.Setenv("SCRAPER_MAX_PAGES", "3")
	t.Setenv("SCRAPER_PAGE_DELAY_MIN", "100ms")
	t.Setenv("SCRAPER_PAGE_DELAY_MAX", "250ms")
	t.Setenv("BROWSER_HUMANIZE", "true")
	t.Setenv("BROWSER_PROXY", "http://proxy.internal:3128")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"example-store.test", "shop.test"}, cfg.Scraper.AllowedDomains)
	assert.Equal(t, 3, cfg.Scraper.MaxPagesPerCrawl)
	assert.Equal(t, DelayBand{Min: 100 * time.Millisecond, Max: 250 * time.Millisecond}, cfg.Scraper.PageDelay)
	assert.True(t, cfg.Browser.Humanize)
	assert.Equal(t, "http://proxy.internal:3128", cfg.Browser.ProxyServer)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "no allowed domains",
			mutate:  func(c *Config) { c.Scraper.AllowedDomains = nil },
			wantErr: "allowed domain",
		},
		{
			name:    "zero max pages",
			mutate:  func(c *Config) { c.Scraper.MaxPagesPerCrawl = 0 },
			wantErr: "SCRAPER_MAX_PAGES",
		},
		{
			name:    "inverted band",
			mutate:  func(c *Config) { c.Scraper.PageDelay = DelayBand{Min: 5 * time.Second, Max: time.Second} },
			wantErr: "SCRAPER_PAGE_DELAY_MIN",
		},
		{
			name:    "negative band",
			mutate:  func(c *Config) { c.Scraper.ItemDelay = DelayBand{Min: -time.Second, Max: time.Second} },
			wantErr: "negative",
		},
		{
			name:    "no user agents",
			mutate:  func(c *Config) { c.Scraper.UserAgents = []string{} },
			wantErr: "user agent",
		},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "port",
		},
		{
			name:    "zero job capacity",
			mutate:  func(c *Config) { c.Jobs.Capacity = 0 },
			wantErr: "JOBS_CAPACITY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			require.NoError(t, cfg.Validate())

			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
