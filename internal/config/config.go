// Package config loads orchestrator configuration from the environment,
// config.yaml, and built-in defaults, in that order of precedence, using viper.
package config

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// LoadConfig reads config.yaml from /etc/a11yscan/ or the working directory,
// falling back to defaults when no file is present.
func LoadConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/a11yscan/")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	SetDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Warn().Msg("Config file not found, using defaults and environment")
		} else {
			log.Panic().Err(err).Msg("Fatal error reading config file")
		}
	}
}

// SetDefaultConfig registers every configuration default recognized by the
// orchestrator. Values are grouped by the component that consumes them.
func SetDefaultConfig() {
	// Logging
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.console.format", "pretty")
	viper.SetDefault("logging.file.enabled", true)
	viper.SetDefault("logging.file.path", "a11yscan.log")
	viper.SetDefault("logging.file.level", "info")

	// Crawl / discovery (C2). crawl.max_pages/max_depth are caller
	// requests, capped by crawl.HardMaxPages/HardMaxDepth regardless of
	// what is configured here. robots.txt is intentionally not honored:
	// callers only ever crawl sites they already have permission to scan.
	viper.SetDefault("crawl.max_pages", 20)
	viper.SetDefault("crawl.max_depth", 2)
	viper.SetDefault("crawl.per_request_timeout_seconds", 3)
	viper.SetDefault("crawl.user_agent", "a11yscan-orchestrator/1.0")
	viper.SetDefault("crawl.concurrency", 4)

	// Selector (C3)
	viper.SetDefault("selector.max_pages_per_scan", 15)
	viper.SetDefault("selector.per_type_quota", 3)

	// Scan orchestration (C4). max_total_concurrency bounds units running
	// at once across every scanner; max_per_scanner_concurrency bounds the
	// subprocess-based scanners (axe/pa11y/lighthouse). WAVE gets its own,
	// lower cap below since it is metered by an external API quota.
	viper.SetDefault("scan.max_total_concurrency", 4)
	viper.SetDefault("scan.max_per_scanner_concurrency", 2)
	viper.SetDefault("scan.unit_timeout_seconds", 60)
	viper.SetDefault("scan.default_scanners", []string{"axe", "pa11y", "wave", "lighthouse"})
	viper.SetDefault("scan.default_policy", "wcag21aa")

	// Scanner drivers (C1)
	viper.SetDefault("scanners.simulate", false)
	viper.SetDefault("scanners.pa11y.binary", "pa11y")
	viper.SetDefault("scanners.axe.binary", "axe")
	viper.SetDefault("scanners.lighthouse.binary", "lighthouse")
	viper.SetDefault("scanners.wave.base_url", "https://wave.webaim.org/api/request")
	viper.SetDefault("scanners.wave.api_key", "")
	viper.SetDefault("scanners.wave.rate_per_second", 2.0)
	viper.SetDefault("scanners.wave.burst", 5.0)
	viper.SetDefault("scanners.wave.max_concurrency", 1)

	// Session store (C7)
	viper.SetDefault("store.terminal_ttl_hours", 24)
	viper.SetDefault("store.force_cancel_ttl_hours", 6)
	viper.SetDefault("store.sweep_interval_seconds", 300)
	viper.SetDefault("store.max_versions_per_scan", 10)

	// Event bus (C6)
	viper.SetDefault("eventbus.ring_buffer_size", 100)
	viper.SetDefault("eventbus.heartbeat_interval_seconds", 30)
	viper.SetDefault("eventbus.subscriber_buffer_size", 32)

	// Persistence (optional filesystem layout)
	viper.SetDefault("persist.enabled", false)
	viper.SetDefault("persist.directory", "./a11yscan-data")

	// API (C9)
	viper.SetDefault("api.listen.host", "")
	viper.SetDefault("api.listen.port", 8013)
}
