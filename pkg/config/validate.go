package config

import "fmt"

// Validate checks a fully-defaulted Config for internal consistency.
// Plain if-checks, no struct-tag reflection.
func Validate(cfg *Config) error {
	if err := validateLogging(&cfg.Logging); err != nil {
		return err
	}
	if err := validateTelemetry(&cfg.Telemetry); err != nil {
		return err
	}
	if err := validateMetrics(&cfg.Metrics); err != nil {
		return err
	}
	if err := validateDatabase(&cfg.Database); err != nil {
		return err
	}
	if err := validateFetch(&cfg.Fetch); err != nil {
		return err
	}
	if err := validateSweep(&cfg.Sweep); err != nil {
		return err
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be greater than zero")
	}
	return nil
}

func validateLogging(cfg *LoggingConfig) error {
	switch cfg.Level {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("logging.level: invalid value %q (oneof DEBUG INFO WARN ERROR)", cfg.Level)
	}
	switch cfg.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format: invalid value %q (oneof text json)", cfg.Format)
	}
	if cfg.Output == "" {
		return fmt.Errorf("logging.output is required")
	}
	return nil
}

func validateTelemetry(cfg *TelemetryConfig) error {
	if cfg.Enabled && cfg.Endpoint == "" {
		return fmt.Errorf("telemetry.endpoint is required when telemetry.enabled is true")
	}
	if cfg.SampleRate < 0 || cfg.SampleRate > 1 {
		return fmt.Errorf("telemetry.sample_rate must be between 0 and 1, got %f", cfg.SampleRate)
	}
	if cfg.Profiling.Enabled && cfg.Profiling.Endpoint == "" {
		return fmt.Errorf("telemetry.profiling.endpoint is required when telemetry.profiling.enabled is true")
	}
	return nil
}

func validateMetrics(cfg *MetricsConfig) error {
	if cfg.Enabled && (cfg.Port < 1 || cfg.Port > 65535) {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", cfg.Port)
	}
	return nil
}

func validateDatabase(cfg *DatabaseConfig) error {
	if cfg.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("database.port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.Database == "" {
		return fmt.Errorf("database.database is required")
	}
	if cfg.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if cfg.MaxConns < 1 {
		return fmt.Errorf("database.max_conns must be at least 1")
	}
	if cfg.MinConns < 0 {
		return fmt.Errorf("database.min_conns cannot be negative")
	}
	if cfg.MinConns > cfg.MaxConns {
		return fmt.Errorf("database.min_conns (%d) cannot exceed database.max_conns (%d)", cfg.MinConns, cfg.MaxConns)
	}
	switch cfg.SSLMode {
	case "disable", "require", "verify-ca", "verify-full", "prefer":
	default:
		return fmt.Errorf("database.ssl_mode: invalid value %q (oneof disable require verify-ca verify-full prefer)", cfg.SSLMode)
	}
	return nil
}

func validateFetch(cfg *FetchConfig) error {
	if cfg.UpstreamURL == "" {
		return fmt.Errorf("fetch.upstream_url is required")
	}
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("fetch.poll_interval must be greater than zero")
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("fetch.request_timeout must be greater than zero")
	}
	if cfg.MaxRetries < 0 {
		return fmt.Errorf("fetch.max_retries cannot be negative")
	}
	if cfg.InitialBackoff <= 0 {
		return fmt.Errorf("fetch.initial_backoff must be greater than zero")
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		return fmt.Errorf("fetch.max_backoff (%s) cannot be less than fetch.initial_backoff (%s)", cfg.MaxBackoff, cfg.InitialBackoff)
	}
	return nil
}

func validateSweep(cfg *SweepConfig) error {
	if cfg.Interval <= 0 {
		return fmt.Errorf("sweep.interval must be greater than zero")
	}
	if cfg.GraceMultiplier < 1 {
		return fmt.Errorf("sweep.grace_multiplier must be at least 1")
	}
	if cfg.StaleAfter <= 0 {
		return fmt.Errorf("sweep.stale_after must be greater than zero")
	}
	return nil
}
