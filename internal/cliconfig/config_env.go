package cliconfig

import "os"

// ApplyEnvConfig applies PARTSD_* environment variables to cfg.
// Flags that have been explicitly set (changed map) take precedence.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("listen", os.Getenv("PARTSD_LISTEN_ADDR"), &cfg.ListenAddr)
	s.setString("log-level", os.Getenv("PARTSD_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("log-format", os.Getenv("PARTSD_LOG_FORMAT"), &cfg.LogFormat)

	s.setBoolFromString("zlib", os.Getenv("PARTSD_ZLIB"), &cfg.Zlib)
	s.setBoolFromString("brotli", os.Getenv("PARTSD_BROTLI"), &cfg.Brotli)
	s.setBoolFromString("self-test", os.Getenv("PARTSD_SELF_TEST"), &cfg.SelfTest)
	s.setBoolFromString("watch-config", os.Getenv("PARTSD_WATCH_CONFIG"), &cfg.WatchConfig)

	if err := s.setIntFromString("deflate-level", os.Getenv("PARTSD_DEFLATE_LEVEL"), &cfg.DeflateLevel); err != nil {
		return err
	}
	if err := s.setIntFromString("brotli-quality", os.Getenv("PARTSD_BROTLI_QUALITY"), &cfg.BrotliQuality); err != nil {
		return err
	}

	if err := s.setDuration("shutdown-timeout", os.Getenv("PARTSD_SHUTDOWN_TIMEOUT"), &cfg.ShutdownTimeout); err != nil {
		return err
	}
	if err := s.setDuration("run-for", os.Getenv("PARTSD_RUN_FOR"), &cfg.RunFor); err != nil {
		return err
	}
	return nil
}
