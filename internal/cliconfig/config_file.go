package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
// Pointer fields distinguish an explicit zero or false from an absent key.
type FileConfig struct {
	ListenAddr      string `toml:"listen_addr"`
	LogLevel        string `toml:"log_level"`
	LogFormat       string `toml:"log_format"`
	Zlib            *bool  `toml:"zlib"`
	Brotli          *bool  `toml:"brotli"`
	DeflateLevel    *int   `toml:"deflate_level"`
	BrotliQuality   *int   `toml:"brotli_quality"`
	SelfTest        *bool  `toml:"self_test"`
	WatchConfig     *bool  `toml:"watch_config"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
	RunFor          string `toml:"run_for"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.partsd/config.toml if the user home
// directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".partsd", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("listen", fc.ListenAddr, &cfg.ListenAddr)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("log-format", fc.LogFormat, &cfg.LogFormat)

	s.setBool("zlib", fc.Zlib, &cfg.Zlib)
	s.setBool("brotli", fc.Brotli, &cfg.Brotli)
	s.setBool("self-test", fc.SelfTest, &cfg.SelfTest)
	s.setBool("watch-config", fc.WatchConfig, &cfg.WatchConfig)

	s.setInt("deflate-level", fc.DeflateLevel, &cfg.DeflateLevel)
	s.setInt("brotli-quality", fc.BrotliQuality, &cfg.BrotliQuality)

	if err := s.setDuration("shutdown-timeout", fc.ShutdownTimeout, &cfg.ShutdownTimeout); err != nil {
		return err
	}
	if err := s.setDuration("run-for", fc.RunFor, &cfg.RunFor); err != nil {
		return err
	}
	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
