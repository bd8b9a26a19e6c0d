// Package daemon assembles and runs the partsd application.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jacoelho/partstore"
	"github.com/jacoelho/partstore/codec/brotli"
	"github.com/jacoelho/partstore/codec/zlib"
	"github.com/jacoelho/partstore/internal/cliconfig"
	"github.com/jacoelho/partstore/internal/daemon/configwatch"
	"github.com/jacoelho/partstore/internal/daemon/httpserver"
	"github.com/jacoelho/partstore/log"
)

// Options carries what Assemble needs beyond the configuration.
type Options struct {
	Config     cliconfig.Config
	ConfigPath string
	Logger     log.Logger
	Registry   *prometheus.Registry
}

// Assemble inserts the partsd parts into the application's store, in start
// order: logger, metrics registry, codecs, self test, config watcher and the
// HTTP server last so it only accepts requests once everything else runs.
func Assemble(app *partstore.Application, opts Options) error {
	s := app.Store()
	cfg := opts.Config

	if _, err := partstore.Insert(s, opts.Logger); err != nil {
		return fmt.Errorf("assemble logger: %w", err)
	}
	if _, err := partstore.Insert(s, opts.Registry,
		partstore.As[prometheus.Gatherer](),
		partstore.As[prometheus.Registerer](),
	); err != nil {
		return fmt.Errorf("assemble registry: %w", err)
	}

	if cfg.Zlib {
		if _, err := zlib.InstallDeflateService(s); err != nil {
			return fmt.Errorf("assemble zlib: %w", err)
		}
		if _, err := zlib.InstallInflateService(s); err != nil {
			return fmt.Errorf("assemble zlib: %w", err)
		}
	}
	if cfg.Brotli {
		if _, err := brotli.InstallEncodeService(s); err != nil {
			return fmt.Errorf("assemble brotli: %w", err)
		}
		if _, err := brotli.InstallDecodeService(s); err != nil {
			return fmt.Errorf("assemble brotli: %w", err)
		}
	}

	if cfg.SelfTest {
		if _, err := partstore.Emplace(s, newSelfTest(cfg.DeflateLevel, cfg.BrotliQuality)); err != nil {
			return fmt.Errorf("assemble self test: %w", err)
		}
	}

	if cfg.WatchConfig && opts.ConfigPath != "" {
		if _, err := partstore.Emplace(s, func(*partstore.Store) (*configwatch.Watcher, error) {
			return configwatch.New(opts.ConfigPath, configwatch.DefaultDebounceDelay, nil, opts.Logger), nil
		}); err != nil {
			return fmt.Errorf("assemble config watcher: %w", err)
		}
	}

	if _, err := partstore.Emplace(s, func(s *partstore.Store) (*httpserver.Server, error) {
		gatherer, err := partstore.Get[prometheus.Gatherer](s)
		if err != nil {
			return nil, err
		}
		logger, err := partstore.Get[log.Logger](s)
		if err != nil {
			return nil, err
		}
		return httpserver.New(httpserver.Config{Addr: cfg.ListenAddr}, gatherer, PartsOf(s), logger), nil
	}); err != nil {
		return fmt.Errorf("assemble http server: %w", err)
	}

	return nil
}

// PartsOf returns a listing function over the parts of s.
func PartsOf(s *partstore.Store) func() []httpserver.PartInfo {
	return func() []httpserver.PartInfo {
		parts := s.Elements()
		infos := make([]httpserver.PartInfo, 0, parts.Len())
		for i := range parts.Len() {
			el := parts.At(i)
			infos = append(infos, httpserver.PartInfo{
				Name: el.Name(),
				Keys: typeNames(el.Keys()[1:]),
			})
		}
		return infos
	}
}

func typeNames(types []reflect.Type) []string {
	if len(types) == 0 {
		return nil
	}
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return names
}

// Run starts app and blocks until ctx is done, the application stops on its
// own or runFor elapses (when positive). It then stops and closes app.
func Run(ctx context.Context, app *partstore.Application, runFor, shutdownTimeout time.Duration, logger log.Logger) error {
	if err := app.Start(ctx); err != nil {
		return errors.Join(fmt.Errorf("start: %w", err), app.Close())
	}
	logger.Info("application running", log.String("app", app.ID()), log.Int("parts", app.Store().Len()))

	var timeout <-chan time.Time
	if runFor > 0 {
		timer := time.NewTimer(runFor)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-ctx.Done():
		logger.Info("received signal, stopping")
	case <-timeout:
		logger.Info("run duration elapsed, stopping", log.Duration("run_for", runFor))
	case <-app.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := app.Stop(stopCtx); err != nil {
		errs = append(errs, fmt.Errorf("stop: %w", err))
	}
	app.Join()
	if err := app.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close: %w", err))
	}
	return errors.Join(errs...)
}
