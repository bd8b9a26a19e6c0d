// Package log provides the logging abstraction used by partstore applications.
//
// Logger can be implemented by any logging library. A zerolog adapter is
// provided, and a no-op logger that Application uses when none is configured:
//
//	logger, err := log.NewZerologAdapter(os.Stderr, "json", "info")
//	app := partstore.NewApplication(partstore.WithLogger(logger))
package log
