// Package logger provides a small factory around log/slog used by every
// component of the realtime client.
//
// The hub connection manager, credential manager and admission queue all
// accept a *slog.Logger; this package builds one with consistent defaults
// (JSON at info level for production, text at debug level for development)
// and optional static attributes such as the component name.
//
// # Usage
//
//	log := logger.New(
//	    logger.WithLevel(slog.LevelDebug),
//	    logger.WithAttr(slog.String("component", "hub")),
//	)
package logger
