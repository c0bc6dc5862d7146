// Package logging builds the process-wide zap logger. Kept deliberately
// thin, same shape as a typical wrapper package: one constructor, called
// once at startup by cmd/gateway, which passes the logger it returns to
// every component.
package logging

import "go.uber.org/zap"

// New builds a production zap logger when dev is false, and a more verbose
// development logger (caller info, DPanic on bugs) otherwise.
func New(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = false
	return cfg.Build()
}

// Nop returns a logger that discards everything, useful as a safe default
// in tests that don't care about log output.
func Nop() *zap.Logger { return zap.NewNop() }
