// Package logging constructs the shared zap logger used across the
// core. Kept as a single constructor so every package logs through
// the same encoder configuration and sink, rather than each package
// wiring its own zap.Config.
package logging

import "go.uber.org/zap"

// New builds a production-style zap logger (JSON encoding, info level
// and above) and returns its SugaredLogger, the form every package in
// this module takes as a constructor argument.
func New() (*zap.SugaredLogger, error) {
	l, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

// NewDevelopment builds a human-readable console logger (colorized
// level, caller info) for the cmd/gcodesim demo binary.
func NewDevelopment() (*zap.SugaredLogger, error) {
	l, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

// Nop returns a logger that discards everything, for tests that don't
// care about log output.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
