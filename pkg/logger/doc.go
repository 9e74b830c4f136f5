// Package logger provides structured logging for the archiver built on zerolog.
//
// The package exposes a Logger interface so components can accept any
// implementation (including TestLogger in tests), a global logger initialized
// from configuration, and domain helpers for download, retry and outage events.
package logger
