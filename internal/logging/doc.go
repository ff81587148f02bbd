// Package logging provides slog construction helpers and the standardized
// attribute vocabulary used across chessreel components.
package logging
