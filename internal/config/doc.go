// Package config loads, validates, and normalizes chessreel configuration.
package config
