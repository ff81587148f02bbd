// Package render validates game notation and produces animated board GIFs
// via the external pgn2gif renderer.
package render
