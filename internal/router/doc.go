// Package router maps object-store finalize events onto pipeline stages.
// Routing is pure and deterministic so redelivered events reach the same
// stage every time.
package router
