// Package staging manages per-invocation scratch files and their guaranteed
// removal, plus the maintenance sweep for scopes abandoned mid-run.
package staging
