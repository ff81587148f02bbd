// Package ledger persists one status record per conversion job and enforces
// the monotonic state machine that keeps duplicate trigger deliveries from
// regressing state or rewriting completed payloads.
package ledger
