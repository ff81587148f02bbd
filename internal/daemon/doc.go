// Package daemon hosts the long-running chessreel process: the blob store
// event watcher, staging cleanup, the HTTP API, and single-instance locking.
package daemon
