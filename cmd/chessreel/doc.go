// Package main hosts the chessreel CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against the daemon API: job submission, uploads, status reporting,
// and configuration scaffolding. It centralizes configuration resolution and
// endpoint discovery so subcommands can focus on user experience.
package main
