// Package main hosts the courier CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against the daemon's API, job triggers, and configuration
// scaffolding. It centralizes endpoint resolution and configuration loading
// so subcommands can focus on user experience instead of wiring.
package main
