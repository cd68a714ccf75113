// Package logging builds slog loggers for the courier processes.
//
// It provides a single-line console handler for interactive use, a JSON
// handler for machine consumption, and small attr helpers so call sites stay
// terse. Components attach themselves with WithComponent so every line can be
// attributed.
package logging
