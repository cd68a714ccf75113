// Package daemon hosts the courier orchestrator: cron-driven pull and
// transfer jobs, a bounded command queue for external triggers, and the HTTP
// handoff API consumers use to fetch and confirm staged artifacts.
package daemon
