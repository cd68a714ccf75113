// Package puller implements the consumer-side companion process. It asks the
// relay's handoff API for staged artifacts, pulls them down over rsync, and
// confirms each receipt so the relay can reclaim storage.
package puller
