// Package notifications delivers operator-facing push messages through ntfy.
// When no topic is configured the service degrades to a silent noop so the
// rest of the daemon never has to branch on notification availability.
package notifications
