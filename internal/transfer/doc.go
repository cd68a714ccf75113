// Package transfer runs the relay's bulk copy path. A single gate lease keeps
// seedbox-to-relay and relay-to-consumer batches from overlapping, and each
// individual copy shells out to rsync over ssh.
package transfer
