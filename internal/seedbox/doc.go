// Package seedbox queries the remote seed host's WebUI for torrents tagged
// for relay management and maps them onto ledger tasks.
package seedbox
