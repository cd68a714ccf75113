package ledger

import (
	"fmt"
	"strings"
)

// Status represents the lifecycle of a tracked task. The lifecycle is strictly
// ordered and a task's status never moves backwards.
type Status int

const (
	// StatusTracked marks an item discovered at the seed source and still
	// downloading there.
	StatusTracked Status = iota
	// StatusTorrentReady marks an item complete at the seed source and
	// eligible for transfer to relay storage.
	StatusTorrentReady
	// StatusArtifactReady marks an item staged in relay storage and visible
	// to the downstream puller.
	StatusArtifactReady
	// StatusArchived marks an item confirmed received by the consumer.
	// Terminal.
	StatusArchived
)

var statusNames = map[Status]string{
	StatusTracked:       "tracked",
	StatusTorrentReady:  "torrent_ready",
	StatusArtifactReady: "artifact_ready",
	StatusArchived:      "archived",
}

// AllStatuses returns the lifecycle states in order.
func AllStatuses() []Status {
	return []Status{StatusTracked, StatusTorrentReady, StatusArtifactReady, StatusArchived}
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for status, name := range statusNames {
		if name == normalized {
			return status, true
		}
	}
	return 0, false
}

// Before reports whether s precedes other in the lifecycle. Application code
// compares through this method; raw ordinals are confined to the storage
// boundary.
func (s Status) Before(other Status) bool {
	return statusOrdinal(s) < statusOrdinal(other)
}

// Terminal reports whether the status ends the lifecycle.
func (s Status) Terminal() bool {
	return s == StatusArchived
}

// statusOrdinal maps a status to its stable storage ordinal.
func statusOrdinal(s Status) int {
	return int(s)
}

func statusFromOrdinal(ordinal int) (Status, error) {
	s := Status(ordinal)
	if _, ok := statusNames[s]; !ok {
		return 0, fmt.Errorf("unknown status ordinal %d", ordinal)
	}
	return s, nil
}

// Task is one tracked item, keyed by its stable content hash. Name and
// ContentPath mirror the seed source and may change across updates; Status
// only ever increases.
type Task struct {
	Hash        string
	Name        string
	Status      Status
	ContentPath string
}

// ArtifactInfo is the relay-side, consumer-visible projection of a task whose
// status is StatusArtifactReady. Path is derived from the relay storage root
// and the hash; it is never stored.
type ArtifactInfo struct {
	Hash string `json:"hash"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// SettingEarliestImportDate is the settings key holding the tracking
// watermark.
const SettingEarliestImportDate = "earliest_import_date"
