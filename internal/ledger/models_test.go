package ledger

import "testing"

func TestStatusOrderingMatchesLifecycle(t *testing.T) {
	statuses := AllStatuses()
	for i := 1; i < len(statuses); i++ {
		if !statuses[i-1].Before(statuses[i]) {
			t.Fatalf("%v should precede %v", statuses[i-1], statuses[i])
		}
		if statuses[i].Before(statuses[i-1]) {
			t.Fatalf("%v should not precede %v", statuses[i], statuses[i-1])
		}
	}
	if StatusArchived.Before(StatusArchived) {
		t.Fatal("a status must not precede itself")
	}
}

func TestParseStatusRoundTrip(t *testing.T) {
	for _, status := range AllStatuses() {
		parsed, ok := ParseStatus(status.String())
		if !ok || parsed != status {
			t.Fatalf("ParseStatus(%q) = %v, %v", status.String(), parsed, ok)
		}
	}
	if _, ok := ParseStatus("seeding"); ok {
		t.Fatal("expected unknown status to fail parsing")
	}
}

func TestOnlyArchivedIsTerminal(t *testing.T) {
	for _, status := range AllStatuses() {
		if got := status.Terminal(); got != (status == StatusArchived) {
			t.Fatalf("Terminal(%v) = %v", status, got)
		}
	}
}
