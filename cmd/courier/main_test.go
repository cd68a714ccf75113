package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"courier/internal/ledger"
)

func newFakeDaemonAPI(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(daemonStatus{
			Running:      true,
			PID:          4242,
			LedgerDBPath: "/var/lib/courier/courier.db",
			Tasks:        map[string]int{"tracked": 3, "artifact_ready": 1},
		})
	})
	mux.HandleFunc("/api/artifacts", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]ledger.ArtifactInfo{
			{Hash: "h1", Name: "show", Path: "/storage/h1"},
		})
	})
	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		name := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"job": name, "status": "queued"})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func runCLI(t *testing.T, apiURL string, args ...string) string {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--api-url", apiURL, "--token", "t"}, args...))
	if err := cmd.Execute(); err != nil {
		t.Fatalf("courier %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func TestStatusCommandRendersCounts(t *testing.T) {
	server := newFakeDaemonAPI(t)
	out := runCLI(t, server.URL, "status")

	for _, want := range []string{"running", "4242", "tracked", "artifact_ready"} {
		if !strings.Contains(out, want) {
			t.Fatalf("status output missing %q:\n%s", want, out)
		}
	}
}

func TestArtifactsCommandRendersTable(t *testing.T) {
	server := newFakeDaemonAPI(t)
	out := runCLI(t, server.URL, "artifacts")

	for _, want := range []string{"h1", "show", "/storage/h1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("artifacts output missing %q:\n%s", want, out)
		}
	}
}

func TestJobCommandsPostTriggers(t *testing.T) {
	server := newFakeDaemonAPI(t)
	for _, job := range []string{"pull", "transfer", "report"} {
		out := runCLI(t, server.URL, job)
		if !strings.Contains(out, job+" job queued") {
			t.Fatalf("%s output missing confirmation: %q", job, out)
		}
	}
}

func TestCLISurfacesDaemonErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "command backlog full"})
	}))
	t.Cleanup(server.Close)

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--api-url", server.URL, "--token", "t", "pull"})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "command backlog full") {
		t.Fatalf("expected backlog error, got %v", err)
	}
}
