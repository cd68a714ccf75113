package seedbox_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"courier/internal/ledger"
	"courier/internal/logging"
	"courier/internal/seedbox"
	"courier/internal/testsupport"
)

type fakeSeedHost struct {
	mux       *http.ServeMux
	logins    int
	listCalls int
	torrents  string
	rejectSID bool
}

func newFakeSeedHost(t *testing.T, torrents string) (*fakeSeedHost, *httptest.Server) {
	t.Helper()

	host := &fakeSeedHost{mux: http.NewServeMux(), torrents: torrents}
	host.mux.HandleFunc("/api/v2/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("username") != "user" || r.FormValue("password") != "pass" {
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, "Fails.")
			return
		}
		host.logins++
		http.SetCookie(w, &http.Cookie{Name: "SID", Value: fmt.Sprintf("sid-%d", host.logins)})
		fmt.Fprint(w, "Ok.")
	})
	host.mux.HandleFunc("/api/v2/torrents/info", func(w http.ResponseWriter, r *http.Request) {
		host.listCalls++
		if host.rejectSID {
			host.rejectSID = false
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.URL.Query().Get("tag") != "courier" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, host.torrents)
	})

	server := httptest.NewServer(host.mux)
	t.Cleanup(server.Close)
	return host, server
}

func newTestClient(t *testing.T, serverURL string) *seedbox.Client {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	cfg.Seedbox.URL = serverURL
	cfg.Seedbox.Username = "user"
	cfg.Seedbox.Password = "pass"
	cfg.Seedbox.Tag = "courier"

	client, err := seedbox.NewClient(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestNewClientRequiresURL(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Seedbox.URL = ""

	if _, err := seedbox.NewClient(cfg, logging.NewNop()); err == nil {
		t.Fatal("expected missing seedbox url to fail construction")
	}
}

func TestQueryTasksMapsProgressToStatus(t *testing.T) {
	payload := `[
		{"hash":"h1","name":"partial","progress":0.5,"content_path":"/downloads/partial","added_on":2000},
		{"hash":"h2","name":"complete","progress":1.0,"content_path":"/downloads/complete","added_on":2000}
	]`
	_, server := newFakeSeedHost(t, payload)
	client := newTestClient(t, server.URL)

	tasks, err := client.QueryTasks(t.Context(), time.Unix(1000, 0))
	if err != nil {
		t.Fatalf("QueryTasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].Status != ledger.StatusTracked {
		t.Fatalf("partial torrent status = %v", tasks[0].Status)
	}
	if tasks[1].Status != ledger.StatusTorrentReady {
		t.Fatalf("complete torrent status = %v", tasks[1].Status)
	}
	if tasks[1].ContentPath != "/downloads/complete" {
		t.Fatalf("content path lost: %q", tasks[1].ContentPath)
	}
}

func TestQueryTasksSkipsTorrentsBeforeWatermark(t *testing.T) {
	payload := `[
		{"hash":"h1","name":"old","progress":1.0,"content_path":"/d/old","added_on":500},
		{"hash":"h2","name":"new","progress":1.0,"content_path":"/d/new","added_on":1500}
	]`
	_, server := newFakeSeedHost(t, payload)
	client := newTestClient(t, server.URL)

	tasks, err := client.QueryTasks(t.Context(), time.Unix(1000, 0))
	if err != nil {
		t.Fatalf("QueryTasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Hash != "h2" {
		t.Fatalf("expected only the new torrent, got %+v", tasks)
	}
}

func TestQueryTasksRejectsMissingFields(t *testing.T) {
	payload := `[{"hash":"h1","name":"broken","progress":1.0,"added_on":2000}]`
	_, server := newFakeSeedHost(t, payload)
	client := newTestClient(t, server.URL)

	_, err := client.QueryTasks(t.Context(), time.Unix(1000, 0))
	if !errors.Is(err, seedbox.ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
}

func TestQueryTasksRetriesLoginOnExpiredSession(t *testing.T) {
	payload := `[{"hash":"h1","name":"a","progress":1.0,"content_path":"/d/a","added_on":2000}]`
	host, server := newFakeSeedHost(t, payload)
	client := newTestClient(t, server.URL)

	if _, err := client.QueryTasks(t.Context(), time.Unix(1000, 0)); err != nil {
		t.Fatalf("initial QueryTasks: %v", err)
	}

	host.rejectSID = true
	tasks, err := client.QueryTasks(t.Context(), time.Unix(1000, 0))
	if err != nil {
		t.Fatalf("QueryTasks after expiry: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	if host.logins != 2 {
		t.Fatalf("expected a re-login, got %d logins", host.logins)
	}
}

func TestQueryTasksBadCredentials(t *testing.T) {
	_, server := newFakeSeedHost(t, "[]")

	cfg := testsupport.NewConfig(t)
	cfg.Seedbox.URL = server.URL
	cfg.Seedbox.Username = "user"
	cfg.Seedbox.Password = "wrong"
	cfg.Seedbox.Tag = "courier"

	client, err := seedbox.NewClient(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.QueryTasks(t.Context(), time.Unix(0, 0)); !errors.Is(err, seedbox.ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}
