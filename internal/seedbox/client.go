package seedbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"courier/internal/config"
	"courier/internal/ledger"
	"courier/internal/logging"
)

// ErrAuthFailed indicates the seed host rejected the configured credentials.
var ErrAuthFailed = errors.New("seedbox authentication failed")

// ErrInvalidResponse indicates the seed host returned a payload missing
// required fields or otherwise unusable.
var ErrInvalidResponse = errors.New("invalid seedbox response")

// TaskSource lists the tasks the relay should track. Implementations query
// the seed host; tests substitute fakes.
type TaskSource interface {
	QueryTasks(ctx context.Context, earliestImportDate time.Time) ([]ledger.Task, error)
}

// Client talks to a qBittorrent WebUI v2 endpoint. Authentication is cookie
// based; the client logs in on first use and retries once when the session
// expires.
type Client struct {
	baseURL  string
	username string
	password string
	tag      string
	http     *http.Client
	logger   *slog.Logger

	loggedIn bool
}

// NewClient constructs a seed host client from configuration.
func NewClient(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Seedbox.URL) == "" {
		return nil, errors.New("seedbox url is not configured")
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	timeout := time.Duration(cfg.Seedbox.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.Seedbox.URL, "/"),
		username: cfg.Seedbox.Username,
		password: cfg.Seedbox.Password,
		tag:      cfg.Seedbox.Tag,
		http: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		logger: logging.WithComponent(logger, "seedbox"),
	}, nil
}

func (c *Client) login(ctx context.Context) error {
	form := url.Values{
		"username": {c.username},
		"password": {c.password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(string(body), "Ok") {
		return fmt.Errorf("%w: status %d", ErrAuthFailed, resp.StatusCode)
	}

	c.loggedIn = true
	c.logger.Debug("authenticated with seed host")
	return nil
}

// torrentInfo mirrors the fields of the torrents/info payload the relay
// consumes. Pointers distinguish absent fields from zero values; a missing
// field is a hard error rather than a silently wrong task.
type torrentInfo struct {
	Hash        *string  `json:"hash"`
	Name        *string  `json:"name"`
	Progress    *float64 `json:"progress"`
	ContentPath *string  `json:"content_path"`
	AddedOn     *int64   `json:"added_on"`
}

// QueryTasks fetches all torrents carrying the relay's tag and converts them
// to ledger tasks. Torrents added before earliestImportDate are skipped so a
// fresh database does not re-import history.
func (c *Client) QueryTasks(ctx context.Context, earliestImportDate time.Time) ([]ledger.Task, error) {
	if !c.loggedIn {
		if err := c.login(ctx); err != nil {
			return nil, err
		}
	}

	infos, err := c.listTorrents(ctx)
	if errors.Is(err, ErrAuthFailed) {
		// Session cookie expired; log in again and retry once.
		if err := c.login(ctx); err != nil {
			return nil, err
		}
		infos, err = c.listTorrents(ctx)
	}
	if err != nil {
		return nil, err
	}

	watermark := earliestImportDate.Unix()
	tasks := make([]ledger.Task, 0, len(infos))
	ignored := 0
	for _, info := range infos {
		task, addedOn, err := convertTorrent(info)
		if err != nil {
			return nil, err
		}
		if addedOn < watermark {
			ignored++
			continue
		}
		tasks = append(tasks, task)
	}

	c.logger.Debug("queried seed host",
		logging.Int("tracked", len(tasks)),
		logging.Int("ignored", ignored),
	)
	return tasks, nil
}

func (c *Client) listTorrents(ctx context.Context) ([]torrentInfo, error) {
	endpoint := c.baseURL + "/api/v2/torrents/info"
	if c.tag != "" {
		endpoint += "?tag=" + url.QueryEscape(c.tag)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build torrents request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("torrents request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
		c.loggedIn = false
		return nil, fmt.Errorf("%w: status %d", ErrAuthFailed, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrInvalidResponse, resp.StatusCode)
	}

	var infos []torrentInfo
	if err := json.NewDecoder(resp.Body).Decode(&infos); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return infos, nil
}

func convertTorrent(info torrentInfo) (ledger.Task, int64, error) {
	missing := func(field string) (ledger.Task, int64, error) {
		return ledger.Task{}, 0, fmt.Errorf("%w: missing field %s in torrent info", ErrInvalidResponse, field)
	}

	if info.Hash == nil {
		return missing("hash")
	}
	if info.Progress == nil {
		return missing("progress")
	}
	if info.ContentPath == nil {
		return missing("content_path")
	}
	if info.Name == nil {
		return missing("name")
	}
	if info.AddedOn == nil {
		return missing("added_on")
	}

	status := ledger.StatusTracked
	if *info.Progress >= 1.0 {
		status = ledger.StatusTorrentReady
	}
	return ledger.Task{
		Hash:        *info.Hash,
		Name:        *info.Name,
		Status:      status,
		ContentPath: *info.ContentPath,
	}, *info.AddedOn, nil
}
