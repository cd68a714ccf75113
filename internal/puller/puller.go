package puller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"courier/internal/ledger"
	"courier/internal/logging"
)

// Puller drains staged artifacts from a relay: fetch the list once, copy each
// artifact down with rsync, confirm receipt so the relay reclaims storage.
type Puller struct {
	artifacts   []ledger.ArtifactInfo
	authHeader  string
	baseURL     string
	destination string
	sshHost     string
	binary      string
	http        *http.Client
	logger      *slog.Logger
}

// New constructs a puller from configuration.
func New(cfg *Config, logger *slog.Logger) *Puller {
	authHeader := ""
	if cfg.APIKey != "" {
		authHeader = "Bearer " + cfg.APIKey
	}
	return &Puller{
		authHeader:  authHeader,
		baseURL:     strings.TrimRight(cfg.APIURL, "/"),
		destination: cfg.Destination,
		sshHost:     cfg.SSHHost,
		binary:      "rsync",
		http:        &http.Client{Timeout: 30 * time.Second},
		logger:      logging.WithComponent(logger, "puller"),
	}
}

// FetchArtifacts retrieves the relay's staged artifact list and returns its
// length. The snapshot is taken once per run; artifacts staged afterwards
// wait for the next invocation.
func (p *Puller) FetchArtifacts(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/artifacts", nil)
	if err != nil {
		return 0, fmt.Errorf("build artifacts request: %w", err)
	}
	p.authorize(req)

	resp, err := p.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch artifacts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return 0, fmt.Errorf("relay returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var artifacts []ledger.ArtifactInfo
	if err := json.NewDecoder(resp.Body).Decode(&artifacts); err != nil {
		return 0, fmt.Errorf("decode artifacts: %w", err)
	}
	p.artifacts = artifacts
	return len(artifacts), nil
}

// TransferNext copies the last artifact in the snapshot and confirms it with
// the relay. Returns false when the snapshot is drained. The artifact leaves
// the snapshot only after a successful copy, so a failed run can resume from
// the same artifact.
func (p *Puller) TransferNext(ctx context.Context) (bool, error) {
	if len(p.artifacts) == 0 {
		return false, nil
	}
	artifact := p.artifacts[len(p.artifacts)-1]

	p.logger.Info("transferring artifact",
		logging.String(logging.FieldHash, artifact.Hash),
		logging.String("name", artifact.Name),
	)

	if err := p.rsyncDown(ctx, artifact.Path); err != nil {
		return false, err
	}
	p.artifacts = p.artifacts[:len(p.artifacts)-1]

	// The copy landed, so the relay must hear about it even when the run
	// was cancelled while it was in flight.
	confirmed, err := p.confirm(context.WithoutCancel(ctx), artifact.Hash)
	if err != nil {
		return false, err
	}
	if !confirmed {
		p.logger.Warn("artifact was already archived at the relay",
			logging.String(logging.FieldHash, artifact.Hash),
		)
	}
	return true, nil
}

// Run drains the relay. The first transfer error aborts the run; remaining
// artifacts stay staged for the next invocation.
func (p *Puller) Run(ctx context.Context) error {
	count, err := p.FetchArtifacts(ctx)
	if err != nil {
		return err
	}
	p.logger.Info("found artifacts to pull", logging.Int("count", count))

	for {
		if err := ctx.Err(); err != nil {
			p.logger.Info("stopping, remaining artifacts stay staged")
			return err
		}
		transferred, err := p.TransferNext(ctx)
		if err != nil {
			return err
		}
		if !transferred {
			p.logger.Info("all artifacts transferred")
			return nil
		}
	}
}

func (p *Puller) rsyncDown(ctx context.Context, remotePath string) error {
	args := []string{
		"--delete", "--partial", "--recursive", "-s",
		"--rsh", "ssh -o StrictHostKeyChecking=no -o BatchMode=yes",
		p.sshHost + ":" + remotePath,
		p.destination,
	}

	// A copy in flight is never killed by cancellation; the run loop stops
	// before the next artifact instead.
	cmd := exec.CommandContext(context.WithoutCancel(ctx), p.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		reason := strings.TrimSpace(stderr.String())
		if reason == "" {
			reason = err.Error()
		}
		return fmt.Errorf("rsync failed: %s", reason)
	}
	return nil
}

// confirm reports true when the relay newly archived the artifact and false
// when it had already been archived.
func (p *Puller) confirm(ctx context.Context, hash string) (bool, error) {
	url := fmt.Sprintf("%s/api/artifacts/%s/confirm", p.baseURL, hash)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return false, fmt.Errorf("build confirm request: %w", err)
	}
	p.authorize(req)

	resp, err := p.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("confirm artifact: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusConflict:
		return false, nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return false, fmt.Errorf("relay returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

func (p *Puller) authorize(req *http.Request) {
	if p.authHeader != "" {
		req.Header.Set("Authorization", p.authHeader)
	}
}
