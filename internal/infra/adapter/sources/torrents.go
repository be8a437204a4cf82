package sources

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"epsteindata/internal/domain/entity"
	"epsteindata/internal/infra/adapter"
)

// Torrents pulls a short, hand-verified list of magnet links with aria2c
// instead of the shared HTTP fetcher — these are multi-gigabyte archives
// better served peer-to-peer than from a single government host. It
// implements adapter.Runner to replace the default discover/download loop
// entirely, since aria2c (not the Fetcher) performs the transfer.
type Torrents struct {
	hasAria2c bool
}

func NewTorrents() *Torrents {
	t := &Torrents{}
	t.hasAria2c = checkAria2c()
	if !t.hasAria2c {
		slog.Warn("torrents: aria2c not found — torrent downloads disabled; install with: dnf install aria2")
	}
	return t
}

func checkAria2c() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return exec.CommandContext(ctx, "aria2c", "--version").Run() == nil
}

func (s *Torrents) Name() string { return "torrents" }

type torrentEntry struct {
	magnet   string
	sourceID string
	filename string
	title    string
}

// Verified magnet links from github.com/yung-megafone/Epstein-Files.
var torrentMagnets = []torrentEntry{
	{
		magnet:   "magnet:?xt=urn:btih:f5cbe5026b1f86617c520d0a9cd610d6254cbe85&dn=epstein-files-structured-full-20250204.tar.zst&xl=221393230690",
		sourceID: "full-structured",
		filename: "epstein-files-structured-full-20250204.tar.zst",
		title:    "Epstein Files — Full Structured Dataset (221GB)",
	},
	{
		magnet:   "magnet:?xt=urn:btih:7ac8f771678d19c75a26ea6c14e7d4c003fbf9b6&dn=dataset9-more-complete.tar.zst",
		sourceID: "dataset-9-torrent",
		filename: "dataset9-more-complete.tar.zst",
		title:    "DOJ Data Set 9 (Torrent)",
	},
	{
		magnet:   "magnet:?xt=urn:btih:d509cc4ca1a415a9ba3b6cb920f67c44aed7fe1f&dn=DataSet%2010.zip",
		sourceID: "dataset-10-torrent",
		filename: "DataSet-10.zip",
		title:    "DOJ Data Set 10 (Torrent)",
	},
	{
		magnet:   "magnet:?xt=urn:btih:59975667f8bdd5baf9945b0e2db8a57d52d32957&dn=DataSet%2011.zip",
		sourceID: "dataset-11-torrent",
		filename: "DataSet-11.zip",
		title:    "DOJ Data Set 11 (Torrent)",
	},
}

// Discover yields magnet links as candidates so URL dedup and the catalog
// store behave the same way as every other source, even though Run bypasses
// the default driver that would otherwise consume this channel.
func (s *Torrents) Discover(ctx context.Context, state map[string]any, save adapter.SaveState) (<-chan adapter.Candidate, <-chan error) {
	out := make(chan adapter.Candidate)
	errs := make(chan error)

	go func() {
		defer close(out)
		defer close(errs)
		if !s.hasAria2c {
			return
		}
		for _, t := range torrentMagnets {
			out <- adapter.Candidate{
				URL: t.magnet,
				Metadata: map[string]any{
					"source_id": t.sourceID,
					"filename":  t.filename,
					"title":     t.title,
				},
			}
		}
	}()

	return out, errs
}

// Run overrides the default discover/download/extract loop: aria2c performs
// the transfer itself, so there is nothing for the shared Fetcher to do.
func (s *Torrents) Run(ctx context.Context, deps adapter.Deps) (adapter.Stats, error) {
	var stats adapter.Stats

	if !s.hasAria2c {
		slog.Error("torrents: aria2c not available, skipping")
		return stats, nil
	}

	slog.Info("torrents: starting torrent downloads")
	destDir := filepath.Join(deps.DataDir, s.Name())
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return stats, fmt.Errorf("torrents: create dest dir: %w", err)
	}

	for _, t := range torrentMagnets {
		stats.Discovered++

		exists, err := deps.Store.URLExists(ctx, t.magnet)
		if err != nil {
			return stats, fmt.Errorf("torrents: url exists check: %w", err)
		}
		if exists {
			slog.Info("torrents: already tracked", slog.String("filename", t.filename))
			stats.Skipped++
			continue
		}

		doc := &entity.Document{
			URL:      t.magnet,
			Source:   s.Name(),
			SourceID: t.sourceID,
			Filename: t.filename,
			Title:    t.title,
		}
		docID, err := deps.Store.InsertDocument(ctx, doc)
		if err != nil {
			return stats, fmt.Errorf("torrents: insert document: %w", err)
		}

		slog.Info("torrents: starting", slog.String("filename", t.filename))
		s.downloadOne(ctx, deps, docID, destDir, t, &stats)
	}

	slog.Info("torrents: done")
	return stats, nil
}

func (s *Torrents) downloadOne(ctx context.Context, deps adapter.Deps, docID int64, destDir string, t torrentEntry, stats *adapter.Stats) {
	runCtx, cancel := context.WithTimeout(ctx, 24*time.Hour)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "aria2c",
		"--dir", destDir,
		"--seed-time=0",
		"--max-tries=5",
		"--retry-wait=30",
		"--file-allocation=falloc",
		"--summary-interval=60",
		"--bt-stop-timeout=600",
		t.magnet,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()

	if runCtx.Err() == context.DeadlineExceeded {
		stats.Failed++
		s.fail(ctx, deps, docID, t.filename, "timeout after 24h")
		return
	}

	if err != nil {
		stats.Failed++
		errMsg := stderr.String()
		if len(errMsg) > 500 {
			errMsg = errMsg[:500]
		}
		if errMsg == "" {
			errMsg = err.Error()
		}
		s.fail(ctx, deps, docID, t.filename, errMsg)
		return
	}

	localPath := filepath.Join(destDir, t.filename)
	info, statErr := os.Stat(localPath)
	if statErr != nil {
		// aria2c may have saved with a different name than expected.
		if updErr := deps.Store.UpdateDownload(ctx, docID, entity.DownloadStatusDownloaded, destDir, "", 0, ""); updErr != nil {
			slog.Warn("torrents: failed to record download", slog.Any("error", updErr))
		}
		slog.Info("torrents: downloaded", slog.String("filename", t.filename), slog.String("saved_to", destDir))
		stats.Downloaded++
		return
	}

	sha, err := sha256File(localPath)
	if err != nil {
		stats.Failed++
		s.fail(ctx, deps, docID, t.filename, err.Error())
		return
	}

	if updErr := deps.Store.UpdateDownload(ctx, docID, entity.DownloadStatusDownloaded, localPath, sha, info.Size(), ""); updErr != nil {
		slog.Warn("torrents: failed to record download", slog.Any("error", updErr))
	}
	slog.Info("torrents: downloaded", slog.String("filename", t.filename), slog.Int64("bytes", info.Size()))
	stats.Downloaded++
}

func (s *Torrents) fail(ctx context.Context, deps adapter.Deps, docID int64, filename, errMsg string) {
	if err := deps.Store.UpdateDownload(ctx, docID, entity.DownloadStatusFailed, "", "", 0, errMsg); err != nil {
		slog.Warn("torrents: failed to record failure", slog.Any("error", err))
	}
	slog.Error("torrents: failed", slog.String("filename", filename), slog.String("error", errMsg))
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, 64*1024)
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			if _, err := h.Write(buf[:n]); err != nil {
				return "", err
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", readErr
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
