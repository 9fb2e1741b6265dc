// Package downloader fetches patch files and writes them into the output
// directory.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/patchpull/patchpull/internal/config"
)

var (
	ErrInvalidJob     = errors.New("invalid download job")
	ErrDownloadFailed = errors.New("download failed")
)

// Job describes one file to download.
type Job struct {
	PatchID  int
	Slug     string
	Title    string
	Filename string
	URL      string
	Filesize int64
}

// Result is the per-job outcome. Err is nil on success.
type Result struct {
	Job          Job
	Path         string
	BytesWritten int64
	Skipped      bool
	Err          error
}

// Downloader writes patch files to disk.
type Downloader struct {
	config     config.DownloadConfig
	httpClient *http.Client
	logger     zerolog.Logger
}

// New creates a new Downloader.
func New(cfg config.DownloadConfig, logger zerolog.Logger) *Downloader {
	return &Downloader{
		config: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		logger: logger.With().Str("component", "downloader").Logger(),
	}
}

// Download fetches the job's URL and writes the body under the output
// directory, creating it if absent. The body is written to a uniquely named
// temp file and renamed into place, so an existing file of the same name is
// replaced atomically and a failed download leaves nothing behind.
func (d *Downloader) Download(ctx context.Context, job Job) Result {
	res := Result{Job: job}

	if job.URL == "" {
		res.Err = fmt.Errorf("%w: patch %d has no download URL", ErrInvalidJob, job.PatchID)
		return res
	}

	name := SanitizeFilename(job.Filename)
	if name == "" {
		res.Err = fmt.Errorf("%w: patch %d has no usable filename", ErrInvalidJob, job.PatchID)
		return res
	}
	destPath := filepath.Join(d.config.OutputDir, name)
	res.Path = destPath

	if d.config.SkipExisting {
		if _, err := os.Stat(destPath); err == nil {
			d.logger.Debug().Str("path", destPath).Msg("File exists, skipping")
			res.Skipped = true
			return res
		}
	}

	if err := os.MkdirAll(d.config.OutputDir, 0755); err != nil {
		res.Err = fmt.Errorf("failed to create output directory: %w", err)
		return res
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.URL, nil)
	if err != nil {
		res.Err = fmt.Errorf("failed to create request: %w", err)
		return res
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.logger.Error().Err(err).Str("url", job.URL).Msg("Patch download failed")
		res.Err = fmt.Errorf("%w: %v", ErrDownloadFailed, err)
		return res
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		d.logger.Error().Int("status", resp.StatusCode).Str("url", job.URL).Msg("Patch download failed")
		res.Err = fmt.Errorf("%w: status %d", ErrDownloadFailed, resp.StatusCode)
		return res
	}

	tmpPath := fmt.Sprintf("%s.%s.partial", destPath, uuid.New().String()[:8])
	file, err := os.Create(tmpPath)
	if err != nil {
		res.Err = fmt.Errorf("failed to create file: %w", err)
		return res
	}

	written, err := io.Copy(file, resp.Body)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		res.Err = fmt.Errorf("failed to write file: %w", err)
		return res
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		res.Err = fmt.Errorf("failed to move file into place: %w", err)
		return res
	}

	res.BytesWritten = written
	d.logger.Debug().
		Str("path", destPath).
		Int64("bytes", written).
		Msg("Patch written")
	return res
}

// SanitizeFilename reduces a name from the API to a bare base name safe to
// join under the output directory.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	name = filepath.Base(filepath.ToSlash(name))
	if name == "." || name == ".." || name == "/" {
		return ""
	}
	return name
}
