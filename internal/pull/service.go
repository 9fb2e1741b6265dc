// Package pull orchestrates one run: fetch the platform catalog, resolve
// each patch's file metadata, and hand download jobs to a bounded pool.
package pull

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/patchpull/patchpull/internal/downloader"
	"github.com/patchpull/patchpull/internal/patchstorage"
	"github.com/patchpull/patchpull/internal/platform"
)

// Service runs pulls.
type Service struct {
	client      *patchstorage.Client
	downloader  *downloader.Downloader
	concurrency int
	logger      zerolog.Logger
}

// Summary is the outcome of one run.
type Summary struct {
	Platform     string
	RunID        string
	Total        int
	Downloaded   int
	Skipped      int
	Failed       int
	BytesWritten int64
	Results      []downloader.Result
}

// OK reports whether every record was handled without error.
func (s *Summary) OK() bool {
	return s.Failed == 0
}

// NewService creates a new pull service. Concurrency below 1 is treated as
// sequential.
func NewService(client *patchstorage.Client, dl *downloader.Downloader, concurrency int, logger zerolog.Logger) *Service {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Service{
		client:      client,
		downloader:  dl,
		concurrency: concurrency,
		logger:      logger.With().Str("component", "pull").Logger(),
	}
}

// Run pulls every patch of one platform. A catalog fetch failure aborts the
// run; per-record failures are collected into the summary and do not stop
// the remaining records.
func (s *Service) Run(ctx context.Context, plat platform.Platform) (*Summary, error) {
	runID := uuid.New().String()[:8]
	logger := s.logger.With().Str("runId", runID).Str("platform", plat.Slug).Logger()

	patches, err := s.client.ListPatches(ctx, plat.ID)
	if err != nil {
		return nil, fmt.Errorf("catalog fetch for %s: %w", plat.Slug, err)
	}

	logger.Info().Int("patches", len(patches)).Int("concurrency", s.concurrency).Msg("Starting downloads")

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.concurrency)
	resultChan := make(chan downloader.Result, len(patches))

	for _, p := range patches {
		wg.Add(1)
		go func(p patchstorage.PatchSummary) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			resultChan <- s.pullOne(ctx, plat, p, logger)
		}(p)
	}

	wg.Wait()
	close(resultChan)

	summary := s.collectResults(resultChan, plat, runID, len(patches))
	logger.Info().
		Int("downloaded", summary.Downloaded).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Int64("bytes", summary.BytesWritten).
		Msg("Run complete")
	return summary, nil
}

// pullOne resolves one catalog entry to a download job and executes it.
func (s *Service) pullOne(ctx context.Context, plat platform.Platform, p patchstorage.PatchSummary, logger zerolog.Logger) downloader.Result {
	job := downloader.Job{PatchID: p.ID, Slug: p.Slug, Title: p.Title}

	patch, err := s.client.GetPatch(ctx, p.ID)
	if err != nil {
		logger.Error().Err(err).Int("patchId", p.ID).Msg("Metadata fetch failed")
		return downloader.Result{Job: job, Err: fmt.Errorf("metadata fetch: %w", err)}
	}
	if len(patch.Files) == 0 {
		return downloader.Result{Job: job, Err: fmt.Errorf("patch %d (%s) has no files", p.ID, p.Slug)}
	}

	// The first file is the patch itself; additional entries are extras
	// like artwork or manuals.
	file := patch.Files[0]
	job.URL = file.URL
	job.Filesize = file.Filesize
	job.Filename = downloader.SanitizeFilename(file.Filename)
	if job.Filename == "" {
		job.Filename = p.Slug + plat.Extension
	}

	return s.downloader.Download(ctx, job)
}

func (s *Service) collectResults(resultChan chan downloader.Result, plat platform.Platform, runID string, total int) *Summary {
	summary := &Summary{
		Platform: plat.Slug,
		RunID:    runID,
		Total:    total,
		Results:  make([]downloader.Result, 0, total),
	}

	for res := range resultChan {
		summary.Results = append(summary.Results, res)
		switch {
		case res.Err != nil:
			summary.Failed++
		case res.Skipped:
			summary.Skipped++
		default:
			summary.Downloaded++
			summary.BytesWritten += res.BytesWritten
		}
	}

	sort.Slice(summary.Results, func(i, j int) bool {
		return summary.Results[i].Job.PatchID < summary.Results[j].Job.PatchID
	})
	return summary
}
