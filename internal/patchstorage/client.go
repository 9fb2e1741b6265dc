// Package patchstorage is a client for the Patchstorage beta REST API.
package patchstorage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/patchpull/patchpull/internal/config"
)

var (
	ErrTransport         = errors.New("patchstorage request failed")
	ErrAPIError          = errors.New("patchstorage API error")
	ErrRateLimited       = errors.New("patchstorage API rate limited")
	ErrPatchNotFound     = errors.New("patch not found")
	ErrMalformedResponse = errors.New("malformed patchstorage response")
)

// Client is a Patchstorage API client.
type Client struct {
	httpClient *http.Client
	config     config.PatchstorageConfig
	logger     zerolog.Logger
}

// NewClient creates a new Patchstorage client.
func NewClient(cfg config.PatchstorageConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config: cfg,
		logger: logger.With().Str("component", "patchstorage").Logger(),
	}
}

// ListPatches pages through the catalog for a platform and returns every
// entry. Pagination ends when the response carries no Link rel="next" header
// or a page comes back empty. A single request failure is terminal for the
// whole fetch; re-running the command is the recovery path.
func (c *Client) ListPatches(ctx context.Context, platformID int) ([]PatchSummary, error) {
	pageSize := c.config.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	var all []PatchSummary
	seen := make(map[int]bool)

	for page := 1; ; page++ {
		if page > 1 && c.config.RequestDelay() > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RequestDelay()):
			}
		}

		endpoint := fmt.Sprintf("%s/patches/", c.config.BaseURL)
		params := url.Values{}
		params.Set("platforms", strconv.Itoa(platformID))
		params.Set("page", strconv.Itoa(page))
		params.Set("per_page", strconv.Itoa(pageSize))

		var patches []PatchSummary
		header, err := c.getJSON(ctx, endpoint, params, &patches)
		if err != nil {
			return nil, err
		}
		if len(patches) == 0 {
			break
		}

		for _, p := range patches {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			all = append(all, p)
		}

		c.logger.Debug().
			Int("platformId", platformID).
			Int("page", page).
			Int("entries", len(patches)).
			Msg("Fetched catalog page")

		if !hasNextLink(header.Get("Link")) {
			break
		}
	}

	c.logger.Info().
		Int("platformId", platformID).
		Int("patches", len(all)).
		Msg("Catalog fetch complete")
	return all, nil
}

// GetPatch fetches the full record for one patch, including its files.
func (c *Client) GetPatch(ctx context.Context, id int) (*Patch, error) {
	endpoint := fmt.Sprintf("%s/patches/%d", c.config.BaseURL, id)

	var patch Patch
	if _, err := c.getJSON(ctx, endpoint, nil, &patch); err != nil {
		return nil, err
	}
	return &patch, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, result interface{}) (http.Header, error) {
	reqURL := endpoint
	if len(params) > 0 {
		reqURL = fmt.Sprintf("%s?%s", endpoint, params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("url", endpoint).Msg("HTTP request failed")
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
			c.logger.Error().
				Int("status", resp.StatusCode).
				Str("code", errResp.Code).
				Str("message", errResp.Message).
				Msg("Patchstorage API error")
		}

		switch resp.StatusCode {
		case http.StatusNotFound:
			return nil, ErrPatchNotFound
		case http.StatusTooManyRequests:
			return nil, ErrRateLimited
		default:
			return nil, fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return resp.Header, nil
}
