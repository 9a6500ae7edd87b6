// Package sonda downloads and decodes ground-station archives from INPE's
// SONDA network. Archives are ZIP files published per station and year
// (optionally per month) containing one .dat table.
package sonda

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sony/gobreaker"

	"github.com/JvCastelo/masters-project/internal/domain"
	"github.com/JvCastelo/masters-project/internal/observability"
)

// ErrNotFound reports that the station has no archive published for the
// requested period. Monthly archives in particular are routinely absent.
var ErrNotFound = errors.New("archive not found")

var errServerError = errors.New("server error")

// Client downloads SONDA archives for one data product type.
type Client struct {
	httpClient *http.Client
	baseURL    string
	dataType   string
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
	metrics    *observability.Metrics

	maxRetries      int
	initialInterval time.Duration
	maxInterval     time.Duration
}

// NewClient creates a SONDA archive client. The circuit breaker guards the
// INPE server being unhealthy; a missing archive is not a failure to it.
func NewClient(baseURL, dataType string, logger *slog.Logger, metrics *observability.Metrics) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "sonda",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
	})

	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    baseURL,
		dataType:   dataType,
		breaker:    breaker,
		logger:     logger,
		metrics:    metrics,

		maxRetries:      3,
		initialInterval: 2 * time.Second,
		maxInterval:     30 * time.Second,
	}
}

// DownloadYear fetches the yearly archive for a station into destDir and
// returns the local path.
func (c *Client) DownloadYear(ctx context.Context, station domain.Station, year int, destDir string) (string, error) {
	url := yearURL(c.baseURL, c.dataType, station.Code, year)
	dest := filepath.Join(destDir, fmt.Sprintf("%s_%d.zip", station.Name, year))
	return c.download(ctx, url, dest)
}

// DownloadMonth fetches the monthly archive for a station into destDir and
// returns the local path.
func (c *Client) DownloadMonth(ctx context.Context, station domain.Station, year int, month time.Month, destDir string) (string, error) {
	url := monthURL(c.baseURL, c.dataType, station.Code, year, month)
	dest := filepath.Join(destDir, fmt.Sprintf("%s_%d_%02d.zip", station.Name, year, int(month)))
	return c.download(ctx, url, dest)
}

func yearURL(base, dataType, code string, year int) string {
	return fmt.Sprintf("%s/%s/%s/%d/%s_%d_SD.zip", base, dataType, code, year, code, year)
}

func monthURL(base, dataType, code string, year int, month time.Month) string {
	return fmt.Sprintf("%s/%s/%s/%d/%s_%d_%02d_SD.zip", base, dataType, code, year, code, year, int(month))
}

// download fetches url to dest with retries behind the circuit breaker. An
// existing non-empty file is reused so interrupted runs resume cheaply.
func (c *Client) download(ctx context.Context, url, dest string) (string, error) {
	if st, err := os.Stat(dest); err == nil && st.Size() > 0 {
		c.metrics.ArchiveDownloads.WithLabelValues("cached").Inc()
		c.logger.Debug("archive already downloaded", "file", dest)
		return dest, nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
	}

	var attempt int
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.fetch(ctx, url)
		})
		if err == nil {
			return c.save(result.(*http.Response), url, dest)
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.metrics.ArchiveDownloads.WithLabelValues("error").Inc()
			return "", fmt.Errorf("sonda circuit open for %s: %w", url, err)
		}
		if attempt >= c.maxRetries {
			c.metrics.ArchiveDownloads.WithLabelValues("error").Inc()
			return "", fmt.Errorf("download %s: %w", url, err)
		}

		delay := c.backoffDelay(attempt)
		c.logger.Warn("sonda download failed, retrying",
			"url", url, "attempt", attempt+1, "delay", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}
		attempt++
	}
}

// fetch performs one request. Only transport failures and server-side
// statuses count against the breaker; client statuses pass through for the
// caller to classify.
func (c *Client) fetch(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d", errServerError, resp.StatusCode)
	}
	return resp, nil
}

func (c *Client) save(resp *http.Response, url, dest string) (string, error) {
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.metrics.ArchiveDownloads.WithLabelValues("missing").Inc()
		c.logger.Warn("archive not published", "url", url)
		return "", fmt.Errorf("%s: %w", url, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		c.metrics.ArchiveDownloads.WithLabelValues("error").Inc()
		return "", fmt.Errorf("unexpected status %d for %s", resp.StatusCode, url)
	}

	n, err := writeFile(dest, resp.Body)
	if err != nil {
		c.metrics.ArchiveDownloads.WithLabelValues("error").Inc()
		return "", fmt.Errorf("write %s: %w", dest, err)
	}

	c.metrics.ArchiveDownloads.WithLabelValues("ok").Inc()
	c.metrics.ArchiveBytes.Add(float64(n))
	c.logger.Debug("downloaded archive", "url", url, "size", humanize.Bytes(uint64(n)))
	return dest, nil
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := c.initialInterval * time.Duration(math.Pow(2, float64(attempt)))
	if delay > c.maxInterval {
		delay = c.maxInterval
	}
	return delay
}

// writeFile copies the body through a temp file so a failed download never
// leaves a truncated archive behind for the reuse check to find.
func writeFile(dest string, body io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, err
	}
	return n, os.Rename(tmp.Name(), dest)
}
