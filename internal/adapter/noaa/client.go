// Package noaa lists and downloads ABI scan files from the NOAA open-data
// S3 buckets. The buckets are public, so the client always runs with
// anonymous credentials; an endpoint override points it at MinIO in tests.
package noaa

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dustin/go-humanize"

	"github.com/JvCastelo/masters-project/internal/observability"
)

// ErrNotFound reports that a requested object does not exist in the bucket.
var ErrNotFound = errors.New("object not found")

// noaaRegion hosts every GOES open-data bucket.
const noaaRegion = "us-east-1"

// Client wraps the S3 API for one scan bucket.
type Client struct {
	s3      *s3.Client
	bucket  string
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewClient builds an anonymous S3 client for bucket. A non-empty endpoint
// switches to path-style addressing so MinIO resolves buckets correctly.
func NewClient(ctx context.Context, bucket, endpoint string, logger *slog.Logger, metrics *observability.Metrics) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(noaaRegion),
		awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &Client{
		s3:      client,
		bucket:  bucket,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// ListScanKeys returns the sorted keys of every scan file for one channel on
// one UTC day. Listing walks the hour prefixes the bucket is laid out by.
func (c *Client) ListScanKeys(ctx context.Context, product, channel string, day time.Time) ([]string, error) {
	var keys []string
	for _, prefix := range hourPrefixes(product, day) {
		paginator := s3.NewListObjectsV2Paginator(c.s3, &s3.ListObjectsV2Input{
			Bucket: aws.String(c.bucket),
			Prefix: aws.String(prefix),
		})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("list s3://%s/%s: %w", c.bucket, prefix, err)
			}
			for _, obj := range page.Contents {
				key := aws.ToString(obj.Key)
				if matchesChannel(key, channel) {
					keys = append(keys, key)
				}
			}
		}
	}
	sort.Strings(keys)

	c.logger.Debug("listed scan keys",
		"bucket", c.bucket,
		"channel", channel,
		"day", day.Format("2006-01-02"),
		"count", len(keys),
	)
	return keys, nil
}

// Download streams one object into destDir and returns the local path. A
// file that already exists with content is reused rather than re-fetched,
// so interrupted runs pick up where they left off.
func (c *Client) Download(ctx context.Context, key, destDir string) (string, error) {
	dest := filepath.Join(destDir, path.Base(key))
	if st, err := os.Stat(dest); err == nil && st.Size() > 0 {
		c.metrics.ArchiveDownloads.WithLabelValues("cached").Inc()
		c.logger.Debug("scan already downloaded", "file", dest)
		return dest, nil
	}

	resp, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			c.metrics.ArchiveDownloads.WithLabelValues("missing").Inc()
			return "", fmt.Errorf("s3://%s/%s: %w", c.bucket, key, ErrNotFound)
		}
		c.metrics.ArchiveDownloads.WithLabelValues("error").Inc()
		return "", fmt.Errorf("get s3://%s/%s: %w", c.bucket, key, err)
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", destDir, err)
	}

	n, err := writeFile(dest, resp.Body)
	if err != nil {
		c.metrics.ArchiveDownloads.WithLabelValues("error").Inc()
		return "", fmt.Errorf("write %s: %w", dest, err)
	}

	c.metrics.ArchiveDownloads.WithLabelValues("ok").Inc()
	c.metrics.ArchiveBytes.Add(float64(n))
	c.logger.Debug("downloaded scan", "key", key, "size", humanize.Bytes(uint64(n)))
	return dest, nil
}

// writeFile copies the body through a temp file so a failed download never
// leaves a truncated scan behind for the reuse check to find.
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

// hourPrefixes enumerates the 24 hour-level prefixes for one UTC day under
// the {product}/{year}/{day-of-year}/{hour} bucket layout.
func hourPrefixes(product string, day time.Time) []string {
	day = day.UTC()
	prefixes := make([]string, 0, 24)
	for hour := 0; hour < 24; hour++ {
		prefixes = append(prefixes, fmt.Sprintf("%s/%d/%03d/%02d/", product, day.Year(), day.YearDay(), hour))
	}
	return prefixes
}

// matchesChannel keeps scan files whose name carries the channel token.
// Timestamps in the name are all digits, so a Cnn token cannot collide.
func matchesChannel(key, channel string) bool {
	return strings.HasSuffix(key, ".nc") && strings.Contains(path.Base(key), channel)
}
