package pipeline

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/oshokin/lights-manager/internal/config"
	"github.com/oshokin/lights-manager/internal/logger"
)

// Downloader opens asset streams. The length is negative when unknown.
type Downloader interface {
	Download(ctx context.Context, url string) (io.ReadCloser, int64, error)
}

// DownloadPercent is round(read*100/length) clamped to [0,100]; unknown lengths report 0.
func DownloadPercent(read, length int64) int {
	if length <= 0 {
		return 0
	}

	percent := int(math.Round(float64(read) * 100 / float64(length)))

	return min(max(percent, 0), 100)
}

// progressReader reports the share of length read so far.
type progressReader struct {
	r      io.Reader
	read   int64
	length int64
	report func(int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	p.report(DownloadPercent(p.read, p.length))

	return n, err
}

// download streams url into dst and returns the number of bytes written.
func download(ctx context.Context, d Downloader, url, dst string, report func(int)) (int64, error) {
	started := time.Now()

	body, length, err := d.Download(ctx, url)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	if err = os.MkdirAll(filepath.Dir(dst), config.DefaultDirPermissions); err != nil {
		return 0, fmt.Errorf("create download directory: %w", err)
	}

	out, err := os.OpenFile(filepath.Clean(dst), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755) //nolint:gosec // Downloads may be executables.
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dst, err)
	}

	size := "unknown"
	if length > 0 {
		size = humanize.Bytes(uint64(length))
	}

	logger.InfoKV(ctx, "Downloading asset", "path", dst, "size", size)

	written, err := io.Copy(out, &progressReader{r: body, length: length, report: report})
	if err != nil {
		_ = out.Close()

		return written, fmt.Errorf("download to %s: %w", dst, err)
	}

	if err = out.Close(); err != nil {
		return written, fmt.Errorf("close %s: %w", dst, err)
	}

	logger.InfoKV(ctx, "Downloaded asset",
		"path", dst,
		"size", humanize.Bytes(uint64(written)),
		"elapsed", time.Since(started).Round(time.Millisecond))

	return written, nil
}
