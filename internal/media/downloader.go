package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/IshaanNene/fetgoat/internal/config"
	"github.com/IshaanNene/fetgoat/internal/content"
	"github.com/IshaanNene/fetgoat/internal/fetcher"
	"github.com/IshaanNene/fetgoat/internal/observability"
	"github.com/IshaanNene/fetgoat/internal/types"
)

// ErrTooLarge is returned for pictures over the configured size cap.
var ErrTooLarge = errors.New("picture exceeds size limit")

// DownloadResult tracks a downloaded picture.
type DownloadResult struct {
	PictureID   int64         `json:"picture_id"`
	CreatorID   int64         `json:"creator_id"`
	URL         string        `json:"url"`
	LocalPath   string        `json:"local_path"`
	Size        int64         `json:"size"`
	ContentType string        `json:"content_type"`
	Hash        string        `json:"hash"`
	Duration    time.Duration `json:"duration"`
	Cached      bool          `json:"cached"`
	Err         error         `json:"-"`
}

// Downloader saves pictures to disk through the session transport, laid
// out as <dir>/<creator id>/<picture id>.<ext>.
type Downloader struct {
	fetcher    fetcher.Fetcher
	outputDir  string
	maxSize    int64
	concurrent int
	metrics    *observability.Metrics
	logger     *slog.Logger

	mu   sync.Mutex
	seen map[string]*DownloadResult
}

// NewDownloader creates the output directory and a downloader running at
// most concurrent fetches at once.
func NewDownloader(cfg config.MediaConfig, f fetcher.Fetcher, concurrent int, metrics *observability.Metrics, logger *slog.Logger) (*Downloader, error) {
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	if concurrent < 1 {
		concurrent = 1
	}
	if metrics == nil {
		metrics = observability.NewMetrics(logger)
	}
	return &Downloader{
		fetcher:    f,
		outputDir:  cfg.OutputDir,
		maxSize:    int64(cfg.MaxSizeMB) * 1024 * 1024,
		concurrent: concurrent,
		metrics:    metrics,
		logger:     logger.With("component", "media_downloader"),
		seen:       make(map[string]*DownloadResult),
	}, nil
}

// Download saves one picture. A stub without a source is populated first.
// The same source URL is fetched once per Downloader.
func (d *Downloader) Download(ctx context.Context, p *content.Picture) (*DownloadResult, error) {
	src, err := d.source(ctx, p)
	if err != nil {
		return nil, err
	}
	return d.fetch(ctx, p, src)
}

// DownloadAll downloads pictures concurrently. Results come back in input
// order; a failed picture carries its error in Err and does not stop the
// others. Stubs are populated one at a time beforehand since a session
// serves one page request at a time.
func (d *Downloader) DownloadAll(ctx context.Context, pictures []*content.Picture) []*DownloadResult {
	results := make([]*DownloadResult, len(pictures))
	sources := make([]string, len(pictures))
	for i, p := range pictures {
		src, err := d.source(ctx, p)
		if err != nil {
			results[i] = &DownloadResult{PictureID: p.ID, Err: err}
			continue
		}
		sources[i] = src
	}

	sem := make(chan struct{}, d.concurrent)
	var wg sync.WaitGroup

	for i, p := range pictures {
		if results[i] != nil {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results[i] = &DownloadResult{PictureID: p.ID, Err: ctx.Err()}
				return
			}
			defer func() { <-sem }()

			result, err := d.fetch(ctx, p, sources[i])
			if err != nil {
				result = &DownloadResult{PictureID: p.ID, Err: err}
			}
			results[i] = result
		}()
	}

	wg.Wait()
	for _, r := range results {
		if r.Err != nil {
			d.logger.Warn("download failed", "picture", r.PictureID, "error", r.Err)
		}
	}
	return results
}

func (d *Downloader) source(ctx context.Context, p *content.Picture) (string, error) {
	if p.Src == "" && p.ThumbSrc == "" && !p.IsPopulated() {
		if err := p.Populate(ctx); err != nil {
			return "", fmt.Errorf("populate picture %d: %w", p.ID, err)
		}
	}
	src := p.Src
	if src == "" {
		src = p.ThumbSrc
	}
	u, err := url.Parse(src)
	if err != nil || !u.IsAbs() {
		return "", fmt.Errorf("picture %d: no absolute source URL (%q)", p.ID, src)
	}
	return src, nil
}

func (d *Downloader) fetch(ctx context.Context, p *content.Picture, src string) (*DownloadResult, error) {
	d.mu.Lock()
	if prev, ok := d.seen[src]; ok {
		d.mu.Unlock()
		cached := *prev
		cached.Cached = true
		return &cached, nil
	}
	d.mu.Unlock()

	start := time.Now()
	req, err := types.NewRequest(src)
	if err != nil {
		return nil, err
	}
	req.Tag = "media"
	req.Headers.Set("Accept", "image/avif,image/webp,image/*,*/*;q=0.8")
	req.MaxBodySize = -1
	if d.maxSize > 0 {
		req.MaxBodySize = d.maxSize
	}

	resp, err := d.fetcher.Fetch(ctx, req)
	if errors.Is(err, types.ErrBodyTooLarge) {
		return nil, fmt.Errorf("%w: %s is over %s", ErrTooLarge, src, HumanSize(d.maxSize))
	}
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", src, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &types.FetchError{URL: src, StatusCode: resp.StatusCode, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	creatorID := int64(0)
	if p.Creator != nil {
		creatorID = p.Creator.ID
	}
	dir := filepath.Join(d.outputDir, strconv.FormatInt(creatorID, 10))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create picture dir: %w", err)
	}
	u, _ := url.Parse(src)
	localPath := filepath.Join(dir, strconv.FormatInt(p.ID, 10)+extension(u, resp.ContentType))
	if err := writeAtomic(localPath, resp.Body); err != nil {
		return nil, err
	}

	sum := sha256.Sum256(resp.Body)
	result := &DownloadResult{
		PictureID:   p.ID,
		CreatorID:   creatorID,
		URL:         src,
		LocalPath:   localPath,
		Size:        int64(len(resp.Body)),
		ContentType: resp.ContentType,
		Hash:        hex.EncodeToString(sum[:]),
		Duration:    time.Since(start),
	}

	d.mu.Lock()
	d.seen[src] = result
	d.mu.Unlock()
	d.metrics.PicturesDownloaded.Add(1)

	d.logger.Debug("picture downloaded",
		"picture", p.ID,
		"size", result.Size,
		"hash", result.Hash[:16],
		"duration", result.Duration,
	)
	return result, nil
}

// Stats returns download statistics.
func (d *Downloader) Stats() map[string]int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	var bytes int64
	for _, r := range d.seen {
		bytes += r.Size
	}
	return map[string]int64{
		"total_downloaded": int64(len(d.seen)),
		"bytes":            bytes,
	}
}

// --- Helpers ---

func extension(u *url.URL, contentType string) string {
	if ext := strings.ToLower(path.Ext(u.Path)); ext != "" && len(ext) <= 5 {
		return ext
	}
	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch mediaType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	if exts, _ := mime.ExtensionsByType(mediaType); len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

func writeAtomic(dst string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".part-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write picture: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close picture: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename picture: %w", err)
	}
	return nil
}

// HumanSize formats a byte count for display.
func HumanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
