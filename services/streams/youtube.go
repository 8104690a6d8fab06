package streams

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"trailerreel/models"
)

// SiteYouTube is the catalog site name for YouTube-hosted videos.
const SiteYouTube = "youtube"

// Runner executes a command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// YouTube resolves YouTube keys by asking yt-dlp for the available formats.
type YouTube struct {
	ytdlpPath string
	timeout   time.Duration
	run       Runner
}

func NewYouTube(ytdlpPath string, timeout time.Duration) *YouTube {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &YouTube{
		ytdlpPath: strings.TrimSpace(ytdlpPath),
		timeout:   timeout,
		run:       execRunner,
	}
}

// WithRunner swaps the command runner.
func (y *YouTube) WithRunner(run Runner) *YouTube {
	y.run = run
	return y
}

type ytdlpFormat struct {
	FormatID string  `json:"format_id"`
	URL      string  `json:"url"`
	Ext      string  `json:"ext"`
	VCodec   string  `json:"vcodec"`
	ACodec   string  `json:"acodec"`
	Protocol string  `json:"protocol"`
	Height   int     `json:"height"`
	TBR      float64 `json:"tbr"`
	VBR      float64 `json:"vbr"`
}

type ytdlpInfo struct {
	ID      string        `json:"id"`
	Formats []ytdlpFormat `json:"formats"`
}

// BestStream returns the highest quality video-only stream for the key.
func (y *YouTube) BestStream(ctx context.Context, key string) (*models.StreamDescriptor, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: empty key", ErrNoStream)
	}
	binary, err := y.binary()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, y.timeout)
	defer cancel()

	out, err := y.run(ctx, binary,
		"-J",
		"--no-playlist",
		"--no-warnings",
		"https://www.youtube.com/watch?v="+key,
	)
	if err != nil {
		return nil, fmt.Errorf("yt-dlp %s: %w", key, err)
	}

	var info ytdlpInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("decode yt-dlp output for %s: %w", key, err)
	}

	best, ok := bestVideoOnly(info.Formats)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no video-only formats", ErrNoStream, key)
	}
	return &models.StreamDescriptor{
		URL:       best.URL,
		Bitrate:   formatBitrate(best),
		Container: best.Ext,
	}, nil
}

func (y *YouTube) binary() (string, error) {
	if y.ytdlpPath != "" {
		return y.ytdlpPath, nil
	}
	for _, candidate := range []string{"/usr/local/bin/yt-dlp", "yt-dlp"} {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("yt-dlp not found in system")
}

func bestVideoOnly(formats []ytdlpFormat) (ytdlpFormat, bool) {
	var (
		best  ytdlpFormat
		found bool
	)
	for _, f := range formats {
		if !isVideoOnly(f) {
			continue
		}
		if !found || f.Height > best.Height || (f.Height == best.Height && formatBitrate(f) > formatBitrate(best)) {
			best = f
			found = true
		}
	}
	return best, found
}

func isVideoOnly(f ytdlpFormat) bool {
	if f.URL == "" {
		return false
	}
	if f.VCodec == "" || f.VCodec == "none" || f.ACodec != "none" {
		return false
	}
	// Manifest-based formats need a segment downloader.
	switch f.Protocol {
	case "", "http", "https":
		return true
	}
	return false
}

func formatBitrate(f ytdlpFormat) int64 {
	kbps := f.TBR
	if kbps <= 0 {
		kbps = f.VBR
	}
	return int64(kbps * 1000)
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}
