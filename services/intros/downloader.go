package intros

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"

	"trailerreel/models"
)

// ErrNotVideo is returned when a finished download does not sniff as video.
var ErrNotVideo = errors.New("downloaded file is not a video")

// CommandRunner executes an external command and returns its stderr on failure.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// FFmpegDownloader copies a remote stream into a local mp4 without re-encoding.
type FFmpegDownloader struct {
	ffmpegPath string
	timeout    time.Duration
	fs         afero.Fs
	run        CommandRunner
}

func NewFFmpegDownloader(ffmpegPath string, timeout time.Duration, fsys afero.Fs) *FFmpegDownloader {
	if strings.TrimSpace(ffmpegPath) == "" {
		ffmpegPath = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &FFmpegDownloader{
		ffmpegPath: ffmpegPath,
		timeout:    timeout,
		fs:         fsys,
		run:        execCommand,
	}
}

// WithRunner swaps the process runner, used by tests.
func (d *FFmpegDownloader) WithRunner(run CommandRunner) *FFmpegDownloader {
	d.run = run
	return d
}

// Download writes the stream to dest. Output goes to a .part file first and is
// only renamed into place once it sniffs as video.
func (d *FFmpegDownloader) Download(ctx context.Context, stream *models.StreamDescriptor, dest string) error {
	if stream == nil || stream.URL == "" {
		return fmt.Errorf("download %s: empty stream url", dest)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	partial := dest + ".part"
	started := time.Now()

	err := d.run(ctx, d.ffmpegPath,
		"-y",
		"-nostdin",
		"-loglevel", "error",
		"-i", stream.URL,
		"-c", "copy",
		"-f", "mp4",
		partial,
	)
	if err != nil {
		d.discard(partial)
		return fmt.Errorf("download %s: %w", dest, err)
	}

	if err := d.checkVideo(partial); err != nil {
		d.discard(partial)
		return fmt.Errorf("download %s: %w", dest, err)
	}

	if err := d.fs.Rename(partial, dest); err != nil {
		d.discard(partial)
		return fmt.Errorf("download %s: rename: %w", dest, err)
	}

	if info, err := d.fs.Stat(dest); err == nil {
		log.Printf("[downloader] saved %s (%d bytes in %s)", dest, info.Size(), time.Since(started).Round(time.Millisecond))
	}
	return nil
}

func (d *FFmpegDownloader) checkVideo(path string) error {
	f, err := d.fs.Open(path)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer f.Close()

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return fmt.Errorf("sniff output: %w", err)
	}
	for m := mtype; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "video/") {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotVideo, mtype.String())
}

func (d *FFmpegDownloader) discard(path string) {
	if err := d.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[downloader] failed to remove partial %s: %v", path, err)
	}
}

func execCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return err
		}
		return fmt.Errorf("%w: %s", err, msg)
	}
	return nil
}
