package intros

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"

	"trailerreel/internal/metrics"
	"trailerreel/models"
	"trailerreel/services/channel"
	"trailerreel/services/library"
	"trailerreel/services/metadata"
	"trailerreel/services/streams"
)

// Lister rebuilds the cross-category trailer listing from the catalog.
type Lister interface {
	Refresh(ctx context.Context) ([]models.ChannelEntry, error)
}

// VideoLookup finds the descriptor cached for a listed video.
type VideoLookup interface {
	Video(videoID string) (models.CatalogVideo, bool)
}

// StreamResolver turns a video descriptor into a playable stream.
type StreamResolver interface {
	Resolve(ctx context.Context, site, key string) (*models.StreamDescriptor, bool)
}

// Downloader fetches a stream into a local file.
type Downloader interface {
	Download(ctx context.Context, stream *models.StreamDescriptor, dest string) error
}

//go:generate mockgen -destination=mock_library_test.go -package=intros . Library

// Library is the host item store kept in lockstep with the cache directory.
type Library interface {
	Create(ctx context.Context, item library.Item) error
	Get(ctx context.Context, id uuid.UUID) (*library.Item, error)
	Delete(ctx context.Context, id uuid.UUID, deleteFile bool) error
	List(ctx context.Context) ([]library.Item, error)
}

var (
	_ Lister         = (*channel.Service)(nil)
	_ VideoLookup    = (*metadata.Cache)(nil)
	_ StreamResolver = (*streams.Resolver)(nil)
	_ Downloader     = (*FFmpegDownloader)(nil)
	_ Library        = (*library.Store)(nil)
)

// ReconcilerOptions configures a Reconciler.
type ReconcilerOptions struct {
	CacheDir string
	// MarkFailedDownloadsCached registers an item even when its download
	// failed, so a dead link is not retried on every listing.
	MarkFailedDownloadsCached bool
	// Timeout bounds a whole pass. Zero means no limit.
	Timeout time.Duration
}

// Reconciler aligns the trailer cache directory and the host library with the
// current catalog listing.
type Reconciler struct {
	lister     Lister
	videos     VideoLookup
	resolver   StreamResolver
	downloader Downloader
	library    Library
	fs         afero.Fs
	opts       ReconcilerOptions

	group singleflight.Group
}

func NewReconciler(lister Lister, videos VideoLookup, resolver StreamResolver, downloader Downloader, lib Library, fsys afero.Fs, opts ReconcilerOptions) *Reconciler {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Reconciler{
		lister:     lister,
		videos:     videos,
		resolver:   resolver,
		downloader: downloader,
		library:    lib,
		fs:         fsys,
		opts:       opts,
	}
}

// Reconcile runs one pass. Concurrent callers share the pass already in flight.
// The pass is detached from the caller that started it, so a caller going away
// only stops that caller from waiting.
func (r *Reconciler) Reconcile(ctx context.Context) (*models.ReconcileResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := r.group.DoChan("reconcile", func() (any, error) {
		passCtx := context.WithoutCancel(ctx)
		if r.opts.Timeout > 0 {
			var cancel context.CancelFunc
			passCtx, cancel = context.WithTimeout(passCtx, r.opts.Timeout)
			defer cancel()
		}
		return r.reconcile(passCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.ReconcileResult), nil
	}
}

func (r *Reconciler) reconcile(ctx context.Context) (*models.ReconcileResult, error) {
	result := &models.ReconcileResult{
		RunID:     uuid.NewString(),
		CacheIDs:  []string{},
		StartedAt: time.Now().UTC(),
	}
	logf := func(format string, args ...any) {
		log.Printf("[reconcile] "+result.RunID[:8]+" "+format, args...)
	}

	err := r.run(ctx, result, logf)
	result.Duration = time.Since(result.StartedAt)
	metrics.ReconcileDuration.Observe(result.Duration.Seconds())
	if err != nil {
		metrics.ReconcileRuns.WithLabelValues("error").Inc()
		logf("pass failed after %s: %v", result.Duration.Round(time.Millisecond), err)
		return nil, err
	}

	metrics.ReconcileRuns.WithLabelValues("ok").Inc()
	metrics.ReconcileItems.WithLabelValues("downloaded").Add(float64(result.Downloaded))
	metrics.ReconcileItems.WithLabelValues("deleted").Add(float64(result.Deleted))
	metrics.ReconcileItems.WithLabelValues("failed").Add(float64(result.Failed))
	metrics.ReconcileItems.WithLabelValues("skipped").Add(float64(result.Skipped))
	metrics.CachedTrailers.Set(float64(len(result.CacheIDs)))
	logf("pass complete: %d cached, %d downloaded, %d deleted, %d failed, %d skipped in %s",
		len(result.CacheIDs), result.Downloaded, result.Deleted, result.Failed, result.Skipped,
		result.Duration.Round(time.Millisecond))
	return result, nil
}

func (r *Reconciler) run(ctx context.Context, result *models.ReconcileResult, logf func(string, ...any)) error {
	dir := r.opts.CacheDir
	if err := r.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	entries, err := r.lister.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("list trailers: %w", err)
	}

	onDisk, err := r.existing(dir)
	if err != nil {
		return err
	}

	fresh := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		fresh[entry.ID] = struct{}{}
	}

	for id, path := range onDisk {
		if _, ok := fresh[id]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.evict(ctx, id, path, logf) {
			result.Deleted++
		}
	}

	// Items registered after a failed download have no file to walk.
	items, err := r.library.List(ctx)
	if err != nil {
		return fmt.Errorf("list library items: %w", err)
	}
	for _, item := range items {
		if _, ok := fresh[item.CacheID]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.library.Delete(ctx, item.ID, true); err != nil {
			if !errors.Is(err, library.ErrNotFound) {
				logf("failed to delete library item %s (%s): %v", item.ID, item.CacheID, err)
			}
			continue
		}
		logf("evicted %s (no cached file)", item.CacheID)
		result.Deleted++
	}

	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if _, dup := seen[entry.ID]; dup {
			continue
		}
		seen[entry.ID] = struct{}{}

		if _, ok := onDisk[entry.ID]; ok {
			result.CacheIDs = append(result.CacheIDs, entry.ID)
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		cached, outcome := r.fetch(ctx, entry, dir, logf)
		switch outcome {
		case outcomeDownloaded:
			result.Downloaded++
		case outcomeFailed:
			result.Failed++
		case outcomeSkipped:
			result.Skipped++
		}
		if cached {
			result.CacheIDs = append(result.CacheIDs, entry.ID)
		}
	}
	return nil
}

// existing maps the stem of every regular file in dir to its path.
func (r *Reconciler) existing(dir string) (map[string]string, error) {
	infos, err := afero.ReadDir(r.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("read cache dir: %w", err)
	}
	files := make(map[string]string, len(infos))
	for _, info := range infos {
		if !info.Mode().IsRegular() {
			continue
		}
		name := info.Name()
		files[strings.TrimSuffix(name, filepath.Ext(name))] = filepath.Join(dir, name)
	}
	return files, nil
}

func (r *Reconciler) evict(ctx context.Context, id, path string, logf func(string, ...any)) bool {
	itemID := library.ItemID(id)
	_, err := r.library.Get(ctx, itemID)
	switch {
	case err == nil:
		if err := r.library.Delete(ctx, itemID, true); err != nil {
			logf("failed to delete library item %s (%s): %v", itemID, id, err)
			return false
		}
	case errors.Is(err, library.ErrNotFound):
		if err := r.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logf("failed to remove stray file %s: %v", path, err)
			return false
		}
	default:
		logf("failed to look up library item for %s: %v", id, err)
		return false
	}
	logf("evicted %s", id)
	return true
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeDownloaded
	outcomeFailed
)

// fetch downloads one missing entry and registers it with the library. The
// bool reports whether the id counts as cached afterwards.
func (r *Reconciler) fetch(ctx context.Context, entry models.ChannelEntry, dir string, logf func(string, ...any)) (bool, outcome) {
	video, ok := r.videos.Video(entry.ID)
	if !ok {
		logf("no cached descriptor for %s, skipping", entry.ID)
		return false, outcomeSkipped
	}
	stream, ok := r.resolver.Resolve(ctx, video.Site, video.Key)
	if !ok {
		logf("no stream for %s (%s/%s), skipping", entry.ID, video.Site, video.Key)
		return false, outcomeSkipped
	}

	dest := filepath.Join(dir, entry.ID+".mp4")
	result := outcomeDownloaded
	if err := r.downloader.Download(ctx, stream, dest); err != nil {
		logf("download of %s failed: %v", entry.ID, err)
		if !r.opts.MarkFailedDownloadsCached {
			return false, outcomeFailed
		}
		result = outcomeFailed
	}

	item := library.NewItem(entry.ID, entry.Name, dest)
	if err := r.library.Create(ctx, item); err != nil {
		logf("failed to register %s: %v", entry.ID, err)
		if result == outcomeDownloaded {
			if rmErr := r.fs.Remove(dest); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				logf("failed to remove unregistered file %s: %v", dest, rmErr)
			}
		}
		return false, outcomeFailed
	}
	return true, result
}
