package channel

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/errgroup"

	"trailerreel/models"
	"trailerreel/services/catalog"
	"trailerreel/services/metadata"
	"trailerreel/services/streams"
)

type categoryFetcher interface {
	FetchCategory(ctx context.Context, category models.Category, startIndex *int, itemLimit int) ([]models.CatalogMovie, error)
}

type videoLister interface {
	MovieVideos(ctx context.Context, movieID int) (*models.MovieVideos, error)
}

type streamResolver interface {
	Resolve(ctx context.Context, site, key string) (*models.StreamDescriptor, bool)
}

var (
	_ categoryFetcher = (*catalog.Aggregator)(nil)
	_ videoLister     = (*catalog.Client)(nil)
	_ streamResolver  = (*streams.Resolver)(nil)
)

// Options carries the listing knobs read from configuration.
type Options struct {
	// Categories are the enabled listings, in folder order.
	Categories []models.Category
	// ItemLimit bounds the movies aggregated per category.
	ItemLimit int
	// MaxConcurrentLookups bounds the per-movie video fan-out.
	MaxConcurrentLookups int
}

// Service answers channel browsing requests and builds the cross-category
// trailer listing the intro reel is made from.
type Service struct {
	fetcher  categoryFetcher
	videos   videoLister
	builder  *Builder
	cache    *metadata.Cache
	resolver streamResolver
	opts     Options
}

func NewService(fetcher categoryFetcher, videos videoLister, builder *Builder, cache *metadata.Cache, resolver streamResolver, opts Options) *Service {
	if opts.MaxConcurrentLookups < 1 {
		opts.MaxConcurrentLookups = 1
	}
	return &Service{
		fetcher:  fetcher,
		videos:   videos,
		builder:  builder,
		cache:    cache,
		resolver: resolver,
		opts:     opts,
	}
}

// Items lists a folder: the category folders at the root, the movies of a
// category, or the videos of a movie. Unknown folders yield an empty listing.
func (s *Service) Items(ctx context.Context, query models.ChannelQuery) (*models.ChannelItemResult, error) {
	if query.FolderID == "" {
		return s.folders(), nil
	}

	start := 0
	if query.StartIndex != nil && *query.StartIndex > 0 {
		start = *query.StartIndex
	}
	limit := s.opts.ItemLimit
	if query.Limit != nil && *query.Limit > 0 {
		limit = *query.Limit
	}

	if cached, ok := s.cache.Folder(query.FolderID, start, limit); ok {
		return &cached, nil
	}

	var (
		result *models.ChannelItemResult
		err    error
	)
	if category, ok := models.ParseCategory(query.FolderID); ok {
		if !s.enabled(category) {
			return emptyResult(), nil
		}
		result, err = s.categoryItems(ctx, category, query.StartIndex, limit)
	} else if movieID, convErr := strconv.Atoi(query.FolderID); convErr == nil && movieID > 0 {
		result, err = s.movieItems(ctx, movieID)
	} else {
		return emptyResult(), nil
	}
	if err != nil {
		return nil, err
	}

	s.cache.SetFolder(query.FolderID, start, limit, *result)
	return result, nil
}

func (s *Service) folders() *models.ChannelItemResult {
	items := make([]models.ChannelEntry, 0, len(s.opts.Categories))
	for _, category := range s.opts.Categories {
		items = append(items, models.ChannelEntry{
			ID:        category.FolderID(),
			Name:      category.DisplayName(),
			IsFolder:  true,
			MediaType: models.MediaTypeVideo,
		})
	}
	return &models.ChannelItemResult{Items: items, TotalCount: len(items)}
}

func (s *Service) categoryItems(ctx context.Context, category models.Category, startIndex *int, limit int) (*models.ChannelItemResult, error) {
	movies, err := s.fetcher.FetchCategory(ctx, category, startIndex, limit)
	if err != nil {
		log.Printf("[channel] listing %s failed: %v", category, err)
		return nil, err
	}
	items := s.builder.CategoryListing(movies, category.TrailerType())
	return &models.ChannelItemResult{Items: items, TotalCount: len(items)}, nil
}

func (s *Service) movieItems(ctx context.Context, movieID int) (*models.ChannelItemResult, error) {
	videos, err := s.videos.MovieVideos(ctx, movieID)
	if err != nil {
		log.Printf("[channel] videos for movie %d failed: %v", movieID, err)
		return nil, err
	}
	movie, ok := s.cache.Movie(movieID)
	if !ok {
		movie = models.CatalogMovie{ID: movieID}
	}
	items := s.builder.VideoListing(movie, videos.Results, false)
	return &models.ChannelItemResult{Items: items, TotalCount: len(items)}, nil
}

// AllItems returns the first trailer of every movie across the enabled
// categories. The result is pinned in the cache until Refresh.
func (s *Service) AllItems(ctx context.Context) ([]models.ChannelEntry, error) {
	if cached, ok := s.cache.AllTrailers(); ok {
		return cached, nil
	}

	started := time.Now()
	entries, err := s.buildAll(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.SetAllTrailers(entries)
	log.Printf("[channel] built %d trailer entries across %d categories in %s",
		len(entries), len(s.opts.Categories), time.Since(started).Round(time.Millisecond))
	return entries, nil
}

// Refresh drops the pinned trailer listing and rebuilds it.
func (s *Service) Refresh(ctx context.Context) ([]models.ChannelEntry, error) {
	s.cache.DropAllTrailers()
	return s.AllItems(ctx)
}

func (s *Service) buildAll(ctx context.Context) ([]models.ChannelEntry, error) {
	perCategory := make([][]models.CatalogMovie, len(s.opts.Categories))
	g, gctx := errgroup.WithContext(ctx)
	for i, category := range s.opts.Categories {
		g.Go(func() error {
			movies, err := s.fetcher.FetchCategory(gctx, category, nil, s.opts.ItemLimit)
			if err != nil {
				return err
			}
			perCategory[i] = movies
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Printf("[channel] category aggregation failed: %v", err)
		return nil, err
	}

	// A movie listed by several categories keeps the tag of the first one.
	seen := make(map[int]struct{})
	var movies []models.CatalogMovie
	for i, category := range s.opts.Categories {
		fresh := make([]models.CatalogMovie, 0, len(perCategory[i]))
		for _, movie := range perCategory[i] {
			if _, dup := seen[movie.ID]; dup {
				continue
			}
			seen[movie.ID] = struct{}{}
			fresh = append(fresh, movie)
		}
		s.builder.CategoryListing(fresh, category.TrailerType())
		movies = append(movies, fresh...)
	}

	perMovie := make([][]models.ChannelEntry, len(movies))
	p := pool.New().WithMaxGoroutines(s.opts.MaxConcurrentLookups)
	for i, movie := range movies {
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			videos, err := s.videos.MovieVideos(ctx, movie.ID)
			if err != nil {
				log.Printf("[channel] skipping movie %d: %v", movie.ID, err)
				return
			}
			perMovie[i] = s.builder.VideoListing(movie, videos.Results, true)
		})
	}
	p.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := make([]models.ChannelEntry, 0, len(movies))
	ids := make(map[string]struct{}, len(movies))
	for _, batch := range perMovie {
		for _, entry := range batch {
			if _, dup := ids[entry.ID]; dup {
				continue
			}
			ids[entry.ID] = struct{}{}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// StreamFor resolves the playable stream of a listed video. Videos that were
// never listed (or whose descriptor expired) have no stream.
func (s *Service) StreamFor(ctx context.Context, videoID string) (models.CatalogVideo, *models.StreamDescriptor, bool) {
	video, ok := s.cache.Video(videoID)
	if !ok {
		return models.CatalogVideo{}, nil, false
	}
	stream, ok := s.resolver.Resolve(ctx, video.Site, video.Key)
	if !ok {
		return video, nil, false
	}
	return video, stream, true
}

// MediaSources returns the playback descriptor for a video id, or nothing when
// the video is unknown or has no resolvable stream.
func (s *Service) MediaSources(ctx context.Context, id string) ([]models.MediaSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	video, stream, ok := s.StreamFor(ctx, id)
	if !ok {
		return []models.MediaSource{}, nil
	}
	return []models.MediaSource{{
		ID:              id,
		Name:            video.Name,
		Path:            stream.URL,
		TranscodingHint: video.Key,
		Protocol:        "http",
		IsRemote:        true,
		Bitrate:         stream.Bitrate,
		Container:       stream.Container,
	}}, nil
}

func (s *Service) enabled(category models.Category) bool {
	for _, c := range s.opts.Categories {
		if c == category {
			return true
		}
	}
	return false
}

func emptyResult() *models.ChannelItemResult {
	return &models.ChannelItemResult{Items: []models.ChannelEntry{}, TotalCount: 0}
}

// IsUpstreamError reports whether err came from the catalog rather than from
// cancellation.
func IsUpstreamError(err error) bool {
	return errors.Is(err, catalog.ErrUpstream) || errors.Is(err, catalog.ErrDecode) || errors.Is(err, catalog.ErrNotConfigured)
}
