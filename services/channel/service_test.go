package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailerreel/models"
	"trailerreel/services/catalog"
	"trailerreel/services/metadata"
)

type fakeFetcher struct {
	mu     sync.Mutex
	movies map[models.Category][]models.CatalogMovie
	err    error
	calls  int
	limits []int
	starts []*int
}

func (f *fakeFetcher) FetchCategory(_ context.Context, category models.Category, startIndex *int, itemLimit int) ([]models.CatalogMovie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.limits = append(f.limits, itemLimit)
	f.starts = append(f.starts, startIndex)
	if f.err != nil {
		return nil, f.err
	}
	return f.movies[category], nil
}

type fakeVideos struct {
	videos map[int][]models.CatalogVideo
	fail   map[int]bool
	calls  atomic.Int32
}

func (f *fakeVideos) MovieVideos(_ context.Context, movieID int) (*models.MovieVideos, error) {
	f.calls.Add(1)
	if f.fail[movieID] {
		return nil, fmt.Errorf("movie %d: %w", movieID, catalog.ErrUpstream)
	}
	return &models.MovieVideos{ID: movieID, Results: f.videos[movieID]}, nil
}

type fakeResolver struct {
	streams map[string]*models.StreamDescriptor
}

func (f *fakeResolver) Resolve(_ context.Context, _ string, key string) (*models.StreamDescriptor, bool) {
	s, ok := f.streams[key]
	return s, ok
}

func trailer(id, key string) models.CatalogVideo {
	return models.CatalogVideo{ID: id, Name: "Trailer " + id, Site: "YouTube", Key: key, Type: "Trailer"}
}

func newTestService(fetcher *fakeFetcher, videos *fakeVideos, resolver *fakeResolver, categories ...models.Category) (*Service, *metadata.Cache) {
	cache := metadata.NewCache(time.Hour, time.Minute)
	builder := NewBuilder(cache, "")
	if resolver == nil {
		resolver = &fakeResolver{}
	}
	return NewService(fetcher, videos, builder, cache, resolver, Options{
		Categories:           categories,
		ItemLimit:            20,
		MaxConcurrentLookups: 4,
	}), cache
}

func TestItemsRootListsEnabledCategories(t *testing.T) {
	svc, _ := newTestService(&fakeFetcher{}, &fakeVideos{}, nil, models.CategoryUpcoming, models.CategoryPopular)

	res, err := svc.Items(context.Background(), models.ChannelQuery{})
	require.NoError(t, err)
	require.Equal(t, 2, res.TotalCount)
	assert.Equal(t, "upcoming", res.Items[0].ID)
	assert.Equal(t, "Popular", res.Items[1].Name)
	assert.True(t, res.Items[1].IsFolder)
}

func TestItemsCategoryPageIsCached(t *testing.T) {
	fetcher := &fakeFetcher{movies: map[models.Category][]models.CatalogMovie{
		models.CategoryUpcoming: {{ID: 1, Title: "One"}, {ID: 2, Title: "Two"}},
	}}
	svc, cache := newTestService(fetcher, &fakeVideos{}, nil, models.CategoryUpcoming)

	limit := 5
	q := models.ChannelQuery{FolderID: "upcoming", Limit: &limit}
	res, err := svc.Items(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalCount)

	again, err := svc.Items(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, res, again)
	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, []int{5}, fetcher.limits)

	tt, ok := cache.TrailerType(2)
	require.True(t, ok)
	assert.Equal(t, models.TrailerTypeComingSoonToTheaters, tt)
}

func TestItemsMovieFolderListsAllVideos(t *testing.T) {
	videos := &fakeVideos{videos: map[int][]models.CatalogVideo{
		7: {{ID: "c", Name: "Clip", Type: "Clip"}, trailer("t", "k")},
	}}
	svc, _ := newTestService(&fakeFetcher{}, videos, nil, models.CategoryUpcoming)

	res, err := svc.Items(context.Background(), models.ChannelQuery{FolderID: "7"})
	require.NoError(t, err)
	require.Equal(t, 2, res.TotalCount)
	assert.Equal(t, "c", res.Items[0].ID)
}

func TestItemsUnknownFolderIsEmpty(t *testing.T) {
	fetcher := &fakeFetcher{}
	svc, _ := newTestService(fetcher, &fakeVideos{}, nil, models.CategoryUpcoming)

	for _, folder := range []string{"bogus", "-3", "toprated"} {
		res, err := svc.Items(context.Background(), models.ChannelQuery{FolderID: folder})
		require.NoError(t, err, folder)
		assert.Empty(t, res.Items, folder)
	}
	assert.Zero(t, fetcher.calls)
}

func TestItemsPropagatesUpstreamErrors(t *testing.T) {
	fetcher := &fakeFetcher{err: fmt.Errorf("boom: %w", catalog.ErrUpstream)}
	svc, _ := newTestService(fetcher, &fakeVideos{}, nil, models.CategoryUpcoming)

	_, err := svc.Items(context.Background(), models.ChannelQuery{FolderID: "upcoming"})
	require.Error(t, err)
	assert.True(t, IsUpstreamError(err))
}

func TestAllItemsOrderDedupAndFailureTolerance(t *testing.T) {
	fetcher := &fakeFetcher{movies: map[models.Category][]models.CatalogMovie{
		models.CategoryUpcoming: {{ID: 1, Title: "One"}, {ID: 2, Title: "Two"}},
		models.CategoryPopular:  {{ID: 2, Title: "Two"}, {ID: 3, Title: "Three"}, {ID: 4, Title: "Four"}},
	}}
	videos := &fakeVideos{
		videos: map[int][]models.CatalogVideo{
			1: {trailer("a", "ka")},
			2: {{ID: "tz", Type: "Teaser"}, trailer("b", "kb")},
			3: {trailer("c", "kc")},
			4: {{ID: "clip", Type: "Clip"}},
		},
		fail: map[int]bool{3: true},
	}
	svc, _ := newTestService(fetcher, videos, nil, models.CategoryUpcoming, models.CategoryPopular)

	entries, err := svc.AllItems(context.Background())
	require.NoError(t, err)

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"a", "b"}, ids)
	assert.Equal(t, []models.TrailerType{models.TrailerTypeComingSoonToTheaters}, entries[1].TrailerTypes)
	assert.Equal(t, int32(4), videos.calls.Load())
}

func TestAllItemsIsPinnedUntilRefresh(t *testing.T) {
	fetcher := &fakeFetcher{movies: map[models.Category][]models.CatalogMovie{
		models.CategoryTopRated: {{ID: 1, Title: "One"}},
	}}
	videos := &fakeVideos{videos: map[int][]models.CatalogVideo{1: {trailer("a", "ka")}}}
	svc, _ := newTestService(fetcher, videos, nil, models.CategoryTopRated)

	_, err := svc.AllItems(context.Background())
	require.NoError(t, err)
	_, err = svc.AllItems(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)

	fetcher.movies[models.CategoryTopRated] = append(fetcher.movies[models.CategoryTopRated], models.CatalogMovie{ID: 2})
	videos.videos[2] = []models.CatalogVideo{trailer("b", "kb")}

	entries, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, 2, fetcher.calls)
	assert.Equal(t, []models.TrailerType{models.TrailerTypeArchive}, entries[0].TrailerTypes)
}

func TestAllItemsCategoryFailureAborts(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("down")}
	svc, cache := newTestService(fetcher, &fakeVideos{}, nil, models.CategoryUpcoming, models.CategoryNowPlaying)

	_, err := svc.AllItems(context.Background())
	require.Error(t, err)
	_, ok := cache.AllTrailers()
	assert.False(t, ok)
}

func TestMediaSources(t *testing.T) {
	fetcher := &fakeFetcher{movies: map[models.Category][]models.CatalogMovie{
		models.CategoryUpcoming: {{ID: 1, Title: "One"}, {ID: 2, Title: "Two"}},
	}}
	videos := &fakeVideos{videos: map[int][]models.CatalogVideo{
		1: {trailer("a", "ka")},
		2: {trailer("b", "kb")},
	}}
	resolver := &fakeResolver{streams: map[string]*models.StreamDescriptor{
		"ka": {URL: "https://cdn.example/a", Bitrate: 2_500_000, Container: "mp4"},
	}}
	svc, _ := newTestService(fetcher, videos, resolver, models.CategoryUpcoming)
	_, err := svc.AllItems(context.Background())
	require.NoError(t, err)

	sources, err := svc.MediaSources(context.Background(), "a")
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "https://cdn.example/a", sources[0].Path)
	assert.Equal(t, "http", sources[0].Protocol)
	assert.True(t, sources[0].IsRemote)
	assert.Equal(t, int64(2_500_000), sources[0].Bitrate)

	sources, err = svc.MediaSources(context.Background(), "b")
	require.NoError(t, err)
	assert.Empty(t, sources)

	sources, err = svc.MediaSources(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, sources)
}
