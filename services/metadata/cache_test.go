package metadata

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailerreel/models"
)

func TestKeyString(t *testing.T) {
	tests := map[string]Key{
		"42-item":      MovieItemKey(42),
		"42-poster":    PosterKey(42),
		"42-trailer":   TrailerTypeKey(42),
		"abc-video":    VideoKey("abc"),
		"all-trailer":  AllTrailersKey(),
		"popular:0:20": FolderKey("popular", 0, 20),
	}
	for expect, key := range tests {
		if got := key.String(); got != expect {
			t.Fatalf("key.String() = %q, want %q", got, expect)
		}
	}
}

func TestCacheKindsDoNotCollide(t *testing.T) {
	c := NewCache(time.Hour, time.Minute)
	c.SetPoster(7, "https://img/7.jpg")
	c.SetTrailerType(7, models.TrailerTypeComingSoonToTheaters)
	c.SetMovie(models.CatalogMovie{ID: 7, Title: "Seven"})

	poster, ok := c.Poster(7)
	require.True(t, ok)
	assert.Equal(t, "https://img/7.jpg", poster)

	tt, ok := c.TrailerType(7)
	require.True(t, ok)
	assert.Equal(t, models.TrailerTypeComingSoonToTheaters, tt)

	movie, ok := c.Movie(7)
	require.True(t, ok)
	assert.Equal(t, "Seven", movie.Title)

	_, ok = c.Video("7")
	assert.False(t, ok)
}

func TestCacheExpiryIsAMiss(t *testing.T) {
	c := NewCache(20*time.Millisecond, time.Minute)
	c.SetVideo(models.CatalogVideo{ID: "v1", Site: "YouTube", Key: "abc"})

	got, ok := c.Video("v1")
	require.True(t, ok)
	assert.Equal(t, "abc", got.Key)

	time.Sleep(60 * time.Millisecond)

	_, ok = c.Video("v1")
	assert.False(t, ok, "expired entry must read as a miss")
}

func TestAllTrailersOutlivesDefaultTTL(t *testing.T) {
	c := NewCache(20*time.Millisecond, time.Minute)
	c.SetAllTrailers([]models.ChannelEntry{{ID: "v1"}})

	time.Sleep(60 * time.Millisecond)

	entries, ok := c.AllTrailers()
	require.True(t, ok)
	require.Len(t, entries, 1)

	c.DropAllTrailers()
	_, ok = c.AllTrailers()
	assert.False(t, ok)
}

func TestCacheWrongTypeIsAMiss(t *testing.T) {
	c := NewCache(time.Hour, time.Minute)
	c.Set(PosterKey(1), 12345, 0)

	_, ok := c.Poster(1)
	assert.False(t, ok)
}

func TestCacheConcurrentWriters(t *testing.T) {
	c := NewCache(time.Hour, time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c.SetPoster(id, "p")
			c.SetTrailerType(id, models.TrailerTypeArchive)
			_, _ = c.Poster(id)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 64, c.Len())

	c.Flush()
	assert.Equal(t, 0, c.Len())
}
