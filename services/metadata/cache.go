package metadata

import (
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"trailerreel/models"
)

// DefaultTTL is the lifetime of per-movie and per-video entries.
const DefaultTTL = 24 * time.Hour

// NoExpiration keeps an entry for the lifetime of the process.
const NoExpiration = gocache.NoExpiration

type keyKind uint8

const (
	kindMovieItem keyKind = iota + 1
	kindPoster
	kindTrailerType
	kindVideo
	kindFolder
	kindAllTrailers
)

// Key addresses one cache entry. Keys can only be built through the
// constructors below, so a poster lookup can never collide with a video lookup.
type Key struct {
	kind keyKind
	id   string
}

func MovieItemKey(movieID int) Key   { return Key{kind: kindMovieItem, id: strconv.Itoa(movieID)} }
func PosterKey(movieID int) Key      { return Key{kind: kindPoster, id: strconv.Itoa(movieID)} }
func TrailerTypeKey(movieID int) Key { return Key{kind: kindTrailerType, id: strconv.Itoa(movieID)} }
func VideoKey(videoID string) Key    { return Key{kind: kindVideo, id: videoID} }
func AllTrailersKey() Key            { return Key{kind: kindAllTrailers} }

// FolderKey addresses one cached page of a channel folder.
func FolderKey(folderID string, startIndex, limit int) Key {
	return Key{kind: kindFolder, id: folderID + ":" + strconv.Itoa(startIndex) + ":" + strconv.Itoa(limit)}
}

// String renders the key the way it shows up in logs.
func (k Key) String() string {
	switch k.kind {
	case kindMovieItem:
		return k.id + "-item"
	case kindPoster:
		return k.id + "-poster"
	case kindTrailerType:
		return k.id + "-trailer"
	case kindVideo:
		return k.id + "-video"
	case kindFolder:
		return k.id
	case kindAllTrailers:
		return "all-trailer"
	}
	return ""
}

// Cache is the process-wide metadata store shared by the channel builder and the
// reconciler. Entries expire individually; an expired or unknown key is a miss.
type Cache struct {
	store *gocache.Cache
	ttl   time.Duration
}

// NewCache creates a cache whose entries live for ttl unless set otherwise.
// cleanupInterval controls how often expired entries are swept from memory.
func NewCache(ttl, cleanupInterval time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		store: gocache.New(ttl, cleanupInterval),
		ttl:   ttl,
	}
}

// TTL is the default entry lifetime.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Set stores value under key for ttl. A zero ttl uses the cache default and
// NoExpiration pins the entry.
func (c *Cache) Set(key Key, value any, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.ttl
	}
	c.store.Set(key.String(), value, ttl)
}

// Get returns the value stored under key.
func (c *Cache) Get(key Key) (any, bool) {
	return c.store.Get(key.String())
}

// Delete drops a single entry.
func (c *Cache) Delete(key Key) {
	c.store.Delete(key.String())
}

// Flush drops everything, e.g. after catalog credentials change.
func (c *Cache) Flush() {
	c.store.Flush()
}

// Len reports the number of entries, including expired ones not yet swept.
func (c *Cache) Len() int {
	return c.store.ItemCount()
}

func (c *Cache) SetMovie(movie models.CatalogMovie) {
	c.Set(MovieItemKey(movie.ID), movie, c.ttl)
}

func (c *Cache) Movie(movieID int) (models.CatalogMovie, bool) {
	return lookup[models.CatalogMovie](c, MovieItemKey(movieID))
}

func (c *Cache) SetPoster(movieID int, url string) {
	c.Set(PosterKey(movieID), url, c.ttl)
}

func (c *Cache) Poster(movieID int) (string, bool) {
	return lookup[string](c, PosterKey(movieID))
}

func (c *Cache) SetTrailerType(movieID int, trailerType models.TrailerType) {
	c.Set(TrailerTypeKey(movieID), trailerType, c.ttl)
}

func (c *Cache) TrailerType(movieID int) (models.TrailerType, bool) {
	return lookup[models.TrailerType](c, TrailerTypeKey(movieID))
}

func (c *Cache) SetVideo(video models.CatalogVideo) {
	c.Set(VideoKey(video.ID), video, c.ttl)
}

// Video returns the descriptor cached when the video was listed. Playback and
// downloads can only be resolved for videos present here.
func (c *Cache) Video(videoID string) (models.CatalogVideo, bool) {
	return lookup[models.CatalogVideo](c, VideoKey(videoID))
}

func (c *Cache) SetFolder(folderID string, startIndex, limit int, result models.ChannelItemResult) {
	c.Set(FolderKey(folderID, startIndex, limit), result, c.ttl)
}

func (c *Cache) Folder(folderID string, startIndex, limit int) (models.ChannelItemResult, bool) {
	return lookup[models.ChannelItemResult](c, FolderKey(folderID, startIndex, limit))
}

// SetAllTrailers pins the cross-category trailer listing. It is expensive to
// rebuild, so it is kept until explicitly dropped.
func (c *Cache) SetAllTrailers(entries []models.ChannelEntry) {
	c.Set(AllTrailersKey(), entries, NoExpiration)
}

func (c *Cache) AllTrailers() ([]models.ChannelEntry, bool) {
	return lookup[[]models.ChannelEntry](c, AllTrailersKey())
}

func (c *Cache) DropAllTrailers() {
	c.Delete(AllTrailersKey())
}

func lookup[T any](c *Cache, key Key) (T, bool) {
	var zero T
	raw, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	v, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return v, true
}
