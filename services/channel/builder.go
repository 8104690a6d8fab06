package channel

import (
	"strconv"
	"strings"

	"trailerreel/models"
	"trailerreel/services/metadata"
)

const defaultImageBaseURL = "https://image.tmdb.org/t/p/original"

// Builder turns catalog movies and videos into channel entries. Every entry it
// builds leaves behind the cache records later lookups depend on: posters and
// trailer types per movie, descriptors per video.
type Builder struct {
	cache        *metadata.Cache
	imageBaseURL string
}

func NewBuilder(cache *metadata.Cache, imageBaseURL string) *Builder {
	imageBaseURL = strings.TrimRight(strings.TrimSpace(imageBaseURL), "/")
	if imageBaseURL == "" {
		imageBaseURL = defaultImageBaseURL
	}
	return &Builder{cache: cache, imageBaseURL: imageBaseURL}
}

// PosterURL makes an absolute image url from a catalog poster path.
func (b *Builder) PosterURL(posterPath string) string {
	posterPath = strings.TrimSpace(posterPath)
	if posterPath == "" {
		return ""
	}
	return b.imageBaseURL + "/" + strings.TrimLeft(posterPath, "/")
}

// CategoryListing emits one folder per movie and caches the movie summary,
// poster url and trailer type for each.
func (b *Builder) CategoryListing(movies []models.CatalogMovie, trailerType models.TrailerType) []models.ChannelEntry {
	entries := make([]models.ChannelEntry, 0, len(movies))
	for _, movie := range movies {
		poster := b.PosterURL(movie.PosterPath)

		b.cache.SetMovie(movie)
		b.cache.SetPoster(movie.ID, poster)
		b.cache.SetTrailerType(movie.ID, trailerType)

		entries = append(entries, models.ChannelEntry{
			ID:        strconv.Itoa(movie.ID),
			Name:      movie.Title,
			ImageURL:  poster,
			IsFolder:  true,
			MediaType: models.MediaTypeVideo,
		})
	}
	return entries
}

// VideoListing builds entries for one movie's videos in upstream order. In
// trailer-only mode it keeps just the first trailer and tags it for intro use.
func (b *Builder) VideoListing(movie models.CatalogMovie, videos []models.CatalogVideo, trailerOnly bool) []models.ChannelEntry {
	entries := make([]models.ChannelEntry, 0, len(videos))
	for _, video := range videos {
		if trailerOnly && !video.IsTrailer() {
			continue
		}

		poster, _ := b.cache.Poster(movie.ID)
		trailerType, ok := b.cache.TrailerType(movie.ID)
		if !ok {
			trailerType = models.DefaultTrailerType
		}

		b.cache.SetVideo(video)

		name := video.Name
		if movie.Title != "" {
			name = movie.Title + " - " + video.Name
		}
		entry := models.ChannelEntry{
			ID:        video.ID,
			Name:      name,
			ImageURL:  poster,
			MediaType: models.MediaTypeVideo,
		}
		if trailerOnly {
			entry.ExtraType = models.ExtraTypeTrailer
			entry.TrailerTypes = []models.TrailerType{trailerType}
			entry.ProviderIDs = map[string]string{models.ProviderTmdb: strconv.Itoa(movie.ID)}
		}
		entries = append(entries, entry)

		if trailerOnly {
			break
		}
	}
	return entries
}
