package models

import "strings"

// CatalogMovie is the movie summary returned by the catalog list endpoints.
type CatalogMovie struct {
	ID         int    `json:"id"`
	Title      string `json:"title"`
	PosterPath string `json:"poster_path,omitempty"`
}

// CatalogVideo is one video attached to a catalog movie (trailer, teaser, clip...).
type CatalogVideo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Site string `json:"site"`
	Key  string `json:"key"`
	Type string `json:"type"`
}

// IsTrailer reports whether the upstream classified the video as a trailer.
func (v CatalogVideo) IsTrailer() bool {
	return strings.EqualFold(strings.TrimSpace(v.Type), "trailer")
}

// MoviePage is one page of a category listing.
type MoviePage struct {
	Page         int            `json:"page"`
	Results      []CatalogMovie `json:"results"`
	TotalPages   int            `json:"total_pages"`
	TotalResults int            `json:"total_results"`
}

// MovieVideos is the video list for a single movie.
type MovieVideos struct {
	ID      int            `json:"id"`
	Results []CatalogVideo `json:"results"`
}

// TrailerType tags an intro with the release window it belongs to.
type TrailerType string

const (
	TrailerTypeComingSoonToTheaters TrailerType = "ComingSoonToTheaters"
	TrailerTypeArchive              TrailerType = "Archive"
)

// DefaultTrailerType is used when no category tag has been cached for a movie.
const DefaultTrailerType = TrailerTypeArchive

// Category is one of the curated catalog listings.
type Category string

const (
	CategoryUpcoming   Category = "upcoming"
	CategoryNowPlaying Category = "nowplaying"
	CategoryPopular    Category = "popular"
	CategoryTopRated   Category = "toprated"
)

// AllCategories lists the categories in channel folder order.
var AllCategories = []Category{
	CategoryUpcoming,
	CategoryNowPlaying,
	CategoryPopular,
	CategoryTopRated,
}

// ParseCategory maps a folder id onto a category. The second return is false for
// anything that is not one of the four category folders.
func ParseCategory(folderID string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(folderID)))
	for _, known := range AllCategories {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// FolderID is the channel folder id for the category.
func (c Category) FolderID() string {
	return string(c)
}

// Endpoint is the catalog path segment for the category listing.
func (c Category) Endpoint() string {
	switch c {
	case CategoryUpcoming:
		return "upcoming"
	case CategoryNowPlaying:
		return "now_playing"
	case CategoryPopular:
		return "popular"
	case CategoryTopRated:
		return "top_rated"
	}
	return ""
}

// DisplayName is the folder title shown when browsing.
func (c Category) DisplayName() string {
	switch c {
	case CategoryUpcoming:
		return "Upcoming"
	case CategoryNowPlaying:
		return "Now Playing"
	case CategoryPopular:
		return "Popular"
	case CategoryTopRated:
		return "Top Rated"
	}
	return ""
}

// TrailerType is the tag attached to trailers found through this category.
func (c Category) TrailerType() TrailerType {
	switch c {
	case CategoryUpcoming, CategoryNowPlaying:
		return TrailerTypeComingSoonToTheaters
	}
	return TrailerTypeArchive
}
