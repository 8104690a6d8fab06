package catalog

import (
	"context"
	"fmt"
	"log"

	"trailerreel/models"
)

// Lister is the part of the catalog client the aggregator pages through.
type Lister interface {
	ListCategory(ctx context.Context, category models.Category, language string, page int, region string) (*models.MoviePage, error)
}

var _ Lister = (*Client)(nil)

// Aggregator accumulates category pages until the upstream runs dry or the item
// limit is reached.
type Aggregator struct {
	lister   Lister
	language string
	region   string
}

func NewAggregator(lister Lister, language, region string) *Aggregator {
	return &Aggregator{lister: lister, language: language, region: region}
}

// PageNumber converts a start index into a zero-based page number.
func PageNumber(startIndex *int) int {
	if startIndex == nil || *startIndex <= 0 {
		return 0
	}
	return *startIndex / PageSize
}

// FetchCategory returns at most itemLimit movies of the category starting at the
// page containing startIndex. Pages are requested one after another and the
// cursor advances by one per request no matter how many results a page carries.
// The first failing request aborts the whole aggregation.
func (a *Aggregator) FetchCategory(ctx context.Context, category models.Category, startIndex *int, itemLimit int) ([]models.CatalogMovie, error) {
	movies := []models.CatalogMovie{}
	if itemLimit <= 0 {
		return movies, nil
	}

	page := PageNumber(startIndex)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := a.lister.ListCategory(ctx, category, a.language, page, a.region)
		if err != nil {
			log.Printf("[catalog] %s page %d failed: %v", category, page, err)
			return nil, fmt.Errorf("fetch %s page %d: %w", category, page, err)
		}
		if result == nil || len(result.Results) == 0 {
			break
		}
		movies = append(movies, result.Results...)
		if len(movies) >= itemLimit {
			break
		}
		page++
	}

	if len(movies) > itemLimit {
		movies = movies[:itemLimit]
	}
	log.Printf("[catalog] aggregated %d %s movies (limit %d)", len(movies), category, itemLimit)
	return movies, nil
}
