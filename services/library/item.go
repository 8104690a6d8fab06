package library

import (
	"crypto/md5"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mozillazg/go-unidecode"
)

// Item is a host-library record backed by one downloaded trailer file.
type Item struct {
	ID        uuid.UUID `json:"id"`
	CacheID   string    `json:"cacheId"`
	Name      string    `json:"name"`
	SortName  string    `json:"sortName"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"createdAt"`
}

// ItemID derives the stable library id for a cache id: the 16 bytes of its MD5
// digest read as a UUID.
func ItemID(cacheID string) uuid.UUID {
	return uuid.UUID(md5.Sum([]byte(cacheID)))
}

// NewItem builds the library record for a cached trailer file.
func NewItem(cacheID, name, path string) Item {
	if strings.TrimSpace(name) == "" {
		name = cacheID
	}
	return Item{
		ID:        ItemID(cacheID),
		CacheID:   cacheID,
		Name:      name,
		SortName:  SortName(name),
		Path:      path,
		CreatedAt: time.Now().UTC(),
	}
}

// SortName folds a display name to lowercase ASCII for ordering.
func SortName(name string) string {
	folded := strings.ToLower(unidecode.Unidecode(name))
	return strings.Join(strings.Fields(folded), " ")
}
