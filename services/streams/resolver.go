package streams

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"trailerreel/internal/metrics"
	"trailerreel/models"
)

var (
	ErrUnsupportedSite = errors.New("unsupported video site")
	ErrNoStream        = errors.New("no playable stream found")
)

// SiteResolver turns a site-specific video key into a playable stream.
type SiteResolver interface {
	BestStream(ctx context.Context, key string) (*models.StreamDescriptor, error)
}

// Resolver dispatches on the hosting site name.
type Resolver struct {
	mu    sync.RWMutex
	sites map[string]SiteResolver
	memo  *expirable.LRU[string, models.StreamDescriptor]
}

// NewResolver creates a resolver that remembers successful resolutions for
// memoTTL. Hosted stream urls are signed and short-lived, so keep it well under
// the upstream expiry.
func NewResolver(memoSize int, memoTTL time.Duration) *Resolver {
	if memoSize <= 0 {
		memoSize = 512
	}
	if memoTTL <= 0 {
		memoTTL = 30 * time.Minute
	}
	return &Resolver{
		sites: make(map[string]SiteResolver),
		memo:  expirable.NewLRU[string, models.StreamDescriptor](memoSize, nil, memoTTL),
	}
}

// Register adds a resolver for a site. Site names are matched case-insensitively.
func (r *Resolver) Register(site string, sr SiteResolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sites[normalizeSite(site)] = sr
}

// ResolveErr resolves a stream and reports why it could not be resolved.
func (r *Resolver) ResolveErr(ctx context.Context, site, key string) (*models.StreamDescriptor, error) {
	name := normalizeSite(site)
	r.mu.RLock()
	sr, ok := r.sites[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSite, site)
	}

	memoKey := name + "/" + key
	if cached, ok := r.memo.Get(memoKey); ok {
		d := cached
		return &d, nil
	}

	stream, err := sr.BestStream(ctx, key)
	if err != nil {
		return nil, err
	}
	if stream == nil || stream.URL == "" {
		return nil, ErrNoStream
	}
	r.memo.Add(memoKey, *stream)
	return stream, nil
}

// Resolve never fails: any problem resolving a stream means the trailer is
// simply unavailable.
func (r *Resolver) Resolve(ctx context.Context, site, key string) (*models.StreamDescriptor, bool) {
	stream, err := r.ResolveErr(ctx, site, key)
	if err != nil {
		if errors.Is(err, ErrUnsupportedSite) {
			metrics.StreamResolutions.WithLabelValues(normalizeSite(site), "unsupported").Inc()
		} else {
			metrics.StreamResolutions.WithLabelValues(normalizeSite(site), "failed").Inc()
			log.Printf("[streams] resolve %s/%s failed: %v", site, key, err)
		}
		return nil, false
	}
	metrics.StreamResolutions.WithLabelValues(normalizeSite(site), "ok").Inc()
	return stream, true
}

func normalizeSite(site string) string {
	return strings.ToLower(strings.TrimSpace(site))
}
