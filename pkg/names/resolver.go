package names

import (
	"context"
	"errors"
	"log"
)

// Lookuper fetches a display name from the remote service.
type Lookuper interface {
	Lookup(ctx context.Context, ownerID string) (string, error)
}

// Stats counts what the resolver did during a run.
type Stats struct {
	CacheHits int
	Lookups   int
	Failures  int
}

// Resolver maps owner ids to display names. It owns the run's Cache, loading
// it on the first request and writing it back on Flush.
type Resolver struct {
	cache  *Cache
	lookup Lookuper
	logger *log.Logger
	stats  Stats
}

// NewResolver creates a resolver. A nil logger logs through log.Default().
func NewResolver(cache *Cache, lookup Lookuper, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{
		cache:  cache,
		lookup: lookup,
		logger: logger,
	}
}

// Resolve returns the display name for an owner id, or "" when it cannot be
// resolved. Cached ids never reach the network.
func (resolver *Resolver) Resolve(ctx context.Context, ownerID string) string {
	if ownerID == "" {
		return ""
	}

	if !resolver.cache.Loaded() {
		if err := resolver.cache.Load(); err != nil {
			resolver.logger.Printf("warning: %v", err)
		}
	}

	if name, found := resolver.cache.Get(ownerID); found {
		resolver.stats.CacheHits++
		return name
	}

	if resolver.lookup == nil {
		return ""
	}

	resolver.stats.Lookups++
	name, err := resolver.lookup.Lookup(ctx, ownerID)
	if err != nil {
		resolver.stats.Failures++
		resolver.logger.Printf("warning: name lookup failed for %s: %v", ownerID, err)
		return ""
	}

	resolver.cache.Set(ownerID, name)
	return name
}

// Flush writes the cache back to disk. A cache that was never loaded, or
// whose file could not be read, is left untouched so a run cannot wipe it.
func (resolver *Resolver) Flush() error {
	if !resolver.cache.Loaded() {
		return nil
	}
	skipped, err := resolver.cache.Save()
	if errors.Is(err, ErrUnreadable) {
		resolver.logger.Printf("warning: %v", err)
		return nil
	}
	for _, ownerID := range skipped {
		resolver.logger.Printf("warning: name for %s cannot be stored in %s", ownerID, resolver.cache.Path())
	}
	return err
}

// Stats returns the counters for this run.
func (resolver *Resolver) Stats() Stats {
	return resolver.stats
}
