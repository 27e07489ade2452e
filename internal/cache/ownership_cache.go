package cache

import (
	"context"
	"log"

	"investment-platform/internal/waterfall"
)

// OwnershipCache adapts CacheService to the ledger's ownership port. Every
// failure degrades to a miss so a Redis outage never blocks a capital call
// or distribution; the ledger falls back to the database.
type OwnershipCache struct {
	cache *CacheService
}

// NewOwnershipCache wraps a CacheService for ownership lookups.
func NewOwnershipCache(cache *CacheService) *OwnershipCache {
	return &OwnershipCache{cache: cache}
}

// GetOwnership returns the cached ownership set for a structure, or a miss.
func (oc *OwnershipCache) GetOwnership(ctx context.Context, structureID string) ([]waterfall.Owner, bool) {
	var owners []waterfall.Owner
	if err := oc.cache.GetJSON(ctx, OwnershipKey(structureID), &owners); err != nil {
		return nil, false
	}
	return owners, true
}

// SetOwnership stores a structure's ownership set. Write failures are logged
// and dropped; the next read is simply a miss.
func (oc *OwnershipCache) SetOwnership(ctx context.Context, structureID string, owners []waterfall.Owner) {
	if err := oc.cache.SetJSON(ctx, OwnershipKey(structureID), owners, DefaultOwnershipTTL); err != nil {
		log.Printf("[CACHE] Failed to cache ownership for structure %s: %v", structureID, err)
	}
}

// InvalidateOwnership drops the cached set after a membership write.
func (oc *OwnershipCache) InvalidateOwnership(ctx context.Context, structureID string) {
	if err := oc.cache.Delete(ctx, OwnershipKey(structureID)); err != nil {
		log.Printf("[CACHE] Failed to invalidate ownership for structure %s: %v", structureID, err)
	}
}
