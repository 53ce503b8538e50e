package assess

import (
	"context"
	"log"
	"time"
)

// SummaryCache is the cache surface the cached enhancer needs. Implemented
// by the main cache's assessment helpers.
type SummaryCache interface {
	SetAssessment(contentHash string, assessment interface{}, ttl time.Duration) error
	GetAssessment(contentHash string, result interface{}) (bool, error)
	IsAssessmentCached(contentHash string) bool
}

// CachedSummaryEnhancer wraps a SummaryEnhancer with content-based caching
type CachedSummaryEnhancer struct {
	enhancer SummaryEnhancer
	cache    SummaryCache
	hasher   *ContentHasher
	ttl      time.Duration
}

// NewCachedSummaryEnhancer creates an enhancer that dedups identical
// assessment inputs
func NewCachedSummaryEnhancer(enhancer SummaryEnhancer, cache SummaryCache, ttl time.Duration) *CachedSummaryEnhancer {
	return &CachedSummaryEnhancer{
		enhancer: enhancer,
		cache:    cache,
		hasher:   NewContentHasher(),
		ttl:      ttl,
	}
}

// Summarize checks the cache, generates on miss, and caches the result
func (c *CachedSummaryEnhancer) Summarize(ctx context.Context, input Input) (Summary, error) {
	contentHash := c.hasher.HashInput(input)

	var cached Summary
	if found, err := c.cache.GetAssessment(contentHash, &cached); err == nil && found {
		return cached, nil
	}

	summary, err := c.enhancer.Summarize(ctx, input)
	if err != nil {
		return summary, err
	}

	if err := c.cache.SetAssessment(contentHash, summary, c.ttl); err != nil {
		// A cache write failure costs a regeneration later, nothing more
		log.Printf("Failed to cache assessment %s: %v", contentHash[:8], err)
	}

	return summary, nil
}

// IsCached checks whether an input would be served from cache
func (c *CachedSummaryEnhancer) IsCached(input Input) bool {
	return c.cache.IsAssessmentCached(c.hasher.HashInput(input))
}

// HealthCheck delegates to the underlying enhancer
func (c *CachedSummaryEnhancer) HealthCheck(ctx context.Context) error {
	return c.enhancer.HealthCheck(ctx)
}
