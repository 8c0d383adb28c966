package utils

import (
	"context"
	"errors"
	"log"
	"time"

	"vetclinic/monitoring"
)

const HomePagePrefix = "page:home:"

func HomePageKey(date string) string {
	return HomePagePrefix + date
}

// PageCache stores rendered page contexts in Redis. A nil PageCache, or one
// without a client, never hits and ignores writes.
type PageCache struct {
	redis RedisClient
	ttl   time.Duration
}

func NewPageCache(redis RedisClient, ttl time.Duration) *PageCache {
	return &PageCache{redis: redis, ttl: ttl}
}

func (p *PageCache) enabled() bool {
	return p != nil && p.redis != nil && p.ttl > 0
}

func (p *PageCache) Get(ctx context.Context, key string) (string, bool) {
	if !p.enabled() {
		return "", false
	}
	val, err := p.redis.GetFromCache(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			log.Printf("Failed to read %s from cache: %v", key, err)
		}
		monitoring.CacheLookups.WithLabelValues("miss").Inc()
		return "", false
	}
	monitoring.CacheLookups.WithLabelValues("hit").Inc()
	return val, true
}

func (p *PageCache) Set(ctx context.Context, key, value string) {
	if !p.enabled() {
		return
	}
	if err := p.redis.SetToCache(ctx, key, value, p.ttl); err != nil {
		log.Printf("Failed to cache %s: %v", key, err)
	}
}

// InvalidateHome drops every cached home page.
func (p *PageCache) InvalidateHome(ctx context.Context) {
	if !p.enabled() {
		return
	}
	if err := p.redis.DeleteByPrefix(ctx, HomePagePrefix); err != nil {
		log.Printf("Failed to invalidate home page cache: %v", err)
	}
}
