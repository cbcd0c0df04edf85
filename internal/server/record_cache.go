package server

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"seedshare/internal/models"
)

// recordCache holds resolved records. Records never change after insert, so
// the only invalidation needed is removal by the expiry sweeper.
type recordCache struct {
	lru *expirable.LRU[string, models.Record]
}

// newRecordCache returns nil when size is not positive; a nil cache is a
// no-op.
func newRecordCache(size int, ttl time.Duration) *recordCache {
	if size <= 0 {
		return nil
	}
	return &recordCache{lru: expirable.NewLRU[string, models.Record](size, nil, ttl)}
}

func (c *recordCache) Get(seedCode string) (models.Record, bool) {
	if c == nil {
		return models.Record{}, false
	}
	rec, ok := c.lru.Get(seedCode)
	if ok {
		recordCacheTotal.WithLabelValues("hit").Inc()
		return rec, true
	}
	recordCacheTotal.WithLabelValues("miss").Inc()
	return models.Record{}, false
}

func (c *recordCache) Add(rec models.Record) {
	if c == nil {
		return
	}
	c.lru.Add(rec.SeedCode, rec)
}

func (c *recordCache) Remove(seedCode string) {
	if c == nil {
		return
	}
	c.lru.Remove(seedCode)
}

func (c *recordCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
