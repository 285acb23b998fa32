// Package validate is the pipeline entry point (spec §4.5): dedup
// filter, parse-failure handling, and orchestrated rule dispatch.
package validate

import (
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// DefaultDedupTTL is dedup.ttl-ms's default (spec §6).
const DefaultDedupTTL = 100 * time.Millisecond

// DefaultDedupCacheSize is dedup.cache-size's default (spec §6).
const DefaultDedupCacheSize = 1000

// Session is the "dedup filter" from spec §3, made an explicit
// call-scoped value per Design Notes §9 rather than ambient per-thread
// storage: the spec calls for thread-local semantics, but goroutines
// migrate across OS threads and have no equivalent primitive, so callers
// instead hold one Session per logical worker (one per goroutine that
// calls Validate serially) and pass it in explicitly. A Session is not
// safe for concurrent use from multiple goroutines, mirroring the
// thread-local's single-owner contract.
type Session struct {
	cache *ttlcache.Cache[string, time.Time]
	ttl   time.Duration
}

// NewSession builds a dedup session. cacheSize 0 uses
// DefaultDedupCacheSize; ttl 0 uses DefaultDedupTTL.
func NewSession(cacheSize int, ttl time.Duration) *Session {
	if cacheSize <= 0 {
		cacheSize = DefaultDedupCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	s := &Session{
		ttl: ttl,
		cache: ttlcache.New[string, time.Time](
			ttlcache.WithCapacity[string, time.Time](uint64(cacheSize)),
			ttlcache.WithTTL[string, time.Time](ttl),
		),
	}
	go s.cache.Start()
	return s
}

// Close stops the session's background eviction goroutine. Callers that
// pool sessions (e.g. per-request-thread in a connection-pool
// environment) call this from the pool's explicit "clear" hook (spec §5).
func (s *Session) Close() { s.cache.Stop() }

func normalize(sql string) string {
	return strings.TrimSpace(sql)
}

// seen reports whether sql was validated SAFE within the TTL window.
func (s *Session) seen(sql string) bool {
	item := s.cache.Get(normalize(sql))
	return item != nil
}

// remember records sql as having just been validated SAFE.
func (s *Session) remember(sql string) {
	s.cache.Set(normalize(sql), time.Now(), s.ttl)
}
