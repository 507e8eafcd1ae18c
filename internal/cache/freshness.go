package cache

import "time"

// Sources tagged on every result so callers can tell where data came from.
const (
	SourceCache   = "cache"
	SourceFetched = "fetched"
	SourcePartial = "partial"
)

// Fresh reports whether a record fetched at fetchedAt is still valid at now
// under ttl. The boundary is exclusive: a record aged exactly ttl is stale.
func Fresh(fetchedAt, now time.Time, ttl time.Duration) bool {
	if fetchedAt.IsZero() {
		return false
	}
	return fetchedAt.Add(ttl).After(now)
}
