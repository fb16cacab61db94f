package domain

import "fmt"

// CacheKey returns the key used by the resource renewer's tracked-record
// table to identify a (name, type, class) triple. The name is canonicalized
// so two records differing only by case or a trailing dot track as one.
func CacheKey(name string, rrtype RRType, class RRClass) string {
	return fmt.Sprintf("%s|%d|%d", CanonicalKey(name), rrtype, class)
}

// CacheKey returns this resource's renewer tracking key.
func (r Resource) CacheKey() string {
	return CacheKey(r.Name, r.Type, r.Class)
}

// CacheKey returns the tracking key a resource answering this question
// would have.
func (q Question) CacheKey() string {
	return CacheKey(q.Name, q.Type, q.Class)
}
