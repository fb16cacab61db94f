// Package renewer implements the engine's always-on resource renewer:
// the agent that tracks every resource it is asked to renew, schedules
// re-query questions before each tracked record's TTL lapses, and emits
// an expiration event if no refresh arrives in time.
package renewer

import (
	"time"

	"github.com/mdnsd/mdnsd/internal/dns/common/clock"
	"github.com/mdnsd/mdnsd/internal/mdns/agent"
	"github.com/mdnsd/mdnsd/internal/mdns/domain"
	"github.com/mdnsd/mdnsd/internal/mdns/repos/cache"
)

// Name is the renewer's fixed registry key.
const Name = "renewer"

// requeryFractions are the points in a tracked record's TTL, expressed
// as a fraction of it, at which the renewer asks again before the record
// would otherwise expire. Exact percentages are the conventional mDNS
// choice; RFC 6762 leaves the schedule to the implementation.
var requeryFractions = []float64{0.80, 0.85, 0.90, 0.95}

type actionKind uint8

const (
	actionRequery actionKind = iota
	actionExpire
)

// trackedRecord is the renewer's bookkeeping for one (name, type, class)
// key: the most recently observed copy of the record and a generation
// counter that lets stale scheduled actions recognize they've been
// superseded by a refresh without having to search the pending list.
type trackedRecord struct {
	resource   *domain.Resource
	generation int
	refreshed  time.Time
	ttl        time.Duration
}

type pendingAction struct {
	time       time.Time
	key        string
	generation int
	kind       actionKind
}

// Renewer is the always-on agent the engine hands every inbound resource
// to before any other agent, per its ReceiveResource/Renew ordering
// invariant.
type Renewer struct {
	host  agent.Host
	clock clock.Clock

	table   *cache.Table[trackedRecord]
	pending []pendingAction
}

// New constructs a Renewer bounded to table entries, backed by an LRU
// table so a network with far more distinct records than the engine
// cares to track cannot grow the renewer's bookkeeping unbounded.
func New(host agent.Host, clk clock.Clock, tableSize int) (*Renewer, error) {
	table, err := cache.New[trackedRecord](tableSize)
	if err != nil {
		return nil, err
	}
	return &Renewer{host: host, clock: clk, table: table}, nil
}

func (r *Renewer) Name() string { return Name }

func (r *Renewer) Start() {}

// Renew begins or refreshes tracking of res. It is called directly by
// the engine (not as part of the Agent interface) whenever any agent
// hands the engine a freshly received resource worth keeping alive.
func (r *Renewer) Renew(res *domain.Resource) {
	r.track(res)
}

func (r *Renewer) track(res *domain.Resource) {
	key := res.CacheKey()
	now := r.clock.Now()

	generation := 0
	if existing, ok := r.table.Get(key); ok {
		generation = existing.generation + 1
	}

	ttl := time.Duration(res.TTL) * time.Second
	r.table.Set(key, trackedRecord{
		resource:   res,
		generation: generation,
		refreshed:  now,
		ttl:        ttl,
	})

	for _, frac := range requeryFractions {
		at := now.Add(time.Duration(float64(ttl) * frac))
		r.schedule(pendingAction{time: at, key: key, generation: generation, kind: actionRequery})
	}
	r.schedule(pendingAction{time: now.Add(ttl), key: key, generation: generation, kind: actionExpire})
}

func (r *Renewer) schedule(a pendingAction) {
	r.pending = append(r.pending, a)
	r.host.WakeAt(Name, a.time)
}

func (r *Renewer) Wake() {
	now := r.clock.Now()
	var remaining []pendingAction
	for _, a := range r.pending {
		if a.time.After(now) {
			remaining = append(remaining, a)
			continue
		}
		r.fire(a, now)
	}
	r.pending = remaining
}

func (r *Renewer) fire(a pendingAction, now time.Time) {
	tracked, ok := r.table.Get(a.key)
	if !ok || tracked.generation != a.generation {
		// Superseded by a refresh (or no longer tracked); stale action, drop it.
		return
	}

	switch a.kind {
	case actionRequery:
		q, err := domain.NewQuestion(tracked.resource.Name, tracked.resource.Type, domain.RRClassIN, false)
		if err != nil {
			return
		}
		r.host.SendQuestion(q, now)
	case actionExpire:
		r.table.Delete(a.key)
		r.host.SendResource(tracked.resource, domain.SectionExpired, now)
	}
}

// ReceiveQuestion is a no-op: the renewer only cares about resources.
func (r *Renewer) ReceiveQuestion(domain.Question) {}

// ReceiveResource resets the tracked TTL for any already-tracked record
// matching this one's (name, type, class) key. A record the renewer was
// never asked to Renew is not implicitly adopted; Renew is the sole
// intake point.
func (r *Renewer) ReceiveResource(res *domain.Resource, section domain.ResourceSection) {
	if section == domain.SectionExpired {
		return
	}
	key := res.CacheKey()
	if _, ok := r.table.Get(key); ok {
		r.track(res)
	}
}

func (r *Renewer) EndOfMessage() {}

// Quit is a no-op: the renewer is always-on and is never removed.
func (r *Renewer) Quit() {}

var _ agent.Agent = (*Renewer)(nil)
