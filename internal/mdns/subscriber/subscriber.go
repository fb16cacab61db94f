// Package subscriber implements the instance subscriber agent: it
// discovers service instances via periodic PTR queries and tracks each
// instance's SRV/TXT/address records, reporting discovery, change, and
// loss events to the caller.
package subscriber

import (
	"net"
	"time"

	"github.com/mdnsd/mdnsd/internal/dns/common/clock"
	"github.com/mdnsd/mdnsd/internal/mdns/agent"
	"github.com/mdnsd/mdnsd/internal/mdns/domain"
)

// initialQueryInterval and maxQueryInterval bound the subscriber's
// periodic re-query backoff: it starts at 1s and doubles up to 1 hour.
const (
	initialQueryInterval = 1 * time.Second
	maxQueryInterval     = 1 * time.Hour
)

// Event describes how an instance's tracked state changed.
type Event uint8

const (
	Discovered Event = iota
	Changed
	Lost
)

func (e Event) String() string {
	switch e {
	case Discovered:
		return "discovered"
	case Changed:
		return "changed"
	case Lost:
		return "lost"
	default:
		return "unknown"
	}
}

// Instance is the subscriber's merged view of one service instance.
type Instance struct {
	FullName string
	Target   string
	Port     uint16
	TXT      [][]byte
	Addrs    []net.IP
}

// complete reports whether enough has been learned about the instance to
// report it as discovered: a resolvable SRV target plus at least one
// address for that target.
func (i Instance) complete() bool {
	return i.Target != "" && len(i.Addrs) > 0
}

// Callback is invoked whenever a tracked instance is discovered, changes,
// or is lost.
type Callback func(instance Instance, event Event)

// Subscriber tracks instances of one service type.
type Subscriber struct {
	host            agent.Host
	clock           clock.Clock
	serviceFullName string
	callback        Callback

	interval  time.Duration
	instances map[string]*Instance
	reported  map[string]bool
}

// New constructs a Subscriber for serviceFullName (e.g.
// "_printer._tcp.local.").
func New(host agent.Host, clk clock.Clock, serviceFullName string, callback Callback) *Subscriber {
	return &Subscriber{
		host:            host,
		clock:           clk,
		serviceFullName: serviceFullName,
		callback:        callback,
		interval:        initialQueryInterval,
		instances:       make(map[string]*Instance),
		reported:        make(map[string]bool),
	}
}

func (s *Subscriber) Name() string { return "subscribe:" + s.serviceFullName }

func (s *Subscriber) Start() {
	s.query()
	s.host.WakeAt(s.Name(), s.clock.Now().Add(s.interval))
}

// Wake re-issues the PTR query and doubles the backoff interval, capped
// at maxQueryInterval.
func (s *Subscriber) Wake() {
	s.query()
	s.interval *= 2
	if s.interval > maxQueryInterval {
		s.interval = maxQueryInterval
	}
	s.host.WakeAt(s.Name(), s.clock.Now().Add(s.interval))
}

func (s *Subscriber) query() {
	q, err := domain.NewQuestion(s.serviceFullName, domain.RRTypePTR, domain.RRClassIN, false)
	if err != nil {
		return
	}
	s.host.SendQuestion(q, s.clock.Now())
}

func (s *Subscriber) ReceiveQuestion(domain.Question) {}

// ReceiveResource merges an inbound PTR/SRV/TXT/A/AAAA record into the
// per-instance state map and reports discovery/change/loss.
func (s *Subscriber) ReceiveResource(res *domain.Resource, section domain.ResourceSection) {
	if section == domain.SectionExpired {
		s.handleExpired(res)
		return
	}

	switch res.Type {
	case domain.RRTypePTR:
		s.handlePTR(res)
	case domain.RRTypeSRV:
		s.handleSRV(res)
	case domain.RRTypeTXT:
		s.handleTXT(res)
	case domain.RRTypeA, domain.RRTypeAAAA:
		s.handleAddress(res)
	}
}

func (s *Subscriber) handlePTR(res *domain.Resource) {
	if !domain.NamesEqual(res.Name, s.serviceFullName) {
		return
	}
	p, ok := res.Payload.(domain.PTRPayload)
	if !ok {
		return
	}
	s.ensure(p.Name)
	s.host.Renew(res)
}

// ensure looks up (or creates) the tracked instance for instanceFullName,
// keying on its canonical form so instances announced with inconsistent
// name casing still merge into a single tracked record.
func (s *Subscriber) ensure(instanceFullName string) *Instance {
	key := domain.CanonicalKey(instanceFullName)
	inst, ok := s.instances[key]
	if !ok {
		inst = &Instance{FullName: instanceFullName}
		s.instances[key] = inst
	}
	return inst
}

func (s *Subscriber) handleSRV(res *domain.Resource) {
	inst, ok := s.instances[domain.CanonicalKey(res.Name)]
	if !ok {
		return
	}
	p, ok := res.Payload.(domain.SRVPayload)
	if !ok {
		return
	}
	inst.Target = p.Target
	inst.Port = p.Port
	s.host.Renew(res)
	s.notify(domain.CanonicalKey(res.Name))
}

func (s *Subscriber) handleTXT(res *domain.Resource) {
	inst, ok := s.instances[domain.CanonicalKey(res.Name)]
	if !ok {
		return
	}
	p, ok := res.Payload.(domain.TXTPayload)
	if !ok {
		return
	}
	inst.TXT = p.Strings
	s.host.Renew(res)
	s.notify(domain.CanonicalKey(res.Name))
}

func (s *Subscriber) handleAddress(res *domain.Resource) {
	var addr net.IP
	switch p := res.Payload.(type) {
	case domain.AddressPayload:
		addr = p.Addr
	case domain.AAAAPayload:
		addr = p.Addr
	default:
		return
	}
	if addr == nil {
		return
	}
	matched := false
	for key, inst := range s.instances {
		if !domain.NamesEqual(inst.Target, res.Name) {
			continue
		}
		inst.Addrs = appendUnique(inst.Addrs, addr)
		matched = true
		s.notify(key)
	}
	if matched {
		s.host.Renew(res)
	}
}

func appendUnique(addrs []net.IP, addr net.IP) []net.IP {
	for _, a := range addrs {
		if a.Equal(addr) {
			return addrs
		}
	}
	return append(addrs, addr)
}

// notify reports Discovered the first time an instance becomes complete,
// and Changed on every subsequent update to an already-reported instance.
// key is the instance's canonical map key, as produced by domain.CanonicalKey.
func (s *Subscriber) notify(key string) {
	inst, ok := s.instances[key]
	if !ok || !inst.complete() {
		return
	}
	if s.reported[key] {
		s.callback(*inst, Changed)
		return
	}
	s.reported[key] = true
	s.callback(*inst, Discovered)
}

// handleExpired drops the instance the expired record belongs to and
// reports Lost if it was ever reported. A PTR's own name is the service,
// not the instance, so its target (the instance it named) is read from
// its payload instead; SRV/TXT name the instance directly, and an
// address record matches whichever instance's SRV target named it.
func (s *Subscriber) handleExpired(res *domain.Resource) {
	matchName := res.Name
	if ptr, ok := res.Payload.(domain.PTRPayload); ok {
		matchName = ptr.Name
	}

	var lost []string
	for key, inst := range s.instances {
		if domain.NamesEqual(key, matchName) || domain.NamesEqual(inst.Target, res.Name) {
			lost = append(lost, key)
		}
	}
	for _, key := range lost {
		inst := s.instances[key]
		wasReported := s.reported[key]
		delete(s.instances, key)
		delete(s.reported, key)
		if wasReported {
			s.callback(*inst, Lost)
		}
	}
}

func (s *Subscriber) EndOfMessage() {}

func (s *Subscriber) Quit() {
	s.host.RemoveAgent(s.Name())
}

var _ agent.Agent = (*Subscriber)(nil)
