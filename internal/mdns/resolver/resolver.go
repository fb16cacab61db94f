// Package resolver implements the host-name resolver agent: a short-lived
// participant that asks for a remote host's address records and reports
// back exactly once, either with the first address heard or a not-found
// result once its deadline elapses.
package resolver

import (
	"net"
	"time"

	"github.com/mdnsd/mdnsd/internal/dns/common/clock"
	"github.com/mdnsd/mdnsd/internal/mdns/agent"
	"github.com/mdnsd/mdnsd/internal/mdns/domain"
)

// Callback is invoked exactly once: with the first resolved address, or
// with found=false if no answer arrived before the deadline.
type Callback func(host string, addr net.IP, found bool)

// Resolver is a time-bounded query for a remote host's A/AAAA records.
type Resolver struct {
	host     agent.Host
	clock    clock.Clock
	fullName string
	deadline time.Time
	callback Callback
	done     bool
}

// New constructs a Resolver for hostFullName (e.g. "beta.local."),
// reporting to callback by deadline at the latest. Its Name is "resolve:"
// plus the full name it targets, so the engine's registry naturally rejects a second
// concurrent resolve for the same host.
func New(host agent.Host, clk clock.Clock, hostFullName string, deadline time.Time, callback Callback) *Resolver {
	return &Resolver{host: host, clock: clk, fullName: hostFullName, deadline: deadline, callback: callback}
}

func (r *Resolver) Name() string { return "resolve:" + r.fullName }

// Start enqueues the A and AAAA questions and arms the deadline wake.
func (r *Resolver) Start() {
	now := r.clock.Now()
	if qa, err := domain.NewQuestion(r.fullName, domain.RRTypeA, domain.RRClassIN, false); err == nil {
		r.host.SendQuestion(qa, now)
	}
	if qaaaa, err := domain.NewQuestion(r.fullName, domain.RRTypeAAAA, domain.RRClassIN, false); err == nil {
		r.host.SendQuestion(qaaaa, now)
	}
	r.host.WakeAt(r.Name(), r.deadline)
}

// Wake fires at the deadline; if no answer arrived by then, report
// not-found and remove self.
func (r *Resolver) Wake() {
	if r.done {
		return
	}
	r.finish(nil, false)
}

func (r *Resolver) ReceiveQuestion(domain.Question) {}

// ReceiveResource records the first A or AAAA address matching the target
// name and reports immediately, rather than waiting to see if the other
// family also answers.
func (r *Resolver) ReceiveResource(res *domain.Resource, section domain.ResourceSection) {
	if r.done || section == domain.SectionExpired {
		return
	}
	if !domain.NamesEqual(res.Name, r.fullName) {
		return
	}
	var addr net.IP
	switch p := res.Payload.(type) {
	case domain.AddressPayload:
		if res.Type != domain.RRTypeA {
			return
		}
		addr = p.Addr
	case domain.AAAAPayload:
		if res.Type != domain.RRTypeAAAA {
			return
		}
		addr = p.Addr
	default:
		return
	}
	if addr == nil {
		return
	}
	r.finish(addr, true)
}

func (r *Resolver) finish(addr net.IP, found bool) {
	r.done = true
	r.callback(r.fullName, addr, found)
	r.host.RemoveAgent(r.Name())
}

func (r *Resolver) EndOfMessage() {}

func (r *Resolver) Quit() {
	if r.done {
		return
	}
	r.finish(nil, false)
}

var _ agent.Agent = (*Resolver)(nil)
