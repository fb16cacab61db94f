// Package publisher implements the instance publisher agent: it
// announces a service instance's PTR/SRV/TXT/address records on the
// standard mDNS announce schedule, defends them against matching
// questions, and sends a goodbye on Quit.
package publisher

import (
	"time"

	"github.com/mdnsd/mdnsd/internal/dns/common/clock"
	"github.com/mdnsd/mdnsd/internal/mdns/agent"
	"github.com/mdnsd/mdnsd/internal/mdns/domain"
)

// announceSpacing is the gap between the two initial announcements RFC
// 6762 §8.3 recommends for a freshly published record.
const announceSpacing = 1 * time.Second

// defaultTTL is the TTL this engine assigns every record it publishes.
// RFC 6762 recommends longer TTLs for PTR records specifically, but a
// single uniform TTL keeps the renewer/requery schedule identical across
// the instance's whole record set, and the source this is grounded on
// (mdns.cc) does not differentiate either.
const defaultTTL = 120

// Publisher announces one service instance.
type Publisher struct {
	host              agent.Host
	clock             clock.Clock
	serviceFullName   string
	instanceFullName  string
	hostFullName      string
	port              uint16
	txt               [][]byte
	announcementsSent int
	quitting          bool
}

// New constructs a Publisher for one service instance, publishing it at
// port on hostFullName (the local host's full name), with the given TXT
// record strings.
func New(host agent.Host, clk clock.Clock, serviceFullName, instanceFullName, hostFullName string, port uint16, txt [][]byte) *Publisher {
	return &Publisher{
		host:             host,
		clock:            clk,
		serviceFullName:  serviceFullName,
		instanceFullName: instanceFullName,
		hostFullName:     hostFullName,
		port:             port,
		txt:              txt,
	}
}

func (p *Publisher) Name() string { return "publish:" + p.instanceFullName }

// Start sends the first of two announcements and schedules the second.
func (p *Publisher) Start() {
	p.announce(defaultTTL)
	p.announcementsSent = 1
	p.host.WakeAt(p.Name(), p.clock.Now().Add(announceSpacing))
}

// Wake sends the second scheduled announcement, if not already sent.
func (p *Publisher) Wake() {
	if p.announcementsSent >= 2 {
		return
	}
	p.announce(defaultTTL)
	p.announcementsSent = 2
}

// ReceiveQuestion re-announces (defends) when asked about this instance's
// service name or instance name.
func (p *Publisher) ReceiveQuestion(q domain.Question) {
	if p.quitting {
		return
	}
	if !domain.NamesEqual(q.Name, p.serviceFullName) && !domain.NamesEqual(q.Name, p.instanceFullName) {
		return
	}
	switch q.Type {
	case domain.RRTypePTR, domain.RRTypeSRV, domain.RRTypeTXT, domain.RRTypeA, domain.RRTypeAAAA, domain.RRTypeANY:
		p.announce(defaultTTL)
	}
}

func (p *Publisher) ReceiveResource(*domain.Resource, domain.ResourceSection) {}

func (p *Publisher) EndOfMessage() {}

// Quit announces a goodbye (TTL=0) for every record this instance owns,
// then removes itself from the registry.
func (p *Publisher) Quit() {
	p.quitting = true
	p.announce(0)
	p.host.RemoveAgent(p.Name())
}

// announce enqueues PTR, SRV, TXT, and the shared address placeholder for
// this instance at the given ttl.
func (p *Publisher) announce(ttl uint32) {
	now := p.clock.Now()

	if ptr, err := domain.NewResource(p.serviceFullName, domain.RRTypePTR, domain.RRClassIN, false, ttl,
		domain.PTRPayload{NamePayload: domain.NamePayload{Name: p.instanceFullName}}); err == nil {
		p.host.SendResource(&ptr, domain.SectionAnswer, now)
	}

	if srv, err := domain.NewResource(p.instanceFullName, domain.RRTypeSRV, domain.RRClassIN, true, ttl,
		domain.SRVPayload{Port: p.port, Target: p.hostFullName}); err == nil {
		p.host.SendResource(&srv, domain.SectionAnswer, now)
	}

	if txt, err := domain.NewResource(p.instanceFullName, domain.RRTypeTXT, domain.RRClassIN, true, ttl,
		domain.TXTPayload{Strings: p.txt}); err == nil {
		p.host.SendResource(&txt, domain.SectionAnswer, now)
	}

	p.host.SendAddresses(domain.SectionAdditional, now)
}

var _ agent.Agent = (*Publisher)(nil)
