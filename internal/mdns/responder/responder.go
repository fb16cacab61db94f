// Package responder implements the always-on address responder agent:
// it answers A/AAAA/ANY questions for the local host's full name.
package responder

import (
	"github.com/mdnsd/mdnsd/internal/dns/common/clock"
	"github.com/mdnsd/mdnsd/internal/mdns/agent"
	"github.com/mdnsd/mdnsd/internal/mdns/domain"
)

// Name is the address responder's fixed registry key.
const Name = "address-responder"

// AddressResponder answers inbound questions for the local host's full
// name by re-enqueuing the shared address placeholder; the transceiver
// expands it into concrete per-interface A/AAAA records at send time.
type AddressResponder struct {
	host         agent.Host
	clock        clock.Clock
	hostFullName string
}

// New constructs an AddressResponder for hostFullName (e.g. "alpha.local.").
func New(host agent.Host, clk clock.Clock, hostFullName string) *AddressResponder {
	return &AddressResponder{host: host, clock: clk, hostFullName: hostFullName}
}

func (r *AddressResponder) Name() string { return Name }

func (r *AddressResponder) Start() {}

func (r *AddressResponder) Wake() {}

func (r *AddressResponder) ReceiveQuestion(q domain.Question) {
	if !domain.NamesEqual(q.Name, r.hostFullName) {
		return
	}
	switch q.Type {
	case domain.RRTypeA, domain.RRTypeAAAA, domain.RRTypeANY:
		r.host.SendAddresses(domain.SectionAnswer, r.clock.Now())
	}
}

func (r *AddressResponder) ReceiveResource(*domain.Resource, domain.ResourceSection) {}

func (r *AddressResponder) EndOfMessage() {}

func (r *AddressResponder) Quit() {}

var _ agent.Agent = (*AddressResponder)(nil)
