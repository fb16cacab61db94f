package transport

import (
	"net"
	"testing"

	"github.com/mdnsd/mdnsd/internal/mdns/domain"
)

func TestExpandAddressPlaceholders_FillsLoopback(t *testing.T) {
	iface := net.Interface{Name: "lo0", Index: 1}

	msg := &domain.Message{
		Answers: []domain.Resource{
			{Name: "alpha.local.", Type: domain.RRTypeA, Class: domain.RRClassIN, TTL: 120,
				Payload: domain.AddressPayload{}},
		},
	}

	expanded := expandAddressPlaceholders(msg, iface)
	if len(expanded.Answers) != 1 {
		t.Fatalf("expected the A placeholder to survive filled in from loopback, got %d answers", len(expanded.Answers))
	}
}

func TestExpandAddressPlaceholders_FillsAAAAPlaceholder(t *testing.T) {
	iface := net.Interface{Name: "lo0", Index: 1}

	msg := &domain.Message{
		Answers: []domain.Resource{
			{Name: "alpha.local.", Type: domain.RRTypeAAAA, Class: domain.RRClassIN, TTL: 120,
				Payload: domain.AAAAPayload{}},
		},
	}

	expanded := expandAddressPlaceholders(msg, iface)
	if len(expanded.Answers) != 1 {
		t.Fatalf("expected the AAAA placeholder to survive filled in, got %d answers", len(expanded.Answers))
	}
	addr, ok := expanded.Answers[0].Payload.(domain.AAAAPayload)
	if !ok || addr.Addr == nil {
		t.Fatalf("expected a filled-in AAAA payload, got %+v", expanded.Answers[0].Payload)
	}
	if addr.Addr.To4() != nil {
		t.Errorf("expected a genuine IPv6 address, got %v", addr.Addr)
	}
}

func TestExpandAddressPlaceholders_FillsBothFamiliesFromOneMessage(t *testing.T) {
	iface := net.Interface{Name: "lo0", Index: 1}

	msg := &domain.Message{
		Answers: []domain.Resource{
			{Name: "alpha.local.", Type: domain.RRTypeA, Class: domain.RRClassIN, TTL: 120,
				Payload: domain.AddressPayload{}},
			{Name: "alpha.local.", Type: domain.RRTypeAAAA, Class: domain.RRClassIN, TTL: 120,
				Payload: domain.AAAAPayload{}},
		},
	}

	expanded := expandAddressPlaceholders(msg, iface)
	if len(expanded.Answers) != 2 {
		t.Fatalf("expected loopback's dual-stack addresses to fill in both placeholders, got %d answers", len(expanded.Answers))
	}
}

func TestExpandAddressPlaceholders_PreservesResolvedAddress(t *testing.T) {
	iface := net.Interface{Name: "lo0", Index: 1}

	msg := &domain.Message{
		Answers: []domain.Resource{
			{Name: "alpha.local.", Type: domain.RRTypeA, Class: domain.RRClassIN, TTL: 120,
				Payload: domain.AddressPayload{Addr: net.ParseIP("192.0.2.5")}},
		},
	}

	expanded := expandAddressPlaceholders(msg, iface)
	addr, ok := expanded.Answers[0].Payload.(domain.AddressPayload)
	if !ok || !addr.Addr.Equal(net.ParseIP("192.0.2.5")) {
		t.Errorf("expected already-resolved address preserved, got %+v", expanded.Answers[0].Payload)
	}
}

func TestMulticastTransport_WantsInterface_NoFilters(t *testing.T) {
	tr := &MulticastTransport{}
	if !tr.wantsInterface(net.Interface{Name: "eth0"}, FamilyV4) {
		t.Errorf("expected no filters to allow every interface")
	}
}

func TestMulticastTransport_WantsInterface_Filtered(t *testing.T) {
	tr := &MulticastTransport{}
	tr.EnableInterface("eth0", FamilyV4)

	if !tr.wantsInterface(net.Interface{Name: "eth0"}, FamilyV4) {
		t.Errorf("expected eth0/v4 to be wanted")
	}
	if tr.wantsInterface(net.Interface{Name: "eth1"}, FamilyV4) {
		t.Errorf("expected eth1 to be filtered out")
	}
	if tr.wantsInterface(net.Interface{Name: "eth0"}, FamilyV6) {
		t.Errorf("expected eth0/v6 to be filtered out when only v4 enabled")
	}
}

// TestMulticastTransport_RecordsGroupMembershipPerFamily checks that a
// transport whose interface joined only the v6 group records it as
// v6-joined and not v4-joined. It does not call SendMessage.
func TestMulticastTransport_RecordsGroupMembershipPerFamily(t *testing.T) {
	v6OnlyIface := net.Interface{Name: "eth1", Index: 7}
	tr := &MulticastTransport{
		ifaces:   map[int]net.Interface{v6OnlyIface.Index: v6OnlyIface},
		v4Joined: map[int]bool{},
		v6Joined: map[int]bool{v6OnlyIface.Index: true},
	}

	if !tr.v6Joined[v6OnlyIface.Index] {
		t.Fatalf("test setup: expected eth1 to be recorded as v6-joined")
	}
	if tr.v4Joined[v6OnlyIface.Index] {
		t.Fatalf("test setup: expected eth1 to not be recorded as v4-joined")
	}
}
