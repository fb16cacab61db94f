package transport

import (
	"fmt"
	"net"
	"sync"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/mdnsd/mdnsd/internal/dns/common/log"
	"github.com/mdnsd/mdnsd/internal/mdns/domain"
	"github.com/mdnsd/mdnsd/internal/mdns/gateways/wire"
)

const maxDatagramSize = 9000 // generous upper bound; typical mDNS packets are far smaller

// enabledInterface records one EnableInterface call.
type enabledInterface struct {
	name   string
	family Family
}

// MulticastTransport is the production Transceiver: one IPv4 and one
// IPv6 UDP socket, each joined to the mDNS multicast group on every
// selected interface, with one read loop per socket delivering parsed
// messages to the engine's inbound handler.
type MulticastTransport struct {
	v4Addr *net.UDPAddr
	v6Addr *net.UDPAddr
	codec  wire.Codec
	logger log.Logger

	mu      sync.Mutex
	enabled []enabledInterface
	running bool
	stopCh  chan struct{}

	v4conn *ipv4.PacketConn
	v6conn *ipv6.PacketConn

	ifaces   map[int]net.Interface // index -> interface, populated at Start
	v4Joined map[int]bool          // interface index -> joined the v4 group
	v6Joined map[int]bool          // interface index -> joined the v6 group
}

// NewMulticastTransport constructs a transport bound to the given mDNS
// group addresses (normally the RFC 6762 defaults, overridable for
// loopback use in tests).
func NewMulticastTransport(v4Addr, v6Addr string, codec wire.Codec, logger log.Logger) (*MulticastTransport, error) {
	v4, err := net.ResolveUDPAddr("udp4", v4Addr)
	if err != nil {
		return nil, fmt.Errorf("resolve v4 multicast address %q: %w", v4Addr, err)
	}
	v6, err := net.ResolveUDPAddr("udp6", v6Addr)
	if err != nil {
		return nil, fmt.Errorf("resolve v6 multicast address %q: %w", v6Addr, err)
	}
	return &MulticastTransport{
		v4Addr:   v4,
		v6Addr:   v6,
		codec:    codec,
		logger:   logger,
		stopCh:   make(chan struct{}),
		ifaces:   make(map[int]net.Interface),
		v4Joined: make(map[int]bool),
		v6Joined: make(map[int]bool),
	}, nil
}

func (t *MulticastTransport) EnableInterface(name string, family Family) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = append(t.enabled, enabledInterface{name: name, family: family})
}

func (t *MulticastTransport) wantsInterface(iface net.Interface, family Family) bool {
	if len(t.enabled) == 0 {
		return true
	}
	for _, e := range t.enabled {
		if e.name != iface.Name {
			continue
		}
		if e.family == FamilyBoth || e.family == family {
			return true
		}
	}
	return false
}

// selectInterfaces enumerates multicast-capable, up interfaces matching
// EnableInterface filters, for the given family.
func (t *MulticastTransport) selectInterfaces(family Family) ([]net.Interface, error) {
	all, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("enumerate interfaces: %w", err)
	}
	var out []net.Interface
	for _, iface := range all {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagMulticast == 0 {
			continue
		}
		if !t.wantsInterface(iface, family) {
			continue
		}
		out = append(out, iface)
	}
	return out, nil
}

func (t *MulticastTransport) Start(hostFullName string, handler InboundHandler) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return true
	}

	v4ifaces, err := t.selectInterfaces(FamilyV4)
	if err != nil {
		t.logger.Error(map[string]any{"error": err.Error()}, "failed to enumerate IPv4 interfaces")
		return false
	}
	v6ifaces, err := t.selectInterfaces(FamilyV6)
	if err != nil {
		t.logger.Error(map[string]any{"error": err.Error()}, "failed to enumerate IPv6 interfaces")
		return false
	}
	for _, iface := range append(append([]net.Interface{}, v4ifaces...), v6ifaces...) {
		t.ifaces[iface.Index] = iface
	}

	started := false

	if conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: t.v4Addr.Port}); err == nil {
		pc := ipv4.NewPacketConn(conn)
		joined := 0
		for _, iface := range v4ifaces {
			if err := pc.JoinGroup(&iface, t.v4Addr); err != nil {
				t.logger.Warn(map[string]any{"interface": iface.Name, "error": err.Error()}, "failed to join IPv4 multicast group")
				continue
			}
			t.v4Joined[iface.Index] = true
			joined++
		}
		if joined > 0 {
			_ = pc.SetControlMessage(ipv4.FlagInterface, true)
			t.v4conn = pc
			started = true
			go t.readLoopV4(handler)
		} else {
			conn.Close()
		}
	} else {
		t.logger.Warn(map[string]any{"error": err.Error()}, "failed to open IPv4 multicast socket")
	}

	if conn, err := net.ListenUDP("udp6", &net.UDPAddr{Port: t.v6Addr.Port}); err == nil {
		pc := ipv6.NewPacketConn(conn)
		joined := 0
		for _, iface := range v6ifaces {
			if err := pc.JoinGroup(&iface, t.v6Addr); err != nil {
				t.logger.Warn(map[string]any{"interface": iface.Name, "error": err.Error()}, "failed to join IPv6 multicast group")
				continue
			}
			t.v6Joined[iface.Index] = true
			joined++
		}
		if joined > 0 {
			_ = pc.SetControlMessage(ipv6.FlagInterface, true)
			t.v6conn = pc
			started = true
			go t.readLoopV6(handler)
		} else {
			conn.Close()
		}
	} else {
		t.logger.Warn(map[string]any{"error": err.Error()}, "failed to open IPv6 multicast socket")
	}

	t.running = started
	if started {
		t.logger.Info(map[string]any{"host": hostFullName}, "mdns transceiver started")
	}
	return started
}

func (t *MulticastTransport) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	close(t.stopCh)
	if t.v4conn != nil {
		t.v4conn.Close()
	}
	if t.v6conn != nil {
		t.v6conn.Close()
	}
	t.running = false
	t.stopCh = make(chan struct{})
	t.logger.Info(nil, "mdns transceiver stopped")
}

func (t *MulticastTransport) readLoopV4(handler InboundHandler) {
	buf := make([]byte, maxDatagramSize)
	for {
		n, cm, src, err := t.v4conn.ReadFrom(buf)
		select {
		case <-t.stopCh:
			return
		default:
		}
		if err != nil {
			return
		}
		t.dispatchWith(handler, buf[:n], src, ifIndexOf(cm))
	}
}

func (t *MulticastTransport) readLoopV6(handler InboundHandler) {
	buf := make([]byte, maxDatagramSize)
	for {
		n, cm, src, err := t.v6conn.ReadFrom(buf)
		select {
		case <-t.stopCh:
			return
		default:
		}
		if err != nil {
			return
		}
		idx := 0
		if cm != nil {
			idx = cm.IfIndex
		}
		t.dispatchWith(handler, buf[:n], src, idx)
	}
}

func ifIndexOf(cm *ipv4.ControlMessage) int {
	if cm == nil {
		return 0
	}
	return cm.IfIndex
}

func (t *MulticastTransport) dispatchWith(handler InboundHandler, data []byte, src net.Addr, ifIndex int) {
	msg, err := t.codec.Decode(data)
	if err != nil {
		t.logger.Warn(map[string]any{"error": err.Error(), "size": len(data)}, "dropped malformed mdns packet")
		return
	}
	udpAddr, _ := net.ResolveUDPAddr(src.Network(), src.String())
	handler(msg, udpAddr, ifIndex)
}

// SendMessage serializes and sends msg on the given interface index, or
// on every enabled interface if interfaceIndex is 0. target selects the
// family an interface that joined both groups should prefer; an
// interface that only joined the other family's group sends on that one
// instead, realizing "V6-only interfaces substitute the V6 multicast
// address for the V4 one automatically." Any AddressPayload/AAAAPayload
// placeholder in msg is expanded to that interface's concrete address
// before encoding.
func (t *MulticastTransport) SendMessage(msg *domain.Message, target *net.UDPAddr, interfaceIndex int) {
	t.mu.Lock()
	targets := t.ifaces
	t.mu.Unlock()

	preferV4 := target == nil || target.IP.To4() != nil

	send := func(iface net.Interface) {
		expanded := expandAddressPlaceholders(msg, iface)
		data, err := t.codec.Encode(expanded)
		if err != nil {
			t.logger.Error(map[string]any{"error": err.Error()}, "failed to encode outbound mdns message")
			return
		}

		sendV4 := t.v4conn != nil && t.v4Joined[iface.Index]
		sendV6 := t.v6conn != nil && t.v6Joined[iface.Index]
		if sendV4 && sendV6 {
			if preferV4 {
				sendV6 = false
			} else {
				sendV4 = false
			}
		}

		if sendV4 {
			if _, err := t.v4conn.WriteTo(data, &ipv4.ControlMessage{IfIndex: iface.Index}, t.v4Addr); err != nil {
				t.logger.Warn(map[string]any{"interface": iface.Name, "error": err.Error()}, "failed to send mdns message")
			}
		}
		if sendV6 {
			if _, err := t.v6conn.WriteTo(data, &ipv6.ControlMessage{IfIndex: iface.Index}, t.v6Addr); err != nil {
				t.logger.Warn(map[string]any{"interface": iface.Name, "error": err.Error()}, "failed to send mdns message")
			}
		}
	}

	if interfaceIndex != 0 {
		if iface, ok := targets[interfaceIndex]; ok {
			send(iface)
		}
		return
	}
	for _, iface := range targets {
		send(iface)
	}
}

// expandAddressPlaceholders returns a copy of msg with any AddressPayload
// or AAAAPayload placeholder (nil Addr) filled in with iface's concrete
// address of the matching family, dropping the record entirely if the
// interface has none.
func expandAddressPlaceholders(msg *domain.Message, iface net.Interface) *domain.Message {
	v4, v6 := interfaceAddresses(iface)

	expandSection := func(in []domain.Resource) []domain.Resource {
		out := make([]domain.Resource, 0, len(in))
		for _, r := range in {
			switch p := r.Payload.(type) {
			case domain.AddressPayload:
				if p.Addr != nil {
					out = append(out, r)
					continue
				}
				if v4 == nil {
					continue
				}
				r.Payload = domain.AddressPayload{Addr: v4}
				out = append(out, r)
			case domain.AAAAPayload:
				if p.Addr != nil {
					out = append(out, r)
					continue
				}
				if v6 == nil {
					continue
				}
				r.Payload = domain.AAAAPayload{Addr: v6}
				out = append(out, r)
			default:
				out = append(out, r)
			}
		}
		return out
	}

	return &domain.Message{
		Header:      msg.Header,
		Questions:   msg.Questions,
		Answers:     expandSection(msg.Answers),
		Authorities: expandSection(msg.Authorities),
		Additionals: expandSection(msg.Additionals),
	}
}

func interfaceAddresses(iface net.Interface) (v4, v6 net.IP) {
	addrs, err := iface.Addrs()
	if err != nil {
		return nil, nil
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			if v4 == nil {
				v4 = ip4
			}
			continue
		}
		if ipNet.IP.IsLinkLocalUnicast() {
			continue
		}
		if v6 == nil {
			v6 = ipNet.IP
		}
	}
	return v4, v6
}
