// Package transport implements the multicast UDP transceiver the engine
// treats as an external collaborator: it owns the sockets, joins the
// mDNS multicast groups per enabled interface, and turns wire bytes into
// domain messages (and back) via the wire codec.
package transport

import (
	"net"

	"github.com/mdnsd/mdnsd/internal/mdns/domain"
)

// Family selects which IP family an interface is enabled for.
type Family int

const (
	FamilyV4 Family = iota
	FamilyV6
	FamilyBoth
)

// InboundHandler is invoked once per received mDNS packet, on the
// engine's task-runner context. interfaceIndex identifies the local
// interface the packet arrived on.
type InboundHandler func(msg *domain.Message, source *net.UDPAddr, interfaceIndex int)

// Transceiver is the multicast socket I/O collaborator the engine
// consumes. It is a black box from the engine's point of view: the
// engine never touches a socket directly.
type Transceiver interface {
	// EnableInterface restricts I/O to the named interface and address
	// family. Calling it before Start narrows which interfaces Start
	// joins the multicast groups on; with no calls, Start uses every
	// usable multicast-capable interface.
	EnableInterface(name string, family Family)

	// Start begins multicast I/O for hostFullName and returns whether it
	// succeeded. handler is invoked on every inbound packet.
	Start(hostFullName string, handler InboundHandler) bool

	// Stop ends multicast I/O and releases the sockets.
	Stop()

	// SendMessage serializes and sends msg to target on the given
	// interface index, or on every enabled interface if interfaceIndex
	// is 0. A V6-only interface substitutes the V6 multicast address for
	// the V4 one automatically. Any AddressPayload placeholder in msg
	// (zero-value Addr) is expanded to that interface's concrete address
	// before encoding.
	SendMessage(msg *domain.Message, target *net.UDPAddr, interfaceIndex int)
}
