// Package wire serializes and parses DNS-over-UDP packets per RFC 1035
// section 4, with the mDNS extensions of RFC 6762: the cache-flush bit
// repurposed from the top bit of a resource's class field, the
// unicast-response bit repurposed from the top bit of a question's class
// field, and name compression via backward pointers.
package wire

import "github.com/mdnsd/mdnsd/internal/mdns/domain"

// Codec encodes a domain.Message to wire bytes and parses wire bytes back
// into a domain.Message. Both directions accept compressed and
// uncompressed names; Encode always emits compressed names.
type Codec interface {
	Encode(m *domain.Message) ([]byte, error)
	Decode(data []byte) (*domain.Message, error)
}
