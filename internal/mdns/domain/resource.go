package domain

import (
	"fmt"
	"net"
)

// PayloadTag discriminates the ResourcePayload sum type. It mirrors RRType
// for the record kinds this engine understands natively, plus OPAQUE for
// any other record type, which is carried as raw wire bytes without
// interpretation.
type PayloadTag uint16

const (
	PayloadA      PayloadTag = PayloadTag(RRTypeA)
	PayloadAAAA   PayloadTag = PayloadTag(RRTypeAAAA)
	PayloadPTR    PayloadTag = PayloadTag(RRTypePTR)
	PayloadCNAME  PayloadTag = PayloadTag(RRTypeCNAME)
	PayloadNS     PayloadTag = PayloadTag(RRTypeNS)
	PayloadSRV    PayloadTag = PayloadTag(RRTypeSRV)
	PayloadTXT    PayloadTag = PayloadTag(RRTypeTXT)
	PayloadNSEC   PayloadTag = PayloadTag(RRTypeNSEC)
	PayloadOPAQUE PayloadTag = 0xFFFF
)

// ResourcePayload is the tagged variant carried by a Resource. Exactly one
// concrete type below implements it for any given Resource; the tag
// returned by Tag() must always match the payload actually stored, per the
// discriminated-union invariant this replaces the source's manual
// destructor dispatch with.
type ResourcePayload interface {
	Tag() PayloadTag
}

// AddressPayload carries an A or AAAA record. It is also used as the
// shared placeholder address record: the engine enqueues it without a
// resolved Addr, and the transceiver fills one in per outbound interface.
type AddressPayload struct {
	Addr net.IP
}

func (AddressPayload) Tag() PayloadTag { return PayloadA }

// AAAAPayload carries an AAAA record's IPv6 address. Kept as a distinct
// type from AddressPayload so the tag unambiguously identifies the wire
// type even though both wrap a net.IP.
type AAAAPayload struct {
	Addr net.IP
}

func (AAAAPayload) Tag() PayloadTag { return PayloadAAAA }

// NamePayload carries a single target domain name, used by PTR, CNAME,
// and NS records.
type NamePayload struct {
	Name string
}

func (NamePayload) Tag() PayloadTag { return 0 } // overridden by concrete wrappers below

// PTRPayload points from a service or pointer name to a target name.
type PTRPayload struct{ NamePayload }

func (PTRPayload) Tag() PayloadTag { return PayloadPTR }

// CNAMEPayload aliases one name to another.
type CNAMEPayload struct{ NamePayload }

func (CNAMEPayload) Tag() PayloadTag { return PayloadCNAME }

// NSPayload names an authoritative name server.
type NSPayload struct{ NamePayload }

func (NSPayload) Tag() PayloadTag { return PayloadNS }

// SRVPayload carries a service record: the priority/weight/port triple and
// the target host name that resolves to the service's address.
type SRVPayload struct {
	Priority uint16
	Weight   uint16
	Port     uint16
	Target   string
}

func (SRVPayload) Tag() PayloadTag { return PayloadSRV }

// TXTPayload carries an ordered list of opaque byte-strings, each at most
// 255 bytes per RFC 1035's character-string encoding.
type TXTPayload struct {
	Strings [][]byte
}

func (TXTPayload) Tag() PayloadTag { return PayloadTXT }

// NSECPayload carries the next secure name and the bitmap of types
// present at that name. The engine never generates NSEC records itself;
// this exists so inbound NSEC records round-trip through re-announcement
// without loss.
type NSECPayload struct {
	NextName string
	TypeMap  []byte
}

func (NSECPayload) Tag() PayloadTag { return PayloadNSEC }

// OpaquePayload carries the raw RDATA of any record type this engine does
// not interpret. It is preserved byte-for-byte on re-transmission.
type OpaquePayload struct {
	RData []byte
}

func (OpaquePayload) Tag() PayloadTag { return PayloadOPAQUE }

// Resource is a DNS resource record: a name/type/class triple, the
// cache-flush bit RFC 6762 repurposes from the top bit of the class field,
// a TTL in seconds, and a tagged payload.
//
// A TTL of TombstoneTTL marks the resource cancelled while still queued;
// the engine skips it during message assembly. A TTL of 0 is a "goodbye"
// announcement; after it is sent once the engine rewrites the TTL to
// TombstoneTTL so it is never sent again.
type Resource struct {
	Name        string
	Type        RRType
	Class       RRClass
	CacheFlush  bool
	TTL         uint32
	Payload     ResourcePayload
}

// TombstoneTTL is the sentinel TTL value marking a queued resource as
// cancelled. It is math.MaxUint32, spelled out here so call sites read
// naturally against the invariant it encodes.
const TombstoneTTL uint32 = 0xFFFFFFFF

// NewResource constructs a Resource and validates that its payload's tag
// matches its declared Type.
func NewResource(name string, rrtype RRType, class RRClass, cacheFlush bool, ttl uint32, payload ResourcePayload) (Resource, error) {
	r := Resource{
		Name:       name,
		Type:       rrtype,
		Class:      class,
		CacheFlush: cacheFlush,
		TTL:        ttl,
		Payload:    payload,
	}
	if err := r.Validate(); err != nil {
		return Resource{}, err
	}
	return r, nil
}

// Validate checks structural validity and that the payload tag matches Type.
func (r Resource) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("resource name must not be empty")
	}
	if !r.Class.IsValid() {
		return fmt.Errorf("unsupported RRClass: %d", r.Class)
	}
	if r.Payload == nil {
		return fmt.Errorf("resource payload must not be nil")
	}
	want := PayloadTag(r.Type)
	if !payloadTagValidForType(r.Type) {
		want = PayloadOPAQUE
	}
	if r.Payload.Tag() != want {
		return fmt.Errorf("payload tag %d does not match resource type %s", r.Payload.Tag(), r.Type)
	}
	return nil
}

func payloadTagValidForType(t RRType) bool {
	switch t {
	case RRTypeA, RRTypeAAAA, RRTypePTR, RRTypeCNAME, RRTypeNS, RRTypeSRV, RRTypeTXT, RRTypeNSEC:
		return true
	default:
		return false
	}
}

// IsTombstone reports whether the resource's TTL marks it cancelled.
func (r Resource) IsTombstone() bool { return r.TTL == TombstoneTTL }

// IsGoodbye reports whether the resource announces immediate expiry.
func (r Resource) IsGoodbye() bool { return r.TTL == 0 }

// Copy returns a value copy of the resource. Because ResourcePayload
// implementations are immutable value types, a shallow copy of the
// interface value is sufficient: the tag and the payload contents it
// guards travel together.
func (r Resource) Copy() Resource {
	return r
}
