package wire

import (
	"encoding/binary"
	"fmt"
	"net"
	"strings"

	"github.com/mdnsd/mdnsd/internal/mdns/domain"
)

const (
	classUnicastResponseBit uint16 = 1 << 15
	classCacheFlushBit      uint16 = 1 << 15
	classMask               uint16 = 0x7FFF

	maxCompressionOffset = 0x3FFF
	maxPointerHops        = 64
)

// dnsCodec is the concrete Codec implementation used by the transceiver.
type dnsCodec struct{}

// NewCodec returns the standard RFC 1035 / RFC 6762 wire codec.
func NewCodec() Codec {
	return dnsCodec{}
}

func (dnsCodec) Encode(m *domain.Message) ([]byte, error) {
	m.UpdateCounts()

	buf := make([]byte, 12, 512)
	binary.BigEndian.PutUint16(buf[0:2], m.Header.ID)
	binary.BigEndian.PutUint16(buf[2:4], m.Header.Flags)
	binary.BigEndian.PutUint16(buf[4:6], m.Header.QDCount)
	binary.BigEndian.PutUint16(buf[6:8], m.Header.ANCount)
	binary.BigEndian.PutUint16(buf[8:10], m.Header.NSCount)
	binary.BigEndian.PutUint16(buf[10:12], m.Header.ARCount)

	names := make(map[string]int)

	for _, q := range m.Questions {
		buf = encodeName(buf, names, q.Name)
		buf = append(buf, 0, 0)
		binary.BigEndian.PutUint16(buf[len(buf)-2:], uint16(q.Type))
		class := uint16(q.Class) & classMask
		if q.UnicastResponse {
			class |= classUnicastResponseBit
		}
		buf = append(buf, 0, 0)
		binary.BigEndian.PutUint16(buf[len(buf)-2:], class)
	}

	sections := [][]domain.Resource{m.Answers, m.Authorities, m.Additionals}
	for _, section := range sections {
		for _, r := range section {
			var err error
			buf, err = encodeResource(buf, names, r)
			if err != nil {
				return nil, err
			}
		}
	}

	return buf, nil
}

func encodeResource(buf []byte, names map[string]int, r domain.Resource) ([]byte, error) {
	buf = encodeName(buf, names, r.Name)

	buf = appendUint16(buf, uint16(r.Type))
	class := uint16(r.Class) & classMask
	if r.CacheFlush {
		class |= classCacheFlushBit
	}
	buf = appendUint16(buf, class)
	buf = appendUint32(buf, r.TTL)

	lenPos := len(buf)
	buf = append(buf, 0, 0) // rdlength placeholder

	rdataStart := len(buf)
	var err error
	buf, err = encodeRData(buf, names, r)
	if err != nil {
		return nil, err
	}

	binary.BigEndian.PutUint16(buf[lenPos:lenPos+2], uint16(len(buf)-rdataStart))
	return buf, nil
}

func encodeRData(buf []byte, names map[string]int, r domain.Resource) ([]byte, error) {
	switch p := r.Payload.(type) {
	case domain.AddressPayload:
		ip := p.Addr.To4()
		if ip == nil {
			return nil, fmt.Errorf("A record %q has no usable IPv4 address", r.Name)
		}
		return append(buf, ip...), nil
	case domain.AAAAPayload:
		ip := p.Addr.To16()
		if ip == nil {
			return nil, fmt.Errorf("AAAA record %q has no usable IPv6 address", r.Name)
		}
		return append(buf, ip...), nil
	case domain.PTRPayload:
		return encodeName(buf, names, p.Name), nil
	case domain.CNAMEPayload:
		return encodeName(buf, names, p.Name), nil
	case domain.NSPayload:
		return encodeName(buf, names, p.Name), nil
	case domain.SRVPayload:
		buf = appendUint16(buf, p.Priority)
		buf = appendUint16(buf, p.Weight)
		buf = appendUint16(buf, p.Port)
		return encodeName(buf, names, p.Target), nil
	case domain.TXTPayload:
		for _, s := range p.Strings {
			if len(s) > 255 {
				return nil, fmt.Errorf("TXT string exceeds 255 bytes")
			}
			buf = append(buf, byte(len(s)))
			buf = append(buf, s...)
		}
		return buf, nil
	case domain.NSECPayload:
		buf = encodeName(buf, names, p.NextName)
		return append(buf, p.TypeMap...), nil
	case domain.OpaquePayload:
		return append(buf, p.RData...), nil
	default:
		return nil, fmt.Errorf("unsupported payload type %T for resource %q", r.Payload, r.Name)
	}
}

// encodeName writes name in DNS label form, compressing against any
// previously written suffix recorded in names. The root name "." is
// written as a single zero-length terminator.
func encodeName(buf []byte, names map[string]int, name string) []byte {
	name = strings.TrimSuffix(name, ".")
	if name == "" {
		return append(buf, 0)
	}
	labels := strings.Split(name, ".")

	for i := 0; i < len(labels); i++ {
		suffix := strings.Join(labels[i:], ".") + "."
		if off, ok := names[suffix]; ok {
			buf = appendUint16(buf, uint16(0xC000|off))
			return buf
		}
		if len(buf) <= maxCompressionOffset {
			names[suffix] = len(buf)
		}
		label := labels[i]
		buf = append(buf, byte(len(label)))
		buf = append(buf, label...)
	}
	return append(buf, 0)
}

func appendUint16(buf []byte, v uint16) []byte {
	buf = append(buf, 0, 0)
	binary.BigEndian.PutUint16(buf[len(buf)-2:], v)
	return buf
}

func appendUint32(buf []byte, v uint32) []byte {
	buf = append(buf, 0, 0, 0, 0)
	binary.BigEndian.PutUint32(buf[len(buf)-4:], v)
	return buf
}

func (dnsCodec) Decode(data []byte) (*domain.Message, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("mdns: packet too short: %d bytes", len(data))
	}

	m := &domain.Message{
		Header: domain.Header{
			ID:      binary.BigEndian.Uint16(data[0:2]),
			Flags:   binary.BigEndian.Uint16(data[2:4]),
			QDCount: binary.BigEndian.Uint16(data[4:6]),
			ANCount: binary.BigEndian.Uint16(data[6:8]),
			NSCount: binary.BigEndian.Uint16(data[8:10]),
			ARCount: binary.BigEndian.Uint16(data[10:12]),
		},
	}

	off := 12
	var err error

	m.Questions = make([]domain.Question, 0, m.Header.QDCount)
	for i := uint16(0); i < m.Header.QDCount; i++ {
		var name string
		name, off, err = decodeName(data, off)
		if err != nil {
			return nil, fmt.Errorf("mdns: question %d: %w", i, err)
		}
		if off+4 > len(data) {
			return nil, fmt.Errorf("mdns: question %d: truncated", i)
		}
		qtype := domain.RRType(binary.BigEndian.Uint16(data[off : off+2]))
		rawClass := binary.BigEndian.Uint16(data[off+2 : off+4])
		off += 4
		m.Questions = append(m.Questions, domain.Question{
			Name:            name,
			Type:            qtype,
			Class:           domain.RRClass(rawClass & classMask),
			UnicastResponse: rawClass&classUnicastResponseBit != 0,
		})
	}

	sectionCounts := []struct {
		count uint16
		dst   *[]domain.Resource
	}{
		{m.Header.ANCount, &m.Answers},
		{m.Header.NSCount, &m.Authorities},
		{m.Header.ARCount, &m.Additionals},
	}
	for _, sec := range sectionCounts {
		for i := uint16(0); i < sec.count; i++ {
			var r domain.Resource
			r, off, err = decodeResource(data, off)
			if err != nil {
				return nil, fmt.Errorf("mdns: resource %d: %w", i, err)
			}
			*sec.dst = append(*sec.dst, r)
		}
	}

	return m, nil
}

func decodeResource(data []byte, off int) (domain.Resource, int, error) {
	name, off, err := decodeName(data, off)
	if err != nil {
		return domain.Resource{}, off, err
	}
	if off+10 > len(data) {
		return domain.Resource{}, off, fmt.Errorf("truncated resource header")
	}
	rtype := domain.RRType(binary.BigEndian.Uint16(data[off : off+2]))
	rawClass := binary.BigEndian.Uint16(data[off+2 : off+4])
	ttl := binary.BigEndian.Uint32(data[off+4 : off+8])
	rdlength := int(binary.BigEndian.Uint16(data[off+8 : off+10]))
	off += 10

	if off+rdlength > len(data) {
		return domain.Resource{}, off, fmt.Errorf("truncated rdata")
	}
	rdata := data[off : off+rdlength]
	rdataEnd := off + rdlength

	payload, err := decodeRData(data, off, rdataEnd, rtype, rdata)
	if err != nil {
		return domain.Resource{}, off, err
	}

	r := domain.Resource{
		Name:       name,
		Type:       rtype,
		Class:      domain.RRClass(rawClass & classMask),
		CacheFlush: rawClass&classCacheFlushBit != 0,
		TTL:        ttl,
		Payload:    payload,
	}
	return r, rdataEnd, nil
}

func decodeRData(data []byte, rdataOff, rdataEnd int, rtype domain.RRType, rdata []byte) (domain.ResourcePayload, error) {
	switch rtype {
	case domain.RRTypeA:
		if len(rdata) != 4 {
			return nil, fmt.Errorf("A record rdata must be 4 bytes, got %d", len(rdata))
		}
		return domain.AddressPayload{Addr: net.IP(append([]byte{}, rdata...))}, nil
	case domain.RRTypeAAAA:
		if len(rdata) != 16 {
			return nil, fmt.Errorf("AAAA record rdata must be 16 bytes, got %d", len(rdata))
		}
		return domain.AAAAPayload{Addr: net.IP(append([]byte{}, rdata...))}, nil
	case domain.RRTypePTR:
		name, _, err := decodeName(data, rdataOff)
		if err != nil {
			return nil, err
		}
		return domain.PTRPayload{NamePayload: domain.NamePayload{Name: name}}, nil
	case domain.RRTypeCNAME:
		name, _, err := decodeName(data, rdataOff)
		if err != nil {
			return nil, err
		}
		return domain.CNAMEPayload{NamePayload: domain.NamePayload{Name: name}}, nil
	case domain.RRTypeNS:
		name, _, err := decodeName(data, rdataOff)
		if err != nil {
			return nil, err
		}
		return domain.NSPayload{NamePayload: domain.NamePayload{Name: name}}, nil
	case domain.RRTypeSRV:
		if len(rdata) < 6 {
			return nil, fmt.Errorf("SRV record rdata too short: %d bytes", len(rdata))
		}
		target, _, err := decodeName(data, rdataOff+6)
		if err != nil {
			return nil, err
		}
		return domain.SRVPayload{
			Priority: binary.BigEndian.Uint16(rdata[0:2]),
			Weight:   binary.BigEndian.Uint16(rdata[2:4]),
			Port:     binary.BigEndian.Uint16(rdata[4:6]),
			Target:   target,
		}, nil
	case domain.RRTypeTXT:
		var strs [][]byte
		for p := 0; p < len(rdata); {
			n := int(rdata[p])
			p++
			if p+n > len(rdata) {
				return nil, fmt.Errorf("TXT record string overruns rdata")
			}
			strs = append(strs, append([]byte{}, rdata[p:p+n]...))
			p += n
		}
		return domain.TXTPayload{Strings: strs}, nil
	case domain.RRTypeNSEC:
		next, nextOff, err := decodeName(data, rdataOff)
		if err != nil {
			return nil, err
		}
		var typeMap []byte
		if nextOff < rdataEnd {
			typeMap = append([]byte{}, data[nextOff:rdataEnd]...)
		}
		return domain.NSECPayload{NextName: next, TypeMap: typeMap}, nil
	default:
		return domain.OpaquePayload{RData: append([]byte{}, rdata...)}, nil
	}
}

// decodeName parses a DNS name starting at off, following compression
// pointers, and returns the decoded name plus the offset immediately
// after the name as it appears at the call site (not following any
// jump).
func decodeName(data []byte, off int) (string, int, error) {
	var labels []string
	start := off
	jumped := false
	hops := 0

	for {
		if off >= len(data) {
			return "", off, fmt.Errorf("name extends past end of packet")
		}
		b := data[off]

		switch {
		case b == 0:
			off++
			if !jumped {
				start = off
			}
			name := "."
			if len(labels) > 0 {
				name = strings.Join(labels, ".") + "."
			}
			return name, start, nil

		case b&0xC0 == 0xC0:
			if off+1 >= len(data) {
				return "", off, fmt.Errorf("truncated compression pointer")
			}
			hops++
			if hops > maxPointerHops {
				return "", off, fmt.Errorf("too many compression pointer hops")
			}
			ptr := int(binary.BigEndian.Uint16(data[off:off+2]) &^ 0xC000)
			if !jumped {
				start = off + 2
			}
			jumped = true
			off = ptr

		default:
			n := int(b)
			off++
			if off+n > len(data) {
				return "", off, fmt.Errorf("label extends past end of packet")
			}
			labels = append(labels, string(data[off:off+n]))
			off += n
		}
	}
}
