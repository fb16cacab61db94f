package domain

import "fmt"

// RRType represents a DNS resource record type carried over mDNS.
// See IANA DNS Parameters for assigned codes.
type RRType uint16

// DNS Resource Record Type constants relevant to mDNS traffic.
const (
	RRTypeA     RRType = 1   // A - IPv4 address
	RRTypeNS    RRType = 2   // NS - Name server
	RRTypeCNAME RRType = 5   // CNAME - Canonical name
	RRTypePTR   RRType = 12  // PTR - Pointer
	RRTypeTXT   RRType = 16  // TXT - Text
	RRTypeAAAA  RRType = 28  // AAAA - IPv6 address
	RRTypeSRV   RRType = 33  // SRV - Service
	RRTypeNSEC  RRType = 47  // NSEC - Next secure
	RRTypeANY   RRType = 255 // ANY - Any type (query only)
)

// IsValid returns true if the RRType is one of the types this engine
// recognizes by name. It governs Question construction, where a type this
// engine cannot name is not one it can meaningfully query for. A Resource
// carrying an unrecognized type is a separate case, handled by
// payloadTagValidForType forwarding it as an OpaquePayload.
func (t RRType) IsValid() bool {
	switch t {
	case RRTypeA, RRTypeNS, RRTypeCNAME, RRTypePTR, RRTypeTXT, RRTypeAAAA,
		RRTypeSRV, RRTypeNSEC, RRTypeANY:
		return true
	default:
		return false
	}
}

// String returns the textual representation of the RRType.
func (t RRType) String() string {
	switch t {
	case RRTypeA:
		return "A"
	case RRTypeNS:
		return "NS"
	case RRTypeCNAME:
		return "CNAME"
	case RRTypePTR:
		return "PTR"
	case RRTypeTXT:
		return "TXT"
	case RRTypeAAAA:
		return "AAAA"
	case RRTypeSRV:
		return "SRV"
	case RRTypeNSEC:
		return "NSEC"
	case RRTypeANY:
		return "ANY"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint16(t))
	}
}

// RRTypeFromString converts a record type name to its RRType value.
func RRTypeFromString(s string) RRType {
	switch s {
	case "A":
		return RRTypeA
	case "NS":
		return RRTypeNS
	case "CNAME":
		return RRTypeCNAME
	case "PTR":
		return RRTypePTR
	case "TXT":
		return RRTypeTXT
	case "AAAA":
		return RRTypeAAAA
	case "SRV":
		return RRTypeSRV
	case "NSEC":
		return RRTypeNSEC
	case "ANY":
		return RRTypeANY
	default:
		return 0
	}
}
