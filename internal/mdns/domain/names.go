package domain

import (
	"fmt"
	"strings"

	"github.com/mdnsd/mdnsd/internal/dns/common/utils"
)

// NamesEqual compares two DNS names the way RFC 6762 requires: case
// insensitively and independent of a trailing root dot.
func NamesEqual(a, b string) bool {
	return utils.CanonicalDNSName(a) == utils.CanonicalDNSName(b)
}

// CanonicalKey returns a DNS name in the canonical form suitable for use
// as a map key, so names differing only by case or a trailing dot collapse
// to a single tracked entry.
func CanonicalKey(name string) string {
	return utils.CanonicalDNSName(name)
}

// LocalHostFullName builds the ".local." qualified full name the engine
// advertises for a bare host name, e.g. "alpha" -> "alpha.local.".
// A name already ending in ".local." is returned unchanged.
func LocalHostFullName(host string) string {
	host = strings.TrimSuffix(host, ".")
	if strings.HasSuffix(host, ".local") {
		return host + "."
	}
	return host + ".local."
}

// LocalServiceFullName builds the ".local." qualified full name for a
// service type, e.g. "_printer._tcp" -> "_printer._tcp.local.".
func LocalServiceFullName(service string) string {
	service = strings.TrimSuffix(service, ".")
	if strings.HasSuffix(service, ".local") {
		return service + "."
	}
	return service + ".local."
}

// LocalInstanceFullName builds the full name of a service instance, e.g.
// instance "lp1" of service "_printer._tcp" -> "lp1._printer._tcp.local.".
func LocalInstanceFullName(instance, service string) string {
	return instance + "." + LocalServiceFullName(service)
}

// ServiceFullNameFromInstanceFullName strips the leading instance label
// from a full instance name, recovering the service's full name.
func ServiceFullNameFromInstanceFullName(instanceFullName string) (string, error) {
	parts := strings.SplitN(instanceFullName, ".", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("not a valid instance full name: %q", instanceFullName)
	}
	return parts[1], nil
}

// IsValidServiceName reports whether a service name has the expected
// "_service._proto" shape, e.g. "_printer._tcp" or "_http._udp".
func IsValidServiceName(service string) bool {
	service = strings.TrimSuffix(strings.TrimSuffix(service, "."), ".local")
	parts := strings.Split(service, ".")
	if len(parts) != 2 {
		return false
	}
	if !strings.HasPrefix(parts[0], "_") || len(parts[0]) < 2 {
		return false
	}
	switch parts[1] {
	case "_tcp", "_udp":
		return true
	default:
		return false
	}
}

// IsValidInstanceName reports whether a bare instance label is non-empty
// and free of the DNS label separator.
func IsValidInstanceName(instance string) bool {
	return instance != "" && !strings.Contains(instance, ".")
}
