package ethernet

import (
	"fmt"

	"github.com/google/gopacket/layers"
)

var etherTypeNames = map[layers.EthernetType]string{
	layers.EthernetTypeIPv4:  "IPv4",
	layers.EthernetTypeIPv6:  "IPv6",
	layers.EthernetTypeARP:   "ARP",
	layers.EthernetTypeDot1Q: "802.1Q",
}

// EtherTypeName returns a short name for t, or its hexadecimal form when
// t is not one we know about.
func EtherTypeName(t layers.EthernetType) string {
	if name, ok := etherTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("0x%04x", uint16(t))
}

// IsKnownEtherType reports whether EtherTypeName has a name for t.
func IsKnownEtherType(t layers.EthernetType) bool {
	_, ok := etherTypeNames[t]
	return ok
}
