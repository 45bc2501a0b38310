package ethercap

// constants, see compliant with pcap-linktype(7) and http://www.tcpdump.org/linktypes.html.
const (
	LinkTypeNull     uint32 = 0x0
	LinkTypeEthernet uint32 = 0x01
	// LinkTypeUnknown is reported when the device would not tell us.
	LinkTypeUnknown uint32 = 0xffffffff
)

const (
	// DefaultDevicePath is the printf pattern probed for capture devices.
	DefaultDevicePath = "/dev/bpf%d"
	// DefaultMaxDevices bounds how many device indexes are probed.
	DefaultMaxDevices = 99
)
