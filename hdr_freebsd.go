package ethercap

import "unsafe"

// FreeBSD stores bh_tstamp as a native struct timeval and aligns records on
// sizeof(long).
const (
	bpfAlignment    = int(unsafe.Sizeof(uintptr(0)))
	bpfTimestampLen = 2 * bpfAlignment
)
