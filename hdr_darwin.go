package ethercap

// Darwin stores bh_tstamp as a struct timeval32 and aligns records on
// sizeof(int32_t).
const (
	bpfTimestampLen = 8
	bpfAlignment    = 4
)
