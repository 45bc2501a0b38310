//go:build !darwin && !freebsd

package ethercap

// No bpf devices here; records use the Darwin layout so saved batches can
// still be parsed.
const (
	bpfTimestampLen = 8
	bpfAlignment    = 4
)
