//go:build !darwin && !freebsd

package ethercap

func newOps() (bpfOps, error) {
	return nil, ErrUnsupportedPlatform
}
