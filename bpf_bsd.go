//go:build darwin || freebsd

package ethercap

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

const enable = 1

type unixOps struct{}

func newOps() (bpfOps, error) {
	return unixOps{}, nil
}

func (unixOps) Open(path string) (int, error) {
	return unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0000)
}

// SetBlocking clears O_NONBLOCK so reads wait for data.
func (unixOps) SetBlocking(fd int) error {
	return unix.SetNonblock(fd, false)
}

// ifreq is struct ifreq: the name followed by a union we leave zeroed.
type ifreq struct {
	name [unix.IFNAMSIZ]byte
	_    [24]byte
}

func (unixOps) SetInterface(fd int, name string) error {
	if len(name) >= unix.IFNAMSIZ {
		return fmt.Errorf("interface name %q is longer than %d bytes", name, unix.IFNAMSIZ-1)
	}
	var req ifreq
	copy(req.name[:], name)
	return ioctlPtr(fd, unix.BIOCSETIF, unsafe.Pointer(&req))
}

func (unixOps) SetPromiscuous(fd int) error {
	// BIOCPROMISC takes no argument
	return unix.IoctlSetInt(fd, unix.BIOCPROMISC, 0)
}

func (unixOps) SetImmediate(fd int, on bool) error {
	m := 0
	if on {
		m = enable
	}
	return unix.IoctlSetPointerInt(fd, unix.BIOCIMMEDIATE, m)
}

func (unixOps) BufferLen(fd int) (int, error) {
	return unix.IoctlGetInt(fd, unix.BIOCGBLEN)
}

func (unixOps) LinkType(fd int) (uint32, error) {
	linkType, err := unix.IoctlGetInt(fd, unix.BIOCGDLT)
	if err != nil {
		return LinkTypeUnknown, err
	}
	return uint32(linkType), nil
}

func (unixOps) Read(fd int, p []byte) (int, error) {
	n, err := unix.Read(fd, p)
	if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
		return 0, nil
	}
	return n, err
}

func (unixOps) Close(fd int) error {
	return unix.Close(fd)
}

func ioctlPtr(fd int, req uint, valPtr unsafe.Pointer) error {
	//nolint:staticcheck // unix.SYS_IOCTL is deprecated, but golang does not provide a better alternative
	// as of this writing for passing pointers
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(valPtr))
	if errno != 0 {
		return errno
	}
	return nil
}
