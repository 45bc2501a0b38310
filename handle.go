package ethercap

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// bpfOps is the system call surface a Handle needs. The bsd implementation
// talks to the kernel; tests substitute their own.
type bpfOps interface {
	// Open opens path non-blocking for reading and writing.
	Open(path string) (fd int, err error)
	SetBlocking(fd int) error
	SetInterface(fd int, name string) error
	SetPromiscuous(fd int) error
	SetImmediate(fd int, enable bool) error
	BufferLen(fd int) (int, error)
	LinkType(fd int) (uint32, error)
	// Read returns 0, nil when interrupted before any data arrived.
	Read(fd int, p []byte) (int, error)
	Close(fd int) error
}

// Handle is an open, configured capture device bound to one interface.
// It is not safe for concurrent use, except for Close.
type Handle struct {
	ops      bpfOps
	fd       int
	iface    string
	device   string
	buf      []byte
	linkType uint32
	close    sync.Once
	closed   atomic.Bool
	closeErr error
}

// Open acquires the first free capture device, binds it to cfg.Interface and
// enables immediate mode. Every error it returns is fatal to the capture.
func Open(cfg Config) (*Handle, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ops, err := newOps()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return openHandle(cfg, ops)
}

func openHandle(cfg Config, ops bpfOps) (*Handle, error) {
	logger := log.WithFields(log.Fields{
		"iface":       cfg.Interface,
		"promiscuous": cfg.Promiscuous,
		"maxDevices":  cfg.MaxDevices,
	})
	logger.Debug("started")

	fd, device, err := probe(cfg, ops)
	if err != nil {
		return nil, err
	}
	logger = logger.WithField("device", device)
	logger.Infof("opened bpf device (file descriptor = %d)", fd)

	h := &Handle{
		ops:      ops,
		fd:       fd,
		iface:    cfg.Interface,
		device:   device,
		linkType: LinkTypeUnknown,
	}
	if err := h.configure(cfg, logger); err != nil {
		_ = h.Close()
		return nil, err
	}
	return h, nil
}

// probe walks the device indexes in order until one opens. A permission
// error ends the walk at once, since every other index will refuse us too.
func probe(cfg Config, ops bpfOps) (fd int, device string, err error) {
	var lastErr error
	for i := 0; i < cfg.MaxDevices; i++ {
		device = fmt.Sprintf(cfg.DevicePath, i)
		fd, err = ops.Open(device)
		if err == nil {
			if err = ops.SetBlocking(fd); err == nil {
				return fd, device, nil
			}
			_ = ops.Close(fd)
		}
		if errors.Is(err, fs.ErrPermission) {
			return -1, "", &SetupError{Kind: ErrPermissionDenied, Interface: cfg.Interface, Device: device, Err: err}
		}
		log.WithFields(log.Fields{"device": device, "error": err}).Trace("bpf device unavailable")
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no devices probed")
	}
	return -1, "", &SetupError{
		Kind:      ErrDeviceExhausted,
		Interface: cfg.Interface,
		Err:       fmt.Errorf("gave up after %d tries, last error: %w", cfg.MaxDevices, lastErr),
	}
}

func (h *Handle) configure(cfg Config, logger *log.Entry) error {
	setupErr := func(kind, err error) error {
		return &SetupError{Kind: kind, Interface: h.iface, Device: h.device, Err: err}
	}

	if err := h.ops.SetInterface(h.fd, h.iface); err != nil {
		return setupErr(ErrBindFailed, err)
	}
	logger.Debug("bound to interface")

	if cfg.Promiscuous {
		if err := h.ops.SetPromiscuous(h.fd); err != nil {
			return setupErr(ErrPromiscuousFailed, err)
		}
		logger.Debug("promiscuous mode on")
	}

	// reads return as soon as any packet is buffered instead of waiting for
	// the buffer to fill
	if err := h.ops.SetImmediate(h.fd, true); err != nil {
		return setupErr(ErrImmediateModeFailed, err)
	}
	logger.Debug("immediate mode on")

	size, err := h.ops.BufferLen(h.fd)
	if err != nil {
		return setupErr(ErrBufferQueryFailed, err)
	}
	if size <= 0 {
		return setupErr(ErrBufferQueryFailed, fmt.Errorf("device reported a buffer length of %d", size))
	}
	h.buf = make([]byte, size)

	linkType, err := h.ops.LinkType(h.fd)
	switch {
	case err != nil:
		logger.WithError(err).Warn("failed to get link type")
	case linkType != LinkTypeEthernet:
		logger.WithField("linkType", linkType).Warn("interface is not Ethernet, frames will not decode correctly")
	}
	if err == nil {
		h.linkType = linkType
	}

	logger.WithFields(log.Fields{
		"bufferLen": size,
		"linkType":  h.linkType,
	}).Info("capture device ready")
	return nil
}

// ReadBatch blocks until the device has data and returns the bytes read. The
// returned slice is reused by the next call. An interrupted read returns an
// empty batch and no error.
func (h *Handle) ReadBatch() ([]byte, error) {
	if h.closed.Load() {
		return nil, fmt.Errorf("%w on %s: %w", ErrReadFailed, h.device, os.ErrClosed)
	}
	// must memset the buffer
	clear(h.buf)
	n, err := h.ops.Read(h.fd, h.buf)
	if err != nil {
		return nil, fmt.Errorf("%w on %s: %w", ErrReadFailed, h.device, err)
	}
	if n < 0 || n > len(h.buf) {
		return nil, fmt.Errorf("%w on %s: read returned %d for a %d byte buffer", ErrReadFailed, h.device, n, len(h.buf))
	}
	return h.buf[:n], nil
}

// Close releases the device. It is idempotent and only the first call does
// any work.
func (h *Handle) Close() error {
	h.close.Do(func() {
		h.closed.Store(true)
		h.closeErr = h.ops.Close(h.fd)
	})
	return h.closeErr
}

// Interface returns the name of the bound network interface.
func (h *Handle) Interface() string {
	return h.iface
}

// Device returns the path of the opened device.
func (h *Handle) Device() string {
	return h.device
}

// BufferLen returns the buffer length negotiated with the device.
func (h *Handle) BufferLen() int {
	return len(h.buf)
}

// LinkType return the link type, compliant with pcap-linktype(7) and http://www.tcpdump.org/linktypes.html.
// LinkTypeUnknown when the device would not say.
func (h *Handle) LinkType() uint32 {
	return h.linkType
}
