package ethercap

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration means the capture was asked to run with settings it
	// cannot honour. Nothing has been opened yet.
	ErrConfiguration = errors.New("invalid capture configuration")
	// ErrUnsupportedPlatform means this OS has no bpf devices.
	ErrUnsupportedPlatform = errors.New("bpf devices are not supported on this platform")

	ErrPermissionDenied    = errors.New("permission denied opening bpf device")
	ErrDeviceExhausted     = errors.New("no bpf device available")
	ErrBindFailed          = errors.New("failed to bind bpf device to interface")
	ErrPromiscuousFailed   = errors.New("failed to enable promiscuous mode")
	ErrImmediateModeFailed = errors.New("failed to enable immediate mode")
	ErrBufferQueryFailed   = errors.New("failed to read bpf buffer length")

	// ErrReadFailed wraps a read(2) failure on an open device.
	ErrReadFailed = errors.New("error reading from bpf device")
	// ErrCorruptBatch means a record header points outside the batch it
	// was read in. The rest of that batch is unusable.
	ErrCorruptBatch = errors.New("corrupt capture batch")
)

// SetupError describes a failure while acquiring or configuring a capture
// device. errors.Is matches both Kind and the underlying OS error.
type SetupError struct {
	Kind      error
	Interface string
	Device    string
	Err       error
}

func (e *SetupError) Error() string {
	msg := fmt.Sprintf("%v for interface %q", e.Kind, e.Interface)
	if e.Device != "" {
		msg += " on " + e.Device
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SetupError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// IsFatal reports whether err must stop a capture. Per-record errors such as
// a truncated frame or a corrupt batch are not fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var setupErr *SetupError
	return errors.As(err, &setupErr) ||
		errors.Is(err, ErrConfiguration) ||
		errors.Is(err, ErrUnsupportedPlatform) ||
		errors.Is(err, ErrReadFailed)
}
