package ethercap

import (
	"fmt"
	"strings"
)

// Config is everything a Loop or Handle needs to know before opening a device.
// It is built once at startup and passed by value.
type Config struct {
	// Interface is the network interface to bind to. Required.
	Interface string
	// DevicePath is a printf pattern with one %d verb for the device index.
	DevicePath string
	// MaxDevices bounds the probe over DevicePath indexes.
	MaxDevices int
	// Promiscuous puts the interface in promiscuous mode after binding.
	Promiscuous bool
	// Format describes the record layout; the zero value means the native
	// layout of the running platform.
	Format RecordFormat
}

func (c Config) withDefaults() Config {
	if c.DevicePath == "" {
		c.DevicePath = DefaultDevicePath
	}
	if c.MaxDevices == 0 {
		c.MaxDevices = DefaultMaxDevices
	}
	return c
}

// Validate checks c after defaults are applied.
func (c Config) Validate() error {
	c = c.withDefaults()
	if c.Interface == "" {
		return fmt.Errorf("%w: a network interface name must be specified", ErrConfiguration)
	}
	if c.MaxDevices < 0 {
		return fmt.Errorf("%w: max devices must be positive, got %d", ErrConfiguration, c.MaxDevices)
	}
	// the pattern must consume exactly one index and produce distinct paths
	first, second := fmt.Sprintf(c.DevicePath, 0), fmt.Sprintf(c.DevicePath, 1)
	if strings.Contains(first, "%!") || first == second {
		return fmt.Errorf("%w: device path %q must contain exactly one %%d", ErrConfiguration, c.DevicePath)
	}
	if !c.Format.IsZero() {
		if err := c.Format.validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
	}
	return nil
}

// recordFormat returns the configured format, falling back to the native one.
func (c Config) recordFormat() (RecordFormat, error) {
	if !c.Format.IsZero() {
		return c.Format, nil
	}
	f, err := NativeRecordFormat()
	if err != nil {
		return RecordFormat{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return f, nil
}
