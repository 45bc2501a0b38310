// Package ethernet decodes captured link-layer bytes into Ethernet frame views.
//
// A Frame never owns memory: its addresses and payload are sub-slices of the
// buffer passed to Decode, so it is only valid for as long as that buffer is.
package ethernet

import (
	"errors"
	"net"

	"github.com/google/gopacket/layers"
)

const (
	// HeaderLen is the size of an untagged Ethernet header.
	HeaderLen = 14
	// TaggedHeaderLen is the size of an Ethernet header carrying one 802.1Q tag.
	TaggedHeaderLen = 18

	// TPID is the tag protocol identifier announcing an 802.1Q tag.
	TPID = 0x8100

	addrLen = 6
)

// ErrTruncatedFrame is returned when a buffer is too short to hold the
// Ethernet header it announces.
var ErrTruncatedFrame = errors.New("truncated ethernet frame")

// Frame is a structured view over one captured Ethernet frame.
type Frame struct {
	Destination net.HardwareAddr
	Source      net.HardwareAddr
	// Tagged reports whether an 802.1Q tag was present; TCI is only
	// meaningful when it is set.
	Tagged    bool
	TCI       uint16
	EtherType layers.EthernetType
	Payload   []byte
	// Raw is the whole frame, header included.
	Raw []byte
}

// Decode interprets b as an Ethernet frame.
func Decode(b []byte) (Frame, error) {
	var f Frame
	err := f.DecodeFromBytes(b)
	return f, err
}

// DecodeFromBytes fills f from b, overwriting every field. On error f is
// reset to its zero value.
func (f *Frame) DecodeFromBytes(b []byte) error {
	*f = Frame{}
	if len(b) < HeaderLen {
		return ErrTruncatedFrame
	}
	t := be16(b[12], b[13])
	offset := HeaderLen
	if t == TPID {
		if len(b) < TaggedHeaderLen {
			return ErrTruncatedFrame
		}
		f.Tagged = true
		f.TCI = be16(b[14], b[15])
		t = be16(b[16], b[17])
		offset = TaggedHeaderLen
	}
	f.Destination = net.HardwareAddr(b[0:addrLen:addrLen])
	f.Source = net.HardwareAddr(b[addrLen : 2*addrLen : 2*addrLen])
	f.EtherType = layers.EthernetType(t)
	f.Payload = b[offset:]
	f.Raw = b
	return nil
}

// HeaderLen returns the number of header octets preceding the payload.
func (f *Frame) HeaderLen() int {
	if f.Tagged {
		return TaggedHeaderLen
	}
	return HeaderLen
}

// VLAN returns the tag control information and whether a tag was present.
func (f *Frame) VLAN() (tci uint16, ok bool) {
	return f.TCI, f.Tagged
}

// PCP returns the 802.1p priority code point of the tag.
func (f *Frame) PCP() uint8 {
	return uint8(f.TCI >> 13)
}

// DEI returns the drop eligible indicator of the tag.
func (f *Frame) DEI() bool {
	return f.TCI&0x1000 != 0
}

// VLANID returns the 12-bit VLAN identifier of the tag.
func (f *Frame) VLANID() uint16 {
	return f.TCI & 0x0fff
}

// be16 composes a network byte order 16-bit value.
func be16(hi, lo byte) uint16 {
	return uint16(hi)<<8 | uint16(lo)
}
