// Package format renders decoded frames for people to read.
package format

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/google/gopacket"

	"github.com/packetcap/go-ethercap/ethernet"
)

// Printer writes one multi-line block per frame.
type Printer struct {
	w io.Writer
	// MaxPayload caps the bytes of payload dumped per frame; 0 dumps it all.
	MaxPayload int
	count      uint64
}

// NewPrinter returns a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Print renders f. It does not keep f or any of its slices.
func (p *Printer) Print(f *ethernet.Frame, ci gopacket.CaptureInfo) error {
	p.count++
	bw := bufio.NewWriter(p.w)
	fmt.Fprintf(bw, "#%d %s captured %d of %d bytes\n",
		p.count, ci.Timestamp.Format("15:04:05.000000"), ci.CaptureLength, ci.Length)
	fmt.Fprintf(bw, "  EtherType:   %s\n", EtherType(f))
	if f.Tagged {
		fmt.Fprintf(bw, "  VLAN:        0x%04x (id %d, priority %d", f.TCI, f.VLANID(), f.PCP())
		if f.DEI() {
			bw.WriteString(", drop eligible")
		}
		bw.WriteString(")\n")
	}
	fmt.Fprintf(bw, "  Destination: %s\n", MAC(f.Destination))
	fmt.Fprintf(bw, "  Source:      %s\n", MAC(f.Source))

	payload := f.Payload
	fmt.Fprintf(bw, "  Payload:     %d bytes\n", len(payload))
	if p.MaxPayload > 0 && len(payload) > p.MaxPayload {
		payload = payload[:p.MaxPayload]
	}
	if len(payload) > 0 {
		bw.WriteString(indent(hex.Dump(payload), "    "))
	}
	if len(payload) < len(f.Payload) {
		fmt.Fprintf(bw, "    ... %d more bytes\n", len(f.Payload)-len(payload))
	}
	bw.WriteString("\n")
	return bw.Flush()
}

// EtherType names the effective EtherType of f together with its value.
func EtherType(f *ethernet.Frame) string {
	if ethernet.IsKnownEtherType(f.EtherType) {
		return fmt.Sprintf("%s (0x%04x)", ethernet.EtherTypeName(f.EtherType), uint16(f.EtherType))
	}
	return ethernet.EtherTypeName(f.EtherType)
}

// MAC renders addr as upper-case hex pairs joined by hyphens.
func MAC(addr net.HardwareAddr) string {
	var sb strings.Builder
	for i, b := range addr {
		if i > 0 {
			sb.WriteByte('-')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

func indent(s, prefix string) string {
	lines := strings.SplitAfter(s, "\n")
	var sb strings.Builder
	for _, l := range lines {
		if l == "" {
			continue
		}
		sb.WriteString(prefix)
		sb.WriteString(l)
	}
	return sb.String()
}
