// Package pcapfile saves captured frames to a pcap savefile.
package pcapfile

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Writer appends Ethernet frames to a savefile.
type Writer struct {
	f   *os.File
	buf *bufio.Writer
	w   *pcapgo.Writer
}

// Create truncates or creates path and writes the file header. snaplen should
// be the largest frame that can be captured, usually the device buffer length.
func Create(path string, snaplen uint32) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	w, err := newWriter(f, snaplen)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to write pcap header to %s: %w", path, err)
	}
	w.f = f
	return w, nil
}

func newWriter(out io.Writer, snaplen uint32) (*Writer, error) {
	buf := bufio.NewWriter(out)
	w := pcapgo.NewWriter(buf)
	if err := w.WriteFileHeader(snaplen, layers.LinkTypeEthernet); err != nil {
		return nil, err
	}
	return &Writer{buf: buf, w: w}, nil
}

// WritePacket copies one frame into the file; data is not retained.
func (w *Writer) WritePacket(ci gopacket.CaptureInfo, data []byte) error {
	return w.w.WritePacket(ci, data)
}

// Flush pushes buffered packets to the underlying writer.
func (w *Writer) Flush() error {
	return w.buf.Flush()
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	err := w.Flush()
	if w.f != nil {
		if cerr := w.f.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
