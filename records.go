package ethercap

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
	"unsafe"

	"github.com/google/gopacket"
)

/*
 * From bpf.h:
 *
 *  struct bpf_hdr {
 *      struct BPF_TIMEVAL bh_tstamp;
 *      bpf_u_int32 bh_caplen;
 *      bpf_u_int32 bh_datalen;
 *      u_short bh_hdrlen;
 *  };
 *
 * bh_tstamp is a timeval32 on Darwin and a native timeval on FreeBSD.
 */
const bpfHdrFieldsLen = 4 + 4 + 2

// RecordFormat describes how records are laid out in a batch.
type RecordFormat struct {
	// TimestampLen is the size of bh_tstamp: 8 (two 32-bit fields) or
	// 16 (two 64-bit fields).
	TimestampLen int
	// Alignment is the BPF_WORDALIGN quantum, a power of two.
	Alignment int
	ByteOrder binary.ByteOrder
}

// NativeRecordFormat returns the record layout of the running platform.
func NativeRecordFormat() (RecordFormat, error) {
	endian, err := getEndianness()
	if err != nil {
		return RecordFormat{}, err
	}
	return RecordFormat{
		TimestampLen: bpfTimestampLen,
		Alignment:    bpfAlignment,
		ByteOrder:    endian,
	}, nil
}

// IsZero reports whether f is unset.
func (f RecordFormat) IsZero() bool {
	return f.TimestampLen == 0 && f.Alignment == 0 && f.ByteOrder == nil
}

// MinHeaderLen is the smallest bh_hdrlen a record can legitimately carry.
func (f RecordFormat) MinHeaderLen() int {
	return f.TimestampLen + bpfHdrFieldsLen
}

// WordAlign rounds n up to the next multiple of f.Alignment.
func (f RecordFormat) WordAlign(n int) int {
	return (n + f.Alignment - 1) &^ (f.Alignment - 1)
}

func (f RecordFormat) validate() error {
	if f.TimestampLen != 8 && f.TimestampLen != 16 {
		return fmt.Errorf("timestamp length must be 8 or 16, got %d", f.TimestampLen)
	}
	if f.Alignment <= 0 || f.Alignment&(f.Alignment-1) != 0 {
		return fmt.Errorf("alignment must be a power of two, got %d", f.Alignment)
	}
	if f.ByteOrder == nil {
		return errors.New("byte order is required")
	}
	return nil
}

func (f RecordFormat) timestamp(b []byte) time.Time {
	if f.TimestampLen == 16 {
		return time.Unix(int64(f.ByteOrder.Uint64(b)), int64(f.ByteOrder.Uint64(b[8:]))*1000)
	}
	return time.Unix(int64(int32(f.ByteOrder.Uint32(b))), int64(int32(f.ByteOrder.Uint32(b[4:])))*1000)
}

// Record is one captured frame inside a batch. Data aliases the batch and is
// only valid until the next read on the device.
type Record struct {
	// Offset of the record header within the batch.
	Offset    int
	HeaderLen int
	Info      gopacket.CaptureInfo
	Data      []byte
}

// Records iterates over the records of one batch:
//
//	recs := NewRecords(batch, format)
//	for recs.Next() {
//		rec := recs.Record()
//		...
//	}
//	if err := recs.Err(); err != nil {
//		...
//	}
type Records struct {
	batch  []byte
	format RecordFormat
	cursor int
	rec    Record
	err    error
}

// NewRecords returns an iterator over batch.
func NewRecords(batch []byte, format RecordFormat) *Records {
	r := &Records{}
	r.Reset(batch, format)
	return r
}

// Reset points r at a new batch so the iterator can be reused across reads.
func (r *Records) Reset(batch []byte, format RecordFormat) {
	*r = Records{batch: batch, format: format}
	if err := format.validate(); err != nil {
		r.err = fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
}

// Next advances to the next record. It returns false at the end of the batch
// or when a record header is inconsistent with the bytes left, in which
// case Err reports ErrCorruptBatch.
func (r *Records) Next() bool {
	if r.err != nil || r.cursor >= len(r.batch) {
		return false
	}
	b := r.batch[r.cursor:]
	minHdr := r.format.MinHeaderLen()
	if len(b) < minHdr {
		return r.corrupt("record header needs %d bytes, %d left", minHdr, len(b))
	}
	order := r.format.ByteOrder
	ts := r.format.TimestampLen
	caplen := order.Uint32(b[ts:])
	datalen := order.Uint32(b[ts+4:])
	hdrlen := int(order.Uint16(b[ts+8:]))
	if hdrlen < minHdr {
		return r.corrupt("header length %d is shorter than %d", hdrlen, minHdr)
	}
	if uint64(hdrlen)+uint64(caplen) > uint64(len(b)) {
		return r.corrupt("record of %d+%d bytes exceeds the %d left", hdrlen, caplen, len(b))
	}
	end := hdrlen + int(caplen)
	r.rec = Record{
		Offset:    r.cursor,
		HeaderLen: hdrlen,
		Info: gopacket.CaptureInfo{
			Timestamp:     r.format.timestamp(b),
			CaptureLength: int(caplen),
			Length:        int(datalen),
		},
		Data: b[hdrlen:end:end],
	}
	r.cursor += r.format.WordAlign(end)
	return true
}

func (r *Records) corrupt(format string, args ...interface{}) bool {
	r.err = fmt.Errorf("%w: offset %d: %s", ErrCorruptBatch, r.cursor, fmt.Sprintf(format, args...))
	return false
}

// Record returns the record found by the last successful Next.
func (r *Records) Record() Record {
	return r.rec
}

// Err returns the error that stopped iteration, if any.
func (r *Records) Err() error {
	return r.err
}

// Offset returns the cursor: where the next record header is expected.
func (r *Records) Offset() int {
	return r.cursor
}

// Remaining returns the batch bytes from the cursor on. After a corrupt
// batch this is the part that could not be parsed.
func (r *Records) Remaining() []byte {
	if r.cursor >= len(r.batch) {
		return nil
	}
	return r.batch[r.cursor:]
}

// getEndianness discover the endianness of our current system
func getEndianness() (binary.ByteOrder, error) {
	buf := [2]byte{}
	*(*uint16)(unsafe.Pointer(&buf[0])) = uint16(0xABCD)

	switch buf {
	case [2]byte{0xCD, 0xAB}:
		return binary.LittleEndian, nil
	case [2]byte{0xAB, 0xCD}:
		return binary.BigEndian, nil
	default:
		return nil, errors.New("could not determine native endianness")
	}
}
