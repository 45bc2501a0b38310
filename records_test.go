package ethercap

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

var (
	darwinFormat  = RecordFormat{TimestampLen: 8, Alignment: 4, ByteOrder: binary.LittleEndian}
	freebsdFormat = RecordFormat{TimestampLen: 16, Alignment: 8, ByteOrder: binary.LittleEndian}
	bigEndianFmt  = RecordFormat{TimestampLen: 8, Alignment: 4, ByteOrder: binary.BigEndian}
)

// testRecord is what the kernel would store for one captured frame.
type testRecord struct {
	hdrlen  int // 0 means f.WordAlign(f.MinHeaderLen())
	ts      time.Time
	datalen int // 0 means len(data)
	data    []byte
}

// appendRecord lays r out in batch the way bpf(4) does, padding after the
// data up to the word alignment unless noPad is set.
func appendRecord(batch []byte, f RecordFormat, r testRecord, noPad bool) []byte {
	hdrlen := r.hdrlen
	if hdrlen == 0 {
		hdrlen = f.WordAlign(f.MinHeaderLen())
	}
	datalen := r.datalen
	if datalen == 0 {
		datalen = len(r.data)
	}
	hdr := make([]byte, hdrlen)
	if f.TimestampLen == 16 {
		f.ByteOrder.PutUint64(hdr, uint64(r.ts.Unix()))
		f.ByteOrder.PutUint64(hdr[8:], uint64(r.ts.Nanosecond()/1000))
	} else {
		f.ByteOrder.PutUint32(hdr, uint32(r.ts.Unix()))
		f.ByteOrder.PutUint32(hdr[4:], uint32(r.ts.Nanosecond()/1000))
	}
	ts := f.TimestampLen
	f.ByteOrder.PutUint32(hdr[ts:], uint32(len(r.data)))
	f.ByteOrder.PutUint32(hdr[ts+4:], uint32(datalen))
	f.ByteOrder.PutUint16(hdr[ts+8:], uint16(hdrlen))

	start := len(batch)
	batch = append(batch, hdr...)
	batch = append(batch, r.data...)
	if !noPad {
		for len(batch)-start < f.WordAlign(hdrlen+len(r.data)) {
			batch = append(batch, 0)
		}
	}
	return batch
}

func TestWordAlign(t *testing.T) {
	tests := []struct {
		f        RecordFormat
		in, want int
	}{
		{darwinFormat, 0, 0},
		{darwinFormat, 1, 4},
		{darwinFormat, 4, 4},
		{darwinFormat, 18, 20},
		{darwinFormat, 77, 80},
		{freebsdFormat, 1, 8},
		{freebsdFormat, 26, 32},
		{freebsdFormat, 32, 32},
	}
	for _, tt := range tests {
		if got := tt.f.WordAlign(tt.in); got != tt.want {
			t.Errorf("WordAlign(%d) with alignment %d = %d, expected %d", tt.in, tt.f.Alignment, got, tt.want)
		}
	}
}

func TestRecordsInOrder(t *testing.T) {
	for _, f := range []RecordFormat{darwinFormat, freebsdFormat, bigEndianFmt} {
		ts1 := time.Unix(1700000000, 123000)
		ts2 := time.Unix(1700000001, 456000)
		r1 := testRecord{ts: ts1, data: []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}, datalen: 1500}
		r2 := testRecord{hdrlen: f.WordAlign(f.MinHeaderLen()) + f.Alignment, ts: ts2, data: []byte{0xAA, 0xBB, 0xCC}}

		batch := appendRecord(nil, f, r1, false)
		offset2 := len(batch)
		batch = appendRecord(batch, f, r2, true)

		recs := NewRecords(batch, f)
		if !recs.Next() {
			t.Fatalf("no first record: %v", recs.Err())
		}
		rec := recs.Record()
		if rec.Offset != 0 || !bytes.Equal(rec.Data, r1.data) {
			t.Errorf("first record at %d with %x, expected 0 with %x", rec.Offset, rec.Data, r1.data)
		}
		if rec.Info.CaptureLength != len(r1.data) || rec.Info.Length != 1500 {
			t.Errorf("first record lengths %d/%d, expected %d/1500", rec.Info.CaptureLength, rec.Info.Length, len(r1.data))
		}
		if !rec.Info.Timestamp.Equal(ts1) {
			t.Errorf("first record timestamp %v, expected %v", rec.Info.Timestamp, ts1)
		}
		if recs.Offset() != offset2 {
			t.Errorf("cursor after first record %d, expected %d", recs.Offset(), offset2)
		}

		if !recs.Next() {
			t.Fatalf("no second record: %v", recs.Err())
		}
		rec = recs.Record()
		if rec.Offset != offset2 || rec.HeaderLen != r2.hdrlen || !bytes.Equal(rec.Data, r2.data) {
			t.Errorf("second record at %d hdrlen %d with %x, expected %d hdrlen %d with %x",
				rec.Offset, rec.HeaderLen, rec.Data, offset2, r2.hdrlen, r2.data)
		}
		if !rec.Info.Timestamp.Equal(ts2) {
			t.Errorf("second record timestamp %v, expected %v", rec.Info.Timestamp, ts2)
		}
		if want := f.WordAlign(offset2 + r2.hdrlen + len(r2.data)); recs.Offset() != want {
			t.Errorf("cursor after second record %d, expected %d", recs.Offset(), want)
		}

		if recs.Next() {
			t.Fatal("unexpected third record")
		}
		if err := recs.Err(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

func TestRecordsEmptyBatch(t *testing.T) {
	recs := NewRecords(nil, darwinFormat)
	if recs.Next() {
		t.Fatal("record found in an empty batch")
	}
	if recs.Err() != nil {
		t.Fatalf("unexpected error: %v", recs.Err())
	}
}

func TestRecordsDataDoesNotSpillIntoPadding(t *testing.T) {
	batch := appendRecord(nil, darwinFormat, testRecord{data: []byte{1, 2, 3}}, false)
	batch = appendRecord(batch, darwinFormat, testRecord{data: []byte{4}}, false)
	recs := NewRecords(batch, darwinFormat)
	if !recs.Next() {
		t.Fatalf("no record: %v", recs.Err())
	}
	data := recs.Record().Data
	if cap(data) != 3 {
		t.Errorf("record data capacity %d, expected 3", cap(data))
	}
}

func TestRecordsCorrupt(t *testing.T) {
	good := appendRecord(nil, darwinFormat, testRecord{data: make([]byte, 20)}, false)

	tests := []struct {
		name  string
		batch func() []byte
		good  int
	}{
		{"caplen past end", func() []byte {
			b := appendRecord(nil, darwinFormat, testRecord{data: make([]byte, 20)}, false)
			binary.LittleEndian.PutUint32(b[8:], 200)
			return b
		}, 0},
		{"second record past end", func() []byte {
			b := appendRecord(append([]byte{}, good...), darwinFormat, testRecord{data: make([]byte, 10)}, false)
			return b[:len(b)-4]
		}, 1},
		{"header cut short", func() []byte {
			return append(append([]byte{}, good...), make([]byte, 10)...)
		}, 1},
		{"hdrlen too small", func() []byte {
			b := append([]byte{}, good...)
			binary.LittleEndian.PutUint16(b[16:], 4)
			return b
		}, 0},
		{"hdrlen zero", func() []byte {
			return make([]byte, 64)
		}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := NewRecords(tt.batch(), darwinFormat)
			n := 0
			for recs.Next() {
				n++
			}
			if n != tt.good {
				t.Errorf("got %d records before the corruption, expected %d", n, tt.good)
			}
			if !errors.Is(recs.Err(), ErrCorruptBatch) {
				t.Fatalf("error %v, expected %v", recs.Err(), ErrCorruptBatch)
			}
			if len(recs.Remaining()) == 0 {
				t.Error("no remaining bytes reported for the corrupt tail")
			}
			if recs.Next() {
				t.Error("iteration resumed after corruption")
			}
		})
	}
}

func TestRecordsInvalidFormat(t *testing.T) {
	batch := appendRecord(nil, darwinFormat, testRecord{data: []byte{1}}, false)
	recs := NewRecords(batch, RecordFormat{TimestampLen: 8, Alignment: 3, ByteOrder: binary.LittleEndian})
	if recs.Next() {
		t.Fatal("iterated with an invalid format")
	}
	if !errors.Is(recs.Err(), ErrConfiguration) {
		t.Fatalf("error %v, expected %v", recs.Err(), ErrConfiguration)
	}
}

func TestRecordsReset(t *testing.T) {
	b1 := appendRecord(nil, darwinFormat, testRecord{data: []byte{1}}, false)
	b2 := appendRecord(nil, darwinFormat, testRecord{data: []byte{2}}, false)
	b2 = appendRecord(b2, darwinFormat, testRecord{data: []byte{3}}, false)

	var recs Records
	for i, tt := range []struct {
		batch []byte
		want  []byte
	}{{b1, []byte{1}}, {b2, []byte{2, 3}}} {
		recs.Reset(tt.batch, darwinFormat)
		var got []byte
		for recs.Next() {
			got = append(got, recs.Record().Data...)
		}
		if !bytes.Equal(got, tt.want) {
			t.Errorf("batch %d: got %x, expected %x", i, got, tt.want)
		}
	}
}

func TestNativeRecordFormat(t *testing.T) {
	f, err := NativeRecordFormat()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.validate(); err != nil {
		t.Fatalf("native format invalid: %v", err)
	}
}
