package ethercap

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/google/gopacket"
	log "github.com/sirupsen/logrus"

	"github.com/packetcap/go-ethercap/ethernet"
)

// FrameFunc receives every decoded frame. The frame and its slices are only
// valid for the duration of the call.
type FrameFunc func(frame *ethernet.Frame, ci gopacket.CaptureInfo)

// ErrorFunc receives records that were skipped, with the raw bytes that
// could not be used. err is ethernet.ErrTruncatedFrame for a short record and
// wraps ErrCorruptBatch when the rest of a batch was abandoned.
type ErrorFunc func(err error, raw []byte)

// State is the lifecycle position of a Loop.
type State int32

const (
	// Idle: created, device not opened yet. Run opens the device and starts
	// reading in one step, so there is no open-but-not-reading phase; a
	// Loop never holds an open device while Idle.
	Idle State = iota
	// Running: reading batches and delivering frames.
	Running
	// Stopping: cancellation seen, no further reads will be issued.
	Stopping
	// Stopped: device closed. Terminal.
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stats counts what a Loop has seen so far.
type Stats struct {
	Batches        uint64
	Records        uint64
	Frames         uint64
	DecodeErrors   uint64
	CorruptBatches uint64
}

// batchReader is what the loop needs from a Handle.
type batchReader interface {
	ReadBatch() ([]byte, error)
	Close() error
}

// Loop drives one capture device until its context is cancelled. Use one Loop
// per interface; a Loop runs at most once.
type Loop struct {
	cfg  Config
	open func(Config) (batchReader, error)

	started atomic.Bool
	state   atomic.Int32

	batches        atomic.Uint64
	records        atomic.Uint64
	frames         atomic.Uint64
	decodeErrors   atomic.Uint64
	corruptBatches atomic.Uint64
}

// NewLoop returns a Loop for cfg. Nothing is opened until Run.
func NewLoop(cfg Config) *Loop {
	return &Loop{
		cfg:  cfg.withDefaults(),
		open: openReader,
	}
}

func openReader(cfg Config) (batchReader, error) {
	h, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Run opens the device and delivers frames to onFrame until ctx is done or a
// fatal error occurs. Cancellation is checked between batches: the batch in
// hand is always finished, and a read already blocked in the kernel must
// return before cancellation is noticed. A cancelled run returns nil.
func (l *Loop) Run(ctx context.Context, onFrame FrameFunc, onError ErrorFunc) error {
	if !l.started.CompareAndSwap(false, true) {
		return errors.New("capture loop has already been run")
	}
	if onFrame == nil {
		onFrame = func(*ethernet.Frame, gopacket.CaptureInfo) {}
	}
	if onError == nil {
		onError = func(error, []byte) {}
	}

	if err := l.cfg.Validate(); err != nil {
		l.setState(Stopped)
		return err
	}
	format, err := l.cfg.recordFormat()
	if err != nil {
		l.setState(Stopped)
		return err
	}

	reader, err := l.open(l.cfg)
	if err != nil {
		l.setState(Stopped)
		return err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			log.WithError(err).Warn("failed to close capture device")
		}
		l.setState(Stopped)
		log.WithField("iface", l.cfg.Interface).Debug("capture stopped")
	}()

	var (
		recs  Records
		frame ethernet.Frame
	)
	l.setState(Running)
	for ctx.Err() == nil {
		batch, err := reader.ReadBatch()
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			continue
		}
		l.batches.Add(1)
		recs.Reset(batch, format)
		l.drain(&recs, &frame, onFrame, onError)
	}
	l.setState(Stopping)
	return nil
}

// drain hands every record of one batch to the callbacks.
func (l *Loop) drain(recs *Records, frame *ethernet.Frame, onFrame FrameFunc, onError ErrorFunc) {
	for recs.Next() {
		rec := recs.Record()
		l.records.Add(1)
		if err := frame.DecodeFromBytes(rec.Data); err != nil {
			l.decodeErrors.Add(1)
			onError(err, rec.Data)
			continue
		}
		l.frames.Add(1)
		onFrame(frame, rec.Info)
	}
	if err := recs.Err(); err != nil {
		l.corruptBatches.Add(1)
		onError(err, recs.Remaining())
	}
}

// State returns where the loop is in its lifecycle.
func (l *Loop) State() State {
	return State(l.state.Load())
}

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
}

// Stats returns a snapshot of the loop counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Batches:        l.batches.Load(),
		Records:        l.records.Load(),
		Frames:         l.frames.Load(),
		DecodeErrors:   l.decodeErrors.Load(),
		CorruptBatches: l.corruptBatches.Load(),
	}
}
