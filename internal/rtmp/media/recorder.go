package media

// FLV Recorder
// ------------
// Persists a published stream's audio/video messages as an FLV byte stream
// via internal/rtmp/flv.Muxer, so the tag envelope (header flags, 11-byte
// tag header, PreviousTagSize trailer, and E-RTMP/AVC-HEVC tag shapes) has
// one implementation shared with anything else that needs to mux FLV
// (relay, transport adapters serving HTTP-FLV). Recorder itself only adds
// the disk-file lifecycle and graceful degradation: on any write error the
// recorder disables itself so a full disk doesn't interrupt the live
// session it's shadowing.

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/alxayo/go-rtmp/internal/rtmp/chunk"
	"github.com/alxayo/go-rtmp/internal/rtmp/flv"
)

// Recorder persists RTMP audio/video messages into a single FLV file or any
// other io.WriteCloser (e.g. an open HTTP response body for HTTP-FLV
// playback). It is safe for single-goroutine use (the media relay loop). A
// mutex is included only to guard against accidental concurrent calls in
// future extensions.
type Recorder struct {
	mu     sync.Mutex
	w      io.WriteCloser
	muxer  *flv.Muxer
	logger *slog.Logger
}

// NewRecorder creates a recorder writing to the supplied file path. If file
// creation fails it returns a nil *Recorder and the error.
func NewRecorder(path string, logger *slog.Logger) (*Recorder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("recorder.create: %w", err)
	}
	r := &Recorder{w: f, muxer: flv.NewMuxer(f), logger: logger}
	if err := r.writeHeader(); err != nil {
		return nil, err
	}
	return r, nil
}

// newRecorderWithWriter allows tests to inject a failing writer (disk full simulation).
func newRecorderWithWriter(w io.WriteCloser, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{w: w, muxer: flv.NewMuxer(w), logger: logger}
	_ = r.writeHeader() // Ignore error in helper; tests can assert state.
	return r
}

// Disabled returns true if the recorder encountered a fatal write error.
func (r *Recorder) Disabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.w == nil
}

// BytesWritten returns the cumulative number of bytes emitted so far.
func (r *Recorder) BytesWritten() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.muxer == nil {
		return 0
	}
	return r.muxer.BytesWritten()
}

// writeHeader writes the FLV file header (both audio+video flags set).
func (r *Recorder) writeHeader() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return nil
	}
	if err := r.muxer.WriteHeader(true, true); err != nil {
		r.logger.Error("recorder write header failed", "err", err)
		r.closeLocked()
		return fmt.Errorf("recorder.header: %w", err)
	}
	return nil
}

// WriteMessage persists an RTMP media message (audio=8, video=9, script
// data=18). Other message types are ignored silently. Safe to call after a
// failure; it no-ops when disabled.
func (r *Recorder) WriteMessage(msg *chunk.Message) {
	if msg == nil {
		return
	}
	tagType := flv.TagType(msg.TypeID)
	if tagType != flv.TagTypeAudio && tagType != flv.TagTypeVideo && tagType != flv.TagTypeScriptData {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil { // disabled
		return
	}
	if err := r.muxer.WriteTag(tagType, msg.Timestamp, msg.Payload); err != nil {
		r.logger.Error("recorder tag write failed", "err", err)
		r.closeLocked()
	}
}

// Close releases the underlying writer.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked()
}

func (r *Recorder) closeLocked() error {
	if r.w == nil {
		return nil
	}
	err := r.w.Close()
	r.w = nil
	r.muxer = nil
	return err
}
