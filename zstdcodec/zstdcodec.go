// Package zstdcodec implements the streaming compress/decompress codec of
// spec.md §4.3 ("Compress codec (C3)"), generalizing the teacher's
// compress/zstd package (github.com/grailbio/base/compress/zstd,
// !cgo variant) from one-shot helpers into a reusable Session with a
// long-lived encoder/decoder pair, matching the spec's requirement that
// each compress call be reset so every flushed chunk is a self-contained
// frame.
package zstdcodec

import (
	"bytes"
	"io"

	"github.com/TMac-wei/mylogger/internal/errors"
	"github.com/klauspost/compress/zstd"
)

// frameMagic is the zstd frame magic number, used by IsCompressed.
var frameMagic = [4]byte{0x28, 0xB5, 0x2F, 0xFD}

const defaultDecompressGuess = 10 * 1024

// Session holds a reusable compression context and decompression context.
// It is not safe for concurrent use; the sink serializes access under its
// mutex per spec.md §5.
type Session struct {
	enc   *zstd.Encoder
	dec   *zstd.Decoder
	level zstd.EncoderLevel
}

// New returns a Session using zstd's default ("best default") level.
func New() (*Session, error) {
	level := zstd.SpeedDefault
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level), zstd.WithZeroFrames(true))
	if err != nil {
		return nil, errors.E(errors.Codec, "create zstd encoder", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, errors.E(errors.Codec, "create zstd decoder", err)
	}
	return &Session{enc: enc, dec: dec, level: level}, nil
}

// Reset resets session state while preserving configuration (level).
func (s *Session) Reset() {
	s.enc.Reset(nil)
}

// CompressBound returns an upper bound on the compressed size of an input
// of size n.
func CompressBound(n int) int {
	// zstd's worst case: a handful of frame/block headers plus the raw
	// input, rounded up generously.
	return n + (n / 8) + 256
}

// Compress compresses input into a freshly allocated, self-contained zstd
// frame. An empty frame is returned for empty input per spec.md's "never
// partial success" rule applying to non-empty output only on success.
func (s *Session) Compress(input []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(CompressBound(len(input)))
	s.enc.Reset(&buf)
	if _, err := s.enc.Write(input); err != nil {
		return nil, errors.E(errors.Codec, "zstd write", err)
	}
	if err := s.enc.Close(); err != nil {
		return nil, errors.E(errors.Codec, "zstd flush", err)
	}
	out := buf.Bytes()
	if len(out) == 0 {
		return nil, errors.E(errors.Codec, "zstd produced zero-length output")
	}
	return out, nil
}

// Decompress decompresses a self-contained zstd frame, growing the output
// buffer by doubling until the stream is fully consumed.
func (s *Session) Decompress(frame []byte) ([]byte, error) {
	if err := s.dec.Reset(bytes.NewReader(frame)); err != nil {
		return nil, errors.E(errors.Codec, "zstd decoder reset", err)
	}
	out := make([]byte, 0, defaultDecompressGuess)
	buf := bytes.NewBuffer(out)
	if _, err := io.Copy(buf, s.dec); err != nil {
		return nil, errors.E(errors.Codec, "zstd decompress", err)
	}
	return buf.Bytes(), nil
}

// IsCompressed reports whether b begins with the zstd frame magic number.
func IsCompressed(b []byte) bool {
	if len(b) < 4 {
		return false
	}
	return b[0] == frameMagic[0] && b[1] == frameMagic[1] && b[2] == frameMagic[2] && b[3] == frameMagic[3]
}

// Close releases the session's encoder/decoder resources.
func (s *Session) Close() {
	s.enc.Close()
	s.dec.Close()
}
