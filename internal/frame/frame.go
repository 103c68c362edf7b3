// Package frame implements the length-prefixed binary framing protocol used
// on the bridge's worker socket: a stream of data frames (non-negative
// length + payload) interleaved with negative sentinel control codes.
package frame

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Sentinel is a recognized negative frame length with a typed payload.
type Sentinel int32

const (
	// EndOfDataSection marks that the worker has finished emitting data records.
	EndOfDataSection Sentinel = -1
	// ExceptionThrown is followed by one data frame carrying a UTF-8 error message.
	ExceptionThrown Sentinel = -2
	// TimingData is followed by five signed int64 values.
	TimingData Sentinel = -3
	// EndOfStream is the terminal frame, emitted after accumulator updates.
	EndOfStream Sentinel = -4
)

// DefaultBufferSize is used when the host config does not set io.buffer.size.
const DefaultBufferSize = 65536

// ErrUnexpectedEOF is returned when read_frame cannot read the requested
// number of bytes in full.
var ErrUnexpectedEOF = errors.New("frame: unexpected end of stream")

// ErrProtocol is returned when a negative length does not match any
// recognized sentinel.
var ErrProtocol = errors.New("frame: unrecognized sentinel")

// Reader reads frames and sentinels from a buffered byte stream.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps r with the given buffer size (0 selects DefaultBufferSize).
func NewReader(r io.Reader, bufferSize int) *Reader {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Reader{r: bufio.NewReaderSize(r, bufferSize)}
}

// ReadInt32 reads one signed big-endian 32-bit integer.
func (fr *Reader) ReadInt32() (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(fr.r, buf[:]); err != nil {
		return 0, wrapEOF(err)
	}
	return int32(binary.BigEndian.Uint32(buf[:])), nil
}

// ReadInt64 reads one signed big-endian 64-bit integer.
func (fr *Reader) ReadInt64() (int64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(fr.r, buf[:]); err != nil {
		return 0, wrapEOF(err)
	}
	return int64(binary.BigEndian.Uint64(buf[:])), nil
}

// ReadFrame reads exactly n bytes. It fails with ErrUnexpectedEOF on a short read.
func (fr *Reader) ReadFrame(n int32) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("frame: negative frame length %d", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(fr.r, buf); err != nil {
		return nil, wrapEOF(err)
	}
	return buf, nil
}

// ReadUTF reads a length-prefixed UTF-8 frame and returns it as a string.
func (fr *Reader) ReadUTF() (string, error) {
	n, err := fr.ReadInt32()
	if err != nil {
		return "", err
	}
	b, err := fr.ReadFrame(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadLength reads the next frame length. The returned bool is true when the
// value is a non-negative data length; false when it is a recognized
// sentinel (in which case Sentinel holds the code). An unrecognized negative
// value yields ErrProtocol.
func (fr *Reader) ReadLength() (length int32, isData bool, err error) {
	n, err := fr.ReadInt32()
	if err != nil {
		return 0, false, err
	}
	if n >= 0 {
		return n, true, nil
	}
	switch Sentinel(n) {
	case EndOfDataSection, ExceptionThrown, TimingData, EndOfStream:
		return n, false, nil
	default:
		return 0, false, fmt.Errorf("%w: %d", ErrProtocol, n)
	}
}

func wrapEOF(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrUnexpectedEOF
	}
	return err
}

// Writer writes frames and sentinels to a buffered byte stream.
type Writer struct {
	w *bufio.Writer
}

// NewWriter wraps w with the given buffer size (0 selects DefaultBufferSize).
func NewWriter(w io.Writer, bufferSize int) *Writer {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Writer{w: bufio.NewWriterSize(w, bufferSize)}
}

// WriteInt32 writes one signed big-endian 32-bit integer.
func (fw *Writer) WriteInt32(v int32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v))
	_, err := fw.w.Write(buf[:])
	return err
}

// WriteInt64 writes one signed big-endian 64-bit integer.
func (fw *Writer) WriteInt64(v int64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	_, err := fw.w.Write(buf[:])
	return err
}

// WriteFrame writes a length-prefixed data frame.
func (fw *Writer) WriteFrame(b []byte) error {
	if err := fw.WriteInt32(int32(len(b))); err != nil {
		return err
	}
	_, err := fw.w.Write(b)
	return err
}

// WriteUTF writes a length-prefixed UTF-8 frame.
func (fw *Writer) WriteUTF(s string) error {
	return fw.WriteFrame([]byte(s))
}

// WriteSentinel writes a negative sentinel length with no payload.
func (fw *Writer) WriteSentinel(s Sentinel) error {
	return fw.WriteInt32(int32(s))
}

// Flush flushes any buffered data to the underlying writer.
func (fw *Writer) Flush() error {
	return fw.w.Flush()
}
