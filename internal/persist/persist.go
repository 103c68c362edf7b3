// Package persist writes and reads length-prefixed frame files on local
// disk, using the same codec as the wire protocol: write_to_file(iter, path)
// and read_records_from_file(path), both EOF-terminated with no header and
// no checksum. A broadcast file is the one-data-frame special case.
package persist

import (
	"fmt"
	"io"
	"os"

	"github.com/dohr-michael/polybridge/internal/frame"
)

// Encryptor optionally wraps the plaintext frame stream at rest. A nil
// Encryptor leaves files in plaintext, matching the original protocol's
// default.
type Encryptor interface {
	// Encrypt wraps w so writes to the returned writer end up encrypted in
	// the underlying file.
	Encrypt(w io.Writer) (io.WriteCloser, error)
	// Decrypt wraps r so reads from the returned reader are the decrypted
	// plaintext frame stream.
	Decrypt(r io.Reader) (io.Reader, error)
}

// WriteToFile drains records into path as consecutive data frames, via the
// frame codec, optionally encrypting with enc.
func WriteToFile(path string, records <-chan []byte, enc Encryptor, bufSize int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("persist: create %s: %w", path, err)
	}
	defer f.Close()

	var dst io.Writer = f
	var closer io.WriteCloser
	if enc != nil {
		wc, err := enc.Encrypt(f)
		if err != nil {
			return fmt.Errorf("persist: encrypt %s: %w", path, err)
		}
		dst = wc
		closer = wc
	}

	w := frame.NewWriter(dst, bufSize)
	for rec := range records {
		if err := w.WriteFrame(rec); err != nil {
			return fmt.Errorf("persist: write frame: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("persist: flush: %w", err)
	}
	if closer != nil {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("persist: close encryptor: %w", err)
		}
	}
	return nil
}

// ReadRecordsFromFile reads path as a sequence of consecutive data frames
// until EOF, which terminates the stream (not an error).
func ReadRecordsFromFile(path string, enc Encryptor, bufSize int) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("persist: open %s: %w", path, err)
	}
	defer f.Close()

	var src io.Reader = f
	if enc != nil {
		src, err = enc.Decrypt(f)
		if err != nil {
			return nil, fmt.Errorf("persist: decrypt %s: %w", path, err)
		}
	}

	r := frame.NewReader(src, bufSize)
	var out [][]byte
	for {
		n, err := r.ReadInt32()
		if err != nil {
			if err == frame.ErrUnexpectedEOF {
				break
			}
			return nil, fmt.Errorf("persist: read length: %w", err)
		}
		b, err := r.ReadFrame(n)
		if err != nil {
			return nil, fmt.Errorf("persist: read frame: %w", err)
		}
		out = append(out, b)
	}
	return out, nil
}

// WriteBroadcastFile writes exactly one data frame, the broadcast payload.
func WriteBroadcastFile(path string, payload []byte, enc Encryptor) error {
	ch := make(chan []byte, 1)
	ch <- payload
	close(ch)
	return WriteToFile(path, ch, enc, frame.DefaultBufferSize)
}

// ReadBroadcastFile reads a one-frame broadcast file back into memory.
func ReadBroadcastFile(path string, enc Encryptor) ([]byte, error) {
	records, err := ReadRecordsFromFile(path, enc, frame.DefaultBufferSize)
	if err != nil {
		return nil, err
	}
	if len(records) != 1 {
		return nil, fmt.Errorf("persist: broadcast file %s has %d frames, want 1", path, len(records))
	}
	return records[0], nil
}
