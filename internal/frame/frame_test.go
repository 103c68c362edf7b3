package frame

import (
	"bytes"
	"testing"
)

func TestWriteReadFrame_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 0)

	inputs := [][]byte{[]byte("hi"), []byte("there"), {}, []byte("a longer payload with spaces")}
	for _, in := range inputs {
		if err := w.WriteFrame(in); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	r := NewReader(&buf, 0)
	for _, want := range inputs {
		n, isData, err := r.ReadLength()
		if err != nil {
			t.Fatalf("ReadLength: %v", err)
		}
		if !isData {
			t.Fatalf("ReadLength: got sentinel, want data length")
		}
		got, err := r.ReadFrame(n)
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("ReadFrame = %q, want %q", got, want)
		}
	}
}

func TestReadLength_Sentinels(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 0)
	for _, s := range []Sentinel{EndOfDataSection, ExceptionThrown, TimingData, EndOfStream} {
		if err := w.WriteSentinel(s); err != nil {
			t.Fatalf("WriteSentinel(%d): %v", s, err)
		}
	}
	w.Flush()

	r := NewReader(&buf, 0)
	for _, want := range []Sentinel{EndOfDataSection, ExceptionThrown, TimingData, EndOfStream} {
		n, isData, err := r.ReadLength()
		if err != nil {
			t.Fatalf("ReadLength: %v", err)
		}
		if isData {
			t.Fatalf("ReadLength: got data length %d, want sentinel %d", n, want)
		}
		if Sentinel(n) != want {
			t.Errorf("ReadLength = %d, want %d", n, want)
		}
	}
}

func TestReadLength_UnknownSentinelIsProtocolError(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 0)
	w.WriteInt32(-99)
	w.Flush()

	r := NewReader(&buf, 0)
	_, _, err := r.ReadLength()
	if err == nil {
		t.Fatal("expected protocol error for unknown sentinel")
	}
}

func TestReadFrame_ShortReadFails(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x00, 0x00})
	r := NewReader(buf, 0)
	if _, err := r.ReadFrame(10); err != ErrUnexpectedEOF {
		t.Errorf("ReadFrame short read = %v, want ErrUnexpectedEOF", err)
	}
}

func TestReadUTF_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 0)
	if err := w.WriteUTF("héllo wörld"); err != nil {
		t.Fatalf("WriteUTF: %v", err)
	}
	w.Flush()

	r := NewReader(&buf, 0)
	got, err := r.ReadUTF()
	if err != nil {
		t.Fatalf("ReadUTF: %v", err)
	}
	if got != "héllo wörld" {
		t.Errorf("ReadUTF = %q", got)
	}
}

func TestReadInt64_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 0)
	vals := []int64{0, 100, -1, -11, 1<<62 - 1}
	for _, v := range vals {
		w.WriteInt64(v)
	}
	w.Flush()

	r := NewReader(&buf, 0)
	for _, want := range vals {
		got, err := r.ReadInt64()
		if err != nil {
			t.Fatalf("ReadInt64: %v", err)
		}
		if got != want {
			t.Errorf("ReadInt64 = %d, want %d", got, want)
		}
	}
}

func TestReader_EOFOnEmptyStream(t *testing.T) {
	r := NewReader(bytes.NewReader(nil), 0)
	_, _, err := r.ReadLength()
	if err != ErrUnexpectedEOF {
		t.Errorf("ReadLength on empty stream = %v, want ErrUnexpectedEOF", err)
	}
}
