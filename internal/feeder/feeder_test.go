package feeder

import (
	"net"
	"testing"
	"time"

	"github.com/dohr-michael/polybridge/internal/broadcast"
	"github.com/dohr-michael/polybridge/internal/frame"
)

func TestFeeder_HappyPathRoundTrip(t *testing.T) {
	hostSide, workerSide := net.Pipe()
	defer hostSide.Close()
	defer workerSide.Close()

	records := make(chan Element, 2)
	records <- Element{UTF: "hi", IsUTF: true}
	records <- Element{UTF: "there", IsUTF: true}
	close(records)

	f := New(hostSide, map[int64]struct{}{}, nil, TaskHeader{
		Partition: 3,
		WorkDir:   "/tmp/work",
		Command:   []byte{0xAA},
	}, nil, records, nil, frame.DefaultBufferSize)

	go f.Run()

	r := frame.NewReader(workerSide, frame.DefaultBufferSize)

	partition, err := r.ReadInt32()
	if err != nil || partition != 3 {
		t.Fatalf("partition = %d, err = %v", partition, err)
	}
	workDir, err := r.ReadUTF()
	if err != nil || workDir != "/tmp/work" {
		t.Fatalf("workdir = %q, err = %v", workDir, err)
	}
	includeCount, err := r.ReadInt32()
	if err != nil || includeCount != 0 {
		t.Fatalf("includeCount = %d, err = %v", includeCount, err)
	}
	deltaCount, err := r.ReadInt32()
	if err != nil || deltaCount != 0 {
		t.Fatalf("deltaCount = %d, err = %v", deltaCount, err)
	}
	cmdLen, isData, err := r.ReadLength()
	if err != nil || !isData || cmdLen != 1 {
		t.Fatalf("command length: %d isData=%v err=%v", cmdLen, isData, err)
	}
	cmd, err := r.ReadFrame(cmdLen)
	if err != nil || len(cmd) != 1 || cmd[0] != 0xAA {
		t.Fatalf("command = %v, err = %v", cmd, err)
	}

	<-f.Done()
	if f.Failure() != nil {
		t.Fatalf("unexpected feeder failure: %v", f.Failure())
	}
}

func TestFeeder_UTFRecordStream(t *testing.T) {
	hostSide, workerSide := net.Pipe()
	defer hostSide.Close()
	defer workerSide.Close()

	records := make(chan Element, 2)
	records <- Element{UTF: "hi", IsUTF: true}
	records <- Element{UTF: "there", IsUTF: true}
	close(records)

	f := New(hostSide, map[int64]struct{}{}, nil, TaskHeader{Command: []byte{}}, nil, records, nil, 0)
	go f.Run()

	r := frame.NewReader(workerSide, frame.DefaultBufferSize)
	if _, err := r.ReadInt32(); err != nil { // partition
		t.Fatal(err)
	}
	if _, err := r.ReadUTF(); err != nil { // workdir
		t.Fatal(err)
	}
	if n, err := r.ReadInt32(); err != nil || n != 0 { // includes
		t.Fatalf("includes: %d %v", n, err)
	}
	if n, err := r.ReadInt32(); err != nil || n != 0 { // delta count
		t.Fatalf("delta: %d %v", n, err)
	}
	length, isData, err := r.ReadLength() // command length
	if err != nil || !isData {
		t.Fatalf("command length: %v isData=%v err=%v", length, isData, err)
	}
	if _, err := r.ReadFrame(length); err != nil {
		t.Fatal(err)
	}

	got1, err := r.ReadUTF()
	if err != nil || got1 != "hi" {
		t.Fatalf("record1 = %q, err = %v", got1, err)
	}
	got2, err := r.ReadUTF()
	if err != nil || got2 != "there" {
		t.Fatalf("record2 = %q, err = %v", got2, err)
	}

	length, isData, err = r.ReadLength()
	if err != nil || isData {
		t.Fatalf("expected END_OF_DATA_SECTION sentinel, got isData=%v err=%v", isData, err)
	}
	if frame.Sentinel(length) != frame.EndOfDataSection {
		t.Fatalf("sentinel = %d, want EndOfDataSection", length)
	}

	length, isData, err = r.ReadLength()
	if err != nil || isData {
		t.Fatalf("expected END_OF_STREAM sentinel, got isData=%v err=%v", isData, err)
	}
	if frame.Sentinel(length) != frame.EndOfStream {
		t.Fatalf("sentinel = %d, want EndOfStream", length)
	}

	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatal("feeder did not finish")
	}
	if f.Failure() != nil {
		t.Fatalf("unexpected feeder failure: %v", f.Failure())
	}
}

func TestFeeder_WritesBroadcastDeltaAgainstResidentSet(t *testing.T) {
	hostSide, workerSide := net.Pipe()
	defer hostSide.Close()
	defer workerSide.Close()

	resident := map[int64]struct{}{10: {}, 20: {}}
	records := make(chan Element)
	close(records)

	broadcasts := []broadcast.Broadcast{
		{ID: 20, Payload: []byte("b20")},
		{ID: 30, Payload: []byte("b30")},
	}

	f := New(hostSide, resident, nil, TaskHeader{Command: []byte{}}, broadcasts, records, nil, 0)
	go f.Run()

	r := frame.NewReader(workerSide, frame.DefaultBufferSize)
	r.ReadInt32() // partition
	r.ReadUTF()   // workdir
	r.ReadInt32() // include count

	deltaCount, err := r.ReadInt32()
	if err != nil {
		t.Fatal(err)
	}
	if deltaCount != 2 {
		t.Fatalf("deltaCount = %d, want 2", deltaCount)
	}

	var sawDereg10, sawReg30 bool
	for i := int32(0); i < deltaCount; i++ {
		wireID, err := r.ReadInt64()
		if err != nil {
			t.Fatal(err)
		}
		id, register := broadcast.DecodeID(wireID)
		if !register {
			if id != 10 {
				t.Fatalf("unexpected deregistration of %d", id)
			}
			sawDereg10 = true
			continue
		}
		if id != 30 {
			t.Fatalf("unexpected registration of %d", id)
		}
		length, isData, err := r.ReadLength()
		if err != nil || !isData {
			t.Fatalf("payload length: %v", err)
		}
		payload, err := r.ReadFrame(length)
		if err != nil || string(payload) != "b30" {
			t.Fatalf("payload = %q, err = %v", payload, err)
		}
		sawReg30 = true
	}
	if !sawDereg10 || !sawReg30 {
		t.Fatalf("delta incomplete: dereg10=%v reg30=%v", sawDereg10, sawReg30)
	}

	if len(resident) != 2 {
		t.Fatalf("resident after delta = %v, want {20,30}", resident)
	}
}

func TestFeeder_ClosesOnUnexpectedElementType(t *testing.T) {
	hostSide, workerSide := net.Pipe()
	defer hostSide.Close()
	defer workerSide.Close()

	records := make(chan Element, 1)
	records <- Element{} // neither bytes, utf, nor pair set
	close(records)

	f := New(hostSide, map[int64]struct{}{}, nil, TaskHeader{Command: []byte{}}, nil, records, nil, 0)
	go f.Run()

	go func() {
		r := frame.NewReader(workerSide, frame.DefaultBufferSize)
		buf := make([]byte, 4096)
		for {
			if _, err := workerSide.Read(buf); err != nil {
				return
			}
			_ = r
		}
	}()

	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatal("feeder did not finish")
	}
	if f.Failure() == nil {
		t.Fatal("expected feeder failure for unexpected element type")
	}
}

func TestFeeder_FailsOnMixedElementTypesWithinOneStream(t *testing.T) {
	hostSide, workerSide := net.Pipe()
	defer hostSide.Close()
	defer workerSide.Close()

	records := make(chan Element, 2)
	records <- Element{IsUTF: true, UTF: "a"}
	records <- Element{Bytes: []byte("b")}
	close(records)

	f := New(hostSide, map[int64]struct{}{}, nil, TaskHeader{Command: []byte{}}, nil, records, nil, 0)
	go f.Run()

	go func() {
		buf := make([]byte, 4096)
		for {
			if _, err := workerSide.Read(buf); err != nil {
				return
			}
		}
	}()

	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatal("feeder did not finish")
	}
	if f.Failure() == nil {
		t.Fatal("expected feeder failure for a stream mixing UTF and byte elements")
	}
}

func TestFeeder_StopUnblocksPendingRecordReceive(t *testing.T) {
	hostSide, workerSide := net.Pipe()
	defer hostSide.Close()
	defer workerSide.Close()

	// No records are ever sent and the channel is never closed, simulating
	// an upstream producer that never yields.
	records := make(chan Element)

	f := New(hostSide, map[int64]struct{}{}, nil, TaskHeader{Command: []byte{}}, nil, records, nil, 0)
	go f.Run()

	go func() {
		buf := make([]byte, 4096)
		for {
			if _, err := workerSide.Read(buf); err != nil {
				return
			}
		}
	}()

	f.Stop()

	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatal("feeder did not stop after Stop was called")
	}
}

func TestFeeder_StopUnblocksPendingSocketWrite(t *testing.T) {
	hostSide, workerSide := net.Pipe()
	defer hostSide.Close()
	defer workerSide.Close()

	records := make(chan Element, 1)
	records <- Element{Bytes: make([]byte, 1<<20)}

	f := New(hostSide, map[int64]struct{}{}, nil, TaskHeader{Command: []byte{}}, nil, records, nil, 0)
	go f.Run()

	// Drain exactly the header, then stop reading: the oversized record
	// below overflows the writer's buffer and blocks on a direct socket
	// write, since nothing drains the pipe from here on.
	headerDrained := make(chan struct{})
	go func() {
		defer close(headerDrained)
		r := frame.NewReader(workerSide, frame.DefaultBufferSize)
		r.ReadInt32() // partition
		r.ReadUTF()   // workdir
		r.ReadInt32() // include count
		r.ReadInt32() // delta count
		length, _, _ := r.ReadLength()
		r.ReadFrame(length) // command
	}()
	<-headerDrained

	f.Stop()

	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatal("feeder did not stop after Stop was called")
	}
	if f.Failure() == nil {
		t.Fatal("expected feeder failure from the forced write deadline")
	}
}
