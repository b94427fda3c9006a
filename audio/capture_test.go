package audio

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

type scriptedSource struct {
	chunks  [][]byte
	readErr error
}

func (s *scriptedSource) ReadChunk() ([]byte, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	if len(s.chunks) > 0 {
		c := s.chunks[0]
		s.chunks = s.chunks[1:]
		return c, nil
	}
	time.Sleep(time.Millisecond)
	return make([]byte, 4), nil
}

func (s *scriptedSource) Close() error { return nil }

func TestCaptureAccumulatesAndQueues(t *testing.T) {
	src := &scriptedSource{chunks: [][]byte{{1, 2}, {3, 4}}}
	c := NewCapture(func() (Source, error) { return src, nil }, log.New(io.Discard))

	c.Start()
	first := <-c.Frames()
	second := <-c.Frames()
	c.Stop()
	<-c.Done()

	if string(first) != string([]byte{1, 2}) || string(second) != string([]byte{3, 4}) {
		t.Errorf("queued frames = %v, %v", first, second)
	}
	recorded := c.Recorded()
	if len(recorded) < 4 {
		t.Fatalf("recorded %d bytes, want at least 4", len(recorded))
	}
	if string(recorded[:4]) != string([]byte{1, 2, 3, 4}) {
		t.Errorf("accumulation buffer starts with %v", recorded[:4])
	}
	if c.Err() != nil {
		t.Errorf("unexpected device error: %v", c.Err())
	}
}

func TestCaptureOpenFailure(t *testing.T) {
	openErr := errors.New("no device")
	c := NewCapture(func() (Source, error) { return nil, openErr }, log.New(io.Discard))

	c.Start()
	<-c.Done()

	if !errors.Is(c.Err(), openErr) {
		t.Errorf("Err() = %v, want %v", c.Err(), openErr)
	}
	if c.Recording().Load() {
		t.Error("recording flag should drop when the device cannot open")
	}
}

func TestCaptureGivesUpAfterRepeatedReadErrors(t *testing.T) {
	src := &scriptedSource{readErr: errors.New("stream closed")}
	c := NewCapture(func() (Source, error) { return src, nil }, log.New(io.Discard))

	c.Start()
	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("capture loop did not give up on a dead device")
	}

	if c.Err() == nil {
		t.Error("expected a device error")
	}
	if c.Recording().Load() {
		t.Error("recording flag should drop on device failure")
	}
}

func TestCaptureStartOnce(t *testing.T) {
	src := &scriptedSource{}
	c := NewCapture(func() (Source, error) { return src, nil }, log.New(io.Discard))

	c.Start()
	c.Start() // no-op
	c.Stop()
	c.Stop() // idempotent
	<-c.Done()
}
