// Package audio covers the microphone side of a session: PortAudio capture,
// input device enumeration, and WAV serialization of the recorded PCM.
package audio

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"
)

// Fixed capture format: 16 kHz mono signed 16-bit PCM, 100 ms frames.
const (
	SampleRate     = 16000
	Channels       = 1
	BytesPerSample = 2
	FramesPerChunk = 1600
)

// frameQueueDepth comfortably exceeds the streaming deadline at one chunk
// per 100 ms, so the queue behaves as unbounded within a session.
const frameQueueDepth = 8192

// maxConsecutiveReadErrors is how many read failures in a row the loop
// tolerates before treating the device as gone.
const maxConsecutiveReadErrors = 10

// Source produces raw PCM chunks from a capture device. OpenDefaultSource
// is the hardware implementation; tests inject their own.
type Source interface {
	ReadChunk() ([]byte, error)
	Close() error
}

type portaudioSource struct {
	stream *portaudio.Stream
	buf    []int16
}

// OpenDefaultSource opens the default input device at the session's fixed
// format.
func OpenDefaultSource(framesPerChunk int) (Source, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	buf := make([]int16, framesPerChunk)
	stream, err := portaudio.OpenDefaultStream(
		Channels, 0, float64(SampleRate), framesPerChunk, buf,
	)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("open capture device: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("start capture stream: %w", err)
	}
	return &portaudioSource{stream: stream, buf: buf}, nil
}

func (s *portaudioSource) ReadChunk() ([]byte, error) {
	if err := s.stream.Read(); err != nil && err != portaudio.InputOverflowed {
		return nil, err
	}
	out := make([]byte, len(s.buf)*BytesPerSample)
	for i, v := range s.buf {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out, nil
}

func (s *portaudioSource) Close() error {
	s.stream.Stop()
	err := s.stream.Close()
	portaudio.Terminate()
	return err
}

// Capture drives a Source on its own goroutine. Every chunk goes both to
// the frame queue (consumed by the outbound stream) and to the accumulation
// buffer (consumed by persistence after the loop ends). The loop is the
// sole writer of both.
type Capture struct {
	open      func() (Source, error)
	logger    *log.Logger
	frames    chan []byte
	recording atomic.Bool
	done      chan struct{}
	started   atomic.Bool

	mu       sync.Mutex
	recorded []byte
	devErr   error
}

func NewCapture(open func() (Source, error), logger *log.Logger) *Capture {
	return &Capture{
		open:   open,
		logger: logger,
		frames: make(chan []byte, frameQueueDepth),
		done:   make(chan struct{}),
	}
}

// Frames is the queue consumed by the outbound frame stream.
func (c *Capture) Frames() <-chan []byte { return c.frames }

// Recording is the cooperative stop flag shared with the frame stream.
func (c *Capture) Recording() *atomic.Bool { return &c.recording }

// Done closes when the capture loop has exited, normally or not. The
// accumulation buffer is complete once Done closes.
func (c *Capture) Done() <-chan struct{} { return c.done }

// Recorded returns the PCM accumulated so far.
func (c *Capture) Recorded() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recorded
}

// Err reports the device error that ended the loop, if any.
func (c *Capture) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.devErr
}

// Start launches the capture loop. It may be called once per Capture.
func (c *Capture) Start() {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	c.recording.Store(true)
	go c.loop()
}

// Stop asks the loop to wind down after the read in flight. Idempotent;
// frames already queued stay queued and the accumulation buffer keeps
// everything read before the flag was observed.
func (c *Capture) Stop() {
	c.recording.Store(false)
}

func (c *Capture) loop() {
	defer close(c.done)

	src, err := c.open()
	if err != nil {
		c.logger.Error("capture device unavailable", "error", err)
		c.setErr(err)
		c.recording.Store(false)
		return
	}
	defer src.Close()
	c.logger.Info("recording started",
		"rate", SampleRate, "channels", Channels, "chunk", FramesPerChunk)

	failures := 0
	for c.recording.Load() {
		chunk, err := src.ReadChunk()
		if err != nil {
			failures++
			c.logger.Warn("audio read failed", "error", err, "consecutive", failures)
			if failures >= maxConsecutiveReadErrors {
				c.setErr(fmt.Errorf("capture device failed: %w", err))
				c.recording.Store(false)
				break
			}
			continue
		}
		failures = 0

		c.mu.Lock()
		c.recorded = append(c.recorded, chunk...)
		c.mu.Unlock()

		select {
		case c.frames <- chunk:
		default:
			// Queue saturated only if the sender has been wedged for the
			// whole session; favor keeping capture alive.
			c.logger.Warn("frame queue full, dropping chunk")
		}
	}
	c.logger.Info("recording stopped",
		"bytes", len(c.Recorded()),
		"seconds", float64(len(c.Recorded()))/float64(SampleRate*BytesPerSample))
}

func (c *Capture) setErr(err error) {
	c.mu.Lock()
	c.devErr = err
	c.mu.Unlock()
}
