package stt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"google.golang.org/grpc/status"

	"github.com/dialog-ai/dialog-stt/audio"
	"github.com/dialog-ai/dialog-stt/nest"
)

// State is the session lifecycle. One live instance per session; a new
// session requires a new Session value.
type State int32

const (
	StateIdle State = iota
	StateRecording
	StateStreaming
	StateFlushing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateStreaming:
		return "streaming"
	case StateFlushing:
		return "flushing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Stream is the bidirectional recognize call as the session sees it.
// nest.RecognizeStream satisfies it; tests substitute fakes.
type Stream interface {
	Send(*nest.NestRequest) error
	Recv() (*nest.NestResponse, error)
	CloseSend() error
}

// Uploader pushes a local file to object storage and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// SessionConfig carries everything a session needs; nothing is read from
// ambient state.
type SessionConfig struct {
	Language          string
	GapThreshold      int
	DurationThreshold int
	SyllableThreshold int
	Deadline          time.Duration
	OutputPath        string
	SampleRate        int
	Channels          int
}

// DefaultSessionConfig is a Korean session with the service's recommended
// endpoint-detection thresholds.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Language:          "ko",
		GapThreshold:      700,
		DurationThreshold: 8000,
		SyllableThreshold: 80,
		Deadline:          10 * time.Minute,
		OutputPath:        "recordings/session_audio.wav",
		SampleRate:        audio.SampleRate,
		Channels:          audio.Channels,
	}
}

// Session is one live recognition session: it drives the capture loop, the
// outbound frame stream and the inbound response reader, and delivers
// classified events in arrival order on Events. Terminal paths always end
// with a done event (after an error event on failures); the events channel
// closes once the session is over.
type Session struct {
	id       string
	cfg      SessionConfig
	logger   *log.Logger
	connect  func(ctx context.Context) (Stream, error)
	capture  *audio.Capture
	uploader Uploader

	events chan Event
	state  atomic.Int32
	wg     sync.WaitGroup

	mu          sync.Mutex
	fullText    strings.Builder
	sentences   []string
	uploadedURL string
}

func NewSession(
	cfg SessionConfig,
	capture *audio.Capture,
	connect func(ctx context.Context) (Stream, error),
	uploader Uploader,
	logger *log.Logger,
) *Session {
	return &Session{
		id:       uuid.NewString(),
		cfg:      cfg,
		logger:   logger,
		connect:  connect,
		capture:  capture,
		uploader: uploader,
		events:   make(chan Event, 256),
	}
}

func (s *Session) ID() string { return s.id }

// State reports the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Events is the ordered result queue. It must be drained; it closes after
// the terminal done event.
func (s *Session) Events() <-chan Event { return s.events }

// FullTranscript returns the running transcript of finalized sentences.
func (s *Session) FullTranscript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.TrimSpace(s.fullText.String())
}

// Sentences returns the ordered log of finalized sentences.
func (s *Session) Sentences() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sentences...)
}

// UploadedURL returns the object-storage URL of the session audio, once the
// audio_uploaded event has been emitted.
func (s *Session) UploadedURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploadedURL
}

// Start begins capturing and streaming. It returns immediately; progress is
// reported through Events.
func (s *Session) Start(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRecording)) {
		return fmt.Errorf("session already started")
	}
	s.logger.Info("session starting", "id", s.id, "language", s.cfg.Language)
	s.capture.Start()
	s.wg.Add(1)
	go s.run(ctx)
	return nil
}

// Stop requests a cooperative wind-down: capture stops, the frame stream
// flushes, and the session runs to its terminal event. Idempotent.
func (s *Session) Stop() {
	s.capture.Stop()
}

// Wait blocks until the session has reached its terminal state.
func (s *Session) Wait() {
	s.wg.Wait()
}

func (s *Session) run(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.events)

	streamErr := s.stream(ctx)
	if streamErr != nil {
		s.state.Store(int32(StateFailed))
		s.emit(errorEvent(s.id, streamErr))
	}

	// The inbound stream is closed; make sure capture winds down and the
	// accumulation buffer is final before persisting. Persistence is
	// best-effort on every exit path, device errors included.
	s.capture.Stop()
	<-s.capture.Done()
	if devErr := s.capture.Err(); devErr != nil {
		s.emit(Event{
			Kind:    EventError,
			Session: s.id,
			Code:    "device_error",
			Message: devErr.Error(),
		})
	}
	s.persist(ctx)

	if streamErr == nil {
		s.state.Store(int32(StateDone))
	}
	s.logger.Info("session finished", "id", s.id, "state", s.State().String())
	s.emit(Event{Kind: EventDone, Session: s.id})
}

func (s *Session) stream(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Deadline)
	defer cancel()

	stream, err := s.connect(ctx)
	if err != nil {
		s.capture.Stop()
		return fmt.Errorf("connect recognition service: %w", err)
	}
	s.state.Store(int32(StateStreaming))

	frames := newFrameSource(
		s.recognitionConfig(),
		s.capture.Frames(),
		s.capture.Recording(),
	)
	go func() {
		for {
			req, ok := frames.Next()
			if !ok {
				break
			}
			if err := stream.Send(req); err != nil {
				// The inbound reader surfaces the stream error.
				s.logger.Debug("send frame", "error", err)
				return
			}
		}
		s.state.CompareAndSwap(int32(StateStreaming), int32(StateFlushing))
		stream.CloseSend()
	}()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		s.handleResponse(resp)
	}
}

func (s *Session) recognitionConfig() RecognitionConfig {
	return RecognitionConfig{
		Transcription: TranscriptionOptions{Language: s.cfg.Language},
		SemanticEPD: SemanticEPD{
			SkipEmptyText:     true,
			UseWordEpd:        true,
			UsePeriodEpd:      true,
			GapThreshold:      s.cfg.GapThreshold,
			DurationThreshold: s.cfg.DurationThreshold,
			SyllableThreshold: s.cfg.SyllableThreshold,
		},
	}
}

// responseBody is the inbound JSON envelope.
type responseBody struct {
	ResponseType  []string        `json:"responseType"`
	Config        json.RawMessage `json:"config"`
	Transcription *Transcription  `json:"transcription"`
}

func (s *Session) handleResponse(resp *nest.NestResponse) {
	var body responseBody
	if err := json.Unmarshal([]byte(resp.Contents), &body); err != nil {
		s.logger.Warn("malformed response, skipping", "error", err)
		return
	}
	switch {
	case hasType(body.ResponseType, "config"):
		s.emit(Event{Kind: EventConfig, Session: s.id, Raw: body.Config})
	case hasType(body.ResponseType, "transcription"):
		t := body.Transcription
		if t == nil || t.Text == "" {
			return
		}
		t.IsSentenceEnd = IsSentenceEnd(t.EndpointType, t.Text, t.PeriodPositions)
		if t.IsSentenceEnd {
			s.mu.Lock()
			s.sentences = append(s.sentences, t.Text)
			s.fullText.WriteString(t.Text)
			s.fullText.WriteString(" ")
			s.mu.Unlock()
		}
		s.logger.Info("hear",
			"text", t.Text, "epd", t.EndpointType, "end", t.IsSentenceEnd)
		s.emit(Event{Kind: EventData, Session: s.id, Transcription: t})
	}
	// Unrecognized response types are ignored.
}

// persist serializes the accumulated audio and uploads it, reporting the
// outcome as an event. Failures never propagate as errors; transcription
// results already delivered are unaffected.
func (s *Session) persist(ctx context.Context) {
	pcm := s.capture.Recorded()
	if err := audio.WriteWAVFile(s.cfg.OutputPath, pcm, s.cfg.SampleRate, s.cfg.Channels); err != nil {
		s.uploadFailed(fmt.Sprintf("save audio: %v", err))
		return
	}
	s.logger.Info("audio saved", "path", s.cfg.OutputPath, "bytes", len(pcm))

	if s.uploader == nil {
		s.uploadFailed("object storage client not initialized")
		return
	}
	url, err := s.uploader.Upload(ctx, s.cfg.OutputPath)
	if err != nil {
		s.uploadFailed(err.Error())
		return
	}
	s.mu.Lock()
	s.uploadedURL = url
	s.mu.Unlock()
	s.emit(Event{Kind: EventAudioUploaded, Session: s.id, URL: url})
}

func (s *Session) uploadFailed(msg string) {
	s.logger.Error("audio upload failed", "reason", msg)
	s.emit(Event{Kind: EventAudioUploadFailed, Session: s.id, Message: msg})
}

func (s *Session) emit(ev Event) {
	s.events <- ev
}

func errorEvent(session string, err error) Event {
	if st, ok := status.FromError(err); ok {
		return Event{
			Kind:    EventError,
			Session: session,
			Code:    st.Code().String(),
			Message: st.Message(),
		}
	}
	return Event{
		Kind:    EventError,
		Session: session,
		Code:    "transport_error",
		Message: err.Error(),
	}
}

func hasType(types []string, want string) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}
