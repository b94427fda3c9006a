package stt

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/dialog-ai/dialog-stt/nest"
)

// TranscriptionOptions is the language part of the session config frame.
type TranscriptionOptions struct {
	Language string `json:"language"`
}

// SemanticEPD holds the service-side end-point detection thresholds.
type SemanticEPD struct {
	SkipEmptyText     bool `json:"skipEmptyText"`
	UseWordEpd        bool `json:"useWordEpd"`
	UsePeriodEpd      bool `json:"usePeriodEpd"`
	GapThreshold      int  `json:"gapThreshold"`
	DurationThreshold int  `json:"durationThreshold"`
	SyllableThreshold int  `json:"syllableThreshold"`
}

// RecognitionConfig is the config frame body, JSON-serialized only at the
// protocol edge.
type RecognitionConfig struct {
	Transcription TranscriptionOptions `json:"transcription"`
	SemanticEPD   SemanticEPD          `json:"semanticEpd"`
}

// dataExtra is the per-frame JSON side channel.
type dataExtra struct {
	EpFlag bool `json:"epFlag"`
	SeqID  int  `json:"seqId"`
}

const framePollInterval = 100 * time.Millisecond

// frameSource is the outbound frame sequence of one session: the config
// frame first, then one data frame per captured chunk with contiguous
// sequence ids from 0, then a single terminal flush frame with an empty
// payload. It is consumed exactly once; a new session needs a new source.
type frameSource struct {
	config     RecognitionConfig
	queue      <-chan []byte
	recording  *atomic.Bool
	poll       time.Duration
	sentConfig bool
	sentFlush  bool
	seq        int
}

func newFrameSource(cfg RecognitionConfig, queue <-chan []byte, recording *atomic.Bool) *frameSource {
	return &frameSource{
		config:    cfg,
		queue:     queue,
		recording: recording,
		poll:      framePollInterval,
	}
}

// Next yields the next outbound frame, blocking up to the poll interval on
// the capture queue so it can observe the recording flag dropping. Returns
// false once the terminal frame has been yielded.
func (f *frameSource) Next() (*nest.NestRequest, bool) {
	if f.sentFlush {
		return nil, false
	}
	if !f.sentConfig {
		f.sentConfig = true
		body, _ := json.Marshal(f.config)
		return &nest.NestRequest{
			Type:   nest.RequestTypeConfig,
			Config: &nest.NestConfig{Config: string(body)},
		}, true
	}
	for {
		if !f.recording.Load() {
			f.sentFlush = true
			return f.dataFrame(nil, true), true
		}
		select {
		case chunk := <-f.queue:
			req := f.dataFrame(chunk, false)
			f.seq++
			return req, true
		case <-time.After(f.poll):
		}
	}
}

func (f *frameSource) dataFrame(chunk []byte, flush bool) *nest.NestRequest {
	extra, _ := json.Marshal(dataExtra{EpFlag: flush, SeqID: f.seq})
	return &nest.NestRequest{
		Type: nest.RequestTypeData,
		Data: &nest.NestData{Chunk: chunk, ExtraContents: string(extra)},
	}
}
