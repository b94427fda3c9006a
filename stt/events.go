// Package stt implements the live recognition session: microphone frames out
// to the CLOVA NEST service, classified transcription events in, and the
// recorded audio archived to object storage once capture stops.
package stt

import "encoding/json"

// EventKind tags entries on the session's result queue.
type EventKind string

const (
	EventConfig            EventKind = "config"
	EventData              EventKind = "data"
	EventAudioUploaded     EventKind = "audio_uploaded"
	EventAudioUploadFailed EventKind = "audio_upload_failed"
	EventError             EventKind = "error"
	EventDone              EventKind = "done"
)

// Transcription is one partial or final recognition result. The JSON tags
// mirror the service payload; IsSentenceEnd is derived locally.
type Transcription struct {
	Text            string  `json:"text"`
	EndpointType    string  `json:"epdType"`
	Confidence      float64 `json:"confidence"`
	Position        int     `json:"position"`
	PeriodPositions []int   `json:"periodPositions"`
	IsSentenceEnd   bool    `json:"isSentenceEnd"`
}

// Event is one entry on the session's result queue. Which fields are set
// depends on Kind: Transcription for data, URL for audio_uploaded, Message
// for audio_upload_failed, Code+Message for error, Raw for config acks.
type Event struct {
	Kind          EventKind
	Session       string
	Transcription *Transcription
	Code          string
	Message       string
	URL           string
	Raw           json.RawMessage
}
