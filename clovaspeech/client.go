// Package clovaspeech is the batch recognition boundary: it submits an
// uploaded audio URL for asynchronous speaker-diarized recognition and polls
// the job until it settles. Single request/poll, no concurrency.
package clovaspeech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

const (
	apiKeyHeader   = "X-CLOVASPEECH-API-KEY"
	requestTimeout = 30 * time.Second
)

type Client struct {
	APIKey     string
	InvokeURL  string
	HTTPClient *http.Client
	logger     *log.Logger
}

func NewClient(apiKey, invokeURL string, logger *log.Logger) *Client {
	return &Client{
		APIKey:     apiKey,
		InvokeURL:  invokeURL,
		HTTPClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}
}

type DiarizationConfig struct {
	Enable          bool `json:"enable"`
	SpeakerCountMin int  `json:"speakerCountMin"`
	SpeakerCountMax int  `json:"speakerCountMax"`
}

type SEDConfig struct {
	Enable bool `json:"enable"`
}

// URLJobRequest is the async recognition request for an external URL.
type URLJobRequest struct {
	URL            string            `json:"url"`
	Language       string            `json:"language"`
	Completion     string            `json:"completion"`
	WordAlignment  bool              `json:"wordAlignment"`
	FullText       bool              `json:"fullText"`
	NoiseFiltering bool              `json:"noiseFiltering"`
	ResultToObs    bool              `json:"resultToObs"`
	Diarization    DiarizationConfig `json:"diarization"`
	SED            SEDConfig         `json:"sed"`
	Callback       string            `json:"callback,omitempty"`
}

type JobToken struct {
	Token  string `json:"token"`
	Result string `json:"result"`
}

type Speaker struct {
	Label string `json:"label"`
	Name  string `json:"name"`
}

type Segment struct {
	Start      int     `json:"start"` // ms
	End        int     `json:"end"`   // ms
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Speaker    Speaker `json:"speaker"`
}

// Result is the polled job state. Result is COMPLETED or FAILED once the
// job settles; anything else is still in progress.
type Result struct {
	Result   string    `json:"result"`
	Message  string    `json:"message"`
	Progress int       `json:"progress"`
	Token    string    `json:"token"`
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
	Speakers []Speaker `json:"speakers"`
}

const (
	JobCompleted = "COMPLETED"
	JobFailed    = "FAILED"
)

// Settled reports whether the job has finished, successfully or not.
func (r *Result) Settled() bool {
	return r.Result == JobCompleted || r.Result == JobFailed
}

// CreateURLJob submits an uploaded audio URL for async diarized
// recognition. speakerMin/speakerMax of -1 let the service decide.
func (c *Client) CreateURLJob(
	ctx context.Context,
	fileURL, language string,
	speakerMin, speakerMax int,
	callback string,
) (*JobToken, error) {
	payload := URLJobRequest{
		URL:            fileURL,
		Language:       NormalizeLanguage(language),
		Completion:     "async",
		WordAlignment:  true,
		FullText:       true,
		NoiseFiltering: true,
		ResultToObs:    true,
		Diarization: DiarizationConfig{
			Enable:          true,
			SpeakerCountMin: speakerMin,
			SpeakerCountMax: speakerMax,
		},
		SED:      SEDConfig{Enable: true},
		Callback: callback,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.InvokeURL+"/recognizer/url",
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, err
	}
	req.Header.Set(apiKeyHeader, c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf(
			"unexpected status code: %d, response body: %s",
			resp.StatusCode,
			string(body),
		)
	}

	var token JobToken
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, err
	}
	c.logger.Info("diarization job submitted", "token", token.Token)
	return &token, nil
}

// GetResult polls one job. The returned Result may still be in progress;
// check Settled.
func (c *Client) GetResult(ctx context.Context, token string) (*Result, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		c.InvokeURL+"/recognizer/"+token,
		nil,
	)
	if err != nil {
		return nil, err
	}
	req.Header.Set(apiKeyHeader, c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf(
			"unexpected status code: %d, response body: %s",
			resp.StatusCode,
			string(body),
		)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// WaitForResult polls until the job settles or ctx expires.
func (c *Client) WaitForResult(
	ctx context.Context,
	token string,
	interval time.Duration,
) (*Result, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		result, err := c.GetResult(ctx, token)
		if err != nil {
			return nil, err
		}
		if result.Settled() {
			if result.Result == JobFailed {
				return result, fmt.Errorf("recognition failed: %s", result.Message)
			}
			return result, nil
		}
		c.logger.Info("diarization in progress", "progress", result.Progress)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// SpeakerStat aggregates one speaker's share of a completed result.
type SpeakerStat struct {
	Name     string
	TalkTime time.Duration
	Ratio    float64 // percent of total talk time
	Segments []Segment
}

// SpeakerStats computes per-speaker talk time and ratio from a completed
// result, keyed by speaker label.
func SpeakerStats(r *Result) (map[string]SpeakerStat, time.Duration) {
	stats := make(map[string]SpeakerStat)
	var total time.Duration

	for _, seg := range r.Segments {
		dur := time.Duration(max(0, seg.End-seg.Start)) * time.Millisecond
		st := stats[seg.Speaker.Label]
		if st.Name == "" {
			st.Name = seg.Speaker.Name
		}
		st.TalkTime += dur
		st.Segments = append(st.Segments, seg)
		stats[seg.Speaker.Label] = st
		total += dur
	}
	for label, st := range stats {
		if total > 0 {
			st.Ratio = float64(st.TalkTime) / float64(total) * 100
		}
		stats[label] = st
	}
	return stats, total
}

// FilterBySpeaker returns the segments attributed to one speaker name.
func FilterBySpeaker(r *Result, speakerName string) []Segment {
	var out []Segment
	for _, seg := range r.Segments {
		if seg.Speaker.Name == speakerName {
			out = append(out, seg)
		}
	}
	return out
}

// NormalizeLanguage maps the streaming session's short language codes to
// the BCP-47 codes the batch API expects. Unknown codes pass through.
func NormalizeLanguage(code string) string {
	switch code {
	case "ko":
		return "ko-KR"
	case "en":
		return "en-US"
	case "ja":
		return "ja-JP"
	case "zh", "zh-cn":
		return "zh-CN"
	}
	return code
}
