package clovaspeech

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func testClient(url string) *Client {
	return NewClient("test-key", url, log.New(io.Discard))
}

func TestCreateURLJob(t *testing.T) {
	var gotReq URLJobRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/recognizer/url" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %q", r.Method)
		}
		if got := r.Header.Get("X-CLOVASPEECH-API-KEY"); got != "test-key" {
			t.Errorf("api key header = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatal(err)
		}
		json.NewEncoder(w).Encode(JobToken{Token: "tok-1"})
	}))
	defer srv.Close()

	token, err := testClient(srv.URL).CreateURLJob(
		context.Background(),
		"https://media.example/audio.wav",
		"ko",
		2, 4,
		"",
	)
	if err != nil {
		t.Fatal(err)
	}
	if token.Token != "tok-1" {
		t.Errorf("token = %q", token.Token)
	}

	if gotReq.URL != "https://media.example/audio.wav" {
		t.Errorf("url = %q", gotReq.URL)
	}
	if gotReq.Language != "ko-KR" {
		t.Errorf("language = %q, want ko-KR", gotReq.Language)
	}
	if gotReq.Completion != "async" {
		t.Errorf("completion = %q", gotReq.Completion)
	}
	if !gotReq.Diarization.Enable {
		t.Error("diarization should be enabled")
	}
	if gotReq.Diarization.SpeakerCountMin != 2 || gotReq.Diarization.SpeakerCountMax != 4 {
		t.Errorf("speaker counts = %d/%d",
			gotReq.Diarization.SpeakerCountMin, gotReq.Diarization.SpeakerCountMax)
	}
}

func TestCreateURLJobErrorIncludesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid key"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).CreateURLJob(
		context.Background(), "https://media.example/a.wav", "ko", -1, -1, "",
	)
	if err == nil {
		t.Fatal("expected error on 401")
	}
	got := err.Error()
	if !strings.Contains(got, "401") || !strings.Contains(got, "invalid key") {
		t.Errorf("error = %q, want status and body", got)
	}
}

func TestWaitForResultPollsUntilCompleted(t *testing.T) {
	polls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/recognizer/tok-1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		polls++
		if polls < 3 {
			json.NewEncoder(w).Encode(Result{Result: "PROGRESS", Progress: polls * 30})
			return
		}
		json.NewEncoder(w).Encode(Result{
			Result: JobCompleted,
			Text:   "안녕하세요 반갑습니다",
			Segments: []Segment{
				{Start: 0, End: 1500, Text: "안녕하세요", Speaker: Speaker{Label: "1", Name: "A"}},
				{Start: 1500, End: 2000, Text: "반갑습니다", Speaker: Speaker{Label: "2", Name: "B"}},
			},
		})
	}))
	defer srv.Close()

	result, err := testClient(srv.URL).WaitForResult(
		context.Background(), "tok-1", time.Millisecond,
	)
	if err != nil {
		t.Fatal(err)
	}
	if polls != 3 {
		t.Errorf("polled %d times, want 3", polls)
	}
	if result.Text != "안녕하세요 반갑습니다" {
		t.Errorf("text = %q", result.Text)
	}
}

func TestWaitForResultFailedJob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Result{Result: JobFailed, Message: "bad audio"})
	}))
	defer srv.Close()

	result, err := testClient(srv.URL).WaitForResult(
		context.Background(), "tok-1", time.Millisecond,
	)
	if err == nil {
		t.Fatal("failed job should surface an error")
	}
	if result == nil || result.Result != JobFailed {
		t.Errorf("result = %+v", result)
	}
}

func TestSpeakerStats(t *testing.T) {
	r := &Result{Segments: []Segment{
		{Start: 0, End: 3000, Speaker: Speaker{Label: "1", Name: "A"}},
		{Start: 3000, End: 4000, Speaker: Speaker{Label: "2", Name: "B"}},
		{Start: 4000, End: 5000, Speaker: Speaker{Label: "1", Name: "A"}},
	}}

	stats, total := SpeakerStats(r)
	if total != 5*time.Second {
		t.Errorf("total = %v, want 5s", total)
	}
	a := stats["1"]
	if a.TalkTime != 4*time.Second {
		t.Errorf("speaker A talk time = %v, want 4s", a.TalkTime)
	}
	if a.Ratio != 80 {
		t.Errorf("speaker A ratio = %v, want 80", a.Ratio)
	}
	if len(a.Segments) != 2 {
		t.Errorf("speaker A segments = %d, want 2", len(a.Segments))
	}
	b := stats["2"]
	if b.Ratio != 20 {
		t.Errorf("speaker B ratio = %v, want 20", b.Ratio)
	}
}

func TestFilterBySpeaker(t *testing.T) {
	r := &Result{Segments: []Segment{
		{Text: "one", Speaker: Speaker{Name: "A"}},
		{Text: "two", Speaker: Speaker{Name: "B"}},
		{Text: "three", Speaker: Speaker{Name: "A"}},
	}}
	got := FilterBySpeaker(r, "A")
	if len(got) != 2 || got[0].Text != "one" || got[1].Text != "three" {
		t.Errorf("FilterBySpeaker = %+v", got)
	}
}

func TestNormalizeLanguage(t *testing.T) {
	tests := map[string]string{
		"ko":    "ko-KR",
		"en":    "en-US",
		"ja":    "ja-JP",
		"zh":    "zh-CN",
		"ko-KR": "ko-KR",
		"de":    "de",
	}
	for in, want := range tests {
		if got := NormalizeLanguage(in); got != want {
			t.Errorf("NormalizeLanguage(%q) = %q, want %q", in, got, want)
		}
	}
}
