package obs

import (
	"strings"
	"testing"
	"time"
)

func TestObjectKey(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	key := ObjectKey("recordings/session_audio.wav", now)
	want := "stt/input_audio/20250314_092653_session_audio.wav"
	if key != want {
		t.Errorf("ObjectKey = %q, want %q", key, want)
	}
}

func TestObjectKeyUsesBaseName(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	key := ObjectKey("/var/lib/app/recordings/take2.wav", now)
	if strings.Contains(key, "/var/") {
		t.Errorf("key leaks the local directory: %q", key)
	}
	if !strings.HasSuffix(key, "_take2.wav") {
		t.Errorf("key = %q, want _take2.wav suffix", key)
	}
}

func TestPublicURL(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
	}{
		{
			"https://kr.object.ncloudstorage.com",
			"https://media.kr.object.ncloudstorage.com/stt/input_audio/a.wav",
		},
		{
			"http://localhost:9000",
			"https://media.localhost:9000/stt/input_audio/a.wav",
		},
		{
			"kr.object.ncloudstorage.com",
			"https://media.kr.object.ncloudstorage.com/stt/input_audio/a.wav",
		},
	}
	for _, tt := range tests {
		got := PublicURL(tt.endpoint, "media", "stt/input_audio/a.wav")
		if got != tt.want {
			t.Errorf("PublicURL(%q) = %q, want %q", tt.endpoint, got, tt.want)
		}
	}
}
