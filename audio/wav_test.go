package audio

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func TestEncodeWAV(t *testing.T) {
	pcm := make([]byte, 3200)
	data, err := EncodeWAV(pcm, SampleRate, Channels)
	if err != nil {
		t.Fatal(err)
	}

	if len(data) != 44+len(pcm) {
		t.Fatalf("encoded size = %d, want %d", len(data), 44+len(pcm))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE markers")
	}
	if string(data[12:16]) != "fmt " || string(data[36:40]) != "data" {
		t.Error("missing fmt/data subchunks")
	}

	if got := binary.LittleEndian.Uint32(data[4:8]); got != uint32(36+len(pcm)) {
		t.Errorf("chunk size = %d, want %d", got, 36+len(pcm))
	}
	if got := binary.LittleEndian.Uint16(data[20:22]); got != 1 {
		t.Errorf("audio format = %d, want 1 (PCM)", got)
	}
	if got := binary.LittleEndian.Uint16(data[22:24]); got != Channels {
		t.Errorf("channels = %d, want %d", got, Channels)
	}
	if got := binary.LittleEndian.Uint32(data[24:28]); got != SampleRate {
		t.Errorf("sample rate = %d, want %d", got, SampleRate)
	}
	if got := binary.LittleEndian.Uint32(data[28:32]); got != SampleRate*Channels*2 {
		t.Errorf("byte rate = %d, want %d", got, SampleRate*Channels*2)
	}
	if got := binary.LittleEndian.Uint16(data[34:36]); got != 16 {
		t.Errorf("bits per sample = %d, want 16", got)
	}
	if got := binary.LittleEndian.Uint32(data[40:44]); got != uint32(len(pcm)) {
		t.Errorf("data size = %d, want %d", got, len(pcm))
	}
}

func TestEncodeWAVRejectsBadInput(t *testing.T) {
	if _, err := EncodeWAV(nil, SampleRate, Channels); err == nil {
		t.Error("empty audio should not encode")
	}
	if _, err := EncodeWAV([]byte{0, 0}, 0, Channels); err == nil {
		t.Error("zero sample rate should not encode")
	}
	if _, err := EncodeWAV([]byte{0, 0}, SampleRate, 0); err == nil {
		t.Error("zero channels should not encode")
	}
}

func TestWriteWAVFileCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recordings", "session_audio.wav")
	if err := WriteWAVFile(path, make([]byte, 320), SampleRate, Channels); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 44+320 {
		t.Errorf("file size = %d, want %d", info.Size(), 44+320)
	}
}
