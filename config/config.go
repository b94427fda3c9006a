// Package config materializes an explicit configuration struct from viper
// (flags, optional config.yaml, environment). Constructors elsewhere take
// the struct; nothing reads viper after Load.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Clova is the recognition service connection: the streaming gRPC endpoint
// and the batch invoke URL share one secret key.
type Clova struct {
	SecretKey string
	Host      string
	Port      int
	InvokeURL string
}

// Storage is the S3-compatible object storage connection.
type Storage struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
}

// Audio is the fixed capture format and the local recording path.
type Audio struct {
	SampleRate     int
	Channels       int
	FramesPerChunk int
	OutputPath     string
}

// Session holds the per-session recognition parameters.
type Session struct {
	Language          string
	GapThreshold      int
	DurationThreshold int
	SyllableThreshold int
	Deadline          time.Duration
}

type Config struct {
	Clova   Clova
	Storage Storage
	Audio   Audio
	Session Session
}

func setDefaults() {
	viper.SetDefault("clova_host", "clovaspeech-gw.ncloud.com")
	viper.SetDefault("clova_port", 50051)
	viper.SetDefault("obs_endpoint", "https://kr.object.ncloudstorage.com")
	viper.SetDefault("obs_region", "kr-standard")
	viper.SetDefault("language", "ko")
	viper.SetDefault("gap_threshold", 700)
	viper.SetDefault("duration_threshold", 8000)
	viper.SetDefault("syllable_threshold", 80)
	viper.SetDefault("sample_rate", 16000)
	viper.SetDefault("channels", 1)
	viper.SetDefault("frames_per_chunk", 1600)
	viper.SetDefault("audio_output", "recordings/session_audio.wav")
	viper.SetDefault("stream_deadline", "10m")
}

// Load builds the Config from whatever viper has been fed. The CLOVA secret
// key is the one hard requirement.
func Load() (*Config, error) {
	setDefaults()

	cfg := &Config{
		Clova: Clova{
			SecretKey: viper.GetString("clova_secret_key"),
			Host:      viper.GetString("clova_host"),
			Port:      viper.GetInt("clova_port"),
			InvokeURL: viper.GetString("clova_invoke_url"),
		},
		Storage: Storage{
			Endpoint:  viper.GetString("obs_endpoint"),
			AccessKey: viper.GetString("obs_access_key"),
			SecretKey: viper.GetString("obs_secret_key"),
			Bucket:    viper.GetString("obs_bucket_name"),
			Region:    viper.GetString("obs_region"),
		},
		Audio: Audio{
			SampleRate:     viper.GetInt("sample_rate"),
			Channels:       viper.GetInt("channels"),
			FramesPerChunk: viper.GetInt("frames_per_chunk"),
			OutputPath:     viper.GetString("audio_output"),
		},
		Session: Session{
			Language:          viper.GetString("language"),
			GapThreshold:      viper.GetInt("gap_threshold"),
			DurationThreshold: viper.GetInt("duration_threshold"),
			SyllableThreshold: viper.GetInt("syllable_threshold"),
			Deadline:          viper.GetDuration("stream_deadline"),
		},
	}

	if cfg.Clova.SecretKey == "" {
		return nil, fmt.Errorf("missing CLOVA_SECRET_KEY or --clova-secret-key=")
	}
	return cfg, nil
}
