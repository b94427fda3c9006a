package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dialog-ai/dialog-stt/audio"
	"github.com/dialog-ai/dialog-stt/clovaspeech"
	"github.com/dialog-ai/dialog-stt/config"
	"github.com/dialog-ai/dialog-stt/nest"
	"github.com/dialog-ai/dialog-stt/obs"
	"github.com/dialog-ai/dialog-stt/stt"
)

var logger *log.Logger

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(diarizeCmd)

	diarizeCmd.Flags().Int("speakers-min", -1, "Minimum speaker count (-1 = auto)")
	diarizeCmd.Flags().Int("speakers-max", -1, "Maximum speaker count (-1 = auto)")

	// Add persistent flags
	rootCmd.PersistentFlags().
		String("clova-secret-key", "", "CLOVA Speech secret key")
	rootCmd.PersistentFlags().
		String("clova-invoke-url", "", "CLOVA Speech batch invoke URL")
	rootCmd.PersistentFlags().
		String("obs-access-key", "", "Object storage access key")
	rootCmd.PersistentFlags().
		String("obs-secret-key", "", "Object storage secret key")
	rootCmd.PersistentFlags().
		String("obs-bucket-name", "", "Object storage bucket")
	rootCmd.PersistentFlags().String("language", "ko", "Recognition language")
	rootCmd.PersistentFlags().
		String("audio-output", "recordings/session_audio.wav", "Session recording path")

	// Bind flags to viper
	viper.BindPFlag(
		"clova_secret_key",
		rootCmd.PersistentFlags().Lookup("clova-secret-key"),
	)
	viper.BindPFlag(
		"clova_invoke_url",
		rootCmd.PersistentFlags().Lookup("clova-invoke-url"),
	)
	viper.BindPFlag(
		"obs_access_key",
		rootCmd.PersistentFlags().Lookup("obs-access-key"),
	)
	viper.BindPFlag(
		"obs_secret_key",
		rootCmd.PersistentFlags().Lookup("obs-secret-key"),
	)
	viper.BindPFlag(
		"obs_bucket_name",
		rootCmd.PersistentFlags().Lookup("obs-bucket-name"),
	)
	viper.BindPFlag("language", rootCmd.PersistentFlags().Lookup("language"))
	viper.BindPFlag(
		"audio_output",
		rootCmd.PersistentFlags().Lookup("audio-output"),
	)
}

func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// The config file is optional; env and flags suffice.
	viper.ReadInConfig()

	logger = log.New(os.Stdout)
}

var rootCmd = &cobra.Command{
	Use:   "dialog-stt",
	Short: "dialog-stt streams microphone audio to CLOVA Speech",
	Long:  `dialog-stt captures microphone audio, streams it to CLOVA Speech for real-time transcription, and archives session recordings to object storage.`,
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Start a live transcription session",
	Long:  `Capture the default microphone and stream it for transcription until interrupted. The recording is saved and uploaded when the session ends.`,
	Run:   runListen,
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List input devices in a cool table",
	Run:   runDevices,
}

var diarizeCmd = &cobra.Command{
	Use:   "diarize <audio-url>",
	Short: "Run speaker-diarized recognition on an uploaded recording",
	Long:  `Submit an object-storage audio URL for batch speaker-diarized recognition and print the per-speaker breakdown.`,
	Args:  cobra.ExactArgs(1),
	Run:   runDiarize,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runListen(cmd *cobra.Command, args []string) {
	mainLogger, micLogger, hearLogger, saveLogger := createLoggers()

	cfg, err := config.Load()
	if err != nil {
		mainLogger.Fatal("load configuration", "error", err.Error())
	}

	client, err := nest.Dial(cfg.Clova.Host, cfg.Clova.Port, cfg.Clova.SecretKey)
	if err != nil {
		mainLogger.Fatal("dial recognition service", "error", err.Error())
	}
	defer client.Close()

	ctx := context.Background()

	var uploader stt.Uploader
	u, err := obs.New(ctx, obs.Config{
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		Bucket:    cfg.Storage.Bucket,
		Region:    cfg.Storage.Region,
	}, saveLogger)
	if err != nil {
		mainLogger.Warn("object storage unavailable, uploads disabled",
			"error", err.Error())
	} else {
		uploader = u
	}

	capture := audio.NewCapture(func() (audio.Source, error) {
		return audio.OpenDefaultSource(cfg.Audio.FramesPerChunk)
	}, micLogger)

	sessionCfg := stt.SessionConfig{
		Language:          cfg.Session.Language,
		GapThreshold:      cfg.Session.GapThreshold,
		DurationThreshold: cfg.Session.DurationThreshold,
		SyllableThreshold: cfg.Session.SyllableThreshold,
		Deadline:          cfg.Session.Deadline,
		OutputPath:        cfg.Audio.OutputPath,
		SampleRate:        cfg.Audio.SampleRate,
		Channels:          cfg.Audio.Channels,
	}
	session := stt.NewSession(
		sessionCfg,
		capture,
		func(ctx context.Context) (stt.Stream, error) {
			return client.Recognize(ctx)
		},
		uploader,
		hearLogger,
	)

	if err := session.Start(ctx); err != nil {
		mainLogger.Fatal("start session", "error", err.Error())
	}
	mainLogger.Info("listening, press Ctrl+C to stop")

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	go func() {
		<-sc
		mainLogger.Info("stopping session")
		session.Stop()
	}()

	for ev := range session.Events() {
		switch ev.Kind {
		case stt.EventData:
			if ev.Transcription.IsSentenceEnd {
				fmt.Println(ev.Transcription.Text)
			}
		case stt.EventAudioUploaded:
			mainLogger.Info("recording archived", "url", ev.URL)
		case stt.EventAudioUploadFailed:
			mainLogger.Warn("recording not archived", "reason", ev.Message)
		case stt.EventError:
			mainLogger.Error("session error", "code", ev.Code, "message", ev.Message)
		}
	}
	session.Wait()

	if transcript := session.FullTranscript(); transcript != "" {
		fmt.Println()
		fmt.Println(transcript)
	}
}

func runDevices(cmd *cobra.Command, args []string) {
	mainLogger, _, _, _ := createLoggers()

	devices, err := audio.ListInputDevices()
	if err != nil {
		mainLogger.Fatal("enumerate devices", "error", err.Error())
	}

	if len(devices) == 0 {
		mainLogger.Fatal("no input devices found")
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Index", "Name", "Channels", "Sample Rate", "Default"})
	table.SetBorder(false)
	table.SetCenterSeparator("|")
	table.SetColumnSeparator("|")
	table.SetRowSeparator("-")
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)

	for _, d := range devices {
		def := ""
		if d.IsDefault {
			def = "*"
		}
		table.Append([]string{
			fmt.Sprintf("%d", d.Index),
			d.Name,
			fmt.Sprintf("%d", d.MaxInputChannels),
			fmt.Sprintf("%.0f Hz", d.DefaultSampleRate),
			def,
		})
	}

	table.Render()
}

func runDiarize(cmd *cobra.Command, args []string) {
	mainLogger, _, hearLogger, _ := createLoggers()

	cfg, err := config.Load()
	if err != nil {
		mainLogger.Fatal("load configuration", "error", err.Error())
	}
	if cfg.Clova.InvokeURL == "" {
		mainLogger.Fatal("missing CLOVA_INVOKE_URL or --clova-invoke-url=")
	}

	speakersMin, _ := cmd.Flags().GetInt("speakers-min")
	speakersMax, _ := cmd.Flags().GetInt("speakers-max")

	client := clovaspeech.NewClient(
		cfg.Clova.SecretKey,
		cfg.Clova.InvokeURL,
		hearLogger,
	)

	ctx := context.Background()
	token, err := client.CreateURLJob(
		ctx,
		args[0],
		cfg.Session.Language,
		speakersMin,
		speakersMax,
		"",
	)
	if err != nil {
		mainLogger.Fatal("submit recognition job", "error", err.Error())
	}

	result, err := client.WaitForResult(ctx, token.Token, 3*time.Second)
	if err != nil {
		mainLogger.Fatal("recognition job", "error", err.Error())
	}

	fmt.Println(result.Text)
	fmt.Println()

	stats, total := clovaspeech.SpeakerStats(result)
	if len(stats) == 0 {
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Speaker", "Talk Time", "Share", "Segments"})
	table.SetBorder(false)
	table.SetCenterSeparator("|")
	table.SetColumnSeparator("|")
	table.SetRowSeparator("-")
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)

	for label, st := range stats {
		name := st.Name
		if name == "" {
			name = label
		}
		table.Append([]string{
			name,
			st.TalkTime.Round(time.Millisecond).String(),
			fmt.Sprintf("%.1f%%", st.Ratio),
			fmt.Sprintf("%d", len(st.Segments)),
		})
	}

	table.Render()
	fmt.Printf("total talk time: %s\n", total.Round(time.Millisecond))
}

func createLoggers() (mainLogger, micLogger, hearLogger, saveLogger *log.Logger) {
	logLevel := log.DebugLevel

	logger.SetLevel(logLevel)
	logger.SetReportCaller(true)
	logger.SetCallerFormatter(
		func(file string, line int, funcName string) string {
			path, err := filepath.Rel(".", file)
			if err != nil {
				path = file
			}
			return fmt.Sprintf("%s:%d", path, line)
		},
	)

	styles := log.DefaultStyles()
	styles.Prefix = styles.Prefix.MarginTop(1).
		Bold(false).Transform(func(s string) string {
		return strings.TrimSuffix(s, ":")
	})
	styles.Levels[log.InfoLevel] = styles.Levels[log.InfoLevel].
		MaxWidth(6).
		MarginRight(1).
		Bold(false)
	styles.Levels[log.ErrorLevel] = styles.Levels[log.ErrorLevel].
		MaxWidth(6).
		MarginRight(1).
		Bold(false)
	styles.Message = styles.Message.Bold(true).Width(24)
	styles.Key = styles.Key.MarginLeft(1).
		Bold(false).
		Foreground(lipgloss.Color("#ff8800"))

	logger.SetStyles(styles)

	mainLogger = logger.With().WithPrefix("main")
	micLogger = logger.With().WithPrefix("mic")
	hearLogger = logger.With().WithPrefix("hear")
	saveLogger = logger.With().WithPrefix("save")

	return
}
