package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog    zerolog.Logger
	diagFile   *os.File
	lettersLog *os.File
	logMu      sync.Mutex
	logReady   bool
	pid        int
	dir        string
)

// EnvPath overrides the default log directory when -logpath is not given.
const EnvPath = "CLINICLETTER_LOG_PATH"

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absolute(flagPath)
	}

	// Priority 2: environment variable
	if envPath := os.Getenv(EnvPath); envPath != "" {
		return absolute(envPath)
	}

	// Priority 3: default OS-specific location
	return getDefaultDir()
}

func absolute(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	lettersPath := filepath.Join(dir, "letters_log.txt")
	lettersLog, err = os.OpenFile(lettersPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

// SetLevel filters diagnostics below level ("debug", "info", "warn", "error").
func SetLevel(level string) error {
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	logMu.Lock()
	defer logMu.Unlock()
	diagLog = diagLog.Level(l)
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if lettersLog != nil {
		lettersLog.Close()
		lettersLog = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func SessionStart(generationURL, deliveryURL, mode string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("generation", generationURL).
		Str("delivery", deliveryURL).
		Str("mode", mode).
		Msg("session_start")
}

type CaptureStats struct {
	Format    string
	Device    string
	Chunks    int
	AudioS    float64
	RawKB     float64
	EncodedKB float64
	EncodeMs  float64
}

func CaptureMetrics(s CaptureStats) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("format", s.Format).
		Str("device", s.Device).
		Int("chunks", s.Chunks).
		Float64("audio_s", s.AudioS).
		Float64("raw_kb", s.RawKB).
		Float64("encoded_kb", s.EncodedKB).
		Float64("encode_ms", s.EncodeMs).
		Msg("capture")
}

type NetworkStats struct {
	DNSMs      float64
	TLSMs      float64
	TTFBMs     float64
	TotalMs    float64
	ConnReused bool
}

// Submission records the outcome of one generation request. kind is
// "generated" or "fallback"; cause is the absorbed error for fallbacks.
func Submission(letterID, kind string, status int, n *NetworkStats, cause error) {
	if !logReady {
		return
	}
	ev := diagLog.Info().
		Str("letter_id", letterID).
		Str("kind", kind).
		Int("status", status)
	if n != nil {
		connStatus := "new"
		if n.ConnReused {
			connStatus = "reused"
		}
		ev = ev.Str("conn", connStatus).
			Float64("dns_ms", n.DNSMs).
			Float64("tls_ms", n.TLSMs).
			Float64("ttfb_ms", n.TTFBMs).
			Float64("total_ms", n.TotalMs)
	}
	if cause != nil {
		ev = ev.AnErr("cause", cause)
	}
	ev.Msg("submission")
}

func Artifact(letterID, purpose string, sizeBytes int, budget int64, renderMs float64) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("letter_id", letterID).
		Str("purpose", purpose).
		Float64("size_kb", float64(sizeBytes)/1024).
		Float64("budget_kb", float64(budget)/1024).
		Float64("render_ms", renderMs).
		Msg("artifact")
}

// LetterSent appends one audit line for a delivered letter.
func LetterSent(letterID, patientEmail, filename string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("letter_id", letterID).
		Str("filename", filename).
		Msg("letter_sent")

	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t%s\t%s\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, letterID, patientEmail, filename)
	lettersLog.WriteString(line)
}

func SessionEnd(sent int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("sent", sent).
		Msg("session_end")
}
