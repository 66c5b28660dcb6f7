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
	answerFile *os.File
	logMu      sync.Mutex
	logReady   bool
	pid        int
	dir        string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		if !filepath.IsAbs(flagPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, flagPath), nil
		}
		return flagPath, nil
	}

	// Priority 2: PARLEY_LOG_PATH environment variable
	envPath := os.Getenv("PARLEY_LOG_PATH")
	if envPath != "" {
		if !filepath.IsAbs(envPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, envPath), nil
		}
		return envPath, nil
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
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

	answerPath := filepath.Join(dir, "answers_log.txt")
	answerFile, err = os.OpenFile(answerPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
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

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if answerFile != nil {
		answerFile.Close()
		answerFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
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

// Usage records the snapshot after each fetch so the log mirrors what the
// counter showed.
func Usage(used, limit, remaining int, blocked bool) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("used", used).
		Int("limit", limit).
		Int("remaining", remaining).
		Bool("blocked", blocked).
		Msg("usage")
}

// Guard records the outcome of a gated action: "ok", "failed", "blocked"
// or "upgrade required".
func Guard(action, outcome string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("action", action).
		Str("outcome", outcome).
		Msg("guard")
}

// Playback records a completed TTS fetch for one audio source.
func Playback(source, voice, format string, sizeBytes int, totalMs float64) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("source", source).
		Str("voice", voice).
		Str("format", format).
		Int("bytes", sizeBytes).
		Float64("total_ms", totalMs).
		Msg("tts_fetch")
}

// AnswerText appends an improved answer to the answers log.
func AnswerText(text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, text)
	answerFile.WriteString(line)
}

func SessionStart(identity, plan string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("identity", identity).
		Str("plan", plan).
		Msg("session_start")
}

func SessionEnd(answers int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("answers", answers).
		Msg("session_end")
}
