// Package logger is a small levelled logger with optional colour, caller and
// component prefixes. A process-wide instance is available via GetLogger.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[90m"

	defaultTimeFormat = "2006-01-02 15:04:05"
)

var levelTable = [...]struct {
	name  string
	color string
}{
	DEBUG: {"DEBUG", colorGray},
	INFO:  {"INFO", colorBlue},
	WARN:  {"WARN", colorYellow},
	ERROR: {"ERROR", colorRed},
	FATAL: {"FATAL", colorRed},
}

func (l LogLevel) valid() bool {
	return l >= DEBUG && int(l) < len(levelTable)
}

func (l LogLevel) String() string {
	if !l.valid() {
		return "UNKNOWN"
	}
	return levelTable[l].name
}

// ParseLevel maps a level name to its LogLevel. Unknown names report false.
func ParseLevel(name string) (LogLevel, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "WARNING" {
		return WARN, true
	}
	for l, info := range levelTable {
		if info.name == name {
			return LogLevel(l), true
		}
	}
	return INFO, false
}

// LevelFromEnv reads LANDMARK_LOG_LEVEL, then LOG_LEVEL, and returns
// fallback when neither holds a known level.
func LevelFromEnv(fallback LogLevel) LogLevel {
	for _, key := range []string{"LANDMARK_LOG_LEVEL", "LOG_LEVEL"} {
		if level, ok := ParseLevel(os.Getenv(key)); ok {
			return level
		}
	}
	return fallback
}

type Config struct {
	Level      LogLevel
	Prefix     string
	Colorize   bool
	ShowCaller bool
	ShowTime   bool
	TimeFormat string
	Output     io.Writer
}

func DefaultConfig() Config {
	return Config{
		Level:      INFO,
		Colorize:   true,
		ShowTime:   true,
		TimeFormat: defaultTimeFormat,
		Output:     os.Stdout,
	}
}

// sink is the writer shared by a logger and every child made with With.
type sink struct {
	mu  sync.Mutex
	out io.Writer
}

// Logger writes one line per call. Settings are guarded by the sink lock.
type Logger struct {
	sink *sink
	cfg  Config
}

func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = defaultTimeFormat
	}
	return &Logger{sink: &sink{out: cfg.Output}, cfg: cfg}
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// GetLogger returns the process-wide logger, configured from the
// environment on first use.
func GetLogger() *Logger {
	once.Do(func() {
		cfg := DefaultConfig()
		cfg.Level = LevelFromEnv(cfg.Level)
		defaultLogger = New(cfg)
	})
	return defaultLogger
}

// With returns a child that tags every line with [component] after the
// parent's prefix. The child starts with the parent's settings and shares
// its output.
func (l *Logger) With(component string) *Logger {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	cfg := l.cfg
	tag := "[" + component + "]"
	if cfg.Prefix != "" {
		tag = cfg.Prefix + " " + tag
	}
	cfg.Prefix = tag
	return &Logger{sink: l.sink, cfg: cfg}
}

func (l *Logger) SetLevel(level LogLevel) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.cfg.Level = level
}

// SetOutput redirects this logger and all of its children.
func (l *Logger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.out = w
}

func (l *Logger) SetColorize(colorize bool) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.cfg.Colorize = colorize
}

func (l *Logger) SetShowCaller(show bool) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.cfg.ShowCaller = show
}

// emit formats and writes one line. depth is the number of frames between
// emit and the code that called the public logging function.
func (l *Logger) emit(depth int, level LogLevel, format string, args []any) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if level < l.cfg.Level {
		return
	}

	var b strings.Builder
	if l.cfg.ShowTime {
		b.WriteString(time.Now().Format(l.cfg.TimeFormat))
		b.WriteByte(' ')
	}

	tag := "[" + level.String() + "]"
	if l.cfg.Colorize && level.valid() {
		tag = levelTable[level].color + tag + colorReset
	}
	b.WriteString(tag)

	if l.cfg.ShowCaller {
		if _, file, line, ok := runtime.Caller(depth + 1); ok {
			fmt.Fprintf(&b, " %s:%d", filepath.Base(file), line)
		}
	}
	if l.cfg.Prefix != "" {
		b.WriteByte(' ')
		b.WriteString(l.cfg.Prefix)
	}

	b.WriteByte(' ')
	if len(args) > 0 {
		fmt.Fprintf(&b, format, args...)
	} else {
		// no args: print as is, so a literal % survives
		b.WriteString(format)
	}
	b.WriteByte('\n')
	io.WriteString(l.sink.out, b.String())

	if level == FATAL {
		os.Exit(1)
	}
}

func (l *Logger) Debug(msg string, args ...any) { l.emit(1, DEBUG, msg, args) }
func (l *Logger) Info(msg string, args ...any) { l.emit(1, INFO, msg, args) }
func (l *Logger) Warn(msg string, args ...any) { l.emit(1, WARN, msg, args) }
func (l *Logger) Error(msg string, args ...any) { l.emit(1, ERROR, msg, args) }

// Fatal logs at FATAL level and exits the process.
func (l *Logger) Fatal(msg string, args ...any) { l.emit(1, FATAL, msg, args) }

func (l *Logger) Debugf(format string, args ...any) { l.emit(1, DEBUG, format, args) }
func (l *Logger) Infof(format string, args ...any) { l.emit(1, INFO, format, args) }
func (l *Logger) Warnf(format string, args ...any) { l.emit(1, WARN, format, args) }
func (l *Logger) Errorf(format string, args ...any) { l.emit(1, ERROR, format, args) }
func (l *Logger) Fatalf(format string, args ...any) { l.emit(1, FATAL, format, args) }

// Package-level helpers write through GetLogger.

func Debug(msg string, args ...any) { GetLogger().emit(1, DEBUG, msg, args) }
func Info(msg string, args ...any) { GetLogger().emit(1, INFO, msg, args) }
func Warn(msg string, args ...any) { GetLogger().emit(1, WARN, msg, args) }
func Error(msg string, args ...any) { GetLogger().emit(1, ERROR, msg, args) }
func Fatal(msg string, args ...any) { GetLogger().emit(1, FATAL, msg, args) }

func Debugf(format string, args ...any) { GetLogger().emit(1, DEBUG, format, args) }
func Infof(format string, args ...any) { GetLogger().emit(1, INFO, format, args) }
func Warnf(format string, args ...any) { GetLogger().emit(1, WARN, format, args) }
func Errorf(format string, args ...any) { GetLogger().emit(1, ERROR, format, args) }
func Fatalf(format string, args ...any) { GetLogger().emit(1, FATAL, format, args) }

func SetLevel(level LogLevel) { GetLogger().SetLevel(level) }
func SetOutput(w io.Writer) { GetLogger().SetOutput(w) }
func SetColorize(colorize bool) { GetLogger().SetColorize(colorize) }
func SetShowCaller(show bool) { GetLogger().SetShowCaller(show) }
