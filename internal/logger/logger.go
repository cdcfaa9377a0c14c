package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var levelNames = map[LogLevel]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
	FATAL: "FATAL",
}

// ParseLevel maps a LOG_LEVEL value to a LogLevel, defaulting to INFO.
func ParseLevel(s string) LogLevel {
	for lvl, name := range levelNames {
		if strings.EqualFold(name, s) {
			return lvl
		}
	}
	return INFO
}

type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Service   string `json:"service"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
}

// Options controls where a Logger writes. A zero Dir disables the JSON file sink.
type Options struct {
	Service string
	Dir     string
	Level   LogLevel
	Color   bool
	Output  io.Writer
}

type Logger struct {
	mu           sync.Mutex
	service      string
	minLevel     LogLevel
	out          io.Writer
	logFile      *os.File
	colorEnabled bool
}

// NewLogger builds the service logger: colored lines on stdout plus a daily
// JSON-lines file under logs/.
func NewLogger() *Logger {
	return New(Options{
		Service: "booking-service",
		Dir:     "logs",
		Level:   ParseLevel(os.Getenv("LOG_LEVEL")),
		Color:   true,
		Output:  os.Stdout,
	})
}

// NewNop returns a logger that discards everything. Used by tests.
func NewNop() *Logger {
	return New(Options{Service: "test", Output: io.Discard, Level: FATAL + 1})
}

func New(opts Options) *Logger {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	l := &Logger{
		service:      opts.Service,
		minLevel:     opts.Level,
		out:          opts.Output,
		colorEnabled: opts.Color,
	}

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			log.Fatal("Failed to create logs directory:", err)
		}
		name := filepath.Join(opts.Dir, fmt.Sprintf("%s-%s.log", opts.Service, time.Now().Format("2006-01-02")))
		f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			log.Fatal("Failed to create log file:", err)
		}
		l.logFile = f
		l.Info("LOGGER", fmt.Sprintf("Log file: %s", name))
	}

	return l
}

func (l *Logger) log(level LogLevel, category, message string) {
	if level < l.minLevel {
		return
	}

	_, file, line, ok := runtime.Caller(3)
	if ok {
		file = filepath.Base(file)
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Level:     levelNames[level],
		Service:   l.service,
		Category:  strings.ToUpper(category),
		Message:   message,
		File:      file,
		Line:      line,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprint(l.out, l.formatTerminalOutput(entry))
	if l.logFile != nil {
		jsonBytes, _ := json.Marshal(entry)
		l.logFile.Write(append(jsonBytes, '\n'))
	}
}

func (l *Logger) formatTerminalOutput(entry LogEntry) string {
	timestamp := entry.Timestamp[11:19]

	if !l.colorEnabled {
		return fmt.Sprintf("%s %-5s [%-10s] %s (%s:%d)\n", timestamp, entry.Level, entry.Category, entry.Message, entry.File, entry.Line)
	}

	var attrs []color.Attribute
	switch entry.Level {
	case "DEBUG":
		attrs = []color.Attribute{color.FgCyan}
	case "INFO":
		attrs = []color.Attribute{color.FgGreen}
	case "WARN":
		attrs = []color.Attribute{color.FgYellow}
	default:
		attrs = []color.Attribute{color.FgRed}
	}

	timeStr := color.New(color.FgBlue).Sprint(timestamp)
	levelStr := color.New(attrs...).Sprintf("%-5s", entry.Level)
	categoryStr := color.New(append(attrs, color.Bold)...).Sprintf("[%-10s]", entry.Category)

	if entry.File != "" && entry.Line > 0 {
		fileInfo := color.New(color.FgMagenta).Sprintf(" (%s:%d)", entry.File, entry.Line)
		return fmt.Sprintf("%s %s %s %s%s\n", timeStr, levelStr, categoryStr, entry.Message, fileInfo)
	}
	return fmt.Sprintf("%s %s %s %s\n", timeStr, levelStr, categoryStr, entry.Message)
}

// emit keeps the caller depth identical for public and helper methods.
func (l *Logger) emit(level LogLevel, category, message string) {
	l.log(level, category, message)
}

func (l *Logger) Debug(category, message string) {
	l.emit(DEBUG, category, message)
}

func (l *Logger) Info(category, message string) {
	l.emit(INFO, category, message)
}

func (l *Logger) Warn(category, message string) {
	l.emit(WARN, category, message)
}

func (l *Logger) Error(category, message string) {
	l.emit(ERROR, category, message)
}

func (l *Logger) Fatal(category, message string) {
	l.emit(FATAL, category, message)
	l.Close()
	os.Exit(1)
}

// Component helpers

func (l *Logger) LogBooking(action, bookingNumber, message string) {
	l.emit(INFO, "BOOKING", fmt.Sprintf("[%s] %s - %s", action, bookingNumber, message))
}

func (l *Logger) LogAPI(method, path string, status int, duration time.Duration) {
	l.emit(INFO, "API", fmt.Sprintf("%s %s - %d (%s)", method, path, status, duration))
}

func (l *Logger) LogKafka(action, topic, message string) {
	l.emit(INFO, "KAFKA", fmt.Sprintf("[%s] %s - %s", action, topic, message))
}

func (l *Logger) LogDatabase(operation, table, message string) {
	l.emit(INFO, "DATABASE", fmt.Sprintf("[%s] %s - %s", operation, table, message))
}

func (l *Logger) LogSecurity(event, message string) {
	l.emit(WARN, "SECURITY", fmt.Sprintf("[%s] %s", event, message))
}

func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logFile != nil {
		l.logFile.Close()
		l.logFile = nil
	}
}
