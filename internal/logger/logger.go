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

type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
}

type Options struct {
	// MinLevel drops entries below this level.
	MinLevel LogLevel
	// Color enables ANSI colours on the terminal writer.
	Color bool
	// JSON receives one JSON document per entry when set.
	JSON io.Writer
}

type Logger struct {
	mu           sync.Mutex
	terminal     io.Writer
	jsonOut      io.Writer
	logFile      *os.File
	minLevel     LogLevel
	colorEnabled bool
	exit         func(int)
}

// NewLogger writes coloured lines to stdout and mirrors JSON entries to
// <dir>/<service>-<date>.log.
func NewLogger(dir, service string) *Logger {
	if dir == "" {
		dir = "logs"
	}
	if service == "" {
		service = "terrace-booking"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Fatal("Failed to create logs directory:", err)
	}

	timestamp := time.Now().Format("2006-01-02")
	logFileName := filepath.Join(dir, fmt.Sprintf("%s-%s.log", service, timestamp))

	logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Fatal("Failed to create log file:", err)
	}

	l := New(os.Stdout, Options{MinLevel: DEBUG, Color: true, JSON: logFile})
	l.logFile = logFile

	l.Info("LOGGER", "Logging system initialized")
	l.Info("LOGGER", fmt.Sprintf("Log file: %s", logFileName))
	return l
}

func New(w io.Writer, opts Options) *Logger {
	if w == nil {
		w = io.Discard
	}
	return &Logger{
		terminal:     w,
		jsonOut:      opts.JSON,
		minLevel:     opts.MinLevel,
		colorEnabled: opts.Color,
		exit:         os.Exit,
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return New(io.Discard, Options{MinLevel: FATAL + 1})
}

func (l *Logger) log(level LogLevel, category, message string) {
	if level < l.minLevel {
		return
	}

	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Level:     levelToString(level),
		Category:  strings.ToUpper(category),
		Message:   message,
		File:      file,
		Line:      line,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprint(l.terminal, l.formatTerminalOutput(entry))
	if l.jsonOut != nil {
		fmt.Fprintln(l.jsonOut, formatJSONOutput(entry))
	}
}

func (l *Logger) formatTerminalOutput(entry LogEntry) string {
	timestamp := entry.Timestamp[11:19]

	if !l.colorEnabled {
		if entry.File != "" && entry.Line > 0 {
			return fmt.Sprintf("%s %-5s [%-10s] %s (%s:%d)\n", timestamp, entry.Level, entry.Category, entry.Message, entry.File, entry.Line)
		}
		return fmt.Sprintf("%s %-5s [%-10s] %s\n", timestamp, entry.Level, entry.Category, entry.Message)
	}

	var levelColor, categoryColor *color.Color
	switch entry.Level {
	case "DEBUG":
		levelColor = color.New(color.FgCyan)
		categoryColor = color.New(color.FgCyan, color.Bold)
	case "INFO":
		levelColor = color.New(color.FgGreen)
		categoryColor = color.New(color.FgGreen, color.Bold)
	case "WARN":
		levelColor = color.New(color.FgYellow)
		categoryColor = color.New(color.FgYellow, color.Bold)
	case "ERROR":
		levelColor = color.New(color.FgRed)
		categoryColor = color.New(color.FgRed, color.Bold)
	case "FATAL":
		levelColor = color.New(color.FgRed, color.Bold)
		categoryColor = color.New(color.FgRed, color.Bold)
	default:
		levelColor = color.New(color.FgWhite)
		categoryColor = color.New(color.FgWhite, color.Bold)
	}

	timeStr := color.New(color.FgBlue).Sprintf("%s", timestamp)
	levelStr := levelColor.Sprintf("%-5s", entry.Level)
	categoryStr := categoryColor.Sprintf("[%-10s]", entry.Category)

	if entry.File != "" && entry.Line > 0 {
		fileInfo := color.New(color.FgMagenta).Sprintf(" (%s:%d)", entry.File, entry.Line)
		return fmt.Sprintf("%s %s %s %s%s\n", timeStr, levelStr, categoryStr, entry.Message, fileInfo)
	}
	return fmt.Sprintf("%s %s %s %s\n", timeStr, levelStr, categoryStr, entry.Message)
}

func formatJSONOutput(entry LogEntry) string {
	jsonBytes, _ := json.Marshal(entry)
	return string(jsonBytes)
}

func levelToString(level LogLevel) string {
	switch level {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "INFO"
	}
}

func (l *Logger) Debug(category, message string) {
	l.log(DEBUG, category, message)
}

func (l *Logger) Info(category, message string) {
	l.log(INFO, category, message)
}

func (l *Logger) Warn(category, message string) {
	l.log(WARN, category, message)
}

func (l *Logger) Error(category, message string) {
	l.log(ERROR, category, message)
}

func (l *Logger) Fatal(category, message string) {
	l.log(FATAL, category, message)
	l.exit(1)
}

// Specialized logging methods for the terrace components
func (l *Logger) LogBooking(action, bookingID, message string) {
	l.Info("BOOKING", fmt.Sprintf("[%s] %s - %s", action, bookingID, message))
}

func (l *Logger) LogAPI(method, path, status, duration string) {
	l.Info("API", fmt.Sprintf("%s %s - %s (%s)", method, path, status, duration))
}

func (l *Logger) LogKafka(action, topic, message string) {
	l.Info("KAFKA", fmt.Sprintf("[%s] %s - %s", action, topic, message))
}

func (l *Logger) LogStore(operation, backend, message string) {
	l.Info("STORE", fmt.Sprintf("[%s] %s - %s", operation, backend, message))
}

func (l *Logger) LogSweep(message string) {
	l.Info("SWEEP", message)
}

func (l *Logger) Close() {
	if l.logFile != nil {
		l.Info("LOGGER", "Closing log file")
		l.logFile.Close()
	}
}
