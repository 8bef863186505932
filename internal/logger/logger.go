package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents logging severity using slog levels
type Level slog.Level

const (
	DebugLevel Level = Level(slog.LevelDebug)
	InfoLevel  Level = Level(slog.LevelInfo)
	WarnLevel  Level = Level(slog.LevelWarn)
	ErrorLevel Level = Level(slog.LevelError)
	FatalLevel Level = Level(slog.LevelError + 4) // Custom level above ERROR
)

const defaultFilenamePattern = "gardencast-YYYYMMDD.log"

// Config represents logging configuration compatible with main config package
type Config struct {
	Enabled         bool   `toml:"enabled"`
	Directory       string `toml:"directory"`
	FilenamePattern string `toml:"filename_pattern"`
	Level           string `toml:"level"`
	MaxFiles        int    `toml:"max_files"`
	MaxSizeMB       int    `toml:"max_size_mb"`
	ConsoleOutput   bool   `toml:"console_output"`
}

// EnhancedLogger wraps slog.Logger with rotation and file management capabilities
type EnhancedLogger struct {
	*slog.Logger
	config   Config
	level    *slog.LevelVar
	file     *os.File
	fileName string
	fileSize int64
	mu       sync.Mutex
	out      io.Writer
}

var (
	globalLogger *EnhancedLogger
	globalMu     sync.Mutex
)

// Initialize creates and configures the global logger instance with the given configuration
func Initialize(config Config) error {
	l, err := NewEnhancedLogger(config)
	if err != nil {
		return err
	}

	globalMu.Lock()
	previous := globalLogger
	globalLogger = l
	globalMu.Unlock()

	if previous != nil {
		previous.Close()
	}
	return nil
}

// Get returns the global logger instance, creating a fallback console logger if not initialized
func Get() *EnhancedLogger {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalLogger == nil {
		level := new(slog.LevelVar)
		level.Set(slog.LevelInfo)
		globalLogger = &EnhancedLogger{
			Logger: slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})),
			level:  level,
			out:    os.Stdout,
		}
	}
	return globalLogger
}

// NewEnhancedLogger creates a new enhanced logger with the given configuration
func NewEnhancedLogger(config Config) (*EnhancedLogger, error) {
	if config.Enabled && config.FilenamePattern != "" {
		if err := ValidateFilenamePattern(config.FilenamePattern); err != nil {
			return nil, fmt.Errorf("invalid filename pattern: %w", err)
		}
	}

	l := &EnhancedLogger{
		config: config,
		level:  new(slog.LevelVar),
	}
	l.level.Set(parseLogLevel(config.Level))

	if config.Enabled {
		if err := os.MkdirAll(logDirectory(config.Directory), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		if err := l.openLogFile(); err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
	}
	l.resetWriter()

	// The logger itself is the handler's writer so rotation can swap files underneath
	l.Logger = slog.New(slog.NewTextHandler(l, &slog.HandlerOptions{
		Level:       l.level,
		ReplaceAttr: replaceAttr,
	}))

	l.Debug("Logger initialized",
		slog.String("log_file", l.fileName),
		slog.String("level", config.Level),
		slog.Bool("console", config.ConsoleOutput))

	return l, nil
}

func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.TimeKey:
		return slog.String(slog.TimeKey, a.Value.Time().Format("2006-01-02T15:04:05.000-07:00"))
	case slog.SourceKey:
		if source, ok := a.Value.Any().(*slog.Source); ok {
			return slog.String(slog.SourceKey, fmt.Sprintf("%s:%d", filepath.Base(source.File), source.Line))
		}
	}
	return a
}

// openLogFile creates or opens the current log file (caller must hold mutex)
func (l *EnhancedLogger) openLogFile() error {
	path := filepath.Join(logDirectory(l.config.Directory), generateLogFilename(l.config.FilenamePattern, time.Now()))

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}

	l.file = file
	l.fileName = path
	l.fileSize = info.Size()
	return nil
}

// resetWriter rebuilds the output fan-out (caller must hold mutex)
func (l *EnhancedLogger) resetWriter() {
	var writers []io.Writer
	if l.config.ConsoleOutput {
		writers = append(writers, os.Stdout)
	}
	if l.file != nil {
		writers = append(writers, l.file)
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}
	l.out = io.MultiWriter(writers...)
}

func logDirectory(dir string) string {
	if strings.TrimSpace(dir) == "" {
		return "logs"
	}
	return filepath.Clean(dir)
}

// generateLogFilename creates a filename from the pattern using date formatting
func generateLogFilename(pattern string, now time.Time) string {
	if pattern == "" {
		pattern = defaultFilenamePattern
	}

	replacer := strings.NewReplacer(
		"YYYY", fmt.Sprintf("%04d", now.Year()),
		"MM", fmt.Sprintf("%02d", now.Month()),
		"DD", fmt.Sprintf("%02d", now.Day()),
		"HH", fmt.Sprintf("%02d", now.Hour()),
	)
	return replacer.Replace(pattern)
}

// parseLogLevel converts string level to slog.Level
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// rotateIfNeeded rotates by size or by date change (caller must hold mutex)
func (l *EnhancedLogger) rotateIfNeeded() error {
	if l.file == nil || !l.config.Enabled {
		return nil
	}

	maxSize := int64(l.config.MaxSizeMB) * 1024 * 1024
	sizeExceeded := maxSize > 0 && l.fileSize >= maxSize
	dateChanged := filepath.Base(l.fileName) != generateLogFilename(l.config.FilenamePattern, time.Now())
	if !sizeExceeded && !dateChanged {
		return nil
	}

	l.file.Close()
	l.file = nil

	if sizeExceeded {
		ext := filepath.Ext(l.fileName)
		archived := fmt.Sprintf("%s-%s%s", strings.TrimSuffix(l.fileName, ext), time.Now().Format("20060102-150405"), ext)
		if err := os.Rename(l.fileName, archived); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to archive log file: %v\n", err)
		}
	}

	if err := l.openLogFile(); err != nil {
		l.resetWriter()
		return err
	}
	l.resetWriter()

	if l.config.MaxFiles > 0 {
		go cleanOldFiles(filepath.Dir(l.fileName), l.config.FilenamePattern, l.config.MaxFiles)
	}
	return nil
}

// cleanOldFiles keeps the newest maxFiles logs matching the pattern
func cleanOldFiles(dir, pattern string, maxFiles int) {
	if pattern == "" {
		pattern = defaultFilenamePattern
	}
	glob := strings.NewReplacer("YYYY", "*", "MM", "*", "DD", "*", "HH", "*").Replace(pattern)
	ext := filepath.Ext(glob)
	glob = strings.TrimSuffix(glob, ext) + "*" + ext

	matches, err := filepath.Glob(filepath.Join(dir, glob))
	if err != nil || len(matches) <= maxFiles {
		return
	}

	type fileInfo struct {
		path    string
		modTime time.Time
	}
	files := make([]fileInfo, 0, len(matches))
	for _, match := range matches {
		if info, err := os.Stat(match); err == nil {
			files = append(files, fileInfo{path: match, modTime: info.ModTime()})
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })
	for _, f := range files[min(maxFiles, len(files)):] {
		os.Remove(f.path)
	}
}

// Write implements io.Writer interface with rotation check
func (l *EnhancedLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n, err := l.out.Write(p)
	if err != nil {
		return n, err
	}
	l.fileSize += int64(n)

	if err := l.rotateIfNeeded(); err != nil {
		fmt.Fprintf(os.Stderr, "Log rotation error: %v\n", err)
	}
	return n, nil
}

// Close closes the log file
func (l *EnhancedLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		l.resetWriter()
		return err
	}
	return nil
}

// FileName returns the active log file path, empty for console-only loggers
func (l *EnhancedLogger) FileName() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fileName
}

// SetLevel changes the minimum level of the global logger at runtime
func SetLevel(level Level) {
	l := Get()
	if l.level != nil {
		l.level.Set(slog.Level(level))
	}
}

// Debug logs a debug message
func Debug(format string, args ...interface{}) {
	Get().Debug(fmt.Sprintf(format, args...))
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	Get().Info(fmt.Sprintf(format, args...))
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	Get().Warn(fmt.Sprintf(format, args...))
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	Get().Error(fmt.Sprintf(format, args...))
}

// Fatal logs a fatal message and exits
func Fatal(format string, args ...interface{}) {
	Get().Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}

// LogAPIRequest logs the start of an API request with structured fields.
// Query strings are never passed in, so credentials stay out of the log.
func LogAPIRequest(method, url string, headers map[string]string) {
	fields := []any{
		"method", method,
		"url", url,
		"type", "api_request",
	}
	if userAgent := headers["User-Agent"]; userAgent != "" {
		fields = append(fields, "user_agent", userAgent)
	}

	Get().LogAttrs(context.Background(), slog.LevelDebug, "API request started", slog.Group("request", fields...))
}

// LogAPIResponse logs an API response with structured fields
func LogAPIResponse(method, url string, statusCode int, duration time.Duration, bodySize int) {
	level := slog.LevelDebug
	if statusCode >= 400 {
		level = slog.LevelWarn
	}
	if statusCode >= 500 {
		level = slog.LevelError
	}

	Get().LogAttrs(context.Background(), level, "API request completed",
		slog.Group("request",
			"method", method,
			"url", url,
			"status_code", statusCode,
			"duration", duration,
			"body_size", bodySize,
			"type", "api_response",
		),
	)
}

// LogOperationStart logs the beginning of an operation and returns a completion function
func LogOperationStart(operation string, details map[string]any) func(error) {
	startTime := time.Now()

	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.String("type", "operation_start"),
	}
	if len(details) > 0 {
		detailAttrs := make([]any, 0, len(details)*2)
		for _, k := range sortedKeys(details) {
			detailAttrs = append(detailAttrs, k, details[k])
		}
		attrs = append(attrs, slog.Group("details", detailAttrs...))
	}

	Get().LogAttrs(context.Background(), slog.LevelDebug, "Operation started", attrs...)

	return func(err error) {
		level := slog.LevelInfo
		message := "Operation completed"

		completion := []slog.Attr{
			slog.String("operation", operation),
			slog.String("type", "operation_complete"),
			slog.Duration("duration", time.Since(startTime)),
			slog.Bool("success", err == nil),
		}
		if err != nil {
			level = slog.LevelWarn
			message = "Operation failed"
			completion = append(completion, slog.String("error", err.Error()))
		}

		Get().LogAttrs(context.Background(), level, message, completion...)
	}
}

// LogWithFields logs a message with custom structured fields
func LogWithFields(level Level, message string, fields map[string]any) {
	slogLevel := slog.Level(level)
	if level == FatalLevel {
		slogLevel = slog.LevelError
	}

	attrs := make([]slog.Attr, 0, len(fields))
	for _, k := range sortedKeys(fields) {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}

	Get().LogAttrs(context.Background(), slogLevel, message, attrs...)

	if level == FatalLevel {
		os.Exit(1)
	}
}

// ParseLevel converts a string to a log level
func ParseLevel(levelStr string) (Level, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown log level: %s", levelStr)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
