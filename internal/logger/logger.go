package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Levels in increasing severity.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

var levelRank = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// LogEntry represents a single log record.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

var (
	mu          sync.RWMutex
	logEntries  []LogEntry
	maxEntries  = 1000
	maxFileSize = int64(5 * 1024 * 1024)
	minLevel    = LevelInfo
	console     = io.Writer(os.Stderr)
	logFilePath string
	logFile     *os.File
	logChan     = make(chan LogEntry, 100)
	done        chan struct{}
	workerDone  chan struct{}

	secretsMu sync.RWMutex
	secrets   []string

	basicAuthRegex = regexp.MustCompile(`Basic [A-Za-z0-9+/=]{4,}`)
)

// Init opens a dated log file under dir and starts the file writer.
func Init(dir string) error {
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logFilePath = filepath.Join(dir, fmt.Sprintf("%s rpcwire.log", time.Now().Format("20060102")))
	f, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	logFile = f

	done = make(chan struct{})
	workerDone = make(chan struct{})
	go logWorker()

	return nil
}

// SetLevel sets the minimum level printed and recorded. Unknown names are ignored.
func SetLevel(level string) {
	level = strings.ToUpper(strings.TrimSpace(level))
	if _, ok := levelRank[level]; !ok {
		return
	}
	mu.Lock()
	minLevel = level
	mu.Unlock()
}

// SetOutput redirects console output. A nil writer silences the console.
func SetOutput(w io.Writer) {
	mu.Lock()
	console = w
	mu.Unlock()
}

// Redact registers a secret that is masked in every later message.
func Redact(secret string) {
	if len(secret) < 4 {
		return
	}
	secretsMu.Lock()
	defer secretsMu.Unlock()
	for _, s := range secrets {
		if s == secret {
			return
		}
	}
	secrets = append(secrets, secret)
}

func redact(message string) string {
	message = basicAuthRegex.ReplaceAllString(message, "Basic REDACTED")
	secretsMu.RLock()
	defer secretsMu.RUnlock()
	for _, s := range secrets {
		message = strings.ReplaceAll(message, s, "REDACTED")
	}
	return message
}

// AddLog adds a new log entry.
func AddLog(level, message string) {
	mu.RLock()
	enabled := levelRank[level] >= levelRank[minLevel]
	out := console
	mu.RUnlock()
	if !enabled {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().Format(time.RFC3339),
		Level:     level,
		Message:   redact(message),
	}

	mu.Lock()
	logEntries = append(logEntries, entry)
	if len(logEntries) > maxEntries {
		logEntries = logEntries[len(logEntries)-maxEntries:]
	}
	mu.Unlock()

	if out != nil {
		fmt.Fprintf(out, "[%s] [%s] %s\n", entry.Timestamp, level, entry.Message)
	}

	select {
	case logChan <- entry:
	default:
		// drop when the file writer falls behind
	}
}

func Debugf(format string, args ...any) { AddLog(LevelDebug, fmt.Sprintf(format, args...)) }
func Infof(format string, args ...any)  { AddLog(LevelInfo, fmt.Sprintf(format, args...)) }
func Warnf(format string, args ...any)  { AddLog(LevelWarn, fmt.Sprintf(format, args...)) }
func Errorf(format string, args ...any) { AddLog(LevelError, fmt.Sprintf(format, args...)) }

// GetLogs returns all logs currently in memory.
func GetLogs() []LogEntry {
	mu.RLock()
	defer mu.RUnlock()

	res := make([]LogEntry, len(logEntries))
	copy(res, logEntries)
	return res
}

// ClearLogs wipes the in-memory entries and truncates the log file if one is open.
func ClearLogs() error {
	mu.Lock()
	defer mu.Unlock()

	logEntries = []LogEntry{}
	if logFile == nil {
		return nil
	}

	logFile.Close()
	f, err := os.OpenFile(logFilePath, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		logFile = nil
		return err
	}
	logFile = f
	return nil
}

// GetLogFilePath returns the path to the log file.
func GetLogFilePath() string {
	mu.RLock()
	defer mu.RUnlock()
	return logFilePath
}

// Close flushes and closes the log file.
func Close() {
	if done != nil {
		close(done)
		<-workerDone
		done = nil
	}

	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

func logWorker() {
	defer close(workerDone)
	for {
		select {
		case entry := <-logChan:
			writeEntry(entry)
		case <-done:
			for {
				select {
				case entry := <-logChan:
					writeEntry(entry)
				default:
					return
				}
			}
		}
	}
}

func writeEntry(entry LogEntry) {
	mu.Lock()
	defer mu.Unlock()

	f := logFile
	if f == nil {
		return
	}

	if info, err := f.Stat(); err == nil && info.Size() > maxFileSize {
		f.Close()
		f, err = os.OpenFile(logFilePath, os.O_TRUNC|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			logFile = nil
			return
		}
		logFile = f
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	f.Write(append(data, '\n'))
}
