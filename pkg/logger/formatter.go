package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// leadingFields are printed before any other field so that entries for
// the same request or ride line up when grepping text logs.
var leadingFields = []string{"request_id", "user_id", "ride_id", "task"}

// JSONFormatter writes one JSON object per entry.
type JSONFormatter struct {
	TimestampFormat string
	AppName         string
	Version         string
}

// TextFormatter writes "time [LEVEL] message k=v ..." lines.
type TextFormatter struct {
	TimestampFormat string
	Colors          bool
	AppName         string
}

func (f *JSONFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	data := make(logrus.Fields, len(entry.Data)+5)
	for k, v := range entry.Data {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		data[k] = v
	}

	data["timestamp"] = entry.Time.Format(orDefault(f.TimestampFormat, time.RFC3339))
	data["level"] = entry.Level.String()
	data["message"] = entry.Message
	if f.AppName != "" {
		data["app"] = f.AppName
	}
	if f.Version != "" {
		data["version"] = f.Version
	}
	if entry.HasCaller() {
		data["caller"] = fmt.Sprintf("%s:%d", entry.Caller.File, entry.Caller.Line)
	}

	b := bufferFor(entry)
	if err := json.NewEncoder(b).Encode(data); err != nil {
		return nil, fmt.Errorf("encode log entry: %w", err)
	}
	return b.Bytes(), nil
}

func (f *TextFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	b := bufferFor(entry)

	level := strings.ToUpper(entry.Level.String())
	if f.Colors {
		level = levelColor(entry.Level) + level + "\033[0m"
	}
	fmt.Fprintf(b, "%s [%s] ", entry.Time.Format(orDefault(f.TimestampFormat, "2006-01-02 15:04:05")), level)

	if f.AppName != "" {
		fmt.Fprintf(b, "[%s] ", f.AppName)
	}
	if entry.HasCaller() {
		fmt.Fprintf(b, "[%s:%d] ", entry.Caller.File, entry.Caller.Line)
	}
	b.WriteString(entry.Message)

	for _, key := range orderedKeys(entry.Data) {
		fmt.Fprintf(b, " %s=%v", key, entry.Data[key])
	}
	b.WriteByte('\n')

	return b.Bytes(), nil
}

// orderedKeys returns the leading fields that are present, then the rest
// alphabetically.
func orderedKeys(fields logrus.Fields) []string {
	keys := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(leadingFields))
	for _, key := range leadingFields {
		if _, ok := fields[key]; ok {
			keys = append(keys, key)
			seen[key] = true
		}
	}

	rest := make([]string, 0, len(fields))
	for key := range fields {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)

	return append(keys, rest...)
}

func levelColor(level logrus.Level) string {
	switch level {
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return "\033[31m"
	case logrus.WarnLevel:
		return "\033[33m"
	case logrus.InfoLevel:
		return "\033[36m"
	default:
		return "\033[37m"
	}
}

func bufferFor(entry *logrus.Entry) *bytes.Buffer {
	if entry.Buffer != nil {
		return entry.Buffer
	}
	return &bytes.Buffer{}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
