package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newBufferLogger(t *testing.T, format string) (*Logger, *bytes.Buffer) {
	t.Helper()
	log, err := NewLogger(&Config{Level: DebugLevel, Format: format, AppName: "nepway", Version: "test"})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	var buf bytes.Buffer
	log.SetOutput(&buf)
	return log, &buf
}

func TestJSONFormatterIncludesContextFields(t *testing.T) {
	log, buf := newBufferLogger(t, "json")
	userID := primitive.NewObjectID()

	ctx := ContextWithRequestID(context.Background(), "req-42")
	ctx = ContextWithUserID(ctx, userID)
	log.WithContext(ctx).WithError(errors.New("boom")).Warn("booking refused")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %q", buf.String())
	}

	want := map[string]interface{}{
		"message":    "booking refused",
		"level":      "warning",
		"app":        "nepway",
		"version":    "test",
		"request_id": "req-42",
		"user_id":    userID.Hex(),
		"error":      "boom",
	}
	for key, value := range want {
		if entry[key] != value {
			t.Errorf("%s = %v, want %v", key, entry[key], value)
		}
	}
}

func TestTextFormatterOrdersCorrelationFieldsFirst(t *testing.T) {
	log, buf := newBufferLogger(t, "text")
	rideID := primitive.NewObjectID()

	log.WithFields(map[string]interface{}{"alpha": 1, "ride_id": rideID.Hex(), "request_id": "r1"}).Info("transition applied")

	line := buf.String()
	requestAt := strings.Index(line, "request_id=r1")
	rideAt := strings.Index(line, "ride_id="+rideID.Hex())
	alphaAt := strings.Index(line, "alpha=1")
	if requestAt < 0 || rideAt < 0 || alphaAt < 0 {
		t.Fatalf("missing fields in %q", line)
	}
	if !(requestAt < rideAt && rideAt < alphaAt) {
		t.Errorf("field order wrong in %q", line)
	}
	if !strings.Contains(line, "[INFO]") || !strings.Contains(line, "[nepway]") {
		t.Errorf("header missing in %q", line)
	}
}

func TestOrderedKeys(t *testing.T) {
	got := orderedKeys(logrus.Fields{"zeta": 1, "task": "sweep", "beta": 2, "user_id": "u"})
	want := []string{"user_id", "task", "beta", "zeta"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("orderedKeys() = %v, want %v", got, want)
	}
}

func TestLogAPIRequestLevels(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{200, "info"},
		{409, "warning"},
		{503, "error"},
	}
	for _, tt := range tests {
		log, buf := newBufferLogger(t, "json")
		log.LogAPIRequest("POST", "/api/rides/:id/book", tt.status, 0, nil)

		var entry map[string]interface{}
		if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
			t.Fatalf("output is not JSON: %q", buf.String())
		}
		if entry["level"] != tt.want {
			t.Errorf("status %d level = %v, want %s", tt.status, entry["level"], tt.want)
		}
	}
}
