package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ibs-source/payload-relay/internal/payload"
	"github.com/sirupsen/logrus"
)

func newBufferLogger(level logrus.Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := NewWithOutput(&buf)
	logger.log.SetLevel(level)
	logger.log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return logger, &buf
}

func TestNew(t *testing.T) {
	logger := New()
	if logger == nil {
		t.Fatal("New() returned nil")
	}
	if logger.log == nil {
		t.Fatal("logger.log is nil")
	}
}

func TestNew_DefaultLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	logger := New()
	if logger.log.GetLevel() != logrus.InfoLevel {
		t.Errorf("expected default level Info, got %v", logger.log.GetLevel())
	}
}

func TestNew_CustomLevels(t *testing.T) {
	tests := []struct {
		envValue string
		expected logrus.Level
	}{
		{"trace", logrus.TraceLevel},
		{"debug", logrus.DebugLevel},
		{"info", logrus.InfoLevel},
		{"warn", logrus.WarnLevel},
		{"warning", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"invalid", logrus.InfoLevel}, // Should default to Info
	}

	for _, tt := range tests {
		t.Run(tt.envValue, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.envValue)

			logger := New()
			if logger.log.GetLevel() != tt.expected {
				t.Errorf("for LOG_LEVEL=%s, expected level %v, got %v", tt.envValue, tt.expected, logger.log.GetLevel())
			}
		})
	}
}

func TestSetLevel(t *testing.T) {
	logger := New()

	tests := []struct {
		level    string
		expected logrus.Level
	}{
		{"trace", logrus.TraceLevel},
		{"debug", logrus.DebugLevel},
		{"info", logrus.InfoLevel},
		{"warn", logrus.WarnLevel},
		{"warning", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"fatal", logrus.FatalLevel},
		{"panic", logrus.PanicLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger.SetLevel(tt.level)
			if logger.log.GetLevel() != tt.expected {
				t.Errorf("for SetLevel(%s), expected level %v, got %v", tt.level, tt.expected, logger.log.GetLevel())
			}
		})
	}
}

func TestSetLevel_UnknownKeepsLevel(t *testing.T) {
	logger, _ := newBufferLogger(logrus.WarnLevel)
	logger.SetLevel("verbose")
	if logger.log.GetLevel() != logrus.WarnLevel {
		t.Errorf("expected level to stay Warn, got %v", logger.log.GetLevel())
	}
	if ValidLevel("verbose") {
		t.Error("ValidLevel(verbose) = true; want false")
	}
	if !ValidLevel("debug") {
		t.Error("ValidLevel(debug) = false; want true")
	}
}

func TestGetLogrus(t *testing.T) {
	logger := New()
	if logger.GetLogrus() != logger.log {
		t.Error("GetLogrus() did not return the underlying logrus instance")
	}
}

func TestLevels(t *testing.T) {
	tests := []struct {
		name string
		log  func(l *Logger)
		want []string
	}{
		{"trace", func(l *Logger) { l.Trace("trace %d", 1) }, []string{"trace 1"}},
		{"debug", func(l *Logger) { l.Debug("debug %s", "x") }, []string{"debug x"}},
		{"debug fields", func(l *Logger) { l.DebugWithFields(logrus.Fields{"id": "123"}, "dbg") }, []string{"dbg", "id=123"}},
		{"info", func(l *Logger) { l.Info("info message") }, []string{"info message"}},
		{"info fields", func(l *Logger) { l.InfoWithFields(logrus.Fields{"status": "ok"}, "inf") }, []string{"inf", "status=ok"}},
		{"warn", func(l *Logger) { l.Warn("warn message") }, []string{"warn message"}},
		{"warn fields", func(l *Logger) { l.WarnWithFields(logrus.Fields{"reason": "timeout"}, "wrn") }, []string{"wrn", "reason=timeout"}},
		{"error", func(l *Logger) { l.Error("error message") }, []string{"error message"}},
		{"error fields", func(l *Logger) { l.ErrorWithFields(logrus.Fields{"code": "500"}, "err") }, []string{"err", "code=500"}},
		{"with field", func(l *Logger) { l.WithField("user", "john").Info("msg") }, []string{"msg", "user=john"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newBufferLogger(logrus.TraceLevel)
			tt.log(logger)

			output := buf.String()
			for _, want := range tt.want {
				if !strings.Contains(output, want) {
					t.Errorf("expected %q in output, got: %s", want, output)
				}
			}
		})
	}
}

func TestWithPayload(t *testing.T) {
	logger, buf := newBufferLogger(logrus.InfoLevel)

	logger.WithPayload(payload.FromBytes([]byte{1, 2, 3}).WithAckID(9)).Info("relayed")

	output := buf.String()
	for _, want := range []string{"relayed", "kind=binary", "size=3", "ack_id=9"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestPayloadFields_NoAck(t *testing.T) {
	fields := PayloadFields(payload.FromStrings([]string{"a", "b"}))

	if fields["kind"] != "text" {
		t.Errorf("kind = %v; want text", fields["kind"])
	}
	if fields["size"] != 2 {
		t.Errorf("size = %v; want 2", fields["size"])
	}
	if _, ok := fields["ack_id"]; ok {
		t.Error("ack_id must be absent when no ack ID is set")
	}
}
