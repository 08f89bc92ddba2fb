package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestGinMiddlewareRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	l := zerolog.New(&buf)

	var seen string
	r := gin.New()
	r.Use(GinMiddleware(l))
	r.GET("/ping", func(c *gin.Context) {
		Ctx(c.Request.Context()).Info().Msg("inside")
		seen = c.Writer.Header().Get(HeaderRequestID)
		c.Set(FieldUsername, "alice")
		c.Status(http.StatusNoContent)
	})

	t.Run("generates id", func(t *testing.T) {
		buf.Reset()
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

		id := w.Header().Get(HeaderRequestID)
		if id == "" {
			t.Fatal("response is missing X-Request-ID")
		}
		if seen != id {
			t.Errorf("handler saw %q, response has %q", seen, id)
		}

		lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
		if len(lines) != 2 {
			t.Fatalf("got %d log lines, want 2", len(lines))
		}
		var last map[string]any
		if err := json.Unmarshal(lines[1], &last); err != nil {
			t.Fatalf("decode log line: %v", err)
		}
		if last[FieldRequestID] != id {
			t.Errorf("logged request_id = %v, want %v", last[FieldRequestID], id)
		}
		if last[FieldUsername] != "alice" {
			t.Errorf("logged username = %v, want alice", last[FieldUsername])
		}
		if last[FieldStatus] != float64(http.StatusNoContent) {
			t.Errorf("logged status = %v", last[FieldStatus])
		}
	})

	t.Run("propagates id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(HeaderRequestID, "req-123")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if got := w.Header().Get(HeaderRequestID); got != "req-123" {
			t.Errorf("X-Request-ID = %q, want req-123", got)
		}
	})
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		" WARN ":  zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
		"unknown": zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestCtxFallsBackToGlobal(t *testing.T) {
	if got := Ctx(context.Background()); got != L() {
		t.Errorf("Ctx(empty) = %p, want global logger %p", got, L())
	}

	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), zerolog.New(&buf))
	Ctx(ctx).Info().Str(FieldRoom, "general").Msg("scoped")

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line[FieldRoom] != "general" || line["message"] != "scoped" {
		t.Errorf("log line = %v", line)
	}
}

func TestGlobalLoggerMethods(t *testing.T) {
	L().Debug().Msg("debug through global")
	if L() != L() {
		t.Error("L() returned different loggers")
	}
}
